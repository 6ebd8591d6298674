package serial

import (
	"sync"
	"testing"
	"time"
)

// fakeDevice is a scriptable deviceChannel
type fakeDevice struct {
	mu       sync.Mutex
	path     string
	inbound  []byte
	written  []byte
	mask     EventMask
	pending  EventMask
	armed    bool
	frame    Frame
	timeouts Timeouts
	flushes  int
	closes   int
	awaiting int
	// calls records configuration steps in the order they ran
	calls []string

	// reply maps written bytes to bytes that arrive in response
	reply func(p []byte) []byte
	// writeGate makes writes pend until it is closed
	writeGate chan struct{}
	// writeErr fails the next write
	writeErr error
	// shortBy makes the next write report this many bytes fewer than asked
	shortBy int
	// failStep fails the named setup step
	failStep string
	// spurious makes the next watch report data with an empty queue
	spurious     bool
	spuriousSeen bool

	readyCh   chan struct{}
	abortCh   chan struct{}
	abortOnce sync.Once
}

var _ deviceChannel = (*fakeDevice)(nil)

func newFakeDevice() *fakeDevice {
	return &fakeDevice{
		readyCh: make(chan struct{}, 1),
		abortCh: make(chan struct{}),
	}
}

// installFakes makes each Open in the test take the next device in order
func installFakes(t *testing.T, devices ...*fakeDevice) {
	t.Helper()
	orig := openDevice
	var mu sync.Mutex
	next := 0
	openDevice = func(path string) (deviceChannel, error) {
		mu.Lock()
		defer mu.Unlock()
		if next >= len(devices) {
			t.Errorf("unexpected open of %s", path)
			return nil, ErrDeviceNotFound
		}
		dev := devices[next]
		next++
		dev.mu.Lock()
		dev.path = path
		dev.mu.Unlock()
		return dev, nil
	}
	t.Cleanup(func() { openDevice = orig })
}

func (d *fakeDevice) fail(step string) error {
	d.calls = append(d.calls, step)
	if d.failStep == step {
		return errFakeStep
	}
	return nil
}

func (d *fakeDevice) setTimeouts(t Timeouts) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fail("timeouts"); err != nil {
		return err
	}
	d.timeouts = t
	return nil
}

func (d *fakeDevice) setEventMask(mask EventMask) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fail("event mask"); err != nil {
		return err
	}
	d.mask = mask
	return nil
}

func (d *fakeDevice) setFrame(f Frame) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fail("frame"); err != nil {
		return err
	}
	d.frame = f
	return nil
}

func (d *fakeDevice) purge() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fail("purge"); err != nil {
		return err
	}
	d.inbound = nil
	d.pending = 0
	return nil
}

func (d *fakeDevice) raiseReady() {
	select {
	case d.readyCh <- struct{}{}:
	default:
	}
}

func (d *fakeDevice) watch() (EventMask, error) {
	select {
	case <-d.abortCh:
		return 0, errAborted
	default:
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.spurious {
		d.spurious = false
		d.spuriousSeen = true
		d.pending |= EventRxChar
		d.raiseReady()
		return EventRxChar, nil
	}
	if d.armed {
		return 0, nil
	}
	if d.mask.Has(EventRxChar) && len(d.inbound) > 0 {
		d.pending |= EventRxChar
	}
	if d.pending != 0 {
		d.raiseReady()
		return d.pending, nil
	}
	d.armed = true
	return 0, nil
}

// fire completes an armed watch
func (d *fakeDevice) fireLocked() {
	if d.armed && d.pending != 0 {
		d.armed = false
		d.raiseReady()
	}
}

// inject delivers inbound bytes
func (d *fakeDevice) inject(p []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.inbound = append(d.inbound, p...)
	if d.mask.Has(EventRxChar) {
		d.pending |= EventRxChar
	}
	d.fireLocked()
}

// signal raises line events
func (d *fakeDevice) signal(events EventMask) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pending |= events & d.mask
	d.fireLocked()
}

func (d *fakeDevice) ready() <-chan struct{} {
	return d.readyCh
}

func (d *fakeDevice) events() (EventMask, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fired := d.pending
	d.pending = 0
	return fired, nil
}

func (d *fakeDevice) queued() (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.inbound), nil
}

func (d *fakeDevice) read(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.inbound) == 0 {
		return 0, errPending
	}
	n := copy(p, d.inbound)
	d.inbound = d.inbound[n:]
	return n, nil
}

func (d *fakeDevice) awaitRead(p []byte) (int, error) {
	return 0, ErrReadTimeout
}

func (d *fakeDevice) write(p []byte) (int, error) {
	d.mu.Lock()
	if err := d.writeErr; err != nil {
		d.writeErr = nil
		d.mu.Unlock()
		return 0, err
	}
	if d.writeGate != nil {
		d.mu.Unlock()
		return 0, errPending
	}
	n := len(p) - d.shortBy
	d.shortBy = 0
	d.written = append(d.written, p[:n]...)
	reply := d.reply
	d.mu.Unlock()

	if reply != nil {
		if answer := reply(p[:n]); len(answer) > 0 {
			d.inject(answer)
		}
	}
	return n, nil
}

func (d *fakeDevice) awaitWrite(p []byte) (int, error) {
	d.mu.Lock()
	gate := d.writeGate
	d.awaiting++
	d.mu.Unlock()

	select {
	case <-gate:
		d.mu.Lock()
		d.written = append(d.written, p...)
		d.mu.Unlock()
		return len(p), nil
	case <-d.abortCh:
		return 0, errAborted
	}
}

func (d *fakeDevice) flush() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.flushes++
	return nil
}

func (d *fakeDevice) abort() {
	d.abortOnce.Do(func() { close(d.abortCh) })
}

func (d *fakeDevice) close() error {
	d.abort()
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closes++
	return nil
}

func (d *fakeDevice) snapshot() (written []byte, flushes, closes, awaiting int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]byte(nil), d.written...), d.flushes, d.closes, d.awaiting
}

// takeCalls returns the recorded steps and starts a new record
func (d *fakeDevice) takeCalls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	calls := d.calls
	d.calls = nil
	return calls
}

type fakeStepError struct{}

func (fakeStepError) Error() string { return "injected step failure" }

var errFakeStep error = fakeStepError{}

// recordingSink collects every notification
type recordingSink struct {
	mu       sync.Mutex
	received []byte
	statuses []EventMask
	writes   []int
	ops      []string
	errs     []error
}

var _ NotificationSink = (*recordingSink)(nil)

func (r *recordingSink) OnByteReceived(b byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.received = append(r.received, b)
}

func (r *recordingSink) OnLineStatus(events EventMask) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, events)
}

func (r *recordingSink) OnWriteComplete(sent int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes = append(r.writes, sent)
}

func (r *recordingSink) OnFatalError(op string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = append(r.ops, op)
	r.errs = append(r.errs, err)
}

func (r *recordingSink) receivedString() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return string(r.received)
}

func (r *recordingSink) totalSent() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := 0
	for _, n := range r.writes {
		total += n
	}
	return total
}

func (r *recordingSink) writeCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.writes)
}

func (r *recordingSink) errors() ([]string, []error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ops...), append([]error(nil), r.errs...)
}

func (r *recordingSink) lineStatuses() []EventMask {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]EventMask(nil), r.statuses...)
}

// waitFor polls cond until it holds or a second passes
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("Timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}
