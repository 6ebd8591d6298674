//go:build !linux

package serial

import (
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.uber.org/multierr"
	bugst "go.bug.st/serial"
)

// portableChannel drives a device through go.bug.st/serial. A pump
// goroutine moves inbound bytes into memory so reads never block.
type portableChannel struct {
	port bugst.Port
	path string

	mu       sync.Mutex
	inbound  []byte
	mask     EventMask
	pending  EventMask
	watchErr error
	armed    bool
	timeouts Timeouts
	lines    *bugst.ModemStatusBits

	readyCh   chan struct{}
	dataCh    chan struct{}
	stop      chan struct{}
	done      chan struct{}
	aborted   atomic.Bool
	abortOnce sync.Once
	closeOnce sync.Once
	closeErr  error
}

var _ deviceChannel = (*portableChannel)(nil)

func openSystemDevice(path string) (deviceChannel, error) {
	port, err := bugst.Open(path, &bugst.Mode{BaudRate: 9600, DataBits: 8})
	if err != nil {
		return nil, classifyPortError(path, err)
	}
	if err := port.SetReadTimeout(pollInterval); err != nil {
		port.Close()
		return nil, errors.Wrapf(err, "set read timeout on %s", path)
	}

	c := &portableChannel{
		port:    port,
		path:    path,
		readyCh: make(chan struct{}, 1),
		dataCh:  make(chan struct{}, 1),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	c.lines, _ = port.GetModemStatusBits()
	go c.pump()
	return c, nil
}

func classifyPortError(path string, err error) error {
	var portErr *bugst.PortError
	if errors.As(err, &portErr) {
		switch portErr.Code() {
		case bugst.PortNotFound:
			return errors.Wrap(multierr.Combine(ErrDeviceNotFound, err), path)
		case bugst.PermissionDenied:
			return errors.Wrap(multierr.Combine(ErrPermissionDenied, err), path)
		case bugst.PortBusy:
			return errors.Wrap(multierr.Combine(ErrDeviceInUse, err), path)
		}
	}
	return errors.Wrapf(err, "open %s", path)
}

func (c *portableChannel) pump() {
	defer close(c.done)
	buf := make([]byte, 256)
	for {
		n, err := c.port.Read(buf)
		if c.aborted.Load() {
			return
		}

		c.mu.Lock()
		var fired EventMask
		if n > 0 {
			c.inbound = append(c.inbound, buf[:n]...)
			fired |= EventRxChar
		}
		fired |= c.sampleLinesLocked()
		c.pending |= fired & c.mask
		if err != nil && c.watchErr == nil {
			c.watchErr = errors.Wrap(err, "read")
		}
		if c.armed && (c.pending != 0 || c.watchErr != nil) {
			c.armed = false
			c.raiseReady()
		}
		c.mu.Unlock()

		if n > 0 {
			select {
			case c.dataCh <- struct{}{}:
			default:
			}
		}
		if err != nil {
			return
		}
	}
}

func (c *portableChannel) sampleLinesLocked() EventMask {
	if c.mask&modemEvents == 0 || c.lines == nil {
		return 0
	}
	bits, err := c.port.GetModemStatusBits()
	if err != nil {
		c.lines = nil
		return 0
	}
	var changed EventMask
	if bits.CTS != c.lines.CTS {
		changed |= EventCTS
	}
	if bits.DSR != c.lines.DSR {
		changed |= EventDSR
	}
	if bits.RI != c.lines.RI {
		changed |= EventRing
	}
	if bits.DCD != c.lines.DCD {
		changed |= EventDCD
	}
	c.lines = bits
	return changed
}

func (c *portableChannel) setTimeouts(t Timeouts) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timeouts = t
	return nil
}

func (c *portableChannel) currentTimeouts() Timeouts {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timeouts
}

func (c *portableChannel) setEventMask(mask EventMask) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mask = mask
	c.pending &= mask
	if bits, err := c.port.GetModemStatusBits(); err == nil {
		c.lines = bits
	}
	return nil
}

func (c *portableChannel) setFrame(f Frame) error {
	mode := &bugst.Mode{
		BaudRate: f.BaudRate,
		DataBits: f.DataBits,
	}
	switch f.Parity {
	case ParityOdd:
		mode.Parity = bugst.OddParity
	case ParityEven:
		mode.Parity = bugst.EvenParity
	case ParityMark:
		mode.Parity = bugst.MarkParity
	case ParitySpace:
		mode.Parity = bugst.SpaceParity
	default:
		mode.Parity = bugst.NoParity
	}
	switch f.StopBits {
	case StopBitsOnePointFive:
		mode.StopBits = bugst.OnePointFiveStopBits
	case StopBitsTwo:
		mode.StopBits = bugst.TwoStopBits
	default:
		mode.StopBits = bugst.OneStopBit
	}
	if err := c.port.SetMode(mode); err != nil {
		return errors.Wrap(err, "set mode")
	}
	return nil
}

func (c *portableChannel) purge() error {
	err := multierr.Combine(c.port.ResetInputBuffer(), c.port.ResetOutputBuffer())
	c.mu.Lock()
	c.inbound = nil
	c.pending = 0
	c.mu.Unlock()
	if err != nil {
		return errors.Wrap(err, "flush queues")
	}
	return nil
}

func (c *portableChannel) watch() (EventMask, error) {
	if c.aborted.Load() {
		return 0, errAborted
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.mask.Has(EventRxChar) && len(c.inbound) > 0 {
		c.pending |= EventRxChar
	}
	if c.pending != 0 || c.watchErr != nil {
		c.armed = false
		c.raiseReady()
		return c.pending, nil
	}
	c.armed = true
	return 0, nil
}

func (c *portableChannel) ready() <-chan struct{} {
	return c.readyCh
}

func (c *portableChannel) raiseReady() {
	select {
	case c.readyCh <- struct{}{}:
	default:
	}
}

func (c *portableChannel) events() (EventMask, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fired, err := c.pending, c.watchErr
	c.pending = 0
	c.watchErr = nil
	return fired, err
}

func (c *portableChannel) queued() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.inbound), nil
}

func (c *portableChannel) read(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.inbound) == 0 {
		return 0, errPending
	}
	n := copy(p, c.inbound)
	c.inbound = c.inbound[n:]
	return n, nil
}

func (c *portableChannel) awaitRead(p []byte) (int, error) {
	budget := c.currentTimeouts().read(len(p))
	var timeout <-chan time.Time
	if budget > 0 {
		timer := time.NewTimer(budget)
		defer timer.Stop()
		timeout = timer.C
	}
	for {
		n, err := c.read(p)
		if !errors.Is(err, errPending) {
			return n, err
		}
		select {
		case <-c.dataCh:
		case <-c.stop:
			return 0, errAborted
		case <-timeout:
			return 0, ErrReadTimeout
		}
	}
}

func (c *portableChannel) write(p []byte) (int, error) {
	n, err := c.port.Write(p)
	if err != nil {
		return n, errors.Wrap(err, "write")
	}
	if n < len(p) {
		return n, errPending
	}
	return n, nil
}

func (c *portableChannel) awaitWrite(p []byte) (int, error) {
	until := deadline(c.currentTimeouts().write(len(p)))
	sent := 0
	for sent < len(p) {
		if c.aborted.Load() {
			return sent, errAborted
		}
		if !until.IsZero() && time.Now().After(until) {
			return sent, ErrWriteTimeout
		}
		n, err := c.write(p[sent:])
		sent += n
		if err != nil && !errors.Is(err, errPending) {
			return sent, err
		}
	}
	return sent, nil
}

func (c *portableChannel) flush() error {
	if err := c.port.Drain(); err != nil {
		return errors.Wrap(err, "drain output")
	}
	return nil
}

func (c *portableChannel) abort() {
	c.abortOnce.Do(func() {
		c.aborted.Store(true)
		close(c.stop)
	})
}

func (c *portableChannel) close() error {
	c.closeOnce.Do(func() {
		c.abort()
		if err := c.port.Close(); err != nil {
			c.closeErr = errors.Wrap(err, "close device")
		}
		<-c.done
	})
	return c.closeErr
}
