//go:build linux

package serial

import (
	"sync"
	"time"
	"unsafe"

	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.uber.org/multierr"
	"golang.org/x/sys/unix"
)

// serialICounter mirrors struct serial_icounter_struct
type serialICounter struct {
	cts, dsr, rng, dcd     int32
	rx, tx                 int32
	frame, overrun, parity int32
	brk, bufOverrun        int32
	reserved               [9]int32
}

// termiosChannel drives a tty through a non-blocking descriptor. A watcher
// goroutine polls the descriptor and a wake pipe while a watch is armed.
type termiosChannel struct {
	fd   int
	path string
	wake [2]int

	mu       sync.Mutex
	mask     EventMask
	pending  EventMask
	watchErr error
	armed    bool
	hungUp   bool
	timeouts Timeouts

	modem       int
	counts      serialICounter
	sampleModem bool
	sampleCount bool

	readyCh   chan struct{}
	armCh     chan struct{}
	stop      chan struct{}
	done      chan struct{}
	aborted   atomic.Bool
	abortOnce sync.Once
	closeOnce sync.Once
	closeErr  error
}

var _ deviceChannel = (*termiosChannel)(nil)

func openSystemDevice(path string) (deviceChannel, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_NOCTTY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, classifyOpenError(path, err)
	}

	if err := unix.IoctlSetInt(fd, unix.TIOCEXCL, 0); err != nil {
		unix.Close(fd)
		return nil, errors.Wrapf(err, "claim %s", path)
	}

	var pipe [2]int
	if err := unix.Pipe2(pipe[:], unix.O_NONBLOCK|unix.O_CLOEXEC); err != nil {
		unix.IoctlSetInt(fd, unix.TIOCNXCL, 0)
		unix.Close(fd)
		return nil, errors.Wrap(err, "create wake pipe")
	}

	c := &termiosChannel{
		fd:      fd,
		path:    path,
		wake:    pipe,
		readyCh: make(chan struct{}, 1),
		armCh:   make(chan struct{}, 1),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	c.resetLineBaseline()
	go c.watchLoop()
	return c, nil
}

func classifyOpenError(path string, err error) error {
	switch {
	case errors.Is(err, unix.ENOENT), errors.Is(err, unix.ENXIO), errors.Is(err, unix.ENODEV):
		return errors.Wrap(joinErrors(ErrDeviceNotFound, err), path)
	case errors.Is(err, unix.EACCES), errors.Is(err, unix.EPERM):
		return errors.Wrap(joinErrors(ErrPermissionDenied, err), path)
	case errors.Is(err, unix.EBUSY):
		return errors.Wrap(joinErrors(ErrDeviceInUse, err), path)
	default:
		return errors.Wrapf(err, "open %s", path)
	}
}

// joinErrors keeps both the sentinel and the errno reachable via errors.Is
func joinErrors(sentinel, cause error) error {
	return multierr.Combine(sentinel, cause)
}

// resetLineBaseline samples the modem lines and error counters that later
// samples are compared against. Drivers without support disable sampling.
func (c *termiosChannel) resetLineBaseline() {
	c.mu.Lock()
	defer c.mu.Unlock()

	status, err := unix.IoctlGetInt(c.fd, unix.TIOCMGET)
	c.sampleModem = err == nil
	c.modem = status

	var counts serialICounter
	c.sampleCount = getICounter(c.fd, &counts) == nil
	c.counts = counts
}

func getICounter(fd int, counts *serialICounter) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), uintptr(unix.TIOCGICOUNT), uintptr(unsafe.Pointer(counts)))
	if errno != 0 {
		return errno
	}
	return nil
}

func (c *termiosChannel) setTimeouts(t Timeouts) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timeouts = t
	return nil
}

func (c *termiosChannel) currentTimeouts() Timeouts {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timeouts
}

func (c *termiosChannel) setEventMask(mask EventMask) error {
	c.mu.Lock()
	c.mask = mask
	c.pending &= mask
	c.mu.Unlock()
	c.resetLineBaseline()
	return nil
}

// setFrame puts the tty in raw mode with the requested framing and all
// flow control disabled
func (c *termiosChannel) setFrame(f Frame) error {
	termios, err := unix.IoctlGetTermios(c.fd, unix.TCGETS)
	if err != nil {
		return errors.Wrap(err, "get termios")
	}

	baudRate, err := getBaudRate(f.BaudRate)
	if err != nil {
		return err
	}

	termios.Cflag = unix.CREAD | unix.CLOCAL
	termios.Iflag = 0
	termios.Oflag = 0
	termios.Lflag = 0

	// Reads never block in the kernel; waiting is done with poll
	termios.Cc[unix.VMIN] = 0
	termios.Cc[unix.VTIME] = 0

	termios.Cflag = (termios.Cflag &^ unix.CBAUD) | baudRate
	termios.Ispeed = baudRate
	termios.Ospeed = baudRate

	switch f.DataBits {
	case 5:
		termios.Cflag |= unix.CS5
	case 6:
		termios.Cflag |= unix.CS6
	case 7:
		termios.Cflag |= unix.CS7
	default:
		termios.Cflag |= unix.CS8
	}

	// With 5 data bits CSTOPB yields 1.5 stop bits
	if f.StopBits == StopBitsTwo || f.StopBits == StopBitsOnePointFive {
		termios.Cflag |= unix.CSTOPB
	}

	switch f.Parity {
	case ParityOdd:
		termios.Cflag |= unix.PARENB | unix.PARODD
	case ParityEven:
		termios.Cflag |= unix.PARENB
	case ParityMark:
		termios.Cflag |= unix.PARENB | unix.PARODD | unix.CMSPAR
	case ParitySpace:
		termios.Cflag |= unix.PARENB | unix.CMSPAR
	}
	if f.Parity != ParityNone {
		termios.Iflag |= unix.INPCK
	}

	if err := unix.IoctlSetTermios(c.fd, unix.TCSETS, termios); err != nil {
		return errors.Wrap(err, "set termios")
	}
	return nil
}

func (c *termiosChannel) purge() error {
	if err := unix.IoctlSetInt(c.fd, unix.TCFLSH, unix.TCIOFLUSH); err != nil {
		return errors.Wrap(err, "flush queues")
	}
	c.mu.Lock()
	c.pending = 0
	c.mu.Unlock()
	return nil
}

func (c *termiosChannel) watch() (EventMask, error) {
	if c.aborted.Load() {
		return 0, errAborted
	}

	c.mu.Lock()
	if c.armed {
		c.mu.Unlock()
		return 0, nil
	}
	if c.pending == 0 && c.watchErr == nil && c.mask.Has(EventRxChar) {
		if n, err := unix.IoctlGetInt(c.fd, unix.TIOCINQ); err == nil && n > 0 {
			c.pending |= EventRxChar
		}
	}
	if c.pending != 0 || c.watchErr != nil {
		fired := c.pending
		c.mu.Unlock()
		c.raiseReady()
		return fired, nil
	}
	c.armed = true
	c.mu.Unlock()

	select {
	case c.armCh <- struct{}{}:
	default:
	}
	return 0, nil
}

func (c *termiosChannel) ready() <-chan struct{} {
	return c.readyCh
}

func (c *termiosChannel) raiseReady() {
	select {
	case c.readyCh <- struct{}{}:
	default:
	}
}

func (c *termiosChannel) events() (EventMask, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fired, err := c.pending, c.watchErr
	c.pending = 0
	c.watchErr = nil
	return fired, err
}

// watchLoop waits for an arm, then polls until an event fires
func (c *termiosChannel) watchLoop() {
	defer close(c.done)
	for {
		select {
		case <-c.armCh:
		case <-c.stop:
			return
		}
		for {
			fired, err := c.pollEvents()
			if c.aborted.Load() {
				return
			}
			if fired == 0 && err == nil {
				continue
			}
			c.mu.Lock()
			c.pending |= fired
			if err != nil && c.watchErr == nil {
				c.watchErr = err
			}
			c.armed = false
			c.mu.Unlock()
			c.raiseReady()
			break
		}
	}
}

func (c *termiosChannel) pollEvents() (EventMask, error) {
	c.mu.Lock()
	mask := c.mask
	watchData := mask.Has(EventRxChar) && !c.hungUp
	c.mu.Unlock()

	fds := []unix.PollFd{{Fd: int32(c.wake[0]), Events: unix.POLLIN}}
	if watchData {
		fds = append(fds, unix.PollFd{Fd: int32(c.fd), Events: unix.POLLIN})
	}

	_, err := unix.Poll(fds, int(pollInterval/time.Millisecond))
	if err != nil && !errors.Is(err, unix.EINTR) {
		return 0, errors.Wrap(err, "poll device")
	}
	if fds[0].Revents != 0 {
		return 0, nil
	}

	var fired EventMask
	if watchData {
		switch revents := fds[1].Revents; {
		case revents&unix.POLLIN != 0:
			fired |= EventRxChar
		case revents&(unix.POLLHUP|unix.POLLERR|unix.POLLNVAL) != 0:
			c.mu.Lock()
			c.hungUp = true
			c.mu.Unlock()
			return c.sampleLines(mask), errors.Wrap(unix.EIO, "device hung up")
		}
	}
	return fired | c.sampleLines(mask), nil
}

// sampleLines compares modem lines and error counters with the previous
// sample and returns the events in mask that changed
func (c *termiosChannel) sampleLines(mask EventMask) EventMask {
	c.mu.Lock()
	defer c.mu.Unlock()

	var fired EventMask
	if mask&modemEvents != 0 && c.sampleModem {
		status, err := unix.IoctlGetInt(c.fd, unix.TIOCMGET)
		if err != nil {
			c.sampleModem = false
		} else {
			fired |= changedLines(c.modem, status)
			c.modem = status
		}
	}
	if mask&(EventBreak|EventErr) != 0 && c.sampleCount {
		var counts serialICounter
		if err := getICounter(c.fd, &counts); err != nil {
			c.sampleCount = false
		} else {
			if counts.brk != c.counts.brk {
				fired |= EventBreak
			}
			if counts.frame != c.counts.frame || counts.overrun != c.counts.overrun ||
				counts.parity != c.counts.parity || counts.bufOverrun != c.counts.bufOverrun {
				fired |= EventErr
			}
			c.counts = counts
		}
	}
	return fired & mask
}

// changedLines compares old and new modem status words
func changedLines(oldStatus, newStatus int) EventMask {
	var changed EventMask
	if (oldStatus&unix.TIOCM_CTS != 0) != (newStatus&unix.TIOCM_CTS != 0) {
		changed |= EventCTS
	}
	if (oldStatus&unix.TIOCM_DSR != 0) != (newStatus&unix.TIOCM_DSR != 0) {
		changed |= EventDSR
	}
	if (oldStatus&unix.TIOCM_RI != 0) != (newStatus&unix.TIOCM_RI != 0) {
		changed |= EventRing
	}
	if (oldStatus&unix.TIOCM_CAR != 0) != (newStatus&unix.TIOCM_CAR != 0) {
		changed |= EventDCD
	}
	return changed
}

func (c *termiosChannel) queued() (int, error) {
	n, err := unix.IoctlGetInt(c.fd, unix.TIOCINQ)
	if err != nil {
		return 0, errors.Wrap(err, "query input queue")
	}
	return n, nil
}

func (c *termiosChannel) read(p []byte) (int, error) {
	n, err := unix.Read(c.fd, p)
	switch {
	case errors.Is(err, unix.EAGAIN):
		return 0, errPending
	case err != nil:
		return 0, errors.Wrap(err, "read")
	case n == 0:
		return 0, errPending
	}
	return n, nil
}

func (c *termiosChannel) awaitRead(p []byte) (int, error) {
	until := deadline(c.currentTimeouts().read(len(p)))
	for {
		if err := c.pollDevice(unix.POLLIN, until, ErrReadTimeout); err != nil {
			return 0, err
		}
		n, err := c.read(p)
		if errors.Is(err, errPending) {
			continue
		}
		return n, err
	}
}

func (c *termiosChannel) write(p []byte) (int, error) {
	n, err := unix.Write(c.fd, p)
	if n < 0 {
		n = 0
	}
	switch {
	case errors.Is(err, unix.EAGAIN):
		return n, errPending
	case err != nil:
		return n, errors.Wrap(err, "write")
	case n < len(p):
		return n, errPending
	}
	return n, nil
}

func (c *termiosChannel) awaitWrite(p []byte) (int, error) {
	until := deadline(c.currentTimeouts().write(len(p)))
	sent := 0
	for sent < len(p) {
		if err := c.pollDevice(unix.POLLOUT, until, ErrWriteTimeout); err != nil {
			return sent, err
		}
		n, err := c.write(p[sent:])
		sent += n
		if err != nil && !errors.Is(err, errPending) {
			return sent, err
		}
	}
	return sent, nil
}

// pollDevice waits until the descriptor reports events, the deadline passes
// or the channel is aborted
func (c *termiosChannel) pollDevice(events int16, until time.Time, timeoutErr error) error {
	for {
		if c.aborted.Load() {
			return errAborted
		}
		timeout := -1
		if !until.IsZero() {
			remaining := time.Until(until)
			if remaining <= 0 {
				return timeoutErr
			}
			timeout = int((remaining + time.Millisecond - 1) / time.Millisecond)
		}

		fds := []unix.PollFd{
			{Fd: int32(c.fd), Events: events},
			{Fd: int32(c.wake[0]), Events: unix.POLLIN},
		}
		_, err := unix.Poll(fds, timeout)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return errors.Wrap(err, "poll device")
		}
		if fds[1].Revents != 0 {
			return errAborted
		}
		if fds[0].Revents&events != 0 {
			return nil
		}
		if fds[0].Revents&(unix.POLLHUP|unix.POLLERR|unix.POLLNVAL) != 0 {
			return errors.Wrap(unix.EIO, "device hung up")
		}
	}
}

// flush blocks until the output queue has been transmitted
func (c *termiosChannel) flush() error {
	if err := unix.IoctlSetInt(c.fd, unix.TCSBRK, 1); err != nil {
		return errors.Wrap(err, "drain output")
	}
	return nil
}

func (c *termiosChannel) abort() {
	c.abortOnce.Do(func() {
		c.aborted.Store(true)
		close(c.stop)
		unix.Write(c.wake[1], []byte{0})
	})
}

func (c *termiosChannel) close() error {
	c.closeOnce.Do(func() {
		c.abort()
		<-c.done

		var err error
		if e := unix.IoctlSetInt(c.fd, unix.TIOCNXCL, 0); e != nil && !errors.Is(e, unix.EIO) {
			err = multierr.Append(err, errors.Wrap(e, "release claim"))
		}
		if e := unix.Close(c.fd); e != nil {
			err = multierr.Append(err, errors.Wrap(e, "close device"))
		}
		unix.Close(c.wake[0])
		unix.Close(c.wake[1])
		c.closeErr = err
	})
	return c.closeErr
}
