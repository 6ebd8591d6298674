package serial

import "time"

// pollInterval is how often an armed watch samples line status
const pollInterval = 20 * time.Millisecond

// modemEvents are the line events derived from modem status changes
const modemEvents = EventCTS | EventDSR | EventDCD | EventRing

// deviceChannel is a session's handle to an open device. read and write
// never block: when the device cannot finish at once they return errPending
// (write may also report the bytes it did send) and the caller completes
// the transfer with awaitRead or awaitWrite. abort makes every current and
// future await return errAborted.
type deviceChannel interface {
	setTimeouts(t Timeouts) error
	setEventMask(mask EventMask) error
	setFrame(f Frame) error
	purge() error

	// watch arms event detection. It returns the fired events when they
	// are already available, in which case ready has been raised too.
	watch() (EventMask, error)
	ready() <-chan struct{}
	// events returns and clears the events collected since the last call
	events() (EventMask, error)
	queued() (int, error)

	read(p []byte) (int, error)
	awaitRead(p []byte) (int, error)
	write(p []byte) (int, error)
	awaitWrite(p []byte) (int, error)
	flush() error

	abort()
	close() error
}

// openDevice opens the device behind a session. Tests replace it.
var openDevice = openSystemDevice

// deadline turns a timeout budget into an absolute deadline; zero means none
func deadline(budget time.Duration) time.Time {
	if budget <= 0 {
		return time.Time{}
	}
	return time.Now().Add(budget)
}
