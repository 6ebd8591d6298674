package serial

import "sync"

// wakeReason is what woke the I/O goroutine
type wakeReason int

const (
	wakeShutdown wakeReason = iota
	wakeRead
	wakeWrite
)

func (w wakeReason) String() string {
	switch w {
	case wakeShutdown:
		return "shutdown"
	case wakeRead:
		return "read"
	case wakeWrite:
		return "write"
	default:
		return "unknown"
	}
}

// signalSet is what the I/O goroutine blocks on. When several signals are
// raised at once the order is shutdown, then read, then write.
type signalSet struct {
	shutdown     chan struct{}
	shutdownOnce sync.Once
	write        chan struct{}
	read         <-chan struct{}
}

func newSignalSet(read <-chan struct{}) *signalSet {
	return &signalSet{
		shutdown: make(chan struct{}),
		write:    make(chan struct{}, 1),
		read:     read,
	}
}

func (s *signalSet) raiseShutdown() {
	s.shutdownOnce.Do(func() { close(s.shutdown) })
}

func (s *signalSet) shuttingDown() bool {
	select {
	case <-s.shutdown:
		return true
	default:
		return false
	}
}

func (s *signalSet) raiseWrite() {
	select {
	case s.write <- struct{}{}:
	default:
	}
}

func (s *signalSet) clearWrite() {
	select {
	case <-s.write:
	default:
	}
}

func (s *signalSet) clearRead() {
	select {
	case <-s.read:
	default:
	}
}

// wait blocks until a signal is raised and consumes it
func (s *signalSet) wait() wakeReason {
	if s.shuttingDown() {
		return wakeShutdown
	}
	select {
	case <-s.shutdown:
		return wakeShutdown
	case <-s.read:
		if s.shuttingDown() {
			return wakeShutdown
		}
		return wakeRead
	case <-s.write:
		if s.shuttingDown() {
			return wakeShutdown
		}
		select {
		case <-s.read:
			s.raiseWrite()
			return wakeRead
		default:
		}
		return wakeWrite
	}
}
