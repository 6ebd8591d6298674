package serial

import "sync"

// stagingBuffer holds outbound bytes between Write and the next write cycle.
// Its length always stays strictly below its capacity.
type stagingBuffer struct {
	mu      sync.Mutex
	data    []byte
	closed  bool
	drained chan struct{} // closed while the buffer is empty
}

func newStagingBuffer(capacity int) *stagingBuffer {
	b := &stagingBuffer{
		data:    make([]byte, 0, capacity),
		drained: make(chan struct{}),
	}
	close(b.drained)
	return b
}

// append stages p, leaving the buffer untouched when p does not fit
func (b *stagingBuffer) append(p []byte, staged func()) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrPortClosed
	}
	if len(b.data)+len(p) >= cap(b.data) {
		return ErrBufferOverflow
	}
	if len(b.data) == 0 {
		b.drained = make(chan struct{})
	}
	b.data = append(b.data, p...)
	if staged != nil {
		staged()
	}
	return nil
}

func (b *stagingBuffer) lock() {
	b.mu.Lock()
}

func (b *stagingBuffer) unlock() {
	b.mu.Unlock()
}

// pendingLocked returns the staged bytes; the caller holds the lock
func (b *stagingBuffer) pendingLocked() []byte {
	return b.data
}

// resetLocked empties the buffer; the caller holds the lock
func (b *stagingBuffer) resetLocked() {
	if len(b.data) == 0 {
		return
	}
	b.data = b.data[:0]
	close(b.drained)
}

// drainedCh returns a channel that is closed once the buffer is empty
func (b *stagingBuffer) drainedCh() <-chan struct{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.drained
}

func (b *stagingBuffer) size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.data)
}

func (b *stagingBuffer) capacity() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return cap(b.data)
}

// close rejects further appends and drops anything still staged
func (b *stagingBuffer) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.resetLocked()
}
