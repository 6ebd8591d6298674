package serial

import "sync"

// NotificationSink receives everything a session reports. Methods are called
// from the session's I/O goroutine, one at a time and never while the
// outbound buffer is locked, so a sink may call Write. A sink must not call
// Close or SetConfig from inside a callback.
type NotificationSink interface {
	// OnByteReceived is called once per inbound byte, in arrival order
	OnByteReceived(b byte)
	// OnLineStatus is called with the line events that fired, never
	// including EventRxChar or EventTxEmpty. EventRxFlag follows the
	// OnByteReceived call for the event character.
	OnLineStatus(events EventMask)
	// OnWriteComplete is called after each write cycle with the bytes sent
	OnWriteComplete(sent int)
	// OnFatalError reports an operational or internal failure. The session
	// keeps running afterwards.
	OnFatalError(op string, err error)
}

// SinkFuncs adapts plain functions to NotificationSink. Nil fields are skipped.
type SinkFuncs struct {
	Byte          func(b byte)
	LineStatus    func(events EventMask)
	WriteComplete func(sent int)
	Error         func(op string, err error)
}

var _ NotificationSink = SinkFuncs{}

func (f SinkFuncs) OnByteReceived(b byte) {
	if f.Byte != nil {
		f.Byte(b)
	}
}

func (f SinkFuncs) OnLineStatus(events EventMask) {
	if f.LineStatus != nil {
		f.LineStatus(events)
	}
}

func (f SinkFuncs) OnWriteComplete(sent int) {
	if f.WriteComplete != nil {
		f.WriteComplete(sent)
	}
}

func (f SinkFuncs) OnFatalError(op string, err error) {
	if f.Error != nil {
		f.Error(op, err)
	}
}

// NotificationKind identifies which callback produced a Notification
type NotificationKind int

const (
	NotifyByte NotificationKind = iota
	NotifyLineStatus
	NotifyWriteComplete
	NotifyError
)

// Notification is one sink callback captured as a value
type Notification struct {
	Kind   NotificationKind
	Byte   byte
	Events EventMask
	Sent   int
	Op     string
	Err    error
}

// EventStream is a NotificationSink that forwards every callback to a
// channel. Sends block until the consumer receives or Stop is called, so the
// consumer applies backpressure to the I/O goroutine.
type EventStream struct {
	ch       chan Notification
	stop     chan struct{}
	stopOnce sync.Once
}

var _ NotificationSink = (*EventStream)(nil)

// NewEventStream creates a stream with the given channel capacity
func NewEventStream(size int) *EventStream {
	return &EventStream{
		ch:   make(chan Notification, size),
		stop: make(chan struct{}),
	}
}

// C returns the channel notifications are delivered on
func (s *EventStream) C() <-chan Notification {
	return s.ch
}

// Stop makes all further sends return immediately
func (s *EventStream) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

func (s *EventStream) send(n Notification) {
	select {
	case <-s.stop:
		return
	default:
	}
	select {
	case s.ch <- n:
	case <-s.stop:
	}
}

func (s *EventStream) OnByteReceived(b byte) {
	s.send(Notification{Kind: NotifyByte, Byte: b})
}

func (s *EventStream) OnLineStatus(events EventMask) {
	s.send(Notification{Kind: NotifyLineStatus, Events: events})
}

func (s *EventStream) OnWriteComplete(sent int) {
	s.send(Notification{Kind: NotifyWriteComplete, Sent: sent})
}

func (s *EventStream) OnFatalError(op string, err error) {
	s.send(Notification{Kind: NotifyError, Op: op, Err: err})
}
