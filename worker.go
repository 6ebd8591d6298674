package serial

import (
	"errors"
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// run is the session's I/O goroutine. Each pass arms the device watch,
// sleeps until shutdown, inbound data or staged output wakes it, and
// handles that one signal.
func (s *session) run() {
	defer close(s.done)
	s.logger.Debug("io loop started")
	defer s.logger.Debug("io loop stopped")

	for {
		fired, err := s.dev.watch()
		if err != nil && !errors.Is(err, errAborted) {
			s.report("watch", err)
		}

		// A watch can complete for data that an earlier read already
		// consumed. Drop it and arm again.
		if fired == EventRxChar {
			n, err := s.dev.queued()
			if err != nil {
				s.report("queued", err)
			} else if n == 0 {
				s.dev.events()
				s.signals.clearRead()
				continue
			}
		}

		switch reason := s.signals.wait(); reason {
		case wakeShutdown:
			return
		case wakeRead:
			s.handleEvents()
		case wakeWrite:
			s.transmit()
		default:
			s.report("wait", &InternalError{Op: "wait", Detail: fmt.Sprintf("unexpected wake reason %v", reason)})
		}
	}
}

func (s *session) handleEvents() {
	fired, err := s.dev.events()
	if err != nil {
		s.report("watch", err)
	}
	status := fired.LineStatus()
	if fired.Has(EventRxChar) {
		config := s.currentConfig()
		if s.receive(config.EventMask.Has(EventRxFlag), config.EventChar) {
			status |= EventRxFlag
		}
	}
	if status != 0 {
		s.sink.OnLineStatus(status)
	}
}

// receive reads one byte at a time until the input queue is empty. It
// reports whether eventChar was among the bytes when flagged is set.
func (s *session) receive(flagged bool, eventChar byte) (sawEventChar bool) {
	var b [1]byte
	for {
		if s.signals.shuttingDown() {
			return
		}
		n, err := s.dev.queued()
		if err != nil {
			s.report("queued", err)
			return
		}
		if n == 0 {
			return
		}

		got, err := s.dev.read(b[:])
		if errors.Is(err, errPending) {
			got, err = s.dev.awaitRead(b[:])
		}
		switch {
		case errors.Is(err, errAborted):
			return
		case errors.Is(err, ErrReadTimeout):
			s.logger.Debug("read timed out with bytes queued", zap.Int("queued", n))
			return
		case err != nil:
			s.report("read", err)
			return
		case got == 0:
			return
		}

		s.received.Inc()
		s.sink.OnByteReceived(b[0])
		if flagged && b[0] == eventChar {
			sawEventChar = true
		}
	}
}

// transmit sends everything staged in one write cycle. The buffer stays
// locked for the whole cycle so Write and SetConfig wait for it.
func (s *session) transmit() {
	s.buf.lock()
	s.signals.clearWrite()
	data := s.buf.pendingLocked()
	staged := len(data)
	if staged == 0 {
		s.buf.unlock()
		return
	}

	sent, err := s.dev.write(data)
	if errors.Is(err, errPending) {
		var more int
		more, err = s.dev.awaitWrite(data[sent:])
		sent += more
	}
	aborted := errors.Is(err, errAborted)

	var failures error
	if err != nil && !aborted {
		failures = multierr.Append(failures, &OpError{Op: "write", Err: err})
	}
	if err == nil && staged == 1 && s.flushSingleByte {
		if ferr := s.dev.flush(); ferr != nil {
			failures = multierr.Append(failures, &OpError{Op: "flush", Err: ferr})
		}
	}
	if err == nil && sent != staged {
		failures = multierr.Append(failures, &InternalError{
			Op:     "write",
			Detail: fmt.Sprintf("sent %d bytes but %d were staged", sent, staged),
		})
	}
	s.buf.resetLocked()
	s.buf.unlock()

	s.sent.Add(uint64(sent))
	s.cycles.Inc()
	if aborted {
		return
	}
	s.logger.Debug("write cycle complete", zap.Int("staged", staged), zap.Int("sent", sent))

	for _, failure := range multierr.Errors(failures) {
		s.report("write", failure)
	}
	s.sink.OnWriteComplete(sent)
}

// report logs err and hands it to the sink. Internal errors are logged at
// error level, everything else as a warning.
func (s *session) report(op string, err error) {
	var internal *InternalError
	if errors.As(err, &internal) {
		s.logger.Error("internal error", zap.String("op", internal.Op), zap.Error(err))
		s.sink.OnFatalError(internal.Op, err)
		return
	}

	var opErr *OpError
	if !errors.As(err, &opErr) {
		opErr = &OpError{Op: op, Err: err}
		err = opErr
	}
	s.logger.Warn("operation failed", zap.String("op", opErr.Op), zap.Error(err))
	s.sink.OnFatalError(opErr.Op, err)
}
