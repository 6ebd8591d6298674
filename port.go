package serial

import (
	"context"
	"sync"

	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// Port gives exclusive, asynchronous access to one serial device. Writes
// are staged and sent by a background goroutine; inbound bytes, line
// status changes, write completions and errors are delivered to the
// NotificationSink passed to Open. A Port can be opened again after Close.
type Port struct {
	mu      sync.Mutex // serializes Open, Close and SetConfig
	logger  *zap.Logger
	current atomic.Pointer[session]
}

// Stats counts traffic for the current session
type Stats struct {
	BytesSent     uint64
	BytesReceived uint64
	WriteCycles   uint64
}

// NewPort creates an unopened port. A nil logger disables logging.
func NewPort(logger *zap.Logger) *Port {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Port{logger: logger.Named("serial")}
}

// Open creates a port logging to the global zap logger and opens it
func Open(sink NotificationSink, opts ...Option) (*Port, error) {
	p := NewPort(zap.L())
	if err := p.Open(sink, opts...); err != nil {
		return nil, err
	}
	return p, nil
}

// Open configures the device selected by opts and starts the session.
// A session that is already open is closed first. Setup failures are
// returned as *SetupError and leave the port unopened.
func (p *Port) Open(sink NotificationSink, opts ...Option) error {
	if sink == nil {
		return ErrNilSink
	}
	config, err := NewConfig(opts...)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.closeLocked(); err != nil {
		p.logger.Warn("closing previous session", zap.Error(err))
	}

	s, err := newSession(config, sink, p.logger)
	if err != nil {
		p.logger.Warn("open failed", zap.String("path", config.DevicePath()), zap.Error(err))
		return err
	}
	p.current.Store(s)
	s.start()
	return nil
}

// IsOpen reports whether a session is running
func (p *Port) IsOpen() bool {
	return p.current.Load() != nil
}

// Write stages data for transmission and returns without touching the
// device. It fails when the port is not open, when data is empty, or when
// the staged total would reach the buffer capacity; in the last case
// nothing is staged.
func (p *Port) Write(data []byte) error {
	s := p.current.Load()
	if s == nil {
		return ErrPortClosed
	}
	if len(data) == 0 {
		return ErrEmptyWrite
	}
	return s.buf.append(data, s.signals.raiseWrite)
}

// Close stops the session and releases the device. Staged data that has
// not been sent is dropped. Closing an unopened port does nothing.
func (p *Port) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closeLocked()
}

func (p *Port) closeLocked() error {
	s := p.current.Swap(nil)
	if s == nil {
		return nil
	}
	return s.close()
}

// Config returns the configuration of the current session
func (p *Port) Config() (Config, error) {
	s := p.current.Load()
	if s == nil {
		return Config{}, ErrPortClosed
	}
	return s.currentConfig(), nil
}

// SetConfig applies new framing, timeouts and event mask to the open
// session. It waits for staged data to be sent first and applies the change
// while no write is in progress. Changing the device, the buffer size or
// the single byte flush policy needs a reopen and returns ErrReopenRequired.
// If programming the device fails, the settings changed so far are put back
// and the session keeps its previous configuration.
func (p *Port) SetConfig(ctx context.Context, config Config) error {
	if err := config.Validate(); err != nil {
		return err
	}
	s := p.current.Load()
	if s == nil {
		return ErrPortClosed
	}
	current := s.currentConfig()
	if config.DevicePath() != current.DevicePath() ||
		config.BufferSize != current.BufferSize ||
		config.FlushSingleByte != current.FlushSingleByte {
		return ErrReopenRequired
	}

	for {
		select {
		case <-s.buf.drainedCh():
		case <-s.signals.shutdown:
			return ErrPortClosed
		case <-ctx.Done():
			return ctx.Err()
		}

		p.mu.Lock()
		if p.current.Load() != s {
			p.mu.Unlock()
			return ErrPortClosed
		}
		s.buf.lock()
		if len(s.buf.pendingLocked()) > 0 {
			s.buf.unlock()
			p.mu.Unlock()
			continue
		}
		err := s.apply(config)
		s.buf.unlock()
		p.mu.Unlock()
		return err
	}
}

// Stats returns the traffic counters of the current session
func (p *Port) Stats() Stats {
	s := p.current.Load()
	if s == nil {
		return Stats{}
	}
	return Stats{
		BytesSent:     s.sent.Load(),
		BytesReceived: s.received.Load(),
		WriteCycles:   s.cycles.Load(),
	}
}
