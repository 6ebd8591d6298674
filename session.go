package serial

import (
	"sync"

	"go.uber.org/atomic"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// session is everything owned by one Open. Nothing survives into the next.
type session struct {
	dev     deviceChannel
	buf     *stagingBuffer
	signals *signalSet
	sink    NotificationSink
	logger  *zap.Logger

	cfgMu  sync.Mutex
	config Config

	flushSingleByte bool
	done            chan struct{}

	sent     atomic.Uint64
	received atomic.Uint64
	cycles   atomic.Uint64
}

type setupStep struct {
	name  string
	apply func() error
}

// configSteps programs config in the order the device needs: timeouts,
// then the event mask, then the line frame
func configSteps(dev deviceChannel, config Config) []setupStep {
	return []setupStep{
		{"timeouts", func() error { return dev.setTimeouts(config.Timeouts) }},
		{"event mask", func() error { return dev.setEventMask(config.EventMask) }},
		{"frame", func() error { return dev.setFrame(config.Frame) }},
	}
}

func newSession(config Config, sink NotificationSink, logger *zap.Logger) (*session, error) {
	path := config.DevicePath()
	logger = logger.With(zap.String("path", path))

	dev, err := openDevice(path)
	if err != nil {
		return nil, &SetupError{Step: "open", Path: path, Err: err}
	}

	steps := append(configSteps(dev, config), setupStep{"purge", dev.purge})
	for _, step := range steps {
		if err := step.apply(); err != nil {
			if cerr := dev.close(); cerr != nil {
				logger.Warn("releasing device after failed setup", zap.Error(cerr))
			}
			return nil, &SetupError{Step: step.name, Path: path, Err: err}
		}
	}

	s := &session{
		dev:             dev,
		buf:             newStagingBuffer(config.BufferSize),
		signals:         newSignalSet(dev.ready()),
		sink:            sink,
		logger:          logger,
		config:          config,
		flushSingleByte: config.FlushSingleByte,
		done:            make(chan struct{}),
	}
	logger.Info("port opened",
		zap.Stringer("frame", config.Frame),
		zap.Stringer("events", config.EventMask),
		zap.Int("buffer", config.BufferSize))
	return s, nil
}

func (s *session) start() {
	go s.run()
}

func (s *session) currentConfig() Config {
	s.cfgMu.Lock()
	defer s.cfgMu.Unlock()
	return s.config
}

// apply reprograms the device. The caller holds the buffer lock. When a
// step fails, the steps already run are programmed again with the current
// configuration.
func (s *session) apply(config Config) error {
	previous := s.currentConfig()
	steps := configSteps(s.dev, config)
	for i, step := range steps {
		if err := step.apply(); err != nil {
			s.restore(previous, i)
			return &OpError{Op: "configure " + step.name, Err: err}
		}
	}

	s.cfgMu.Lock()
	s.config = config
	s.cfgMu.Unlock()
	s.logger.Info("port reconfigured", zap.Stringer("frame", config.Frame), zap.Stringer("events", config.EventMask))
	return nil
}

// restore runs the first n+1 configuration steps with config
func (s *session) restore(config Config, n int) {
	var errs error
	for _, step := range configSteps(s.dev, config)[:n+1] {
		errs = multierr.Append(errs, step.apply())
	}
	if errs != nil {
		s.logger.Warn("restoring configuration after failed change", zap.Error(errs))
	}
}

// close stops the I/O goroutine, then releases the buffer and the device
func (s *session) close() error {
	s.signals.raiseShutdown()
	s.dev.abort()
	<-s.done

	s.buf.close()
	err := s.dev.close()
	s.logger.Info("port closed",
		zap.Uint64("sent", s.sent.Load()),
		zap.Uint64("received", s.received.Load()),
		zap.Error(err))
	return err
}
