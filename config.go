package serial

import (
	"fmt"
	"runtime"
	"time"
)

// MaxPortNumber is the highest logical port number accepted by WithPort
const MaxPortNumber = 256

// Parity represents the parity mode
type Parity int

const (
	ParityNone Parity = iota
	ParityOdd
	ParityEven
	ParityMark
	ParitySpace
)

// String returns the single-letter notation used in frame strings such as 8N1
func (p Parity) String() string {
	switch p {
	case ParityNone:
		return "N"
	case ParityOdd:
		return "O"
	case ParityEven:
		return "E"
	case ParityMark:
		return "M"
	case ParitySpace:
		return "S"
	default:
		return "?"
	}
}

// StopBits represents the number of stop bits
type StopBits int

const (
	StopBitsOne StopBits = iota
	StopBitsOnePointFive
	StopBitsTwo
)

func (s StopBits) String() string {
	switch s {
	case StopBitsOne:
		return "1"
	case StopBitsOnePointFive:
		return "1.5"
	case StopBitsTwo:
		return "2"
	default:
		return "?"
	}
}

// Frame describes how bytes are framed on the line
type Frame struct {
	BaudRate int
	Parity   Parity
	DataBits int
	StopBits StopBits
}

// String formats the frame as e.g. "9600 8N1"
func (f Frame) String() string {
	return fmt.Sprintf("%d %d%s%s", f.BaudRate, f.DataBits, f.Parity, f.StopBits)
}

// Timeouts bound how long a pending read or write may wait for the device.
// A total timeout is Multiplier*n + Constant for an n byte transfer; zero
// for both parts means the transfer waits until it completes or the port
// is closed.
type Timeouts struct {
	ReadInterval         time.Duration
	ReadTotalMultiplier  time.Duration
	ReadTotalConstant    time.Duration
	WriteTotalMultiplier time.Duration
	WriteTotalConstant   time.Duration
}

// read returns the deadline budget for an n byte read
func (t Timeouts) read(n int) time.Duration {
	d := t.ReadTotalMultiplier*time.Duration(n) + t.ReadTotalConstant
	if d == 0 {
		return t.ReadInterval
	}
	return d
}

// write returns the deadline budget for an n byte write
func (t Timeouts) write(n int) time.Duration {
	return t.WriteTotalMultiplier*time.Duration(n) + t.WriteTotalConstant
}

// Config holds the configuration for a serial session
type Config struct {
	// Port is the logical port number, used when Path is empty
	Port int
	// Path overrides Port with an explicit device path
	Path      string
	Frame     Frame
	EventMask EventMask
	// EventChar is the byte reported as EventRxFlag when that event is watched
	EventChar byte
	// BufferSize is the capacity of the outbound staging buffer. A write is
	// accepted only while the staged total stays strictly below it.
	BufferSize int
	Timeouts   Timeouts
	// FlushSingleByte drains the device after a one byte write
	FlushSingleByte bool
}

// Option is a functional option for configuring a serial session
type Option func(*Config) error

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() Config {
	return Config{
		Port: 8,
		Frame: Frame{
			BaudRate: 9600,
			Parity:   ParityNone,
			DataBits: 8,
			StopBits: StopBitsOne,
		},
		EventMask:  EventRxChar,
		BufferSize: 4096,
		Timeouts: Timeouts{
			ReadInterval:         1000 * time.Millisecond,
			ReadTotalMultiplier:  1 * time.Millisecond,
			ReadTotalConstant:    50 * time.Millisecond,
			WriteTotalMultiplier: 100 * time.Millisecond,
			WriteTotalConstant:   1000 * time.Millisecond,
		},
		FlushSingleByte: true,
	}
}

// DevicePath resolves the device the session opens
func (c Config) DevicePath() string {
	if c.Path != "" {
		return c.Path
	}
	if runtime.GOOS == "windows" {
		return fmt.Sprintf(`\\.\COM%d`, c.Port)
	}
	return fmt.Sprintf("/dev/ttyS%d", c.Port)
}

// Validate checks the whole configuration
func (c Config) Validate() error {
	if c.Path == "" && (c.Port < 0 || c.Port > MaxPortNumber) {
		return fmt.Errorf("%w: port %d outside 0..%d", ErrInvalidConfig, c.Port, MaxPortNumber)
	}
	if err := validateBufferSize(c.BufferSize); err != nil {
		return err
	}
	if err := validateEventMask(c.EventMask); err != nil {
		return err
	}
	if err := c.Frame.validate(); err != nil {
		return err
	}
	return c.Timeouts.validate()
}

func (f Frame) validate() error {
	if err := checkBaudRate(f.BaudRate); err != nil {
		return err
	}
	if f.DataBits < 5 || f.DataBits > 8 {
		return fmt.Errorf("%w: %d data bits", ErrInvalidConfig, f.DataBits)
	}
	if f.Parity < ParityNone || f.Parity > ParitySpace {
		return fmt.Errorf("%w: parity %d", ErrInvalidConfig, int(f.Parity))
	}
	switch f.StopBits {
	case StopBitsOne, StopBitsTwo:
	case StopBitsOnePointFive:
		if f.DataBits != 5 {
			return fmt.Errorf("%w: 1.5 stop bits requires 5 data bits", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: stop bits %d", ErrInvalidConfig, int(f.StopBits))
	}
	return nil
}

func (t Timeouts) validate() error {
	for _, d := range []time.Duration{
		t.ReadInterval, t.ReadTotalMultiplier, t.ReadTotalConstant,
		t.WriteTotalMultiplier, t.WriteTotalConstant,
	} {
		if d < 0 {
			return fmt.Errorf("%w: negative timeout %v", ErrInvalidConfig, d)
		}
	}
	return nil
}

// WithPort selects the device by logical port number (0..MaxPortNumber)
func WithPort(n int) Option {
	return func(c *Config) error {
		if n < 0 || n > MaxPortNumber {
			return ErrInvalidConfig
		}
		c.Port = n
		return nil
	}
}

// WithPath selects the device by path, e.g. /dev/ttyUSB0
func WithPath(path string) Option {
	return func(c *Config) error {
		if path == "" {
			return ErrInvalidConfig
		}
		c.Path = path
		return nil
	}
}

// WithBaudRate sets the baud rate
func WithBaudRate(rate int) Option {
	return func(c *Config) error {
		if err := checkBaudRate(rate); err != nil {
			return err
		}
		c.Frame.BaudRate = rate
		return nil
	}
}

// WithDataBits sets the number of data bits (5, 6, 7, or 8)
func WithDataBits(bits int) Option {
	return func(c *Config) error {
		if bits < 5 || bits > 8 {
			return ErrInvalidConfig
		}
		c.Frame.DataBits = bits
		return nil
	}
}

// WithStopBits sets the number of stop bits
func WithStopBits(bits StopBits) Option {
	return func(c *Config) error {
		if bits < StopBitsOne || bits > StopBitsTwo {
			return ErrInvalidConfig
		}
		c.Frame.StopBits = bits
		return nil
	}
}

// WithParity sets the parity mode
func WithParity(parity Parity) Option {
	return func(c *Config) error {
		if parity < ParityNone || parity > ParitySpace {
			return ErrInvalidConfig
		}
		c.Frame.Parity = parity
		return nil
	}
}

// validateBufferSize rejects capacities that could never stage a byte,
// since a write must leave the staged total strictly below capacity
func validateBufferSize(size int) error {
	if size < 2 {
		return fmt.Errorf("%w: buffer size %d, must be at least 2 because staged data has to stay below capacity",
			ErrInvalidConfig, size)
	}
	return nil
}

func validateEventMask(mask EventMask) error {
	if rest := mask &^ eventMaskAll; rest != 0 {
		return fmt.Errorf("%w: unknown event bits %#x", ErrInvalidConfig, uint32(rest))
	}
	if mask.Has(EventTxEmpty) {
		return fmt.Errorf("%w: TXEMPTY cannot be watched, write completion is reported through OnWriteComplete",
			ErrInvalidConfig)
	}
	if mask.Has(EventRxFlag) && !mask.Has(EventRxChar) {
		return fmt.Errorf("%w: RXFLAG is detected on received data and needs RXCHAR", ErrInvalidConfig)
	}
	return nil
}

// WithEventMask selects which device events the session watches for
func WithEventMask(mask EventMask) Option {
	return func(c *Config) error {
		if err := validateEventMask(mask); err != nil {
			return err
		}
		c.EventMask = mask
		return nil
	}
}

// WithEventChar sets the byte that raises EventRxFlag
func WithEventChar(b byte) Option {
	return func(c *Config) error {
		c.EventChar = b
		return nil
	}
}

// WithBufferSize sets the capacity of the outbound staging buffer
func WithBufferSize(size int) Option {
	return func(c *Config) error {
		if err := validateBufferSize(size); err != nil {
			return err
		}
		c.BufferSize = size
		return nil
	}
}

// WithTimeouts replaces all timeouts at once
func WithTimeouts(t Timeouts) Option {
	return func(c *Config) error {
		if err := t.validate(); err != nil {
			return err
		}
		c.Timeouts = t
		return nil
	}
}

// WithReadIntervalTimeout sets the maximum gap tolerated between inbound bytes
func WithReadIntervalTimeout(d time.Duration) Option {
	return func(c *Config) error {
		if d < 0 {
			return ErrInvalidConfig
		}
		c.Timeouts.ReadInterval = d
		return nil
	}
}

// WithReadTotalTimeout sets the per-byte multiplier and constant for reads
func WithReadTotalTimeout(multiplier, constant time.Duration) Option {
	return func(c *Config) error {
		if multiplier < 0 || constant < 0 {
			return ErrInvalidConfig
		}
		c.Timeouts.ReadTotalMultiplier = multiplier
		c.Timeouts.ReadTotalConstant = constant
		return nil
	}
}

// WithWriteTotalTimeout sets the per-byte multiplier and constant for writes
func WithWriteTotalTimeout(multiplier, constant time.Duration) Option {
	return func(c *Config) error {
		if multiplier < 0 || constant < 0 {
			return ErrInvalidConfig
		}
		c.Timeouts.WriteTotalMultiplier = multiplier
		c.Timeouts.WriteTotalConstant = constant
		return nil
	}
}

// WithFlushSingleByte toggles draining the device after one byte writes
func WithFlushSingleByte(enabled bool) Option {
	return func(c *Config) error {
		c.FlushSingleByte = enabled
		return nil
	}
}

// NewConfig applies opts on top of DefaultConfig and validates the result
func NewConfig(opts ...Option) (Config, error) {
	config := DefaultConfig()
	for _, opt := range opts {
		if err := opt(&config); err != nil {
			return Config{}, err
		}
	}
	if err := config.Validate(); err != nil {
		return Config{}, err
	}
	return config, nil
}
