package serial

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.Port != 8 {
		t.Errorf("Expected Port 8, got %d", config.Port)
	}

	if config.Frame.BaudRate != 9600 {
		t.Errorf("Expected BaudRate 9600, got %d", config.Frame.BaudRate)
	}

	if config.Frame.DataBits != 8 {
		t.Errorf("Expected DataBits 8, got %d", config.Frame.DataBits)
	}

	if config.Frame.StopBits != StopBitsOne {
		t.Errorf("Expected StopBits 1, got %v", config.Frame.StopBits)
	}

	if config.Frame.Parity != ParityNone {
		t.Errorf("Expected Parity None, got %v", config.Frame.Parity)
	}

	if config.EventMask != EventRxChar {
		t.Errorf("Expected EventMask RXCHAR, got %v", config.EventMask)
	}

	if config.BufferSize != 4096 {
		t.Errorf("Expected BufferSize 4096, got %d", config.BufferSize)
	}

	want := Timeouts{
		ReadInterval:         time.Second,
		ReadTotalMultiplier:  time.Millisecond,
		ReadTotalConstant:    50 * time.Millisecond,
		WriteTotalMultiplier: 100 * time.Millisecond,
		WriteTotalConstant:   time.Second,
	}
	if config.Timeouts != want {
		t.Errorf("Expected Timeouts %+v, got %+v", want, config.Timeouts)
	}

	if !config.FlushSingleByte {
		t.Error("Expected FlushSingleByte to be enabled")
	}

	if err := config.Validate(); err != nil {
		t.Errorf("Default config should validate, got %v", err)
	}
}

func TestFunctionalOptions(t *testing.T) {
	config, err := NewConfig(
		WithPath("/dev/ttyUSB3"),
		WithBaudRate(115200),
		WithDataBits(7),
		WithStopBits(StopBitsTwo),
		WithParity(ParityEven),
		WithEventMask(EventRxChar|EventCTS),
		WithBufferSize(64),
		WithReadTotalTimeout(2*time.Millisecond, 10*time.Millisecond),
		WithWriteTotalTimeout(0, 0),
		WithFlushSingleByte(false),
	)
	if err != nil {
		t.Fatalf("NewConfig failed: %v", err)
	}

	if config.DevicePath() != "/dev/ttyUSB3" {
		t.Errorf("Expected path /dev/ttyUSB3, got %s", config.DevicePath())
	}
	if config.Frame.String() != "115200 7E2" {
		t.Errorf("Expected frame 115200 7E2, got %s", config.Frame)
	}
	if config.EventMask != EventRxChar|EventCTS {
		t.Errorf("Expected EventMask RXCHAR|CTS, got %v", config.EventMask)
	}
	if config.BufferSize != 64 {
		t.Errorf("Expected BufferSize 64, got %d", config.BufferSize)
	}
	if config.Timeouts.read(10) != 30*time.Millisecond {
		t.Errorf("Expected read budget 30ms, got %v", config.Timeouts.read(10))
	}
	if config.Timeouts.write(10) != 0 {
		t.Errorf("Expected no write budget, got %v", config.Timeouts.write(10))
	}
	if config.FlushSingleByte {
		t.Error("Expected FlushSingleByte to be disabled")
	}
}

func TestDevicePathFromPortNumber(t *testing.T) {
	config, err := NewConfig(WithPort(3))
	if err != nil {
		t.Fatalf("NewConfig failed: %v", err)
	}
	if config.DevicePath() != "/dev/ttyS3" {
		t.Errorf("Expected /dev/ttyS3, got %s", config.DevicePath())
	}
}

func TestInvalidOptions(t *testing.T) {
	tests := []struct {
		name string
		opt  Option
		want error
	}{
		{"baud rate", WithBaudRate(0), ErrInvalidBaudRate},
		{"data bits", WithDataBits(9), ErrInvalidConfig},
		{"stop bits", WithStopBits(StopBits(7)), ErrInvalidConfig},
		{"parity", WithParity(Parity(9)), ErrInvalidConfig},
		{"port number", WithPort(MaxPortNumber + 1), ErrInvalidConfig},
		{"negative port", WithPort(-1), ErrInvalidConfig},
		{"empty path", WithPath(""), ErrInvalidConfig},
		{"event mask", WithEventMask(EventMask(1 << 20)), ErrInvalidConfig},
		{"txempty", WithEventMask(EventRxChar | EventTxEmpty), ErrInvalidConfig},
		{"rxflag without rxchar", WithEventMask(EventRxFlag | EventCTS), ErrInvalidConfig},
		{"buffer size", WithBufferSize(1), ErrInvalidConfig},
		{"read interval", WithReadIntervalTimeout(-time.Second), ErrInvalidConfig},
		{"write timeout", WithWriteTotalTimeout(-1, 0), ErrInvalidConfig},
		{"timeouts", WithTimeouts(Timeouts{ReadTotalConstant: -1}), ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			before := config
			err := tt.opt(&config)
			if !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
			if config != before {
				t.Errorf("Rejected option modified config: %+v", config)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"highest port", func(c *Config) { c.Port = MaxPortNumber }, false},
		{"port out of range", func(c *Config) { c.Port = MaxPortNumber + 1 }, true},
		{"path overrides port", func(c *Config) { c.Port = -5; c.Path = "/dev/ttyUSB0" }, false},
		{"buffer too small", func(c *Config) { c.BufferSize = 1 }, true},
		{"one and a half stop bits with 5 data bits", func(c *Config) {
			c.Frame.DataBits = 5
			c.Frame.StopBits = StopBitsOnePointFive
		}, false},
		{"one and a half stop bits with 8 data bits", func(c *Config) {
			c.Frame.StopBits = StopBitsOnePointFive
		}, true},
		{"unknown event bit", func(c *Config) { c.EventMask = 1 << 12 }, true},
		{"txempty", func(c *Config) { c.EventMask = EventTxEmpty }, true},
		{"rxflag without rxchar", func(c *Config) { c.EventMask = EventRxFlag }, true},
		{"rxflag with rxchar", func(c *Config) { c.EventMask = EventRxChar | EventRxFlag }, false},
		{"smallest buffer", func(c *Config) { c.BufferSize = 2 }, false},
		{"negative timeout", func(c *Config) { c.Timeouts.WriteTotalConstant = -time.Millisecond }, true},
		{"zero baud", func(c *Config) { c.Frame.BaudRate = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.mutate(&config)
			err := config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestBufferSizeErrorExplainsMinimum(t *testing.T) {
	_, err := NewConfig(WithBufferSize(1))
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("Expected ErrInvalidConfig, got %v", err)
	}
	if !strings.Contains(err.Error(), "at least 2") {
		t.Errorf("Expected the minimum in the message, got %q", err)
	}
}

func TestEventChar(t *testing.T) {
	if got := DefaultConfig().EventChar; got != 0 {
		t.Errorf("Expected default event char 0, got %#x", got)
	}
	config, err := NewConfig(WithEventMask(EventRxChar|EventRxFlag), WithEventChar('\n'))
	if err != nil {
		t.Fatalf("NewConfig failed: %v", err)
	}
	if config.EventChar != '\n' {
		t.Errorf("Expected event char newline, got %#x", config.EventChar)
	}
}

func TestReadBudgetFallsBackToInterval(t *testing.T) {
	timeouts := Timeouts{ReadInterval: 250 * time.Millisecond}
	if got := timeouts.read(1); got != 250*time.Millisecond {
		t.Errorf("Expected 250ms, got %v", got)
	}
}
