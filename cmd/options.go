/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	serial "github.com/allbin/async-serial"
	"github.com/spf13/viper"
)

// settings is the line configuration shared by all commands that open a port
type settings struct {
	BaudRate     int
	DataBits     int
	Parity       string
	StopBits     string
	Events       []string
	EventChar    string
	Buffer       int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	NoFlush      bool
}

func settingsFromViper() settings {
	return settings{
		BaudRate:     viper.GetInt("baud"),
		DataBits:     viper.GetInt("data-bits"),
		Parity:       viper.GetString("parity"),
		StopBits:     viper.GetString("stop-bits"),
		Events:       viper.GetStringSlice("events"),
		EventChar:    viper.GetString("event-char"),
		Buffer:       viper.GetInt("buffer"),
		ReadTimeout:  viper.GetDuration("read-timeout"),
		WriteTimeout: viper.GetDuration("write-timeout"),
		NoFlush:      viper.GetBool("no-flush"),
	}
}

// portOptions turns a port argument and the line settings into open options.
// The argument is a device path or a logical port number.
func portOptions(target string, s settings) ([]serial.Option, error) {
	var opts []serial.Option
	if n, err := strconv.Atoi(target); err == nil {
		opts = append(opts, serial.WithPort(n))
	} else {
		opts = append(opts, serial.WithPath(target))
	}

	parity, err := parseParity(s.Parity)
	if err != nil {
		return nil, err
	}
	stopBits, err := parseStopBits(s.StopBits)
	if err != nil {
		return nil, err
	}
	mask, err := parseEventMask(s.Events)
	if err != nil {
		return nil, err
	}
	eventChar, err := parseEventChar(s.EventChar)
	if err != nil {
		return nil, err
	}

	opts = append(opts,
		serial.WithBaudRate(s.BaudRate),
		serial.WithDataBits(s.DataBits),
		serial.WithParity(parity),
		serial.WithStopBits(stopBits),
		serial.WithEventMask(mask),
		serial.WithEventChar(eventChar),
		serial.WithBufferSize(s.Buffer),
		serial.WithFlushSingleByte(!s.NoFlush),
	)

	if s.ReadTimeout > 0 {
		opts = append(opts, serial.WithReadTotalTimeout(0, s.ReadTimeout))
	}
	if s.WriteTimeout > 0 {
		opts = append(opts, serial.WithWriteTotalTimeout(0, s.WriteTimeout))
	}
	return opts, nil
}

func parseParity(name string) (serial.Parity, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "none", "n":
		return serial.ParityNone, nil
	case "odd", "o":
		return serial.ParityOdd, nil
	case "even", "e":
		return serial.ParityEven, nil
	case "mark", "m":
		return serial.ParityMark, nil
	case "space", "s":
		return serial.ParitySpace, nil
	default:
		return 0, fmt.Errorf("unknown parity: %s (valid: none, odd, even, mark, space)", name)
	}
}

func parseStopBits(value string) (serial.StopBits, error) {
	switch strings.TrimSpace(value) {
	case "", "1":
		return serial.StopBitsOne, nil
	case "1.5":
		return serial.StopBitsOnePointFive, nil
	case "2":
		return serial.StopBitsTwo, nil
	default:
		return 0, fmt.Errorf("unknown stop bits: %s (valid: 1, 1.5, 2)", value)
	}
}

// parseEventMask accepts event names, optionally joined with | or +
func parseEventMask(names []string) (serial.EventMask, error) {
	var mask serial.EventMask
	for _, entry := range names {
		for _, name := range strings.FieldsFunc(entry, func(r rune) bool { return r == '|' || r == '+' }) {
			event, ok := serial.ParseEventName(name)
			if !ok {
				return 0, fmt.Errorf("unknown event: %s", name)
			}
			mask |= event
		}
	}
	if mask == 0 {
		mask = serial.EventRxChar
	}
	return mask, nil
}

// parseEventChar accepts a single character, a Go escape such as \n or
// \x1a, or a number such as 0x0a. Empty means NUL.
func parseEventChar(value string) (byte, error) {
	if value == "" {
		return 0, nil
	}
	if len(value) == 1 {
		return value[0], nil
	}
	if r, _, tail, err := strconv.UnquoteChar(value, '\''); err == nil && tail == "" && r < 256 {
		return byte(r), nil
	}
	n, err := strconv.ParseUint(value, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid event char: %s (use a character, an escape like \\n, or 0x00-0xff)", value)
	}
	return byte(n), nil
}
