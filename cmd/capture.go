/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	serial "github.com/allbin/async-serial"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// captureCmd represents the capture command
var captureCmd = &cobra.Command{
	Use:   "capture <port> <output-file>",
	Short: "Capture serial data to a file",
	Long: `Capture incoming serial data to a file for later parsing.

Every received byte is appended to the output file as it arrives. Runs
continuously until interrupted (Ctrl+C).

The output file is opened in append mode, allowing you to resume captures
without overwriting existing data.

Example usage:
  async-serial capture /dev/ttyUSB0 data.log
  async-serial capture /dev/ttyUSB0 output.txt --baud 115200
  async-serial capture 2 capture.log --console`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		showConsole, _ := cmd.Flags().GetBool("console")

		opts, err := portOptions(args[0], settingsFromViper())
		if err != nil {
			return err
		}
		return runCapture(cmd, args[0], args[1], showConsole, opts...)
	},
}

func init() {
	rootCmd.AddCommand(captureCmd)

	captureCmd.Flags().BoolP("console", "c", false, "Display incoming data on console while capturing")
}

// captureSink appends received bytes to a buffered writer. The first write
// error stops the capture.
type captureSink struct {
	mu      sync.Mutex
	out     *bufio.Writer
	console io.Writer
	written int64
	err     error
	failed  chan struct{}
}

func newCaptureSink(out io.Writer, console io.Writer) *captureSink {
	return &captureSink{
		out:     bufio.NewWriter(out),
		console: console,
		failed:  make(chan struct{}),
	}
}

func (c *captureSink) OnByteReceived(b byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return
	}
	if err := c.out.WriteByte(b); err != nil {
		c.fail(err)
		return
	}
	c.written++
	if c.console != nil {
		c.console.Write([]byte{b})
	}
}

func (c *captureSink) OnLineStatus(serial.EventMask) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err == nil {
		if err := c.out.Flush(); err != nil {
			c.fail(err)
		}
	}
}

func (c *captureSink) OnWriteComplete(int) {}

func (c *captureSink) OnFatalError(op string, err error) {
	zap.L().Warn("capture", zap.String("op", op), zap.Error(err))
}

// fail records err and signals the capture loop; c.mu must be held
func (c *captureSink) fail(err error) {
	c.err = err
	close(c.failed)
}

// Flush writes buffered bytes to the output
func (c *captureSink) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	if err := c.out.Flush(); err != nil {
		c.fail(err)
		return err
	}
	return nil
}

func (c *captureSink) Written() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.written
}

func runCapture(cmd *cobra.Command, target, outputPath string, showConsole bool, opts ...serial.Option) (err error) {
	file, err := os.OpenFile(outputPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open output file: %w", err)
	}
	defer func() { err = multierr.Append(err, file.Close()) }()

	var console io.Writer
	if showConsole {
		console = os.Stdout
	}
	sink := newCaptureSink(file, console)

	port := serial.NewPort(zap.L())
	if err := port.Open(sink, opts...); err != nil {
		return fmt.Errorf("failed to open port: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(os.Stderr, "Capturing data from %s to %s\n", target, outputPath)
	if showConsole {
		fmt.Fprintf(os.Stderr, "Console display enabled\n")
	}
	fmt.Fprintf(os.Stderr, "Press Ctrl+C to stop\n\n")

	startTime := time.Now()
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

loop:
	for {
		select {
		case <-ctx.Done():
			fmt.Fprintf(os.Stderr, "\nReceived interrupt signal, shutting down...\n")
			break loop
		case <-sink.failed:
			break loop
		case <-ticker.C:
			if err := sink.Flush(); err != nil {
				break loop
			}
		}
	}

	err = multierr.Combine(port.Close(), sink.Flush())
	fmt.Fprintf(os.Stderr, "\nCapture complete: %d bytes written in %v\n",
		sink.Written(), time.Since(startTime).Round(time.Millisecond))
	if err != nil {
		return fmt.Errorf("capture: %w", err)
	}
	return nil
}
