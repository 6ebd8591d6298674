/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	serial "github.com/allbin/async-serial"
	"github.com/allbin/async-serial/internal/tui/components"
	"github.com/allbin/async-serial/internal/tui/styles"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// sendCmd represents the send command
var sendCmd = &cobra.Command{
	Use:   "send [data] <port>",
	Short: "Send data to a serial port",
	Long: `Send data to a serial port and wait until it has been written.

Data can be provided as:
- Command line argument: send "Hello World" /dev/ttyUSB0
- From stdin (pipe): echo "test data" | async-serial send /dev/ttyUSB0
- Interactive mode: async-serial send /dev/ttyUSB0 (prompts for input)

Data larger than the outbound buffer is staged in chunks, each one waiting
for the previous write cycle to complete.

Example usage:
  async-serial send "Hello World" /dev/ttyUSB0
  async-serial send "AT+GMR" /dev/ttyUSB0 --newline
  async-serial send "48 65 6C 6C 6F" 3 --hex
  echo "test" | async-serial send /dev/ttyUSB0`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var text, target string
		if len(args) == 1 {
			target = args[0]
			var err error
			if text, err = readInput(); err != nil {
				return err
			}
		} else {
			text = args[0]
			target = args[1]
		}

		addNewline, _ := cmd.Flags().GetBool("newline")
		hexMode, _ := cmd.Flags().GetBool("hex")
		timeout, _ := cmd.Flags().GetDuration("timeout")

		data := []byte(text)
		if hexMode {
			var err error
			if data, err = components.ParseHexInput(text); err != nil {
				return fmt.Errorf("invalid hex data: %w", err)
			}
		} else if addNewline {
			data = append(data, '\n')
		}
		if len(data) == 0 {
			return fmt.Errorf("nothing to send")
		}

		s := settingsFromViper()
		opts, err := portOptions(target, s)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()
		return sendData(ctx, target, data, s.Buffer, opts...)
	},
}

func init() {
	rootCmd.AddCommand(sendCmd)

	sendCmd.Flags().BoolP("newline", "n", false, "Add newline character to the end of data")
	sendCmd.Flags().BoolP("hex", "x", false, "Interpret data as hexadecimal (e.g., '48656c6c6f' for 'Hello')")
	sendCmd.Flags().DurationP("timeout", "t", 5*time.Second, "Timeout for sending data")
}

// readInput reads the payload from a pipe, or prompts for it on a terminal
func readInput() (string, error) {
	stat, err := os.Stdin.Stat()
	if err != nil || (stat.Mode()&os.ModeCharDevice) != 0 {
		return promptForData(), nil
	}
	stdinData, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("reading from stdin: %w", err)
	}
	return strings.TrimRight(string(stdinData), "\r\n"), nil
}

func promptForData() string {
	fmt.Print(styles.InfoStyle.Render("Enter data to send: "))

	scanner := bufio.NewScanner(os.Stdin)
	if scanner.Scan() {
		return scanner.Text()
	}
	return ""
}

// chunks splits data into pieces the outbound buffer accepts
func chunks(data []byte, bufferSize int) [][]byte {
	size := bufferSize - 1
	if size < 1 {
		size = 1
	}
	var out [][]byte
	for len(data) > size {
		out = append(out, data[:size])
		data = data[size:]
	}
	return append(out, data)
}

func sendData(ctx context.Context, target string, data []byte, bufferSize int, opts ...serial.Option) error {
	fmt.Printf("%s Opening %s...\n", styles.InfoStyle.Render("⚡"), target)

	stream := serial.NewEventStream(64)
	port := serial.NewPort(zap.L())
	if err := port.Open(stream, opts...); err != nil {
		return fmt.Errorf("%s %w", styles.ErrorStyle.Render("✗"), err)
	}
	defer func() {
		stream.Stop()
		if err := port.Close(); err != nil {
			zap.L().Warn("closing port", zap.Error(err))
		}
	}()

	fmt.Printf("%s Connected successfully\n", styles.SuccessStyle.Render("✓"))
	fmt.Printf("%s Sending %d bytes...\n", styles.InfoStyle.Render("📤"), len(data))

	sent := 0
	for _, chunk := range chunks(data, bufferSize) {
		if err := port.Write(chunk); err != nil {
			return fmt.Errorf("%s failed to stage data: %w", styles.ErrorStyle.Render("✗"), err)
		}
		n, err := awaitWrite(ctx, stream, len(chunk))
		sent += n
		if err != nil {
			return fmt.Errorf("%s sent %d of %d bytes: %w", styles.ErrorStyle.Render("✗"), sent, len(data), err)
		}
	}

	fmt.Printf("%s Successfully sent %d bytes\n", styles.SuccessStyle.Render("✓"), sent)

	preview := data
	if len(preview) > 50 {
		preview = preview[:50]
	}
	fmt.Printf("%s Data: %s\n", styles.InfoStyle.Render("📋"), components.PrintableString(preview))
	return nil
}

// awaitWrite consumes notifications until want bytes have been reported
// written. Received bytes and line events are discarded.
func awaitWrite(ctx context.Context, stream *serial.EventStream, want int) (int, error) {
	sent := 0
	for sent < want {
		select {
		case <-ctx.Done():
			return sent, errors.Wrap(ctx.Err(), "waiting for write completion")
		case n := <-stream.C():
			switch n.Kind {
			case serial.NotifyWriteComplete:
				sent += n.Sent
			case serial.NotifyError:
				return sent, errors.Wrap(n.Err, n.Op)
			}
		}
	}
	return sent, nil
}
