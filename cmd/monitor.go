/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	serial "github.com/allbin/async-serial"
	"github.com/allbin/async-serial/internal/tui/colors"
	"github.com/allbin/async-serial/internal/tui/styles"
	"github.com/spf13/cobra"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

var (
	monitorSignals []string
	monitorTimeout time.Duration
)

// monitorCmd represents the monitor command
var monitorCmd = &cobra.Command{
	Use:   "monitor <port>",
	Short: "Monitor line status events",
	Long: `Monitor modem and line status events in real-time.

Every line status notification is printed as it arrives. Received data is
counted but not shown. Press Ctrl+C to stop.

Examples:
  async-serial monitor /dev/ttyUSB0
  async-serial monitor /dev/ttyUSB0 --signals cts,dsr
  async-serial monitor 1 --signals dcd,break --timeout 30s
  async-serial monitor /dev/ttyUSB0 --signals rxflag --event-char '\n'

Available signals: cts, dsr, dcd, ring, break, err, rxflag (the byte set
with --event-char arrived)`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		target := args[0]

		mask, err := parseEventMask(monitorSignals)
		if err != nil {
			return fmt.Errorf("parsing signals: %w", err)
		}
		if mask.LineStatus() == 0 {
			return fmt.Errorf("no line status events selected")
		}

		opts, err := portOptions(target, settingsFromViper())
		if err != nil {
			return err
		}
		opts = append(opts, serial.WithEventMask(mask.LineStatus()|serial.EventRxChar))

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if monitorTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, monitorTimeout)
			defer cancel()
		}

		var received, changes atomic.Uint64
		sink := serial.SinkFuncs{
			Byte: func(byte) { received.Inc() },
			LineStatus: func(events serial.EventMask) {
				changes.Inc()
				printLineStatus(events)
			},
			Error: func(op string, err error) {
				fmt.Fprintf(os.Stderr, "%s %s: %v\n", styles.ErrorStyle.Render("✗"), op, err)
			},
		}

		port := serial.NewPort(zap.L())
		if err := port.Open(sink, opts...); err != nil {
			return fmt.Errorf("opening port: %w", err)
		}

		fmt.Printf("Monitoring %s (events: %s)\n", target, mask.LineStatus())
		fmt.Println("Press Ctrl+C to stop")

		<-ctx.Done()
		fmt.Println("\nStopping monitor...")
		if err := port.Close(); err != nil {
			return err
		}
		fmt.Printf("%d line status notifications, %d bytes received\n", changes.Load(), received.Load())
		return nil
	},
}

func printLineStatus(events serial.EventMask) {
	timestamp := styles.TimestampStyle.Render(fmt.Sprintf("[%s]", time.Now().Format("15:04:05.000")))
	names := strings.Split(events.String(), "|")
	fmt.Printf("%s %s %s\n", timestamp, styles.IndicatorStyle(colors.LineStatus).Render("⚑"), strings.Join(names, " "))
}

func init() {
	rootCmd.AddCommand(monitorCmd)

	monitorCmd.Flags().StringSliceVarP(&monitorSignals, "signals", "s", []string{"cts", "dsr", "ring", "dcd"},
		"Events to monitor (comma-separated: cts,dsr,dcd,ring,break,err,rxflag)")
	monitorCmd.Flags().DurationVarP(&monitorTimeout, "timeout", "t", 0,
		"Stop after this long (0 = until interrupted)")
}
