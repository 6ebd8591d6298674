/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	serial "github.com/allbin/async-serial"
	"github.com/allbin/async-serial/internal/tui/components"
	"github.com/allbin/async-serial/internal/tui/keys"
	"github.com/allbin/async-serial/internal/tui/models"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// listenCmd represents the listen command
var listenCmd = &cobra.Command{
	Use:   "listen <port>",
	Short: "Listen for data on a serial port with real-time display",
	Long: `Listen for incoming data and line events on a serial port.

This command opens the specified serial port and shows every notification of
the session in a terminal user interface:
- Received data with timestamps, in ASCII and hex
- Line status events selected with --events (cts, dsr, dcd, ring, break, err)
- Operational errors reported by the I/O loop
- Traffic counters in the status bar

Example usage:
  async-serial listen /dev/ttyUSB0
  async-serial listen /dev/ttyUSB0 --baud 115200
  async-serial listen 0 --events rxchar,cts,dsr,break`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		noTimestamps, _ := cmd.Flags().GetBool("no-timestamps")
		hexOnly, _ := cmd.Flags().GetBool("hex")

		opts, err := portOptions(args[0], settingsFromViper())
		if err != nil {
			return err
		}
		config, err := serial.NewConfig(opts...)
		if err != nil {
			return err
		}

		mode := components.DisplayMode{ShowHex: true, ShowASCII: !hexOnly, ShowTimestamps: !noTimestamps}
		return runListenTUI(config, mode, opts...)
	},
}

func init() {
	rootCmd.AddCommand(listenCmd)

	listenCmd.Flags().Bool("no-timestamps", false, "Hide timestamps from output")
	listenCmd.Flags().Bool("hex", false, "Show received data as hex only")
}

// listenModel represents the Bubble Tea model for the listen command
type listenModel struct {
	*sessionScreen
	keys keys.TerminalKeys
	opts []serial.Option
}

func runListenTUI(config serial.Config, mode components.DisplayMode, opts ...serial.Option) error {
	m := &listenModel{
		sessionScreen: newSessionScreen(config),
		keys:          keys.NewTerminalKeys(),
		opts:          opts,
	}
	m.terminal.SetDisplayMode(mode)
	return runSessionProgram(m, m.SessionModel)
}

func (m *listenModel) Init() tea.Cmd {
	// Engine logs would corrupt the alternate screen
	return tea.Batch(m.OpenCmd(zap.NewNop(), m.opts...), models.FlushEvery(flushInterval))
}

func (m *listenModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if handled, cmd := m.handleSession(msg); handled {
		return m, cmd
	}

	var cmds []tea.Cmd
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height, 1)

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) {
			return m, tea.Quit
		}
		m.handleTerminalKey(msg, m.keys)
	}

	_, cmd := m.terminal.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m *listenModel) View() string {
	return m.render(m.keys, "LISTEN", "")
}
