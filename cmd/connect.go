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
	"github.com/allbin/async-serial/internal/tui/components"
	"github.com/allbin/async-serial/internal/tui/keys"
	"github.com/allbin/async-serial/internal/tui/models"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// connectCmd represents the connect command
var connectCmd = &cobra.Command{
	Use:   "connect <port>",
	Short: "Connect to a serial port with bidirectional communication",
	Long: `Connect to a serial port with an interactive bidirectional terminal.

Everything the session reports is shown in the log. Messages typed in insert
mode are staged on the outbound buffer and marked as sent when their write
cycle completes:
  ○ staged   ✓ sent   ✗ rejected (e.g. the buffer is full)

Input lines starting with / are commands:
  /baud <rate>   change the baud rate without reopening the port

Example usage:
  async-serial connect /dev/ttyUSB0
  async-serial connect /dev/ttyUSB0 --baud 115200 --parity even
  async-serial connect 1 --hex`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hexInput, _ := cmd.Flags().GetBool("hex")

		opts, err := portOptions(args[0], settingsFromViper())
		if err != nil {
			return err
		}
		config, err := serial.NewConfig(opts...)
		if err != nil {
			return err
		}

		mode := components.SendingModeASCII
		if hexInput {
			mode = components.SendingModeHex
		}
		return runConnectTUI(config, mode, opts...)
	},
}

func init() {
	rootCmd.AddCommand(connectCmd)

	connectCmd.Flags().BoolP("hex", "x", false, "Start with hex input mode")
}

// reconfigureTimeout bounds how long /baud waits for staged data
const reconfigureTimeout = 5 * time.Second

// connectModel represents the Bubble Tea model for the connect command
type connectModel struct {
	*sessionScreen
	input *components.Input
	keys  keys.ConnectKeys
	opts  []serial.Option
}

func runConnectTUI(config serial.Config, mode components.SendingMode, opts ...serial.Option) error {
	m := newConnectModel(config, mode, opts...)
	return runSessionProgram(m, m.SessionModel)
}

func newConnectModel(config serial.Config, mode components.SendingMode, opts ...serial.Option) *connectModel {
	return &connectModel{
		sessionScreen: newSessionScreen(config),
		input:         components.NewInput("", mode),
		keys:          keys.NewConnectKeys(),
		opts:          opts,
	}
}

func (m *connectModel) Init() tea.Cmd {
	// Engine logs would corrupt the alternate screen
	return tea.Batch(m.OpenCmd(zap.NewNop(), m.opts...), models.FlushEvery(flushInterval))
}

func (m *connectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if handled, cmd := m.handleSession(msg); handled {
		return m, cmd
	}

	var cmds []tea.Cmd
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		// Input box is three lines, status bar one
		m.resize(msg.Width, msg.Height, 4)
		m.input.SetWidth(msg.Width)

	case tea.KeyMsg:
		if m.IsInInsertMode() {
			return m, m.updateInsert(msg)
		}
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.InsertMode):
			m.SetInputMode(models.InputModeInsert)
			m.input.Focus()
			return m, nil
		default:
			m.handleTerminalKey(msg, m.keys.TerminalKeys)
		}
	}

	_, cmd := m.terminal.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

// updateInsert handles keys while the input has focus
func (m *connectModel) updateInsert(msg tea.KeyMsg) tea.Cmd {
	switch {
	case msg.Type == tea.KeyCtrlC:
		return tea.Quit
	case key.Matches(msg, m.keys.Escape):
		m.SetInputMode(models.InputModeNormal)
		m.input.Blur()
		return nil
	case key.Matches(msg, m.keys.Enter):
		return m.submit()
	case key.Matches(msg, m.keys.ToggleSendMode):
		m.input.ToggleSendingMode()
		return nil
	case key.Matches(msg, m.keys.Up):
		m.input.NavigateHistoryUp()
		return nil
	case key.Matches(msg, m.keys.Down):
		m.input.NavigateHistoryDown()
		return nil
	}
	_, cmd := m.input.Update(msg)
	return cmd
}

// submit sends the current input or runs it as a command
func (m *connectModel) submit() tea.Cmd {
	value := m.input.Value()
	if strings.TrimSpace(value) == "" {
		return nil
	}
	m.input.AddToHistory(value)
	m.terminal.GotoBottom()

	if strings.HasPrefix(value, "/") {
		m.input.SetValue("")
		return m.runCommand(value)
	}

	payload, err := m.input.Payload()
	m.input.SetValue("")
	if err != nil {
		m.addEntry(components.Entry{Timestamp: time.Now(), Kind: components.EntryError, Op: "encode", Err: err})
		return nil
	}
	m.recordTX(payload, m.Write(payload))
	return nil
}

func (m *connectModel) runCommand(line string) tea.Cmd {
	fields := strings.Fields(strings.TrimPrefix(line, "/"))
	if len(fields) == 2 && fields[0] == "baud" {
		rate, err := strconv.Atoi(fields[1])
		if err == nil {
			return m.SetBaudRateCmd(rate, reconfigureTimeout)
		}
	}
	m.addEntry(components.Entry{
		Timestamp: time.Now(),
		Kind:      components.EntryError,
		Op:        "command",
		Err:       fmt.Errorf("unknown command %q (try /baud 115200)", line),
	})
	return nil
}

func (m *connectModel) View() string {
	sendingMode := m.input.GetSendingMode().String()
	return m.render(m.keys, m.GetInputMode().String(), sendingMode, m.input.ViewWithMode(m.IsInInsertMode()))
}
