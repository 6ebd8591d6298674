/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"time"

	serial "github.com/allbin/async-serial"
	"github.com/allbin/async-serial/internal/tui/components"
	"github.com/allbin/async-serial/internal/tui/keys"
	"github.com/allbin/async-serial/internal/tui/models"
	"github.com/allbin/async-serial/internal/tui/styles"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"
)

// flushInterval is how often received bytes are moved into the log
const flushInterval = 50 * time.Millisecond

// sessionScreen is the part of the interactive commands that shows a
// session log: the terminal viewport, the status bar and the help view.
type sessionScreen struct {
	*models.SessionModel
	terminal  *components.Terminal
	statusBar *components.StatusBar
	help      help.Model
}

func newSessionScreen(config serial.Config) *sessionScreen {
	s := &sessionScreen{
		SessionModel: models.NewSessionModel(config.DevicePath()),
		terminal:     components.NewTerminal(80, 20),
		statusBar:    components.NewStatusBar(config.DevicePath()),
		help:         help.New(),
	}
	s.statusBar.SetConnecting()
	s.statusBar.SetConnectionInfo(&components.ConnectionInfo{
		Frame:     config.Frame,
		EventMask: config.EventMask,
	})
	return s
}

// resize gives the terminal everything except reserved lines
func (s *sessionScreen) resize(width, height, reserved int) {
	// The content border adds one line on top
	s.terminal.SetSize(width, height-reserved-1)
	s.statusBar.SetWidth(width)
	s.SetReady(true)
}

// addEntry appends to the session log and the terminal
func (s *sessionScreen) addEntry(e components.Entry) {
	before := len(s.Entries())
	s.AddEntry(e)
	s.syncTerminal(before, e)
}

func (s *sessionScreen) recordTX(data []byte, err error) {
	before := len(s.Entries())
	e := s.RecordTX(data, err)
	s.syncTerminal(before, e)
}

// syncTerminal redraws everything when the log dropped old entries
func (s *sessionScreen) syncTerminal(before int, e components.Entry) {
	if len(s.Entries()) > before {
		s.terminal.AddEntry(e)
	} else {
		s.terminal.Refresh(s.Entries())
	}
}

// flushReceived moves bytes received since the last flush into the log
func (s *sessionScreen) flushReceived(at time.Time) {
	if data := s.TakeReceived(); len(data) > 0 {
		s.addEntry(components.Entry{Timestamp: at, Kind: components.EntryRX, Data: data})
	}
}

// handleSession processes the messages posted by the session. It reports
// whether msg was one of them.
func (s *sessionScreen) handleSession(msg tea.Msg) (bool, tea.Cmd) {
	switch msg := msg.(type) {
	case models.ConnectionStatusMsg:
		s.SetConnected(msg.Connected)
		if msg.Error != nil {
			s.SetError(msg.Error)
			s.statusBar.SetDisconnected(msg.Error)
			s.addEntry(components.Entry{Timestamp: time.Now(), Kind: components.EntryError, Op: "open", Err: msg.Error})
		} else {
			s.statusBar.SetConnected()
		}
		return true, nil

	case models.FlushMsg:
		s.flushReceived(time.Time(msg))
		s.statusBar.UpdateStats(s.Stats())
		return true, models.FlushEvery(flushInterval)

	case models.LineStatusMsg:
		s.flushReceived(msg.Timestamp)
		s.statusBar.UpdateLineStatus(msg.Events)
		s.addEntry(components.Entry{Timestamp: msg.Timestamp, Kind: components.EntryLineStatus, Events: msg.Events})
		return true, nil

	case models.WriteCompleteMsg:
		if s.CompleteWrite(msg.Sent) {
			s.terminal.Refresh(s.Entries())
		}
		s.statusBar.UpdateStats(s.Stats())
		return true, nil

	case models.FaultMsg:
		s.flushReceived(msg.Timestamp)
		s.addEntry(components.Entry{Timestamp: msg.Timestamp, Kind: components.EntryError, Op: msg.Op, Err: msg.Err})
		return true, nil

	case models.ConfigChangedMsg:
		if msg.Err != nil {
			s.addEntry(components.Entry{Timestamp: time.Now(), Kind: components.EntryError, Op: "set config", Err: msg.Err})
			return true, nil
		}
		s.statusBar.SetConnectionInfo(&components.ConnectionInfo{
			Frame:     msg.Config.Frame,
			EventMask: msg.Config.EventMask,
			Stats:     s.Stats(),
		})
		return true, nil
	}
	return false, nil
}

// handleTerminalKey applies the log keys shared by listen and connect
func (s *sessionScreen) handleTerminalKey(msg tea.KeyMsg, k keys.TerminalKeys) bool {
	switch {
	case key.Matches(msg, k.Clear):
		s.ClearData()
		s.terminal.Clear()
	case key.Matches(msg, k.Help):
		s.help.ShowAll = !s.help.ShowAll
	case key.Matches(msg, k.ToggleHex):
		s.terminal.ToggleHex()
		s.terminal.Refresh(s.Entries())
	case key.Matches(msg, k.ToggleASCII):
		s.terminal.ToggleASCII()
		s.terminal.Refresh(s.Entries())
	case key.Matches(msg, k.ToggleTimestamps):
		s.terminal.ToggleTimestamps()
		s.terminal.Refresh(s.Entries())
	case key.Matches(msg, k.GotoTop):
		s.terminal.GotoTop()
	case key.Matches(msg, k.GotoBottom):
		s.terminal.GotoBottom()
	default:
		return false
	}
	return true
}

// render lays out the log, the optional help, any extra rows and the
// status bar
func (s *sessionScreen) render(helpKeys help.KeyMap, inputMode, sendingMode string, extra ...string) string {
	content := "Initializing..."
	if s.IsReady() {
		content = s.terminal.View()
	}

	parts := []string{styles.ContentBorderStyle.Render(content)}
	if s.help.ShowAll {
		parts = append(parts, styles.HelpStyle.Render(s.help.View(helpKeys)))
	}
	parts = append(parts, extra...)
	parts = append(parts, s.statusBar.ComprehensiveStatusBar(inputMode, sendingMode, time.Now().Format("15:04:05")))
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

// runSessionProgram runs model until it quits and closes the port after
// the event loop has stopped
func runSessionProgram(model tea.Model, session *models.SessionModel) error {
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion())
	session.Attach(p.Send)

	_, runErr := p.Run()
	session.Attach(nil)
	if err := session.Close(); err != nil {
		zap.L().Warn("closing port", zap.String("path", session.GetPortPath()), zap.Error(err))
	}
	return runErr
}
