package models

import (
	"context"
	"sync"
	"time"

	serial "github.com/allbin/async-serial"
	"github.com/allbin/async-serial/internal/tui/components"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
)

// InputMode represents the current input mode (vim-like)
type InputMode int

const (
	InputModeNormal InputMode = iota
	InputModeInsert
)

func (m InputMode) String() string {
	switch m {
	case InputModeInsert:
		return "INSERT"
	default:
		return "NORMAL"
	}
}

// maxEntries bounds the session log
const maxEntries = 5000

type ConnectionStatusMsg struct {
	Connected bool
	Error     error
}

type LineStatusMsg struct {
	Events    serial.EventMask
	Timestamp time.Time
}

type WriteCompleteMsg struct {
	Sent int
}

type FaultMsg struct {
	Op        string
	Err       error
	Timestamp time.Time
}

// FlushMsg asks the model to move received bytes into the log
type FlushMsg time.Time

// SessionModel is the state shared by the interactive commands. It is the
// NotificationSink of the port it opens: received bytes are collected and
// picked up on each FlushMsg, everything else is posted to the program.
type SessionModel struct {
	portPath string

	portMu sync.Mutex
	port   *serial.Port
	closed bool

	mu       sync.Mutex
	received []byte
	post     func(tea.Msg)

	// Owned by the bubbletea event loop
	entries   []components.Entry
	inFlight  []int // indices of staged TX entries, oldest first
	connected bool
	err       error
	ready     bool
	inputMode InputMode
}

var _ serial.NotificationSink = (*SessionModel)(nil)

func NewSessionModel(portPath string) *SessionModel {
	return &SessionModel{
		portPath:  portPath,
		inputMode: InputModeNormal,
	}
}

// Attach sets where notifications are posted, normally tea.Program.Send
func (m *SessionModel) Attach(post func(tea.Msg)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.post = post
}

func (m *SessionModel) send(msg tea.Msg) {
	m.mu.Lock()
	post := m.post
	m.mu.Unlock()
	if post != nil {
		post(msg)
	}
}

func (m *SessionModel) OnByteReceived(b byte) {
	m.mu.Lock()
	m.received = append(m.received, b)
	m.mu.Unlock()
}

func (m *SessionModel) OnLineStatus(events serial.EventMask) {
	m.send(LineStatusMsg{Events: events, Timestamp: time.Now()})
}

func (m *SessionModel) OnWriteComplete(sent int) {
	m.send(WriteCompleteMsg{Sent: sent})
}

func (m *SessionModel) OnFatalError(op string, err error) {
	m.send(FaultMsg{Op: op, Err: err, Timestamp: time.Now()})
}

// TakeReceived returns and clears the bytes received since the last call
func (m *SessionModel) TakeReceived() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	data := m.received
	m.received = nil
	return data
}

// FlushEvery schedules the next FlushMsg
func FlushEvery(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return FlushMsg(t)
	})
}

// Open opens the port with the model as its sink. It fails once Close has
// been called, so a slow open cannot outlive the program.
func (m *SessionModel) Open(logger *zap.Logger, opts ...serial.Option) error {
	m.portMu.Lock()
	defer m.portMu.Unlock()
	if m.closed {
		return serial.ErrPortClosed
	}
	port := serial.NewPort(logger)
	if err := port.Open(m, opts...); err != nil {
		return err
	}
	m.port = port
	return nil
}

// OpenCmd opens the port in the background and reports the outcome
func (m *SessionModel) OpenCmd(logger *zap.Logger, opts ...serial.Option) tea.Cmd {
	return func() tea.Msg {
		err := m.Open(logger, opts...)
		return ConnectionStatusMsg{Connected: err == nil, Error: err}
	}
}

// Write stages data on the open port
func (m *SessionModel) Write(data []byte) error {
	m.portMu.Lock()
	port := m.port
	m.portMu.Unlock()
	if port == nil {
		return serial.ErrPortClosed
	}
	return port.Write(data)
}

// ConfigChangedMsg reports the outcome of SetBaudRateCmd
type ConfigChangedMsg struct {
	Config serial.Config
	Err    error
}

// SetBaudRateCmd changes the baud rate of the open port once staged data
// has been sent
func (m *SessionModel) SetBaudRateCmd(rate int, timeout time.Duration) tea.Cmd {
	return func() tea.Msg {
		m.portMu.Lock()
		port := m.port
		m.portMu.Unlock()
		if port == nil {
			return ConfigChangedMsg{Err: serial.ErrPortClosed}
		}
		config, err := port.Config()
		if err != nil {
			return ConfigChangedMsg{Err: err}
		}
		config.Frame.BaudRate = rate

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := port.SetConfig(ctx, config); err != nil {
			return ConfigChangedMsg{Err: err}
		}
		return ConfigChangedMsg{Config: config}
	}
}

func (m *SessionModel) Stats() serial.Stats {
	m.portMu.Lock()
	port := m.port
	m.portMu.Unlock()
	if port == nil {
		return serial.Stats{}
	}
	return port.Stats()
}

// Close closes the port. It must not run on the bubbletea event loop while
// the program is running, since the I/O goroutine may be blocked posting to
// it.
func (m *SessionModel) Close() error {
	m.portMu.Lock()
	defer m.portMu.Unlock()
	m.closed = true
	if m.port == nil {
		return nil
	}
	err := m.port.Close()
	m.port = nil
	return err
}

func (m *SessionModel) GetPortPath() string {
	return m.portPath
}

func (m *SessionModel) IsConnected() bool {
	return m.connected
}

func (m *SessionModel) SetConnected(connected bool) {
	m.connected = connected
}

func (m *SessionModel) GetError() error {
	return m.err
}

func (m *SessionModel) SetError(err error) {
	m.err = err
}

func (m *SessionModel) IsReady() bool {
	return m.ready
}

func (m *SessionModel) SetReady(ready bool) {
	m.ready = ready
}

func (m *SessionModel) Entries() []components.Entry {
	return m.entries
}

// AddEntry appends to the log, dropping the oldest entries past maxEntries
func (m *SessionModel) AddEntry(e components.Entry) {
	m.entries = append(m.entries, e)
	if over := len(m.entries) - maxEntries; over > 0 {
		m.entries = append([]components.Entry(nil), m.entries[over:]...)
		kept := m.inFlight[:0]
		for _, idx := range m.inFlight {
			if idx >= over {
				kept = append(kept, idx-over)
			}
		}
		m.inFlight = kept
	}
}

// RecordTX logs an outbound message with the result of Write
func (m *SessionModel) RecordTX(data []byte, writeErr error) components.Entry {
	e := components.Entry{
		Timestamp: time.Now(),
		Kind:      components.EntryTX,
		Data:      data,
		Status:    components.TXStaged,
		Err:       writeErr,
	}
	if writeErr != nil {
		e.Status = components.TXRejected
	}
	m.AddEntry(e)
	if writeErr == nil {
		m.inFlight = append(m.inFlight, len(m.entries)-1)
	}
	return e
}

// CompleteWrite marks staged messages as sent, oldest first, for as many
// bytes as one write cycle reported. It returns whether any entry changed.
func (m *SessionModel) CompleteWrite(sent int) bool {
	changed := false
	for len(m.inFlight) > 0 && sent > 0 {
		idx := m.inFlight[0]
		n := len(m.entries[idx].Data)
		if n > sent {
			break
		}
		sent -= n
		m.entries[idx].Status = components.TXSent
		m.inFlight = m.inFlight[1:]
		changed = true
	}
	return changed
}

func (m *SessionModel) ClearData() {
	m.entries = nil
	m.inFlight = nil
}

func (m *SessionModel) GetInputMode() InputMode {
	return m.inputMode
}

func (m *SessionModel) SetInputMode(mode InputMode) {
	m.inputMode = mode
}

func (m *SessionModel) IsInInsertMode() bool {
	return m.inputMode == InputModeInsert
}
