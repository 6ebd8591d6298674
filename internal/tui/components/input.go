package components

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/allbin/async-serial/internal/tui/colors"
	"github.com/allbin/async-serial/internal/tui/styles"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// SendingMode selects how typed text is turned into bytes
type SendingMode int

const (
	SendingModeASCII SendingMode = iota
	SendingModeHex
)

func (s SendingMode) String() string {
	if s == SendingModeHex {
		return "HEX"
	}
	return "ASCII"
}

func (s SendingMode) placeholder() string {
	if s == SendingModeHex {
		return "Enter hex (e.g. 48656C6C6F or 48 65 6C 6C 6F)..."
	}
	return "Type message and press Enter to send..."
}

// maxHistory bounds the number of remembered messages
const maxHistory = 100

// History remembers sent messages for recall with the arrow keys
type History struct {
	lines  []string
	cursor int    // index into lines while browsing, -1 otherwise
	draft  string // input being typed before browsing started
}

func NewHistory() *History {
	return &History{cursor: -1}
}

// Add remembers line unless it is blank or repeats the previous one
func (h *History) Add(line string) {
	line = strings.TrimSpace(line)
	h.cursor = -1
	h.draft = ""
	if line == "" || (len(h.lines) > 0 && h.lines[len(h.lines)-1] == line) {
		return
	}
	h.lines = append(h.lines, line)
	if len(h.lines) > maxHistory {
		h.lines = h.lines[len(h.lines)-maxHistory:]
	}
}

// Older steps back from current, returning the line to show
func (h *History) Older(current string) (string, bool) {
	if len(h.lines) == 0 {
		return "", false
	}
	switch {
	case h.cursor == -1:
		h.draft = current
		h.cursor = len(h.lines) - 1
	case h.cursor > 0:
		h.cursor--
	}
	return h.lines[h.cursor], true
}

// Newer steps forward, ending on the draft that was being typed
func (h *History) Newer() (string, bool) {
	if h.cursor == -1 {
		return "", false
	}
	if h.cursor < len(h.lines)-1 {
		h.cursor++
		return h.lines[h.cursor], true
	}
	draft := h.draft
	h.cursor = -1
	h.draft = ""
	return draft, true
}

func (h *History) Len() int {
	return len(h.lines)
}

// Input is the message entry line of the connect command
type Input struct {
	textInput   textinput.Model
	sendingMode SendingMode
	history     *History
	width       int
}

func NewInput(placeholder string, mode SendingMode) *Input {
	ti := textinput.New()
	ti.Placeholder = placeholder
	if placeholder == "" {
		ti.Placeholder = mode.placeholder()
	}
	ti.CharLimit = 256
	ti.Prompt = ""

	return &Input{
		textInput:   ti,
		sendingMode: mode,
		history:     NewHistory(),
	}
}

// SetWidth sizes the input box to the terminal width
func (i *Input) SetWidth(width int) {
	i.width = width
	// border, padding, prompt and the space after it
	i.textInput.Width = max(width-6, 20)
}

func (i *Input) Focus() {
	i.textInput.Focus()
}

func (i *Input) Blur() {
	i.textInput.Blur()
}

func (i *Input) Value() string {
	return i.textInput.Value()
}

func (i *Input) SetValue(value string) {
	i.textInput.SetValue(value)
}

func (i *Input) ToggleSendingMode() {
	if i.sendingMode == SendingModeASCII {
		i.sendingMode = SendingModeHex
	} else {
		i.sendingMode = SendingModeASCII
	}
	i.textInput.Placeholder = i.sendingMode.placeholder()
}

func (i *Input) GetSendingMode() SendingMode {
	return i.sendingMode
}

// Payload encodes the current value for the port. ASCII input gets a
// trailing newline; hex input is parsed with ParseHexInput.
func (i *Input) Payload() ([]byte, error) {
	value := i.textInput.Value()
	if i.sendingMode == SendingModeHex {
		return ParseHexInput(value)
	}
	if value == "" {
		return nil, fmt.Errorf("empty input")
	}
	return []byte(value + "\n"), nil
}

// ParseHexInput converts hex text to bytes. Digits may be grouped with
// spaces and carry 0x prefixes: "48656C6C6F", "48 65 6C" and "0x48 0x65"
// are all accepted.
func ParseHexInput(text string) ([]byte, error) {
	digits := strings.NewReplacer(" ", "", "0x", "", "0X", "").Replace(strings.TrimSpace(text))
	if digits == "" {
		return nil, fmt.Errorf("empty input")
	}
	if len(digits)%2 != 0 {
		return nil, fmt.Errorf("hex string must have even number of digits (got %d)", len(digits))
	}
	data, err := hex.DecodeString(digits)
	if err != nil {
		return nil, fmt.Errorf("invalid hex input: %w", err)
	}
	return data, nil
}

// AddToHistory remembers a sent message
func (i *Input) AddToHistory(command string) {
	i.history.Add(command)
}

// NavigateHistoryUp recalls the previous message
func (i *Input) NavigateHistoryUp() {
	if line, ok := i.history.Older(i.textInput.Value()); ok {
		i.textInput.SetValue(line)
	}
}

// NavigateHistoryDown recalls the next message, or the draft after the last
func (i *Input) NavigateHistoryDown() {
	if line, ok := i.history.Newer(); ok {
		i.textInput.SetValue(line)
	}
}

func (i *Input) Update(msg tea.Msg) (*Input, tea.Cmd) {
	var cmd tea.Cmd
	i.textInput, cmd = i.textInput.Update(msg)
	return i, cmd
}

// ViewWithMode renders the input box. Outside insert mode it shows a hint
// instead of the text field.
func (i *Input) ViewWithMode(isInsertMode bool) string {
	symbol, symbolColor := ">", colors.Green
	if i.sendingMode == SendingModeHex {
		symbol, symbolColor = "#", colors.Yellow
	}
	prompt := lipgloss.NewStyle().Foreground(symbolColor).Bold(true).Render(symbol)

	field := lipgloss.NewStyle().Foreground(colors.Overlay0).Render("Press 'i' to enter insert mode")
	box := styles.InputStyle.Width(max(i.width-4, 10)).AlignHorizontal(lipgloss.Left)
	if isInsertMode {
		field = i.textInput.View()
		box = box.BorderForeground(colors.Green)
	}

	return box.Render(lipgloss.JoinHorizontal(lipgloss.Left, prompt, " ", field))
}
