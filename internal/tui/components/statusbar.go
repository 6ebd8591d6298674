package components

import (
	"fmt"

	serial "github.com/allbin/async-serial"
	"github.com/allbin/async-serial/internal/tui/colors"
	"github.com/charmbracelet/lipgloss"
)

type ConnectionInfo struct {
	Frame     serial.Frame
	EventMask serial.EventMask
	Stats     serial.Stats
	// LastLine holds the most recent line status notification
	LastLine serial.EventMask
}

type connectionState int

const (
	stateConnecting connectionState = iota
	stateConnected
	stateDisconnected
)

type StatusBar struct {
	portPath       string
	state          connectionState
	err            error
	width          int
	connectionInfo *ConnectionInfo
}

func NewStatusBar(portPath string) *StatusBar {
	return &StatusBar{portPath: portPath}
}

func (sb *StatusBar) SetWidth(width int) {
	sb.width = width
}

func (sb *StatusBar) SetConnectionInfo(info *ConnectionInfo) {
	sb.connectionInfo = info
}

func (sb *StatusBar) UpdateStats(stats serial.Stats) {
	if sb.connectionInfo != nil {
		sb.connectionInfo.Stats = stats
	}
}

func (sb *StatusBar) UpdateLineStatus(events serial.EventMask) {
	if sb.connectionInfo != nil {
		sb.connectionInfo.LastLine = events
	}
}

func (sb *StatusBar) SetConnecting() {
	sb.state = stateConnecting
	sb.err = nil
}

func (sb *StatusBar) SetConnected() {
	sb.state = stateConnected
	sb.err = nil
}

func (sb *StatusBar) SetDisconnected(err error) {
	sb.state = stateDisconnected
	sb.err = err
}

// Details returns the frame, traffic and line summary shown on the right
func (sb *StatusBar) Details() string {
	if sb.connectionInfo == nil {
		return "⚡ serial"
	}
	info := sb.connectionInfo
	details := fmt.Sprintf("⚡ %s  ↗%d ↙%d", info.Frame, info.Stats.BytesSent, info.Stats.BytesReceived)
	if info.EventMask.LineStatus() != 0 {
		details += "  ⚑ " + info.LastLine.String()
	}
	return details
}

// ComprehensiveStatusBar renders a comprehensive status bar with all connection info
func (sb *StatusBar) ComprehensiveStatusBar(inputMode, sendingMode string, timestamp string) string {
	terminalWidth := sb.width
	if terminalWidth <= 0 {
		terminalWidth = 80
	}

	// Section 1: Mode indicator (like NORMAL in nvim)
	modeBackground := colors.Blue
	switch inputMode {
	case "INSERT":
		modeBackground = colors.Green
	case "LISTEN":
		modeBackground = colors.Mauve
	}
	mode := lipgloss.NewStyle().
		Foreground(colors.Base).
		Background(modeBackground).
		Bold(true).
		Padding(0, 1).
		Render(inputMode)

	// Section 2: Port path
	port := lipgloss.NewStyle().
		Foreground(colors.Mauve).
		Bold(true).
		Padding(0, 1).
		Render(sb.portPath)

	// Section 3: Single character connection indicator
	var connStyle lipgloss.Style
	var connIndicator string
	switch {
	case sb.err != nil:
		connStyle = lipgloss.NewStyle().Foreground(colors.Red)
		connIndicator = "✗ " + sb.err.Error()
	case sb.state == stateConnected:
		connStyle = lipgloss.NewStyle().Foreground(colors.Green)
		connIndicator = "●"
	case sb.state == stateConnecting:
		connStyle = lipgloss.NewStyle().Foreground(colors.Yellow)
		connIndicator = "○"
	default:
		connStyle = lipgloss.NewStyle().Foreground(colors.Red)
		connIndicator = "○"
	}
	connectionIndicator := connStyle.Render(connIndicator)

	// Section 4: Connection info
	connectionDetails := lipgloss.NewStyle().
		Foreground(colors.Subtext0).
		Padding(0, 1).
		Render(sb.Details())

	// Section 5: Timestamp
	clock := lipgloss.NewStyle().
		Foreground(colors.Subtext1).
		Padding(0, 1).
		Render(timestamp)

	divider := lipgloss.NewStyle().
		Foreground(colors.Surface2).
		Padding(0, 1).
		Render("│")

	// Sending mode indicator with Tab hint, only in INSERT mode
	leftParts := []string{mode, port, connectionIndicator}
	if inputMode == "INSERT" && sendingMode != "" {
		leftParts = append(leftParts, lipgloss.NewStyle().
			Foreground(colors.Peach).
			Bold(true).
			Padding(0, 1).
			Render(fmt.Sprintf("[%s] Tab to toggle", sendingMode)))
	}
	leftParts = append(leftParts, divider)
	leftSide := lipgloss.JoinHorizontal(lipgloss.Left, leftParts...)
	rightSide := lipgloss.JoinHorizontal(lipgloss.Left, connectionDetails, divider, clock)

	spacerWidth := terminalWidth - lipgloss.Width(leftSide) - lipgloss.Width(rightSide)
	if spacerWidth < 1 {
		spacerWidth = 1
	}
	spacer := lipgloss.NewStyle().Width(spacerWidth).Render("")

	statusBarStyle := lipgloss.NewStyle().
		Foreground(colors.Text).
		Background(colors.Surface0).
		Width(terminalWidth)

	content := lipgloss.JoinHorizontal(lipgloss.Left, leftSide, spacer, rightSide)
	return statusBarStyle.Render(content)
}
