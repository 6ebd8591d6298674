package components

import (
	"fmt"
	"strings"
	"time"

	serial "github.com/allbin/async-serial"
	"github.com/allbin/async-serial/internal/tui/colors"
	"github.com/allbin/async-serial/internal/tui/styles"
)

// EntryKind is what a session log entry records
type EntryKind int

const (
	EntryRX EntryKind = iota
	EntryTX
	EntryLineStatus
	EntryError
)

// TXStatus tracks an outbound message from Write to write completion
type TXStatus int

const (
	TXStaged TXStatus = iota
	TXSent
	TXRejected
)

// Entry is one line of the session log
type Entry struct {
	Timestamp time.Time
	Kind      EntryKind
	Data      []byte
	Status    TXStatus
	Events    serial.EventMask
	Op        string
	Err       error
}

type DisplayMode struct {
	ShowHex        bool
	ShowASCII      bool
	ShowTimestamps bool
}

type DataFormatter struct {
	mode DisplayMode
}

func NewDataFormatter(showHex, showASCII bool) *DataFormatter {
	return &DataFormatter{
		mode: DisplayMode{
			ShowHex:        showHex,
			ShowASCII:      showASCII,
			ShowTimestamps: true,
		},
	}
}

func (df *DataFormatter) SetDisplayMode(mode DisplayMode) {
	df.mode = mode
}

func (df *DataFormatter) GetDisplayMode() DisplayMode {
	return df.mode
}

func (df *DataFormatter) FormatEntry(e Entry) string {
	var indicator, body string
	switch e.Kind {
	case EntryTX:
		var statusText string
		switch e.Status {
		case TXStaged:
			statusText = "TX ○"
		case TXSent:
			statusText = "TX ✓"
		case TXRejected:
			statusText = "TX ✗"
		}
		color := colors.Sent
		if e.Status == TXRejected {
			color = colors.Fault
		}
		indicator = styles.IndicatorStyle(color).Render("↗ " + statusText)
		body = df.formatData(e.Data)
	case EntryLineStatus:
		indicator = styles.IndicatorStyle(colors.LineStatus).Render("⚑ LINE")
		body = e.Events.String()
	case EntryError:
		indicator = styles.IndicatorStyle(colors.Fault).Render("✗ ERR")
		body = fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		indicator = styles.IndicatorStyle(colors.Received).Render("↙ RX")
		body = df.formatData(e.Data)
	}

	if !df.mode.ShowTimestamps {
		return fmt.Sprintf("%s: %s", indicator, body)
	}
	timestamp := styles.TimestampStyle.Render(fmt.Sprintf("[%s]", e.Timestamp.Format("15:04:05.000")))
	return fmt.Sprintf("%s %s: %s", timestamp, indicator, body)
}

func (df *DataFormatter) formatData(data []byte) string {
	var parts []string
	if df.mode.ShowHex {
		parts = append(parts, "HEX: "+HexString(data))
	}
	if df.mode.ShowASCII {
		parts = append(parts, "ASCII: "+PrintableString(data))
	}
	// If both are disabled, show raw bytes count
	if len(parts) == 0 {
		parts = append(parts, fmt.Sprintf("BYTES: %d", len(data)))
	}
	return strings.Join(parts, "  ")
}

func (df *DataFormatter) FormatEntries(entries []Entry) []string {
	formatted := make([]string, len(entries))
	for i, e := range entries {
		formatted[i] = df.FormatEntry(e)
	}
	return formatted
}

func (df *DataFormatter) ToggleHex() {
	df.mode.ShowHex = !df.mode.ShowHex
}

func (df *DataFormatter) ToggleASCII() {
	df.mode.ShowASCII = !df.mode.ShowASCII
}

func (df *DataFormatter) ToggleTimestamps() {
	df.mode.ShowTimestamps = !df.mode.ShowTimestamps
}

// HexString renders data as space separated upper case hex pairs
func HexString(data []byte) string {
	return fmt.Sprintf("% X", data)
}

// PrintableString replaces everything outside printable ASCII with dots so
// received bytes can never inject terminal control sequences
func PrintableString(data []byte) string {
	var sb strings.Builder
	sb.Grow(len(data))
	for _, b := range data {
		if b >= 32 && b <= 126 {
			sb.WriteByte(b)
		} else {
			sb.WriteByte('.')
		}
	}
	return sb.String()
}
