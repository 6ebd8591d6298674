package components

import (
	"strings"
	"testing"

	serial "github.com/allbin/async-serial"
)

func TestStatusBarDetails(t *testing.T) {
	sb := NewStatusBar("/dev/ttyS1")
	if got := sb.Details(); got != "⚡ serial" {
		t.Errorf("Expected placeholder without connection info, got %q", got)
	}

	sb.SetConnectionInfo(&ConnectionInfo{
		Frame:     serial.Frame{BaudRate: 9600, DataBits: 8, Parity: serial.ParityNone, StopBits: serial.StopBitsOne},
		EventMask: serial.EventRxChar,
	})
	sb.UpdateStats(serial.Stats{BytesSent: 3, BytesReceived: 12})

	got := sb.Details()
	if !strings.Contains(got, "9600 8N1") || !strings.Contains(got, "↗3 ↙12") {
		t.Errorf("Expected frame and counters, got %q", got)
	}
	if strings.Contains(got, "⚑") {
		t.Errorf("Expected no line status without line events, got %q", got)
	}

	sb.SetConnectionInfo(&ConnectionInfo{EventMask: serial.EventRxChar | serial.EventCTS})
	sb.UpdateLineStatus(serial.EventCTS)
	if got := sb.Details(); !strings.Contains(got, "⚑ CTS") {
		t.Errorf("Expected last line status, got %q", got)
	}
}

func TestComprehensiveStatusBar(t *testing.T) {
	sb := NewStatusBar("/dev/ttyUSB0")
	sb.SetWidth(120)
	sb.SetConnected()

	got := sb.ComprehensiveStatusBar("INSERT", "HEX", "12:00:00")
	for _, want := range []string{"INSERT", "/dev/ttyUSB0", "[HEX] Tab to toggle", "12:00:00"} {
		if !strings.Contains(got, want) {
			t.Errorf("Expected %q in status bar", want)
		}
	}

	sb.SetDisconnected(serial.ErrDeviceNotFound)
	if got := sb.ComprehensiveStatusBar("NORMAL", "", ""); !strings.Contains(got, serial.ErrDeviceNotFound.Error()) {
		t.Errorf("Expected error in status bar, got %q", got)
	}
}

func TestPortRowData(t *testing.T) {
	row := portRowData(PortRow{
		Info: serial.PortInfo{
			Path:        "/dev/ttyUSB0",
			Description: "USB Serial Port",
			IsUSB:       true,
			VendorID:    "0403",
			ProductID:   "6001",
			Product:     "FT232R",
		},
		Number: 0,
	})

	if row[columnKeyNumber] != "0" {
		t.Errorf("Expected number 0, got %v", row[columnKeyNumber])
	}
	if row[columnKeyUSB] != "0403:6001" {
		t.Errorf("Expected 0403:6001, got %v", row[columnKeyUSB])
	}

	row = portRowData(PortRow{Info: serial.PortInfo{Path: "/dev/ttyS0"}, Number: -1})
	if row[columnKeyNumber] != "-" || row[columnKeyUSB] != "" {
		t.Errorf("Expected no number and no USB ids, got %v", row)
	}
}

func TestPortTableView(t *testing.T) {
	view := NewPortTable([]PortRow{
		{Info: serial.PortInfo{Path: "/dev/ttyS0", Description: "Standard Serial Port"}, Number: 0},
	}).View()

	if !strings.Contains(view, "/dev/ttyS0") {
		t.Errorf("Expected port in table, got %q", view)
	}
}
