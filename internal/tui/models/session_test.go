package models

import (
	"errors"
	"testing"
	"time"

	serial "github.com/allbin/async-serial"
	"github.com/allbin/async-serial/internal/tui/components"
	tea "github.com/charmbracelet/bubbletea"
)

func TestInputModeString(t *testing.T) {
	if InputModeNormal.String() != "NORMAL" {
		t.Errorf("Expected NORMAL, got %s", InputModeNormal)
	}
	if InputModeInsert.String() != "INSERT" {
		t.Errorf("Expected INSERT, got %s", InputModeInsert)
	}
}

func TestTakeReceived(t *testing.T) {
	m := NewSessionModel("/dev/ttyS0")
	for _, b := range []byte("abc") {
		m.OnByteReceived(b)
	}

	if got := string(m.TakeReceived()); got != "abc" {
		t.Errorf("Expected abc, got %q", got)
	}
	if got := m.TakeReceived(); len(got) != 0 {
		t.Errorf("Expected nothing after take, got %q", got)
	}
}

func TestNotificationsArePosted(t *testing.T) {
	m := NewSessionModel("/dev/ttyS0")
	var posted []tea.Msg
	m.Attach(func(msg tea.Msg) { posted = append(posted, msg) })

	fault := errors.New("boom")
	m.OnLineStatus(serial.EventCTS | serial.EventBreak)
	m.OnWriteComplete(7)
	m.OnFatalError("write", fault)

	if len(posted) != 3 {
		t.Fatalf("Expected 3 messages, got %d", len(posted))
	}
	if msg, ok := posted[0].(LineStatusMsg); !ok || msg.Events != serial.EventCTS|serial.EventBreak {
		t.Errorf("Expected LineStatusMsg with CTS|BREAK, got %#v", posted[0])
	}
	if msg, ok := posted[1].(WriteCompleteMsg); !ok || msg.Sent != 7 {
		t.Errorf("Expected WriteCompleteMsg{7}, got %#v", posted[1])
	}
	if msg, ok := posted[2].(FaultMsg); !ok || msg.Op != "write" || msg.Err != fault {
		t.Errorf("Expected FaultMsg for write, got %#v", posted[2])
	}
}

func TestNotificationsWithoutProgram(t *testing.T) {
	m := NewSessionModel("/dev/ttyS0")
	m.OnLineStatus(serial.EventDSR)
	m.OnWriteComplete(1)
	m.OnFatalError("read", errors.New("ignored"))

	m.Attach(func(tea.Msg) { t.Error("Expected no messages after detaching") })
	m.Attach(nil)
	m.OnWriteComplete(1)
}

func TestCompleteWriteMarksOldestFirst(t *testing.T) {
	m := NewSessionModel("/dev/ttyS0")
	m.RecordTX([]byte("ab"), nil)
	m.RecordTX([]byte("cd"), nil)
	rejected := m.RecordTX([]byte("x"), serial.ErrBufferOverflow)

	if rejected.Status != components.TXRejected {
		t.Errorf("Expected rejected status, got %v", rejected.Status)
	}

	if !m.CompleteWrite(2) {
		t.Error("Expected first write to complete")
	}
	entries := m.Entries()
	if entries[0].Status != components.TXSent || entries[1].Status != components.TXStaged {
		t.Errorf("Expected sent/staged, got %v/%v", entries[0].Status, entries[1].Status)
	}

	if !m.CompleteWrite(2) {
		t.Error("Expected second write to complete")
	}
	if m.Entries()[1].Status != components.TXSent {
		t.Errorf("Expected second entry sent, got %v", m.Entries()[1].Status)
	}
	if m.Entries()[2].Status != components.TXRejected {
		t.Errorf("Expected rejected entry untouched, got %v", m.Entries()[2].Status)
	}
	if m.CompleteWrite(5) {
		t.Error("Expected nothing left to complete")
	}
}

func TestCompleteWriteCoalescedCycle(t *testing.T) {
	m := NewSessionModel("/dev/ttyS0")
	m.RecordTX([]byte("one"), nil)
	m.RecordTX([]byte("two"), nil)

	// Both messages went out in one write cycle
	if !m.CompleteWrite(6) {
		t.Error("Expected entries to change")
	}
	for i, e := range m.Entries() {
		if e.Status != components.TXSent {
			t.Errorf("Entry %d: expected sent, got %v", i, e.Status)
		}
	}
}

func TestAddEntryDropsOldest(t *testing.T) {
	m := NewSessionModel("/dev/ttyS0")
	m.RecordTX([]byte("old"), nil)
	for i := 0; i < maxEntries; i++ {
		m.AddEntry(components.Entry{Kind: components.EntryRX, Data: []byte{byte(i)}})
	}
	m.RecordTX([]byte("new"), nil)

	if len(m.Entries()) != maxEntries {
		t.Fatalf("Expected %d entries, got %d", maxEntries, len(m.Entries()))
	}
	if !m.CompleteWrite(3) {
		t.Fatal("Expected the newest message to complete")
	}
	last := m.Entries()[maxEntries-1]
	if string(last.Data) != "new" || last.Status != components.TXSent {
		t.Errorf("Expected newest entry sent, got %q %v", last.Data, last.Status)
	}
}

func TestClearData(t *testing.T) {
	m := NewSessionModel("/dev/ttyS0")
	m.RecordTX([]byte("ab"), nil)
	m.ClearData()

	if len(m.Entries()) != 0 {
		t.Errorf("Expected empty log, got %d entries", len(m.Entries()))
	}
	if m.CompleteWrite(2) {
		t.Error("Expected no staged entries after clear")
	}
}

func TestWithoutPort(t *testing.T) {
	m := NewSessionModel("/dev/ttyS0")

	if err := m.Write([]byte("x")); !errors.Is(err, serial.ErrPortClosed) {
		t.Errorf("Expected ErrPortClosed, got %v", err)
	}
	if stats := m.Stats(); stats != (serial.Stats{}) {
		t.Errorf("Expected zero stats, got %+v", stats)
	}
	msg := m.SetBaudRateCmd(115200, time.Second)()
	if changed, ok := msg.(ConfigChangedMsg); !ok || !errors.Is(changed.Err, serial.ErrPortClosed) {
		t.Errorf("Expected ConfigChangedMsg with ErrPortClosed, got %#v", msg)
	}
	if err := m.Close(); err != nil {
		t.Errorf("Expected no error closing unopened session, got %v", err)
	}
}

func TestOpenAfterClose(t *testing.T) {
	m := NewSessionModel("/dev/ttyS0")
	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	err := m.Open(nil, serial.WithPath("/dev/ttyS0"))
	if !errors.Is(err, serial.ErrPortClosed) {
		t.Errorf("Expected ErrPortClosed, got %v", err)
	}
}

func TestOpenCmdReportsFailure(t *testing.T) {
	m := NewSessionModel("/nonexistent/ttyQQ0")
	msg := m.OpenCmd(nil, serial.WithPath("/nonexistent/ttyQQ0"))()

	status, ok := msg.(ConnectionStatusMsg)
	if !ok {
		t.Fatalf("Expected ConnectionStatusMsg, got %#v", msg)
	}
	if status.Connected || status.Error == nil {
		t.Errorf("Expected failed connection, got %+v", status)
	}
}
