package serial

import "strings"

// EventMask is a set of device events. The bit values follow the classic
// comm-event layout so masks can be exchanged with tools that use it.
type EventMask uint32

const (
	EventRxChar  EventMask = 1 << iota // a byte arrived
	EventRxFlag                        // the configured event character arrived
	EventTxEmpty                       // the output queue drained; never watched, see OnWriteComplete
	EventCTS                           // CTS changed state
	EventDSR                           // DSR changed state
	EventDCD                           // DCD (RLSD) changed state
	EventBreak                         // a break was detected
	EventErr                           // framing, overrun or parity error
	EventRing                          // ring indicator changed state

	eventMaskAll = EventRxChar | EventRxFlag | EventTxEmpty | EventCTS |
		EventDSR | EventDCD | EventBreak | EventErr | EventRing
)

// LineStatusEvents holds every event reported through OnLineStatus
const LineStatusEvents = eventMaskAll &^ (EventRxChar | EventTxEmpty)

var eventNames = []struct {
	bit  EventMask
	name string
}{
	{EventRxChar, "RXCHAR"},
	{EventRxFlag, "RXFLAG"},
	{EventTxEmpty, "TXEMPTY"},
	{EventCTS, "CTS"},
	{EventDSR, "DSR"},
	{EventDCD, "DCD"},
	{EventBreak, "BREAK"},
	{EventErr, "ERR"},
	{EventRing, "RING"},
}

// Has reports whether every bit of other is set in m
func (m EventMask) Has(other EventMask) bool {
	return m&other == other
}

// LineStatus strips the data and transmit bits from m
func (m EventMask) LineStatus() EventMask {
	return m & LineStatusEvents
}

func (m EventMask) String() string {
	if m == 0 {
		return "NONE"
	}
	var parts []string
	for _, e := range eventNames {
		if m&e.bit != 0 {
			parts = append(parts, e.name)
		}
	}
	if rest := m &^ eventMaskAll; rest != 0 {
		parts = append(parts, "UNKNOWN")
	}
	return strings.Join(parts, "|")
}

// ParseEventName maps a case-insensitive event name such as "cts" to its bit
func ParseEventName(name string) (EventMask, bool) {
	upper := strings.ToUpper(strings.TrimSpace(name))
	if upper == "RLSD" {
		return EventDCD, true
	}
	for _, e := range eventNames {
		if e.name == upper {
			return e.bit, true
		}
	}
	return 0, false
}
