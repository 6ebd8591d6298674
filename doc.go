// Package serial provides asynchronous, event-driven access to a serial port.
//
// A Port owns one device at a time. Writes are staged in a bounded buffer
// and sent by a background goroutine, so Write never blocks on the device.
// Everything the device produces is delivered to a NotificationSink: every
// inbound byte, line status changes, write completions and errors.
//
// # Basic Usage
//
// Open the port with a sink and write to it:
//
//	sink := serial.SinkFuncs{
//	    Byte:          func(b byte) { fmt.Printf("%c", b) },
//	    WriteComplete: func(n int) { log.Printf("sent %d bytes", n) },
//	    Error:         func(op string, err error) { log.Printf("%s: %v", op, err) },
//	}
//	port, err := serial.Open(sink, serial.WithPath("/dev/ttyUSB0"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer port.Close()
//
//	err = port.Write([]byte("PING"))
//
// NewEventStream gives a channel-based sink instead of callbacks.
//
// # Configuration Options
//
// Use functional options for custom configuration:
//
//	port, err := serial.Open(sink,
//	    serial.WithPort(3),
//	    serial.WithBaudRate(115200),
//	    serial.WithParity(serial.ParityEven),
//	    serial.WithEventMask(serial.EventRxChar|serial.EventCTS|serial.EventDSR),
//	    serial.WithBufferSize(1024),
//	)
//
// SetConfig changes framing, timeouts and the event mask of an open port
// once staged data has been sent.
//
// # Port Discovery
//
// List available serial ports and get USB device metadata:
//
//	ports, err := serial.ListPorts()
//	for _, portPath := range ports {
//	    info, _ := serial.GetPortInfo(portPath)
//	    fmt.Printf("%s: %s (VID=%s PID=%s)\n", info.Path, info.Description, info.VendorID, info.ProductID)
//	}
//
// # Error Handling
//
// Open returns a *SetupError naming the step that failed. Write returns
// ErrPortClosed, ErrEmptyWrite or ErrBufferOverflow without side effects.
// Failures inside the session are reported through OnFatalError as
// *OpError, or *InternalError when an engine invariant broke; the session
// keeps running after both. Use errors.Is for error class checking:
//
//	if errors.Is(err, serial.ErrSetup) {
//	    // the device could not be opened or configured
//	}
//
// # Default Configuration
//
//   - Port: 8 (/dev/ttyS8)
//   - BaudRate: 9600
//   - DataBits: 8
//   - StopBits: 1
//   - Parity: None
//   - EventMask: EventRxChar
//   - BufferSize: 4096
//   - FlushSingleByte: true
package serial
