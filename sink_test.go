package serial

import (
	"errors"
	"testing"
	"time"
)

func TestSinkFuncsSkipsNilFields(t *testing.T) {
	var got []byte
	sink := SinkFuncs{Byte: func(b byte) { got = append(got, b) }}

	sink.OnByteReceived('a')
	sink.OnLineStatus(EventCTS)
	sink.OnWriteComplete(3)
	sink.OnFatalError("write", errors.New("boom"))

	if string(got) != "a" {
		t.Errorf("Expected a, got %q", got)
	}
}

func TestEventStreamDeliversInOrder(t *testing.T) {
	stream := NewEventStream(4)
	boom := errors.New("boom")

	stream.OnByteReceived('z')
	stream.OnLineStatus(EventDSR)
	stream.OnWriteComplete(2)
	stream.OnFatalError("read", boom)

	want := []Notification{
		{Kind: NotifyByte, Byte: 'z'},
		{Kind: NotifyLineStatus, Events: EventDSR},
		{Kind: NotifyWriteComplete, Sent: 2},
		{Kind: NotifyError, Op: "read", Err: boom},
	}
	for i, w := range want {
		got := <-stream.C()
		if got != w {
			t.Errorf("Notification %d: expected %+v, got %+v", i, w, got)
		}
	}
}

func TestEventStreamStopUnblocksSender(t *testing.T) {
	stream := NewEventStream(0)

	sent := make(chan struct{})
	go func() {
		stream.OnByteReceived('x')
		close(sent)
	}()

	select {
	case <-sent:
		t.Fatal("Send should block until received")
	case <-time.After(10 * time.Millisecond):
	}

	stream.Stop()
	select {
	case <-sent:
	case <-time.After(time.Second):
		t.Fatal("Stop did not release the sender")
	}

	stream.Stop()
	stream.OnWriteComplete(1)
}

func TestEventStreamAsPortSink(t *testing.T) {
	dev := newFakeDevice()
	dev.reply = func(p []byte) []byte { return []byte("ok") }
	stream := NewEventStream(8)
	defer stream.Stop()
	port := openFake(t, dev, stream)

	if err := port.Write([]byte("?")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	var received []byte
	completed := false
	timeout := time.After(time.Second)
	for len(received) < 2 || !completed {
		select {
		case n := <-stream.C():
			switch n.Kind {
			case NotifyByte:
				received = append(received, n.Byte)
			case NotifyWriteComplete:
				completed = n.Sent == 1
			case NotifyError:
				t.Fatalf("Unexpected error: %s: %v", n.Op, n.Err)
			}
		case <-timeout:
			t.Fatalf("Timed out, received %q completed %v", received, completed)
		}
	}
	if string(received) != "ok" {
		t.Errorf("Expected ok, got %q", received)
	}
}
