package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"
)

func TestDispatcherForwardsToSink(t *testing.T) {
	sink := NewChannelSink(8)
	d := NewDispatcher(Config{Enabled: true, BufferSize: 8}, sink)
	defer d.Close()

	d.Emit(context.Background(), Event{
		Type:    EventLoginFailed,
		UserID:  "u1",
		IP:      "1.2.3.4",
		Metadata: LoginFailedMeta{
			Identifier: "alice@example.com",
			Reason:     "password_mismatch",
		},
	})

	select {
	case got := <-sink.Events():
		if got.Type != EventLoginFailed || got.UserID != "u1" {
			t.Fatalf("unexpected event: %+v", got)
		}
		meta, ok := got.Metadata.(LoginFailedMeta)
		if !ok || meta.Reason != "password_mismatch" {
			t.Fatalf("unexpected metadata: %#v", got.Metadata)
		}
	case <-time.After(time.Second):
		t.Fatal("event never reached sink")
	}
}

func TestDispatcherCloseDrains(t *testing.T) {
	sink := NewChannelSink(16)
	d := NewDispatcher(Config{Enabled: true, BufferSize: 16}, sink)

	for i := 0; i < 10; i++ {
		d.Emit(context.Background(), Event{Type: EventLogout})
	}
	d.Close()

	got := 0
	for {
		select {
		case <-sink.Events():
			got++
		default:
			if got != 10 {
				t.Fatalf("expected 10 drained events, got %d", got)
			}
			return
		}
	}
}

func TestDispatcherDropIfFull(t *testing.T) {
	// Blocking sink: nothing is consumed, so the buffer saturates.
	blocked := make(chan struct{})
	sink := blockingSink{release: blocked}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)
	defer func() { close(blocked); d.Close() }()

	for i := 0; i < 10; i++ {
		d.Emit(context.Background(), Event{Type: EventLoginFailed})
	}

	if d.Dropped() == 0 {
		t.Fatal("expected dropped events under backpressure")
	}
}

type blockingSink struct{ release chan struct{} }

func (s blockingSink) Emit(context.Context, Event) { <-s.release }

func TestNilDispatcherIsSafe(t *testing.T) {
	var d *Dispatcher
	d.Emit(context.Background(), Event{Type: EventLogout})
	d.Close()
	if d.Dropped() != 0 {
		t.Fatal("nil dispatcher reported drops")
	}
}

func TestJSONWriterSinkSerializesMetadata(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)

	sink.Emit(context.Background(), Event{
		Timestamp: time.Unix(1700000000, 0).UTC(),
		Type:      EventLoginRateLimited,
		IP:        "1.2.3.4",
		Metadata: RateLimitedMeta{
			Identifier:        "alice@example.com",
			Attempts:          5,
			RetryAfterSeconds: 1800,
		},
	})

	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("sink output not valid JSON: %v", err)
	}
	meta, ok := decoded["metadata"].(map[string]any)
	if !ok {
		t.Fatalf("metadata not serialized: %s", buf.String())
	}
	if meta["retry_after_seconds"].(float64) != 1800 {
		t.Fatalf("unexpected metadata payload: %v", meta)
	}
}
