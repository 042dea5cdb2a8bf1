package api

import (
	"testing"
	"time"
)

func TestBrokerPublishSubscribe(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe("auv-1")

	b.Publish("auv-1", StreamEvent{Type: "entry"})
	select {
	case evt := <-ch:
		if evt.Type != "entry" {
			t.Fatalf("want entry, got %s", evt.Type)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for event")
	}

	// Other channels do not leak in.
	b.Publish("auv-2", StreamEvent{Type: "exit"})
	select {
	case evt := <-ch:
		t.Fatalf("event crossed channels: %+v", evt)
	case <-time.After(50 * time.Millisecond):
	}

	b.Unsubscribe("auv-1", ch)
	if _, open := <-ch; open {
		t.Fatalf("channel still open after unsubscribe")
	}
	// Repeated unsubscribe is a no-op, not a double close.
	b.Unsubscribe("auv-1", ch)
}

func TestBrokerDropsWhenSubscriberLags(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe("all")
	for i := 0; i < 20; i++ {
		b.Publish("all", StreamEvent{Type: "entry"})
	}
	got := 0
	for {
		select {
		case <-ch:
			got++
		default:
			if got != cap(ch) {
				t.Fatalf("buffered %d events, want %d with the rest dropped", got, cap(ch))
			}
			return
		}
	}
}
