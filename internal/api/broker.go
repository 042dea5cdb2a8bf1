package api

import "sync"

// firehoseChannel carries every event regardless of vehicle.
const firehoseChannel = "all"

// StreamEvent is one event on the live feed.
type StreamEvent struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

// EventBroker fans compliance events out to stream subscribers. Channels
// are keyed by AUV id, plus the "all" firehose.
type EventBroker interface {
	Subscribe(channel string) chan StreamEvent
	Unsubscribe(channel string, ch chan StreamEvent)
	Publish(channel string, evt StreamEvent)
}

// Broker is the in-process EventBroker used when Redis is not configured.
// Sends never block; a subscriber that falls behind drops events.
type Broker struct {
	mu   sync.Mutex
	subs map[string]map[chan StreamEvent]struct{}
}

func NewBroker() *Broker {
	return &Broker{subs: make(map[string]map[chan StreamEvent]struct{})}
}

func (b *Broker) Subscribe(channel string) chan StreamEvent {
	ch := make(chan StreamEvent, 8)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs[channel] == nil {
		b.subs[channel] = make(map[chan StreamEvent]struct{})
	}
	b.subs[channel][ch] = struct{}{}
	return ch
}

func (b *Broker) Unsubscribe(channel string, ch chan StreamEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if set, ok := b.subs[channel]; ok {
		if _, ok := set[ch]; ok {
			delete(set, ch)
			close(ch)
		}
		if len(set) == 0 {
			delete(b.subs, channel)
		}
	}
}

func (b *Broker) Publish(channel string, evt StreamEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs[channel] {
		select {
		case ch <- evt:
		default:
		}
	}
}
