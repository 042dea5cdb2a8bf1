package api

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/redis/go-redis/v9"
)

// RedisBroker is the EventBroker used when REDIS_URL is set. Events flow
// through Redis pub/sub so every replica of the service sees the same
// stream regardless of which one evaluated the sample.
type RedisBroker struct {
	client *redis.Client

	mu   sync.Mutex
	subs map[chan StreamEvent]*redis.PubSub
}

func NewRedisBroker(redisURL string) (*RedisBroker, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opt)
	if err := client.Ping(context.Background()).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return &RedisBroker{client: client}, nil
}

func chanName(channel string) string { return "events:" + channel }

// Subscribe opens a Redis subscription and pumps decoded events into the
// returned channel. The pump goroutine owns the channel and closes it when
// the subscription shuts down, so Unsubscribe only has to close the
// subscription itself.
func (b *RedisBroker) Subscribe(channel string) chan StreamEvent {
	ch := make(chan StreamEvent, 8)
	ps := b.client.Subscribe(context.Background(), chanName(channel))
	// Wait for the subscription to be established before returning.
	_, _ = ps.Receive(context.Background())

	b.mu.Lock()
	if b.subs == nil {
		b.subs = make(map[chan StreamEvent]*redis.PubSub)
	}
	b.subs[ch] = ps
	b.mu.Unlock()

	go func() {
		defer close(ch)
		for msg := range ps.Channel() {
			var evt StreamEvent
			if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
				continue
			}
			select {
			case ch <- evt:
			default:
			}
		}
	}()
	return ch
}

func (b *RedisBroker) Unsubscribe(channel string, ch chan StreamEvent) {
	b.mu.Lock()
	ps := b.subs[ch]
	delete(b.subs, ch)
	b.mu.Unlock()
	if ps != nil {
		_ = ps.Close()
	}
}

func (b *RedisBroker) Publish(channel string, evt StreamEvent) {
	payload, err := json.Marshal(evt)
	if err != nil {
		return
	}
	_ = b.client.Publish(context.Background(), chanName(channel), payload).Err()
}

func (b *RedisBroker) Close() error { return b.client.Close() }
