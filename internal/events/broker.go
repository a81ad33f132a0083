package events

import (
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/dgnsrekt/perf_console/internal/refresh"
)

const subscriberBufSize = 256

// Message is one refresh lifecycle event as streamed to clients.
type Message struct {
	Kind    string
	Payload string
}

// Broker fans out refresh events to all subscribed stream clients.
type Broker struct {
	mu          sync.RWMutex
	subscribers map[int64]chan Message
	nextID      atomic.Int64
	dropped     atomic.Int64
}

func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[int64]chan Message),
	}
}

// Subscribe registers a new client. The channel is buffered; slow consumers
// have messages dropped.
func (b *Broker) Subscribe() (int64, <-chan Message) {
	id := b.nextID.Add(1)
	ch := make(chan Message, subscriberBufSize)
	b.mu.Lock()
	b.subscribers[id] = ch
	b.mu.Unlock()
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Broker) Unsubscribe(id int64) {
	b.mu.Lock()
	ch, ok := b.subscribers[id]
	if ok {
		delete(b.subscribers, id)
		close(ch)
	}
	b.mu.Unlock()
}

// Publish sends msg to every subscriber without blocking.
func (b *Broker) Publish(msg Message) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subscribers {
		select {
		case ch <- msg:
		default:
			b.dropped.Add(1)
		}
	}
}

// Observe publishes a coordinator event as JSON under its kind.
func (b *Broker) Observe(evt refresh.Event) {
	data, err := json.Marshal(evt)
	if err != nil {
		slog.Warn("encode refresh event", "error", err)
		return
	}
	b.Publish(Message{Kind: string(evt.Kind), Payload: string(data)})
}

func (b *Broker) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Dropped counts messages lost to full subscriber buffers.
func (b *Broker) Dropped() int64 {
	return b.dropped.Load()
}
