package api

import (
	"sync"
)

type SSEEvent struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

// EventBroker fans tour events out to stream listeners. Keys are tour IDs or
// tenantKey(tenant) for the tenant-wide feed.
type EventBroker interface {
	Subscribe(key string) chan SSEEvent
	Unsubscribe(key string, ch chan SSEEvent)
	Publish(key string, evt SSEEvent)
}

func tenantKey(tenant string) string { return "tenant:" + tenant }

type Broker struct {
	mu   sync.Mutex
	subs map[string]map[chan SSEEvent]struct{} // key -> set of channels
}

func NewBroker() *Broker {
	return &Broker{subs: map[string]map[chan SSEEvent]struct{}{}}
}

func (b *Broker) Subscribe(key string) chan SSEEvent {
	ch := make(chan SSEEvent, 8)
	b.mu.Lock()
	if b.subs[key] == nil {
		b.subs[key] = map[chan SSEEvent]struct{}{}
	}
	b.subs[key][ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *Broker) Unsubscribe(key string, ch chan SSEEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	m := b.subs[key]
	if _, ok := m[ch]; !ok {
		return
	}
	delete(m, ch)
	if len(m) == 0 {
		delete(b.subs, key)
	}
	close(ch)
}

// Publish never blocks; slow listeners miss events.
func (b *Broker) Publish(key string, evt SSEEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs[key] {
		select {
		case ch <- evt:
		default:
		}
	}
}
