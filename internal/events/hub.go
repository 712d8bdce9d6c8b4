package events

import (
	"sort"
	"sync"
)

// Hub fans events out to named subscribers. A subscriber whose buffer is
// full loses the new event and its dropped count grows.
type Hub struct {
	mu        sync.Mutex
	subs      map[string]*subscriber
	defaultSz int
}

type subscriber struct {
	ch      chan Event
	dropped uint64
}

// Option configures a Hub.
type Option func(*Hub)

// WithClientBuffer sets the buffer used when Subscribe is given size <= 0.
func WithClientBuffer(size int) Option {
	return func(h *Hub) {
		if size > 0 {
			h.defaultSz = size
		}
	}
}

// NewHub creates a hub with no subscribers.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		subs:      make(map[string]*subscriber),
		defaultSz: 256,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Subscribe registers name and returns its channel and a cancel func that
// unregisters and closes the channel. Subscribing an existing name replaces
// (and closes) the previous subscription.
func (h *Hub) Subscribe(name string, size int) (<-chan Event, func()) {
	if size <= 0 {
		size = h.defaultSz
	}
	sub := &subscriber{ch: make(chan Event, size)}

	h.mu.Lock()
	if old, ok := h.subs[name]; ok {
		close(old.ch)
	}
	h.subs[name] = sub
	h.mu.Unlock()

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if cur, ok := h.subs[name]; ok && cur == sub {
				delete(h.subs, name)
				close(sub.ch)
			}
		})
	}
}

// Emit implements Sink.
func (h *Hub) Emit(e Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, sub := range h.subs {
		select {
		case sub.ch <- e:
		default:
			sub.dropped++
		}
	}
}

// Dropped returns the number of events name has missed.
func (h *Hub) Dropped(name string) uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	if sub, ok := h.subs[name]; ok {
		return sub.dropped
	}
	return 0
}

// Subscribers returns the registered names in sorted order.
func (h *Hub) Subscribers() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	names := make([]string, 0, len(h.subs))
	for n := range h.subs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Close closes every subscriber channel.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for name, sub := range h.subs {
		close(sub.ch)
		delete(h.subs, name)
	}
}
