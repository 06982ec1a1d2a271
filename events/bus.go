package events

import (
	"sync"
	"time"
)

// Event announces that one persisted collection changed. It carries no
// payload on purpose: consumers must re-read the collection, never trust the
// event itself.
type Event struct {
	Collection string    `json:"collection"`
	At         time.Time `json:"at"`
}

// Bus is an in-process broadcast of collection-change events. Delivery is
// best effort with no ordering guarantee: a subscriber whose buffer is full
// misses the event and picks the change up on its next re-read.
type Bus struct {
	mu   sync.Mutex
	subs map[int]chan Event
	next int
}

func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan Event)}
}

// Subscribe returns a receive channel and a cancel func. The buffer absorbs
// bursts; once full, further events are dropped for this subscriber.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Event, buffer)

	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = ch
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

// Publish never blocks the writer.
func (b *Bus) Publish(collection string) {
	evt := Event{Collection: collection, At: time.Now().UTC()}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- evt:
		default:
		}
	}
}
