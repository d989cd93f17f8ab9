// Package events carries change notifications from the service to whoever
// renders or forwards state. An event names what changed, never the new
// state: subscribers re-fetch.
package events

import (
	"sync"
	"time"
)

type Type string

const (
	BinChanged             Type = "bin.changed"
	PickupRequestCreated   Type = "pickup_request.created"
	PickupRequestCompleted Type = "pickup_request.completed"
	WasteEntryRecorded     Type = "waste_entry.recorded"
	ActivityLogCreated     Type = "activity_log.created"
)

// Entity names used in Event.Entity.
const (
	EntityBin           = "bin"
	EntityPickupRequest = "pickup_request"
	EntityWasteEntry    = "waste_entry"
	EntityActivityLog   = "activity_log"
)

type Event struct {
	Type       Type      `json:"type"`
	Entity     string    `json:"entity"`
	EntityID   string    `json:"entity_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

type Handler func(Event)

// Bus fans events out to subscribers synchronously, in subscription order.
// Handlers must not block; anything slow belongs on the handler's own
// goroutine or channel.
type Bus struct {
	mu       sync.RWMutex
	nextID   int
	handlers map[int]Handler
	order    []int
}

func NewBus() *Bus {
	return &Bus{handlers: make(map[int]Handler)}
}

// Subscribe registers h and returns a function that removes it.
func (b *Bus) Subscribe(h Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	b.handlers[id] = h
	b.order = append(b.order, id)

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.handlers, id)
			for i, v := range b.order {
				if v == id {
					b.order = append(b.order[:i:i], b.order[i+1:]...)
					break
				}
			}
		})
	}
}

func (b *Bus) Publish(evs ...Event) {
	if b == nil {
		return
	}

	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.order))
	for _, id := range b.order {
		handlers = append(handlers, b.handlers[id])
	}
	b.mu.RUnlock()

	for _, ev := range evs {
		for _, h := range handlers {
			h(ev)
		}
	}
}
