package events

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Kind identifies a battery/power event.
type Kind string

const (
	PowerConnected    Kind = "power_connected"
	PowerDisconnected Kind = "power_disconnected"
	BatteryLow        Kind = "battery_low"
	AlarmTick         Kind = "alarm_tick"
)

// Event is a single dispatch trigger. It carries no payload; handlers query
// live state themselves so decisions are never based on stale data.
type Event struct {
	Kind Kind
	At   time.Time
}

type Handler func(Event)

type subscription struct {
	kinds   map[Kind]bool
	handler Handler
}

// Broker is an observer registry for battery/power events. Publishing is
// non-blocking; delivery happens on a single dispatch goroutine, so handlers
// are invoked sequentially and never reentrantly.
type Broker struct {
	mu   sync.Mutex
	subs map[string]*subscription
	ch   chan Event
}

func NewBroker() *Broker {
	return &Broker{
		subs: make(map[string]*subscription),
		ch:   make(chan Event, 16),
	}
}

// Subscribe registers a handler for the given event kinds and returns a
// handle for Unsubscribe.
func (b *Broker) Subscribe(kinds []Kind, handler Handler) string {
	set := make(map[Kind]bool, len(kinds))
	for _, k := range kinds {
		set[k] = true
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	id := uuid.New().String()
	b.subs[id] = &subscription{kinds: set, handler: handler}
	return id
}

// Unsubscribe removes a subscription. Unknown handles are ignored.
func (b *Broker) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, id)
}

// Publish queues an event for delivery. If the queue is full the event is
// dropped with a warning rather than blocking the producer.
func (b *Broker) Publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	select {
	case b.ch <- ev:
	default:
		slog.Warn("Event queue full, dropping event", "kind", ev.Kind)
	}
}

// Run drains the event queue until ctx is cancelled. It is the single
// delivery loop; all handlers run here.
func (b *Broker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-b.ch:
			b.dispatch(ev)
		}
	}
}

func (b *Broker) dispatch(ev Event) {
	b.mu.Lock()
	handlers := make([]Handler, 0, len(b.subs))
	for _, sub := range b.subs {
		if sub.kinds[ev.Kind] {
			handlers = append(handlers, sub.handler)
		}
	}
	b.mu.Unlock()

	for _, h := range handlers {
		h(ev)
	}
}
