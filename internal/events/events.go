// Package events is a tiny in-process pub/sub used to decouple persistence
// from followup work such as queueing notifications. Delivery is
// best-effort and asynchronous; anything that must not be lost belongs in
// the database, not on the bus.
package events

import (
	"sync"

	console "authbase/internal/utils/logger"
)

var log = console.New("EVENTS")

type Kind string

const (
	ObjectCreated    Kind = "object.created"
	ObjectUpdated    Kind = "object.updated"
	AccountConfirmed Kind = "account.confirmed"
	LoginSucceeded   Kind = "login.succeeded"
)

// Event describes something that happened to a record.
type Event struct {
	Kind Kind
	// Type is the registry name of the record's type, e.g. "AppUser".
	Type string
	ID   uint64
}

type Handler func(Event)

type Bus struct {
	mu       sync.RWMutex
	handlers map[Kind][]Handler
}

func NewBus() *Bus {
	return &Bus{handlers: make(map[Kind][]Handler)}
}

func (b *Bus) Subscribe(kind Kind, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[kind] = append(b.handlers[kind], h)
}

// Publish fans the event out to subscribers on a fresh goroutine per
// handler. A nil bus drops events, which keeps the service usable in tests
// that don't care about side effects.
func (b *Bus) Publish(e Event) {
	if b == nil {
		return
	}
	b.mu.RLock()
	handlers := b.handlers[e.Kind]
	b.mu.RUnlock()

	for _, h := range handlers {
		go func(h Handler) {
			defer func() {
				if r := recover(); r != nil {
					log.Warn("event handler panicked on %s: %v", e.Kind, r)
				}
			}()
			h(e)
		}(h)
	}
}
