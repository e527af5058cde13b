package testutil

import (
	"context"
	"sync"

	"github.com/wispbill/wispbill/internal/publisher"
)

// PublishedEvent is one event captured by InMemoryEventPublisher
type PublishedEvent struct {
	Name       string
	CustomerID string
	Payload    interface{}
}

// InMemoryEventPublisher records published events instead of sending them
type InMemoryEventPublisher struct {
	mu     sync.RWMutex
	events []PublishedEvent
}

var _ publisher.EventPublisher = (*InMemoryEventPublisher)(nil)

func NewInMemoryEventPublisher() *InMemoryEventPublisher {
	return &InMemoryEventPublisher{}
}

func (p *InMemoryEventPublisher) Publish(_ context.Context, eventName, customerID string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, PublishedEvent{Name: eventName, CustomerID: customerID, Payload: payload})
	return nil
}

func (p *InMemoryEventPublisher) Events() []PublishedEvent {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]PublishedEvent(nil), p.events...)
}

// Names returns the names of the published events in order
func (p *InMemoryEventPublisher) Names() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	names := make([]string, 0, len(p.events))
	for _, e := range p.events {
		names = append(names, e.Name)
	}
	return names
}

func (p *InMemoryEventPublisher) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = nil
}
