package outbox

import (
	"context"
	"fmt"

	"ratehub/internal/storage"
)

// Publisher delivers a claimed outbox record over some transport.
type Publisher interface {
	// EventType is the record type this publisher handles.
	EventType() string
	// Publish attempts delivery once; an error triggers retry bookkeeping.
	Publish(ctx context.Context, rec storage.OutboxRecord) error
}

// Registry maps event-type tags to publisher implementations. It is built
// once at startup and read-only afterwards.
type Registry struct {
	publishers map[string]Publisher
}

// NewRegistry indexes publishers by event type. Registering two publishers
// for the same type is a configuration error.
func NewRegistry(publishers ...Publisher) (*Registry, error) {
	index := make(map[string]Publisher, len(publishers))
	for _, p := range publishers {
		if _, exists := index[p.EventType()]; exists {
			return nil, fmt.Errorf("outbox: duplicate publisher for event type %q", p.EventType())
		}
		index[p.EventType()] = p
	}
	return &Registry{publishers: index}, nil
}

// Get resolves the publisher for an event type.
func (r *Registry) Get(eventType string) (Publisher, bool) {
	p, ok := r.publishers[eventType]
	return p, ok
}

// Require fails when any of the given event types has no registered
// publisher. Called at startup so a misconfigured deployment dies before
// claiming work.
func (r *Registry) Require(eventTypes ...string) error {
	for _, t := range eventTypes {
		if _, ok := r.publishers[t]; !ok {
			return fmt.Errorf("outbox: no publisher registered for event type %q", t)
		}
	}
	return nil
}
