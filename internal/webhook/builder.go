package webhook

import (
	"context"
	"time"

	"github.com/TimurManjosov/triagem/internal/auth"
	"github.com/go-chi/chi/v5/middleware"
)

// EventBuilder provides a fluent API for constructing webhook events.
//
// Usage:
//
//	event := webhook.NewEventBuilder(ctx).
//		ForResource("demanda", id).
//		WithStates(before, after).
//		Build()
//
//	dispatcher.Dispatch(event)
type EventBuilder struct {
	event Event
}

// NewEventBuilder creates a new builder initialized from the request context.
func NewEventBuilder(ctx context.Context) *EventBuilder {
	metadata := Metadata{RequestID: middleware.GetReqID(ctx)}
	if p, ok := auth.GetPrincipalFromContext(ctx); ok {
		metadata.Actor = p.Name
	}
	return &EventBuilder{
		event: Event{
			Timestamp: time.Now().UTC(),
			Metadata:  metadata,
		},
	}
}

// ForResource sets the resource the event is about.
func (b *EventBuilder) ForResource(resourceType, id string) *EventBuilder {
	b.event.Resource = Resource{Type: resourceType, ID: id}
	return b
}

// WithStates sets the before and after states for the event.
// The event type is derived from the resource type when not set:
//   - before=nil, after!=nil → <resource>.created
//   - both non-nil → <resource>.updated
func (b *EventBuilder) WithStates(before, after map[string]any) *EventBuilder {
	b.event.Data.Before = before
	b.event.Data.After = after

	if b.event.Type == "" && b.event.Resource.Type != "" {
		switch {
		case before == nil && after != nil:
			b.event.Type = b.event.Resource.Type + ".created"
		case before != nil && after != nil:
			b.event.Type = b.event.Resource.Type + ".updated"
		}
	}
	return b
}

// WithChanges sets the changes for the event.
func (b *EventBuilder) WithChanges(changes map[string]any) *EventBuilder {
	b.event.Data.Changes = changes
	return b
}

// WithType sets the event type explicitly.
func (b *EventBuilder) WithType(eventType string) *EventBuilder {
	b.event.Type = eventType
	return b
}

// Build returns the constructed Event.
func (b *EventBuilder) Build() Event {
	return b.event
}
