package audit

import (
	"context"
	"net/http"

	"github.com/TimurManjosov/triagem/internal/auth"
	"github.com/go-chi/chi/v5/middleware"
)

// EventBuilder provides a fluent API for constructing audit events.
//
// Usage:
//
//	event := audit.NewEventBuilder(ctx).
//		ForResource(audit.ResourceTypeDemanda, id).
//		WithAction(audit.ActionCreated).
//		WithAfterState(audit.StateOf(d)).
//		Build()
//
//	service.Log(event)
type EventBuilder struct {
	event AuditEvent
}

type sourceKey struct{}

// WithSource stores the client address and user agent of r in its context
// so services deeper in the call chain can attribute events.
func WithSource(r *http.Request) *http.Request {
	src := Source{IPAddress: auth.GetIPAddress(r), UserAgent: r.UserAgent()}
	return r.WithContext(context.WithValue(r.Context(), sourceKey{}, src))
}

// NewEventBuilder creates a builder initialised from ctx: request ID,
// authenticated caller and request source when present.
func NewEventBuilder(ctx context.Context) *EventBuilder {
	actor := Actor{
		Kind:    ActorKindSystem,
		Display: "system",
	}
	if p, ok := auth.GetPrincipalFromContext(ctx); ok {
		actor = Actor{Kind: ActorKindAPIKey, Display: p.Name}
	}
	src, _ := ctx.Value(sourceKey{}).(Source)

	return &EventBuilder{
		event: AuditEvent{
			RequestID: middleware.GetReqID(ctx),
			Actor:     actor,
			Source:    src,
			Status:    StatusSuccess,
		},
	}
}

// ForResource sets the resource type and ID for the event.
func (b *EventBuilder) ForResource(resourceType, resourceID string) *EventBuilder {
	b.event.ResourceType = resourceType
	b.event.ResourceID = resourceID
	return b
}

// WithAction sets the action for the event.
func (b *EventBuilder) WithAction(action string) *EventBuilder {
	b.event.Action = action
	return b
}

// WithBeforeState sets the before state for the event.
func (b *EventBuilder) WithBeforeState(state map[string]any) *EventBuilder {
	b.event.BeforeState = state
	return b
}

// WithAfterState sets the after state for the event.
func (b *EventBuilder) WithAfterState(state map[string]any) *EventBuilder {
	b.event.AfterState = state
	return b
}

// WithChanges sets the changes for the event.
func (b *EventBuilder) WithChanges(changes map[string]any) *EventBuilder {
	b.event.Changes = changes
	return b
}

// Failure marks the event as failed and sets an error message.
func (b *EventBuilder) Failure(errorMsg string) *EventBuilder {
	b.event.Status = StatusFailure
	if errorMsg != "" {
		b.event.ErrorMessage = &errorMsg
	}
	return b
}

// Build returns the constructed AuditEvent.
func (b *EventBuilder) Build() AuditEvent {
	return b.event
}
