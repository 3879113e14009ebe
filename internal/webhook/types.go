package webhook

import (
	"time"
)

// Event types that can trigger webhooks
const (
	EventDemandaCreated = "demanda.created"
	EventDemandaUpdated = "demanda.updated"
	EventAnaliseCreated = "analise.created"
)

// Delivery headers
const (
	HeaderSignature = "X-Triagem-Signature"
	HeaderEvent     = "X-Triagem-Event"
	HeaderDelivery  = "X-Triagem-Delivery"
)

// Event is the JSON body POSTed to every configured endpoint.
type Event struct {
	Type      string    `json:"event"`
	Timestamp time.Time `json:"timestamp"`
	Resource  Resource  `json:"resource"`
	Data      EventData `json:"data"`
	Metadata  Metadata  `json:"metadata"`
}

// Resource identifies the resource that triggered the event
type Resource struct {
	Type string `json:"type"` // demanda, analise
	ID   string `json:"id"`
}

// EventData contains the before/after state and changes
type EventData struct {
	Before  map[string]any `json:"before,omitempty"`
	After   map[string]any `json:"after,omitempty"`
	Changes map[string]any `json:"changes,omitempty"`
}

// Metadata contains additional context about the event
type Metadata struct {
	Actor     string `json:"actor,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

// Endpoint is one webhook receiver.
type Endpoint struct {
	URL        string
	Secret     string
	MaxRetries int
	Timeout    time.Duration
}
