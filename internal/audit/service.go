package audit

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Action constants for audit logging
const (
	ActionCreated   = "created"
	ActionUpdated   = "updated"
	ActionConfirmed = "confirmed"
	ActionEvaluated = "evaluated"
	ActionGenerated = "generated"
)

// ResourceType constants for audit logging
const (
	ResourceTypeDemanda   = "demanda"
	ResourceTypeAnalise   = "analise"
	ResourceTypeDocumento = "documento"
	ResourceTypeSession   = "intake_session"
)

// Status constants for audit logging
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// ActorKind constants for audit logging
const (
	ActorKindAPIKey = "api_key"
	ActorKindSystem = "system"
)

// Clock interface for testable time operations
type Clock interface {
	Now() time.Time
}

// SystemClock implements Clock using time.Now()
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// IDGenerator interface for testable ID generation
type IDGenerator interface {
	Generate() string
}

// UUIDGenerator implements IDGenerator using UUID v4
type UUIDGenerator struct{}

func (UUIDGenerator) Generate() string { return uuid.NewString() }

// Redactor interface for removing sensitive data
type Redactor interface {
	Redact(data map[string]any) map[string]any
}

// DefaultRedactor replaces the values of sensitive keys, at any depth.
type DefaultRedactor struct {
	sensitiveKeys map[string]struct{}
}

func NewDefaultRedactor() *DefaultRedactor {
	keys := []string{
		"cpf", "documento", "api_key", "apiKey", "authorization",
		"password", "secret", "token",
	}
	r := &DefaultRedactor{sensitiveKeys: make(map[string]struct{}, len(keys))}
	for _, k := range keys {
		r.sensitiveKeys[k] = struct{}{}
	}
	return r
}

func (r *DefaultRedactor) Redact(data map[string]any) map[string]any {
	if data == nil {
		return nil
	}

	redacted := make(map[string]any, len(data))
	for k, v := range data {
		if _, ok := r.sensitiveKeys[k]; ok {
			redacted[k] = "[REDACTED]"
			continue
		}
		switch val := v.(type) {
		case map[string]any:
			redacted[k] = r.Redact(val)
		case []any:
			items := make([]any, len(val))
			for i, item := range val {
				if m, ok := item.(map[string]any); ok {
					items[i] = r.Redact(m)
				} else {
					items[i] = item
				}
			}
			redacted[k] = items
		default:
			redacted[k] = v
		}
	}
	return redacted
}

// Actor represents who performed the action
type Actor struct {
	Kind    string `json:"kind"` // api_key, system
	Display string `json:"display"`
}

// Source represents request metadata
type Source struct {
	IPAddress string `json:"ip_address,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
}

// AuditEvent represents a canonical audit event
type AuditEvent struct {
	OccurredAt   time.Time      `json:"occurred_at"`
	RequestID    string         `json:"request_id"`
	Actor        Actor          `json:"actor"`
	Source       Source         `json:"source"`
	Action       string         `json:"action"`
	ResourceType string         `json:"resource_type"`
	ResourceID   string         `json:"resource_id"`
	BeforeState  map[string]any `json:"before_state,omitempty"`
	AfterState   map[string]any `json:"after_state,omitempty"`
	Changes      map[string]any `json:"changes,omitempty"`
	Status       string         `json:"status"`
	ErrorMessage *string        `json:"error_message,omitempty"`
}

// AuditSink defines the interface for persisting audit events
type AuditSink interface {
	Write(ctx context.Context, event AuditEvent) error
}

// Service records audit events asynchronously. Log never blocks the
// caller; events are dropped when the queue is full.
type Service struct {
	sink     AuditSink
	clock    Clock
	idgen    IDGenerator
	redactor Redactor
	log      *zap.Logger
	queue    chan AuditEvent
	stopCh   chan struct{}
	done     chan struct{}
	closed   int32
	dropped  atomic.Int64
}

// NewService creates a new audit service and starts its worker.
func NewService(sink AuditSink, clock Clock, idgen IDGenerator, redactor Redactor, log *zap.Logger, queueSize int) *Service {
	if clock == nil {
		clock = SystemClock{}
	}
	if idgen == nil {
		idgen = UUIDGenerator{}
	}
	if redactor == nil {
		redactor = NewDefaultRedactor()
	}
	if log == nil {
		log = zap.NewNop()
	}

	s := &Service{
		sink:     sink,
		clock:    clock,
		idgen:    idgen,
		redactor: redactor,
		log:      log,
		queue:    make(chan AuditEvent, queueSize),
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}

	go s.worker()

	return s
}

func (s *Service) worker() {
	defer close(s.done)
	for {
		select {
		case event := <-s.queue:
			s.write(event)
		case <-s.stopCh:
			for {
				select {
				case event := <-s.queue:
					s.write(event)
				default:
					return
				}
			}
		}
	}
}

func (s *Service) write(event AuditEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.sink.Write(ctx, event); err != nil {
		s.log.Error("audit: failed to write event",
			zap.String("action", event.Action),
			zap.String("resource", event.ResourceType+"/"+event.ResourceID),
			zap.Error(err))
	}
}

// Close stops the worker after it has written every queued event.
// Close is safe to call multiple times - subsequent calls are no-ops.
func (s *Service) Close() error {
	if !atomic.CompareAndSwapInt32(&s.closed, 0, 1) {
		return nil
	}
	close(s.stopCh)
	<-s.done
	return nil
}

// Dropped returns how many events were discarded because the queue was full.
func (s *Service) Dropped() int64 { return s.dropped.Load() }

// Log queues an audit event for asynchronous processing
func (s *Service) Log(event AuditEvent) {
	if atomic.LoadInt32(&s.closed) == 1 {
		return
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = s.clock.Now()
	}
	if event.RequestID == "" {
		event.RequestID = s.idgen.Generate()
	}

	event.BeforeState = s.redactor.Redact(event.BeforeState)
	event.AfterState = s.redactor.Redact(event.AfterState)
	event.Changes = s.redactor.Redact(event.Changes)

	select {
	case s.queue <- event:
	default:
		s.dropped.Add(1)
		s.log.Warn("audit: queue full, dropping event",
			zap.String("resource", event.ResourceType+"/"+event.ResourceID))
	}
}

// ComputeChanges computes the difference between before and after states
func ComputeChanges(before, after map[string]any) map[string]any {
	if before == nil && after == nil {
		return nil
	}
	if before == nil {
		before = make(map[string]any)
	}
	if after == nil {
		after = make(map[string]any)
	}

	changes := make(map[string]any)

	for key, afterVal := range after {
		beforeVal, existedBefore := before[key]

		beforeJSON, _ := json.Marshal(beforeVal)
		afterJSON, _ := json.Marshal(afterVal)

		if !existedBefore || string(beforeJSON) != string(afterJSON) {
			changes[key] = map[string]any{
				"before": beforeVal,
				"after":  afterVal,
			}
		}
	}

	for key, beforeVal := range before {
		if _, existsAfter := after[key]; !existsAfter {
			changes[key] = map[string]any{
				"before": beforeVal,
				"after":  nil,
			}
		}
	}

	if len(changes) == 0 {
		return nil
	}

	return changes
}

// StateOf converts a JSON-serialisable value (usually a store record) into
// the map form used for before/after states.
func StateOf(v any) map[string]any {
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil
	}
	return m
}
