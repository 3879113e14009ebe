package audit

import (
	"context"
	"errors"

	"github.com/TimurManjosov/triagem/internal/store"
	"go.uber.org/zap"
)

// AuditLogWriter is the part of store.Store the store sink needs.
type AuditLogWriter interface {
	WriteAuditLog(ctx context.Context, entry store.AuditLog) error
}

// StoreSink persists audit events in the application store.
type StoreSink struct {
	store AuditLogWriter
}

// NewStoreSink creates a sink writing to s.
func NewStoreSink(s AuditLogWriter) *StoreSink {
	return &StoreSink{store: s}
}

// Write persists an audit event to the store
func (s *StoreSink) Write(ctx context.Context, event AuditEvent) error {
	entry := store.AuditLog{
		OccurredAt:   event.OccurredAt,
		RequestID:    event.RequestID,
		Actor:        event.Actor.Display,
		Action:       event.Action,
		ResourceType: event.ResourceType,
		ResourceID:   event.ResourceID,
		Status:       event.Status,
		BeforeState:  event.BeforeState,
		AfterState:   event.AfterState,
		Changes:      event.Changes,
	}
	if event.ErrorMessage != nil {
		entry.ErrorMessage = *event.ErrorMessage
	}
	return s.store.WriteAuditLog(ctx, entry)
}

// LogSink writes audit events to a zap logger.
type LogSink struct {
	log *zap.Logger
}

// NewLogSink creates a sink logging at info level under the "audit" name.
func NewLogSink(log *zap.Logger) *LogSink {
	return &LogSink{log: log.Named("audit")}
}

func (s *LogSink) Write(ctx context.Context, event AuditEvent) error {
	fields := []zap.Field{
		zap.String("request_id", event.RequestID),
		zap.String("actor", event.Actor.Display),
		zap.String("action", event.Action),
		zap.String("resource_type", event.ResourceType),
		zap.String("resource_id", event.ResourceID),
		zap.String("status", event.Status),
	}
	if event.Source.IPAddress != "" {
		fields = append(fields, zap.String("ip", event.Source.IPAddress))
	}
	if len(event.Changes) > 0 {
		fields = append(fields, zap.Any("changes", event.Changes))
	}
	if event.ErrorMessage != nil {
		fields = append(fields, zap.String("error", *event.ErrorMessage))
	}
	s.log.Info("audit event", fields...)
	return nil
}

// MultiSink fans an event out to several sinks and joins their errors.
type MultiSink []AuditSink

func (m MultiSink) Write(ctx context.Context, event AuditEvent) error {
	var errs []error
	for _, sink := range m {
		if err := sink.Write(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
