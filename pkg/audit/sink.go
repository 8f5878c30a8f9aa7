package audit

import (
	"context"
	"log/slog"

	"github.com/tendant/simple-ums/pkg/store"
)

// Sink persists audit events
type Sink interface {
	Record(ctx context.Context, event Event) error
}

// StoreSink writes events to the audit_log table
type StoreSink struct {
	repo store.AuditRepository
}

func NewStoreSink(repo store.AuditRepository) *StoreSink {
	return &StoreSink{repo: repo}
}

func (s *StoreSink) Record(ctx context.Context, event Event) error {
	metadata := event.Metadata
	if event.RequestID != "" {
		metadata = event.WithMetadata("request_id", event.RequestID).Metadata
	}
	return s.repo.CreateAuditEntry(ctx, store.AuditEntry{
		EventType:  string(event.Type),
		EntityType: event.EntityType,
		EntityID:   event.EntityID,
		AppID:      event.AppID,
		ActorID:    event.ActorID,
		ActorEmail: event.ActorEmail,
		Method:     event.Method,
		URI:        event.URI,
		Metadata:   metadata,
		CreatedAt:  event.Timestamp,
	})
}

// LogSink writes events to a structured logger
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Record(ctx context.Context, event Event) error {
	s.logger.InfoContext(ctx, "audit",
		"event", event.Type,
		"entity_type", event.EntityType,
		"entity_id", event.EntityID,
		"app_id", event.AppID,
		"actor_id", event.ActorID,
		"actor_email", event.ActorEmail,
		"method", event.Method,
		"uri", event.URI,
		"request_id", event.RequestID,
		"metadata", event.Metadata,
	)
	return nil
}
