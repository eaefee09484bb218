package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/recordkit/recordkit/internal/domain"
)

// Event is one outbound platform notification. Every activity entry maps to
// exactly one event; workflow webhook actions reuse the same shape.
type Event struct {
	ID         string         `json:"id"`
	Tenant     string         `json:"tenant"`
	Type       string         `json:"type"`
	ObjectID   string         `json:"objectId"`
	ObjectType string         `json:"objectType"`
	OccurredAt string         `json:"occurredAt"`
	Payload    map[string]any `json:"payload,omitempty"`
}

// New builds an event with a fresh ID and timestamp.
func New(tenant, eventType, objectID, objectType string, payload map[string]any) *Event {
	return &Event{
		ID:         uuid.NewString(),
		Tenant:     tenant,
		Type:       eventType,
		ObjectID:   objectID,
		ObjectType: objectType,
		OccurredAt: time.Now().UTC().Format(domain.TimeFormat),
		Payload:    payload,
	}
}

// Publisher delivers events to the configured sink. Implementations must be
// safe for concurrent use; delivery failures are the caller's to log or
// record, not to panic over.
type Publisher interface {
	Publish(ctx context.Context, e *Event) error
}

// LogPublisher writes events to the log instead of the network. It is the
// sink of record when no webhook URL is configured.
type LogPublisher struct {
	Logger *slog.Logger
}

func (p *LogPublisher) Publish(ctx context.Context, e *Event) error {
	p.Logger.InfoContext(ctx, "event",
		slog.String("id", e.ID),
		slog.String("tenant", e.Tenant),
		slog.String("type", e.Type),
		slog.String("object_id", e.ObjectID),
	)
	return nil
}
