package bunsink

import (
	"context"
	"fmt"
	"time"

	"github.com/goliatone/go-cms-admin/pkg/interfaces"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// LogEntry is the persisted form of an admin activity record.
type LogEntry struct {
	bun.BaseModel `bun:"table:admin_log_entries,alias:ale"`

	ID         uuid.UUID      `bun:",pk,type:uuid" json:"id"`
	ActorID    uuid.UUID      `bun:"actor_id,type:uuid" json:"actor_id"`
	UserID     uuid.UUID      `bun:"user_id,type:uuid" json:"user_id"`
	TenantID   uuid.UUID      `bun:"tenant_id,type:uuid" json:"tenant_id"`
	Verb       string         `bun:"verb,notnull" json:"verb"`
	ObjectType string         `bun:"object_type,notnull" json:"object_type"`
	ObjectID   string         `bun:"object_id" json:"object_id"`
	Channel    string         `bun:"channel" json:"channel"`
	Data       map[string]any `bun:"data,type:jsonb" json:"data,omitempty"`
	OccurredAt time.Time      `bun:"occurred_at,notnull" json:"occurred_at"`
	CreatedAt  time.Time      `bun:"created_at,nullzero,default:current_timestamp" json:"created_at"`
}

// Sink writes activity records to admin_log_entries.
type Sink struct {
	repo repository.Repository[*LogEntry]
}

func New(db *bun.DB) *Sink {
	return &Sink{repo: repository.MustNewRepository(db, repository.ModelHandlers[*LogEntry]{
		NewRecord:          func() *LogEntry { return &LogEntry{} },
		GetID:              func(e *LogEntry) uuid.UUID { return e.ID },
		SetID:              func(e *LogEntry, id uuid.UUID) { e.ID = id },
		GetIdentifier:      func() string { return "id" },
		GetIdentifierValue: func(e *LogEntry) string { return e.ID.String() },
	})}
}

func (s *Sink) Log(ctx context.Context, record interfaces.ActivityRecord) error {
	occurred := record.OccurredAt
	if occurred.IsZero() {
		occurred = time.Now().UTC()
	}
	entry := &LogEntry{
		ID:         uuid.New(),
		ActorID:    record.ActorID,
		UserID:     record.UserID,
		TenantID:   record.TenantID,
		Verb:       record.Verb,
		ObjectType: record.ObjectType,
		ObjectID:   record.ObjectID,
		Channel:    record.Channel,
		Data:       record.Data,
		OccurredAt: occurred,
	}
	if _, err := s.repo.Create(ctx, entry); err != nil {
		return fmt.Errorf("activity log: %w", err)
	}
	return nil
}

// ListForObject returns entries for an object, oldest first.
func (s *Sink) ListForObject(ctx context.Context, objectType, objectID string) ([]*LogEntry, error) {
	records, _, err := s.repo.List(ctx, repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("?TableAlias.object_type = ?", objectType).
			Where("?TableAlias.object_id = ?", objectID).
			OrderExpr("?TableAlias.occurred_at ASC")
	}))
	return records, err
}
