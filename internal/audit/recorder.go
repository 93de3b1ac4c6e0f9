package audit

import (
	"context"
	"fmt"
	"time"

	"docsign/internal/apperr"
	"docsign/internal/logger"
	"docsign/internal/models"

	"github.com/google/uuid"
)

// Event describes one auditable change. Before and After may be structs,
// maps or nil; they are stored as JSON snapshots.
type Event struct {
	Actor      string
	Action     models.AuditAction
	EntityType string
	EntityID   string
	Before     any
	After      any
}

// Entry is an audit entry with its computed field changes.
type Entry struct {
	ID         uuid.UUID          `json:"id"`
	Actor      string             `json:"actor"`
	Action     models.AuditAction `json:"action"`
	Label      string             `json:"label"`
	EntityType string             `json:"entity_type"`
	EntityID   string             `json:"entity_id"`
	Changes    []Change           `json:"changes"`
	CreatedAt  time.Time          `json:"created_at"`
}

// Recorder writes and reads the audit trail.
type Recorder struct {
	db  *models.DB
	log *logger.Logger
}

func NewRecorder(db *models.DB, log *logger.Logger) *Recorder {
	return &Recorder{db: db, log: log}
}

// Record appends ev. Pass the caller's transaction as tx so the entry commits
// or rolls back with the change it describes; nil uses the recorder's handle.
func (r *Recorder) Record(ctx context.Context, tx *models.DB, ev Event) error {
	if !ev.Action.Valid() {
		return apperr.Validation("audit.Record", "action", fmt.Sprintf("unknown action %q", ev.Action))
	}
	if ev.Actor == "" {
		ev.Actor = "system"
	}

	before, err := Snapshot(ev.Before)
	if err != nil {
		return err
	}
	after, err := Snapshot(ev.After)
	if err != nil {
		return err
	}

	if tx == nil {
		tx = r.db
	}
	entry := &models.AuditEntry{
		Actor:      ev.Actor,
		Action:     ev.Action,
		EntityType: ev.EntityType,
		EntityID:   ev.EntityID,
		Before:     before,
		After:      after,
	}
	if err := tx.Audit.Create(ctx, entry); err != nil {
		return apperr.Integration("audit.Record", err)
	}

	r.log.Debug("audit entry recorded",
		"actor", ev.Actor,
		"action", string(ev.Action),
		"entity_type", ev.EntityType,
		"entity_id", ev.EntityID,
	)
	return nil
}

// History returns the trail of one entity, oldest first, each entry carrying
// the diff between its before and after snapshots.
func (r *Recorder) History(ctx context.Context, entityType, entityID string) ([]Entry, error) {
	return r.Search(ctx, models.AuditFilter{EntityType: entityType, EntityID: entityID})
}

// Search returns entries matching filter with their diffs.
func (r *Recorder) Search(ctx context.Context, filter models.AuditFilter) ([]Entry, error) {
	rows, err := r.db.Audit.Filter(ctx, filter)
	if err != nil {
		return nil, apperr.Integration("audit.Search", err)
	}
	out := make([]Entry, 0, len(rows))
	for _, row := range rows {
		out = append(out, Entry{
			ID:         row.ID,
			Actor:      row.Actor,
			Action:     row.Action,
			Label:      row.Action.Label(),
			EntityType: row.EntityType,
			EntityID:   row.EntityID,
			Changes:    Diff(row.Before, row.After),
			CreatedAt:  row.CreatedAt,
		})
	}
	return out, nil
}
