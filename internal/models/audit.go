package models

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ErrAuditImmutable is returned by the hooks that keep the audit trail append-only.
var ErrAuditImmutable = errors.New("audit entries are append-only")

// AuditEntry records one change made by an actor.
type AuditEntry struct {
	ID         uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	Actor      string            `gorm:"column:actor;not null" json:"actor"`
	Action     AuditAction       `gorm:"column:action;not null" json:"action"`
	EntityType string            `gorm:"column:entity_type;not null;index:idx_audit_entity" json:"entity_type"`
	EntityID   string            `gorm:"column:entity_id;not null;index:idx_audit_entity" json:"entity_id"`
	Before     datatypes.JSONMap `gorm:"column:before_snapshot" json:"before_snapshot"`
	After      datatypes.JSONMap `gorm:"column:after_snapshot" json:"after_snapshot"`
	CreatedAt  time.Time         `gorm:"column:created_at;index" json:"created_at"`
}

func (AuditEntry) TableName() string {
	return "audit_entries"
}

func (a *AuditEntry) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

func (a *AuditEntry) BeforeUpdate(tx *gorm.DB) error {
	return ErrAuditImmutable
}

func (a *AuditEntry) BeforeDelete(tx *gorm.DB) error {
	return ErrAuditImmutable
}

// AuditFilter narrows audit queries. Zero values mean "any".
type AuditFilter struct {
	EntityType string
	EntityID   string
	Actor      string
	Action     AuditAction
	Limit      int
}

// AuditManager provides Django-like ORM methods for AuditEntry. It only
// exposes inserts and reads.
type AuditManager struct {
	db *gorm.DB
}

func NewAuditManager(db *gorm.DB) *AuditManager {
	return &AuditManager{db: db}
}

func (m *AuditManager) Create(ctx context.Context, entry *AuditEntry) error {
	return m.db.WithContext(ctx).Create(entry).Error
}

// Filter returns matching entries, oldest first.
func (m *AuditManager) Filter(ctx context.Context, filter AuditFilter) ([]AuditEntry, error) {
	var entries []AuditEntry
	query := m.db.WithContext(ctx).Model(&AuditEntry{})
	if filter.EntityType != "" {
		query = query.Where("entity_type = ?", filter.EntityType)
	}
	if filter.EntityID != "" {
		query = query.Where("entity_id = ?", filter.EntityID)
	}
	if filter.Actor != "" {
		query = query.Where("actor = ?", filter.Actor)
	}
	if filter.Action != "" {
		query = query.Where("action = ?", filter.Action)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	err := query.Order("created_at ASC, id ASC").Find(&entries).Error
	return entries, err
}
