package models

import (
	"context"
	"strings"
	"time"

	"docsign/internal/apperr"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FieldValues maps placeholder names to the raw strings the user entered.
type FieldValues map[string]string

// GeneratedDocument is a rendered instance of a template moving through the
// draft → finalized → sent → signed lifecycle.
type GeneratedDocument struct {
	ID                uuid.UUID                       `gorm:"type:uuid;primaryKey" json:"id"`
	TemplateID        uuid.UUID                       `gorm:"type:uuid;column:template_id;not null;index" json:"template_id"`
	EntityID          *string                         `gorm:"column:entity_id" json:"entity_id,omitempty"`
	Title             string                          `gorm:"column:title;not null" json:"title"`
	Content           string                          `gorm:"column:content;type:text;not null" json:"content"`
	FilledValues      datatypes.JSONType[FieldValues] `gorm:"column:filled_values" json:"filled_values"`
	Status            DocumentStatus                  `gorm:"column:status;not null;default:'draft';index" json:"status"`
	Version           int                             `gorm:"column:version;not null;default:1" json:"version"`
	CreatedAt         time.Time                       `gorm:"column:created_at" json:"created_at"`
	UpdatedAt         time.Time                       `gorm:"column:updated_at" json:"updated_at"`
	FinalizedAt       *time.Time                      `gorm:"column:finalized_at" json:"finalized_at,omitempty"`
	SentTo            *string                         `gorm:"column:sent_to" json:"sent_to,omitempty"`
	SentAt            *time.Time                      `gorm:"column:sent_at" json:"sent_at,omitempty"`
	SignerName        *string                         `gorm:"column:signer_name" json:"signer_name,omitempty"`
	SignedAt          *time.Time                      `gorm:"column:signed_at" json:"signed_at,omitempty"`
	SignatureHash     *string                         `gorm:"column:signature_hash" json:"signature_hash,omitempty"`
	SignatureSourceIP *string                         `gorm:"column:signature_source_ip" json:"signature_source_ip,omitempty"`
	ValidationCode    *string                         `gorm:"column:validation_code;uniqueIndex" json:"validation_code,omitempty"`
	ArchiveKey        *string                         `gorm:"column:archive_key" json:"archive_key,omitempty"`
}

func (GeneratedDocument) TableName() string {
	return "generated_documents"
}

func (d *GeneratedDocument) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	if d.Status == "" {
		d.Status = StatusDraft
	}
	if d.Version == 0 {
		d.Version = 1
	}
	return nil
}

// Values returns a copy of the stored field values.
func (d *GeneratedDocument) Values() FieldValues {
	out := FieldValues{}
	for k, v := range d.FilledValues.Data() {
		out[k] = v
	}
	return out
}

func (d *GeneratedDocument) SetValues(values FieldValues) {
	d.FilledValues = datatypes.NewJSONType(values)
}

// DocumentListItem is the typed row returned by List: no content or values.
type DocumentListItem struct {
	ID             uuid.UUID      `json:"id"`
	TemplateID     uuid.UUID      `json:"template_id"`
	TemplateName   *string        `json:"template_name,omitempty"`
	Title          string         `json:"title"`
	Status         DocumentStatus `json:"status"`
	ValidationCode *string        `json:"validation_code,omitempty"`
	SignerName     *string        `json:"signer_name,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// DocumentFilter narrows List results. Zero values mean "any".
type DocumentFilter struct {
	Status     DocumentStatus
	TemplateID *uuid.UUID
	Search     string
	Limit      int
	Offset     int
}

// DocumentManager provides Django-like ORM methods for GeneratedDocument
type DocumentManager struct {
	db *gorm.DB
}

func NewDocumentManager(db *gorm.DB) *DocumentManager {
	return &DocumentManager{db: db}
}

func (m *DocumentManager) Create(ctx context.Context, doc *GeneratedDocument) error {
	return m.db.WithContext(ctx).Create(doc).Error
}

func (m *DocumentManager) Get(ctx context.Context, id uuid.UUID) (*GeneratedDocument, error) {
	var doc GeneratedDocument
	if err := m.db.WithContext(ctx).First(&doc, "id = ?", id).Error; err != nil {
		return nil, notFoundOr(err, "document not found")
	}
	return &doc, nil
}

// GetForUpdate reads the row inside a transaction. PostgreSQL takes a row lock;
// other dialects rely on the version check in Save.
func (m *DocumentManager) GetForUpdate(ctx context.Context, id uuid.UUID) (*GeneratedDocument, error) {
	db := m.db.WithContext(ctx)
	if db.Dialector.Name() == "postgres" {
		db = db.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var doc GeneratedDocument
	if err := db.First(&doc, "id = ?", id).Error; err != nil {
		return nil, notFoundOr(err, "document not found")
	}
	return &doc, nil
}

func (m *DocumentManager) GetByValidationCode(ctx context.Context, code string) (*GeneratedDocument, error) {
	var doc GeneratedDocument
	if err := m.db.WithContext(ctx).First(&doc, "validation_code = ?", code).Error; err != nil {
		return nil, notFoundOr(err, "document not found")
	}
	return &doc, nil
}

func (m *DocumentManager) CodeExists(ctx context.Context, code string) (bool, error) {
	return Exists[GeneratedDocument](m.db.WithContext(ctx), "validation_code = ?", code)
}

// Save writes every column of doc if the stored version still equals
// doc.Version, then increments doc.Version. A stale version yields
// apperr.ErrVersionConflict and leaves the row untouched.
func (m *DocumentManager) Save(ctx context.Context, doc *GeneratedDocument) error {
	expected := doc.Version
	doc.Version = expected + 1
	doc.UpdatedAt = time.Now().UTC()

	res := m.db.WithContext(ctx).
		Model(&GeneratedDocument{}).
		Where("id = ? AND version = ?", doc.ID, expected).
		Select("*").
		Omit("id", "created_at").
		Updates(doc)
	if res.Error != nil {
		doc.Version = expected
		return res.Error
	}
	if res.RowsAffected == 0 {
		doc.Version = expected
		return apperr.Conflict("models.DocumentManager.Save", apperr.ErrVersionConflict)
	}
	return nil
}

func (m *DocumentManager) Filter(ctx context.Context, filter DocumentFilter) ([]DocumentListItem, error) {
	var items []DocumentListItem
	query := m.db.WithContext(ctx).
		Table("generated_documents AS d").
		Select("d.id, d.template_id, t.name AS template_name, d.title, d.status, d.validation_code, d.signer_name, d.created_at, d.updated_at").
		Joins("LEFT JOIN templates t ON t.id = d.template_id")
	if filter.Status != "" {
		query = query.Where("d.status = ?", filter.Status)
	}
	if filter.TemplateID != nil {
		query = query.Where("d.template_id = ?", *filter.TemplateID)
	}
	if filter.Search != "" {
		query = query.Where("LOWER(d.title) LIKE ?", "%"+strings.ToLower(filter.Search)+"%")
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}
	err := query.Order("d.created_at DESC").Scan(&items).Error
	return items, err
}

// Delete removes the document and its signature records.
func (m *DocumentManager) Delete(ctx context.Context, id uuid.UUID) error {
	db := m.db.WithContext(ctx)
	if err := db.Where("document_id = ?", id).Delete(&SignatureRecord{}).Error; err != nil {
		return err
	}
	res := db.Delete(&GeneratedDocument{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return notFoundOr(gorm.ErrRecordNotFound, "document not found")
	}
	return nil
}
