package models

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SignatureRecord captures one signing act on a document.
type SignatureRecord struct {
	ID                   uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	DocumentID           uuid.UUID  `gorm:"type:uuid;column:document_id;not null;index" json:"document_id"`
	SignerType           SignerType `gorm:"column:signer_type;not null;default:'client'" json:"signer_type"`
	SignerName           string     `gorm:"column:signer_name;not null" json:"signer_name"`
	SignerEmail          string     `gorm:"column:signer_email" json:"signer_email,omitempty"`
	SignerDocumentNumber string     `gorm:"column:signer_document_number" json:"signer_document_number,omitempty"`
	SignatureImage       string     `gorm:"column:signature_image;type:text;not null" json:"signature_image"`
	SignatureHash        string     `gorm:"column:signature_hash;not null" json:"signature_hash"`
	CapturedIP           string     `gorm:"column:captured_ip;not null;default:'unknown'" json:"captured_ip"`
	CapturedUserAgent    string     `gorm:"column:captured_user_agent" json:"captured_user_agent,omitempty"`
	CapturedAt           time.Time  `gorm:"column:captured_at;not null" json:"captured_at"`
}

func (SignatureRecord) TableName() string {
	return "signature_records"
}

func (s *SignatureRecord) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.SignerType == "" {
		s.SignerType = SignerClient
	}
	if s.CapturedAt.IsZero() {
		s.CapturedAt = time.Now().UTC()
	}
	return nil
}

// SignatureManager provides Django-like ORM methods for SignatureRecord
type SignatureManager struct {
	db *gorm.DB
}

func NewSignatureManager(db *gorm.DB) *SignatureManager {
	return &SignatureManager{db: db}
}

func (m *SignatureManager) Create(ctx context.Context, record *SignatureRecord) error {
	return m.db.WithContext(ctx).Create(record).Error
}

// ForDocument returns the signatures of a document, oldest first.
func (m *SignatureManager) ForDocument(ctx context.Context, documentID uuid.UUID) ([]SignatureRecord, error) {
	var records []SignatureRecord
	err := m.db.WithContext(ctx).
		Where("document_id = ?", documentID).
		Order("captured_at ASC").
		Find(&records).Error
	return records, err
}

// Latest returns the most recent signature of a document.
func (m *SignatureManager) Latest(ctx context.Context, documentID uuid.UUID) (*SignatureRecord, error) {
	var record SignatureRecord
	err := m.db.WithContext(ctx).
		Where("document_id = ?", documentID).
		Order("captured_at DESC").
		First(&record).Error
	if err != nil {
		return nil, notFoundOr(err, "signature not found")
	}
	return &record, nil
}
