package validation

import (
	"context"

	"docsign/internal/database"
	"docsign/internal/models"
)

// GormFinder reads summaries through the model managers.
type GormFinder struct {
	DB *models.DB
}

func (f GormFinder) FindByCode(ctx context.Context, code string) (*Summary, error) {
	doc, err := f.DB.Documents.GetByValidationCode(ctx, code)
	if err != nil {
		return nil, err
	}
	return &Summary{
		Code:          code,
		Title:         doc.Title,
		Status:        doc.Status,
		CreatedAt:     doc.CreatedAt,
		SignerName:    doc.SignerName,
		SignedAt:      doc.SignedAt,
		SignatureHash: doc.SignatureHash,
	}, nil
}

// PgxFinder reads summaries with a single pgx query.
type PgxFinder struct {
	DB database.Service
}

func (f PgxFinder) FindByCode(ctx context.Context, code string) (*Summary, error) {
	doc, err := f.DB.GetPublicDocument(ctx, code)
	if err != nil {
		return nil, err
	}
	return &Summary{
		Code:          doc.Code,
		Title:         doc.Title,
		Status:        models.DocumentStatus(doc.Status),
		CreatedAt:     doc.CreatedAt,
		SignerName:    doc.SignerName,
		SignedAt:      doc.SignedAt,
		SignatureHash: doc.SignatureHash,
	}, nil
}
