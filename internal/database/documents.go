package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"docsign/internal/apperr"

	"github.com/jackc/pgx/v5"
)

// PublicDocument is the only document view exposed to unauthenticated
// callers. It never carries content or field values.
type PublicDocument struct {
	Code          string
	Title         string
	Status        string
	CreatedAt     time.Time
	SignerName    *string
	SignedAt      *time.Time
	SignatureHash *string
}

const publicDocumentQuery = `
	SELECT validation_code, title, status, created_at, signer_name, signed_at, signature_hash
	FROM generated_documents
	WHERE validation_code = $1`

func (s *service) GetPublicDocument(ctx context.Context, code string) (*PublicDocument, error) {
	var doc PublicDocument
	err := s.pool.QueryRow(ctx, publicDocumentQuery, code).Scan(
		&doc.Code,
		&doc.Title,
		&doc.Status,
		&doc.CreatedAt,
		&doc.SignerName,
		&doc.SignedAt,
		&doc.SignatureHash,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("database.GetPublicDocument", "no document with this code")
		}
		return nil, fmt.Errorf("query public document: %w", err)
	}
	return &doc, nil
}
