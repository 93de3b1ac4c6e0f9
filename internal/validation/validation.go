// Package validation answers public "is this document authentic?" lookups by
// validation code. It exposes only the summary fields, never content.
package validation

import (
	"context"
	"strings"
	"time"

	"docsign/internal/apperr"
	"docsign/internal/logger"
	"docsign/internal/models"
)

// CodeLength is the length of a validation code.
const CodeLength = 8

// Summary is the public view of a document.
type Summary struct {
	Code          string                `json:"code"`
	Title         string                `json:"title"`
	Status        models.DocumentStatus `json:"status"`
	StatusLabel   string                `json:"status_label"`
	CreatedAt     time.Time             `json:"created_at"`
	SignerName    *string               `json:"signer_name,omitempty"`
	SignedAt      *time.Time            `json:"signed_at,omitempty"`
	SignatureHash *string               `json:"signature_hash,omitempty"`
}

// Finder loads a summary by normalized code. Misses are apperr.ErrNotFound.
type Finder interface {
	FindByCode(ctx context.Context, code string) (*Summary, error)
}

// Cache is an optional read-through cache in front of the Finder.
type Cache interface {
	Get(ctx context.Context, code string) (*Summary, bool, error)
	Set(ctx context.Context, code string, s *Summary) error
	Delete(ctx context.Context, code string) error
}

// Normalize trims and upper-cases a user supplied code. It returns "" when
// the input cannot be a code.
func Normalize(raw string) string {
	code := strings.ToUpper(strings.TrimSpace(raw))
	if code == "" || len(code) > CodeLength {
		return ""
	}
	for _, r := range code {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return code
}

type Service struct {
	finder Finder
	cache  Cache
	log    *logger.Logger
}

// NewService builds the lookup service. cache may be nil.
func NewService(finder Finder, cache Cache, log *logger.Logger) *Service {
	return &Service{finder: finder, cache: cache, log: log.With("component", "validation")}
}

// Lookup returns the summary for code. An unknown or malformed code is
// apperr.ErrNotFound; a store failure is an integration error.
func (s *Service) Lookup(ctx context.Context, raw string) (*Summary, error) {
	const op = "validation.Lookup"

	code := Normalize(raw)
	if code == "" {
		return nil, apperr.NotFound(op, "no document with this code")
	}

	if s.cache != nil {
		cached, ok, err := s.cache.Get(ctx, code)
		if err != nil {
			s.log.Warn("validation cache read failed", "code", code, "error", err)
		} else if ok {
			return cached, nil
		}
	}

	summary, err := s.finder.FindByCode(ctx, code)
	if err != nil {
		if apperr.IsNotFound(err) {
			return nil, apperr.NotFound(op, "no document with this code")
		}
		return nil, apperr.Integration(op, err)
	}
	summary.StatusLabel = summary.Status.Label()

	if s.cache != nil {
		if err := s.cache.Set(ctx, code, summary); err != nil {
			s.log.Warn("validation cache write failed", "code", code, "error", err)
		}
	}
	return summary, nil
}

// Invalidate drops a cached summary after the document changed.
func (s *Service) Invalidate(ctx context.Context, code string) {
	if s.cache == nil || code == "" {
		return
	}
	if err := s.cache.Delete(ctx, code); err != nil {
		s.log.Warn("validation cache invalidation failed", "code", code, "error", err)
	}
}
