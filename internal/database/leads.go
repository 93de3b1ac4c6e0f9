package database

import (
	"context"
	"errors"
	"fmt"

	"docsign/internal/apperr"

	"github.com/jackc/pgx/v5"
)

const leadQuery = `
	SELECT name, email, phone, company, attributes
	FROM leads
	WHERE id = $1`

// EntityAttributes flattens a lead row into bindable attributes. Columns win
// over keys of the same name inside the attributes JSON.
func (s *service) EntityAttributes(ctx context.Context, entityID string) (map[string]string, error) {
	var (
		name, email, phone, company string
		extra                       map[string]any
	)
	err := s.pool.QueryRow(ctx, leadQuery, entityID).Scan(&name, &email, &phone, &company, &extra)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("database.EntityAttributes", "lead not found")
		}
		return nil, fmt.Errorf("query lead: %w", err)
	}

	attrs := make(map[string]string, len(extra)+4)
	for k, v := range extra {
		if v == nil {
			continue
		}
		attrs[k] = fmt.Sprint(v)
	}
	attrs["name"] = name
	attrs["email"] = email
	attrs["phone"] = phone
	attrs["company"] = company
	return attrs, nil
}
