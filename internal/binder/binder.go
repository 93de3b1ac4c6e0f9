// Package binder resolves the working value of every template field from user
// input, bound entity attributes, static defaults and the current date.
package binder

import (
	"context"
	"strings"
	"time"

	"docsign/internal/apperr"
	"docsign/internal/models"
)

// EntityProvider reads the attributes of a bound external entity (a lead or
// customer record). Implementations are read-only.
type EntityProvider interface {
	EntityAttributes(ctx context.Context, entityID string) (map[string]string, error)
}

// Bind returns the resolved values for fields. The input map is not modified.
//
// Resolution order per field:
//   - a field bound to an entity attribute takes the entity's current value
//     whenever the entity has that attribute, overwriting any manual edit;
//   - otherwise a non-empty existing value is kept;
//   - otherwise the static default is applied;
//   - date fields still empty are seeded with now's date.
//
// Values for names that match no field are carried over unchanged.
func Bind(fields []models.TemplateField, values map[string]string, entityAttrs map[string]string, now time.Time) map[string]string {
	out := make(map[string]string, len(values)+len(fields))
	for k, v := range values {
		out[k] = v
	}

	for _, f := range fields {
		if f.DataSource.Bound() && f.SourceAttribute != "" {
			if attr, ok := entityAttrs[f.SourceAttribute]; ok {
				out[f.Name] = attr
				continue
			}
		}
		if strings.TrimSpace(out[f.Name]) != "" {
			continue
		}
		if f.DefaultValue != "" {
			out[f.Name] = f.DefaultValue
			continue
		}
		if f.Type == models.FieldDate {
			out[f.Name] = now.Format("2006-01-02")
		}
	}
	return out
}

// MissingRequired returns the names of required fields whose value is empty,
// in field order.
func MissingRequired(fields []models.TemplateField, values map[string]string) []string {
	var missing []string
	for _, f := range fields {
		if f.Required && strings.TrimSpace(values[f.Name]) == "" {
			missing = append(missing, f.Name)
		}
	}
	return missing
}

// Binder resolves values against an optional entity provider.
type Binder struct {
	entities EntityProvider
	loc      *time.Location
	now      func() time.Time
}

// New returns a Binder. A nil provider disables entity binding; a nil
// location means UTC.
func New(entities EntityProvider, loc *time.Location) *Binder {
	if loc == nil {
		loc = time.UTC
	}
	return &Binder{entities: entities, loc: loc, now: time.Now}
}

// Resolve loads the entity's attributes when entityID is set and binds.
func (b *Binder) Resolve(ctx context.Context, fields []models.TemplateField, values map[string]string, entityID string) (map[string]string, error) {
	var attrs map[string]string
	if entityID != "" && b.entities != nil && hasBoundField(fields) {
		var err error
		attrs, err = b.entities.EntityAttributes(ctx, entityID)
		if err != nil {
			if apperr.IsNotFound(err) {
				return nil, apperr.Validation("binder.Resolve", "entity_id", "bound entity not found")
			}
			return nil, apperr.Integration("binder.Resolve", err)
		}
	}
	return Bind(fields, values, attrs, b.now().In(b.loc)), nil
}

func hasBoundField(fields []models.TemplateField) bool {
	for _, f := range fields {
		if f.DataSource.Bound() {
			return true
		}
	}
	return false
}
