// Package templates manages document templates, their ordered typed fields
// and categories.
package templates

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"docsign/internal/apperr"
	"docsign/internal/audit"
	"docsign/internal/logger"
	"docsign/internal/models"
	"docsign/internal/render"

	"github.com/google/uuid"
)

const copySuffix = " (cópia)"

var fieldNameRE = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

type Service struct {
	db    *models.DB
	audit *audit.Recorder
	log   *logger.Logger
}

func NewService(db *models.DB, rec *audit.Recorder, log *logger.Logger) *Service {
	return &Service{db: db, audit: rec, log: log.With("component", "templates")}
}

// CreateInput describes a new template. When Fields is empty a default field
// set is derived from the body's placeholders.
type CreateInput struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Body        string                 `json:"body"`
	CategoryID  *uuid.UUID             `json:"category_id"`
	IsActive    *bool                  `json:"is_active"`
	Fields      []models.TemplateField `json:"fields"`
}

// UpdateInput changes a template. Nil members are left as they are; a non-nil
// Fields replaces the whole field set.
type UpdateInput struct {
	Name        *string                 `json:"name"`
	Description *string                 `json:"description"`
	Body        *string                 `json:"body"`
	CategoryID  *uuid.UUID              `json:"category_id"`
	IsActive    *bool                   `json:"is_active"`
	Fields      *[]models.TemplateField `json:"fields"`
}

type ListFilter struct {
	CategoryID *uuid.UUID
	ActiveOnly bool
	Search     string
}

func (s *Service) Create(ctx context.Context, actor string, in CreateInput) (*models.Template, error) {
	const op = "templates.Create"

	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperr.Validation(op, "name", "name is required")
	}
	if strings.TrimSpace(in.Body) == "" {
		return nil, apperr.Validation(op, "body", "body is required")
	}
	fields := in.Fields
	if len(fields) == 0 {
		fields = DefaultFields(in.Body)
	}
	fields, err := normalizeFields(op, fields)
	if err != nil {
		return nil, err
	}

	tmpl := &models.Template{
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		Body:        in.Body,
		IsActive:    in.IsActive == nil || *in.IsActive,
		Fields:      fields,
	}

	err = s.db.Transaction(ctx, func(tx *models.DB) error {
		if in.CategoryID != nil {
			if _, err := tx.Categories.Get(ctx, *in.CategoryID); err != nil {
				if apperr.IsNotFound(err) {
					return apperr.Validation(op, "category_id", "category not found")
				}
				return err
			}
			tmpl.CategoryID = in.CategoryID
		}
		if err := tx.Templates.Create(ctx, tmpl); err != nil {
			return err
		}
		return s.audit.Record(ctx, tx, audit.Event{
			Actor: actor, Action: models.ActionCreate,
			EntityType: models.EntityTemplate, EntityID: tmpl.ID.String(),
			After: snapshot(tmpl),
		})
	})
	if err != nil {
		return nil, storageErr(op, err)
	}

	s.log.Info("template created", "template_id", tmpl.ID, "fields", len(tmpl.Fields), "actor", actor)
	return tmpl, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Template, error) {
	tmpl, err := s.db.Templates.Get(ctx, id)
	if err != nil {
		return nil, storageErr("templates.Get", err)
	}
	return tmpl, nil
}

func (s *Service) List(ctx context.Context, filter ListFilter) ([]models.Template, error) {
	list, err := s.db.Templates.Filter(ctx, models.TemplateFilter{
		CategoryID: filter.CategoryID,
		ActiveOnly: filter.ActiveOnly,
		Search:     strings.TrimSpace(filter.Search),
	})
	if err != nil {
		return nil, storageErr("templates.List", err)
	}
	return list, nil
}

// Update applies in and bumps the template version. Documents already
// generated keep their rendered content.
func (s *Service) Update(ctx context.Context, actor string, id uuid.UUID, in UpdateInput) (*models.Template, error) {
	const op = "templates.Update"
	var out *models.Template
	err := s.db.Transaction(ctx, func(tx *models.DB) error {
		tmpl, err := tx.Templates.Get(ctx, id)
		if err != nil {
			return err
		}
		before := snapshot(tmpl)

		if in.Name != nil {
			name := strings.TrimSpace(*in.Name)
			if name == "" {
				return apperr.Validation(op, "name", "name is required")
			}
			tmpl.Name = name
		}
		if in.Description != nil {
			tmpl.Description = strings.TrimSpace(*in.Description)
		}
		if in.Body != nil {
			if strings.TrimSpace(*in.Body) == "" {
				return apperr.Validation(op, "body", "body is required")
			}
			tmpl.Body = *in.Body
		}
		if in.IsActive != nil {
			tmpl.IsActive = *in.IsActive
		}
		if in.CategoryID != nil {
			if *in.CategoryID == uuid.Nil {
				tmpl.CategoryID = nil
			} else {
				if _, err := tx.Categories.Get(ctx, *in.CategoryID); err != nil {
					if apperr.IsNotFound(err) {
						return apperr.Validation(op, "category_id", "category not found")
					}
					return err
				}
				tmpl.CategoryID = in.CategoryID
			}
			tmpl.Category = nil
		}
		if in.Fields != nil {
			fields, err := normalizeFields(op, *in.Fields)
			if err != nil {
				return err
			}
			if err := tx.Fields.Replace(ctx, tmpl.ID, fields); err != nil {
				return err
			}
			tmpl.Fields = fields
		}
		tmpl.Version++

		if err := tx.Templates.Update(ctx, tmpl); err != nil {
			return err
		}
		if err := s.audit.Record(ctx, tx, audit.Event{
			Actor: actor, Action: models.ActionUpdate,
			EntityType: models.EntityTemplate, EntityID: tmpl.ID.String(),
			Before: before, After: snapshot(tmpl),
		}); err != nil {
			return err
		}
		out = tmpl
		return nil
	})
	if err != nil {
		return nil, storageErr(op, err)
	}
	s.log.Info("template updated", "template_id", id, "version", out.Version, "actor", actor)
	return out, nil
}

// Duplicate copies a template and its fields as a new version 1 template.
func (s *Service) Duplicate(ctx context.Context, actor string, id uuid.UUID) (*models.Template, error) {
	const op = "templates.Duplicate"
	var out *models.Template
	err := s.db.Transaction(ctx, func(tx *models.DB) error {
		src, err := tx.Templates.Get(ctx, id)
		if err != nil {
			return err
		}
		fields := make([]models.TemplateField, len(src.Fields))
		for i, f := range src.Fields {
			f.ID = uuid.Nil
			f.TemplateID = uuid.Nil
			fields[i] = f
		}
		dup := &models.Template{
			Name:        src.Name + copySuffix,
			Description: src.Description,
			Body:        src.Body,
			Version:     1,
			IsActive:    src.IsActive,
			CategoryID:  src.CategoryID,
			Fields:      fields,
		}
		if err := tx.Templates.Create(ctx, dup); err != nil {
			return err
		}
		if err := s.audit.Record(ctx, tx, audit.Event{
			Actor: actor, Action: models.ActionCreate,
			EntityType: models.EntityTemplate, EntityID: dup.ID.String(),
			After: snapshot(dup),
		}); err != nil {
			return err
		}
		out = dup
		return nil
	})
	if err != nil {
		return nil, storageErr(op, err)
	}
	s.log.Info("template duplicated", "source_id", id, "template_id", out.ID, "actor", actor)
	return out, nil
}

// Delete removes the template and its fields.
func (s *Service) Delete(ctx context.Context, actor string, id uuid.UUID) error {
	const op = "templates.Delete"
	err := s.db.Transaction(ctx, func(tx *models.DB) error {
		tmpl, err := tx.Templates.Get(ctx, id)
		if err != nil {
			return err
		}
		if err := tx.Templates.Delete(ctx, id); err != nil {
			return err
		}
		return s.audit.Record(ctx, tx, audit.Event{
			Actor: actor, Action: models.ActionDelete,
			EntityType: models.EntityTemplate, EntityID: id.String(),
			Before: snapshot(tmpl),
		})
	})
	if err != nil {
		return storageErr(op, err)
	}
	s.log.Info("template deleted", "template_id", id, "actor", actor)
	return nil
}

func (s *Service) CreateCategory(ctx context.Context, actor, name string) (*models.TemplateCategory, error) {
	const op = "templates.CreateCategory"
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Validation(op, "name", "name is required")
	}
	slug := Slugify(name)
	if slug == "" {
		return nil, apperr.Validation(op, "name", "name must contain letters or digits")
	}

	category := &models.TemplateCategory{Name: name, Slug: slug}
	err := s.db.Transaction(ctx, func(tx *models.DB) error {
		taken, err := models.Exists[models.TemplateCategory](tx.DB.WithContext(ctx), "slug = ?", slug)
		if err != nil {
			return err
		}
		if taken {
			return apperr.Validation(op, "name", fmt.Sprintf("category %q already exists", name))
		}
		if err := tx.Categories.Create(ctx, category); err != nil {
			return err
		}
		return s.audit.Record(ctx, tx, audit.Event{
			Actor: actor, Action: models.ActionCreate,
			EntityType: models.EntityCategory, EntityID: category.ID.String(),
			After: map[string]any{"name": category.Name, "slug": category.Slug},
		})
	})
	if err != nil {
		return nil, storageErr(op, err)
	}
	return category, nil
}

func (s *Service) ListCategories(ctx context.Context) ([]models.TemplateCategory, error) {
	list, err := s.db.Categories.All(ctx)
	if err != nil {
		return nil, storageErr("templates.ListCategories", err)
	}
	return list, nil
}

// DefaultFields builds one field per placeholder of body, in first-seen order.
func DefaultFields(body string) []models.TemplateField {
	names := render.Placeholders(body)
	fields := make([]models.TemplateField, 0, len(names))
	for i, name := range names {
		fields = append(fields, models.TemplateField{
			Name:     name,
			Label:    render.LabelFor(name),
			Type:     guessType(name),
			Position: i,
		})
	}
	return fields
}

func guessType(name string) models.FieldType {
	n := strings.ToLower(name)
	switch {
	case strings.Contains(n, "email"):
		return models.FieldEmail
	case strings.Contains(n, "telefone"), strings.Contains(n, "phone"), strings.Contains(n, "celular"):
		return models.FieldPhone
	case strings.HasPrefix(n, "data"), strings.HasSuffix(n, "_date"), n == "date":
		return models.FieldDate
	case strings.Contains(n, "valor"), strings.Contains(n, "preco"), strings.Contains(n, "total"):
		return models.FieldCurrency
	case strings.Contains(n, "observa"), strings.Contains(n, "descricao"):
		return models.FieldTextarea
	}
	return models.FieldText
}

// normalizeFields validates fields and assigns positions in slice order.
func normalizeFields(op string, in []models.TemplateField) ([]models.TemplateField, error) {
	seen := make(map[string]bool, len(in))
	out := make([]models.TemplateField, len(in))
	for i, f := range in {
		f.Name = strings.TrimSpace(f.Name)
		if !fieldNameRE.MatchString(f.Name) {
			return nil, apperr.Validation(op, "fields", fmt.Sprintf("field %d: name %q must use letters, digits or _", i, f.Name))
		}
		if seen[f.Name] {
			return nil, apperr.Validation(op, "fields", fmt.Sprintf("duplicate field %q", f.Name))
		}
		seen[f.Name] = true

		if f.Type == "" {
			f.Type = models.FieldText
		}
		if !f.Type.Valid() {
			return nil, apperr.Validation(op, "fields", fmt.Sprintf("field %q: unknown type %q", f.Name, f.Type))
		}
		if f.DataSource == "" {
			f.DataSource = models.SourceNone
		}
		if !f.DataSource.Valid() {
			return nil, apperr.Validation(op, "fields", fmt.Sprintf("field %q: unknown data source %q", f.Name, f.DataSource))
		}
		if f.DataSource.Bound() && strings.TrimSpace(f.SourceAttribute) == "" {
			return nil, apperr.Validation(op, "fields", fmt.Sprintf("field %q: bound fields need a source attribute", f.Name))
		}
		if strings.TrimSpace(f.Label) == "" {
			f.Label = render.LabelFor(f.Name)
		}
		f.ID = uuid.Nil
		f.TemplateID = uuid.Nil
		f.Position = i
		out[i] = f
	}
	return out, nil
}

func storageErr(op string, err error) error {
	if err == nil || apperr.KindOf(err) != apperr.KindUnknown {
		return err
	}
	return apperr.Integration(op, err)
}

func snapshot(t *models.Template) map[string]any {
	fields := make([]string, len(t.Fields))
	for i, f := range t.Fields {
		fields[i] = f.Name + ":" + string(f.Type)
	}
	var category any
	if t.CategoryID != nil {
		category = t.CategoryID.String()
	}
	return map[string]any{
		"name":        t.Name,
		"description": t.Description,
		"body":        t.Body,
		"version":     t.Version,
		"is_active":   t.IsActive,
		"category_id": category,
		"fields":      fields,
	}
}
