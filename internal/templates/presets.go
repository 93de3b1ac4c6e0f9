package templates

import (
	"context"
	_ "embed"
	"fmt"

	"docsign/internal/apperr"
	"docsign/internal/audit"
	"docsign/internal/models"

	"gopkg.in/yaml.v3"
)

//go:embed presets.yaml
var presetsYAML []byte

// Preset is a built-in template shipped with the service.
type Preset struct {
	Name        string        `yaml:"name"`
	Category    string        `yaml:"category"`
	Description string        `yaml:"description"`
	Body        string        `yaml:"body"`
	Fields      []PresetField `yaml:"fields"`
}

type PresetField struct {
	Name            string `yaml:"name"`
	Label           string `yaml:"label"`
	Type            string `yaml:"type"`
	Placeholder     string `yaml:"placeholder"`
	Default         string `yaml:"default"`
	Required        bool   `yaml:"required"`
	Group           string `yaml:"group"`
	SourceAttribute string `yaml:"source_attribute"`
}

// Presets parses the embedded preset file.
func Presets() ([]Preset, error) {
	var doc struct {
		Templates []Preset `yaml:"templates"`
	}
	if err := yaml.Unmarshal(presetsYAML, &doc); err != nil {
		return nil, fmt.Errorf("parse presets: %w", err)
	}
	return doc.Templates, nil
}

func (p Preset) fields() []models.TemplateField {
	out := make([]models.TemplateField, len(p.Fields))
	for i, f := range p.Fields {
		out[i] = models.TemplateField{
			Name:         f.Name,
			Label:        f.Label,
			Type:         models.FieldType(f.Type),
			Placeholder:  f.Placeholder,
			DefaultValue: f.Default,
			Required:     f.Required,
			Group:        f.Group,
			DataSource:   models.SourceNone,
		}
		if f.SourceAttribute != "" {
			out[i].DataSource = models.SourceEntityAttribute
			out[i].SourceAttribute = f.SourceAttribute
		}
	}
	return out
}

// SeedPresets creates the preset categories and templates that do not exist
// yet, matched by slug and name. It returns how many templates were created.
func (s *Service) SeedPresets(ctx context.Context, actor string) (int, error) {
	const op = "templates.SeedPresets"
	presets, err := Presets()
	if err != nil {
		return 0, err
	}

	created := 0
	err = s.db.Transaction(ctx, func(tx *models.DB) error {
		categories := map[string]*models.TemplateCategory{}
		for _, p := range presets {
			if _, err := tx.Templates.GetByName(ctx, p.Name); err == nil {
				continue
			} else if !apperr.IsNotFound(err) {
				return err
			}

			fields, err := normalizeFields(op, p.fields())
			if err != nil {
				return fmt.Errorf("preset %q: %w", p.Name, err)
			}
			tmpl := &models.Template{Name: p.Name, Description: p.Description, Body: p.Body, IsActive: true, Fields: fields}

			if p.Category != "" {
				category, err := ensureCategory(ctx, tx, categories, p.Category)
				if err != nil {
					return err
				}
				tmpl.CategoryID = &category.ID
			}
			if err := tx.Templates.Create(ctx, tmpl); err != nil {
				return err
			}
			if err := s.audit.Record(ctx, tx, audit.Event{
				Actor: actor, Action: models.ActionCreate,
				EntityType: models.EntityTemplate, EntityID: tmpl.ID.String(),
				After: snapshot(tmpl),
			}); err != nil {
				return err
			}
			created++
		}
		return nil
	})
	if err != nil {
		return 0, storageErr(op, err)
	}
	if created > 0 {
		s.log.Info("preset templates seeded", "created", created)
	}
	return created, nil
}

func ensureCategory(ctx context.Context, tx *models.DB, cache map[string]*models.TemplateCategory, name string) (*models.TemplateCategory, error) {
	slug := Slugify(name)
	if c, ok := cache[slug]; ok {
		return c, nil
	}
	c, err := tx.Categories.GetBySlug(ctx, slug)
	if apperr.IsNotFound(err) {
		c = &models.TemplateCategory{Name: name, Slug: slug}
		err = tx.Categories.Create(ctx, c)
	}
	if err != nil {
		return nil, err
	}
	cache[slug] = c
	return c, nil
}
