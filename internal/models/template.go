package models

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TemplateCategory groups templates in the admin UI (quotes, contracts, reports).
type TemplateCategory struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string    `gorm:"column:name;not null" json:"name"`
	Slug      string    `gorm:"column:slug;uniqueIndex;not null" json:"slug"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
}

func (TemplateCategory) TableName() string {
	return "template_categories"
}

func (c *TemplateCategory) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// Template is a reusable document skeleton whose body carries {{name}}
// placeholders.
type Template struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Name        string     `gorm:"column:name;not null" json:"name"`
	Description string     `gorm:"column:description" json:"description"`
	Body        string     `gorm:"column:body;type:text;not null" json:"body"`
	Version     int        `gorm:"column:version;not null;default:1" json:"version"`
	IsActive    bool       `gorm:"column:is_active;not null" json:"is_active"`
	CategoryID  *uuid.UUID `gorm:"type:uuid;column:category_id;index" json:"category_id,omitempty"`
	CreatedAt   time.Time  `gorm:"column:created_at" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"column:updated_at" json:"updated_at"`

	// Associations
	Category *TemplateCategory `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
	Fields   []TemplateField   `gorm:"foreignKey:TemplateID;constraint:OnDelete:CASCADE" json:"fields,omitempty"`
}

func (Template) TableName() string {
	return "templates"
}

func (t *Template) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.Version == 0 {
		t.Version = 1
	}
	return nil
}

// TemplateField is an ordered, typed input bound to one placeholder.
type TemplateField struct {
	ID              uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	TemplateID      uuid.UUID  `gorm:"type:uuid;column:template_id;not null;index;uniqueIndex:idx_template_field_name" json:"template_id"`
	Name            string     `gorm:"column:name;not null;uniqueIndex:idx_template_field_name" json:"name"`
	Label           string     `gorm:"column:label;not null" json:"label"`
	Type            FieldType  `gorm:"column:field_type;not null;default:'text'" json:"type"`
	Placeholder     string     `gorm:"column:placeholder" json:"placeholder"`
	DefaultValue    string     `gorm:"column:default_value" json:"default_value"`
	Required        bool       `gorm:"column:required;not null;default:false" json:"required"`
	Position        int        `gorm:"column:position;not null;default:0" json:"order"`
	Group           string     `gorm:"column:field_group" json:"group"`
	DataSource      DataSource `gorm:"column:data_source;not null;default:'none'" json:"data_source"`
	SourceAttribute string     `gorm:"column:source_attribute" json:"source_attribute,omitempty"`
}

func (TemplateField) TableName() string {
	return "template_fields"
}

func (f *TemplateField) BeforeCreate(tx *gorm.DB) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	if f.DataSource == "" {
		f.DataSource = SourceNone
	}
	if f.Type == "" {
		f.Type = FieldText
	}
	return nil
}

// TemplateCategoryManager provides Django-like ORM methods for TemplateCategory
type TemplateCategoryManager struct {
	db *gorm.DB
}

func NewTemplateCategoryManager(db *gorm.DB) *TemplateCategoryManager {
	return &TemplateCategoryManager{db: db}
}

func (m *TemplateCategoryManager) Create(ctx context.Context, category *TemplateCategory) error {
	return m.db.WithContext(ctx).Create(category).Error
}

func (m *TemplateCategoryManager) Get(ctx context.Context, id uuid.UUID) (*TemplateCategory, error) {
	return GetObjectOr404[TemplateCategory](m.db.WithContext(ctx), "id = ?", id)
}

func (m *TemplateCategoryManager) GetBySlug(ctx context.Context, slug string) (*TemplateCategory, error) {
	return GetObjectOr404[TemplateCategory](m.db.WithContext(ctx), "slug = ?", slug)
}

func (m *TemplateCategoryManager) All(ctx context.Context) ([]TemplateCategory, error) {
	var categories []TemplateCategory
	err := m.db.WithContext(ctx).Order("name ASC").Find(&categories).Error
	return categories, err
}

// TemplateManager provides Django-like ORM methods for Template
type TemplateManager struct {
	db *gorm.DB
}

func NewTemplateManager(db *gorm.DB) *TemplateManager {
	return &TemplateManager{db: db}
}

// Create inserts the template together with its Fields association.
func (m *TemplateManager) Create(ctx context.Context, template *Template) error {
	return m.db.WithContext(ctx).Create(template).Error
}

// Get retrieves a template with its fields in display order.
func (m *TemplateManager) Get(ctx context.Context, id uuid.UUID) (*Template, error) {
	var template Template
	err := m.db.WithContext(ctx).
		Preload("Fields", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC, name ASC") }).
		Preload("Category").
		First(&template, "id = ?", id).Error
	if err != nil {
		return nil, notFoundOr(err, "template not found")
	}
	return &template, nil
}

func (m *TemplateManager) GetByName(ctx context.Context, name string) (*Template, error) {
	return GetObjectOr404[Template](m.db.WithContext(ctx), "name = ?", name)
}

// TemplateFilter narrows Filter results. Zero values mean "any".
type TemplateFilter struct {
	CategoryID *uuid.UUID
	ActiveOnly bool
	Search     string
}

func (m *TemplateManager) Filter(ctx context.Context, filter TemplateFilter) ([]Template, error) {
	var templates []Template
	query := m.db.WithContext(ctx).Model(&Template{})
	if filter.CategoryID != nil {
		query = query.Where("category_id = ?", *filter.CategoryID)
	}
	if filter.ActiveOnly {
		query = query.Where("is_active = ?", true)
	}
	if filter.Search != "" {
		query = query.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(filter.Search)+"%")
	}
	err := query.Order("updated_at DESC").Find(&templates).Error
	return templates, err
}

// Update saves template metadata and body. Fields are managed separately.
func (m *TemplateManager) Update(ctx context.Context, template *Template) error {
	return m.db.WithContext(ctx).Omit("Fields", "Category").Save(template).Error
}

// Delete removes the template and its fields. Generated documents keep their
// rendered snapshot and are not touched.
func (m *TemplateManager) Delete(ctx context.Context, id uuid.UUID) error {
	db := m.db.WithContext(ctx)
	if err := db.Where("template_id = ?", id).Delete(&TemplateField{}).Error; err != nil {
		return err
	}
	res := db.Delete(&Template{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return notFoundOr(gorm.ErrRecordNotFound, "template not found")
	}
	return nil
}

// TemplateFieldManager provides Django-like ORM methods for TemplateField
type TemplateFieldManager struct {
	db *gorm.DB
}

func NewTemplateFieldManager(db *gorm.DB) *TemplateFieldManager {
	return &TemplateFieldManager{db: db}
}

func (m *TemplateFieldManager) ForTemplate(ctx context.Context, templateID uuid.UUID) ([]TemplateField, error) {
	var fields []TemplateField
	err := m.db.WithContext(ctx).
		Where("template_id = ?", templateID).
		Order("position ASC, name ASC").
		Find(&fields).Error
	return fields, err
}

// Replace swaps every field of a template for the given set.
func (m *TemplateFieldManager) Replace(ctx context.Context, templateID uuid.UUID, fields []TemplateField) error {
	db := m.db.WithContext(ctx)
	if err := db.Where("template_id = ?", templateID).Delete(&TemplateField{}).Error; err != nil {
		return err
	}
	if len(fields) == 0 {
		return nil
	}
	for i := range fields {
		fields[i].ID = uuid.Nil
		fields[i].TemplateID = templateID
	}
	return BulkCreate(db, fields)
}
