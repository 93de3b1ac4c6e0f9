package models_test

import (
	"context"
	"errors"
	"testing"

	"docsign/internal/apperr"
	"docsign/internal/models"
	"docsign/internal/testutil"

	"github.com/google/uuid"
)

func TestTemplateCreateLoadsFieldsInOrder(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	tmpl := testutil.CreateQuoteTemplate(t, db)

	got, err := db.Templates.Get(ctx, tmpl.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Version != 1 || !got.IsActive {
		t.Errorf("unexpected template state: version=%d active=%v", got.Version, got.IsActive)
	}
	want := []string{"cliente_nome", "data", "valor_total", "observacoes"}
	if len(got.Fields) != len(want) {
		t.Fatalf("expected %d fields, got %d", len(want), len(got.Fields))
	}
	for i, f := range got.Fields {
		if f.Name != want[i] {
			t.Errorf("field %d = %s, want %s", i, f.Name, want[i])
		}
	}
	if got.Fields[1].DataSource != models.SourceNone {
		t.Errorf("data source default = %q", got.Fields[1].DataSource)
	}
}

func TestTemplateDeleteRemovesFields(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	tmpl := testutil.CreateQuoteTemplate(t, db)

	if err := db.Templates.Delete(ctx, tmpl.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	fields, err := db.Fields.ForTemplate(ctx, tmpl.ID)
	if err != nil {
		t.Fatalf("ForTemplate: %v", err)
	}
	if len(fields) != 0 {
		t.Errorf("expected fields removed, got %d", len(fields))
	}
	if _, err := db.Templates.Get(ctx, tmpl.ID); !apperr.IsNotFound(err) {
		t.Errorf("expected not found, got %v", err)
	}
	if err := db.Templates.Delete(ctx, tmpl.ID); !apperr.IsNotFound(err) {
		t.Errorf("second delete: expected not found, got %v", err)
	}
}

func TestDocumentSaveChecksVersion(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()

	doc := &models.GeneratedDocument{TemplateID: uuid.New(), Title: "Proposta", Content: "<p>x</p>"}
	doc.SetValues(models.FieldValues{"a": "1"})
	if err := db.Documents.Create(ctx, doc); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if doc.Status != models.StatusDraft || doc.Version != 1 {
		t.Fatalf("unexpected defaults: %s v%d", doc.Status, doc.Version)
	}

	stale, err := db.Documents.Get(ctx, doc.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	doc.Title = "Proposta revisada"
	if err := db.Documents.Save(ctx, doc); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if doc.Version != 2 {
		t.Errorf("version = %d, want 2", doc.Version)
	}

	stale.Title = "Outro título"
	err = db.Documents.Save(ctx, stale)
	if !errors.Is(err, apperr.ErrVersionConflict) || !apperr.IsConflict(err) {
		t.Fatalf("expected version conflict, got %v", err)
	}
	if stale.Version != 1 {
		t.Errorf("stale version should be restored, got %d", stale.Version)
	}

	stored, err := db.Documents.Get(ctx, doc.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stored.Title != "Proposta revisada" {
		t.Errorf("title = %q", stored.Title)
	}
	if stored.Values()["a"] != "1" {
		t.Errorf("values lost: %v", stored.Values())
	}
}

func TestDocumentValidationCodeLookup(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()

	code := "AB12CD34"
	doc := &models.GeneratedDocument{TemplateID: uuid.New(), Title: "Contrato", Content: "c", ValidationCode: &code}
	if err := db.Documents.Create(ctx, doc); err != nil {
		t.Fatalf("Create: %v", err)
	}

	found, err := db.Documents.GetByValidationCode(ctx, code)
	if err != nil {
		t.Fatalf("GetByValidationCode: %v", err)
	}
	if found.ID != doc.ID {
		t.Errorf("found %s, want %s", found.ID, doc.ID)
	}
	if _, err := db.Documents.GetByValidationCode(ctx, "ZZZZZZZZ"); !apperr.IsNotFound(err) {
		t.Errorf("expected not found, got %v", err)
	}
	exists, err := db.Documents.CodeExists(ctx, code)
	if err != nil || !exists {
		t.Errorf("CodeExists = %v, %v", exists, err)
	}

	dup := &models.GeneratedDocument{TemplateID: uuid.New(), Title: "Outro", Content: "c", ValidationCode: &code}
	if err := db.Documents.Create(ctx, dup); err == nil {
		t.Error("expected unique violation for duplicate validation code")
	}
}

func TestDocumentFilterJoinsTemplateName(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	tmpl := testutil.CreateQuoteTemplate(t, db)

	for _, title := range []string{"Orçamento ACME", "Orçamento Beta"} {
		doc := &models.GeneratedDocument{TemplateID: tmpl.ID, Title: title, Content: "c"}
		if err := db.Documents.Create(ctx, doc); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	items, err := db.Documents.Filter(ctx, models.DocumentFilter{Search: "acme"})
	if err != nil {
		t.Fatalf("Filter: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	if items[0].TemplateName == nil || *items[0].TemplateName != "Orçamento" {
		t.Errorf("template name = %v", items[0].TemplateName)
	}
	if items[0].Status != models.StatusDraft {
		t.Errorf("status = %s", items[0].Status)
	}
}

func TestDocumentDeleteRemovesSignatures(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()

	doc := &models.GeneratedDocument{TemplateID: uuid.New(), Title: "Contrato", Content: "c"}
	if err := db.Documents.Create(ctx, doc); err != nil {
		t.Fatalf("Create: %v", err)
	}
	rec := &models.SignatureRecord{DocumentID: doc.ID, SignerName: "Maria", SignatureImage: "data:image/png;base64,AA==", SignatureHash: "h"}
	if err := db.Signatures.Create(ctx, rec); err != nil {
		t.Fatalf("Create signature: %v", err)
	}
	if rec.SignerType != models.SignerClient || rec.CapturedAt.IsZero() {
		t.Errorf("signature defaults not applied: %+v", rec)
	}

	if err := db.Documents.Delete(ctx, doc.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	sigs, err := db.Signatures.ForDocument(ctx, doc.ID)
	if err != nil {
		t.Fatalf("ForDocument: %v", err)
	}
	if len(sigs) != 0 {
		t.Errorf("expected signatures removed, got %d", len(sigs))
	}
}

func TestAuditEntriesAreAppendOnly(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()

	entry := &models.AuditEntry{
		Actor:      "ana",
		Action:     models.ActionCreate,
		EntityType: models.EntityTemplate,
		EntityID:   uuid.NewString(),
		After:      map[string]interface{}{"name": "Orçamento"},
	}
	if err := db.Audit.Create(ctx, entry); err != nil {
		t.Fatalf("Create: %v", err)
	}

	entry.Actor = "mallory"
	if err := db.Save(entry).Error; !errors.Is(err, models.ErrAuditImmutable) {
		t.Errorf("update: expected ErrAuditImmutable, got %v", err)
	}
	if err := db.Delete(entry).Error; !errors.Is(err, models.ErrAuditImmutable) {
		t.Errorf("delete: expected ErrAuditImmutable, got %v", err)
	}

	entries, err := db.Audit.Filter(ctx, models.AuditFilter{EntityType: models.EntityTemplate, EntityID: entry.EntityID})
	if err != nil {
		t.Fatalf("Filter: %v", err)
	}
	if len(entries) != 1 || entries[0].Actor != "ana" {
		t.Fatalf("unexpected entries: %+v", entries)
	}
	if entries[0].After["name"] != "Orçamento" {
		t.Errorf("after snapshot = %v", entries[0].After)
	}
}

func TestTransactionRollsBack(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	boom := errors.New("boom")

	var id uuid.UUID
	err := db.Transaction(ctx, func(tx *models.DB) error {
		doc := &models.GeneratedDocument{TemplateID: uuid.New(), Title: "T", Content: "c"}
		if err := tx.Documents.Create(ctx, doc); err != nil {
			return err
		}
		id = doc.ID
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if _, err := db.Documents.Get(ctx, id); !apperr.IsNotFound(err) {
		t.Errorf("expected rolled back document, got %v", err)
	}
}

func TestEnumMappingsAreExhaustive(t *testing.T) {
	for _, s := range models.AllDocumentStatus {
		if !s.Valid() || s.Label() == string(s) || s.Tone() == "" {
			t.Errorf("status %q lacks a mapping", s)
		}
	}
	for _, ft := range models.AllFieldTypes {
		if !ft.Valid() || ft.Label() == string(ft) {
			t.Errorf("field type %q lacks a label", ft)
		}
	}
	for _, a := range models.AllAuditActions {
		if !a.Valid() {
			t.Errorf("action %q invalid", a)
		}
	}
	if models.DocumentStatus("archived").Valid() {
		t.Error("unknown status reported valid")
	}
	if !models.StatusSigned.Terminal() || models.StatusSent.Terminal() {
		t.Error("only signed is terminal")
	}
}
