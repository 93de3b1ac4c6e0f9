// Package documents implements the generated document lifecycle:
// draft → finalized → sent → signed, plus an explicit status override.
package documents

import (
	"context"
	"fmt"
	"strings"
	"time"

	"docsign/internal/apperr"
	"docsign/internal/audit"
	"docsign/internal/binder"
	"docsign/internal/logger"
	"docsign/internal/models"
	"docsign/internal/notify"
	"docsign/internal/render"

	"github.com/google/uuid"
)

// Archiver keeps a copy of finalized snapshots outside the database.
type Archiver interface {
	ArchiveSnapshot(ctx context.Context, documentID uuid.UUID, content []byte) (string, error)
	LoadSnapshot(ctx context.Context, key string) ([]byte, error)
	DeleteFile(ctx context.Context, key string) error
}

// ImageRemover deletes stored signature images when a document is deleted.
type ImageRemover interface {
	DeleteSignatureImage(ctx context.Context, ref string) error
}

// CodeInvalidator is told when the public view of a validation code changes.
type CodeInvalidator interface {
	Invalidate(ctx context.Context, code string)
}

type Options struct {
	Archiver     Archiver
	Images       ImageRemover
	Notifier     notify.Publisher
	Invalidator  CodeInvalidator
	AuditDeletes bool
}

type Service struct {
	db        *models.DB
	binder    *binder.Binder
	formatter *render.Formatter
	audit     *audit.Recorder
	log       *logger.Logger
	opts      Options
	now       func() time.Time
}

func NewService(db *models.DB, b *binder.Binder, f *render.Formatter, rec *audit.Recorder, log *logger.Logger, opts Options) *Service {
	if opts.Notifier == nil {
		opts.Notifier = notify.Nop{}
	}
	return &Service{
		db:        db,
		binder:    b,
		formatter: f,
		audit:     rec,
		log:       log.With("component", "documents"),
		opts:      opts,
		now:       func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
	}
}

type CreateInput struct {
	TemplateID uuid.UUID         `json:"template_id"`
	Title      string            `json:"title"`
	Values     map[string]string `json:"values"`
	EntityID   string            `json:"entity_id"`
}

// UpdateInput changes a draft. Nil fields are left as they are. A non-zero
// Version must match the stored version.
type UpdateInput struct {
	Title    *string           `json:"title"`
	Values   map[string]string `json:"values"`
	EntityID *string           `json:"entity_id"`
	Version  int               `json:"version"`
}

// SignInput is the already-captured signature written by Sign.
type SignInput struct {
	SignerType           models.SignerType
	SignerName           string
	SignerEmail          string
	SignerDocumentNumber string
	SignatureImage       string
	SignatureHash        string
	CapturedIP           string
	CapturedUserAgent    string
	CapturedAt           time.Time
}

type Preview struct {
	Content string            `json:"content"`
	Values  map[string]string `json:"values"`
	Missing []string          `json:"missing"`
}

type Export struct {
	Content string `json:"content"`
	Source  string `json:"source"`
}

// Create renders a new draft from a template and the given values.
func (s *Service) Create(ctx context.Context, actor string, in CreateInput) (*models.GeneratedDocument, error) {
	const op = "documents.Create"

	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, apperr.Validation(op, "title", "title is required")
	}
	if in.TemplateID == uuid.Nil {
		return nil, apperr.Validation(op, "template_id", "template is required")
	}

	tmpl, err := s.loadTemplate(ctx, s.db, op, in.TemplateID)
	if err != nil {
		return nil, err
	}
	values, err := s.binder.Resolve(ctx, tmpl.Fields, in.Values, in.EntityID)
	if err != nil {
		return nil, err
	}
	if err := requireFields(op, tmpl.Fields, values); err != nil {
		return nil, err
	}

	doc := &models.GeneratedDocument{
		TemplateID: tmpl.ID,
		Title:      title,
		Content:    render.Render(tmpl.Body, tmpl.Fields, values, s.formatter),
		Status:     models.StatusDraft,
	}
	if in.EntityID != "" {
		entityID := in.EntityID
		doc.EntityID = &entityID
	}
	doc.SetValues(values)

	err = s.db.Transaction(ctx, func(tx *models.DB) error {
		if err := tx.Documents.Create(ctx, doc); err != nil {
			return err
		}
		return s.audit.Record(ctx, tx, audit.Event{
			Actor: actor, Action: models.ActionCreate,
			EntityType: models.EntityDocument, EntityID: doc.ID.String(),
			After: snapshot(doc),
		})
	})
	if err != nil {
		return nil, storageErr(op, err)
	}

	s.log.Info("document created", "document_id", doc.ID, "template_id", tmpl.ID, "actor", actor)
	return doc, nil
}

// Preview renders without persisting. Missing required fields are reported,
// not rejected.
func (s *Service) Preview(ctx context.Context, in CreateInput) (*Preview, error) {
	const op = "documents.Preview"
	if in.TemplateID == uuid.Nil {
		return nil, apperr.Validation(op, "template_id", "template is required")
	}
	tmpl, err := s.loadTemplate(ctx, s.db, op, in.TemplateID)
	if err != nil {
		return nil, err
	}
	values, err := s.binder.Resolve(ctx, tmpl.Fields, in.Values, in.EntityID)
	if err != nil {
		return nil, err
	}
	return &Preview{
		Content: render.Render(tmpl.Body, tmpl.Fields, values, s.formatter),
		Values:  values,
		Missing: binder.MissingRequired(tmpl.Fields, values),
	}, nil
}

// UpdateDraft re-binds and re-renders a document that is still a draft.
func (s *Service) UpdateDraft(ctx context.Context, actor string, id uuid.UUID, in UpdateInput) (*models.GeneratedDocument, error) {
	const op = "documents.UpdateDraft"
	doc, err := s.mutate(ctx, op, actor, id, func(tx *models.DB, doc *models.GeneratedDocument) error {
		if in.Version != 0 && in.Version != doc.Version {
			return apperr.Conflict(op, apperr.ErrVersionConflict)
		}
		if doc.Status != models.StatusDraft {
			return apperr.Conflict(op, fmt.Errorf("%w: only drafts can be edited (status %s)", apperr.ErrInvalidTransition, doc.Status))
		}
		if in.Title != nil {
			title := strings.TrimSpace(*in.Title)
			if title == "" {
				return apperr.Validation(op, "title", "title is required")
			}
			doc.Title = title
		}
		if in.EntityID != nil {
			if *in.EntityID == "" {
				doc.EntityID = nil
			} else {
				entityID := *in.EntityID
				doc.EntityID = &entityID
			}
		}

		tmpl, err := s.loadTemplate(ctx, tx, op, doc.TemplateID)
		if err != nil {
			return err
		}
		values := doc.Values()
		if in.Values != nil {
			values = in.Values
		}
		entityID := ""
		if doc.EntityID != nil {
			entityID = *doc.EntityID
		}
		values, err = s.binder.Resolve(ctx, tmpl.Fields, values, entityID)
		if err != nil {
			return err
		}
		if err := requireFields(op, tmpl.Fields, values); err != nil {
			return err
		}
		doc.SetValues(values)
		doc.Content = render.Render(tmpl.Body, tmpl.Fields, values, s.formatter)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, doc.ValidationCode)
	return doc, nil
}

// Finalize freezes the rendered snapshot. When an archiver is configured the
// snapshot is also copied to object storage; archive failures are logged and
// do not block finalization.
func (s *Service) Finalize(ctx context.Context, actor string, id uuid.UUID) (*models.GeneratedDocument, error) {
	const op = "documents.Finalize"
	var archived string
	doc, err := s.mutate(ctx, op, actor, id, func(tx *models.DB, doc *models.GeneratedDocument) error {
		if err := checkTransition(op, doc.Status, models.StatusFinalized); err != nil {
			return err
		}
		now := s.now()
		doc.Status = models.StatusFinalized
		doc.FinalizedAt = &now

		if s.opts.Archiver != nil {
			key, err := s.opts.Archiver.ArchiveSnapshot(ctx, doc.ID, []byte(doc.Content))
			if err != nil {
				s.log.Warn("snapshot archive failed", "document_id", doc.ID, "error", err)
			} else {
				archived = key
				doc.ArchiveKey = &key
			}
		}
		return nil
	})
	if err != nil {
		if archived != "" {
			if delErr := s.opts.Archiver.DeleteFile(context.WithoutCancel(ctx), archived); delErr != nil {
				s.log.Error("failed to remove orphaned snapshot", "key", archived, "error", delErr)
			}
		}
		return nil, err
	}
	s.invalidate(ctx, doc.ValidationCode)
	s.log.Info("document finalized", "document_id", doc.ID, "actor", actor, "archived", archived != "")
	return doc, nil
}

// Send records the delivery target and publishes a notification event.
// Delivery itself is left to the notification consumer.
func (s *Service) Send(ctx context.Context, actor string, id uuid.UUID, to string) (*models.GeneratedDocument, error) {
	const op = "documents.Send"
	to = strings.TrimSpace(to)
	if to == "" {
		return nil, apperr.Validation(op, "sent_to", "recipient is required")
	}

	doc, err := s.mutate(ctx, op, actor, id, func(tx *models.DB, doc *models.GeneratedDocument) error {
		if err := checkTransition(op, doc.Status, models.StatusSent); err != nil {
			return err
		}
		now := s.now()
		doc.Status = models.StatusSent
		doc.SentTo = &to
		doc.SentAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, doc.ValidationCode)

	ev := notify.DocumentSent{
		EventType:  notify.EventDocumentSent,
		DocumentID: doc.ID.String(),
		Title:      doc.Title,
		SentTo:     to,
		SentAt:     *doc.SentAt,
		Actor:      actor,
	}
	if doc.ValidationCode != nil {
		ev.ValidationCode = *doc.ValidationCode
	}
	s.opts.Notifier.PublishDocumentSent(ctx, ev)

	s.log.Info("document sent", "document_id", doc.ID, "actor", actor)
	return doc, nil
}

// Sign stores the signature record and moves the document to signed in one
// transaction. A document keeps its validation code once assigned.
func (s *Service) Sign(ctx context.Context, actor string, id uuid.UUID, in SignInput) (*models.GeneratedDocument, *models.SignatureRecord, error) {
	const op = "documents.Sign"
	if strings.TrimSpace(in.SignatureImage) == "" {
		return nil, nil, apperr.Validation(op, "signature_image", "a captured signature image is required")
	}
	if strings.TrimSpace(in.SignerName) == "" {
		return nil, nil, apperr.Validation(op, "signer_name", "signer name is required")
	}
	if in.SignatureHash == "" {
		return nil, nil, apperr.Validation(op, "signature_hash", "signature hash is required")
	}
	if in.SignerType == "" {
		in.SignerType = models.SignerClient
	}
	if !in.SignerType.Valid() {
		return nil, nil, apperr.Validation(op, "signer_type", fmt.Sprintf("unknown signer type %q", in.SignerType))
	}
	if in.CapturedAt.IsZero() {
		in.CapturedAt = s.now()
	}

	var record *models.SignatureRecord
	doc, err := s.mutate(ctx, op, actor, id, func(tx *models.DB, doc *models.GeneratedDocument) error {
		if err := checkTransition(op, doc.Status, models.StatusSigned); err != nil {
			return err
		}
		record = &models.SignatureRecord{
			DocumentID:           doc.ID,
			SignerType:           in.SignerType,
			SignerName:           strings.TrimSpace(in.SignerName),
			SignerEmail:          strings.TrimSpace(in.SignerEmail),
			SignerDocumentNumber: strings.TrimSpace(in.SignerDocumentNumber),
			SignatureImage:       in.SignatureImage,
			SignatureHash:        in.SignatureHash,
			CapturedIP:           in.CapturedIP,
			CapturedUserAgent:    in.CapturedUserAgent,
			CapturedAt:           in.CapturedAt,
		}
		if err := tx.Signatures.Create(ctx, record); err != nil {
			return err
		}
		if err := s.audit.Record(ctx, tx, audit.Event{
			Actor: actor, Action: models.ActionCreate,
			EntityType: models.EntitySignature, EntityID: record.ID.String(),
			After: signatureSnapshot(record),
		}); err != nil {
			return err
		}

		signedAt := in.CapturedAt
		doc.Status = models.StatusSigned
		doc.SignerName = &record.SignerName
		doc.SignedAt = &signedAt
		doc.SignatureHash = &record.SignatureHash
		doc.SignatureSourceIP = &record.CapturedIP
		return assignCode(ctx, tx, doc)
	})
	if err != nil {
		return nil, nil, err
	}

	s.invalidate(ctx, doc.ValidationCode)
	s.log.Info("document signed", "document_id", doc.ID, "signature_id", record.ID, "actor", actor)
	return doc, record, nil
}

// ForceStatus sets any valid status without lifecycle checks. It exists for
// administrative correction only; the canonical flow never calls it.
func (s *Service) ForceStatus(ctx context.Context, actor string, id uuid.UUID, status models.DocumentStatus) (*models.GeneratedDocument, error) {
	const op = "documents.ForceStatus"
	if !status.Valid() {
		return nil, apperr.Validation(op, "status", fmt.Sprintf("unknown status %q", status))
	}
	var previous models.DocumentStatus
	doc, err := s.mutate(ctx, op, actor, id, func(tx *models.DB, doc *models.GeneratedDocument) error {
		previous = doc.Status
		doc.Status = status
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, doc.ValidationCode)
	s.log.Warn("document status overridden", "document_id", doc.ID, "from", string(previous), "to", string(status), "actor", actor)
	return doc, nil
}

// Delete removes the document and its signatures immediately. The deletion
// is audited only when AuditDeletes is set.
func (s *Service) Delete(ctx context.Context, actor string, id uuid.UUID) error {
	const op = "documents.Delete"
	var (
		doc  *models.GeneratedDocument
		sigs []models.SignatureRecord
	)
	err := s.db.Transaction(ctx, func(tx *models.DB) error {
		var err error
		if doc, err = tx.Documents.Get(ctx, id); err != nil {
			return err
		}
		if sigs, err = tx.Signatures.ForDocument(ctx, id); err != nil {
			return err
		}
		if err := tx.Documents.Delete(ctx, id); err != nil {
			return err
		}
		if !s.opts.AuditDeletes {
			return nil
		}
		return s.audit.Record(ctx, tx, audit.Event{
			Actor: actor, Action: models.ActionDelete,
			EntityType: models.EntityDocument, EntityID: id.String(),
			Before: snapshot(doc),
		})
	})
	if err != nil {
		return storageErr(op, err)
	}

	cleanup := context.WithoutCancel(ctx)
	if s.opts.Images != nil {
		for _, sig := range sigs {
			if err := s.opts.Images.DeleteSignatureImage(cleanup, sig.SignatureImage); err != nil {
				s.log.Warn("failed to delete signature image", "signature_id", sig.ID, "error", err)
			}
		}
	}
	if s.opts.Archiver != nil && doc.ArchiveKey != nil {
		if err := s.opts.Archiver.DeleteFile(cleanup, *doc.ArchiveKey); err != nil {
			s.log.Warn("failed to delete archived snapshot", "document_id", id, "error", err)
		}
	}
	s.invalidate(ctx, doc.ValidationCode)
	s.log.Info("document deleted", "document_id", id, "actor", actor)
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.GeneratedDocument, error) {
	doc, err := s.db.Documents.Get(ctx, id)
	if err != nil {
		return nil, storageErr("documents.Get", err)
	}
	return doc, nil
}

func (s *Service) List(ctx context.Context, filter models.DocumentFilter) ([]models.DocumentListItem, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, apperr.Validation("documents.List", "status", fmt.Sprintf("unknown status %q", filter.Status))
	}
	items, err := s.db.Documents.Filter(ctx, filter)
	if err != nil {
		return nil, storageErr("documents.List", err)
	}
	return items, nil
}

// StatusCounts returns how many documents are in each status. Every status is
// present in the result, zero or not.
func (s *Service) StatusCounts(ctx context.Context) (map[models.DocumentStatus]int64, error) {
	counts := make(map[models.DocumentStatus]int64, len(models.AllDocumentStatus))
	for _, status := range models.AllDocumentStatus {
		n, err := models.Count[models.GeneratedDocument](s.db.WithContext(ctx), "status = ?", status)
		if err != nil {
			return nil, storageErr("documents.StatusCounts", err)
		}
		counts[status] = n
	}
	return counts, nil
}

func (s *Service) Signatures(ctx context.Context, id uuid.UUID) ([]models.SignatureRecord, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	records, err := s.db.Signatures.ForDocument(ctx, id)
	if err != nil {
		return nil, storageErr("documents.Signatures", err)
	}
	return records, nil
}

// Export returns the markup handed to the print surface: the archived copy
// when one exists, else the stored snapshot.
func (s *Service) Export(ctx context.Context, id uuid.UUID) (*Export, error) {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.opts.Archiver != nil && doc.ArchiveKey != nil {
		content, err := s.opts.Archiver.LoadSnapshot(ctx, *doc.ArchiveKey)
		if err == nil {
			return &Export{Content: string(content), Source: "archive"}, nil
		}
		s.log.Warn("archived snapshot unavailable, using database copy", "document_id", id, "error", err)
	}
	return &Export{Content: doc.Content, Source: "database"}, nil
}

// mutate loads the document under the transaction, applies fn, saves it with
// a version check and audits the before/after snapshots.
func (s *Service) mutate(ctx context.Context, op, actor string, id uuid.UUID, fn func(tx *models.DB, doc *models.GeneratedDocument) error) (*models.GeneratedDocument, error) {
	var out *models.GeneratedDocument
	err := s.db.Transaction(ctx, func(tx *models.DB) error {
		doc, err := tx.Documents.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		before := snapshot(doc)
		if err := fn(tx, doc); err != nil {
			return err
		}
		if err := tx.Documents.Save(ctx, doc); err != nil {
			return err
		}
		if err := s.audit.Record(ctx, tx, audit.Event{
			Actor: actor, Action: models.ActionUpdate,
			EntityType: models.EntityDocument, EntityID: doc.ID.String(),
			Before: before, After: snapshot(doc),
		}); err != nil {
			return err
		}
		out = doc
		return nil
	})
	if err != nil {
		return nil, storageErr(op, err)
	}
	return out, nil
}

func (s *Service) loadTemplate(ctx context.Context, db *models.DB, op string, id uuid.UUID) (*models.Template, error) {
	tmpl, err := db.Templates.Get(ctx, id)
	if err != nil {
		if apperr.IsNotFound(err) {
			return nil, apperr.Validation(op, "template_id", "template not found")
		}
		return nil, apperr.Integration(op, err)
	}
	if !tmpl.IsActive {
		return nil, apperr.Validation(op, "template_id", "template is inactive")
	}
	return tmpl, nil
}

func (s *Service) invalidate(ctx context.Context, code *string) {
	if s.opts.Invalidator != nil && code != nil && *code != "" {
		s.opts.Invalidator.Invalidate(ctx, *code)
	}
}

func requireFields(op string, fields []models.TemplateField, values map[string]string) error {
	missing := binder.MissingRequired(fields, values)
	if len(missing) == 0 {
		return nil
	}
	return apperr.Validation(op, missing[0], "required fields missing: "+strings.Join(missing, ", "))
}

func storageErr(op string, err error) error {
	if err == nil || apperr.KindOf(err) != apperr.KindUnknown {
		return err
	}
	return apperr.Integration(op, err)
}

func snapshot(doc *models.GeneratedDocument) map[string]any {
	return map[string]any{
		"title":           doc.Title,
		"template_id":     doc.TemplateID.String(),
		"entity_id":       deref(doc.EntityID),
		"status":          string(doc.Status),
		"filled_values":   doc.Values(),
		"finalized_at":    timeOrNil(doc.FinalizedAt),
		"sent_to":         deref(doc.SentTo),
		"sent_at":         timeOrNil(doc.SentAt),
		"signer_name":     deref(doc.SignerName),
		"signed_at":       timeOrNil(doc.SignedAt),
		"signature_hash":  deref(doc.SignatureHash),
		"validation_code": deref(doc.ValidationCode),
	}
}

// signatureSnapshot leaves out the image and the signer's document number.
func signatureSnapshot(rec *models.SignatureRecord) map[string]any {
	return map[string]any{
		"document_id":    rec.DocumentID.String(),
		"signer_type":    string(rec.SignerType),
		"signer_name":    rec.SignerName,
		"signer_email":   rec.SignerEmail,
		"signature_hash": rec.SignatureHash,
		"captured_ip":    rec.CapturedIP,
		"captured_at":    rec.CapturedAt.UTC().Format(time.RFC3339Nano),
	}
}

func deref(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func timeOrNil(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}
