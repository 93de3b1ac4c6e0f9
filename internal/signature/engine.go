package signature

import (
	"context"
	"net"
	"strings"
	"time"

	"docsign/internal/apperr"
	"docsign/internal/documents"
	"docsign/internal/logger"
	"docsign/internal/models"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// SignerInfo identifies who is signing.
type SignerInfo struct {
	Type           models.SignerType `json:"signer_type"`
	Name           string            `json:"signer_name"`
	Email          string            `json:"signer_email"`
	DocumentNumber string            `json:"signer_document_number"`
}

// Metadata is what the calling environment knows about the signer's client.
type Metadata struct {
	ClientIP  string
	UserAgent string
}

type Result struct {
	Document  *models.GeneratedDocument `json:"document"`
	Signature *models.SignatureRecord   `json:"signature"`
}

type Engine struct {
	docs      *documents.Service
	images    ImageStore
	resolver  IPResolver
	ipTimeout time.Duration
	log       *logger.Logger
	now       func() time.Time
}

// NewEngine wires the capture flow. A nil store keeps images inline; a nil
// resolver disables the outbound IP lookup.
func NewEngine(docs *documents.Service, images ImageStore, resolver IPResolver, ipTimeout time.Duration, log *logger.Logger) *Engine {
	if images == nil {
		images = InlineImageStore{}
	}
	if resolver == nil {
		resolver = NoopResolver{}
	}
	if ipTimeout <= 0 {
		ipTimeout = 3 * time.Second
	}
	return &Engine{
		docs:      docs,
		images:    images,
		resolver:  resolver,
		ipTimeout: ipTimeout,
		log:       log.With("component", "signature"),
		now:       func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
	}
}

// Capture records a signature on a finalized or sent document and moves it to
// signed. Nothing is written when the image or signer is invalid. The stored
// image is removed again if the document transition fails.
func (e *Engine) Capture(ctx context.Context, actor string, documentID uuid.UUID, signer SignerInfo, image string, meta Metadata) (*Result, error) {
	const op = "signature.Capture"

	data, mimeType, err := DecodeImage(image)
	if err != nil {
		return nil, err
	}
	signer.Name = strings.TrimSpace(signer.Name)
	signer.DocumentNumber = strings.TrimSpace(signer.DocumentNumber)
	if signer.Name == "" {
		return nil, apperr.Validation(op, "signer_name", "signer name is required")
	}

	doc, err := e.docs.Get(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc.Status == models.StatusSigned {
		return nil, apperr.Conflict(op, apperr.ErrAlreadySigned)
	}
	if !documents.CanTransition(doc.Status, models.StatusSigned) {
		return nil, apperr.Conflict(op, apperr.ErrInvalidTransition)
	}

	capturedAt := e.now()
	hash := ComputeHash(documentID.String(), signer.Name, signer.DocumentNumber, capturedAt)

	var (
		ip       = clientIP(meta.ClientIP)
		imageRef string
	)
	g, gctx := errgroup.WithContext(ctx)
	if ip == "" {
		g.Go(func() error {
			ip = e.lookupIP(gctx)
			return nil
		})
	}
	g.Go(func() error {
		ref, err := e.images.PutSignatureImage(gctx, documentID, data, mimeType)
		if err != nil {
			return err
		}
		imageRef = ref
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, apperr.Integration(op, err)
	}

	signed, record, err := e.docs.Sign(ctx, actor, documentID, documents.SignInput{
		SignerType:           signer.Type,
		SignerName:           signer.Name,
		SignerEmail:          signer.Email,
		SignerDocumentNumber: signer.DocumentNumber,
		SignatureImage:       imageRef,
		SignatureHash:        hash,
		CapturedIP:           ip,
		CapturedUserAgent:    meta.UserAgent,
		CapturedAt:           capturedAt,
	})
	if err != nil {
		if delErr := e.images.DeleteSignatureImage(context.WithoutCancel(ctx), imageRef); delErr != nil {
			e.log.Error("failed to remove orphaned signature image", "document_id", documentID, "error", delErr)
		}
		return nil, err
	}

	return &Result{Document: signed, Signature: record}, nil
}

// lookupIP asks the resolver within the configured timeout. Failures are
// logged and yield UnknownIP.
func (e *Engine) lookupIP(ctx context.Context) string {
	ctx, cancel := context.WithTimeout(ctx, e.ipTimeout)
	defer cancel()

	ip, err := e.resolver.ResolveIP(ctx)
	if err != nil || ip == "" {
		e.log.Debug("ip lookup failed", "error", err)
		return UnknownIP
	}
	return ip
}

// clientIP returns addr when it is a usable public address, else "".
func clientIP(addr string) string {
	ip := net.ParseIP(strings.TrimSpace(addr))
	if ip == nil || ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() {
		return ""
	}
	return ip.String()
}
