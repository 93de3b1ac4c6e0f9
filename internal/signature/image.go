package signature

import (
	"context"
	"encoding/base64"
	"net/http"
	"strings"

	"docsign/internal/apperr"

	"github.com/google/uuid"
)

const maxImageBytes = 2 << 20

// ImageStore persists signature images and returns a reference stored on the
// signature record.
type ImageStore interface {
	PutSignatureImage(ctx context.Context, documentID uuid.UUID, data []byte, mimeType string) (string, error)
	DeleteSignatureImage(ctx context.Context, ref string) error
}

// InlineImageStore keeps the image in the record itself as a data URL.
type InlineImageStore struct{}

func (InlineImageStore) PutSignatureImage(_ context.Context, _ uuid.UUID, data []byte, mimeType string) (string, error) {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

func (InlineImageStore) DeleteSignatureImage(context.Context, string) error { return nil }

// DecodeImage accepts a data URL ("data:image/png;base64,...") or bare base64
// and returns the image bytes and their sniffed MIME type. Only PNG and JPEG
// are accepted.
func DecodeImage(raw string) ([]byte, string, error) {
	const op = "signature.DecodeImage"
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, "", apperr.Validation(op, "signature_image", "a captured signature image is required")
	}
	if strings.HasPrefix(s, "data:") {
		comma := strings.IndexByte(s, ',')
		if comma < 0 || !strings.HasSuffix(s[:comma], ";base64") {
			return nil, "", apperr.Validation(op, "signature_image", "signature image must be a base64 data URL")
		}
		s = s[comma+1:]
	}

	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		if data, err = base64.RawStdEncoding.DecodeString(s); err != nil {
			return nil, "", apperr.Validation(op, "signature_image", "signature image is not valid base64")
		}
	}
	if len(data) == 0 {
		return nil, "", apperr.Validation(op, "signature_image", "signature image is empty")
	}
	if len(data) > maxImageBytes {
		return nil, "", apperr.Validation(op, "signature_image", "signature image is too large")
	}

	mimeType := http.DetectContentType(data)
	switch mimeType {
	case "image/png", "image/jpeg":
		return data, mimeType, nil
	default:
		return nil, "", apperr.Validation(op, "signature_image", "signature image must be PNG or JPEG")
	}
}
