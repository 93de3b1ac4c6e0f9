package signature

import (
	"bytes"
	"context"
	"encoding/base64"
	"strings"
	"testing"

	"docsign/internal/apperr"

	"github.com/google/uuid"
)

var (
	pngBytes   = append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 32)...)
	jpegBytes  = append([]byte("\xff\xd8\xff\xe0"), bytes.Repeat([]byte{0}, 32)...)
	pngDataURL = "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngBytes)
)

func TestDecodeImageAccepts(t *testing.T) {
	cases := map[string]struct {
		raw  string
		mime string
	}{
		"png data url": {pngDataURL, "image/png"},
		"bare base64":  {base64.StdEncoding.EncodeToString(jpegBytes), "image/jpeg"},
		"unpadded":     {base64.RawStdEncoding.EncodeToString(pngBytes), "image/png"},
	}
	for name, tc := range cases {
		data, mime, err := DecodeImage(tc.raw)
		if err != nil {
			t.Errorf("%s: %v", name, err)
			continue
		}
		if mime != tc.mime || len(data) == 0 {
			t.Errorf("%s: mime %s len %d", name, mime, len(data))
		}
	}
}

func TestDecodeImageRejects(t *testing.T) {
	huge := base64.StdEncoding.EncodeToString(append(pngBytes, make([]byte, maxImageBytes)...))
	cases := map[string]string{
		"empty":       "  ",
		"not base64":  "data:image/png;base64,@@@",
		"not encoded": "data:image/png,rawbytes",
		"text":        base64.StdEncoding.EncodeToString([]byte("hello world")),
		"too large":   huge,
	}
	for name, raw := range cases {
		_, _, err := DecodeImage(raw)
		if !apperr.IsValidation(err) || apperr.FieldOf(err) != "signature_image" {
			t.Errorf("%s: expected signature_image validation error, got %v", name, err)
		}
	}
}

func TestInlineImageStore(t *testing.T) {
	ref, err := InlineImageStore{}.PutSignatureImage(context.Background(), uuid.New(), pngBytes, "image/png")
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if !strings.HasPrefix(ref, "data:image/png;base64,") {
		t.Errorf("ref = %q", ref)
	}
	data, _, err := DecodeImage(ref)
	if err != nil || !bytes.Equal(data, pngBytes) {
		t.Errorf("inline ref does not round trip: %v", err)
	}
}
