package documents

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"

	"docsign/internal/models"
)

const (
	codeLength   = 8
	codeAttempts = 5
	codeCharset  = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

func generateCode(length int) (string, error) {
	return readCode(rand.Reader, length)
}

// readCode draws length characters from codeCharset. Bytes at or above the
// largest multiple of len(codeCharset) are discarded so every character is
// equally likely.
func readCode(r io.Reader, length int) (string, error) {
	limit := byte(256 - 256%len(codeCharset))
	code := make([]byte, 0, length)
	buf := make([]byte, length)
	for len(code) < length {
		if _, err := io.ReadFull(r, buf); err != nil {
			return "", fmt.Errorf("generate validation code: %w", err)
		}
		for _, c := range buf {
			if c >= limit {
				continue
			}
			code = append(code, codeCharset[int(c)%len(codeCharset)])
			if len(code) == length {
				break
			}
		}
	}
	return string(code), nil
}

// assignCode gives doc a fresh validation code unless it already has one.
func assignCode(ctx context.Context, tx *models.DB, doc *models.GeneratedDocument) error {
	if doc.ValidationCode != nil && *doc.ValidationCode != "" {
		return nil
	}
	for i := 0; i < codeAttempts; i++ {
		code, err := generateCode(codeLength)
		if err != nil {
			return err
		}
		taken, err := tx.Documents.CodeExists(ctx, code)
		if err != nil {
			return err
		}
		if !taken {
			doc.ValidationCode = &code
			return nil
		}
	}
	return fmt.Errorf("could not allocate a unique validation code after %d attempts", codeAttempts)
}
