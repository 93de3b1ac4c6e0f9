// Package signature captures signatures: it fingerprints the signing act,
// stores the drawn image, gathers network metadata and drives the document
// to signed.
package signature

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"docsign/internal/models"
)

// TimestampLayout is the ISO-8601 UTC form hashed into every signature.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// ComputeHash returns the lowercase hex SHA-256 of
// documentID + signerName + signerDocumentNumber + timestamp. The digest binds
// the signer's identity to the moment of signing; it does not cover the
// document content.
func ComputeHash(documentID, signerName, signerDocumentNumber string, ts time.Time) string {
	payload := documentID + signerName + signerDocumentNumber + ts.UTC().Format(TimestampLayout)
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}

// Verify recomputes the hash of a stored signature record.
func Verify(rec *models.SignatureRecord) bool {
	return ComputeHash(rec.DocumentID.String(), rec.SignerName, rec.SignerDocumentNumber, rec.CapturedAt) == rec.SignatureHash
}
