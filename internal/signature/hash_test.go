package signature

import (
	"regexp"
	"testing"
	"time"

	"docsign/internal/models"

	"github.com/google/uuid"
)

var hexDigest = regexp.MustCompile(`^[0-9a-f]{64}$`)

func TestComputeHashKnownVector(t *testing.T) {
	ts := time.Date(2024, 3, 15, 12, 0, 0, 250_000_000, time.UTC)
	got := ComputeHash("00000000-0000-0000-0000-000000000001", "Maria Silva", "123.456.789-00", ts)
	want := "5faf6bca9fc220ce6f698fd45cd16b86d4159c37e4b429b1cd5cad9107021bec"
	if got != want {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestComputeHashDeterministic(t *testing.T) {
	ts := time.Now()
	a := ComputeHash("doc", "Maria Silva", "123", ts)
	b := ComputeHash("doc", "Maria Silva", "123", ts)
	if a != b {
		t.Fatalf("hash not deterministic: %s vs %s", a, b)
	}
	if !hexDigest.MatchString(a) {
		t.Errorf("not a 64-char lowercase hex digest: %s", a)
	}
	if a == ComputeHash("doc", "Maria Silva", "124", ts) {
		t.Error("document number not covered")
	}
	if a == ComputeHash("doc", "Maria Silva", "123", ts.Add(time.Millisecond)) {
		t.Error("timestamp not covered at millisecond precision")
	}
}

func TestComputeHashNormalizesZone(t *testing.T) {
	utc := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	local := utc.In(time.FixedZone("BRT", -3*3600))
	if ComputeHash("d", "n", "x", utc) != ComputeHash("d", "n", "x", local) {
		t.Error("hash depends on the time zone of the timestamp")
	}
}

func TestVerify(t *testing.T) {
	at := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	rec := &models.SignatureRecord{
		DocumentID:           uuid.New(),
		SignerName:           "Maria Silva",
		SignerDocumentNumber: "123.456.789-00",
		CapturedAt:           at,
	}
	rec.SignatureHash = ComputeHash(rec.DocumentID.String(), rec.SignerName, rec.SignerDocumentNumber, at)
	if !Verify(rec) {
		t.Error("expected record to verify")
	}
	rec.SignerName = "Mario Silva"
	if Verify(rec) {
		t.Error("tampered record verified")
	}
}
