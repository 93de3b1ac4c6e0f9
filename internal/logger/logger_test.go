package logger

import "testing"

func TestSanitizeKVsRedactsSignerPII(t *testing.T) {
	in := []interface{}{"document_id", "abc", "signer_document_number", "123.456.789-00", "dangling"}
	out := sanitizeKVs(in)
	if len(out) != 5 {
		t.Fatalf("expected 5 items, got %d", len(out))
	}
	if out[1] != "abc" {
		t.Errorf("non-sensitive value changed: %v", out[1])
	}
	if out[3] != "[REDACTED]" {
		t.Errorf("expected redaction, got %v", out[3])
	}
	if out[4] != "dangling" {
		t.Errorf("dangling key lost: %v", out[4])
	}
}

func TestNewTestMode(t *testing.T) {
	l, err := New("test")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	l.With("component", "test").Info("hello", "signature_image", "data:image/png;base64,xyz")
	Nop().Error("ignored")
}
