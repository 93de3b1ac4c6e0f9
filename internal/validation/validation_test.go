package validation

import (
	"context"
	"errors"
	"testing"
	"time"

	"docsign/internal/apperr"
	"docsign/internal/models"
	"docsign/internal/testutil"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

func ptr[T any](v T) *T { return &v }

func seedSigned(t *testing.T, db *models.DB, code, hash string) *models.GeneratedDocument {
	t.Helper()
	signedAt := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	doc := &models.GeneratedDocument{
		TemplateID:     uuid.New(),
		Title:          "Orçamento 42",
		Content:        "<p>conteúdo privado</p>",
		Status:         models.StatusSigned,
		SignerName:     ptr("Maria Silva"),
		SignedAt:       &signedAt,
		SignatureHash:  ptr(hash),
		ValidationCode: ptr(code),
	}
	if err := db.Documents.Create(context.Background(), doc); err != nil {
		t.Fatalf("create document: %v", err)
	}
	return doc
}

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"ab12cd34":   "AB12CD34",
		"  AB12 ":    "AB12",
		"":           "",
		"AB12CD345":  "",
		"AB-12":      "",
		"ÁB12":       "",
		"' OR 1=1--": "",
	}
	for in, want := range cases {
		if got := Normalize(in); got != want {
			t.Errorf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLookupUnknownCodeIsNotFound(t *testing.T) {
	db := testutil.DB(t)
	svc := NewService(GormFinder{DB: db}, nil, testutil.Logger(t))

	for _, code := range []string{"ZZZZZZZZ", "", "bad code!"} {
		_, err := svc.Lookup(context.Background(), code)
		if !apperr.IsNotFound(err) {
			t.Errorf("Lookup(%q): expected not found, got %v", code, err)
		}
	}
}

func TestLookupReturnsStoredHash(t *testing.T) {
	db := testutil.DB(t)
	hash := "f0e1d2c3b4a5968778695a4b3c2d1e0ff0e1d2c3b4a5968778695a4b3c2d1e0f"
	seedSigned(t, db, "AB12CD34", hash)
	svc := NewService(GormFinder{DB: db}, nil, testutil.Logger(t))

	got, err := svc.Lookup(context.Background(), "ab12cd34")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if got.SignatureHash == nil || *got.SignatureHash != hash {
		t.Errorf("hash = %v, want %s", got.SignatureHash, hash)
	}
	if got.Status != models.StatusSigned || got.StatusLabel != models.StatusSigned.Label() {
		t.Errorf("status = %s (%s)", got.Status, got.StatusLabel)
	}
	if got.SignerName == nil || *got.SignerName != "Maria Silva" {
		t.Errorf("signer = %v", got.SignerName)
	}
	if got.Code != "AB12CD34" || got.Title != "Orçamento 42" {
		t.Errorf("unexpected summary %+v", got)
	}
}

type memCache struct {
	data    map[string]*Summary
	deletes []string
	failGet bool
}

func (c *memCache) Get(_ context.Context, code string) (*Summary, bool, error) {
	if c.failGet {
		return nil, false, errors.New("connection refused")
	}
	s, ok := c.data[code]
	return s, ok, nil
}

func (c *memCache) Set(_ context.Context, code string, s *Summary) error {
	c.data[code] = s
	return nil
}

func (c *memCache) Delete(_ context.Context, code string) error {
	c.deletes = append(c.deletes, code)
	delete(c.data, code)
	return nil
}

func TestLookupReadsThroughCache(t *testing.T) {
	db := testutil.DB(t)
	seedSigned(t, db, "CACHE001", "aa")
	cache := &memCache{data: map[string]*Summary{}}
	svc := NewService(GormFinder{DB: db}, cache, testutil.Logger(t))
	ctx := context.Background()

	if _, err := svc.Lookup(ctx, "CACHE001"); err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if _, ok := cache.data["CACHE001"]; !ok {
		t.Fatal("summary not cached")
	}

	cache.data["CACHE001"] = &Summary{Code: "CACHE001", Title: "from cache"}
	got, err := svc.Lookup(ctx, "CACHE001")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if got.Title != "from cache" {
		t.Errorf("cache not consulted, got %q", got.Title)
	}

	svc.Invalidate(ctx, "CACHE001")
	if _, ok := cache.data["CACHE001"]; ok {
		t.Error("entry not invalidated")
	}
}

func TestLookupIgnoresCacheFailure(t *testing.T) {
	db := testutil.DB(t)
	seedSigned(t, db, "DOWN0001", "bb")
	svc := NewService(GormFinder{DB: db}, &memCache{data: map[string]*Summary{}, failGet: true}, testutil.Logger(t))

	if _, err := svc.Lookup(context.Background(), "DOWN0001"); err != nil {
		t.Fatalf("cache failure should fall through to the store: %v", err)
	}
}

func TestLookupWithUnreachableRedis(t *testing.T) {
	db := testutil.DB(t)
	seedSigned(t, db, "REDIS001", "cc")
	client := goredis.NewClient(&goredis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
	cache := newRedisCache(client, time.Minute)
	t.Cleanup(func() { _ = cache.Close() })
	svc := NewService(GormFinder{DB: db}, cache, testutil.Logger(t))

	got, err := svc.Lookup(context.Background(), "REDIS001")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if got.Code != "REDIS001" {
		t.Errorf("got %+v", got)
	}
	svc.Invalidate(context.Background(), "REDIS001")
}

func TestNewRedisCacheRejectsBadURL(t *testing.T) {
	if _, err := NewRedisCache(context.Background(), "not a url", time.Minute); err == nil {
		t.Error("expected parse error")
	}
}

type brokenFinder struct{}

func (brokenFinder) FindByCode(context.Context, string) (*Summary, error) {
	return nil, errors.New("pool exhausted")
}

func TestLookupStoreFailureIsIntegration(t *testing.T) {
	svc := NewService(brokenFinder{}, nil, testutil.Logger(t))
	_, err := svc.Lookup(context.Background(), "AB12CD34")
	if apperr.KindOf(err) != apperr.KindIntegration {
		t.Errorf("expected integration error, got %v", err)
	}
}
