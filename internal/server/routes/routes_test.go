package routes

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"

	"docsign/internal/audit"
	"docsign/internal/binder"
	"docsign/internal/documents"
	"docsign/internal/logger"
	"docsign/internal/models"
	"docsign/internal/render"
	"docsign/internal/signature"
	"docsign/internal/templates"
	"docsign/internal/testutil"
	"docsign/internal/validation"
)

type testServer struct {
	db         *models.DB
	log        *logger.Logger
	templates  *templates.Service
	documents  *documents.Service
	signatures *signature.Engine
	validation *validation.Service
	audit      *audit.Recorder
}

func (s *testServer) GetTemplates() *templates.Service   { return s.templates }
func (s *testServer) GetDocuments() *documents.Service   { return s.documents }
func (s *testServer) GetSignatures() *signature.Engine   { return s.signatures }
func (s *testServer) GetValidation() *validation.Service { return s.validation }
func (s *testServer) GetAudit() *audit.Recorder          { return s.audit }
func (s *testServer) GetLogger() *logger.Logger          { return s.log }

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)

	s := &testServer{db: db, log: log}
	s.audit = audit.NewRecorder(db, log)
	s.templates = templates.NewService(db, s.audit, log)
	s.validation = validation.NewService(validation.GormFinder{DB: db}, nil, log)
	s.documents = documents.NewService(db, binder.New(nil, nil), render.DefaultFormatter(), s.audit, log, documents.Options{
		Invalidator: s.validation,
	})
	s.signatures = signature.NewEngine(s.documents, nil, nil, time.Second, log)
	return s
}

func newRouter(s *testServer) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestLogger(s.log))
	r.Use(sessions.Sessions("docsign-test", cookie.NewStore([]byte("test-secret"))))

	NewAuthRoutes(s).RegisterRoutes(r)
	NewTemplateRoutes(s).RegisterRoutes(r)
	NewDocumentRoutes(s).RegisterRoutes(r)
	NewAuditRoutes(s).RegisterRoutes(r)
	NewValidationRoutes(s).RegisterRoutes(r)
	return r
}

type client struct {
	t      *testing.T
	router *gin.Engine
	cookie string
}

func (c *client) do(method, path string, body any) *httptest.ResponseRecorder {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			c.t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "routes-test")
	if c.cookie != "" {
		req.Header.Set("Cookie", c.cookie)
	}
	w := httptest.NewRecorder()
	c.router.ServeHTTP(w, req)
	return w
}

// login opens a session for actor and keeps its cookie for later requests.
func login(t *testing.T, router *gin.Engine, actor string) *client {
	t.Helper()
	c := &client{t: t, router: router}
	w := c.do(http.MethodPost, "/session", map[string]string{"actor": actor})
	if w.Code != http.StatusOK {
		t.Fatalf("login: %d %s", w.Code, w.Body.String())
	}
	setCookie := w.Header().Get("Set-Cookie")
	if setCookie == "" {
		t.Fatal("login did not set a session cookie")
	}
	c.cookie = strings.SplitN(setCookie, ";", 2)[0]
	return c
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
}

func TestProtectedRoutesRequireSession(t *testing.T) {
	router := newRouter(newTestServer(t))
	anon := &client{t: t, router: router}

	for _, path := range []string{"/templates", "/documents", "/categories", "/audit", "/session"} {
		if w := anon.do(http.MethodGet, path, nil); w.Code != http.StatusUnauthorized {
			t.Errorf("GET %s: got %d, want 401", path, w.Code)
		}
	}
}

func TestLoginRequiresActor(t *testing.T) {
	router := newRouter(newTestServer(t))
	anon := &client{t: t, router: router}

	if w := anon.do(http.MethodPost, "/session", map[string]string{"actor": "  "}); w.Code != http.StatusBadRequest {
		t.Errorf("blank actor: got %d", w.Code)
	}
	if w := anon.do(http.MethodPost, "/session", map[string]string{}); w.Code != http.StatusBadRequest {
		t.Errorf("missing actor: got %d", w.Code)
	}
}

func TestSessionLoginAndLogoutAreAudited(t *testing.T) {
	s := newTestServer(t)
	router := newRouter(s)
	c := login(t, router, "ana")

	w := c.do(http.MethodGet, "/session", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"ana"`) {
		t.Fatalf("session: %d %s", w.Code, w.Body.String())
	}
	if w := c.do(http.MethodDelete, "/session", nil); w.Code != http.StatusOK {
		t.Fatalf("logout: %d %s", w.Code, w.Body.String())
	}

	entries, err := s.audit.History(t.Context(), models.EntitySession, "ana")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(entries) != 2 || entries[0].Action != models.ActionLogin || entries[1].Action != models.ActionLogout {
		t.Errorf("unexpected session trail: %+v", entries)
	}
}

func TestTemplateCRUD(t *testing.T) {
	router := newRouter(newTestServer(t))
	c := login(t, router, "ana")

	w := c.do(http.MethodPost, "/templates", map[string]any{
		"name": "Orçamento",
		"body": "<p>{{cliente}} {{valor_total}}</p>",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", w.Code, w.Body.String())
	}
	var created struct {
		Template models.Template `json:"template"`
	}
	decode(t, w, &created)
	id := created.Template.ID.String()

	if w := c.do(http.MethodPost, "/templates", map[string]any{"body": "x"}); w.Code != http.StatusBadRequest {
		t.Errorf("missing name: got %d", w.Code)
	} else if !strings.Contains(w.Body.String(), `"field":"name"`) {
		t.Errorf("expected field in error body: %s", w.Body.String())
	}

	w = c.do(http.MethodPut, "/templates/"+id, map[string]any{"name": "Orçamento v2"})
	if w.Code != http.StatusOK {
		t.Fatalf("update: %d %s", w.Code, w.Body.String())
	}
	var updated struct {
		Template models.Template `json:"template"`
	}
	decode(t, w, &updated)
	if updated.Template.Version != 2 || updated.Template.Name != "Orçamento v2" {
		t.Errorf("unexpected update: %+v", updated.Template)
	}

	if w := c.do(http.MethodPost, "/templates/"+id+"/duplicate", nil); w.Code != http.StatusCreated {
		t.Errorf("duplicate: %d %s", w.Code, w.Body.String())
	}
	w = c.do(http.MethodGet, "/templates?q=v2", nil)
	var list struct {
		Templates []models.Template `json:"templates"`
	}
	decode(t, w, &list)
	if len(list.Templates) != 2 {
		t.Errorf("search: got %d templates", len(list.Templates))
	}

	if w := c.do(http.MethodDelete, "/templates/"+id, nil); w.Code != http.StatusOK {
		t.Errorf("delete: %d", w.Code)
	}
	if w := c.do(http.MethodGet, "/templates/"+id, nil); w.Code != http.StatusNotFound {
		t.Errorf("get deleted: got %d", w.Code)
	}
	if w := c.do(http.MethodGet, "/templates/not-a-uuid", nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad id: got %d", w.Code)
	}
	if w := c.do(http.MethodGet, "/templates?active=maybe", nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad active flag: got %d", w.Code)
	}
}

func TestCategories(t *testing.T) {
	router := newRouter(newTestServer(t))
	c := login(t, router, "ana")

	if w := c.do(http.MethodPost, "/categories", map[string]string{"name": "Orçamentos"}); w.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", w.Code, w.Body.String())
	}
	if w := c.do(http.MethodPost, "/categories", map[string]string{"name": "orcamentos"}); w.Code != http.StatusBadRequest {
		t.Errorf("duplicate slug: got %d", w.Code)
	}
	w := c.do(http.MethodGet, "/categories", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"orcamentos"`) {
		t.Errorf("list: %d %s", w.Code, w.Body.String())
	}
}

var signaturePNG = "data:image/png;base64," + base64.StdEncoding.EncodeToString(append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 32)...))

func TestDocumentFlowAndPublicValidation(t *testing.T) {
	s := newTestServer(t)
	router := newRouter(s)
	c := login(t, router, "ana")
	tmpl := testutil.CreateQuoteTemplate(t, s.db)

	w := c.do(http.MethodPost, "/documents/preview", map[string]any{
		"template_id": tmpl.ID,
		"values":      map[string]string{"cliente_nome": "ACME"},
	})
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "valor_total") {
		t.Fatalf("preview should report valor_total missing: %d %s", w.Code, w.Body.String())
	}

	w = c.do(http.MethodPost, "/documents", map[string]any{
		"template_id": tmpl.ID,
		"title":       "Orçamento ACME",
		"values":      map[string]string{"cliente_nome": "ACME Ltda", "valor_total": "1500.5"},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", w.Code, w.Body.String())
	}
	var created struct {
		Document models.GeneratedDocument `json:"document"`
	}
	decode(t, w, &created)
	id := created.Document.ID.String()
	if !strings.Contains(created.Document.Content, "R$ 1.500,50") {
		t.Errorf("content not localized: %q", created.Document.Content)
	}

	sig := map[string]string{
		"signer_type":            "client",
		"signer_name":            "Maria Silva",
		"signer_document_number": "123.456.789-00",
		"signature_image":        signaturePNG,
	}
	if w := c.do(http.MethodPost, "/documents/"+id+"/signatures", sig); w.Code != http.StatusConflict {
		t.Errorf("signing a draft: got %d, want 409", w.Code)
	}
	if w := c.do(http.MethodPost, "/documents/"+id+"/finalize", nil); w.Code != http.StatusOK {
		t.Fatalf("finalize: %d %s", w.Code, w.Body.String())
	}
	if w := c.do(http.MethodPost, "/documents/"+id+"/send", map[string]string{"to": "cliente@acme.com"}); w.Code != http.StatusOK {
		t.Fatalf("send: %d %s", w.Code, w.Body.String())
	}

	w = c.do(http.MethodPost, "/documents/"+id+"/signatures", sig)
	if w.Code != http.StatusCreated {
		t.Fatalf("sign: %d %s", w.Code, w.Body.String())
	}
	var signed signature.Result
	decode(t, w, &signed)
	if signed.Document.Status != models.StatusSigned || signed.Document.ValidationCode == nil {
		t.Fatalf("unexpected signed document: %+v", signed.Document)
	}
	if signed.Signature.CapturedUserAgent != "routes-test" {
		t.Errorf("user agent not captured: %q", signed.Signature.CapturedUserAgent)
	}
	if w := c.do(http.MethodPost, "/documents/"+id+"/signatures", sig); w.Code != http.StatusConflict {
		t.Errorf("second signature: got %d, want 409", w.Code)
	}

	w = c.do(http.MethodGet, "/documents/"+id+"/signatures", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "Maria Silva") {
		t.Errorf("signatures: %d %s", w.Code, w.Body.String())
	}

	anon := &client{t: t, router: router}
	w = anon.do(http.MethodGet, "/validate/"+strings.ToLower(*signed.Document.ValidationCode), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("validate: %d %s", w.Code, w.Body.String())
	}
	var public struct {
		Document validation.Summary `json:"document"`
	}
	decode(t, w, &public)
	if public.Document.SignatureHash == nil || *public.Document.SignatureHash != *signed.Document.SignatureHash {
		t.Errorf("public hash mismatch: %+v", public.Document)
	}
	if w := anon.do(http.MethodGet, "/validate/ZZZZZZZZ", nil); w.Code != http.StatusNotFound {
		t.Errorf("unknown code: got %d", w.Code)
	}

	w = c.do(http.MethodGet, "/documents/"+id+"/export?format=html", nil)
	if w.Code != http.StatusOK || !strings.HasPrefix(w.Header().Get("Content-Type"), "text/html") {
		t.Errorf("export: %d %s", w.Code, w.Header().Get("Content-Type"))
	}
	if w.Header().Get("X-Export-Source") != "database" {
		t.Errorf("export source: %q", w.Header().Get("X-Export-Source"))
	}

	w = c.do(http.MethodGet, "/documents?status=signed", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), id) {
		t.Errorf("list signed: %d %s", w.Code, w.Body.String())
	}
	var listed struct {
		Counts map[models.DocumentStatus]int64 `json:"counts"`
	}
	decode(t, w, &listed)
	if listed.Counts[models.StatusSigned] != 1 || listed.Counts[models.StatusDraft] != 0 {
		t.Errorf("unexpected counts: %v", listed.Counts)
	}
	if w := c.do(http.MethodGet, "/documents?status=archived", nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad status filter: got %d", w.Code)
	}
}

func TestForceStatusAndAuditSearch(t *testing.T) {
	s := newTestServer(t)
	router := newRouter(s)
	c := login(t, router, "admin")
	tmpl := testutil.CreateQuoteTemplate(t, s.db)

	w := c.do(http.MethodPost, "/documents", map[string]any{
		"template_id": tmpl.ID,
		"title":       "Orçamento",
		"values":      map[string]string{"cliente_nome": "ACME", "valor_total": "10"},
	})
	var created struct {
		Document models.GeneratedDocument `json:"document"`
	}
	decode(t, w, &created)
	id := created.Document.ID.String()

	if w := c.do(http.MethodPut, "/documents/"+id+"/status", map[string]string{"status": "archived"}); w.Code != http.StatusBadRequest {
		t.Errorf("unknown status: got %d", w.Code)
	}
	if w := c.do(http.MethodPut, "/documents/"+id+"/status", map[string]string{"status": "sent"}); w.Code != http.StatusOK {
		t.Fatalf("force status: %d %s", w.Code, w.Body.String())
	}

	w = c.do(http.MethodGet, "/audit?entity_type=document&entity_id="+id, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("audit: %d %s", w.Code, w.Body.String())
	}
	var trail struct {
		Entries []audit.Entry `json:"entries"`
	}
	decode(t, w, &trail)
	if len(trail.Entries) != 2 {
		t.Fatalf("expected create and update entries, got %d", len(trail.Entries))
	}
	var statusChanged bool
	for _, ch := range trail.Entries[1].Changes {
		if ch.Field == "status" {
			statusChanged = true
		}
	}
	if !statusChanged || trail.Entries[1].Actor != "admin" {
		t.Errorf("status change not audited: %+v", trail.Entries[1])
	}

	if w := c.do(http.MethodGet, "/audit?action=explode", nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad action: got %d", w.Code)
	}
	if w := c.do(http.MethodGet, "/audit?limit=0", nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad limit: got %d", w.Code)
	}
}
