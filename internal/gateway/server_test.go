package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"pelorus/internal/config"
	"pelorus/internal/domain"
	"pelorus/internal/gateway/resolver"
	"pelorus/internal/infra/audit"
	"pelorus/internal/infra/auth"
	"pelorus/internal/infra/policy"
	"pelorus/internal/infra/ratelimit"
	"pelorus/internal/infra/store"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	testSecret       = "gateway-test-secret"
	testServiceToken = "svc-test-token"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type captureSink struct {
	mu      sync.Mutex
	records []domain.AuditRecord
}

func (s *captureSink) Append(_ context.Context, rec domain.AuditRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

func (s *captureSink) all() []domain.AuditRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.AuditRecord, len(s.records))
	copy(out, s.records)
	return out
}

type fixture struct {
	server   *Server
	recorder *audit.Recorder
	sink     *captureSink
	store    *store.Memory
}

func newFixture(t *testing.T, plan ratelimit.Plan) *fixture {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	sink := &captureSink{}
	recorder := audit.NewRecorder(sink, log, time.Second)
	mem := store.NewMemory()
	engine, err := policy.NewEngine(context.Background(), "")
	if err != nil {
		t.Fatalf("policy engine: %v", err)
	}

	registry := resolver.New(resolver.Deps{
		Store:  mem,
		Policy: engine,
		Plan:   plan,
		Log:    log,
	})

	cfg := config.Config{
		HTTPAddr:            ":0",
		CORSAllowedOrigins:  []string{"*"},
		StoreTimeoutSeconds: 5,
	}
	server, newErr := NewServer(cfg, Deps{
		Registry:      registry,
		Authenticator: auth.NewTokenValidator(testSecret, testServiceToken),
		Limiter:       ratelimit.NewMemory(ratelimit.MemoryConfig{}),
		Plan:          plan,
		Recorder:      recorder,
		Log:           log,
	})
	if newErr != nil {
		t.Fatalf("NewServer: %v", newErr)
	}
	return &fixture{server: server, recorder: recorder, sink: sink, store: mem}
}

func defaultPlan() ratelimit.Plan {
	return ratelimit.Plan{Default: ratelimit.Limit{Requests: 1000, Window: time.Minute}}
}

func bearerFor(t *testing.T, id, role string) string {
	t.Helper()
	claims := auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		UserID: id,
		Role:   role,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return "Bearer " + signed
}

func (f *fixture) do(t *testing.T, method, path, authz string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode body %q: %v", w.Body.String(), err)
	}
	return out
}

func TestHealthzNeedsNoAuth(t *testing.T) {
	f := newFixture(t, defaultPlan())
	w := f.do(t, http.MethodGet, "/healthz", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("healthz status = %d", w.Code)
	}
}

func TestMissingCredentialRejectedBeforeCounting(t *testing.T) {
	plan := ratelimit.Plan{
		Default:   ratelimit.Limit{Requests: 1000, Window: time.Minute},
		Endpoints: map[string]ratelimit.Limit{"weather": {Requests: 1, Window: time.Minute}},
	}
	f := newFixture(t, plan)

	for i := 0; i < 3; i++ {
		w := f.do(t, http.MethodGet, "/weather?region=baltic", "", nil)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d: status = %d, want 401", i, w.Code)
		}
		if got := decodeBody(t, w)["error"]; got != "authentication required" {
			t.Fatalf("error = %v", got)
		}
	}

	// The rejected calls must not have consumed the single-request budget.
	w := f.do(t, http.MethodGet, "/weather?region=baltic", bearerFor(t, "user-1", "operator"), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("authenticated call after 401s: status = %d, body = %s", w.Code, w.Body.String())
	}
}

func TestInvalidTokenRejected(t *testing.T) {
	f := newFixture(t, defaultPlan())
	w := f.do(t, http.MethodGet, "/weather", "Bearer not-a-token", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", w.Code)
	}
	if got := decodeBody(t, w)["error"]; got != "invalid token" {
		t.Fatalf("error = %v", got)
	}
}

func TestRateLimitExhaustionReturns429(t *testing.T) {
	plan := ratelimit.Plan{
		Default:   ratelimit.Limit{Requests: 1000, Window: time.Minute},
		Endpoints: map[string]ratelimit.Limit{"weather": {Requests: 2, Window: time.Minute}},
	}
	f := newFixture(t, plan)
	authz := bearerFor(t, "user-1", "operator")

	for i := 0; i < 2; i++ {
		if w := f.do(t, http.MethodGet, "/weather", authz, nil); w.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d", i, w.Code)
		}
	}
	w := f.do(t, http.MethodGet, "/weather", authz, nil)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	if got := decodeBody(t, w)["error"]; got != "rate limit exceeded" {
		t.Fatalf("error = %v", got)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Fatal("missing Retry-After header")
	}
	if w.Header().Get("RateLimit-Reset") == "" {
		t.Fatal("missing RateLimit-Reset header")
	}

	// Budgets are per endpoint: a different resource still admits.
	if w := f.do(t, http.MethodGet, "/ais", authz, nil); w.Code != http.StatusOK {
		t.Fatalf("ais after weather exhaustion: status = %d", w.Code)
	}
}

func TestDocumentLifecycleOverREST(t *testing.T) {
	f := newFixture(t, defaultPlan())
	authz := bearerFor(t, "user-1", "operator")

	w := f.do(t, http.MethodPost, "/documents", authz, map[string]any{
		"title":    "Ballast log",
		"category": "operations",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("create: status = %d, body = %s", w.Code, w.Body.String())
	}
	created := decodeBody(t, w)
	id, _ := created["id"].(string)
	if id == "" {
		t.Fatalf("create returned no id: %v", created)
	}
	if created["owner_id"] != "user-1" {
		t.Fatalf("owner_id = %v", created["owner_id"])
	}

	w = f.do(t, http.MethodGet, "/documents?id="+id, authz, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("read: status = %d", w.Code)
	}
	var rows []map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &rows); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(rows) != 1 || rows[0]["title"] != "Ballast log" {
		t.Fatalf("read rows = %v", rows)
	}

	w = f.do(t, http.MethodDelete, "/documents?id="+id, authz, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("delete: status = %d", w.Code)
	}

	w = f.do(t, http.MethodGet, "/documents?id="+id, authz, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("read after delete: status = %d, want 404", w.Code)
	}
}

func TestCreateValidationFailure(t *testing.T) {
	f := newFixture(t, defaultPlan())
	w := f.do(t, http.MethodPost, "/documents", bearerFor(t, "user-1", "operator"), map[string]any{
		"category": "operations",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	msg, _ := decodeBody(t, w)["error"].(string)
	if !strings.Contains(msg, "title") {
		t.Fatalf("error = %q, want mention of missing field", msg)
	}
}

func TestOwnershipEnforcedAcrossCallers(t *testing.T) {
	f := newFixture(t, defaultPlan())
	owner := bearerFor(t, "user-1", "operator")
	stranger := bearerFor(t, "user-2", "operator")

	w := f.do(t, http.MethodPost, "/vessels", owner, map[string]any{"name": "MV Aurora"})
	if w.Code != http.StatusOK {
		t.Fatalf("create: status = %d", w.Code)
	}
	id, _ := decodeBody(t, w)["id"].(string)

	w = f.do(t, http.MethodDelete, "/vessels?id="+id, stranger, nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("stranger delete: status = %d, want 403", w.Code)
	}

	// The row is intact after the rejected write.
	w = f.do(t, http.MethodGet, "/vessels?id="+id, owner, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("read after forbidden delete: status = %d", w.Code)
	}
}

func TestUnknownPathListsEndpoints(t *testing.T) {
	f := newFixture(t, defaultPlan())
	w := f.do(t, http.MethodGet, "/cargo-manifests", bearerFor(t, "user-1", "operator"), nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	body := decodeBody(t, w)
	endpoints, ok := body["endpoints"].([]any)
	if !ok || len(endpoints) == 0 {
		t.Fatalf("body lists no endpoints: %v", body)
	}
}

func TestUnsupportedMethodUsesEndpointErrorShape(t *testing.T) {
	f := newFixture(t, defaultPlan())
	w := f.do(t, http.MethodDelete, "/weather", bearerFor(t, "user-1", "operator"), nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 not 405", w.Code)
	}
	if got := decodeBody(t, w)["error"]; got != "Method not allowed" {
		t.Fatalf("error = %v", got)
	}
}

func TestGraphQLQueryAndMutationParity(t *testing.T) {
	f := newFixture(t, defaultPlan())
	authz := bearerFor(t, "user-1", "operator")

	w := f.do(t, http.MethodPost, "/graphql", authz, map[string]any{
		"query": `mutation { createDocument(title: "SMS manual", category: "safety") { id title } }`,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("mutation: status = %d", w.Code)
	}
	body := decodeBody(t, w)
	data, _ := body["data"].(map[string]any)
	doc, _ := data["createDocument"].(map[string]any)
	if doc == nil || doc["title"] != "SMS manual" {
		t.Fatalf("mutation body = %v", body)
	}
	id, _ := doc["id"].(string)

	// The REST surface sees the row the GraphQL mutation wrote.
	rw := f.do(t, http.MethodGet, "/documents?id="+id, authz, nil)
	if rw.Code != http.StatusOK {
		t.Fatalf("REST read of GraphQL write: status = %d", rw.Code)
	}
}

func TestGraphQLErrorsArriveAt200(t *testing.T) {
	f := newFixture(t, defaultPlan())
	authz := bearerFor(t, "user-1", "operator")

	// Malformed document: transport succeeds, errors ride the envelope.
	w := f.do(t, http.MethodPost, "/graphql", authz, map[string]any{
		"query": "query { weather(",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("malformed query: status = %d, want 200", w.Code)
	}
	body := decodeBody(t, w)
	if _, ok := body["errors"]; !ok {
		t.Fatalf("no errors entry: %v", body)
	}
	if _, ok := body["data"]; ok {
		t.Fatalf("unexpected data entry: %v", body)
	}

	// Resolver-level failure keeps the same convention.
	w = f.do(t, http.MethodPost, "/graphql", authz, map[string]any{
		"query": `query { documents(id: "missing") { id } }`,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("resolver error: status = %d, want 200", w.Code)
	}
	body = decodeBody(t, w)
	errs, _ := body["errors"].([]any)
	if len(errs) != 1 {
		t.Fatalf("errors = %v", body["errors"])
	}
	first, _ := errs[0].(map[string]any)
	if first["message"] != "not found" {
		t.Fatalf("message = %v", first["message"])
	}
}

func TestAPIKeySecretReturnedExactlyOnce(t *testing.T) {
	f := newFixture(t, defaultPlan())
	authz := bearerFor(t, "user-1", "operator")

	w := f.do(t, http.MethodPost, "/api-keys", authz, map[string]any{"name": "ci"})
	if w.Code != http.StatusOK {
		t.Fatalf("create: status = %d, body = %s", w.Code, w.Body.String())
	}
	created := decodeBody(t, w)
	key, _ := created["key"].(string)
	if !strings.HasPrefix(key, "sk_") {
		t.Fatalf("key = %q, want sk_ prefix", key)
	}

	w = f.do(t, http.MethodGet, "/api-keys", authz, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list: status = %d", w.Code)
	}
	var rows []map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &rows); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %v", rows)
	}
	if _, ok := rows[0]["key"]; ok {
		t.Fatal("list exposes the full key")
	}
	if _, ok := rows[0]["key_hash"]; ok {
		t.Fatal("list exposes the key hash")
	}
	prefix, _ := rows[0]["key_prefix"].(string)
	if !strings.HasPrefix(key, prefix) || len(prefix) >= len(key) {
		t.Fatalf("key_prefix = %q for key %q", prefix, key)
	}
}

func TestServiceTokenHeaderAccepted(t *testing.T) {
	f := newFixture(t, defaultPlan())
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	req.Header.Set("X-Service-Token", testServiceToken)
	w := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
}

func TestCORSPreflightTerminates(t *testing.T) {
	f := newFixture(t, defaultPlan())
	req := httptest.NewRequest(http.MethodOptions, "/documents", nil)
	req.Header.Set("Origin", "https://fleet.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("preflight status = %d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Fatal("missing Allow-Origin header")
	}
	// Preflight never reaches authentication, so no 401 despite the
	// missing credential.
	if w.Body.Len() != 0 {
		t.Fatalf("preflight body = %q, want empty", w.Body.String())
	}
}

func TestAuditTrailRecordsOutcomes(t *testing.T) {
	f := newFixture(t, defaultPlan())
	authz := bearerFor(t, "user-7", "operator")

	if w := f.do(t, http.MethodGet, "/weather", authz, nil); w.Code != http.StatusOK {
		t.Fatalf("weather: status = %d", w.Code)
	}
	if w := f.do(t, http.MethodGet, "/documents?id=absent", authz, nil); w.Code != http.StatusNotFound {
		t.Fatalf("documents: status = %d", w.Code)
	}
	f.recorder.Flush()

	records := f.sink.all()
	if len(records) != 2 {
		t.Fatalf("records = %d, want 2", len(records))
	}
	byEndpoint := map[string]domain.AuditRecord{}
	for _, rec := range records {
		byEndpoint[rec.Endpoint] = rec
	}
	if rec := byEndpoint["weather"]; rec.Outcome != domain.AuditSuccess || rec.CallerID != "user-7" {
		t.Fatalf("weather record = %+v", rec)
	}
	if rec := byEndpoint["documents"]; rec.Outcome != domain.AuditError {
		t.Fatalf("documents record = %+v", rec)
	}
}

func TestRateLimitedCallsAreNotAudited(t *testing.T) {
	plan := ratelimit.Plan{
		Default:   ratelimit.Limit{Requests: 1000, Window: time.Minute},
		Endpoints: map[string]ratelimit.Limit{"ais": {Requests: 1, Window: time.Minute}},
	}
	f := newFixture(t, plan)
	authz := bearerFor(t, "user-1", "operator")

	if w := f.do(t, http.MethodGet, "/ais", authz, nil); w.Code != http.StatusOK {
		t.Fatalf("first: status = %d", w.Code)
	}
	if w := f.do(t, http.MethodGet, "/ais", authz, nil); w.Code != http.StatusTooManyRequests {
		t.Fatalf("second: status = %d", w.Code)
	}
	f.recorder.Flush()

	if got := len(f.sink.all()); got != 1 {
		t.Fatalf("audit records = %d, want only the admitted call", got)
	}
}

func TestPanicYieldsGeneric500(t *testing.T) {
	f := newFixture(t, defaultPlan())
	f.server.r.GET("/boom", func(*gin.Context) { panic("kaboom") })

	w := f.do(t, http.MethodGet, "/boom", "", nil)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", w.Code)
	}
	body := decodeBody(t, w)
	if body["error"] != "internal error" {
		t.Fatalf("error = %v", body["error"])
	}
	if strings.Contains(w.Body.String(), "kaboom") {
		t.Fatal("panic detail leaked into the response")
	}
}

func TestStoreOutageMapsTo502(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	sink := &captureSink{}
	recorder := audit.NewRecorder(sink, log, time.Second)
	registry := resolver.New(resolver.Deps{
		Store: store.Unavailable{},
		Plan:  defaultPlan(),
		Log:   log,
	})
	server, err := NewServer(config.Config{
		HTTPAddr:            ":0",
		CORSAllowedOrigins:  []string{"*"},
		StoreTimeoutSeconds: 5,
	}, Deps{
		Registry:      registry,
		Authenticator: auth.NewTokenValidator(testSecret, testServiceToken),
		Limiter:       ratelimit.NewMemory(ratelimit.MemoryConfig{}),
		Plan:          defaultPlan(),
		Recorder:      recorder,
		Log:           log,
	})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	f := &fixture{server: server, recorder: recorder, sink: sink}
	authz := bearerFor(t, "user-1", "operator")

	w := f.do(t, http.MethodGet, "/documents", authz, nil)
	if w.Code != http.StatusBadGateway {
		t.Fatalf("documents status = %d, want 502", w.Code)
	}

	// Mocked externals have no store dependency and keep working.
	if w := f.do(t, http.MethodGet, "/weather", authz, nil); w.Code != http.StatusOK {
		t.Fatalf("weather status = %d", w.Code)
	}
}

func TestMalformedRESTBodyRejected(t *testing.T) {
	f := newFixture(t, defaultPlan())
	req := httptest.NewRequest(http.MethodPost, "/documents", strings.NewReader("{not json"))
	req.Header.Set("Authorization", bearerFor(t, "user-1", "operator"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestTemplateWriteRequiresAdmin(t *testing.T) {
	f := newFixture(t, defaultPlan())

	w := f.do(t, http.MethodPost, "/templates", bearerFor(t, "user-1", "operator"), map[string]any{"name": "Port checklist"})
	if w.Code != http.StatusForbidden {
		t.Fatalf("operator create: status = %d, want 403", w.Code)
	}

	w = f.do(t, http.MethodPost, "/templates", bearerFor(t, "admin-1", "admin"), map[string]any{"name": "Port checklist"})
	if w.Code != http.StatusOK {
		t.Fatalf("admin create: status = %d, body = %s", w.Code, w.Body.String())
	}
}

func TestStatusReportsRateLimitPlan(t *testing.T) {
	plan := ratelimit.Plan{
		Default:   ratelimit.Limit{Requests: 250, Window: time.Minute},
		Endpoints: map[string]ratelimit.Limit{"weather": {Requests: 30, Window: 30 * time.Second}},
	}
	f := newFixture(t, plan)

	w := f.do(t, http.MethodGet, "/status", bearerFor(t, "user-1", "operator"), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	body := decodeBody(t, w)
	limits, _ := body["rate_limits"].(map[string]any)
	if limits == nil {
		t.Fatalf("no rate_limits in %v", body)
	}
	weather, _ := limits["weather"].(map[string]any)
	if fmt.Sprint(weather["max_requests"]) != "30" {
		t.Fatalf("weather limit = %v", weather)
	}
}
