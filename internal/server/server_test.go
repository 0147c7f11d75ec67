package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/freewayhq/freeway/internal/admission"
	"github.com/freewayhq/freeway/internal/clock"
	"github.com/freewayhq/freeway/internal/completion"
	"github.com/freewayhq/freeway/internal/config"
	ledgerdomain "github.com/freewayhq/freeway/internal/ledger/domain"
	ledgerrepository "github.com/freewayhq/freeway/internal/ledger/repository"
	ledgerservice "github.com/freewayhq/freeway/internal/ledger/service"
	"github.com/freewayhq/freeway/internal/observability"
	authlocal "github.com/freewayhq/freeway/internal/principal/local"
	"github.com/freewayhq/freeway/internal/provider/openai"
	registrydomain "github.com/freewayhq/freeway/internal/registry/domain"
	registryrepository "github.com/freewayhq/freeway/internal/registry/repository"
	registryservice "github.com/freewayhq/freeway/internal/registry/service"
	userdomain "github.com/freewayhq/freeway/internal/user/domain"
	userrepository "github.com/freewayhq/freeway/internal/user/repository"
	userservice "github.com/freewayhq/freeway/internal/user/service"
	"github.com/freewayhq/freeway/pkg/db"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	m.Run()
}

type testEnv struct {
	engine    *gin.Engine
	localAuth *authlocal.Resolver
	userSvc   userdomain.Service
	ledgerSvc ledgerdomain.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dbConn, err := db.NewTest()
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	if err := dbConn.AutoMigrate(&userdomain.User{}, &registrydomain.Model{}, &ledgerdomain.UsageEvent{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("failed to create snowflake node: %v", err)
	}

	log := zap.NewNop()
	clk := clock.NewSystemClock()
	cfg := config.Config{
		AuthBackend:      config.AuthBackendLocal,
		AuthJWTSecret:    "test-secret",
		AuthJWTAlgorithm: "HS256",
		ProviderBaseURL:  "http://127.0.0.1:9",
	}

	localAuth, err := authlocal.NewResolver(cfg, clk)
	if err != nil {
		t.Fatalf("failed to build resolver: %v", err)
	}

	userSvc := userservice.New(userservice.Params{
		DB: dbConn, Log: log, GenID: node, Clock: clk, Repo: userrepository.Provide(),
	})
	registrySvc := registryservice.New(registryservice.Params{
		DB: dbConn, Log: log, Clock: clk, Repo: registryrepository.Provide(),
	})
	ledgerSvc := ledgerservice.New(ledgerservice.Params{
		DB: dbConn, Log: log, GenID: node, Repo: ledgerrepository.Provide(),
	})
	admissionCtl := admission.New(admission.Params{Log: log, Clock: clk, Ledger: ledgerSvc})
	completionSvc := completion.New(completion.Params{
		Log:       log,
		Clock:     clk,
		Registry:  registrySvc,
		Ledger:    ledgerSvc,
		Admission: admissionCtl,
		Provider:  openai.New(cfg, log),
	})

	if _, err := userSvc.Create(context.Background(), userdomain.CreateRequest{
		Username: "admin", Password: "admin", IsAdmin: true,
	}); err != nil {
		t.Fatalf("failed to seed admin: %v", err)
	}
	if _, err := registrySvc.Create(context.Background(), registrydomain.CreateRequest{
		Name: "gpt-4o", InputCostPerToken: 0.01, OutputCostPerToken: 0.02,
	}); err != nil {
		t.Fatalf("failed to seed model: %v", err)
	}

	engine := NewEngine(observability.Config{Environment: "test"})
	NewServer(ServerParams{
		Gin:           engine,
		Cfg:           cfg,
		Log:           log,
		Resolver:      localAuth,
		LocalAuth:     localAuth,
		UserSvc:       userSvc,
		RegistrySvc:   registrySvc,
		LedgerSvc:     ledgerSvc,
		AdmissionCtl:  admissionCtl,
		CompletionSvc: completionSvc,
	})

	return &testEnv{
		engine:    engine,
		localAuth: localAuth,
		userSvc:   userSvc,
		ledgerSvc: ledgerSvc,
	}
}

func (e *testEnv) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	return w
}

func (e *testEnv) tokenFor(t *testing.T, username string) string {
	t.Helper()
	user, err := e.userSvc.Get(context.Background(), username)
	if err != nil {
		t.Fatalf("failed to load user %s: %v", username, err)
	}
	token, err := e.localAuth.Issue(*user.Principal())
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}
	return token
}

func (e *testEnv) createUser(t *testing.T, req userdomain.CreateRequest) *userdomain.User {
	t.Helper()
	user, err := e.userSvc.Create(context.Background(), req)
	if err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	return user
}

func decodeDetail(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode error body %q: %v", w.Body.String(), err)
	}
	return body.Detail
}

func TestCompletionsRequireToken(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/chat/completions", "", `{"model":"gpt-4o","messages":[{"role":"user","content":"hi"}]}`)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	if got := decodeDetail(t, w); got != "Could not validate credentials" {
		t.Fatalf("unexpected detail %q", got)
	}
	if got := w.Header().Get("WWW-Authenticate"); got != "Bearer" {
		t.Fatalf("expected WWW-Authenticate: Bearer, got %q", got)
	}
}

func TestLoginRejectsBadPassword(t *testing.T) {
	env := newTestEnv(t)

	form := url.Values{"username": {"admin"}, "password": {"wrong"}}
	req := httptest.NewRequest(http.MethodPost, "/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	env.engine.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	if got := decodeDetail(t, w); got != "Incorrect username or password" {
		t.Fatalf("unexpected detail %q", got)
	}
}

func TestLoginThenComplete(t *testing.T) {
	env := newTestEnv(t)

	form := url.Values{"username": {"admin"}, "password": {"admin"}}
	req := httptest.NewRequest(http.MethodPost, "/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	env.engine.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 from login, got %d: %s", w.Code, w.Body.String())
	}
	var tokenBody struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &tokenBody); err != nil {
		t.Fatalf("failed to decode token body: %v", err)
	}
	if tokenBody.TokenType != "bearer" || tokenBody.AccessToken == "" {
		t.Fatalf("unexpected token body: %+v", tokenBody)
	}

	resp := env.do(t, http.MethodPost, "/chat/completions", tokenBody.AccessToken,
		`{"model":"gpt-4o","messages":[{"role":"user","content":"say hi"}],"mock_response":"hi there"}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var out struct {
		ID      string `json:"id"`
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil {
		t.Fatalf("failed to decode completion: %v", err)
	}
	if len(out.Choices) != 1 || out.Choices[0].Message.Content != "hi there" {
		t.Fatalf("unexpected completion body: %s", resp.Body.String())
	}

	// The pipeline recorded exactly one usage event.
	logs, err := env.ledgerSvc.List(context.Background(), ledgerdomain.ListRequest{})
	if err != nil {
		t.Fatalf("failed to list usage: %v", err)
	}
	if len(logs.Items) != 1 || logs.Items[0].ResponseID != out.ID {
		t.Fatalf("expected one event for %s, got %+v", out.ID, logs.Items)
	}
}

func TestCompletionUnknownModel(t *testing.T) {
	env := newTestEnv(t)
	token := env.tokenFor(t, "admin")

	w := env.do(t, http.MethodPost, "/chat/completions", token,
		`{"model":"gpt-unknown","messages":[{"role":"user","content":"hi"}]}`)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	if got := decodeDetail(t, w); got != "model=gpt-unknown not registered" {
		t.Fatalf("unexpected detail %q", got)
	}
}

func TestStreamCompletion(t *testing.T) {
	env := newTestEnv(t)
	token := env.tokenFor(t, "admin")

	w := env.do(t, http.MethodPost, "/chat/completions", token,
		`{"model":"gpt-4o","messages":[{"role":"user","content":"hi"}],"stream":true,"mock_response":"hello world"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if got := w.Header().Get("Content-Type"); got != "text/event-stream" {
		t.Fatalf("expected event stream, got %q", got)
	}

	body := w.Body.String()
	if !strings.HasPrefix(body, "data: ") {
		t.Fatalf("expected SSE frames, got %q", body)
	}
	if !strings.HasSuffix(body, "data: [DONE]\n\n") {
		t.Fatalf("expected terminal sentinel, got %q", body)
	}

	logs, err := env.ledgerSvc.List(context.Background(), ledgerdomain.ListRequest{})
	if err != nil {
		t.Fatalf("failed to list usage: %v", err)
	}
	if len(logs.Items) != 1 {
		t.Fatalf("expected one usage event, got %d", len(logs.Items))
	}
	if logs.Items[0].CompletionTokens != 2 {
		t.Fatalf("expected mock usage recorded, got %+v", logs.Items[0])
	}
}

func TestCompletionQuotaDenied(t *testing.T) {
	env := newTestEnv(t)
	rpm := int64(0)
	user := env.createUser(t, userdomain.CreateRequest{
		Username: "capped", Password: "pw", RequestsPerMinute: &rpm,
	})

	if err := env.ledgerSvc.Append(context.Background(), &ledgerdomain.UsageEvent{
		Timestamp:  time.Now().UTC(),
		ResponseID: "chatcmpl-prior",
		UserID:     user.ID.String(),
		Model:      "gpt-4o",
	}); err != nil {
		t.Fatalf("failed to seed usage: %v", err)
	}

	w := env.do(t, http.MethodPost, "/chat/completions", env.tokenFor(t, "capped"),
		`{"model":"gpt-4o","messages":[{"role":"user","content":"hi"}],"mock_response":"nope"}`)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d: %s", w.Code, w.Body.String())
	}
	if got := decodeDetail(t, w); got != "requests_per_minute=1 exceeded limit=0" {
		t.Fatalf("unexpected detail %q", got)
	}
}

func TestSpendLogsScopedForNonAdmins(t *testing.T) {
	env := newTestEnv(t)
	bob := env.createUser(t, userdomain.CreateRequest{Username: "bob", Password: "pw"})

	now := time.Now().UTC()
	for _, row := range []struct{ user, resp string }{
		{bob.ID.String(), "chatcmpl-bob"},
		{"someone-else", "chatcmpl-other"},
	} {
		if err := env.ledgerSvc.Append(context.Background(), &ledgerdomain.UsageEvent{
			Timestamp: now, ResponseID: row.resp, UserID: row.user, Model: "gpt-4o",
		}); err != nil {
			t.Fatalf("failed to seed usage: %v", err)
		}
	}

	// The user_id filter is ignored for non-admins.
	w := env.do(t, http.MethodGet, "/spend/logs?user_id=someone-else", env.tokenFor(t, "bob"), "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp ledgerdomain.ListResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if len(resp.Items) != 1 || resp.Items[0].ResponseID != "chatcmpl-bob" {
		t.Fatalf("expected only bob's rows, got %+v", resp.Items)
	}

	// Admins see everything.
	w = env.do(t, http.MethodGet, "/spend/logs", env.tokenFor(t, "admin"), "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if len(resp.Items) != 2 {
		t.Fatalf("expected both rows for admin, got %d", len(resp.Items))
	}
}

func TestAdminGateOnUserRoutes(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, userdomain.CreateRequest{Username: "bob", Password: "pw"})

	w := env.do(t, http.MethodPost, "/users", env.tokenFor(t, "bob"),
		`{"username":"eve","password":"pw"}`)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
	if got := decodeDetail(t, w); got != "you need to be an admin to perform this action" {
		t.Fatalf("unexpected detail %q", got)
	}
}

func TestUserListScopedForNonAdmins(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, userdomain.CreateRequest{Username: "bob", Password: "pw"})

	w := env.do(t, http.MethodGet, "/users", env.tokenFor(t, "bob"), "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var users []userdomain.User
	if err := json.Unmarshal(w.Body.Bytes(), &users); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if len(users) != 1 || users[0].Username != "bob" {
		t.Fatalf("expected bob's own row only, got %+v", users)
	}
}

func TestUserAdminCRUD(t *testing.T) {
	env := newTestEnv(t)
	admin := env.tokenFor(t, "admin")

	w := env.do(t, http.MethodPost, "/users", admin, `{"username":"carol","password":"pw","cost_usd_per_month":25}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var created userdomain.User
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if created.CostUSDPerMonth != 25 {
		t.Fatalf("expected cost limit 25, got %v", created.CostUSDPerMonth)
	}
	if strings.Contains(w.Body.String(), "password") {
		t.Fatalf("password material leaked: %s", w.Body.String())
	}

	w = env.do(t, http.MethodPut, "/users/carol", admin, `{"requests_per_minute":5}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	w = env.do(t, http.MethodDelete, "/users/carol", admin, "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}

	w = env.do(t, http.MethodDelete, "/users/carol", admin, "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for missing user, got %d", w.Code)
	}
}

func TestModelAdminCRUD(t *testing.T) {
	env := newTestEnv(t)
	admin := env.tokenFor(t, "admin")

	w := env.do(t, http.MethodPost, "/models", admin,
		`{"name":"gpt-4o-mini","input_cost_per_token":0.0001,"output_cost_per_token":0.0002}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	w = env.do(t, http.MethodGet, "/models", admin, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var models []registrydomain.Model
	if err := json.Unmarshal(w.Body.Bytes(), &models); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if len(models) != 2 {
		t.Fatalf("expected 2 models, got %d", len(models))
	}

	w = env.do(t, http.MethodPut, "/models/gpt-4o-mini", admin, `{"output_cost_per_token":0.0003}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	w = env.do(t, http.MethodDelete, "/models/gpt-4o-mini", admin, "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/health", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}
