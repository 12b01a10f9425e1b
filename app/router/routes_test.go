package router

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/amirphl/Shiten/app/handlers"
	"github.com/amirphl/Shiten/app/middleware"
	"github.com/amirphl/Shiten/app/services"
	businessflow "github.com/amirphl/Shiten/business_flow"
	"github.com/amirphl/Shiten/config"
	testutil "github.com/amirphl/Shiten/testing"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type envelope struct {
	Success     bool            `json:"success"`
	Message     string          `json:"message"`
	Data        json.RawMessage `json:"data"`
	Error       string          `json:"error"`
	IsFormError bool            `json:"isFormError"`
	Code        string          `json:"code"`
	Details     json.RawMessage `json:"details"`
}

type branchView struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Kind      string `json:"kind"`
	Status    bool   `json:"status"`
	CompanyID string `json:"companyId"`
}

type testServer struct {
	t      *testing.T
	app    *fiber.App
	store  *testutil.MemStore
	clock  *testClock
	cookie string
}

func newTestServer(t *testing.T, checks map[string]HealthCheck) *testServer {
	t.Helper()

	store := testutil.NewMemStore()
	repos := store.Repositories()
	clock := &testClock{now: time.Now().UTC()}
	passwords := services.NewBcryptPasswordService(bcrypt.MinCost)
	tokens, err := services.NewSessionTokenService(32)
	require.NoError(t, err)

	sessions := businessflow.NewSessionFlow(repos.Sessions, repos.Branches, repos.AuditLogs, tokens, 24*time.Hour, clock.Now)
	signupFlow := businessflow.NewSignupFlow(repos.Companies, repos.Accounts, repos.Branches, repos.AuditLogs, passwords, repos.Transactor)
	loginFlow := businessflow.NewLoginFlow(repos.Branches, repos.Companies, repos.Accounts, repos.AuditLogs, passwords, nil, sessions)
	branchFlow := businessflow.NewBranchFlow(repos.Branches, repos.Accounts, repos.Sessions, repos.AuditLogs, passwords, repos.Transactor, clock.Now)
	companyFlow := businessflow.NewCompanyFlow(repos.Companies, repos.AuditLogs)

	cookie := middleware.NewSessionCookie(config.SessionConfig{CookieName: "_session", CookieHTTPOnly: true, CookieSameSite: "Lax"})
	handlerOpts := handlers.Options{Production: true}

	r := NewFiberRouter(
		handlers.NewAuthHandler(signupFlow, loginFlow, cookie, handlerOpts),
		handlers.NewBranchHandler(branchFlow, handlerOpts),
		handlers.NewCompanyHandler(companyFlow, handlerOpts),
		middleware.NewSessionMiddleware(sessions, cookie),
		Options{
			Production:     true,
			Version:        "test",
			AllowedOrigins: []string{"http://localhost:3000"},
			MetricsEnabled: true,
			HealthChecks:   checks,
		},
	)
	r.SetupRoutes()

	return &testServer{t: t, app: r.GetApp(), store: store, clock: clock, cookie: cookie.Name}
}

// do sends one request and returns the status, the decoded envelope and the session cookie the response set
func (s *testServer) do(method, path string, body any, token string) (int, envelope, *http.Cookie) {
	s.t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.AddCookie(&http.Cookie{Name: s.cookie, Value: token})
	}

	resp, err := s.app.Test(req, fiber.TestConfig{Timeout: 5 * time.Second})
	require.NoError(s.t, err)
	defer resp.Body.Close()

	var env envelope
	raw, err := io.ReadAll(resp.Body)
	require.NoError(s.t, err)
	if len(raw) > 0 {
		require.NoError(s.t, json.Unmarshal(raw, &env), string(raw))
	}

	var sessionCookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == s.cookie {
			sessionCookie = c
		}
	}
	return resp.StatusCode, env, sessionCookie
}

func (s *testServer) register(username, email string) branchView {
	s.t.Helper()
	status, env, _ := s.do(http.MethodPost, "/api/auth/register", map[string]string{
		"name":         "Head Office",
		"businessName": "Acme",
		"email":        email,
		"username":     username,
		"password":     "Secret123",
	}, "")
	require.Equal(s.t, http.StatusCreated, status, env.Error)

	var branch branchView
	require.NoError(s.t, json.Unmarshal(env.Data, &branch))
	return branch
}

func (s *testServer) login(username, password string) string {
	s.t.Helper()
	status, env, cookie := s.do(http.MethodPost, "/api/auth/login", map[string]string{
		"username": username,
		"password": password,
	}, "")
	require.Equal(s.t, http.StatusOK, status, env.Error)
	require.NotNil(s.t, cookie)
	require.NotEmpty(s.t, cookie.Value)
	return cookie.Value
}

func TestAcmeScenario(t *testing.T) {
	s := newTestServer(t, nil)

	branch := s.register("acme01", "owner@acme.io")
	assert.Equal(t, "main", branch.Kind)
	assert.True(t, branch.Status)

	cookieA := s.login("acme01", "Secret123")

	status, env, cookie := s.do(http.MethodGet, "/api/auth/me", nil, cookieA)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Details!", env.Message)
	var me branchView
	require.NoError(t, json.Unmarshal(env.Data, &me))
	assert.Equal(t, branch.ID, me.ID)
	require.NotNil(t, cookie)
	cookieB := cookie.Value
	assert.NotEqual(t, cookieA, cookieB)
	assert.True(t, cookie.HttpOnly)

	status, env, cookie = s.do(http.MethodGet, "/api/auth/me", nil, cookieA)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "no session found", env.Error)
	require.NotNil(t, cookie, "a stale token clears the cookie")
	assert.Empty(t, cookie.Value)

	status, _, cookie = s.do(http.MethodGet, "/api/auth/me", nil, cookieB)
	assert.Equal(t, http.StatusOK, status)
	require.NotNil(t, cookie)
	assert.NotEqual(t, cookieB, cookie.Value)
}

func TestMissingCookie(t *testing.T) {
	s := newTestServer(t, nil)

	status, env, cookie := s.do(http.MethodGet, "/api/auth/me", nil, "")
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "no session presented", env.Error)
	assert.False(t, env.Success)
	assert.Nil(t, cookie)
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	s := newTestServer(t, nil)
	main := s.register("acme01", "owner@acme.io")
	admin := s.login("acme01", "Secret123")

	status, env, cookie := s.do(http.MethodPost, "/api/branch/create-branch", map[string]string{
		"name":     "Downtown",
		"username": "acme02",
		"password": "Branch123",
	}, admin)
	require.Equal(t, http.StatusCreated, status, env.Error)
	require.NotNil(t, cookie)
	admin = cookie.Value
	var sub branchView
	require.NoError(t, json.Unmarshal(env.Data, &sub))
	assert.Equal(t, "branch", sub.Kind)

	status, _, cookie = s.do(http.MethodPatch, "/api/branch/deactive?id="+sub.ID, nil, admin)
	require.Equal(t, http.StatusOK, status)
	admin = cookie.Value

	attempts := map[string][2]string{
		"wrong password":    {"acme01", "Wrong1234"},
		"unknown username":  {"nobody01", "Secret123"},
		"disabled branch":   {"acme02", "Branch123"},
		"empty credentials": {"acme01", ""},
	}

	var messages []string
	for name, creds := range attempts {
		status, env, cookie := s.do(http.MethodPost, "/api/auth/login", map[string]string{
			"username": creds[0],
			"password": creds[1],
		}, "")
		if name == "empty credentials" {
			assert.Equal(t, http.StatusBadRequest, status, name)
			continue
		}
		assert.Equal(t, http.StatusUnauthorized, status, name)
		assert.Nil(t, cookie, name)
		messages = append(messages, env.Error)
	}

	status, _, _ = s.do(http.MethodPatch, "/api/company/deactive?id="+main.CompanyID, nil, admin)
	require.Equal(t, http.StatusOK, status)

	status, env, _ = s.do(http.MethodPost, "/api/auth/login", map[string]string{"username": "acme01", "password": "Secret123"}, "")
	assert.Equal(t, http.StatusUnauthorized, status)
	messages = append(messages, env.Error)

	for _, message := range messages {
		assert.Equal(t, "incorrect credentials", message)
	}
}

func TestSessionExpiry(t *testing.T) {
	s := newTestServer(t, nil)
	s.register("acme01", "owner@acme.io")
	token := s.login("acme01", "Secret123")

	s.clock.Advance(24*time.Hour + time.Second)

	status, env, cookie := s.do(http.MethodGet, "/api/auth/me", nil, token)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "session expired", env.Error)
	require.NotNil(t, cookie)
	assert.Empty(t, cookie.Value)

	_, _, _, sessions := s.store.Counts()
	assert.Zero(t, sessions)

	status, env, _ = s.do(http.MethodGet, "/api/auth/me", nil, token)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "no session found", env.Error)
}

func TestDuplicateUsernameIsConflict(t *testing.T) {
	s := newTestServer(t, nil)
	s.register("acme01", "owner@acme.io")

	status, env, _ := s.do(http.MethodPost, "/api/auth/register", map[string]string{
		"name":         "Other Office",
		"businessName": "Other",
		"email":        "owner@other.io",
		"username":     "acme01",
		"password":     "Secret123",
	}, "")
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "username already used", env.Error)
	assert.True(t, env.IsFormError)

	companies, accounts, branches, _ := s.store.Counts()
	assert.Equal(t, 1, companies)
	assert.Equal(t, 1, accounts)
	assert.Equal(t, 1, branches)
}

func TestRegisterValidation(t *testing.T) {
	s := newTestServer(t, nil)

	status, env, _ := s.do(http.MethodPost, "/api/auth/register", map[string]string{
		"name":         "HQ Office",
		"businessName": "Acme",
		"email":        "not-an-email",
		"username":     "Acme-01",
		"password":     "lowercase1",
	}, "")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.True(t, env.IsFormError)
	assert.Equal(t, "VALIDATION_ERROR", env.Code)

	var details map[string]string
	require.NoError(t, json.Unmarshal(env.Details, &details))
	assert.Contains(t, details, "email")
	assert.Contains(t, details, "username")
	assert.Equal(t, "Password must contain at least 1 uppercase letter", details["password"])
}

func TestSubBranchIsForbiddenOnAdministrativeRoutes(t *testing.T) {
	s := newTestServer(t, nil)
	main := s.register("acme01", "owner@acme.io")
	admin := s.login("acme01", "Secret123")

	status, _, _ := s.do(http.MethodPost, "/api/branch/create-branch", map[string]string{
		"name":     "Downtown",
		"username": "acme02",
		"password": "Branch123",
	}, admin)
	require.Equal(t, http.StatusCreated, status)

	token := s.login("acme02", "Branch123")

	requests := []struct {
		method string
		path   string
		body   any
	}{
		{http.MethodPost, "/api/branch/create-branch", map[string]string{"name": "Uptown", "username": "acme03", "password": "Branch123"}},
		{http.MethodPatch, "/api/branch/update-branch?id=" + main.ID, map[string]string{"name": "Renamed"}},
		{http.MethodPatch, "/api/company/update-company?id=" + main.CompanyID, map[string]string{"businessName": "Evil"}},
		{http.MethodPatch, "/api/company/deactive?id=" + main.CompanyID, nil},
	}

	for _, tc := range requests {
		status, env, cookie := s.do(tc.method, tc.path, tc.body, token)
		assert.Equal(t, http.StatusForbidden, status, tc.path)
		assert.Equal(t, "unauthorized", env.Error, tc.path)
		require.NotNil(t, cookie, tc.path)
		token = cookie.Value
	}

	_, _, branches, _ := s.store.Counts()
	assert.Equal(t, 2, branches)
}

func TestSignOut(t *testing.T) {
	s := newTestServer(t, nil)
	s.register("acme01", "owner@acme.io")
	token := s.login("acme01", "Secret123")

	status, env, cookie := s.do(http.MethodGet, "/api/auth/sign-out", nil, token)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Successfully sign-out!", env.Message)
	require.NotNil(t, cookie)
	assert.Empty(t, cookie.Value)

	_, _, _, sessions := s.store.Counts()
	assert.Zero(t, sessions)

	status, _, _ = s.do(http.MethodGet, "/api/auth/me", nil, token)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestPublicLookups(t *testing.T) {
	s := newTestServer(t, nil)
	main := s.register("acme01", "owner@acme.io")

	status, env, _ := s.do(http.MethodGet, "/api/branch/list?id="+main.CompanyID, nil, "")
	require.Equal(t, http.StatusOK, status)
	var branches []branchView
	require.NoError(t, json.Unmarshal(env.Data, &branches))
	require.Len(t, branches, 1)
	assert.Equal(t, "acme01", branches[0].Username)

	status, env, _ = s.do(http.MethodGet, "/api/branch?id="+main.ID, nil, "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Branch details!", env.Message)

	status, env, _ = s.do(http.MethodGet, "/api/company?id="+main.CompanyID, nil, "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Company Details", env.Message)

	status, env, _ = s.do(http.MethodGet, "/api/company/list", nil, "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Companies:", env.Message)

	status, _, _ = s.do(http.MethodGet, "/api/branch?id=00000000-0000-0000-0000-000000000001", nil, "")
	assert.Equal(t, http.StatusNotFound, status)

	status, _, _ = s.do(http.MethodGet, "/api/branch/list?id=00000000-0000-0000-0000-000000000001", nil, "")
	assert.Equal(t, http.StatusNotFound, status)

	status, env, _ = s.do(http.MethodGet, "/api/branch?id=not-a-uuid", nil, "")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_ERROR", env.Code)

	status, env, _ = s.do(http.MethodGet, "/api/nowhere", nil, "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", env.Code)
}

func TestHealthCheck(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		s := newTestServer(t, map[string]HealthCheck{
			"database": func(context.Context) error { return nil },
		})
		status, env, _ := s.do(http.MethodGet, "/api/health", nil, "")
		assert.Equal(t, http.StatusOK, status)
		assert.True(t, env.Success)
	})

	t.Run("dependency down", func(t *testing.T) {
		s := newTestServer(t, map[string]HealthCheck{
			"database": func(context.Context) error { return errors.New("connection refused") },
		})
		status, env, _ := s.do(http.MethodGet, "/api/health", nil, "")
		assert.Equal(t, http.StatusServiceUnavailable, status)
		assert.Equal(t, "UNHEALTHY", env.Code)
	})
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, nil)
	s.do(http.MethodGet, "/api/company/list", nil, "")

	resp, err := s.app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "http_requests_total")
}
