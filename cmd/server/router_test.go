package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"tourbook/cmd/server/handlers"
	"tourbook/cmd/server/handlers/handlerutil"
	reviewsHandlers "tourbook/cmd/server/handlers/reviews"
	toursHandlers "tourbook/cmd/server/handlers/tours"
	"tourbook/cmd/server/middlewares"
	"tourbook/cmd/server/testutil"
	"tourbook/internal/config"
	"tourbook/internal/logger"
	"tourbook/internal/services/auth"
	"tourbook/internal/services/reviews"
	"tourbook/internal/services/tours"
	"tourbook/internal/services/users"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func TestRequestLoggingConfig(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		expected bool
	}{
		{
			name:     "request logging disabled",
			envValue: "false",
			expected: false,
		},
		{
			name:     "request logging enabled",
			envValue: "true",
			expected: true,
		},
		{
			name:     "default value (no env var)",
			envValue: "",
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				_ = os.Unsetenv("REQUEST_LOGGING_ENABLED")
				config.ResetCache()
			}()

			if tt.envValue != "" {
				err := os.Setenv("REQUEST_LOGGING_ENABLED", tt.envValue)
				require.NoError(t, err)
			}

			config.ResetCache()

			cfg, err := config.Load()
			require.NoError(t, err)

			assert.Equal(t, tt.expected, cfg.RequestLoggingEnabled,
				"RequestLoggingEnabled should be %v when REQUEST_LOGGING_ENABLED=%s",
				tt.expected, tt.envValue)
		})
	}
}

// memUsers is an in-memory user store for router tests.
type memUsers struct {
	mu   sync.Mutex
	byID map[bson.ObjectID]*auth.User
}

func newMemUsers() *memUsers {
	return &memUsers{byID: map[bson.ObjectID]*auth.User{}}
}

func (m *memUsers) add(role auth.Role) *auth.User {
	u := &auth.User{
		ID:        bson.NewObjectID(),
		Name:      string(role) + " user",
		Email:     string(role) + "@example.com",
		Role:      role,
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}
	m.mu.Lock()
	m.byID[u.ID] = u
	m.mu.Unlock()
	return u
}

func (m *memUsers) Create(_ context.Context, user *auth.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.Email == user.Email {
			return auth.ErrDuplicate
		}
	}
	cp := *user
	m.byID[user.ID] = &cp
	return nil
}

func (m *memUsers) find(match func(*auth.User) bool) (*auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.Active && match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, auth.ErrUserNotFound
}

func (m *memUsers) FindByEmail(_ context.Context, email string) (*auth.User, error) {
	return m.find(func(u *auth.User) bool { return u.Email == email })
}

func (m *memUsers) FindByID(_ context.Context, id bson.ObjectID) (*auth.User, error) {
	return m.find(func(u *auth.User) bool { return u.ID == id })
}

func (m *memUsers) ConsumeResetToken(_ context.Context, tokenHash string, now time.Time, passwordHash string, changedAt time.Time) (*auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.Active && u.PasswordResetTokenHash == tokenHash &&
			u.PasswordResetExpiresAt != nil && u.PasswordResetExpiresAt.After(now) {
			u.PasswordHash = passwordHash
			u.PasswordChangedAt = &changedAt
			u.PasswordResetTokenHash = ""
			u.PasswordResetExpiresAt = nil
			cp := *u
			return &cp, nil
		}
	}
	return nil, auth.ErrUserNotFound
}

func (m *memUsers) modify(id bson.ObjectID, fn func(*auth.User)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok || !u.Active {
		return auth.ErrUserNotFound
	}
	fn(u)
	return nil
}

func (m *memUsers) SetResetToken(_ context.Context, id bson.ObjectID, tokenHash string, expiresAt time.Time) error {
	return m.modify(id, func(u *auth.User) {
		u.PasswordResetTokenHash = tokenHash
		u.PasswordResetExpiresAt = &expiresAt
	})
}

func (m *memUsers) ClearResetToken(_ context.Context, id bson.ObjectID) error {
	return m.modify(id, func(u *auth.User) {
		u.PasswordResetTokenHash = ""
		u.PasswordResetExpiresAt = nil
	})
}

func (m *memUsers) SetPassword(_ context.Context, id bson.ObjectID, passwordHash string, changedAt time.Time) error {
	return m.modify(id, func(u *auth.User) {
		u.PasswordHash = passwordHash
		u.PasswordChangedAt = &changedAt
		u.PasswordResetTokenHash = ""
		u.PasswordResetExpiresAt = nil
	})
}

func (m *memUsers) List(_ context.Context, _, _ int64) ([]*auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*auth.User{}
	for _, u := range m.byID {
		if u.Active {
			cp := *u
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memUsers) Update(ctx context.Context, id bson.ObjectID, patch auth.UserPatch) (*auth.User, error) {
	err := m.modify(id, func(u *auth.User) {
		if patch.Name != nil {
			u.Name = *patch.Name
		}
		if patch.Email != nil {
			u.Email = *patch.Email
		}
		if patch.Role != nil {
			u.Role = *patch.Role
		}
	})
	if err != nil {
		return nil, err
	}
	return m.FindByID(ctx, id)
}

func (m *memUsers) Deactivate(_ context.Context, id bson.ObjectID) error {
	return m.modify(id, func(u *auth.User) { u.Active = false })
}

func (m *memUsers) Delete(_ context.Context, id bson.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[id]; !ok {
		return auth.ErrUserNotFound
	}
	delete(m.byID, id)
	return nil
}

type nopMailer struct{}

func (nopMailer) SendWelcome(context.Context, *auth.User, string) error       { return nil }
func (nopMailer) SendPasswordReset(context.Context, *auth.User, string) error { return nil }

// stubTours answers the public tour reads with an empty catalogue.
type stubTours struct {
	toursHandlers.Service
}

func (stubTours) List(context.Context, tours.ListRequest) ([]*tours.Tour, error) {
	return []*tours.Tour{}, nil
}

func (stubTours) GetBySlug(context.Context, string) (*tours.Details, error) {
	return nil, tours.ErrTourNotFound
}

func (stubTours) Stats(context.Context) ([]tours.DifficultyStats, error) {
	return []tours.DifficultyStats{}, nil
}

type stubReviews struct {
	reviewsHandlers.Service
}

type noTours struct{}

func (noTours) Exists(context.Context, bson.ObjectID) (bool, error) { return false, nil }

func testConfig() config.Config {
	return config.Config{
		AppEnv:               config.EnvDevelopment,
		BcryptCost:           10,
		JWTCookieExpiresDays: 1,
		APIRatePerHour:       100,
		SignInRatePerMin:     5,
		BodyLimitBytes:       10 * 1024,
		WSOutboxBuffer:       4,
		WSMaxSessionSec:      60,
	}
}

type routerFixture struct {
	app    *fiber.App
	users  *memUsers
	tokens *auth.TokenService
}

func setupTestRouter(t *testing.T, cfg config.Config) routerFixture {
	t.Helper()

	repo := newMemUsers()
	tokens := testutil.NewTokenService()
	log := logger.L()

	deps := Deps{
		Auth:        auth.NewService(repo, tokens, nopMailer{}, cfg, log),
		Tokens:      tokens,
		Users:       users.NewService(repo, log),
		Tours:       stubTours{},
		Reviews:     stubReviews{},
		Hub:         reviews.NewHub(cfg.WSOutboxBuffer),
		TourChecker: noTours{},
		Checks: []handlers.Check{{Name: "mongo", Ping: func(context.Context) error {
			return nil
		}}},
	}

	return routerFixture{app: setupRouter(cfg, deps), users: repo, tokens: tokens}
}

func (f routerFixture) bearer(t *testing.T, u *auth.User) string {
	t.Helper()
	token, err := f.tokens.Issue(u.ID)
	require.NoError(t, err)
	return "Bearer " + token
}

func do(t *testing.T, app *fiber.App, req *http.Request) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	if !strings.HasPrefix(resp.Header.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON) {
		return resp, map[string]any{}
	}
	return resp, testutil.DecodeJSON(t, resp)
}

func TestSignUpThenMe(t *testing.T) {
	f := setupTestRouter(t, testConfig())

	req := testutil.CreateJSONRequest(http.MethodPost, "/api/v1/users/signup", map[string]string{
		"name":            "Laura Wilson",
		"email":           "Laura@Example.com",
		"password":        "abcd1234",
		"passwordConfirm": "abcd1234",
	})
	resp, body := do(t, f.app, req)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	token, _ := body["token"].(string)
	require.NotEmpty(t, token)
	require.NotNil(t, testutil.FindCookie(resp, handlerutil.CookieName))

	req = httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	resp, body = do(t, f.app, req)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	data := body["data"].(map[string]any)
	user := data["user"].(map[string]any)
	assert.Equal(t, "laura@example.com", user["email"])
	assert.Equal(t, "user", user["role"])
	assert.NotContains(t, user, "password")
}

func TestLoginWithCookieSession(t *testing.T) {
	f := setupTestRouter(t, testConfig())

	signup := testutil.CreateJSONRequest(http.MethodPost, "/api/v1/users/signup", map[string]string{
		"name": "Jonas", "email": "jonas@example.com", "password": "pass12345", "passwordConfirm": "pass12345",
	})
	resp, _ := do(t, f.app, signup)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	login := testutil.CreateJSONRequest(http.MethodPost, "/api/v1/users/login", map[string]string{
		"email": "jonas@example.com", "password": "pass12345",
	})
	resp, _ = do(t, f.app, login)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	cookie := testutil.FindCookie(resp, handlerutil.CookieName)
	require.NotNil(t, cookie)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
	req.AddCookie(&http.Cookie{Name: handlerutil.CookieName, Value: cookie.Value})
	resp, _ = do(t, f.app, req)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	bad := testutil.CreateJSONRequest(http.MethodPost, "/api/v1/users/login", map[string]string{
		"email": "jonas@example.com", "password": "wrong-password",
	})
	resp, body := do(t, f.app, bad)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Incorrect email or password", body["message"])
}

func TestProtectedRoutes(t *testing.T) {
	f := setupTestRouter(t, testConfig())
	regular := f.users.add(auth.RoleUser)
	admin := f.users.add(auth.RoleAdmin)
	lead := f.users.add(auth.RoleLeadGuide)

	tests := []struct {
		name   string
		method string
		path   string
		auth   string
		body   string
		status int
	}{
		{"me without token", http.MethodGet, "/api/v1/users/me", "", "", fiber.StatusUnauthorized},
		{"me with garbage token", http.MethodGet, "/api/v1/users/me", "Bearer nope", "", fiber.StatusUnauthorized},
		{"users list as user", http.MethodGet, "/api/v1/users", f.bearer(t, regular), "", fiber.StatusForbidden},
		{"users list as admin", http.MethodGet, "/api/v1/users", f.bearer(t, admin), "", fiber.StatusOK},
		{"create user as admin", http.MethodPost, "/api/v1/users", f.bearer(t, admin), `{}`, fiber.StatusBadRequest},
		{"tours are public", http.MethodGet, "/api/v1/tours", "", "", fiber.StatusOK},
		{"tour stats are public", http.MethodGet, "/api/v1/tours/tour-stats", "", "", fiber.StatusOK},
		{"create tour as user", http.MethodPost, "/api/v1/tours", f.bearer(t, regular), `{}`, fiber.StatusForbidden},
		{"create tour as lead guide", http.MethodPost, "/api/v1/tours", f.bearer(t, lead), `{}`, fiber.StatusBadRequest},
		{"reviews need login", http.MethodGet, "/api/v1/reviews", "", "", fiber.StatusUnauthorized},
		{"nested review as admin", http.MethodPost, "/api/v1/tours/" + bson.NewObjectID().Hex() + "/reviews", f.bearer(t, admin), `{}`, fiber.StatusForbidden},
		{"delete review as lead guide", http.MethodDelete, "/api/v1/reviews/" + bson.NewObjectID().Hex(), f.bearer(t, lead), "", fiber.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body io.Reader
			if tt.body != "" {
				body = strings.NewReader(tt.body)
			}
			req := httptest.NewRequest(tt.method, tt.path, body)
			if tt.body != "" {
				req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
			}
			if tt.auth != "" {
				req.Header.Set(fiber.HeaderAuthorization, tt.auth)
			}
			resp, _ := do(t, f.app, req)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestDeactivatedUserTokenRejected(t *testing.T) {
	f := setupTestRouter(t, testConfig())
	u := f.users.add(auth.RoleUser)
	token := f.bearer(t, u)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/users/deleteMe", nil)
	req.Header.Set(fiber.HeaderAuthorization, token)
	resp, _ := do(t, f.app, req)
	require.Equal(t, fiber.StatusNoContent, resp.StatusCode)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
	req.Header.Set(fiber.HeaderAuthorization, token)
	resp, body := do(t, f.app, req)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "The user belonging to this token does no longer exist.", body["message"])
}

func TestUnknownRoute(t *testing.T) {
	f := setupTestRouter(t, testConfig())

	resp, body := do(t, f.app, httptest.NewRequest(http.MethodGet, "/api/v1/nope", nil))
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "fail", body["status"])
	assert.Equal(t, "Can't find /api/v1/nope on this server", body["message"])
}

func TestOperatorKeysRejected(t *testing.T) {
	f := setupTestRouter(t, testConfig())

	req := testutil.CreateJSONRequest(http.MethodPost, "/api/v1/users/login",
		`{"email":{"$gt":""},"password":"pass12345"}`)
	resp, body := do(t, f.app, req)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, middlewares.ErrOperatorKey.Message, body["message"])
}

func TestBodyLimit(t *testing.T) {
	f := setupTestRouter(t, testConfig())

	big := fmt.Sprintf(`{"name":%q}`, strings.Repeat("a", 11*1024))
	req := testutil.CreateJSONRequest(http.MethodPost, "/api/v1/users/signup", big)
	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusRequestEntityTooLarge, resp.StatusCode)
}

func TestSecurityHeadersAndHealthz(t *testing.T) {
	f := setupTestRouter(t, testConfig())

	resp, body := do(t, f.app, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])

	assert.NotEmpty(t, resp.Header.Get(fiber.HeaderXRequestID))
	assert.Equal(t, "nosniff", resp.Header.Get(fiber.HeaderXContentTypeOptions))
	assert.Equal(t, "SAMEORIGIN", resp.Header.Get(fiber.HeaderXFrameOptions))
}

func TestLogoutClearsCookie(t *testing.T) {
	f := setupTestRouter(t, testConfig())

	resp, body := do(t, f.app, httptest.NewRequest(http.MethodGet, "/api/v1/users/logout", nil))
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "success", body["status"])

	cookie := testutil.FindCookie(resp, handlerutil.CookieName)
	require.NotNil(t, cookie)
	assert.Equal(t, "loggedout", cookie.Value)
}

func TestSignInLimiter(t *testing.T) {
	cfg := testConfig()
	cfg.SignInRatePerMin = 2
	f := setupTestRouter(t, cfg)

	for i := 0; i < 2; i++ {
		req := testutil.CreateJSONRequest(http.MethodPost, "/api/v1/users/login",
			map[string]string{"email": "nobody@example.com", "password": "pass12345"})
		resp, _ := do(t, f.app, req)
		require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	}

	req := testutil.CreateJSONRequest(http.MethodPost, "/api/v1/users/login",
		map[string]string{"email": "nobody@example.com", "password": "pass12345"})
	resp, _ := do(t, f.app, req)
	assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)

	// signup is outside the sign-in limiter
	req = testutil.CreateJSONRequest(http.MethodPost, "/api/v1/users/signup", `{}`)
	resp, _ = do(t, f.app, req)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	cfg := testConfig()
	cfg.RouteMetricsEnabled = true
	f := setupTestRouter(t, cfg)

	resp, _ := do(t, f.app, httptest.NewRequest(http.MethodGet, "/api/v1/tours", nil))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, err := f.app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "http_requests_total")
	assert.Contains(t, string(raw), `status="2xx"`)
	assert.Contains(t, string(raw), "review_feed_subscribers 0")
}

func TestPagesRender(t *testing.T) {
	f := setupTestRouter(t, testConfig())

	resp, err := f.app.Test(httptest.NewRequest(http.MethodGet, "/", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get(fiber.HeaderContentType), fiber.MIMETextHTML)

	resp, err = f.app.Test(httptest.NewRequest(http.MethodGet, "/tour/missing", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp, err = f.app.Test(httptest.NewRequest(http.MethodGet, "/me", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}
