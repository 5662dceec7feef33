//go:build e2e

package test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tourbook/internal/config"
)

const (
	signUpEndpoint  = "/api/v1/users/signup"
	loginEndpoint   = "/api/v1/users/login"
	logoutEndpoint  = "/api/v1/users/logout"
	meEndpoint      = "/api/v1/users/me"
	toursEndpoint   = "/api/v1/tours"
	reviewsEndpoint = "/api/v1/reviews"

	e2eDBName = "e2e"

	msgFailedToCloseResponseBody = "failed to close response body: %v"
)

// TestEnvironment is a running server backed by its own MongoDB.
type TestEnvironment struct {
	MongoURI string
	BaseURL  string
	Client   *http.Client
}

// SetupTestEnvironment starts MongoDB and one server with default settings.
func SetupTestEnvironment(t *testing.T) *TestEnvironment {
	return SetupTestEnvironmentWithEnv(t, nil)
}

// SetupTestEnvironmentWithEnv starts MongoDB and one server whose
// environment is extended by extraEnv.
func SetupTestEnvironmentWithEnv(t *testing.T, extraEnv map[string]string) *TestEnvironment {
	t.Helper()
	config.ResetCache()
	t.Cleanup(config.ResetCache)

	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	t.Cleanup(cancel)

	return startServer(ctx, t, startMongo(ctx, t), extraEnv)
}

// startServer launches one more server against mongoURI and waits until
// it reports healthy.
func startServer(ctx context.Context, t *testing.T, mongoURI string, extraEnv map[string]string) *TestEnvironment {
	t.Helper()

	proc := launch(ctx, t, mongoURI, extraEnv)
	t.Cleanup(func() {
		proc.stop(t)
		if t.Failed() {
			proc.dumpStderr(t, "test failed")
		}
	})

	if err := proc.waitHealthy(30 * time.Second); err != nil {
		proc.dumpStderr(t, "health check")
		require.NoError(t, err)
	}

	return &TestEnvironment{
		MongoURI: mongoURI,
		BaseURL:  proc.baseURL,
		Client:   &http.Client{Timeout: 5 * time.Second},
	}
}

// signUp registers a user and returns its session token.
func signUp(t *testing.T, c *http.Client, baseURL, name, email, password string) string {
	t.Helper()
	status, body, err := doJSON(t, c, http.MethodPost, baseURL+signUpEndpoint, map[string]string{
		"name":            name,
		"email":           email,
		"password":        password,
		"passwordConfirm": password,
	}, "")
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, status, body)
	return sessionToken(t, body)
}

// loginExpect logs in and asserts the status, returning the decoded body.
func loginExpect(t *testing.T, c *http.Client, baseURL, email, password string, want int) map[string]any {
	t.Helper()
	status, body, err := doJSON(t, c, http.MethodPost, baseURL+loginEndpoint, map[string]string{
		"email":    email,
		"password": password,
	}, "")
	require.NoError(t, err)
	require.Equal(t, want, status, body)
	return body
}

// doJSON sends body as JSON with an optional bearer token and decodes the
// JSON reply. Empty replies decode to an empty map.
func doJSON(t *testing.T, c *http.Client, method, url string, body any, token string) (int, map[string]any, error) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, nil, err
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			t.Errorf(msgFailedToCloseResponseBody, err)
		}
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}
	out := map[string]any{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			return resp.StatusCode, nil, fmt.Errorf("decode %q: %w", raw, err)
		}
	}
	return resp.StatusCode, out, nil
}
