//go:build e2e

package test

import (
	"net"
	"net/http"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// apiStep is one request of a scripted API conversation.
type apiStep struct {
	name   string
	method string
	path   string
	body   any
	token  string
	status int
	check  func(*testing.T, map[string]any)
}

// runSteps plays steps in order and returns every decoded body.
func runSteps(t *testing.T, client *http.Client, baseURL string, steps ...apiStep) []map[string]any {
	t.Helper()
	bodies := make([]map[string]any, 0, len(steps))

	for _, s := range steps {
		t.Logf("step: %s", s.name)

		status, body, err := doJSON(t, client, s.method, baseURL+s.path, s.body, s.token)
		require.NoError(t, err, s.name)
		assert.Equal(t, s.status, status, s.name)
		if s.check != nil {
			s.check(t, body)
		}
		bodies = append(bodies, body)
	}
	return bodies
}

// expectSession asserts a success body carrying a token and the signed in user.
func expectSession(email string) func(*testing.T, map[string]any) {
	return func(t *testing.T, body map[string]any) {
		t.Helper()
		assert.Equal(t, "success", body["status"])
		assert.NotEmpty(t, sessionToken(t, body))

		data, ok := body["data"].(map[string]any)
		require.True(t, ok, "data must be an object")
		user, ok := data["user"].(map[string]any)
		require.True(t, ok, "data.user must be an object")
		assert.Equal(t, email, user["email"])
		assert.NotContains(t, user, "password")
	}
}

// expectFail asserts a fail or error body whose message contains fragment.
func expectFail(fragment string) func(*testing.T, map[string]any) {
	return func(t *testing.T, body map[string]any) {
		t.Helper()
		assert.Contains(t, []any{"fail", "error"}, body["status"])
		msg, ok := body["message"].(string)
		require.True(t, ok, "message must be a string")
		assert.Contains(t, msg, fragment)
	}
}

// sessionToken pulls the issued token out of a session body.
func sessionToken(t *testing.T, body map[string]any) string {
	t.Helper()
	token, ok := body["token"].(string)
	require.True(t, ok, "token must be a string")
	require.NotEmpty(t, token)
	return token
}

// randomPort asks the kernel for an unused TCP port.
func randomPort() (string, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", err
	}
	defer l.Close()
	return strconv.Itoa(l.Addr().(*net.TCPAddr).Port), nil
}
