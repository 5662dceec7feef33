package middlewares

import (
	"testing"

	"tourbook/cmd/server/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRejectOperatorKeys(t *testing.T) {
	app := testutil.CreateTestApp(t)
	app.Post("/", RejectOperatorKeys(), func(c *fiber.Ctx) error { return c.SendStatus(200) })

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"plain", `{"email":"a@b.c","password":"abcd1234"}`, 200},
		{"operator", `{"email":{"$gt":""},"password":"abcd1234"}`, 400},
		{"dotted", `{"profile.role":"admin"}`, 400},
		{"nested in array", `{"locations":[{"$where":"1"}]}`, 400},
		{"dollar in value is fine", `{"review":"cost me $5"}`, 200},
		{"malformed passes through", `{"email":`, 200},
		{"empty", ``, 200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := app.Test(testutil.CreateJSONRequest("POST", "/", tt.body))
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}
