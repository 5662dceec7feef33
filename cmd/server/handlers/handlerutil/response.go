package handlerutil

import (
	"time"

	"tourbook/internal/services/auth"

	"github.com/gofiber/fiber/v2"
)

// CookieName is the cookie carrying the session token.
const CookieName = "jwt"

// SessionResponse is the body returned when a session token is issued.
type SessionResponse struct {
	Status string      `json:"status" example:"success"`
	Token  string      `json:"token" example:"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."`
	Data   SessionData `json:"data"`
}

// SessionData wraps the signed-in user.
type SessionData struct {
	User *auth.User `json:"user"`
}

// Envelope is the success body of non-session endpoints.
type Envelope struct {
	Status  string `json:"status" example:"success"`
	Results *int   `json:"results,omitempty" example:"1"`
	Data    any    `json:"data,omitempty"`
}

// CookieOptions controls how the session cookie is written.
type CookieOptions struct {
	TTL    time.Duration
	Secure bool
}

// SendSession sets the session cookie and writes the session body.
func SendSession(c *fiber.Ctx, status int, sess *auth.Session, opts CookieOptions) error {
	c.Cookie(&fiber.Cookie{
		Name:     CookieName,
		Value:    sess.Token,
		Expires:  time.Now().Add(opts.TTL),
		HTTPOnly: true,
		Secure:   opts.Secure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})

	return c.Status(status).JSON(SessionResponse{
		Status: "success",
		Token:  sess.Token,
		Data:   SessionData{User: sess.User},
	})
}

// ClearSession overwrites the session cookie with a short lived placeholder.
func ClearSession(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     CookieName,
		Value:    "loggedout",
		Expires:  time.Now().Add(10 * time.Second),
		HTTPOnly: true,
	})
}

// Success writes {status: "success", data: {key: value}}.
func Success(c *fiber.Ctx, status int, key string, value any) error {
	return c.Status(status).JSON(Envelope{Status: "success", Data: fiber.Map{key: value}})
}

// List writes a success envelope with a results count.
func List[T any](c *fiber.Ctx, key string, items []T) error {
	n := len(items)
	return c.JSON(Envelope{Status: "success", Results: &n, Data: fiber.Map{key: items}})
}

// NoContent answers 204 with an empty body.
func NoContent(c *fiber.Ctx) error {
	return c.SendStatus(fiber.StatusNoContent)
}
