package middlewares

import (
	"context"
	"errors"

	"tourbook/cmd/server/ctxkeys"
	"tourbook/cmd/server/handlers/handlerutil"
	"tourbook/cmd/server/handlers/httperr"
	"tourbook/internal/logger"
	"tourbook/internal/services/auth"

	jwtware "github.com/gofiber/contrib/jwt"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// SessionResolver loads the user behind verified token claims.
type SessionResolver interface {
	ResolveSession(ctx context.Context, claims *auth.Claims) (*auth.User, error)
}

// Authenticator verifies a raw token and loads its user.
type Authenticator interface {
	Authenticate(ctx context.Context, raw string) (*auth.User, error)
}

// Protect returns a Fiber middleware that:
//
//   - reads the token from "Authorization: Bearer" or else the jwt cookie
//   - validates its HS256 signature and expiry
//   - loads the active user and rejects tokens older than the last password change
//   - stores the user in ctx.Locals(ctxkeys.UserKey)
//
// Every failure is a 401 with a message naming the cause.
func Protect(tokens *auth.TokenService, sessions SessionResolver) fiber.Handler {
	return jwtware.New(jwtware.Config{
		KeyFunc:     tokens.Keyfunc,
		Claims:      &auth.Claims{},
		ContextKey:  ctxkeys.TokenKey,
		TokenLookup: "header:" + fiber.HeaderAuthorization + ",cookie:" + handlerutil.CookieName,
		AuthScheme:  "Bearer",
		SuccessHandler: func(c *fiber.Ctx) error {
			token, ok := c.Locals(ctxkeys.TokenKey).(*jwt.Token)
			if !ok {
				return httperr.Fail(httperr.ErrInvalidToken)
			}
			claims, ok := token.Claims.(*auth.Claims)
			if !ok {
				return httperr.Fail(httperr.ErrInvalidToken)
			}

			user, err := sessions.ResolveSession(c.UserContext(), claims)
			if err != nil {
				return sessionError(err)
			}

			c.Locals(ctxkeys.UserKey, user)
			return c.Next()
		},
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			logger.L().Debug("token rejected", "path", c.Path(), "error", err)
			if errors.Is(err, jwtware.ErrJWTMissingOrMalformed) {
				return httperr.Fail(httperr.ErrNotLoggedIn)
			}
			if errors.Is(err, jwt.ErrTokenExpired) {
				return httperr.Fail(httperr.ErrExpiredToken)
			}
			return httperr.Fail(httperr.ErrInvalidToken)
		},
	})
}

func sessionError(err error) error {
	switch {
	case errors.Is(err, auth.ErrUserGone):
		return httperr.Unauthorized("The user belonging to this token does no longer exist.")
	case errors.Is(err, auth.ErrStaleToken):
		return httperr.Unauthorized("User recently changed password! Please log in again.")
	case errors.Is(err, auth.ErrExpiredToken):
		return httperr.Fail(httperr.ErrExpiredToken)
	case errors.Is(err, auth.ErrInvalidToken):
		return httperr.Fail(httperr.ErrInvalidToken)
	default:
		return err
	}
}

// IsLoggedIn attaches the user named by a valid session cookie and never
// rejects. When the cookie does not resolve, no user is attached.
func IsLoggedIn(authn Authenticator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals(ctxkeys.UserKey, nil)

		raw := c.Cookies(handlerutil.CookieName)
		if raw == "" || raw == "loggedout" {
			return c.Next()
		}

		user, err := authn.Authenticate(c.UserContext(), raw)
		if err != nil {
			logger.L().Debug("session cookie ignored", "path", c.Path(), "error", err)
			return c.Next()
		}

		c.Locals(ctxkeys.UserKey, user)
		return c.Next()
	}
}

// RestrictTo allows only users with one of roles. It must run after
// Protect; a missing user is a wiring bug and panics.
func RestrictTo(roles ...auth.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, ok := c.Locals(ctxkeys.UserKey).(*auth.User)
		if !ok || user == nil {
			panic("RestrictTo requires Protect earlier in the chain")
		}
		if !user.HasRole(roles...) {
			return httperr.Fail(httperr.ErrForbidden)
		}
		return c.Next()
	}
}
