package middlewares

import (
	"strings"
	"time"

	"tourbook/cmd/server/handlers/httperr"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

func passThrough(c *fiber.Ctx) error { return c.Next() }

// BuildRateLimiter allows max requests per client IP per window. Counters
// live in storage, or in process memory when storage is nil. A max of zero
// or less disables limiting. Paths under any of skip are never counted.
func BuildRateLimiter(max int, window time.Duration, storage fiber.Storage, skip ...string) fiber.Handler {
	if max <= 0 {
		return passThrough
	}

	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: window,
		Storage:    storage,
		Next: func(c *fiber.Ctx) bool {
			path := c.Path()
			for _, prefix := range skip {
				if strings.HasPrefix(path, prefix) {
					return true
				}
			}
			return false
		},
		LimiterMiddleware: limiter.FixedWindow{},
		LimitReached: func(*fiber.Ctx) error {
			return httperr.Fail(httperr.ErrTooManyRequests)
		},
	})
}
