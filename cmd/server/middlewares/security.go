package middlewares

import (
	"encoding/json"
	"strings"

	"tourbook/cmd/server/handlers/httperr"
	"tourbook/internal/logger"

	"github.com/gofiber/fiber/v2"
)

// ErrOperatorKey is returned for JSON bodies carrying query operators.
var ErrOperatorKey = httperr.E{
	Status:  fiber.StatusBadRequest,
	Message: "Invalid input data. Field names must not start with '$' or contain '.'",
}

// RejectOperatorKeys refuses JSON bodies whose object keys could be read as
// MongoDB operators or dotted paths.
func RejectOperatorKeys() fiber.Handler {
	return func(c *fiber.Ctx) error {
		body := c.Body()
		if len(body) == 0 || !strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON) {
			return c.Next()
		}

		var doc any
		if err := json.Unmarshal(body, &doc); err != nil {
			// malformed bodies are reported by the handler's parser
			return c.Next()
		}

		if key, bad := findOperatorKey(doc); bad {
			logger.L().Warn("operator key in request body", "path", c.Path(), "ip", c.IP(), "key", key)
			return httperr.Fail(ErrOperatorKey)
		}
		return c.Next()
	}
}

func findOperatorKey(v any) (string, bool) {
	switch t := v.(type) {
	case map[string]any:
		for k, child := range t {
			if strings.HasPrefix(k, "$") || strings.Contains(k, ".") {
				return k, true
			}
			if key, bad := findOperatorKey(child); bad {
				return key, true
			}
		}
	case []any:
		for _, child := range t {
			if key, bad := findOperatorKey(child); bad {
				return key, true
			}
		}
	}
	return "", false
}
