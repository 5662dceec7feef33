package handlerutil

import (
	"reflect"
	"strings"

	"tourbook/cmd/server/ctxkeys"
	"tourbook/cmd/server/handlers/httperr"
	"tourbook/internal/logger"
	"tourbook/internal/services/auth"
	"tourbook/internal/utils/crypto"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// NewValidator returns a validator reporting json field names, with the
// password rule registered.
func NewValidator() (*validator.Validate, error) {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	if err := crypto.RegisterPasswordValidator(v); err != nil {
		return nil, err
	}
	return v, nil
}

// CurrentUser returns the user attached by Protect.
func CurrentUser(c *fiber.Ctx) (*auth.User, error) {
	user, ok := c.Locals(ctxkeys.UserKey).(*auth.User)
	if !ok || user == nil {
		logger.L().Error("user not found in context", "handler", "CurrentUser", "path", c.Path())
		return nil, httperr.Fail(httperr.ErrNotLoggedIn)
	}
	return user, nil
}

func userIDHex(c *fiber.Ctx) string {
	if user, ok := c.Locals(ctxkeys.UserKey).(*auth.User); ok && user != nil {
		return user.ID.Hex()
	}
	return ""
}

// ParseAndValidateBody parses request body and validates it
func ParseAndValidateBody(c *fiber.Ctx, req any, validator *validator.Validate, handlerName string) error {
	if err := c.BodyParser(req); err != nil {
		logger.L().Warn("failed to parse request body", "handler", handlerName, "userID", userIDHex(c), "error", err)
		return httperr.Fail(httperr.ErrBadRequest)
	}

	if err := validator.Struct(req); err != nil {
		logger.L().Warn("request validation failed", "handler", handlerName, "userID", userIDHex(c), "error", err)
		return httperr.InvalidInput(err)
	}

	return nil
}

// ParseAndValidateQuery parses query parameters and validates them
func ParseAndValidateQuery(c *fiber.Ctx, req any, validator *validator.Validate, handlerName string) error {
	if err := c.QueryParser(req); err != nil {
		logger.L().Warn("failed to parse query params", "handler", handlerName, "userID", userIDHex(c), "error", err)
		return httperr.Fail(httperr.ErrBadRequest)
	}

	if err := validator.Struct(req); err != nil {
		logger.L().Warn("query validation failed", "handler", handlerName, "userID", userIDHex(c), "error", err)
		return httperr.InvalidInput(err)
	}

	return nil
}

// ParamID extracts and validates an ObjectID route parameter.
func ParamID(c *fiber.Ctx, name, handlerName string) (bson.ObjectID, error) {
	raw := c.Params(name)
	id, err := bson.ObjectIDFromHex(raw)
	if err != nil {
		logger.L().Warn("invalid id parameter", "handler", handlerName, "param", name, "value", raw, "error", err)
		return bson.ObjectID{}, httperr.Fail(httperr.ErrInvalidID)
	}
	return id, nil
}

// HandleServiceError logs err and passes it to the global error handler,
// which hides unexpected errors from clients. Unexpected errors get the
// stack of the failing handler attached.
func HandleServiceError(c *fiber.Ctx, err error, handlerName string) error {
	if _, operational := httperr.Normalize(err); operational {
		logger.L().Info("request rejected", "handler", handlerName, "userID", userIDHex(c), "error", err)
		return err
	}
	logger.L().Error("service operation failed", "handler", handlerName, "userID", userIDHex(c), "error", err)
	return httperr.WithStack(err)
}
