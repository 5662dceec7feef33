package httperr

import (
	"errors"
	"fmt"
	"regexp"
	"runtime/debug"
	"strings"

	"tourbook/cmd/server/ctxkeys"
	"tourbook/internal/logger"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// E represents an operational HTTP error with status code and message.
type E struct {
	Status  int    `json:"-" example:"400"`
	Message string `json:"message" example:"Bad Request"`
}

// Error implements the error interface
func (e E) Error() string {
	return e.Message
}

// Body is the JSON error envelope. Error and Stack are only set in development.
type Body struct {
	Status  string `json:"status" example:"fail"`
	Message string `json:"message" example:"Invalid input data"`
	Error   string `json:"error,omitempty"`
	Stack   string `json:"stack,omitempty"`
}

// Fail returns the error for Fiber's global error handler to process
func Fail(err E) error {
	return err
}

// BadRequest is a 400 with msg.
func BadRequest(msg string) error { return E{Status: fiber.StatusBadRequest, Message: msg} }

// Unauthorized is a 401 with msg.
func Unauthorized(msg string) error { return E{Status: fiber.StatusUnauthorized, Message: msg} }

// NotFound is a 404 with msg.
func NotFound(msg string) error { return E{Status: fiber.StatusNotFound, Message: msg} }

// InvalidInput wraps a validation error and returns the standard response.
func InvalidInput(err error) error {
	return Fail(E{
		Status:  fiber.StatusBadRequest,
		Message: validationMessage(err),
	})
}

// InternalError returns an internal server error with the given message
func InternalError(message string) E {
	return E{Status: fiber.StatusInternalServerError, Message: message}
}

// Pre-defined HTTP errors
var (
	ErrBadRequest      = E{Status: 400, Message: "Bad Request"}
	ErrInvalidID       = E{Status: 400, Message: "Invalid id"}
	ErrNotLoggedIn     = E{Status: 401, Message: "You are not logged in! Please log in to get access."}
	ErrInvalidToken    = E{Status: 401, Message: "Invalid token. Please log in again!"}
	ErrExpiredToken    = E{Status: 401, Message: "Your token has expired! Please log in again."}
	ErrForbidden       = E{Status: 403, Message: "You do not have permission to perform this action"}
	ErrTooManyRequests = E{Status: 429, Message: "Too many requests from this IP, please try again in an hour!"}
	ErrInternal        = InternalError("Something went Very Wrong")
)

// RouteNotFound answers requests no route matched.
func RouteNotFound(c *fiber.Ctx) error {
	return NotFound(fmt.Sprintf("Can't find %s on this server", c.OriginalURL()))
}

// traced carries the stack of the goroutine that recorded the error.
type traced struct {
	err   error
	stack []byte
}

func (t *traced) Error() string { return t.err.Error() }
func (t *traced) Unwrap() error { return t.err }

// WithStack records the caller's stack on err for development responses.
// Nil and already traced errors are returned unchanged.
func WithStack(err error) error {
	var t *traced
	if err == nil || errors.As(err, &t) {
		return err
	}
	return &traced{err: err, stack: debug.Stack()}
}

// RecordPanicStack is a recover.Config StackTraceHandler. It runs inside the
// deferred recover, so the stack still holds the panicking frames.
func RecordPanicStack(c *fiber.Ctx, _ any) {
	c.Locals(ctxkeys.PanicStackKey, debug.Stack())
}

// originStack returns the stack recorded where err began: a panic caught by
// the recover middleware, or a WithStack call. Otherwise it is empty.
func originStack(c *fiber.Ctx, err error) string {
	if stack, ok := c.Locals(ctxkeys.PanicStackKey).([]byte); ok {
		return string(stack)
	}
	var t *traced
	if errors.As(err, &t) {
		return string(t.stack)
	}
	return ""
}

// Handler is the global error handler for production.
var Handler = NewHandler(false)

// NewHandler returns Fiber's global error handler. Known error kinds are
// normalized to operational errors; anything else is logged and, unless
// dev is set, replaced by a generic 500.
func NewHandler(dev bool) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		e, operational := Normalize(err)
		if !operational {
			logger.L().Error("unhandled error", "method", c.Method(), "path", c.Path(), "error", err)
		}

		body := Body{Status: statusText(e.Status), Message: e.Message}
		if dev {
			if !operational {
				body.Message = err.Error()
			}
			body.Error = err.Error()
			body.Stack = originStack(c, err)
		}
		return c.Status(e.Status).JSON(body)
	}
}

// Normalize maps err onto an operational error. The boolean is false when
// err is unexpected and the result is the generic internal error.
func Normalize(err error) (E, bool) {
	var e E
	if errors.As(err, &e) {
		return e, true
	}

	var fiberError *fiber.Error
	if errors.As(err, &fiberError) {
		return E{Status: fiberError.Code, Message: fiberError.Message}, true
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return E{Status: 400, Message: validationMessage(verrs)}, true
	}

	switch {
	case mongo.IsDuplicateKeyError(err):
		return E{Status: 400, Message: duplicateMessage(err)}, true
	case errors.Is(err, bson.ErrInvalidHex):
		return ErrInvalidID, true
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpiredToken, true
	case errors.Is(err, jwt.ErrTokenMalformed),
		errors.Is(err, jwt.ErrTokenSignatureInvalid),
		errors.Is(err, jwt.ErrTokenUnverifiable),
		errors.Is(err, jwt.ErrTokenInvalidClaims),
		errors.Is(err, jwt.ErrTokenNotValidYet):
		return ErrInvalidToken, true
	}

	return ErrInternal, false
}

func statusText(status int) string {
	if status >= 400 && status < 500 {
		return "fail"
	}
	return "error"
}

var dupKeyRe = regexp.MustCompile(`dup key: \{ ?([^:]+): ("[^"]*"|[^ }]+)`)

// DuplicateMessage renders the duplicate-field message for value.
func DuplicateMessage(value string) string {
	return fmt.Sprintf("Duplicate field value: %s. Please use another value!", value)
}

func duplicateMessage(err error) string {
	if m := dupKeyRe.FindStringSubmatch(err.Error()); m != nil {
		return DuplicateMessage(m[2])
	}
	return DuplicateMessage("")
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "Invalid input data. " + err.Error()
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return "Invalid input data. " + strings.Join(msgs, ". ")
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return "Please provide a valid email"
	case "eqfield":
		return "Passwords are not the same!"
	case "password":
		return "Password must be 8 to 72 characters"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max", "lte":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
