package users

import (
	"context"
	"errors"
	"strings"

	"tourbook/cmd/server/handlers/handlerutil"
	"tourbook/cmd/server/handlers/httperr"
	"tourbook/internal/logger"
	"tourbook/internal/services/auth"
	"tourbook/internal/services/users"
	"tourbook/internal/utils/paging"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// Service defines the interface for the users service
type Service interface {
	List(ctx context.Context, p paging.Params) ([]*auth.User, error)
	Get(ctx context.Context, id bson.ObjectID) (*auth.User, error)
	UpdateMe(ctx context.Context, id bson.ObjectID, req users.UpdateMeRequest) (*auth.User, error)
	DeleteMe(ctx context.Context, id bson.ObjectID) error
	Update(ctx context.Context, id bson.ObjectID, req users.UpdateUserRequest) (*auth.User, error)
	Delete(ctx context.Context, id bson.ObjectID) error
}

var (
	errPasswordRoute = httperr.E{Status: fiber.StatusBadRequest, Message: "This route is not for password updates. Please use /updatePassword."}
	errRoleChange    = httperr.E{Status: fiber.StatusBadRequest, Message: "You can not change your role."}
	errUseSignup     = httperr.E{Status: fiber.StatusBadRequest, Message: "This route is not defined! Please use /signup instead"}
	errNoUser        = httperr.E{Status: fiber.StatusNotFound, Message: "No user found with that ID"}
	errEmptyUpdate   = httperr.E{Status: fiber.StatusBadRequest, Message: "No fields to update"}

	errUnsupportedBody = httperr.E{
		Status:  fiber.StatusUnsupportedMediaType,
		Message: "Request body must be JSON, form or multipart encoded",
	}
)

// Handlers contains the users HTTP handlers
type Handlers struct {
	service   Service
	validator *validator.Validate
}

// NewHandlers creates new users handlers
func NewHandlers(service Service, validator *validator.Validate) *Handlers {
	return &Handlers{service: service, validator: validator}
}

// Me returns the current user's profile
// @Summary Current user
// @Tags users
// @Produce json
// @Security Bearer
// @Success 200 {object} handlerutil.Envelope
// @Failure 401 {object} httperr.Body
// @Router /users/me [get]
func (h *Handlers) Me(c *fiber.Ctx) error {
	current, err := handlerutil.CurrentUser(c)
	if err != nil {
		return err
	}

	user, err := h.service.Get(c.UserContext(), current.ID)
	if err != nil {
		return h.serviceError(c, err, "Me")
	}
	return handlerutil.Success(c, fiber.StatusOK, "user", user)
}

// UpdateMe changes the current user's name and email
// @Summary Update own profile
// @Tags users
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body users.UpdateMeRequest true "Profile fields"
// @Success 200 {object} handlerutil.Envelope
// @Failure 400 {object} httperr.Body
// @Router /users/updateMe [patch]
func (h *Handlers) UpdateMe(c *fiber.Ctx) error {
	current, err := handlerutil.CurrentUser(c)
	if err != nil {
		return err
	}

	if err := rejectForbiddenFields(c); err != nil {
		return err
	}

	var req users.UpdateMeRequest
	if err := handlerutil.ParseAndValidateBody(c, &req, h.validator, "UpdateMe"); err != nil {
		return err
	}

	user, err := h.service.UpdateMe(c.UserContext(), current.ID, req)
	if err != nil {
		return h.updateError(c, err, req.Email, "UpdateMe")
	}
	return handlerutil.Success(c, fiber.StatusOK, "user", user)
}

// DeleteMe deactivates the current user
// @Summary Deactivate own account
// @Tags users
// @Security Bearer
// @Success 204
// @Router /users/deleteMe [delete]
func (h *Handlers) DeleteMe(c *fiber.Ctx) error {
	current, err := handlerutil.CurrentUser(c)
	if err != nil {
		return err
	}

	if err := h.service.DeleteMe(c.UserContext(), current.ID); err != nil {
		return h.serviceError(c, err, "DeleteMe")
	}
	handlerutil.ClearSession(c)
	return handlerutil.NoContent(c)
}

// List returns one page of active users
// @Summary List users
// @Tags users
// @Produce json
// @Security Bearer
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Success 200 {object} handlerutil.Envelope
// @Router /users [get]
func (h *Handlers) List(c *fiber.Ctx) error {
	var p paging.Params
	if err := handlerutil.ParseAndValidateQuery(c, &p, h.validator, "ListUsers"); err != nil {
		return err
	}

	list, err := h.service.List(c.UserContext(), p)
	if err != nil {
		return h.serviceError(c, err, "ListUsers")
	}
	return handlerutil.List(c, "users", list)
}

// Get returns one user
// @Summary Get user
// @Tags users
// @Produce json
// @Security Bearer
// @Param id path string true "User ID"
// @Success 200 {object} handlerutil.Envelope
// @Failure 404 {object} httperr.Body
// @Router /users/{id} [get]
func (h *Handlers) Get(c *fiber.Ctx) error {
	id, err := handlerutil.ParamID(c, "id", "GetUser")
	if err != nil {
		return err
	}

	user, err := h.service.Get(c.UserContext(), id)
	if err != nil {
		return h.serviceError(c, err, "GetUser")
	}
	return handlerutil.Success(c, fiber.StatusOK, "user", user)
}

// Create always refuses; accounts are made through signup
// @Summary Create user (unsupported)
// @Tags users
// @Produce json
// @Failure 400 {object} httperr.Body
// @Router /users [post]
func (h *Handlers) Create(c *fiber.Ctx) error {
	return httperr.Fail(errUseSignup)
}

// Update applies an administrative change to a user
// @Summary Update user
// @Tags users
// @Accept json
// @Produce json
// @Security Bearer
// @Param id path string true "User ID"
// @Param request body users.UpdateUserRequest true "Fields to change"
// @Success 200 {object} handlerutil.Envelope
// @Failure 400 {object} httperr.Body
// @Failure 404 {object} httperr.Body
// @Router /users/{id} [patch]
func (h *Handlers) Update(c *fiber.Ctx) error {
	id, err := handlerutil.ParamID(c, "id", "UpdateUser")
	if err != nil {
		return err
	}

	if err := rejectPasswordFields(c); err != nil {
		return err
	}

	var req users.UpdateUserRequest
	if err := handlerutil.ParseAndValidateBody(c, &req, h.validator, "UpdateUser"); err != nil {
		return err
	}

	user, err := h.service.Update(c.UserContext(), id, req)
	if err != nil {
		return h.updateError(c, err, req.Email, "UpdateUser")
	}
	return handlerutil.Success(c, fiber.StatusOK, "user", user)
}

// Delete removes a user for good
// @Summary Delete user
// @Tags users
// @Security Bearer
// @Param id path string true "User ID"
// @Success 204
// @Failure 404 {object} httperr.Body
// @Router /users/{id} [delete]
func (h *Handlers) Delete(c *fiber.Ctx) error {
	id, err := handlerutil.ParamID(c, "id", "DeleteUser")
	if err != nil {
		return err
	}

	if err := h.service.Delete(c.UserContext(), id); err != nil {
		return h.serviceError(c, err, "DeleteUser")
	}
	return handlerutil.NoContent(c)
}

func (h *Handlers) serviceError(c *fiber.Ctx, err error, handlerName string) error {
	if errors.Is(err, auth.ErrUserNotFound) {
		return httperr.Fail(errNoUser)
	}
	return handlerutil.HandleServiceError(c, err, handlerName)
}

func (h *Handlers) updateError(c *fiber.Ctx, err error, email *string, handlerName string) error {
	switch {
	case errors.Is(err, users.ErrEmptyUpdate):
		return httperr.Fail(errEmptyUpdate)
	case errors.Is(err, users.ErrInvalidRole):
		return httperr.BadRequest("Invalid input data. role is invalid")
	case errors.Is(err, auth.ErrDuplicate):
		value := ""
		if email != nil {
			value = `"` + *email + `"`
		}
		logger.L().Info("email already taken", "handler", handlerName)
		return httperr.BadRequest(httperr.DuplicateMessage(value))
	}
	return h.serviceError(c, err, handlerName)
}

// bodyKeys returns the top level field names of the request body in every
// encoding BodyParser binds. A JSON body that does not decode yields no keys
// and is reported by the struct parser. Other content types are refused.
func bodyKeys(c *fiber.Ctx) ([]string, error) {
	if len(c.Body()) == 0 {
		return nil, nil
	}

	var keys []string
	ctype := utils.ParseVendorSpecificContentType(utils.ToLower(string(c.Request().Header.ContentType())))
	if i := strings.IndexByte(ctype, ';'); i != -1 {
		ctype = ctype[:i]
	}
	switch {
	case strings.HasSuffix(ctype, "json"):
		var raw map[string]any
		if err := c.App().Config().JSONDecoder(c.Body(), &raw); err != nil {
			return nil, nil
		}
		for k := range raw {
			keys = append(keys, k)
		}
	case strings.HasPrefix(ctype, fiber.MIMEApplicationForm):
		c.Request().PostArgs().VisitAll(func(k, _ []byte) {
			keys = append(keys, string(k))
		})
	case strings.HasPrefix(ctype, fiber.MIMEMultipartForm):
		form, err := c.MultipartForm()
		if err != nil {
			return nil, httperr.Fail(httperr.ErrBadRequest)
		}
		for k := range form.Value {
			keys = append(keys, k)
		}
		for k := range form.File {
			keys = append(keys, k)
		}
	default:
		return nil, httperr.Fail(errUnsupportedBody)
	}
	return keys, nil
}

// hasField reports whether keys holds one of names, ignoring case the way
// the body decoders match struct fields. Form keys such as "role[0]" or
// "role.x" count as "role".
func hasField(keys []string, names ...string) bool {
	for _, k := range keys {
		if i := strings.IndexAny(k, "[."); i > 0 {
			k = k[:i]
		}
		for _, name := range names {
			if strings.EqualFold(k, name) {
				return true
			}
		}
	}
	return false
}

func rejectPasswordFields(c *fiber.Ctx) error {
	keys, err := bodyKeys(c)
	if err != nil {
		return err
	}
	if hasField(keys, "password", "passwordConfirm") {
		return httperr.Fail(errPasswordRoute)
	}
	return nil
}

func rejectForbiddenFields(c *fiber.Ctx) error {
	keys, err := bodyKeys(c)
	if err != nil {
		return err
	}
	if hasField(keys, "password", "passwordConfirm") {
		return httperr.Fail(errPasswordRoute)
	}
	if hasField(keys, "role") {
		return httperr.Fail(errRoleChange)
	}
	return nil
}
