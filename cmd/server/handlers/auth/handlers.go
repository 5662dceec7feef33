package auth

import (
	"context"
	"errors"

	"tourbook/cmd/server/handlers/handlerutil"
	"tourbook/cmd/server/handlers/httperr"
	"tourbook/internal/logger"
	"tourbook/internal/services/auth"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// Service defines the interface for auth service
type Service interface {
	SignUp(ctx context.Context, req auth.SignUpRequest, welcomeURL string) (*auth.Session, error)
	Login(ctx context.Context, req auth.LoginRequest) (*auth.Session, error)
	UpdatePassword(ctx context.Context, userID bson.ObjectID, req auth.UpdatePasswordRequest) (*auth.Session, error)
	ForgotPassword(ctx context.Context, email, resetBaseURL string) (string, error)
	ResetPassword(ctx context.Context, token string, req auth.ResetPasswordRequest) (*auth.Session, error)
}

// MessageResponse is a success body carrying only a message.
type MessageResponse struct {
	Status  string `json:"status" example:"success"`
	Message string `json:"message" example:"Token sent to email!"`
}

// Handlers contains the auth HTTP handlers
type Handlers struct {
	service   Service
	validator *validator.Validate
	cookie    handlerutil.CookieOptions
}

// NewHandlers creates new auth handlers
func NewHandlers(service Service, validator *validator.Validate, cookie handlerutil.CookieOptions) *Handlers {
	return &Handlers{
		service:   service,
		validator: validator,
		cookie:    cookie,
	}
}

// SignUp handles user registration
// @Summary Register a new user
// @Tags users
// @Accept json
// @Produce json
// @Param request body auth.SignUpRequest true "Sign up request"
// @Success 201 {object} handlerutil.SessionResponse
// @Failure 400 {object} httperr.Body
// @Router /users/signup [post]
func (h *Handlers) SignUp(c *fiber.Ctx) error {
	var req auth.SignUpRequest
	if err := handlerutil.ParseAndValidateBody(c, &req, h.validator, "SignUp"); err != nil {
		return err
	}

	sess, err := h.service.SignUp(c.UserContext(), req, c.BaseURL()+"/me")
	if err != nil {
		if errors.Is(err, auth.ErrDuplicate) {
			logger.L().Info("signup with taken email", "handler", "SignUp", "email", req.Email)
			return httperr.BadRequest(httperr.DuplicateMessage(`"` + req.Email + `"`))
		}
		return handlerutil.HandleServiceError(c, err, "SignUp")
	}

	return handlerutil.SendSession(c, fiber.StatusCreated, sess, h.cookie)
}

// Login handles user authentication
// @Summary Log a user in
// @Tags users
// @Accept json
// @Produce json
// @Param request body auth.LoginRequest true "Login request"
// @Success 200 {object} handlerutil.SessionResponse
// @Failure 400 {object} httperr.Body
// @Failure 401 {object} httperr.Body
// @Failure 429 {object} httperr.Body
// @Router /users/login [post]
func (h *Handlers) Login(c *fiber.Ctx) error {
	var req auth.LoginRequest
	if err := handlerutil.ParseAndValidateBody(c, &req, h.validator, "Login"); err != nil {
		return err
	}

	sess, err := h.service.Login(c.UserContext(), req)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			logger.L().Info("login rejected", "handler", "Login", "ip", c.IP())
			return httperr.Unauthorized("Incorrect email or password")
		}
		return handlerutil.HandleServiceError(c, err, "Login")
	}

	return handlerutil.SendSession(c, fiber.StatusOK, sess, h.cookie)
}

// Logout replaces the session cookie with a short lived placeholder
// @Summary Log out
// @Tags users
// @Produce json
// @Success 200 {object} handlerutil.Envelope
// @Router /users/logout [get]
func (h *Handlers) Logout(c *fiber.Ctx) error {
	handlerutil.ClearSession(c)
	return c.JSON(handlerutil.Envelope{Status: "success"})
}

// ForgotPassword mails a password reset link
// @Summary Request a password reset email
// @Tags users
// @Accept json
// @Produce json
// @Param request body auth.ForgotPasswordRequest true "Account email"
// @Success 200 {object} MessageResponse
// @Failure 404 {object} httperr.Body
// @Failure 500 {object} httperr.Body
// @Router /users/forgetPassword [post]
func (h *Handlers) ForgotPassword(c *fiber.Ctx) error {
	var req auth.ForgotPasswordRequest
	if err := handlerutil.ParseAndValidateBody(c, &req, h.validator, "ForgotPassword"); err != nil {
		return err
	}

	_, err := h.service.ForgotPassword(c.UserContext(), req.Email, c.BaseURL()+"/api/v1/users/resetPassword")
	switch {
	case err == nil:
		return c.JSON(MessageResponse{Status: "success", Message: "Token sent to email!"})
	case errors.Is(err, auth.ErrUserNotFound):
		return httperr.NotFound("There is no user with email address.")
	case errors.Is(err, auth.ErrMailDelivery):
		logger.L().Error("reset mail delivery failed", "handler", "ForgotPassword", "error", err)
		return httperr.Fail(httperr.InternalError("There was an error sending the email. Try again later!"))
	default:
		return handlerutil.HandleServiceError(c, err, "ForgotPassword")
	}
}

// ResetPassword consumes a reset token and signs the user in
// @Summary Reset password with an emailed token
// @Tags users
// @Accept json
// @Produce json
// @Param resetToken path string true "Reset token"
// @Param request body auth.ResetPasswordRequest true "New password"
// @Success 200 {object} handlerutil.SessionResponse
// @Failure 400 {object} httperr.Body
// @Router /users/resetPassword/{resetToken} [patch]
func (h *Handlers) ResetPassword(c *fiber.Ctx) error {
	var req auth.ResetPasswordRequest
	if err := handlerutil.ParseAndValidateBody(c, &req, h.validator, "ResetPassword"); err != nil {
		return err
	}

	sess, err := h.service.ResetPassword(c.UserContext(), c.Params("resetToken"), req)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidOrExpiredToken) {
			return httperr.BadRequest("Token is invalid or has expired")
		}
		return handlerutil.HandleServiceError(c, err, "ResetPassword")
	}

	return handlerutil.SendSession(c, fiber.StatusOK, sess, h.cookie)
}

// UpdatePassword changes the current user's password
// @Summary Change password
// @Tags users
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body auth.UpdatePasswordRequest true "Current and new password"
// @Success 200 {object} handlerutil.SessionResponse
// @Failure 400 {object} httperr.Body
// @Failure 401 {object} httperr.Body
// @Router /users/updatePassword [patch]
func (h *Handlers) UpdatePassword(c *fiber.Ctx) error {
	user, err := handlerutil.CurrentUser(c)
	if err != nil {
		return err
	}

	var req auth.UpdatePasswordRequest
	if err := handlerutil.ParseAndValidateBody(c, &req, h.validator, "UpdatePassword"); err != nil {
		return err
	}

	sess, err := h.service.UpdatePassword(c.UserContext(), user.ID, req)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrWrongPassword):
			return httperr.Unauthorized("Your current password is wrong.")
		case errors.Is(err, auth.ErrUserNotFound):
			return httperr.Unauthorized("The user belonging to this token does no longer exist.")
		}
		return handlerutil.HandleServiceError(c, err, "UpdatePassword")
	}

	return handlerutil.SendSession(c, fiber.StatusOK, sess, h.cookie)
}
