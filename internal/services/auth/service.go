package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"tourbook/internal/config"
	"tourbook/internal/utils/crypto"
	"tourbook/internal/utils/sanitize"

	"go.mongodb.org/mongo-driver/v2/bson"
)

const (
	// ResetTokenTTL is how long a password reset token stays usable.
	ResetTokenTTL = 10 * time.Minute

	// passwordChangeSkew backdates passwordChangedAt so a token signed right
	// after the change is never treated as stale.
	passwordChangeSkew = time.Second
)

// Service handles authentication business logic
type Service struct {
	repo   UsersRepo
	tokens *TokenService
	mailer Mailer
	config config.Config
	log    *slog.Logger
	now    func() time.Time
}

// NewService creates a new auth service
func NewService(repo UsersRepo, tokens *TokenService, mailer Mailer, cfg config.Config, log *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		tokens: tokens,
		mailer: mailer,
		config: cfg,
		log:    log,
		now:    time.Now,
	}
}

// SignUpRequest represents a user registration request
type SignUpRequest struct {
	Name            string `json:"name" validate:"required,max=100" example:"Laura Wilson"`
	Email           string `json:"email" validate:"required,email" example:"laura@example.com"`
	Password        string `json:"password" validate:"required,password" example:"abcd1234"`
	PasswordConfirm string `json:"passwordConfirm" validate:"required,eqfield=Password" example:"abcd1234"`
}

// LoginRequest represents a user login request
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email" example:"laura@example.com"`
	Password string `json:"password" validate:"required" example:"abcd1234"`
}

// UpdatePasswordRequest re-proves the current password before changing it.
type UpdatePasswordRequest struct {
	PasswordCurrent string `json:"passwordCurrent" validate:"required" example:"abcd1234"`
	Password        string `json:"password" validate:"required,password" example:"newpass123"`
	PasswordConfirm string `json:"passwordConfirm" validate:"required,eqfield=Password" example:"newpass123"`
}

// ForgotPasswordRequest starts the reset flow.
type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email" example:"laura@example.com"`
}

// ResetPasswordRequest completes the reset flow.
type ResetPasswordRequest struct {
	Password        string `json:"password" validate:"required,password" example:"newpass123"`
	PasswordConfirm string `json:"passwordConfirm" validate:"required,eqfield=Password" example:"newpass123"`
}

// Session is an authenticated user plus a freshly signed token.
type Session struct {
	User  *User
	Token string
}

// Tokens exposes the token service used to sign sessions.
func (s *Service) Tokens() *TokenService {
	return s.tokens
}

// SignUp registers a new user with the default role and signs them in.
// welcomeURL is linked from the welcome email; delivery is best effort.
func (s *Service) SignUp(ctx context.Context, req SignUpRequest, welcomeURL string) (*Session, error) {
	hashedPassword, err := crypto.HashPassword(req.Password, s.config.BcryptCost)
	if err != nil {
		return nil, errors.New("failed to process password")
	}

	user := &User{
		ID:           bson.NewObjectID(),
		Name:         sanitize.Clean(req.Name),
		Email:        normalizeEmail(req.Email),
		Role:         RoleUser,
		PasswordHash: hashedPassword,
		Active:       true,
		CreatedAt:    s.now().UTC(),
	}

	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, ErrDuplicate) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	if err := s.mailer.SendWelcome(ctx, user, welcomeURL); err != nil {
		s.log.Warn("failed to send welcome email", "userID", user.ID.Hex(), "error", err)
	}

	return s.newSession(user)
}

// Login authenticates a user by email and password. Unknown emails and wrong
// passwords both yield ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*Session, error) {
	user, err := s.repo.FindByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		if !errors.Is(err, ErrUserNotFound) {
			s.log.Error("failed to find user by email", "error", err)
			return nil, err
		}
		return nil, ErrInvalidCredentials
	}

	if err := crypto.CheckPassword(req.Password, user.PasswordHash); err != nil {
		return nil, ErrInvalidCredentials
	}

	return s.newSession(user)
}

// UpdatePassword changes the password of userID after checking the current
// one. Every token issued before the change becomes stale.
func (s *Service) UpdatePassword(ctx context.Context, userID bson.ObjectID, req UpdatePasswordRequest) (*Session, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := crypto.CheckPassword(req.PasswordCurrent, user.PasswordHash); err != nil {
		return nil, ErrWrongPassword
	}

	if err := s.setPassword(ctx, user, req.Password); err != nil {
		return nil, err
	}

	return s.newSession(user)
}

// ForgotPassword stores the hash of a new reset token for the active user
// owning email and mails the plaintext, linked under resetBaseURL. A pending
// token is overwritten. When delivery fails the stored token is rolled back
// and ErrMailDelivery is returned.
func (s *Service) ForgotPassword(ctx context.Context, email, resetBaseURL string) (string, error) {
	user, err := s.repo.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return "", err
	}

	token, err := crypto.NewResetToken()
	if err != nil {
		return "", fmt.Errorf("generate reset token: %w", err)
	}

	hash := crypto.HashResetToken(token)
	expiresAt := s.now().Add(ResetTokenTTL).UTC()
	if err := s.repo.SetResetToken(ctx, user.ID, hash, expiresAt); err != nil {
		return "", fmt.Errorf("store reset token: %w", err)
	}

	resetURL := strings.TrimRight(resetBaseURL, "/") + "/" + token
	if err := s.mailer.SendPasswordReset(ctx, user, resetURL); err != nil {
		s.log.Error("failed to send password reset email", "userID", user.ID.Hex(), "error", err)
		if clearErr := s.repo.ClearResetToken(ctx, user.ID); clearErr != nil {
			s.log.Error("failed to roll back reset token", "userID", user.ID.Hex(), "error", clearErr)
		}
		return "", fmt.Errorf("%w: %v", ErrMailDelivery, err)
	}

	return token, nil
}

// ResetPassword consumes a reset token and sets a new password. Lookup and
// write are one store operation, so concurrent consumers of the same token
// see at most one success.
func (s *Service) ResetPassword(ctx context.Context, token string, req ResetPasswordRequest) (*Session, error) {
	hash, err := crypto.HashPassword(req.Password, s.config.BcryptCost)
	if err != nil {
		return nil, errors.New("failed to process password")
	}

	now := s.now()
	user, err := s.repo.ConsumeResetToken(ctx, crypto.HashResetToken(token), now,
		hash, now.Add(-passwordChangeSkew).UTC())
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidOrExpiredToken
		}
		return nil, err
	}

	return s.newSession(user)
}

// Authenticate verifies a raw session token and resolves its user.
func (s *Service) Authenticate(ctx context.Context, raw string) (*User, error) {
	claims, err := s.tokens.Verify(raw)
	if err != nil {
		return nil, err
	}
	return s.ResolveSession(ctx, claims)
}

// ResolveSession loads the active user named by verified claims and rejects
// tokens signed before the user's last password change.
func (s *Service) ResolveSession(ctx context.Context, claims *Claims) (*User, error) {
	if err := ValidateClaims(claims); err != nil {
		return nil, err
	}
	id, _ := claims.UserObjectID()

	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrUserGone
		}
		return nil, err
	}

	if user.ChangedPasswordAfter(claims.IssuedAtTime()) {
		return nil, ErrStaleToken
	}

	return user, nil
}

func (s *Service) setPassword(ctx context.Context, user *User, password string) error {
	hash, err := crypto.HashPassword(password, s.config.BcryptCost)
	if err != nil {
		return errors.New("failed to process password")
	}

	changedAt := s.now().Add(-passwordChangeSkew).UTC()
	if err := s.repo.SetPassword(ctx, user.ID, hash, changedAt); err != nil {
		return err
	}

	user.PasswordHash = hash
	user.PasswordChangedAt = &changedAt
	user.PasswordResetTokenHash = ""
	user.PasswordResetExpiresAt = nil
	return nil
}

func (s *Service) newSession(user *User) (*Session, error) {
	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		s.log.Error("failed to generate token", "userID", user.ID.Hex(), "error", err)
		return nil, err
	}
	return &Session{User: user, Token: token}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
