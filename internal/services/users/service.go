package users

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"tourbook/internal/services/auth"
	"tourbook/internal/utils/paging"
	"tourbook/internal/utils/sanitize"

	"go.mongodb.org/mongo-driver/v2/bson"
)

var (
	// ErrEmptyUpdate is returned when a patch carries no changes.
	ErrEmptyUpdate = errors.New("no fields to update")
	// ErrInvalidRole is returned for roles outside auth.Roles.
	ErrInvalidRole = errors.New("invalid role")
)

// Repository is the part of the credential store used for profile and
// administrative operations. Reads exclude deactivated users.
type Repository interface {
	FindByID(ctx context.Context, id bson.ObjectID) (*auth.User, error)
	List(ctx context.Context, skip, limit int64) ([]*auth.User, error)
	Update(ctx context.Context, id bson.ObjectID, patch auth.UserPatch) (*auth.User, error)
	Deactivate(ctx context.Context, id bson.ObjectID) error
	Delete(ctx context.Context, id bson.ObjectID) error
}

// UpdateMeRequest is the self-service allow-list: name and email only.
type UpdateMeRequest struct {
	Name  *string `json:"name,omitempty" validate:"omitempty,min=1,max=100" example:"Laura Wilson"`
	Email *string `json:"email,omitempty" validate:"omitempty,email" example:"laura@example.com"`
}

// UpdateUserRequest is what an administrator may change on any user.
type UpdateUserRequest struct {
	Name  *string    `json:"name,omitempty" validate:"omitempty,min=1,max=100" example:"Laura Wilson"`
	Email *string    `json:"email,omitempty" validate:"omitempty,email" example:"laura@example.com"`
	Photo *string    `json:"photo,omitempty" validate:"omitempty,max=255" example:"user-2.jpg"`
	Role  *auth.Role `json:"role,omitempty" validate:"omitempty,oneof=user guide lead-guide admin" example:"guide"`
}

// Service handles user profile and administration logic
type Service struct {
	repo Repository
	log  *slog.Logger
}

// NewService creates a new users service
func NewService(repo Repository, log *slog.Logger) *Service {
	return &Service{repo: repo, log: log}
}

// List returns one page of active users.
func (s *Service) List(ctx context.Context, p paging.Params) ([]*auth.User, error) {
	p = p.Normalize()
	return s.repo.List(ctx, p.Skip(), int64(p.Limit))
}

// Get returns an active user by id.
func (s *Service) Get(ctx context.Context, id bson.ObjectID) (*auth.User, error) {
	return s.repo.FindByID(ctx, id)
}

// UpdateMe changes the caller's own name and email.
func (s *Service) UpdateMe(ctx context.Context, id bson.ObjectID, req UpdateMeRequest) (*auth.User, error) {
	patch := auth.UserPatch{
		Name:  cleanName(req.Name),
		Email: normalizeEmail(req.Email),
	}
	return s.update(ctx, id, patch)
}

// DeleteMe deactivates the caller. The record stays but is hidden from
// every default lookup, so existing sessions stop resolving.
func (s *Service) DeleteMe(ctx context.Context, id bson.ObjectID) error {
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return err
	}
	s.log.Info("user deactivated", "userID", id.Hex())
	return nil
}

// Update applies an administrative change to any user.
func (s *Service) Update(ctx context.Context, id bson.ObjectID, req UpdateUserRequest) (*auth.User, error) {
	if req.Role != nil && !req.Role.Valid() {
		return nil, ErrInvalidRole
	}
	patch := auth.UserPatch{
		Name:  cleanName(req.Name),
		Email: normalizeEmail(req.Email),
		Photo: req.Photo,
		Role:  req.Role,
	}
	return s.update(ctx, id, patch)
}

// Delete removes a user for good.
func (s *Service) Delete(ctx context.Context, id bson.ObjectID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.log.Info("user deleted", "userID", id.Hex())
	return nil
}

func (s *Service) update(ctx context.Context, id bson.ObjectID, patch auth.UserPatch) (*auth.User, error) {
	if patch.Empty() {
		return nil, ErrEmptyUpdate
	}
	return s.repo.Update(ctx, id, patch)
}

func cleanName(name *string) *string {
	return sanitize.CleanPtr(name)
}

func normalizeEmail(email *string) *string {
	if email == nil {
		return nil
	}
	v := strings.ToLower(strings.TrimSpace(*email))
	return &v
}
