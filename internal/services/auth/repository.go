package auth

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// UsersRepo is the credential store used by the auth service.
// Every lookup excludes deactivated users.
type UsersRepo interface {
	Create(ctx context.Context, user *User) error
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id bson.ObjectID) (*User, error)
	// ConsumeResetToken sets a new password on the user holding tokenHash
	// with an expiry after now, clearing the token in the same atomic
	// document update. No match is ErrUserNotFound.
	ConsumeResetToken(ctx context.Context, tokenHash string, now time.Time, passwordHash string, changedAt time.Time) (*User, error)
	// SetResetToken writes only the reset fields, overwriting a pending token.
	SetResetToken(ctx context.Context, id bson.ObjectID, tokenHash string, expiresAt time.Time) error
	ClearResetToken(ctx context.Context, id bson.ObjectID) error
	// SetPassword stores a new hash and change time and clears any reset token.
	SetPassword(ctx context.Context, id bson.ObjectID, passwordHash string, changedAt time.Time) error
}

// Mailer delivers account emails.
type Mailer interface {
	SendWelcome(ctx context.Context, user *User, url string) error
	SendPasswordReset(ctx context.Context, user *User, resetURL string) error
}
