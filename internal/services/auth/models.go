package auth

import (
	"slices"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Role is the authorization level of a user.
type Role string

const (
	RoleUser      Role = "user"
	RoleGuide     Role = "guide"
	RoleLeadGuide Role = "lead-guide"
	RoleAdmin     Role = "admin"
)

// Roles lists every valid role.
var Roles = []Role{RoleUser, RoleGuide, RoleLeadGuide, RoleAdmin}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return slices.Contains(Roles, r)
}

// User represents a user in the system.
// Credential fields are never serialized to clients.
type User struct {
	ID                     bson.ObjectID `bson:"_id,omitempty" json:"id,omitempty" example:"683cdb8aa96ad71e8e075bd1"`
	Name                   string        `bson:"name" json:"name" example:"Laura Wilson"`
	Email                  string        `bson:"email" json:"email" example:"laura@example.com"`
	Photo                  string        `bson:"photo,omitempty" json:"photo,omitempty" example:"user-1.jpg"`
	Role                   Role          `bson:"role" json:"role" example:"user"`
	PasswordHash           string        `bson:"password_hash" json:"-"`
	PasswordChangedAt      *time.Time    `bson:"password_changed_at,omitempty" json:"-"`
	PasswordResetTokenHash string        `bson:"password_reset_token,omitempty" json:"-"`
	PasswordResetExpiresAt *time.Time    `bson:"password_reset_expires,omitempty" json:"-"`
	Active                 bool          `bson:"active" json:"-"`
	CreatedAt              time.Time     `bson:"created_at" json:"createdAt" example:"2025-06-01T23:00:26.005703677Z"`
}

// HasRole reports whether the user's role is one of roles.
func (u *User) HasRole(roles ...Role) bool {
	return slices.Contains(roles, u.Role)
}

// ChangedPasswordAfter reports whether the password was changed after a
// token with the given issued-at time was signed. Comparison is done in whole
// seconds, the resolution of the iat claim.
func (u *User) ChangedPasswordAfter(issuedAt time.Time) bool {
	if u.PasswordChangedAt == nil {
		return false
	}
	return issuedAt.Unix() < u.PasswordChangedAt.Unix()
}

// UserPatch carries the profile fields a caller may change. Nil fields are
// left untouched. Passwords never travel through a patch.
type UserPatch struct {
	Name  *string
	Email *string
	Photo *string
	Role  *Role
}

// Empty reports whether the patch changes nothing.
func (p UserPatch) Empty() bool {
	return p.Name == nil && p.Email == nil && p.Photo == nil && p.Role == nil
}
