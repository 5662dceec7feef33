package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"
)

const (
	// MinPasswordLen is the only strength rule enforced on new passwords.
	MinPasswordLen = 8
	// MaxPasswordLen is bcrypt's input limit in bytes.
	MaxPasswordLen = 72

	resetTokenBytes = 32
)

var ErrPasswordLength = errors.New("password must be between 8 and 72 characters long")

// HashPassword hashes a password using bcrypt with the given cost
func HashPassword(password string, cost int) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword verifies a password against its hash
func CheckPassword(password, hash string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

// IsValidPassword reports whether password satisfies the length rule.
func IsValidPassword(password string) bool {
	return len(password) >= MinPasswordLen && len(password) <= MaxPasswordLen
}

func passwordRule(fl validator.FieldLevel) bool {
	return IsValidPassword(fl.Field().String())
}

// RegisterPasswordValidator registers the "password" validation tag with the validator
func RegisterPasswordValidator(v *validator.Validate) error {
	if err := v.RegisterValidation("password", passwordRule); err != nil {
		return ErrPasswordLength
	}
	return nil
}

// NewResetToken returns a fresh password reset token as 64 hex characters.
// Only the plaintext leaves the process by mail; callers persist HashResetToken(token).
func NewResetToken() (string, error) {
	buf := make([]byte, resetTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// HashResetToken is the SHA-256 hex digest stored in place of a reset token.
func HashResetToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
