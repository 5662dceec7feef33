package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// Claims is the payload of a session token.
type Claims struct {
	UserID string `json:"id"`
	jwt.RegisteredClaims
}

// UserObjectID returns the user id carried by the token.
func (c *Claims) UserObjectID() (bson.ObjectID, error) {
	id, err := bson.ObjectIDFromHex(c.UserID)
	if err != nil {
		return bson.ObjectID{}, ErrInvalidToken
	}
	return id, nil
}

// IssuedAtTime returns the iat claim, zero when absent.
func (c *Claims) IssuedAtTime() time.Time {
	if c.IssuedAt == nil {
		return time.Time{}
	}
	return c.IssuedAt.Time
}

// TokenService issues and verifies stateless HS256 session tokens.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenService creates a token service signing with secret.
func NewTokenService(secret string, ttl time.Duration) *TokenService {
	return &TokenService{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// TTL is the lifetime of issued tokens.
func (t *TokenService) TTL() time.Duration { return t.ttl }

// Issue signs a token for userID that expires after the configured TTL.
func (t *TokenService) Issue(userID bson.ObjectID) (string, error) {
	now := t.now()
	claims := Claims{
		UserID: userID.Hex(),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGenAccessToken, err)
	}
	return signed, nil
}

// Keyfunc hands the signing secret to the jwt parser, refusing every
// algorithm but HS256.
func (t *TokenService) Keyfunc(token *jwt.Token) (any, error) {
	if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
		return nil, ErrInvalidToken
	}
	return t.secret, nil
}

// Verify checks signature and expiry of raw and returns its claims.
// It fails with ErrExpiredToken or ErrInvalidToken.
func (t *TokenService) Verify(raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, t.Keyfunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}
	if err := ValidateClaims(claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// ValidateClaims checks the fields a signature-valid token must still carry.
func ValidateClaims(claims *Claims) error {
	if claims.IssuedAt == nil || claims.ExpiresAt == nil {
		return ErrInvalidToken
	}
	if _, err := claims.UserObjectID(); err != nil {
		return err
	}
	return nil
}
