package auth

import "errors"

var (
	// ErrGenAccessToken is returned when we cannot create a JWT.
	ErrGenAccessToken = errors.New("failed to generate access token")
	// ErrDuplicate is returned when trying to create a user with an email that already exists
	ErrDuplicate = errors.New("user with this email already exists")
	// ErrUserNotFound is returned by the store when no active user matches.
	ErrUserNotFound = errors.New("user not found")

	ErrInvalidCredentials = errors.New("incorrect email or password")
	ErrWrongPassword      = errors.New("your current password is wrong")

	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
	ErrUserGone     = errors.New("the user belonging to this token does no longer exist")
	ErrStaleToken   = errors.New("user recently changed password")

	ErrInvalidOrExpiredToken = errors.New("token is invalid or has expired")
	ErrMailDelivery          = errors.New("there was an error sending the email")
)
