package identity

import "errors"

// Credential and token rejection errors. Messages are user-facing; the
// login path deliberately reports the same ErrInvalidCredentials whether
// the account is unknown or the password is wrong.
var (
	ErrMissingCredentials = errors.New("missing credentials")
	ErrInvalidCredentials = errors.New("invalid credentials")

	ErrMissingFields = errors.New("missing fields")
	ErrEmailTaken    = errors.New("an account with this email already exists")

	ErrMissingToken        = errors.New("missing token")
	ErrMalformedToken      = errors.New("malformed token")
	ErrTokenExpired        = errors.New("token expired")
	ErrInvalidToken        = errors.New("invalid or malformed token")
	ErrTokenMissingSubject = errors.New("invalid token: missing subject")
	ErrUserNotFound        = errors.New("user not found")
)
