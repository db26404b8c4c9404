package session

import "errors"

var (
	// ErrInvalidCredentials covers both unknown username and wrong password.
	// The two are deliberately indistinguishable to prevent username
	// enumeration.
	ErrInvalidCredentials = errors.New("invalid username or password")

	// ErrRefreshTokenNotFound means the presented refresh value matches no
	// stored value: it was never issued, was rotated away, or was revoked.
	ErrRefreshTokenNotFound = errors.New("refresh token not found")

	// ErrRefreshTokenExpired means the value matched but its expiry has
	// passed. The stored value is left in place; it only refuses to renew.
	ErrRefreshTokenExpired = errors.New("refresh token expired")
)
