package users

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("user not found")
	// ErrStaleRefreshToken is returned by RotateRefreshToken when the stored
	// value no longer matches the presented one, i.e. another rotation won.
	ErrStaleRefreshToken = errors.New("stale refresh token")
)

// Repo manages persistence of users. Refresh-token writes go through the
// dedicated methods below so the session issuer stays the only writer of
// session state.
type Repo interface {
	Upsert(ctx context.Context, user *User) error
	Delete(ctx context.Context, username string) error
	GetByUsername(ctx context.Context, username string) (*User, error)
	GetByID(ctx context.Context, id string) (*User, error)
	GetByRefreshToken(ctx context.Context, token string) (*User, error)
	List(ctx context.Context, offset, limit int) ([]*User, error)

	// SetRefreshToken unconditionally overwrites the stored refresh value and
	// expiry for the user. Passing nils clears the session state.
	SetRefreshToken(ctx context.Context, userID string, token *string, exp *time.Time) error

	// RotateRefreshToken replaces the stored refresh value only if it still
	// equals current. Returns ErrStaleRefreshToken if a concurrent rotation
	// already replaced it.
	RotateRefreshToken(ctx context.Context, userID, current, next string, exp time.Time) error
}
