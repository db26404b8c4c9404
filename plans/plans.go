package plans

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("training plan not found")

// Plan is a training plan assigned to or authored by a user. The full
// fitness domain (workouts, exercises, comments, ratings) lives behind this
// interface; the session core only needs a protected resource to serve.
type Plan struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Trainer   string    `json:"trainer"`
	CreatedAt time.Time `json:"created_at"`
}

// Repo lists plans visible to a user.
type Repo interface {
	ListForUser(ctx context.Context, username string) ([]*Plan, error)
}
