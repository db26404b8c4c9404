package fakeuserrepo

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rankauskaite/fittrack/users"
)

var _ users.Repo = (*FakeUserRepo)(nil)

type FakeUserRepo struct {
	users       map[string]*users.User
	usernameIDs map[string]string // username to user id
	lock        sync.RWMutex
}

func NewFakeUserRepo() *FakeUserRepo {
	return &FakeUserRepo{
		users:       make(map[string]*users.User),
		usernameIDs: make(map[string]string),
	}
}

func (ur *FakeUserRepo) Upsert(_ context.Context, user *users.User) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	cp := *user
	ur.users[user.ID] = &cp
	ur.usernameIDs[user.Username] = user.ID
	return nil
}

func (ur *FakeUserRepo) Delete(_ context.Context, username string) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	userID, ok := ur.usernameIDs[username]
	if !ok {
		return users.ErrNotFound
	}
	delete(ur.usernameIDs, username)
	delete(ur.users, userID)
	return nil
}

func (ur *FakeUserRepo) GetByUsername(_ context.Context, username string) (*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	userID, ok := ur.usernameIDs[username]
	if !ok {
		return nil, users.ErrNotFound
	}
	return copyUser(ur.users[userID]), nil
}

func (ur *FakeUserRepo) GetByID(_ context.Context, id string) (*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	user, ok := ur.users[id]
	if !ok {
		return nil, users.ErrNotFound
	}
	return copyUser(user), nil
}

func (ur *FakeUserRepo) GetByRefreshToken(_ context.Context, token string) (*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	for _, user := range ur.users {
		if user.RefreshToken != nil && *user.RefreshToken == token {
			return copyUser(user), nil
		}
	}
	return nil, users.ErrNotFound
}

func (ur *FakeUserRepo) List(_ context.Context, offset, limit int) ([]*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	all := make([]*users.User, 0, len(ur.users))
	for _, user := range ur.users {
		all = append(all, copyUser(user))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Username < all[j].Username })

	if offset >= len(all) {
		return nil, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (ur *FakeUserRepo) SetRefreshToken(_ context.Context, userID string, token *string, exp *time.Time) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	user, ok := ur.users[userID]
	if !ok {
		return users.ErrNotFound
	}
	user.RefreshToken = copyString(token)
	user.RefreshTokenExp = copyTime(exp)
	return nil
}

func (ur *FakeUserRepo) RotateRefreshToken(_ context.Context, userID, current, next string, exp time.Time) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	user, ok := ur.users[userID]
	if !ok {
		return users.ErrNotFound
	}
	if user.RefreshToken == nil || *user.RefreshToken != current {
		return users.ErrStaleRefreshToken
	}
	user.RefreshToken = &next
	user.RefreshTokenExp = &exp
	return nil
}

func copyUser(u *users.User) *users.User {
	cp := *u
	cp.RefreshToken = copyString(u.RefreshToken)
	cp.RefreshTokenExp = copyTime(u.RefreshTokenExp)
	return &cp
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	cp := *s
	return &cp
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	cp := *t
	return &cp
}
