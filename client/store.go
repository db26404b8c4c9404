package client

import (
	"sync"

	"github.com/rankauskaite/fittrack/users"
)

// State is the locally persisted session: all four fields are written
// together on login/renewal and cleared together on logout or an
// unrecoverable renewal failure.
type State struct {
	AccessToken  string
	RefreshToken string
	Username     string
	Role         users.RoleType
}

// Store is the client-side credential store. A browser build backs this with
// localStorage; the in-memory implementation below serves native callers and
// tests.
type Store interface {
	Load() State
	Save(state State)
	Clear()
}

// MemoryStore is a mutex-guarded in-memory Store.
type MemoryStore struct {
	state State
	lock  sync.RWMutex
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load() State {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.state
}

func (s *MemoryStore) Save(state State) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.state = state
}

func (s *MemoryStore) Clear() {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.state = State{}
}
