package fakeplanrepo

import (
	"context"
	"sync"

	"github.com/rankauskaite/fittrack/plans"
)

var _ plans.Repo = (*FakePlanRepo)(nil)

type FakePlanRepo struct {
	byUser map[string][]*plans.Plan
	lock   sync.RWMutex
}

func NewFakePlanRepo() *FakePlanRepo {
	return &FakePlanRepo{
		byUser: make(map[string][]*plans.Plan),
	}
}

func (pr *FakePlanRepo) Add(username string, plan *plans.Plan) {
	pr.lock.Lock()
	defer pr.lock.Unlock()
	pr.byUser[username] = append(pr.byUser[username], plan)
}

func (pr *FakePlanRepo) ListForUser(_ context.Context, username string) ([]*plans.Plan, error) {
	pr.lock.RLock()
	defer pr.lock.RUnlock()
	return append([]*plans.Plan(nil), pr.byUser[username]...), nil
}
