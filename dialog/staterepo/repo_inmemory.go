package staterepo

import (
	"context"
	"sync"
	"time"
)

var _ Repo = (*InMemoryRepo)(nil)

// InMemoryRepo keeps snapshots in process memory. Suitable for single
// instance deployments and tests.
type InMemoryRepo struct {
	lock      sync.RWMutex
	snapshots map[string]Snapshot
	ttl       time.Duration
	nowTime   func() time.Time
}

// InMemoryOption modifies an InMemoryRepo instance.
type InMemoryOption func(*InMemoryRepo)

// WithNowTime injects the clock used for TTL checks.
func WithNowTime(now func() time.Time) InMemoryOption {
	return func(r *InMemoryRepo) {
		r.nowTime = now
	}
}

// NewInMemoryRepo creates a repo whose snapshots expire after ttl.
func NewInMemoryRepo(ttl time.Duration, options ...InMemoryOption) *InMemoryRepo {
	r := &InMemoryRepo{
		snapshots: make(map[string]Snapshot),
		ttl:       ttl,
		nowTime:   time.Now,
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

func (r *InMemoryRepo) Save(_ context.Context, key string, partial Partial) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	base := r.snapshots[key]
	merged := Merge(base, partial)
	merged.SavedAt = r.nowTime()
	r.snapshots[key] = merged
	return nil
}

func (r *InMemoryRepo) Load(_ context.Context, key string) (*Snapshot, error) {
	r.lock.RLock()
	snapshot, ok := r.snapshots[key]
	r.lock.RUnlock()

	if !ok {
		return nil, nil
	}
	if r.ttl > 0 && r.nowTime().Sub(snapshot.SavedAt) > r.ttl {
		r.lock.Lock()
		delete(r.snapshots, key)
		r.lock.Unlock()
		return nil, nil
	}
	return &snapshot, nil
}

func (r *InMemoryRepo) Clear(_ context.Context, key string) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	delete(r.snapshots, key)
	return nil
}
