// Package checkpoint remembers how far a paginated run got and keeps two runs
// of the same job from overlapping.
package checkpoint

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ReconcileLock is held by every job that writes deals.account_owner_id, so
// assign and propagate never overlap.
const ReconcileLock = "reconcile"

// ErrLocked is returned when another run already holds the job lock.
var ErrLocked = errors.New("job is locked by another run")

// Store persists the last processed id per job and guards jobs with a lock.
type Store interface {
	Load(ctx context.Context, job string) (string, error)
	Save(ctx context.Context, job, lastID string) error
	Clear(ctx context.Context, job string) error
	// Acquire takes the job lock for ttl. The returned release func is safe to
	// call once the run ends.
	Acquire(ctx context.Context, job string, ttl time.Duration) (func(context.Context) error, error)
}

// Memory keeps checkpoints for the lifetime of the process. It is used when no
// Redis is configured, so a killed run restarts from the beginning.
type Memory struct {
	mu     sync.Mutex
	cursor map[string]string
	locks  map[string]time.Time
	now    func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		cursor: map[string]string{},
		locks:  map[string]time.Time{},
		now:    time.Now,
	}
}

func (m *Memory) Load(_ context.Context, job string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cursor[job], nil
}

func (m *Memory) Save(_ context.Context, job, lastID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cursor[job] = lastID
	return nil
}

func (m *Memory) Clear(_ context.Context, job string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cursor, job)
	return nil
}

func (m *Memory) Acquire(_ context.Context, job string, ttl time.Duration) (func(context.Context) error, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if expires, ok := m.locks[job]; ok && m.now().Before(expires) {
		return nil, ErrLocked
	}
	expires := m.now().Add(ttl)
	m.locks[job] = expires
	return func(context.Context) error {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.locks[job].Equal(expires) {
			delete(m.locks, job)
		}
		return nil
	}, nil
}
