// Package lock provides per-account mutual exclusion for generation requests.
package lock

import (
	"context"
	"errors"
	"sync"
)

// ErrHeld is returned when another request already holds the key.
var ErrHeld = errors.New("lock already held")

// Locker acquires a key without waiting. The returned release func is idempotent.
type Locker interface {
	TryLock(ctx context.Context, key string) (release func(), err error)
}

// Local is an in-process Locker for single-instance deployments.
type Local struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewLocal() *Local {
	return &Local{held: make(map[string]struct{})}
}

func (l *Local) TryLock(_ context.Context, key string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[key]; ok {
		return nil, ErrHeld
	}
	l.held[key] = struct{}{}
	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, key)
			l.mu.Unlock()
		})
	}, nil
}
