// Package lock serialises work on shared resources such as a vehicle or a
// driver across requests and, with redis configured, across processes.
package lock

import (
	"context"
	"errors"
	"sync"
)

// ErrNotAcquired is returned when the lock could not be taken before the
// context was done.
var ErrNotAcquired = errors.New("lock not acquired")

// Locker hands out exclusive locks keyed by name. The returned release func
// must be called exactly once.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// AcquireAll takes every key in order and releases them in reverse.
// Callers pass keys in a stable order so two requests never wait on each other.
func AcquireAll(ctx context.Context, l Locker, keys ...string) (func(), error) {
	releases := make([]func(), 0, len(keys))
	releaseAll := func() {
		for i := len(releases) - 1; i >= 0; i-- {
			releases[i]()
		}
	}
	for _, key := range keys {
		release, err := l.Acquire(ctx, key)
		if err != nil {
			releaseAll()
			return nil, err
		}
		releases = append(releases, release)
	}
	return releaseAll, nil
}

// MemoryLocker is the in-process Locker used when redis is not configured.
// A key's slot lives only while someone holds or waits on it.
type MemoryLocker struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{}
	refs int // holders plus waiters, guarded by MemoryLocker.mu
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{slots: make(map[string]*slot)}
}

func (m *MemoryLocker) get(key string) *slot {
	m.mu.Lock()
	defer m.mu.Unlock()
	sl, ok := m.slots[key]
	if !ok {
		sl = &slot{ch: make(chan struct{}, 1)}
		m.slots[key] = sl
	}
	sl.refs++
	return sl
}

func (m *MemoryLocker) put(key string, sl *slot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sl.refs--
	if sl.refs == 0 {
		delete(m.slots, key)
	}
}

func (m *MemoryLocker) Acquire(ctx context.Context, key string) (func(), error) {
	sl := m.get(key)
	select {
	case sl.ch <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-sl.ch
				m.put(key, sl)
			})
		}, nil
	case <-ctx.Done():
		m.put(key, sl)
		return nil, ErrNotAcquired
	}
}
