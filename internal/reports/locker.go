package reports

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/bugboard/internal/cache"
)

// Consistency modes for duplicate detection under concurrent submission.
const (
	ConsistencyNone  = "none"
	ConsistencyLocal = "local"
	ConsistencyRedis = "redis"
)

// ErrLockTimeout is returned when a submission lock could not be taken in time.
var ErrLockTimeout = errors.New("timed out waiting for submission lock")

// Locker serializes submissions that share a key. The returned func releases
// the lock and must be called exactly once.
type Locker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

// NewLocker returns the Locker for a consistency mode. ConsistencyNone and
// the empty string return nil, which disables locking.
func NewLocker(mode string, c cache.Cache, ttl, wait time.Duration) (Locker, error) {
	switch mode {
	case "", ConsistencyNone:
		return nil, nil
	case ConsistencyLocal:
		return NewLocalLocker(), nil
	case ConsistencyRedis:
		if c == nil {
			return nil, errors.New("redis consistency requires a cache")
		}
		return NewCacheLocker(c, ttl, wait), nil
	default:
		return nil, fmt.Errorf("unknown consistency mode %q", mode)
	}
}

// LocalLocker is an in-process keyed mutex. It only serializes submissions
// handled by the same process.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	ch   chan struct{}
	refs int
}

// NewLocalLocker creates an empty LocalLocker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[string]*keyLock)}
}

// Lock blocks until key is free or ctx is done.
func (l *LocalLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	kl, ok := l.locks[key]
	if !ok {
		kl = &keyLock{ch: make(chan struct{}, 1)}
		l.locks[key] = kl
	}
	kl.refs++
	l.mu.Unlock()

	select {
	case kl.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(key, kl)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-kl.ch
			l.release(key, kl)
		})
	}, nil
}

func (l *LocalLocker) release(key string, kl *keyLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	kl.refs--
	if kl.refs == 0 {
		delete(l.locks, key)
	}
}

// CacheLocker takes a lock in the shared cache so that every server process
// sharing it is serialized.
type CacheLocker struct {
	cache cache.Cache
	ttl   time.Duration
	wait  time.Duration
	poll  time.Duration
}

// NewCacheLocker creates a CacheLocker. ttl bounds how long a crashed holder
// keeps the lock; wait bounds how long Lock retries before ErrLockTimeout.
func NewCacheLocker(c cache.Cache, ttl, wait time.Duration) *CacheLocker {
	return &CacheLocker{cache: c, ttl: ttl, wait: wait, poll: 25 * time.Millisecond}
}

// Lock polls the cache until the lock is taken, the wait elapses or ctx is done.
func (l *CacheLocker) Lock(ctx context.Context, key string) (func(), error) {
	cacheKey := cache.SubmitLockKey(key)
	token := uuid.NewString()
	deadline := time.Now().Add(l.wait)

	for {
		ok, err := l.cache.AcquireLock(ctx, cacheKey, token, l.ttl)
		if err != nil {
			return nil, fmt.Errorf("acquire submission lock: %w", err)
		}
		if ok {
			break
		}
		if !time.Now().Before(deadline) {
			return nil, ErrLockTimeout
		}

		timer := time.NewTimer(l.poll)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := l.cache.ReleaseLock(releaseCtx, cacheKey, token); err != nil {
				slog.Warn("release submission lock", "error", err)
			}
		})
	}, nil
}
