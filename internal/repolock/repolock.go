// Package repolock serializes mutations of a single repository.
//
// A lock is held in-process through a keyed mutex and, when a locks directory
// is configured, across processes through a file lock per repository.
package repolock

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/stacklok/gitrepo-server/internal/repopath"
)

const defaultRetryDelay = 50 * time.Millisecond

// Unlock releases a held lock. It is safe to call once.
type Unlock func()

// Locker hands out per-(owner, repository) locks
type Locker struct {
	dir        string
	retryDelay time.Duration

	mu   sync.Mutex
	keys map[string]*keyLock
}

// keyLock is a mutex whose acquisition can be abandoned when a context ends.
// refs counts holders and waiters so idle keys can be dropped.
type keyLock struct {
	sem  chan struct{}
	refs int
}

// Option configures a Locker
type Option func(*Locker)

// WithRetryDelay sets how often a contended file lock is retried
func WithRetryDelay(d time.Duration) Option {
	return func(l *Locker) {
		if d > 0 {
			l.retryDelay = d
		}
	}
}

// New creates a Locker. An empty dir disables cross-process file locks.
func New(dir string, opts ...Option) (*Locker, error) {
	if dir != "" {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create locks directory: %w", err)
		}
	}

	l := &Locker{
		dir:        dir,
		retryDelay: defaultRetryDelay,
		keys:       make(map[string]*keyLock),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Lock blocks until the repository lock is held or ctx is done
func (l *Locker) Lock(ctx context.Context, owner, repo string) (Unlock, error) {
	if err := repopath.ValidateName(owner); err != nil {
		return nil, err
	}
	if err := repopath.ValidateName(repo); err != nil {
		return nil, err
	}

	key := owner + "/" + repo
	k := l.acquireRef(key)

	select {
	case k.sem <- struct{}{}:
	case <-ctx.Done():
		l.releaseRef(key)
		return nil, fmt.Errorf("waiting for lock on %s: %w", key, ctx.Err())
	}

	fileLock, err := l.lockFile(ctx, owner, repo)
	if err != nil {
		<-k.sem
		l.releaseRef(key)
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			if fileLock != nil {
				_ = fileLock.Unlock()
			}
			<-k.sem
			l.releaseRef(key)
		})
	}, nil
}

// LockPair locks two repositories of one owner in name order, so concurrent
// renames in opposite directions cannot deadlock. Equal names lock once.
func (l *Locker) LockPair(ctx context.Context, owner, a, b string) (Unlock, error) {
	if a == b {
		return l.Lock(ctx, owner, a)
	}
	if b < a {
		a, b = b, a
	}

	first, err := l.Lock(ctx, owner, a)
	if err != nil {
		return nil, err
	}
	second, err := l.Lock(ctx, owner, b)
	if err != nil {
		first()
		return nil, err
	}

	return func() {
		second()
		first()
	}, nil
}

func (l *Locker) lockFile(ctx context.Context, owner, repo string) (*flock.Flock, error) {
	if l.dir == "" {
		return nil, nil
	}

	ownerDir := filepath.Join(l.dir, owner)
	if err := os.MkdirAll(ownerDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create lock directory for %s: %w", owner, err)
	}

	fileLock := flock.New(filepath.Join(ownerDir, repo+".lock"))
	locked, err := fileLock.TryLockContext(ctx, l.retryDelay)
	if err != nil {
		return nil, fmt.Errorf("failed to lock %s/%s: %w", owner, repo, err)
	}
	if !locked {
		return nil, fmt.Errorf("failed to lock %s/%s", owner, repo)
	}
	return fileLock, nil
}

func (l *Locker) acquireRef(key string) *keyLock {
	l.mu.Lock()
	defer l.mu.Unlock()

	k, ok := l.keys[key]
	if !ok {
		k = &keyLock{sem: make(chan struct{}, 1)}
		l.keys[key] = k
	}
	k.refs++
	return k
}

func (l *Locker) releaseRef(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	k, ok := l.keys[key]
	if !ok {
		return
	}
	k.refs--
	if k.refs == 0 {
		delete(l.keys, key)
	}
}

// size reports the number of tracked keys
func (l *Locker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.keys)
}
