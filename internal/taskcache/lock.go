package taskcache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
)

// keyLocker hands out exclusive per-key locks. Goroutines of one instance
// queue on a refcounted mutex; other instances and processes sharing the
// root queue on a file lock in dir.
type keyLocker struct {
	dir string

	mu    sync.Mutex
	locks map[string]*entryLock
}

type entryLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyLocker(dir string) *keyLocker {
	return &keyLocker{dir: dir, locks: make(map[string]*entryLock)}
}

// lock blocks until key is held and returns the release func.
func (l *keyLocker) lock(key string) (func(), error) {
	release := l.lockLocal(key)

	sum := sha256.Sum256([]byte(key))
	fl := flock.New(filepath.Join(l.dir, hex.EncodeToString(sum[:])+".lock"))
	if err := fl.Lock(); err != nil {
		release()
		return nil, fmt.Errorf("failed to acquire file lock: %w", err)
	}

	return func() {
		_ = fl.Unlock()
		release()
	}, nil
}

func (l *keyLocker) lockLocal(key string) func() {
	l.mu.Lock()
	e := l.locks[key]
	if e == nil {
		e = &entryLock{}
		l.locks[key] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		l.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}
}
