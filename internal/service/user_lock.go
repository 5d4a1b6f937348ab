package service

import "sync"

// UserLocker serializes work per user. Locks for different users never contend,
// and an entry is dropped as soon as no goroutine holds or waits for it.
type UserLocker struct {
	mu    sync.Mutex
	locks map[string]*userLock
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

func NewUserLocker() *UserLocker {
	return &UserLocker{locks: make(map[string]*userLock)}
}

// Lock blocks until the caller holds userID's lock and returns the release func.
func (l *UserLocker) Lock(userID string) (unlock func()) {
	l.mu.Lock()
	ul, ok := l.locks[userID]
	if !ok {
		ul = &userLock{}
		l.locks[userID] = ul
	}
	ul.refs++
	l.mu.Unlock()

	ul.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			ul.mu.Unlock()

			l.mu.Lock()
			ul.refs--
			if ul.refs == 0 {
				delete(l.locks, userID)
			}
			l.mu.Unlock()
		})
	}
}

// size reports the number of live entries.
func (l *UserLocker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
