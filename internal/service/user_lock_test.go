package service

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestUserLocker_SerializesSameUser(t *testing.T) {
	locker := NewUserLocker()

	var (
		active    int32
		maxActive int32
		wg        sync.WaitGroup
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locker.Lock("u1")
			defer unlock()

			n := atomic.AddInt32(&active, 1)
			for {
				m := atomic.LoadInt32(&maxActive)
				if n <= m || atomic.CompareAndSwapInt32(&maxActive, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&active, -1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxActive)
	assert.Equal(t, 0, locker.size(), "entries are released when unused")
}

func TestUserLocker_DifferentUsersDoNotBlock(t *testing.T) {
	locker := NewUserLocker()
	unlockA := locker.Lock("a")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlockB := locker.Lock("b")
		unlockB()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock for a different user blocked")
	}
}

func TestUserLocker_UnlockIsIdempotent(t *testing.T) {
	locker := NewUserLocker()
	unlock := locker.Lock("u1")
	unlock()
	unlock()
	assert.Equal(t, 0, locker.size())

	unlock = locker.Lock("u1")
	assert.Equal(t, 1, locker.size())
	unlock()
}
