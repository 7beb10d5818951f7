package biz

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyLockMutualExclusionPerKey(t *testing.T) {
	locks := newKeyLock()

	var inside int
	var maxInside int
	var mu sync.Mutex

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := locks.Acquire(context.Background(), "same")
			assert.NoError(t, err)
			defer release()

			mu.Lock()
			inside++
			if inside > maxInside {
				maxInside = inside
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			inside--
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxInside)
	assert.Empty(t, locks.locks, "entries must be reclaimed after release")
}

func TestKeyLockIndependentKeys(t *testing.T) {
	locks := newKeyLock()

	releaseA, err := locks.Acquire(context.Background(), "a")
	require.NoError(t, err)
	defer releaseA()

	done := make(chan struct{})
	go func() {
		releaseB, err := locks.Acquire(context.Background(), "b")
		assert.NoError(t, err)
		releaseB()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("different keys must not block each other")
	}
}

func TestKeyLockAcquireHonorsContext(t *testing.T) {
	locks := newKeyLock()

	release, err := locks.Acquire(context.Background(), "held")
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err = locks.Acquire(ctx, "held")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
