package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalExclusive(t *testing.T) {
	l := NewLocal()
	release, err := l.TryLock(context.Background(), "a@x.com")
	require.NoError(t, err)

	_, err = l.TryLock(context.Background(), "a@x.com")
	assert.ErrorIs(t, err, ErrHeld)

	other, err := l.TryLock(context.Background(), "b@x.com")
	require.NoError(t, err)
	other()

	release()
	release()

	again, err := l.TryLock(context.Background(), "a@x.com")
	require.NoError(t, err)
	again()
}

func TestLocalConcurrentSingleWinner(t *testing.T) {
	l := NewLocal()
	var wins atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if _, err := l.TryLock(context.Background(), "k"); err == nil {
				wins.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}
