package circuit

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fail(b *Breaker, n int) {
	for range n {
		b.RecordFailure()
	}
}

func succeed(b *Breaker, n int) {
	for range n {
		b.RecordSuccess()
	}
}

func TestNewBreakerIsClosed(t *testing.T) {
	b := New("participant-feed")

	assert.False(t, b.IsOpen())
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, "closed", b.State().String())
	assert.Equal(t, "participant-feed", b.Name())
}

func TestOpensOnConsecutiveFailures(t *testing.T) {
	b := New("feed", WithFailureThreshold(3))

	fail(b, 2)
	require.False(t, b.IsOpen())

	useFallback, change := b.RecordFailure()
	assert.True(t, useFallback)
	assert.True(t, change.Opened)
	assert.Equal(t, "open", b.State().String())

	useFallback, change = b.RecordFailure()
	assert.True(t, useFallback)
	assert.False(t, change.Opened, "already open")
}

func TestClosesOnConsecutiveSuccesses(t *testing.T) {
	b := New("feed", WithFailureThreshold(1), WithSuccessThreshold(2))
	fail(b, 1)
	require.True(t, b.IsOpen())

	usePrimary, change := b.RecordSuccess()
	assert.False(t, usePrimary)
	assert.False(t, change.Closed)

	usePrimary, change = b.RecordSuccess()
	assert.True(t, usePrimary)
	assert.True(t, change.Closed)
	assert.False(t, b.IsOpen())
}

func TestCountersResetOnOppositeOutcome(t *testing.T) {
	t.Run("success clears failure streak", func(t *testing.T) {
		b := New("feed", WithFailureThreshold(3))
		fail(b, 2)
		succeed(b, 1)
		fail(b, 2)
		assert.False(t, b.IsOpen())
		fail(b, 1)
		assert.True(t, b.IsOpen())
	})

	t.Run("failure while open clears success streak", func(t *testing.T) {
		b := New("feed", WithFailureThreshold(1), WithSuccessThreshold(3))
		fail(b, 1)
		succeed(b, 2)
		fail(b, 1)
		succeed(b, 2)
		assert.True(t, b.IsOpen())
		succeed(b, 1)
		assert.False(t, b.IsOpen())
	})
}

func TestReset(t *testing.T) {
	b := New("feed", WithFailureThreshold(1))
	fail(b, 1)
	require.True(t, b.IsOpen())

	b.Reset()
	assert.Equal(t, StateClosed, b.State())
}

func TestConcurrentOutcomesOpenOnce(t *testing.T) {
	b := New("feed", WithFailureThreshold(10))

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		opened int
	)
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, change := b.RecordFailure(); change.Opened {
				mu.Lock()
				opened++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, opened)
	assert.True(t, b.IsOpen())
}
