package limiter

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsNonPositiveCapacity(t *testing.T) {
	t.Parallel()

	_, err := New(0)
	require.Error(t, err)
	_, err = New(-3)
	require.Error(t, err)
}

func TestAcquireNeverExceedsCapacity(t *testing.T) {
	t.Parallel()

	const capacity = 3
	l, err := New(capacity)
	require.NoError(t, err)

	var (
		current atomic.Int64
		peak    atomic.Int64
		wg      sync.WaitGroup
	)
	for range 25 {
		wg.Go(func() {
			release, err := l.Acquire(context.Background())
			if !assert.NoError(t, err) {
				return
			}
			defer release()
			n := current.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			current.Add(-1)
		})
	}
	wg.Wait()

	assert.LessOrEqual(t, peak.Load(), int64(capacity))
	assert.Equal(t, int64(0), l.InFlight())
}

func TestReleaseIsIdempotent(t *testing.T) {
	t.Parallel()

	l, err := New(1)
	require.NoError(t, err)

	release, err := l.Acquire(context.Background())
	require.NoError(t, err)
	release()
	release()
	assert.Equal(t, int64(0), l.InFlight())

	// A double release must not have minted an extra permit.
	first, err := l.Acquire(context.Background())
	require.NoError(t, err)
	defer first()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Acquire(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestAcquireWaitsForRelease(t *testing.T) {
	t.Parallel()

	l, err := New(1)
	require.NoError(t, err)
	release, err := l.Acquire(context.Background())
	require.NoError(t, err)

	acquired := make(chan struct{})
	go func() {
		r, err := l.Acquire(context.Background())
		if err == nil {
			defer r()
		}
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("second acquire should block while the permit is held")
	case <-time.After(20 * time.Millisecond):
	}
	release()
	require.Eventually(t, func() bool {
		select {
		case <-acquired:
			return true
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)
}

func TestCloseFailsPendingAndFutureAcquires(t *testing.T) {
	t.Parallel()

	l, err := New(1)
	require.NoError(t, err)
	held, err := l.Acquire(context.Background())
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() {
		_, err := l.Acquire(context.Background())
		errCh <- err
	}()

	time.Sleep(10 * time.Millisecond)
	l.Close()

	select {
	case err := <-errCh:
		require.ErrorIs(t, err, ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("pending acquire was not woken by Close")
	}

	_, err = l.Acquire(context.Background())
	require.ErrorIs(t, err, ErrClosed)

	held()
	assert.Equal(t, int64(0), l.InFlight())
}
