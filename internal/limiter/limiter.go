// Package limiter provides the process-wide permit pool that bounds
// outbound concurrency across every job.
package limiter

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/JakeFAU/dictgen/internal/metrics"
)

// ErrClosed is returned by Acquire once the limiter has been closed.
var ErrClosed = errors.New("limiter closed")

// Release returns a permit to the pool. Calling it more than once is a no-op.
type Release func()

// Limiter is a counting permit pool. The zero value is not usable.
type Limiter struct {
	sem      *semaphore.Weighted
	capacity int64
	inFlight atomic.Int64

	closeCtx context.Context
	closeFn  context.CancelFunc
}

// New builds a Limiter with the given capacity.
func New(capacity int) (*Limiter, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("limiter capacity must be positive, got %d", capacity)
	}
	closeCtx, closeFn := context.WithCancel(context.Background())
	return &Limiter{
		sem:      semaphore.NewWeighted(int64(capacity)),
		capacity: int64(capacity),
		closeCtx: closeCtx,
		closeFn:  closeFn,
	}, nil
}

// Acquire blocks until a permit is available, ctx ends, or the limiter is
// closed. Waiters are served in FIFO order.
func (l *Limiter) Acquire(ctx context.Context) (Release, error) {
	if l.closeCtx.Err() != nil {
		return nil, ErrClosed
	}

	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(l.closeCtx, cancel)
	defer stop()

	start := time.Now()
	if err := l.sem.Acquire(waitCtx, 1); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("acquire permit: %w", ctx.Err())
		}
		return nil, ErrClosed
	}
	metrics.ObserveLimiterWait(time.Since(start))

	if l.closeCtx.Err() != nil {
		l.sem.Release(1)
		return nil, ErrClosed
	}

	metrics.SetLimiterInFlight(l.inFlight.Add(1))

	var once sync.Once
	return func() {
		once.Do(func() {
			metrics.SetLimiterInFlight(l.inFlight.Add(-1))
			l.sem.Release(1)
		})
	}, nil
}

// InFlight reports the number of permits currently held.
func (l *Limiter) InFlight() int64 {
	return l.inFlight.Load()
}

// Capacity reports the configured number of permits.
func (l *Limiter) Capacity() int64 {
	return l.capacity
}

// Close permanently closes the limiter. Pending and future Acquire calls
// fail with ErrClosed; permits already held can still be released.
func (l *Limiter) Close() {
	l.closeFn()
}
