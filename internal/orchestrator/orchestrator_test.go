package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/dictgen/internal/dictionary"
	"github.com/JakeFAU/dictgen/internal/limiter"
	"github.com/JakeFAU/dictgen/internal/policy/ratelimit"
)

type funcFetcher func(ctx context.Context, call int) (dictionary.Record, error)

type fakeFetcher struct {
	calls   atomic.Int64
	current atomic.Int64
	peak    atomic.Int64
	fn      funcFetcher
}

func (f *fakeFetcher) Fetch(ctx context.Context) (dictionary.Record, error) {
	call := int(f.calls.Add(1))
	n := f.current.Add(1)
	defer f.current.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	return f.fn(ctx, call)
}

func wordAt(words []string) funcFetcher {
	var mu sync.Mutex
	next := 0
	return func(context.Context, int) (dictionary.Record, error) {
		mu.Lock()
		defer mu.Unlock()
		w := words[next%len(words)]
		next++
		return dictionary.Record{Word: w, Pronunciation: "p-" + w, Definition: "d-" + w}, nil
	}
}

func newLimiter(t *testing.T, capacity int) *limiter.Limiter {
	t.Helper()
	l, err := limiter.New(capacity)
	require.NoError(t, err)
	t.Cleanup(l.Close)
	return l
}

func TestRunThreeWordsUnderTwoPermits(t *testing.T) {
	t.Parallel()

	lim := newLimiter(t, 2)
	gate := make(chan struct{})
	words := wordAt([]string{"banana", "apple", "cherry"})
	f := &fakeFetcher{fn: func(ctx context.Context, call int) (dictionary.Record, error) {
		select {
		case <-gate:
		case <-ctx.Done():
			return dictionary.Record{}, ctx.Err()
		}
		return words(ctx, call)
	}}
	o := New(f, lim, nil, Config{}, nil)

	type result struct {
		records []dictionary.Record
		err     error
	}
	done := make(chan result, 1)
	go func() {
		records, err := o.Run(context.Background(), "demo", 3)
		done <- result{records, err}
	}()

	require.Eventually(t, func() bool { return f.calls.Load() == 2 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int64(2), f.calls.Load(), "third fetch must wait for a permit")
	assert.Equal(t, int64(2), lim.InFlight())

	close(gate)
	res := <-done
	require.NoError(t, res.err)
	require.Len(t, res.records, 3)
	assert.Equal(t, "apple", res.records[0].Word)
	assert.Equal(t, "banana", res.records[1].Word)
	assert.Equal(t, "cherry", res.records[2].Word)
	assert.Equal(t, dictionary.Histogram{"a": 1, "b": 1, "c": 1}, dictionary.ComputeHistogram(res.records))
	assert.Equal(t, int64(0), lim.InFlight())
	assert.LessOrEqual(t, f.peak.Load(), int64(2))
}

func TestRunReturnsExactlyCountRecords(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{fn: wordAt([]string{"kiwi", "fig", "date", "lime"})}
	o := New(f, newLimiter(t, 4), nil, Config{}, nil)

	records, err := o.Run(context.Background(), "big", 50)
	require.NoError(t, err)
	assert.Len(t, records, 50)
	for i := 1; i < len(records); i++ {
		assert.LessOrEqual(t, records[i-1].Word, records[i].Word)
	}
	assert.Equal(t, 50, dictionary.ComputeHistogram(records).Total())
}

func TestRunZeroAndNegativeCount(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{fn: wordAt([]string{"x"})}
	o := New(f, newLimiter(t, 1), nil, Config{}, nil)

	records, err := o.Run(context.Background(), "empty", 0)
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Equal(t, int64(0), f.calls.Load())

	_, err = o.Run(context.Background(), "neg", -1)
	require.ErrorIs(t, err, dictionary.ErrInvalidArgument)
}

func TestRunFirstFailureAbortsSiblings(t *testing.T) {
	t.Parallel()

	var cancelled atomic.Int64
	f := &fakeFetcher{fn: func(ctx context.Context, call int) (dictionary.Record, error) {
		if call == 2 {
			return dictionary.Record{}, fmt.Errorf("%w: status 503: unavailable", dictionary.ErrRemoteRequestFailed)
		}
		<-ctx.Done()
		cancelled.Add(1)
		return dictionary.Record{}, fmt.Errorf("%w: %w", dictionary.ErrRemoteRequestFailed, ctx.Err())
	}}
	o := New(f, newLimiter(t, 10), nil, Config{FetchTimeout: time.Minute}, nil)

	start := time.Now()
	records, err := o.Run(context.Background(), "doomed", 5)
	require.ErrorIs(t, err, dictionary.ErrRemoteRequestFailed)
	assert.Contains(t, err.Error(), "503")
	assert.Nil(t, records)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, f.calls.Load()-1, cancelled.Load(), "every other started fetch sees cancellation")
}

func TestRunClassifiesFailures(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		fn      funcFetcher
		timeout time.Duration
		want    error
	}{
		{
			name: "remote",
			fn: func(context.Context, int) (dictionary.Record, error) {
				return dictionary.Record{}, fmt.Errorf("%w: connection refused", dictionary.ErrRemoteRequestFailed)
			},
			want: dictionary.ErrRemoteRequestFailed,
		},
		{
			name: "deserialization",
			fn: func(context.Context, int) (dictionary.Record, error) {
				return dictionary.Record{}, fmt.Errorf("%w: unexpected EOF", dictionary.ErrDeserializationFailed)
			},
			want: dictionary.ErrDeserializationFailed,
		},
		{
			name: "panic",
			fn: func(context.Context, int) (dictionary.Record, error) {
				panic("boom")
			},
			want: dictionary.ErrTaskFailure,
		},
		{
			name: "unclassified",
			fn: func(context.Context, int) (dictionary.Record, error) {
				return dictionary.Record{}, errors.New("mystery")
			},
			want: dictionary.ErrTaskFailure,
		},
		{
			name: "timeout",
			fn: func(ctx context.Context, _ int) (dictionary.Record, error) {
				<-ctx.Done()
				return dictionary.Record{}, ctx.Err()
			},
			timeout: 10 * time.Millisecond,
			want:    dictionary.ErrRemoteRequestFailed,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			lim := newLimiter(t, 2)
			o := New(&fakeFetcher{fn: tc.fn}, lim, nil, Config{FetchTimeout: tc.timeout}, nil)
			records, err := o.Run(context.Background(), tc.name, 3)
			require.ErrorIs(t, err, tc.want)
			assert.Nil(t, records)
			assert.Equal(t, int64(0), lim.InFlight(), "permits must be returned")
		})
	}
}

func TestRunParentCancellationIsTaskFailure(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	f := &fakeFetcher{fn: func(ctx context.Context, _ int) (dictionary.Record, error) {
		<-ctx.Done()
		return dictionary.Record{}, fmt.Errorf("%w: %w", dictionary.ErrRemoteRequestFailed, ctx.Err())
	}}
	o := New(f, newLimiter(t, 1), nil, Config{}, nil)

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	_, err := o.Run(ctx, "shutdown", 3)
	require.ErrorIs(t, err, dictionary.ErrTaskFailure)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunSharesLimiterAcrossJobs(t *testing.T) {
	t.Parallel()

	lim := newLimiter(t, 3)
	f := &fakeFetcher{fn: func(ctx context.Context, call int) (dictionary.Record, error) {
		time.Sleep(time.Millisecond)
		return dictionary.Record{Word: fmt.Sprintf("w%03d", call)}, nil
	}}
	o := New(f, lim, nil, Config{}, nil)

	var wg sync.WaitGroup
	for i := range 4 {
		wg.Go(func() {
			records, err := o.Run(context.Background(), fmt.Sprintf("job-%d", i), 10)
			assert.NoError(t, err)
			assert.Len(t, records, 10)
		})
	}
	wg.Wait()
	assert.LessOrEqual(t, f.peak.Load(), int64(3))
}

func TestRunWithPacer(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{fn: wordAt([]string{"a", "b"})}
	pacer := ratelimit.New(ratelimit.Config{RequestsPerSecond: 50, Burst: 1})
	o := New(f, newLimiter(t, 5), pacer, Config{}, nil)

	start := time.Now()
	records, err := o.Run(context.Background(), "paced", 4)
	require.NoError(t, err)
	assert.Len(t, records, 4)
	// Three tokens beyond the burst at 20ms each.
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}
