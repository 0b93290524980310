// Package orchestrator runs one job's fan-out of word fetches under the
// shared concurrency limiter with all-or-nothing semantics.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/dictgen/internal/dictionary"
	"github.com/JakeFAU/dictgen/internal/limiter"
	"github.com/JakeFAU/dictgen/internal/metrics"
)

// DefaultFetchTimeout bounds a single outbound request when Config leaves it unset.
const DefaultFetchTimeout = 30 * time.Second

// Permits hands out concurrency permits.
type Permits interface {
	Acquire(ctx context.Context) (limiter.Release, error)
}

// Pacer optionally delays a request after its permit is granted.
type Pacer interface {
	Wait(ctx context.Context) error
}

// Config controls Orchestrator behavior.
type Config struct {
	FetchTimeout time.Duration
}

// Orchestrator executes fetch fan-outs. One instance serves every job.
type Orchestrator struct {
	fetcher dictionary.Fetcher
	permits Permits
	pacer   Pacer
	cfg     Config
	logger  *zap.Logger
}

// New constructs an Orchestrator. pacer may be nil.
func New(fetcher dictionary.Fetcher, permits Permits, pacer Pacer, cfg Config, logger *zap.Logger) *Orchestrator {
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultFetchTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		fetcher: fetcher,
		permits: permits,
		pacer:   pacer,
		cfg:     cfg,
		logger:  logger,
	}
}

// Run performs count fetches and returns the records sorted by Word. The
// first failure cancels every sibling and the collected records are
// discarded; the returned error wraps one of ErrRemoteRequestFailed,
// ErrDeserializationFailed or ErrTaskFailure.
func (o *Orchestrator) Run(ctx context.Context, jobID string, count int) ([]dictionary.Record, error) {
	if count < 0 {
		return nil, fmt.Errorf("%w: word_count must not be negative", dictionary.ErrInvalidArgument)
	}
	if count == 0 {
		return []dictionary.Record{}, nil
	}

	logger := o.logger.With(zap.String("job_id", jobID))
	results := make(chan dictionary.Record, count)
	g, gctx := errgroup.WithContext(ctx)

	for i := range count {
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					metrics.ObserveFetch("panic")
					err = fmt.Errorf("%w: fetch %d panicked: %v", dictionary.ErrTaskFailure, i, r)
				}
			}()
			rec, err := o.fetchOne(ctx, gctx)
			if err != nil {
				return err
			}
			results <- rec
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		logger.Warn("fan-out aborted", zap.Int("count", count), zap.Error(err))
		return nil, err
	}
	close(results)

	records := make([]dictionary.Record, 0, count)
	for rec := range results {
		records = append(records, rec)
	}
	sort.SliceStable(records, func(a, b int) bool {
		return records[a].Word < records[b].Word
	})
	logger.Debug("fan-out completed", zap.Int("count", len(records)))
	return records, nil
}

// fetchOne runs a single acquire, pace, request, release cycle. parent is the
// caller's context and gctx the group context cancelled on the first failure.
func (o *Orchestrator) fetchOne(parent, gctx context.Context) (dictionary.Record, error) {
	release, err := o.permits.Acquire(gctx)
	if err != nil {
		return dictionary.Record{}, o.abandoned(parent, gctx, "acquire permit", err)
	}
	defer release()

	if o.pacer != nil {
		if err := o.pacer.Wait(gctx); err != nil {
			return dictionary.Record{}, o.abandoned(parent, gctx, "pace request", err)
		}
	}

	fctx, cancel := context.WithTimeout(gctx, o.cfg.FetchTimeout)
	defer cancel()

	rec, err := o.fetcher.Fetch(fctx)
	if err == nil {
		metrics.ObserveFetch("success")
		return rec, nil
	}
	return dictionary.Record{}, o.classify(parent, gctx, fctx, err)
}

func (o *Orchestrator) classify(parent, gctx, fctx context.Context, err error) error {
	switch {
	case gctx.Err() != nil:
		return o.abandoned(parent, gctx, "fetch", err)
	case errors.Is(fctx.Err(), context.DeadlineExceeded):
		metrics.ObserveFetch("timeout")
		return fmt.Errorf("%w: request timed out after %s", dictionary.ErrRemoteRequestFailed, o.cfg.FetchTimeout)
	case errors.Is(err, dictionary.ErrRemoteRequestFailed):
		metrics.ObserveFetch("remote_error")
		return err
	case errors.Is(err, dictionary.ErrDeserializationFailed):
		metrics.ObserveFetch("decode_error")
		return err
	default:
		metrics.ObserveFetch("task_failure")
		return fmt.Errorf("%w: %w", dictionary.ErrTaskFailure, err)
	}
}

// abandoned reports work stopped by cancellation. When a sibling already
// failed, the group keeps that sibling's error and this one is ignored.
func (o *Orchestrator) abandoned(parent, gctx context.Context, stage string, err error) error {
	metrics.ObserveFetch("cancelled")
	if parent.Err() != nil {
		return fmt.Errorf("%w: %s cancelled: %w", dictionary.ErrTaskFailure, stage, parent.Err())
	}
	if gctx.Err() != nil {
		return fmt.Errorf("%w: %s cancelled", dictionary.ErrTaskFailure, stage)
	}
	return fmt.Errorf("%w: %s: %w", dictionary.ErrTaskFailure, stage, err)
}
