// Package jobs owns the dictionary job lifecycle: admission, detached runs,
// terminal transitions, deletion and startup reconstruction.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/dictgen/internal/dictionary"
	"github.com/JakeFAU/dictgen/internal/events"
	"github.com/JakeFAU/dictgen/internal/hash/sha256"
	"github.com/JakeFAU/dictgen/internal/metrics"
	"github.com/JakeFAU/dictgen/internal/registry"
)

// DefaultMaxWordCount caps a single submission when Config leaves it unset.
const DefaultMaxWordCount = 10000

// ErrShuttingDown is returned by Submit once Shutdown has begun.
var ErrShuttingDown = errors.New("job manager is shutting down")

// Runner produces the records for one job.
type Runner interface {
	Run(ctx context.Context, jobID string, count int) ([]dictionary.Record, error)
}

// Config tunes admission.
type Config struct {
	MaxWordCount int
}

// Summary is one row of the operator listing.
type Summary struct {
	Name   string            `json:"name"`
	Status dictionary.Status `json:"status"`
}

// Download is a persisted artifact ready to be served.
type Download struct {
	Body []byte
	ETag string
}

// Manager coordinates the registry, the runner and the artifact store.
type Manager struct {
	registry *registry.Registry
	runner   Runner
	store    dictionary.ArtifactStore
	events   events.Emitter
	clock    dictionary.Clock
	ids      dictionary.IDGenerator
	hasher   dictionary.Hasher
	logger   *zap.Logger
	cfg      Config

	rootCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.RWMutex
	closed  bool
	// locks serializes a run's persistence against Delete of the same id.
	locks idLocks
}

// Deps groups the Manager's collaborators.
type Deps struct {
	Registry *registry.Registry
	Runner   Runner
	Store    dictionary.ArtifactStore
	Events   events.Emitter
	Clock    dictionary.Clock
	IDs      dictionary.IDGenerator
	// Hasher derives download ETags; SHA-256 when nil.
	Hasher dictionary.Hasher
	Logger *zap.Logger
}

// New constructs a Manager. Registry, Runner, Store, Clock and IDs are required.
func New(deps Deps, cfg Config) (*Manager, error) {
	switch {
	case deps.Registry == nil:
		return nil, errors.New("registry is required")
	case deps.Runner == nil:
		return nil, errors.New("runner is required")
	case deps.Store == nil:
		return nil, errors.New("artifact store is required")
	case deps.Clock == nil:
		return nil, errors.New("clock is required")
	case deps.IDs == nil:
		return nil, errors.New("id generator is required")
	}
	if cfg.MaxWordCount <= 0 {
		cfg.MaxWordCount = DefaultMaxWordCount
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	emitter := deps.Events
	if emitter == nil {
		emitter = (*events.Hub)(nil)
	}
	hasher := deps.Hasher
	if hasher == nil {
		hasher = sha256.New()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		registry: deps.Registry,
		runner:   deps.Runner,
		store:    deps.Store,
		events:   emitter,
		clock:    deps.Clock,
		ids:      deps.IDs,
		hasher:   hasher,
		logger:   logger.Named("jobs"),
		cfg:      cfg,
		rootCtx:  ctx,
		cancel:   cancel,
	}, nil
}

// Submit admits a new job and starts its run in the background. It returns
// as soon as the registry entry exists; run failures never surface here.
func (m *Manager) Submit(_ context.Context, id string, count int) error {
	if err := dictionary.ValidateID(id); err != nil {
		return err
	}
	if count < 0 || count > m.cfg.MaxWordCount {
		return fmt.Errorf("%w: word_count must be between 0 and %d", dictionary.ErrInvalidArgument, m.cfg.MaxWordCount)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrShuttingDown
	}
	runID, err := m.ids.NewID()
	if err != nil {
		return fmt.Errorf("generate run id: %w", err)
	}
	submitted := m.clock.Now()
	claim, won := m.registry.CreateIfAbsent(id, dictionary.InProgress(runID, count, submitted))
	if !won {
		return &dictionary.EntryExistsError{ID: id, Status: claim.Current().Status}
	}
	metrics.ObserveJob("submitted")
	m.events.Emit(events.Event{JobID: id, RunID: runID, Stage: events.StageSubmitted, TS: submitted, Count: count})
	m.logger.Info("job submitted",
		zap.String("job_id", id),
		zap.String("run_id", runID),
		zap.Int("word_count", count),
	)
	m.wg.Go(func() { m.run(claim, count) })
	return nil
}

func (m *Manager) run(claim *registry.Claim, count int) {
	id := claim.ID()
	start := claim.Current()
	records, err := m.runner.Run(m.rootCtx, id, count)
	if err != nil {
		m.fail(claim, err)
		return
	}
	finished, ok := m.persist(claim, start, records)
	if !ok {
		return
	}
	metrics.ObserveJob(string(dictionary.StatusCompleted))
	m.events.Emit(events.Event{
		JobID: id,
		RunID: start.RunID,
		Stage: events.StageCompleted,
		TS:    finished,
		Count: len(records),
		Dur:   finished.Sub(start.SubmittedAt),
	})
	m.logger.Info("job completed",
		zap.String("job_id", id),
		zap.String("run_id", start.RunID),
		zap.Int("records", len(records)),
	)
}

// persist writes the run's artifact and publishes the Completed state while
// holding id's lock, so Delete observes either no artifact or a Completed
// entry that owns one.
func (m *Manager) persist(claim *registry.Claim, start dictionary.JobState, records []dictionary.Record) (time.Time, bool) {
	id := claim.ID()
	unlock := m.locks.lock(id)
	defer unlock()

	if !m.registry.Owns(claim) {
		m.logger.Info("job entry removed before persistence; discarding records",
			zap.String("job_id", id), zap.String("run_id", start.RunID))
		return time.Time{}, false
	}
	if err := m.store.Write(m.rootCtx, id, records); err != nil {
		if !errors.Is(err, dictionary.ErrIOFailure) {
			err = fmt.Errorf("%w: %w", dictionary.ErrIOFailure, err)
		}
		m.fail(claim, err)
		return time.Time{}, false
	}
	finished := m.clock.Now()
	stats := dictionary.ComputeHistogram(records)
	if !m.registry.SetTerminal(claim, dictionary.Completed(start, stats, finished)) {
		m.discardOrphan(id, start.RunID)
		return time.Time{}, false
	}
	return finished, true
}

// discardOrphan removes an artifact written by a run that lost its entry. The
// caller holds id's lock. Only a live Completed entry owns an artifact.
func (m *Manager) discardOrphan(id, runID string) {
	if state, live := m.registry.Get(id); live && state.Status == dictionary.StatusCompleted {
		return
	}
	if err := m.store.Delete(m.rootCtx, id); err != nil && !errors.Is(err, dictionary.ErrNotFound) {
		m.logger.Warn("discard orphaned artifact failed",
			zap.String("job_id", id), zap.String("run_id", runID), zap.Error(err))
	}
}

func (m *Manager) fail(claim *registry.Claim, cause error) {
	prev := claim.Current()
	finished := m.clock.Now()
	reason := cause.Error()
	if !m.registry.SetTerminal(claim, dictionary.Failed(prev, reason, finished)) {
		m.logger.Debug("late failure for removed job ignored",
			zap.String("job_id", claim.ID()), zap.String("run_id", prev.RunID), zap.Error(cause))
		return
	}
	metrics.ObserveJob(string(dictionary.StatusFailed))
	m.events.Emit(events.Event{
		JobID:  claim.ID(),
		RunID:  prev.RunID,
		Stage:  events.StageFailed,
		TS:     finished,
		Dur:    finished.Sub(prev.SubmittedAt),
		Reason: reason,
	})
	m.logger.Warn("job failed",
		zap.String("job_id", claim.ID()),
		zap.String("run_id", prev.RunID),
		zap.Error(cause),
	)
}

// Get returns the full registry state for id.
func (m *Manager) Get(id string) (dictionary.JobState, error) {
	state, ok := m.registry.Get(id)
	if !ok {
		return dictionary.JobState{}, dictionary.NotFoundf("%s", id)
	}
	return state, nil
}

// Status returns the current status of id.
func (m *Manager) Status(id string) (dictionary.Status, error) {
	status, ok := m.registry.Status(id)
	if !ok {
		return "", dictionary.NotFoundf("%s", id)
	}
	return status, nil
}

// Result returns the histogram of id, which is nil unless the job completed.
func (m *Manager) Result(id string) (dictionary.Histogram, error) {
	state, err := m.Get(id)
	if err != nil {
		return nil, err
	}
	if state.Status != dictionary.StatusCompleted {
		return nil, nil
	}
	return state.Stats, nil
}

// Download reads the persisted artifact of a completed job.
func (m *Manager) Download(ctx context.Context, id string) (Download, error) {
	status, ok := m.registry.Status(id)
	if !ok || status != dictionary.StatusCompleted {
		return Download{}, dictionary.NotFoundf("%s", id)
	}
	body, err := m.store.Read(ctx, id)
	if err != nil {
		return Download{}, fmt.Errorf("read artifact %s: %w", id, err)
	}
	digest, err := m.hasher.Hash(body)
	if err != nil {
		return Download{}, fmt.Errorf("hash artifact %s: %w", id, err)
	}
	return Download{Body: body, ETag: `"` + digest + `"`}, nil
}

// List returns every registry entry ordered by name.
func (m *Manager) List() []Summary {
	out := make([]Summary, 0, m.registry.Len())
	m.registry.Range(func(id string, state dictionary.JobState) bool {
		out = append(out, Summary{Name: id, Status: state.Status})
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Delete removes id. A completed job's artifact is deleted too; an
// in-progress run keeps going and its terminal write becomes a no-op. Delete
// waits for a run of id that is persisting its artifact.
func (m *Manager) Delete(ctx context.Context, id string) error {
	unlock := m.locks.lock(id)
	defer unlock()

	prev, ok := m.registry.Remove(id)
	if !ok {
		return dictionary.NotFoundf("%s", id)
	}
	m.events.Emit(events.Event{JobID: id, RunID: prev.RunID, Stage: events.StageDeleted, TS: m.clock.Now()})
	m.logger.Info("job deleted", zap.String("job_id", id), zap.String("status", string(prev.Status)))
	if prev.Status != dictionary.StatusCompleted {
		return nil
	}
	if err := m.store.Delete(ctx, id); err != nil {
		if !errors.Is(err, dictionary.ErrIOFailure) {
			err = fmt.Errorf("%w: %w", dictionary.ErrIOFailure, err)
		}
		return fmt.Errorf("delete artifact %s: %w", id, err)
	}
	return nil
}

// Reconstruct registers every persisted artifact as a completed job. It is
// meant to run once before the API starts serving and returns the number of
// entries restored.
func (m *Manager) Reconstruct(ctx context.Context) (int, error) {
	artifacts, err := m.store.ReadAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("reconstruct registry: %w", err)
	}
	restored := 0
	for _, artifact := range artifacts {
		now := m.clock.Now()
		stats := dictionary.ComputeHistogram(artifact.Records)
		state := dictionary.Completed(dictionary.InProgress("", len(artifact.Records), now), stats, now)
		if _, won := m.registry.CreateIfAbsent(artifact.ID, state); !won {
			m.logger.Warn("artifact skipped; entry already exists", zap.String("job_id", artifact.ID))
			continue
		}
		restored++
		m.events.Emit(events.Event{JobID: artifact.ID, Stage: events.StageRestored, TS: now, Count: len(artifact.Records)})
	}
	m.logger.Info("registry reconstructed", zap.Int("restored", restored))
	return restored, nil
}

// Shutdown stops admission and waits for outstanding runs. When ctx ends
// first the runs are cancelled and awaited before returning ctx's error.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		m.cancel()
		return nil
	case <-ctx.Done():
		m.logger.Warn("shutdown deadline reached; cancelling outstanding runs")
		m.cancel()
		<-done
		return fmt.Errorf("await runs: %w", ctx.Err())
	}
}
