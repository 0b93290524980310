package sinks

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/dictgen/internal/events"
)

// PrometheusSink derives job runtime collectors from lifecycle events.
type PrometheusSink struct {
	jobsRunning  prometheus.Gauge
	jobRuntime   *prometheus.HistogramVec
	wordsTotal   prometheus.Counter
	restoredJobs prometheus.Counter

	tracker *runTracker
}

// NewPrometheusSink registers the collectors against reg, or the default
// registerer when reg is nil.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		jobsRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dictgen_jobs_running",
			Help: "Current number of dictionary runs in progress.",
		}),
		jobRuntime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dictgen_job_runtime_seconds",
			Help:    "Wall time per finished run partitioned by result.",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		}, []string{"result"}),
		wordsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dictgen_words_generated_total",
			Help: "Total records persisted by completed runs.",
		}),
		restoredJobs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dictgen_jobs_restored_total",
			Help: "Total dictionaries restored from storage at startup.",
		}),
		tracker: &runTracker{running: make(map[string]struct{})},
	}
	for _, collector := range []prometheus.Collector{s.jobsRunning, s.jobRuntime, s.wordsTotal, s.restoredJobs} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register event collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the collectors from the batch.
func (s *PrometheusSink) Consume(_ context.Context, batch []events.Event) error {
	for _, evt := range batch {
		switch evt.Stage {
		case events.StageSubmitted:
			if s.tracker.start(evt.RunID) {
				s.jobsRunning.Inc()
			}
		case events.StageCompleted:
			s.finish(evt, "success")
			s.wordsTotal.Add(float64(evt.Count))
		case events.StageFailed:
			s.finish(evt, "error")
		case events.StageRestored:
			s.restoredJobs.Inc()
		}
	}
	return nil
}

func (s *PrometheusSink) finish(evt events.Event, result string) {
	if s.tracker.complete(evt.RunID) {
		s.jobsRunning.Dec()
	}
	if evt.Dur > 0 {
		s.jobRuntime.WithLabelValues(result).Observe(evt.Dur.Seconds())
	}
}

// Close implements events.Sink; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}

type runTracker struct {
	mu      sync.Mutex
	running map[string]struct{}
}

func (t *runTracker) start(runID string) bool {
	if runID == "" {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[runID]; ok {
		return false
	}
	t.running[runID] = struct{}{}
	return true
}

func (t *runTracker) complete(runID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[runID]; !ok {
		return false
	}
	delete(t.running, runID)
	return true
}
