// Package dictionary defines the core types shared across subsystems.
package dictionary

import (
	"sort"
	"time"
)

// Status represents the lifecycle state of a dictionary job.
type Status string

// Job status values held in the registry.
const (
	StatusInProgress Status = "InProgress"
	StatusCompleted  Status = "Completed"
	StatusFailed     Status = "Failed"
)

// Label returns the lower-case form used in conflict messages.
func (s Status) Label() string {
	switch s {
	case StatusInProgress:
		return "in-progress"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Record is one fetched dictionary entry. It is never mutated once produced.
type Record struct {
	Word          string `json:"word"`
	Pronunciation string `json:"pronunciation"`
	Definition    string `json:"definition"`
}

// Histogram counts records per lower-case leading letter. Missing letters
// have a count of zero.
type Histogram map[string]int

// Letters returns the populated keys in ascending order.
func (h Histogram) Letters() []string {
	letters := make([]string, 0, len(h))
	for k := range h {
		letters = append(letters, k)
	}
	sort.Strings(letters)
	return letters
}

// Total sums every bucket.
func (h Histogram) Total() int {
	total := 0
	for _, n := range h {
		total += n
	}
	return total
}

// JobState is the registry value for one job identifier. Exactly one of the
// constructors below should be used to build it.
type JobState struct {
	Status      Status     `json:"status"`
	Stats       Histogram  `json:"stats,omitempty"`
	Reason      string     `json:"reason,omitempty"`
	RunID       string     `json:"run_id,omitempty"`
	WordCount   int        `json:"word_count"`
	SubmittedAt time.Time  `json:"submitted_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
}

// InProgress builds the state recorded at submission time.
func InProgress(runID string, wordCount int, submitted time.Time) JobState {
	return JobState{
		Status:      StatusInProgress,
		RunID:       runID,
		WordCount:   wordCount,
		SubmittedAt: submitted,
	}
}

// Completed builds a terminal success state carrying the histogram.
func Completed(prev JobState, stats Histogram, finished time.Time) JobState {
	prev.Status = StatusCompleted
	prev.Stats = stats
	prev.Reason = ""
	prev.FinishedAt = &finished
	return prev
}

// Failed builds a terminal failure state. Stats are always dropped.
func Failed(prev JobState, reason string, finished time.Time) JobState {
	prev.Status = StatusFailed
	prev.Stats = nil
	prev.Reason = reason
	prev.FinishedAt = &finished
	return prev
}

// IsTerminal reports whether the state can no longer transition.
func (s JobState) IsTerminal() bool {
	return s.Status == StatusCompleted || s.Status == StatusFailed
}

// Artifact is a persisted job result as read back from an ArtifactStore.
type Artifact struct {
	ID      string
	Records []Record
}
