package events

import (
	"errors"
	"fmt"
	"time"
)

// Stage denotes the lifecycle milestone represented by an Event.
type Stage string

// Supported lifecycle stages.
const (
	StageSubmitted Stage = "JOB_SUBMITTED"
	StageCompleted Stage = "JOB_COMPLETED"
	StageFailed    Stage = "JOB_FAILED"
	StageDeleted   Stage = "JOB_DELETED"
	StageRestored  Stage = "JOB_RESTORED"
)

// Event captures one job lifecycle transition.
type Event struct {
	// JobID is the caller-chosen dictionary name.
	JobID string `json:"job_id"`
	// RunID identifies a single run of JobID; empty for restored entries.
	RunID string `json:"run_id,omitempty"`
	Stage Stage  `json:"stage"`
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time `json:"ts"`
	// Count is the requested word count on submission and the record count
	// on completion or restore.
	Count int `json:"count,omitempty"`
	// Dur is the run's wall time for terminal stages.
	Dur time.Duration `json:"duration_ns,omitempty"`
	// Reason carries the failure text for JOB_FAILED.
	Reason string `json:"reason,omitempty"`
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.JobID == "" {
		return errors.New("job id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageSubmitted, StageCompleted, StageDeleted, StageRestored:
	case StageFailed:
		if e.Reason == "" {
			return errors.New("failed event requires reason")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}
