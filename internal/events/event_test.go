package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEventValidate(t *testing.T) {
	t.Parallel()

	now := time.Now()
	assert.NoError(t, Event{JobID: "a", Stage: StageSubmitted, TS: now}.Validate())
	assert.NoError(t, Event{JobID: "a", Stage: StageFailed, TS: now, Reason: "x"}.Validate())
	assert.Error(t, Event{Stage: StageSubmitted, TS: now}.Validate())
	assert.Error(t, Event{JobID: "a", Stage: StageSubmitted}.Validate())
	assert.Error(t, Event{JobID: "a", Stage: StageFailed, TS: now}.Validate())
	assert.Error(t, Event{JobID: "a", Stage: "NOPE", TS: now}.Validate())
	assert.Error(t, Event{JobID: "a", Stage: StageCompleted, TS: now, Dur: -time.Second}.Validate())
}
