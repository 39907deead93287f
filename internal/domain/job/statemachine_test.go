package job

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantlab/quantjobs/internal/domain/model"
)

func queuedRecord() *model.JobRecord {
	return &model.JobRecord{
		ID:     [16]byte{1},
		Status: model.JobStatusQueued,
	}
}

func runningRecord() *model.JobRecord {
	started := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rec := queuedRecord()
	rec.Status = model.JobStatusRunning
	rec.StartedAt = &started
	return rec
}

func TestEvaluate_QueuedToRunning_SetsStartedAt(t *testing.T) {
	dec, err := Evaluate(queuedRecord(), Change{To: model.JobStatusRunning})
	require.NoError(t, err)
	assert.False(t, dec.Noop)
	assert.True(t, dec.SetStartedAt)
}

func TestEvaluate_RunningToRunning_IsNoop(t *testing.T) {
	dec, err := Evaluate(runningRecord(), Change{To: model.JobStatusRunning})
	require.NoError(t, err)
	assert.True(t, dec.Noop)
}

func TestEvaluate_QueuedToCancelled(t *testing.T) {
	dec, err := Evaluate(queuedRecord(), Change{To: model.JobStatusCancelled})
	require.NoError(t, err)
	assert.False(t, dec.Noop)
}

func TestEvaluate_RunningToCancelled_Rejected(t *testing.T) {
	_, err := Evaluate(runningRecord(), Change{To: model.JobStatusCancelled})
	var invalid *InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, model.JobStatusRunning, invalid.From)
	assert.Equal(t, model.JobStatusCancelled, invalid.To)
}

func TestEvaluate_RunningToCompleted_RequiresResults(t *testing.T) {
	_, err := Evaluate(runningRecord(), Change{To: model.JobStatusCompleted})
	var invalid *InvalidTransitionError
	require.ErrorAs(t, err, &invalid)

	refs := &model.ResultRefs{Metrics: map[string]float64{"mean": 1}}
	dec, err := Evaluate(runningRecord(), Change{To: model.JobStatusCompleted, ResultRefs: refs})
	require.NoError(t, err)
	assert.True(t, dec.SetFinishedAt)
}

func TestEvaluate_RunningToFailed_RequiresError(t *testing.T) {
	_, err := Evaluate(runningRecord(), Change{To: model.JobStatusFailed})
	var invalid *InvalidTransitionError
	require.ErrorAs(t, err, &invalid)

	dec, err := Evaluate(runningRecord(), Change{To: model.JobStatusFailed, Error: "vendor down"})
	require.NoError(t, err)
	assert.True(t, dec.SetFinishedAt)
}

func TestEvaluate_CompletedRewrite_EquivalentPayloadIsNoop(t *testing.T) {
	refs := &model.ResultRefs{
		Metrics:   map[string]float64{"mean": 1},
		Artifacts: map[string]string{"metrics.json": "jobs/x/metrics.json"},
		URLs:      []string{"https://signed.example/1"},
	}
	rec := runningRecord()
	rec.Status = model.JobStatusCompleted
	rec.ResultRefs = refs

	// Same metrics and artifacts, fresh signed URLs.
	redelivered := &model.ResultRefs{
		Metrics:   map[string]float64{"mean": 1},
		Artifacts: map[string]string{"metrics.json": "jobs/x/metrics.json"},
		URLs:      []string{"https://signed.example/2"},
	}
	dec, err := Evaluate(rec, Change{To: model.JobStatusCompleted, ResultRefs: redelivered})
	require.NoError(t, err)
	assert.True(t, dec.Noop)
}

func TestEvaluate_CompletedRewrite_DifferentPayloadRejected(t *testing.T) {
	rec := runningRecord()
	rec.Status = model.JobStatusCompleted
	rec.ResultRefs = &model.ResultRefs{Metrics: map[string]float64{"mean": 1}}

	other := &model.ResultRefs{Metrics: map[string]float64{"mean": 2}}
	_, err := Evaluate(rec, Change{To: model.JobStatusCompleted, ResultRefs: other})
	var invalid *InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
}

func TestEvaluate_FailedRewrite_SameMessageIsNoop(t *testing.T) {
	msg := "vendor down"
	rec := runningRecord()
	rec.Status = model.JobStatusFailed
	rec.Error = &msg

	dec, err := Evaluate(rec, Change{To: model.JobStatusFailed, Error: "vendor down"})
	require.NoError(t, err)
	assert.True(t, dec.Noop)

	_, err = Evaluate(rec, Change{To: model.JobStatusFailed, Error: "other"})
	var invalid *InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
}

func TestEvaluate_TerminalStatesRejectRunning(t *testing.T) {
	for _, status := range []model.JobStatus{
		model.JobStatusCompleted, model.JobStatusFailed, model.JobStatusCancelled,
	} {
		rec := queuedRecord()
		rec.Status = status
		_, err := Evaluate(rec, Change{To: model.JobStatusRunning})
		var invalid *InvalidTransitionError
		require.ErrorAs(t, err, &invalid, "status %s", status)
	}
}

func TestEvaluate_NothingTransitionsBackToQueued(t *testing.T) {
	_, err := Evaluate(runningRecord(), Change{To: model.JobStatusQueued})
	var invalid *InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
}

func TestEvaluate_InvalidTargetStatus(t *testing.T) {
	_, err := Evaluate(queuedRecord(), Change{To: model.JobStatus("paused")})
	var invalid *InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
}
