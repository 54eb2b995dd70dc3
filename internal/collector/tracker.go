package collector

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"

	"github.com/searchlens/visibility-cli/internal/model"
)

// Stage names one tracked phase of a collection run.
type Stage string

const (
	StageSearch   Stage = "search"
	StageTextGen  Stage = "textgen"
	StageDatabase Stage = "database"
)

type stageRecord struct {
	status   model.StageStatus
	duration time.Duration
}

// Tracker accumulates per-stage status and timing for one collection run.
// It is constructed per run and owned by it; concurrent runs never share a
// tracker. Not safe for concurrent writers: all Observe calls for a run
// happen from the orchestrating goroutine.
type Tracker struct {
	query string
	start time.Time

	stages map[Stage]stageRecord

	errStage   Stage
	errMessage string
	errTrace   string
}

// NewTracker starts tracking a run for the given query. All stages begin
// as not_run.
func NewTracker(query string) *Tracker {
	return &Tracker{
		query: query,
		start: time.Now(),
		stages: map[Stage]stageRecord{
			StageSearch:   {status: model.StageNotRun},
			StageTextGen:  {status: model.StageNotRun},
			StageDatabase: {status: model.StageNotRun},
		},
	}
}

// Observe runs fn as the named stage, capturing status and duration on
// every exit path. The error is returned unchanged so callers keep their
// own failure semantics.
func (t *Tracker) Observe(stage Stage, fn func() error) error {
	start := time.Now()
	err := fn()
	t.record(stage, time.Since(start), err)
	return err
}

// Skip marks a stage as deliberately not executed.
func (t *Tracker) Skip(stage Stage) {
	t.stages[stage] = stageRecord{status: model.StageSkipped}
}

func (t *Tracker) record(stage Stage, d time.Duration, err error) {
	rec := stageRecord{status: model.StageSuccess, duration: d}
	if err != nil {
		rec.status = model.StageFailed
		if errors.Is(err, context.DeadlineExceeded) {
			rec.status = model.StageTimeout
		}
		// First failure wins; later stages cannot mask the root cause.
		if t.errStage == "" {
			t.errStage = stage
			t.errMessage = err.Error()
			t.errTrace = eris.ToString(err, true)
		}
	}
	t.stages[stage] = rec
}

// severity derives the run level: CRITICAL when the mandatory search stage
// failed, ERROR when any other stage failed, WARNING when the worst outcome
// was a timeout, INFO otherwise.
func (t *Tracker) severity() model.Severity {
	search := t.stages[StageSearch].status
	if search == model.StageFailed || search == model.StageTimeout {
		return model.SeverityCritical
	}

	failed := false
	timedOut := false
	for _, rec := range t.stages {
		switch rec.status {
		case model.StageFailed:
			failed = true
		case model.StageTimeout:
			timedOut = true
		}
	}
	switch {
	case failed:
		return model.SeverityError
	case timedOut:
		return model.SeverityWarning
	default:
		return model.SeverityInfo
	}
}

// Log freezes the tracker into an ExecutionLog for persistence.
func (t *Tracker) Log() model.ExecutionLog {
	return model.ExecutionLog{
		Query:     t.query,
		Timestamp: t.start.UTC(),

		SearchStatus:   t.stages[StageSearch].status,
		TextGenStatus:  t.stages[StageTextGen].status,
		DatabaseStatus: t.stages[StageDatabase].status,

		SearchTimeMS:   t.stages[StageSearch].duration.Milliseconds(),
		TextGenTimeMS:  t.stages[StageTextGen].duration.Milliseconds(),
		DatabaseTimeMS: t.stages[StageDatabase].duration.Milliseconds(),
		TotalTimeMS:    time.Since(t.start).Milliseconds(),

		Level:        t.severity(),
		ErrorStage:   string(t.errStage),
		ErrorMessage: t.errMessage,
		ErrorTrace:   t.errTrace,
	}
}
