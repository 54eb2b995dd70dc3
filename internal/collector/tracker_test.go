package collector

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"

	"github.com/searchlens/visibility-cli/internal/model"
)

func TestTracker_AllStagesSucceed(t *testing.T) {
	t.Parallel()

	tr := NewTracker("test query")
	assert.NoError(t, tr.Observe(StageSearch, func() error { return nil }))
	assert.NoError(t, tr.Observe(StageTextGen, func() error { return nil }))
	assert.NoError(t, tr.Observe(StageDatabase, func() error { return nil }))

	log := tr.Log()
	assert.Equal(t, model.StageSuccess, log.SearchStatus)
	assert.Equal(t, model.StageSuccess, log.TextGenStatus)
	assert.Equal(t, model.StageSuccess, log.DatabaseStatus)
	assert.Equal(t, model.SeverityInfo, log.Level)
	assert.Equal(t, "test query", log.Query)
	assert.Empty(t, log.ErrorStage)
}

func TestTracker_SearchFailureIsCritical(t *testing.T) {
	t.Parallel()

	tr := NewTracker("q")
	err := tr.Observe(StageSearch, func() error { return eris.New("connection refused") })
	assert.Error(t, err)

	log := tr.Log()
	assert.Equal(t, model.StageFailed, log.SearchStatus)
	assert.Equal(t, model.SeverityCritical, log.Level)
	assert.Equal(t, "search", log.ErrorStage)
	assert.Contains(t, log.ErrorMessage, "connection refused")
	assert.NotEmpty(t, log.ErrorTrace)
}

func TestTracker_OtherFailureIsError(t *testing.T) {
	t.Parallel()

	tr := NewTracker("q")
	_ = tr.Observe(StageSearch, func() error { return nil })
	_ = tr.Observe(StageTextGen, func() error { return eris.New("provider down") })

	log := tr.Log()
	assert.Equal(t, model.SeverityError, log.Level)
	assert.Equal(t, model.StageFailed, log.TextGenStatus)
	assert.Equal(t, "textgen", log.ErrorStage)
}

func TestTracker_TimeoutIsWarning(t *testing.T) {
	t.Parallel()

	tr := NewTracker("q")
	_ = tr.Observe(StageSearch, func() error { return nil })
	_ = tr.Observe(StageTextGen, func() error { return context.DeadlineExceeded })

	log := tr.Log()
	assert.Equal(t, model.StageTimeout, log.TextGenStatus)
	assert.Equal(t, model.SeverityWarning, log.Level)
}

func TestTracker_SearchTimeoutStillCritical(t *testing.T) {
	t.Parallel()

	tr := NewTracker("q")
	_ = tr.Observe(StageSearch, func() error { return context.DeadlineExceeded })

	log := tr.Log()
	assert.Equal(t, model.StageTimeout, log.SearchStatus)
	assert.Equal(t, model.SeverityCritical, log.Level)
}

func TestTracker_SkipAndNotRun(t *testing.T) {
	t.Parallel()

	tr := NewTracker("q")
	tr.Skip(StageSearch)

	log := tr.Log()
	assert.Equal(t, model.StageSkipped, log.SearchStatus)
	assert.Equal(t, model.StageNotRun, log.TextGenStatus)
	assert.Equal(t, model.SeverityInfo, log.Level)
}

func TestTracker_CapturesDurations(t *testing.T) {
	t.Parallel()

	tr := NewTracker("q")
	_ = tr.Observe(StageSearch, func() error {
		time.Sleep(15 * time.Millisecond)
		return nil
	})

	log := tr.Log()
	assert.GreaterOrEqual(t, log.SearchTimeMS, int64(10))
	assert.GreaterOrEqual(t, log.TotalTimeMS, log.SearchTimeMS)
}

func TestTracker_FirstErrorWins(t *testing.T) {
	t.Parallel()

	tr := NewTracker("q")
	_ = tr.Observe(StageTextGen, func() error { return eris.New("first") })
	_ = tr.Observe(StageDatabase, func() error { return eris.New("second") })

	log := tr.Log()
	assert.Equal(t, "textgen", log.ErrorStage)
	assert.Contains(t, log.ErrorMessage, "first")
}
