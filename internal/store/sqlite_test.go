package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/searchlens/visibility-cli/internal/model"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func sampleSnapshot() (*model.Snapshot, []model.Citation, []model.OrganicPosition, *model.ExecutionLog) {
	now := time.Now().UTC().Truncate(time.Second)
	snap := &model.Snapshot{
		Query:                 "best widgets",
		Timestamp:             now,
		Country:               "us",
		Language:              "en",
		Domain:                "google.com",
		IntentType:            model.IntentTransactional,
		IntentConfidence:      0.9,
		HasKnowledgeGraph:     true,
		HasAIOverview:         true,
		HasRelatedQuestions:   true,
		BrandMentioned:        true,
		OverviewText:          "Acme makes widgets.",
		TotalCitations:        2,
		BrandCitations:        1,
		TotalOrganicResults:   2,
		BrandOrganicPositions: 1,
		VisibilityScore:       75,
		IntensityScore:        75,
		ShareOfVoicePct:       50,
		ProcessingTimeMS:      1200,
		CreatedAt:             now,
	}
	citations := []model.Citation{
		{
			Domain: "review.io", URL: "https://review.io/acme", Title: "Acme review",
			SourceType: model.SourceNeutral, Authority: 50,
			Sentiment: model.SentimentPositive, Reusable: model.ReusabilityHigh, Position: 0,
		},
		{
			Domain: "acme.com", URL: "https://acme.com/docs", Title: "Acme docs",
			SourceType: model.SourceOwned, IsBrand: true, Authority: 50,
			Sentiment: model.SentimentNeutral, Reusable: model.ReusabilityMedium, Position: 1,
		},
	}
	positions := []model.OrganicPosition{
		{Rank: 1, Domain: "acme.com", URL: "https://acme.com/home", IsBrand: true},
		{Rank: 2, Domain: "other.org", URL: "https://other.org/page"},
	}
	log := &model.ExecutionLog{
		Query:          "best widgets",
		Timestamp:      now,
		SearchStatus:   model.StageSuccess,
		TextGenStatus:  model.StageSuccess,
		DatabaseStatus: model.StageSuccess,
		SearchTimeMS:   300,
		TextGenTimeMS:  800,
		DatabaseTimeMS: 20,
		TotalTimeMS:    1200,
		Level:          model.SeverityInfo,
	}
	return snap, citations, positions, log
}

func TestSQLiteStore_SaveAndGetSnapshot(t *testing.T) {
	t.Parallel()
	s := newTestSQLite(t)
	ctx := context.Background()

	snap, citations, positions, log := sampleSnapshot()
	id, err := s.SaveSnapshot(ctx, snap, citations, positions, log)
	require.NoError(t, err)
	assert.Positive(t, id)

	record, err := s.GetSnapshot(ctx, id)
	require.NoError(t, err)

	got := record.Snapshot
	assert.Equal(t, id, got.ID)
	assert.Equal(t, snap.Query, got.Query)
	assert.Equal(t, snap.IntentType, got.IntentType)
	assert.InDelta(t, snap.IntentConfidence, got.IntentConfidence, 1e-9)
	assert.True(t, got.HasKnowledgeGraph)
	assert.True(t, got.HasAIOverview)
	assert.False(t, got.HasAnswerBox)
	assert.Equal(t, snap.OverviewText, got.OverviewText)
	assert.InDelta(t, snap.VisibilityScore, got.VisibilityScore, 1e-9)
	assert.InDelta(t, snap.ShareOfVoicePct, got.ShareOfVoicePct, 1e-9)
	assert.True(t, snap.Timestamp.Equal(got.Timestamp.UTC()))

	require.Len(t, record.Citations, 2)
	assert.Equal(t, "review.io", record.Citations[0].Domain)
	assert.Equal(t, model.SentimentPositive, record.Citations[0].Sentiment)
	assert.Equal(t, id, record.Citations[0].SnapshotID)
	assert.True(t, record.Citations[1].IsBrand)
	assert.Equal(t, model.SourceOwned, record.Citations[1].SourceType)

	require.Len(t, record.Positions, 2)
	assert.Equal(t, 1, record.Positions[0].Rank)
	assert.True(t, record.Positions[0].IsBrand)
	assert.Equal(t, id, record.Positions[0].SnapshotID)

	require.NotNil(t, record.Log)
	assert.Equal(t, model.StageSuccess, record.Log.SearchStatus)
	assert.Equal(t, model.SeverityInfo, record.Log.Level)
	assert.Equal(t, id, record.Log.SnapshotID)
	assert.Empty(t, record.Log.ErrorStage)
}

func TestSQLiteStore_GetSnapshot_NotFound(t *testing.T) {
	t.Parallel()
	s := newTestSQLite(t)

	_, err := s.GetSnapshot(context.Background(), 999)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestSQLiteStore_SaveSnapshot_Atomic(t *testing.T) {
	t.Parallel()
	s := newTestSQLite(t)
	ctx := context.Background()

	snap, citations, positions, log := sampleSnapshot()
	// Duplicate citation index violates the unique constraint mid-save.
	citations[1].Position = citations[0].Position

	_, err := s.SaveSnapshot(ctx, snap, citations, positions, log)
	require.Error(t, err)

	snaps, err := s.ListSnapshots(ctx, SnapshotFilter{})
	require.NoError(t, err)
	assert.Empty(t, snaps)
}

func TestSQLiteStore_ListSnapshots(t *testing.T) {
	t.Parallel()
	s := newTestSQLite(t)
	ctx := context.Background()

	for i, q := range []string{"best widgets", "best widgets", "cheap gadgets"} {
		snap, citations, positions, log := sampleSnapshot()
		snap.Query = q
		snap.CreatedAt = snap.CreatedAt.Add(time.Duration(i) * time.Second)
		_, err := s.SaveSnapshot(ctx, snap, citations, positions, log)
		require.NoError(t, err)
	}

	all, err := s.ListSnapshots(ctx, SnapshotFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	filtered, err := s.ListSnapshots(ctx, SnapshotFilter{Query: "best widgets"})
	require.NoError(t, err)
	assert.Len(t, filtered, 2)

	limited, err := s.ListSnapshots(ctx, SnapshotFilter{Limit: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "cheap gadgets", limited[0].Query)

	offset, err := s.ListSnapshots(ctx, SnapshotFilter{Limit: 10, Offset: 2})
	require.NoError(t, err)
	assert.Len(t, offset, 1)
}

func TestSQLiteStore_ProviderAnalytics(t *testing.T) {
	t.Parallel()
	s := newTestSQLite(t)
	ctx := context.Background()

	calls := []model.ProviderCall{
		{
			ID: uuid.NewString(), Timestamp: time.Now().UTC(), Provider: "anthropic",
			Model: "claude-haiku-4-5-20251001", Prompt: "p1", Response: "r1", LatencyMS: 100,
			Usage:   &model.TokenUsage{InputTokens: 100, OutputTokens: 50, TotalTokens: 150},
			CostUSD: 0.01, Success: true,
		},
		{
			ID: uuid.NewString(), Timestamp: time.Now().UTC(), Provider: "anthropic",
			Model: "claude-haiku-4-5-20251001", Prompt: "p2", LatencyMS: 300,
			Usage:   &model.TokenUsage{InputTokens: 40, OutputTokens: 10, TotalTokens: 50, Estimated: true},
			CostUSD: 0.002, Success: true,
		},
		{
			ID: uuid.NewString(), Timestamp: time.Now().UTC(), Provider: "serpapi",
			Prompt: "q", LatencyMS: 200, CostUSD: 0.015, Success: false, Error: "503",
		},
	}
	for _, call := range calls {
		require.NoError(t, s.LogProviderCall(ctx, call))
	}

	stats, err := s.ProviderStats(ctx, "anthropic", 7)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalCalls)
	assert.Equal(t, 2, stats.SuccessfulCalls)
	assert.Equal(t, 0, stats.FailedCalls)
	assert.InDelta(t, 100.0, stats.SuccessRatePct, 1e-9)
	assert.Equal(t, int64(200), stats.AvgLatencyMS)
	assert.Equal(t, 7, stats.PeriodDays)

	analysis, err := s.CostAnalysis(ctx, 30)
	require.NoError(t, err)
	assert.Equal(t, 3, analysis.TotalCalls)
	assert.Equal(t, 200, analysis.TotalTokens)
	assert.InDelta(t, 0.027, analysis.TotalCostUSD, 1e-9)
	assert.Equal(t, 2, analysis.ActualTokenCalls)
	assert.Equal(t, 1, analysis.EstTokenCalls)
	assert.InDelta(t, 66.67, analysis.AccuracyPct, 1e-9)

	require.Contains(t, analysis.Breakdown, "anthropic")
	assert.Equal(t, 2, analysis.Breakdown["anthropic"].Calls)
	assert.Equal(t, 200, analysis.Breakdown["anthropic"].Tokens)
	require.Contains(t, analysis.Breakdown, "serpapi")
	assert.InDelta(t, 0.015, analysis.Breakdown["serpapi"].CostUSD, 1e-9)
}

func TestSQLiteStore_ProviderStats_Empty(t *testing.T) {
	t.Parallel()
	s := newTestSQLite(t)

	stats, err := s.ProviderStats(context.Background(), "anthropic", 0)
	require.NoError(t, err)
	assert.Zero(t, stats.TotalCalls)
	assert.Zero(t, stats.SuccessRatePct)
	assert.Equal(t, 30, stats.PeriodDays)
}
