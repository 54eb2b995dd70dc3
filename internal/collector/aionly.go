package collector

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/searchlens/visibility-cli/internal/gateway"
	"github.com/searchlens/visibility-cli/internal/metrics"
	"github.com/searchlens/visibility-cli/internal/model"
	"github.com/searchlens/visibility-cli/internal/parser"
)

// aiOnlyCategory tags snapshots produced without a search fetch.
const aiOnlyCategory = "ai-only"

// aiOnlyMaxTokens sizes the comprehensive-analysis completion.
const aiOnlyMaxTokens = 2000

// TextOnlyCollector runs the provider-text-only path: no search fetch, one
// comprehensive-analysis generation scored with the text-path formula.
type TextOnlyCollector struct {
	textgen gateway.TextGenerator
	store   SnapshotSaver
}

// NewTextOnlyCollector wires a text-only collector.
func NewTextOnlyCollector(textgen gateway.TextGenerator, store SnapshotSaver) *TextOnlyCollector {
	return &TextOnlyCollector{textgen: textgen, store: store}
}

// Collect runs one text-only collection. Malformed provider output parses
// to the fallback analysis and degrades the metrics rather than failing
// the run; only generation and persistence failures are run-level errors.
func (c *TextOnlyCollector) Collect(ctx context.Context, req model.TrackingRequest) (*model.CollectionResult, error) {
	start := time.Now()
	tracker := NewTracker(req.Query)
	tracker.Skip(StageSearch)

	zap.L().Info("text-only collection started", zap.String("query", req.Query))

	var analysis *parser.Analysis
	err := tracker.Observe(StageTextGen, func() error {
		result, genErr := c.textgen.Generate(ctx, comprehensivePrompt(req.Query), gateway.GenerateOptions{
			MaxTokens: aiOnlyMaxTokens,
		})
		if genErr != nil {
			return genErr
		}
		analysis = parser.Parse(result.Text)
		return nil
	})
	if err != nil {
		zap.L().Error("text-only generation failed", zap.String("query", req.Query), zap.Error(err))
		return failureResult(start, "text generation failed: "+err.Error()), err
	}

	scored := metrics.ComputeText(analysis, req.BrandDomains)
	snap, citations := c.assemble(req, analysis, scored)

	log := tracker.Log()
	var snapshotID int64
	err = tracker.Observe(StageDatabase, func() error {
		var saveErr error
		log.DatabaseStatus = model.StageSuccess
		log.TotalTimeMS = time.Since(start).Milliseconds()
		snap.ProcessingTimeMS = log.TotalTimeMS
		snapshotID, saveErr = c.store.SaveSnapshot(ctx, snap, citations, nil, &log)
		return saveErr
	})
	if err != nil {
		zap.L().Error("snapshot save failed", zap.String("query", req.Query), zap.Error(err))
		return failureResult(start, "persistence failed: "+err.Error()), err
	}

	m := scored.Metrics
	zap.L().Info("text-only collection completed",
		zap.String("query", req.Query),
		zap.Int64("snapshot_id", snapshotID),
		zap.Float64("visibility", m.VisibilityScore))

	return &model.CollectionResult{
		Status:          "success",
		SnapshotID:      snapshotID,
		Metrics:         &m,
		ExecutionTimeMS: time.Since(start).Milliseconds(),
	}, nil
}

func (c *TextOnlyCollector) assemble(req model.TrackingRequest, analysis *parser.Analysis,
	scored metrics.TextResult) (*model.Snapshot, []model.Citation) {

	now := time.Now().UTC()

	citations := make([]model.Citation, 0, len(analysis.Citations))
	for idx, src := range analysis.Citations {
		if src.URL == "" {
			continue
		}
		domain := src.Domain()
		isBrand := metrics.MatchesBrand(domain, req.BrandDomains)

		authority := src.Authority
		if authority <= 0 {
			authority = AuthorityScore(domain)
		}

		citations = append(citations, model.Citation{
			Domain:     domain,
			URL:        src.URL,
			Title:      src.Title,
			SourceType: CategorizeSource(domain, isBrand),
			IsBrand:    isBrand,
			Authority:  authority,
			Sentiment:  src.Sentiment,
			Reusable:   src.Reusability,
			Position:   idx,
		})
	}

	m := scored.Metrics
	snap := &model.Snapshot{
		Query:     req.Query,
		Timestamp: now,
		Country:   req.Country,
		Language:  req.Language,
		Domain:    req.SearchDomain,

		IntentType:       analysis.Intent.Type,
		IntentConfidence: analysis.Intent.Confidence,

		HasAIOverview: analysis.OverviewText != "",

		BrandMentioned: m.BrandMentioned,
		OverviewText:   truncate(analysis.OverviewText, model.MaxOverviewChars),
		TotalCitations: m.TotalCitations,
		BrandCitations: m.BrandCitations,

		VisibilityScore: m.VisibilityScore,
		IntensityScore:  m.IntensityScore,
		ShareOfVoicePct: m.ShareOfVoicePct,

		Category:  aiOnlyCategory,
		CreatedAt: now,
	}

	return snap, citations
}
