// Package collector orchestrates one full collection run: the mandatory
// search fetch, the bounded generative fan-out, metric computation, and
// the single atomic persistence call.
package collector

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/searchlens/visibility-cli/internal/gateway"
	"github.com/searchlens/visibility-cli/internal/metrics"
	"github.com/searchlens/visibility-cli/internal/model"
	"github.com/searchlens/visibility-cli/internal/parser"
	"github.com/searchlens/visibility-cli/internal/serp"
)

// DefaultFanOutWidth bounds the concurrent generative sub-tasks per run.
const DefaultFanOutWidth = 5

// maxSentimentCitations caps the per-citation sentiment sub-tasks.
const maxSentimentCitations = 10

// SnapshotSaver persists one run's record set atomically. Implemented by
// the store.
type SnapshotSaver interface {
	SaveSnapshot(ctx context.Context, snap *model.Snapshot, citations []model.Citation,
		positions []model.OrganicPosition, log *model.ExecutionLog) (int64, error)
}

// Collector runs the search-augmented collection path.
type Collector struct {
	search    gateway.SearchClient
	textgen   gateway.TextGenerator
	store     SnapshotSaver
	extractor *serp.Extractor
	width     int
}

// NewCollector wires a collector. width <= 0 uses DefaultFanOutWidth.
func NewCollector(search gateway.SearchClient, textgen gateway.TextGenerator, store SnapshotSaver, width int) *Collector {
	if width <= 0 {
		width = DefaultFanOutWidth
	}
	return &Collector{
		search:    search,
		textgen:   textgen,
		store:     store,
		extractor: serp.NewExtractor(search),
		width:     width,
	}
}

// citationGrade is one sentiment sub-task's output slot.
type citationGrade struct {
	sentiment   model.Sentiment
	reusability model.Reusability
}

// Collect runs one search-augmented collection. The search fetch is a hard
// prerequisite: its failure aborts the run with nothing persisted. Failed
// generative sub-tasks degrade to fallback values and the run still
// succeeds. The returned error is non-nil only for run-level failures, in
// which case the result still carries status "error" and a message.
func (c *Collector) Collect(ctx context.Context, req model.TrackingRequest) (*model.CollectionResult, error) {
	start := time.Now()
	tracker := NewTracker(req.Query)

	zap.L().Info("collection started",
		zap.String("query", req.Query),
		zap.Strings("brands", req.BrandDomains))

	var payload gateway.Payload
	err := tracker.Observe(StageSearch, func() error {
		var searchErr error
		payload, searchErr = c.search.Search(ctx, req.Query, gateway.Locale{
			Country:      req.Country,
			Language:     req.Language,
			SearchDomain: req.SearchDomain,
		})
		return searchErr
	})
	if err != nil {
		zap.L().Error("search prerequisite failed", zap.String("query", req.Query), zap.Error(err))
		return failureResult(start, "search unavailable: "+err.Error()), err
	}

	features := c.extractor.Extract(ctx, payload, serp.DefaultOrganicLimit)

	intent, grades := c.fanOut(ctx, tracker, req.Query, features)

	snap, citations, positions := c.assemble(req, features, intent, grades)

	log := tracker.Log()
	var snapshotID int64
	err = tracker.Observe(StageDatabase, func() error {
		var saveErr error
		// Log severity and timings are final except for the database stage
		// itself; the store persists the log row alongside the snapshot.
		log.DatabaseStatus = model.StageSuccess
		log.TotalTimeMS = time.Since(start).Milliseconds()
		snap.ProcessingTimeMS = log.TotalTimeMS
		snapshotID, saveErr = c.store.SaveSnapshot(ctx, snap, citations, positions, &log)
		return saveErr
	})
	if err != nil {
		zap.L().Error("snapshot save failed", zap.String("query", req.Query), zap.Error(err))
		return failureResult(start, "persistence failed: "+err.Error()), err
	}

	m := model.Metrics{
		VisibilityScore: snap.VisibilityScore,
		IntensityScore:  snap.IntensityScore,
		ShareOfVoicePct: snap.ShareOfVoicePct,
		BrandMentioned:  snap.BrandMentioned,
		TotalCitations:  snap.TotalCitations,
		BrandCitations:  snap.BrandCitations,
	}

	zap.L().Info("collection completed",
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

// fanOut runs the generative sub-tasks under a bounded group: one intent
// classification plus one sentiment grade per overview citation (capped).
// Each sub-task writes only its own slot; the merge happens after Wait.
// Sub-task errors are absorbed into fallbacks and never fail the group.
func (c *Collector) fanOut(ctx context.Context, tracker *Tracker, query string, features *serp.Features) (model.Intent, []citationGrade) {
	var sources []serp.OverviewSource
	if features.AIOverview != nil {
		sources = features.AIOverview.Sources
		if len(sources) > maxSentimentCitations {
			sources = sources[:maxSentimentCitations]
		}
	}

	intent := model.DefaultIntent()
	grades := make([]citationGrade, len(sources))
	for i := range grades {
		grades[i] = citationGrade{sentiment: model.SentimentNeutral, reusability: model.ReusabilityMedium}
	}

	var degraded atomic.Bool
	_ = tracker.Observe(StageTextGen, func() error {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(c.width)

		g.Go(func() error {
			result, err := c.textgen.Generate(gctx, intentPrompt(query), gateway.GenerateOptions{})
			if err != nil {
				zap.L().Warn("intent sub-task failed, using keyword fallback",
					zap.String("query", query), zap.Error(err))
				intent = KeywordIntent(query)
				degraded.Store(true)
				return nil
			}
			intent = parser.Parse(result.Text).Intent
			return nil
		})

		for i := range sources {
			g.Go(func() error {
				src := sources[i]
				result, err := c.textgen.Generate(gctx,
					sentimentPrompt(query, src.Link, src.Title, src.Snippet),
					gateway.GenerateOptions{})
				if err != nil {
					zap.L().Warn("sentiment sub-task failed, using keyword fallback",
						zap.String("url", src.Link), zap.Error(err))
					grades[i] = citationGrade{
						sentiment:   KeywordSentiment(src.Title, src.Snippet),
						reusability: KeywordReusability(src.Title, src.Snippet),
					}
					degraded.Store(true)
					return nil
				}
				if parsed := parser.Parse(result.Text); len(parsed.Citations) > 0 {
					grades[i] = citationGrade{
						sentiment:   parsed.Citations[0].Sentiment,
						reusability: parsed.Citations[0].Reusability,
					}
				}
				return nil
			})
		}

		_ = g.Wait()
		if degraded.Load() {
			return eris.New("one or more generative sub-tasks degraded to fallback")
		}
		return nil
	})

	return intent, grades
}

// assemble merges search features and sub-task outputs into the record set.
func (c *Collector) assemble(req model.TrackingRequest, features *serp.Features,
	intent model.Intent, grades []citationGrade) (*model.Snapshot, []model.Citation, []model.OrganicPosition) {

	now := time.Now().UTC()
	brands := req.BrandDomains

	var overviewText string
	var overviewSources []serp.OverviewSource
	if features.AIOverview != nil {
		overviewText = features.AIOverview.Text
		overviewSources = features.AIOverview.Sources
	}

	citations := make([]model.Citation, 0, len(overviewSources))
	brandCitations := 0
	for idx, src := range overviewSources {
		if src.Link == "" {
			continue
		}
		domain := domainOf(src.Link)
		isBrand := metrics.MatchesBrand(domain, brands)
		if isBrand {
			brandCitations++
		}

		cit := model.Citation{
			Domain:     domain,
			URL:        src.Link,
			Title:      src.Title,
			SourceType: CategorizeSource(domain, isBrand),
			IsBrand:    isBrand,
			Authority:  AuthorityScore(domain),
			Sentiment:  model.SentimentNeutral,
			Reusable:   model.ReusabilityMedium,
			Position:   idx,
		}
		if idx < len(grades) {
			cit.Sentiment = grades[idx].sentiment
			cit.Reusable = grades[idx].reusability
		}
		citations = append(citations, cit)
	}

	positions := make([]model.OrganicPosition, 0, len(features.Organic))
	brandOrganic := 0
	for idx, result := range features.Organic {
		domain := domainOf(result.Link)
		isBrand := metrics.MatchesBrand(domain, brands)
		if isBrand {
			brandOrganic++
		}
		positions = append(positions, model.OrganicPosition{
			Rank:    idx + 1,
			Domain:  domain,
			URL:     result.Link,
			IsBrand: isBrand,
		})
	}

	m := metrics.ComputeSearch(metrics.SearchInputs{
		HasAIOverview:       features.AIOverview != nil,
		HasAnswerBox:        features.HasAnswerBox,
		HasKnowledgeGraph:   features.KnowledgeGraph != nil,
		HasFeaturedSnippet:  features.HasFeaturedSnippet,
		HasRelatedQuestions: features.HasRelatedQuestions,
		BrandOrganic:        brandOrganic,
		TotalOrganic:        len(positions),
		BrandCitations:      brandCitations,
		TotalCitations:      len(citations),
	})

	brandMentioned := m.BrandMentioned
	if !brandMentioned && overviewText != "" {
		lower := strings.ToLower(overviewText)
		for _, b := range brands {
			if b != "" && strings.Contains(lower, strings.ToLower(b)) {
				brandMentioned = true
				break
			}
		}
	}

	snap := &model.Snapshot{
		Query:     req.Query,
		Timestamp: now,
		Country:   req.Country,
		Language:  req.Language,
		Domain:    req.SearchDomain,

		IntentType:       intent.Type,
		IntentConfidence: intent.Confidence,

		HasKnowledgeGraph:   features.KnowledgeGraph != nil,
		HasAnswerBox:        features.HasAnswerBox,
		HasAIOverview:       features.AIOverview != nil,
		HasFeaturedSnippet:  features.HasFeaturedSnippet,
		HasRelatedQuestions: features.HasRelatedQuestions,

		BrandMentioned: brandMentioned,
		OverviewText:   truncate(overviewText, model.MaxOverviewChars),
		TotalCitations: len(citations),
		BrandCitations: brandCitations,

		TotalOrganicResults:   len(positions),
		BrandOrganicPositions: brandOrganic,

		VisibilityScore: m.VisibilityScore,
		IntensityScore:  m.IntensityScore,
		ShareOfVoicePct: m.ShareOfVoicePct,

		CreatedAt: now,
	}

	return snap, citations, positions
}

func domainOf(rawURL string) string {
	trimmed := strings.TrimPrefix(strings.TrimPrefix(rawURL, "https://"), "http://")
	if idx := strings.IndexAny(trimmed, "/?#"); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	return parser.NormalizeDomain(trimmed)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

func failureResult(start time.Time, message string) *model.CollectionResult {
	return &model.CollectionResult{
		Status:          "error",
		Message:         message,
		ExecutionTimeMS: time.Since(start).Milliseconds(),
	}
}
