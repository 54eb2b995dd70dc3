package store

import (
	"math"

	"github.com/searchlens/visibility-cli/internal/model"
)

// providerAgg is one provider's aggregate row from the provider_calls
// table. Both backends scan into it and share the summary math below.
type providerAgg struct {
	provider       string
	calls          int
	tokens         int
	costUSD        float64
	actualCalls    int
	estimatedCalls int
}

func buildProviderStats(provider string, days, total, succeeded int, avgLatency float64) *model.ProviderStats {
	if days <= 0 {
		days = 30
	}
	stats := &model.ProviderStats{
		Provider:        provider,
		TotalCalls:      total,
		SuccessfulCalls: succeeded,
		FailedCalls:     total - succeeded,
		AvgLatencyMS:    int64(math.Round(avgLatency)),
		PeriodDays:      days,
	}
	if total > 0 {
		stats.SuccessRatePct = round2(float64(succeeded) / float64(total) * 100)
	}
	return stats
}

func buildCostAnalysis(days int, aggs []providerAgg) *model.CostAnalysis {
	if days <= 0 {
		days = 30
	}
	analysis := &model.CostAnalysis{
		PeriodDays: days,
		Breakdown:  make(map[string]model.ProviderSpend, len(aggs)),
	}
	for _, a := range aggs {
		analysis.TotalCalls += a.calls
		analysis.TotalTokens += a.tokens
		analysis.TotalCostUSD += a.costUSD
		analysis.ActualTokenCalls += a.actualCalls
		analysis.EstTokenCalls += a.estimatedCalls
		analysis.Breakdown[a.provider] = model.ProviderSpend{
			Calls:   a.calls,
			Tokens:  a.tokens,
			CostUSD: round4(a.costUSD),
		}
	}
	analysis.TotalCostUSD = round4(analysis.TotalCostUSD)
	if analysis.TotalCalls > 0 {
		analysis.AvgCostPerCall = round4(analysis.TotalCostUSD / float64(analysis.TotalCalls))
		analysis.AccuracyPct = round2(float64(analysis.ActualTokenCalls) / float64(analysis.TotalCalls) * 100)
	}
	analysis.EstMonthlyUSD = round4(analysis.TotalCostUSD / float64(days) * 30)
	return analysis
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
