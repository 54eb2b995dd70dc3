// Package metrics computes the deterministic brand-visibility scores. Two
// independent formulas exist, one for the pure text-generation path and
// one for the search-feature path. Callers pick by run mode; the formulas
// are never mixed. The point weights are fixed contracts so scores stay
// comparable across runs.
package metrics

import (
	"math"
	"sort"
	"strings"

	"github.com/searchlens/visibility-cli/internal/model"
	"github.com/searchlens/visibility-cli/internal/parser"
)

// MatchesBrand reports whether any brand string is a case-insensitive
// substring of the normalized domain.
func MatchesBrand(domain string, brands []string) bool {
	domain = parser.NormalizeDomain(domain)
	if domain == "" {
		return false
	}
	for _, brand := range brands {
		brand = strings.ToLower(strings.TrimSpace(brand))
		if brand != "" && strings.Contains(domain, brand) {
			return true
		}
	}
	return false
}

// SynthesizeDomainSummary groups citations by normalized domain and counts
// occurrences. Citations without a resolvable domain are excluded. Output
// is sorted by descending count, then domain, for stable results.
func SynthesizeDomainSummary(citations []parser.CitedSource) []parser.DomainCount {
	counts := make(map[string]int)
	for _, c := range citations {
		if d := c.Domain(); d != "" {
			counts[d]++
		}
	}

	out := make([]parser.DomainCount, 0, len(counts))
	for d, n := range counts {
		out = append(out, parser.DomainCount{Domain: d, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Domain < out[j].Domain
	})
	return out
}

// TextResult is the text-path score set plus the domain summary actually
// used (provider-supplied or synthesized).
type TextResult struct {
	Metrics       model.Metrics
	DomainSummary []parser.DomainCount
}

// ComputeText scores a parsed text-generation analysis against the brand
// list. Visibility is additive and capped at 100: +40 when the brand is
// mentioned and an overview exists, +30 when the top recommendation
// matches, +20 when any citation URL matches, +10 when the brand citation
// count is positive. Intensity saturates at 100 via citations*8.
func ComputeText(a *parser.Analysis, brands []string) TextResult {
	summary := a.DomainSummary
	if len(summary) == 0 && len(a.Citations) > 0 {
		summary = SynthesizeDomainSummary(a.Citations)
	}

	brandCount := 0
	brandMentioned := false
	totalDomainCount := 0
	for _, entry := range summary {
		totalDomainCount += entry.Count
		if entry.Count > 0 && MatchesBrand(entry.Domain, brands) {
			brandCount += entry.Count
			brandMentioned = true
		}
	}

	if len(summary) == 0 && a.OverviewText != "" {
		brandMentioned = overviewMentionsBrand(a.OverviewText, brands)
	}

	visibility := 0.0
	if brandMentioned && a.OverviewText != "" {
		visibility += 40
	}
	if a.TopRecommendation != "" && MatchesBrand(a.TopRecommendation, brands) {
		visibility += 30
	}
	if anyCitationURLMatches(a.Citations, brands) {
		visibility += 20
	}
	if brandCount > 0 {
		visibility += 10
	}

	total := len(a.Citations)
	shareOfVoice := 0.0
	if totalDomainCount > 0 {
		shareOfVoice = float64(brandCount) / float64(totalDomainCount) * 100
	}

	return TextResult{
		Metrics: model.Metrics{
			VisibilityScore: clampScore(visibility),
			IntensityScore:  clampScore(float64(total) * 8.0),
			ShareOfVoicePct: round2(clampScore(shareOfVoice)),
			BrandMentioned:  brandMentioned,
			TotalCitations:  total,
			BrandCitations:  brandCount,
		},
		DomainSummary: summary,
	}
}

// SearchInputs is the feature set the search-path formula consumes.
type SearchInputs struct {
	HasAIOverview       bool
	HasAnswerBox        bool
	HasKnowledgeGraph   bool
	HasFeaturedSnippet  bool
	HasRelatedQuestions bool

	BrandOrganic   int
	TotalOrganic   int
	BrandCitations int
	TotalCitations int
}

// ComputeSearch scores the search-feature path: 40 AI overview + 30 answer
// box + 20 knowledge graph + 25 featured snippet + 15 related questions,
// capped at 100. Intensity mirrors visibility in this path. Share of voice
// is the brand share of organic results plus citations.
func ComputeSearch(in SearchInputs) model.Metrics {
	visibility := 0.0
	if in.HasAIOverview {
		visibility += 40
	}
	if in.HasAnswerBox {
		visibility += 30
	}
	if in.HasKnowledgeGraph {
		visibility += 20
	}
	if in.HasFeaturedSnippet {
		visibility += 25
	}
	if in.HasRelatedQuestions {
		visibility += 15
	}
	visibility = clampScore(visibility)

	denom := in.TotalOrganic + in.TotalCitations
	shareOfVoice := 0.0
	if denom > 0 {
		shareOfVoice = float64(in.BrandOrganic+in.BrandCitations) / float64(denom) * 100
	}

	return model.Metrics{
		VisibilityScore: visibility,
		IntensityScore:  visibility,
		ShareOfVoicePct: round2(clampScore(shareOfVoice)),
		BrandMentioned:  in.BrandOrganic+in.BrandCitations > 0,
		TotalCitations:  in.TotalCitations,
		BrandCitations:  in.BrandCitations,
	}
}

func overviewMentionsBrand(overview string, brands []string) bool {
	lower := strings.ToLower(overview)
	for _, brand := range brands {
		brand = strings.ToLower(strings.TrimSpace(brand))
		if brand != "" && strings.Contains(lower, brand) {
			return true
		}
	}
	return false
}

func anyCitationURLMatches(citations []parser.CitedSource, brands []string) bool {
	for _, c := range citations {
		url := strings.ToLower(c.URL)
		if url == "" {
			continue
		}
		for _, brand := range brands {
			brand = strings.ToLower(strings.TrimSpace(brand))
			if brand != "" && strings.Contains(url, brand) {
				return true
			}
		}
	}
	return false
}

func clampScore(v float64) float64 {
	return math.Min(100, math.Max(0, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
