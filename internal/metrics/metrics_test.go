package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/searchlens/visibility-cli/internal/parser"
)

func TestMatchesBrand(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		domain string
		brands []string
		want   bool
	}{
		{"exact", "acme.com", []string{"acme.com"}, true},
		{"case and www", "www.Example.com", []string{"Example.com"}, true},
		{"substring", "blog.acme.com", []string{"acme.com"}, true},
		{"no match", "other.org", []string{"acme.com"}, false},
		{"empty domain", "", []string{"acme.com"}, false},
		{"no brands", "acme.com", nil, false},
		{"blank brand ignored", "acme.com", []string{"  "}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MatchesBrand(tt.domain, tt.brands))
		})
	}
}

func TestComputeText_BrandInSummary(t *testing.T) {
	t.Parallel()

	// Three citations, the brand's domain summarized with count 2.
	a := &parser.Analysis{
		Intent:       parser.Fallback().Intent,
		OverviewText: "Acme is a solid choice.",
		Citations: []parser.CitedSource{
			{URL: "https://acme.com/a"},
			{URL: "https://acme.com/b"},
			{URL: "https://other.org/c"},
		},
		DomainSummary: []parser.DomainCount{
			{Domain: "acme.com", Count: 2},
		},
	}

	got := ComputeText(a, []string{"acme.com"})

	assert.True(t, got.Metrics.BrandMentioned)
	assert.Equal(t, 3, got.Metrics.TotalCitations)
	assert.Equal(t, 2, got.Metrics.BrandCitations)
	assert.InDelta(t, 100.0, got.Metrics.ShareOfVoicePct, 1e-9)
	// 40 mention+overview, 20 cited URL, 10 counted.
	assert.InDelta(t, 70.0, got.Metrics.VisibilityScore, 1e-9)
	assert.InDelta(t, 24.0, got.Metrics.IntensityScore, 1e-9)
}

func TestComputeText_OverviewMentionOnly(t *testing.T) {
	t.Parallel()

	a := &parser.Analysis{
		OverviewText:  "For small teams, acme.com is frequently recommended.",
		Citations:     []parser.CitedSource{},
		DomainSummary: []parser.DomainCount{},
	}

	got := ComputeText(a, []string{"acme.com"})

	assert.True(t, got.Metrics.BrandMentioned)
	assert.Equal(t, 0, got.Metrics.BrandCitations)
	assert.InDelta(t, 0.0, got.Metrics.ShareOfVoicePct, 1e-9)
	assert.InDelta(t, 40.0, got.Metrics.VisibilityScore, 1e-9)
	assert.InDelta(t, 0.0, got.Metrics.IntensityScore, 1e-9)
}

func TestComputeText_AllComponentsCapAt100(t *testing.T) {
	t.Parallel()

	a := &parser.Analysis{
		OverviewText:      "acme.com leads the field.",
		TopRecommendation: "acme.com",
		Citations: []parser.CitedSource{
			{URL: "https://www.acme.com/review"},
		},
		DomainSummary: []parser.DomainCount{
			{Domain: "acme.com", Count: 5},
		},
	}

	got := ComputeText(a, []string{"acme.com"})

	// 40+30+20+10 = 100 exactly; anything above must clamp.
	assert.InDelta(t, 100.0, got.Metrics.VisibilityScore, 1e-9)
	assert.LessOrEqual(t, got.Metrics.VisibilityScore, 100.0)
}

func TestComputeText_IntensitySaturates(t *testing.T) {
	t.Parallel()

	citations := make([]parser.CitedSource, 20)
	for i := range citations {
		citations[i] = parser.CitedSource{URL: "https://example.com"}
	}
	a := &parser.Analysis{Citations: citations}

	got := ComputeText(a, nil)

	assert.InDelta(t, 100.0, got.Metrics.IntensityScore, 1e-9)
}

func TestComputeText_SynthesizesDomainSummary(t *testing.T) {
	t.Parallel()

	a := &parser.Analysis{
		OverviewText: "comparison of tools",
		Citations: []parser.CitedSource{
			{URL: "https://www.acme.com/a"},
			{URL: "https://acme.com/b"},
			{URL: "https://other.org/c"},
			{Title: "no url, excluded"},
		},
	}

	got := ComputeText(a, []string{"acme.com"})

	require.Len(t, got.DomainSummary, 2)
	assert.Equal(t, parser.DomainCount{Domain: "acme.com", Count: 2}, got.DomainSummary[0])
	assert.Equal(t, parser.DomainCount{Domain: "other.org", Count: 1}, got.DomainSummary[1])
	assert.Equal(t, 2, got.Metrics.BrandCitations)
	// 2 brand of 3 counted domains.
	assert.InDelta(t, 66.67, got.Metrics.ShareOfVoicePct, 1e-9)
}

func TestComputeText_ZeroDenominator(t *testing.T) {
	t.Parallel()

	got := ComputeText(parser.Fallback(), []string{"acme.com"})

	assert.False(t, got.Metrics.BrandMentioned)
	assert.InDelta(t, 0.0, got.Metrics.ShareOfVoicePct, 1e-9)
	assert.InDelta(t, 0.0, got.Metrics.VisibilityScore, 1e-9)
}

func TestComputeSearch_FullHouseClamps(t *testing.T) {
	t.Parallel()

	got := ComputeSearch(SearchInputs{
		HasAIOverview:       true,
		HasAnswerBox:        true,
		HasKnowledgeGraph:   true,
		HasFeaturedSnippet:  true,
		HasRelatedQuestions: true,
	})

	// 40+30+20+25+15 = 130 before the cap.
	assert.InDelta(t, 100.0, got.VisibilityScore, 1e-9)
	assert.InDelta(t, 100.0, got.IntensityScore, 1e-9)
}

func TestComputeSearch_IntensityMirrorsVisibility(t *testing.T) {
	t.Parallel()

	got := ComputeSearch(SearchInputs{HasAIOverview: true, HasRelatedQuestions: true})

	assert.InDelta(t, 55.0, got.VisibilityScore, 1e-9)
	assert.Equal(t, got.VisibilityScore, got.IntensityScore)
}

func TestComputeSearch_ShareOfVoice(t *testing.T) {
	t.Parallel()

	got := ComputeSearch(SearchInputs{
		BrandOrganic:   2,
		TotalOrganic:   10,
		BrandCitations: 1,
		TotalCitations: 5,
	})

	assert.InDelta(t, 20.0, got.ShareOfVoicePct, 1e-9)
	assert.True(t, got.BrandMentioned)
}

func TestComputeSearch_ZeroDenominator(t *testing.T) {
	t.Parallel()

	got := ComputeSearch(SearchInputs{HasAnswerBox: true})

	assert.InDelta(t, 0.0, got.ShareOfVoicePct, 1e-9)
	assert.False(t, got.BrandMentioned)
}
