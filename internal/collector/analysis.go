package collector

import (
	"strings"

	"github.com/searchlens/visibility-cli/internal/model"
)

// Rule-based citation analysis. These are the fallback analyzers used when
// the generative sub-tasks fail, and the enrichment source for citations
// the provider did not grade.

var positiveWords = []string{"best", "good", "great", "excellent", "top", "recommended"}

var negativeWords = []string{"bad", "worst", "poor", "avoid", "warning", "issue"}

var highReusabilityWords = []string{
	"data", "research", "study", "analysis", "report", "guide",
	"tutorial", "documentation", "official", "statistics", "fact",
	"source", "evidence", "peer-reviewed", "published", "academic",
}

var lowReusabilityWords = []string{
	"opinion", "blog", "review", "personal", "ad", "sponsored",
	"sale", "buy now", "limited time", "subscribe", "click here",
}

// KeywordSentiment grades the tone of a citation from its title and
// snippet by counting signal words.
func KeywordSentiment(title, snippet string) model.Sentiment {
	text := strings.ToLower(title + " " + snippet)

	positive := countContained(text, positiveWords)
	negative := countContained(text, negativeWords)

	switch {
	case positive > negative:
		return model.SentimentPositive
	case negative > positive:
		return model.SentimentNegative
	default:
		return model.SentimentNeutral
	}
}

// KeywordReusability grades how reusable a source is for AI answers.
// High needs a net score of +3, Low a net score of -2.
func KeywordReusability(title, snippet string) model.Reusability {
	if snippet == "" {
		return model.ReusabilityMedium
	}
	text := strings.ToLower(title + " " + snippet)

	score := countContained(text, highReusabilityWords) - countContained(text, lowReusabilityWords)
	switch {
	case score >= 3:
		return model.ReusabilityHigh
	case score <= -2:
		return model.ReusabilityLow
	default:
		return model.ReusabilityMedium
	}
}

var intentKeywords = map[model.IntentType][]string{
	model.IntentInformational: {"what", "how", "why", "when", "where", "explain", "definition"},
	model.IntentTransactional: {"buy", "purchase", "order", "price", "cost", "deal", "discount"},
	model.IntentNavigational:  {"login", "sign in", "download", "official", "website"},
}

// KeywordIntent classifies a query by keyword counting. Used when the
// generative intent sub-task fails or returns nothing usable.
func KeywordIntent(query string) model.Intent {
	lower := strings.ToLower(query)

	scores := make(map[model.IntentType]int, len(intentKeywords))
	total := 0
	for intentType, words := range intentKeywords {
		n := countContained(lower, words)
		scores[intentType] = n
		total += n
	}

	if total == 0 {
		return model.Intent{
			Type:       model.IntentInformational,
			Confidence: 0.5,
			Reasoning:  "default classification",
		}
	}

	best := model.IntentInformational
	for _, candidate := range []model.IntentType{model.IntentTransactional, model.IntentNavigational} {
		if scores[candidate] > scores[best] {
			best = candidate
		}
	}

	return model.Intent{
		Type:       best,
		Confidence: float64(scores[best]) / float64(total),
		Reasoning:  "keyword-based classification",
	}
}

// CategorizeSource types a citation domain relative to the brand.
func CategorizeSource(domain string, isBrand bool) model.SourceType {
	switch {
	case isBrand:
		return model.SourceOwned
	case strings.Contains(domain, ".gov"), strings.Contains(domain, ".edu"):
		return model.SourceAuthority
	case strings.Contains(domain, "wikipedia"):
		return model.SourceAuthority
	default:
		return model.SourceNeutral
	}
}

var authorityDomains = []struct {
	fragment string
	score    float64
}{
	{"wikipedia.org", 95},
	{".gov", 90},
	{".edu", 85},
	{"stackoverflow.com", 80},
	{"github.com", 75},
}

// AuthorityScore estimates domain authority from a static table, falling
// back to TLD heuristics.
func AuthorityScore(domain string) float64 {
	for _, known := range authorityDomains {
		if strings.Contains(domain, known.fragment) {
			return known.score
		}
	}
	if strings.Contains(domain, ".org") {
		return 60
	}
	return 50
}

func countContained(text string, words []string) int {
	n := 0
	for _, w := range words {
		if strings.Contains(text, w) {
			n++
		}
	}
	return n
}
