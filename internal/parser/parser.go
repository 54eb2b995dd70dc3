// Package parser extracts the structured analysis object from free-form
// provider text. Providers are asked for bare JSON but routinely wrap it
// in prose or code fences, so extraction is span-based and every field
// takes a neutral default when absent. Parse never fails: unusable input
// degrades to the canonical fallback object.
package parser

import (
	"encoding/json"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/searchlens/visibility-cli/internal/model"
)

// CitedSource is one citation as reported by a text-generation provider.
type CitedSource struct {
	URL         string            `json:"url"`
	Title       string            `json:"title"`
	Snippet     string            `json:"snippet"`
	SourceType  string            `json:"source_type"`
	Authority   float64           `json:"authority_estimate"`
	Sentiment   model.Sentiment   `json:"sentiment"`
	Reusability model.Reusability `json:"ai_reusability"`
}

// Domain returns the normalized domain of the citation URL, or "" when the
// URL is absent or unparseable. Citations without a domain stay out of
// domain aggregation.
func (c CitedSource) Domain() string {
	if c.URL == "" {
		return ""
	}
	u, err := url.Parse(c.URL)
	if err != nil || u.Host == "" {
		return ""
	}
	return NormalizeDomain(u.Host)
}

// DomainCount is one domain-summary entry.
type DomainCount struct {
	Domain    string `json:"domain"`
	Count     int    `json:"count"`
	Authority string `json:"authority,omitempty"`
}

// Analysis is the canonical normalized shape of a provider's structured
// answer. Every field is always present; absent input fields take their
// neutral value.
type Analysis struct {
	Intent            model.Intent  `json:"intent"`
	OverviewText      string        `json:"ai_overview"`
	Citations         []CitedSource `json:"citations"`
	DomainSummary     []DomainCount `json:"domain_summary"`
	TopRecommendation string        `json:"top_recommendation"`
	RunnerUps         []string      `json:"runner_ups"`
}

// Fallback returns the canonical neutral analysis used whenever provider
// output cannot be interpreted.
func Fallback() *Analysis {
	return &Analysis{
		Intent:        model.DefaultIntent(),
		OverviewText:  "",
		Citations:     []CitedSource{},
		DomainSummary: []DomainCount{},
		RunnerUps:     []string{},
	}
}

// Parse extracts the first JSON object span from text and normalizes it.
// Any failure returns Fallback(); Parse never returns nil and never errors.
func Parse(text string) *Analysis {
	span := jsonSpan(text)
	if span == "" {
		zap.L().Debug("no json object in provider text", zap.Int("len", len(text)))
		return Fallback()
	}

	var raw map[string]any
	if err := json.Unmarshal([]byte(span), &raw); err != nil {
		zap.L().Debug("provider json unparseable", zap.Error(err))
		return Fallback()
	}

	a := Fallback()
	a.Intent = normalizeIntent(raw["intent"])
	a.OverviewText = NormalizeOverview(raw["ai_overview"])
	a.Citations = normalizeCitations(raw["citations"])
	a.DomainSummary = normalizeDomainSummary(raw["domain_summary"])
	a.TopRecommendation = NormalizeRecommendation(raw["top_recommendation"])
	a.RunnerUps = normalizeRunnerUps(raw["runner_ups"])
	return a
}

// jsonSpan returns the substring from the first '{' to the last '}', with
// code fences stripped first, or "" when no object span exists.
func jsonSpan(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return ""
	}
	return text[start : end+1]
}

// NormalizeDomain lowercases a host and strips a leading "www.".
func NormalizeDomain(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	return strings.TrimPrefix(host, "www.")
}

// NormalizeOverview accepts the overview as a plain string or as an object
// with a "text" key and returns the plain text.
func NormalizeOverview(v any) string {
	switch o := v.(type) {
	case string:
		return o
	case map[string]any:
		if text, ok := o["text"].(string); ok {
			return text
		}
	}
	return ""
}

// NormalizeRecommendation accepts a string, an object with a "domain" key,
// or nil, and returns a lowercased domain-or-empty string.
func NormalizeRecommendation(v any) string {
	switch r := v.(type) {
	case string:
		return strings.ToLower(strings.TrimSpace(r))
	case map[string]any:
		if d, ok := r["domain"].(string); ok {
			return strings.ToLower(strings.TrimSpace(d))
		}
	}
	return ""
}

func normalizeIntent(v any) model.Intent {
	obj, ok := v.(map[string]any)
	if !ok {
		return model.DefaultIntent()
	}

	intent := model.DefaultIntent()
	if t, ok := obj["type"].(string); ok {
		switch model.IntentType(strings.ToLower(strings.TrimSpace(t))) {
		case model.IntentInformational:
			intent.Type = model.IntentInformational
		case model.IntentTransactional:
			intent.Type = model.IntentTransactional
		case model.IntentNavigational:
			intent.Type = model.IntentNavigational
		}
	}
	if c, ok := obj["confidence"].(float64); ok && c >= 0 && c <= 1 {
		intent.Confidence = c
	}
	if r, ok := obj["reasoning"].(string); ok {
		intent.Reasoning = r
	} else {
		intent.Reasoning = ""
	}
	return intent
}

func normalizeCitations(v any) []CitedSource {
	list, ok := v.([]any)
	if !ok {
		return []CitedSource{}
	}

	out := make([]CitedSource, 0, len(list))
	for _, item := range list {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		c := CitedSource{
			Sentiment:   model.SentimentNeutral,
			Reusability: model.ReusabilityMedium,
		}
		if s, ok := obj["url"].(string); ok {
			c.URL = strings.TrimSpace(s)
		}
		if s, ok := obj["title"].(string); ok {
			c.Title = s
		}
		if s, ok := obj["snippet"].(string); ok {
			c.Snippet = s
		}
		if s, ok := obj["source_type"].(string); ok {
			c.SourceType = s
		}
		if f, ok := obj["authority_estimate"].(float64); ok {
			c.Authority = f
		}
		if s, ok := obj["sentiment"].(string); ok {
			switch model.Sentiment(strings.ToLower(s)) {
			case model.SentimentPositive:
				c.Sentiment = model.SentimentPositive
			case model.SentimentNegative:
				c.Sentiment = model.SentimentNegative
			}
		}
		if s, ok := obj["ai_reusability"].(string); ok {
			switch strings.ToLower(s) {
			case "high":
				c.Reusability = model.ReusabilityHigh
			case "low":
				c.Reusability = model.ReusabilityLow
			}
		}
		out = append(out, c)
	}
	return out
}

func normalizeDomainSummary(v any) []DomainCount {
	list, ok := v.([]any)
	if !ok {
		return []DomainCount{}
	}

	out := make([]DomainCount, 0, len(list))
	for _, item := range list {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		var dc DomainCount
		if s, ok := obj["domain"].(string); ok {
			dc.Domain = NormalizeDomain(s)
		}
		if dc.Domain == "" {
			continue
		}
		if f, ok := obj["count"].(float64); ok && f > 0 {
			dc.Count = int(f)
		}
		if s, ok := obj["authority"].(string); ok {
			dc.Authority = s
		}
		out = append(out, dc)
	}
	return out
}

func normalizeRunnerUps(v any) []string {
	list, ok := v.([]any)
	if !ok {
		return []string{}
	}

	out := make([]string, 0, len(list))
	for _, item := range list {
		switch r := item.(type) {
		case string:
			if d := strings.ToLower(strings.TrimSpace(r)); d != "" {
				out = append(out, d)
			}
		case map[string]any:
			if d, ok := r["domain"].(string); ok {
				if d = strings.ToLower(strings.TrimSpace(d)); d != "" {
					out = append(out, d)
				}
			}
		}
	}
	return out
}
