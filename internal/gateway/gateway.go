// Package gateway provides uniform access to the external AI and search
// providers. It performs no retries: retry and backoff policy belongs to
// the caller's infrastructure, the gateway only reports typed failures and
// latency.
package gateway

import (
	"context"
	"time"
)

// GenerateOptions tunes one text-generation call.
type GenerateOptions struct {
	MaxTokens   int64
	Temperature *float64
}

// GenerateResult is the outcome of one successful text-generation call.
// Usage is nil when the provider does not report token counts.
type GenerateResult struct {
	Text    string
	Model   string
	Usage   *Usage
	Latency time.Duration
}

// Usage holds provider-reported token counts.
type Usage struct {
	InputTokens  int64
	OutputTokens int64
}

// TextGenerator is the text-generation capability.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (*GenerateResult, error)
}

// Locale selects the country, language, and search domain of a search.
type Locale struct {
	Country      string
	Language     string
	SearchDomain string
}

// Payload is an opaque structured search-provider response.
type Payload = map[string]any

// SearchClient is the search capability. FetchAIOverview performs the
// second-phase fetch of a full AI overview using the page token from the
// initial response.
type SearchClient interface {
	Search(ctx context.Context, query string, loc Locale) (Payload, error)
	FetchAIOverview(ctx context.Context, pageToken string) (Payload, error)
}
