package model

import "time"

// TokenUsage is the token consumption of one generate call. Estimated is
// true when the provider did not report usage and the counts were derived
// from text length instead.
type TokenUsage struct {
	InputTokens  int  `json:"input_tokens"`
	OutputTokens int  `json:"output_tokens"`
	TotalTokens  int  `json:"total_tokens"`
	Estimated    bool `json:"estimated"`
}

// EstimateTokens approximates a token count from text length. Four
// characters per token is the conventional rough estimate for providers
// that do not report usage.
func EstimateTokens(text string) int {
	return len(text) / 4
}

// EstimateUsage builds a TokenUsage from prompt and response text for
// providers that report nothing.
func EstimateUsage(prompt, response string) TokenUsage {
	in := EstimateTokens(prompt)
	out := EstimateTokens(response)
	return TokenUsage{
		InputTokens:  in,
		OutputTokens: out,
		TotalTokens:  in + out,
		Estimated:    true,
	}
}

// ProviderCall is one logged call to a generative-text provider. It has no
// relationship to a Snapshot; it exists for cost and usage analytics.
type ProviderCall struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Provider  string    `json:"provider"`
	Model     string    `json:"model"`
	Prompt    string    `json:"prompt"`
	Response  string    `json:"response,omitempty"`
	LatencyMS int64     `json:"latency_ms"`
	Usage     *TokenUsage `json:"usage,omitempty"`
	CostUSD   float64   `json:"estimated_cost_usd"`
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`
}

// ProviderStats aggregates ProviderCall rows over a window.
type ProviderStats struct {
	Provider        string  `json:"provider"`
	TotalCalls      int     `json:"total_calls"`
	SuccessfulCalls int     `json:"successful_calls"`
	FailedCalls     int     `json:"failed_calls"`
	SuccessRatePct  float64 `json:"success_rate"`
	AvgLatencyMS    int64   `json:"avg_latency_ms"`
	PeriodDays      int     `json:"period_days"`
}

// CostAnalysis summarizes spend over a window, keeping actual-vs-estimated
// token provenance visible.
type CostAnalysis struct {
	PeriodDays       int                       `json:"period_days"`
	TotalCalls       int                       `json:"total_calls"`
	TotalTokens      int                       `json:"total_tokens"`
	TotalCostUSD     float64                   `json:"total_cost_usd"`
	AvgCostPerCall   float64                   `json:"avg_cost_per_call"`
	EstMonthlyUSD    float64                   `json:"estimated_monthly_cost"`
	Breakdown        map[string]ProviderSpend  `json:"breakdown"`
	ActualTokenCalls int                       `json:"actual_token_calls"`
	EstTokenCalls    int                       `json:"estimated_token_calls"`
	AccuracyPct      float64                   `json:"accuracy_percentage"`
}

// ProviderSpend is the per-provider slice of a CostAnalysis.
type ProviderSpend struct {
	Calls   int     `json:"calls"`
	Tokens  int     `json:"tokens"`
	CostUSD float64 `json:"cost_usd"`
}
