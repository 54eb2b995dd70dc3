package gateway

import (
	"context"
	"strings"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

const defaultMaxTokens = 1024

// AnthropicGenerator implements TextGenerator using the official
// anthropic-sdk-go client. One instance per configured model.
type AnthropicGenerator struct {
	client  sdk.Client
	model   string
	limiter *rate.Limiter
}

// NewAnthropicGenerator creates a generator for the given model. The rate
// limit caps calls per second to stay inside the account quota; a nil-safe
// zero limit disables limiting.
func NewAnthropicGenerator(apiKey, model string, callsPerMinute int) *AnthropicGenerator {
	var limiter *rate.Limiter
	if callsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(callsPerMinute)/60.0), callsPerMinute)
	}
	return &AnthropicGenerator{
		client:  sdk.NewClient(option.WithAPIKey(apiKey)),
		model:   model,
		limiter: limiter,
	}
}

// Generate sends one message to the model and returns the concatenated
// text blocks. Failures are classified into the gateway error taxonomy.
func (g *AnthropicGenerator) Generate(ctx context.Context, prompt string, opts GenerateOptions) (*GenerateResult, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "anthropic: rate limiter wait")
		}
	}

	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	params := sdk.MessageNewParams{
		Model:     sdk.Model(g.model),
		MaxTokens: maxTokens,
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(prompt)),
		},
	}
	if opts.Temperature != nil {
		params.Temperature = sdk.Float(*opts.Temperature)
	}

	start := time.Now()
	msg, err := g.client.Messages.New(ctx, params)
	latency := time.Since(start)
	if err != nil {
		return nil, classifyProviderError("anthropic", err)
	}

	var b strings.Builder
	for _, block := range msg.Content {
		b.WriteString(block.Text)
	}
	text := b.String()
	if strings.TrimSpace(text) == "" {
		return nil, &MalformedError{Provider: "anthropic", Err: eris.New("empty completion")}
	}

	return &GenerateResult{
		Text:  text,
		Model: string(msg.Model),
		Usage: &Usage{
			InputTokens:  msg.Usage.InputTokens,
			OutputTokens: msg.Usage.OutputTokens,
		},
		Latency: latency,
	}, nil
}

// classifyProviderError maps a raw client error onto the gateway error
// taxonomy. Message matching follows the patterns the providers actually
// emit; anything unrecognized is treated as transient so the caller's
// retry layer gets a chance.
func classifyProviderError(provider string, err error) error {
	msg := strings.ToLower(err.Error())

	switch {
	case strings.Contains(msg, "401") ||
		strings.Contains(msg, "403") ||
		strings.Contains(msg, "authentication") ||
		strings.Contains(msg, "invalid x-api-key") ||
		strings.Contains(msg, "api key"):
		return &AuthError{Provider: provider, Err: err}
	case strings.Contains(msg, "429") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "quota"):
		return &QuotaError{Provider: provider, Err: err}
	default:
		return &TransientError{Provider: provider, Err: err}
	}
}
