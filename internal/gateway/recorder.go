package gateway

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/searchlens/visibility-cli/internal/model"
)

// CallSink persists provider-call records. Implemented by the store.
type CallSink interface {
	LogProviderCall(ctx context.Context, call model.ProviderCall) error
}

// Pricer converts token counts to dollars for a given model.
type Pricer interface {
	GenerateCost(modelName string, inputTokens, outputTokens int) float64
}

// RecordingGenerator wraps a TextGenerator and logs every call, successful
// or not, as a ProviderCall row. When the provider reports no usage the
// token counts are estimated from text length and flagged as such. Logging
// failures never fail the call itself.
type RecordingGenerator struct {
	inner    TextGenerator
	provider string
	sink     CallSink
	pricer   Pricer
}

// NewRecordingGenerator wraps inner so each call is recorded to sink under
// the given provider name.
func NewRecordingGenerator(inner TextGenerator, provider string, sink CallSink, pricer Pricer) *RecordingGenerator {
	return &RecordingGenerator{
		inner:    inner,
		provider: provider,
		sink:     sink,
		pricer:   pricer,
	}
}

// Generate delegates to the wrapped generator and records the outcome.
func (r *RecordingGenerator) Generate(ctx context.Context, prompt string, opts GenerateOptions) (*GenerateResult, error) {
	start := time.Now()
	result, err := r.inner.Generate(ctx, prompt, opts)
	latency := time.Since(start)

	call := model.ProviderCall{
		ID:        uuid.NewString(),
		Timestamp: start.UTC(),
		Provider:  r.provider,
		Prompt:    prompt,
		LatencyMS: latency.Milliseconds(),
	}

	if err != nil {
		call.Success = false
		call.Error = err.Error()
	} else {
		call.Success = true
		call.Model = result.Model
		call.Response = result.Text

		usage := resolveUsage(prompt, result)
		call.Usage = &usage
		if r.pricer != nil {
			call.CostUSD = r.pricer.GenerateCost(result.Model, usage.InputTokens, usage.OutputTokens)
		}
	}

	if r.sink != nil {
		if logErr := r.sink.LogProviderCall(ctx, call); logErr != nil {
			zap.L().Warn("provider call logging failed",
				zap.String("provider", r.provider),
				zap.Error(logErr))
		}
	}

	return result, err
}

// resolveUsage prefers provider-reported token counts and falls back to a
// length-based estimate.
func resolveUsage(prompt string, result *GenerateResult) model.TokenUsage {
	if result.Usage != nil {
		in := int(result.Usage.InputTokens)
		out := int(result.Usage.OutputTokens)
		return model.TokenUsage{
			InputTokens:  in,
			OutputTokens: out,
			TotalTokens:  in + out,
			Estimated:    false,
		}
	}
	return model.EstimateUsage(prompt, result.Text)
}
