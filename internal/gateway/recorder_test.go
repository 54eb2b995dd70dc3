package gateway

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/searchlens/visibility-cli/internal/model"
)

type captureSink struct {
	calls []model.ProviderCall
	err   error
}

func (s *captureSink) LogProviderCall(_ context.Context, call model.ProviderCall) error {
	s.calls = append(s.calls, call)
	return s.err
}

type flatPricer struct{ rate float64 }

func (p flatPricer) GenerateCost(_ string, in, out int) float64 {
	return float64(in+out) * p.rate
}

func TestRecordingGenerator_SuccessWithReportedUsage(t *testing.T) {
	t.Parallel()

	stub := &stubGenerator{result: &GenerateResult{
		Text:  "the answer",
		Model: "claude-sonnet-4-20250514",
		Usage: &Usage{InputTokens: 120, OutputTokens: 40},
	}}
	sink := &captureSink{}
	r := NewRecordingGenerator(stub, "anthropic", sink, flatPricer{rate: 0.001})

	result, err := r.Generate(context.Background(), "what is it", GenerateOptions{})
	require.NoError(t, err)
	assert.Equal(t, "the answer", result.Text)

	require.Len(t, sink.calls, 1)
	call := sink.calls[0]
	assert.True(t, call.Success)
	assert.Equal(t, "anthropic", call.Provider)
	assert.Equal(t, "claude-sonnet-4-20250514", call.Model)
	assert.NotEmpty(t, call.ID)
	require.NotNil(t, call.Usage)
	assert.Equal(t, 120, call.Usage.InputTokens)
	assert.Equal(t, 40, call.Usage.OutputTokens)
	assert.Equal(t, 160, call.Usage.TotalTokens)
	assert.False(t, call.Usage.Estimated)
	assert.InDelta(t, 0.16, call.CostUSD, 1e-9)
}

func TestRecordingGenerator_EstimatesWhenUsageMissing(t *testing.T) {
	t.Parallel()

	stub := &stubGenerator{result: &GenerateResult{Text: "eight ch", Model: "m"}}
	sink := &captureSink{}
	r := NewRecordingGenerator(stub, "gemini", sink, nil)

	_, err := r.Generate(context.Background(), "twelve chars", GenerateOptions{})
	require.NoError(t, err)

	require.Len(t, sink.calls, 1)
	usage := sink.calls[0].Usage
	require.NotNil(t, usage)
	assert.True(t, usage.Estimated)
	assert.Equal(t, 3, usage.InputTokens)
	assert.Equal(t, 2, usage.OutputTokens)
	assert.Equal(t, 5, usage.TotalTokens)
}

func TestRecordingGenerator_FailureRecorded(t *testing.T) {
	t.Parallel()

	stub := &stubGenerator{err: &QuotaError{Provider: "anthropic", Err: eris.New("rate limit")}}
	sink := &captureSink{}
	r := NewRecordingGenerator(stub, "anthropic", sink, nil)

	_, err := r.Generate(context.Background(), "prompt", GenerateOptions{})
	require.Error(t, err)
	assert.True(t, IsQuota(err))

	require.Len(t, sink.calls, 1)
	call := sink.calls[0]
	assert.False(t, call.Success)
	assert.Contains(t, call.Error, "rate limit")
	assert.Nil(t, call.Usage)
}

func TestRecordingGenerator_SinkFailureDoesNotFailCall(t *testing.T) {
	t.Parallel()

	stub := &stubGenerator{result: &GenerateResult{Text: "ok", Model: "m"}}
	sink := &captureSink{err: eris.New("db down")}
	r := NewRecordingGenerator(stub, "anthropic", sink, nil)

	result, err := r.Generate(context.Background(), "prompt", GenerateOptions{})
	require.NoError(t, err)
	assert.Equal(t, "ok", result.Text)
}
