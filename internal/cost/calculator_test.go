package cost

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func testRates() Rates {
	return Rates{
		Anthropic: map[string]ModelRate{
			"haiku":  {Input: 0.80, Output: 4.00},
			"sonnet": {Input: 3.00, Output: 15.00},
		},
		Serp: SerpRate{PerQuery: 0.015},
	}
}

func TestGenerateCost(t *testing.T) {
	t.Parallel()
	calc := NewCalculator(testRates())

	tests := []struct {
		name   string
		model  string
		input  int
		output int
		want   float64
	}{
		{
			name:  "haiku one mtok in, 100k out",
			model: "haiku", input: 1000000, output: 100000,
			want: 0.80 + 0.40,
		},
		{
			name:  "sonnet small call",
			model: "sonnet", input: 1000, output: 500,
			want: 0.003 + 0.0075,
		},
		{
			name:  "unknown model costs zero",
			model: "mystery", input: 1000000, output: 1000000,
			want: 0,
		},
		{
			name:  "zero tokens",
			model: "haiku", input: 0, output: 0,
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := calc.GenerateCost(tt.model, tt.input, tt.output)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestSearchQuery(t *testing.T) {
	t.Parallel()
	calc := NewCalculator(testRates())
	assert.InDelta(t, 0.015, calc.SearchQuery(), 1e-9)
}

func TestDefaultRates(t *testing.T) {
	t.Parallel()
	rates := DefaultRates()
	assert.NotEmpty(t, rates.Anthropic)
	assert.Greater(t, rates.Serp.PerQuery, 0.0)
	for model, rate := range rates.Anthropic {
		assert.Greater(t, rate.Input, 0.0, model)
		assert.Greater(t, rate.Output, 0.0, model)
	}
}
