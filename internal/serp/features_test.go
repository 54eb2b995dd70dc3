package serp

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/searchlens/visibility-cli/internal/gateway"
)

type stubSearch struct {
	overview  gateway.Payload
	fetchErr  error
	lastToken string
}

func (s *stubSearch) Search(_ context.Context, _ string, _ gateway.Locale) (gateway.Payload, error) {
	return nil, eris.New("not used")
}

func (s *stubSearch) FetchAIOverview(_ context.Context, pageToken string) (gateway.Payload, error) {
	s.lastToken = pageToken
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	return s.overview, nil
}

func organicPayload() gateway.Payload {
	return gateway.Payload{
		"organic_results": []any{
			map[string]any{"position": 1.0, "link": "https://a.com", "title": "A"},
			map[string]any{"position": 2.0, "link": "https://b.com", "title": "B"},
		},
	}
}

func TestExtract_PresenceVectorOrganicOnly(t *testing.T) {
	t.Parallel()

	f := NewExtractor(nil).Extract(context.Background(), organicPayload(), 10)

	assert.Equal(t, [4]int{0, 0, 0, 1}, f.Detection)
	assert.Nil(t, f.KnowledgeGraph)
	assert.Nil(t, f.AnswerBox)
	assert.Nil(t, f.AIOverview)
	assert.Len(t, f.Organic, 2)
}

func TestExtract_KnowledgeGraph(t *testing.T) {
	t.Parallel()

	payload := gateway.Payload{
		"knowledge_graph": map[string]any{
			"title":       "Acme Corp",
			"type":        "Company",
			"description": "Acme makes everything.",
			"source":      map[string]any{"name": "Wikipedia", "link": "https://en.wikipedia.org/wiki/Acme"},
		},
	}

	f := NewExtractor(nil).Extract(context.Background(), payload, 10)

	require.NotNil(t, f.KnowledgeGraph)
	assert.Equal(t, "Acme Corp", f.KnowledgeGraph.Title)
	assert.Equal(t, "Wikipedia", f.KnowledgeGraph.SourceName)
	assert.Equal(t, [4]int{1, 0, 0, 0}, f.Detection)
}

func TestExtract_AnswerBoxPrecedence(t *testing.T) {
	t.Parallel()

	payload := gateway.Payload{
		"answer_box":       map[string]any{"type": "organic_result", "title": "Answer", "result": "42"},
		"featured_snippet": map[string]any{"title": "Snippet"},
	}

	f := NewExtractor(nil).Extract(context.Background(), payload, 10)

	require.NotNil(t, f.AnswerBox)
	assert.Equal(t, "answer_box", f.AnswerBox.Kind)
	assert.Equal(t, "42", f.AnswerBox.Answer)
	assert.True(t, f.HasAnswerBox)
	assert.True(t, f.HasFeaturedSnippet)
	assert.Equal(t, 1, f.Detection[1])
}

func TestExtract_FeaturedSnippetOnly(t *testing.T) {
	t.Parallel()

	payload := gateway.Payload{
		"featured_snippet": map[string]any{"title": "Snippet", "snippet": "the answer", "link": "https://a.com"},
	}

	f := NewExtractor(nil).Extract(context.Background(), payload, 10)

	require.NotNil(t, f.AnswerBox)
	assert.Equal(t, "featured_snippet", f.AnswerBox.Kind)
	assert.Equal(t, "the answer", f.AnswerBox.Answer)
	assert.False(t, f.HasAnswerBox)
	assert.True(t, f.HasFeaturedSnippet)
}

func TestExtract_AIOverviewTwoPhase(t *testing.T) {
	t.Parallel()

	stub := &stubSearch{overview: gateway.Payload{
		"ai_overview": map[string]any{
			"text_blocks": []any{
				map[string]any{"type": "heading", "snippet": "Overview"},
				map[string]any{"type": "paragraph", "snippet": "Acme leads the market."},
				map[string]any{"type": "list", "list": []any{
					map[string]any{"snippet": "fast"},
					map[string]any{"snippet": "cheap", "list": []any{
						map[string]any{"snippet": "per seat"},
					}},
				}},
			},
			"references": []any{
				map[string]any{"title": "Acme", "link": "https://acme.com", "index": 0.0},
			},
		},
	}}

	payload := gateway.Payload{"ai_overview": map[string]any{"page_token": "tok-1"}}
	f := NewExtractor(stub).Extract(context.Background(), payload, 10)

	assert.Equal(t, "tok-1", stub.lastToken)
	require.NotNil(t, f.AIOverview)
	assert.Contains(t, f.AIOverview.Text, "Acme leads the market.")
	assert.Contains(t, f.AIOverview.Text, "• fast")
	assert.Contains(t, f.AIOverview.Text, "  - per seat")
	require.Len(t, f.AIOverview.Sources, 1)
	assert.Equal(t, "https://acme.com", f.AIOverview.Sources[0].Link)
	assert.Equal(t, 1, f.Detection[2])
}

func TestExtract_AIOverviewEmptyState(t *testing.T) {
	t.Parallel()

	stub := &stubSearch{overview: gateway.Payload{
		"search_information": map[string]any{"ai_overview_state": "AI Overview is empty"},
		"ai_overview":        map[string]any{"text_blocks": []any{map[string]any{"snippet": "ignored"}}},
	}}

	payload := gateway.Payload{"ai_overview": map[string]any{"page_token": "tok-2"}}
	f := NewExtractor(stub).Extract(context.Background(), payload, 10)

	assert.Nil(t, f.AIOverview)
	assert.Equal(t, 0, f.Detection[2])
}

func TestExtract_AIOverviewFetchErrorIsAbsence(t *testing.T) {
	t.Parallel()

	stub := &stubSearch{fetchErr: eris.New("upstream down")}
	payload := gateway.Payload{"ai_overview": map[string]any{"page_token": "tok-3"}}

	f := NewExtractor(stub).Extract(context.Background(), payload, 10)

	assert.Nil(t, f.AIOverview)
}

func TestExtract_OrganicCapAndLinkFilter(t *testing.T) {
	t.Parallel()

	var list []any
	for i := 1; i <= 15; i++ {
		list = append(list, map[string]any{"position": float64(i), "link": "https://example.com", "title": "x"})
	}
	list = append([]any{map[string]any{"position": 0.0, "title": "no link"}}, list...)

	f := NewExtractor(nil).Extract(context.Background(), gateway.Payload{"organic_results": list}, 0)

	assert.Len(t, f.Organic, DefaultOrganicLimit)
	assert.Equal(t, 1, f.Organic[0].Position)
	assert.Equal(t, 10, f.Organic[9].Position)
}

func TestExtract_RelatedQuestions(t *testing.T) {
	t.Parallel()

	payload := gateway.Payload{
		"related_questions": []any{map[string]any{"question": "what is acme?"}},
	}

	f := NewExtractor(nil).Extract(context.Background(), payload, 10)

	assert.True(t, f.HasRelatedQuestions)
	assert.Equal(t, [4]int{0, 0, 0, 0}, f.Detection)
}
