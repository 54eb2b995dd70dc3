// Package serp normalizes raw search-provider payloads into the feature
// set the scoring layer consumes.
package serp

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/searchlens/visibility-cli/internal/gateway"
)

// DefaultOrganicLimit caps extracted organic results per search.
const DefaultOrganicLimit = 10

// KnowledgeGraph is the normalized entity panel.
type KnowledgeGraph struct {
	Title       string `json:"title"`
	Type        string `json:"type"`
	Description string `json:"description"`
	SourceName  string `json:"source_name,omitempty"`
	SourceLink  string `json:"source_link,omitempty"`
}

// AnswerBox is the normalized answer box or featured snippet. Kind records
// which of the two the provider reported.
type AnswerBox struct {
	Kind    string `json:"kind"` // "answer_box" or "featured_snippet"
	Type    string `json:"type,omitempty"`
	Title   string `json:"title,omitempty"`
	Snippet string `json:"snippet,omitempty"`
	Answer  string `json:"answer,omitempty"`
	Link    string `json:"link,omitempty"`
}

// OverviewSource is one reference cited by an AI overview.
type OverviewSource struct {
	Title   string `json:"title,omitempty"`
	Link    string `json:"link"`
	Snippet string `json:"snippet,omitempty"`
	Source  string `json:"source,omitempty"`
	Index   int    `json:"index"`
}

// AIOverview is the normalized AI-generated summary after the two-phase
// fetch has resolved the page token.
type AIOverview struct {
	Text    string           `json:"text"`
	Sources []OverviewSource `json:"sources,omitempty"`
}

// OrganicResult is one traditional ranked result. Provider order is
// preserved; entries without a link are dropped before this point.
type OrganicResult struct {
	Position int    `json:"position"`
	Title    string `json:"title,omitempty"`
	Link     string `json:"link"`
	Snippet  string `json:"snippet,omitempty"`
}

// Features is the normalized view of one search payload. Detection is a
// fixed-order presence vector [knowledge_graph, answer_box, ai_overview,
// organic_results]; the order is a contract with downstream consumers.
type Features struct {
	Detection [4]int `json:"detection"`

	KnowledgeGraph *KnowledgeGraph `json:"knowledge_graph,omitempty"`
	AnswerBox      *AnswerBox      `json:"answer_box,omitempty"`
	AIOverview     *AIOverview     `json:"ai_overview,omitempty"`
	Organic        []OrganicResult `json:"organic_results"`

	HasAnswerBox        bool `json:"has_answer_box"`
	HasFeaturedSnippet  bool `json:"has_featured_snippet"`
	HasRelatedQuestions bool `json:"has_related_questions"`
}

// Extractor normalizes search payloads, resolving AI-overview page tokens
// through the search client when the payload carries one.
type Extractor struct {
	search gateway.SearchClient
}

// NewExtractor returns an Extractor. search may be nil, in which case
// token-only AI overviews are treated as absent.
func NewExtractor(search gateway.SearchClient) *Extractor {
	return &Extractor{search: search}
}

// Extract normalizes payload into Features. organicLimit <= 0 uses
// DefaultOrganicLimit. Extraction failures in individual features leave
// that feature absent; Extract itself never errors.
func (e *Extractor) Extract(ctx context.Context, payload gateway.Payload, organicLimit int) *Features {
	if organicLimit <= 0 {
		organicLimit = DefaultOrganicLimit
	}

	f := &Features{
		KnowledgeGraph: extractKnowledgeGraph(payload),
		AnswerBox:      extractAnswerBox(payload),
		AIOverview:     e.extractAIOverview(ctx, payload),
		Organic:        extractOrganic(payload, organicLimit),
	}

	_, f.HasAnswerBox = asObject(payload["answer_box"])
	_, f.HasFeaturedSnippet = asObject(payload["featured_snippet"])
	f.HasRelatedQuestions = hasNonEmptyList(payload["related_questions"])

	if f.KnowledgeGraph != nil {
		f.Detection[0] = 1
	}
	if f.AnswerBox != nil {
		f.Detection[1] = 1
	}
	if f.AIOverview != nil {
		f.Detection[2] = 1
	}
	if len(f.Organic) > 0 {
		f.Detection[3] = 1
	}

	return f
}

func extractKnowledgeGraph(payload gateway.Payload) *KnowledgeGraph {
	kg, ok := asObject(payload["knowledge_graph"])
	if !ok {
		return nil
	}

	out := &KnowledgeGraph{
		Title:       asString(kg["title"]),
		Type:        asString(kg["type"]),
		Description: asString(kg["description"]),
	}
	if src, ok := asObject(kg["source"]); ok {
		out.SourceName = asString(src["name"])
		out.SourceLink = asString(src["link"])
	}
	return out
}

// extractAnswerBox prefers answer_box over featured_snippet when both are
// present, matching provider precedence.
func extractAnswerBox(payload gateway.Payload) *AnswerBox {
	if ab, ok := asObject(payload["answer_box"]); ok {
		answer := asString(ab["answer"])
		if answer == "" {
			answer = asString(ab["result"])
		}
		link := asString(ab["link"])
		if link == "" {
			link = asString(ab["source"])
		}
		return &AnswerBox{
			Kind:    "answer_box",
			Type:    asString(ab["type"]),
			Title:   asString(ab["title"]),
			Snippet: asString(ab["snippet"]),
			Answer:  answer,
			Link:    link,
		}
	}

	if fs, ok := asObject(payload["featured_snippet"]); ok {
		return &AnswerBox{
			Kind:    "featured_snippet",
			Type:    asString(fs["type"]),
			Title:   asString(fs["title"]),
			Snippet: asString(fs["snippet"]),
			Answer:  asString(fs["snippet"]),
			Link:    asString(fs["link"]),
		}
	}

	return nil
}

// extractAIOverview resolves the two-phase overview fetch. The initial
// payload usually carries only a page token; the full text lives behind a
// second call. An empty overview state or a failed second fetch means the
// overview is absent, which is a valid terminal state rather than an error.
func (e *Extractor) extractAIOverview(ctx context.Context, payload gateway.Payload) *AIOverview {
	ao, ok := asObject(payload["ai_overview"])
	if !ok {
		return nil
	}

	// Inline text blocks without a token are rare but legal.
	pageToken := asString(ao["page_token"])
	if pageToken == "" {
		if overview := assembleOverview(ao); overview != nil {
			return overview
		}
		return nil
	}

	if e.search == nil {
		return nil
	}

	full, err := e.search.FetchAIOverview(ctx, pageToken)
	if err != nil {
		zap.L().Warn("ai overview fetch failed", zap.Error(err))
		return nil
	}

	if info, ok := asObject(full["search_information"]); ok {
		state := strings.ToLower(asString(info["ai_overview_state"]))
		if strings.Contains(state, "empty") {
			return nil
		}
	}

	inner, ok := asObject(full["ai_overview"])
	if !ok {
		return nil
	}
	return assembleOverview(inner)
}

// assembleOverview flattens text_blocks into one text body and collects
// references. Returns nil when no text could be assembled.
func assembleOverview(ao gateway.Payload) *AIOverview {
	blocks, _ := ao["text_blocks"].([]any)

	var parts []string
	for _, raw := range blocks {
		block, ok := asObject(raw)
		if !ok {
			continue
		}

		snippet := asString(block["snippet"])
		switch asString(block["type"]) {
		case "heading":
			if snippet != "" {
				parts = append(parts, "\n"+snippet+"\n")
			}
		default:
			if snippet != "" {
				parts = append(parts, snippet)
			}
		}

		items, _ := block["list"].([]any)
		for _, rawItem := range items {
			item, ok := asObject(rawItem)
			if !ok {
				continue
			}
			if s := asString(item["snippet"]); s != "" {
				parts = append(parts, "• "+s)
			}
			nested, _ := item["list"].([]any)
			for _, rawNested := range nested {
				if n, ok := asObject(rawNested); ok {
					if s := asString(n["snippet"]); s != "" {
						parts = append(parts, "  - "+s)
					}
				}
			}
		}
	}

	if len(parts) == 0 {
		return nil
	}

	overview := &AIOverview{Text: strings.Join(parts, "\n")}

	refs, _ := ao["references"].([]any)
	for _, raw := range refs {
		ref, ok := asObject(raw)
		if !ok {
			continue
		}
		src := OverviewSource{
			Title:   asString(ref["title"]),
			Link:    asString(ref["link"]),
			Snippet: asString(ref["snippet"]),
			Source:  asString(ref["source"]),
		}
		if idx, ok := ref["index"].(float64); ok {
			src.Index = int(idx)
		}
		overview.Sources = append(overview.Sources, src)
	}

	return overview
}

// extractOrganic keeps provider order, drops entries without a link, and
// caps at limit.
func extractOrganic(payload gateway.Payload, limit int) []OrganicResult {
	list, _ := payload["organic_results"].([]any)

	results := make([]OrganicResult, 0, limit)
	for _, raw := range list {
		item, ok := asObject(raw)
		if !ok {
			continue
		}
		link := asString(item["link"])
		if link == "" {
			continue
		}
		result := OrganicResult{
			Link:    link,
			Title:   asString(item["title"]),
			Snippet: asString(item["snippet"]),
		}
		if pos, ok := item["position"].(float64); ok {
			result.Position = int(pos)
		}
		results = append(results, result)
		if len(results) >= limit {
			break
		}
	}
	return results
}

func asObject(v any) (gateway.Payload, bool) {
	obj, ok := v.(map[string]any)
	return obj, ok
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func hasNonEmptyList(v any) bool {
	list, ok := v.([]any)
	return ok && len(list) > 0
}
