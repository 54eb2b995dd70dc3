package model

import "time"

// IntentType classifies the search intent behind a query.
type IntentType string

const (
	IntentInformational IntentType = "informational"
	IntentTransactional IntentType = "transactional"
	IntentNavigational  IntentType = "navigational"
)

// Intent is the classified intent of a query with a confidence in [0,1].
type Intent struct {
	Type       IntentType `json:"type"`
	Confidence float64    `json:"confidence"`
	Reasoning  string     `json:"reasoning,omitempty"`
}

// DefaultIntent is the fallback classification used whenever intent
// analysis is unavailable or unparseable.
func DefaultIntent() Intent {
	return Intent{Type: IntentInformational, Confidence: 0.5, Reasoning: "fallback"}
}

// Sentiment is the tone of a cited source toward the query subject.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// Reusability grades how reusable a source is for AI-generated answers.
type Reusability string

const (
	ReusabilityHigh   Reusability = "High"
	ReusabilityMedium Reusability = "Medium"
	ReusabilityLow    Reusability = "Low"
)

// SourceType categorizes a citation source relative to the tracked brand.
type SourceType string

const (
	SourceOwned      SourceType = "owned"
	SourceCompetitor SourceType = "competitor"
	SourceAuthority  SourceType = "authority"
	SourceNeutral    SourceType = "neutral"
)

// MaxOverviewChars bounds the AI-overview text stored on a snapshot.
const MaxOverviewChars = 1000

// Snapshot is one persisted evaluation of a query against the providers
// at a point in time. Immutable after persistence.
type Snapshot struct {
	ID        int64     `json:"id"`
	Query     string    `json:"query"`
	Timestamp time.Time `json:"timestamp"`
	Country   string    `json:"country"`
	Language  string    `json:"language"`
	Domain    string    `json:"search_domain"`

	IntentType       IntentType `json:"intent_type"`
	IntentConfidence float64    `json:"intent_confidence"`

	HasKnowledgeGraph   bool `json:"has_knowledge_graph"`
	HasAnswerBox        bool `json:"has_answer_box"`
	HasAIOverview       bool `json:"has_ai_overview"`
	HasFeaturedSnippet  bool `json:"has_featured_snippet"`
	HasRelatedQuestions bool `json:"has_related_questions"`

	BrandMentioned bool   `json:"brand_mentioned"`
	OverviewText   string `json:"ai_overview_text,omitempty"`
	TotalCitations int    `json:"total_citations"`
	BrandCitations int    `json:"brand_citations"`

	TotalOrganicResults   int `json:"total_organic_results"`
	BrandOrganicPositions int `json:"brand_organic_positions"`

	VisibilityScore float64 `json:"visibility_score"`
	IntensityScore  float64 `json:"intensity_score"`
	ShareOfVoicePct float64 `json:"share_of_voice_percentage"`

	ProcessingTimeMS int64  `json:"processing_time_ms"`
	Category         string `json:"category,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// Citation is one cited source surfaced by a text-generation provider or
// by a search provider's AI overview. Position reflects provider order.
type Citation struct {
	ID         int64       `json:"id"`
	SnapshotID int64       `json:"snapshot_id"`
	Domain     string      `json:"domain"`
	URL        string      `json:"url"`
	Title      string      `json:"title"`
	SourceType SourceType  `json:"source_type"`
	IsBrand    bool        `json:"is_brand"`
	Authority  float64     `json:"authority_score"`
	Sentiment  Sentiment   `json:"sentiment"`
	Reusable   Reusability `json:"ai_reusability"`
	Position   int         `json:"position"`
}

// OrganicPosition is one ranked organic search result. Rank is 1-based and
// at most 10 per snapshot by policy.
type OrganicPosition struct {
	ID         int64  `json:"id"`
	SnapshotID int64  `json:"snapshot_id"`
	Rank       int    `json:"rank"`
	Domain     string `json:"domain"`
	URL        string `json:"url"`
	IsBrand    bool   `json:"is_brand"`
}

// StageStatus is the terminal status of one collection stage.
type StageStatus string

const (
	StageSuccess StageStatus = "success"
	StageFailed  StageStatus = "failed"
	StageTimeout StageStatus = "timeout"
	StageSkipped StageStatus = "skipped"
	StageNotRun  StageStatus = "not_run"
)

// Severity is the overall log level of a collection run.
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityError    Severity = "ERROR"
	SeverityCritical Severity = "CRITICAL"
)

// ExecutionLog is the per-snapshot execution trace, built incrementally
// during a run and persisted atomically with its parent snapshot.
type ExecutionLog struct {
	ID         int64     `json:"id"`
	SnapshotID int64     `json:"snapshot_id"`
	Query      string    `json:"query"`
	Timestamp  time.Time `json:"timestamp"`

	SearchStatus   StageStatus `json:"search_status"`
	TextGenStatus  StageStatus `json:"textgen_status"`
	DatabaseStatus StageStatus `json:"database_status"`

	SearchTimeMS   int64 `json:"search_time_ms"`
	TextGenTimeMS  int64 `json:"textgen_time_ms"`
	DatabaseTimeMS int64 `json:"database_time_ms"`
	TotalTimeMS    int64 `json:"total_time_ms"`

	Level        Severity `json:"log_level"`
	ErrorStage   string   `json:"error_stage,omitempty"`
	ErrorMessage string   `json:"error_message,omitempty"`
	ErrorTrace   string   `json:"error_trace,omitempty"`
}
