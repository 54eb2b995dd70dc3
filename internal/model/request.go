package model

import (
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/language"
)

// TrackingRequest is the validated input for one collection run.
type TrackingRequest struct {
	Query        string   `json:"query"`
	BrandDomains []string `json:"brand_domains,omitempty"`
	Country      string   `json:"country,omitempty"`
	Language     string   `json:"language,omitempty"`
	SearchDomain string   `json:"search_domain,omitempty"`
}

// Normalize applies defaults and validates the request in place.
func (r *TrackingRequest) Normalize() error {
	r.Query = strings.TrimSpace(r.Query)
	if r.Query == "" {
		return eris.New("request: query is required")
	}

	if r.Country == "" {
		r.Country = "us"
	}
	r.Country = strings.ToLower(r.Country)
	if _, err := language.ParseRegion(strings.ToUpper(r.Country)); err != nil {
		return eris.Wrapf(err, "request: invalid country %q", r.Country)
	}

	if r.Language == "" {
		r.Language = "en"
	}
	r.Language = strings.ToLower(r.Language)
	if _, err := language.ParseBase(r.Language); err != nil {
		return eris.Wrapf(err, "request: invalid language %q", r.Language)
	}

	if r.SearchDomain == "" {
		r.SearchDomain = "google.com"
	}

	cleaned := r.BrandDomains[:0]
	for _, b := range r.BrandDomains {
		b = strings.TrimSpace(strings.ToLower(b))
		if b != "" {
			cleaned = append(cleaned, b)
		}
	}
	r.BrandDomains = cleaned

	return nil
}

// Metrics is the caller-facing summary of a collection run.
type Metrics struct {
	VisibilityScore float64 `json:"visibility_score"`
	IntensityScore  float64 `json:"intensity_score"`
	ShareOfVoicePct float64 `json:"share_of_voice_percentage"`
	BrandMentioned  bool    `json:"brand_mentioned"`
	TotalCitations  int     `json:"total_citations"`
	BrandCitations  int     `json:"brand_citations"`
}

// CollectionResult is the outward result shape of one run. A degraded run
// (fallback metrics for optional sub-tasks) still reports status "success";
// only mandatory-stage failures report status "error".
type CollectionResult struct {
	Status          string   `json:"status"` // "success" or "error"
	SnapshotID      int64    `json:"snapshot_id,omitempty"`
	Metrics         *Metrics `json:"metrics,omitempty"`
	ExecutionTimeMS int64    `json:"execution_time_ms"`
	Message         string   `json:"message,omitempty"`
}
