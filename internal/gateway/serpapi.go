package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

const defaultSerpBaseURL = "https://serpapi.com/search"

// SerpOption configures the SERP client.
type SerpOption func(*SerpClient)

// WithSerpBaseURL sets a custom base URL (for testing).
func WithSerpBaseURL(u string) SerpOption {
	return func(c *SerpClient) {
		c.baseURL = u
	}
}

// WithSerpHTTPClient sets a custom HTTP client.
func WithSerpHTTPClient(hc *http.Client) SerpOption {
	return func(c *SerpClient) {
		c.http = hc
	}
}

// SerpClient implements SearchClient against the SerpAPI Google engines.
type SerpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewSerpClient creates a SERP search client. callsPerMinute caps request
// throughput; zero disables limiting.
func NewSerpClient(apiKey string, callsPerMinute int, opts ...SerpOption) *SerpClient {
	var limiter *rate.Limiter
	if callsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(callsPerMinute)/60.0), callsPerMinute)
	}
	c := &SerpClient{
		apiKey:  apiKey,
		baseURL: defaultSerpBaseURL,
		limiter: limiter,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Search runs one Google search and returns the raw structured payload.
func (c *SerpClient) Search(ctx context.Context, query string, loc Locale) (Payload, error) {
	params := url.Values{}
	params.Set("engine", "google")
	params.Set("q", query)
	params.Set("gl", loc.Country)
	params.Set("hl", loc.Language)
	params.Set("google_domain", loc.SearchDomain)
	params.Set("api_key", c.apiKey)

	return c.get(ctx, params)
}

// FetchAIOverview resolves a page token from an initial search into the
// full AI overview payload.
func (c *SerpClient) FetchAIOverview(ctx context.Context, pageToken string) (Payload, error) {
	params := url.Values{}
	params.Set("engine", "google_ai_overview")
	params.Set("page_token", pageToken)
	params.Set("api_key", c.apiKey)

	return c.get(ctx, params)
}

func (c *SerpClient) get(ctx context.Context, params url.Values) (Payload, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "serpapi: rate limiter wait")
		}
	}

	reqURL := c.baseURL + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "serpapi: create request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransientError{Provider: "serpapi", Err: eris.Wrap(err, "request failed")}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransientError{
			Provider:   "serpapi",
			StatusCode: resp.StatusCode,
			Err:        eris.Wrap(err, "read response body"),
		}
	}

	if err := classifySerpStatus(resp.StatusCode, body); err != nil {
		return nil, err
	}

	var payload Payload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &MalformedError{Provider: "serpapi", Err: eris.Wrap(err, "unmarshal response")}
	}

	// SerpAPI reports engine-level failures inside a 200 body.
	if msg, ok := payload["error"].(string); ok && msg != "" {
		return nil, &MalformedError{Provider: "serpapi", Err: eris.Errorf("engine error: %s", msg)}
	}

	return payload, nil
}

func classifySerpStatus(statusCode int, body []byte) error {
	switch {
	case statusCode == http.StatusOK:
		return nil
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return &AuthError{Provider: "serpapi", Err: eris.Errorf("status %d: %s", statusCode, string(body))}
	case statusCode == http.StatusTooManyRequests:
		return &QuotaError{Provider: "serpapi", Err: eris.Errorf("status %d: %s", statusCode, string(body))}
	case transientHTTPStatus(statusCode):
		return &TransientError{
			Provider:   "serpapi",
			StatusCode: statusCode,
			Err:        eris.Errorf("status %d: %s", statusCode, string(body)),
		}
	default:
		return &MalformedError{Provider: "serpapi", Err: eris.Errorf("unexpected status %d: %s", statusCode, string(body))}
	}
}
