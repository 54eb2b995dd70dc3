package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerpSearch_Success(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		q := r.URL.Query()
		assert.Equal(t, "google", q.Get("engine"))
		assert.Equal(t, "best crm software", q.Get("q"))
		assert.Equal(t, "us", q.Get("gl"))
		assert.Equal(t, "en", q.Get("hl"))
		assert.Equal(t, "google.com", q.Get("google_domain"))
		assert.Equal(t, "test-key", q.Get("api_key"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"organic_results":[{"link":"https://example.com","position":1}]}`))
	}))
	defer srv.Close()

	client := NewSerpClient("test-key", 0, WithSerpBaseURL(srv.URL))
	got, err := client.Search(context.Background(), "best crm software", Locale{
		Country:      "us",
		Language:     "en",
		SearchDomain: "google.com",
	})

	require.NoError(t, err)
	results, ok := got["organic_results"].([]any)
	require.True(t, ok)
	assert.Len(t, results, 1)
}

func TestSerpFetchAIOverview_Success(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "google_ai_overview", q.Get("engine"))
		assert.Equal(t, "tok-123", q.Get("page_token"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ai_overview":{"text_blocks":[{"snippet":"overview text"}]}}`))
	}))
	defer srv.Close()

	client := NewSerpClient("test-key", 0, WithSerpBaseURL(srv.URL))
	got, err := client.FetchAIOverview(context.Background(), "tok-123")

	require.NoError(t, err)
	assert.Contains(t, got, "ai_overview")
}

func TestSerpSearch_AuthError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"invalid api key"}`))
	}))
	defer srv.Close()

	client := NewSerpClient("bad-key", 0, WithSerpBaseURL(srv.URL))
	_, err := client.Search(context.Background(), "query", Locale{})

	require.Error(t, err)
	assert.True(t, IsAuth(err))
	assert.False(t, IsTransient(err))
}

func TestSerpSearch_QuotaError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":"rate limit exceeded"}`))
	}))
	defer srv.Close()

	client := NewSerpClient("test-key", 0, WithSerpBaseURL(srv.URL))
	_, err := client.Search(context.Background(), "query", Locale{})

	require.Error(t, err)
	assert.True(t, IsQuota(err))
}

func TestSerpSearch_TransientError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`service unavailable`))
	}))
	defer srv.Close()

	client := NewSerpClient("test-key", 0, WithSerpBaseURL(srv.URL))
	_, err := client.Search(context.Background(), "query", Locale{})

	require.Error(t, err)
	assert.True(t, IsTransient(err))
}

func TestSerpSearch_EngineErrorIn200Body(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"error":"Google hasn't returned any results for this query."}`))
	}))
	defer srv.Close()

	client := NewSerpClient("test-key", 0, WithSerpBaseURL(srv.URL))
	_, err := client.Search(context.Background(), "query", Locale{})

	require.Error(t, err)
	assert.True(t, IsMalformed(err))
}

func TestSerpSearch_MalformedJSON(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{not json`))
	}))
	defer srv.Close()

	client := NewSerpClient("test-key", 0, WithSerpBaseURL(srv.URL))
	_, err := client.Search(context.Background(), "query", Locale{})

	require.Error(t, err)
	assert.True(t, IsMalformed(err))
}

func TestSerpSearch_ContextCancellation(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewSerpClient("test-key", 0, WithSerpBaseURL(srv.URL))
	_, err := client.Search(ctx, "query", Locale{})

	require.Error(t, err)
}

func TestTransientHTTPStatus(t *testing.T) {
	assert.True(t, transientHTTPStatus(408))
	assert.True(t, transientHTTPStatus(500))
	assert.True(t, transientHTTPStatus(502))
	assert.True(t, transientHTTPStatus(503))
	assert.True(t, transientHTTPStatus(504))
	assert.False(t, transientHTTPStatus(200))
	assert.False(t, transientHTTPStatus(404))
	assert.False(t, transientHTTPStatus(429))
}
