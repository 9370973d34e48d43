package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"applysharp/internal/config"
	"applysharp/internal/errors"
)

func newTestClient(url string) *TavilyClient {
	return NewTavilyClient(config.SearchConfig{
		Endpoint:   url,
		APIKey:     "tvly-test",
		Timeout:    2 * time.Second,
		MaxRetries: 3,
	}, nil)
}

func TestTavilyClientSearch(t *testing.T) {
	var received tavilyRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"query": "ATS resume tips",
			"answer": null,
			"response_time": 1.2,
			"results": [
				{"title": "Beat the ATS", "url": "https://www.indeed.com/a", "content": "Use standard headings", "score": 0.91},
				{"title": "No URL", "url": "", "content": "dropped", "score": 0.5},
				{"title": "Overscored", "url": "https://hbr.org/b", "content": "Quantify results", "score": 1.7}
			]
		}`))
	}))
	defer server.Close()

	results, err := newTestClient(server.URL).Search(context.Background(), Query{
		Text:           "ATS resume tips",
		MaxResults:     4,
		IncludeDomains: []string{"indeed.com"},
	})
	require.NoError(t, err)

	assert.Equal(t, "ATS resume tips", received.Query)
	assert.Equal(t, 4, received.MaxResults)
	assert.Equal(t, []string{"indeed.com"}, received.IncludeDomains)

	require.Len(t, results, 2)
	assert.Equal(t, "https://www.indeed.com/a", results[0].URL)
	assert.Equal(t, 1.0, results[1].Score)
}

func TestTavilyClientRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"query":"q","results":[]}`))
	}))
	defer server.Close()

	results, err := newTestClient(server.URL).Search(context.Background(), Query{Text: "q", MaxResults: 4})
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Equal(t, int32(3), calls.Load())
}

func TestTavilyClientErrors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantType  errors.ErrorType
		wantCalls int32
	}{
		{name: "unauthorized is permanent", status: http.StatusUnauthorized, wantType: errors.ErrorTypeNetwork, wantCalls: 1},
		{name: "missing results array", status: http.StatusOK, body: `{"query":"q"}`, wantType: errors.ErrorTypeIntelligenceUnavailable, wantCalls: 1},
		{name: "invalid json", status: http.StatusOK, body: `<html>`, wantType: errors.ErrorTypeIntelligenceUnavailable, wantCalls: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := newTestClient(server.URL).Search(context.Background(), Query{Text: "q"})
			require.Error(t, err)
			assert.Equal(t, tt.wantType, errors.TypeOf(err))
			assert.Equal(t, tt.wantCalls, calls.Load())
		})
	}
}

type countingSearcher struct {
	calls   int
	results []Result
	err     error
}

func (s *countingSearcher) Search(ctx context.Context, q Query) ([]Result, error) {
	s.calls++
	return s.results, s.err
}

func TestCachedSearcher(t *testing.T) {
	cache := NewCache(config.CacheConfig{TTL: time.Minute, MaxEntries: 10}, nil)
	defer cache.Close()

	inner := &countingSearcher{results: []Result{{Title: "t", URL: "https://x", Content: "c", Score: 0.5}}}
	searcher := NewCachedSearcher(inner, cache)
	ctx := context.Background()

	first, err := searcher.Search(ctx, Query{Text: "Go developer resume", MaxResults: 4})
	require.NoError(t, err)
	second, err := searcher.Search(ctx, Query{Text: "  go developer RESUME ", MaxResults: 4})
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.calls)

	hits, misses := cache.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)
}

func TestCachedSearcherDoesNotCacheFailures(t *testing.T) {
	cache := NewCache(config.CacheConfig{TTL: time.Minute}, nil)
	defer cache.Close()

	inner := &countingSearcher{err: errors.NewNetworkError(errors.ErrCodeSearchFailed, "down", nil)}
	searcher := NewCachedSearcher(inner, cache)

	_, err := searcher.Search(context.Background(), Query{Text: "q"})
	require.Error(t, err)
	_, err = searcher.Search(context.Background(), Query{Text: "q"})
	require.Error(t, err)
	assert.Equal(t, 2, inner.calls)
}

func TestCacheEviction(t *testing.T) {
	cache := NewCache(config.CacheConfig{TTL: time.Minute, MaxEntries: 2}, nil)
	defer cache.Close()
	ctx := context.Background()

	cache.Set(ctx, "a", []Result{{URL: "https://a"}})
	time.Sleep(time.Millisecond)
	cache.Set(ctx, "b", []Result{{URL: "https://b"}})
	time.Sleep(time.Millisecond)
	cache.Set(ctx, "c", []Result{{URL: "https://c"}})

	_, ok := cache.Get(ctx, "a")
	assert.False(t, ok, "oldest entry should be evicted")
	_, ok = cache.Get(ctx, "c")
	assert.True(t, ok)
}

func TestCacheKeyIsDeterministic(t *testing.T) {
	assert.Equal(t, CacheKey("a", "b"), CacheKey("a", "b"))
	assert.NotEqual(t, CacheKey("a", "b"), CacheKey("a|b", ""))
	assert.Len(t, CacheKey("x"), len("as:search:")+24)
}

func TestNilCacheDisablesCaching(t *testing.T) {
	inner := &countingSearcher{}
	assert.Same(t, Searcher(inner), NewCachedSearcher(inner, nil))
}
