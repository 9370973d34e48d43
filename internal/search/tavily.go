package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"

	"applysharp/internal/config"
	"applysharp/internal/errors"
)

const maxResponseBytes = 2 << 20

// TavilyClient calls the Tavily search REST API.
type TavilyClient struct {
	endpoint    string
	apiKey      string
	searchDepth string
	maxRetries  uint
	httpClient  *http.Client
	logger      *errors.Logger
}

type tavilyRequest struct {
	APIKey         string   `json:"api_key"`
	Query          string   `json:"query"`
	MaxResults     int      `json:"max_results"`
	SearchDepth    string   `json:"search_depth,omitempty"`
	IncludeDomains []string `json:"include_domains,omitempty"`
}

// NewTavilyClient creates a search client from configuration.
func NewTavilyClient(cfg config.SearchConfig, logger *errors.Logger) *TavilyClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &TavilyClient{
		endpoint:    cfg.Endpoint,
		apiKey:      cfg.APIKey,
		searchDepth: cfg.SearchDepth,
		maxRetries:  uint(maxRetries),
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 5,
				IdleConnTimeout:     30 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		logger: logger,
	}
}

// Search runs one query, retrying transient failures with exponential backoff.
func (c *TavilyClient) Search(ctx context.Context, q Query) ([]Result, error) {
	body, err := json.Marshal(tavilyRequest{
		APIKey:         c.apiKey,
		Query:          q.Text,
		MaxResults:     q.MaxResults,
		SearchDepth:    c.searchDepth,
		IncludeDomains: q.IncludeDomains,
	})
	if err != nil {
		return nil, errors.NewInternalError("SEARCH_ENCODE_FAILED", "Failed to encode search request", err)
	}

	operation := func() (*Response, error) {
		return c.do(ctx, body)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxInterval = 5 * time.Second

	resp, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(c.maxRetries),
		backoff.WithMaxElapsedTime(30*time.Second))
	if err != nil {
		if errors.IsType(err, errors.ErrorTypeIntelligenceUnavailable) {
			return nil, err
		}
		return nil, errors.NewNetworkError(errors.ErrCodeSearchFailed, "Search request failed", err)
	}

	results, err := resp.Validate()
	if err != nil {
		return nil, errors.NewIntelligenceUnavailableError(errors.ErrCodeInvalidSchema,
			"Search response did not match the expected schema", err)
	}
	if q.MaxResults > 0 && len(results) > q.MaxResults {
		results = results[:q.MaxResults]
	}
	return results, nil
}

func (c *TavilyClient) do(ctx context.Context, body []byte) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, backoff.Permanent(ctx.Err())
		}
		return nil, err
	}
	defer func() { _ = httpResp.Body.Close() }()

	if isRetryableStatus(httpResp.StatusCode) {
		return nil, fmt.Errorf("search API returned status %d", httpResp.StatusCode)
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, backoff.Permanent(fmt.Errorf("search API returned status %d", httpResp.StatusCode))
	}

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		return nil, err
	}

	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, backoff.Permanent(errors.NewIntelligenceUnavailableError(errors.ErrCodeInvalidSchema,
			"Search response is not valid JSON", err))
	}
	return &resp, nil
}

func isRetryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}
