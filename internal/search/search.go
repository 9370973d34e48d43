// Package search queries the web for public hiring intelligence.
package search

import (
	"context"
	"fmt"
	"strings"
)

// Query is one web search.
type Query struct {
	Text           string
	MaxResults     int
	IncludeDomains []string
}

// Result is one validated search hit.
type Result struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// Response is the wire shape returned by the search API. Fields the
// pipeline does not use are ignored.
type Response struct {
	Query   string   `json:"query"`
	Results []Result `json:"results"`
}

// Searcher runs web searches.
type Searcher interface {
	Search(ctx context.Context, q Query) ([]Result, error)
}

// Validate checks the response shape and drops hits that cannot be cited.
// A response without a results array is a schema violation.
func (r *Response) Validate() ([]Result, error) {
	if r.Results == nil {
		return nil, fmt.Errorf("search response missing results array")
	}
	valid := make([]Result, 0, len(r.Results))
	for _, res := range r.Results {
		if strings.TrimSpace(res.URL) == "" || strings.TrimSpace(res.Content) == "" {
			continue
		}
		res.Score = clamp(res.Score)
		valid = append(valid, res)
	}
	return valid, nil
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
