// Package intel gathers public hiring intelligence for a job from three
// independent containers: ATS conventions, company culture and role
// expectations.
package intel

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"applysharp/internal/config"
	"applysharp/internal/errors"
	"applysharp/internal/observability"
	"applysharp/internal/search"
	"applysharp/internal/types"
)

const companyTipsLabel = "company_tips"

// Gatherer runs the container queries concurrently and tolerates partial failure.
type Gatherer struct {
	searcher       search.Searcher
	timeout        time.Duration
	maxResults     int
	snippetLength  int
	trustedDomains []string
	companyTips    bool
	metrics        *observability.Metrics
	logger         *errors.Logger
	now            func() time.Time
}

// NewGatherer creates a gatherer over searcher.
func NewGatherer(searcher search.Searcher, searchCfg config.SearchConfig, intelCfg config.IntelConfig,
	metrics *observability.Metrics, logger *errors.Logger) *Gatherer {
	g := &Gatherer{
		searcher:       searcher,
		timeout:        intelCfg.ContainerTimeout,
		maxResults:     searchCfg.MaxResults,
		snippetLength:  intelCfg.SnippetLength,
		trustedDomains: searchCfg.TrustedDomains,
		companyTips:    intelCfg.CompanyTips,
		metrics:        metrics,
		logger:         logger,
		now:            time.Now,
	}
	if g.timeout <= 0 {
		g.timeout = 20 * time.Second
	}
	if g.maxResults <= 0 {
		g.maxResults = 4
	}
	if g.snippetLength <= 0 {
		g.snippetLength = 400
	}
	return g
}

type containerQuery struct {
	label   string
	query   search.Query
	results *[]types.Finding
	counted bool
}

// Gather returns the findings of every container that answered in time.
// It fails only when none of the three containers produced a finding.
func (g *Gatherer) Gather(ctx context.Context, job types.Job) (types.Findings, error) {
	var findings types.Findings
	queries := g.queries(job, &findings)

	var eg errgroup.Group
	for _, cq := range queries {
		eg.Go(func() error {
			*cq.results = g.runContainer(ctx, cq)
			return nil
		})
	}
	_ = eg.Wait()

	if findings.Populated() == 0 {
		return types.Findings{}, errors.NewIntelligenceUnavailableError(errors.ErrCodeNoIntelligence,
			"Could not gather any hiring intelligence for this role. Please try again shortly.", nil)
	}

	if g.logger != nil {
		g.logger.Info("Intelligence gathered",
			"ats", len(findings.ATS),
			"culture", len(findings.Culture),
			"role", len(findings.Role),
			"company_tips", len(findings.CompanyTips))
	}
	return findings, nil
}

func (g *Gatherer) queries(job types.Job, findings *types.Findings) []containerQuery {
	year := g.now().Year()
	queries := []containerQuery{
		{
			label: string(types.ContainerATS),
			query: search.Query{
				Text:           fmt.Sprintf("ATS resume tips %s hiring manager advice %d %d", job.Role, year-1, year),
				MaxResults:     g.maxResults,
				IncludeDomains: g.trustedDomains,
			},
			results: &findings.ATS,
			counted: true,
		},
		{
			label: string(types.ContainerCulture),
			query: search.Query{
				Text:       fmt.Sprintf("%s company culture hiring resume tips recruiter %s", job.Company, job.Location),
				MaxResults: g.maxResults,
			},
			results: &findings.Culture,
			counted: true,
		},
		{
			label: string(types.ContainerRole),
			query: search.Query{
				Text:           fmt.Sprintf("%s resume best practices skills %s job requirements", job.Role, job.Location),
				MaxResults:     g.maxResults,
				IncludeDomains: g.trustedDomains,
			},
			results: &findings.Role,
			counted: true,
		},
	}
	if g.companyTips {
		queries = append(queries, containerQuery{
			label: companyTipsLabel,
			query: search.Query{
				Text:       fmt.Sprintf("%s recruiter hiring manager resume advice LinkedIn tips", job.Company),
				MaxResults: g.maxResults,
			},
			results: &findings.CompanyTips,
		})
	}
	return queries
}

// runContainer never fails: errors and timeouts degrade to an empty set.
func (g *Gatherer) runContainer(ctx context.Context, cq containerQuery) []types.Finding {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	results, err := g.searcher.Search(ctx, cq.query)
	elapsed := time.Since(start)

	if err != nil {
		g.metrics.RecordContainer(ctx, cq.label, "degraded", elapsed)
		if g.logger != nil {
			g.logger.Warn("Intelligence container degraded",
				"container", cq.label,
				"duration", elapsed,
				"error", err.Error())
		}
		return nil
	}

	container := types.Container(cq.label)
	if !cq.counted {
		// Company tips read as culture evidence.
		container = types.ContainerCulture
	}
	out := g.normalize(container, results)

	status := "ok"
	if len(out) == 0 {
		status = "empty"
	}
	g.metrics.RecordContainer(ctx, cq.label, status, elapsed)
	return out
}

func (g *Gatherer) normalize(container types.Container, results []search.Result) []types.Finding {
	out := make([]types.Finding, 0, min(len(results), g.maxResults))
	for _, r := range results {
		if len(out) == g.maxResults {
			break
		}
		statement := Snippet(r.Content, g.snippetLength)
		if statement == "" {
			continue
		}
		out = append(out, types.Finding{
			Container:   container,
			Statement:   statement,
			Title:       strings.TrimSpace(r.Title),
			CitationURL: r.URL,
			Confidence:  clamp(r.Score),
		})
	}
	return out
}

// Snippet collapses whitespace and truncates to at most n runes.
func Snippet(text string, n int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return strings.TrimSpace(string(runes[:n]))
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
