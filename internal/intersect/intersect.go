// Package intersect finds advice that independent intelligence containers
// agree on and turns it into ranked heads-up tips.
package intersect

import (
	"cmp"
	"crypto/sha256"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"unicode"

	"applysharp/internal/config"
	"applysharp/internal/types"
)

const (
	defaultThreshold = 0.3
	defaultMinShared = 2
	defaultTopN      = 5
)

var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "but": true, "not": true, "you": true,
	"your": true, "with": true, "this": true, "that": true, "from": true, "they": true, "will": true,
	"have": true, "has": true, "had": true, "was": true, "were": true, "been": true, "their": true,
	"what": true, "when": true, "where": true, "which": true, "who": true, "how": true, "why": true,
	"can": true, "could": true, "should": true, "would": true, "may": true, "might": true, "must": true,
	"into": true, "about": true, "than": true, "then": true, "them": true, "there": true, "these": true,
	"those": true, "its": true, "our": true, "out": true, "also": true, "more": true, "most": true,
	"some": true, "such": true, "only": true, "other": true, "any": true, "all": true, "each": true,
	"just": true, "very": true, "over": true, "use": true, "using": true, "one": true, "two": true,
	"new": true, "get": true, "make": true, "like": true, "via": true, "per": true, "does": true,
}

// Engine groups findings by keyword overlap.
type Engine struct {
	threshold float64
	minShared int
	topN      int
}

// NewEngine creates an engine. Zero values fall back to the defaults.
func NewEngine(cfg config.IntelConfig) *Engine {
	e := &Engine{threshold: cfg.Threshold, minShared: cfg.MinShared, topN: cfg.TopN}
	if e.threshold <= 0 || e.threshold > 1 {
		e.threshold = defaultThreshold
	}
	if e.minShared <= 0 {
		e.minShared = defaultMinShared
	}
	if e.topN <= 0 {
		e.topN = defaultTopN
	}
	return e
}

type entry struct {
	finding  types.Finding
	keywords map[string]bool
	order    int
}

type group struct {
	members    []entry
	keywords   map[string]bool
	containers map[types.Container]bool
	firstSeen  int
}

// Intersect returns at most topN tips. Groups backed by more containers rank
// first, then by their strongest finding, then by first appearance.
func (e *Engine) Intersect(findings types.Findings) []types.Tip {
	entries := e.entries(findings)
	if len(entries) == 0 {
		return []types.Tip{}
	}

	var groups []*group
	for _, en := range entries {
		best, bestScore := (*group)(nil), 0.0
		for _, g := range groups {
			shared := sharedCount(en.keywords, g.keywords)
			if shared < e.minShared {
				continue
			}
			score := overlap(en.keywords, g.keywords, shared)
			if score >= e.threshold && score > bestScore {
				best, bestScore = g, score
			}
		}
		if best == nil {
			best = &group{
				keywords:   make(map[string]bool),
				containers: make(map[types.Container]bool),
				firstSeen:  en.order,
			}
			groups = append(groups, best)
		}
		best.members = append(best.members, en)
		best.containers[en.finding.Container] = true
		best.firstSeen = min(best.firstSeen, en.order)
		for k := range en.keywords {
			best.keywords[k] = true
		}
	}

	slices.SortStableFunc(groups, func(a, b *group) int {
		if c := cmp.Compare(len(b.containers), len(a.containers)); c != 0 {
			return c
		}
		if c := cmp.Compare(b.members[0].finding.Confidence, a.members[0].finding.Confidence); c != 0 {
			return c
		}
		return cmp.Compare(a.firstSeen, b.firstSeen)
	})

	tips := make([]types.Tip, 0, min(len(groups), e.topN))
	for _, g := range groups[:min(len(groups), e.topN)] {
		tips = append(tips, toTip(g))
	}
	return tips
}

// entries orders findings by confidence desc, then container, then original position.
func (e *Engine) entries(findings types.Findings) []entry {
	all := findings.All()
	entries := make([]entry, 0, len(all))
	for i, f := range all {
		kw := Keywords(f.Statement + " " + f.Title)
		if len(kw) == 0 {
			continue
		}
		entries = append(entries, entry{finding: f, keywords: kw, order: i})
	}
	slices.SortStableFunc(entries, func(a, b entry) int {
		if c := cmp.Compare(b.finding.Confidence, a.finding.Confidence); c != 0 {
			return c
		}
		if c := cmp.Compare(containerRank(a.finding.Container), containerRank(b.finding.Container)); c != 0 {
			return c
		}
		return cmp.Compare(a.order, b.order)
	})
	return entries
}

func containerRank(c types.Container) int {
	for i, known := range types.Containers {
		if known == c {
			return i
		}
	}
	return len(types.Containers)
}

func toTip(g *group) types.Tip {
	// members[0] has the highest confidence: entries were sorted before grouping.
	lead := g.members[0].finding

	containers := make([]types.Container, 0, len(g.containers))
	for _, c := range types.Containers {
		if g.containers[c] {
			containers = append(containers, c)
		}
	}

	action := "Applied to CV wording and formatting"
	switch {
	case len(containers) >= 3:
		action = "Prioritised in CV summary and top third"
	case len(containers) == 2:
		action = "Reflected in CV summary and cover letter"
	case len(containers) == 1 && containers[0] == types.ContainerCulture:
		action = "Reflected in cover letter tone"
	}

	return types.Tip{
		ID:          tipID(lead),
		Text:        lead.Statement,
		Source:      sourceName(lead),
		SourceURL:   lead.CitationURL,
		ActionTaken: action,
		Containers:  containers,
		Confidence:  lead.Confidence,
	}
}

func tipID(f types.Finding) string {
	sum := sha256.Sum256([]byte(f.CitationURL + "|" + f.Statement))
	return fmt.Sprintf("t-%x", sum[:4])
}

func sourceName(f types.Finding) string {
	if u, err := url.Parse(f.CitationURL); err == nil && u.Host != "" {
		return strings.TrimPrefix(u.Hostname(), "www.")
	}
	if f.Title != "" {
		return f.Title
	}
	return "web research"
}

// Keywords lower-cases text and keeps tokens of three or more characters
// that are not stop words.
func Keywords(text string) map[string]bool {
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '+' && r != '#'
	})
	out := make(map[string]bool, len(tokens))
	for _, tok := range tokens {
		if len([]rune(tok)) < 3 || stopWords[tok] {
			continue
		}
		out[tok] = true
	}
	return out
}

func sharedCount(a, b map[string]bool) int {
	if len(a) > len(b) {
		a, b = b, a
	}
	n := 0
	for k := range a {
		if b[k] {
			n++
		}
	}
	return n
}

// overlap is the overlap coefficient |A∩B| / min(|A|,|B|).
func overlap(a, b map[string]bool, shared int) float64 {
	smaller := min(len(a), len(b))
	if smaller == 0 {
		return 0
	}
	return float64(shared) / float64(smaller)
}

// Similarity exposes the overlap coefficient of two texts.
func Similarity(a, b string) float64 {
	ka, kb := Keywords(a), Keywords(b)
	return overlap(ka, kb, sharedCount(ka, kb))
}
