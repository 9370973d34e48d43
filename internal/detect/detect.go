// Package detect compares a CV against a job, its research findings and an
// optional LinkedIn export. Detection does no I/O, and an Input with Now set
// always yields the same report. A zero Now falls back to the wall clock.
package detect

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"

	"applysharp/internal/errors"
	"applysharp/internal/lexicon"
	"applysharp/internal/types"
)

const (
	DefaultMaxGaps             = 8
	DefaultEmploymentGapMonths = 6
)

// Input carries everything detection looks at.
type Input struct {
	CVText       string
	LinkedInText string
	Job          types.Job
	Findings     types.Findings
	Lexicon      *lexicon.Lexicon

	MaxGaps             int
	EmploymentGapMonths int
	// Now resolves "present" end dates and two-digit years. Zero means
	// time.Now(), which makes the report depend on when Detect runs.
	Now time.Time
}

// Report is the detection result. Ids are stable within one report.
type Report struct {
	Gaps           []types.Gap
	Contradictions []types.Contradiction
	AutoFixes      []types.AutoFix
	AIWords        []types.AIWord
}

// Detect runs every detector. Blank CV text is the only error.
func Detect(in Input) (Report, error) {
	if strings.TrimSpace(in.CVText) == "" {
		return Report{}, errors.NewInvalidInputError(errors.ErrCodeEmptyCV, "CV text is empty", nil)
	}
	if in.Lexicon == nil {
		in.Lexicon = lexicon.Default()
	}
	if in.MaxGaps <= 0 {
		in.MaxGaps = DefaultMaxGaps
	}
	if in.EmploymentGapMonths <= 0 {
		in.EmploymentGapMonths = DefaultEmploymentGapMonths
	}
	if in.Now.IsZero() {
		in.Now = time.Now()
	}

	report := Report{
		Gaps:           []types.Gap{},
		Contradictions: []types.Contradiction{},
		AutoFixes:      autoFixes(in.CVText, in.Lexicon, in.Now),
		AIWords:        aiWords(in.CVText, in.Lexicon),
	}

	// Employment gaps come first so skill gaps cannot crowd them out.
	gaps := employmentGaps(parseEntries(in.CVText, in.Now), in.EmploymentGapMonths, in.Now)
	gaps = append(gaps, skillGaps(in.CVText, requirementTerms(in.Job.Description, in.Findings.Role, in.Job, in.Lexicon))...)
	if len(gaps) > in.MaxGaps {
		gaps = gaps[:in.MaxGaps]
	}
	for i := range gaps {
		gaps[i].ID = fmt.Sprintf("gap-%d", i+1)
	}
	report.Gaps = append(report.Gaps, gaps...)

	if strings.TrimSpace(in.LinkedInText) != "" {
		for i, c := range contradictions(in.CVText, in.LinkedInText, in.Now) {
			c.ID = fmt.Sprintf("con-%d", i+1)
			report.Contradictions = append(report.Contradictions, c)
		}
	}

	return report, nil
}

// autoFixes lists date and heading corrections, one per distinct original,
// in order of appearance.
func autoFixes(cvText string, lex *lexicon.Lexicon, now time.Time) []types.AutoFix {
	type candidate struct {
		pos int
		fix types.AutoFix
	}
	var candidates []candidate

	for _, df := range dateFixes(cvText, now) {
		if df.original == df.replacement {
			continue
		}
		candidates = append(candidates, candidate{pos: df.pos, fix: types.AutoFix{
			Kind:        types.AutoFixDateFormat,
			Original:    df.original,
			Replacement: df.replacement,
			Description: fmt.Sprintf("Date %q standardized to %q", df.original, df.replacement),
		}})
	}

	offset := 0
	for _, line := range strings.Split(cvText, "\n") {
		heading := strings.TrimSpace(line)
		if std, ok := lex.StandardHeading(heading); ok && heading != std {
			candidates = append(candidates, candidate{pos: offset, fix: types.AutoFix{
				Kind:        types.AutoFixSectionHeading,
				Original:    heading,
				Replacement: std,
				Description: fmt.Sprintf("Section heading %q renamed to %q", heading, std),
			}})
		}
		offset += len(line) + 1
	}

	slices.SortStableFunc(candidates, func(a, b candidate) int { return cmp.Compare(a.pos, b.pos) })

	seen := make(map[string]bool)
	fixes := []types.AutoFix{}
	for _, c := range candidates {
		if seen[c.fix.Original] {
			continue
		}
		seen[c.fix.Original] = true
		c.fix.ID = fmt.Sprintf("fix-%d", len(fixes)+1)
		fixes = append(fixes, c.fix)
	}
	return fixes
}

// aiWords counts bounded, case-insensitive matches of the AI-word list, in list order.
func aiWords(cvText string, lex *lexicon.Lexicon) []types.AIWord {
	words := []types.AIWord{}
	for _, w := range lex.AIWords {
		if n := len(FindTerm(cvText, w)); n > 0 {
			words = append(words, types.AIWord{
				ID:    fmt.Sprintf("ai-%d", len(words)+1),
				Word:  w,
				Count: n,
			})
		}
	}
	return words
}

// ApplyAutoFix applies one fix to text and reports how many places changed.
// Heading fixes only touch lines that consist of the heading alone, and
// numeric date fixes only touch date ranges.
func ApplyAutoFix(text string, fix types.AutoFix) (string, int) {
	if fix.Kind == types.AutoFixSectionHeading {
		lines := strings.Split(text, "\n")
		n := 0
		for i, line := range lines {
			trimmed := strings.TrimSpace(line)
			if trimmed == fix.Original || strings.TrimSuffix(trimmed, ":") == fix.Original {
				lines[i] = strings.Replace(line, strings.TrimSuffix(trimmed, ":"), fix.Replacement, 1)
				n++
			}
		}
		return strings.Join(lines, "\n"), n
	}

	return applyDateFix(text, fix.Original, fix.Replacement)
}

// ScrubAIWords replaces every AI word in text with its plain alternative.
// It returns the new text and the distinct occurrences replaced, keyed by
// occurrence as written.
func ScrubAIWords(text string, lex *lexicon.Lexicon) (string, []Replacement) {
	var replaced []Replacement
	seen := make(map[string]bool)
	for _, w := range lex.AIWords {
		var occurrences []string
		text, occurrences = ReplaceTerm(text, w, lex.Replacement)
		for _, occ := range occurrences {
			if seen[occ] {
				continue
			}
			seen[occ] = true
			replaced = append(replaced, Replacement{Word: w, Original: occ, ChangedTo: lex.Replacement(occ)})
		}
	}
	return text, replaced
}

// Replacement is one AI word swapped for its plain alternative.
type Replacement struct {
	Word      string
	Original  string
	ChangedTo string
}
