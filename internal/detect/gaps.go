package detect

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode"

	"applysharp/internal/lexicon"
	"applysharp/internal/types"
)

var requirementMarkers = []string{
	"require", "must", "experience with", "experience in", "proficien", "knowledge of", "familiar",
	"expertise", "skills", "qualifications", "nice to have",
}

var bulletPrefixes = []string{"-", "*", "•", "·", "‣", "–", "+"}

// Capitalised words that open or decorate requirement lines without naming a skill.
var genericWords = map[string]bool{
	"experience": true, "strong": true, "excellent": true, "ability": true, "knowledge": true,
	"bachelor": true, "bachelors": true, "master": true, "masters": true, "degree": true,
	"required": true, "requirements": true, "preferred": true, "proficiency": true, "proficient": true,
	"familiarity": true, "understanding": true, "working": true, "solid": true, "proven": true,
	"demonstrated": true, "good": true, "great": true, "years": true, "year": true, "plus": true,
	"must": true, "should": true, "nice": true, "have": true, "you": true, "we": true, "our": true,
	"the": true, "and": true, "with": true, "team": true, "teams": true, "work": true, "skills": true,
	"qualifications": true, "responsibilities": true, "about": true, "role": true, "what": true,
	"who": true, "your": true, "will": true, "hands": true, "this": true, "that": true, "for": true,
	"ideally": true, "including": true, "such": true, "etc": true, "bonus": true, "equivalent": true,
}

var ignoredTokens = map[string]bool{
	"e.g.": true, "i.e.": true, "etc.": true, "and/or": true, "n/a": true, "us": true, "uk": true, "eu": true,
}

type termCandidate struct {
	term string
	pos  int
}

// requirementTerms collects candidate requirement terms in order of appearance.
func requirementTerms(jobDescription string, roleFindings []types.Finding, job types.Job, lex *lexicon.Lexicon) []termCandidate {
	var out []termCandidate

	sources := []string{jobDescription}
	for _, f := range roleFindings {
		sources = append(sources, f.Statement)
	}
	offset := 0
	for _, src := range sources {
		for _, skill := range lex.Skills {
			if locs := FindTerm(src, skill); len(locs) > 0 {
				out = append(out, termCandidate{term: src[locs[0][0]:locs[0][1]], pos: offset + locs[0][0]})
			}
		}
		offset += len(src) + 1
	}

	exclude := normalizeLabel(job.Company + " " + job.Role + " " + job.Location)
	lineStart := 0
	for _, line := range strings.Split(jobDescription, "\n") {
		if isRequirementLine(line) {
			for _, tok := range lineTerms(line) {
				if labelOverlap(exclude, normalizeLabel(tok.term)) > 0 {
					continue
				}
				out = append(out, termCandidate{term: tok.term, pos: lineStart + tok.pos})
			}
		}
		lineStart += len(line) + 1
	}

	slices.SortStableFunc(out, func(a, b termCandidate) int { return cmp.Compare(a.pos, b.pos) })
	return out
}

func isRequirementLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return false
	}
	for _, p := range bulletPrefixes {
		if strings.HasPrefix(trimmed, p) {
			return true
		}
	}
	if len(trimmed) > 2 && unicode.IsDigit(rune(trimmed[0])) && (trimmed[1] == '.' || trimmed[1] == ')') {
		return true
	}
	lower := strings.ToLower(trimmed)
	for _, m := range requirementMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

// lineTerms extracts technical tokens and runs of capitalised words from a
// requirement line. The first word of each sentence is skipped.
func lineTerms(line string) []termCandidate {
	var out []termCandidate
	var run []string
	runPos := 0
	sentenceStart := true

	flush := func() {
		if len(run) > 0 {
			out = append(out, termCandidate{term: strings.Join(run, " "), pos: runPos})
			run = nil
		}
	}

	searchFrom := 0
	for _, field := range strings.Fields(line) {
		idx := strings.Index(line[searchFrom:], field)
		pos := searchFrom + max(idx, 0)
		searchFrom = pos + len(field)

		endsSentence := strings.HasSuffix(field, ".") || strings.HasSuffix(field, ":") || strings.HasSuffix(field, ";")
		tok := strings.Trim(field, ",;:()[]\"'!?")
		tok = strings.TrimSuffix(tok, ".")

		switch {
		case tok == "" || slices.Contains(bulletPrefixes, tok) || ignoredTokens[strings.ToLower(field)]:
			flush()
		case isTechnicalToken(tok):
			flush()
			out = append(out, termCandidate{term: tok, pos: pos})
		case !sentenceStart && isCapitalisedTerm(tok):
			if len(run) == 0 {
				runPos = pos
			}
			run = append(run, tok)
			if len(run) == 3 {
				flush()
			}
		default:
			flush()
		}

		sentenceStart = endsSentence || (sentenceStart && (tok == "" || slices.Contains(bulletPrefixes, tok)))
		if endsSentence {
			flush()
		}
	}
	flush()
	return out
}

// isTechnicalToken matches tokens such as C++, C#, CI/CD, Node.js, S3 or AWS.
func isTechnicalToken(tok string) bool {
	letters, upper := 0, 0
	special := false
	for _, r := range tok {
		switch {
		case unicode.IsLetter(r):
			letters++
			if unicode.IsUpper(r) {
				upper++
			}
		case unicode.IsDigit(r), r == '+', r == '#', r == '.', r == '/':
			special = true
		}
	}
	if letters == 0 || ignoredTokens[strings.ToLower(tok)] {
		return false
	}
	if special {
		return true
	}
	return letters >= 2 && upper == letters
}

func isCapitalisedTerm(tok string) bool {
	r := []rune(tok)
	if len(r) < 3 || !unicode.IsUpper(r[0]) {
		return false
	}
	return !genericWords[strings.ToLower(tok)]
}

// skillGaps returns requirement terms with no bounded match in the CV.
func skillGaps(cvText string, candidates []termCandidate) []types.Gap {
	seen := make(map[string]bool)
	var gaps []types.Gap
	for _, c := range candidates {
		key := strings.ToLower(c.term)
		if seen[key] {
			continue
		}
		seen[key] = true
		if ContainsTerm(cvText, c.term) {
			continue
		}
		gaps = append(gaps, types.Gap{
			Kind:        types.GapKindSkill,
			Term:        c.term,
			Description: fmt.Sprintf("%s is asked for in this role but does not appear in your CV", c.term),
		})
	}
	return gaps
}

// employmentGaps reports breaks longer than minMonths between consecutive CV entries.
func employmentGaps(entries []experienceEntry, minMonths int, now time.Time) []types.Gap {
	if len(entries) < 2 {
		return nil
	}
	sorted := slices.Clone(entries)
	slices.SortStableFunc(sorted, func(a, b experienceEntry) int {
		return cmp.Compare(a.Start.index(false), b.Start.index(false))
	})

	var gaps []types.Gap
	coveredUntil := sorted[0].endIndex(now)
	lastEnd := sorted[0]
	for _, e := range sorted[1:] {
		start := e.Start.index(false)
		if months := start - coveredUntil - 1; months > minMonths {
			gaps = append(gaps, types.Gap{
				Kind: types.GapKindEmployment,
				Term: fmt.Sprintf("%s to %s", endLabel(lastEnd), e.Start),
				Description: fmt.Sprintf("Employment gap of %d months between %s and %s",
					months, endLabel(lastEnd), e.Start),
			})
		}
		if end := e.endIndex(now); end > coveredUntil {
			coveredUntil = end
			lastEnd = e
		}
	}
	return gaps
}

func endLabel(e experienceEntry) string {
	if e.Ongoing {
		return "present"
	}
	return e.End.String()
}
