package detect

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// isWordRune reports whether r continues a word. Slashes count so that
// "1/23" never matches inside "11/23" or "01/23/2024".
func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '/'
}

// FindTerm returns the byte ranges of case-insensitive occurrences of term
// that are not embedded in a longer word.
func FindTerm(text, term string) [][]int {
	term = strings.TrimSpace(term)
	if term == "" || text == "" {
		return nil
	}
	re, err := regexp.Compile(`(?i)` + regexp.QuoteMeta(term))
	if err != nil {
		return nil
	}

	var out [][]int
	for _, loc := range re.FindAllStringIndex(text, -1) {
		if loc[0] > 0 {
			if r, _ := utf8.DecodeLastRuneInString(text[:loc[0]]); isWordRune(r) {
				continue
			}
		}
		if loc[1] < len(text) {
			if r, _ := utf8.DecodeRuneInString(text[loc[1]:]); isWordRune(r) {
				continue
			}
		}
		out = append(out, loc)
	}
	return out
}

// ContainsTerm reports whether term occurs in text as a whole word.
func ContainsTerm(text, term string) bool {
	return len(FindTerm(text, term)) > 0
}

// ReplaceTerm replaces every bounded occurrence of term. The replacement
// function receives the occurrence as written.
func ReplaceTerm(text, term string, replace func(occurrence string) string) (string, []string) {
	locs := FindTerm(text, term)
	if len(locs) == 0 {
		return text, nil
	}

	var b strings.Builder
	occurrences := make([]string, 0, len(locs))
	last := 0
	for _, loc := range locs {
		occurrence := text[loc[0]:loc[1]]
		b.WriteString(text[last:loc[0]])
		b.WriteString(replace(occurrence))
		occurrences = append(occurrences, occurrence)
		last = loc[1]
	}
	b.WriteString(text[last:])
	return b.String(), occurrences
}
