package detect

import (
	"strings"
	"time"
	"unicode"
)

// experienceEntry is a dated position parsed from CV or LinkedIn text.
type experienceEntry struct {
	Claim   string // trimmed source line(s)
	Label   string // normalized title/employer
	Start   yearMonth
	End     yearMonth
	Ongoing bool
}

func (e experienceEntry) endIndex(now time.Time) int {
	if e.Ongoing {
		return now.Year()*12 + int(now.Month()) - 1
	}
	return e.End.index(true)
}

func (e experienceEntry) samePeriod(o experienceEntry) bool {
	if !e.Start.equal(o.Start) || e.Ongoing != o.Ongoing {
		return false
	}
	return e.Ongoing || e.End.equal(o.End)
}

// parseEntries finds every line carrying a date range. A range on a line of
// its own takes its label from the closest preceding non-empty line.
func parseEntries(text string, now time.Time) []experienceEntry {
	var entries []experienceEntry
	prev := ""

	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		m := dateRangeRe.FindStringSubmatchIndex(line)
		if m == nil {
			prev = line
			continue
		}

		start, ok := parseDateToken(line[m[2]:m[3]], now)
		if !ok {
			prev = line
			continue
		}
		entry := experienceEntry{Start: start, Claim: line}
		endTok := line[m[4]:m[5]]
		if isOngoing(endTok) {
			entry.Ongoing = true
		} else if end, ok := parseDateToken(endTok, now); ok {
			entry.End = end
		} else {
			prev = line
			continue
		}

		label := normalizeLabel(line[:m[0]] + " " + line[m[1]:])
		if label == "" && prev != "" {
			label = normalizeLabel(prev)
			entry.Claim = prev + " | " + line
		}
		entry.Label = label
		entries = append(entries, entry)
		prev = ""
	}
	return entries
}

// normalizeLabel lower-cases, drops punctuation and collapses whitespace.
func normalizeLabel(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '+' || r == '#' {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func labelOverlap(a, b string) int {
	set := make(map[string]bool)
	for _, t := range strings.Fields(a) {
		set[t] = true
	}
	n := 0
	for _, t := range strings.Fields(b) {
		if set[t] {
			n++
			delete(set, t)
		}
	}
	return n
}
