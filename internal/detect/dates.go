package detect

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var monthIndex = map[string]int{
	"jan": 1, "january": 1,
	"feb": 2, "february": 2,
	"mar": 3, "march": 3,
	"apr": 4, "april": 4,
	"may": 5,
	"jun": 6, "june": 6,
	"jul": 7, "july": 7,
	"aug": 8, "august": 8,
	"sep": 9, "sept": 9, "september": 9,
	"oct": 10, "october": 10,
	"nov": 11, "november": 11,
	"dec": 12, "december": 12,
}

var monthAbbrev = [...]string{"", "Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}

const (
	monthNamePattern = `(?:jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|june?|july?|aug(?:ust)?|sep(?:t(?:ember)?)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)\.?`
	dateTokenPattern = `(?:` + monthNamePattern + `\s+\d{4}|\d{1,2}/\d{4}|\d{1,2}/\d{2}|\d{4}-\d{1,2}|\d{4})`
)

var (
	dateRangeRe = regexp.MustCompile(`(?i)\b(` + dateTokenPattern + `)\s*(?:-|–|—|to|until)\s*(` + dateTokenPattern + `|present|current|now|today)\b`)

	fullMonthRe  = regexp.MustCompile(`(?i)\b(january|february|march|april|june|july|august|september|october|november|december)\s+(\d{4})\b`)
	slashDateRe  = regexp.MustCompile(`\b(\d{1,2})/(\d{4}|\d{2})\b`)
	isoMonthRe   = regexp.MustCompile(`\b(\d{4})-(\d{2})\b`)
	monthYearRe  = regexp.MustCompile(`(?i)^(` + monthNamePattern + `)\s+(\d{4})$`)
	slashTokenRe = regexp.MustCompile(`^(\d{1,2})/(\d{2}|\d{4})$`)
	isoTokenRe   = regexp.MustCompile(`^(\d{4})-(\d{1,2})$`)
	yearTokenRe  = regexp.MustCompile(`^(\d{4})$`)
)

// yearMonth is a calendar month. Month is zero when only the year is known.
type yearMonth struct {
	Year  int
	Month int
}

func (d yearMonth) index(end bool) int {
	m := d.Month
	if m == 0 {
		m = 1
		if end {
			m = 12
		}
	}
	return d.Year*12 + m - 1
}

func (d yearMonth) equal(o yearMonth) bool {
	if d.Year != o.Year {
		return false
	}
	return d.Month == 0 || o.Month == 0 || d.Month == o.Month
}

func (d yearMonth) String() string {
	if d.Month == 0 {
		return strconv.Itoa(d.Year)
	}
	return fmt.Sprintf("%s %d", monthAbbrev[d.Month], d.Year)
}

// expandYear turns a two-digit year into a four-digit one, preferring the
// most recent century that does not land more than a year in the future.
func expandYear(yy int, now time.Time) int {
	year := 2000 + yy
	if year > now.Year()+1 {
		year -= 100
	}
	return year
}

func parseDateToken(tok string, now time.Time) (yearMonth, bool) {
	tok = strings.TrimSpace(tok)

	if m := monthYearRe.FindStringSubmatch(tok); m != nil {
		month, ok := monthIndex[strings.TrimSuffix(strings.ToLower(m[1]), ".")]
		if !ok {
			return yearMonth{}, false
		}
		year, _ := strconv.Atoi(m[2])
		return yearMonth{Year: year, Month: month}, true
	}
	if m := slashTokenRe.FindStringSubmatch(tok); m != nil {
		month, _ := strconv.Atoi(m[1])
		if month < 1 || month > 12 {
			return yearMonth{}, false
		}
		year, _ := strconv.Atoi(m[2])
		if len(m[2]) == 2 {
			year = expandYear(year, now)
		}
		return yearMonth{Year: year, Month: month}, true
	}
	if m := isoTokenRe.FindStringSubmatch(tok); m != nil {
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		if month < 1 || month > 12 {
			return yearMonth{}, false
		}
		return yearMonth{Year: year, Month: month}, true
	}
	if m := yearTokenRe.FindStringSubmatch(tok); m != nil {
		year, _ := strconv.Atoi(m[1])
		return yearMonth{Year: year}, true
	}
	return yearMonth{}, false
}

func isOngoing(tok string) bool {
	switch strings.ToLower(strings.TrimSpace(tok)) {
	case "present", "current", "now", "today":
		return true
	}
	return false
}

type dateFix struct {
	pos         int
	original    string
	replacement string
}

// dateFixes finds dates written in a non-standard format, in order of
// appearance. Full month names are unambiguous; numeric forms such as 10/10
// or 2019-12 are only treated as dates inside a date range.
func dateFixes(text string, now time.Time) []dateFix {
	var fixes []dateFix

	for _, loc := range fullMonthRe.FindAllStringSubmatchIndex(text, -1) {
		month := monthIndex[strings.ToLower(text[loc[2]:loc[3]])]
		year := text[loc[4]:loc[5]]
		fixes = append(fixes, dateFix{
			pos:         loc[0],
			original:    text[loc[0]:loc[1]],
			replacement: monthAbbrev[month] + " " + year,
		})
	}

	ranges := dateRanges(text)
	numeric := func(re *regexp.Regexp, seps string) {
		for _, loc := range re.FindAllStringIndex(text, -1) {
			if !standalone(text, loc[0], loc[1], seps) || !within(ranges, loc[0], loc[1]) {
				continue
			}
			d, ok := parseDateToken(text[loc[0]:loc[1]], now)
			if !ok {
				continue
			}
			fixes = append(fixes, dateFix{pos: loc[0], original: text[loc[0]:loc[1]], replacement: d.String()})
		}
	}
	numeric(slashDateRe, "/")
	numeric(isoMonthRe, "-/")

	return fixes
}

// dateRanges returns the byte spans of the date ranges in text. Ranges never
// cross a line break.
func dateRanges(text string) [][2]int {
	var spans [][2]int
	offset := 0
	for _, line := range strings.Split(text, "\n") {
		for _, loc := range dateRangeRe.FindAllStringIndex(line, -1) {
			spans = append(spans, [2]int{offset + loc[0], offset + loc[1]})
		}
		offset += len(line) + 1
	}
	return spans
}

func within(spans [][2]int, start, end int) bool {
	for _, s := range spans {
		if start >= s[0] && end <= s[1] {
			return true
		}
	}
	return false
}

// applyDateFix rewrites fix.Original where dateFixes would have found it:
// anywhere for a full month name, only inside date ranges otherwise.
func applyDateFix(text, original, replacement string) (string, int) {
	if fullMonthRe.MatchString(original) {
		out, occurrences := ReplaceTerm(text, original, func(string) string { return replacement })
		return out, len(occurrences)
	}

	var b strings.Builder
	n, last := 0, 0
	for _, span := range dateRanges(text) {
		fixed, occurrences := ReplaceTerm(text[span[0]:span[1]], original, func(string) string { return replacement })
		b.WriteString(text[last:span[0]])
		b.WriteString(fixed)
		last = span[1]
		n += len(occurrences)
	}
	b.WriteString(text[last:])
	return b.String(), n
}

// standalone rejects matches that are part of a longer date such as
// 01/23/2024 or 2024-01-15. seps lists the separators of that longer form.
func standalone(text string, start, end int, seps string) bool {
	if start > 1 && strings.ContainsRune(seps, rune(text[start-1])) && isDigit(text[start-2]) {
		return false
	}
	if end+1 < len(text) && strings.ContainsRune(seps, rune(text[end])) && isDigit(text[end+1]) {
		return false
	}
	return true
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}
