// Package questions turns detected gaps and CV/LinkedIn contradictions into
// clarifying questions for the applicant.
package questions

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"applysharp/internal/types"
)

// DefaultMax caps the number of questions asked per analysis.
const DefaultMax = 6

// QuestionType is the answer format of every question.
const QuestionType = "text"

var fieldLabels = map[string]string{
	"title":           "job title",
	"dates":           "dates",
	"title_and_dates": "job title and dates",
}

// Synthesize builds at most limit questions: one per contradiction, then one
// per gap. The output depends only on its input.
func Synthesize(gaps []types.Gap, contradictions []types.Contradiction, limit int) []types.Question {
	if limit <= 0 {
		limit = DefaultMax
	}

	out := []types.Question{}
	used := make(map[string]bool)

	for _, c := range contradictions {
		if len(out) == limit {
			return out
		}
		q := contradictionQuestion(c)
		q.ID = uniqueID("c-", normalize(c.Field, c.CVClaim, c.LinkedInClaim), used)
		out = append(out, q)
	}

	for _, g := range gaps {
		if len(out) == limit {
			return out
		}
		q := gapQuestion(g)
		q.ID = uniqueID("g-", normalize(string(g.Kind), g.Term, g.Description), used)
		out = append(out, q)
	}

	return out
}

func contradictionQuestion(c types.Contradiction) types.Question {
	label, ok := fieldLabels[c.Field]
	if !ok {
		label = "details"
	}
	return types.Question{
		Question: fmt.Sprintf("Your CV says %q but your LinkedIn says %q. Which %s is correct?", c.CVClaim, c.LinkedInClaim, label),
		Context:  fmt.Sprintf("Recruiters compare both profiles, so the tailored CV will use the %s you confirm.", label),
		Type:     QuestionType,
		SourceID: c.ID,
	}
}

func gapQuestion(g types.Gap) types.Question {
	q := types.Question{Type: QuestionType, SourceID: g.ID}
	switch g.Kind {
	case types.GapKindEmployment:
		q.Question = fmt.Sprintf("Your CV shows a break in employment (%s). What were you doing during that time?", g.Term)
		q.Context = "A short, honest line about a gap answers the question before a recruiter asks it."
	default:
		q.Question = fmt.Sprintf("The role asks for %s. Do you have real experience with it that is not on your CV?", g.Term)
		q.Context = "Role keywords that are missing from the CV lower the ATS match; only confirmed experience will be added."
	}
	return q
}

// normalize lower-cases and collapses whitespace so cosmetic differences do
// not change an id.
func normalize(parts ...string) string {
	for i, p := range parts {
		parts[i] = strings.Join(strings.Fields(strings.ToLower(p)), " ")
	}
	return strings.Join(parts, "|")
}

func uniqueID(prefix, content string, used map[string]bool) string {
	sum := sha256.Sum256([]byte(content))
	base := prefix + hex.EncodeToString(sum[:])[:8]
	id := base
	for n := 2; used[id]; n++ {
		id = fmt.Sprintf("%s-%d", base, n)
	}
	used[id] = true
	return id
}
