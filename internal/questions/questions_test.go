package questions

import (
	"fmt"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"applysharp/internal/types"
)

var idPattern = regexp.MustCompile(`^[cg]-[0-9a-f]{8}(-\d+)?$`)

func sampleInput() ([]types.Gap, []types.Contradiction) {
	gaps := []types.Gap{
		{ID: "gap-1", Kind: types.GapKindEmployment, Term: "Dec 2019 to Jan 2021", Description: "Employment gap of 12 months between Dec 2019 and Jan 2021"},
		{ID: "gap-2", Kind: types.GapKindSkill, Term: "Kubernetes", Description: "Kubernetes is asked for in this role but does not appear in your CV"},
	}
	contradictions := []types.Contradiction{
		{ID: "con-1", Field: "title_and_dates", CVClaim: "Engineer, 2021–2022", LinkedInClaim: "Senior Engineer, 2021–present"},
	}
	return gaps, contradictions
}

func TestSynthesizeOrdering(t *testing.T) {
	gaps, contradictions := sampleInput()

	qs := Synthesize(gaps, contradictions, DefaultMax)

	require.Len(t, qs, 3)
	assert.Equal(t, "con-1", qs[0].SourceID)
	assert.Equal(t, "gap-1", qs[1].SourceID)
	assert.Equal(t, "gap-2", qs[2].SourceID)
	assert.Contains(t, qs[0].Question, "Senior Engineer, 2021–present")
	assert.Contains(t, qs[0].Question, "job title and dates")
	assert.Contains(t, qs[1].Question, "Dec 2019 to Jan 2021")
	assert.Contains(t, qs[2].Question, "Kubernetes")

	for _, q := range qs {
		assert.Equal(t, QuestionType, q.Type)
		assert.Regexp(t, idPattern, q.ID)
		assert.NotEmpty(t, q.Context)
	}
	assert.Equal(t, "c-", qs[0].ID[:2])
	assert.Equal(t, "g-", qs[1].ID[:2])
}

func TestSynthesizeIsDeterministic(t *testing.T) {
	gaps, contradictions := sampleInput()

	first := Synthesize(gaps, contradictions, DefaultMax)
	for range 10 {
		assert.Equal(t, first, Synthesize(gaps, contradictions, DefaultMax))
	}
}

func TestSynthesizeIDsIgnoreCosmeticDifferences(t *testing.T) {
	a := Synthesize([]types.Gap{{Kind: types.GapKindSkill, Term: "Kubernetes", Description: "Kubernetes  missing"}}, nil, 0)
	b := Synthesize([]types.Gap{{Kind: types.GapKindSkill, Term: "kubernetes", Description: "kubernetes missing"}}, nil, 0)

	require.Len(t, a, 1)
	require.Len(t, b, 1)
	assert.Equal(t, a[0].ID, b[0].ID)
}

func TestSynthesizeCollisionSuffix(t *testing.T) {
	gap := types.Gap{Kind: types.GapKindSkill, Term: "SQL", Description: "SQL missing"}

	qs := Synthesize([]types.Gap{gap, gap, gap}, nil, 0)

	require.Len(t, qs, 3)
	assert.Equal(t, qs[0].ID+"-2", qs[1].ID)
	assert.Equal(t, qs[0].ID+"-3", qs[2].ID)
}

func TestSynthesizeCap(t *testing.T) {
	tests := []struct {
		name     string
		gaps     int
		cons     int
		max      int
		expected int
		firstC   int
	}{
		{name: "default cap", gaps: 10, cons: 0, max: 0, expected: DefaultMax},
		{name: "contradictions first", gaps: 5, cons: 4, max: 6, expected: 6, firstC: 4},
		{name: "contradictions fill the cap", gaps: 3, cons: 8, max: 6, expected: 6, firstC: 6},
		{name: "under cap", gaps: 1, cons: 1, max: 6, expected: 2, firstC: 1},
		{name: "nothing detected", expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gaps []types.Gap
			for i := range tt.gaps {
				gaps = append(gaps, types.Gap{ID: fmt.Sprintf("gap-%d", i+1), Kind: types.GapKindSkill, Term: fmt.Sprintf("Skill%d", i)})
			}
			var cons []types.Contradiction
			for i := range tt.cons {
				cons = append(cons, types.Contradiction{ID: fmt.Sprintf("con-%d", i+1), Field: "dates", CVClaim: fmt.Sprintf("Job %d", i)})
			}

			qs := Synthesize(gaps, cons, tt.max)

			assert.NotNil(t, qs)
			require.Len(t, qs, tt.expected)
			for i, q := range qs {
				if i < tt.firstC {
					assert.Equal(t, "c-", q.ID[:2])
				} else {
					assert.Equal(t, "g-", q.ID[:2])
				}
			}
		})
	}
}
