package detect

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"applysharp/internal/errors"
	"applysharp/internal/lexicon"
	"applysharp/internal/types"
)

var fixedNow = time.Date(2026, time.October, 17, 0, 0, 0, 0, time.UTC)

func testJob() types.Job {
	return types.Job{
		Company:  "Acme",
		Role:     "Platform Engineer",
		Location: "London",
		Description: "About the role\n" +
			"Requirements:\n" +
			"- 5+ years experience with Kubernetes and Terraform\n" +
			"- Strong SQL skills\n",
	}
}

func TestDetectEmptyCV(t *testing.T) {
	for _, text := range []string{"", "   \n\t "} {
		_, err := Detect(Input{CVText: text, Now: fixedNow})
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeInvalidInput))
	}
}

func TestDetectDateAutoFix(t *testing.T) {
	cv := "Experience\nSoftware Engineer, Acme\n01/23 - 03/24\n"

	report, err := Detect(Input{CVText: cv, Now: fixedNow})
	require.NoError(t, err)

	require.Len(t, report.AutoFixes, 2)
	first := report.AutoFixes[0]
	assert.Equal(t, "fix-1", first.ID)
	assert.Equal(t, types.AutoFixDateFormat, first.Kind)
	assert.Equal(t, "01/23", first.Original)
	assert.Equal(t, "Jan 2023", first.Replacement)
	assert.Equal(t, `Date "01/23" standardized to "Jan 2023"`, first.Description)
	assert.Equal(t, "Mar 2024", report.AutoFixes[1].Replacement)

	fixed, n := ApplyAutoFix(cv, first)
	assert.Equal(t, 1, n)
	assert.Contains(t, fixed, "Jan 2023 - 03/24")
}

func TestDateFixesSkipLongerDates(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected []string
	}{
		{name: "full date with slashes", text: "Started 01/23/2024", expected: nil},
		{name: "iso day", text: "Started 2024-01-15", expected: nil},
		{name: "iso month outside a range", text: "Started 2024-01", expected: nil},
		{name: "iso month range", text: "2024-01 - 2024-06", expected: []string{"Jan 2024", "Jun 2024"}},
		{name: "score", text: "Rated 10/10 by customers", expected: nil},
		{name: "ratio", text: "Split traffic 50/50", expected: nil},
		{name: "bare year-number", text: "cut build time 2019-12 percent", expected: nil},
		{name: "full month name", text: "September 2022 - May 2023", expected: []string{"Sep 2022"}},
		{name: "slash range", text: "01/23-03/24", expected: []string{"Jan 2023", "Mar 2024"}},
		{name: "invalid month", text: "13/22", expected: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for _, f := range dateFixes(tt.text, fixedNow) {
				got = append(got, f.replacement)
			}
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestDateFixesLeaveNumbersInProse(t *testing.T) {
	cv := "Experience\nEngineer, Acme\nJan 2022 - 01/23\nRated 10/10 by users, split traffic 50/50, shipped 01/23 release notes.\n"

	report, err := Detect(Input{CVText: cv, Now: fixedNow})
	require.NoError(t, err)

	require.Len(t, report.AutoFixes, 1)
	fix := report.AutoFixes[0]
	assert.Equal(t, "01/23", fix.Original)
	assert.Equal(t, "Jan 2023", fix.Replacement)

	fixed, n := ApplyAutoFix(cv, fix)
	assert.Equal(t, 1, n)
	assert.Contains(t, fixed, "Jan 2022 - Jan 2023")
	assert.Contains(t, fixed, "Rated 10/10 by users, split traffic 50/50, shipped 01/23 release notes.")
}

func TestDetectUsesInputClock(t *testing.T) {
	cv := "Experience\nEngineer, Acme\n06/27 - present\n"

	tests := []struct {
		name     string
		now      time.Time
		expected string
	}{
		{name: "recent century", now: fixedNow, expected: "Jun 2027"},
		{name: "earlier clock", now: time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC), expected: "Jun 1927"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report, err := Detect(Input{CVText: cv, Now: tt.now})
			require.NoError(t, err)
			require.Len(t, report.AutoFixes, 1)
			assert.Equal(t, tt.expected, report.AutoFixes[0].Replacement)
		})
	}
}

func TestExpandYear(t *testing.T) {
	assert.Equal(t, 2023, expandYear(23, fixedNow))
	assert.Equal(t, 2027, expandYear(27, fixedNow))
	assert.Equal(t, 1998, expandYear(98, fixedNow))
}

func TestDetectHeadingAutoFix(t *testing.T) {
	cv := "Profile\nPlatform engineer.\n\nWork Experience:\nEngineer at Acme\n\nSkills\nGo\n"

	report, err := Detect(Input{CVText: cv, Now: fixedNow})
	require.NoError(t, err)

	require.Len(t, report.AutoFixes, 2)
	assert.Equal(t, types.AutoFixSectionHeading, report.AutoFixes[0].Kind)
	assert.Equal(t, "Profile", report.AutoFixes[0].Original)
	assert.Equal(t, "Summary", report.AutoFixes[0].Replacement)
	assert.Equal(t, `Section heading "Profile" renamed to "Summary"`, report.AutoFixes[0].Description)
	assert.Equal(t, "Work Experience:", report.AutoFixes[1].Original)

	fixed, n := ApplyAutoFix(cv, report.AutoFixes[1])
	assert.Equal(t, 1, n)
	assert.Contains(t, fixed, "\nExperience:\n")
	assert.NotContains(t, fixed, "Work Experience")
}

func TestDetectContradictions(t *testing.T) {
	tests := []struct {
		name     string
		cv       string
		linkedIn string
		expected []types.Contradiction
	}{
		{
			name:     "title and dates differ",
			cv:       "Engineer, 2021–2022",
			linkedIn: "Senior Engineer, 2021–present",
			expected: []types.Contradiction{{
				ID:            "con-1",
				Field:         "title_and_dates",
				CVClaim:       "Engineer, 2021–2022",
				LinkedInClaim: "Senior Engineer, 2021–present",
			}},
		},
		{
			name:     "title only",
			cv:       "Analyst, Mar 2019 - Jun 2021",
			linkedIn: "Senior Analyst, Mar 2019 - Jun 2021",
			expected: []types.Contradiction{{
				ID:            "con-1",
				Field:         "title",
				CVClaim:       "Analyst, Mar 2019 - Jun 2021",
				LinkedInClaim: "Senior Analyst, Mar 2019 - Jun 2021",
			}},
		},
		{
			name:     "dates only with label on previous line",
			cv:       "Designer at Beta\n2018 - 2020",
			linkedIn: "Designer at Beta\n2018 - 2021",
			expected: []types.Contradiction{{
				ID:            "con-1",
				Field:         "dates",
				CVClaim:       "Designer at Beta | 2018 - 2020",
				LinkedInClaim: "Designer at Beta | 2018 - 2021",
			}},
		},
		{
			name:     "consistent history",
			cv:       "Engineer, Jan 2020 - present",
			linkedIn: "Engineer, Jan 2020 - present",
			expected: []types.Contradiction{},
		},
		{
			name:     "no shared start year",
			cv:       "Engineer, 2015 - 2017",
			linkedIn: "Engineer, 2019 - 2021",
			expected: []types.Contradiction{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report, err := Detect(Input{CVText: tt.cv, LinkedInText: tt.linkedIn, Now: fixedNow})
			require.NoError(t, err)
			assert.Equal(t, tt.expected, report.Contradictions)
		})
	}
}

func TestDetectNoLinkedIn(t *testing.T) {
	report, err := Detect(Input{CVText: "Engineer, 2021 - 2022", Now: fixedNow})
	require.NoError(t, err)
	assert.NotNil(t, report.Contradictions)
	assert.Empty(t, report.Contradictions)
}

func TestDetectAIWords(t *testing.T) {
	cv := "Spearheaded the platform rewrite. Leveraged Go. Also spearheaded hiring."

	report, err := Detect(Input{CVText: cv, Now: fixedNow})
	require.NoError(t, err)

	assert.Equal(t, []types.AIWord{
		{ID: "ai-1", Word: "spearheaded", Count: 2},
		{ID: "ai-2", Word: "leveraged", Count: 1},
	}, report.AIWords)
}

func TestScrubAIWords(t *testing.T) {
	text := "Spearheaded the rewrite and spearheaded hiring. We leverage data."

	scrubbed, replaced := ScrubAIWords(text, lexicon.Default())

	assert.Equal(t, "Led the rewrite and led hiring. We use data.", scrubbed)
	assert.Equal(t, []Replacement{
		{Word: "spearheaded", Original: "Spearheaded", ChangedTo: "Led"},
		{Word: "spearheaded", Original: "spearheaded", ChangedTo: "led"},
		{Word: "leverage", Original: "leverage", ChangedTo: "use"},
	}, replaced)
	assert.NotContains(t, scrubbed, "pearheaded")
}

func TestDetectSkillGaps(t *testing.T) {
	cv := "Summary\nPlatform engineer working with Terraform and Go.\n"

	report, err := Detect(Input{CVText: cv, Job: testJob(), Now: fixedNow})
	require.NoError(t, err)

	var terms []string
	for _, g := range report.Gaps {
		assert.Equal(t, types.GapKindSkill, g.Kind)
		terms = append(terms, g.Term)
	}
	assert.Equal(t, []string{"Kubernetes", "SQL"}, terms)
	assert.Equal(t, "gap-1", report.Gaps[0].ID)
	assert.Equal(t, "Kubernetes is asked for in this role but does not appear in your CV", report.Gaps[0].Description)
}

func TestDetectSkillGapsFromRoleFindings(t *testing.T) {
	job := types.Job{Company: "Acme", Role: "Analyst", Location: "Leeds", Description: "Join our analytics team."}
	findings := types.Findings{Role: []types.Finding{{
		Container: types.ContainerRole,
		Statement: "Analysts are expected to know Tableau well",
	}}}

	report, err := Detect(Input{CVText: "Analyst using Excel", Job: job, Findings: findings, Now: fixedNow})
	require.NoError(t, err)

	require.Len(t, report.Gaps, 1)
	assert.Equal(t, "Tableau", report.Gaps[0].Term)
}

func TestDetectEmploymentGaps(t *testing.T) {
	cv := "Engineer at Acme, Jan 2018 - Dec 2019\nEngineer at Beta, Jan 2021 - present\n"

	report, err := Detect(Input{CVText: cv, Now: fixedNow})
	require.NoError(t, err)

	require.Len(t, report.Gaps, 1)
	gap := report.Gaps[0]
	assert.Equal(t, types.GapKindEmployment, gap.Kind)
	assert.Equal(t, "Employment gap of 12 months between Dec 2019 and Jan 2021", gap.Description)
}

func TestDetectShortBreaksAreNotGaps(t *testing.T) {
	cv := "Engineer at Acme, Jan 2018 - Dec 2019\nEngineer at Beta, Apr 2020 - present\n"

	report, err := Detect(Input{CVText: cv, Now: fixedNow})
	require.NoError(t, err)
	assert.Empty(t, report.Gaps)
}

func TestDetectCapsGaps(t *testing.T) {
	job := types.Job{
		Company:     "Acme",
		Role:        "Engineer",
		Location:    "Remote",
		Description: "Requirements:\n- Kafka, Spark, Airflow, Snowflake and GraphQL\n",
	}
	cv := "Engineer at Acme, 2015 - 2016\nEngineer at Beta, 2019 - present\n"

	report, err := Detect(Input{CVText: cv, Job: job, MaxGaps: 3, Now: fixedNow})
	require.NoError(t, err)

	require.Len(t, report.Gaps, 3)
	assert.Equal(t, types.GapKindEmployment, report.Gaps[0].Kind)
	for i, g := range report.Gaps {
		assert.Equal(t, []string{"gap-1", "gap-2", "gap-3"}[i], g.ID)
	}
}

func TestDetectIsDeterministic(t *testing.T) {
	in := Input{
		CVText:       "Profile\nSpearheaded Terraform work.\nEngineer, 01/21 - 03/22\nEngineer at Beta, 2023 - present\n",
		LinkedInText: "Lead Engineer, 2021 - 2022\n",
		Job:          testJob(),
		Now:          fixedNow,
	}

	first, err := Detect(in)
	require.NoError(t, err)
	for range 5 {
		again, err := Detect(in)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestFindTerm(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		term     string
		expected [][]int
	}{
		{name: "word boundaries", text: "Go, golang and Google", term: "go", expected: [][]int{{0, 2}}},
		{name: "symbols", text: "I write C++ daily", term: "c++", expected: [][]int{{8, 11}}},
		{name: "slash dates", text: "11/23 and 1/23", term: "1/23", expected: [][]int{{10, 14}}},
		{name: "multi word", text: "Strong Communication Skills!", term: "strong communication skills", expected: [][]int{{0, 27}}},
		{name: "empty term", text: "anything", term: " ", expected: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FindTerm(tt.text, tt.term))
		})
	}
}
