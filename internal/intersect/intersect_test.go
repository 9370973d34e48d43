package intersect

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"applysharp/internal/config"
	"applysharp/internal/types"
)

func finding(c types.Container, statement, url string, confidence float64) types.Finding {
	return types.Finding{Container: c, Statement: statement, CitationURL: url, Confidence: confidence}
}

func TestIntersectRanksMultiContainerAgreementFirst(t *testing.T) {
	findings := types.Findings{
		ATS: []types.Finding{
			finding(types.ContainerATS, "Use standard section headings so ATS parsers read your resume", "https://www.indeed.com/ats", 0.7),
			finding(types.ContainerATS, "Avoid tables and text boxes in resume layouts", "https://jobscan.co/tables", 0.95),
		},
		Culture: []types.Finding{
			finding(types.ContainerCulture, "Acme recruiters skim resume headings and section order first", "https://acme.com/careers", 0.6),
		},
		Role: []types.Finding{
			finding(types.ContainerRole, "Data engineers should quantify pipeline throughput in resume bullets", "https://hbr.org/data", 0.8),
			finding(types.ContainerRole, "Standard resume section headings help parsers and recruiters", "https://www.linkedin.com/pulse", 0.65),
		},
	}

	tips := NewEngine(config.IntelConfig{}).Intersect(findings)
	require.NotEmpty(t, tips)

	lead := tips[0]
	assert.ElementsMatch(t, []types.Container{types.ContainerATS, types.ContainerCulture, types.ContainerRole}, lead.Containers)
	assert.Equal(t, "Use standard section headings so ATS parsers read your resume", lead.Text)
	assert.Equal(t, "indeed.com", lead.Source)
	assert.Equal(t, "https://www.indeed.com/ats", lead.SourceURL)
	assert.Equal(t, "Prioritised in CV summary and top third", lead.ActionTaken)

	// Single-container groups follow, strongest first.
	require.Len(t, tips, 3)
	assert.Equal(t, "Avoid tables and text boxes in resume layouts", tips[1].Text)
	assert.Equal(t, "Data engineers should quantify pipeline throughput in resume bullets", tips[2].Text)
}

func TestIntersectCapsAtTopN(t *testing.T) {
	var findings types.Findings
	for i := range 10 {
		findings.Role = append(findings.Role, finding(types.ContainerRole,
			fmt.Sprintf("unique%d topic%d phrase%d", i, i, i), fmt.Sprintf("https://example.com/%d", i), 0.5))
	}

	tips := NewEngine(config.IntelConfig{TopN: 5}).Intersect(findings)
	assert.Len(t, tips, 5)
	assert.Equal(t, "unique0 topic0 phrase0", tips[0].Text, "ties resolve by first appearance")
}

func TestIntersectIsDeterministic(t *testing.T) {
	findings := types.Findings{
		ATS:     []types.Finding{finding(types.ContainerATS, "keyword matching resume parsing systems", "https://a.com", 0.5)},
		Culture: []types.Finding{finding(types.ContainerCulture, "resume parsing keyword screens at Acme", "https://b.com", 0.5)},
		Role:    []types.Finding{finding(types.ContainerRole, "cloud platform certifications matter", "https://c.com", 0.5)},
	}

	engine := NewEngine(config.IntelConfig{})
	first := engine.Intersect(findings)
	for range 5 {
		assert.Equal(t, first, engine.Intersect(findings))
	}
}

func TestIntersectEmpty(t *testing.T) {
	tips := NewEngine(config.IntelConfig{}).Intersect(types.Findings{})
	assert.NotNil(t, tips)
	assert.Empty(t, tips)
}

func TestKeywords(t *testing.T) {
	kw := Keywords("The C++ and Go developer, with AWS experience!")
	assert.True(t, kw["c++"])
	assert.True(t, kw["developer"])
	assert.True(t, kw["aws"])
	assert.False(t, kw["the"])
	assert.False(t, kw["go"], "tokens under three characters are dropped")
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("resume headings", "standard resume headings matter"))
	assert.Equal(t, 0.0, Similarity("kubernetes clusters", "cover letter tone"))
}
