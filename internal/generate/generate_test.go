package generate

import (
	"context"
	stderrors "errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"applysharp/internal/ai"
	"applysharp/internal/config"
	"applysharp/internal/detect"
	"applysharp/internal/errors"
	"applysharp/internal/lexicon"
	"applysharp/internal/questions"
	"applysharp/internal/session"
	"applysharp/internal/types"
)

const testCV = "Profile\nPlatform engineer.\n\nExperience\nEngineer, Acme\n01/23 - 03/24\nSpearheaded the move to Kubernetes.\n"

type fakeDrafter struct {
	mu      sync.Mutex
	cvCalls int
	prompts []ai.PromptData

	cv       func(call int) (ai.CVDraft, error)
	letter   ai.CoverLetterDraft
	outreach ai.OutreachDraft
}

func (f *fakeDrafter) DraftCV(_ context.Context, data ai.PromptData) (ai.CVDraft, error) {
	f.mu.Lock()
	f.cvCalls++
	call := f.cvCalls
	f.prompts = append(f.prompts, data)
	f.mu.Unlock()
	return f.cv(call)
}

func (f *fakeDrafter) DraftCoverLetter(context.Context, ai.PromptData) (ai.CoverLetterDraft, error) {
	return f.letter, nil
}

func (f *fakeDrafter) DraftOutreach(context.Context, ai.PromptData) (ai.OutreachDraft, error) {
	return f.outreach, nil
}

func (f *fakeDrafter) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cvCalls
}

func goodCV(int) (ai.CVDraft, error) {
	return ai.CVDraft{
		ATSVersion:   "SUMMARY\nLeveraged Go to build the platform.",
		HumanVersion: "Summary\nBuilt the platform in Go.",
		ChangeLog: []ai.DraftChange{
			{Original: "Platform engineer.", ChangedTo: "Platform engineer running Kubernetes.", Reason: "keyword alignment", Ref: "gap-1"},
		},
	}, nil
}

func newFakeDrafter(cv func(int) (ai.CVDraft, error)) *fakeDrafter {
	return &fakeDrafter{
		cv:     cv,
		letter: ai.CoverLetterDraft{CoverLetter: "Dear Acme, I am passionate about platforms."},
		outreach: ai.OutreachDraft{
			LinkedInTips:        []types.LinkedInTip{{Section: "Headline", CurrentIssue: "Generic", RecommendedText: "Innovative platform engineer", Why: "Matches the role"}},
			ApplicationStrategy: "Message the platform lead directly.",
		},
	}
}

func newTestSession(t *testing.T, store *session.Store) (string, session.Data) {
	t.Helper()
	job := types.Job{
		Company:     "Acme",
		Role:        "Platform Engineer",
		Location:    "London",
		Description: "Requirements:\n- Experience with Kubernetes and Terraform\n",
	}
	report, err := detect.Detect(detect.Input{
		CVText:  testCV,
		Job:     job,
		Lexicon: lexicon.Default(),
		Now:     time.Date(2026, time.October, 17, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.NotEmpty(t, report.Gaps)

	data := session.Data{
		CVText:         testCV,
		Job:            job,
		Tips:           []types.Tip{{ID: "t-0badcafe", Text: "Use standard section headings", Source: "example.com"}},
		Gaps:           report.Gaps,
		Contradictions: report.Contradictions,
		AutoFixes:      report.AutoFixes,
		AIWords:        report.AIWords,
		Questions:      questions.Synthesize(report.Gaps, report.Contradictions, questions.DefaultMax),
	}
	id, err := store.Create(data)
	require.NoError(t, err)
	return id, data
}

func newTestEngine(t *testing.T, drafter Drafter) (*Engine, *session.Store) {
	t.Helper()
	store := session.NewStore(config.SessionConfig{TTL: time.Hour}, nil)
	t.Cleanup(store.Stop)
	lex, err := lexicon.NewStore("", nil)
	require.NoError(t, err)
	return NewEngine(store, drafter, lex, nil, nil), store
}

func errorCode(err error) string {
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

func TestGenerate(t *testing.T) {
	drafter := newFakeDrafter(goodCV)
	engine, store := newTestEngine(t, drafter)
	id, data := newTestSession(t, store)

	res, err := engine.Run(context.Background(), id, map[string]string{data.Questions[0].ID: "Two years on EKS"})
	require.NoError(t, err)

	out := res.Output
	assert.Contains(t, out.ChangeLog, types.ChangeLogEntry{Original: "01/23", ChangedTo: "Jan 2023", Reason: "date format standardization"})
	assert.Contains(t, out.ChangeLog, types.ChangeLogEntry{Original: "Profile", ChangedTo: "Summary", Reason: "section heading standardization"})
	assert.Contains(t, out.ChangeLog, types.ChangeLogEntry{Original: "Spearheaded", ChangedTo: "Led", Reason: "AI-word removal: spearheaded"})
	assert.Contains(t, out.ChangeLog, types.ChangeLogEntry{Original: "Leveraged", ChangedTo: "Used", Reason: "AI-word removal: leveraged"})

	assert.Equal(t, "SUMMARY\nUsed Go to build the platform.", out.CVATSVersion)
	assert.Equal(t, "Dear Acme, I am committed about platforms.", out.CoverLetter)
	assert.Equal(t, "New platform engineer", out.LinkedInTips[0].RecommendedText)
	assert.Equal(t, []string{"spearheaded", "leveraged"}, res.AIWordsRemoved)
	assert.Len(t, res.AutoFixesApplied, len(data.AutoFixes))
	assert.Equal(t, data.Tips, res.HeadsUpTips)

	prompt := drafter.prompts[0]
	assert.Contains(t, prompt.CVText, "Jan 2023 - Mar 2024")
	assert.Contains(t, prompt.CVText, "Led the move to Kubernetes.")
	assert.NotContains(t, prompt.CVText, "Spearheaded")
	assert.Equal(t, "Two years on EKS", prompt.Answers[0].Answer)
	for _, a := range prompt.Answers[1:] {
		assert.Equal(t, noAnswer, a.Answer)
	}

	_, err = store.Get(id)
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound), "session must be deleted after generation")
}

func TestGenerateChangeLogHasNoOrphans(t *testing.T) {
	engine, store := newTestEngine(t, newFakeDrafter(goodCV))
	id, data := newTestSession(t, store)

	out, err := engine.Generate(context.Background(), id, nil)
	require.NoError(t, err)

	labels := map[string]bool{}
	for _, g := range data.Gaps {
		labels[g.Description] = true
	}
	for _, entry := range out.ChangeLog {
		switch {
		case entry.Reason == reasonDateFormat, entry.Reason == reasonHeading:
		case strings.HasPrefix(entry.Reason, reasonAIWord):
		default:
			found := false
			for label := range labels {
				if strings.HasSuffix(entry.Reason, "("+label+")") {
					found = true
				}
			}
			assert.True(t, found, "entry %q cites no session fact", entry.Reason)
		}
	}
}

func TestGenerateTwice(t *testing.T) {
	engine, store := newTestEngine(t, newFakeDrafter(goodCV))
	id, _ := newTestSession(t, store)

	_, err := engine.Generate(context.Background(), id, nil)
	require.NoError(t, err)

	_, err = engine.Generate(context.Background(), id, nil)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeSessionConsumed))
}

func TestGenerateUnknownSession(t *testing.T) {
	engine, _ := newTestEngine(t, newFakeDrafter(goodCV))

	_, err := engine.Generate(context.Background(), "3f0e7c1a-8c1e-4a8e-9b7a-1d2c3b4a5f60", nil)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeSessionExpired))
}

func TestGenerateRetry(t *testing.T) {
	partial := errors.NewGenerationPartialFailureError(errors.ErrCodeInvalidSchema, "bad reply", nil)
	unknownRef := func(int) (ai.CVDraft, error) {
		draft, _ := goodCV(0)
		draft.ChangeLog[0].Ref = "gap-99"
		return draft, nil
	}

	tests := []struct {
		name          string
		cv            func(int) (ai.CVDraft, error)
		expectedCalls int
		expectedCode  string
	}{
		{
			name: "succeeds on retry",
			cv: func(call int) (ai.CVDraft, error) {
				if call == 1 {
					return ai.CVDraft{}, partial
				}
				return goodCV(call)
			},
			expectedCalls: 2,
		},
		{
			name:          "fails after one retry",
			cv:            func(int) (ai.CVDraft, error) { return ai.CVDraft{}, partial },
			expectedCalls: 2,
			expectedCode:  errors.ErrCodeInvalidSchema,
		},
		{
			name:          "unknown citation",
			cv:            unknownRef,
			expectedCalls: 2,
			expectedCode:  errors.ErrCodeUnknownCitation,
		},
		{
			name: "provider error fails the bundle",
			cv: func(int) (ai.CVDraft, error) {
				return ai.CVDraft{}, errors.NewAIError(errors.ErrCodeAIServiceFailed, "boom", nil)
			},
			expectedCalls: 2,
			expectedCode:  errors.ErrCodeArtifactFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			drafter := newFakeDrafter(tt.cv)
			engine, store := newTestEngine(t, drafter)
			id, _ := newTestSession(t, store)

			_, err := engine.Generate(context.Background(), id, nil)

			assert.Equal(t, tt.expectedCalls, drafter.calls())
			if tt.expectedCode == "" {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.True(t, errors.IsType(err, errors.ErrorTypeGenerationPartialFailure))
				assert.Equal(t, tt.expectedCode, errorCode(err))
			}

			_, err = store.Get(id)
			assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
		})
	}
}

// slowDrafter never answers the CV call before its context ends.
type slowDrafter struct {
	*fakeDrafter
}

func (s slowDrafter) DraftCV(ctx context.Context, data ai.PromptData) (ai.CVDraft, error) {
	s.mu.Lock()
	s.cvCalls++
	s.mu.Unlock()
	<-ctx.Done()
	return ai.CVDraft{}, errors.NewAIError(errors.ErrCodeAITimeout, "deadline", ctx.Err())
}

func TestGenerateBudget(t *testing.T) {
	drafter := slowDrafter{newFakeDrafter(goodCV)}
	store := session.NewStore(config.SessionConfig{TTL: time.Hour}, nil)
	t.Cleanup(store.Stop)
	lex, err := lexicon.NewStore("", nil)
	require.NoError(t, err)
	engine := NewEngine(store, drafter, lex, nil, nil, WithBudget(50*time.Millisecond))
	id, _ := newTestSession(t, store)

	start := time.Now()
	_, err = engine.Generate(context.Background(), id, nil)

	require.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.True(t, errors.IsType(err, errors.ErrorTypeGenerationPartialFailure))
	assert.Equal(t, errors.ErrCodeAITimeout, errorCode(err))
	assert.Equal(t, 1, drafter.calls(), "an expired budget is not retried")

	_, err = store.Get(id)
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
}

func TestUntracedLines(t *testing.T) {
	source := "Summary\nPlatform engineer.\nBuilt CI pipelines."
	log := []types.ChangeLogEntry{{Original: "Platform engineer.", ChangedTo: "Platform engineer running Kubernetes.", Reason: "keyword alignment"}}

	tests := []struct {
		name     string
		draft    string
		expected int
	}{
		{name: "unchanged", draft: source, expected: 0},
		{name: "whitespace and case only", draft: "SUMMARY\n  Platform   engineer.\n\nBuilt CI pipelines.", expected: 0},
		{name: "logged rewrite", draft: "Summary\nPlatform engineer running Kubernetes.\nBuilt CI pipelines.", expected: 0},
		{name: "silent rewrite", draft: "Summary\nPlatform engineer.\nOwned CI for 40 teams.", expected: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, untracedLines(source, tt.draft, log))
		})
	}
}

func TestSummarize(t *testing.T) {
	got := summarize(types.Findings{
		ATS:     []types.Finding{{Statement: "Acme uses Greenhouse", CitationURL: "https://example.com/a"}},
		Culture: []types.Finding{{Statement: "Remote first"}},
	})

	assert.Equal(t, "ATS and screening:\n- Acme uses Greenhouse (https://example.com/a)\nCompany culture:\n- Remote first", got)
	assert.Empty(t, summarize(types.Findings{}))
}
