package pipeline

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"applysharp/internal/config"
	"applysharp/internal/errors"
	"applysharp/internal/generate"
	"applysharp/internal/lexicon"
	"applysharp/internal/session"
	"applysharp/internal/types"
)

const sampleCV = "Summary\nPlatform engineer.\n\nExperience\nEngineer, Acme\n01/23 - 03/24\nSpearheaded the move to Kubernetes.\n"

type fakeExtractor struct {
	texts map[string]string
	err   error
}

func (f *fakeExtractor) ExtractText(_ context.Context, label string, data []byte) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.texts[string(data)], nil
}

type fakeGatherer struct {
	mu   sync.Mutex
	jobs []types.Job
	err  error
}

func (f *fakeGatherer) Gather(_ context.Context, job types.Job) (types.Findings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs = append(f.jobs, job)
	if f.err != nil {
		return types.Findings{}, f.err
	}
	return types.Findings{
		ATS: []types.Finding{{Container: types.ContainerATS, Statement: "Acme screens CVs with Greenhouse", Confidence: 0.8}},
	}, nil
}

type fakeIntersector struct{}

func (fakeIntersector) Intersect(types.Findings) []types.Tip {
	return []types.Tip{{ID: "t-12345678", Text: "Use standard headings", Source: "example.com"}}
}

type fakeGenerator struct {
	id      string
	answers map[string]string
}

func (f *fakeGenerator) Run(_ context.Context, id string, answers map[string]string) (*generate.Result, error) {
	f.id, f.answers = id, answers
	return &generate.Result{
		Output:           types.GenerationOutput{CVATSVersion: "ATS", CoverLetter: "Dear Acme"},
		HeadsUpTips:      []types.Tip{},
		AutoFixesApplied: []string{"fix"},
		AIWordsRemoved:   []string{"spearheaded"},
	}, nil
}

type fixture struct {
	svc       *Service
	sessions  *session.Store
	extractor *fakeExtractor
	gatherer  *fakeGatherer
	generator *fakeGenerator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	sessions := session.NewStore(config.SessionConfig{TTL: time.Hour}, nil)
	t.Cleanup(sessions.Stop)
	lex, err := lexicon.NewStore("", nil)
	require.NoError(t, err)

	f := &fixture{
		sessions:  sessions,
		extractor: &fakeExtractor{texts: map[string]string{"cv.pdf": sampleCV, "li.pdf": "Engineer, Acme\nJan 2023 - Mar 2024\n"}},
		gatherer:  &fakeGatherer{},
		generator: &fakeGenerator{},
	}
	f.svc = New(Deps{
		Extractor:   f.extractor,
		Gatherer:    f.gatherer,
		Intersector: fakeIntersector{},
		Lexicon:     lex,
		Sessions:    sessions,
		Generator:   f.generator,
	}, &config.Config{}, nil, nil)
	f.svc.now = func() time.Time { return time.Date(2026, time.October, 17, 0, 0, 0, 0, time.UTC) }
	return f
}

func sampleJob() types.Job {
	return types.Job{
		Company:     "Acme",
		Role:        "Platform Engineer",
		Location:    "London",
		Description: "Requirements:\n- Experience with Kubernetes and Terraform\n",
	}
}

func TestAnalyze(t *testing.T) {
	f := newFixture(t)

	resp, err := f.svc.Analyze(context.Background(), AnalyzeRequest{Job: sampleJob(), CV: []byte("cv.pdf"), LinkedIn: []byte("li.pdf")})
	require.NoError(t, err)

	assert.NotEmpty(t, resp.SessionID)
	assert.Equal(t, 1, f.sessions.Len())
	assert.Contains(t, resp.AIWordsDetected, "spearheaded")
	assert.Contains(t, resp.AutoFixes, `Date "01/23" standardized to "Jan 2023"`)
	assert.NotEmpty(t, resp.GapsFound)
	assert.Len(t, resp.HeadsUpTips, 1)
	assert.NotNil(t, resp.LinkedInContradictions)
	require.NotEmpty(t, resp.Questions)
	for _, q := range resp.Questions {
		assert.Equal(t, "text", q.Type)
	}

	sess, err := f.sessions.Get(resp.SessionID)
	require.NoError(t, err)
	assert.Equal(t, sampleCV, sess.CVText)
	assert.Equal(t, resp.Questions, sess.Questions)
}

func TestAnalyzeValidation(t *testing.T) {
	tests := []struct {
		name string
		job  func(j *types.Job)
		cv   []byte
	}{
		{name: "missing company", job: func(j *types.Job) { j.Company = "  " }, cv: []byte("cv.pdf")},
		{name: "missing description", job: func(j *types.Job) { j.Description = "" }, cv: []byte("cv.pdf")},
		{name: "missing cv", job: func(*types.Job) {}, cv: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			job := sampleJob()
			tt.job(&job)

			_, err := f.svc.Analyze(context.Background(), AnalyzeRequest{Job: job, CV: tt.cv})
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeInvalidInput))
			assert.Equal(t, "All fields are required.", err.(*errors.AppError).Message)
			assert.Empty(t, f.gatherer.jobs)
			assert.Equal(t, 0, f.sessions.Len())
		})
	}
}

func TestAnalyzeTruncatesFields(t *testing.T) {
	f := newFixture(t)
	job := sampleJob()
	job.Company = strings.Repeat("a", 400)
	job.Description = strings.Repeat("Kubernetes ", 1000)

	_, err := f.svc.Analyze(context.Background(), AnalyzeRequest{Job: job, CV: []byte("cv.pdf")})
	require.NoError(t, err)

	require.Len(t, f.gatherer.jobs, 1)
	assert.Len(t, f.gatherer.jobs[0].Company, 300)
	assert.Len(t, f.gatherer.jobs[0].Description, 8000)
}

func TestAnalyzeFailures(t *testing.T) {
	t.Run("unreadable cv", func(t *testing.T) {
		f := newFixture(t)
		f.extractor.err = errors.NewInvalidInputError(errors.ErrCodeUnreadablePDF, "Could not read text from CV.", nil)

		_, err := f.svc.Analyze(context.Background(), AnalyzeRequest{Job: sampleJob(), CV: []byte("cv.pdf")})
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeInvalidInput))
		assert.Empty(t, f.gatherer.jobs)
	})

	t.Run("no intelligence", func(t *testing.T) {
		f := newFixture(t)
		f.gatherer.err = errors.NewIntelligenceUnavailableError(errors.ErrCodeNoIntelligence, "no containers", nil)

		_, err := f.svc.Analyze(context.Background(), AnalyzeRequest{Job: sampleJob(), CV: []byte("cv.pdf")})
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeIntelligenceUnavailable))
		assert.Equal(t, 0, f.sessions.Len())
	})
}

func TestGenerate(t *testing.T) {
	tests := []struct {
		name      string
		sessionID string
		wantErr   bool
	}{
		{name: "valid", sessionID: " 3f0e7c1a-8c1e-4a8e-9b7a-1d2c3b4a5f60 "},
		{name: "missing", sessionID: "", wantErr: true},
		{name: "malformed", sessionID: "not-a-session", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			answers := map[string]string{"g-1234abcd": "Two years"}

			resp, err := f.svc.Generate(context.Background(), types.GenerateRequest{SessionID: tt.sessionID, UserAnswers: answers})
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsType(err, errors.ErrorTypeInvalidInput))
				assert.Empty(t, f.generator.id)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "complete", resp.Status)
			assert.Equal(t, "Dear Acme", resp.Output.CoverLetter)
			assert.Equal(t, []string{"spearheaded"}, resp.AIWordsRemoved)
			assert.Equal(t, "3f0e7c1a-8c1e-4a8e-9b7a-1d2c3b4a5f60", f.generator.id)
			assert.Equal(t, answers, f.generator.answers)
		})
	}
}
