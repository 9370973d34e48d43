// Package pipeline runs the two user-facing operations: analyze, which
// researches the job and inspects the CV, and generate, which turns the
// analysis plus the applicant's answers into the artifact bundle.
package pipeline

import (
	"context"
	stderrors "errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/attribute"

	"applysharp/internal/config"
	"applysharp/internal/detect"
	"applysharp/internal/errors"
	"applysharp/internal/extract"
	"applysharp/internal/generate"
	"applysharp/internal/observability"
	"applysharp/internal/questions"
	"applysharp/internal/session"
	"applysharp/internal/types"
)

const (
	defaultMaxField = 300
	defaultMaxJD    = 8000

	msgAllFieldsRequired = "All fields are required."
	statusComplete       = "complete"
)

// Gatherer researches a job. intel.Gatherer implements it.
type Gatherer interface {
	Gather(ctx context.Context, job types.Job) (types.Findings, error)
}

// Intersector ranks findings into tips. intersect.Engine implements it.
type Intersector interface {
	Intersect(findings types.Findings) []types.Tip
}

// Generator produces the bundle for a session. generate.Engine implements it.
type Generator interface {
	Run(ctx context.Context, id string, answers map[string]string) (*generate.Result, error)
}

// Deps are the collaborators of a Service.
type Deps struct {
	Extractor   extract.Extractor
	Gatherer    Gatherer
	Intersector Intersector
	Lexicon     generate.LexiconSource
	Sessions    *session.Store
	Generator   Generator
}

// AnalyzeRequest is an analyze call with the raw uploaded documents.
type AnalyzeRequest struct {
	Job      types.Job
	CV       []byte
	LinkedIn []byte
}

// Service orchestrates analyze and generate
type Service struct {
	deps     Deps
	validate *validator.Validate
	app      config.AppConfig
	detect   config.DetectConfig
	metrics  *observability.Metrics
	logger   *errors.Logger
	now      func() time.Time
}

// New creates the pipeline service
func New(deps Deps, cfg *config.Config, metrics *observability.Metrics, logger *errors.Logger) *Service {
	return &Service{
		deps:     deps,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		app:      cfg.App,
		detect:   cfg.Detect,
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
	}
}

// Analyze extracts the uploaded documents and runs the analysis.
func (s *Service) Analyze(ctx context.Context, req AnalyzeRequest) (*types.AnalyzeResponse, error) {
	job, err := s.sanitizeJob(req.Job)
	if err != nil {
		return nil, err
	}
	if len(req.CV) == 0 {
		return nil, errors.NewInvalidInputError(errors.ErrCodeMissingField, msgAllFieldsRequired, nil)
	}

	cvText, err := s.deps.Extractor.ExtractText(ctx, "CV", req.CV)
	if err != nil {
		return nil, err
	}
	var linkedInText string
	if len(req.LinkedIn) > 0 {
		linkedInText, err = s.deps.Extractor.ExtractText(ctx, "LinkedIn PDF", req.LinkedIn)
		if err != nil {
			return nil, err
		}
	}

	return s.AnalyzeText(ctx, types.AnalyzeInput{Job: job, CVText: cvText, LinkedInText: linkedInText})
}

// AnalyzeText runs the analysis on already extracted text and stores the
// result in a new session.
func (s *Service) AnalyzeText(ctx context.Context, in types.AnalyzeInput) (resp *types.AnalyzeResponse, err error) {
	defer func() {
		s.metrics.RecordBusinessMetric(ctx, "analysis", err == nil,
			attribute.Bool("has_linkedin", in.LinkedInText != ""))
	}()

	job, err := s.sanitizeJob(in.Job)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.CVText) == "" {
		return nil, errors.NewInvalidInputError(errors.ErrCodeEmptyCV,
			"Could not read text from CV. Make sure it's not a scanned image PDF.", nil)
	}

	findings, err := s.deps.Gatherer.Gather(ctx, job)
	if err != nil {
		return nil, err
	}
	tips := s.deps.Intersector.Intersect(findings)

	report, err := detect.Detect(detect.Input{
		CVText:              in.CVText,
		LinkedInText:        in.LinkedInText,
		Job:                 job,
		Findings:            findings,
		Lexicon:             s.deps.Lexicon.Current(),
		MaxGaps:             s.detect.MaxGaps,
		EmploymentGapMonths: s.detect.EmploymentGapMonths,
		Now:                 s.now(),
	})
	if err != nil {
		return nil, err
	}

	maxQuestions := s.detect.MaxQuestions
	if maxQuestions <= 0 {
		maxQuestions = questions.DefaultMax
	}
	qs := questions.Synthesize(report.Gaps, report.Contradictions, maxQuestions)

	id, err := s.deps.Sessions.Create(session.Data{
		CVText:         in.CVText,
		LinkedInText:   in.LinkedInText,
		Job:            job,
		Findings:       findings,
		Tips:           tips,
		Gaps:           report.Gaps,
		Contradictions: report.Contradictions,
		AutoFixes:      report.AutoFixes,
		AIWords:        report.AIWords,
		Questions:      qs,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Analysis complete",
		"session_id", id,
		"findings", len(findings.All()),
		"tips", len(tips),
		"gaps", len(report.Gaps),
		"contradictions", len(report.Contradictions),
		"questions", len(qs))

	return buildAnalyzeResponse(id, tips, qs, report), nil
}

func buildAnalyzeResponse(id string, tips []types.Tip, qs []types.Question, report detect.Report) *types.AnalyzeResponse {
	resp := &types.AnalyzeResponse{
		SessionID:              id,
		Questions:              qs,
		GapsFound:              make([]string, 0, len(report.Gaps)),
		AutoFixes:              make([]string, 0, len(report.AutoFixes)),
		HeadsUpTips:            tips,
		AIWordsDetected:        make([]string, 0, len(report.AIWords)),
		LinkedInContradictions: report.Contradictions,
	}
	for _, g := range report.Gaps {
		resp.GapsFound = append(resp.GapsFound, g.Description)
	}
	for _, f := range report.AutoFixes {
		resp.AutoFixes = append(resp.AutoFixes, f.Description)
	}
	for _, w := range report.AIWords {
		resp.AIWordsDetected = append(resp.AIWordsDetected, w.Word)
	}
	if resp.HeadsUpTips == nil {
		resp.HeadsUpTips = []types.Tip{}
	}
	if resp.LinkedInContradictions == nil {
		resp.LinkedInContradictions = []types.Contradiction{}
	}
	return resp
}

// Generate produces the bundle for a previously analyzed session.
func (s *Service) Generate(ctx context.Context, req types.GenerateRequest) (*types.GenerateResponse, error) {
	req.SessionID = strings.TrimSpace(req.SessionID)
	if err := s.validate.Struct(req); err != nil {
		return nil, errors.NewInvalidInputError(errors.ErrCodeInvalidRequest, "A valid session_id is required.", err)
	}

	res, err := s.deps.Generator.Run(ctx, req.SessionID, req.UserAnswers)
	if err != nil {
		return nil, err
	}

	return &types.GenerateResponse{
		Status:           statusComplete,
		Output:           res.Output,
		HeadsUpTips:      res.HeadsUpTips,
		AutoFixesApplied: res.AutoFixesApplied,
		AIWordsRemoved:   res.AIWordsRemoved,
	}, nil
}

// sanitizeJob trims and truncates the text fields, then checks that none is empty.
func (s *Service) sanitizeJob(job types.Job) (types.Job, error) {
	maxField, maxJD := s.app.MaxFieldLength, s.app.MaxJobDescription
	if maxField <= 0 {
		maxField = defaultMaxField
	}
	if maxJD <= 0 {
		maxJD = defaultMaxJD
	}

	job.Company = truncate(strings.TrimSpace(job.Company), maxField)
	job.Role = truncate(strings.TrimSpace(job.Role), maxField)
	job.Location = truncate(strings.TrimSpace(job.Location), maxField)
	job.Description = truncate(strings.TrimSpace(job.Description), maxJD)

	if err := s.validate.Struct(job); err != nil {
		var fieldErrs validator.ValidationErrors
		if stderrors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return job, errors.NewInvalidInputError(errors.ErrCodeMissingField, msgAllFieldsRequired, err).
				WithContext("field", fieldErrs[0].Field())
		}
		return job, errors.NewInvalidInputError(errors.ErrCodeMissingField, msgAllFieldsRequired, err)
	}
	return job, nil
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
