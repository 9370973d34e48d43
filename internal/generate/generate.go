// Package generate turns an analyzed session and the applicant's answers into
// the final artifact bundle. The bundle is all-or-nothing: either every
// artifact is produced and validated or the caller gets an error.
package generate

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"applysharp/internal/ai"
	"applysharp/internal/detect"
	"applysharp/internal/errors"
	"applysharp/internal/lexicon"
	"applysharp/internal/observability"
	"applysharp/internal/session"
	"applysharp/internal/types"
)

const (
	// DefaultAttempts is the first bundle attempt plus one retry.
	DefaultAttempts = 2

	noAnswer = "No additional information."

	reasonDateFormat = "date format standardization"
	reasonHeading    = "section heading standardization"
	reasonAIWord     = "AI-word removal: "
)

// Drafter produces the raw artifacts. ai.Service implements it.
type Drafter interface {
	DraftCV(ctx context.Context, data ai.PromptData) (ai.CVDraft, error)
	DraftCoverLetter(ctx context.Context, data ai.PromptData) (ai.CoverLetterDraft, error)
	DraftOutreach(ctx context.Context, data ai.PromptData) (ai.OutreachDraft, error)
}

// Sessions is the part of session.Store the engine needs.
type Sessions interface {
	Consume(id string) (*session.Session, error)
	Finish(id string)
}

// LexiconSource hands out the current lexicon snapshot.
type LexiconSource interface {
	Current() *lexicon.Lexicon
}

// Result is the bundle plus the analysis facts echoed back to the caller.
type Result struct {
	Output           types.GenerationOutput
	HeadsUpTips      []types.Tip
	AutoFixesApplied []string
	AIWordsRemoved   []string
}

// Engine runs the generation step
type Engine struct {
	sessions Sessions
	drafter  Drafter
	lexicon  LexiconSource
	attempts int
	budget   time.Duration
	metrics  *observability.Metrics
	logger   *errors.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithBudget bounds the whole bundle, retry included. Zero means no bound.
func WithBudget(d time.Duration) Option {
	return func(e *Engine) { e.budget = d }
}

// NewEngine creates a generation engine
func NewEngine(sessions Sessions, drafter Drafter, lex LexiconSource, metrics *observability.Metrics, logger *errors.Logger, opts ...Option) *Engine {
	e := &Engine{
		sessions: sessions,
		drafter:  drafter,
		lexicon:  lex,
		attempts: DefaultAttempts,
		metrics:  metrics,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Generate produces the artifact bundle for session id. The session is
// deleted whatever the outcome.
func (e *Engine) Generate(ctx context.Context, id string, answers map[string]string) (*types.GenerationOutput, error) {
	res, err := e.Run(ctx, id, answers)
	if err != nil {
		return nil, err
	}
	return &res.Output, nil
}

// Run is Generate with the echoed analysis facts.
func (e *Engine) Run(ctx context.Context, id string, answers map[string]string) (*Result, error) {
	sess, err := e.sessions.Consume(id)
	if err != nil {
		if errors.IsType(err, errors.ErrorTypeNotFound) {
			return nil, errors.NewSessionExpiredError(errors.ErrCodeSessionExpired,
				"Session expired. Please re-upload your CV and start again.", err)
		}
		return nil, err
	}
	defer e.sessions.Finish(id)

	parent := ctx
	if e.budget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.budget)
		defer cancel()
	}

	lex := e.lexicon.Current()
	b := newBundle(sess, answers, lex)

	var (
		output  types.GenerationOutput
		removed []string
	)
	for attempt := 1; attempt <= e.attempts; attempt++ {
		if attempt > 1 {
			e.logger.Warn("Retrying generation bundle", "session_id", id, "attempt", attempt, "error", err.Error())
			e.metrics.RecordBusinessMetric(ctx, "generation_retry", true)
		}

		output, removed, err = e.attempt(ctx, b, lex)
		if err == nil || ctx.Err() != nil || !errors.IsType(err, errors.ErrorTypeGenerationPartialFailure) {
			break
		}
	}
	if err != nil && parent.Err() == nil && stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
		err = errors.NewGenerationPartialFailureError(errors.ErrCodeAITimeout,
			"Generation took too long. Please re-upload your CV and start again.", err)
	}
	if err != nil {
		e.metrics.RecordBusinessMetric(parent, "generation", false)
		e.logger.LogError(err, "Generation failed", "session_id", id)
		return nil, err
	}

	e.metrics.RecordBusinessMetric(parent, "generation", true)
	e.logger.Info("Generation complete",
		"session_id", id,
		"change_log_entries", len(output.ChangeLog),
		"linkedin_tips", len(output.LinkedInTips))

	return &Result{
		Output:           output,
		HeadsUpTips:      nonNil(sess.Tips),
		AutoFixesApplied: b.fixesApplied,
		AIWordsRemoved:   mergeWords(b.wordsRemoved, removed),
	}, nil
}

// bundle is the per-session input shared by every attempt.
type bundle struct {
	prompt       ai.PromptData
	labels       map[string]string
	preEdits     []types.ChangeLogEntry
	fixesApplied []string
	wordsRemoved []string
}

func newBundle(sess *session.Session, answers map[string]string, lex *lexicon.Lexicon) *bundle {
	b := &bundle{labels: make(map[string]string), fixesApplied: []string{}}

	cv := sess.CVText
	for _, fix := range sess.AutoFixes {
		var n int
		cv, n = detect.ApplyAutoFix(cv, fix)
		if n == 0 {
			continue
		}
		reason := reasonDateFormat
		if fix.Kind == types.AutoFixSectionHeading {
			reason = reasonHeading
		}
		b.preEdits = append(b.preEdits, types.ChangeLogEntry{Original: fix.Original, ChangedTo: fix.Replacement, Reason: reason})
		b.fixesApplied = append(b.fixesApplied, fix.Description)
	}

	cv, replaced := detect.ScrubAIWords(cv, lex)
	for _, r := range replaced {
		b.preEdits = append(b.preEdits, types.ChangeLogEntry{Original: r.Original, ChangedTo: r.ChangedTo, Reason: reasonAIWord + r.Word})
		b.wordsRemoved = append(b.wordsRemoved, r.Word)
	}

	var refs []ai.Reference
	addRef := func(id, label string) {
		b.labels[id] = label
		refs = append(refs, ai.Reference{ID: id, Label: label})
	}
	for _, g := range sess.Gaps {
		addRef(g.ID, g.Description)
	}
	for _, c := range sess.Contradictions {
		addRef(c.ID, fmt.Sprintf("%s differs: CV %q, LinkedIn %q", c.Field, c.CVClaim, c.LinkedInClaim))
	}
	for _, f := range sess.AutoFixes {
		addRef(f.ID, f.Description)
	}
	for _, w := range sess.AIWords {
		addRef(w.ID, "AI-sounding word: "+w.Word)
	}
	for _, t := range sess.Tips {
		addRef(t.ID, t.Text)
	}

	var answered []ai.AnsweredQuestion
	for _, q := range sess.Questions {
		answer := strings.TrimSpace(answers[q.ID])
		if answer == "" {
			answer = noAnswer
		}
		answered = append(answered, ai.AnsweredQuestion{Question: q.Question, Answer: answer})
		addRef(q.ID, "answer to: "+q.Question)
	}

	priority := make([]string, 0, len(sess.Tips))
	for _, t := range sess.Tips {
		priority = append(priority, t.Text)
	}

	b.prompt = ai.PromptData{
		Company:        sess.Job.Company,
		Role:           sess.Job.Role,
		Location:       sess.Job.Location,
		JobDescription: sess.Job.Description,
		CVText:         cv,
		LinkedInText:   sess.LinkedInText,
		Intelligence:   summarize(sess.Findings),
		PriorityTips:   priority,
		Answers:        answered,
		References:     refs,
		BannedWords:    lex.AIWords,
		StrongVerbs:    lex.StrongVerbs,
		Headings:       lexicon.StandardHeadings,
	}
	return b
}

// attempt runs the three artifact calls concurrently and assembles a bundle.
// It also returns the AI words the post-scrub removed from the CV versions.
func (e *Engine) attempt(ctx context.Context, b *bundle, lex *lexicon.Lexicon) (types.GenerationOutput, []string, error) {
	var (
		cv       ai.CVDraft
		letter   ai.CoverLetterDraft
		outreach ai.OutreachDraft
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		cv, err = e.drafter.DraftCV(gctx, b.prompt)
		return err
	})
	g.Go(func() error {
		var err error
		letter, err = e.drafter.DraftCoverLetter(gctx, b.prompt)
		return err
	})
	g.Go(func() error {
		var err error
		outreach, err = e.drafter.DraftOutreach(gctx, b.prompt)
		return err
	})
	if err := g.Wait(); err != nil {
		if errors.IsType(err, errors.ErrorTypeGenerationPartialFailure) {
			return types.GenerationOutput{}, nil, err
		}
		return types.GenerationOutput{}, nil, errors.NewGenerationPartialFailureError(errors.ErrCodeArtifactFailed,
			"Generation failed. Please try again.", err)
	}

	changeLog := make([]types.ChangeLogEntry, 0, len(b.preEdits)+len(cv.ChangeLog))
	changeLog = append(changeLog, b.preEdits...)
	for i, c := range cv.ChangeLog {
		label, ok := b.labels[strings.TrimSpace(c.Ref)]
		if !ok {
			return types.GenerationOutput{}, nil, errors.NewGenerationPartialFailureError(errors.ErrCodeUnknownCitation,
				fmt.Sprintf("change_log[%d] cites unknown reference %q", i, c.Ref), nil)
		}
		changeLog = append(changeLog, types.ChangeLogEntry{
			Original:  c.Original,
			ChangedTo: c.ChangedTo,
			Reason:    fmt.Sprintf("%s (%s)", strings.TrimSpace(c.Reason), label),
		})
	}

	out := types.GenerationOutput{
		CoverLetter:         scrub(letter.CoverLetter, lex),
		ApplicationStrategy: scrub(outreach.ApplicationStrategy, lex),
		LinkedInTips:        make([]types.LinkedInTip, 0, len(outreach.LinkedInTips)),
	}

	seen := make(map[string]bool)
	var words []string
	var removed []detect.Replacement
	out.CVATSVersion, removed = detect.ScrubAIWords(cv.ATSVersion, lex)
	changeLog, words = appendRemovals(changeLog, words, removed, seen)
	out.CVHumanVersion, removed = detect.ScrubAIWords(cv.HumanVersion, lex)
	changeLog, words = appendRemovals(changeLog, words, removed, seen)
	out.ChangeLog = changeLog

	if n := untracedLines(b.prompt.CVText, out.CVHumanVersion, changeLog); n > 0 {
		e.logger.Warn("CV lines changed without a change-log entry", "lines", n)
	}

	for _, tip := range outreach.LinkedInTips {
		tip.RecommendedText = scrub(tip.RecommendedText, lex)
		out.LinkedInTips = append(out.LinkedInTips, tip)
	}
	return out, words, nil
}

func appendRemovals(log []types.ChangeLogEntry, words []string, removed []detect.Replacement, seen map[string]bool) ([]types.ChangeLogEntry, []string) {
	for _, r := range removed {
		if seen[r.Original] {
			continue
		}
		seen[r.Original] = true
		log = append(log, types.ChangeLogEntry{Original: r.Original, ChangedTo: r.ChangedTo, Reason: reasonAIWord + r.Word})
		words = append(words, r.Word)
	}
	return log, words
}

// untracedLines counts draft lines that are neither in the source CV nor
// cover any change-log replacement. It is a diagnostic and never fails a bundle.
func untracedLines(source, draft string, log []types.ChangeLogEntry) int {
	known := make(map[string]bool)
	for _, line := range strings.Split(source, "\n") {
		known[normalizeLine(line)] = true
	}

	n := 0
	for _, line := range strings.Split(draft, "\n") {
		line = normalizeLine(line)
		if line == "" || known[line] {
			continue
		}
		traced := false
		for _, c := range log {
			if to := normalizeLine(c.ChangedTo); to != "" && strings.Contains(line, to) {
				traced = true
				break
			}
		}
		if !traced {
			n++
		}
	}
	return n
}

func normalizeLine(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

func scrub(text string, lex *lexicon.Lexicon) string {
	out, _ := detect.ScrubAIWords(text, lex)
	return out
}

// mergeWords lists every AI word removed, pre-edit first, without repeats.
func mergeWords(lists ...[]string) []string {
	words := []string{}
	seen := make(map[string]bool)
	for _, list := range lists {
		for _, w := range list {
			if !seen[w] {
				seen[w] = true
				words = append(words, w)
			}
		}
	}
	return words
}

// summarize renders the findings as the market intelligence prompt block.
func summarize(f types.Findings) string {
	var b strings.Builder
	section := func(title string, findings []types.Finding) {
		if len(findings) == 0 {
			return
		}
		fmt.Fprintf(&b, "%s:\n", title)
		for _, finding := range findings {
			fmt.Fprintf(&b, "- %s", finding.Statement)
			if finding.CitationURL != "" {
				fmt.Fprintf(&b, " (%s)", finding.CitationURL)
			}
			b.WriteString("\n")
		}
	}
	section("ATS and screening", f.ATS)
	section("Company culture", f.Culture)
	section("Role expectations", f.Role)
	section("Recruiter tips", f.CompanyTips)
	return strings.TrimSpace(b.String())
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
