package ai

import (
	"fmt"
	"strings"
	"text/template"

	"applysharp/internal/config"
)

// PromptData is the session context rendered into every user prompt
type PromptData struct {
	Company        string
	Role           string
	Location       string
	JobDescription string

	// CVText is the CV after auto-fixes and AI-word replacement.
	CVText       string
	LinkedInText string

	Intelligence string
	PriorityTips []string
	Answers      []AnsweredQuestion
	References   []Reference

	BannedWords []string
	StrongVerbs []string
	Headings    []string
}

// AnsweredQuestion pairs a clarifying question with the applicant's answer
type AnsweredQuestion struct {
	Question string
	Answer   string
}

// Reference is a session fact the model may cite in the change log
type Reference struct {
	ID    string
	Label string
}

// SystemPrompts contains the system-level instructions per operation
type SystemPrompts struct {
	CV          string
	CoverLetter string
	Outreach    string
}

// UserPrompts contains text/template user prompts per operation
type UserPrompts struct {
	CV          string
	CoverLetter string
	Outreach    string
}

const honestyRules = `Your core principles are:

- NEVER invent, exaggerate, or misattribute any skills or experiences
- ONLY use numbers and percentages the candidate confirmed in their answers
- Every change must be traceable to the original CV, the candidate's answers or the research provided
- Write in the candidate's own voice; vary sentence length naturally`

// DefaultSystemPrompts provides the default system instructions
var DefaultSystemPrompts = SystemPrompts{
	CV: `You are an elite CV writer and ATS specialist with a strict commitment to honesty. ` + honestyRules + `

STRUCTURE RULES (non-negotiable):
- NO tables, NO text boxes, NO columns, NO graphics, NO icons
- Plain text structure ONLY, so an ATS can read every word
- Consistent date format: Mon YYYY (e.g. Jan 2022)

CONTENT RULES:
- Achievement-first bullets, not responsibility-first ("Built X that reduced Y" not "Responsible for X")
- Put the most keyword-rich content in the top third of the CV
- Mix short punchy bullets with longer detailed ones
- Remove everything irrelevant to this specific role
- Where no real numbers exist, use specific qualitative language ("across a 4-person team")`,

	CoverLetter: `You are an expert cover letter writer. ` + honestyRules + `

COVER LETTER RULES:
- Para 1: Hook. A specific thing about THIS company from the research. No generic openers
- Para 2: Bridge. How the candidate's background connects to the company's exact need
- Para 3: Proof. One concrete example not fully shown in the CV
- Para 4: Close. A clear, confident ask
- Location-aware: for an international role, address availability or timezone if relevant`,

	Outreach: `You are a career strategist who knows how recruiters use LinkedIn. ` + honestyRules + `

LINKEDIN TIPS RULES:
- Specific, actionable changes only, tailored to this company and role
- Prioritize: Headline, About section, top 3 experience descriptions, Skills section

APPLICATION STRATEGY RULES:
- Who to contact at this company, how, what to say and when
- Base it on what the research says about their hiring process`,
}

const contextBlock = `─── CONTEXT ───
Company: {{.Company}}
Role: {{.Role}}
Location: {{.Location}}
Job Description:
{{.JobDescription}}

─── MARKET INTELLIGENCE ───
{{if .Intelligence}}{{.Intelligence}}{{else}}None available{{end}}

─── HIGHEST PRIORITY (optimize for these first) ───
{{range .PriorityTips}}- {{.}}
{{else}}None
{{end}}
─── CANDIDATE'S ANSWERS TO CLARIFYING QUESTIONS ───
{{range .Answers}}Q: {{.Question}}
A: {{.Answer}}
{{else}}Candidate provided no additional information.
{{end}}`

// DefaultUserPrompts provides the default user prompt templates
var DefaultUserPrompts = UserPrompts{
	CV: contextBlock + `
─── CV (dates and wording already normalized) ───
{{.CVText}}

─── LINKEDIN PROFILE ───
{{if .LinkedInText}}{{.LinkedInText}}{{else}}Not provided{{end}}

Standard section headings: {{join .Headings ", "}}
BANNED words, never use them: {{join .BannedWords ", "}}
Strong action verbs to prefer: {{join .StrongVerbs ", "}}

─── REFERENCES ───
Every change_log entry must cite exactly one of these ids in "ref":
{{range .References}}- {{.ID}}: {{.Label}}
{{end}}
Produce "cv_ats_version" (plain text, optimized for ATS), "cv_human_version" (same CV with light
formatting, still no tables) and a "change_log" listing every edit you made relative to the CV above.`,

	CoverLetter: contextBlock + `
─── CV ───
{{.CVText}}

BANNED words, never use them: {{join .BannedWords ", "}}

Write the complete tailored cover letter in "cover_letter".`,

	Outreach: contextBlock + `
─── CV ───
{{.CVText}}

─── LINKEDIN PROFILE ───
{{if .LinkedInText}}{{.LinkedInText}}{{else}}Not provided{{end}}

BANNED words, never use them: {{join .BannedWords ", "}}

Produce "linkedin_tips" (section, current_issue, recommended_text, why) and an "application_strategy".`,
}

var templateFuncs = template.FuncMap{"join": strings.Join}

func defaultPrompts(op config.Operation) (string, string) {
	switch op {
	case config.OperationCV:
		return DefaultSystemPrompts.CV, DefaultUserPrompts.CV
	case config.OperationCoverLetter:
		return DefaultSystemPrompts.CoverLetter, DefaultUserPrompts.CoverLetter
	case config.OperationOutreach:
		return DefaultSystemPrompts.Outreach, DefaultUserPrompts.Outreach
	default:
		return "", ""
	}
}

// resolvePrompt prefers the configured prompt (inline or loaded from file)
// over the built-in default.
func resolvePrompt(fromConfig, fromDefault string) string {
	if strings.TrimSpace(fromConfig) != "" {
		return fromConfig
	}
	return fromDefault
}

// parsePrompts resolves and parses the prompts of one operation
func parsePrompts(op config.Operation, custom config.OperationPrompts) (string, *template.Template, error) {
	defSystem, defUser := defaultPrompts(op)
	system := resolvePrompt(custom.System, defSystem)
	user, err := template.New(string(op)).Funcs(templateFuncs).Option("missingkey=error").Parse(resolvePrompt(custom.User, defUser))
	if err != nil {
		return "", nil, fmt.Errorf("invalid %s user prompt template: %w", op, err)
	}
	return system, user, nil
}

func renderPrompt(tmpl *template.Template, data PromptData) (string, error) {
	var b strings.Builder
	if err := tmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("failed to render %s prompt: %w", tmpl.Name(), err)
	}
	return b.String(), nil
}
