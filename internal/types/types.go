package types

// Container identifies one of the three independent intelligence queries
type Container string

const (
	ContainerATS     Container = "ats"
	ContainerCulture Container = "culture"
	ContainerRole    Container = "role"
)

// Containers lists every container in a fixed order.
var Containers = []Container{ContainerATS, ContainerCulture, ContainerRole}

// Job describes the posting the applicant is targeting
type Job struct {
	Company     string `json:"company" validate:"required,max=300"`
	Role        string `json:"role" validate:"required,max=300"`
	Location    string `json:"location" validate:"required,max=300"`
	Description string `json:"job_description" validate:"required,max=8000"`
}

// Finding is one normalized research result from a container
type Finding struct {
	Container   Container `json:"container"`
	Statement   string    `json:"statement"`
	Title       string    `json:"title,omitempty"`
	CitationURL string    `json:"citation_url,omitempty"`
	Confidence  float64   `json:"confidence"`
}

// Findings groups the gathered findings by container
type Findings struct {
	ATS     []Finding `json:"ats"`
	Culture []Finding `json:"culture"`
	Role    []Finding `json:"role"`

	// CompanyTips holds the supplementary recruiter-advice results. They never
	// count toward container availability.
	CompanyTips []Finding `json:"company_tips,omitempty"`
}

// For returns the findings of a single container.
func (f Findings) For(c Container) []Finding {
	switch c {
	case ContainerATS:
		return f.ATS
	case ContainerCulture:
		return f.Culture
	case ContainerRole:
		return f.Role
	default:
		return nil
	}
}

// All returns every finding, container findings first, in container order.
func (f Findings) All() []Finding {
	all := make([]Finding, 0, len(f.ATS)+len(f.Culture)+len(f.Role)+len(f.CompanyTips))
	all = append(all, f.ATS...)
	all = append(all, f.Culture...)
	all = append(all, f.Role...)
	all = append(all, f.CompanyTips...)
	return all
}

// Populated returns how many of the three containers returned findings.
func (f Findings) Populated() int {
	n := 0
	for _, c := range Containers {
		if len(f.For(c)) > 0 {
			n++
		}
	}
	return n
}

// Tip is a finding elevated to user-visible advice
type Tip struct {
	ID          string      `json:"-"`
	Text        string      `json:"tip"`
	Source      string      `json:"source"`
	SourceURL   string      `json:"source_url,omitempty"`
	ActionTaken string      `json:"action_taken,omitempty"`
	Containers  []Container `json:"-"`
	Confidence  float64     `json:"-"`
}

// GapKind distinguishes missing skills from holes in the work history
type GapKind string

const (
	GapKindSkill      GapKind = "skill"
	GapKindEmployment GapKind = "employment"
)

// Gap is a role requirement with no supporting evidence in the CV
type Gap struct {
	ID          string  `json:"id"`
	Kind        GapKind `json:"kind"`
	Term        string  `json:"term,omitempty"`
	Description string  `json:"description"`
}

// Contradiction is a pair of differing claims between the CV and LinkedIn
type Contradiction struct {
	ID            string `json:"-"`
	Field         string `json:"field"` // "title", "dates" or "title_and_dates"
	CVClaim       string `json:"cv_claim"`
	LinkedInClaim string `json:"linkedin_claim"`
}

// AutoFixKind names the mechanical corrections applied without confirmation
type AutoFixKind string

const (
	AutoFixDateFormat     AutoFixKind = "date_format"
	AutoFixSectionHeading AutoFixKind = "section_heading"
)

// AutoFix is a low-risk correction to the CV text
type AutoFix struct {
	ID          string      `json:"id"`
	Kind        AutoFixKind `json:"kind"`
	Original    string      `json:"original"`
	Replacement string      `json:"replacement"`
	Description string      `json:"description"`
}

// AIWord is a verbatim match of AI-associated vocabulary in the CV
type AIWord struct {
	ID    string `json:"id"`
	Word  string `json:"word"`
	Count int    `json:"count"`
}

// Question asks the user for context the CV cannot provide
type Question struct {
	ID       string `json:"id"`
	Question string `json:"question"`
	Context  string `json:"context"`
	Type     string `json:"type"`

	// SourceID points at the gap or contradiction the question came from.
	SourceID string `json:"-"`
}

// ChangeLogEntry records one textual edit to the candidate's CV
type ChangeLogEntry struct {
	Original  string `json:"original"`
	ChangedTo string `json:"changed_to"`
	Reason    string `json:"reason"`
}

// LinkedInTip is a targeted change to the applicant's LinkedIn profile
type LinkedInTip struct {
	Section         string `json:"section"`
	CurrentIssue    string `json:"current_issue"`
	RecommendedText string `json:"recommended_text"`
	Why             string `json:"why"`
}

// GenerationOutput is the final artifact bundle for one session
type GenerationOutput struct {
	CVATSVersion        string           `json:"cv_ats_version"`
	CVHumanVersion      string           `json:"cv_human_version"`
	CoverLetter         string           `json:"cover_letter"`
	ApplicationStrategy string           `json:"application_strategy"`
	ChangeLog           []ChangeLogEntry `json:"change_log"`
	LinkedInTips        []LinkedInTip    `json:"linkedin_tips"`
}

// AnalyzeInput is the extracted, sanitized form of an analyze request
type AnalyzeInput struct {
	Job          Job
	CVText       string
	LinkedInText string
}

// AnalyzeResponse is returned by the analyze operation
type AnalyzeResponse struct {
	SessionID              string          `json:"session_id"`
	Questions              []Question      `json:"questions"`
	GapsFound              []string        `json:"gaps_found"`
	AutoFixes              []string        `json:"auto_fixes"`
	HeadsUpTips            []Tip           `json:"heads_up_tips"`
	AIWordsDetected        []string        `json:"ai_words_detected"`
	LinkedInContradictions []Contradiction `json:"linkedin_contradictions"`
}

// GenerateRequest is the JSON body of the generate operation
type GenerateRequest struct {
	Password    string            `json:"password"`
	SessionID   string            `json:"session_id" validate:"required,uuid4"`
	UserAnswers map[string]string `json:"user_answers"`
}

// GenerateResponse is returned by the generate operation
type GenerateResponse struct {
	Status           string           `json:"status"`
	Output           GenerationOutput `json:"output"`
	HeadsUpTips      []Tip            `json:"heads_up_tips"`
	AutoFixesApplied []string         `json:"auto_fixes_applied"`
	AIWordsRemoved   []string         `json:"ai_words_removed"`
}
