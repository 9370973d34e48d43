package ai

import (
	"fmt"
	"strings"

	"applysharp/internal/types"

	"google.golang.org/genai"
)

// DraftChange is a change-log entry proposed by the model. Ref must name one
// of the reference ids listed in the prompt.
type DraftChange struct {
	Original  string `json:"original"`
	ChangedTo string `json:"changed_to"`
	Reason    string `json:"reason"`
	Ref       string `json:"ref"`
}

// CVDraft is the reply of the CV operation
type CVDraft struct {
	ATSVersion   string        `json:"cv_ats_version"`
	HumanVersion string        `json:"cv_human_version"`
	ChangeLog    []DraftChange `json:"change_log"`
}

// CoverLetterDraft is the reply of the cover letter operation
type CoverLetterDraft struct {
	CoverLetter string `json:"cover_letter"`
}

// OutreachDraft is the reply of the outreach operation
type OutreachDraft struct {
	LinkedInTips        []types.LinkedInTip `json:"linkedin_tips"`
	ApplicationStrategy string              `json:"application_strategy"`
}

// Validate checks required fields
func (d CVDraft) Validate() error {
	if strings.TrimSpace(d.ATSVersion) == "" {
		return fmt.Errorf("cv_ats_version is empty")
	}
	if strings.TrimSpace(d.HumanVersion) == "" {
		return fmt.Errorf("cv_human_version is empty")
	}
	if d.ChangeLog == nil {
		return fmt.Errorf("change_log is missing")
	}
	for i, c := range d.ChangeLog {
		if strings.TrimSpace(c.Original) == "" || strings.TrimSpace(c.ChangedTo) == "" {
			return fmt.Errorf("change_log[%d] needs both original and changed_to", i)
		}
		if strings.TrimSpace(c.Ref) == "" {
			return fmt.Errorf("change_log[%d] has no ref", i)
		}
	}
	return nil
}

// Validate checks required fields
func (d CoverLetterDraft) Validate() error {
	if strings.TrimSpace(d.CoverLetter) == "" {
		return fmt.Errorf("cover_letter is empty")
	}
	return nil
}

// Validate checks required fields
func (d OutreachDraft) Validate() error {
	if strings.TrimSpace(d.ApplicationStrategy) == "" {
		return fmt.Errorf("application_strategy is empty")
	}
	if len(d.LinkedInTips) == 0 {
		return fmt.Errorf("linkedin_tips is empty")
	}
	for i, tip := range d.LinkedInTips {
		if strings.TrimSpace(tip.Section) == "" || strings.TrimSpace(tip.RecommendedText) == "" {
			return fmt.Errorf("linkedin_tips[%d] needs section and recommended_text", i)
		}
	}
	return nil
}

// CVDraftSchema is the response schema of the CV operation
func CVDraftSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"cv_ats_version":   {Type: genai.TypeString},
			"cv_human_version": {Type: genai.TypeString},
			"change_log": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"original":   {Type: genai.TypeString},
						"changed_to": {Type: genai.TypeString},
						"reason":     {Type: genai.TypeString},
						"ref":        {Type: genai.TypeString},
					},
					Required: []string{"original", "changed_to", "reason", "ref"},
				},
			},
		},
		Required: []string{"cv_ats_version", "cv_human_version", "change_log"},
	}
}

// CoverLetterDraftSchema is the response schema of the cover letter operation
func CoverLetterDraftSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"cover_letter": {Type: genai.TypeString},
		},
		Required: []string{"cover_letter"},
	}
}

// OutreachDraftSchema is the response schema of the outreach operation
func OutreachDraftSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"linkedin_tips": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"section":          {Type: genai.TypeString},
						"current_issue":    {Type: genai.TypeString},
						"recommended_text": {Type: genai.TypeString},
						"why":              {Type: genai.TypeString},
					},
					Required: []string{"section", "current_issue", "recommended_text", "why"},
				},
			},
			"application_strategy": {Type: genai.TypeString},
		},
		Required: []string{"linkedin_tips", "application_strategy"},
	}
}
