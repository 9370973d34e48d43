package formatters

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"applysharp/internal/types"
)

// Formatter interface for different output formats
type Formatter interface {
	Format(data any) (string, error)
	SupportedType() string
}

// FormatterRegistry manages all available formatters
type FormatterRegistry struct {
	formatters map[string]map[string]Formatter // format -> type -> formatter
}

// NewFormatterRegistry creates a new formatter registry with default formatters
func NewFormatterRegistry() *FormatterRegistry {
	registry := &FormatterRegistry{
		formatters: make(map[string]map[string]Formatter),
	}

	registry.RegisterFormatter("json", "any", &JSONFormatter{})
	registry.RegisterFormatter("text", "AnalyzeResponse", &AnalyzeTextFormatter{})
	registry.RegisterFormatter("markdown", "AnalyzeResponse", &AnalyzeMarkdownFormatter{})
	registry.RegisterFormatter("text", "GenerateResponse", &GenerateTextFormatter{})
	registry.RegisterFormatter("markdown", "GenerateResponse", &GenerateMarkdownFormatter{})

	return registry
}

// RegisterFormatter registers a new formatter for a specific format and data type
func (fr *FormatterRegistry) RegisterFormatter(format, dataType string, formatter Formatter) {
	if fr.formatters[format] == nil {
		fr.formatters[format] = make(map[string]Formatter)
	}
	fr.formatters[format][dataType] = formatter
}

// Format formats data using the appropriate formatter
func (fr *FormatterRegistry) Format(data any, format string) (string, error) {
	dataType := getDataType(data)

	// Try specific formatter first
	if formatters, exists := fr.formatters[format]; exists {
		if formatter, exists := formatters[dataType]; exists {
			return formatter.Format(data)
		}
		// Fall back to generic formatter
		if formatter, exists := formatters["any"]; exists {
			return formatter.Format(data)
		}
	}

	return "", fmt.Errorf("no formatter found for format '%s' and type '%s'", format, dataType)
}

// GetSupportedFormats returns all supported formats
func (fr *FormatterRegistry) GetSupportedFormats() []string {
	formats := make([]string, 0, len(fr.formatters))
	for format := range fr.formatters {
		formats = append(formats, format)
	}
	sort.Strings(formats)
	return formats
}

func getDataType(data any) string {
	switch data.(type) {
	case types.AnalyzeResponse, *types.AnalyzeResponse:
		return "AnalyzeResponse"
	case types.GenerateResponse, *types.GenerateResponse:
		return "GenerateResponse"
	default:
		return "any"
	}
}

// JSONFormatter handles JSON formatting for any data type
type JSONFormatter struct{}

func (jf *JSONFormatter) Format(data any) (string, error) {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", err
	}
	return string(jsonData), nil
}

func (jf *JSONFormatter) SupportedType() string {
	return "any"
}

func asAnalyzeResponse(data any) (types.AnalyzeResponse, error) {
	switch v := data.(type) {
	case types.AnalyzeResponse:
		return v, nil
	case *types.AnalyzeResponse:
		if v != nil {
			return *v, nil
		}
	}
	return types.AnalyzeResponse{}, fmt.Errorf("expected AnalyzeResponse, got %T", data)
}

func asGenerateResponse(data any) (types.GenerateResponse, error) {
	switch v := data.(type) {
	case types.GenerateResponse:
		return v, nil
	case *types.GenerateResponse:
		if v != nil {
			return *v, nil
		}
	}
	return types.GenerateResponse{}, fmt.Errorf("expected GenerateResponse, got %T", data)
}

// AnalyzeTextFormatter handles text formatting for analysis results
type AnalyzeTextFormatter struct{}

func (atf *AnalyzeTextFormatter) Format(data any) (string, error) {
	result, err := asAnalyzeResponse(data)
	if err != nil {
		return "", err
	}

	var output strings.Builder

	output.WriteString("=== CV ANALYSIS ===\n")
	fmt.Fprintf(&output, "Session: %s\n\n", result.SessionID)

	writeTextList(&output, "GAPS FOUND", result.GapsFound)
	writeTextList(&output, "AUTO-FIXES", result.AutoFixes)
	writeTextList(&output, "AI WORDS DETECTED", result.AIWordsDetected)

	if len(result.LinkedInContradictions) > 0 {
		output.WriteString("=== LINKEDIN CONTRADICTIONS ===\n")
		for _, c := range result.LinkedInContradictions {
			fmt.Fprintf(&output, "- %s: CV says %q, LinkedIn says %q\n", c.Field, c.CVClaim, c.LinkedInClaim)
		}
		output.WriteString("\n")
	}

	if len(result.HeadsUpTips) > 0 {
		output.WriteString("=== HEADS-UP TIPS ===\n")
		for _, tip := range result.HeadsUpTips {
			fmt.Fprintf(&output, "- %s (%s)\n", tip.Text, tip.Source)
		}
		output.WriteString("\n")
	}

	output.WriteString("=== QUESTIONS ===\n")
	if len(result.Questions) == 0 {
		output.WriteString("None\n")
	}
	for _, q := range result.Questions {
		fmt.Fprintf(&output, "[%s] %s\n", q.ID, q.Question)
		if q.Context != "" {
			fmt.Fprintf(&output, "    %s\n", q.Context)
		}
	}

	return output.String(), nil
}

func (atf *AnalyzeTextFormatter) SupportedType() string {
	return "AnalyzeResponse"
}

// AnalyzeMarkdownFormatter handles markdown formatting for analysis results
type AnalyzeMarkdownFormatter struct{}

func (amf *AnalyzeMarkdownFormatter) Format(data any) (string, error) {
	result, err := asAnalyzeResponse(data)
	if err != nil {
		return "", err
	}

	var output strings.Builder

	output.WriteString("# CV Analysis\n\n")
	fmt.Fprintf(&output, "**Session:** `%s`\n\n", result.SessionID)

	writeMarkdownList(&output, "Gaps Found", result.GapsFound)
	writeMarkdownList(&output, "Auto-fixes", result.AutoFixes)
	writeMarkdownList(&output, "AI Words Detected", result.AIWordsDetected)

	if len(result.LinkedInContradictions) > 0 {
		output.WriteString("## LinkedIn Contradictions\n\n")
		output.WriteString("| Field | CV | LinkedIn |\n|---|---|---|\n")
		for _, c := range result.LinkedInContradictions {
			fmt.Fprintf(&output, "| %s | %s | %s |\n", c.Field, c.CVClaim, c.LinkedInClaim)
		}
		output.WriteString("\n")
	}

	if len(result.HeadsUpTips) > 0 {
		output.WriteString("## Heads-up Tips\n\n")
		for _, tip := range result.HeadsUpTips {
			if tip.SourceURL != "" {
				fmt.Fprintf(&output, "- %s ([%s](%s))\n", tip.Text, tip.Source, tip.SourceURL)
			} else {
				fmt.Fprintf(&output, "- %s (%s)\n", tip.Text, tip.Source)
			}
		}
		output.WriteString("\n")
	}

	output.WriteString("## Questions\n\n")
	for _, q := range result.Questions {
		fmt.Fprintf(&output, "- **%s** %s\n", q.ID, q.Question)
		if q.Context != "" {
			fmt.Fprintf(&output, "  - _%s_\n", q.Context)
		}
	}

	return output.String(), nil
}

func (amf *AnalyzeMarkdownFormatter) SupportedType() string {
	return "AnalyzeResponse"
}

// GenerateTextFormatter handles text formatting for generated documents
type GenerateTextFormatter struct{}

func (gtf *GenerateTextFormatter) Format(data any) (string, error) {
	result, err := asGenerateResponse(data)
	if err != nil {
		return "", err
	}
	out := result.Output

	var output strings.Builder

	output.WriteString("=== CV (ATS VERSION) ===\n\n")
	output.WriteString(out.CVATSVersion)
	output.WriteString("\n\n")

	output.WriteString("=== CV (HUMAN VERSION) ===\n\n")
	output.WriteString(out.CVHumanVersion)
	output.WriteString("\n\n")

	output.WriteString("=== COVER LETTER ===\n\n")
	output.WriteString(out.CoverLetter)
	output.WriteString("\n\n")

	output.WriteString("=== APPLICATION STRATEGY ===\n\n")
	output.WriteString(out.ApplicationStrategy)
	output.WriteString("\n\n")

	output.WriteString("=== CHANGE LOG ===\n")
	for _, entry := range out.ChangeLog {
		fmt.Fprintf(&output, "- %q -> %q (%s)\n", entry.Original, entry.ChangedTo, entry.Reason)
	}
	output.WriteString("\n")

	if len(out.LinkedInTips) > 0 {
		output.WriteString("=== LINKEDIN TIPS ===\n")
		for _, tip := range out.LinkedInTips {
			fmt.Fprintf(&output, "[%s] %s\n", tip.Section, tip.CurrentIssue)
			fmt.Fprintf(&output, "    Suggested: %s\n", tip.RecommendedText)
			fmt.Fprintf(&output, "    Why: %s\n", tip.Why)
		}
		output.WriteString("\n")
	}

	writeTextList(&output, "AUTO-FIXES APPLIED", result.AutoFixesApplied)
	writeTextList(&output, "AI WORDS REMOVED", result.AIWordsRemoved)

	return output.String(), nil
}

func (gtf *GenerateTextFormatter) SupportedType() string {
	return "GenerateResponse"
}

// GenerateMarkdownFormatter handles markdown formatting for generated documents
type GenerateMarkdownFormatter struct{}

func (gmf *GenerateMarkdownFormatter) Format(data any) (string, error) {
	result, err := asGenerateResponse(data)
	if err != nil {
		return "", err
	}
	out := result.Output

	var output strings.Builder

	output.WriteString("# Tailored Application\n\n")

	output.WriteString("## CV (ATS Version)\n\n")
	output.WriteString(out.CVATSVersion)
	output.WriteString("\n\n")

	output.WriteString("## CV (Human Version)\n\n")
	output.WriteString(out.CVHumanVersion)
	output.WriteString("\n\n")

	output.WriteString("## Cover Letter\n\n")
	output.WriteString(out.CoverLetter)
	output.WriteString("\n\n")

	output.WriteString("## Application Strategy\n\n")
	output.WriteString(out.ApplicationStrategy)
	output.WriteString("\n\n")

	output.WriteString("## Change Log\n\n")
	output.WriteString("| Original | Changed to | Reason |\n|---|---|---|\n")
	for _, entry := range out.ChangeLog {
		fmt.Fprintf(&output, "| %s | %s | %s |\n",
			escapeCell(entry.Original), escapeCell(entry.ChangedTo), escapeCell(entry.Reason))
	}
	output.WriteString("\n")

	if len(out.LinkedInTips) > 0 {
		output.WriteString("## LinkedIn Tips\n\n")
		for _, tip := range out.LinkedInTips {
			fmt.Fprintf(&output, "### %s\n\n", tip.Section)
			fmt.Fprintf(&output, "**Issue:** %s\n\n", tip.CurrentIssue)
			fmt.Fprintf(&output, "**Suggested:** %s\n\n", tip.RecommendedText)
			fmt.Fprintf(&output, "**Why:** %s\n\n", tip.Why)
		}
	}

	writeMarkdownList(&output, "Auto-fixes Applied", result.AutoFixesApplied)
	writeMarkdownList(&output, "AI Words Removed", result.AIWordsRemoved)

	return output.String(), nil
}

func (gmf *GenerateMarkdownFormatter) SupportedType() string {
	return "GenerateResponse"
}

func writeTextList(b *strings.Builder, title string, items []string) {
	fmt.Fprintf(b, "=== %s ===\n", title)
	if len(items) == 0 {
		b.WriteString("None\n\n")
		return
	}
	for _, item := range items {
		fmt.Fprintf(b, "- %s\n", item)
	}
	b.WriteString("\n")
}

func writeMarkdownList(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "## %s\n\n", title)
	for _, item := range items {
		fmt.Fprintf(b, "- %s\n", item)
	}
	b.WriteString("\n")
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", "<br>")
}

// GlobalRegistry is the default formatter registry instance
var GlobalRegistry = NewFormatterRegistry()
