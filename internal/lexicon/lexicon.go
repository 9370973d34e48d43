// Package lexicon holds the word lists the detector and generator share:
// AI-associated vocabulary with plain replacements, strong action verbs,
// standard CV section headings and known skill terms.
package lexicon

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Lexicon is an immutable snapshot of the word lists. Callers must not mutate it.
type Lexicon struct {
	AIWords      []string          `yaml:"aiWords"`
	Replacements map[string]string `yaml:"replacements"`
	StrongVerbs  []string          `yaml:"strongVerbs"`
	Headings     map[string]string `yaml:"headings"`
	Skills       []string          `yaml:"skills"`
}

// StandardHeadings are the section names every generated CV uses, in order.
var StandardHeadings = []string{"Summary", "Experience", "Education", "Skills", "Projects", "Certifications"}

// Default returns the built-in lexicon.
func Default() *Lexicon {
	return &Lexicon{
		AIWords: []string{
			"spearheaded", "leveraged", "orchestrated", "streamlined", "pioneered",
			"facilitated", "demonstrated", "fostered", "cultivated", "navigated",
			"synergize", "dynamic", "passionate", "results-driven", "detail-oriented",
			"proactive", "innovative", "strategic thinker", "strong communication skills",
			"leverage", "robust solution",
		},
		Replacements: map[string]string{
			"spearheaded":                 "led",
			"leveraged":                   "used",
			"leverage":                    "use",
			"orchestrated":                "coordinated",
			"streamlined":                 "simplified",
			"pioneered":                   "introduced",
			"facilitated":                 "ran",
			"demonstrated":                "showed",
			"fostered":                    "built",
			"cultivated":                  "developed",
			"navigated":                   "handled",
			"synergize":                   "collaborate",
			"dynamic":                     "fast-moving",
			"passionate":                  "committed",
			"results-driven":              "outcome-focused",
			"detail-oriented":             "thorough",
			"proactive":                   "self-directed",
			"innovative":                  "new",
			"strategic thinker":           "planner",
			"strong communication skills": "clear written and spoken communication",
			"robust solution":             "reliable system",
		},
		StrongVerbs: []string{
			"Built", "Delivered", "Led", "Drove", "Reduced", "Grew", "Launched", "Solved",
			"Shipped", "Cut", "Doubled", "Improved", "Designed", "Implemented", "Deployed",
			"Authored", "Coordinated", "Produced", "Managed", "Negotiated", "Trained",
			"Established", "Resolved", "Automated", "Migrated", "Scaled", "Revamped",
		},
		Headings: map[string]string{
			"profile":                     "Summary",
			"about me":                    "Summary",
			"professional summary":        "Summary",
			"career summary":              "Summary",
			"personal statement":          "Summary",
			"objective":                   "Summary",
			"career objective":            "Summary",
			"work experience":             "Experience",
			"professional experience":     "Experience",
			"employment history":          "Experience",
			"work history":                "Experience",
			"career history":              "Experience",
			"relevant experience":         "Experience",
			"education and training":      "Education",
			"education & training":        "Education",
			"academic background":         "Education",
			"academic qualifications":     "Education",
			"qualifications":              "Education",
			"technical skills":            "Skills",
			"core competencies":           "Skills",
			"key skills":                  "Skills",
			"skills & abilities":          "Skills",
			"skills and abilities":        "Skills",
			"competencies":                "Skills",
			"personal projects":           "Projects",
			"key projects":                "Projects",
			"selected projects":           "Projects",
			"certificates":                "Certifications",
			"licenses & certifications":   "Certifications",
			"licenses and certifications": "Certifications",
			"certifications & licenses":   "Certifications",
		},
		Skills: []string{
			"python", "golang", "java", "javascript", "typescript", "c++", "c#", ".net",
			"rust", "ruby", "php", "scala", "kotlin", "swift", "sql", "nosql", "postgresql",
			"mysql", "mongodb", "redis", "kafka", "spark", "hadoop", "airflow", "dbt",
			"snowflake", "aws", "azure", "gcp", "docker", "kubernetes", "terraform",
			"ansible", "ci/cd", "git", "linux", "react", "angular", "vue", "node.js",
			"graphql", "rest api", "microservices", "html", "css", "tensorflow", "pytorch",
			"machine learning", "deep learning", "nlp", "data analysis", "data modeling",
			"statistics", "excel", "tableau", "power bi", "looker", "salesforce", "hubspot",
			"sap", "jira", "figma", "agile", "scrum", "kanban", "seo",
			"project management", "product management", "stakeholder management",
			"budgeting", "forecasting", "financial modeling", "b2b", "saas", "crm",
			"ux research", "user research", "a/b testing", "copywriting", "recruiting",
			"negotiation", "public speaking", "people management", "ios", "android",
		},
	}
}

// Load reads a YAML lexicon file and merges it over the defaults.
// Lists present in the file replace the default lists; maps are merged key by key.
func Load(path string) (*Lexicon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read lexicon file %s: %w", path, err)
	}

	var override Lexicon
	if err := yaml.Unmarshal(data, &override); err != nil {
		return nil, fmt.Errorf("failed to parse lexicon file %s: %w", path, err)
	}

	lex := Default()
	if len(override.AIWords) > 0 {
		lex.AIWords = normalizeList(override.AIWords)
	}
	if len(override.StrongVerbs) > 0 {
		lex.StrongVerbs = override.StrongVerbs
	}
	if len(override.Skills) > 0 {
		lex.Skills = normalizeList(override.Skills)
	}
	for k, v := range override.Replacements {
		lex.Replacements[strings.ToLower(strings.TrimSpace(k))] = v
	}
	for k, v := range override.Headings {
		lex.Headings[strings.ToLower(strings.TrimSpace(k))] = v
	}
	for _, w := range lex.AIWords {
		if strings.TrimSpace(lex.Replacements[w]) == "" {
			return nil, fmt.Errorf("lexicon file %s: AI word %q has no replacement", path, w)
		}
	}
	return lex, nil
}

// Replacement returns the plain alternative for an AI word, matching the
// capitalisation of the original occurrence.
func (l *Lexicon) Replacement(occurrence string) string {
	repl, ok := l.Replacements[strings.ToLower(occurrence)]
	if !ok {
		return ""
	}
	if occurrence != "" && occurrence[0] >= 'A' && occurrence[0] <= 'Z' && repl != "" {
		return strings.ToUpper(repl[:1]) + repl[1:]
	}
	return repl
}

// StandardHeading maps a heading variant to its standard name.
func (l *Lexicon) StandardHeading(line string) (string, bool) {
	key := strings.ToLower(strings.TrimSpace(strings.TrimRight(line, ":")))
	std, ok := l.Headings[key]
	return std, ok
}

func normalizeList(items []string) []string {
	out := make([]string, 0, len(items))
	seen := make(map[string]bool, len(items))
	for _, item := range items {
		item = strings.ToLower(strings.TrimSpace(item))
		if item == "" || seen[item] {
			continue
		}
		seen[item] = true
		out = append(out, item)
	}
	return out
}
