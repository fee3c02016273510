// Package safety keeps generated text in guidance tone: procedural,
// non-advisory, and disclaimed. It never decides whether to answer (risk
// escalation lives in the classifier), only rewrites how.
package safety

import (
	"regexp"
	"strings"

	"github.com/lifeflow/guidance/internal/domain"
	"github.com/lifeflow/guidance/internal/model"
)

// guidanceReplacements rewrites advisory phrasing to guidance tone.
// Order matters: longer phrases first so "the law says you must" is not
// half-rewritten by "you must".
var guidanceReplacements = []struct {
	phrase      string
	replacement string
}{
	{"the law says you must", "according to the cited source, regulations typically require"},
	{"you are required to", "regulations typically require"},
	{"my recommendation is", "common approaches include"},
	{"it is mandatory", "regulations typically require"},
	{"i suggest you", "common approaches include"},
	{"this is the law", "according to the cited source"},
	{"i recommend", "common approaches include"},
	{"legal advice", "general guidance"},
	{"you need to", "people typically"},
	{"i advise", "many people find it helpful to"},
	{"you should", "people often"},
	{"you must", "typically, people"},
}

// Result reports what the filter changed.
type Result struct {
	ViolationsDetected int
	RewritesMade       int
}

// Filter rewrites LLM output to comply with guidance-not-advice boundaries.
type Filter struct {
	patterns []*regexp.Regexp
}

// NewFilter creates a new safety filter.
func NewFilter() *Filter {
	patterns := make([]*regexp.Regexp, len(guidanceReplacements))
	for i, r := range guidanceReplacements {
		patterns[i] = regexp.MustCompile(`(?i)` + regexp.QuoteMeta(r.phrase))
	}
	return &Filter{patterns: patterns}
}

// DetectViolations returns the prohibited phrases present in text.
func (f *Filter) DetectViolations(text string) []string {
	lower := strings.ToLower(text)
	var found []string
	for _, r := range guidanceReplacements {
		if strings.Contains(lower, r.phrase) {
			found = append(found, r.phrase)
		}
	}
	return found
}

// Rewrite replaces advisory phrasing in text with guidance tone and reports
// what changed.
func (f *Filter) Rewrite(text string) (string, Result) {
	res := Result{}
	for i, r := range guidanceReplacements {
		if !f.patterns[i].MatchString(text) {
			continue
		}
		res.ViolationsDetected++
		text = f.patterns[i].ReplaceAllString(text, r.replacement)
		res.RewritesMade++
	}
	return text, res
}

// FilterSuggestions rewrites every text field of the given suggestions and
// returns the combined result.
func (f *Filter) FilterSuggestions(suggestions []model.Suggestion) ([]model.Suggestion, Result) {
	total := Result{}
	out := make([]model.Suggestion, len(suggestions))
	for i, s := range suggestions {
		for _, field := range []*string{&s.Title, &s.Description, &s.WhyItMatters} {
			text, r := f.Rewrite(*field)
			*field = text
			total.ViolationsDetected += r.ViolationsDetected
			total.RewritesMade += r.RewritesMade
		}
		out[i] = s
	}
	return out, total
}

// Disclaimer returns the caveat line appended to every guidance response.
// High-risk domains get the stronger wording.
func Disclaimer(d domain.Domain) string {
	if domain.HighRisk(d) {
		return "This is general procedural guidance only. Matters in this area often " +
			"require professional legal assistance; please consult a qualified lawyer " +
			"for advice specific to your situation."
	}
	return "This is general guidance based on publicly available information. " +
		"It is not legal advice. For specific situations, consult a qualified professional."
}
