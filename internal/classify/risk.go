package classify

import (
	"regexp"
	"strings"

	"github.com/lifeflow/guidance/internal/domain"
	"github.com/lifeflow/guidance/internal/model"
)

// severeIndicators mark immediate legal jeopardy or personal danger.
var severeIndicators = []string{
	"arrest", "police", "criminal", "assault", "threat", "threatened",
	"harassment", "fraud", "impersonat", "forged", "fake document",
}

// moderateIndicators mark disputes that usually need professional handling.
var moderateIndicators = []string{
	"lawsuit", "court", "sued", "dispute over", "contract breach",
	"divorce", "custody", "eviction", "termination", "defamation",
	"inheritance dispute", "theft",
}

// urgencyMarkers raise the score when the user signals immediate pressure.
var urgencyMarkers = []string{
	"right now", "immediately", "urgent", "today", "emergency",
}

// monetaryPattern matches rupee amounts; disputes over money escalate.
var monetaryPattern = regexp.MustCompile(`₹\s*\d+|rs\.?\s*\d+|rupees?\s*\d+`)

// RiskAssessor scores queries for legal jeopardy, urgency, and impersonation
// risk. Scoring is deterministic: the same query always scores the same, and
// no model call can talk the system out of an escalation.
type RiskAssessor struct{}

// NewRiskAssessor creates a new risk assessor.
func NewRiskAssessor() *RiskAssessor {
	return &RiskAssessor{}
}

// Assess scores a query in the context of its classified domain. Scores are
// clamped to 0-5. A score of 4 or more forces SafeToProceed=false with a
// recommendation toward a professional channel; 3 or more populates Message.
func (a *RiskAssessor) Assess(query string, d domain.Domain) model.RiskAssessment {
	lower := strings.ToLower(query)
	score := 0

	for _, ind := range severeIndicators {
		if strings.Contains(lower, ind) {
			score += 2
		}
	}
	for _, ind := range moderateIndicators {
		if strings.Contains(lower, ind) {
			score++
		}
	}
	for _, m := range urgencyMarkers {
		if strings.Contains(lower, m) {
			score++
			break
		}
	}
	if monetaryPattern.MatchString(lower) {
		score++
	}
	if domain.HighRisk(d) {
		score += 2
	}

	if score > 5 {
		score = 5
	}

	result := model.RiskAssessment{
		SafeToProceed: true,
		RiskScore:     score,
	}

	switch {
	case score >= 4:
		result.SafeToProceed = false
		result.Recommendation = "professional_consultation"
		result.Message = "This situation appears to involve immediate legal risk. " +
			"Automated guidance is not appropriate here; please contact a qualified " +
			"lawyer or the relevant official helpline directly."
	case score >= 3:
		result.Recommendation = "consider_professional"
		result.Message = "This situation may require professional legal assistance. " +
			"General procedural guidance can help, but consulting a qualified " +
			"professional is strongly recommended for your specific case."
	}

	return result
}
