package model

// ClassificationResult is the output of one classification call. It is
// ephemeral: the caller copies what it needs onto the situation record.
type ClassificationResult struct {
	PrimaryDomain       string         `json:"primary_domain"`
	SecondaryDomain     string         `json:"secondary_domain,omitempty"`
	RelatedDomains      []string       `json:"related_domains"`
	Confidence          float64        `json:"confidence"` // always clipped to [0,1]
	UserFriendlySummary string         `json:"user_friendly_summary"`
	SuggestedKeywords   []string       `json:"suggested_keywords,omitempty"`
	Reasoning           string         `json:"reasoning,omitempty"`
	Risk                RiskAssessment `json:"risk_assessment"`
}

// RiskAssessment flags queries implying urgency, legal jeopardy, or
// impersonation risk. A score of 4 or 5 forces SafeToProceed=false and a
// populated Recommendation; a score of 3 or more requires Message.
type RiskAssessment struct {
	SafeToProceed  bool   `json:"safe_to_proceed"`
	RiskScore      int    `json:"risk_score"` // 0-5
	Recommendation string `json:"recommendation,omitempty"`
	Message        string `json:"message,omitempty"`
}

// RequiresEscalation reports whether guidance flow must short-circuit and
// return the risk recommendation instead of suggestions.
func (r RiskAssessment) RequiresEscalation() bool {
	return r.RiskScore >= 4
}
