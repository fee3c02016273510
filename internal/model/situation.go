package model

import "time"

// SituationStatus models the lifecycle of a tracked concern. Situations are
// never deleted implicitly; a status transition ends the lifecycle.
type SituationStatus string

const (
	StatusDraft    SituationStatus = "draft"
	StatusActive   SituationStatus = "active"
	StatusResolved SituationStatus = "resolved"
)

// SituationPriority marks urgency surfaced by risk assessment.
type SituationPriority string

const (
	PriorityNormal SituationPriority = "normal"
	PriorityUrgent SituationPriority = "urgent"
)

// GuidanceState is the readiness state machine for a situation. Clarification
// questions are only generated after classification completes, and guidance
// only after clarification is answered or explicitly skipped.
type GuidanceState string

const (
	StateClassified            GuidanceState = "CLASSIFIED"
	StateAwaitingClarification GuidanceState = "AWAITING_CLARIFICATION"
	StateReadyForGuidance      GuidanceState = "READY_FOR_GUIDANCE"
	StateGuidanceGenerated     GuidanceState = "GUIDANCE_GENERATED"
)

// Situation is a user's tracked real-world concern, persisted across
// sessions. It is the only shared mutable resource in the pipeline.
type Situation struct {
	ID              string               `json:"id"`
	UserID          string               `json:"user_id"`
	Description     string               `json:"description"`
	PrimaryDomain   string               `json:"primary_domain"`
	SecondaryDomain string               `json:"secondary_domain,omitempty"`
	RelatedDomains  []string             `json:"related_domains,omitempty"`
	Status          SituationStatus      `json:"status"`
	Priority        SituationPriority    `json:"priority"`
	State           GuidanceState        `json:"state"`
	Risk            RiskAssessment       `json:"risk_assessment"`
	Confidence      float64              `json:"classification_confidence"`
	Answers         []ClarificationAnswer `json:"clarification_answers,omitempty"`
	Guidance        []GuidanceResponse   `json:"guidance,omitempty"`
	CreatedAt       time.Time            `json:"created_at"`
	UpdatedAt       time.Time            `json:"updated_at"`
}

// ValidTransition reports whether moving the readiness state machine from one
// state to another is allowed. Duplicate skip requests land on the same state
// and are valid (idempotent).
func ValidTransition(from, to GuidanceState) bool {
	if from == to {
		return true
	}
	switch from {
	case StateClassified:
		return to == StateAwaitingClarification || to == StateReadyForGuidance
	case StateAwaitingClarification:
		return to == StateReadyForGuidance
	case StateReadyForGuidance:
		return to == StateGuidanceGenerated
	case StateGuidanceGenerated:
		// Further guidance rounds restart the ready state.
		return to == StateReadyForGuidance
	}
	return false
}
