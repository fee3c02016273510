package model

// QuestionType distinguishes dropdown questions from free text.
type QuestionType string

const (
	QuestionChoice   QuestionType = "choice"
	QuestionFreeText QuestionType = "free_text"
)

// ClarificationQuestion is a follow-up question used to disambiguate a
// situation before guidance. IDs are stable per ambiguity class so repeated
// answers upsert instead of duplicating.
type ClarificationQuestion struct {
	ID      string       `json:"id"`
	Text    string       `json:"text"`
	Type    QuestionType `json:"type"`
	Options []string     `json:"options,omitempty"` // required iff type is choice
}

// ClarificationAnswer carries the user's answer plus a denormalized copy of
// the question text for audit.
type ClarificationAnswer struct {
	QuestionID   string `json:"question_id"`
	QuestionText string `json:"question_text"`
	Answer       string `json:"answer"`
}
