package model

import "time"

// Feedback records whether the user found a guidance response accurate.
// It feeds the historical-accuracy signal of confidence triangulation.
type Feedback struct {
	ID          string    `json:"id"`
	SituationID string    `json:"situation_id"`
	UserID      string    `json:"user_id"`
	Domain      string    `json:"domain"`
	Helpful     bool      `json:"helpful"`
	Comment     string    `json:"comment,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
