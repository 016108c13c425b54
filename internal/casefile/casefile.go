// Package casefile defines the records kept by the context store: chat turns,
// the per-session case state, and the feedback log.
package casefile

import (
	"time"
	"unicode/utf8"
)

// Known feedback types. The set is open; any non-empty label is accepted.
const (
	FeedbackMistake             = "mistake"
	FeedbackPositive            = "positive_feedback"
	FeedbackClarificationNeeded = "clarification_needed"
)

// ChatTurn is one question/answer exchange. Immutable once recorded.
type ChatTurn struct {
	// ID is assigned by the store and strictly increases across all turns
	ID int64 `json:"id"`

	// SessionID optionally scopes the turn; nil for unscoped history
	SessionID *string `json:"session_id,omitempty"`

	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Timestamp time.Time `json:"timestamp"`
}

// CaseState is the single evolving record of an in-progress case interview.
// At most one exists per session.
type CaseState struct {
	ID        int64  `json:"id"`
	SessionID string `json:"session_id"`

	CaseFields

	// LastUpdated is refreshed on every write
	LastUpdated time.Time `json:"last_updated"`
}

// CaseFields holds the mutable fields of a CaseState. A nil field is stored as NULL.
type CaseFields struct {
	Company   *string `json:"company"`
	Industry  *string `json:"industry"`
	Geography *string `json:"geography"`

	// HypothesisTree is an opaque serialized tree; the store never interprets it
	HypothesisTree *string `json:"hypothesis_tree"`

	CurrentQuestion *string `json:"current_question"`
}

// Named returns the fields paired with their column names, in schema order.
func (f CaseFields) Named() []NamedField {
	return []NamedField{
		{Name: "company", Value: f.Company},
		{Name: "industry", Value: f.Industry},
		{Name: "geography", Value: f.Geography},
		{Name: "hypothesis_tree", Value: f.HypothesisTree},
		{Name: "current_question", Value: f.CurrentQuestion},
	}
}

// IsEmpty reports whether no field is set.
func (f CaseFields) IsEmpty() bool {
	for _, nf := range f.Named() {
		if nf.Value != nil {
			return false
		}
	}
	return true
}

// NamedField is a nullable text field with its column name.
type NamedField struct {
	Name  string
	Value *string
}

// FeedbackEntry annotates a prior exchange. Append-only.
type FeedbackEntry struct {
	ID              int64     `json:"id"`
	SessionID       string    `json:"session_id"`
	Timestamp       time.Time `json:"timestamp"`
	UserInput       string    `json:"user_input"`
	AIResponse      string    `json:"ai_response"`
	FeedbackType    string    `json:"feedback_type"`
	FeedbackDetails *string   `json:"feedback_details,omitempty"`
}

// CountChars returns the character count as runes (not bytes).
func CountChars(text string) int {
	return utf8.RuneCountInString(text)
}
