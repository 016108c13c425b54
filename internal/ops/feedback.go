package ops

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/hpungsan/casekeep/internal/casefile"
	"github.com/hpungsan/casekeep/internal/config"
	"github.com/hpungsan/casekeep/internal/db"
	"github.com/hpungsan/casekeep/internal/errors"
)

// LogFeedbackInput contains parameters for the LogFeedback operation.
type LogFeedbackInput struct {
	SessionID       string // required
	UserInput       string
	AIResponse      string
	FeedbackType    string // required; any label, e.g. casefile.FeedbackMistake
	FeedbackDetails *string
}

// LogFeedback appends a feedback entry. Identical calls produce distinct entries.
func LogFeedback(ctx context.Context, database *sql.DB, cfg *config.Config, input LogFeedbackInput) (*casefile.FeedbackEntry, error) {
	sessionID, err := requireSessionID(input.SessionID)
	if err != nil {
		return nil, err
	}

	feedbackType := strings.TrimSpace(input.FeedbackType)
	if feedbackType == "" {
		return nil, errors.NewInvalidArgument("feedback_type is required")
	}

	checks := []struct{ field, text string }{
		{"user_input", input.UserInput},
		{"ai_response", input.AIResponse},
		{"feedback_type", feedbackType},
	}
	if input.FeedbackDetails != nil {
		checks = append(checks, struct{ field, text string }{"feedback_details", *input.FeedbackDetails})
	}
	for _, c := range checks {
		if err := checkTextSize(cfg, c.field, c.text); err != nil {
			return nil, err
		}
	}

	entry := &casefile.FeedbackEntry{
		SessionID:       sessionID,
		Timestamp:       time.Now().UTC().Truncate(time.Second),
		UserInput:       input.UserInput,
		AIResponse:      input.AIResponse,
		FeedbackType:    feedbackType,
		FeedbackDetails: input.FeedbackDetails,
	}

	if err := db.InsertFeedback(ctx, database, entry); err != nil {
		return nil, err
	}

	return entry, nil
}

// ListFeedbackInput contains parameters for the ListFeedback operation.
type ListFeedbackInput struct {
	SessionID    string  // required
	FeedbackType *string // optional filter
	Limit        int     // 0: all
	Offset       int
}

// ListFeedbackOutput contains the result of the ListFeedback operation.
type ListFeedbackOutput struct {
	Items      []casefile.FeedbackEntry `json:"items"`
	Pagination Pagination               `json:"pagination"`
}

// ListFeedback returns a session's feedback log oldest first.
func ListFeedback(ctx context.Context, database *sql.DB, input ListFeedbackInput) (*ListFeedbackOutput, error) {
	sessionID, err := requireSessionID(input.SessionID)
	if err != nil {
		return nil, err
	}
	if err := validatePage(input.Limit, input.Offset); err != nil {
		return nil, err
	}

	var feedbackType *string
	if input.FeedbackType != nil {
		if t := strings.TrimSpace(*input.FeedbackType); t != "" {
			feedbackType = &t
		}
	}

	tx, err := beginRead(ctx, database)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	items, err := db.ListFeedback(ctx, tx, sessionID, feedbackType, input.Limit, input.Offset)
	if err != nil {
		return nil, err
	}
	total, err := db.CountFeedback(ctx, tx, sessionID, feedbackType)
	if err != nil {
		return nil, err
	}

	return &ListFeedbackOutput{
		Items:      items,
		Pagination: buildPagination(input.Limit, input.Offset, len(items), total),
	}, nil
}
