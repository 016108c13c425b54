package ops

import (
	"context"
	"crypto/rand"
	"database/sql"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hpungsan/casekeep/internal/casefile"
	"github.com/hpungsan/casekeep/internal/db"
	"github.com/hpungsan/casekeep/internal/errors"
)

// NewSessionOutput contains the result of the NewSession operation.
type NewSessionOutput struct {
	SessionID string `json:"session_id"`
}

// NewSession mints an opaque session identifier. Nothing is written until the
// caller records against it.
func NewSession() (*NewSessionOutput, error) {
	id, err := generateULID()
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return &NewSessionOutput{SessionID: id}, nil
}

// generateULID generates a new ULID.
func generateULID() (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// SessionSummaryInput contains parameters for the SessionSummary operation.
type SessionSummaryInput struct {
	SessionID string // required
}

// SessionSummaryOutput describes everything stored for one session.
type SessionSummaryOutput struct {
	SessionID     string              `json:"session_id"`
	CaseState     *casefile.CaseState `json:"case_state,omitempty"`
	TurnCount     int                 `json:"turn_count"`
	FeedbackCount int                 `json:"feedback_count"`
	FeedbackTypes map[string]int      `json:"feedback_types"`
}

// SessionSummary reads a session's case state and counts in one snapshot.
// Unlike GetCaseState, a session without case state is not an error.
func SessionSummary(ctx context.Context, database *sql.DB, input SessionSummaryInput) (*SessionSummaryOutput, error) {
	sessionID, err := requireSessionID(input.SessionID)
	if err != nil {
		return nil, err
	}

	tx, err := beginRead(ctx, database)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	out := &SessionSummaryOutput{SessionID: sessionID}

	cs, err := db.GetCaseState(ctx, tx, sessionID)
	switch {
	case err == nil:
		out.CaseState = cs
	case errors.Is(err, errors.ErrNotFound):
		// no case state yet
	default:
		return nil, err
	}

	if out.TurnCount, err = db.CountTurns(ctx, tx, &sessionID); err != nil {
		return nil, err
	}
	if out.FeedbackTypes, err = db.CountFeedbackByType(ctx, tx, sessionID); err != nil {
		return nil, err
	}
	for _, n := range out.FeedbackTypes {
		out.FeedbackCount += n
	}

	return out, nil
}
