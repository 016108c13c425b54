package ops

import (
	"context"
	"database/sql"
	"time"

	"github.com/hpungsan/casekeep/internal/casefile"
	"github.com/hpungsan/casekeep/internal/config"
	"github.com/hpungsan/casekeep/internal/db"
)

// RecordTurnInput contains parameters for the RecordTurn operation.
type RecordTurnInput struct {
	Question string // empty permitted
	Answer   string // empty permitted

	// SessionID optionally scopes the turn
	SessionID *string

	// Timestamp defaults to now
	Timestamp *time.Time
}

// RecordTurn stores one question/answer exchange and returns it with its
// store-assigned ID.
func RecordTurn(ctx context.Context, database *sql.DB, cfg *config.Config, input RecordTurnInput) (*casefile.ChatTurn, error) {
	if err := checkTextSize(cfg, "question", input.Question); err != nil {
		return nil, err
	}
	if err := checkTextSize(cfg, "answer", input.Answer); err != nil {
		return nil, err
	}

	sessionID, err := optionalSessionID(input.SessionID)
	if err != nil {
		return nil, err
	}

	ts := time.Now().UTC()
	if input.Timestamp != nil && !input.Timestamp.IsZero() {
		ts = input.Timestamp.UTC()
	}

	turn := &casefile.ChatTurn{
		SessionID: sessionID,
		Question:  input.Question,
		Answer:    input.Answer,
		// Stored at second precision; keep the returned value identical to a re-read.
		Timestamp: ts.Truncate(time.Second),
	}

	if err := db.InsertTurn(ctx, database, turn); err != nil {
		return nil, err
	}

	return turn, nil
}

// ListTurnsInput contains parameters for the ListTurns operation.
type ListTurnsInput struct {
	SessionID *string // nil: all turns
	Limit     int     // 0: full history
	Offset    int
}

// ListTurnsOutput contains the result of the ListTurns operation.
type ListTurnsOutput struct {
	Items      []casefile.ChatTurn `json:"items"`
	Pagination Pagination          `json:"pagination"`
}

// ListTurns returns chat history oldest first as a materialized snapshot.
func ListTurns(ctx context.Context, database *sql.DB, input ListTurnsInput) (*ListTurnsOutput, error) {
	if err := validatePage(input.Limit, input.Offset); err != nil {
		return nil, err
	}
	sessionID, err := optionalSessionID(input.SessionID)
	if err != nil {
		return nil, err
	}

	tx, err := beginRead(ctx, database)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	items, err := db.ListTurns(ctx, tx, sessionID, input.Limit, input.Offset)
	if err != nil {
		return nil, err
	}
	total, err := db.CountTurns(ctx, tx, sessionID)
	if err != nil {
		return nil, err
	}

	return &ListTurnsOutput{
		Items:      items,
		Pagination: buildPagination(input.Limit, input.Offset, len(items), total),
	}, nil
}
