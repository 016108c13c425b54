package ops

import (
	"context"
	"database/sql"
	"time"

	"github.com/hpungsan/casekeep/internal/casefile"
	"github.com/hpungsan/casekeep/internal/config"
	"github.com/hpungsan/casekeep/internal/db"
	"github.com/hpungsan/casekeep/internal/errors"
)

// CaseMode controls how UpdateCaseState treats fields the caller left out.
type CaseMode string

const (
	CaseModeReplace CaseMode = "replace" // default: unsupplied fields are cleared
	CaseModePatch   CaseMode = "patch"   // unsupplied fields keep their stored value
)

// UpdateCaseStateInput contains parameters for the UpdateCaseState operation.
type UpdateCaseStateInput struct {
	SessionID string // required
	Fields    casefile.CaseFields
	Mode      CaseMode // default: CaseModeReplace
}

// UpdateCaseState creates the session's case state or overwrites it in place.
// The write is a single atomic upsert, so there is never more than one row
// per session regardless of how many callers race.
func UpdateCaseState(ctx context.Context, database *sql.DB, cfg *config.Config, input UpdateCaseStateInput) (*casefile.CaseState, error) {
	sessionID, err := requireSessionID(input.SessionID)
	if err != nil {
		return nil, err
	}

	if input.Mode == "" {
		input.Mode = CaseModeReplace
	}
	if input.Mode != CaseModeReplace && input.Mode != CaseModePatch {
		return nil, errors.NewInvalidArgument("mode must be one of: replace, patch")
	}

	for _, nf := range input.Fields.Named() {
		if nf.Value == nil {
			continue
		}
		if err := checkTextSize(cfg, nf.Name, *nf.Value); err != nil {
			return nil, err
		}
	}

	return db.UpsertCaseState(ctx, database, sessionID, input.Fields, input.Mode == CaseModePatch, time.Now())
}

// GetCaseStateInput contains parameters for the GetCaseState operation.
type GetCaseStateInput struct {
	SessionID string // required
}

// GetCaseState returns the current case state for a session.
// A session that was never updated yields a NOT_FOUND error, never an empty record.
func GetCaseState(ctx context.Context, database *sql.DB, input GetCaseStateInput) (*casefile.CaseState, error) {
	sessionID, err := requireSessionID(input.SessionID)
	if err != nil {
		return nil, err
	}
	return db.GetCaseState(ctx, database, sessionID)
}

// ListSessionsInput contains parameters for the ListSessions operation.
type ListSessionsInput struct {
	Limit  int // 0: all
	Offset int
}

// ListSessionsOutput contains the result of the ListSessions operation.
type ListSessionsOutput struct {
	Items      []casefile.CaseState `json:"items"`
	Pagination Pagination           `json:"pagination"`
}

// ListSessions returns every session's case state, most recently updated first.
func ListSessions(ctx context.Context, database *sql.DB, input ListSessionsInput) (*ListSessionsOutput, error) {
	if err := validatePage(input.Limit, input.Offset); err != nil {
		return nil, err
	}

	tx, err := beginRead(ctx, database)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	items, err := db.ListCaseStates(ctx, tx, input.Limit, input.Offset)
	if err != nil {
		return nil, err
	}
	total, err := db.CountCaseStates(ctx, tx)
	if err != nil {
		return nil, err
	}

	return &ListSessionsOutput{
		Items:      items,
		Pagination: buildPagination(input.Limit, input.Offset, len(items), total),
	}, nil
}
