package ops

import (
	"context"
	"database/sql"
	"strings"

	"github.com/hpungsan/casekeep/internal/casefile"
	"github.com/hpungsan/casekeep/internal/config"
	"github.com/hpungsan/casekeep/internal/errors"
)

// Pagination limits
const (
	DefaultPageLimit = 50
	MaxPageLimit     = 500
)

// Pagination contains pagination metadata for list operations.
type Pagination struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
	Total   int  `json:"total"`
}

// validatePage checks limit/offset. A zero limit means "everything".
func validatePage(limit, offset int) error {
	if limit < 0 {
		return errors.NewInvalidArgument("limit must not be negative")
	}
	if limit > MaxPageLimit {
		return errors.NewInvalidArgument("limit must not exceed 500")
	}
	if offset < 0 {
		return errors.NewInvalidArgument("offset must not be negative")
	}
	return nil
}

func buildPagination(limit, offset, returned, total int) Pagination {
	return Pagination{
		Limit:   limit,
		Offset:  offset,
		HasMore: offset+returned < total,
		Total:   total,
	}
}

// requireSessionID validates a session identifier. IDs are opaque and stored
// exactly as given, so padded values are rejected rather than rewritten.
func requireSessionID(sessionID string) (string, error) {
	if sessionID == "" {
		return "", errors.NewInvalidArgument("session_id is required")
	}
	if strings.TrimSpace(sessionID) != sessionID {
		return "", errors.NewInvalidArgument("session_id must not have leading or trailing whitespace")
	}
	return sessionID, nil
}

// optionalSessionID validates a session identifier that may be omitted; nil
// and empty both mean unscoped.
func optionalSessionID(sessionID *string) (*string, error) {
	if sessionID == nil || *sessionID == "" {
		return nil, nil
	}
	if _, err := requireSessionID(*sessionID); err != nil {
		return nil, err
	}
	return sessionID, nil
}

// checkTextSize enforces cfg.MaxTextChars on a text field.
func checkTextSize(cfg *config.Config, field, text string) error {
	if cfg == nil || cfg.MaxTextChars <= 0 {
		return nil
	}
	if n := casefile.CountChars(text); n > cfg.MaxTextChars {
		return errors.NewTextTooLarge(field, cfg.MaxTextChars, n)
	}
	return nil
}

// beginRead opens a transaction so multi-query reads see one snapshot.
func beginRead(ctx context.Context, database *sql.DB) (*sql.Tx, error) {
	tx, err := database.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.NewStorageUnavailable(err)
	}
	return tx, nil
}
