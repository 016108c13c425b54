package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/hpungsan/casekeep/internal/casefile"
	"github.com/hpungsan/casekeep/internal/errors"
)

// TimeLayout matches what SQLite's CURRENT_TIMESTAMP writes, so rows written by
// this package and by column defaults share one format.
const TimeLayout = "2006-01-02 15:04:05"

// Querier is satisfied by both *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// --- Chat turns ---

// InsertTurn stores a new chat turn and sets its ID.
// The caller supplies the timestamp (ops defaults it to now).
func InsertTurn(ctx context.Context, q Querier, t *casefile.ChatTurn) error {
	query := `
		INSERT INTO chat_history (question, answer, timestamp, session_id)
		VALUES (?, ?, ?, ?)
	`

	result, err := q.ExecContext(ctx, query,
		t.Question, t.Answer, FormatTime(t.Timestamp), toNullString(t.SessionID),
	)
	if err != nil {
		return errors.NewStorageUnavailable(err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return errors.NewStorageUnavailable(err)
	}
	t.ID = id

	return nil
}

// ListTurns returns chat turns oldest first. A nil sessionID lists every turn.
// limit <= 0 means no limit.
func ListTurns(ctx context.Context, q Querier, sessionID *string, limit, offset int) ([]casefile.ChatTurn, error) {
	query := `
		SELECT id, session_id, question, answer, timestamp
		FROM chat_history
	`
	args := []any{}
	if sessionID != nil {
		query += " WHERE session_id = ?"
		args = append(args, *sessionID)
	}
	query += " ORDER BY id ASC LIMIT ? OFFSET ?"
	args = append(args, sqlLimit(limit), offset)

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.NewStorageUnavailable(err)
	}
	defer rows.Close()

	turns := make([]casefile.ChatTurn, 0)
	for rows.Next() {
		t, err := scanTurn(rows)
		if err != nil {
			return nil, errors.NewStorageUnavailable(err)
		}
		turns = append(turns, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStorageUnavailable(err)
	}

	return turns, nil
}

// CountTurns counts chat turns, optionally for one session.
func CountTurns(ctx context.Context, q Querier, sessionID *string) (int, error) {
	query := "SELECT COUNT(*) FROM chat_history"
	args := []any{}
	if sessionID != nil {
		query += " WHERE session_id = ?"
		args = append(args, *sessionID)
	}
	return count(ctx, q, query, args...)
}

func scanTurn(row rowScanner) (*casefile.ChatTurn, error) {
	var (
		t         casefile.ChatTurn
		sessionID sql.NullString
		ts        sql.NullString
	)
	if err := row.Scan(&t.ID, &sessionID, &t.Question, &t.Answer, &ts); err != nil {
		return nil, err
	}
	t.SessionID = fromNullString(sessionID)

	parsed, err := ParseTime(ts)
	if err != nil {
		return nil, err
	}
	t.Timestamp = parsed

	return &t, nil
}

// --- Case state ---

const caseStateColumns = `id, session_id, company, industry, geography,
	hypothesis_tree, current_question, last_updated`

// UpsertCaseState writes the case state for a session in a single statement,
// so concurrent writers for one session can never produce two rows.
//
// With patch=false every mutable field is replaced (nil clears it).
// With patch=true nil fields keep their stored value.
func UpsertCaseState(ctx context.Context, q Querier, sessionID string, f casefile.CaseFields, patch bool, now time.Time) (*casefile.CaseState, error) {
	named := f.Named()

	cols := make([]string, 0, len(named))
	sets := make([]string, 0, len(named)+1)
	args := []any{sessionID}
	for _, nf := range named {
		cols = append(cols, nf.Name)
		args = append(args, toNullString(nf.Value))
		if patch {
			sets = append(sets, fmt.Sprintf("%s = COALESCE(excluded.%s, case_state.%s)", nf.Name, nf.Name, nf.Name))
		} else {
			sets = append(sets, fmt.Sprintf("%s = excluded.%s", nf.Name, nf.Name))
		}
	}
	sets = append(sets, "last_updated = excluded.last_updated")
	args = append(args, FormatTime(now))

	query := fmt.Sprintf(`
		INSERT INTO case_state (session_id, %s, last_updated)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET %s
		RETURNING %s
	`, strings.Join(cols, ", "), strings.Join(sets, ", "), caseStateColumns)

	cs, err := scanCaseState(q.QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, errors.NewStorageUnavailable(err)
	}
	return cs, nil
}

// GetCaseState returns the case state for a session, or NOT_FOUND.
func GetCaseState(ctx context.Context, q Querier, sessionID string) (*casefile.CaseState, error) {
	query := "SELECT " + caseStateColumns + " FROM case_state WHERE session_id = ?"

	cs, err := scanCaseState(q.QueryRowContext(ctx, query, sessionID))
	if err == sql.ErrNoRows {
		return nil, errors.NewSessionNotFound(sessionID)
	}
	if err != nil {
		return nil, errors.NewStorageUnavailable(err)
	}
	return cs, nil
}

// ListCaseStates returns case states, most recently updated first.
func ListCaseStates(ctx context.Context, q Querier, limit, offset int) ([]casefile.CaseState, error) {
	query := "SELECT " + caseStateColumns + ` FROM case_state
		ORDER BY last_updated DESC, id DESC
		LIMIT ? OFFSET ?`

	rows, err := q.QueryContext(ctx, query, sqlLimit(limit), offset)
	if err != nil {
		return nil, errors.NewStorageUnavailable(err)
	}
	defer rows.Close()

	states := make([]casefile.CaseState, 0)
	for rows.Next() {
		cs, err := scanCaseState(rows)
		if err != nil {
			return nil, errors.NewStorageUnavailable(err)
		}
		states = append(states, *cs)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStorageUnavailable(err)
	}

	return states, nil
}

// CountCaseStates counts sessions that have a case state.
func CountCaseStates(ctx context.Context, q Querier) (int, error) {
	return count(ctx, q, "SELECT COUNT(*) FROM case_state")
}

func scanCaseState(row rowScanner) (*casefile.CaseState, error) {
	var (
		cs              casefile.CaseState
		company         sql.NullString
		industry        sql.NullString
		geography       sql.NullString
		hypothesisTree  sql.NullString
		currentQuestion sql.NullString
		lastUpdated     sql.NullString
	)

	err := row.Scan(
		&cs.ID, &cs.SessionID, &company, &industry, &geography,
		&hypothesisTree, &currentQuestion, &lastUpdated,
	)
	if err != nil {
		return nil, err
	}

	cs.Company = fromNullString(company)
	cs.Industry = fromNullString(industry)
	cs.Geography = fromNullString(geography)
	cs.HypothesisTree = fromNullString(hypothesisTree)
	cs.CurrentQuestion = fromNullString(currentQuestion)

	parsed, err := ParseTime(lastUpdated)
	if err != nil {
		return nil, err
	}
	cs.LastUpdated = parsed

	return &cs, nil
}

// --- Feedback ---

// InsertFeedback appends a feedback entry and sets its ID. Never deduplicates.
func InsertFeedback(ctx context.Context, q Querier, e *casefile.FeedbackEntry) error {
	query := `
		INSERT INTO feedback_logs (
			session_id, timestamp, user_input, ai_response, feedback_type, feedback_details
		) VALUES (?, ?, ?, ?, ?, ?)
	`

	result, err := q.ExecContext(ctx, query,
		e.SessionID, FormatTime(e.Timestamp), e.UserInput, e.AIResponse,
		e.FeedbackType, toNullString(e.FeedbackDetails),
	)
	if err != nil {
		return errors.NewStorageUnavailable(err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return errors.NewStorageUnavailable(err)
	}
	e.ID = id

	return nil
}

// ListFeedback returns a session's feedback oldest first, optionally filtered by type.
func ListFeedback(ctx context.Context, q Querier, sessionID string, feedbackType *string, limit, offset int) ([]casefile.FeedbackEntry, error) {
	query := `
		SELECT id, session_id, timestamp, user_input, ai_response, feedback_type, feedback_details
		FROM feedback_logs
		WHERE session_id = ?
	`
	args := []any{sessionID}
	if feedbackType != nil {
		query += " AND feedback_type = ?"
		args = append(args, *feedbackType)
	}
	query += " ORDER BY id ASC LIMIT ? OFFSET ?"
	args = append(args, sqlLimit(limit), offset)

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.NewStorageUnavailable(err)
	}
	defer rows.Close()

	entries := make([]casefile.FeedbackEntry, 0)
	for rows.Next() {
		e, err := scanFeedback(rows)
		if err != nil {
			return nil, errors.NewStorageUnavailable(err)
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStorageUnavailable(err)
	}

	return entries, nil
}

// CountFeedback counts a session's feedback, optionally filtered by type.
func CountFeedback(ctx context.Context, q Querier, sessionID string, feedbackType *string) (int, error) {
	query := "SELECT COUNT(*) FROM feedback_logs WHERE session_id = ?"
	args := []any{sessionID}
	if feedbackType != nil {
		query += " AND feedback_type = ?"
		args = append(args, *feedbackType)
	}
	return count(ctx, q, query, args...)
}

// CountFeedbackByType returns feedback counts keyed by type for one session.
// Rows with a NULL type are counted under "".
func CountFeedbackByType(ctx context.Context, q Querier, sessionID string) (map[string]int, error) {
	query := `
		SELECT COALESCE(feedback_type, ''), COUNT(*)
		FROM feedback_logs
		WHERE session_id = ?
		GROUP BY COALESCE(feedback_type, '')
	`

	rows, err := q.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, errors.NewStorageUnavailable(err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			typ string
			n   int
		)
		if err := rows.Scan(&typ, &n); err != nil {
			return nil, errors.NewStorageUnavailable(err)
		}
		counts[typ] = n
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStorageUnavailable(err)
	}

	return counts, nil
}

func scanFeedback(row rowScanner) (*casefile.FeedbackEntry, error) {
	var (
		e            casefile.FeedbackEntry
		ts           sql.NullString
		userInput    sql.NullString
		aiResponse   sql.NullString
		feedbackType sql.NullString
		details      sql.NullString
	)

	err := row.Scan(&e.ID, &e.SessionID, &ts, &userInput, &aiResponse, &feedbackType, &details)
	if err != nil {
		return nil, err
	}

	// Older rows may carry NULLs in these columns.
	e.UserInput = userInput.String
	e.AIResponse = aiResponse.String
	e.FeedbackType = feedbackType.String
	e.FeedbackDetails = fromNullString(details)

	parsed, err := ParseTime(ts)
	if err != nil {
		return nil, err
	}
	e.Timestamp = parsed

	return &e, nil
}

// --- Helpers ---

func count(ctx context.Context, q Querier, query string, args ...any) (int, error) {
	var n int
	if err := q.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, errors.NewStorageUnavailable(err)
	}
	return n, nil
}

// sqlLimit maps "no limit" (<= 0) to SQLite's LIMIT -1.
func sqlLimit(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}

// FormatTime renders t in TimeLayout (UTC).
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// timeLayouts are accepted when reading timestamps back. The driver may hand
// DATETIME columns over as time.Time, which database/sql renders as RFC 3339.
var timeLayouts = []string{
	TimeLayout,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
}

// ParseTime parses a stored timestamp. NULL yields the zero time.
func ParseTime(ns sql.NullString) (time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return time.Time{}, nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, ns.String); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", ns.String)
}

// toNullString converts a *string to sql.NullString.
func toNullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// fromNullString converts a sql.NullString to *string.
func fromNullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}
