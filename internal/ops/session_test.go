package ops

import (
	"context"
	"testing"

	"github.com/oklog/ulid/v2"

	"github.com/hpungsan/casekeep/internal/casefile"
	"github.com/hpungsan/casekeep/internal/config"
	"github.com/hpungsan/casekeep/internal/errors"
)

func TestNewSession(t *testing.T) {
	a, err := NewSession()
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}
	b, err := NewSession()
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}

	if a.SessionID == b.SessionID {
		t.Errorf("session ids collide: %s", a.SessionID)
	}
	if _, err := ulid.Parse(a.SessionID); err != nil {
		t.Errorf("session id %q is not a ULID: %v", a.SessionID, err)
	}
}

func TestSessionSummary_Empty(t *testing.T) {
	database := setupTestDB(t)

	out, err := SessionSummary(context.Background(), database, SessionSummaryInput{SessionID: "fresh"})
	if err != nil {
		t.Fatalf("SessionSummary failed: %v", err)
	}
	if out.CaseState != nil {
		t.Errorf("CaseState = %+v, want nil", out.CaseState)
	}
	if out.TurnCount != 0 || out.FeedbackCount != 0 || len(out.FeedbackTypes) != 0 {
		t.Errorf("summary = %+v, want zero counts", out)
	}
}

func TestSessionSummary_Populated(t *testing.T) {
	database := setupTestDB(t)
	ctx := context.Background()
	cfg := config.DefaultConfig()

	if _, err := UpdateCaseState(ctx, database, cfg, UpdateCaseStateInput{
		SessionID: "s1",
		Fields:    casefile.CaseFields{Company: stringPtr("Fringles")},
	}); err != nil {
		t.Fatalf("UpdateCaseState failed: %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := RecordTurn(ctx, database, cfg, RecordTurnInput{Question: "q", Answer: "a", SessionID: stringPtr("s1")}); err != nil {
			t.Fatalf("RecordTurn failed: %v", err)
		}
	}
	if _, err := RecordTurn(ctx, database, cfg, RecordTurnInput{Question: "q", Answer: "a"}); err != nil {
		t.Fatalf("RecordTurn failed: %v", err)
	}
	for _, ft := range []string{casefile.FeedbackMistake, casefile.FeedbackMistake, casefile.FeedbackPositive} {
		if _, err := LogFeedback(ctx, database, cfg, LogFeedbackInput{SessionID: "s1", FeedbackType: ft}); err != nil {
			t.Fatalf("LogFeedback failed: %v", err)
		}
	}

	out, err := SessionSummary(ctx, database, SessionSummaryInput{SessionID: "s1"})
	if err != nil {
		t.Fatalf("SessionSummary failed: %v", err)
	}
	if out.CaseState == nil || *out.CaseState.Company != "Fringles" {
		t.Errorf("CaseState = %+v, want Fringles", out.CaseState)
	}
	if out.TurnCount != 2 {
		t.Errorf("TurnCount = %d, want 2", out.TurnCount)
	}
	if out.FeedbackCount != 3 {
		t.Errorf("FeedbackCount = %d, want 3", out.FeedbackCount)
	}
	if out.FeedbackTypes[casefile.FeedbackMistake] != 2 || out.FeedbackTypes[casefile.FeedbackPositive] != 1 {
		t.Errorf("FeedbackTypes = %v", out.FeedbackTypes)
	}
}

func TestSessionSummary_MissingSession(t *testing.T) {
	database := setupTestDB(t)

	_, err := SessionSummary(context.Background(), database, SessionSummaryInput{})
	if !errors.Is(err, errors.ErrInvalidArgument) {
		t.Errorf("error = %v, want INVALID_ARGUMENT", err)
	}
}
