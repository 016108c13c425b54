package ops

import (
	"context"
	"testing"

	"github.com/hpungsan/casekeep/internal/casefile"
	"github.com/hpungsan/casekeep/internal/config"
	"github.com/hpungsan/casekeep/internal/errors"
)

func TestLogFeedback_ClarificationScenario(t *testing.T) {
	database := setupTestDB(t)
	ctx := context.Background()

	entry, err := LogFeedback(ctx, database, config.DefaultConfig(), LogFeedbackInput{
		SessionID:    "s1",
		UserInput:    "confusing",
		AIResponse:   "demand factors...",
		FeedbackType: casefile.FeedbackClarificationNeeded,
	})
	if err != nil {
		t.Fatalf("LogFeedback failed: %v", err)
	}
	if entry.ID == 0 {
		t.Error("ID should be assigned")
	}

	out, err := ListFeedback(ctx, database, ListFeedbackInput{SessionID: "s1"})
	if err != nil {
		t.Fatalf("ListFeedback failed: %v", err)
	}
	if len(out.Items) != 1 {
		t.Fatalf("len(Items) = %d, want 1", len(out.Items))
	}
	got := out.Items[0]
	if got.FeedbackType != "clarification_needed" || got.UserInput != "confusing" || got.AIResponse != "demand factors..." {
		t.Errorf("entry = %+v, want the logged clarification", got)
	}
	if got.FeedbackDetails != nil {
		t.Errorf("FeedbackDetails = %v, want nil", *got.FeedbackDetails)
	}
}

func TestLogFeedback_NoDedup(t *testing.T) {
	database := setupTestDB(t)
	ctx := context.Background()
	cfg := config.DefaultConfig()

	input := LogFeedbackInput{
		SessionID:    "s1",
		UserInput:    "same",
		AIResponse:   "same",
		FeedbackType: casefile.FeedbackMistake,
	}
	a, err := LogFeedback(ctx, database, cfg, input)
	if err != nil {
		t.Fatalf("first LogFeedback failed: %v", err)
	}
	b, err := LogFeedback(ctx, database, cfg, input)
	if err != nil {
		t.Fatalf("second LogFeedback failed: %v", err)
	}
	if a.ID == b.ID {
		t.Errorf("identical entries share ID %d", a.ID)
	}
	if b.ID <= a.ID {
		t.Errorf("IDs not increasing: %d then %d", a.ID, b.ID)
	}
}

func TestLogFeedback_OpenTypeSet(t *testing.T) {
	database := setupTestDB(t)

	entry, err := LogFeedback(context.Background(), database, config.DefaultConfig(), LogFeedbackInput{
		SessionID:       "s1",
		FeedbackType:    "  tone_issue ",
		FeedbackDetails: stringPtr("too formal"),
	})
	if err != nil {
		t.Fatalf("LogFeedback failed: %v", err)
	}
	if entry.FeedbackType != "tone_issue" {
		t.Errorf("FeedbackType = %q, want trimmed tone_issue", entry.FeedbackType)
	}
	if entry.FeedbackDetails == nil || *entry.FeedbackDetails != "too formal" {
		t.Errorf("FeedbackDetails = %v, want too formal", entry.FeedbackDetails)
	}
}

func TestLogFeedback_Validation(t *testing.T) {
	database := setupTestDB(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		cfg   *config.Config
		input LogFeedbackInput
		code  errors.ErrorCode
	}{
		{"missing session", config.DefaultConfig(), LogFeedbackInput{FeedbackType: "mistake"}, errors.ErrInvalidArgument},
		{"missing type", config.DefaultConfig(), LogFeedbackInput{SessionID: "s1", FeedbackType: " "}, errors.ErrInvalidArgument},
		{"input too large", &config.Config{MaxTextChars: 3}, LogFeedbackInput{SessionID: "s1", FeedbackType: "ok", UserInput: "long"}, errors.ErrTextTooLarge},
		{"details too large", &config.Config{MaxTextChars: 3}, LogFeedbackInput{SessionID: "s1", FeedbackType: "ok", FeedbackDetails: stringPtr("long")}, errors.ErrTextTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LogFeedback(ctx, database, tt.cfg, tt.input)
			if !errors.Is(err, tt.code) {
				t.Errorf("error = %v, want %s", err, tt.code)
			}
		})
	}
}

func TestListFeedback_FilterAndIsolation(t *testing.T) {
	database := setupTestDB(t)
	ctx := context.Background()
	cfg := config.DefaultConfig()

	entries := []LogFeedbackInput{
		{SessionID: "s1", FeedbackType: casefile.FeedbackMistake, UserInput: "one"},
		{SessionID: "s1", FeedbackType: casefile.FeedbackPositive, UserInput: "two"},
		{SessionID: "s1", FeedbackType: casefile.FeedbackMistake, UserInput: "three"},
		{SessionID: "s2", FeedbackType: casefile.FeedbackMistake, UserInput: "other"},
	}
	for _, e := range entries {
		if _, err := LogFeedback(ctx, database, cfg, e); err != nil {
			t.Fatalf("LogFeedback failed: %v", err)
		}
	}

	all, err := ListFeedback(ctx, database, ListFeedbackInput{SessionID: "s1"})
	if err != nil {
		t.Fatalf("ListFeedback failed: %v", err)
	}
	if len(all.Items) != 3 {
		t.Fatalf("len(Items) = %d, want 3", len(all.Items))
	}
	for i, want := range []string{"one", "two", "three"} {
		if all.Items[i].UserInput != want {
			t.Errorf("Items[%d].UserInput = %q, want %q", i, all.Items[i].UserInput, want)
		}
	}

	mistakes, err := ListFeedback(ctx, database, ListFeedbackInput{
		SessionID:    "s1",
		FeedbackType: stringPtr(casefile.FeedbackMistake),
	})
	if err != nil {
		t.Fatalf("ListFeedback failed: %v", err)
	}
	if len(mistakes.Items) != 2 || mistakes.Pagination.Total != 2 {
		t.Errorf("mistakes = %d items (total %d), want 2", len(mistakes.Items), mistakes.Pagination.Total)
	}

	empty, err := ListFeedback(ctx, database, ListFeedbackInput{SessionID: "unknown"})
	if err != nil {
		t.Fatalf("ListFeedback failed: %v", err)
	}
	if len(empty.Items) != 0 {
		t.Errorf("unknown session returned %d entries", len(empty.Items))
	}
}

func TestListFeedback_MissingSession(t *testing.T) {
	database := setupTestDB(t)

	_, err := ListFeedback(context.Background(), database, ListFeedbackInput{})
	if !errors.Is(err, errors.ErrInvalidArgument) {
		t.Errorf("error = %v, want INVALID_ARGUMENT", err)
	}
}
