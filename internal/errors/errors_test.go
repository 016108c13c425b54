package errors

import (
	"fmt"
	"testing"
)

func TestStoreError_Error(t *testing.T) {
	err := &StoreError{
		Code:    ErrNotFound,
		Status:  404,
		Message: "no case state for session: s1",
	}

	expected := "NOT_FOUND: no case state for session: s1"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestNewInvalidArgument(t *testing.T) {
	err := NewInvalidArgument("session_id is required")

	if err.Code != ErrInvalidArgument {
		t.Errorf("Code = %q, want %q", err.Code, ErrInvalidArgument)
	}
	if err.Status != 400 {
		t.Errorf("Status = %d, want 400", err.Status)
	}
	if err.Message != "session_id is required" {
		t.Errorf("Message = %q, want %q", err.Message, "session_id is required")
	}
}

func TestNewSessionNotFound(t *testing.T) {
	err := NewSessionNotFound("s1")

	if err.Code != ErrNotFound {
		t.Errorf("Code = %q, want %q", err.Code, ErrNotFound)
	}
	if err.Status != 404 {
		t.Errorf("Status = %d, want 404", err.Status)
	}
	if err.Details["session_id"] != "s1" {
		t.Errorf("Details[session_id] = %v, want %q", err.Details["session_id"], "s1")
	}
}

func TestNewTextTooLarge(t *testing.T) {
	err := NewTextTooLarge("answer", 100, 150)

	if err.Code != ErrTextTooLarge {
		t.Errorf("Code = %q, want %q", err.Code, ErrTextTooLarge)
	}
	if err.Status != 413 {
		t.Errorf("Status = %d, want 413", err.Status)
	}
	if err.Details["field"] != "answer" {
		t.Errorf("Details[field] = %v, want answer", err.Details["field"])
	}
	if err.Details["max_chars"] != 100 {
		t.Errorf("Details[max_chars] = %v, want 100", err.Details["max_chars"])
	}
	if err.Details["actual_chars"] != 150 {
		t.Errorf("Details[actual_chars] = %v, want 150", err.Details["actual_chars"])
	}
}

func TestNewStorageUnavailable(t *testing.T) {
	err := NewStorageUnavailable(fmt.Errorf("database is locked"))

	if err.Code != ErrStorageUnavailable {
		t.Errorf("Code = %q, want %q", err.Code, ErrStorageUnavailable)
	}
	if err.Status != 503 {
		t.Errorf("Status = %d, want 503", err.Status)
	}
	if err.Message != "storage unavailable" {
		t.Errorf("Message = %q, want %q", err.Message, "storage unavailable")
	}
	if err.Details["storage_error"] != "database is locked" {
		t.Errorf("Details[storage_error] = %v, want %q", err.Details["storage_error"], "database is locked")
	}
}

func TestNewInternal(t *testing.T) {
	t.Run("with error", func(t *testing.T) {
		err := NewInternal(fmt.Errorf("marshal failed"))

		if err.Code != ErrInternal {
			t.Errorf("Code = %q, want %q", err.Code, ErrInternal)
		}
		if err.Status != 500 {
			t.Errorf("Status = %d, want 500", err.Status)
		}
		if err.Message != "an internal error occurred" {
			t.Errorf("Message = %q, want %q", err.Message, "an internal error occurred")
		}
		if err.Details["internal_error"] != "marshal failed" {
			t.Errorf("Details[internal_error] = %q, want %q", err.Details["internal_error"], "marshal failed")
		}
	})

	t.Run("with nil", func(t *testing.T) {
		err := NewInternal(nil)

		if err.Details == nil {
			t.Error("Details should not be nil")
		}
	})
}

func TestIs(t *testing.T) {
	t.Run("matching code", func(t *testing.T) {
		if !Is(NewSessionNotFound("s1"), ErrNotFound) {
			t.Error("Is() = false, want true")
		}
	})

	t.Run("non-matching code", func(t *testing.T) {
		if Is(NewSessionNotFound("s1"), ErrStorageUnavailable) {
			t.Error("Is() = true, want false")
		}
	})

	t.Run("non-StoreError", func(t *testing.T) {
		if Is(fmt.Errorf("plain error"), ErrNotFound) {
			t.Error("Is() = true, want false for non-StoreError")
		}
	})

	t.Run("wrapped StoreError", func(t *testing.T) {
		wrapped := fmt.Errorf("case_get: %w", NewStorageUnavailable(nil))
		if !Is(wrapped, ErrStorageUnavailable) {
			t.Error("Is() = false, want true for wrapped StoreError")
		}
	})
}
