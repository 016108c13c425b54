package mcp

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/hpungsan/casekeep/internal/casefile"
	"github.com/hpungsan/casekeep/internal/config"
	"github.com/hpungsan/casekeep/internal/errors"
	"github.com/hpungsan/casekeep/internal/ops"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	db         *sql.DB
	cfg        *config.Config
	exportsDir string
	logger     *zap.Logger
}

// NewHandlers creates a new Handlers instance. A nil logger discards output.
func NewHandlers(db *sql.DB, cfg *config.Config, exportsDir string, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{db: db, cfg: cfg, exportsDir: exportsDir, logger: logger.Named("mcp")}
}

// Request types for each tool

// TurnRecordRequest represents the arguments for turn_record.
type TurnRecordRequest struct {
	Question  string  `json:"question"`
	Answer    string  `json:"answer"`
	SessionID *string `json:"session_id,omitempty"`
	Timestamp *string `json:"timestamp,omitempty"`
}

// TurnListRequest represents the arguments for turn_list.
type TurnListRequest struct {
	SessionID *string `json:"session_id,omitempty"`
	Limit     int     `json:"limit,omitempty"`
	Offset    int     `json:"offset,omitempty"`
}

// CaseUpdateRequest represents the arguments for case_update.
type CaseUpdateRequest struct {
	SessionID       string  `json:"session_id"`
	Company         *string `json:"company,omitempty"`
	Industry        *string `json:"industry,omitempty"`
	Geography       *string `json:"geography,omitempty"`
	HypothesisTree  *string `json:"hypothesis_tree,omitempty"`
	CurrentQuestion *string `json:"current_question,omitempty"`
	Mode            string  `json:"mode,omitempty"`
}

// SessionRequest represents the arguments for tools addressed by session only.
type SessionRequest struct {
	SessionID string `json:"session_id"`
}

// FeedbackLogRequest represents the arguments for feedback_log.
type FeedbackLogRequest struct {
	SessionID       string  `json:"session_id"`
	UserInput       string  `json:"user_input"`
	AIResponse      string  `json:"ai_response"`
	FeedbackType    string  `json:"feedback_type"`
	FeedbackDetails *string `json:"feedback_details,omitempty"`
}

// FeedbackListRequest represents the arguments for feedback_list.
type FeedbackListRequest struct {
	SessionID    string  `json:"session_id"`
	FeedbackType *string `json:"feedback_type,omitempty"`
	Limit        int     `json:"limit,omitempty"`
	Offset       int     `json:"offset,omitempty"`
}

// SessionExportRequest represents the arguments for session_export.
type SessionExportRequest struct {
	SessionID string `json:"session_id"`
	Path      string `json:"path,omitempty"`
}

// pageLimit applies the MCP default page size when the caller sent none.
func pageLimit(limit int) int {
	if limit == 0 {
		return ops.DefaultPageLimit
	}
	return limit
}

// Handler implementations

// HandleTurnRecord handles the turn_record tool call.
func (h *Handlers) HandleTurnRecord(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[TurnRecordRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidArgument(err.Error())), nil
	}

	var ts *time.Time
	if input.Timestamp != nil && *input.Timestamp != "" {
		parsed, err := time.Parse(time.RFC3339, *input.Timestamp)
		if err != nil {
			return errorResult(errors.NewInvalidArgument(fmt.Sprintf("timestamp must be RFC 3339: %v", err))), nil
		}
		ts = &parsed
	}

	result, err := ops.RecordTurn(ctx, h.db, h.cfg, ops.RecordTurnInput{
		Question:  input.Question,
		Answer:    input.Answer,
		SessionID: input.SessionID,
		Timestamp: ts,
	})
	if err != nil {
		return h.fail("turn_record", err), nil
	}

	return successResult(result)
}

// HandleTurnList handles the turn_list tool call.
func (h *Handlers) HandleTurnList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[TurnListRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidArgument(err.Error())), nil
	}

	result, err := ops.ListTurns(ctx, h.db, ops.ListTurnsInput{
		SessionID: input.SessionID,
		Limit:     pageLimit(input.Limit),
		Offset:    input.Offset,
	})
	if err != nil {
		return h.fail("turn_list", err), nil
	}

	return successResult(result)
}

// HandleCaseUpdate handles the case_update tool call.
func (h *Handlers) HandleCaseUpdate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[CaseUpdateRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidArgument(err.Error())), nil
	}

	result, err := ops.UpdateCaseState(ctx, h.db, h.cfg, ops.UpdateCaseStateInput{
		SessionID: input.SessionID,
		Fields: casefile.CaseFields{
			Company:         input.Company,
			Industry:        input.Industry,
			Geography:       input.Geography,
			HypothesisTree:  input.HypothesisTree,
			CurrentQuestion: input.CurrentQuestion,
		},
		Mode: ops.CaseMode(input.Mode),
	})
	if err != nil {
		return h.fail("case_update", err), nil
	}

	return successResult(result)
}

// HandleCaseGet handles the case_get tool call.
func (h *Handlers) HandleCaseGet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SessionRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidArgument(err.Error())), nil
	}

	result, err := ops.GetCaseState(ctx, h.db, ops.GetCaseStateInput{SessionID: input.SessionID})
	if err != nil {
		return h.fail("case_get", err), nil
	}

	return successResult(result)
}

// HandleFeedbackLog handles the feedback_log tool call.
func (h *Handlers) HandleFeedbackLog(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[FeedbackLogRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidArgument(err.Error())), nil
	}

	result, err := ops.LogFeedback(ctx, h.db, h.cfg, ops.LogFeedbackInput{
		SessionID:       input.SessionID,
		UserInput:       input.UserInput,
		AIResponse:      input.AIResponse,
		FeedbackType:    input.FeedbackType,
		FeedbackDetails: input.FeedbackDetails,
	})
	if err != nil {
		return h.fail("feedback_log", err), nil
	}

	return successResult(result)
}

// HandleFeedbackList handles the feedback_list tool call.
func (h *Handlers) HandleFeedbackList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[FeedbackListRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidArgument(err.Error())), nil
	}

	result, err := ops.ListFeedback(ctx, h.db, ops.ListFeedbackInput{
		SessionID:    input.SessionID,
		FeedbackType: input.FeedbackType,
		Limit:        pageLimit(input.Limit),
		Offset:       input.Offset,
	})
	if err != nil {
		return h.fail("feedback_list", err), nil
	}

	return successResult(result)
}

// HandleSessionNew handles the session_new tool call.
func (h *Handlers) HandleSessionNew(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := ops.NewSession()
	if err != nil {
		return h.fail("session_new", err), nil
	}
	return successResult(result)
}

// HandleSessionSummary handles the session_summary tool call.
func (h *Handlers) HandleSessionSummary(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SessionRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidArgument(err.Error())), nil
	}

	result, err := ops.SessionSummary(ctx, h.db, ops.SessionSummaryInput{SessionID: input.SessionID})
	if err != nil {
		return h.fail("session_summary", err), nil
	}

	return successResult(result)
}

// HandleSessionExport handles the session_export tool call.
func (h *Handlers) HandleSessionExport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SessionExportRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidArgument(err.Error())), nil
	}

	result, err := ops.ExportSession(ctx, h.db, h.exportsDir, ops.ExportSessionInput{
		SessionID: input.SessionID,
		Path:      input.Path,
	})
	if err != nil {
		return h.fail("session_export", err), nil
	}

	return successResult(result)
}

// Result helpers

// fail logs server-side failures with their hidden details, then builds the error result.
func (h *Handlers) fail(tool string, err error) *mcp.CallToolResult {
	var sErr *errors.StoreError
	if !stderrors.As(err, &sErr) || sErr.Code == errors.ErrInternal || sErr.Code == errors.ErrStorageUnavailable {
		fields := []zap.Field{zap.String("tool", tool), zap.Error(err)}
		if sErr != nil && sErr.Details != nil {
			fields = append(fields, zap.Any("details", sErr.Details))
		}
		h.logger.Error("tool call failed", fields...)
	}
	return errorResult(err)
}

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Details of INTERNAL and STORAGE_UNAVAILABLE errors stay server-side.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	var sErr *errors.StoreError
	if stderrors.As(err, &sErr) {
		message := sErr.Message
		if err != error(sErr) {
			message = err.Error()
		}
		errorObj := map[string]any{
			"code":    sErr.Code,
			"message": message,
			"status":  sErr.Status,
		}
		hidden := sErr.Code == errors.ErrInternal || sErr.Code == errors.ErrStorageUnavailable
		if !hidden && len(sErr.Details) > 0 {
			errorObj["details"] = sErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    errors.ErrInternal,
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
