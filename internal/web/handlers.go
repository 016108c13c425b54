package web

import (
	"database/sql"
	"net/http"
	"strconv"

	"github.com/hpungsan/casekeep/internal/config"
	"github.com/hpungsan/casekeep/internal/errors"
	"github.com/hpungsan/casekeep/internal/ops"
)

// Handlers contains HTTP route handlers for the web UI.
type Handlers struct {
	db       *sql.DB
	cfg      *config.Config
	renderer *Renderer
}

// HandleTurns handles GET /turns: chat history, oldest first.
func (h *Handlers) HandleTurns(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")

	result, err := ops.ListTurns(r.Context(), h.db, ops.ListTurnsInput{
		SessionID: ptrString(sessionID),
		Limit:     parseIntParam(r, "limit", ops.DefaultPageLimit),
		Offset:    parseIntParam(r, "offset", 0),
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}

	h.renderer.renderPage(w, r, "turns", TurnsPageData{
		PageData: PageData{
			Title:   "Chat history",
			Version: h.renderer.version,
			Nav:     "turns",
		},
		Items:      turnViews(result.Items),
		Pagination: result.Pagination,
		SessionID:  sessionID,
	})
}

// HandleSessions handles GET /sessions: every session with case state, most recent first.
func (h *Handlers) HandleSessions(w http.ResponseWriter, r *http.Request) {
	result, err := ops.ListSessions(r.Context(), h.db, ops.ListSessionsInput{
		Limit:  parseIntParam(r, "limit", ops.DefaultPageLimit),
		Offset: parseIntParam(r, "offset", 0),
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}

	h.renderer.renderPage(w, r, "sessions", SessionsPageData{
		PageData: PageData{
			Title:   "Sessions",
			Version: h.renderer.version,
			Nav:     "sessions",
		},
		Items:      result.Items,
		Pagination: result.Pagination,
	})
}

// HandleSession handles GET /sessions/{id}: case state, feedback log and turns of one session.
func (h *Handlers) HandleSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.renderer.renderError(w, r, errors.NewInvalidArgument("session_id is required"))
		return
	}
	ctx := r.Context()

	summary, err := ops.SessionSummary(ctx, h.db, ops.SessionSummaryInput{SessionID: id})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, summary)
		return
	}

	feedback, err := ops.ListFeedback(ctx, h.db, ops.ListFeedbackInput{SessionID: id})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	turns, err := ops.ListTurns(ctx, h.db, ops.ListTurnsInput{SessionID: &id})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	data := SessionPageData{
		PageData: PageData{
			Title:   "Session " + summary.SessionID,
			Version: h.renderer.version,
			Nav:     "sessions",
		},
		Summary:  summary,
		Feedback: feedback.Items,
		Turns:    turnViews(turns.Items),
	}
	if summary.CaseState != nil {
		data.Fields = summary.CaseState.Named()
	}

	h.renderer.renderPage(w, r, "session", data)
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}

// ptrString returns a pointer to s if non-empty, nil otherwise.
func ptrString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
