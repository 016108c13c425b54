package mcp

import "github.com/mark3labs/mcp-go/mcp"

var turnRecordToolDef = mcp.NewTool("turn_record",
	mcp.WithDescription("Record one question/answer exchange in the chat history. Returns the stored turn with its id."),
	mcp.WithString("question", mcp.Description("The user's question (may be empty)")),
	mcp.WithString("answer", mcp.Description("The assistant's answer (may be empty)")),
	mcp.WithString("session_id", mcp.Description("Optional session to scope the turn to")),
	mcp.WithString("timestamp", mcp.Description("Optional RFC 3339 timestamp; defaults to now")),
)

var turnListToolDef = mcp.NewTool("turn_list",
	mcp.WithDescription("List chat turns oldest first, optionally for one session."),
	mcp.WithString("session_id", mcp.Description("Only turns recorded for this session")),
	mcp.WithNumber("limit", mcp.Description("Page size (default 50, max 500)")),
	mcp.WithNumber("offset", mcp.Description("Turns to skip")),
)

var caseUpdateToolDef = mcp.NewTool("case_update",
	mcp.WithDescription("Create or overwrite the case state for a session. In replace mode (default) omitted fields are cleared; in patch mode they are kept."),
	mcp.WithString("session_id", mcp.Description("Session identifier"), mcp.Required()),
	mcp.WithString("company", mcp.Description("Company under discussion")),
	mcp.WithString("industry", mcp.Description("Industry")),
	mcp.WithString("geography", mcp.Description("Geography")),
	mcp.WithString("hypothesis_tree", mcp.Description("Serialized hypothesis tree, stored verbatim")),
	mcp.WithString("current_question", mcp.Description("The question currently being worked")),
	mcp.WithString("mode", mcp.Description("replace or patch"), mcp.Enum("replace", "patch")),
)

var caseGetToolDef = mcp.NewTool("case_get",
	mcp.WithDescription("Get the case state for a session. Returns NOT_FOUND if the session has none."),
	mcp.WithString("session_id", mcp.Description("Session identifier"), mcp.Required()),
)

var feedbackLogToolDef = mcp.NewTool("feedback_log",
	mcp.WithDescription("Append a feedback entry about an exchange. Identical calls create separate entries."),
	mcp.WithString("session_id", mcp.Description("Session identifier"), mcp.Required()),
	mcp.WithString("feedback_type", mcp.Description("Label such as mistake, positive_feedback, clarification_needed"), mcp.Required()),
	mcp.WithString("user_input", mcp.Description("The user's message being annotated")),
	mcp.WithString("ai_response", mcp.Description("The assistant's response being annotated")),
	mcp.WithString("feedback_details", mcp.Description("Optional free-form details")),
)

var feedbackListToolDef = mcp.NewTool("feedback_list",
	mcp.WithDescription("List a session's feedback entries oldest first."),
	mcp.WithString("session_id", mcp.Description("Session identifier"), mcp.Required()),
	mcp.WithString("feedback_type", mcp.Description("Only entries with this label")),
	mcp.WithNumber("limit", mcp.Description("Page size (default 50, max 500)")),
	mcp.WithNumber("offset", mcp.Description("Entries to skip")),
)

var sessionNewToolDef = mcp.NewTool("session_new",
	mcp.WithDescription("Mint a new session identifier. Nothing is stored until it is used."),
)

var sessionSummaryToolDef = mcp.NewTool("session_summary",
	mcp.WithDescription("Summarize one session: its case state (if any), turn count, and feedback counts by type."),
	mcp.WithString("session_id", mcp.Description("Session identifier"), mcp.Required()),
)

var sessionExportToolDef = mcp.NewTool("session_export",
	mcp.WithDescription("Export a session's case state, turns, and feedback to a JSONL file in the exports directory."),
	mcp.WithString("session_id", mcp.Description("Session identifier"), mcp.Required()),
	mcp.WithString("path", mcp.Description("Optional .jsonl path directly inside the exports directory")),
)
