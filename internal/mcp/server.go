package mcp

import (
	"database/sql"
	"path/filepath"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/hpungsan/casekeep/internal/config"
	"github.com/hpungsan/casekeep/internal/ops"
)

// KnownTypes lists all valid type names.
var KnownTypes = []string{"turn", "case", "feedback", "session"}

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"turn_record": {
		def:     turnRecordToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleTurnRecord },
	},
	"turn_list": {
		def:     turnListToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleTurnList },
	},
	"case_update": {
		def:     caseUpdateToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleCaseUpdate },
	},
	"case_get": {
		def:     caseGetToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleCaseGet },
	},
	"feedback_log": {
		def:     feedbackLogToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleFeedbackLog },
	},
	"feedback_list": {
		def:     feedbackListToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleFeedbackList },
	},
	"session_new": {
		def:     sessionNewToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSessionNew },
	},
	"session_summary": {
		def:     sessionSummaryToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSessionSummary },
	},
	"session_export": {
		def:     sessionExportToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSessionExport },
	},
}

// AllToolNames returns a list of all valid tool names.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	return names
}

// ValidateDisabledTools returns a list of unknown tool names from the given list.
func ValidateDisabledTools(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if _, ok := toolRegistry[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// ValidateDisabledTypes returns a list of unknown type names from the given list.
func ValidateDisabledTypes(names []string) []string {
	known := make(map[string]bool, len(KnownTypes))
	for _, t := range KnownTypes {
		known[t] = true
	}

	unknown := make([]string, 0)
	for _, name := range names {
		if !known[name] {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// GetTypeForTool extracts the type name from a tool name.
// Tool names follow the pattern "type_action" (e.g., "case_update" → "case").
func GetTypeForTool(toolName string) string {
	if idx := strings.Index(toolName, "_"); idx > 0 {
		return toolName[:idx]
	}
	return ""
}

// ExpandTypesToTools returns all tool names belonging to the given types.
func ExpandTypesToTools(types []string) []string {
	if len(types) == 0 {
		return nil
	}

	typeSet := make(map[string]bool, len(types))
	for _, t := range types {
		typeSet[t] = true
	}

	tools := make([]string, 0)
	for name := range toolRegistry {
		if typeSet[GetTypeForTool(name)] {
			tools = append(tools, name)
		}
	}
	return tools
}

// NewServer creates an MCP server with the casekeep tools registered.
// Tools listed in cfg.DisabledTools or belonging to cfg.DisabledTypes
// are excluded from registration.
func NewServer(db *sql.DB, cfg *config.Config, baseDir, version string, logger *zap.Logger) *server.MCPServer {
	s := server.NewMCPServer(
		"casekeep",
		version,
		server.WithToolCapabilities(true),
		server.WithInstructions("casekeep: chat history, per-session case state, and a feedback log for a case-interview assistant."),
		server.WithRecovery(),
	)

	h := NewHandlers(db, cfg, filepath.Join(baseDir, ops.ExportDirName), logger)

	unknownTools := ValidateDisabledTools(cfg.DisabledTools)
	unknownTypes := ValidateDisabledTypes(cfg.DisabledTypes)
	if len(unknownTools) > 0 {
		h.logger.Warn("unknown tools in disabled_tools", zap.Strings("tools", unknownTools))
	}
	if len(unknownTypes) > 0 {
		h.logger.Warn("unknown types in disabled_types", zap.Strings("types", unknownTypes))
	}

	disabled := make(map[string]bool)
	for _, tool := range ExpandTypesToTools(cfg.DisabledTypes) {
		disabled[tool] = true
	}
	for _, name := range cfg.DisabledTools {
		disabled[name] = true
	}

	for name, entry := range toolRegistry {
		if disabled[name] {
			continue
		}
		s.AddTool(entry.def, entry.handler(h))
	}

	return s
}

// Run starts the MCP server using stdio transport.
func Run(db *sql.DB, cfg *config.Config, baseDir, version string, logger *zap.Logger) error {
	s := NewServer(db, cfg, baseDir, version, logger)
	return server.ServeStdio(s)
}
