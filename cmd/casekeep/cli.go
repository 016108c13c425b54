package main

import (
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/hpungsan/casekeep/internal/casefile"
	"github.com/hpungsan/casekeep/internal/config"
	"github.com/hpungsan/casekeep/internal/errors"
	"github.com/hpungsan/casekeep/internal/ops"
	"github.com/hpungsan/casekeep/internal/web"
)

// newCLIApp creates the CLI application with all commands.
func newCLIApp(db *sql.DB, cfg *config.Config, baseDir string, logger *zap.Logger) *cli.App {
	if logger == nil {
		logger = zap.NewNop()
	}
	app := &cli.App{
		Name:    "casekeep",
		Usage:   "Session context store: chat history, case state, feedback log",
		Version: Version,
		Commands: []*cli.Command{
			turnCmd(db, cfg),
			caseCmd(db, cfg),
			feedbackCmd(db, cfg),
			sessionCmd(db, baseDir),
			uiCmd(db, cfg, logger),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// turnCmd creates the turn command group.
func turnCmd(db *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "turn",
		Usage: "Record and list chat turns",
		Subcommands: []*cli.Command{
			{
				Name:  "record",
				Usage: "Record a question/answer exchange (answer may be piped via stdin)",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "question", Aliases: []string{"q"}, Usage: "The user's question"},
					&cli.StringFlag{Name: "answer", Aliases: []string{"a"}, Usage: "The assistant's answer"},
					&cli.StringFlag{Name: "session", Aliases: []string{"s"}, Usage: "Session to scope the turn to"},
					&cli.StringFlag{Name: "timestamp", Usage: "RFC 3339 timestamp (default: now)"},
				},
				Action: func(c *cli.Context) error {
					input := ops.RecordTurnInput{
						Question: c.String("question"),
						Answer:   c.String("answer"),
					}

					if !c.IsSet("answer") && stdinHasData() {
						answer, err := readStdin(stdinLimit(cfg))
						if err != nil {
							return outputError(err)
						}
						input.Answer = answer
					}
					if s := c.String("session"); s != "" {
						input.SessionID = &s
					}
					if ts := c.String("timestamp"); ts != "" {
						parsed, err := time.Parse(time.RFC3339, ts)
						if err != nil {
							return outputError(errors.NewInvalidArgument(fmt.Sprintf("timestamp must be RFC 3339: %v", err)))
						}
						input.Timestamp = &parsed
					}

					output, err := ops.RecordTurn(c.Context, db, cfg, input)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:  "list",
				Usage: "List chat turns oldest first",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "session", Aliases: []string{"s"}, Usage: "Only turns for this session"},
					&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: 0, Usage: "Max results (0: all)"},
					&cli.IntFlag{Name: "offset", Value: 0, Usage: "Pagination offset"},
				},
				Action: func(c *cli.Context) error {
					input := ops.ListTurnsInput{
						Limit:  c.Int("limit"),
						Offset: c.Int("offset"),
					}
					if s := c.String("session"); s != "" {
						input.SessionID = &s
					}

					output, err := ops.ListTurns(c.Context, db, input)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
		},
	}
}

// caseFieldFlags are the CLI flags for the mutable case state fields, keyed by column name.
var caseFieldFlags = map[string]string{
	"company":          "company",
	"industry":         "industry",
	"geography":        "geography",
	"hypothesis_tree":  "hypothesis-tree",
	"current_question": "current-question",
}

// caseCmd creates the case command group.
func caseCmd(db *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "case",
		Usage: "Set, get and list per-session case state",
		Subcommands: []*cli.Command{
			{
				Name:      "set",
				Usage:     "Create or overwrite a session's case state (unset fields are cleared unless --patch)",
				ArgsUsage: "[options] <session>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "company", Usage: "Company under discussion"},
					&cli.StringFlag{Name: "industry", Usage: "Industry"},
					&cli.StringFlag{Name: "geography", Usage: "Geography"},
					&cli.StringFlag{Name: "hypothesis-tree", Usage: "Serialized hypothesis tree (use - to read stdin)"},
					&cli.StringFlag{Name: "current-question", Usage: "Question currently being worked"},
					&cli.BoolFlag{Name: "patch", Usage: "Keep fields that are not given"},
				},
				Action: func(c *cli.Context) error {
					input := ops.UpdateCaseStateInput{
						SessionID: c.Args().First(),
						Mode:      ops.CaseModeReplace,
					}
					if c.Bool("patch") {
						input.Mode = ops.CaseModePatch
					}

					values := make(map[string]*string, len(caseFieldFlags))
					for column, flag := range caseFieldFlags {
						if !c.IsSet(flag) {
							continue
						}
						v := c.String(flag)
						if column == "hypothesis_tree" && v == "-" {
							text, err := readStdin(stdinLimit(cfg))
							if err != nil {
								return outputError(err)
							}
							v = text
						}
						values[column] = &v
					}
					input.Fields = casefile.CaseFields{
						Company:         values["company"],
						Industry:        values["industry"],
						Geography:       values["geography"],
						HypothesisTree:  values["hypothesis_tree"],
						CurrentQuestion: values["current_question"],
					}

					output, err := ops.UpdateCaseState(c.Context, db, cfg, input)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:      "get",
				Usage:     "Get a session's case state",
				ArgsUsage: "[options] <session>",
				Action: func(c *cli.Context) error {
					output, err := ops.GetCaseState(c.Context, db, ops.GetCaseStateInput{SessionID: c.Args().First()})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:  "list",
				Usage: "List sessions with case state, most recently updated first",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: 0, Usage: "Max results (0: all)"},
					&cli.IntFlag{Name: "offset", Value: 0, Usage: "Pagination offset"},
				},
				Action: func(c *cli.Context) error {
					output, err := ops.ListSessions(c.Context, db, ops.ListSessionsInput{
						Limit:  c.Int("limit"),
						Offset: c.Int("offset"),
					})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
		},
	}
}

// feedbackCmd creates the feedback command group.
func feedbackCmd(db *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "feedback",
		Usage: "Log and list feedback entries",
		Subcommands: []*cli.Command{
			{
				Name:      "log",
				Usage:     "Append a feedback entry",
				ArgsUsage: "[options] <session>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "type", Aliases: []string{"t"}, Usage: "Feedback label, e.g. mistake, positive_feedback, clarification_needed"},
					&cli.StringFlag{Name: "input", Aliases: []string{"i"}, Usage: "The user's message"},
					&cli.StringFlag{Name: "response", Aliases: []string{"r"}, Usage: "The assistant's response"},
					&cli.StringFlag{Name: "details", Aliases: []string{"d"}, Usage: "Optional details"},
				},
				Action: func(c *cli.Context) error {
					input := ops.LogFeedbackInput{
						SessionID:    c.Args().First(),
						UserInput:    c.String("input"),
						AIResponse:   c.String("response"),
						FeedbackType: c.String("type"),
					}
					if c.IsSet("details") {
						d := c.String("details")
						input.FeedbackDetails = &d
					}

					output, err := ops.LogFeedback(c.Context, db, cfg, input)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:      "list",
				Usage:     "List a session's feedback oldest first",
				ArgsUsage: "[options] <session>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "type", Aliases: []string{"t"}, Usage: "Only entries with this label"},
					&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: 0, Usage: "Max results (0: all)"},
					&cli.IntFlag{Name: "offset", Value: 0, Usage: "Pagination offset"},
				},
				Action: func(c *cli.Context) error {
					input := ops.ListFeedbackInput{
						SessionID: c.Args().First(),
						Limit:     c.Int("limit"),
						Offset:    c.Int("offset"),
					}
					if t := c.String("type"); t != "" {
						input.FeedbackType = &t
					}

					output, err := ops.ListFeedback(c.Context, db, input)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
		},
	}
}

// sessionCmd creates the session command group.
func sessionCmd(db *sql.DB, baseDir string) *cli.Command {
	return &cli.Command{
		Name:  "session",
		Usage: "Create, inspect and export sessions",
		Subcommands: []*cli.Command{
			{
				Name:  "new",
				Usage: "Print a new session id",
				Action: func(c *cli.Context) error {
					output, err := ops.NewSession()
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:      "show",
				Usage:     "Summarize a session: case state, turn count, feedback by type",
				ArgsUsage: "[options] <session>",
				Action: func(c *cli.Context) error {
					output, err := ops.SessionSummary(c.Context, db, ops.SessionSummaryInput{SessionID: c.Args().First()})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:      "export",
				Usage:     "Export a session to JSONL in the exports directory",
				ArgsUsage: "[options] <session>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Usage: "Output .jsonl path directly inside the exports directory"},
				},
				Action: func(c *cli.Context) error {
					output, err := ops.ExportSession(c.Context, db, filepath.Join(baseDir, ops.ExportDirName), ops.ExportSessionInput{
						SessionID: c.Args().First(),
						Path:      c.String("path"),
					})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
		},
	}
}

// uiCmd creates the ui command.
func uiCmd(db *sql.DB, cfg *config.Config, logger *zap.Logger) *cli.Command {
	return &cli.Command{
		Name:  "ui",
		Usage: "Serve the read-only web UI",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Value: "127.0.0.1", Usage: "Address to bind"},
			&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Value: 8484, Usage: "Port to listen on"},
		},
		Action: func(c *cli.Context) error {
			srv, err := web.NewServer(db, cfg, Version, c.String("bind"), c.Int("port"), logger)
			if err != nil {
				return outputError(errors.NewInternal(err))
			}
			if err := web.Run(srv, logger); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
				return outputError(errors.NewInternal(err))
			}
			return nil
		},
	}
}

// Helper functions

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	var sErr *errors.StoreError
	if stderrors.As(err, &sErr) {
		if sErr.Code == errors.ErrStorageUnavailable || sErr.Code == errors.ErrInternal {
			if detail := firstDetail(sErr.Details); detail != "" {
				return cli.Exit(fmt.Sprintf("[%s] %s: %s", sErr.Code, sErr.Message, detail), 1)
			}
		}
		return cli.Exit(fmt.Sprintf("[%s] %s", sErr.Code, sErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// firstDetail returns the underlying error text kept in storage/internal error details.
func firstDetail(details map[string]any) string {
	for _, key := range []string{"storage_error", "internal_error"} {
		if v, ok := details[key].(string); ok {
			return v
		}
	}
	return ""
}

// stdinHasData returns true if stdin has piped data (not a terminal).
func stdinHasData() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// stdinLimit bounds stdin reads in bytes: max_text_chars runes of up to 4 bytes each.
func stdinLimit(cfg *config.Config) int64 {
	if cfg == nil || cfg.MaxTextChars <= 0 {
		return 4 * int64(config.DefaultConfig().MaxTextChars)
	}
	return 4 * int64(cfg.MaxTextChars)
}

// readStdin reads all content from stdin, refusing more than maxBytes.
func readStdin(maxBytes int64) (string, error) {
	data, err := io.ReadAll(io.LimitReader(os.Stdin, maxBytes+1))
	if err != nil {
		return "", errors.NewInternal(err)
	}
	if int64(len(data)) > maxBytes {
		return "", errors.NewInvalidArgument(fmt.Sprintf("stdin exceeds %d bytes", maxBytes))
	}
	return strings.TrimSpace(string(data)), nil
}
