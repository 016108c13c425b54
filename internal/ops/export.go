package ops

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/hpungsan/casekeep/internal/casefile"
	"github.com/hpungsan/casekeep/internal/db"
	"github.com/hpungsan/casekeep/internal/errors"
)

// ExportDirName is the directory under the base dir that receives session exports.
const ExportDirName = "exports"

// Record kinds in an export file.
const (
	RecordKindCaseState = "case_state"
	RecordKindTurn      = "turn"
	RecordKindFeedback  = "feedback"
)

// ExportSessionInput contains parameters for the ExportSession operation.
type ExportSessionInput struct {
	SessionID string // required
	Path      string // optional, default: <exportsDir>/<session>-<timestamp>.jsonl
}

// ExportSessionOutput contains the result of the ExportSession operation.
type ExportSessionOutput struct {
	Path         string `json:"path"`
	SessionID    string `json:"session_id"`
	HasCaseState bool   `json:"has_case_state"`
	Turns        int    `json:"turns"`
	Feedback     int    `json:"feedback"`
	ExportedAt   int64  `json:"exported_at"`
}

// ExportHeader is the first line of a JSONL export file.
type ExportHeader struct {
	CasekeepExport bool   `json:"_casekeep_export"`
	SchemaVersion  string `json:"schema_version"`
	SessionID      string `json:"session_id"`
	ExportedAt     int64  `json:"exported_at"`
}

// ExportRecord is one body line of an export file. Exactly one payload is set.
type ExportRecord struct {
	Kind      string                  `json:"kind"`
	CaseState *casefile.CaseState     `json:"case_state,omitempty"`
	Turn      *casefile.ChatTurn      `json:"turn,omitempty"`
	Feedback  *casefile.FeedbackEntry `json:"feedback,omitempty"`
}

// ExportSession writes everything stored for one session to a JSONL file:
// a header, the case state (if any), the session's turns, then its feedback log.
// All records come from a single read snapshot.
func ExportSession(ctx context.Context, database *sql.DB, exportsDir string, input ExportSessionInput) (*ExportSessionOutput, error) {
	sessionID, err := requireSessionID(input.SessionID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	exportPath := input.Path
	if exportPath == "" {
		exportPath = defaultExportPath(exportsDir, sessionID, now)
	}

	// Default paths go through the same checks; session ids are caller-supplied.
	if err := ValidateExportPath(exportPath, exportsDir); err != nil {
		return nil, err
	}

	records, err := collectSession(ctx, database, sessionID)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(exportPath), 0700); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to create export directory: %w", err))
	}

	header := ExportHeader{
		CasekeepExport: true,
		SchemaVersion:  "1.0",
		SessionID:      sessionID,
		ExportedAt:     now.Unix(),
	}
	if err := writeExportFile(exportPath, header, records); err != nil {
		return nil, err
	}

	out := &ExportSessionOutput{
		Path:       exportPath,
		SessionID:  sessionID,
		ExportedAt: header.ExportedAt,
	}
	for _, r := range records {
		switch r.Kind {
		case RecordKindCaseState:
			out.HasCaseState = true
		case RecordKindTurn:
			out.Turns++
		case RecordKindFeedback:
			out.Feedback++
		}
	}
	return out, nil
}

func collectSession(ctx context.Context, database *sql.DB, sessionID string) ([]ExportRecord, error) {
	tx, err := beginRead(ctx, database)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var records []ExportRecord

	cs, err := db.GetCaseState(ctx, tx, sessionID)
	switch {
	case err == nil:
		records = append(records, ExportRecord{Kind: RecordKindCaseState, CaseState: cs})
	case !errors.Is(err, errors.ErrNotFound):
		return nil, err
	}

	turns, err := db.ListTurns(ctx, tx, &sessionID, 0, 0)
	if err != nil {
		return nil, err
	}
	for i := range turns {
		records = append(records, ExportRecord{Kind: RecordKindTurn, Turn: &turns[i]})
	}

	feedback, err := db.ListFeedback(ctx, tx, sessionID, nil, 0, 0)
	if err != nil {
		return nil, err
	}
	for i := range feedback {
		records = append(records, ExportRecord{Kind: RecordKindFeedback, Feedback: &feedback[i]})
	}

	return records, nil
}

// writeExportFile writes to a temp file and renames it into place, so an
// existing file at path survives any failure.
func writeExportFile(path string, header ExportHeader, records []ExportRecord) error {
	randBytes := make([]byte, 8)
	if _, err := rand.Read(randBytes); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to generate temp file name: %w", err))
	}
	tempPath := path + "." + hex.EncodeToString(randBytes) + ".tmp"
	file, err := openFileNoFollow(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		if _, ok := err.(*errors.StoreError); ok {
			return err
		}
		return errors.NewInternal(fmt.Errorf("failed to create export file: %w", err))
	}

	success := false
	defer func() {
		if file != nil {
			file.Close()
		}
		if !success {
			os.Remove(tempPath)
		}
	}()

	if err := writeJSONLine(file, header); err != nil {
		return err
	}
	for _, r := range records {
		if err := writeJSONLine(file, r); err != nil {
			return err
		}
	}

	if err := file.Sync(); err != nil {
		return errors.NewInternal(err)
	}
	// Close before rename (required on Windows).
	if err := file.Close(); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to close export file: %w", err))
	}
	file = nil

	// os.Rename would follow a symlinked destination.
	if info, err := os.Lstat(path); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return errors.NewInvalidArgument("export path must not be a symlink")
	}

	if err := os.Rename(tempPath, path); err != nil {
		if runtime.GOOS == "windows" {
			if _, statErr := os.Stat(path); statErr == nil {
				return errors.NewInvalidArgument("export destination already exists; choose a new path or delete the existing file")
			}
		}
		return errors.NewInternal(fmt.Errorf("failed to finalize export: %w", err))
	}

	success = true
	return nil
}

func writeJSONLine(w io.Writer, v any) error {
	line, err := json.Marshal(v)
	if err != nil {
		return errors.NewInternal(err)
	}
	line = append(line, '\n')
	if _, err := w.Write(line); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// defaultExportPath builds <exportsDir>/<session>-<timestamp>.jsonl.
func defaultExportPath(exportsDir, sessionID string, now time.Time) string {
	name := SanitizeForFilename(sessionID)
	filename := fmt.Sprintf("%s-%s.jsonl", name, now.UTC().Format("2006-01-02T150405"))
	return filepath.Join(exportsDir, filename)
}
