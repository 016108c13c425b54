package ops

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hpungsan/casekeep/internal/errors"
)

// ValidateExportPath checks a session export destination:
//  1. no ".." components
//  2. .jsonl extension
//  3. the file sits directly in exportsDir (no subdirectories)
//  4. neither the parent directory nor the file is a symlink
//
// Forbidding subdirectories leaves no intermediate component to swap for a
// symlink between this check and the O_NOFOLLOW open.
func ValidateExportPath(path, exportsDir string) error {
	if path == "" {
		return errors.NewInvalidArgument("path is required")
	}
	if containsTraversal(path) {
		return errors.NewInvalidArgument("path must not contain directory traversal (..)")
	}

	cleaned := filepath.Clean(path)
	if filepath.Ext(cleaned) != ".jsonl" {
		return errors.NewInvalidArgument("path must have .jsonl extension")
	}

	absPath, err := filepath.Abs(cleaned)
	if err != nil {
		return errors.NewInvalidArgument(fmt.Sprintf("invalid path: %v", err))
	}
	allowed, err := resolveDir(exportsDir)
	if err != nil {
		return err
	}

	parentDir := filepath.Dir(absPath)
	if filepath.Clean(parentDir) != allowed {
		return errors.NewInvalidArgument(
			fmt.Sprintf("file must be directly in the exports directory (no subdirectories): %s", allowed))
	}

	if info, err := os.Lstat(parentDir); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return errors.NewInvalidArgument("parent directory must not be a symlink")
	}
	if info, err := os.Lstat(absPath); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return errors.NewInvalidArgument("path must not be a symlink")
	}

	return nil
}

// resolveDir returns dir as a clean absolute path, following it if it is itself a symlink.
func resolveDir(dir string) (string, error) {
	if strings.TrimSpace(dir) == "" {
		return "", errors.NewInternal(fmt.Errorf("exports directory is not configured"))
	}
	abs, err := filepath.Abs(filepath.Clean(dir))
	if err != nil {
		return "", errors.NewInvalidArgument(fmt.Sprintf("invalid exports directory: %v", err))
	}
	if info, err := os.Lstat(abs); err == nil && info.Mode()&os.ModeSymlink != 0 {
		resolved, err := filepath.EvalSymlinks(abs)
		if err != nil {
			return "", errors.NewInvalidArgument(fmt.Sprintf("cannot resolve exports directory: %v", err))
		}
		abs = resolved
	}
	return abs, nil
}

// containsTraversal checks if path contains a ".." component.
func containsTraversal(path string) bool {
	for _, part := range strings.Split(path, string(filepath.Separator)) {
		if part == ".." {
			return true
		}
	}
	// Forward slashes count on every platform.
	if filepath.Separator != '/' {
		for _, part := range strings.Split(path, "/") {
			if part == ".." {
				return true
			}
		}
	}
	return false
}

// SanitizeForFilename makes s safe to embed in a file name.
func SanitizeForFilename(s string) string {
	s = strings.ReplaceAll(s, "/", "-")
	s = strings.ReplaceAll(s, "\\", "-")
	s = strings.ReplaceAll(s, "..", "-")

	var result strings.Builder
	for _, r := range s {
		if r >= 32 && r != 127 {
			result.WriteRune(r)
		}
	}
	s = result.String()

	for strings.Contains(s, "--") {
		s = strings.ReplaceAll(s, "--", "-")
	}
	s = strings.Trim(s, "-")

	if s == "" {
		s = "session"
	}
	return s
}
