// Package logging builds the process logger: a console core on stderr and,
// when configured, a rotated JSON file core.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/hpungsan/casekeep/internal/config"
)

// Rotation settings for the log file.
const (
	MaxSizeMB  = 10
	MaxBackups = 5
	MaxAgeDays = 30
)

// ParseLevel maps a config log_level to a zap level. Empty means info.
func ParseLevel(level string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", "info":
		return zapcore.InfoLevel, nil
	case "debug":
		return zapcore.DebugLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown log level %q (want debug, info, warn, error)", level)
	}
}

// LogFilePath resolves cfg.LogFile against baseDir. Returns "" when file logging is off.
func LogFilePath(cfg *config.Config, baseDir string) string {
	if cfg == nil || strings.TrimSpace(cfg.LogFile) == "" {
		return ""
	}
	p := strings.TrimSpace(cfg.LogFile)
	if !filepath.IsAbs(p) {
		p = filepath.Join(baseDir, p)
	}
	return p
}

// New builds a logger from cfg. Console output goes to stderr because stdout
// carries CLI JSON and the MCP stdio transport.
func New(cfg *config.Config, baseDir string) (*zap.Logger, error) {
	var levelName string
	if cfg != nil {
		levelName = cfg.LogLevel
	}
	level, err := ParseLevel(levelName)
	if err != nil {
		return nil, err
	}

	consoleCore := zapcore.NewCore(
		zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
		zapcore.Lock(os.Stderr),
		level,
	)

	path := LogFilePath(cfg, baseDir)
	if path == "" {
		return zap.New(consoleCore, zap.AddCaller()), nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	core := zapcore.NewTee(consoleCore, newFileCore(path, level))
	return zap.New(core, zap.AddCaller()), nil
}

// newFileCore writes JSON lines to a lumberjack-rotated file.
func newFileCore(path string, level zapcore.Level) zapcore.Core {
	rotator := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    MaxSizeMB,
		MaxBackups: MaxBackups,
		MaxAge:     MaxAgeDays,
		Compress:   true,
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.MessageKey = "message"
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder

	return zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), zapcore.AddSync(rotator), level)
}
