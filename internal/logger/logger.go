package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"facewatch/internal/config"

	"github.com/rs/zerolog"
)

// LogFileName is the file inside the log directory that receives JSON lines.
const LogFileName = "security_system.log"

// Logger provides leveled printf-style logging on top of zerolog.
type Logger struct {
	zl zerolog.Logger
}

// NewLogger creates a Logger writing to stdout and to LogFileName in the
// configured log directory. When the file cannot be opened it falls back to
// stdout only.
func NewLogger(cfg *config.Config) *Logger {
	console := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.DateTime}

	file, err := openLogFile(cfg.LogDirectory)
	if err != nil {
		l := New(console, cfg.LogLevel)
		l.Warning("Logging to console only: %v", err)
		return l
	}

	return New(zerolog.MultiLevelWriter(console, file), cfg.LogLevel)
}

// New creates a Logger on an arbitrary writer.
func New(w io.Writer, level string) *Logger {
	zl := zerolog.New(w).Level(parseLevel(level)).With().Timestamp().Logger()
	return &Logger{zl: zl}
}

// Nop returns a Logger that discards everything.
func Nop() *Logger {
	return &Logger{zl: zerolog.Nop()}
}

// With returns a child logger tagged with a component name.
func (l *Logger) With(component string) *Logger {
	return &Logger{zl: l.zl.With().Str("component", component).Logger()}
}

// openLogFile opens or creates the log file for appending.
func openLogFile(dir string) (*os.File, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	file, err := os.OpenFile(filepath.Join(dir, LogFileName), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return file, nil
}

func parseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "critical", "fatal":
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

// Debug writes a formatted debug-level log entry.
func (l *Logger) Debug(format string, v ...interface{}) {
	l.zl.Debug().Msgf(format, v...)
}

// Info writes a formatted info-level log entry.
func (l *Logger) Info(format string, v ...interface{}) {
	l.zl.Info().Msgf(format, v...)
}

// Warning writes a formatted warning-level log entry.
func (l *Logger) Warning(format string, v ...interface{}) {
	l.zl.Warn().Msgf(format, v...)
}

// Error writes a formatted error-level log entry.
func (l *Logger) Error(format string, v ...interface{}) {
	l.zl.Error().Msgf(format, v...)
}
