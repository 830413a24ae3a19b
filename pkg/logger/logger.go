package logger

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger wraps zerolog logger
type Logger struct {
	logger zerolog.Logger
}

// Options controls where and how log lines are written.
type Options struct {
	Level      string
	Format     string
	Output     string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// New creates a new logger instance
func New(level, format, output string) *Logger {
	return NewWithOptions(Options{Level: level, Format: format, Output: output})
}

// NewWithOptions creates a logger; file outputs are rotated by lumberjack.
func NewWithOptions(opts Options) *Logger {
	logLevel := parseLevel(opts.Level)
	zerolog.SetGlobalLevel(logLevel)

	var writer io.Writer = os.Stdout
	switch opts.Output {
	case "", "stdout":
	case "stderr":
		writer = os.Stderr
	default:
		writer = &lumberjack.Logger{
			Filename:   opts.Output,
			MaxSize:    orDefault(opts.MaxSizeMB, 100),
			MaxBackups: orDefault(opts.MaxBackups, 5),
			MaxAge:     orDefault(opts.MaxAgeDays, 28),
			Compress:   true,
		}
	}

	if opts.Format == "console" {
		writer = zerolog.ConsoleWriter{Out: writer}
	}

	logger := zerolog.New(writer).With().Timestamp().Caller().Logger()

	return &Logger{logger: logger}
}

// Nop returns a logger that discards everything. Used by tests.
func Nop() *Logger {
	return &Logger{logger: zerolog.Nop()}
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// parseLevel converts string level to zerolog.Level
func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "panic":
		return zerolog.PanicLevel
	default:
		return zerolog.InfoLevel
	}
}

// Debug logs a debug message
func (l *Logger) Debug() *zerolog.Event {
	return l.logger.Debug()
}

// Info logs an info message
func (l *Logger) Info() *zerolog.Event {
	return l.logger.Info()
}

// Warn logs a warning message
func (l *Logger) Warn() *zerolog.Event {
	return l.logger.Warn()
}

// Error logs an error message
func (l *Logger) Error() *zerolog.Event {
	return l.logger.Error()
}

// Fatal logs a fatal message and exits
func (l *Logger) Fatal() *zerolog.Event {
	return l.logger.Fatal()
}

// With creates a child logger with additional context
func (l *Logger) With() zerolog.Context {
	return l.logger.With()
}

// Child returns a logger carrying an extra string field.
func (l *Logger) Child(key, value string) *Logger {
	return &Logger{logger: l.logger.With().Str(key, value).Logger()}
}

// GetLogger returns the underlying zerolog.Logger
func (l *Logger) GetLogger() zerolog.Logger {
	return l.logger
}
