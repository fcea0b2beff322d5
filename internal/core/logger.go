// Package core provides structured diagnostic logging for the bridge, backed
// by zerolog rather than a hand-rolled leveled logger.
package core

import (
	"os"
	"sync"

	"github.com/rs/zerolog"
)

// Logger wraps a zerolog.Logger behind the package's call shape.
type Logger struct {
	mu  sync.RWMutex
	zl  zerolog.Logger
}

var (
	// DefaultLogger is the global logger instance.
	DefaultLogger *Logger
	once          sync.Once
)

// InitLogger initializes the global logger.
func InitLogger(debug bool) {
	once.Do(func() {
		DefaultLogger = NewLogger(debug)
	})
}

// NewLogger creates a new logger instance writing JSON lines to stderr.
func NewLogger(debug bool) *Logger {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	zl := zerolog.New(os.Stderr).With().Timestamp().Logger().Level(level)
	return &Logger{zl: zl}
}

// SetOutput redirects the logger's output.
func (l *Logger) SetOutput(w zerolog.Logger) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.zl = w
}

// Debug logs a debug message.
func (l *Logger) Debug(format string, args ...interface{}) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	l.zl.Debug().Msgf(format, args...)
}

// Info logs an informational message.
func (l *Logger) Info(format string, args ...interface{}) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	l.zl.Info().Msgf(format, args...)
}

// Warn logs a warning message.
func (l *Logger) Warn(format string, args ...interface{}) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	l.zl.Warn().Msgf(format, args...)
}

// Error logs an error message.
func (l *Logger) Error(format string, args ...interface{}) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	l.zl.Error().Msgf(format, args...)
}

// SSHCommand logs an SSH argument vector in debug mode.
func (l *Logger) SSHCommand(correlationID string, argv []string) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	l.zl.Debug().Str("id", correlationID).Strs("argv", argv).Msg("ssh invocation")
}

// Package-level convenience functions, falling back to a bare stderr logger
// before InitLogger has run (e.g. early flag-parsing errors).

func fallback() zerolog.Logger {
	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}

// Debug logs a debug message using the default logger.
func Debug(format string, args ...interface{}) {
	if DefaultLogger != nil {
		DefaultLogger.Debug(format, args...)
		return
	}
	fallback().Debug().Msgf(format, args...)
}

// Info logs an informational message using the default logger.
func Info(format string, args ...interface{}) {
	if DefaultLogger != nil {
		DefaultLogger.Info(format, args...)
		return
	}
	fallback().Info().Msgf(format, args...)
}

// Warn logs a warning message using the default logger.
func Warn(format string, args ...interface{}) {
	if DefaultLogger != nil {
		DefaultLogger.Warn(format, args...)
		return
	}
	fallback().Warn().Msgf(format, args...)
}

// Error logs an error message using the default logger.
func Error(format string, args ...interface{}) {
	if DefaultLogger != nil {
		DefaultLogger.Error(format, args...)
		return
	}
	fallback().Error().Msgf(format, args...)
}

// LogSSHCommand logs an SSH argument vector using the default logger.
func LogSSHCommand(correlationID string, argv []string) {
	if DefaultLogger != nil {
		DefaultLogger.SSHCommand(correlationID, argv)
	}
}