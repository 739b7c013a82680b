package helpers

import (
	"sjsage522/marketsearch/logger"
)

// LoggerInterface defines the interface for logger implementations
type LoggerInterface interface {
	LogError(source string, err error)
	LogInfo(format string, args ...interface{})
}

// Logger routes worker messages through the structured logger
type Logger struct {
	component string
}

// NewLogger creates a new logger instance tagged with component
func NewLogger(component string) *Logger {
	return &Logger{
		component: component,
	}
}

// LogError logs an error with its source
func (l *Logger) LogError(source string, err error) {
	logger.ForComponent(l.component).WithError(err).Error().
		Str("source", source).
		Msg("operation failed")
}

// LogInfo logs an informational message
func (l *Logger) LogInfo(format string, args ...interface{}) {
	logger.ForComponent(l.component).Info().Msgf(format, args...)
}
