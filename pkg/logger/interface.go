package logger

// Logger is the logging interface components accept, so tests can inject a
// silent or recording implementation.
type Logger interface {
	Debug(message string, component string, data map[string]interface{})
	Info(message string, component string, data map[string]interface{})
	Warn(message string, component string, data map[string]interface{})
	Error(message string, component string, data map[string]interface{})
	Fatal(message string, component string, data map[string]interface{})
}

// DefaultLogger forwards to the package-level zerolog functions.
type DefaultLogger struct{}

// NewLogger returns the default Logger implementation.
func NewLogger() Logger {
	return &DefaultLogger{}
}

// Debug logs a debug event.
func (l *DefaultLogger) Debug(message string, component string, data map[string]interface{}) {
	Debug(message, component, data)
}

// Info logs an info event.
func (l *DefaultLogger) Info(message string, component string, data map[string]interface{}) {
	Info(message, component, data)
}

// Warn logs a warning event.
func (l *DefaultLogger) Warn(message string, component string, data map[string]interface{}) {
	Warn(message, component, data)
}

// Error logs an error event.
func (l *DefaultLogger) Error(message string, component string, data map[string]interface{}) {
	Error(message, component, data)
}

// Fatal logs a fatal event and exits.
func (l *DefaultLogger) Fatal(message string, component string, data map[string]interface{}) {
	Fatal(message, component, data)
}
