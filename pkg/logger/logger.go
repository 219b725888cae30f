package logger

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel defines the severity level for log events.
type LogLevel string

const (
	// DebugLevel indicates detailed tracing information, such as per-segment
	// fetch attempts or the exact ffmpeg command line.
	DebugLevel LogLevel = "debug"
	// InfoLevel indicates general operational information.
	InfoLevel LogLevel = "info"
	// WarnLevel indicates recoverable problems, such as a fetch attempt that
	// will be retried.
	WarnLevel LogLevel = "warn"
	// ErrorLevel indicates error events that might still allow the run to
	// continue (for example via the streaming fallback).
	ErrorLevel LogLevel = "error"
	// FatalLevel indicates unrecoverable errors; logging at this level exits
	// the process.
	FatalLevel LogLevel = "fatal"
)

// Init initializes the global zerolog logger: JSON output to stderr with
// Unix timestamps. Call once at process startup.
func Init() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(os.Stderr)
}

// Log logs a message at the given level, tagged with the originating
// component ("manifest", "fetcher", "remux", "vod", ...) and optional
// structured data. Prefer the level-specific helpers.
func Log(level LogLevel, message, component string, data map[string]interface{}) {
	logger := log.With().
		Str("component", component).
		Fields(data).
		Logger()

	switch level {
	case DebugLevel:
		logger.Debug().Msg(message)
	case InfoLevel:
		logger.Info().Msg(message)
	case WarnLevel:
		logger.Warn().Msg(message)
	case ErrorLevel:
		logger.Error().Msg(message)
	case FatalLevel:
		logger.Fatal().Msg(message)
	}
}

// Debug logs a message at the Debug level.
func Debug(message, component string, data map[string]interface{}) {
	Log(DebugLevel, message, component, data)
}

// Info logs a message at the Info level.
func Info(message, component string, data map[string]interface{}) {
	Log(InfoLevel, message, component, data)
}

// Warn logs a message at the Warn level.
func Warn(message, component string, data map[string]interface{}) {
	Log(WarnLevel, message, component, data)
}

// Error logs a message at the Error level.
func Error(message, component string, data map[string]interface{}) {
	Log(ErrorLevel, message, component, data)
}

// Fatal logs a message at the Fatal level and then calls os.Exit(1).
func Fatal(message, component string, data map[string]interface{}) {
	Log(FatalLevel, message, component, data)
}
