package errors

import (
	"encoding/json"
	goerrors "errors"
	"fmt"
	"time"
)

// ErrorType categorizes errors raised while localizing and remuxing a stream.
type ErrorType string

const (
	// NetworkError represents a transport or HTTP failure on a single request,
	// such as the one-shot manifest fetch.
	NetworkError ErrorType = "network_error"
	// ManifestError represents an unusable playlist, such as a master manifest
	// from which no variant can be selected.
	ManifestError ErrorType = "manifest_error"
	// FetchError represents one or more keys/segments that permanently failed
	// after all retry attempts.
	FetchError ErrorType = "fetch_error"
	// RemuxError represents a non-zero exit from the external remux process.
	RemuxError ErrorType = "remux_error"
	// ValidationError represents invalid input parameters or configuration.
	ValidationError ErrorType = "validation_error"
	// SystemError represents underlying system issues, such as file I/O or
	// working-directory creation failures.
	SystemError ErrorType = "system_error"
)

// StructuredError is the error value returned by vodsnap components.
// It carries a type, message, optional details, timestamp, and a code that
// identifies the error source within its type.
type StructuredError struct {
	// Type categorizes the error (e.g. NetworkError, FetchError).
	Type ErrorType `json:"type"`
	// Message is a concise, human-readable description.
	Message string `json:"message"`
	// Details holds additional context or the underlying error message.
	Details string `json:"details,omitempty"`
	// Timestamp marks when the error occurred, in RFC3339 format.
	Timestamp string `json:"timestamp"`
	// Code identifies the error source within its type.
	Code int `json:"code"`
}

// Error implements the standard error interface.
func (e *StructuredError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Type, e.Message, e.Details)
}

// JSON returns the error serialized as a JSON string.
func (e *StructuredError) JSON() (string, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// New creates a StructuredError stamped with the current time.
func New(errorType ErrorType, message, details string, code int) *StructuredError {
	return &StructuredError{
		Type:      errorType,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().Format(time.RFC3339),
		Code:      code,
	}
}

// Wrap creates a StructuredError whose Details is the message of an existing
// error. A nil err leaves Details empty.
func Wrap(err error, errorType ErrorType, message string, code int) *StructuredError {
	details := ""
	if err != nil {
		details = err.Error()
	}
	return New(errorType, message, details, code)
}

// IsType reports whether err is (or wraps) a StructuredError of the given type.
func IsType(err error, errorType ErrorType) bool {
	var se *StructuredError
	if goerrors.As(err, &se) {
		return se.Type == errorType
	}
	return false
}
