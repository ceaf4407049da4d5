// Package errors provides structured errors with codes, context and a
// captured stack for filereduce.
package errors

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// Code classifies an error for programmatic handling.
type Code string

const (
	// Input errors (1xx)
	CodeFileNotFound   Code = "E101"
	CodeFilePermission Code = "E102"
	CodeInvalidFormat  Code = "E103"
	CodeReadFailed     Code = "E104"

	// Parse errors (2xx)
	CodeQuerySyntax         Code = "E201"
	CodeInvalidLiteral      Code = "E202"
	CodeSegmentStructure    Code = "E203"
	CodeUnsupportedOperator Code = "E204"

	// Output errors (3xx)
	CodeWriteFailed       Code = "E301"
	CodeSinkFailed        Code = "E302"
	CodeCompressionFailed Code = "E303"
	CodeExportFailed      Code = "E304"

	// System errors (4xx)
	CodeCanceled         Code = "E401"
	CodeConfigInvalid    Code = "E402"
	CodeCheckpointFailed Code = "E403"

	CodeUnknown Code = "E999"
)

// FileReduceError is the base error type for all filereduce errors.
type FileReduceError struct {
	Code       Code
	Message    string
	Cause      error
	Context    map[string]interface{}
	StackTrace []Frame
}

// Frame represents a stack frame.
type Frame struct {
	Function string
	File     string
	Line     int
}

// Error implements the error interface.
func (e *FileReduceError) Error() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("[%s] %s", e.Code, e.Message))

	if len(e.Context) > 0 {
		sb.WriteString(" (")
		first := true
		for k, v := range e.Context {
			if !first {
				sb.WriteString(", ")
			}
			sb.WriteString(fmt.Sprintf("%s=%v", k, v))
			first = false
		}
		sb.WriteString(")")
	}

	if e.Cause != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Cause.Error())
	}

	return sb.String()
}

// Unwrap returns the underlying cause.
func (e *FileReduceError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches a target error.
func (e *FileReduceError) Is(target error) bool {
	if t, ok := target.(*FileReduceError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithContext adds context to the error.
func (e *FileReduceError) WithContext(key string, value interface{}) *FileReduceError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// New creates a new FileReduceError.
func New(code Code, message string) *FileReduceError {
	return &FileReduceError{
		Code:       code,
		Message:    message,
		StackTrace: captureStack(2),
	}
}

// Wrap wraps an existing error with additional context.
func Wrap(err error, code Code, message string) *FileReduceError {
	if err == nil {
		return nil
	}

	return &FileReduceError{
		Code:       code,
		Message:    message,
		Cause:      err,
		StackTrace: captureStack(2),
	}
}

// Wrapf wraps an error with a formatted message.
func Wrapf(err error, code Code, format string, args ...interface{}) *FileReduceError {
	return Wrap(err, code, fmt.Sprintf(format, args...))
}

// captureStack captures the current stack trace.
func captureStack(skip int) []Frame {
	var frames []Frame
	pcs := make([]uintptr, 32)
	n := runtime.Callers(skip+1, pcs)
	pcs = pcs[:n]

	cf := runtime.CallersFrames(pcs)
	for {
		frame, more := cf.Next()
		frames = append(frames, Frame{
			Function: frame.Function,
			File:     frame.File,
			Line:     frame.Line,
		})
		if !more || len(frames) >= 10 {
			break
		}
	}
	return frames
}

// FormatStack returns a formatted stack trace.
func (e *FileReduceError) FormatStack() string {
	var sb strings.Builder
	for _, f := range e.StackTrace {
		sb.WriteString(fmt.Sprintf("  at %s\n    %s:%d\n", f.Function, f.File, f.Line))
	}
	return sb.String()
}

// --- Convenience constructors ---

// FileNotFound creates a file not found error.
func FileNotFound(path string) *FileReduceError {
	return New(CodeFileNotFound, "file not found").WithContext("path", path)
}

// QuerySyntax creates a query grammar error at a token position.
func QuerySyntax(message string, pos int) *FileReduceError {
	return New(CodeQuerySyntax, message).WithContext("token", pos)
}

// SegmentStructure creates an error for a segment missing a required element.
func SegmentStructure(tag string, group, component int, cause error) *FileReduceError {
	return Wrap(cause, CodeSegmentStructure, "malformed segment").
		WithContext("tag", tag).
		WithContext("element", fmt.Sprintf("%d:%d", group, component))
}

// SinkFailed wraps a sink delivery failure.
func SinkFailed(sink string, err error) *FileReduceError {
	return Wrap(err, CodeSinkFailed, "sink failed").WithContext("sink", sink)
}

// Canceled creates a cancellation error.
func Canceled(operation string) *FileReduceError {
	return New(CodeCanceled, "operation canceled").
		WithContext("operation", operation)
}

// --- Error checking utilities ---

// IsCode checks if an error has a specific code.
func IsCode(err error, code Code) bool {
	var frErr *FileReduceError
	if errors.As(err, &frErr) {
		return frErr.Code == code
	}
	return false
}

// GetCode extracts the error code from an error.
func GetCode(err error) Code {
	var frErr *FileReduceError
	if errors.As(err, &frErr) {
		return frErr.Code
	}
	return CodeUnknown
}

// IsParse reports whether err is a structural parse failure (2xx).
func IsParse(err error) bool {
	return strings.HasPrefix(string(GetCode(err)), "E2")
}

// IsIO reports whether err is an input or output failure (1xx or 3xx).
func IsIO(err error) bool {
	code := string(GetCode(err))
	return strings.HasPrefix(code, "E1") || strings.HasPrefix(code, "E3")
}

// MultiError collects multiple errors.
type MultiError struct {
	Errors []error
}

// Error implements the error interface.
func (m *MultiError) Error() string {
	if len(m.Errors) == 0 {
		return "no errors"
	}
	if len(m.Errors) == 1 {
		return m.Errors[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d errors occurred:\n", len(m.Errors)))
	for i, err := range m.Errors {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// Add adds an error to the collection.
func (m *MultiError) Add(err error) {
	if err != nil {
		m.Errors = append(m.Errors, err)
	}
}

// HasErrors returns true if any errors were collected.
func (m *MultiError) HasErrors() bool {
	return len(m.Errors) > 0
}

// Combined returns nil if no errors, the single error if one, or the MultiError.
func (m *MultiError) Combined() error {
	switch len(m.Errors) {
	case 0:
		return nil
	case 1:
		return m.Errors[0]
	default:
		return m
	}
}
