package errors

import (
	stderrors "errors"
	"fmt"
	"io"

	pkgerrors "github.com/pkg/errors"
)

// AppError represents a structured application error. It records the call
// stack where it was created so the CLI can print a full diagnostic trace.
type AppError struct {
	Code    string
	Message string
	Cause   error
	stack   pkgerrors.StackTrace
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// StackTrace exposes the creation stack in the github.com/pkg/errors format
func (e *AppError) StackTrace() pkgerrors.StackTrace {
	return e.stack
}

// Format implements fmt.Formatter. %+v prints the code, message, stack and
// the cause chain with its own stack.
func (e *AppError) Format(s fmt.State, verb rune) {
	switch verb {
	case 'v':
		if s.Flag('+') {
			fmt.Fprintf(s, "[%s] %s", e.Code, e.Message)
			fmt.Fprintf(s, "%+v", e.stack)
			if e.Cause != nil {
				fmt.Fprintf(s, "\ncaused by: %+v", e.Cause)
			}
			return
		}
		io.WriteString(s, e.Error())
	case 's':
		io.WriteString(s, e.Error())
	case 'q':
		fmt.Fprintf(s, "%q", e.Error())
	}
}

type stackTracer interface {
	StackTrace() pkgerrors.StackTrace
}

// callers returns the stack of the function that called the constructor
func callers() pkgerrors.StackTrace {
	st := pkgerrors.New("").(stackTracer).StackTrace()
	if len(st) > 2 {
		return st[2:]
	}
	return st
}

// withStack attaches a stack to foreign errors that do not carry one
func withStack(err error) error {
	var tracer stackTracer
	if stderrors.As(err, &tracer) {
		return err
	}
	return pkgerrors.WithStack(err)
}

// New creates a new AppError
func New(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		stack:   callers(),
	}
}

// Newf creates a new AppError with a formatted message
func Newf(code, format string, args ...interface{}) *AppError {
	return &AppError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		stack:   callers(),
	}
}

// Wrap wraps an error with additional context, keeping the code of a wrapped AppError
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	if appErr, ok := err.(*AppError); ok {
		return &AppError{
			Code:    appErr.Code,
			Message: message,
			Cause:   appErr,
			stack:   callers(),
		}
	}
	return &AppError{
		Code:    CodeInternalError,
		Message: message,
		Cause:   withStack(err),
		stack:   callers(),
	}
}

// Wrapf wraps an error with formatted additional context
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return Wrap(err, fmt.Sprintf(format, args...))
}

// WithCode wraps err under a specific code
func WithCode(code string, err error, message string) error {
	if err == nil {
		return nil
	}
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   withStack(err),
		stack:   callers(),
	}
}

// IsAppError checks if an error is an AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

// GetCode returns the code of the outermost AppError in the chain, otherwise "UNKNOWN"
func GetCode(err error) string {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return "UNKNOWN"
}

// HasCode reports whether any AppError in the chain carries code
func HasCode(err error, code string) bool {
	for err != nil {
		if appErr, ok := err.(*AppError); ok && appErr.Code == code {
			return true
		}
		err = stderrors.Unwrap(err)
	}
	return false
}

// Predefined error codes
const (
	CodeConfigInvalid     = "CONFIG_INVALID"
	CodeSourceNotFound    = "SOURCE_NOT_FOUND"
	CodeSourceUnreadable  = "SOURCE_UNREADABLE"
	CodeMaterializeFailed = "MATERIALIZE_FAILED"
	CodeInternalError     = "INTERNAL_ERROR"
)

// Common error constructors
func ConfigInvalid(message string) *AppError {
	e := New(CodeConfigInvalid, message)
	e.stack = callers()
	return e
}

// SourceNotFound reports a source reference that does not resolve to a file
func SourceNotFound(path string) *AppError {
	e := New(CodeSourceNotFound, fmt.Sprintf("source file not found: %s", path))
	e.stack = callers()
	return e
}

// SourceUnreadable reports a source that exists but cannot be parsed into a table
func SourceUnreadable(path string, cause error) *AppError {
	return &AppError{
		Code:    CodeSourceUnreadable,
		Message: fmt.Sprintf("source file could not be read: %s", path),
		Cause:   withStack(cause),
		stack:   callers(),
	}
}

// MaterializeFailed reports a fatal failure writing an output artifact
func MaterializeFailed(target string, cause error) *AppError {
	return &AppError{
		Code:    CodeMaterializeFailed,
		Message: fmt.Sprintf("failed to materialize %s", target),
		Cause:   withStack(cause),
		stack:   callers(),
	}
}
