package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents internal error codes for batch operations
type ErrorCode int

const (
	// Success
	ErrCodeOK ErrorCode = 0

	// Configuration errors, raised before any I/O
	ErrCodeInvalidArgument     ErrorCode = 1000
	ErrCodeFieldParse          ErrorCode = 1001
	ErrCodeFilterConfiguration ErrorCode = 1002

	// Container errors, isolated to one region file
	ErrCodeContainerIO ErrorCode = 2000
	ErrCodeCanceled    ErrorCode = 2001

	// Chunk errors, isolated to one chunk
	ErrCodeVersionResolution ErrorCode = 3000
	ErrCodeChunkEdit         ErrorCode = 3001

	ErrCodeInternal ErrorCode = 9000
)

var codeNames = map[ErrorCode]string{
	ErrCodeOK:                  "ok",
	ErrCodeInvalidArgument:     "invalid_argument",
	ErrCodeFieldParse:          "field_parse",
	ErrCodeFilterConfiguration: "filter_configuration",
	ErrCodeContainerIO:         "container_io",
	ErrCodeCanceled:            "canceled",
	ErrCodeVersionResolution:   "version_resolution",
	ErrCodeChunkEdit:           "chunk_edit",
	ErrCodeInternal:            "internal",
}

// String returns the snake_case name used in logs, metrics labels and reports
func (c ErrorCode) String() string {
	if n, ok := codeNames[c]; ok {
		return n
	}
	return fmt.Sprintf("code_%d", int(c))
}

// Error represents a structured error with code and context
type Error struct {
	Code    ErrorCode
	Message string
	Details map[string]interface{}
	Cause   error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error
func New(code ErrorCode, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
		Cause:   cause,
	}
}

// WithDetail adds a detail to the error
func (e *Error) WithDetail(key string, value interface{}) *Error {
	e.Details[key] = value
	return e
}

// Convenience constructors for the error taxonomy

func InvalidArgument(message string, cause error) *Error {
	return New(ErrCodeInvalidArgument, message, cause)
}

func FieldParse(field, text string) *Error {
	return New(ErrCodeFieldParse, fmt.Sprintf("invalid value %q for field %s", text, field), nil).
		WithDetail("field", field).
		WithDetail("text", text)
}

func FilterConfiguration(message string, cause error) *Error {
	return New(ErrCodeFilterConfiguration, message, cause)
}

func ContainerIO(path string, cause error) *Error {
	return New(ErrCodeContainerIO, fmt.Sprintf("container %s", path), cause).
		WithDetail("path", path)
}

func Canceled(path string, cause error) *Error {
	return New(ErrCodeCanceled, fmt.Sprintf("container %s not written: batch canceled", path), cause).
		WithDetail("path", path)
}

func VersionResolution(dataVersion int32) *Error {
	return New(ErrCodeVersionResolution, fmt.Sprintf("no schema adapter registered for DataVersion %d", dataVersion), nil).
		WithDetail("data_version", dataVersion)
}

func ChunkEdit(message string, cause error) *Error {
	return New(ErrCodeChunkEdit, message, cause)
}

func InternalError(message string, cause error) *Error {
	return New(ErrCodeInternal, message, cause)
}

// GetCode extracts the error code from an error chain
func GetCode(err error) ErrorCode {
	if err == nil {
		return ErrCodeOK
	}
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code
	}
	return ErrCodeInternal
}

// HasCode reports whether any coded error in the chain carries code
func HasCode(err error, code ErrorCode) bool {
	for err != nil {
		if e, ok := err.(*Error); ok && e.Code == code {
			return true
		}
		err = stderrors.Unwrap(err)
	}
	return false
}

// IsConfiguration reports whether err must abort a batch before it starts
func IsConfiguration(err error) bool {
	switch GetCode(err) {
	case ErrCodeInvalidArgument, ErrCodeFieldParse, ErrCodeFilterConfiguration:
		return true
	}
	return false
}
