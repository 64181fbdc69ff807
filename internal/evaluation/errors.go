package evaluation

import (
	"errors"
	"fmt"
)

const (
	CodeConflict             = "conflict"
	CodeValidation           = "validation"
	CodeInsufficientCriteria = "insufficient_criteria"
	CodeUpstreamFormat       = "upstream_format"
	CodeNotFound             = "not_found"
	CodeInternal             = "internal"
)

// Error is the coded error surfaced at the API boundary. Detail carries the
// raw context a caller needs to diagnose upstream failures (the offending
// prompt, answer, or decode error) rather than a bare code.
type Error struct {
	Code    string
	Message string
	Detail  map[string]any
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Status() int {
	switch e.Code {
	case CodeValidation, CodeInsufficientCriteria:
		return 400
	case CodeNotFound:
		return 404
	case CodeConflict:
		return 409
	case CodeUpstreamFormat:
		return 422
	default:
		return 500
	}
}

func NewConflictError(id string) error {
	return &Error{Code: CodeConflict, Message: "evaluation " + id + " is already running"}
}

func NewValidationError(message string) error {
	return &Error{Code: CodeValidation, Message: message}
}

func NewNotFoundError(id string) error {
	return &Error{Code: CodeNotFound, Message: "evaluation " + id + " not found"}
}

func NewUpstreamFormatError(message string, detail map[string]any) error {
	return &Error{Code: CodeUpstreamFormat, Message: message, Detail: detail}
}

// ErrorCode extracts the code from an error chain, defaulting to internal.
func ErrorCode(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// RunError tags a run failure with the step that produced it.
type RunError struct {
	Step string
	Err  error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

func (e *RunError) Unwrap() error { return e.Err }
