package bootscript

import (
	"errors"
	"fmt"

	"github.com/John-Robertt/chefboot-go/internal/model"
)

// Error is returned by Synthesize. AppError.Code is one of
// INVALID_ARGUMENT, CONFIG_ERROR, RESOLVE_FAILED, MALFORMED_CONFIG.
type Error struct {
	AppError model.AppError
	Cause    error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.AppError.Code, e.AppError.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.AppError.Code, e.AppError.Message, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

// Code returns the synthesis error code carried by err, or "".
func Code(err error) string {
	var se *Error
	if errors.As(err, &se) {
		return se.AppError.Code
	}
	return ""
}

func newError(code, group, message string, cause error) *Error {
	return &Error{
		AppError: model.AppError{
			Code:    code,
			Message: message,
			Stage:   "synthesize",
			Group:   group,
		},
		Cause: cause,
	}
}
