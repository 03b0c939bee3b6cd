// Package resolve maps a group name to its raw configuration blob.
//
// Resolvers do not retry. Callers own any retry policy.
package resolve

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"

	"github.com/John-Robertt/chefboot-go/internal/fetch"
	"github.com/John-Robertt/chefboot-go/internal/model"
)

type Resolver interface {
	Resolve(ctx context.Context, group string) (json.RawMessage, error)
}

// Func adapts a plain function to Resolver.
type Func func(ctx context.Context, group string) (json.RawMessage, error)

func (f Func) Resolve(ctx context.Context, group string) (json.RawMessage, error) {
	return f(ctx, group)
}

const stage = "resolve_group"

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

// Code returns the AppError code of err if it is (or wraps) a resolver
// error, "" otherwise.
func Code(err error) string {
	var re *Error
	if errors.As(err, &re) {
		return re.AppError.Code
	}
	return ""
}

func newError(code, group, message string, cause error) *Error {
	return &Error{
		AppError: model.AppError{
			Code:    code,
			Message: message,
			Stage:   stage,
			Group:   group,
		},
		Cause: cause,
	}
}

func notFound(group string, cause error) *Error {
	return newError(model.CodeNotFound, group, "no configuration for group", cause)
}

// fromFetch keeps the fetch layer's code and URL.
func fromFetch(group string, err error) error {
	var fe *fetch.FetchError
	if !errors.As(err, &fe) {
		return newError(model.CodeFetchFailed, group, "failed to fetch group configuration", err)
	}
	re := newError(fe.AppError.Code, group, fe.AppError.Message, err)
	re.AppError.URL = fe.AppError.URL
	return re
}

var groupPattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// ValidGroup rejects names that cannot be used safely as a file name, URL
// path segment or object key.
func ValidGroup(group string) error {
	if group == "." || group == ".." || !groupPattern.MatchString(group) {
		return newError(model.CodeInvalidArgument, group, "invalid group name", nil)
	}
	return nil
}
