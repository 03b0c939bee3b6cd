package httpapi

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/John-Robertt/chefboot-go/internal/bootscript"
	"github.com/John-Robertt/chefboot-go/internal/model"
	"github.com/John-Robertt/chefboot-go/internal/resolve"
	"github.com/John-Robertt/chefboot-go/internal/statement"
)

// APIError is used by the HTTP layer for request validation and a few
// HTTP-specific errors.
type APIError struct {
	Status   int
	AppError model.AppError
	Cause    error
}

func (e *APIError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.AppError.Code, e.AppError.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.AppError.Code, e.AppError.Message, e.Cause)
}

func (e *APIError) Unwrap() error { return e.Cause }

func requestError(code, message, hint string) error {
	return &APIError{Status: http.StatusBadRequest, AppError: model.AppError{
		Code:    code,
		Message: message,
		Stage:   "validate_request",
		Hint:    hint,
	}}
}

// statusFor maps an error code to the HTTP status returned to clients.
func statusFor(code string) int {
	switch code {
	case model.CodeInvalidArgument, model.CodeUnsupportedFamily:
		return http.StatusBadRequest
	case model.CodeNotFound:
		return http.StatusNotFound
	case model.CodeMalformedConfig, model.CodeInvalidUTF8, model.CodeTooLarge:
		return http.StatusUnprocessableEntity
	case model.CodeFetchFailed, model.CodeResolveFailed:
		return http.StatusBadGateway
	case model.CodeFetchTimeout:
		return http.StatusGatewayTimeout
	case model.CodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// internalHint is all a client learns about an unclassified failure. The
// error itself goes to the server log under the same request id.
const internalHint = "see server logs for request id in " + requestIDHeader

// writeErrorFromErr maps typed errors to their status and body. Anything
// else is logged and answered with a fixed 500.
func writeErrorFromErr(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	if err == nil {
		return
	}

	var ae *APIError
	if errors.As(err, &ae) {
		WriteError(w, ae.Status, ae.AppError)
		return
	}

	// A resolver failure is reported with the resolver's own code so that
	// clients can tell an unknown group from an unreachable upstream.
	var be *bootscript.Error
	if errors.As(err, &be) {
		var re *resolve.Error
		if be.AppError.Code == model.CodeResolveFailed && errors.As(be.Cause, &re) {
			WriteError(w, statusFor(re.AppError.Code), re.AppError)
			return
		}
		WriteError(w, statusFor(be.AppError.Code), be.AppError)
		return
	}

	var re *resolve.Error
	if errors.As(err, &re) {
		WriteError(w, statusFor(re.AppError.Code), re.AppError)
		return
	}

	var se *statement.RenderError
	if errors.As(err, &se) {
		status := http.StatusUnprocessableEntity
		if se.AppError.Code == model.CodeUnsupportedFamily {
			status = http.StatusBadRequest
		}
		WriteError(w, status, se.AppError)
		return
	}

	logger.LogAttrs(r.Context(), slog.LevelError, "internal error",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("request_id", RequestIDFromContext(r.Context())),
		slog.String("err", err.Error()),
	)
	WriteError(w, http.StatusInternalServerError, model.AppError{
		Code:    model.CodeInternal,
		Message: "internal server error",
		Stage:   "internal",
		Hint:    internalHint,
	})
}
