package model

// AppError is the only error payload returned by this service.
//
// Code is the stable tag callers switch on; Message is for humans.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Stage   string `json:"stage"`

	Group string `json:"group,omitempty"`
	URL   string `json:"url,omitempty"`
	Hint  string `json:"hint,omitempty"`
}

type ErrorResponse struct {
	Error AppError `json:"error"`
}

// Error codes shared across stages.
const (
	CodeInvalidArgument   = "INVALID_ARGUMENT"
	CodeConfigError       = "CONFIG_ERROR"
	CodeResolveFailed     = "RESOLVE_FAILED"
	CodeMalformedConfig   = "MALFORMED_CONFIG"
	CodeNotFound          = "NOT_FOUND"
	CodeFetchFailed       = "FETCH_FAILED"
	CodeFetchTimeout      = "FETCH_TIMEOUT"
	CodeTooLarge          = "TOO_LARGE"
	CodeInvalidUTF8       = "FETCH_INVALID_UTF8"
	CodeUnsupportedFamily = "UNSUPPORTED_FAMILY"
	CodeRateLimited       = "RATE_LIMITED"
	CodeInternal          = "INTERNAL_ERROR"
)
