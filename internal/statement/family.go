package statement

import (
	"fmt"
	"strings"

	"github.com/John-Robertt/chefboot-go/internal/model"
)

// Family is the target OS family a statement tree is rendered for.
type Family string

const (
	Unix    Family = "unix"
	Windows Family = "windows"
)

// ParseFamily accepts "" (unix), "unix", "linux" and "windows".
func ParseFamily(s string) (Family, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "unix", "linux":
		return Unix, nil
	case "windows":
		return Windows, nil
	default:
		return "", unsupportedFamily(Family(s))
	}
}

func (f Family) newline() string {
	if f == Windows {
		return "\r\n"
	}
	return "\n"
}

func (f Family) tokens() (*strings.Replacer, error) {
	switch f {
	case Unix:
		return strings.NewReplacer("{root}", "/", "{fs}", "/", "{md}", "mkdir -p"), nil
	case Windows:
		return strings.NewReplacer("{root}", `c:\`, "{fs}", `\`, "{md}", "md 2>nul"), nil
	default:
		return nil, unsupportedFamily(f)
	}
}

// Expand resolves the path template tokens ({root}, {fs}, {md}) for f.
func Expand(s string, f Family) (string, error) {
	r, err := f.tokens()
	if err != nil {
		return "", err
	}
	return r.Replace(s), nil
}

type RenderError struct {
	AppError model.AppError
	Cause    error
}

func (e *RenderError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.AppError.Code, e.AppError.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.AppError.Code, e.AppError.Message, e.Cause)
}

func (e *RenderError) Unwrap() error { return e.Cause }

func unsupportedFamily(f Family) error {
	return &RenderError{
		AppError: model.AppError{
			Code:    model.CodeUnsupportedFamily,
			Message: fmt.Sprintf("unsupported os family: %q", string(f)),
			Stage:   "render",
			Hint:    "expected: unix | windows",
		},
	}
}

func renderError(message, hint string) error {
	return &RenderError{
		AppError: model.AppError{
			Code:    model.CodeInvalidArgument,
			Message: message,
			Stage:   "render",
			Hint:    hint,
		},
	}
}
