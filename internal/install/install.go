// Package install builds the agent-install statement that runs before any
// bootstrap step.
package install

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/John-Robertt/chefboot-go/internal/fetch"
	"github.com/John-Robertt/chefboot-go/internal/statement"
)

// DefaultUnixScript installs the agent with the omnibus installer.
const DefaultUnixScript = "curl -L https://omnitruck.chef.io/install.sh | bash"

// Source names where the install script comes from. At most one of Script,
// ScriptPath and ScriptURL may be set; none means DefaultUnixScript.
// WindowsScript is optional; without it windows rendering fails.
type Source struct {
	Script        string
	ScriptPath    string
	ScriptURL     string
	WindowsScript string
}

var errAmbiguousSource = errors.New("install: set at most one of script, script_path, script_url")

func (s Source) Validate() error {
	n := 0
	for _, v := range []string{s.Script, s.ScriptPath, s.ScriptURL} {
		if strings.TrimSpace(v) != "" {
			n++
		}
	}
	if n > 1 {
		return errAmbiguousSource
	}
	return nil
}

// Build loads the script once. The result is reused for every synthesis.
func Build(ctx context.Context, s Source, opt fetch.Options) (statement.Statement, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	unix := DefaultUnixScript
	switch {
	case strings.TrimSpace(s.Script) != "":
		unix = s.Script
	case strings.TrimSpace(s.ScriptPath) != "":
		b, err := os.ReadFile(s.ScriptPath)
		if err != nil {
			return nil, fmt.Errorf("install: read script: %w", err)
		}
		unix = string(b)
	case strings.TrimSpace(s.ScriptURL) != "":
		text, err := fetch.FetchTextWithOptions(ctx, fetch.KindInstallScript, s.ScriptURL, opt)
		if err != nil {
			return nil, fmt.Errorf("install: %w", err)
		}
		unix = text
	}

	unix = stripShebang(unix)
	if strings.TrimSpace(unix) == "" {
		return nil, errors.New("install: script is empty")
	}
	return statement.NewRaw(unix, s.WindowsScript), nil
}

// stripShebang drops a leading "#!" line; the script is embedded in a larger
// one that carries its own header.
func stripShebang(s string) string {
	if !strings.HasPrefix(s, "#!") {
		return s
	}
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return ""
}
