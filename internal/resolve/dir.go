package resolve

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/tidwall/jsonc"

	"github.com/John-Robertt/chefboot-go/internal/model"
)

// Dir reads <Root>/<group>.json, falling back to <Root>/<group>.jsonc.
// Comments and trailing commas are stripped from either form.
type Dir struct {
	Root string
}

func (d Dir) Resolve(_ context.Context, group string) (json.RawMessage, error) {
	if err := ValidGroup(group); err != nil {
		return nil, err
	}
	for _, ext := range []string{".json", ".jsonc"} {
		path := filepath.Join(d.Root, group+ext)
		b, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			re := newError(model.CodeFetchFailed, group, "failed to read group file", err)
			re.AppError.URL = path
			return nil, re
		}
		return json.RawMessage(jsonc.ToJSON(b)), nil
	}
	return nil, notFound(group, nil)
}
