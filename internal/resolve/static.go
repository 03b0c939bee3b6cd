package resolve

import (
	"context"
	"encoding/json"
	"maps"
	"slices"
)

// Static serves groups from memory, typically the service config file.
type Static struct {
	groups map[string]json.RawMessage
}

func NewStatic(groups map[string]json.RawMessage) *Static {
	return &Static{groups: maps.Clone(groups)}
}

func (s *Static) Resolve(_ context.Context, group string) (json.RawMessage, error) {
	raw, ok := s.groups[group]
	if !ok {
		return nil, notFound(group, nil)
	}
	return slices.Clone(raw), nil
}

// Groups lists the configured group names in sorted order.
func (s *Static) Groups() []string {
	return slices.Sorted(maps.Keys(s.groups))
}
