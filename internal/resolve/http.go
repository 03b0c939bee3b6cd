package resolve

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"

	"golang.org/x/time/rate"

	"github.com/John-Robertt/chefboot-go/internal/fetch"
	"github.com/John-Robertt/chefboot-go/internal/model"
)

// HTTP fetches group configs from a remote config service.
//
// BaseURL may contain a "{group}" placeholder; otherwise the escaped group
// name is appended as the last path segment.
type HTTP struct {
	BaseURL string
	Options fetch.Options

	// Limiter throttles upstream requests; nil means unlimited.
	Limiter *rate.Limiter
}

func (h HTTP) URL(group string) string {
	seg := url.PathEscape(group)
	if strings.Contains(h.BaseURL, "{group}") {
		return strings.ReplaceAll(h.BaseURL, "{group}", seg)
	}
	return strings.TrimRight(h.BaseURL, "/") + "/" + seg
}

func (h HTTP) Resolve(ctx context.Context, group string) (json.RawMessage, error) {
	if err := ValidGroup(group); err != nil {
		return nil, err
	}
	if h.Limiter != nil {
		if err := h.Limiter.Wait(ctx); err != nil {
			return nil, newError(model.CodeFetchTimeout, group, "gave up waiting for the fetch rate limiter", err)
		}
	}
	text, err := fetch.FetchTextWithOptions(ctx, fetch.KindGroupConfig, h.URL(group), h.Options)
	if err != nil {
		return nil, fromFetch(group, err)
	}
	return json.RawMessage(text), nil
}
