// Package endpoint holds the coordination service base URL. The value can be
// swapped at runtime (config reload) and is read fresh by each synthesis.
package endpoint

import (
	"fmt"
	"net/url"
	"sync/atomic"
)

// Source supplies the current endpoint.
type Source interface {
	Endpoint() *url.URL
}

// Holder is a Source whose value can be replaced concurrently with reads.
type Holder struct {
	v atomic.Pointer[url.URL]
}

func NewHolder(u *url.URL) *Holder {
	h := &Holder{}
	h.Set(u)
	return h
}

// Endpoint returns a copy of the current URL, or nil if none is set.
func (h *Holder) Endpoint() *url.URL {
	u := h.v.Load()
	if u == nil {
		return nil
	}
	c := *u
	return &c
}

func (h *Holder) Set(u *url.URL) {
	if u == nil {
		h.v.Store(nil)
		return
	}
	c := *u
	h.v.Store(&c)
}

// Parse accepts absolute http/https URLs only.
func Parse(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint %q: %w", raw, err)
	}
	if !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("endpoint %q must be an absolute http(s) URL", raw)
	}
	return u, nil
}

// Static is a fixed Source.
type Static string

func (s Static) Endpoint() *url.URL {
	u, err := url.Parse(string(s))
	if err != nil {
		return nil
	}
	return u
}
