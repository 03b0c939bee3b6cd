package resolve

import (
	"context"
	"encoding/json"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/John-Robertt/chefboot-go/internal/model"
)

// DefaultLoadTimeout bounds a shared load when NewCached is given none.
const DefaultLoadTimeout = 15 * time.Second

// Cached keeps successful resolutions for TTL. Concurrent misses for one
// group share a single upstream call, which is bounded by loadTimeout even
// when the upstream ignores cancellation. Errors are never cached.
type Cached struct {
	next        Resolver
	ttl         time.Duration
	loadTimeout time.Duration
	now         func() time.Time

	mu      sync.Mutex
	entries map[string]cacheEntry

	loads singleflight.Group
}

type cacheEntry struct {
	raw     json.RawMessage
	expires time.Time
}

func NewCached(next Resolver, ttl, loadTimeout time.Duration) *Cached {
	if loadTimeout <= 0 {
		loadTimeout = DefaultLoadTimeout
	}
	return &Cached{
		next:        next,
		ttl:         ttl,
		loadTimeout: loadTimeout,
		now:         time.Now,
		entries:     make(map[string]cacheEntry),
	}
}

func (c *Cached) Resolve(ctx context.Context, group string) (json.RawMessage, error) {
	if raw, ok := c.lookup(group); ok {
		return raw, nil
	}

	// The shared load must outlive any single caller's cancellation.
	loadCtx := context.WithoutCancel(ctx)
	ch := c.loads.DoChan(group, func() (any, error) {
		raw, err := c.load(loadCtx, group)
		if err != nil {
			return nil, err
		}
		c.store(group, raw)
		return raw, nil
	})

	select {
	case <-ctx.Done():
		return nil, newError(model.CodeFetchTimeout, group, "gave up waiting for group configuration", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return slices.Clone(res.Val.(json.RawMessage)), nil
	}
}

// load calls the upstream under loadTimeout. A call still running at the
// deadline is abandoned so the group's singleflight key is released.
func (c *Cached) load(ctx context.Context, group string) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, c.loadTimeout)
	defer cancel()

	type result struct {
		raw json.RawMessage
		err error
	}
	done := make(chan result, 1)
	go func() {
		raw, err := c.next.Resolve(ctx, group)
		done <- result{raw: raw, err: err}
	}()

	select {
	case r := <-done:
		return r.raw, r.err
	case <-ctx.Done():
		return nil, newError(model.CodeFetchTimeout, group, "group configuration load timed out", ctx.Err())
	}
}

// Invalidate drops group from the cache; an empty group drops everything.
func (c *Cached) Invalidate(group string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if group == "" {
		clear(c.entries)
		return
	}
	delete(c.entries, group)
}

func (c *Cached) lookup(group string) (json.RawMessage, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[group]
	if !ok {
		return nil, false
	}
	if !c.now().Before(e.expires) {
		delete(c.entries, group)
		return nil, false
	}
	return slices.Clone(e.raw), true
}

func (c *Cached) store(group string, raw json.RawMessage) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	c.entries[group] = cacheEntry{raw: slices.Clone(raw), expires: c.now().Add(c.ttl)}
	c.mu.Unlock()
}
