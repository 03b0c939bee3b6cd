// Package app wires configuration into a ready synthesizer and its
// collaborators.
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"golang.org/x/time/rate"

	"github.com/John-Robertt/chefboot-go/internal/bootscript"
	"github.com/John-Robertt/chefboot-go/internal/chefapi"
	"github.com/John-Robertt/chefboot-go/internal/config"
	"github.com/John-Robertt/chefboot-go/internal/credential"
	"github.com/John-Robertt/chefboot-go/internal/endpoint"
	"github.com/John-Robertt/chefboot-go/internal/fetch"
	"github.com/John-Robertt/chefboot-go/internal/install"
	"github.com/John-Robertt/chefboot-go/internal/jsonball"
	"github.com/John-Robertt/chefboot-go/internal/resolve"
)

type App struct {
	Synth    *bootscript.Synthesizer
	Endpoint *endpoint.Holder

	// Cache is nil when groups.cache_ttl is 0.
	Cache *resolve.Cached
	// Chef is nil when chef.client is not configured.
	Chef *chefapi.Client
}

// New loads keys and the install script and builds the resolver chain.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	u, err := endpoint.Parse(cfg.Chef.ServerURL)
	if err != nil {
		return nil, err
	}
	holder := endpoint.NewHolder(u)

	key, err := credential.LoadKeyFile(cfg.Chef.Validator.KeyPath)
	if err != nil {
		return nil, fmt.Errorf("validator: %w", err)
	}

	fetchOpt := fetchOptions(cfg)
	installStmt, err := install.Build(ctx, cfg.Chef.Install.Source(), fetchOpt)
	if err != nil {
		return nil, err
	}

	resolver, err := NewResolver(cfg, fetchOpt)
	if err != nil {
		return nil, err
	}
	a := &App{Endpoint: holder}
	if cfg.Groups.CacheTTL > 0 {
		a.Cache = resolve.NewCached(resolver, cfg.Groups.CacheTTL, cfg.Fetch.Timeout)
		resolver = a.Cache
	}

	a.Synth = &bootscript.Synthesizer{
		Resolver:  resolver,
		Codec:     jsonball.JSON{},
		Endpoint:  holder,
		Validator: &credential.ValidatorIdentity{Name: cfg.Chef.Validator.Name, Key: key},
		Install:   installStmt,
	}

	if cfg.Chef.Client.IsSet() {
		clientKey, err := credential.LoadKeyFile(cfg.Chef.Client.KeyPath)
		if err != nil {
			return nil, fmt.Errorf("client: %w", err)
		}
		a.Chef, err = chefapi.New(holder, cfg.Chef.Client.Name, clientKey)
		if err != nil {
			return nil, err
		}
	}
	return a, nil
}

// Reload applies the parts of cfg that can change without a restart: the
// coordination service endpoint and the group cache.
func (a *App) Reload(cfg *config.Config) error {
	u, err := endpoint.Parse(cfg.Chef.ServerURL)
	if err != nil {
		return err
	}
	a.Endpoint.Set(u)
	if a.Cache != nil {
		a.Cache.Invalidate("")
	}
	return nil
}

// NewResolver builds the configured group source, without caching.
func NewResolver(cfg *config.Config, fetchOpt fetch.Options) (resolve.Resolver, error) {
	g := cfg.Groups
	switch g.Source {
	case config.SourceStatic:
		groups := make(map[string]json.RawMessage, len(g.Static))
		for name, v := range g.Static {
			b, err := json.Marshal(v)
			if err != nil {
				return nil, fmt.Errorf("groups.static.%s: %w", name, err)
			}
			groups[name] = b
		}
		return resolve.NewStatic(groups), nil
	case config.SourceDir:
		return resolve.Dir{Root: g.Dir}, nil
	case config.SourceHTTP:
		h := resolve.HTTP{BaseURL: g.URL, Options: fetchOpt}
		if cfg.Fetch.RatePerSecond > 0 {
			h.Limiter = rate.NewLimiter(rate.Limit(cfg.Fetch.RatePerSecond), cfg.Fetch.Burst)
		}
		if len(g.Headers) > 0 {
			h.Options.Header = make(http.Header, len(g.Headers))
			for k, v := range g.Headers {
				h.Options.Header.Set(k, v)
			}
		}
		return h, nil
	case config.SourceS3:
		client := resolve.NewS3Client(resolve.S3ClientConfig{
			Region:          g.S3.Region,
			Endpoint:        g.S3.Endpoint,
			AccessKeyID:     g.S3.AccessKeyID,
			SecretAccessKey: g.S3.SecretAccessKey,
			UsePathStyle:    g.S3.UsePathStyle,
			Timeout:         cfg.Fetch.Timeout,
		})
		return resolve.S3{Client: client, Bucket: g.S3.Bucket, Prefix: g.S3.Prefix, MaxBytes: cfg.Fetch.MaxBytes}, nil
	default:
		return nil, fmt.Errorf("unknown groups.source %q", g.Source)
	}
}

func fetchOptions(cfg *config.Config) fetch.Options {
	return fetch.Options{
		Timeout:      cfg.Fetch.Timeout,
		MaxBytes:     cfg.Fetch.MaxBytes,
		MaxRedirects: cfg.Fetch.MaxRedirects,
	}
}
