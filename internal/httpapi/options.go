package httpapi

import (
	"log/slog"
	"time"
)

// Options controls HTTP API runtime behavior.
type Options struct {
	// RequestTimeout bounds a single bootstrap request, including the group
	// config lookup.
	RequestTimeout time.Duration

	// RateLimitRPS is the sustained per-client request rate; 0 disables
	// rate limiting. RateLimitBurst defaults to 1.
	RateLimitRPS   float64
	RateLimitBurst int

	// Logger receives access logs; nil uses slog.Default().
	Logger *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = 30 * time.Second
	}
	if o.RateLimitRPS > 0 && o.RateLimitBurst <= 0 {
		o.RateLimitBurst = 1
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}
