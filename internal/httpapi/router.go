package httpapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/John-Robertt/chefboot-go/internal/model"
	"github.com/John-Robertt/chefboot-go/internal/statement"
)

// Synthesizer is the subset of *bootscript.Synthesizer the API needs.
type Synthesizer interface {
	Synthesize(ctx context.Context, group string) (statement.List, error)
}

// NewMux returns the bare routes without observability or rate limiting.
func NewMux(s Synthesizer, opt Options) http.Handler {
	r := chi.NewRouter()
	routes(r, s, opt.withDefaults())
	return r
}

// NewHandler returns the production handler: request ids, access log,
// metrics and per-client rate limiting in front of the routes.
func NewHandler(s Synthesizer, opt Options) http.Handler {
	opt = opt.withDefaults()

	r := chi.NewRouter()
	r.Use(withRequestID)
	r.Use(withObservability(opt.Logger))
	if opt.RateLimitRPS > 0 {
		r.Use(withRateLimit(opt.RateLimitRPS, opt.RateLimitBurst))
	}
	routes(r, s, opt)
	return r
}

func routes(r chi.Router, s Synthesizer, opt Options) {
	h := bootstrapHandler{synth: s, opt: opt}

	r.Get("/healthz", handleHealthz)
	r.Get("/metrics", handleMetrics)
	r.Get("/bootstrap/{group}", h.handleBootstrap)
	r.NotFound(handleNotFound)
	r.MethodNotAllowed(handleMethodNotAllowed)
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	WriteText(w, http.StatusOK, "ok\n")
}

func handleNotFound(w http.ResponseWriter, r *http.Request) {
	WriteError(w, http.StatusNotFound, model.AppError{
		Code:    model.CodeNotFound,
		Message: "no such route",
		Stage:   "validate_request",
	})
}

func handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Allow", http.MethodGet)
	WriteError(w, http.StatusMethodNotAllowed, model.AppError{
		Code:    model.CodeInvalidArgument,
		Message: "method not allowed",
		Stage:   "validate_request",
	})
}
