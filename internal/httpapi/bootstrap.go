package httpapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/John-Robertt/chefboot-go/internal/model"
	"github.com/John-Robertt/chefboot-go/internal/statement"
)

type bootstrapHandler struct {
	synth Synthesizer
	opt   Options
}

// handleBootstrap serves GET /bootstrap/{group}?os=unix|windows.
func (h bootstrapHandler) handleBootstrap(w http.ResponseWriter, r *http.Request) {
	if h.synth == nil {
		writeErrorFromErr(w, r, h.opt.Logger, &APIError{Status: http.StatusInternalServerError, AppError: model.AppError{
			Code:    model.CodeConfigError,
			Message: "no synthesizer configured",
			Stage:   "config",
		}})
		return
	}

	q := r.URL.Query()
	for k := range q {
		if k != "os" {
			writeErrorFromErr(w, r, h.opt.Logger, requestError(model.CodeInvalidArgument, "unknown query parameter: "+k, "only os=unix|windows is accepted"))
			return
		}
	}
	if len(q["os"]) > 1 {
		writeErrorFromErr(w, r, h.opt.Logger, requestError(model.CodeInvalidArgument, "os given more than once", ""))
		return
	}
	family, err := statement.ParseFamily(q.Get("os"))
	if err != nil {
		writeErrorFromErr(w, r, h.opt.Logger, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.opt.RequestTimeout)
	defer cancel()

	st, err := h.synth.Synthesize(ctx, chi.URLParam(r, "group"))
	if err != nil {
		writeErrorFromErr(w, r, h.opt.Logger, err)
		return
	}
	script, err := statement.Script(st, family)
	if err != nil {
		writeErrorFromErr(w, r, h.opt.Logger, err)
		return
	}

	metrics.scripts.inc(string(family))

	ct := "text/x-shellscript; charset=utf-8"
	if family == statement.Windows {
		ct = "text/plain; charset=utf-8"
	}
	// The script embeds the validator key.
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Type", ct)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(script))
}
