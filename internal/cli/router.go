// File: internal/cli/router.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// HTTP surface of the driver: prometheus scrape endpoint and debug state.

package cli

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/momentics/hioload-dispatch/facade"
)

// NewRouter serves /metrics from g and engine state from d.
func NewRouter(d *facade.Dispatch, g prom.Gatherer) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, "ok\n")
	})
	r.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	r.Route("/debug", func(r chi.Router) {
		r.Get("/state", func(w http.ResponseWriter, _ *http.Request) {
			serveJSON(w, d.Control().Stats())
		})
		r.Get("/config", func(w http.ResponseWriter, _ *http.Request) {
			serveJSON(w, d.Control().GetConfig())
		})
		r.Get("/contexts/{name}", func(w http.ResponseWriter, req *http.Request) {
			c, ok := d.Context(chi.URLParam(req, "name"))
			if !ok {
				http.Error(w, "context not found", http.StatusNotFound)
				return
			}
			serveJSON(w, c.Stats())
		})
	})
	return r
}

func serveJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := writeJSON(w, v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
