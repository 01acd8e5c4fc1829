package app

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/klauspost/compress/gzhttp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roman-kulish/spectrum-scope/internal/broadcast"
	"github.com/roman-kulish/spectrum-scope/internal/render"
	"github.com/roman-kulish/spectrum-scope/internal/storage"
	"github.com/roman-kulish/spectrum-scope/internal/telemetry"
)

const (
	pathLatest   = "/api/latest"
	pathStats    = "/api/stats"
	pathSessions = "/api/sessions"
	pathMetrics  = "/metrics"
	pathPanel    = "/spectrum.png"

	readHeaderTimeout = 5 * time.Second
)

var reservedPaths = map[string]struct{}{
	pathLatest:   {},
	pathStats:    {},
	pathSessions: {},
	pathMetrics:  {},
	pathPanel:    {},
}

// routes wires the HTTP surface. panel and store may be nil.
type routes struct {
	hub      *broadcast.Hub
	panel    *render.Panel
	store    storage.Store
	counters *telemetry.Counters
	logger   *slog.Logger
}

func (rt *routes) handler(websocketPath string) http.Handler {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		telemetry.NewCollector(rt.counters),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	mux := http.NewServeMux()
	mux.Handle(websocketPath, rt.hub)
	mux.Handle(pathLatest, gzhttp.GzipHandler(http.HandlerFunc(rt.latest)))
	mux.Handle(pathStats, gzhttp.GzipHandler(http.HandlerFunc(rt.stats)))
	mux.Handle(pathSessions, gzhttp.GzipHandler(http.HandlerFunc(rt.sessions)))
	mux.Handle(pathMetrics, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	if rt.panel != nil {
		mux.Handle(pathPanel, rt.panel)
	}

	return mux
}

func newServer(config *ServerConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              config.Listen,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}
}

// latest serves the last wire message broadcast to observers.
func (rt *routes) latest(w http.ResponseWriter, _ *http.Request) {
	msg := rt.hub.Latest()
	if msg == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(msg)
}

func (rt *routes) stats(w http.ResponseWriter, _ *http.Request) {
	rt.writeJSON(w, rt.counters.Get())
}

func (rt *routes) sessions(w http.ResponseWriter, r *http.Request) {
	if rt.store == nil {
		http.Error(w, "storage is disabled", http.StatusNotFound)
		return
	}

	sessions, err := rt.store.Sessions(r.Context())
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		rt.logger.Error("listing sessions", slog.Any("error", err))
		http.Error(w, "failed to list sessions", http.StatusInternalServerError)
		return
	}
	if sessions == nil {
		sessions = []*storage.Session{}
	}

	rt.writeJSON(w, sessions)
}

func (rt *routes) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		rt.logger.Debug("writing response", slog.Any("error", err))
	}
}
