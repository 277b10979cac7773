package gameserver

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/cory-johannsen/fpsnet/internal/config"
)

// RouterOptions configures NewRouter.
type RouterOptions struct {
	Server    config.ServerConfig
	WebSocket config.WebSocketConfig
	Admin     config.AdminConfig
	// Gatherer backs the metrics endpoint; nil disables it.
	Gatherer prometheus.Gatherer
}

// NewRouter builds the HTTP surface of the relay: the websocket upgrade
// path, room listing, liveness probe, Prometheus metrics and, in standalone
// mode, the static client assets.
//
// Precondition: relay and logger must be non-nil.
func NewRouter(relay *Relay, opts RouterOptions, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/rooms", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(relay.Registry().Rooms()); err != nil {
			logger.Warn("writing room listing", zap.Error(err))
		}
	})

	if opts.Gatherer != nil && opts.Admin.MetricsPath != "" {
		r.Method(http.MethodGet, opts.Admin.MetricsPath, promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Handle(opts.WebSocket.Path, NewWSEndpoint(relay, opts.WebSocket, logger))

	if opts.Server.Mode == config.ModeStandalone && opts.Server.StaticDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(opts.Server.StaticDir)))
	}

	return r
}
