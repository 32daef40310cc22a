// Package api exposes the orchestrator over HTTP: incident lifecycle,
// action approval, timelines, learning insights, on-call and
// notification acknowledgement, plus the websocket event stream and
// Prometheus metrics.
package api

import (
	"net/http"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/remedyops/remedy/internal/learning"
	"github.com/remedyops/remedy/internal/lifecycle"
	"github.com/remedyops/remedy/internal/monitor"
	"github.com/remedyops/remedy/internal/notify"
	"github.com/remedyops/remedy/internal/oncall"
	"github.com/remedyops/remedy/internal/store"
	"github.com/remedyops/remedy/internal/telemetry"
	"github.com/remedyops/remedy/internal/timeline"
	"github.com/remedyops/remedy/internal/websocket"
)

// Router wires HTTP routes to the domain services.
type Router struct {
	mux       *http.ServeMux
	store     *store.Store
	lifecycle *lifecycle.Engine
	learning  *learning.Engine
	timeline  *timeline.Recorder
	oncall    *oncall.Resolver
	notify    *notify.Manager
	monitor   *monitor.Monitor
	hub       *websocket.Hub
	version   string
}

// Config carries the router's dependencies.
type Config struct {
	Store     *store.Store
	Lifecycle *lifecycle.Engine
	Learning  *learning.Engine
	Timeline  *timeline.Recorder
	OnCall    *oncall.Resolver
	Notify    *notify.Manager
	Monitor   *monitor.Monitor
	Hub       *websocket.Hub
	Version   string
}

// NewRouter builds the route table.
func NewRouter(cfg Config) *Router {
	r := &Router{
		mux:       http.NewServeMux(),
		store:     cfg.Store,
		lifecycle: cfg.Lifecycle,
		learning:  cfg.Learning,
		timeline:  cfg.Timeline,
		oncall:    cfg.OnCall,
		notify:    cfg.Notify,
		monitor:   cfg.Monitor,
		hub:       cfg.Hub,
		version:   cfg.Version,
	}
	r.routes()
	return r
}

func (r *Router) routes() {
	r.mux.HandleFunc("/api/health", r.handleHealth)
	r.mux.HandleFunc("/api/version", r.handleVersion)

	r.mux.HandleFunc("/api/incidents", r.handleIncidents)
	r.mux.HandleFunc("/api/incidents/", r.handleIncidentByID)

	r.mux.HandleFunc("/api/actions", r.handleProposeAction)
	r.mux.HandleFunc("/api/actions/", r.handleActionByID)

	r.mux.HandleFunc("/api/outcomes", r.handleCaptureOutcome)
	r.mux.HandleFunc("/api/insights", r.handleInsights)
	r.mux.HandleFunc("/api/patterns", r.handlePatterns)

	r.mux.HandleFunc("/api/oncall", r.handleOnCall)
	r.mux.HandleFunc("/api/oncall/schedules", r.handleSchedules)

	r.mux.HandleFunc("/api/notifications/", r.handleNotificationByID)

	r.mux.HandleFunc("/api/check", r.handleCheckOnce)
	r.mux.HandleFunc("/api/generate", r.handleGenerateOnce)

	if r.hub != nil {
		r.mux.HandleFunc("/ws", r.hub.HandleWebSocket)
	}
	r.mux.Handle("/metrics", telemetry.Handler())
}

// Handler returns the full middleware-wrapped handler.
func (r *Router) Handler() http.Handler {
	return withRecovery(withRequestLog(r.mux))
}

func (r *Router) handleHealth(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"clients": r.clientCount(),
	})
}

func (r *Router) clientCount() int {
	if r.hub == nil {
		return 0
	}
	return r.hub.ClientCount()
}

func (r *Router) handleVersion(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": r.version})
}

// withRequestLog logs failed requests.
func withRequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		rw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, req)
		if rw.status >= 400 {
			log.Warn().
				Str("path", req.URL.Path).
				Str("method", req.Method).
				Int("status", rw.status).
				Dur("elapsed", time.Since(start)).
				Msg("Request failed")
		}
	})
}

// withRecovery converts handler panics into 500 responses.
func withRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				log.Error().
					Interface("error", err).
					Str("path", req.URL.Path).
					Bytes("stack", debug.Stack()).
					Msg("Panic recovered in API handler")
				writeError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
			}
		}()
		next.ServeHTTP(w, req)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
