// Package server is the HTTP surface of a hosted learning session: the session
// facade as JSON endpoints, a websocket snapshot stream, health and metrics.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/life-stream-dev/life-stream-go-scorm-session/internal/config"
	"github.com/life-stream-dev/life-stream-go-scorm-session/internal/logger"
	"github.com/life-stream-dev/life-stream-go-scorm-session/internal/metrics"
	"github.com/life-stream-dev/life-stream-go-scorm-session/internal/session"
	"github.com/life-stream-dev/life-stream-go-scorm-session/internal/utils"
)

// NewRouter wires the session endpoints. collector may be nil.
func NewRouter(s *session.Session, events *EventStream, collector *metrics.Collector) *chi.Mux {
	log := logger.Component("http")
	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logger(log))
	r.Use(Recovery(log))

	h := NewSessionHandler(s)
	r.Get("/healthz", h.Health)
	r.Method(http.MethodGet, "/metrics", collector.Handler())

	r.Route("/session", func(r chi.Router) {
		r.Get("/", h.Snapshot)
		r.Post("/connect", h.Connect)
		r.Post("/disconnect", h.Disconnect)
		r.Get("/suspend-data", h.GetSuspendData)
		r.Put("/suspend-data/{key}", h.SetSuspendData)
		r.Put("/status", h.SetStatus)
		r.Get("/values/{field}", h.GetValue)
		r.Put("/values/{field}", h.SetValue)
		r.Get("/events", events.Handle)
	})
	return r
}

type Server struct {
	http   *http.Server
	events *EventStream
}

func NewServer(cfg config.HTTPConfig, s *session.Session, collector *metrics.Collector) *Server {
	events := NewEventStream(s)
	return &Server{
		events: events,
		http: &http.Server{
			Addr:              cfg.Listen,
			Handler:           NewRouter(s, events, collector),
			ReadTimeout:       utils.ParseDurationOr(cfg.ReadTimeout, 0),
			ReadHeaderTimeout: 10 * time.Second,
			WriteTimeout:      utils.ParseDurationOr(cfg.WriteTimeout, 0),
		},
	}
}

func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// ListenAndServe blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	logger.InfoF("HTTP server listen on %s", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.events.Close()
	return s.http.Shutdown(ctx)
}

type ShutdownCallback struct {
	server *Server
}

func NewShutdownCallback(server *Server) *ShutdownCallback {
	return &ShutdownCallback{server: server}
}

func (sc *ShutdownCallback) Invoke(ctx context.Context) error {
	logger.InfoF("Shutting down HTTP server")
	return sc.server.Shutdown(ctx)
}
