package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"call-analysis-engine/pkg/accuracy"
	"call-analysis-engine/pkg/coaching"
	"call-analysis-engine/pkg/config"
	"call-analysis-engine/pkg/engine"
	"call-analysis-engine/pkg/metrics"
)

// Server exposes the analysis engine over HTTP: REST endpoints for call
// lifecycle and queries, WebSocket endpoints for media ingest and the live
// event feed, plus /metrics and /health.
type Server struct {
	logger  *logrus.Logger
	log     *logrus.Entry
	cfg     *config.HTTPConfig
	orch    *engine.Orchestrator
	tracker *accuracy.Tracker

	router   *chi.Mux
	upgrader websocket.Upgrader
	srv      *http.Server
}

// NewServer builds the router. Call Start to begin serving.
func NewServer(logger *logrus.Logger, cfg *config.HTTPConfig, orch *engine.Orchestrator, tracker *accuracy.Tracker) *Server {
	s := &Server{
		logger:  logger,
		log:     logger.WithField("component", "http_server"),
		cfg:     cfg,
		orch:    orch,
		tracker: tracker,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// Media streams arrive from the dialer's own infrastructure
				return true
			},
		},
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	if h := metrics.Handler(); h != nil {
		r.Method(http.MethodGet, "/metrics", h)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/dashboard", s.handleDashboard)
		r.Route("/calls", func(r chi.Router) {
			r.Get("/", s.handleListCalls)
			r.Post("/", s.handleStartCall)
			r.Route("/{callID}", func(r chi.Router) {
				r.Post("/end", s.handleEndCall)
				r.Get("/analysis", s.handleAnalysis)
				r.Get("/transcript", s.handleTranscript)
				r.Post("/outcome", s.handleConfirmOutcome)
				r.Post("/recommendations/{recommendationID}/ack", s.handleAcknowledge)
			})
		})
	})

	r.Get("/ws/media/{callID}", s.handleMediaSocket)
	r.Get("/ws/events/{callID}", s.handleEventSocket)

	s.router = r
	return s
}

// Router returns the HTTP handler, for tests and embedding.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start serves until Shutdown is called or the listener fails.
func (s *Server) Start() error {
	s.srv = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Port),
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}
	s.log.WithField("addr", s.srv.Addr).Info("HTTP server starting")

	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.WithError(err).Error("Failed to encode response")
	}
}

func (s *Server) respondError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, engine.ErrCallNotFound), errors.Is(err, coaching.ErrRecommendationNotFound):
		status = http.StatusNotFound
	case errors.Is(err, engine.ErrCallAlreadyExists),
		errors.Is(err, engine.ErrInvalidCallState),
		errors.Is(err, accuracy.ErrOutcomeAlreadyConfirmed):
		status = http.StatusConflict
	case errors.Is(err, errBadRequest):
		status = http.StatusBadRequest
	}
	s.respondJSON(w, status, map[string]string{"error": err.Error()})
}
