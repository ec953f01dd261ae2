package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/lazypower/habitcity/internal/auth"
	"github.com/lazypower/habitcity/internal/engine"
)

// Server is the habitcity HTTP API server.
type Server struct {
	engine   *engine.Engine
	verifier *auth.Verifier
	router   chi.Router
	version  string
	started  time.Time
	timeout  time.Duration
}

// Option configures a Server.
type Option func(*Server)

// WithAuth requires bearer tokens on user routes. A nil verifier leaves
// auth off.
func WithAuth(v *auth.Verifier) Option {
	return func(s *Server) { s.verifier = v }
}

// WithTimeout bounds each request.
func WithTimeout(d time.Duration) Option {
	return func(s *Server) { s.timeout = d }
}

// New creates a new Server around eng.
func New(eng *engine.Engine, version string, opts ...Option) *Server {
	s := &Server{
		engine:  eng,
		version: version,
		started: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	if s.timeout > 0 {
		r.Use(middleware.Timeout(s.timeout))
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Post("/decide-action", s.handleDecide)

		r.Group(func(r chi.Router) {
			if s.verifier != nil {
				r.Use(s.verifier.Middleware)
			}
			r.Post("/register", s.handleRegister)
			r.Get("/city-state", s.handleCityState)
			r.Post("/complete-habit", s.handleCompleteHabit)
			r.Post("/update-state", s.handleUpdateState)
			r.Delete("/history/{userID}", s.handleClearHistory)
		})
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbOK := s.engine.DB != nil && s.engine.DB.PingContext(r.Context()) == nil

	status := "ok"
	if !dbOK {
		status = "degraded"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       status,
		"version":      s.version,
		"uptime":       time.Since(s.started).Seconds(),
		"db":           dbOK,
		"model_loaded": s.engine.ModelReady(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps engine errors to status codes. Internal errors are
// logged and hidden.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, engine.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, engine.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	default:
		log.Printf("%s %s: %v", r.Method, r.URL.Path, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}
