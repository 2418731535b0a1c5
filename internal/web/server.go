// Package web serves the exam import API, the seating pages and the
// operational endpoints.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/JonMunkholm/ExamSeat/internal/config"
	"github.com/JonMunkholm/ExamSeat/internal/core"
	"github.com/JonMunkholm/ExamSeat/internal/metrics"
	"github.com/JonMunkholm/ExamSeat/internal/web/middleware"
)

// Server is the HTTP front end of a core.Service.
type Server struct {
	service  *core.Service
	cfg      *config.Config
	router   *chi.Mux
	server   *http.Server
	limiter  *middleware.RateLimiter
	gatherer prometheus.Gatherer
	validate *validator.Validate
}

// NewServer builds the router. A nil gatherer disables /metrics.
func NewServer(service *core.Service, cfg *config.Config, gatherer prometheus.Gatherer) *Server {
	s := &Server{
		service:  service,
		cfg:      cfg,
		router:   chi.NewRouter(),
		gatherer: gatherer,
		validate: newValidator(),
	}
	if cfg.Rate.Enabled {
		s.limiter = middleware.NewRateLimiter(middleware.PerMinute(cfg.Rate.RequestsPerMinute, cfg.Rate.ImportLimit))
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(middleware.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(middleware.Logger)
	s.router.Use(chimw.Recoverer)
	s.router.Use(securityHeaders)
	if s.limiter != nil {
		s.router.Use(s.limiter.Middleware)
	}
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	if s.gatherer != nil {
		s.router.Handle("/metrics", metrics.Handler(s.gatherer))
	}

	// Pages
	s.router.Get("/", s.handleExamIndex)
	s.router.Get("/exams/{examID}/seating", s.handleSeatingPage)

	s.router.Route("/api", func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(&s.cfg.Security))

		r.Get("/exams", s.handleListExams)
		r.Get("/exams/{examID}/seating", s.handleSeating)
		r.Post("/exams/{examID}/seating", s.handleGenerateSeating)
		r.Get("/students/{profileID}/schedule", s.handleStudentSchedule)
		r.Get("/database", s.handleDatabase)

		r.Get("/import/template", s.handleImportTemplate)
		r.Group(func(r chi.Router) {
			if s.limiter != nil {
				r.Use(s.limiter.ImportMiddleware)
			}
			r.Post("/import", s.handleImport)
		})
	})
}

// Start listens on the configured address until Shutdown.
func (s *Server) Start() error {
	sc := s.cfg.Server
	s.server = &http.Server{
		Addr:         sc.Addr(),
		Handler:      s.router,
		ReadTimeout:  sc.ReadTimeout,
		WriteTimeout: sc.WriteTimeout,
		IdleTimeout:  sc.IdleTimeout,
	}
	slog.Info("starting server", "addr", sc.Addr())
	return s.server.ListenAndServe()
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.limiter != nil {
		s.limiter.Stop()
	}
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the handler, for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"imports": s.service.Limiter().Status(),
	})
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Content-Security-Policy", "default-src 'self'; style-src 'self' 'unsafe-inline'")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", "error", err)
	}
}
