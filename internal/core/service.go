package core

import (
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/JonMunkholm/ExamSeat/internal/store"
)

// Config tunes the service. Zero values fall back to defaults.
type Config struct {
	MaxConcurrentImports int
	ImportWait           time.Duration
	DefaultAntiCheat     Strictness
	// LookupConcurrency bounds parallel per-exam reads in read models.
	LookupConcurrency int
}

// Service is the entry point for imports and seating read models.
type Service struct {
	store      store.Gateway
	reconciler *Reconciler
	generator  SeatGenerator
	mailer     EmailSender
	metrics    MetricsRecorder
	limiter    *ImportLimiter
	validate   *validator.Validate
	cfg        Config
	now        func() time.Time
}

// Option configures optional collaborators.
type Option func(*Service)

// WithSeatGenerator enables auto and manual seat generation.
func WithSeatGenerator(g SeatGenerator) Option {
	return func(s *Service) { s.generator = g }
}

// WithEmailSender enables exam reminders.
func WithEmailSender(m EmailSender) Option {
	return func(s *Service) { s.mailer = m }
}

// WithMetrics records pipeline counters.
func WithMetrics(m MetricsRecorder) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService wires a service over gw.
func NewService(gw store.Gateway, cfg Config, opts ...Option) (*Service, error) {
	if cfg.DefaultAntiCheat == "" {
		cfg.DefaultAntiCheat = StrictnessBasic
	}
	if cfg.LookupConcurrency <= 0 {
		cfg.LookupConcurrency = 4
	}

	s := &Service{
		store:    gw,
		metrics:  nopMetrics{},
		limiter:  NewImportLimiter(cfg.MaxConcurrentImports, cfg.ImportWait),
		validate: newValidator(),
		cfg:      cfg,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.reconciler = NewReconciler(gw, s.generator, s.metrics)

	if err := s.validate.Var(string(cfg.DefaultAntiCheat), "oneof=basic strict max"); err != nil {
		return nil, &ValidationError{Reason: "default anti-cheat level must be one of basic, strict, max"}
	}
	return s, nil
}

// Limiter exposes the import limiter for shutdown draining.
func (s *Service) Limiter() *ImportLimiter { return s.limiter }

// Store returns the underlying gateway.
func (s *Service) Store() store.Gateway { return s.store }

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}
