package main

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/JonMunkholm/ExamSeat/internal/config"
	"github.com/JonMunkholm/ExamSeat/internal/core"
	"github.com/JonMunkholm/ExamSeat/internal/logging"
	"github.com/JonMunkholm/ExamSeat/internal/metrics"
	"github.com/JonMunkholm/ExamSeat/internal/notify"
	"github.com/JonMunkholm/ExamSeat/internal/seatgen"
	"github.com/JonMunkholm/ExamSeat/internal/store"
)

// backend is an open store. db is nil for gateways that are not SQL.
type backend struct {
	gw    store.Gateway
	db    store.DBTX
	close func()
}

// app carries the process-wide dependencies shared by every command.
type app struct {
	out        io.Writer
	loadConfig func() (*config.Config, error)
	open       func(ctx context.Context, cfg *config.Config) (*backend, error)
	// serviceOptions are appended after the configured collaborators.
	serviceOptions []core.Option

	cfg *config.Config
}

func newApp(out io.Writer) *app {
	return &app{out: out, loadConfig: config.Load, open: openPostgres}
}

func (a *app) init() error {
	if a.cfg != nil {
		return nil
	}
	cfg, err := a.loadConfig()
	if err != nil {
		return withCode(exitUsage, err)
	}
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	a.cfg = cfg
	return nil
}

func openPostgres(ctx context.Context, cfg *config.Config) (*backend, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		return nil, withCode(exitUsage, fmt.Errorf("parse database url: %w", err))
	}
	poolConfig.MaxConns = int32(cfg.Database.MaxConns)
	poolConfig.MinConns = 0

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, withCode(exitDB, fmt.Errorf("connect: %w", err))
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, withCode(exitDB, fmt.Errorf("ping database: %w", err))
	}
	return &backend{gw: store.NewPostgres(pool), db: pool, close: pool.Close}, nil
}

// service builds a core.Service over gw with the configured seat generator
// and mailer.
func (a *app) service(gw store.Gateway) (*core.Service, error) {
	cfg := a.cfg
	opts := []core.Option{core.WithMetrics(metrics.NewCollector(prometheus.NewRegistry()))}

	if cfg.Seating.URL != "" {
		gen, err := seatgen.New(cfg.Seating.URL, cfg.Seating.APIKey, &http.Client{Timeout: cfg.Seating.Timeout})
		if err != nil {
			return nil, withCode(exitUsage, err)
		}
		opts = append(opts, core.WithSeatGenerator(gen))
	}
	if cfg.Mail.SendsMail() {
		opts = append(opts, core.WithEmailSender(notify.NewSendGrid(cfg.Mail.SendGridKey, cfg.Mail.AppName, cfg.Mail.FromAddress)))
	} else {
		opts = append(opts, core.WithEmailSender(notify.NewConsole(cfg.Mail.AppName)))
	}
	opts = append(opts, a.serviceOptions...)

	return core.NewService(gw, core.Config{
		MaxConcurrentImports: cfg.Import.MaxConcurrent,
		ImportWait:           cfg.Import.MaxWaitTime,
		DefaultAntiCheat:     core.Strictness(cfg.Import.DefaultAntiCheat),
		LookupConcurrency:    cfg.Import.LookupConcurrency,
	}, opts...)
}

// withService opens the backend, runs fn and closes the backend.
func (a *app) withService(ctx context.Context, fn func(*core.Service, *backend) error) error {
	if err := a.init(); err != nil {
		return err
	}
	b, err := a.open(ctx, a.cfg)
	if err != nil {
		return err
	}
	defer b.close()

	svc, err := a.service(b.gw)
	if err != nil {
		return err
	}
	return fn(svc, b)
}
