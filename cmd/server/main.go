package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/JonMunkholm/ExamSeat/internal/config"
	"github.com/JonMunkholm/ExamSeat/internal/core"
	"github.com/JonMunkholm/ExamSeat/internal/logging"
	"github.com/JonMunkholm/ExamSeat/internal/metrics"
	"github.com/JonMunkholm/ExamSeat/internal/notify"
	"github.com/JonMunkholm/ExamSeat/internal/seatgen"
	"github.com/JonMunkholm/ExamSeat/internal/store"
	"github.com/JonMunkholm/ExamSeat/internal/web"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("configuration loaded", "config", cfg.String())

	ctx := context.Background()
	pool, err := connect(ctx, cfg.Database)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	opts := []core.Option{
		core.WithMetrics(metrics.NewCollector(reg)),
		core.WithEmailSender(newMailer(cfg.Mail)),
	}
	if cfg.Seating.URL != "" {
		gen, err := seatgen.New(cfg.Seating.URL, cfg.Seating.APIKey, &http.Client{Timeout: cfg.Seating.Timeout})
		if err != nil {
			slog.Error("invalid seat generator configuration", "error", err)
			os.Exit(1)
		}
		opts = append(opts, core.WithSeatGenerator(gen))
	} else {
		slog.Warn("SEATGEN_URL not set; seat generation disabled")
	}

	service, err := core.NewService(store.NewPostgres(pool), core.Config{
		MaxConcurrentImports: cfg.Import.MaxConcurrent,
		ImportWait:           cfg.Import.MaxWaitTime,
		DefaultAntiCheat:     core.Strictness(cfg.Import.DefaultAntiCheat),
		LookupConcurrency:    cfg.Import.LookupConcurrency,
	}, opts...)
	if err != nil {
		slog.Error("failed to create service", "error", err)
		os.Exit(1)
	}

	server := web.NewServer(service, cfg, reg)

	jobCtx, cancelJobs := context.WithCancel(context.Background())
	if cfg.Reminder.Enabled {
		go service.StartReminderScheduler(jobCtx, cfg.Reminder.Interval)
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")
		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if status := service.Limiter().Status(); status.Active > 0 {
			slog.Info("waiting for imports to complete", "active", status.Active)
			if err := service.Limiter().WaitForDrain(shutdownCtx); err != nil {
				slog.Warn("imports did not complete in time", "error", err)
			}
		}
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

func connect(ctx context.Context, dc config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(dc.URL)
	if err != nil {
		return nil, err
	}
	poolConfig.MaxConns = int32(dc.MaxConns)
	poolConfig.MinConns = int32(dc.MinConns)
	poolConfig.MaxConnLifetime = dc.MaxConnLifetime
	poolConfig.MaxConnIdleTime = dc.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	slog.Info("connected to database", "host", poolConfig.ConnConfig.Host, "database", poolConfig.ConnConfig.Database)
	return pool, nil
}

func newMailer(mc config.MailConfig) core.EmailSender {
	if mc.SendsMail() {
		return notify.NewSendGrid(mc.SendGridKey, mc.AppName, mc.FromAddress)
	}
	slog.Info("email dry run: reminders are logged, not sent")
	return notify.NewConsole(mc.AppName)
}
