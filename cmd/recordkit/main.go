package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"

	"github.com/recordkit/recordkit/internal/api"
	"github.com/recordkit/recordkit/internal/api/associations"
	"github.com/recordkit/recordkit/internal/api/pipelines"
	"github.com/recordkit/recordkit/internal/api/ratelimit"
	"github.com/recordkit/recordkit/internal/api/records"
	"github.com/recordkit/recordkit/internal/api/schemas"
	"github.com/recordkit/recordkit/internal/api/workflows"
	"github.com/recordkit/recordkit/internal/cache"
	"github.com/recordkit/recordkit/internal/config"
	"github.com/recordkit/recordkit/internal/database"
	"github.com/recordkit/recordkit/internal/engine"
	"github.com/recordkit/recordkit/internal/events"
	"github.com/recordkit/recordkit/internal/seed"
	"github.com/recordkit/recordkit/internal/store"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	level := &slog.LevelVar{}
	slog.SetDefault(slog.New(tint.NewHandler(colorable.NewColorable(os.Stderr), &tint.Options{
		Level:      level,
		TimeFormat: "15:04:05.000",
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
	})))

	cfg, err := config.Load(os.Getenv("RECORDKIT_CONFIG"))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(cfg.LogLevel)); err == nil {
		level.Set(l)
	}

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() { _ = db.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := database.Migrate(ctx, db); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	s := store.New(db)

	var c cache.Cache = cache.Nop{}
	if cfg.Cache.Enabled {
		mem := cache.NewMemory(time.Minute)
		defer mem.Close()
		c = mem
	}

	var pub events.Publisher = &events.LogPublisher{Logger: slog.Default()}
	if cfg.Webhook.URL != "" {
		pub = events.NewWebhookPublisher(events.WebhookConfig{
			URL:             cfg.Webhook.URL,
			Timeout:         cfg.Webhook.Timeout,
			MaxFailures:     cfg.Webhook.MaxFailures,
			BreakerCooldown: cfg.Webhook.BreakerCooldown,
			RequestsPerSec:  cfg.Webhook.RequestsPerSec,
		}, slog.Default())
	}

	eng := engine.New(s, engine.Config{
		Cache:     c,
		CacheTTL:  cfg.Cache.TTL,
		Publisher: pub,
		Logger:    slog.Default(),
		Workers:   cfg.Workers.Count,
		QueueSize: cfg.Workers.QueueSize,
	})
	eng.Start()
	defer eng.Stop()

	if err := seed.Seed(ctx, eng); err != nil {
		return fmt.Errorf("seed data: %w", err)
	}

	mux := http.NewServeMux()

	schemas.RegisterRoutes(mux, eng)
	records.RegisterRoutes(mux, eng)
	associations.RegisterRoutes(mux, eng)
	pipelines.RegisterRoutes(mux, eng)
	workflows.RegisterRoutes(mux, eng)

	// Catch-all: unknown routes get a 404 in the standard error envelope.
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		corrID := api.CorrelationID(r.Context())
		api.WriteError(w, http.StatusNotFound, api.NewNotFoundError(
			fmt.Sprintf("No route found for %s %s", r.Method, r.URL.Path),
			corrID,
		))
	})

	var limiter *ratelimit.Limiter
	if cfg.RateLimit.Enabled {
		limiter = ratelimit.NewLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window, cfg.RateLimit.Burst)
		defer limiter.Close()
	}

	handler := api.Chain(mux,
		api.Recovery(),
		api.RequestID(),
		api.Auth(cfg.AuthToken),
		api.Tenant(),
		ratelimit.Middleware(limiter),
		api.JSONContentType(),
		api.Logging(),
	)

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: handler,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		slog.Info("shutting down server")
		if err := srv.Shutdown(context.Background()); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("starting recordkit server", "addr", cfg.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen: %w", err)
	}

	return nil
}
