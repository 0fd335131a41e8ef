package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cally-platform/internal/audit"
	"cally-platform/internal/auth"
	"cally-platform/internal/calendar"
	"cally-platform/internal/config"
	"cally-platform/internal/httpapi"
	"cally-platform/internal/notify"
	"cally-platform/internal/payment"
	"cally-platform/internal/provider"
	"cally-platform/internal/syncqueue"
	"cally-platform/internal/timezone"
	"cally-platform/pkg/logger"
	"cally-platform/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	// Scheduling core wiring.
	resolver := timezone.NewResolver(cfg.Scheduling.DefaultTimezone)
	repo := calendar.NewPostgresRepo(db)
	configStore := provider.NewPostgresConfigStore(db)

	var sources []calendar.ProviderSource
	var pushers []syncqueue.Pusher
	if cfg.Google.ClientID != "" {
		src := provider.NewSource(configStore, provider.NewGoogleClient(cfg.Google.ClientID, cfg.Google.ClientSecret, cfg.Scheduling.ProviderTimeout))
		sources = append(sources, src)
		pushers = append(pushers, src)
	}
	if cfg.Outlook.ClientID != "" {
		src := provider.NewSource(configStore, provider.NewOutlookClient(cfg.Outlook.ClientID, cfg.Outlook.ClientSecret, cfg.Scheduling.ProviderTimeout))
		sources = append(sources, src)
		pushers = append(pushers, src)
	}

	queue := syncqueue.NewRedisQueue(rdb, syncqueue.DefaultKey)

	var payments payment.Processor
	if cfg.Payment.SecretKey != "" {
		payments = payment.NewHTTPProcessor(cfg.Payment.APIBaseURL, cfg.Payment.SecretKey, 0)
	}

	calendarSvc := calendar.NewService(calendar.ServiceDeps{
		Repo:            repo,
		Resolver:        resolver,
		Sources:         sources,
		Queue:           queue,
		Payments:        payments,
		Notifier:        notify.LogSender{Log: log},
		Audit:           audit.NewService(audit.NewPostgresRepo(db)),
		ProviderTimeout: cfg.Scheduling.ProviderTimeout,
	})

	// Outbox consumers pushing native changes to linked providers.
	worker := syncqueue.NewWorker(syncqueue.WorkerDeps{
		Queue:   queue,
		Repo:    repo,
		Pushers: pushers,
		Log:     log,
		Redis:   rdb,
	})
	for i := 0; i < cfg.Scheduling.SyncWorkers; i++ {
		go worker.Run(rootCtx)
	}

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	h := httpapi.Handlers{
		Auth:            authManager,
		Calendar:        calendarSvc,
		DefaultTimezone: cfg.Scheduling.DefaultTimezone,
	}
	registerRoutes(r, auth.RequireAccessToken(authManager), h)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}

	_ = logger.ShutdownFlush(shutdownCtx, 2*time.Second)
}
