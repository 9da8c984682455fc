package main

import (
	"context"
	"crypto/tls"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/lrz80/chatbot-backend-sub000/internal/api/router"
	"github.com/lrz80/chatbot-backend-sub000/internal/booking"
	"github.com/lrz80/chatbot-backend-sub000/internal/calendar"
	appconfig "github.com/lrz80/chatbot-backend-sub000/internal/config"
	"github.com/lrz80/chatbot-backend-sub000/internal/http/handlers"
	"github.com/lrz80/chatbot-backend-sub000/internal/nlp"
	"github.com/lrz80/chatbot-backend-sub000/internal/observability/metrics"
	"github.com/lrz80/chatbot-backend-sub000/internal/search"
	"github.com/lrz80/chatbot-backend-sub000/internal/tenant"
	"github.com/lrz80/chatbot-backend-sub000/internal/transcript"
	"github.com/lrz80/chatbot-backend-sub000/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting booking engine API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx := context.Background()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to create pgx pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	sqlDB, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to open sql db", "error", err)
		os.Exit(1)
	}
	defer sqlDB.Close()

	redisOpts := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOpts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()

	var provider calendar.Provider = calendar.UnconfiguredProvider{}
	if cfg.GoogleCredentialsFile != "" {
		provider, err = calendar.NewGoogleProvider(ctx, cfg.GoogleCredentialsFile)
		if err != nil {
			logger.Error("failed to init google calendar provider", "error", err)
			os.Exit(1)
		}
	} else {
		logger.Warn("no calendar credentials configured; availability will be degraded")
	}

	bookingMetrics := metrics.NewBookingMetrics(nil)

	busy := calendar.NewAdapter(provider, cfg.FreeBusyTimeout, logger)
	searchSvc := search.NewService(busy, logger, nil)

	defaults := booking.Defaults{
		TimeZone:        cfg.DefaultTimezone,
		Language:        cfg.DefaultLanguage,
		SlotDurationMin: cfg.DefaultSlotDurationMin,
		BufferMin:       cfg.DefaultBufferMin,
		MinLeadMin:      cfg.DefaultMinLeadMin,
		MaxSlots:        cfg.MaxOfferedSlots,
		AroundSpan:      cfg.SearchWindowSpan,
		DaypartScanDays: cfg.DaypartScanDays,
		NextDayScanDays: cfg.NextDayScanDays,
	}
	finder := booking.NewSearchFinder(searchSvc, defaults, bookingMetrics)

	apptRepo := booking.NewPostgresRepository(pool)
	tenantStore := tenant.NewStore(pool)
	transcriptStore := transcript.NewStore(sqlDB)
	stateStore := booking.NewStateStore(redisClient, cfg.StateTTL)

	replies := booking.NewReplies(nil)
	machine := booking.NewMachine(finder, replies, logger)
	committer := booking.NewCommitter(apptRepo, busy, provider, finder, cfg.CommitTimeout, logger, bookingMetrics)
	svc := booking.NewService(
		machine, committer, stateStore, tenantStore,
		nlp.New(), replies, transcriptStore, defaults,
		logger, bookingMetrics,
	)

	routerCfg := &router.Config{
		Logger:            logger,
		Webhook:           handlers.NewWebhookHandler(svc, logger),
		AdminAppointments: handlers.NewAdminAppointmentsHandler(apptRepo, logger),
		AdminTranscripts:  handlers.NewAdminTranscriptsHandler(transcriptStore, logger),
		AdminTenants:      handlers.NewAdminTenantsHandler(tenantStore, logger),
		AdminAuthSecret:   cfg.AdminJWTSecret,
		MetricsHandler:    promhttp.Handler(),
		WebhookRatePerSec: float64(cfg.WebhookRatePerSec),
		WebhookBurst:      cfg.WebhookBurst,
	}
	if cfg.CORSAllowedOrigins != "" {
		routerCfg.CORSAllowedOrigins = strings.Split(cfg.CORSAllowedOrigins, ",")
	}
	r := router.New(routerCfg)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
