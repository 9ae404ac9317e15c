package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"lexdesk/api/internal/ai"
	"lexdesk/api/internal/app"
	"lexdesk/api/internal/blob"
	"lexdesk/api/internal/cache"
	"lexdesk/api/internal/config"
	"lexdesk/api/internal/drafts"
	"lexdesk/api/internal/email"
	"lexdesk/api/internal/export"
	"lexdesk/api/internal/logging"
	"lexdesk/api/internal/outbox"
	"lexdesk/api/internal/reminder"
	"lexdesk/api/internal/search"
	"lexdesk/api/internal/session"
	"lexdesk/api/internal/store"
)

func main() {
	// A missing .env is fine; the process environment still applies.
	_ = godotenv.Load()
	cfg := config.Load()
	logging.Setup(cfg.LogLevel)
	logger := slog.Default()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(ctx, cfg.DatabaseURL, store.DefaultPool(cfg.DBMaxConns))
	if err != nil {
		logging.Fatal("database connection failed", "error", err)
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
		logging.Fatal("migrations failed", "error", err)
	}
	dataStore := store.NewPostgresStore(db)

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logging.Fatal("invalid redis url", "error", err)
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logging.Fatal("redis connection failed", "error", err)
	}

	pgfts := search.NewPgFTS(db)
	var searchService *search.Service
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient := search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey, logger)
		defer meiliClient.Close()
		searchService = search.NewService(meiliClient, pgfts, logger)
	} else {
		logger.Info("meilisearch not configured, conflict search uses postgres full-text")
		searchService = search.NewService(nil, pgfts, logger)
	}
	go searchService.Reindex(ctx, pgfts)

	if err := os.MkdirAll(cfg.DraftsDir, 0o755); err != nil {
		logging.Fatal("failed to create drafts dir", "error", err)
	}

	var blobs *blob.Store
	if strings.TrimSpace(cfg.MinioEndpoint) != "" {
		blobs, err = blob.New(blob.Config{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
			URLTTL:    cfg.ExportURLTTL,
		})
		if err != nil {
			logging.Fatal("object storage init failed", "error", err)
		}
		if err := blobs.EnsureBucket(ctx); err != nil {
			logging.Fatal("object storage bucket check failed", "bucket", cfg.MinioBucket, "error", err)
		}
	} else {
		logger.Info("object storage not configured, exports are returned inline")
	}

	var completer ai.Completer
	if strings.TrimSpace(cfg.AIBaseURL) != "" {
		completer = ai.NewClient(ai.Config{
			BaseURL: cfg.AIBaseURL,
			APIKey:  cfg.AIAPIKey,
			Model:   cfg.AIModel,
			Timeout: cfg.AITimeout,
		})
	} else {
		logger.Warn("AI completion API not configured, document generation will fail")
	}

	source := outbox.NewRedisOutbox(redisClient, cfg.OutboxStream)
	var mirror outbox.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPublisher := outbox.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer kafkaPublisher.Close()
		mirror = kafkaPublisher
	}

	service := app.New(cfg, app.Dependencies{
		Store:     dataStore,
		Sessions:  session.NewRedisStore(redisClient),
		Search:    searchService,
		Drafts:    drafts.New(cfg.DraftsDir),
		Exporter:  export.NewService(),
		Blobs:     blobs,
		Templates: cache.NewTemplates(redisClient, cache.DefaultTemplateTTL),
		AI:        completer,
		Publisher: source,
		Logger:    logger,
	})
	if err := service.Bootstrap(ctx); err != nil {
		logger.Warn("bootstrap failed, will retry on next restart", "error", err)
	}

	if cfg.RunScheduler {
		scheduler := reminder.NewScheduler(dataStore, source, logger)
		go func() {
			if err := scheduler.Run(ctx, cfg.ReminderInterval); err != nil && !errors.Is(err, context.Canceled) {
				logging.Fatal("reminder scheduler stopped", "error", err)
			}
		}()
	}
	if cfg.RunDispatcher {
		hostname, _ := os.Hostname()
		dispatcher := outbox.NewDispatcher(source, dataStore, outbox.DispatcherConfig{
			Group:    cfg.OutboxGroup,
			Consumer: hostname,
			Mailer: email.NewService(email.Config{
				Host:     cfg.SMTPHost,
				Port:     cfg.SMTPPort,
				Username: cfg.SMTPUsername,
				Password: cfg.SMTPPassword,
				From:     cfg.SMTPFrom,
				FromName: cfg.SMTPFromName,
				AppURL:   cfg.AppURL,
			}),
			Mirror: mirror,
			Logger: logger,
		})
		go func() {
			if err := dispatcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("notification dispatcher stopped", "error", err)
			}
		}()
	}

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      90 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("lexdesk api listening", "addr", cfg.Addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Fatal("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}
