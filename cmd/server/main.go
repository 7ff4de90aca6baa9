package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"adgpt-backend/internal/api"
	"adgpt-backend/internal/attachments"
	"adgpt-backend/internal/auth"
	"adgpt-backend/internal/config"
	"adgpt-backend/internal/handlers"
	"adgpt-backend/internal/logger"
	"adgpt-backend/internal/reply"
	"adgpt-backend/internal/services"
	"adgpt-backend/internal/store"
	"adgpt-backend/internal/store/memory"
	"adgpt-backend/internal/store/postgres"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		zlog.Fatal().Err(err).Msg("failed to load configuration")
	}

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		zlog.Fatal().Err(err).Msg("failed to build logger")
	}
	zlog.Logger = log
	log.Info().Msg("starting AdGPT backend")

	// 2. Initialize Persistence
	st, closeStore := openStore(cfg, log)
	defer closeStore()

	// 3. Initialize Collaborators (revocation, attachments, completion)
	revoker, closeRevoker := openRevoker(cfg, log)
	defer closeRevoker()

	files := attachments.NewService(openAttachmentStorage(cfg, log), cfg.MaxUploadBytes, log)

	completer := reply.NewOpenAICompleter(reply.OpenAIConfig{
		APIKey:  cfg.GenAIAPIKey,
		BaseURL: cfg.GenAIBaseURL,
		Model:   cfg.GenAIModel,
		Timeout: cfg.GenAITimeout,
	})
	replies := reply.NewChain(log, reply.NewCannedRules(), reply.NewUpstreamCompletion(completer))
	log.Info().Str("model", cfg.GenAIModel).Str("base_url", cfg.GenAIBaseURL).Msg("reply chain initialized")

	// 4. Initialize Services and Handlers
	authService := services.NewAuthService(st, revoker, cfg, log)
	conversationService := services.NewConversationService(st, log)
	ingestionService := services.NewIngestionService(st, files, replies, log)

	router := api.NewRouter(api.RouterDependencies{
		AuthHandler:         handlers.NewAuthHandler(authService, cfg.CookieSecure, log),
		ConversationHandler: handlers.NewConversationHandlers(conversationService, log),
		MessageHandler:      handlers.NewMessageHandlers(ingestionService, cfg.MaxUploadBytes, log),
		UploadHandler:       handlers.NewUploadHandlers(files, log),
		Authenticator:       authService,
		Config:              cfg,
		Logger:              log,
	})

	// 5. Configure and Start HTTP Server
	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Must outlive the upstream completion call.
		WriteTimeout: cfg.GenAITimeout + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	stopChan := make(chan os.Signal, 1)
	signal.Notify(stopChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Info().Str("port", cfg.HTTPPort).Msg("server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Str("port", cfg.HTTPPort).Msg("could not listen")
		}
	}()

	<-stopChan
	log.Info().Msg("shutdown signal received, initiating graceful shutdown")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server graceful shutdown failed")
		return
	}
	log.Info().Msg("server shutdown complete")
}

func openStore(cfg *config.Config, log zerolog.Logger) (store.Store, func()) {
	if cfg.StoreBackend == "memory" {
		log.Warn().Msg("using in-memory store, data is lost on restart")
		return memory.NewMemoryStore(), func() {}
	}

	if err := postgres.Migrate(cfg.DatabaseURL, log); err != nil {
		log.Fatal().Err(err).Msg("failed to apply database migrations")
	}

	dbCtx, dbCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer dbCancel()

	dbpool, err := pgxpool.New(dbCtx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("unable to create database connection pool")
	}
	if err := dbpool.Ping(dbCtx); err != nil {
		log.Fatal().Err(err).Msg("unable to ping database")
	}
	log.Info().Msg("database connection pool established")
	return postgres.NewPostgresStore(dbpool, log), dbpool.Close
}

func openRevoker(cfg *config.Config, log zerolog.Logger) (auth.Revoker, func()) {
	if cfg.RedisURL == "" {
		log.Info().Msg("token revocation kept in memory")
		return auth.NewMemoryRevoker(), func() {}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	r, err := auth.NewRedisRevoker(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	log.Info().Msg("token revocation backed by redis")
	return r, func() {
		if err := r.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close redis client")
		}
	}
}

func openAttachmentStorage(cfg *config.Config, log zerolog.Logger) attachments.Storage {
	if cfg.StorageBackend == "s3" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s3, err := attachments.NewS3Storage(ctx, attachments.S3Config{
			Endpoint:     cfg.S3Endpoint,
			Region:       cfg.S3Region,
			Bucket:       cfg.S3Bucket,
			AccessKeyID:  cfg.S3AccessKeyID,
			SecretKey:    cfg.S3SecretKey,
			UsePathStyle: cfg.S3UsePathStyle,
		}, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize s3 storage")
		}
		if err := s3.Health(ctx); err != nil {
			log.Warn().Err(err).Str("bucket", cfg.S3Bucket).Msg("s3 bucket not reachable")
		}
		return s3
	}

	local, err := attachments.NewLocalStorage(cfg.UploadDir, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize local storage")
	}
	return local
}
