package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"applicant-tracker/application"
	"applicant-tracker/infrastructure"
	"applicant-tracker/interfaces"
)

func main() {
	cfg := infrastructure.LoadConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}
	logger := infrastructure.NewLogger(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect DB
	db, err := infrastructure.NewDatabase(cfg.DBDriver, cfg.DBDSN, logger)
	if err != nil {
		log.Fatal(err)
	}

	// Broker is optional: without it outbox rows stay queued
	var publisher application.EventPublisher
	if cfg.RabbitMQURL != "" {
		rmq, err := infrastructure.NewRabbitMQ(cfg.RabbitMQURL, cfg.EventsExchange, logger)
		if err != nil {
			logger.WithError(err).Warn("RabbitMQ unavailable, events stay in the outbox")
		} else {
			defer rmq.Close()
			publisher = rmq
		}
	}

	cache := infrastructure.NewTieredCache(cfg.RedisURL, cfg.CacheTTL, logger)
	defer cache.Close()
	go cache.RunCleanup(ctx, cfg.CacheCleanupInterval)

	gemini := infrastructure.NewGeminiClient(infrastructure.GeminiConfig{
		APIKey:      cfg.GeminiAPIKey,
		Model:       cfg.GeminiModel,
		BaseURL:     cfg.GeminiBaseURL,
		Temperature: cfg.GeminiTemperature,
		MaxTokens:   cfg.GeminiMaxTokens,
		Timeout:     cfg.GeminiTimeout,
	}, logger)

	files, err := newFileStore(ctx, cfg, logger)
	if err != nil {
		log.Fatal(err)
	}

	hasher := infrastructure.NewBcryptHasher()
	relay := application.NewOutboxRelay(db, publisher, logger)
	go relay.Run(ctx, time.Minute)

	jobs := application.NewJobService(db, logger)
	notifier := application.NewNotifier(db, relay, logger)
	candidates := &application.CandidateService{
		DB:        db,
		Analyzer:  application.NewAnalyzer(gemini, cache, logger),
		Notifier:  notifier,
		Jobs:      jobs,
		Files:     files,
		Extractor: infrastructure.NewTextExtractor(cfg.UnidocLicenseKey, logger),
		Hasher:    hasher,
		Log:       logger,
	}

	// Setup Gin router
	router := gin.Default()
	router.MaxMultipartMemory = 8 << 20
	interfaces.NewHTTPHandler(router, &interfaces.HTTPHandler{
		Candidates: candidates,
		Jobs:       jobs,
		Auth:       application.NewAuthService(db, hasher, logger),
		Notifier:   notifier,
		Log:        logger,
	}, interfaces.NewSessionStore(cfg.SessionSecret, cfg.SecureCookies))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.WithField("port", cfg.Port).Info("server running")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	// analyses in flight get the scoring timeout to finish
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.GeminiTimeout+5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("graceful shutdown failed")
	}
}

func newFileStore(ctx context.Context, cfg *infrastructure.Config, logger *logrus.Logger) (application.FileStore, error) {
	if cfg.UseS3() {
		logger.WithField("bucket", cfg.S3Bucket).Info("storing CV files in S3")
		return infrastructure.NewS3Store(ctx, infrastructure.S3Config{
			Bucket:    cfg.S3Bucket,
			Endpoint:  cfg.S3Endpoint,
			Region:    cfg.S3Region,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Prefix:    "cv/",
		})
	}
	return infrastructure.NewLocalStore(cfg.UploadDir)
}
