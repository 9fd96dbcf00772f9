package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Gobusters/ectoenv"
	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.uber.org/zap"

	"github.com/Ramsey-B/dahlia/config"
	"github.com/Ramsey-B/dahlia/internal/handlers"
	"github.com/Ramsey-B/dahlia/internal/repositories/asset"
	"github.com/Ramsey-B/dahlia/internal/repositories/category"
	"github.com/Ramsey-B/dahlia/internal/repositories/generationrequest"
	"github.com/Ramsey-B/dahlia/internal/repositories/localizedasset"
	"github.com/Ramsey-B/dahlia/internal/repositories/relatedlink"
	"github.com/Ramsey-B/dahlia/internal/repositories/tag"
	"github.com/Ramsey-B/dahlia/pkg/ai"
	"github.com/Ramsey-B/dahlia/pkg/database"
	"github.com/Ramsey-B/dahlia/pkg/events"
	"github.com/Ramsey-B/dahlia/pkg/httpclient"
	"github.com/Ramsey-B/dahlia/pkg/kafka"
	"github.com/Ramsey-B/dahlia/pkg/middleware"
	"github.com/Ramsey-B/dahlia/pkg/models"
	"github.com/Ramsey-B/dahlia/pkg/queue"
	"github.com/Ramsey-B/dahlia/pkg/redis"
	"github.com/Ramsey-B/dahlia/pkg/scheduler"
	"github.com/Ramsey-B/dahlia/pkg/stages/assetgen"
	"github.com/Ramsey-B/dahlia/pkg/stages/categorytranslate"
	"github.com/Ramsey-B/dahlia/pkg/stages/governor"
	"github.com/Ramsey-B/dahlia/pkg/stages/linkindex"
	"github.com/Ramsey-B/dahlia/pkg/stages/localization"
	"github.com/Ramsey-B/dahlia/pkg/stages/promptsynth"
	"github.com/Ramsey-B/dahlia/pkg/stages/remediation"
	"github.com/Ramsey-B/dahlia/pkg/storage"
	"github.com/Ramsey-B/dahlia/pkg/tracing"
)

var version = "dev"

const shutdownTimeout = 30 * time.Second

func main() {
	_ = godotenv.Load()

	cfg := &config.Config{}
	if err := ectoenv.BindEnv(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	zapLogger := newZapLogger(cfg)
	defer zapLogger.Sync() //nolint:errcheck
	logger := zapadapter.NewZapEctoLogger(zapLogger, nil)

	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Error("Service exited with error")
		zapLogger.Sync() //nolint:errcheck
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger ectologger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.TracingEnabled {
		tp, err := setupTracing(ctx, cfg)
		if err != nil {
			return fmt.Errorf("failed to set up tracing: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tp.Shutdown(shutdownCtx); err != nil {
				logger.WithError(err).Warn("Failed to shut down tracer provider")
			}
		}()
	}

	// Postgres
	sqlxDB, err := connectDB(cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer sqlxDB.Close()

	if err := migrateDB(cfg, logger, sqlxDB); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	db := database.NewDatabaseInstance(sqlxDB, logger)

	// Redis: queues, locks, DLQ, rate limiting
	redisClient, err := redis.NewClient(redis.Config{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	defer redisClient.Close()

	streams := redis.NewStreams(redisClient)
	locker := redis.NewLocker(redisClient, cfg.QueueStreamPrefix)
	dlq := redis.NewDeadLetterQueue(redisClient, cfg.QueueDLQStream, logger)
	limiter := redis.NewRateLimiter(redisClient, cfg.QueueStreamPrefix)

	// Kafka is optional; a nil producer disables event emission.
	var producer *kafka.Producer
	if cfg.KafkaEventsEnabled {
		producer = kafka.NewProducer(kafka.ProducerConfig{
			Brokers:      cfg.KafkaBrokers,
			Topic:        cfg.KafkaEventsTopic,
			BatchSize:    cfg.KafkaBatchSize,
			BatchTimeout: time.Duration(cfg.KafkaBatchTimeoutMS) * time.Millisecond,
			RequiredAcks: cfg.KafkaRequiredAcks,
		}, logger)
		defer producer.Close()
	}
	emitter := events.NewEmitter(producer, logger)

	// Blob store
	blobs, err := storage.New(storage.Config{
		Endpoint:  cfg.S3Endpoint,
		Region:    cfg.S3Region,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
		Bucket:    cfg.S3Bucket,
		PublicURL: cfg.S3PublicURL,
	})
	if err != nil {
		return fmt.Errorf("failed to create blob store client: %w", err)
	}

	// Model gateway
	gateway := ai.NewGateway(
		httpclient.NewClient(httpclient.DefaultConfig(), logger),
		limiter,
		ai.GatewayConfig{
			BaseURL:           cfg.AIGatewayBaseURL,
			APIKey:            cfg.AIGatewayAPIKey,
			Timeout:           cfg.AIGatewayTimeout,
			RequestsPerMinute: cfg.AIGatewayRequestsPerMinute,
		},
		logger,
	)

	// Repositories
	categoryRepo := category.NewRepository(db, logger)
	requestRepo := generationrequest.NewRepository(db, logger)
	assetRepo := asset.NewRepository(db, logger)
	tagRepo := tag.NewRepository(db, logger)
	localizedRepo := localizedasset.NewRepository(db, logger)
	linkRepo := relatedlink.NewRepository(db, logger)

	// Stages
	publisher := queue.NewPublisher(streams, cfg.QueueStreamPrefix, logger)

	gov := governor.New(categoryRepo, requestRepo, publisher, governor.Config{
		Enabled:         cfg.GenerationEnabled,
		GlobalDailyCap:  cfg.GlobalDailyCap,
		QuotaMultiplier: cfg.QuotaMultiplier,
	}, logger)

	synthesizer := promptsynth.New(categoryRepo, requestRepo, gateway, publisher, logger)

	generator := assetgen.New(
		requestRepo, categoryRepo, assetRepo, tagRepo,
		gateway, gateway, blobs, publisher, emitter,
		assetgen.Config{MaxAttempts: cfg.GeneratorMaxAttempts},
		logger,
	)

	localizer := localization.New(
		assetRepo, localizedRepo, categoryRepo, tagRepo, gateway, publisher, emitter,
		localization.Config{
			DefaultLocale:    cfg.DefaultLocale,
			SupportedLocales: cfg.SupportedLocales,
			BatchSize:        cfg.TranslationBatchSize,
		},
		logger,
	)

	indexer := linkindex.New(assetRepo, localizedRepo, linkRepo, emitter, linkindex.Config{
		Limit:     cfg.RelatedLinkLimit,
		Overfetch: cfg.RelatedLinkOverfetch,
	}, logger)

	remediator := remediation.New(localizedRepo, gateway, remediation.Config{
		MinDescriptionLength: cfg.MinDescriptionLength,
		DefaultLimit:         cfg.RemediationLimit,
	}, logger)

	categoryTranslator := categorytranslate.New(categoryRepo, gateway, categorytranslate.Config{
		SupportedLocales: cfg.SupportedLocales,
	}, logger)

	// Queue processors, one per stage. Each stage declares its
	// worst-case stretch of gateway waiting as the handler budget so
	// the claim loop never steals a message whose handler is still
	// blocked on the gateway. The generator gets the full two-call
	// budget since a stolen in-flight message would mint a second
	// asset; localization covers all its translation batches; stages
	// whose writes are plain idempotent upserts keep a single-call
	// budget.
	batchSize := cfg.TranslationBatchSize
	if batchSize <= 0 {
		batchSize = 1
	}
	translationBatches := (len(cfg.SupportedLocales) + batchSize - 1) / batchSize
	newStageProcessor := func(stage string, workers int, budget time.Duration, handler queue.Handler) *queue.Processor {
		pc := queue.DefaultProcessorConfig(stage, publisher.StreamFor(stage))
		pc.ConsumerGroup = cfg.QueueConsumerGroup
		pc.MaxRetries = cfg.QueueMaxAttempts
		pc.ClaimInterval = cfg.QueueClaimInterval
		pc.ClaimMinIdle = cfg.QueueClaimMinIdle
		pc.HandlerBudget = budget
		pc.WorkerCount = workers
		return queue.NewProcessor(streams, dlq, handler, pc, logger)
	}

	processors := []*queue.Processor{
		newStageProcessor(models.StagePromptSynth, cfg.PromptSynthWorkerCount, cfg.AIGatewayTimeout, synthesizer.HandleJob),
		newStageProcessor(models.StageAssetGenerate, cfg.AssetGenWorkerCount, 2*cfg.AIGatewayTimeout, generator.HandleJob),
		newStageProcessor(models.StageLocalize, cfg.LocalizationWorkerCount, time.Duration(translationBatches)*cfg.AIGatewayTimeout, localizer.HandleJob),
		newStageProcessor(models.StageLinkIndex, cfg.LinkIndexWorkerCount, 0, indexer.HandleJob),
		newStageProcessor(models.StageRemediate, cfg.RemediationWorkerCount, cfg.AIGatewayTimeout, remediator.HandleJob),
		newStageProcessor(models.StageCategoryTranslate, 1, cfg.AIGatewayTimeout, categoryTranslator.HandleJob),
	}

	for _, p := range processors {
		if err := p.Start(ctx); err != nil {
			return fmt.Errorf("failed to start stage processor: %w", err)
		}
	}

	// Scheduled work runs behind a distributed lock so only one instance
	// fires per interval.
	sched := scheduler.NewScheduler(locker, cfg.SchedulerLockTTL, logger)
	sched.Register(scheduler.Task{
		Name:     "quota-governor",
		Interval: cfg.GovernorInterval,
		Run:      gov.Run,
	})
	sched.Register(scheduler.Task{
		Name:     "remediation-sweep",
		Interval: cfg.RemediationInterval,
		Run: func(ctx context.Context) error {
			return publisher.Enqueue(ctx, models.StageRemediate, models.RemediateJob{
				Mode:  models.RemediateModeBatch,
				Limit: cfg.RemediationLimit,
			})
		},
	})
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	// Admin API
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.Error(logger)
	e.Use(echomw.Recover())
	e.Use(otelecho.Middleware(cfg.AppName))
	e.Use(middleware.Context())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{AllowOrigins: cfg.AllowOrigins}))

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	healthHandler := handlers.NewHealthHandler(sqlxDB, redisClient, version)
	healthHandler.Register(e)

	api := e.Group("/api/v1")
	handlers.NewCategoryHandler(categoryRepo, publisher, logger).Register(api.Group("/categories"))
	handlers.NewGenerationRequestHandler(requestRepo, publisher, logger).Register(api.Group("/generation-requests"))
	handlers.NewAssetHandler(assetRepo, localizedRepo, linkRepo, indexer, publisher, cfg.DefaultLocale, cfg.RelatedLinkLimit, logger).Register(api.Group("/assets"))
	handlers.NewRemediationHandler(localizedRepo, publisher, logger).Register(api.Group("/remediations"))
	handlers.NewDLQHandler(dlq, streams, logger).Register(api.Group("/dlq"))

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		ReadTimeout:  time.Duration(cfg.HttpServerReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.HttpServerWriteTimeoutSeconds) * time.Second,
		IdleTimeout:  time.Duration(cfg.HttpServerIdleTimeoutSeconds) * time.Second,
	}

	serverErrCh := make(chan error, 1)
	go func() {
		logger.WithField("port", cfg.Port).Infof("Starting %s on port %d", cfg.AppName, cfg.Port)
		if err := e.StartServer(server); err != nil && err != http.ErrServerClosed {
			serverErrCh <- err
		}
	}()

	healthHandler.SetReady(true)

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-serverErrCh:
		logger.WithError(err).Error("HTTP server failed")
	}

	healthHandler.SetReady(false)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("Failed to shut down HTTP server cleanly")
	}
	if err := sched.Stop(shutdownCtx); err != nil {
		logger.WithError(err).Warn("Failed to stop scheduler cleanly")
	}
	for _, p := range processors {
		if err := p.Stop(shutdownCtx); err != nil {
			logger.WithError(err).Warn("Failed to stop stage processor cleanly")
		}
	}

	logger.Info("Shutdown complete")
	return nil
}

func newZapLogger(cfg *config.Config) *zap.Logger {
	var zapLogger *zap.Logger
	var err error
	if cfg.PrettyLogs {
		zapLogger, err = zap.NewDevelopment()
	} else {
		zapLogger, err = zap.NewProduction()
	}
	if err != nil {
		zapLogger = zap.NewNop()
	}
	return zapLogger
}

func setupTracing(ctx context.Context, cfg *config.Config) (*sdktrace.TracerProvider, error) {
	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(cfg.TracingOTLPEndpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.AppName),
			semconv.ServiceVersion(version),
		),
	)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	tracing.SetTracer(tp.Tracer(cfg.AppName))
	return tp, nil
}

func connectDB(cfg *config.Config) (*sqlx.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.DatabaseHost, cfg.DatabasePort, cfg.DatabaseUserName,
		cfg.DatabasePassword, cfg.DatabaseName, cfg.DatabaseSSLMode,
	)

	db, err := sqlx.Connect(cfg.DatabaseDriver, dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(cfg.DatabaseMaxOpenConns)
	db.SetMaxIdleConns(cfg.DatabaseMaxIdleConns)
	db.SetConnMaxLifetime(cfg.DatabaseConnMaxLifetime)
	return db, nil
}

func migrateDB(cfg *config.Config, logger ectologger.Logger, db *sqlx.DB) error {
	driver, err := migratepg.WithInstance(db.DB, &migratepg.Config{})
	if err != nil {
		return err
	}

	migrator := database.NewMigrator(logger, &database.MigratorConfig{
		FolderPath:   cfg.DatabaseMigrationFolderPath,
		Version:      uint(cfg.DatabaseMigrationVersion),
		Force:        cfg.DatabaseMigrationForce,
		AutoRollback: cfg.DatabaseMigrationAutoRollback,
	})
	return migrator.Run(cfg.DatabaseName, driver)
}
