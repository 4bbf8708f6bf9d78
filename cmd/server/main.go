package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/erp/salesdocs/docs"
	docapp "github.com/erp/salesdocs/internal/application/document"
	eventapp "github.com/erp/salesdocs/internal/application/event"
	"github.com/erp/salesdocs/internal/domain/document"
	"github.com/erp/salesdocs/internal/domain/shared"
	"github.com/erp/salesdocs/internal/infrastructure/cache"
	"github.com/erp/salesdocs/internal/infrastructure/config"
	"github.com/erp/salesdocs/internal/infrastructure/event"
	"github.com/erp/salesdocs/internal/infrastructure/logger"
	"github.com/erp/salesdocs/internal/infrastructure/migration"
	"github.com/erp/salesdocs/internal/infrastructure/persistence"
	"github.com/erp/salesdocs/internal/infrastructure/printing"
	"github.com/erp/salesdocs/internal/infrastructure/storage"
	"github.com/erp/salesdocs/internal/infrastructure/telemetry"
	"github.com/erp/salesdocs/internal/interfaces/http/handler"
	"github.com/erp/salesdocs/internal/interfaces/http/middleware"
	"github.com/erp/salesdocs/internal/interfaces/http/router"
	"github.com/erp/salesdocs/migrations"
	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

//	@title			Sales Documents API
//	@version		1.0
//	@description	Lifecycle and versioning of quotes, order confirmations, delivery notes, invoices and credit notes
//
//	@host		localhost:8080
//	@BasePath	/api/v1
func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(logger.FromAppConfig(cfg))
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting sales document service",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	ctx := context.Background()

	// Tracing
	tp, err := telemetry.NewTracerProvider(ctx, telemetry.TracingConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    version,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	defer func() {
		_ = tp.Shutdown(context.Background())
	}()

	profileTypes, err := telemetry.ParseProfileTypes(cfg.Telemetry.ProfileTypes)
	if err != nil {
		log.Fatal("Invalid profile types", zap.Error(err))
	}
	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:         cfg.Telemetry.ProfilingEnabled,
		ServerAddress:   cfg.Telemetry.ProfilingServer,
		ApplicationName: cfg.Telemetry.ServiceName,
		ProfileTypes:    profileTypes,
		Tags:            map[string]string{"env": cfg.App.Env, "version": version},
	}, log)
	if err != nil {
		log.Fatal("Failed to start profiler", zap.Error(err))
	}
	defer func() {
		_ = profiler.Stop()
	}()
	if profiler.IsEnabled() {
		tp.EnableSpanProfiles()
	}

	mp, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.MetricsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.MetricsInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize metrics", zap.Error(err))
	}
	defer func() {
		_ = mp.Shutdown(context.Background())
	}()

	// Logs go to stdout and, when enabled, to the collector as well
	lp, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.LogsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
		MinLevel:          zapcore.InfoLevel,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize log export", zap.Error(err))
	}
	defer func() {
		_ = lp.Shutdown(context.Background())
	}()
	log = lp.Bridge(log)

	// Database with zap-backed GORM logging
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, logger.NewDatabaseLogger(log, &cfg.Database))
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	if err := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
		Enabled:         cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
		SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
	}, log).Register(db.DB); err != nil {
		log.Fatal("Failed to register database tracing", zap.Error(err))
	}

	if cfg.Database.AutoMigrate {
		if err := runMigrations(&cfg.Database, log); err != nil {
			log.Fatal("Failed to apply migrations", zap.Error(err))
		}
	}

	// Repositories. In outbox mode every commit also writes its event row.
	outboxMode := cfg.Events.Delivery == config.EventDeliveryOutbox
	serializer := event.NewDocumentEventSerializer()
	var repoOpts []persistence.DocumentRepositoryOption
	if outboxMode {
		repoOpts = append(repoOpts, persistence.WithEventOutbox(
			event.NewOutboxPublisher(serializer, event.WithMaxRetries(cfg.Events.MaxRetries))))
	}
	documentRepo := persistence.NewGormDocumentRepository(db.DB, repoOpts...)
	projectRepo := persistence.NewGormProjectRepository(db.DB)

	// Drafts: database by default, Redis or memory when configured
	drafts, redisClient, err := cache.NewDraftStoreFactory(cfg.Documents, cfg.Redis,
		cache.WithLogger(log),
		cache.WithDurableStore(persistence.NewGormDraftStore(db.DB)),
		cache.WithInMemoryFallback(cfg.App.Env != "production"),
	).CreateStore(ctx)
	if err != nil {
		log.Fatal("Failed to create draft store", zap.Error(err))
	}

	requireRedis := func(purpose string) *redis.Client {
		if redisClient == nil {
			redisClient, err = cache.NewRedisClient(ctx, cfg.Redis)
			if err != nil {
				log.Fatal("Redis required for "+purpose, zap.Error(err))
			}
		}
		return redisClient
	}

	// Number sequence
	var generator document.SequenceGenerator = persistence.NewGormSequenceGenerator(db.DB)
	if cfg.Documents.SequenceBackend == config.SequenceBackendRedis {
		generator = cache.NewRedisSequenceGenerator(requireRedis("the sequence backend"))
		log.Info("Using Redis sequence generator", zap.String("addr", cfg.Redis.Addr()))
	}
	defer func() {
		if redisClient == nil {
			return
		}
		if err := redisClient.Close(); err != nil {
			log.Error("Error closing Redis client", zap.Error(err))
		}
	}()

	// Artifacts
	blobs, err := storage.NewBlobStore(ctx, &cfg.Storage, log)
	if err != nil {
		log.Fatal("Failed to create blob store", zap.Error(err))
	}
	renderer, closeRenderer, err := newRenderer(cfg.Renderer, log)
	if err != nil {
		log.Fatal("Failed to create renderer", zap.Error(err))
	}
	defer closeRenderer()

	// Event bus with the project status projection
	bus := event.NewInMemoryEventBus(log)
	projector := docapp.NewStatusProjector(documentRepo, projectRepo, log)
	docMetrics, err := telemetry.NewDocumentMetrics(mp.Meter(telemetry.DocumentMeterName))
	if err != nil {
		log.Fatal("Failed to create document metrics", zap.Error(err))
	}
	var publisher shared.EventPublisher = bus
	var processor *event.OutboxProcessor
	if outboxMode {
		var store shared.IdempotencyStore
		if cfg.Events.IdempotencyBackend == config.IdempotencyBackendRedis {
			store = cache.NewRedisIdempotencyStore(requireRedis("the idempotency store"))
		} else {
			store = cache.NewInMemoryIdempotencyStore(5 * time.Minute)
		}
		defer func() {
			_ = store.Close()
		}()
		handled, err := telemetry.NewCounter(mp.Meter(telemetry.DocumentMeterName),
			"events.handled", "Outbox event deliveries by handler and outcome", "{event}")
		if err != nil {
			log.Fatal("Failed to create delivery counter", zap.Error(err))
		}
		counts := event.NewDeliveryCounts(handled)
		idempotency := shared.IdempotencyConfig{TTL: cfg.Events.IdempotencyTTL, Enabled: true}
		bus.Subscribe(event.NewIdempotentHandler(projector, store, log,
			event.WithIdempotencyScope("status_projector"),
			event.WithIdempotencyConfig(idempotency),
			event.WithDeliveryCounts(counts),
		))
		bus.Subscribe(event.NewIdempotentHandler(docMetrics, store, log,
			event.WithIdempotencyScope("document_metrics"),
			event.WithIdempotencyConfig(idempotency),
			event.WithDeliveryCounts(counts),
		))

		outboxRepo := event.NewGormOutboxRepository(db.DB)
		if _, err := telemetry.RegisterOutboxBacklog(mp.Meter(telemetry.DocumentMeterName), outboxRepo); err != nil {
			log.Fatal("Failed to register outbox gauge", zap.Error(err))
		}
		processor = event.NewOutboxProcessor(outboxRepo, bus.Strict(), serializer,
			event.OutboxProcessorConfig{
				BatchSize:        cfg.Events.BatchSize,
				PollInterval:     cfg.Events.PollInterval,
				CleanupEnabled:   true,
				CleanupRetention: cfg.Events.CleanupRetention,
			}, log)
		// the controller must not publish a second copy
		publisher = nil
	} else {
		bus.Subscribe(projector, projector.EventTypes()...)
		bus.Subscribe(docMetrics, docMetrics.EventTypes()...)
	}
	if err := bus.Start(ctx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	if processor != nil {
		if err := processor.Start(ctx); err != nil {
			log.Fatal("Failed to start outbox processor", zap.Error(err))
		}
	}

	svc := docapp.NewService(&docapp.Dependencies{
		Repository:    documentRepo,
		Drafts:        drafts,
		Renderer:      renderer,
		Blobs:         blobs,
		Sequence:      docapp.NewSequenceAdapter(generator, log),
		Inheritance:   docapp.NewInheritanceResolver(documentRepo),
		Projects:      projectRepo,
		Publisher:     publisher,
		Scheduler:     docapp.RealScheduler{},
		AutosaveDelay: cfg.Documents.AutosaveDelay,
		VATRate:       decimal.RequireFromString(cfg.Documents.VATRate),
		Logger:        log,
	}, projector)
	evictCtx, stopEviction := context.WithCancel(ctx)
	go svc.RunEviction(evictCtx, cfg.Documents.SessionIdleTimeout)

	// HTTP
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		log.Fatal("Invalid trusted proxies", zap.Error(err))
	}

	var httpMeter metric.Meter
	if mp.IsEnabled() {
		httpMeter = mp.Meter(middleware.HTTPMeterName)
	}

	// Order matters: the request ID feeds the logger and the span attributes,
	// and SpanErrorMarker must run inside the otelgin span.
	engine.Use(
		middleware.RequestID(),
		logger.AccessLog(log, logger.WithQuietPaths("/health"), logger.WithSlowRequestThreshold(2*time.Second)),
		logger.Recovery(log),
		middleware.TracingWithConfig(middleware.TracingConfig{
			ServiceName: cfg.Telemetry.ServiceName,
			Enabled:     tp.IsEnabled(),
		}),
		middleware.TracingAttributeInjector(),
		middleware.SpanErrorMarker(),
		middleware.HTTPMetrics(httpMeter),
		middleware.Profiling(middleware.ProfilingConfig{
			Enabled:          profiler.IsEnabled(),
			SkipPaths:        []string{"/health"},
			SkipPathPrefixes: []string{"/swagger"},
		}),
		middleware.CORSWithConfig(middleware.CORSConfigFromHTTP(cfg.HTTP)),
		middleware.Secure(),
		middleware.BodyLimit(cfg.HTTP.MaxBodySize),
		middleware.Timeout(cfg.HTTP.WriteTimeout),
	)

	systemHandler := handler.NewSystemHandler(cfg.App.Name, version).
		AddCheck("database", db.Ping)
	if redisClient != nil {
		systemHandler.AddCheck("redis", redisCheck(redisClient))
	}
	engine.GET("/health", systemHandler.Health)
	engine.GET("/swagger/*any",
		middleware.SwaggerProtection(middleware.SwaggerConfig{
			Enabled:    cfg.HTTP.SwaggerEnabled,
			AllowedIPs: cfg.HTTP.SwaggerAllowedIPs,
		}),
		ginSwagger.WrapHandler(swaggerFiles.Handler),
	)

	r := router.NewRouter(engine, router.WithLogger(log))
	r.Register(handler.DocumentRoutes(handler.NewDocumentHandler(svc))).
		Register(handler.SystemRoutes(systemHandler))
	if outboxMode {
		outboxService := eventapp.NewOutboxService(event.NewGormOutboxRepository(db.DB), log)
		r.Register(handler.OutboxRoutes(handler.NewOutboxHandler(outboxService)))
	}
	if reader, ok := blobs.(storage.ArtifactReader); ok && cfg.Storage.Backend != config.StorageBackendS3 {
		r.Register(handler.FileRoutes(handler.NewFileHandler(reader)))
	}
	r.Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	// Sessions are torn down before the stores close; autosaves still pending are dropped
	stopEviction()
	svc.Shutdown()
	if processor != nil {
		if err := processor.Stop(shutdownCtx); err != nil {
			log.Error("Error stopping outbox processor", zap.Error(err))
		}
	}
	if err := bus.Stop(shutdownCtx); err != nil {
		log.Error("Error stopping event bus", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// runMigrations applies the embedded SQL migrations over a dedicated connection,
// since closing the migrator closes its *sql.DB
func runMigrations(cfg *config.DatabaseConfig, log *zap.Logger) error {
	sqlDB, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return err
	}
	m, err := migration.NewFromFS(sqlDB, migrations.FS, log)
	if err != nil {
		_ = sqlDB.Close()
		return err
	}
	defer func() {
		_ = m.Close()
	}()
	return m.Up()
}

// newRenderer builds the document renderer for the configured engine.
// The returned func releases the browser allocator.
func newRenderer(cfg config.RendererConfig, log *zap.Logger) (document.Renderer, func(), error) {
	paper, _ := printing.ParsePaperSize(cfg.PaperSize)
	opts := []printing.DocumentRendererOption{
		printing.WithPaperSize(paper),
		printing.WithRendererLogger(log),
	}

	if cfg.Engine == config.RendererEngineHTML {
		log.Warn("Renderer engine is html, artifacts are stored as HTML pages")
		r, err := printing.NewDocumentRenderer(nil, opts...)
		return r, func() {}, err
	}

	pdf, err := printing.NewChromedpRenderer(printing.ChromedpConfigFromApp(cfg, log))
	if err != nil {
		return nil, nil, err
	}
	r, err := printing.NewDocumentRenderer(pdf, opts...)
	if err != nil {
		_ = pdf.Close()
		return nil, nil, err
	}
	return r, func() {
		if err := pdf.Close(); err != nil {
			log.Error("Error closing PDF renderer", zap.Error(err))
		}
	}, nil
}

func redisCheck(client *redis.Client) handler.HealthCheck {
	return func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}
}
