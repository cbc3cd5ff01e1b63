package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	awspkg "github.com/aredondocharro/ClothingStore-sub001/pkg/aws"
	ddb "github.com/aredondocharro/ClothingStore-sub001/pkg/dynamodb"
	"github.com/aredondocharro/ClothingStore-sub001/services/common/auth"
	apperrors "github.com/aredondocharro/ClothingStore-sub001/services/common/errors"
	"github.com/aredondocharro/ClothingStore-sub001/services/common/logger"
	"github.com/aredondocharro/ClothingStore-sub001/services/common/middleware"
	"github.com/aredondocharro/ClothingStore-sub001/services/inventory-service/cache"
	"github.com/aredondocharro/ClothingStore-sub001/services/inventory-service/consumer"
	"github.com/aredondocharro/ClothingStore-sub001/services/inventory-service/controllers"
	"github.com/aredondocharro/ClothingStore-sub001/services/inventory-service/database"
	"github.com/aredondocharro/ClothingStore-sub001/services/inventory-service/observability"
	"github.com/aredondocharro/ClothingStore-sub001/services/inventory-service/publisher"
	"github.com/aredondocharro/ClothingStore-sub001/services/inventory-service/repository"
	"github.com/aredondocharro/ClothingStore-sub001/services/inventory-service/routes"
	"github.com/aredondocharro/ClothingStore-sub001/services/inventory-service/services"
)

const (
	serviceName    = "inventory-service"
	serviceVersion = "1.0.0"
	requestTimeout = 30 * time.Second
)

func main() {
	cfg, err := LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config load failed: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var awsCfg sdkaws.Config
	if cfg.NeedsAWS() {
		if awsCfg, err = awspkg.LoadAWSConfig(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load AWS config: %v\n", err)
			os.Exit(1)
		}
	}

	// --- Observability ---
	otelSettings := observability.Settings{
		ServiceName:    serviceName,
		ServiceVersion: serviceVersion,
		Endpoint:       cfg.OtelEndpoint,
		AuthHeader:     cfg.OtelAuthHeader,
		Insecure:       cfg.OtelInsecure,
	}
	logShutdown, err := observability.SetupLoggingSDK(ctx, otelSettings)
	if err != nil {
		fmt.Fprintf(os.Stderr, "OpenTelemetry logging setup failed: %v\n", err)
		os.Exit(1)
	}
	_, traceShutdown, err := observability.SetupTracingSDK(ctx, otelSettings)
	if err != nil {
		fmt.Fprintf(os.Stderr, "OpenTelemetry tracing setup failed: %v\n", err)
		os.Exit(1)
	}

	var logOpts []logger.Option
	if cfg.OtelEndpoint != "" {
		logOpts = append(logOpts, logger.WithCore(observability.NewOTelCore(serviceName)))
	}
	var cwErr error
	if cfg.CloudWatchEnabled {
		cwLogs, err := awspkg.NewCloudWatchLogsClient(ctx, awsCfg, os.Getenv("CLOUDWATCH_LOG_GROUP"), serviceName, true)
		if err != nil {
			cwErr = err
		} else {
			logOpts = append(logOpts, logger.WithWriter(cwLogs))
		}
	}
	log := logger.Initialize(cfg.Env, logOpts...).With(zap.String("service", serviceName))
	defer func() { _ = log.Sync() }()
	if cwErr != nil {
		log.Warn("CloudWatch logs client init failed (non-fatal)", zap.Error(cwErr))
	}

	// --- Storage ---
	store, closeStore, err := buildStore(ctx, cfg, awsCfg, log)
	if err != nil {
		log.Fatal("Storage init failed", zap.String("driver", cfg.StorageDriver), zap.Error(err))
	}
	defer closeStore()

	// --- Event sinks ---
	sink, closeSinks, err := buildSinks(ctx, cfg, awsCfg, otel.GetTracerProvider(), log)
	if err != nil {
		log.Fatal("Event sink init failed", zap.Error(err))
	}
	defer closeSinks()

	// --- Item cache ---
	var itemCache cache.ItemCache = cache.NoopItemCache{}
	if cfg.RedisAddr != "" {
		rdb, err := cache.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			log.Warn("Redis unavailable, item cache disabled", zap.Error(err))
		} else {
			defer rdb.Close()
			itemCache = cache.NewRedisItemCache(rdb, cfg.ItemCacheTTL)
		}
	}

	metricsClient := awspkg.NewMetricsClient(awsCfg, "ClothingStore/Inventory", cfg.MetricsEnabled)

	deps := services.Dependencies{
		Store:   store,
		Sink:    sink,
		Cache:   itemCache,
		Metrics: metricsClient,
		Logger:  log,
	}
	itemService := services.NewItemService(deps)
	reservationService := services.NewReservationService(deps)

	// --- Inbound order events ---
	if cfg.OrderEventsQueueURL != "" {
		poller := awspkg.NewSQSClient(awsCfg, cfg.OrderEventsQueueURL, log)
		go consumer.NewOrderEventsConsumer(poller, reservationService, log).Start(ctx)
	}

	// --- HTTP ---
	ctrl := controllers.NewInventoryController(itemService, reservationService)
	r := newRouter(ctx, cfg, log, metricsClient)
	routes.RegisterRoutes(r, ctrl, auth.NewTokenValidator(cfg.JWTSecret))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("Inventory Service starting", zap.String("port", cfg.Port), zap.String("storage", cfg.StorageDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()

	log.Info("Shutting down Inventory Service...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := observability.Shutdown(shutdownCtx, traceShutdown, logShutdown); err != nil {
		log.Warn("OpenTelemetry shutdown failed", zap.Error(err))
	}
	log.Info("Inventory Service stopped gracefully")
}

// newRouter builds the engine with the shared middleware chain. Routes are
// registered by the caller.
func newRouter(ctx context.Context, cfg *Config, log *zap.Logger, metrics middleware.HTTPMetrics) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.RequestID())
	r.Use(middleware.RequestLogger(log))
	r.Use(middleware.MetricsMiddleware(metrics, serviceName))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))
	r.Use(middleware.RateLimitMiddleware(ctx, cfg.RateLimitPerMinute, 0))
	r.Use(func(c *gin.Context) {
		tctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()
		c.Request = c.Request.WithContext(tctx)
		c.Next()
	})
	r.Use(apperrors.ErrorMiddleware())
	return r
}

func buildStore(ctx context.Context, cfg *Config, awsCfg sdkaws.Config, log *zap.Logger) (repository.UnitOfWork, func(), error) {
	switch cfg.StorageDriver {
	case StorageMemory:
		log.Warn("Using in-memory storage, data is lost on restart")
		return repository.NewMemoryStore(), func() {}, nil

	case StorageDynamoDB:
		client := ddb.NewClientFromConfig(awsCfg, cfg.DDBEndpoint)
		if cfg.DDBEndpoint != "" {
			if err := ddb.CreateTableIfNotExists(ctx, client, cfg.DDBTable, time.Minute); err != nil {
				return nil, nil, err
			}
		}
		return repository.NewDynamoStore(client, cfg.DDBTable), func() {}, nil

	default:
		db, err := database.ConnectPostgres(ctx, log, cfg.Postgres)
		if err != nil {
			return nil, nil, err
		}
		if err := repository.Migrate(db); err != nil {
			_ = database.Close(db)
			return nil, nil, fmt.Errorf("migrate: %w", err)
		}
		return repository.NewGormStore(db), func() {
			if err := database.Close(db); err != nil {
				log.Warn("Closing PostgreSQL failed", zap.Error(err))
			}
		}, nil
	}
}

func buildSinks(ctx context.Context, cfg *Config, awsCfg sdkaws.Config, tp trace.TracerProvider, log *zap.Logger) (publisher.Sink, func(), error) {
	var sinks publisher.FanOut
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	for _, name := range cfg.EventSinks {
		switch name {
		case SinkLog:
			sinks = append(sinks, publisher.NewLogSink(log))
		case SinkSNS:
			sinks = append(sinks, publisher.NewSNSSink(awspkg.NewSNSClient(awsCfg), cfg.SNSTopicArn))
		case SinkSQS:
			sinks = append(sinks, publisher.NewSQSSink(awspkg.NewSQSClient(awsCfg, cfg.EventsQueueURL, log)))
		case SinkKafka:
			writer, err := publisher.NewTracedKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic, serviceName, tp)
			if err != nil {
				closeAll()
				return nil, nil, fmt.Errorf("kafka writer: %w", err)
			}
			kafkaSink := publisher.NewKafkaSink(writer)
			sinks = append(sinks, kafkaSink)
			closers = append(closers, func() { _ = kafkaSink.Close() })
		case SinkMongo:
			client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
			if err != nil {
				closeAll()
				return nil, nil, fmt.Errorf("mongo connect: %w", err)
			}
			closers = append(closers, func() { _ = client.Disconnect(context.Background()) })
			coll := client.Database(cfg.MongoDatabase).Collection(publisher.AuditCollection)
			if err := publisher.EnsureAuditIndexes(ctx, coll); err != nil {
				log.Warn("Audit index creation failed", zap.Error(err))
			}
			sinks = append(sinks, publisher.NewMongoSink(coll))
		}
	}
	log.Info("Event sinks configured", zap.Strings("sinks", cfg.EventSinks))
	return sinks, closeAll, nil
}
