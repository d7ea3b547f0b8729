package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fekuna/omnipos-ledger-service/config"
	"github.com/fekuna/omnipos-ledger-service/internal/auth"
	"github.com/fekuna/omnipos-ledger-service/internal/metrics"
	"github.com/fekuna/omnipos-ledger-service/internal/middleware"
	"github.com/fekuna/omnipos-ledger-service/internal/txmanager"
	"github.com/fekuna/omnipos-ledger-service/pkg/broker"
	"github.com/fekuna/omnipos-ledger-service/pkg/cache"
	"github.com/fekuna/omnipos-ledger-service/pkg/database/postgres"
	"github.com/fekuna/omnipos-ledger-service/pkg/logger"
	"github.com/fekuna/omnipos-ledger-service/pkg/tracing"

	cancelH "github.com/fekuna/omnipos-ledger-service/internal/cancellation/handler"
	cancelRepoPkg "github.com/fekuna/omnipos-ledger-service/internal/cancellation/repository"
	cancelUCPkg "github.com/fekuna/omnipos-ledger-service/internal/cancellation/usecase"

	orderRepoPkg "github.com/fekuna/omnipos-ledger-service/internal/order/repository"

	promoRepoPkg "github.com/fekuna/omnipos-ledger-service/internal/promotion/repository"
	promoUCPkg "github.com/fekuna/omnipos-ledger-service/internal/promotion/usecase"

	rewardH "github.com/fekuna/omnipos-ledger-service/internal/reward/handler"
	rewardRepoPkg "github.com/fekuna/omnipos-ledger-service/internal/reward/repository"
	rewardUCPkg "github.com/fekuna/omnipos-ledger-service/internal/reward/usecase"

	stockH "github.com/fekuna/omnipos-ledger-service/internal/stock/handler"
	stockListenerPkg "github.com/fekuna/omnipos-ledger-service/internal/stock/listener"
	stockRepoPkg "github.com/fekuna/omnipos-ledger-service/internal/stock/repository"
	stockUCPkg "github.com/fekuna/omnipos-ledger-service/internal/stock/usecase"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	// 1. Load Configuration
	_ = godotenv.Load()
	cfg := config.LoadEnv()

	// 2. Initialize Logger
	logConfig := &logger.ZapLoggerConfig{
		IsDevelopment:     false,
		Encoding:          "json",
		Level:             cfg.Logger.Level,
		DisableCaller:     cfg.Logger.DisableCaller,
		DisableStacktrace: cfg.Logger.DisableStacktrace,
	}
	if cfg.Server.AppEnv == "development" || cfg.Server.AppEnv == "dev" {
		logConfig.IsDevelopment = true
		logConfig.Encoding = cfg.Logger.Encoding
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	appLogger := logger.NewZapLogger(logConfig)
	defer appLogger.Sync()

	// 3. Initialize Tracing
	shutdownTracing, err := tracing.Init(context.Background(), &tracing.Config{
		Enabled:      cfg.Tracing.Enabled,
		OTLPEndpoint: cfg.Tracing.OTLPEndpoint,
		ServiceName:  cfg.Tracing.ServiceName,
	})
	if err != nil {
		appLogger.Fatal("Could not initialize tracing", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(ctx)
	}()

	// 4. Connect to Database
	db, err := postgres.NewPostgres(&postgres.Config{
		Host:            cfg.Postgres.Host,
		Port:            cfg.Postgres.Port,
		User:            cfg.Postgres.User,
		Password:        cfg.Postgres.Password,
		DBName:          cfg.Postgres.DBName,
		SSLMode:         cfg.Postgres.SSLMode,
		MaxOpenConns:    cfg.Postgres.MaxOpenConns,
		MaxIdleConns:    cfg.Postgres.MaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.Postgres.ConnMaxLifetime) * time.Second,
		ConnMaxIdleTime: time.Duration(cfg.Postgres.ConnMaxIdleTime) * time.Second,
	})
	if err != nil {
		appLogger.Fatal("Could not connect to database", zap.Error(err))
	}
	defer db.Close()
	appLogger.Info("Connected to PostgreSQL database", zap.String("db_name", cfg.Postgres.DBName))

	// 5. Initialize Redis
	redisClient, err := cache.NewRedisClient(&cache.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		appLogger.Warn("Could not connect to Redis (idempotency and event dedupe disabled)", zap.Error(err))
	} else {
		defer redisClient.Close()
		appLogger.Info("Connected to Redis", zap.String("addr", cfg.Redis.Addr))
	}

	// 6. Initialize Metrics and Transactions
	appMetrics := metrics.New(metrics.DefaultConfig())
	txRunner := txmanager.New(db)

	// 7. Initialize Repositories
	stockRepo := stockRepoPkg.NewPGRepository(db)
	orderRepo := orderRepoPkg.NewPGRepository(db)
	rewardRepo := rewardRepoPkg.NewPGRepository(db)
	promoRepo := promoRepoPkg.NewPGRepository(db)
	cancelRepo := cancelRepoPkg.NewPGRepository(db)

	// 8. Initialize UseCases
	stockUC := stockUCPkg.NewStockUseCase(stockRepo, txRunner, appMetrics, appLogger)
	rewardUC := rewardUCPkg.NewRewardUseCase(rewardRepo, appLogger)
	promoUC := promoUCPkg.NewPromotionUseCase(promoRepo, appLogger)
	cancelUC := cancelUCPkg.NewCancellationUseCase(cancelUCPkg.Deps{
		Repo:       cancelRepo,
		Orders:     orderRepo,
		Stock:      stockUC,
		Rewards:    rewardUC,
		Promotions: promoUC,
		Tx:         txRunner,
		Metrics:    appMetrics,
		Logger:     appLogger,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 9. Initialize Kafka Listener
	if cfg.Kafka.Enabled {
		kafkaConsumer := broker.NewConsumer(&broker.Config{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.Topic,
			GroupID: cfg.Kafka.GroupID,
		})
		defer kafkaConsumer.Close()
		appLogger.Info("Connected to Kafka Consumer", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))

		var dedupe stockListenerPkg.Deduper
		if redisClient != nil {
			dedupe = redisClient
		}
		salesListener := stockListenerPkg.NewSalesListener(kafkaConsumer, dedupe, stockUC, appLogger)
		go salesListener.Start(ctx)
	}

	// 10. Initialize Handlers
	stockHandler := stockH.NewStockHandler(stockUC, appLogger)
	rewardHandler := rewardH.NewRewardHandler(rewardUC, appLogger)
	cancelHandler := cancelH.NewCancellationHandler(cancelUC, appLogger)

	// 11. Build Router
	router := gin.New()
	router.Use(
		middleware.RequestID(),
		middleware.Recovery(appLogger),
		middleware.RequestLogger(appLogger),
		middleware.Tracing(cfg.Tracing.ServiceName),
		appMetrics.Middleware(),
		auth.Middleware(),
	)

	router.GET("/health", func(c *gin.Context) {
		pingCtx, pingCancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer pingCancel()
		if err := db.PingContext(pingCtx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "database": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})
	router.GET("/metrics", gin.WrapH(appMetrics.Handler()))

	api := router.Group("/api/v1")
	if cfg.Idempotency.Enabled && redisClient != nil {
		idemCfg := middleware.DefaultIdempotencyConfig()
		idemCfg.Retention = cfg.Idempotency.TTL
		api.Use(middleware.Idempotency(redisClient, idemCfg, appLogger))
	}
	stockHandler.RegisterRoutes(api)
	rewardHandler.RegisterRoutes(api)
	cancelHandler.RegisterRoutes(api)

	// 12. Start HTTP Server
	port := cfg.Server.HTTPPort
	if !strings.HasPrefix(port, ":") {
		port = ":" + port
	}
	srv := &http.Server{
		Addr:         port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	appLogger.Info("Starting HTTP server", zap.String("port", port))

	// Graceful Shutdown
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Fatal("failed to serve", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Server forced to shutdown", zap.Error(err))
	}
	appLogger.Info("Server stopped")
}
