package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/wealthdesk/exchange-gateway/internal/audit"
	"github.com/wealthdesk/exchange-gateway/internal/auth"
	"github.com/wealthdesk/exchange-gateway/internal/batch"
	"github.com/wealthdesk/exchange-gateway/internal/cache"
	"github.com/wealthdesk/exchange-gateway/internal/config"
	"github.com/wealthdesk/exchange-gateway/internal/credentials"
	"github.com/wealthdesk/exchange-gateway/internal/database"
	"github.com/wealthdesk/exchange-gateway/internal/lock"
	"github.com/wealthdesk/exchange-gateway/internal/mandates"
	"github.com/wealthdesk/exchange-gateway/internal/metrics"
	"github.com/wealthdesk/exchange-gateway/internal/orders"
	"github.com/wealthdesk/exchange-gateway/internal/partner"
	"github.com/wealthdesk/exchange-gateway/internal/partner/exchangea"
	"github.com/wealthdesk/exchange-gateway/internal/partner/exchangeb"
	"github.com/wealthdesk/exchange-gateway/internal/payments"
	"github.com/wealthdesk/exchange-gateway/internal/poller"
	"github.com/wealthdesk/exchange-gateway/internal/queue"
	"github.com/wealthdesk/exchange-gateway/internal/types"
	"github.com/wealthdesk/exchange-gateway/internal/vault"
	"github.com/wealthdesk/exchange-gateway/pkg/middleware"
)

// init configures the application logging based on environment settings
// In development mode, it enables pretty printing with timestamps
// Debug logging can be enabled via DEBUG environment variable
func init() {
	// Configure pretty logging for development
	if os.Getenv("ENV") != "production" {
		output := zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
		zlog.Logger = zerolog.New(output).With().Timestamp().Logger()
	}

	// Set global log level
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if os.Getenv("DEBUG") == "true" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

// main initializes and runs the gateway with graceful shutdown support.
// It wires the database, Redis, partner transports, the submission worker
// pool, the reconciliation pollers and all API routes.
func main() {
	cfg := config.Load()
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize database
	db, err := database.NewDatabase(cfg.DatabasePath)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to initialize database")
	}

	// Background workers share one lifecycle context.
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	// Redis backs the submission queue, the response cache and the poller
	// locks. Without it the gateway still runs single-instance: in-memory
	// queue, no cache, process-local locks.
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	var (
		submitQueue queue.Queue
		invalidator *cache.Invalidator
		lockStore   lock.Store
	)
	pingCtx, pingCancel := context.WithTimeout(workerCtx, 2*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		zlog.Warn().Err(err).Msg("Redis unreachable, falling back to in-memory queue and locks")
		submitQueue = queue.NewMemory(1024)
		invalidator = cache.NewInvalidator(nil)
		lockStore = lock.NewMemoryStore()
	} else {
		submitQueue = queue.NewRedis(redisClient, "submissions")
		invalidator = cache.NewInvalidator(redisClient)
		lockStore = lock.NewRedisStore(redisClient)
	}
	pingCancel()

	// Metrics and audit trail
	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	auditWriter := audit.NewWriter(db, 256)
	go auditWriter.Start(workerCtx)

	// Credential vault
	v, err := vault.New(cfg.VaultKey)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to initialize credential vault")
	}

	// Partner clients, one resilient transport per exchange
	transportA := partner.NewTransport(string(types.ExchangeA), partner.TransportConfig{
		BaseURL:  cfg.ExchangeABaseURL,
		Timeout:  cfg.CallTimeout,
		Breaker:  partner.BreakerConfig{ResetTimeout: cfg.BreakerResetTimeout},
		Audit:    auditWriter,
		Observer: m,
	})
	transportB := partner.NewTransport(string(types.ExchangeB), partner.TransportConfig{
		BaseURL:  cfg.ExchangeBBaseURL,
		Timeout:  cfg.CallTimeout,
		Breaker:  partner.BreakerConfig{ResetTimeout: cfg.BreakerResetTimeout},
		Audit:    auditWriter,
		Observer: m,
	})
	clients := map[types.Exchange]partner.Client{
		types.ExchangeA: exchangea.NewClient(transportA),
		types.ExchangeB: exchangeb.NewClient(transportB),
	}

	// Services and handlers
	authService := auth.NewService(cfg.JWTSecret)
	authHandlers := auth.NewGinHandlers(authService)
	if cfg.Env != "production" {
		authService.RegisterAPICredentials(auth.TestAPIKey, auth.TestAPISecret)
	}

	credentialsService := credentials.NewService(db, v, clients)
	credentialsHandlers := credentials.NewGinHandlers(credentialsService)

	ordersService := orders.NewService(db, submitQueue, credentialsService, clients, invalidator)
	ordersHandlers := orders.NewGinHandlers(ordersService)

	mandatesService := mandates.NewService(db, submitQueue, credentialsService, clients, invalidator)
	mandatesHandlers := mandates.NewGinHandlers(mandatesService)

	paymentsService := payments.NewService(db, ordersService.Database(), credentialsService, clients)
	paymentsHandlers := payments.NewGinHandlers(paymentsService)

	// Submission worker pool
	orderProcessor := orders.NewProcessor(ordersService)
	mandateProcessor := mandates.NewProcessor(mandatesService)

	instrument := func(kind string, h queue.Handler) queue.Handler {
		return func(ctx context.Context, job queue.Job) error {
			err := h(ctx, job)
			if err != nil {
				m.ObserveQueueJob(kind, "retried")
			} else {
				m.ObserveQueueJob(kind, "processed")
			}
			return err
		}
	}
	pool := queue.NewPool(submitQueue, map[string]queue.Handler{
		queue.KindOrderSubmit:   instrument(queue.KindOrderSubmit, orderProcessor.Handle),
		queue.KindMandateSubmit: instrument(queue.KindMandateSubmit, mandateProcessor.Handle),
	}, queue.PoolConfig{
		Concurrency: cfg.WorkerConcurrency,
		MaxAttempts: cfg.QueueMaxAttempts,
		OnExhausted: func(ctx context.Context, job queue.Job, err error) {
			m.ObserveQueueJob(job.Kind, "exhausted")
			switch job.Kind {
			case queue.KindOrderSubmit:
				orderProcessor.HandleExhausted(ctx, job, err)
			case queue.KindMandateSubmit:
				mandateProcessor.HandleExhausted(ctx, job, err)
			}
		},
	})
	pool.Start(workerCtx)

	// Reconciliation pollers, one pair per exchange
	locks := lock.NewCoordinator(lockStore)
	tracker := batch.NewTracker(db)
	jobRegistry := batch.NewRegistry()

	for exchange, client := range clients {
		orderPoller := poller.NewOrderPoller(poller.OrderPollerConfig{
			Exchange:    exchange,
			DB:          ordersService.Database(),
			Credentials: credentialsService,
			Client:      client,
			Locks:       locks,
			Tracker:     tracker,
			Cache:       invalidator,
			Metrics:     m,
			Interval:    cfg.PollInterval,
			BatchSize:   cfg.PollBatchSize,
			LockTTL:     cfg.LockTTL,
		})
		mandatePoller := poller.NewMandatePoller(poller.MandatePollerConfig{
			Exchange:    exchange,
			Service:     mandatesService,
			Credentials: credentialsService,
			Client:      client,
			Locks:       locks,
			Tracker:     tracker,
			Metrics:     m,
			Interval:    cfg.PollInterval,
			BatchSize:   cfg.PollBatchSize,
			LockTTL:     cfg.LockTTL,
		})
		go orderPoller.Run(workerCtx)
		go mandatePoller.Run(workerCtx)

		jobRegistry.Register(batch.JobDef{
			ID:       orderPoller.Name(),
			Name:     "Order status reconciliation (" + string(exchange) + ")",
			Schedule: cfg.PollInterval.String(),
			Manual:   true,
			Run:      orderPoller.Tick,
		})
		jobRegistry.Register(batch.JobDef{
			ID:       mandatePoller.Name(),
			Name:     "Mandate status reconciliation (" + string(exchange) + ")",
			Schedule: cfg.PollInterval.String(),
			Manual:   true,
			Run:      mandatePoller.Tick,
		})
	}
	batchHandlers := batch.NewGinHandlers(jobRegistry, tracker)

	// Initialize router
	router := gin.Default()
	router.GET("/healthz", func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.Ping()
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "database": err.Error()})
			return
		}
		redisStatus := "ok"
		if err := redisClient.Ping(c.Request.Context()).Err(); err != nil {
			redisStatus = "unavailable"
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "redis": redisStatus})
	})
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	setupRoutes(router, cfg.JWTSecret, authHandlers, ordersHandlers, paymentsHandlers, mandatesHandlers, credentialsHandlers, batchHandlers)

	// Create server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Graceful shutdown setup
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal().Err(err).Msg("listen")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zlog.Info().Msg("Shutting down server...")

	// Stop accepting requests, then drain workers and the audit trail.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	workerCancel()
	pool.Wait()
	auditWriter.Wait()

	zlog.Info().Msg("Server exiting")
}

// setupRoutes configures all API endpoints and their handlers
// It groups routes by functionality and applies appropriate middleware:
// - Auth routes: Public endpoints for authentication
// - Everything else: Protected by JWT authentication and rate limiting
func setupRoutes(
	router *gin.Engine,
	jwtSecret string,
	authHandlers *auth.GinHandlers,
	ordersHandlers *orders.GinHandlers,
	paymentsHandlers *payments.GinHandlers,
	mandatesHandlers *mandates.GinHandlers,
	credentialsHandlers *credentials.GinHandlers,
	batchHandlers *batch.GinHandlers,
) {
	v1 := router.Group("/api/v1")
	{
		// Auth routes
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/token", authHandlers.GenerateTokenHandler())
		}

		protected := v1.Group("")
		protected.Use(middleware.JWTAuth(jwtSecret), middleware.RateLimit())

		// Order routes
		ordersGroup := protected.Group("/orders")
		{
			ordersGroup.POST("/purchase", ordersHandlers.PlaceHandler(types.OrderPurchase))
			ordersGroup.POST("/redemption", ordersHandlers.PlaceHandler(types.OrderRedemption))
			ordersGroup.POST("/switch", ordersHandlers.PlaceHandler(types.OrderSwitch))
			ordersGroup.POST("/systematic", ordersHandlers.PlaceSystematicHandler())
			ordersGroup.GET("", ordersHandlers.ListHandler())
			ordersGroup.GET("/:order_id", ordersHandlers.GetHandler())
			ordersGroup.POST("/:order_id/cancel", ordersHandlers.CancelHandler())
			ordersGroup.POST("/:order_id/payment", paymentsHandlers.InitiateHandler())
			ordersGroup.GET("/:order_id/payment", paymentsHandlers.StatusHandler())
		}

		// Mandate routes
		mandatesGroup := protected.Group("/mandates")
		{
			mandatesGroup.POST("", mandatesHandlers.RegisterHandler())
			mandatesGroup.GET("", mandatesHandlers.ListHandler())
			mandatesGroup.GET("/:mandate_id", mandatesHandlers.GetHandler())
			mandatesGroup.POST("/:mandate_id/refresh", mandatesHandlers.RefreshHandler())
			mandatesGroup.POST("/:mandate_id/cancel", mandatesHandlers.CancelHandler())
		}

		// Credential routes
		credentialsGroup := protected.Group("/credentials")
		{
			credentialsGroup.PUT("/:exchange", credentialsHandlers.SetHandler())
			credentialsGroup.GET("/:exchange", credentialsHandlers.StatusHandler())
			credentialsGroup.POST("/:exchange/test", credentialsHandlers.TestHandler())
		}

		// Operations routes
		batchGroup := protected.Group("/batch")
		{
			batchGroup.GET("/jobs", batchHandlers.ListHandler())
			batchGroup.GET("/jobs/:job_id/runs", batchHandlers.RunsHandler())
			batchGroup.POST("/jobs/:job_id/trigger", batchHandlers.TriggerHandler())
		}
	}
}
