package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/spokehq/gearvault/internal/auth"
	"github.com/spokehq/gearvault/internal/background"
	"github.com/spokehq/gearvault/internal/config"
	"github.com/spokehq/gearvault/internal/handlers"
	"github.com/spokehq/gearvault/internal/limiter"
	middlewareCustom "github.com/spokehq/gearvault/internal/middleware"
	"github.com/spokehq/gearvault/internal/routes"
	"github.com/spokehq/gearvault/internal/services"
	"github.com/spokehq/gearvault/internal/store"
	"github.com/spokehq/gearvault/internal/strava"
	pkghttp "github.com/spokehq/gearvault/pkg/http"
	pkglogger "github.com/spokehq/gearvault/pkg/logger"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	// Outbound request budget shared by every data store call
	window := limiter.NewSlidingWindow(limiter.DefaultSlidingWindowConfig())
	wrapper := limiter.NewRequestWrapper(window, limiter.DefaultDoConfig(), logger)

	// Data store client and repositories
	storeClient := store.NewClient(store.Config{
		Endpoint:    cfg.Store.Endpoint,
		AdminSecret: cfg.Store.AdminSecret,
	}, wrapper, logger)
	userRepo := store.NewUserRepository(storeClient)
	codeRepo := store.NewBackupCodeRepository(storeClient)

	// Auth attempt limiter: Redis when configured, in-memory otherwise
	attemptConfig := limiter.AuthAttemptConfig{
		Window:          cfg.RateLimit.Window,
		MaxAttempts:     cfg.RateLimit.MaxAttempts,
		MaxEmailChecks:  cfg.RateLimit.MaxEmailChecks,
		CleanupInterval: cfg.RateLimit.SweepInterval,
	}

	var attemptLimiter limiter.AuthAttemptLimiter
	var sweepManager *background.SweepManager
	if cfg.Redis.Addr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			pingCancel()
			logger.Error("failed to connect to redis", slog.Any("error", err))
			os.Exit(1)
		}
		pingCancel()
		defer redisClient.Close()

		attemptLimiter = limiter.NewRedisAuthAttemptLimiter(redisClient, attemptConfig)
		logger.Info("using redis auth attempt limiter", slog.String("addr", cfg.Redis.Addr))
	} else {
		memLimiter := limiter.NewMemoryAuthAttemptLimiter(attemptConfig)
		attemptLimiter = memLimiter
		sweepManager = background.NewSweepManager(memLimiter, logger, cfg.RateLimit.SweepInterval)
		logger.Info("using in-memory auth attempt limiter")
	}

	// Token manager and TOTP manager
	tokenManager := auth.NewClaimsTokenManager(cfg.Auth.JWTSecret, cfg.Auth.SessionTokenExpiry)
	totpManager := auth.NewTOTPManager("GearVault")

	// Timing delay pads the rate-limit check responses
	timingDelay := auth.NewTimingDelay(auth.TimingConfig{
		BaseDelayMs:    50,
		RandomDelayMs:  150,
		DelayOnAllowed: true,
	})

	// Security notification emails
	var notifier services.SecurityNotifier
	if cfg.Email.Enabled {
		sesNotifier, err := services.NewAWSSESNotifier(cfg.Email.AWSRegion, cfg.Email.FromAddress, logger)
		if err != nil {
			logger.Error("failed to initialize email notifier", slog.Any("error", err))
			os.Exit(1)
		}
		notifier = sesNotifier
	} else {
		notifier = services.NewNoopNotifier(logger)
	}

	// Strava client
	stravaClient := strava.NewClient(strava.Config{
		ClientID:     cfg.Strava.ClientID,
		ClientSecret: cfg.Strava.ClientSecret,
	}, logger)

	// Services
	auditLogger := pkglogger.NewAuditLogger(logger)
	mfaService := services.NewMFAService(userRepo, codeRepo, totpManager, notifier, logger, services.MFAConfig{})
	sessionService := services.NewSessionService(userRepo, tokenManager, logger)
	stravaService := services.NewStravaService(userRepo, stravaClient, logger)

	// Handlers
	ipConfig := &pkghttp.IPConfig{TrustedProxies: cfg.Server.TrustedProxies}
	sessionHandler := handlers.NewSessionHandler(sessionService, cfg.Auth.InternalSecret, logger)
	rateLimitHandler := handlers.NewRateLimitHandler(attemptLimiter, timingDelay, ipConfig, cfg.Auth.InternalSecret, auditLogger, logger)
	mfaHandler := handlers.NewMFAHandler(mfaService, auditLogger, logger)
	stravaHandler := handlers.NewStravaHandler(stravaService, auditLogger, logger)

	// Setup CORS middleware
	corsConfig := middlewareCustom.DefaultCORSConfig()
	corsConfig.AllowedOrigins = cfg.Server.AllowedOrigins

	// Setup router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.CORS(corsConfig))
	router.Use(middlewareCustom.SecureLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	// Register routes
	routes.RegisterRoutes(router, tokenManager, sessionHandler, rateLimitHandler, mfaHandler, stravaHandler)

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start the limiter sweep task when running in-memory
	sweepCtx, sweepCancel := context.WithCancel(context.Background())
	defer sweepCancel()
	if sweepManager != nil {
		go sweepManager.Start(sweepCtx)
	}

	// Start server
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	sweepCancel()
	if sweepManager != nil {
		sweepManager.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}
