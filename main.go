// main.go - fitchallenge API server
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fitchallenge/config"
	"fitchallenge/database"
	"fitchallenge/handlers"
	"fitchallenge/middleware"
	"fitchallenge/realtime"
	"fitchallenge/services"
	"fitchallenge/storage"
	"fitchallenge/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	// Load environment variables
	cfg := config.Load()
	utils.InitLogger(cfg.LogLevel, !cfg.IsProduction())
	defer func() { _ = utils.Logger.Sync() }()

	// Validate critical environment variables
	validateEnvironment(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database
	db, err := database.InitDB(cfg)
	if err != nil {
		utils.Logger.Fatal("database init failed", zap.Error(err))
	}
	defer database.CloseDB()

	broker, err := newBroker(ctx, cfg)
	if err != nil {
		utils.Logger.Fatal("broker init failed", zap.Error(err))
	}
	defer broker.Close()

	blobs, err := storage.New(ctx, cfg)
	if err != nil {
		utils.Logger.Fatal("storage init failed", zap.Error(err))
	}

	tokens := middleware.NewJWTManager(cfg.JWTSecret, cfg.TokenTTL)
	verifier, err := newVerifier(ctx, cfg, tokens)
	if err != nil {
		utils.Logger.Fatal("identity init failed", zap.Error(err))
	}

	// Initialize handlers
	handlers.InitHandlers(handlers.Deps{
		DB:           db,
		Broker:       broker,
		Blobs:        blobs,
		Tokens:       tokens,
		TxMaxRetries: cfg.TxMaxRetries,
	})

	// Initialize cleanup service
	services.InitCleanupService(db, broker, cfg.ReconcileInterval).Start()
	defer func() {
		if cleanupService := services.GetCleanupService(); cleanupService != nil {
			cleanupService.Stop()
		}
	}()

	// Create Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler(cfg),
		BodyLimit:    storage.MaxImageBytes + 1024*1024,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${method} ${path} (${latency})\n",
	}))

	// CORS configuration
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
	}))

	// Apply rate limiting to all routes
	var authLimiter fiber.Handler
	if cfg.RateLimitEnabled {
		general := middleware.NewRateLimiter(cfg.RateLimitMax, cfg.RateLimitWindow)
		general.StartCleanup(ctx)
		app.Use(middleware.RateLimit(general, "Too many requests. Please try again later."))

		strict := middleware.NewRateLimiter(cfg.AuthRateLimitMax, cfg.AuthRateLimitWindow)
		strict.StartCleanup(ctx)
		authLimiter = middleware.RateLimit(strict, "Too many authentication attempts. Please try again later.")
	}

	// Serve uploaded images when stored on disk
	if local, ok := blobs.(*storage.LocalStorage); ok {
		app.Static("/uploads", local.BasePath())
	}

	handlers.SetupRoutes(app, handlers.RouteOptions{
		Verifier:    verifier,
		AdminToken:  cfg.AdminToken,
		AuthLimiter: authLimiter,
	})

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// Health check endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.UserContext())
		}
		if err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status":    "unhealthy",
				"timestamp": time.Now().Unix(),
			})
		}
		return c.JSON(fiber.Map{
			"status":    "healthy",
			"timestamp": time.Now().Unix(),
			"version":   "1.0.0",
		})
	})

	utils.Logger.Info("HTTP server starting",
		zap.String("port", cfg.Port),
		zap.String("environment", cfg.AppEnv),
		zap.String("storage", cfg.StorageDriver),
		zap.Bool("redis", cfg.RedisAddr != ""),
		zap.Bool("firebase", cfg.FirebaseProjectID != ""))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return app.Listen(":" + cfg.Port)
	})
	g.Go(func() error {
		<-gctx.Done()
		utils.Logger.Info("shutting down")
		return app.ShutdownWithTimeout(10 * time.Second)
	})
	if err := g.Wait(); err != nil {
		utils.Logger.Error("server stopped", zap.Error(err))
	}
}

// validateEnvironment checks for required environment variables
func validateEnvironment(cfg *config.Config) {
	if err := cfg.Validate(); err != nil {
		utils.Logger.Fatal("FATAL: invalid configuration", zap.Error(err))
	}

	if cfg.IsProduction() {
		// Additional production checks
		if cfg.CORSOrigins == "" || cfg.CORSOrigins == "http://localhost:8081" {
			utils.Logger.Warn("CORS_ORIGINS not properly configured for production")
		}
		if cfg.AdminToken == "" {
			utils.Logger.Warn("ADMIN_TOKEN not set, admin endpoints are disabled")
		}
	}
}

// newBroker shares change notifications through Redis when REDIS_ADDR is set
// and keeps them in process otherwise
func newBroker(ctx context.Context, cfg *config.Config) (realtime.Broker, error) {
	if cfg.RedisAddr == "" {
		return realtime.NewMemoryBroker(realtime.DefaultBufferSize), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.RedisAddr, err)
	}

	utils.Logger.Info("Redis broker connected", zap.String("addr", cfg.RedisAddr))
	return realtime.NewRedisBroker(client, "fitchallenge:"), nil
}

// newVerifier accepts local tokens, and Firebase ID tokens when a project is
// configured
func newVerifier(ctx context.Context, cfg *config.Config, tokens *middleware.JWTManager) (middleware.TokenVerifier, error) {
	if cfg.FirebaseProjectID == "" {
		return tokens, nil
	}

	fb, err := middleware.NewFirebaseVerifier(ctx, cfg.FirebaseProjectID, cfg.FirebaseCredentialsFile)
	if err != nil {
		return nil, err
	}
	return middleware.MultiVerifier{fb, tokens}, nil
}

func customErrorHandler(cfg *config.Config) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		message := "Internal Server Error"

		if e, ok := err.(*fiber.Error); ok {
			code = e.Code
			message = e.Message
		}

		if code == fiber.StatusInternalServerError {
			utils.Logger.Error("unhandled error", zap.String("path", c.Path()), zap.Error(err))
			// Don't expose internal errors in production
			if cfg.IsProduction() {
				message = "An error occurred. Please try again later."
			} else {
				message = err.Error()
			}
		}

		return c.Status(code).JSON(fiber.Map{
			"success": false,
			"error":   message,
		})
	}
}
