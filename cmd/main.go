package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"authbase/internal/api"
	apimiddleware "authbase/internal/api/middleware"
	"authbase/internal/config"
	"authbase/internal/db"
	"authbase/internal/events"
	"authbase/internal/handlers"
	"authbase/internal/keys"
	"authbase/internal/objects"
	"authbase/internal/permission"
	"authbase/internal/tasks"
	"authbase/internal/tasks/rate"
	"authbase/internal/utils/logger"

	"github.com/joho/godotenv"
)

func main() {
	logger := logger.New("authbase")

	// check if .env file exists
	if _, err := os.Stat(".env"); os.IsNotExist(err) {
		logger.Info("No .env file found, skipping environment variable loading")
	} else {
		logger.Info("Loading environment variables from .env file")
		if err := godotenv.Load(); err != nil {
			log.Fatalf("Failed to load environment variables: %v", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Database
	database, err := db.Connect(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := db.Migrate(database); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	// Signing keys: generate the first pair now, rotate in the background.
	keyStore, err := keys.NewRotatingKeyStore(cfg.Auth.KeyRotateInterval, cfg.Auth.KeyExpireInterval)
	if err != nil {
		log.Fatalf("Failed to initialize signing keys: %v", err)
	}
	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()
	go keyStore.Start(rootCtx)

	issuer := keys.NewIssuer(keyStore, cfg.Auth.Issuer, cfg.Auth.SessionTTL)
	verifier := keys.NewVerifier(keys.StoreResolver{Store: keyStore}, cfg.Auth.Issuer)

	// Services
	bus := events.NewBus()
	perms := permission.NewService(database)
	objectSvc := objects.NewService(database, perms, bus)

	// Background work
	taskClient := tasks.NewTaskClient(cfg.Redis)
	defer taskClient.Close()

	bus.Subscribe(events.ObjectCreated, func(e events.Event) {
		if e.Type == "Notification" {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := taskClient.EnqueueNotificationDelivery(ctx, e.ID); err != nil {
				logger.Warn("notification %d not queued: %v", e.ID, err)
			}
		}
	})

	taskHandler := tasks.NewTaskHandler(database, cfg)
	taskServer := tasks.NewServer(cfg, taskHandler)
	go func() {
		if err := taskServer.Start(rootCtx); err != nil {
			logger.Error("Task server error", err)
		}
	}()

	taskScheduler := tasks.NewScheduler(cfg)
	go func() {
		if err := taskScheduler.Start(); err != nil {
			logger.Error("Task scheduler error", err)
		}
	}()

	sweeper := tasks.NewSweeper(database, taskClient)
	if err := sweeper.Start(); err != nil {
		log.Fatalf("Failed to start notification sweeper: %v", err)
	}

	// HTTP
	authMw := apimiddleware.NewAuthMiddleware(verifier, perms, cfg.Auth)
	loginLimiter := rate.NewSlidingWindowLimiter(taskClient.Redis(), "login", rate.Limit{
		Window:      time.Minute,
		MaxAttempts: 10,
	})
	authHandler := handlers.NewAuthHandler(
		database, perms, keyStore, issuer, authMw, taskClient, loginLimiter, bus, objectSvc, cfg)

	apiServer := api.NewServer(cfg, &api.Dependencies{
		Auth:       authHandler,
		AuthMw:     authMw,
		Objects:    objectSvc,
		TokenParam: cfg.Auth.CookieName,
	})
	go func() {
		logger.Success("API server starting on %s:%d", cfg.Server.Host, cfg.Server.Port)
		if err := apiServer.Start(); err != nil {
			logger.Error("API server error", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the servers
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	sweeper.Stop()
	taskScheduler.Stop()
	taskServer.Shutdown()
	rootCancel()

	if err := apiServer.Shutdown(ctx); err != nil {
		logger.Error("Failed to shutdown API server", err)
	}
	logger.Info("Servers shutdown gracefully")
}
