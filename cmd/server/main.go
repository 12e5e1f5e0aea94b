package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/bintoss/backend/internal/api"
	"github.com/bintoss/backend/internal/config"
	"github.com/bintoss/backend/internal/database"
	"github.com/bintoss/backend/internal/game"
	"github.com/bintoss/backend/internal/logging"
	"github.com/bintoss/backend/internal/migrations"
	"github.com/bintoss/backend/internal/redis"
	"github.com/bintoss/backend/internal/scenery"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		logging.S.Info("No .env file found, using environment variables")
	}

	// Initialize configuration
	cfg := config.Load()
	logging.Init(cfg.Environment)
	defer logging.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database
	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		logging.S.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Run migrations on start if requested
	if os.Getenv("MIGRATE_ON_START") == "true" {
		logging.S.Info("↗ Running DB migrations on startup...")
		if err := migrations.RunMigrations(cfg.DatabaseURL); err != nil {
			logging.S.Fatalf("Failed to run migrations: %v", err)
		}
	}

	// Initialize Redis
	rdb, err := redis.Connect(cfg.RedisURL)
	if err != nil {
		logging.S.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer rdb.Close()

	// Initialize the session manager
	game.InitializeManager(ctx, db, rdb, cfg)

	// Initialize scenery client (if configured)
	if sceneryClient := scenery.NewClient(cfg, rdb); sceneryClient != nil {
		scenery.SetDefault(sceneryClient)
		logging.S.Infof("[SCENERY] Background client initialized (base=%s)", cfg.SceneryBaseURL)
	} else {
		logging.S.Info("[SCENERY] Scenery service not configured - backgrounds and chat use fallbacks")
	}

	// Set up Gin router
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()
	api.SetupRoutes(router, db, rdb, cfg)

	port := cfg.Port
	if port == "" {
		port = "8080"
	}

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logging.S.Infof("Starting BinToss server on port %s", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logging.S.Info("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logging.S.Fatalf("Server error: %v", err)
	}
}
