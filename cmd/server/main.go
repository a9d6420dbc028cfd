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

	"riskscan/internal/config"
	"riskscan/internal/handler"
	"riskscan/internal/logging"
	"riskscan/internal/repository"
	"riskscan/internal/service"
	"riskscan/internal/textproc"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig(config.Path())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	logger.Info("Starting risk analysis service...")

	// Load the model; without one the service runs degraded and /api/analyze returns 503
	analyzer := service.NewAnalyzer(cfg.Model.Dir, textproc.NewNormalizer(), logger)
	if _, err := analyzer.Load(); err != nil {
		logger.Warn("Serving without a model until POST /api/model/reload succeeds",
			zap.String("model_dir", cfg.Model.Dir))
	}

	// Training ledger is optional for serving
	var runs handler.RunLookup
	repo, err := repository.NewTrainingRepository(cfg.Database.Path, logger)
	if err != nil {
		logger.Warn("Training ledger unavailable", zap.Error(err))
	} else {
		defer repo.Close()
		runs = repo
	}

	apiHandler := handler.NewHandler(analyzer, runs, logger)

	// Setup Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.Default()
	router.Use(handler.CORS())

	apiHandler.RegisterRoutes(router)

	serverAddr := fmt.Sprintf(":%s", cfg.Server.Port)
	logger.Info("Server starting", zap.String("address", serverAddr))

	// Graceful shutdown
	srv := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	logger.Info("Risk analysis service is running",
		zap.String("port", cfg.Server.Port),
		zap.Bool("model_loaded", analyzer.Model() != nil))

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
