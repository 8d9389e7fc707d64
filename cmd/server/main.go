package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"hillshade/internal/config"
	"hillshade/internal/dem"
	"hillshade/internal/hills"
	"hillshade/internal/logger"
	"hillshade/internal/web"
)

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer log.Sync()

	log.Info("Starting hillshade server",
		zap.Int("port", cfg.Port),
		zap.String("dem_dir", cfg.DemDir),
		zap.Int("reading_threads", cfg.ReadingThreads),
		zap.Int("computing_threads", cfg.ComputingThreads),
		zap.Int("max_memory_mb", cfg.MaxMemoryMB),
	)

	folder := dem.NewFSFolder(cfg.DemDir)
	algorithm := hills.NewAdaptiveAlgorithm(cfg.ReadingThreads, cfg.ComputingThreads, cfg.HqEnabled, cfg.QualityScale, log)
	source := hills.NewTileSource(folder, algorithm, hills.MonoGraphicsFactory{}, cfg.InterpolationOverlap, cfg.MaxMemoryMB, log)
	renderConfig := hills.NewRenderConfig(source)

	if cfg.WarmupIndex {
		// Index the DEM catalog in the background so the first tile
		// request doesn't pay for the folder walk.
		renderConfig.IndexOnThread()
	}

	handlers := web.New(log, renderConfig, source)

	mux := http.NewServeMux()

	mux.HandleFunc("/api/tiles/", handlers.HandleTiles)
	mux.HandleFunc("/api/index", handlers.HandleIndex)
	mux.HandleFunc("/healthz", handlers.HandleHealthz)

	handler := handlers.RequestLoggingMiddleware(mux)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: handler,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed", zap.Error(err))
		}
	}()

	log.Info("Server started", zap.Int("port", cfg.Port))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server stopped")
}
