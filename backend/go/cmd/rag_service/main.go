package main

import (
	"Athena/backend/go/internal/config"
	"Athena/backend/go/internal/rag_service/api"
	"Athena/backend/go/internal/rag_service/rag/watcher"
	"Athena/backend/go/internal/rag_service/service"
	pkghttp "Athena/backend/go/pkg/http"
	"Athena/backend/go/pkg/logger"
	"context"
	"flag"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// .env is optional; values already in the environment win.
	_ = godotenv.Load()

	configPath := flag.String("config", envOr("RAG_CONFIG", "config/config.yaml"), "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.New("RAGService").WithErr(err).Fatal("Failed to load config")
	}

	// 1. Initialize Logger
	logger.Init(cfg.Logger.Level)
	appLogger := logger.New("RAGService")
	appLogger.WithFields(map[string]interface{}{
		"version":     cfg.App.Version,
		"environment": cfg.App.Environment,
	}).Info("Starting RAG Service...")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 2. Wire storage, providers and pipelines
	svc, shutdown, err := service.Bootstrap(ctx, cfg, appLogger)
	if err != nil {
		appLogger.WithErr(err).Fatal("Failed to initialise RAG service")
	}

	// 3. HTTP server
	gin.SetMode(gin.ReleaseMode)
	router := api.NewRouter(api.NewAPI(svc, cfg.Ingestion.MaxUploadBytes, appLogger.With("component", "api")), appLogger)
	server, err := pkghttp.NewServer(cfg.Server, router, pkghttp.WithLogger(appLogger))
	if err != nil {
		appLogger.WithErr(err).Fatal("Failed to create HTTP server")
	}

	var wg sync.WaitGroup
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.ListenAndServe()
	}()

	// 4. Optional upload folder watcher
	if w := cfg.Ingestion.Watch; w.Enabled {
		fw, err := watcher.New(w.Dir, w.DefaultSubject, config.Duration(w.Settle, 2*time.Second),
			cfg.Ingestion.MaxUploadBytes, svc.Ingest, appLogger.With("component", "watcher"))
		if err != nil {
			appLogger.WithErr(err).Fatal("Failed to start folder watcher")
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fw.Run(ctx); err != nil {
				appLogger.WithErr(err).Error("folder watcher stopped")
			}
		}()
	}

	// 5. Graceful Shutdown
	select {
	case <-ctx.Done():
	case err := <-serverErr:
		if err != nil {
			appLogger.WithErr(err).Error("HTTP server failed")
		}
		stop()
	}
	appLogger.Info("Shutting down servers...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.Duration(cfg.Server.ShutdownTimeout, 10*time.Second))
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		appLogger.WithErr(err).Warn("HTTP server shutdown incomplete")
	}
	wg.Wait()
	shutdown(shutdownCtx)
	appLogger.Info("Servers gracefully stopped")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
