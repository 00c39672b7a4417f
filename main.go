package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"

	appLogger "github.com/FACorreiaa/go-landmark-info/app/logger"
	"github.com/FACorreiaa/go-landmark-info/app/observability/metrics"
	"github.com/FACorreiaa/go-landmark-info/app/tracer"
	"github.com/FACorreiaa/go-landmark-info/config"
	"github.com/FACorreiaa/go-landmark-info/internal/api/geocode"
	"github.com/FACorreiaa/go-landmark-info/internal/api/httpcache"
	"github.com/FACorreiaa/go-landmark-info/internal/api/landmark"
	"github.com/FACorreiaa/go-landmark-info/internal/api/vision"
	"github.com/FACorreiaa/go-landmark-info/internal/api/wikidata"
	"github.com/FACorreiaa/go-landmark-info/internal/api/wikipedia"
	api "github.com/FACorreiaa/go-landmark-info/internal/router"
)

func main() {
	// --- Initial Loading ---
	// Use standard log until slog is configured, in case godotenv fails
	err := godotenv.Load()
	if err != nil {
		log.Println("Warning: .env file not found or error loading:", err)
	}

	cfg, err := config.InitConfig()
	if err != nil {
		log.Fatalf("FATAL: Error initializing config: %v", err)
	}

	// --- Logger Setup ---
	logger := setupLogger()
	slog.SetDefault(logger)

	// --- Application Context & Shutdown ---
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// --- Observability ---
	tracer.InitTracingAndMetrics(cfg.Handlers.Prometheus.Port)
	metrics.InitAppMetrics()

	// --- Outbound HTTP Cache ---
	// One shared TTL cache in front of every upstream transport, mirroring
	// the per-URL response caching the upstream usage policies reward.
	cachedTransport := httpcache.New(cfg.Cache.TTL, cfg.Cache.Cleanup)
	cachedTransport.OnHit = func() {
		metrics.Get().ResponseCacheHitsTotal.Add(context.Background(), 1)
	}

	// --- Dependency Injection ---
	wikipediaClient := wikipedia.NewClient(cfg.Upstreams.Wikipedia.BaseURL, cfg.Upstreams.Wikipedia.Timeout, cachedTransport, logger)
	wikidataClient := wikidata.NewClient(cfg.Upstreams.Wikidata.BaseURL, cfg.Upstreams.Wikidata.Timeout, cachedTransport, logger)
	geocodeClient := geocode.NewClient(cfg.Upstreams.Nominatim.BaseURL, cfg.Upstreams.Nominatim.UserAgent, cfg.Upstreams.Nominatim.Timeout, cachedTransport, logger)

	var detector vision.Detector
	geminiDetector, err := vision.NewGeminiDetector(ctx, cfg.Detector.Model, logger)
	if err != nil {
		logger.Warn("Landmark detector disabled; /landmarks/analyze will be unavailable", slog.Any("error", err))
	} else {
		detector = geminiDetector
	}

	landmarkService := landmark.NewLandmarkService(wikipediaClient, wikidataClient, geocodeClient, logger)
	landmarkHandler := landmark.NewLandmarkHandler(landmarkService, detector, cfg.Detector.MaxImageBytes, logger)

	// --- Router Setup ---
	mainRouter := api.SetupRouter(&api.Config{
		LandmarkHandler: landmarkHandler,
	})

	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(appLogger.StructuredLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.StripSlashes)
	router.Use(middleware.Timeout(cfg.Server.Timeout))
	router.Use(middleware.Compress(5, "application/json"))
	router.Mount("/", mainRouter)

	// --- HTTP Server Setup ---
	serverAddress := fmt.Sprintf(":%s", cfg.Server.HTTPPort)
	srv := &http.Server{
		Addr:         serverAddress,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	// --- Start Server Goroutine ---
	go func() {
		logger.Info("Starting HTTP server", slog.String("address", serverAddress))
		err := srv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server ListenAndServe error", slog.Any("error", err))
			cancel()
		}
	}()

	// --- Wait for Shutdown Signal ---
	<-ctx.Done()

	// --- Graceful Shutdown ---
	logger.Info("Shutdown signal received, starting graceful shutdown...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server graceful shutdown failed", slog.Any("error", err))
	} else {
		logger.Info("HTTP server gracefully stopped")
	}

	logger.Info("Application shut down complete.")
}

// setupLogger configures and returns the application logger.
func setupLogger() *slog.Logger {
	var logger *slog.Logger
	env := os.Getenv("APP_ENV")

	if env == "development" || env == "" { // Default to development if not set
		// Colored logs for development
		tintOpts := &tint.Options{
			Level:      slog.LevelDebug,
			TimeFormat: time.Kitchen,
			AddSource:  true,
		}
		logger = slog.New(tint.NewHandler(os.Stdout, tintOpts))
		log.Println("Initialized development logger (tint)")
	} else {
		// JSON logs for production or other environments
		jsonOpts := &slog.HandlerOptions{
			Level:     slog.LevelInfo,
			AddSource: false,
		}
		logger = slog.New(slog.NewJSONHandler(os.Stdout, jsonOpts))
		log.Println("Initialized production logger (JSON)")
	}
	return logger
}
