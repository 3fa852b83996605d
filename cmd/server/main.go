// Result capture server - watches game windows, uploads result screens and serves the UI API
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/resultcap/platform/internal/classify"
	"github.com/resultcap/platform/internal/config"
	"github.com/resultcap/platform/internal/geometry"
	"github.com/resultcap/platform/internal/history"
	"github.com/resultcap/platform/internal/ocr"
	"github.com/resultcap/platform/internal/pipeline"
	"github.com/resultcap/platform/internal/redact"
	"github.com/resultcap/platform/internal/screen"
	"github.com/resultcap/platform/internal/server"
	"github.com/resultcap/platform/internal/storage"
	"github.com/resultcap/platform/internal/upload"
)

func main() {
	// Setup structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)

	cfg := config.Load()

	catalog := geometry.Default()
	if cfg.GeometryFile != "" {
		if err := catalog.LoadYAML(cfg.GeometryFile); err != nil {
			slog.Error("failed to load region geometry", "path", cfg.GeometryFile, "error", err)
			os.Exit(1)
		}
	}
	if err := catalog.Validate(); err != nil {
		slog.Error("invalid region geometry", "error", err)
		os.Exit(1)
	}

	settings, err := config.LoadSettings(cfg.SettingsFile, catalog)
	if err != nil {
		slog.Error("failed to load settings", "path", cfg.SettingsFile, "error", err)
		os.Exit(1)
	}

	// Connect to OCR gRPC server
	recognizer, err := ocr.New(ocr.DefaultConfig(cfg.OCRAddr))
	if err != nil {
		slog.Error("failed to connect to ocr server", "addr", cfg.OCRAddr, "error", err)
		os.Exit(1)
	}
	defer func() { _ = recognizer.Close() }()

	capturer := screen.New()
	defer capturer.Close()

	sinks := pipeline.Sinks{
		Uploader: upload.New(upload.Config{BaseURL: cfg.BackendURL, Timeout: cfg.UploadTimeout}),
		Redactor: redact.New(catalog),
		Saver:    storage.NewLocal(cfg.PicturesDir, cfg.AppName),
	}
	if cfg.HistoryDB != "" {
		db, err := history.Open(cfg.HistoryDB)
		if err != nil {
			slog.Error("failed to open history", "path", cfg.HistoryDB, "error", err)
			os.Exit(1)
		}
		defer func() { _ = db.Close() }()
		sinks.History = db
	}

	mgr, err := pipeline.NewManager(pipeline.Config{
		Games:             cfg.Games,
		Windows:           cfg.Windows,
		Auth:              upload.Auth{UserID: cfg.UserID, Token: cfg.UserToken},
		OCRTimeout:        cfg.OCRTimeout,
		UploadTimeout:     cfg.UploadTimeout,
		SkipSimilarFrames: cfg.SkipSimilarFrames,
		MaxHashDistance:   cfg.MaxHashDistance,
		SettingsFile:      cfg.SettingsFile,
	}, settings, pipeline.Deps{
		Catalog:  catalog,
		Capturer: capturer,
		Focus:    capturer,
		Classifier: classify.New(catalog, recognizer, classify.Options{
			Language:   settings.OCRLanguage,
			Preprocess: settings.OCRPreprocess,
			Timeout:    cfg.OCRTimeout,
		}),
		Sinks: sinks,
	})
	if err != nil {
		slog.Error("failed to create pipeline", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	mgr.StartAll(ctx)

	// Create HTTP/WebSocket server
	srv := server.New(mgr)
	defer srv.Close()

	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      srv.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("result capture server starting", "http", cfg.HTTPAddr, "ocr", cfg.OCRAddr,
			"backend", cfg.BackendURL, "games", cfg.Games)
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error("http server error", "error", err)
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	slog.Info("shutting down...")
	mgr.StopAll()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown error", "error", err)
	}

	// In-flight uploads finish before the history database closes.
	mgr.Wait()
	slog.Info("shutdown complete")
}
