package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"webchat-transcript-exporter/internal/adapters/archive"
	"webchat-transcript-exporter/internal/adapters/backend"
	"webchat-transcript-exporter/internal/adapters/format"
	"webchat-transcript-exporter/internal/adapters/parser"
	"webchat-transcript-exporter/internal/cache"
	"webchat-transcript-exporter/internal/core/services"
	applog "webchat-transcript-exporter/internal/log"
	"webchat-transcript-exporter/internal/pkg/config"
	"webchat-transcript-exporter/internal/server"
)

func main() {
	if err := run(); err != nil {
		slog.Error("application run failed", "error", err)
		os.Exit(1)
	}
}

// run инкапсулирует всю логику инициализации и запуска приложения.
func run() error {
	// 1. Загрузка конфигурации
	cfg, err := config.LoadConfig()
	if err != nil {
		// Логгер еще не инициализирован, выводим в stderr
		_, _ = fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Инициализация логгера с маскировкой адресов почты
	var level slog.Level
	switch cfg.Logging.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var handler slog.Handler
	switch cfg.Logging.Format {
	case "text":
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	default:
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	}
	logger := applog.NewMaskedLogger(handler)
	slog.SetDefault(logger)

	// 3. Валидация конфигурации (после инициализации логгера)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	// 4. Инициализация компонентов конвейера
	pipeline := server.Pipeline{
		Parser:      parser.NewJsonParser(),
		Extractor:   services.NewExtractionService(),
		DownloadFmt: format.NewDownloadFormatter(),
		EmailFmt:    format.NewEmailFormatter(),
		ExcelFmt:    format.NewExcelFormatter(),
		Media: services.NewMediaService(
			services.WithPoolSize(cfg.Export.MediaPoolSize),
			services.WithOperationTimeout(cfg.MediaTimeout()),
			services.WithLogger(logger.With(slog.String("component", "media"))),
		),
		Bundler: archive.NewZipBundleBuilder(
			archive.WithLogger(logger.With(slog.String("component", "bundler"))),
		),
	}
	if cfg.Backend.EmailURL != "" {
		pipeline.Gateway = backend.NewEmailClient(cfg.Backend.EmailURL,
			backend.WithAuthToken(cfg.Backend.AuthToken),
			backend.WithTimeout(time.Duration(cfg.Backend.RequestTimeoutSeconds)*time.Second),
		)
	}

	taskStore := server.NewTaskStore()
	cacheStore := cache.NewCacheStore()

	srv, err := server.New(cfg, pipeline, taskStore, cacheStore)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	// 5. Запуск сервера и ожидание сигналов для graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "address", cfg.Address())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(),
			time.Duration(cfg.Server.ShutdownTimeoutSeconds)*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
	}

	slog.Info("Server stopped gracefully")
	return nil
}
