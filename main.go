// Command tdm-reports turns computed TDM results into XML, HTML and PDF reports.
// Results arrive through the inbox directory or the HTTP API.
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

	"github.com/giygas/tdm-reports/blob"
	"github.com/giygas/tdm-reports/config"
	"github.com/giygas/tdm-reports/data"
	"github.com/giygas/tdm-reports/export"
	"github.com/giygas/tdm-reports/handlers"
	"github.com/giygas/tdm-reports/health"
	"github.com/giygas/tdm-reports/history"
	"github.com/giygas/tdm-reports/ingest"
	"github.com/giygas/tdm-reports/logging"
	"github.com/giygas/tdm-reports/metrics"
	"github.com/giygas/tdm-reports/resultparser"
	"github.com/giygas/tdm-reports/scheduler"
	"github.com/giygas/tdm-reports/server"
	"github.com/giygas/tdm-reports/translation"
	"github.com/giygas/tdm-reports/validation"
)

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to load configuration:", err)
		os.Exit(1)
	}

	logging.InitLoggerWithConfig("logs", cfg)
	defer logging.DefaultLoggingService.Close()

	if err := run(cfg); err != nil {
		logging.Error("Fatal error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx := context.Background()

	translations, err := translation.NewRegistry(cfg.DefaultLanguage)
	if err != nil {
		return fmt.Errorf("failed to load translations: %w", err)
	}
	if cfg.TranslationsDir != "" {
		if err := translations.LoadDir(cfg.TranslationsDir); err != nil {
			return fmt.Errorf("failed to load translations from %s: %w", cfg.TranslationsDir, err)
		}
	}
	logging.Info("Translations loaded", "languages", translations.Languages())

	exports, err := history.Open(cfg.HistoryDSN)
	if err != nil {
		return fmt.Errorf("failed to open export history: %w", err)
	}
	defer exports.Close()

	converter := export.NewWkhtmltopdfConverter(cfg.PDFConverterPath, cfg.PDFConversionTimeout)
	if !converter.Available() {
		logging.Warn("PDF converter not found, PDF exports will fail", "path", cfg.PDFConverterPath)
	}

	printer, err := export.NewPrinter(export.Options{
		OutputDir:    cfg.OutputDir,
		Translations: translations,
		Converter:    converter,
		Hooks: []export.Hook{
			metrics.ObserveExport,
			history.NewRecorder(exports).Record,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create printer: %w", err)
	}

	store, err := blob.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open blob store: %w", err)
	}
	if store != nil {
		printer.AddHook(blob.NewPublisher(store).Publish)
		logging.Info("Publishing reports", "driver", store.Driver())
	}

	dataContainer := data.NewDataContainer()
	dataContainer.SetServerStartTime(time.Now())

	validator := validation.NewDataValidator()
	parser := resultparser.NewResultParser()
	pipeline := ingest.NewPipeline(validator, translations, dataContainer, printer)

	sched := scheduler.NewScheduler(dataContainer, parser, validator, pipeline, scheduler.Options{
		InputDir:      cfg.InputDir,
		OutputDir:     cfg.OutputDir,
		ScanInterval:  cfg.InboxScanInterval,
		RetentionDays: cfg.OutputRetentionDays,
	})
	if err := sched.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	defer sched.Stop()

	healthChecker := health.NewHealthChecker(dataContainer, exports, converter, cfg.InboxScanInterval)
	httpHandler := handlers.NewHTTPHandler(handlers.Dependencies{
		DataStore:     dataContainer,
		Validator:     validator,
		Parser:        parser,
		Pipeline:      pipeline,
		Exports:       exports,
		HealthChecker: healthChecker,
		OutputDir:     cfg.OutputDir,
	})
	srv := server.NewServer(cfg, httpHandler)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case sig := <-quit:
		logging.Info("Received signal", "signal", sig.String())
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return nil
}
