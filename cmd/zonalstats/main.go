// Command zonalstats computes area-weighted catchment statistics for every
// (shapefile, raster) pair found in the configured directories and writes one
// artifact per pair. It exits non-zero when planning fails or any unit fails.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	httpadapter "github.com/couchcryptid/catchment-stats/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/catchment-stats/internal/adapter/kafka"
	"github.com/couchcryptid/catchment-stats/internal/config"
	"github.com/couchcryptid/catchment-stats/internal/domain"
	"github.com/couchcryptid/catchment-stats/internal/observability"
	"github.com/couchcryptid/catchment-stats/internal/pipeline"
	"github.com/couchcryptid/catchment-stats/internal/planner"
	"github.com/couchcryptid/catchment-stats/internal/zonal"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return 1
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		logger.Error("cannot create output directory", "dir", cfg.OutputDir, "error", err)
		return 1
	}

	batch, err := planner.New(planner.OptionsFromConfig(cfg), logger, metrics).Plan(ctx)
	if err != nil {
		logger.Error("planning failed", "error", err)
		return 1
	}

	proc := zonal.NewProcessor(zonal.DefaultStages(cfg.ShapeCacheSize, metrics), cfg.OutputFormat, logger)
	exec := pipeline.New(proc, logger, metrics, pipeline.Options{
		Workers:  cfg.Workers(),
		FailFast: cfg.FailFast,
	})

	// Health and metrics server (disabled unless HTTP_ADDR is set).
	var srv *httpadapter.Server
	if cfg.HTTPAddr != "" {
		srv = httpadapter.NewServer(cfg.HTTPAddr, exec, exec, logger)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server error", "error", err)
			}
		}()
	}

	report := exec.Run(ctx, batch)

	if cfg.ReportFile != "" {
		if err := writeReport(cfg.ReportFile, report); err != nil {
			logger.Error("write report failed", "path", cfg.ReportFile, "error", err)
		} else {
			logger.Info("report written", "path", cfg.ReportFile)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if cfg.PublishResults() {
		writer := kafkaadapter.NewResultWriter(cfg, logger)
		if err := writer.PublishReport(shutdownCtx, report); err != nil {
			logger.Error("result publishing failed", "error", err)
		}
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	if srv != nil {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown error", "error", err)
		}
	}

	if report.Failed > 0 || report.Skipped > 0 {
		return 1
	}
	return 0
}

// writeReport stores the run report as indented JSON, creating parent
// directories as needed.
func writeReport(path string, report domain.Report) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
