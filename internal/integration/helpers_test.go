package integration_test

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/catchment-stats/internal/domain"
	"github.com/couchcryptid/catchment-stats/internal/fixture"
	"github.com/couchcryptid/catchment-stats/internal/observability"
	"github.com/couchcryptid/catchment-stats/internal/pipeline"
	"github.com/couchcryptid/catchment-stats/internal/planner"
	"github.com/couchcryptid/catchment-stats/internal/zonal"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// demoDirs holds the directories of a demo batch.
type demoDirs struct {
	rasters, shapes, out string
}

// writeDemo writes the demo inputs to a fresh temp dir.
func writeDemo(t *testing.T) demoDirs {
	t.Helper()
	root := t.TempDir()
	d := demoDirs{
		rasters: filepath.Join(root, "rasters"),
		shapes:  filepath.Join(root, "shapes"),
		out:     filepath.Join(root, "out"),
	}
	require.NoError(t, fixture.WriteDemo(d.rasters, d.shapes))
	return d
}

// runBatch plans and executes the batch in d the way cmd/zonalstats does.
func runBatch(t *testing.T, d demoDirs, format domain.Format, workers int) (domain.WorkBatch, domain.Report) {
	t.Helper()
	logger := discardLogger()
	metrics := observability.NewMetricsForTesting()

	batch, err := planner.New(planner.Options{
		RasterDir:        d.rasters,
		ShapeDir:         d.shapes,
		OutputDir:        d.out,
		RasterExtensions: []string{".nc"},
		ShapeExtensions:  []string{".shp"},
	}, logger, metrics).Plan(t.Context())
	require.NoError(t, err)

	proc := zonal.NewProcessor(zonal.DefaultStages(8, metrics), format, logger)
	exec := pipeline.New(proc, logger, metrics, pipeline.Options{Workers: workers})
	return batch, exec.Run(t.Context(), batch)
}
