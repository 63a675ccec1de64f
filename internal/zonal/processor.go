// Package zonal computes area-weighted statistics of a gridded raster over a
// catchment polygon and writes the resulting time series as an artifact.
package zonal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/ctessum/geom"

	"github.com/couchcryptid/catchment-stats/internal/domain"
	"github.com/couchcryptid/catchment-stats/internal/observability"
)

// GridLoader reads a raster file into memory. A non-nil window limits the
// read to the cells overlapping it.
type GridLoader interface {
	Load(ctx context.Context, path string, window *geom.Bounds) (*Grid, error)
}

// ShapeLoader reads a catchment outline.
type ShapeLoader interface {
	Load(ctx context.Context, path string) (*Catchment, error)
}

// Extractor restricts a grid to a catchment.
type Extractor interface {
	Extract(ctx context.Context, g *Grid, c *Catchment) (*Extraction, error)
}

// Reducer collapses an extraction to one value per time step.
type Reducer interface {
	Reduce(ext *Extraction, op domain.Operator) (*Series, error)
}

// Exporter writes a series to a file.
type Exporter interface {
	Format() domain.Format
	Export(s *Series, path string) error
}

// Stages are the collaborators a Processor runs, in order.
type Stages struct {
	Grids     GridLoader
	Shapes    ShapeLoader
	Extractor Extractor
	Reducer   Reducer
	CSV       Exporter
	NetCDF    Exporter
}

// DefaultStages wires the library-backed stages. Decoded shapes are cached
// up to cacheSize entries; metrics may be nil.
func DefaultStages(cacheSize int, metrics *observability.Metrics) Stages {
	return Stages{
		Grids:     NetCDFLoader{},
		Shapes:    NewCachedShapeLoader(ShapefileLoader{}, cacheSize, metrics),
		Extractor: AreaExtractor{},
		Reducer:   AreaReducer{},
		CSV:       CSVExporter{},
		NetCDF:    NetCDFExporter{},
	}
}

// Options tweak a single ProcessUnit call.
type Options struct {
	// EmitCSV writes a CSV artifact instead of NetCDF.
	EmitCSV bool
	// ReturnIntermediate hands back the catchment-restricted grid as it was
	// before the statistic was taken.
	ReturnIntermediate bool
}

// Outcome is what ProcessUnit produced.
type Outcome struct {
	Artifact domain.Artifact
	// Intermediate is the loaded grid with cells outside the catchment set
	// to NaN. Set only with Options.ReturnIntermediate.
	Intermediate *Grid
	// Weights are the area weights of the cells inside the catchment, as
	// used by the reduction.
	Weights []CellWeight
}

// Processor runs load → extract → reduce → export for one work unit.
// It is safe for concurrent use when its stages are.
type Processor struct {
	stages Stages
	format domain.Format
	logger *slog.Logger
}

// NewProcessor creates a Processor writing artifacts in format.
func NewProcessor(stages Stages, format domain.Format, logger *slog.Logger) *Processor {
	return &Processor{stages: stages, format: format, logger: logger}
}

// Process handles one unit with the processor's configured format.
func (p *Processor) Process(ctx context.Context, unit domain.WorkUnit) (domain.Artifact, error) {
	out, err := p.ProcessUnit(ctx, unit, Options{EmitCSV: p.format == domain.FormatCSV})
	if err != nil {
		return domain.Artifact{}, err
	}
	return out.Artifact, nil
}

// ProcessUnit computes the unit's statistic and writes
// {OutputDir}/{Key}.{nc|csv}, overwriting an existing artifact.
func (p *Processor) ProcessUnit(ctx context.Context, unit domain.WorkUnit, opts Options) (Outcome, error) {
	exporter := p.stages.NetCDF
	if opts.EmitCSV {
		exporter = p.stages.CSV
	}

	catchment, err := p.stages.Shapes.Load(ctx, unit.ShapePath)
	if err != nil {
		return Outcome{}, fmt.Errorf("load shape %s: %w", unit.ShapePath, err)
	}
	grid, err := p.stages.Grids.Load(ctx, unit.RasterPath, catchment.Bounds())
	if errors.Is(err, ErrEmptyIntersection) {
		return Outcome{}, fmt.Errorf("extract: %w", err)
	}
	if err != nil {
		return Outcome{}, fmt.Errorf("load raster %s: %w", unit.RasterPath, err)
	}
	ext, err := p.stages.Extractor.Extract(ctx, grid, catchment)
	if err != nil {
		return Outcome{}, fmt.Errorf("extract: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}
	series, err := p.stages.Reducer.Reduce(ext, unit.Operator)
	if err != nil {
		return Outcome{}, fmt.Errorf("reduce: %w", err)
	}
	series.Raster = unit.RasterPath
	series.Shape = unit.ShapePath

	if err := os.MkdirAll(unit.OutputDir, 0o755); err != nil {
		return Outcome{}, fmt.Errorf("export: %w", err)
	}
	format := exporter.Format()
	path := filepath.Join(unit.OutputDir, format.Filename(unit.Key))
	if err := exporter.Export(series, path); err != nil {
		return Outcome{}, fmt.Errorf("export: %w", err)
	}

	p.logger.Debug("artifact written",
		"artifact", path,
		"cells", len(ext.Cells),
		"steps", len(series.Values),
	)

	out := Outcome{Artifact: domain.Artifact{
		Path:   path,
		Format: format,
		Steps:  len(series.Values),
		Name:   series.Name,
	}}
	if opts.ReturnIntermediate {
		out.Intermediate = ext.Masked()
		out.Weights = ext.Cells
	}
	return out, nil
}
