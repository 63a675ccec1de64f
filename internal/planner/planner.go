// Package planner turns a raster directory and a shapefile directory into a
// WorkBatch covering every (shape, raster) pair exactly once.
package planner

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/catchment-stats/internal/config"
	"github.com/couchcryptid/catchment-stats/internal/domain"
	"github.com/couchcryptid/catchment-stats/internal/observability"
)

// Options configures a Planner.
type Options struct {
	RasterDir        string
	ShapeDir         string
	OutputDir        string
	RasterExtensions []string
	ShapeExtensions  []string
	Rule             domain.OperatorRule
	Hashed           bool
}

// OptionsFromConfig maps the batch configuration onto planner options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		RasterDir:        cfg.RasterDir,
		ShapeDir:         cfg.ShapeDir,
		OutputDir:        cfg.OutputDir,
		RasterExtensions: cfg.RasterExtensions,
		ShapeExtensions:  cfg.ShapeExtensions,
		Rule:             cfg.OperatorRule(),
		Hashed:           cfg.NamingScheme == config.NamingHashed,
	}
}

// Planner builds work batches.
type Planner struct {
	opts    Options
	logger  *slog.Logger
	metrics *observability.Metrics
}

// New creates a Planner. A nil rule falls back to domain.DefaultOperatorRule.
func New(opts Options, logger *slog.Logger, metrics *observability.Metrics) *Planner {
	if opts.Rule == nil {
		opts.Rule = domain.DefaultOperatorRule()
	}
	return &Planner{opts: opts, logger: logger, metrics: metrics}
}

// Plan discovers inputs and returns the cross-product batch: shapes in the
// outer loop, rasters in the inner loop, both in sorted order. An empty input
// directory yields an empty batch; an unreadable one yields ErrDiscovery.
func (p *Planner) Plan(ctx context.Context) (domain.WorkBatch, error) {
	rasters, err := Discover(p.opts.RasterDir, p.opts.RasterExtensions)
	if err != nil {
		return domain.WorkBatch{}, err
	}
	shapes, err := Discover(p.opts.ShapeDir, p.opts.ShapeExtensions)
	if err != nil {
		return domain.WorkBatch{}, err
	}
	if len(rasters) == 0 {
		p.logger.Warn("no rasters found", "dir", p.opts.RasterDir, "extensions", p.opts.RasterExtensions)
	}
	if len(shapes) == 0 {
		p.logger.Warn("no shapefiles found", "dir", p.opts.ShapeDir, "extensions", p.opts.ShapeExtensions)
	}

	batch := Build(shapes, rasters, p.opts.Rule, p.opts.OutputDir, p.opts.Hashed, p.logger)
	if err := ctx.Err(); err != nil {
		return domain.WorkBatch{}, err
	}

	p.metrics.UnitsPlanned.Add(float64(batch.Len()))
	p.logger.Info("batch planned",
		"shapes", len(shapes),
		"rasters", len(rasters),
		"units", batch.Len(),
		"output_dir", p.opts.OutputDir,
	)
	return batch, nil
}

// Build forms the batch from already discovered inputs. Shapes and rasters
// are used in the order given.
func Build(shapes, rasters []string, rule domain.OperatorRule, outputDir string, hashed bool, logger *slog.Logger) domain.WorkBatch {
	keys := newKeyResolver(hashed)
	units := make([]domain.WorkUnit, 0, len(shapes)*len(rasters))

	// The operator depends only on the raster, so resolve it once per raster.
	ops := make([]domain.Operator, len(rasters))
	for j, r := range rasters {
		ops[j] = rule.Operator(r)
	}

	for _, s := range shapes {
		for j, r := range rasters {
			key, renamed := keys.resolve(s, r, ops[j])
			if renamed {
				logger.Warn("artifact key collision, appending pair hash",
					"shape", s,
					"raster", r,
					"key", key,
				)
			}
			units = append(units, domain.WorkUnit{
				ShapePath:  s,
				RasterPath: r,
				Operator:   ops[j],
				OutputDir:  outputDir,
				Key:        key,
			})
		}
	}
	return domain.WorkBatch{Units: units}
}
