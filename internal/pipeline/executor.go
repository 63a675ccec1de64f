// Package pipeline runs a planned batch of work units on a fixed-size worker
// pool and collects one tagged result per unit, in input order.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/couchcryptid/catchment-stats/internal/domain"
	"github.com/couchcryptid/catchment-stats/internal/observability"
)

// Processor handles a single work unit.
type Processor interface {
	Process(ctx context.Context, unit domain.WorkUnit) (domain.Artifact, error)
}

// ProcessorFunc adapts a function to Processor.
type ProcessorFunc func(ctx context.Context, unit domain.WorkUnit) (domain.Artifact, error)

func (f ProcessorFunc) Process(ctx context.Context, unit domain.WorkUnit) (domain.Artifact, error) {
	return f(ctx, unit)
}

// Options configures an Executor.
type Options struct {
	// Workers is the pool size; zero or less means one per CPU.
	Workers int
	// FailFast stops dispatching after the first failed unit. Units that
	// never ran are reported with domain.ErrSkipped.
	FailFast bool
}

// errAborted is the skip reason for units left over after a fail-fast stop.
var errAborted = errors.New("batch aborted after a failed unit")

// Progress is a snapshot of the running batch.
type Progress struct {
	RunID   string `json:"run_id"`
	Total   int64  `json:"total"`
	Done    int64  `json:"done"`
	Failed  int64  `json:"failed"`
	Running bool   `json:"running"`
}

// Executor fans work units out to a worker pool.
type Executor struct {
	proc    Processor
	logger  *slog.Logger
	metrics *observability.Metrics
	opts    Options
	started atomic.Bool

	mu       sync.Mutex
	progress Progress
}

// New creates an Executor.
func New(proc Processor, logger *slog.Logger, metrics *observability.Metrics, opts Options) *Executor {
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	return &Executor{proc: proc, logger: logger, metrics: metrics, opts: opts}
}

// Workers returns the resolved pool size.
func (e *Executor) Workers() int { return e.opts.Workers }

// CheckReadiness returns nil once a batch has started running.
func (e *Executor) CheckReadiness(_ context.Context) error {
	if !e.started.Load() {
		return errors.New("executor has not started a batch yet")
	}
	return nil
}

// Progress returns the state of the current or last batch.
func (e *Executor) Progress() Progress {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.progress
}

func (e *Executor) updateProgress(fn func(p *Progress)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(&e.progress)
}

// Run processes every unit of batch and returns the report. Results[i]
// always describes batch.Units[i], whatever order units finish in. A failing
// unit never stops the others unless FailFast is set. Cancelling ctx stops
// dispatch; undispatched units are reported as skipped.
func (e *Executor) Run(ctx context.Context, batch domain.WorkBatch) domain.Report {
	report := domain.Report{
		RunID:     domain.NewRunID(),
		StartedAt: domain.Now(),
		Results:   make([]domain.UnitResult, batch.Len()),
	}

	e.updateProgress(func(p *Progress) {
		*p = Progress{RunID: report.RunID, Total: int64(batch.Len()), Running: true}
	})
	defer e.updateProgress(func(p *Progress) { p.Running = false })

	e.started.Store(true)
	e.metrics.ExecutorRunning.Set(1)
	defer e.metrics.ExecutorRunning.Set(0)
	e.metrics.ExecutorWorkers.Set(float64(e.opts.Workers))

	e.logger.Info("batch started",
		"run_id", report.RunID,
		"units", batch.Len(),
		"workers", e.opts.Workers,
		"fail_fast", e.opts.FailFast,
	)

	runCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	workCh := make(chan int)
	var wg sync.WaitGroup
	for range min(e.opts.Workers, batch.Len()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range workCh {
				res := e.runUnit(runCtx, i, batch.Units[i])
				report.Results[i] = res
				e.observe(res)
				if e.opts.FailFast && !res.OK() && !res.Skipped() {
					cancel(errAborted)
				}
			}
		}()
	}

	dispatched := 0
dispatch:
	for i := range batch.Units {
		select {
		case <-runCtx.Done():
			break dispatch
		case workCh <- i:
			dispatched++
		}
	}
	close(workCh)
	wg.Wait()

	for i := dispatched; i < batch.Len(); i++ {
		res := domain.UnitResult{
			Index: i,
			Unit:  batch.Units[i],
			Err:   fmt.Errorf("%w: %w", domain.ErrSkipped, context.Cause(runCtx)),
		}
		report.Results[i] = res
		e.observe(res)
	}

	report.FinishedAt = domain.Now()
	report.Tally()
	e.metrics.BatchDuration.Observe(report.Duration().Seconds())

	e.logger.Info("batch finished",
		"run_id", report.RunID,
		"succeeded", report.Succeeded,
		"failed", report.Failed,
		"skipped", report.Skipped,
		"duration", report.Duration().String(),
	)
	return report
}

// runUnit processes one unit, turning a panic into that unit's error.
func (e *Executor) runUnit(ctx context.Context, idx int, unit domain.WorkUnit) (res domain.UnitResult) {
	res = domain.UnitResult{Index: idx, Unit: unit}
	if ctx.Err() != nil {
		res.Err = fmt.Errorf("%w: %w", domain.ErrSkipped, context.Cause(ctx))
		return res
	}

	res.StartedAt = domain.Now()
	defer func() {
		if r := recover(); r != nil {
			res.Artifact = domain.Artifact{}
			res.Err = fmt.Errorf("panic processing unit %s: %v", unit.Key, r)
		}
		res.Duration = domain.Since(res.StartedAt)
	}()

	res.Artifact, res.Err = e.proc.Process(ctx, unit)
	if res.Err != nil && ctx.Err() != nil && errors.Is(res.Err, ctx.Err()) {
		res.Err = fmt.Errorf("%w: %w", domain.ErrSkipped, res.Err)
	}
	return res
}

// observe logs and counts a unit outcome.
func (e *Executor) observe(res domain.UnitResult) {
	e.updateProgress(func(p *Progress) {
		p.Done++
		if res.Status() == "failed" {
			p.Failed++
		}
	})
	attrs := []any{
		"index", res.Index,
		"shape", res.Unit.ShapePath,
		"raster", res.Unit.RasterPath,
		"operator", res.Unit.Operator,
	}
	switch res.Status() {
	case "ok":
		e.metrics.UnitsSucceeded.Inc()
		e.metrics.UnitDuration.WithLabelValues(res.Unit.Operator.String()).Observe(res.Duration.Seconds())
		e.logger.Info("unit done", append(attrs, "artifact", res.Artifact.Path, "duration", res.Duration.String())...)
	case "skipped":
		e.metrics.UnitsSkipped.Inc()
		e.logger.Debug("unit skipped", append(attrs, "reason", res.Error())...)
	default:
		e.metrics.UnitsFailed.Inc()
		e.metrics.UnitDuration.WithLabelValues(res.Unit.Operator.String()).Observe(res.Duration.Seconds())
		e.logger.Error("unit failed", append(attrs, "error", res.Err)...)
	}
}
