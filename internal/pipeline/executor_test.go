package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/catchment-stats/internal/domain"
	"github.com/couchcryptid/catchment-stats/internal/observability"
	"github.com/couchcryptid/catchment-stats/internal/pipeline"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func makeBatch(n int) domain.WorkBatch {
	units := make([]domain.WorkUnit, n)
	for i := range units {
		units[i] = domain.WorkUnit{
			ShapePath:  fmt.Sprintf("/s/basin%02d.shp", i),
			RasterPath: "/r/pr_1950.nc",
			Operator:   domain.OpSum,
			OutputDir:  "/out",
			Key:        fmt.Sprintf("basin%02d_pr_sum", i),
		}
	}
	return domain.WorkBatch{Units: units}
}

// echo returns an artifact named after the unit key.
func echo(_ context.Context, u domain.WorkUnit) (domain.Artifact, error) {
	return domain.Artifact{Path: "/out/" + u.Key + ".nc", Format: domain.FormatNetCDF}, nil
}

func TestRun_ResultsInInputOrder(t *testing.T) {
	batch := makeBatch(24)
	for _, workers := range []int{1, 2, 3, 8, 32} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			proc := pipeline.ProcessorFunc(func(ctx context.Context, u domain.WorkUnit) (domain.Artifact, error) {
				time.Sleep(time.Duration(rand.IntN(3)) * time.Millisecond)
				return echo(ctx, u)
			})
			exec := pipeline.New(proc, discardLogger(), observability.NewMetricsForTesting(), pipeline.Options{Workers: workers})

			report := exec.Run(context.Background(), batch)

			require.Len(t, report.Results, batch.Len())
			for i, res := range report.Results {
				assert.Equal(t, i, res.Index)
				assert.Equal(t, batch.Units[i], res.Unit)
				assert.Equal(t, "/out/"+batch.Units[i].Key+".nc", res.Artifact.Path)
				assert.NoError(t, res.Err)
			}
			assert.Equal(t, batch.Len(), report.Succeeded)
		})
	}
}

func TestRun_ReportAndContinue(t *testing.T) {
	batch := makeBatch(6)
	boom := errors.New("extract: catchment does not intersect the raster grid")
	proc := pipeline.ProcessorFunc(func(ctx context.Context, u domain.WorkUnit) (domain.Artifact, error) {
		if u.Key == "basin02_pr_sum" || u.Key == "basin04_pr_sum" {
			return domain.Artifact{}, boom
		}
		return echo(ctx, u)
	})
	metrics := observability.NewMetricsForTesting()
	exec := pipeline.New(proc, discardLogger(), metrics, pipeline.Options{Workers: 3})

	report := exec.Run(context.Background(), batch)

	assert.Equal(t, 4, report.Succeeded)
	assert.Equal(t, 2, report.Failed)
	assert.Equal(t, 0, report.Skipped)
	assert.ErrorIs(t, report.Results[2].Err, boom)
	assert.ErrorIs(t, report.Results[4].Err, boom)
	assert.Equal(t, "failed", report.Results[2].Status())
	assert.Equal(t, "ok", report.Results[5].Status())

	assert.InDelta(t, 4, testutil.ToFloat64(metrics.UnitsSucceeded), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(metrics.UnitsFailed), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(metrics.ExecutorRunning), 0)
	assert.InDelta(t, 3, testutil.ToFloat64(metrics.ExecutorWorkers), 0)
}

func TestRun_FailFastSkipsRemaining(t *testing.T) {
	batch := makeBatch(5)
	var calls atomic.Int32
	proc := pipeline.ProcessorFunc(func(ctx context.Context, u domain.WorkUnit) (domain.Artifact, error) {
		calls.Add(1)
		if u.Key == "basin01_pr_sum" {
			return domain.Artifact{}, errors.New("load raster: corrupt header")
		}
		return echo(ctx, u)
	})
	metrics := observability.NewMetricsForTesting()
	exec := pipeline.New(proc, discardLogger(), metrics, pipeline.Options{Workers: 1, FailFast: true})

	report := exec.Run(context.Background(), batch)

	assert.Equal(t, "ok", report.Results[0].Status())
	assert.Equal(t, "failed", report.Results[1].Status())
	for i := 2; i < 5; i++ {
		assert.True(t, report.Results[i].Skipped(), "unit %d should be skipped", i)
		assert.Equal(t, batch.Units[i], report.Results[i].Unit)
	}
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 3, report.Skipped)
	assert.InDelta(t, 3, testutil.ToFloat64(metrics.UnitsSkipped), 0)
}

func TestRun_CancelledContextSkipsEverything(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	exec := pipeline.New(pipeline.ProcessorFunc(echo), discardLogger(), observability.NewMetricsForTesting(), pipeline.Options{Workers: 4})
	report := exec.Run(ctx, makeBatch(4))

	assert.Equal(t, 4, report.Skipped)
	for _, res := range report.Results {
		assert.ErrorIs(t, res.Err, domain.ErrSkipped)
		assert.ErrorIs(t, res.Err, context.Canceled)
	}
}

func TestRun_PanicBecomesUnitError(t *testing.T) {
	batch := makeBatch(3)
	proc := pipeline.ProcessorFunc(func(ctx context.Context, u domain.WorkUnit) (domain.Artifact, error) {
		if u.Key == "basin01_pr_sum" {
			panic("index out of range")
		}
		return echo(ctx, u)
	})
	exec := pipeline.New(proc, discardLogger(), observability.NewMetricsForTesting(), pipeline.Options{Workers: 2})

	report := exec.Run(context.Background(), batch)

	assert.Equal(t, 2, report.Succeeded)
	require.Error(t, report.Results[1].Err)
	assert.Contains(t, report.Results[1].Error(), "index out of range")
	assert.Empty(t, report.Results[1].Artifact.Path)
}

func TestRun_EmptyBatch(t *testing.T) {
	exec := pipeline.New(pipeline.ProcessorFunc(echo), discardLogger(), observability.NewMetricsForTesting(), pipeline.Options{Workers: 2})

	report := exec.Run(context.Background(), domain.WorkBatch{})

	assert.Empty(t, report.Results)
	assert.Zero(t, report.Succeeded+report.Failed+report.Skipped)
	assert.NotEmpty(t, report.RunID)
}

func TestRun_TimestampsFromClock(t *testing.T) {
	start := time.Date(2024, 4, 26, 12, 0, 0, 0, time.UTC)
	domain.SetClock(clockwork.NewFakeClockAt(start))
	t.Cleanup(func() { domain.SetClock(nil) })

	exec := pipeline.New(pipeline.ProcessorFunc(echo), discardLogger(), observability.NewMetricsForTesting(), pipeline.Options{Workers: 1})
	report := exec.Run(context.Background(), makeBatch(2))

	assert.Equal(t, start, report.StartedAt)
	assert.Equal(t, start, report.FinishedAt)
	assert.Equal(t, start, report.Results[1].StartedAt)
	assert.Zero(t, report.Results[1].Duration)
}

func TestCheckReadiness(t *testing.T) {
	exec := pipeline.New(pipeline.ProcessorFunc(echo), discardLogger(), observability.NewMetricsForTesting(), pipeline.Options{})

	require.Error(t, exec.CheckReadiness(context.Background()))
	assert.Positive(t, exec.Workers())

	exec.Run(context.Background(), makeBatch(1))
	assert.NoError(t, exec.CheckReadiness(context.Background()))
}

func TestProgress(t *testing.T) {
	batch := makeBatch(3)
	proc := pipeline.ProcessorFunc(func(ctx context.Context, u domain.WorkUnit) (domain.Artifact, error) {
		if u.Key == "basin00_pr_sum" {
			return domain.Artifact{}, errors.New("reduce: unknown statistical operator")
		}
		return echo(ctx, u)
	})
	exec := pipeline.New(proc, discardLogger(), observability.NewMetricsForTesting(), pipeline.Options{Workers: 2})
	assert.Equal(t, pipeline.Progress{}, exec.Progress())

	report := exec.Run(context.Background(), batch)

	assert.Equal(t, pipeline.Progress{RunID: report.RunID, Total: 3, Done: 3, Failed: 1}, exec.Progress())
}
