package planner

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/catchment-stats/internal/domain"
	"github.com/couchcryptid/catchment-stats/internal/observability"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func touch(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, n := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, n), nil, 0o600))
	}
}

func TestDiscover_FiltersAndSorts(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "tas_1950.nc", "PR_1950.NC", "notes.txt", "basin.shp.xml")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.nc"), 0o755))

	// Symlinks to files count, links to directories and dangling links don't.
	store := t.TempDir()
	touch(t, store, "huss_1950.nc")
	require.NoError(t, os.Symlink(filepath.Join(store, "huss_1950.nc"), filepath.Join(dir, "huss_1950.nc")))
	require.NoError(t, os.Symlink(store, filepath.Join(dir, "linked_dir.nc")))
	require.NoError(t, os.Symlink(filepath.Join(store, "gone.nc"), filepath.Join(dir, "dangling.nc")))

	files, err := Discover(dir, []string{".nc"})
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "PR_1950.NC"),
		filepath.Join(dir, "huss_1950.nc"),
		filepath.Join(dir, "tas_1950.nc"),
	}, files)
}

func TestDiscover_SymlinkOnlyDirectory(t *testing.T) {
	store, dir := t.TempDir(), t.TempDir()
	touch(t, store, "tas_1950.nc")
	require.NoError(t, os.Symlink(filepath.Join(store, "tas_1950.nc"), filepath.Join(dir, "tas_1950.nc")))

	files, err := Discover(dir, []string{".nc"})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "tas_1950.nc")}, files)
}

func TestDiscover_MissingDir(t *testing.T) {
	_, err := Discover(filepath.Join(t.TempDir(), "missing"), []string{".nc"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDiscovery)
}

func TestPlan_ExampleBatch(t *testing.T) {
	rasterDir, shapeDir, outDir := t.TempDir(), t.TempDir(), "/out"
	touch(t, rasterDir, "tas_1950.nc", "pr_1950.nc")
	touch(t, shapeDir, "basinB.shp", "basinA.shp", "basinA.dbf")

	metrics := observability.NewMetricsForTesting()
	p := New(Options{
		RasterDir:        rasterDir,
		ShapeDir:         shapeDir,
		OutputDir:        outDir,
		RasterExtensions: []string{".nc"},
		ShapeExtensions:  []string{".shp"},
	}, discardLogger(), metrics)

	batch, err := p.Plan(context.Background())
	require.NoError(t, err)

	shpA := filepath.Join(shapeDir, "basinA.shp")
	shpB := filepath.Join(shapeDir, "basinB.shp")
	pr := filepath.Join(rasterDir, "pr_1950.nc")
	tas := filepath.Join(rasterDir, "tas_1950.nc")
	want := []domain.WorkUnit{
		{ShapePath: shpA, RasterPath: pr, Operator: domain.OpSum, OutputDir: outDir, Key: "basinA_pr_sum"},
		{ShapePath: shpA, RasterPath: tas, Operator: domain.OpMean, OutputDir: outDir, Key: "basinA_tas_mean"},
		{ShapePath: shpB, RasterPath: pr, Operator: domain.OpSum, OutputDir: outDir, Key: "basinB_pr_sum"},
		{ShapePath: shpB, RasterPath: tas, Operator: domain.OpMean, OutputDir: outDir, Key: "basinB_tas_mean"},
	}
	if diff := cmp.Diff(want, batch.Units); diff != "" {
		t.Errorf("units mismatch (-want +got):\n%s", diff)
	}
	assert.InDelta(t, 4, testutil.ToFloat64(metrics.UnitsPlanned), 0)
}

func TestBuild_EveryPairExactlyOnce(t *testing.T) {
	for _, tc := range []struct{ shapes, rasters int }{
		{1, 1}, {2, 3}, {5, 2}, {4, 4},
	} {
		var shapes, rasters []string
		for i := range tc.shapes {
			shapes = append(shapes, filepath.Join("/s", string(rune('a'+i))+".shp"))
		}
		for j := range tc.rasters {
			rasters = append(rasters, filepath.Join("/r", string(rune('a'+j))+"_x.nc"))
		}

		batch := Build(shapes, rasters, domain.DefaultOperatorRule(), "/out", false, discardLogger())
		require.Equal(t, tc.shapes*tc.rasters, batch.Len())

		seen := make(map[[2]string]int)
		keys := make(map[string]bool)
		for _, u := range batch.Units {
			seen[[2]string{u.ShapePath, u.RasterPath}]++
			assert.False(t, keys[u.Key], "duplicate key %s", u.Key)
			keys[u.Key] = true
		}
		for _, s := range shapes {
			for _, r := range rasters {
				assert.Equal(t, 1, seen[[2]string{s, r}], "pair %s %s", s, r)
			}
		}
		assert.Len(t, batch.Shapes(), batch.Len())
		assert.Len(t, batch.Rasters(), batch.Len())
		assert.Len(t, batch.Operators(), batch.Len())
		assert.Len(t, batch.OutputDirs(), batch.Len())
	}
}

func TestBuild_KeyCollision(t *testing.T) {
	shapes := []string{"/s/basinA.shp"}
	rasters := []string{"/r/pr_1950.nc", "/r/pr_1951.nc"}

	batch := Build(shapes, rasters, domain.DefaultOperatorRule(), "/out", false, discardLogger())
	require.Equal(t, 2, batch.Len())
	assert.Equal(t, "basinA_pr_sum", batch.Units[0].Key)
	assert.Equal(t, "basinA_pr_sum_"+domain.PairHash("/s/basinA.shp", "/r/pr_1951.nc"), batch.Units[1].Key)
}

func TestBuild_HashedScheme(t *testing.T) {
	batch := Build([]string{"/s/basinA.shp"}, []string{"/r/tas_1950.nc"}, domain.DefaultOperatorRule(), "/out", true, discardLogger())
	require.Equal(t, 1, batch.Len())
	assert.Equal(t, "basinA_tas_mean_"+domain.PairHash("/s/basinA.shp", "/r/tas_1950.nc"), batch.Units[0].Key)
}

func TestPlan_EmptyShapeDir(t *testing.T) {
	rasterDir := t.TempDir()
	touch(t, rasterDir, "tas_1950.nc", "pr_1950.nc")

	p := New(Options{
		RasterDir:        rasterDir,
		ShapeDir:         t.TempDir(),
		OutputDir:        "/out",
		RasterExtensions: []string{".nc"},
		ShapeExtensions:  []string{".shp"},
	}, discardLogger(), observability.NewMetricsForTesting())

	batch, err := p.Plan(context.Background())
	require.NoError(t, err)
	assert.True(t, batch.Empty())
}

func TestPlan_MissingRasterDir(t *testing.T) {
	p := New(Options{
		RasterDir:        filepath.Join(t.TempDir(), "nope"),
		ShapeDir:         t.TempDir(),
		RasterExtensions: []string{".nc"},
		ShapeExtensions:  []string{".shp"},
	}, discardLogger(), observability.NewMetricsForTesting())

	_, err := p.Plan(context.Background())
	assert.True(t, errors.Is(err, ErrDiscovery))
}

func TestPlan_CustomRule(t *testing.T) {
	rasterDir, shapeDir := t.TempDir(), t.TempDir()
	touch(t, rasterDir, "tasmax_1950.nc")
	touch(t, shapeDir, "basinA.shp")

	rule := domain.OperatorRuleFunc(func(string) domain.Operator { return domain.OpMax })
	p := New(Options{
		RasterDir:        rasterDir,
		ShapeDir:         shapeDir,
		OutputDir:        "/out",
		RasterExtensions: []string{".nc"},
		ShapeExtensions:  []string{".shp"},
		Rule:             rule,
	}, discardLogger(), observability.NewMetricsForTesting())

	batch, err := p.Plan(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, batch.Len())
	assert.Equal(t, domain.OpMax, batch.Units[0].Operator)
	assert.Equal(t, "basinA_tasmax_max", batch.Units[0].Key)
}
