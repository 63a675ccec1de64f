package zonal

import (
	"io"
	"log/slog"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/catchment-stats/internal/fixture"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// oneDegreeGrid is a 2×2 grid of 1° cells spanning lon 0..2, lat 0..2.
func oneDegreeGrid(steps int, value func(t, y, x int) float64) *Grid {
	g := &Grid{
		Variable:  "pr",
		Name:      "precipitation_flux",
		Attrs:     map[string]string{"units": "kg m-2 s-1"},
		Lat:       []float64{0.5, 1.5},
		Lon:       []float64{0.5, 1.5},
		LatBounds: [][2]float64{{0, 1}, {1, 2}},
		LonBounds: [][2]float64{{0, 1}, {1, 2}},
	}
	if steps > 0 {
		for t := range steps {
			g.Time.Values = append(g.Time.Values, float64(t))
		}
		g.Time.Units = "days since 1950-01-01"
	}
	for t := range g.Steps() {
		for y := range 2 {
			for x := range 2 {
				g.Values = append(g.Values, value(t, y, x))
			}
		}
	}
	return g
}

// writeExampleInputs writes tas_1950.nc (3 daily steps, 2×2 cells) and
// basinA.shp covering the west column and half of the east column.
func writeExampleInputs(t *testing.T) (rasterPath, shapePath string) {
	t.Helper()
	dir := t.TempDir()
	rasterPath = filepath.Join(dir, "tas_1950.nc")
	shapePath = filepath.Join(dir, "basinA.shp")

	require.NoError(t, fixture.WriteRaster(rasterPath, fixture.Raster{
		Variable:     "tas",
		StandardName: "air_temperature",
		Units:        "K",
		Lat:          []float64{0.5, 1.5},
		Lon:          []float64{0.5, 1.5},
		Bounds:       true,
		Step:         1,
		Times:        []float64{0, 1, 2},
		TimeUnits:    "days since 1950-01-01",
		Calendar:     "standard",
		Value: func(t, y, x int) float64 {
			if t == 2 && y == 1 && x == 1 {
				return math.NaN()
			}
			return float64(280 + t + 10*x)
		},
	}))
	require.NoError(t, fixture.WriteCatchment(shapePath, "basinA", fixture.Rect(-0.5, -0.5, 1.5, 2.5)))
	return rasterPath, shapePath
}

func isNaN(v float64) bool { return math.IsNaN(v) }
