package fixture

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
)

// Demo layout: two 3×4 one-degree rasters over lon 0..4, lat 50..53, and two
// catchments. The pr raster has one missing cell on its second step.
var (
	demoLat   = []float64{50.5, 51.5, 52.5}
	demoLon   = []float64{0.5, 1.5, 2.5, 3.5}
	demoTimes = []float64{0, 1, 2, 3}
)

// DemoRasters lists the raster file names written by WriteDemo.
var DemoRasters = []string{"pr_1950.nc", "tas_1950.nc"}

// DemoShapes lists the shapefile names written by WriteDemo.
var DemoShapes = []string{"basinA.shp", "basinB.shp"}

// WriteDemo writes the demo rasters to rasterDir and the demo catchments to
// shapeDir, creating both directories.
func WriteDemo(rasterDir, shapeDir string) error {
	for _, dir := range []string{rasterDir, shapeDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("fixture: %w", err)
		}
	}

	rasters := []Raster{
		{
			Variable:     "pr",
			StandardName: "precipitation_flux",
			Units:        "kg m-2 s-1",
			Value: func(t, y, x int) float64 {
				if t == 1 && y == 2 && x == 3 {
					return math.NaN()
				}
				return 1e-5 * float64(1+t+y+x)
			},
		},
		{
			Variable:     "tas",
			StandardName: "air_temperature",
			LongName:     "Near-Surface Air Temperature",
			Units:        "K",
			Value: func(t, y, x int) float64 {
				return 275 + float64(t) - 0.5*float64(y) + 0.25*float64(x)
			},
		},
	}
	for i, r := range rasters {
		r.Lat, r.Lon = demoLat, demoLon
		r.Bounds, r.Step = true, 1
		r.Times = demoTimes
		r.TimeUnits = "days since 1950-01-01 00:00:00"
		r.Calendar = "standard"
		if err := WriteRaster(filepath.Join(rasterDir, DemoRasters[i]), r); err != nil {
			return err
		}
	}

	if err := WriteCatchment(filepath.Join(shapeDir, DemoShapes[0]), "basinA",
		Rect(0.25, 50.25, 2.75, 51.75)); err != nil {
		return err
	}
	// basinB is an L shape made of two parts.
	return WriteCatchment(filepath.Join(shapeDir, DemoShapes[1]), "basinB",
		Rect(2.2, 51.2, 3.8, 52.8),
		Rect(0.6, 52.1, 2.1, 52.9))
}
