// Package fixture writes small NetCDF rasters and polygon shapefiles for
// tests and demo runs.
package fixture

import (
	"fmt"
	"math"
	"os"

	"github.com/ctessum/cdf"
	goshp "github.com/jonas-p/go-shp"
)

// DefaultFill is the _FillValue written when a Raster has missing cells.
const DefaultFill float32 = -9999

// Raster describes a [time,] lat, lon NetCDF file.
type Raster struct {
	Variable     string
	StandardName string
	LongName     string
	Units        string

	Lat, Lon []float64
	// Bounds adds lat_bnds/lon_bnds variables of width Step around each point.
	Bounds bool
	Step   float64

	Times     []float64 // empty for a raster without time axis
	TimeUnits string
	Calendar  string

	// Value returns the cell value; NaN is written as DefaultFill.
	Value func(t, y, x int) float64
}

// WriteRaster writes r to path as a classic NetCDF file.
func WriteRaster(path string, r Raster) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := writeRasterData(f, rasterHeader(r), r); err != nil {
		f.Close()
		return fmt.Errorf("fixture: write %s: %w", path, err)
	}
	return f.Close()
}

func rasterHeader(r Raster) *cdf.Header {
	ny, nx, nt := len(r.Lat), len(r.Lon), len(r.Times)

	dims := []string{"lat", "lon"}
	lengths := []int{ny, nx}
	if r.Bounds {
		dims = append(dims, "nv")
		lengths = append(lengths, 2)
	}
	if nt > 0 {
		dims = append(dims, "time")
		lengths = append(lengths, nt)
	}
	h := cdf.NewHeader(dims, lengths)
	h.AddAttribute("", "Conventions", "CF-1.7")

	h.AddVariable("lat", []string{"lat"}, []float64{0})
	h.AddAttribute("lat", "units", "degrees_north")
	h.AddAttribute("lat", "standard_name", "latitude")
	h.AddVariable("lon", []string{"lon"}, []float64{0})
	h.AddAttribute("lon", "units", "degrees_east")
	h.AddAttribute("lon", "standard_name", "longitude")
	if r.Bounds {
		h.AddAttribute("lat", "bounds", "lat_bnds")
		h.AddAttribute("lon", "bounds", "lon_bnds")
		h.AddVariable("lat_bnds", []string{"lat", "nv"}, []float64{0})
		h.AddVariable("lon_bnds", []string{"lon", "nv"}, []float64{0})
	}

	varDims := []string{"lat", "lon"}
	if nt > 0 {
		h.AddVariable("time", []string{"time"}, []float64{0})
		h.AddAttribute("time", "standard_name", "time")
		h.AddAttribute("time", "units", r.TimeUnits)
		if r.Calendar != "" {
			h.AddAttribute("time", "calendar", r.Calendar)
		}
		varDims = []string{"time", "lat", "lon"}
	}

	h.AddVariable(r.Variable, varDims, []float32{0})
	if r.StandardName != "" {
		h.AddAttribute(r.Variable, "standard_name", r.StandardName)
	}
	if r.LongName != "" {
		h.AddAttribute(r.Variable, "long_name", r.LongName)
	}
	if r.Units != "" {
		h.AddAttribute(r.Variable, "units", r.Units)
	}
	h.AddAttribute(r.Variable, "_FillValue", []float32{DefaultFill})
	h.Define()
	return h
}

func writeRasterData(f *os.File, h *cdf.Header, r Raster) error {
	nf, err := cdf.Create(f, h)
	if err != nil {
		return err
	}
	ny, nx, nt := len(r.Lat), len(r.Lon), len(r.Times)

	write := func(name string, data any) error {
		end := nf.Header.Lengths(name)
		start := make([]int, len(end))
		if _, err := nf.Writer(name, start, end).Write(data); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		return nil
	}

	if err := write("lat", r.Lat); err != nil {
		return err
	}
	if err := write("lon", r.Lon); err != nil {
		return err
	}
	if r.Bounds {
		if err := write("lat_bnds", edges(r.Lat, r.Step)); err != nil {
			return err
		}
		if err := write("lon_bnds", edges(r.Lon, r.Step)); err != nil {
			return err
		}
	}
	steps := 1
	if nt > 0 {
		steps = nt
		if err := write("time", r.Times); err != nil {
			return err
		}
	}

	data := make([]float32, 0, steps*ny*nx)
	for t := range steps {
		for y := range ny {
			for x := range nx {
				v := r.Value(t, y, x)
				if math.IsNaN(v) {
					data = append(data, DefaultFill)
				} else {
					data = append(data, float32(v))
				}
			}
		}
	}
	if err := write(r.Variable, data); err != nil {
		return err
	}
	return cdf.UpdateNumRecs(f)
}

func edges(points []float64, step float64) []float64 {
	out := make([]float64, 0, 2*len(points))
	for _, p := range points {
		out = append(out, p-step/2, p+step/2)
	}
	return out
}

// Point is a longitude/latitude vertex.
type Point struct{ X, Y float64 }

// Rect returns the clockwise ring of a lon/lat box.
func Rect(minX, minY, maxX, maxY float64) []Point {
	return []Point{{minX, minY}, {minX, maxY}, {maxX, maxY}, {maxX, minY}}
}

// WriteCatchment writes a single-record polygon shapefile (.shp, .shx, .dbf)
// with a NAME attribute. Each ring is closed if needed.
func WriteCatchment(path, name string, rings ...[]Point) error {
	w, err := goshp.Create(path, goshp.POLYGON)
	if err != nil {
		return fmt.Errorf("fixture: create %s: %w", path, err)
	}
	defer w.Close()

	w.SetFields([]goshp.Field{goshp.StringField("NAME", 32)})

	parts := make([][]goshp.Point, 0, len(rings))
	for _, ring := range rings {
		part := make([]goshp.Point, 0, len(ring)+1)
		for _, p := range ring {
			part = append(part, goshp.Point{X: p.X, Y: p.Y})
		}
		if first, last := ring[0], ring[len(ring)-1]; first != last {
			part = append(part, goshp.Point{X: first.X, Y: first.Y})
		}
		parts = append(parts, part)
	}
	poly := goshp.Polygon(*goshp.NewPolyLine(parts))
	row := w.Write(&poly)
	w.WriteAttribute(int(row), 0, name)
	return nil
}
