package zonal

import (
	"fmt"
	"math"
	"time"

	"github.com/couchcryptid/catchment-stats/internal/domain"
)

// Grid is a rectilinear latitude/longitude raster held in memory. Values are
// laid out [time][lat][lon]; missing cells are NaN.
type Grid struct {
	Variable string            // variable name in the source file
	Name     string            // statistic name: standard_name, long_name or Variable
	Attrs    map[string]string // string attributes of the data variable

	Lat, Lon             []float64
	LatBounds, LonBounds [][2]float64

	Time   TimeAxis
	Values []float64
}

// TimeAxis is a CF time coordinate. An empty Values means the raster has no
// time dimension and is treated as a single step.
type TimeAxis struct {
	Values   []float64
	Units    string
	Calendar string
}

// Steps is the number of time steps, at least 1.
func (a TimeAxis) Steps() int {
	if len(a.Values) == 0 {
		return 1
	}
	return len(a.Values)
}

// Timestamps decodes the axis into UTC times.
func (a TimeAxis) Timestamps() ([]time.Time, error) {
	if len(a.Values) == 0 {
		return nil, nil
	}
	return DecodeTimes(a.Values, a.Units, a.Calendar)
}

// Steps is the number of time steps, at least 1.
func (g *Grid) Steps() int { return g.Time.Steps() }

// At returns the value of cell (y, x) at time step t.
func (g *Grid) At(t, y, x int) float64 {
	return g.Values[(t*len(g.Lat)+y)*len(g.Lon)+x]
}

// Validate checks that the value and bounds arrays match the axes.
func (g *Grid) Validate() error {
	ny, nx := len(g.Lat), len(g.Lon)
	if ny == 0 || nx == 0 {
		return fmt.Errorf("%w: empty latitude or longitude axis", ErrUnsupportedLayout)
	}
	if len(g.LatBounds) != ny || len(g.LonBounds) != nx {
		return fmt.Errorf("%w: cell bounds do not match axes", ErrUnsupportedLayout)
	}
	if want := g.Steps() * ny * nx; len(g.Values) != want {
		return fmt.Errorf("%w: %d values for %d cells", ErrUnsupportedLayout, len(g.Values), want)
	}
	return nil
}

// CellWeight is one grid cell that overlaps the catchment.
type CellWeight struct {
	Y, X     int
	Fraction float64 // share of the cell inside the catchment, (0, 1]
	Area     float64 // cell area on the sphere, m²
}

// Weight is the cell's area inside the catchment, m².
func (c CellWeight) Weight() float64 { return c.Fraction * c.Area }

// Extraction is a raster restricted to a catchment, before any statistic is
// taken. Cells are ordered by (Y, X).
type Extraction struct {
	Grid  *Grid
	Cells []CellWeight
}

// Masked returns a copy of the grid with every cell outside the catchment set
// to NaN.
func (e *Extraction) Masked() *Grid {
	g := *e.Grid
	ny, nx := len(g.Lat), len(g.Lon)
	inside := make([]bool, ny*nx)
	for _, c := range e.Cells {
		inside[c.Y*nx+c.X] = true
	}
	g.Values = make([]float64, len(e.Grid.Values))
	for i, v := range e.Grid.Values {
		if inside[i%(ny*nx)] {
			g.Values[i] = v
		} else {
			g.Values[i] = math.NaN()
		}
	}
	return &g
}

// Series is a reduced catchment time series, ready for export.
type Series struct {
	Variable string
	Name     string
	Operator domain.Operator
	Attrs    map[string]string
	Time     TimeAxis
	Values   []float64

	// Provenance written into artifact metadata.
	Raster string
	Shape  string
}
