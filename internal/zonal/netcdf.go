package zonal

import (
	"context"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/ctessum/geom"

	"github.com/couchcryptid/catchment-stats/internal/domain"
)

// NetCDFLoader reads a rectilinear grid from a NetCDF-3 or NetCDF-4 file.
type NetCDFLoader struct{}

// Load opens the raster and reads its data variable with coordinates, cell
// bounds and time axis. Fill values become NaN and packed values are unpacked.
//
// When window is non-nil only the rows and columns whose cells overlap it are
// read, one time step at a time, so memory stays proportional to the window.
// A window that misses the grid entirely yields ErrEmptyIntersection.
func (NetCDFLoader) Load(ctx context.Context, path string, window *geom.Bounds) (*Grid, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	nc, err := netcdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer nc.Close()

	ds, err := readDataset(nc)
	if err != nil {
		return nil, err
	}
	return ds.grid(ctx, domain.RasterToken(path), window)
}

// ncVar is a variable's metadata; values are read on demand.
type ncVar struct {
	name  string
	dims  []string
	attrs map[string]any
	get   api.VarGetter
}

func (v *ncVar) str(key string) string {
	s, _ := v.attrs[key].(string)
	return strings.TrimSpace(s)
}

func (v *ncVar) num(key string) (float64, bool) {
	a, ok := v.attrs[key]
	if !ok {
		return 0, false
	}
	return scalar(a)
}

// floats reads the whole variable. Use it for coordinates, not data.
func (v *ncVar) floats() ([]float64, error) {
	vals, err := v.get.Values()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", v.name, err)
	}
	out, err := flatten(vals)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", v.name, err)
	}
	return out, nil
}

type dataset struct {
	vars  map[string]*ncVar
	order []string
}

func readDataset(nc api.Group) (*dataset, error) {
	ds := &dataset{vars: make(map[string]*ncVar)}
	names := nc.ListVariables()
	slices.Sort(names)
	for _, name := range names {
		vg, err := nc.GetVarGetter(name)
		if err != nil {
			return nil, fmt.Errorf("open variable %s: %w", name, err)
		}
		attrs := make(map[string]any)
		if am := vg.Attributes(); am != nil {
			for _, k := range am.Keys() {
				if val, ok := am.Get(k); ok {
					attrs[k] = val
				}
			}
		}
		ds.vars[name] = &ncVar{name: name, dims: vg.Dimensions(), attrs: attrs, get: vg}
		ds.order = append(ds.order, name)
	}
	return ds, nil
}

// coord finds a one-dimensional coordinate variable by name, standard_name
// or units.
func (ds *dataset) coord(names []string, standardName string, units []string) *ncVar {
	for _, name := range ds.order {
		v := ds.vars[name]
		if len(v.dims) != 1 {
			continue
		}
		if slices.Contains(names, strings.ToLower(name)) ||
			strings.EqualFold(v.str("standard_name"), standardName) ||
			slices.Contains(units, strings.ToLower(v.str("units"))) {
			return v
		}
	}
	return nil
}

func (ds *dataset) grid(ctx context.Context, token string, window *geom.Bounds) (*Grid, error) {
	lat := ds.coord([]string{"lat", "latitude"}, "latitude",
		[]string{"degrees_north", "degree_north", "degree_n", "degrees_n"})
	lon := ds.coord([]string{"lon", "longitude"}, "longitude",
		[]string{"degrees_east", "degree_east", "degree_e", "degrees_e"})
	if lat == nil || lon == nil {
		return nil, fmt.Errorf("%w: latitude/longitude coordinates not found", ErrUnsupportedLayout)
	}
	tvar := ds.coord([]string{"time"}, "time", nil)

	data, err := ds.dataVariable(lat, lon, tvar, token)
	if err != nil {
		return nil, err
	}

	g := &Grid{
		Variable: data.name,
		Name:     statisticName(data),
		Attrs:    stringAttrs(data),
	}
	if g.Lat, err = lat.floats(); err != nil {
		return nil, err
	}
	if g.Lon, err = lon.floats(); err != nil {
		return nil, err
	}
	if g.LatBounds, err = ds.bounds(lat, g.Lat); err != nil {
		return nil, err
	}
	for i := range g.LatBounds {
		g.LatBounds[i][0] = clampLat(g.LatBounds[i][0])
		g.LatBounds[i][1] = clampLat(g.LatBounds[i][1])
	}
	if g.LonBounds, err = ds.bounds(lon, g.Lon); err != nil {
		return nil, err
	}

	y0, y1, x0, x1 := 0, len(g.Lat), 0, len(g.Lon)
	if window != nil {
		y0, y1 = overlapRange(g.LatBounds, window.Min.Y, window.Max.Y)
		lonBounds := g.LonBounds
		if window.Min.X < 0 && maxLon(lonBounds) > 180 {
			lonBounds = shiftLongitudes(lonBounds)
		}
		x0, x1 = overlapRange(lonBounds, window.Min.X, window.Max.X)
		if y0 == y1 || x0 == x1 {
			return nil, fmt.Errorf("%w: window %v..%v is outside the grid", ErrEmptyIntersection, window.Min, window.Max)
		}
		g.Lat, g.LatBounds = g.Lat[y0:y1], g.LatBounds[y0:y1]
		g.Lon, g.LonBounds = g.Lon[x0:x1], g.LonBounds[x0:x1]
	}

	if tvar != nil && len(data.dims) == 3 {
		if g.Time.Values, err = tvar.floats(); err != nil {
			return nil, err
		}
		g.Time.Units = tvar.str("units")
		g.Time.Calendar = tvar.str("calendar")
	}

	if g.Values, err = readWindow(ctx, data, lat.dims[0], lon.dims[0], g.Steps(), y0, y1, x0, x1); err != nil {
		return nil, err
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

// overlapRange returns the index range [first, last+1) of the cells whose
// bounds overlap (lo, hi), or (0, 0) when none do. Coordinates are monotonic,
// so overlapping cells are contiguous.
func overlapRange(bounds [][2]float64, lo, hi float64) (int, int) {
	first, last := -1, -1
	for i, b := range bounds {
		if b[1] <= lo || b[0] >= hi {
			continue
		}
		if first < 0 {
			first = i
		}
		last = i
	}
	if first < 0 {
		return 0, 0
	}
	return first, last + 1
}

// readWindow reads rows [y0, y1) and columns [x0, x1) of data one time step
// at a time and returns them unpacked in [time][lat][lon] order.
func readWindow(ctx context.Context, data *ncVar, latDim, lonDim string, steps, y0, y1, x0, x1 int) ([]float64, error) {
	ny, nx := y1-y0, x1-x0
	lonFirst := data.dims[len(data.dims)-1] == latDim
	out := make([]float64, 0, steps*ny*nx)

	begin := make([]int64, len(data.dims))
	end := make([]int64, len(data.dims))
	for t := range steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for i, d := range data.dims {
			switch d {
			case latDim:
				begin[i], end[i] = int64(y0), int64(y1)
			case lonDim:
				begin[i], end[i] = int64(x0), int64(x1)
			default:
				begin[i], end[i] = int64(t), int64(t+1)
			}
		}
		vals, err := data.get.GetSliceMD(begin, end)
		if err != nil {
			return nil, fmt.Errorf("read %s step %d: %w", data.name, t, err)
		}
		plane, err := flatten(vals)
		if err != nil {
			return nil, fmt.Errorf("read %s step %d: %w", data.name, t, err)
		}
		if len(plane) != ny*nx {
			return nil, fmt.Errorf("%w: %s step %d has %d values for %d cells", ErrUnsupportedLayout, data.name, t, len(plane), ny*nx)
		}
		unpack(data, plane)
		if lonFirst {
			plane = transposeLast(plane, nx, ny)
		}
		out = append(out, plane...)
	}
	return out, nil
}

// dataVariable picks the variable laid out on the lat/lon grid. When several
// qualify, the one named like the raster file's leading token wins, then the
// first in name order.
func (ds *dataset) dataVariable(lat, lon, tvar *ncVar, token string) (*ncVar, error) {
	latDim, lonDim := lat.dims[0], lon.dims[0]
	var candidates []*ncVar
	for _, name := range ds.order {
		v := ds.vars[name]
		if v == lat || v == lon || v == tvar || ds.isBounds(name) {
			continue
		}
		if slices.Contains(v.dims, latDim) && slices.Contains(v.dims, lonDim) {
			candidates = append(candidates, v)
		}
	}
	if len(candidates) == 0 {
		return nil, ErrNoDataVariable
	}

	chosen := candidates[0]
	for _, v := range candidates {
		if strings.EqualFold(v.name, token) {
			chosen = v
			break
		}
	}

	d := chosen.dims
	switch {
	case len(d) == 2 && isPair(d, latDim, lonDim):
	case len(d) == 3 && tvar != nil && d[0] == tvar.dims[0] && isPair(d[1:], latDim, lonDim):
	default:
		return nil, fmt.Errorf("%w: variable %s has dimensions %v", ErrUnsupportedLayout, chosen.name, d)
	}
	return chosen, nil
}

func isPair(d []string, a, b string) bool {
	return (d[0] == a && d[1] == b) || (d[0] == b && d[1] == a)
}

func (ds *dataset) isBounds(name string) bool {
	for _, v := range ds.vars {
		if v.str("bounds") == name {
			return true
		}
	}
	lower := strings.ToLower(name)
	return strings.HasSuffix(lower, "_bnds") || strings.HasSuffix(lower, "_bounds")
}

// bounds reads the coordinate's bounds variable, or guesses contiguous bounds
// halfway between neighbouring points.
func (ds *dataset) bounds(c *ncVar, points []float64) ([][2]float64, error) {
	if name := c.str("bounds"); name != "" {
		if bv, ok := ds.vars[name]; ok {
			flat, err := bv.floats()
			if err != nil {
				return nil, err
			}
			if len(flat) != 2*len(points) {
				return nil, fmt.Errorf("%w: %s has %d values for %d cells", ErrUnsupportedLayout, name, len(flat), len(points))
			}
			out := make([][2]float64, len(points))
			for i := range out {
				lo, hi := flat[2*i], flat[2*i+1]
				out[i] = [2]float64{math.Min(lo, hi), math.Max(lo, hi)}
			}
			return out, nil
		}
	}
	return guessBounds(c.name, points)
}

func guessBounds(name string, points []float64) ([][2]float64, error) {
	n := len(points)
	if n < 2 {
		return nil, fmt.Errorf("%w: cannot guess bounds of %s from %d point(s)", ErrUnsupportedLayout, name, n)
	}
	edges := make([]float64, n+1)
	for i := 1; i < n; i++ {
		edges[i] = (points[i-1] + points[i]) / 2
	}
	edges[0] = points[0] - (edges[1] - points[0])
	edges[n] = points[n-1] + (points[n-1] - edges[n-1])

	out := make([][2]float64, n)
	for i := range out {
		out[i] = [2]float64{math.Min(edges[i], edges[i+1]), math.Max(edges[i], edges[i+1])}
	}
	return out, nil
}

func clampLat(v float64) float64 {
	return math.Max(-90, math.Min(90, v))
}

// unpack replaces fill values with NaN and applies scale_factor/add_offset.
func unpack(v *ncVar, vals []float64) {
	var fills []float64
	for _, key := range []string{"_FillValue", "missing_value"} {
		if f, ok := v.num(key); ok {
			fills = append(fills, f)
		}
	}
	scale, hasScale := v.num("scale_factor")
	offset, hasOffset := v.num("add_offset")
	if !hasScale {
		scale = 1
	}

	for i, x := range vals {
		if slices.Contains(fills, x) {
			vals[i] = math.NaN()
			continue
		}
		if hasScale || hasOffset {
			vals[i] = x*scale + offset
		}
	}
}

// transposeLast swaps the two trailing axes of a [steps][a][b] array.
func transposeLast(vals []float64, a, b int) []float64 {
	out := make([]float64, len(vals))
	plane := a * b
	for s := 0; s < len(vals)/plane; s++ {
		for i := range a {
			for j := range b {
				out[s*plane+j*a+i] = vals[s*plane+i*b+j]
			}
		}
	}
	return out
}

func statisticName(v *ncVar) string {
	if s := v.str("standard_name"); s != "" {
		return s
	}
	if s := v.str("long_name"); s != "" {
		return s
	}
	return v.name
}

// stringAttrs keeps the text attributes worth carrying into an artifact.
func stringAttrs(v *ncVar) map[string]string {
	out := make(map[string]string)
	for k, a := range v.attrs {
		if strings.HasPrefix(k, "_") || k == "cell_methods" || k == "coordinates" {
			continue
		}
		if s, ok := a.(string); ok {
			out[k] = s
		}
	}
	return out
}
