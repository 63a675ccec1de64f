package zonal

import "errors"

var (
	// ErrEmptyIntersection is returned when no grid cell overlaps the catchment.
	ErrEmptyIntersection = errors.New("catchment does not intersect the raster grid")
	// ErrNoDataVariable is returned when a raster has no variable on its lat/lon grid.
	ErrNoDataVariable = errors.New("no data variable on a latitude/longitude grid")
	// ErrUnsupportedLayout is returned for rasters that are not rectilinear
	// [time,] lat, lon grids.
	ErrUnsupportedLayout = errors.New("unsupported raster layout")
	// ErrUnsupportedCalendar is returned when CF time values cannot be turned
	// into timestamps.
	ErrUnsupportedCalendar = errors.New("unsupported calendar")
)
