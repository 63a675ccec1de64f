package zonal

import (
	"context"
	"fmt"
	"math"

	"github.com/ctessum/geom"
)

// EarthRadius is the spherical Earth radius used for cell areas, in metres.
const EarthRadius = 6367470.0

// AreaExtractor restricts a grid to the cells a catchment overlaps and
// weights each by the area of the overlap.
type AreaExtractor struct{}

// Extract returns the covered cells ordered by (Y, X). A cell's Fraction is
// the share of its lon/lat box inside the catchment and its Area is the
// spherical area of the whole cell.
func (AreaExtractor) Extract(ctx context.Context, g *Grid, c *Catchment) (*Extraction, error) {
	outline := c.Outline()
	cb := c.Bounds()
	lonBounds := g.LonBounds
	if cb.Min.X < 0 && maxLon(g.LonBounds) > 180 {
		lonBounds = shiftLongitudes(g.LonBounds)
	}

	ext := &Extraction{Grid: g}
	for y, lb := range g.LatBounds {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if lb[1] <= cb.Min.Y || lb[0] >= cb.Max.Y {
			continue
		}
		for x, xb := range lonBounds {
			if xb[1] <= cb.Min.X || xb[0] >= cb.Max.X {
				continue
			}
			box := cellBox(xb, lb)
			frac := overlapFraction(outline, box)
			if frac <= 0 {
				continue
			}
			ext.Cells = append(ext.Cells, CellWeight{
				Y:        y,
				X:        x,
				Fraction: math.Min(frac, 1),
				Area:     sphericalArea(xb, lb),
			})
		}
	}

	if len(ext.Cells) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyIntersection, c.Name)
	}
	return ext, nil
}

func cellBox(lon, lat [2]float64) geom.Polygon {
	return geom.Polygon{{
		{X: lon[0], Y: lat[0]},
		{X: lon[1], Y: lat[0]},
		{X: lon[1], Y: lat[1]},
		{X: lon[0], Y: lat[1]},
	}}
}

// overlapFraction is the area of box covered by outline divided by the area
// of box, both in degree space.
func overlapFraction(outline, box geom.Polygon) float64 {
	boxArea := math.Abs(box.Area())
	if boxArea == 0 {
		return 0
	}
	inter := outline.Intersection(box)
	if len(inter) == 0 {
		return 0
	}
	return math.Abs(inter.Area()) / boxArea
}

// sphericalArea is the area of a lon/lat box on a sphere of EarthRadius.
func sphericalArea(lon, lat [2]float64) float64 {
	rad := math.Pi / 180
	return EarthRadius * EarthRadius *
		math.Abs(math.Sin(lat[1]*rad)-math.Sin(lat[0]*rad)) *
		math.Abs(lon[1]-lon[0]) * rad
}

func maxLon(bounds [][2]float64) float64 {
	m := math.Inf(-1)
	for _, b := range bounds {
		m = math.Max(m, b[1])
	}
	return m
}

// shiftLongitudes maps cells east of 180° into the -180..180 range.
func shiftLongitudes(bounds [][2]float64) [][2]float64 {
	out := make([][2]float64, len(bounds))
	for i, b := range bounds {
		if (b[0]+b[1])/2 > 180 {
			b[0] -= 360
			b[1] -= 360
		}
		out[i] = b
	}
	return out
}
