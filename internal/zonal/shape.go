package zonal

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/shp"
	"github.com/ctessum/geom/proj"

	"github.com/couchcryptid/catchment-stats/internal/domain"
)

// Catchment is a decoded catchment outline in longitude/latitude degrees.
// Parts may overlap or nest, e.g. sub-basins stored as separate records.
type Catchment struct {
	Path  string
	Name  string
	Parts []geom.Polygon

	once    sync.Once
	outline geom.Polygon
}

// Outline returns the union of all parts, computed on first use. Area in
// two overlapping parts is covered once.
func (c *Catchment) Outline() geom.Polygon {
	c.once.Do(func() {
		for i, p := range c.Parts {
			if i == 0 {
				c.outline = p
				continue
			}
			c.outline = c.outline.Union(p)
		}
	})
	return c.outline
}

// Bounds returns the bounding box of all parts.
func (c *Catchment) Bounds() *geom.Bounds {
	b := geom.NewBounds()
	for _, p := range c.Parts {
		b.Extend(p.Bounds())
	}
	return b
}

// longLat is the reference system grids are indexed in.
const longLat = "+proj=longlat +datum=WGS84"

// ShapefileLoader decodes every polygon record of a shapefile into one
// catchment. Shapes with a .prj sidecar are reprojected to longitude/latitude;
// shapes without one are assumed to already be in degrees.
type ShapefileLoader struct{}

// Load reads the shapefile at path.
func (ShapefileLoader) Load(ctx context.Context, path string) (*Catchment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dec, err := shp.NewDecoder(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer dec.Close()

	trans, err := toLongLat(dec, path)
	if err != nil {
		return nil, err
	}

	c := &Catchment{Path: path, Name: domain.ShapeStem(path)}
	for {
		g, _, more := dec.DecodeRowFields()
		if !more {
			break
		}
		if trans != nil {
			if g, err = g.Transform(trans); err != nil {
				return nil, fmt.Errorf("reproject %s: %w", path, err)
			}
		}
		switch p := g.(type) {
		case geom.Polygon:
			c.Parts = append(c.Parts, p)
		case geom.MultiPolygon:
			c.Parts = append(c.Parts, p...)
		default:
			return nil, fmt.Errorf("%s: catchment shapes need to be polygons, got %T", path, g)
		}
	}
	if err := dec.Error(); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if len(c.Parts) == 0 {
		return nil, fmt.Errorf("%s: no polygon records", path)
	}
	return c, nil
}

func toLongLat(dec *shp.Decoder, path string) (proj.Transformer, error) {
	prj := strings.TrimSuffix(path, filepath.Ext(path)) + ".prj"
	if _, err := os.Stat(prj); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	src, err := dec.SR()
	if err != nil {
		return nil, fmt.Errorf("read projection of %s: %w", path, err)
	}
	dst, err := proj.Parse(longLat)
	if err != nil {
		return nil, err
	}
	trans, err := src.NewTransform(dst)
	if err != nil {
		return nil, fmt.Errorf("reproject %s: %w", path, err)
	}
	return trans, nil
}
