// Command genfixtures writes the demo rasters and catchment shapefiles used
// for local runs of zonalstats.
//
// Usage:
//
//	go run ./cmd/genfixtures -raster-dir data/rasters -shape-dir data/shapes
package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/couchcryptid/catchment-stats/internal/fixture"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	rasterDir := flag.String("raster-dir", "", "directory to write NetCDF rasters to")
	shapeDir := flag.String("shape-dir", "", "directory to write catchment shapefiles to")
	flag.Parse()

	if *rasterDir == "" || *shapeDir == "" {
		flag.Usage()
		return fmt.Errorf("missing required flags: -raster-dir, -shape-dir")
	}

	if err := fixture.WriteDemo(*rasterDir, *shapeDir); err != nil {
		return err
	}
	log.Printf("rasters: %v -> %s", fixture.DemoRasters, *rasterDir)
	log.Printf("shapes: %v -> %s", fixture.DemoShapes, *shapeDir)
	return nil
}
