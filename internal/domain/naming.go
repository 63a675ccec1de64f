package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"
)

// Format is the artifact serialization.
type Format string

const (
	FormatNetCDF Format = "netcdf"
	FormatCSV    Format = "csv"
)

// ParseFormat accepts "netcdf"/"nc" and "csv".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "netcdf", "nc":
		return FormatNetCDF, nil
	case "csv":
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("unknown output format %q: want netcdf or csv", s)
	}
}

// Ext returns the file extension including the dot.
func (f Format) Ext() string {
	if f == FormatCSV {
		return ".csv"
	}
	return ".nc"
}

// Filename joins a key and the format extension.
func (f Format) Filename(key string) string {
	return key + f.Ext()
}

// ShapeStem returns the shapefile base name up to its first dot, so
// "basinA.shp" and "basinA.v2.shp" both yield "basinA".
func ShapeStem(shapePath string) string {
	name := filepath.Base(shapePath)
	stem, _, _ := strings.Cut(name, ".")
	return stem
}

// RasterToken returns the first underscore-delimited token of the raster file
// name with its extension removed: "tas_1950.nc" → "tas", "pr.nc" → "pr".
func RasterToken(rasterPath string) string {
	name := filepath.Base(rasterPath)
	name = strings.TrimSuffix(name, filepath.Ext(name))
	token, _, _ := strings.Cut(name, "_")
	return token
}

// ArtifactKey builds the deterministic artifact stem
// "{shape stem}_{raster token}_{operator}".
func ArtifactKey(shapePath, rasterPath string, op Operator) string {
	return fmt.Sprintf("%s_%s_%s", ShapeStem(shapePath), RasterToken(rasterPath), op)
}

// PairHash returns a short stable hash of a (shape, raster) pair. It is used
// to make artifact keys unique when base names collide.
func PairHash(shapePath, rasterPath string) string {
	sum := sha256.Sum256([]byte(shapePath + "|" + rasterPath))
	return hex.EncodeToString(sum[:4])
}
