// Package domain models the units of work of a catchment zonal-statistics
// batch.
//
// # Inputs
//
// Rasters are gridded climate fields stored as NetCDF (classic or NetCDF-4),
// typically one variable per file with a file name of the form
// "<variable>_<period>.nc", e.g. "tas_1950.nc" (near-surface air temperature)
// or "pr_1950.nc" (precipitation flux). Catchments are polygon shapefiles,
// one basin per file, e.g. "basinA.shp".
//
// # Operators
//
// The statistic for a raster is chosen from its file name by an
// [OperatorRule]. The default rule averages temperature ("tas") over the
// catchment and sums everything else:
//
//	tas_1950.nc → mean
//	pr_1950.nc  → sum
//
// Matching is case-sensitive by default and only looks at the base name, so a
// directory called "tasmania" does not turn precipitation into a mean.
//
// # Artifact naming
//
// Each unit writes "{shape stem}_{raster token}_{operator}.{nc|csv}":
//
//	basinA.shp + tas_1950.nc + mean → basinA_tas_mean.nc
//
// The shape stem is the file name up to its first dot; the raster token is
// the first underscore-delimited token of the file name without extension.
// When two pairs would produce the same name, the planner appends a short
// hash of both full paths (see [PairHash]) so no artifact is overwritten by
// an unrelated unit.
//
// # Results
//
// Every unit yields a [UnitResult] tagged with either an [Artifact] or an
// error. A [Report] keeps results in planning order and carries a ULID run ID
// stamped with the package clock.
package domain
