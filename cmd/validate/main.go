// Command validate checks the artifacts of a finished zonalstats run: every
// planned (shape, raster) pair has an artifact, each artifact reads back with
// a sane time series, artifacts from the same raster share one time axis, and
// an optional run report agrees with what is on disk.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -raster-dir data/rasters \
//	  -shape-dir data/shapes \
//	  -output-dir data/out \
//	  -report data/out/report.json
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/couchcryptid/catchment-stats/internal/domain"
	"github.com/couchcryptid/catchment-stats/internal/planner"
	"github.com/couchcryptid/catchment-stats/internal/zonal"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

// reportFile mirrors the JSON written to REPORT_FILE.
type reportFile struct {
	RunID   string `json:"run_id"`
	Results []struct {
		Index    int             `json:"index"`
		Unit     domain.WorkUnit `json:"unit"`
		Artifact domain.Artifact `json:"artifact"`
		Status   string          `json:"status"`
		Error    string          `json:"error"`
	} `json:"results"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// artifact is a planned unit together with what was read back from disk.
type artifact struct {
	unit   domain.WorkUnit
	path   string
	series *zonal.Series
	times  []time.Time
}

func main() {
	rasterDir := flag.String("raster-dir", "", "directory containing the input NetCDF rasters")
	shapeDir := flag.String("shape-dir", "", "directory containing the catchment shapefiles")
	outputDir := flag.String("output-dir", "", "directory the batch wrote artifacts to")
	formatName := flag.String("format", "netcdf", "artifact format: netcdf or csv")
	hashed := flag.Bool("hashed", false, "artifact keys use the hashed naming scheme")
	reportPath := flag.String("report", "", "optional run report JSON to cross-check")
	flag.Parse()

	if *rasterDir == "" || *shapeDir == "" || *outputDir == "" {
		flag.Usage()
		os.Exit(1)
	}
	format, err := domain.ParseFormat(*formatName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		os.Exit(1)
	}

	os.Exit(run(*rasterDir, *shapeDir, *outputDir, format, *hashed, *reportPath))
}

func run(rasterDir, shapeDir, outputDir string, format domain.Format, hashed bool, reportPath string) int {
	fmt.Println("=== Catchment Statistics Validation ===")
	fmt.Println()

	shapes, err := planner.Discover(shapeDir, []string{".shp"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}
	rasters, err := planner.Discover(rasterDir, []string{".nc"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}
	batch := planner.Build(shapes, rasters, domain.DefaultOperatorRule(), outputDir, hashed, slog.Default())

	var report *reportFile
	if reportPath != "" {
		if report, err = loadReport(reportPath); err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: load report: %v\n", err)
			return 1
		}
	}

	coverage, artifacts := validateCoverage(batch, format)
	phases := []*phase{
		coverage,
		validateIntegrity(artifacts),
		validateTimeAxes(artifacts),
	}
	if report != nil {
		phases = append(phases, validateReport(report, batch, format))
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Inputs: %d shapes, %d rasters, %d planned units, %d artifacts read\n",
		len(shapes), len(rasters), batch.Len(), len(artifacts))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

func loadReport(path string) (*reportFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var r reportFile
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// ── Phase 1: Coverage ──
// Every planned unit has an artifact that reads back.

func validateCoverage(batch domain.WorkBatch, format domain.Format) (*phase, []artifact) {
	p := &phase{name: "Phase 1: Coverage (planned vs written)"}

	artifacts := make([]artifact, 0, batch.Len())
	for _, u := range batch.Units {
		path := filepath.Join(u.OutputDir, format.Filename(u.Key))
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				p.errorf("%s: artifact missing", filepath.Base(path))
			} else {
				p.errorf("%s: %v", filepath.Base(path), err)
			}
			continue
		}
		s, err := zonal.ReadArtifact(path)
		if err != nil {
			p.errorf("%s: unreadable: %v", filepath.Base(path), err)
			continue
		}
		a := artifact{unit: u, path: path, series: s}
		if a.times, err = s.Time.Timestamps(); err != nil {
			p.errorf("%s: time axis: %v", filepath.Base(path), err)
			continue
		}
		artifacts = append(artifacts, a)
	}
	return p, artifacts
}

// ── Phase 2: Artifact Integrity ──
// Each series is non-empty, names its statistic, and matches its unit.

func validateIntegrity(artifacts []artifact) *phase {
	p := &phase{name: "Phase 2: Artifact Integrity"}

	for _, a := range artifacts {
		name := filepath.Base(a.path)
		s := a.series
		if len(s.Values) == 0 {
			p.errorf("%s: no values", name)
			continue
		}
		if s.Name == "" {
			p.errorf("%s: statistic has no name", name)
		}
		if len(s.Time.Values) > 0 && len(s.Time.Values) != len(s.Values) {
			p.errorf("%s: %d time values for %d statistics", name, len(s.Time.Values), len(s.Values))
		}
		if s.Operator != "" && s.Operator != a.unit.Operator {
			p.errorf("%s: operator %q, planned %q", name, s.Operator, a.unit.Operator)
		}
		if s.Raster != "" && s.Raster != filepath.Base(a.unit.RasterPath) {
			p.errorf("%s: source raster %q, planned %q", name, s.Raster, filepath.Base(a.unit.RasterPath))
		}
		if s.Shape != "" && s.Shape != filepath.Base(a.unit.ShapePath) {
			p.errorf("%s: source shape %q, planned %q", name, s.Shape, filepath.Base(a.unit.ShapePath))
		}

		finite := 0
		for _, v := range s.Values {
			if !math.IsNaN(v) && !math.IsInf(v, 0) {
				finite++
			}
		}
		if finite == 0 {
			p.errorf("%s: every step is missing", name)
		}
	}
	return p
}

// ── Phase 3: Time Axes ──
// Artifacts computed from the same raster carry identical, increasing times.

func validateTimeAxes(artifacts []artifact) *phase {
	p := &phase{name: "Phase 3: Time Axes (per raster)"}

	first := make(map[string]artifact)
	for _, a := range artifacts {
		name := filepath.Base(a.path)
		for i := 1; i < len(a.times); i++ {
			if !a.times[i].After(a.times[i-1]) {
				p.errorf("%s: time step %d (%s) not after step %d", name, i, a.times[i].Format(zonal.CSVTimeLayout), i-1)
				break
			}
		}

		ref, ok := first[a.unit.RasterPath]
		if !ok {
			first[a.unit.RasterPath] = a
			continue
		}
		if len(ref.times) != len(a.times) {
			p.errorf("%s: %d steps, %s has %d", name, len(a.times), filepath.Base(ref.path), len(ref.times))
			continue
		}
		for i := range a.times {
			if !a.times[i].Equal(ref.times[i]) {
				p.errorf("%s: step %d at %s, %s has %s", name, i,
					a.times[i].Format(zonal.CSVTimeLayout), filepath.Base(ref.path), ref.times[i].Format(zonal.CSVTimeLayout))
				break
			}
		}
	}
	return p
}

// ── Phase 4: Report Consistency ──
// The run report lists the planned units in order and its outcomes match
// the files on disk.

func validateReport(r *reportFile, batch domain.WorkBatch, format domain.Format) *phase {
	p := &phase{name: "Phase 4: Report Consistency"}

	if r.RunID == "" {
		p.errorf("report has no run_id")
	}
	if len(r.Results) != batch.Len() {
		p.errorf("report has %d results, batch plans %d units", len(r.Results), batch.Len())
		return p
	}

	var ok, failed, skipped int
	for i, res := range r.Results {
		want := batch.Units[i]
		if res.Index != i {
			p.errorf("result %d: index %d", i, res.Index)
		}
		if res.Unit.Key != want.Key {
			p.errorf("result %d: key %q, planned %q", i, res.Unit.Key, want.Key)
			continue
		}

		path := filepath.Join(want.OutputDir, format.Filename(want.Key))
		_, statErr := os.Stat(path)
		switch res.Status {
		case "ok":
			ok++
			if statErr != nil {
				p.errorf("%s: reported ok but artifact is missing", want.Key)
			}
			if res.Artifact.Path != "" && res.Artifact.Path != path {
				p.errorf("%s: reported artifact %s, expected %s", want.Key, res.Artifact.Path, path)
			}
		case "failed":
			failed++
			if res.Error == "" {
				p.errorf("%s: failed without an error message", want.Key)
			}
		case "skipped":
			skipped++
		default:
			p.errorf("%s: unknown status %q", want.Key, res.Status)
		}
	}

	if ok != r.Succeeded || failed != r.Failed || skipped != r.Skipped {
		p.errorf("counters %d/%d/%d do not match results %d/%d/%d (ok/failed/skipped)",
			r.Succeeded, r.Failed, r.Skipped, ok, failed, skipped)
	}
	return p
}
