package zonal

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strconv"

	"github.com/ctessum/cdf"

	"github.com/couchcryptid/catchment-stats/internal/domain"
)

// CSVExporter writes a series as a two-column CSV: time and the statistic.
type CSVExporter struct{}

func (CSVExporter) Format() domain.Format { return domain.FormatCSV }

// Export writes s to path, replacing any existing file. Missing values are
// written as empty cells.
func (CSVExporter) Export(s *Series, path string) error {
	var stamps []string
	if len(s.Time.Values) > 0 {
		times, err := s.Time.Timestamps()
		if err != nil {
			return err
		}
		for _, t := range times {
			stamps = append(stamps, t.Format(CSVTimeLayout))
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	records := [][]string{{"time", s.Name}}
	for i, v := range s.Values {
		stamp := ""
		if i < len(stamps) {
			stamp = stamps[i]
		}
		records = append(records, []string{stamp, formatValue(v)})
	}
	if err := w.WriteAll(records); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

func formatValue(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// NetCDFExporter writes a series as a classic NetCDF file with a time
// dimension, a time coordinate and the statistic variable. The file carries
// no wall-clock metadata, so identical inputs give identical bytes.
type NetCDFExporter struct{}

func (NetCDFExporter) Format() domain.Format { return domain.FormatNetCDF }

// Export writes s to path, replacing any existing file.
func (NetCDFExporter) Export(s *Series, path string) error {
	n := len(s.Values)
	h := cdf.NewHeader([]string{"time"}, []int{n})
	h.AddAttribute("", "Conventions", "CF-1.7")
	h.AddAttribute("", "source_raster", filepath.Base(s.Raster))
	h.AddAttribute("", "source_shape", filepath.Base(s.Shape))

	h.AddVariable("time", []string{"time"}, []float64{0})
	h.AddAttribute("time", "standard_name", "time")
	h.AddAttribute("time", "axis", "T")
	if s.Time.Units != "" {
		h.AddAttribute("time", "units", s.Time.Units)
	}
	if s.Time.Calendar != "" {
		h.AddAttribute("time", "calendar", s.Time.Calendar)
	}

	name := s.Variable
	if name == "" || name == "time" {
		name = "statistic"
	}
	h.AddVariable(name, []string{"time"}, []float64{0})
	keys := make([]string, 0, len(s.Attrs))
	for k := range s.Attrs {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		h.AddAttribute(name, k, s.Attrs[k])
	}
	h.AddAttribute(name, "cell_methods", "area: "+s.Operator.String())
	h.Define()

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := writeNetCDF(f, h, name, s); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

func writeNetCDF(f *os.File, h *cdf.Header, name string, s *Series) error {
	nf, err := cdf.Create(f, h)
	if err != nil {
		return err
	}

	times := make([]float64, len(s.Values))
	copy(times, s.Time.Values)
	if _, err := nf.Writer("time", []int{0}, []int{len(times)}).Write(times); err != nil {
		return fmt.Errorf("time: %w", err)
	}
	if _, err := nf.Writer(name, []int{0}, []int{len(s.Values)}).Write(s.Values); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return cdf.UpdateNumRecs(f)
}
