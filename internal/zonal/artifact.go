package zonal

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/batchatco/go-native-netcdf/netcdf"

	"github.com/couchcryptid/catchment-stats/internal/domain"
)

// ReadArtifact loads a written CSV or NetCDF artifact back into a Series.
// CSV artifacts carry no operator or time units; their timestamps are
// returned as seconds since the Unix epoch.
func ReadArtifact(path string) (*Series, error) {
	if strings.EqualFold(filepath.Ext(path), domain.FormatCSV.Ext()) {
		return readCSVArtifact(path)
	}
	return readNetCDFArtifact(path)
}

func readCSVArtifact(path string) (*Series, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(records) == 0 || len(records[0]) != 2 || records[0][0] != "time" {
		return nil, fmt.Errorf("%s: want header \"time,<statistic>\"", path)
	}

	s := &Series{Name: records[0][1]}
	timed := false
	for i, rec := range records[1:] {
		v := math.NaN()
		if rec[1] != "" {
			if v, err = strconv.ParseFloat(rec[1], 64); err != nil {
				return nil, fmt.Errorf("%s row %d: %w", path, i+2, err)
			}
		}
		s.Values = append(s.Values, v)

		var ts float64
		if rec[0] != "" {
			t, err := time.Parse(CSVTimeLayout, rec[0])
			if err != nil {
				return nil, fmt.Errorf("%s row %d: %w", path, i+2, err)
			}
			ts = float64(t.Unix())
			timed = true
		}
		s.Time.Values = append(s.Time.Values, ts)
	}
	if timed {
		s.Time.Units = "seconds since 1970-01-01 00:00:00"
	} else {
		s.Time.Values = nil
	}
	return s, nil
}

func readNetCDFArtifact(path string) (*Series, error) {
	nc, err := netcdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer nc.Close()

	ds, err := readDataset(nc)
	if err != nil {
		return nil, err
	}
	tv, ok := ds.vars["time"]
	if !ok {
		return nil, fmt.Errorf("%s: no time variable", path)
	}

	var data *ncVar
	for _, name := range ds.order {
		if name != "time" {
			data = ds.vars[name]
			break
		}
	}
	if data == nil {
		return nil, fmt.Errorf("%s: %w", path, ErrNoDataVariable)
	}

	s := &Series{
		Variable: data.name,
		Name:     statisticName(data),
		Attrs:    stringAttrs(data),
		Time:     TimeAxis{Units: tv.str("units"), Calendar: tv.str("calendar")},
	}
	if attrs := nc.Attributes(); attrs != nil {
		if v, ok := attrs.Get("source_raster"); ok {
			s.Raster, _ = v.(string)
		}
		if v, ok := attrs.Get("source_shape"); ok {
			s.Shape, _ = v.(string)
		}
	}
	if method, ok := strings.CutPrefix(data.str("cell_methods"), "area: "); ok {
		s.Operator = domain.Operator(method)
	}
	if s.Values, err = data.floats(); err != nil {
		return nil, err
	}
	if s.Time.Units != "" {
		if s.Time.Values, err = tv.floats(); err != nil {
			return nil, err
		}
	}
	return s, nil
}
