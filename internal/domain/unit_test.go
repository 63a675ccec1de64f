package domain

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkBatch_AlignedViews(t *testing.T) {
	b := WorkBatch{Units: []WorkUnit{
		{ShapePath: "a.shp", RasterPath: "tas_1950.nc", Operator: OpMean, OutputDir: "/out"},
		{ShapePath: "b.shp", RasterPath: "pr_1950.nc", Operator: OpSum, OutputDir: "/out"},
	}}

	assert.Equal(t, 2, b.Len())
	assert.False(t, b.Empty())
	assert.Equal(t, []string{"a.shp", "b.shp"}, b.Shapes())
	assert.Equal(t, []string{"tas_1950.nc", "pr_1950.nc"}, b.Rasters())
	assert.Equal(t, []Operator{OpMean, OpSum}, b.Operators())
	assert.Equal(t, []string{"/out", "/out"}, b.OutputDirs())
}

func TestWorkBatch_Empty(t *testing.T) {
	var b WorkBatch
	assert.True(t, b.Empty())
	assert.Empty(t, b.Shapes())
	assert.Empty(t, b.Rasters())
	assert.Empty(t, b.Operators())
	assert.Empty(t, b.OutputDirs())
}

func TestReport_Tally(t *testing.T) {
	r := Report{Results: []UnitResult{
		{Index: 0},
		{Index: 1, Err: errors.New("boom")},
		{Index: 2, Err: ErrSkipped},
		{Index: 3},
	}}
	r.Tally()

	assert.Equal(t, 2, r.Succeeded)
	assert.Equal(t, 1, r.Failed)
	assert.Equal(t, 1, r.Skipped)
	assert.Equal(t, "ok", r.Results[0].Status())
	assert.Equal(t, "failed", r.Results[1].Status())
	assert.Equal(t, "boom", r.Results[1].Error())
	assert.Equal(t, "skipped", r.Results[2].Status())
}

func TestNewRunID_UsesClock(t *testing.T) {
	start := time.Date(2024, time.April, 26, 12, 0, 0, 0, time.UTC)
	SetClock(clockwork.NewFakeClockAt(start))
	defer SetClock(nil)

	id := NewRunID()
	parsed, err := ulid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, start, ulid.Time(parsed.Time()).UTC())
	assert.NotEqual(t, id, NewRunID())
}

func TestSince_UsesClock(t *testing.T) {
	fc := clockwork.NewFakeClockAt(time.Date(2024, time.April, 26, 0, 0, 0, 0, time.UTC))
	SetClock(fc)
	defer SetClock(nil)

	start := Now()
	fc.Advance(3 * time.Second)
	assert.Equal(t, 3*time.Second, Since(start))
}

func TestUnitResult_MarshalJSON(t *testing.T) {
	res := UnitResult{
		Index: 2,
		Unit:  WorkUnit{Key: "basinB_pr_sum", Operator: OpSum},
		Err:   errors.New("extract: catchment does not intersect the raster grid"),
	}

	data, err := json.Marshal(res)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "failed", got["status"])
	assert.Equal(t, "extract: catchment does not intersect the raster grid", got["error"])
	assert.InDelta(t, 2, got["index"], 0)
	assert.Contains(t, got, "unit")

	data, err = json.Marshal(UnitResult{})
	require.NoError(t, err)
	assert.NotContains(t, string(data), `"error"`)
	assert.Contains(t, string(data), `"status":"ok"`)
}
