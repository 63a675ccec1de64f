package zonal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimeUnits(t *testing.T) {
	tests := []struct {
		units    string
		wantStep time.Duration
		wantRef  time.Time
	}{
		{"days since 1950-01-01", 24 * time.Hour, time.Date(1950, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"hours since 1900-01-01 00:00:0.0", time.Hour, time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"seconds since 1970-01-01T00:00:00Z", time.Second, time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"minutes since 2000-1-1 6:30", time.Minute, time.Date(2000, 1, 1, 6, 30, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.units, func(t *testing.T) {
			step, ref, err := ParseTimeUnits(tt.units)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStep, step)
			assert.True(t, tt.wantRef.Equal(ref), "ref = %s", ref)
		})
	}
}

func TestParseTimeUnits_Invalid(t *testing.T) {
	for _, units := range []string{"", "days", "fortnights since 1950-01-01", "days since yesterday"} {
		_, _, err := ParseTimeUnits(units)
		assert.Error(t, err, units)
	}
}

func TestDecodeTimes_Standard(t *testing.T) {
	got, err := DecodeTimes([]float64{0, 31, 59.5}, "days since 1950-01-01", "standard")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "1950-01-01 00:00:00", got[0].Format(CSVTimeLayout))
	assert.Equal(t, "1950-02-01 00:00:00", got[1].Format(CSVTimeLayout))
	assert.Equal(t, "1950-03-01 12:00:00", got[2].Format(CSVTimeLayout))
}

func TestDecodeTimes_NoLeap(t *testing.T) {
	// 1952 is a leap year in the real calendar but has no Feb 29 here.
	got, err := DecodeTimes([]float64{59, 365 * 2}, "days since 1951-01-01", "noleap")
	require.NoError(t, err)
	assert.Equal(t, "1951-03-01 00:00:00", got[0].Format(CSVTimeLayout))
	assert.Equal(t, "1953-01-01 00:00:00", got[1].Format(CSVTimeLayout))
}

func TestDecodeTimes_UnsupportedCalendar(t *testing.T) {
	_, err := DecodeTimes([]float64{0}, "days since 1950-01-01", "360_day")
	assert.ErrorIs(t, err, ErrUnsupportedCalendar)
}
