package zonal

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// CSVTimeLayout is the timestamp format of CSV artifacts.
const CSVTimeLayout = "2006-01-02 15:04:05"

var refLayouts = []string{
	"2006-1-2 15:4:5",
	"2006-1-2 15:4",
	"2006-1-2",
}

// ParseTimeUnits splits CF units such as "days since 1950-01-01 00:00:00"
// into the step length and the reference time.
func ParseTimeUnits(units string) (time.Duration, time.Time, error) {
	step, ref, ok := strings.Cut(strings.TrimSpace(units), " since ")
	if !ok {
		return 0, time.Time{}, fmt.Errorf("time units %q: missing \"since\"", units)
	}

	var d time.Duration
	switch strings.ToLower(strings.TrimSpace(step)) {
	case "days", "day", "d":
		d = 24 * time.Hour
	case "hours", "hour", "hrs", "hr", "h":
		d = time.Hour
	case "minutes", "minute", "mins", "min":
		d = time.Minute
	case "seconds", "second", "secs", "sec", "s":
		d = time.Second
	default:
		return 0, time.Time{}, fmt.Errorf("time units %q: unknown step %q", units, step)
	}

	ref = strings.TrimSpace(ref)
	ref = strings.Replace(ref, "T", " ", 1)
	ref = strings.TrimSuffix(ref, "Z")
	ref = strings.TrimSuffix(ref, " UTC")
	ref = strings.TrimSpace(ref)
	for _, layout := range refLayouts {
		if t, err := time.Parse(layout, ref); err == nil {
			return d, t.UTC(), nil
		}
	}
	return 0, time.Time{}, fmt.Errorf("time units %q: cannot parse reference time %q", units, ref)
}

// DecodeTimes converts CF time coordinate values to UTC timestamps rounded to
// the second. Standard, Gregorian and proleptic Gregorian calendars are read
// as proleptic Gregorian; noleap/365_day calendars are supported as well.
func DecodeTimes(values []float64, units, calendar string) ([]time.Time, error) {
	step, ref, err := ParseTimeUnits(units)
	if err != nil {
		return nil, err
	}

	out := make([]time.Time, len(values))
	switch strings.ToLower(calendar) {
	case "", "standard", "gregorian", "proleptic_gregorian":
		for i, v := range values {
			out[i] = ref.Add(scaleDuration(v, step)).Round(time.Second)
		}
	case "noleap", "365_day":
		for i, v := range values {
			out[i] = addNoLeap(ref, scaleDuration(v, step)).Round(time.Second)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedCalendar, calendar)
	}
	return out, nil
}

func scaleDuration(v float64, step time.Duration) time.Duration {
	return time.Duration(math.Round(v * float64(step)))
}

var noLeapMonthDays = [12]int{31, 28, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}

// addNoLeap adds d to ref in a calendar where every year has 365 days.
func addNoLeap(ref time.Time, d time.Duration) time.Time {
	day := 24 * time.Hour

	doy := ref.YearDay() - 1
	if isLeap(ref.Year()) && ref.Month() > time.February {
		doy--
	}
	sinceMidnight := ref.Sub(time.Date(ref.Year(), ref.Month(), ref.Day(), 0, 0, 0, 0, time.UTC))

	total := time.Duration(doy)*day + sinceMidnight + d
	days := int(math.Floor(float64(total) / float64(day)))
	rem := total - time.Duration(days)*day

	year := ref.Year() + floorDiv(days, 365)
	doy = days - floorDiv(days, 365)*365

	month := 0
	for doy >= noLeapMonthDays[month] {
		doy -= noLeapMonthDays[month]
		month++
	}
	return time.Date(year, time.Month(month+1), doy+1, 0, 0, 0, 0, time.UTC).Add(rem)
}

func isLeap(y int) bool {
	return y%4 == 0 && (y%100 != 0 || y%400 == 0)
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
