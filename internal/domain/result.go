package domain

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
)

// ErrSkipped marks a unit that was never processed because the batch was
// cancelled or aborted after an earlier failure.
var ErrSkipped = errors.New("unit skipped")

// Artifact describes a written result file.
type Artifact struct {
	Path   string `json:"path"`
	Format Format `json:"format"`
	Steps  int    `json:"steps"`
	Name   string `json:"statistic"`
}

// UnitResult is the tagged outcome of one WorkUnit: either Artifact is set and
// Err is nil, or Err describes why the unit failed or was skipped.
type UnitResult struct {
	Index     int           `json:"index"`
	Unit      WorkUnit      `json:"unit"`
	Artifact  Artifact      `json:"artifact"`
	Err       error         `json:"-"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

// OK reports whether the unit produced its artifact.
func (r UnitResult) OK() bool { return r.Err == nil }

// Skipped reports whether the unit never ran.
func (r UnitResult) Skipped() bool { return errors.Is(r.Err, ErrSkipped) }

// Status returns "ok", "skipped" or "failed".
func (r UnitResult) Status() string {
	switch {
	case r.Err == nil:
		return "ok"
	case r.Skipped():
		return "skipped"
	default:
		return "failed"
	}
}

// Error returns the error text or "".
func (r UnitResult) Error() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// MarshalJSON adds the status and error text, which Err cannot carry itself.
func (r UnitResult) MarshalJSON() ([]byte, error) {
	type plain UnitResult
	return json.Marshal(struct {
		plain
		Status string `json:"status"`
		Error  string `json:"error,omitempty"`
	}{plain(r), r.Status(), r.Error()})
}

// Report aggregates a batch run. Results[i] always belongs to the batch's
// Units[i].
type Report struct {
	RunID      string       `json:"run_id"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
	Results    []UnitResult `json:"results"`
	Succeeded  int          `json:"succeeded"`
	Failed     int          `json:"failed"`
	Skipped    int          `json:"skipped"`
}

// Tally recomputes the outcome counters from Results.
func (r *Report) Tally() {
	r.Succeeded, r.Failed, r.Skipped = 0, 0, 0
	for _, res := range r.Results {
		switch res.Status() {
		case "ok":
			r.Succeeded++
		case "skipped":
			r.Skipped++
		default:
			r.Failed++
		}
	}
}

// Duration is the wall time of the run.
func (r Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// NewRunID returns a ULID stamped with the package clock, so IDs sort by
// start time.
func NewRunID() string {
	return ulid.MustNew(ulid.Timestamp(clock.Now()), ulid.DefaultEntropy()).String()
}
