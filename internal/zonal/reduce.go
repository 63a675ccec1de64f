package zonal

import (
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/couchcryptid/catchment-stats/internal/domain"
)

// AreaReducer collapses an extraction to one value per time step. Mean, sum,
// variance and rms weight each cell by its area inside the catchment; median,
// min and max use the covered cells unweighted. Missing cells are skipped and
// a step with no valid cell yields NaN.
type AreaReducer struct{}

// Reduce applies op to every time step.
func (AreaReducer) Reduce(ext *Extraction, op domain.Operator) (*Series, error) {
	if !op.Valid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownOperator, op)
	}
	g := ext.Grid
	s := &Series{
		Variable: g.Variable,
		Name:     g.Name,
		Operator: op,
		Attrs:    g.Attrs,
		Time:     g.Time,
		Values:   make([]float64, g.Steps()),
	}

	x := make([]float64, 0, len(ext.Cells))
	w := make([]float64, 0, len(ext.Cells))
	for t := range g.Steps() {
		x, w = x[:0], w[:0]
		for _, c := range ext.Cells {
			v := g.At(t, c.Y, c.X)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			x = append(x, v)
			w = append(w, c.Weight())
		}
		s.Values[t] = reduceStep(op, x, w)
	}
	return s, nil
}

func reduceStep(op domain.Operator, x, w []float64) float64 {
	if len(x) == 0 {
		return math.NaN()
	}
	switch op {
	case domain.OpMean:
		return stat.Mean(x, w)
	case domain.OpSum:
		return floats.Dot(x, w)
	case domain.OpVariance:
		return stat.PopVariance(x, w)
	case domain.OpRMS:
		var sq float64
		for i := range x {
			sq += w[i] * x[i] * x[i]
		}
		return math.Sqrt(sq / floats.Sum(w))
	case domain.OpMedian:
		return median(x)
	case domain.OpMin:
		return floats.Min(x)
	case domain.OpMax:
		return floats.Max(x)
	default:
		return math.NaN()
	}
}

// median averages the two middle values for an even count.
func median(x []float64) float64 {
	sorted := slices.Clone(x)
	slices.Sort(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
