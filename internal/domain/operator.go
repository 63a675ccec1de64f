package domain

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrUnknownOperator is returned when an operator name is not one of the
// supported area statistics.
var ErrUnknownOperator = errors.New("unknown statistical operator")

// Operator names an area statistic applied over a catchment.
type Operator string

const (
	OpMean     Operator = "mean"
	OpMedian   Operator = "median"
	OpSum      Operator = "sum"
	OpVariance Operator = "variance"
	OpMin      Operator = "min"
	OpMax      Operator = "max"
	OpRMS      Operator = "rms"
)

// Operators lists every supported operator in a stable order.
var Operators = []Operator{OpMean, OpMedian, OpSum, OpVariance, OpMin, OpMax, OpRMS}

// ParseOperator converts a name such as "mean" into an Operator.
// Matching ignores surrounding whitespace and case.
func ParseOperator(s string) (Operator, error) {
	op := Operator(strings.ToLower(strings.TrimSpace(s)))
	if !op.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownOperator, s)
	}
	return op, nil
}

// Valid reports whether op is a supported operator.
func (op Operator) Valid() bool {
	for _, o := range Operators {
		if op == o {
			return true
		}
	}
	return false
}

func (op Operator) String() string { return string(op) }

// AreaWeighted reports whether the operator uses cell area weights. Median,
// min and max are order statistics taken over the covered cells.
func (op Operator) AreaWeighted() bool {
	switch op {
	case OpMean, OpSum, OpVariance, OpRMS:
		return true
	default:
		return false
	}
}

// OperatorRule chooses the statistic for a raster from its file name.
type OperatorRule interface {
	Operator(rasterPath string) Operator
}

// OperatorRuleFunc adapts a plain function to OperatorRule.
type OperatorRuleFunc func(rasterPath string) Operator

func (f OperatorRuleFunc) Operator(rasterPath string) Operator { return f(rasterPath) }

// SubstringMatch maps a file-name substring to an operator.
type SubstringMatch struct {
	Substring string
	Operator  Operator
}

// SubstringRule assigns the operator of the first matching substring, or
// Default when nothing matches. Only the base file name is inspected, never
// the directory part of the path.
type SubstringRule struct {
	Matches       []SubstringMatch
	Default       Operator
	CaseSensitive bool
}

// DefaultOperatorRule is the climate-forcing convention: temperature series
// ("tas") are averaged over the catchment, everything else (precipitation,
// radiation fluxes) is summed.
func DefaultOperatorRule() SubstringRule {
	return SubstringRule{
		Matches:       []SubstringMatch{{Substring: "tas", Operator: OpMean}},
		Default:       OpSum,
		CaseSensitive: true,
	}
}

func (r SubstringRule) Operator(rasterPath string) Operator {
	name := filepath.Base(rasterPath)
	if !r.CaseSensitive {
		name = strings.ToLower(name)
	}
	for _, m := range r.Matches {
		sub := m.Substring
		if !r.CaseSensitive {
			sub = strings.ToLower(sub)
		}
		if sub != "" && strings.Contains(name, sub) {
			return m.Operator
		}
	}
	return r.Default
}

// ParseSubstringMatches parses "tas:mean,pr:sum" into ordered matches.
func ParseSubstringMatches(s string) ([]SubstringMatch, error) {
	var out []SubstringMatch
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		sub, name, ok := strings.Cut(part, ":")
		if !ok || strings.TrimSpace(sub) == "" {
			return nil, fmt.Errorf("invalid operator rule %q: want substring:operator", part)
		}
		op, err := ParseOperator(name)
		if err != nil {
			return nil, err
		}
		out = append(out, SubstringMatch{Substring: strings.TrimSpace(sub), Operator: op})
	}
	return out, nil
}
