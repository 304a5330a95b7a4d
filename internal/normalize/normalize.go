// Package normalize performs min-max scaling of a price series and its inverse.
package normalize

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/floats"
)

// Range is the target interval of the normalized series. A network trained
// under one range must be denormalized under the same range.
type Range int

const (
	// UnitRange scales into [0, 1].
	UnitRange Range = iota
	// SymmetricRange scales into [-1, 1], matched to tanh.
	SymmetricRange
)

// Bounds returns the interval endpoints.
func (r Range) Bounds() (lo, hi float64) {
	if r == SymmetricRange {
		return -1, 1
	}
	return 0, 1
}

func (r Range) String() string {
	if r == SymmetricRange {
		return "-1,1"
	}
	return "0,1"
}

// ParseRange accepts "0,1" / "unit" and "-1,1" / "symmetric".
func ParseRange(s string) (Range, error) {
	switch strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "") {
	case "0,1", "[0,1]", "unit":
		return UnitRange, nil
	case "-1,1", "[-1,1]", "symmetric":
		return SymmetricRange, nil
	default:
		return UnitRange, fmt.Errorf("unknown normalization range %q", s)
	}
}

// Params holds the min/max of the fitted series. Immutable once fitted.
type Params struct {
	Min   float64
	Max   float64
	Range Range
}

// Fit computes normalization parameters from values. values must be non-empty.
func Fit(values []float64, r Range) Params {
	return Params{Min: floats.Min(values), Max: floats.Max(values), Range: r}
}

// Normalize fits values and returns them scaled together with the parameters.
func Normalize(values []float64, r Range) ([]float64, Params) {
	if len(values) == 0 {
		return nil, Params{Range: r}
	}
	p := Fit(values, r)
	return p.Normalize(values), p
}

// Degenerate reports whether the fitted series was constant.
func (p Params) Degenerate() bool {
	return p.Max == p.Min
}

// Normalize scales values into p.Range. A degenerate fit yields all zeros.
func (p Params) Normalize(values []float64) []float64 {
	out := make([]float64, len(values))
	if p.Degenerate() {
		return out
	}
	lo, hi := p.Range.Bounds()
	span := p.Max - p.Min
	for i, v := range values {
		out[i] = lo + (v-p.Min)/span*(hi-lo)
	}
	return out
}

// NormalizeValue scales a single value.
func (p Params) NormalizeValue(v float64) float64 {
	if p.Degenerate() {
		return 0
	}
	lo, hi := p.Range.Bounds()
	return lo + (v-p.Min)/(p.Max-p.Min)*(hi-lo)
}

// Denormalize maps values back to the original scale. A degenerate fit
// returns Min for every element.
func (p Params) Denormalize(values []float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = p.DenormalizeValue(v)
	}
	return out
}

// DenormalizeValue maps a single normalized value back to the original scale.
func (p Params) DenormalizeValue(v float64) float64 {
	if p.Degenerate() {
		return p.Min
	}
	lo, hi := p.Range.Bounds()
	return p.Min + (v-lo)/(hi-lo)*(p.Max-p.Min)
}
