package series

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"
)

// Step interval bounds for inferred spacing.
const (
	MinStepInterval = 5 * time.Minute
	MaxStepInterval = 24 * time.Hour
)

// ErrInsufficientData is returned when a series has too few points to
// produce any forecast.
var ErrInsufficientData = errors.New("insufficient data")

var (
	errMissingColumn = errors.New("missing price column")
	errBadPrice      = errors.New("price is not a finite non-negative number")
	errBadTime       = errors.New("unrecognized date/time")
)

// ParseError describes a rejected input cell. It is recovered by skipping the row.
type ParseError struct {
	Row    int
	Column int
	Value  string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("row %d column %d: %v", e.Row, e.Column, e.Err)
	}
	return fmt.Sprintf("row %d column %d %q: %v", e.Row, e.Column, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Point is one observation.
type Point struct {
	Time  time.Time
	Value float64
}

// Series is an ordered price history, non-decreasing in time.
type Series []Point

// Len returns the number of points.
func (s Series) Len() int {
	return len(s)
}

// Values returns the prices in order.
func (s Series) Values() []float64 {
	out := make([]float64, len(s))
	for i, p := range s {
		out[i] = p.Value
	}
	return out
}

// Last returns the final observation. It panics on an empty series.
func (s Series) Last() Point {
	return s[len(s)-1]
}

// StepInterval infers the spacing of observations as the median delta
// between consecutive timestamps, clamped to [MinStepInterval,
// MaxStepInterval]. Fewer than two points, or no positive delta, yields def.
func (s Series) StepInterval(def time.Duration) time.Duration {
	var deltas []float64
	for i := 1; i < len(s); i++ {
		if d := s[i].Time.Sub(s[i-1].Time); d > 0 {
			deltas = append(deltas, float64(d))
		}
	}
	if len(deltas) == 0 {
		return def
	}

	sort.Float64s(deltas)
	median := time.Duration(stat.Quantile(0.5, stat.Empirical, deltas, nil))
	return min(max(median, MinStepInterval), MaxStepInterval)
}
