// Package window slices a normalized series into fixed-length training windows.
package window

import (
	"gonum.org/v1/gonum/mat"
)

// Windows is a set of overlapping input windows and their next-value targets.
type Windows struct {
	Inputs  [][]float64
	Targets []float64
	Width   int
}

// Width caps the configured window length so that a series of seriesLen
// points yields at least one window.
func Width(configured, seriesLen int) int {
	w := min(configured, seriesLen-1)
	if w < 0 {
		return 0
	}
	return w
}

// Make returns the max(len(series)-w, 0) windows series[i:i+w] with target
// series[i+w]. Windows share no memory with series.
func Make(series []float64, w int) Windows {
	n := len(series) - w
	if w <= 0 || n <= 0 {
		return Windows{Width: max(w, 0)}
	}

	out := Windows{
		Inputs:  make([][]float64, n),
		Targets: make([]float64, n),
		Width:   w,
	}
	for i := 0; i < n; i++ {
		out.Inputs[i] = append([]float64(nil), series[i:i+w]...)
		out.Targets[i] = series[i+w]
	}
	return out
}

// Len returns the number of windows.
func (w Windows) Len() int {
	return len(w.Targets)
}

// Matrices returns the inputs as a [Len, Width] matrix and the targets as a
// [Len, 1] column. It panics when Len is zero.
func (w Windows) Matrices() (*mat.Dense, *mat.Dense) {
	n := w.Len()
	if n == 0 {
		panic("window: no windows to convert")
	}
	x := mat.NewDense(n, w.Width, nil)
	for i, row := range w.Inputs {
		x.SetRow(i, row)
	}
	y := mat.NewDense(n, 1, append([]float64(nil), w.Targets...))
	return x, y
}

// Last returns the final w values of series, the input for the first forecast step.
func Last(series []float64, w int) []float64 {
	if w > len(series) {
		w = len(series)
	}
	return append([]float64(nil), series[len(series)-w:]...)
}
