// Package opt provides benchmarks for optimizers.
package opt

import (
	"testing"

	"gonum.org/v1/gonum/mat"
)

// BenchmarkSGDStep benchmarks a clipped update on a hidden-layer sized matrix.
func BenchmarkSGDStep(b *testing.B) {
	sgd := SGD{LearningRate: 0.05, ClipValue: 1}
	params := mat.NewDense(14, 8, nil)
	grad := mat.NewDense(14, 8, nil)
	grad.Apply(func(i, j int, _ float64) float64 { return float64(i-j) * 0.3 }, grad)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		sgd.Step(params, grad)
	}
}
