// Package activations provides benchmarks for activation functions.
package activations

import (
	"math/rand"
	"testing"
)

// fillRandom fills a slice with values in [-1, 1).
func fillRandom(slice []float64) {
	rng := rand.New(rand.NewSource(1))
	for i := range slice {
		slice[i] = rng.Float64()*2 - 1
	}
}

func benchmarkActivation(b *testing.B, act Activation) {
	inputs := make([]float64, 1000)
	fillRandom(inputs)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, x := range inputs {
			_ = act.Activate(x)
			_ = act.Derivative(x)
		}
	}
}

// BenchmarkReLUFull benchmarks both Activate and Derivative.
func BenchmarkReLUFull(b *testing.B) {
	benchmarkActivation(b, ReLU{})
}

// BenchmarkTanhFull benchmarks both Activate and Derivative.
func BenchmarkTanhFull(b *testing.B) {
	benchmarkActivation(b, Tanh{})
}
