// Package activations provides the hidden-layer non-linearities used by the
// forecasting network.
package activations

import (
	"fmt"
	"math"
	"strings"
)

// Activation is an activation function with derivative.
type Activation interface {
	// Activate computes f(x)
	Activate(x float64) float64

	// Derivative computes f'(x) from the pre-activation value x.
	Derivative(x float64) float64

	// Name returns the canonical lowercase name used in configs and model files.
	Name() string
}

// ReLU activation function.
type ReLU struct{}

// Activate computes max(0, x)
func (r ReLU) Activate(x float64) float64 {
	if x > 0 {
		return x
	}
	return 0
}

// Derivative returns 1 if x > 0, else 0
func (r ReLU) Derivative(x float64) float64 {
	if x > 0 {
		return 1
	}
	return 0
}

func (r ReLU) Name() string { return "relu" }

// Tanh activation function.
type Tanh struct{}

// Activate computes tanh(x)
func (t Tanh) Activate(x float64) float64 {
	return math.Tanh(x)
}

// Derivative computes 1 - tanh(x)^2
func (t Tanh) Derivative(x float64) float64 {
	tanhX := math.Tanh(x)
	return 1 - tanhX*tanhX
}

func (t Tanh) Name() string { return "tanh" }

// Identity passes values through unchanged. Used for the regression output layer.
type Identity struct{}

// Activate returns x
func (i Identity) Activate(x float64) float64 {
	return x
}

// Derivative returns 1
func (i Identity) Derivative(x float64) float64 {
	return 1
}

func (i Identity) Name() string { return "identity" }

// Parse returns the activation registered under name.
func Parse(name string) (Activation, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "relu":
		return ReLU{}, nil
	case "tanh":
		return Tanh{}, nil
	case "identity", "linear":
		return Identity{}, nil
	default:
		return nil, fmt.Errorf("unknown activation %q", name)
	}
}
