// Package opt provides the gradient-descent update used to train the network.
package opt

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Optimizer updates network parameters based on gradients.
type Optimizer interface {
	// Step updates param in place from grad.
	Step(param, grad *mat.Dense)
}

// SGD is plain full-batch gradient descent: param -= lr * clip(grad).
// There is no momentum and no adaptive rate.
type SGD struct {
	LearningRate float64
	// ClipValue bounds every gradient element to [-ClipValue, ClipValue]
	// before the update. Zero or negative disables clipping.
	ClipValue float64
}

// Step clips grad in place and applies it to param.
func (s SGD) Step(param, grad *mat.Dense) {
	pr, pc := param.Dims()
	gr, gc := grad.Dims()
	if pr != gr || pc != gc {
		panic(fmt.Sprintf("SGD: param %dx%d and gradient %dx%d must have same shape", pr, pc, gr, gc))
	}

	Clip(grad, s.ClipValue)

	var delta mat.Dense
	delta.Scale(s.LearningRate, grad)
	param.Sub(param, &delta)
}

// Clip clamps every element of grad to [-limit, limit] in place.
func Clip(grad *mat.Dense, limit float64) {
	if limit <= 0 {
		return
	}
	grad.Apply(func(_, _ int, v float64) float64 {
		switch {
		case v > limit:
			return limit
		case v < -limit:
			return -limit
		default:
			return v
		}
	}, grad)
}
