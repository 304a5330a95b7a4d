// Package loss provides regression loss functions over gonum matrices.
package loss

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Loss is a loss function with derivative.
type Loss interface {
	// Forward computes the loss between predicted and true values.
	Forward(yPred, yTrue *mat.Dense) float64

	// Backward computes the gradient of the loss w.r.t. prediction.
	// The returned matrix is newly allocated.
	Backward(yPred, yTrue *mat.Dense) *mat.Dense
}

// MSE (Mean Squared Error) loss.
//
// Backward returns the plain residual y_pred - y_true, i.e. the gradient of
// half the squared error. Batch averaging happens in the layers.
type MSE struct{}

// Forward computes mean squared error: (1/n) * sum((y_pred - y_true)^2)
func (m MSE) Forward(yPred, yTrue *mat.Dense) float64 {
	diff := residual(yPred, yTrue)
	raw := diff.RawMatrix().Data
	if len(raw) == 0 {
		return 0
	}
	return floats.Dot(raw, raw) / float64(len(raw))
}

// Backward computes gradient: dL/dy_pred = y_pred - y_true
func (m MSE) Backward(yPred, yTrue *mat.Dense) *mat.Dense {
	return residual(yPred, yTrue)
}

func residual(yPred, yTrue *mat.Dense) *mat.Dense {
	pr, pc := yPred.Dims()
	tr, tc := yTrue.Dims()
	if pr != tr || pc != tc {
		panic(fmt.Sprintf("MSE: prediction %dx%d and target %dx%d must have same shape", pr, pc, tr, tc))
	}
	var diff mat.Dense
	diff.Sub(yPred, yTrue)
	return &diff
}
