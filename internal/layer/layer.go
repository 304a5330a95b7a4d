// Package layer provides neural network layer implementations.
package layer

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/FlavioCFOliveira/pricecast/internal/activations"
)

// Layer is a neural network layer operating on a batch of row vectors.
type Layer interface {
	Forward(x *mat.Dense) *mat.Dense
	Backward(grad *mat.Dense) *mat.Dense
	Params() []*mat.Dense
	Gradients() []*mat.Dense
}

// Dense is a fully connected layer: y = act(x @ W + b).
// Weights are stored in x @ W orientation, shape [in, out]; biases are a
// single row [1, out] broadcast across the batch.
type Dense struct {
	weights *mat.Dense
	biases  *mat.Dense
	act     activations.Activation
	inSize  int
	outSize int

	// Cached by Forward for the following Backward
	input  *mat.Dense
	preAct *mat.Dense

	gradW *mat.Dense
	gradB *mat.Dense
}

// NewDense creates a dense layer with weights drawn from N(0, 1) * sqrt(2/in)
// and zero biases.
func NewDense(in, out int, act activations.Activation, rng *rand.Rand) *Dense {
	if in <= 0 || out <= 0 {
		panic(fmt.Sprintf("layer: invalid dense shape %dx%d", in, out))
	}

	scale := math.Sqrt(2.0 / float64(in))
	weights := make([]float64, in*out)
	for i := range weights {
		weights[i] = rng.NormFloat64() * scale
	}

	return &Dense{
		weights: mat.NewDense(in, out, weights),
		biases:  mat.NewDense(1, out, nil),
		act:     act,
		inSize:  in,
		outSize: out,
		gradW:   mat.NewDense(in, out, nil),
		gradB:   mat.NewDense(1, out, nil),
	}
}

// Forward computes act(x @ W + b) for a batch x of shape [batch, in].
func (d *Dense) Forward(x *mat.Dense) *mat.Dense {
	_, c := x.Dims()
	if c != d.inSize {
		panic(fmt.Sprintf("layer: input width %d, dense expects %d", c, d.inSize))
	}

	var pre mat.Dense
	pre.Mul(x, d.weights)
	pre.Apply(func(_, j int, v float64) float64 {
		return v + d.biases.At(0, j)
	}, &pre)

	var out mat.Dense
	out.Apply(func(_, _ int, v float64) float64 {
		return d.act.Activate(v)
	}, &pre)

	d.input = x
	d.preAct = &pre
	return &out
}

// Backward takes dL/d(output) for the last Forward batch, stores the
// batch-averaged weight and bias gradients, and returns dL/d(input).
func (d *Dense) Backward(grad *mat.Dense) *mat.Dense {
	if d.preAct == nil {
		panic("layer: Backward called before Forward")
	}
	batch, c := grad.Dims()
	if pr, _ := d.preAct.Dims(); pr != batch || c != d.outSize {
		panic(fmt.Sprintf("layer: gradient shape %dx%d does not match output %dx%d", batch, c, pr, d.outSize))
	}

	// dz = grad * act'(z)
	var dz mat.Dense
	dz.Apply(func(i, j int, v float64) float64 {
		return v * d.act.Derivative(d.preAct.At(i, j))
	}, grad)

	// dW = x^T @ dz / batch
	d.gradW.Mul(d.input.T(), &dz)
	d.gradW.Scale(1/float64(batch), d.gradW)

	// db = mean(dz) over the batch
	col := make([]float64, batch)
	for j := 0; j < d.outSize; j++ {
		mat.Col(col, j, &dz)
		d.gradB.Set(0, j, stat.Mean(col, nil))
	}

	// dx = dz @ W^T
	var gradIn mat.Dense
	gradIn.Mul(&dz, d.weights.T())
	return &gradIn
}

// Params returns the live weight and bias matrices, in that order.
func (d *Dense) Params() []*mat.Dense {
	return []*mat.Dense{d.weights, d.biases}
}

// Gradients returns the live gradient matrices matching Params.
func (d *Dense) Gradients() []*mat.Dense {
	return []*mat.Dense{d.gradW, d.gradB}
}

// SetParams copies weights and biases into the layer. Shapes must match.
func (d *Dense) SetParams(weights, biases *mat.Dense) {
	if r, c := weights.Dims(); r != d.inSize || c != d.outSize {
		panic(fmt.Sprintf("layer: weights %dx%d, dense expects %dx%d", r, c, d.inSize, d.outSize))
	}
	if r, c := biases.Dims(); r != 1 || c != d.outSize {
		panic(fmt.Sprintf("layer: biases %dx%d, dense expects 1x%d", r, c, d.outSize))
	}
	d.weights.Copy(weights)
	d.biases.Copy(biases)
}

// InSize returns the input size of the layer.
func (d *Dense) InSize() int {
	return d.inSize
}

// OutSize returns the output size of the layer.
func (d *Dense) OutSize() int {
	return d.outSize
}

// Activation returns the activation function used by this layer.
func (d *Dense) Activation() activations.Activation {
	return d.act
}
