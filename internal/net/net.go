// Package net provides the two-layer feed-forward regressor used for
// next-value prediction.
package net

import (
	"encoding/gob"
	"fmt"
	"io"
	"math/rand"
	"os"

	"gonum.org/v1/gonum/mat"

	"github.com/FlavioCFOliveira/pricecast/internal/activations"
	"github.com/FlavioCFOliveira/pricecast/internal/layer"
	"github.com/FlavioCFOliveira/pricecast/internal/loss"
	"github.com/FlavioCFOliveira/pricecast/internal/normalize"
	"github.com/FlavioCFOliveira/pricecast/internal/opt"
	"github.com/FlavioCFOliveira/pricecast/internal/window"
)

// State is the training lifecycle of a network.
type State int

const (
	// Initialized networks carry random weights.
	Initialized State = iota
	// Trained networks have completed Train and are used for inference only.
	Trained
)

func (s State) String() string {
	if s == Trained {
		return "trained"
	}
	return "initialized"
}

// Config describes the network shape and training recipe.
type Config struct {
	InputSize    int
	HiddenSize   int
	Activation   activations.Activation
	LearningRate float64
	Epochs       int
	// ClipValue bounds every gradient element before the update; 0 disables.
	ClipValue float64
	// Range is the normalization the inputs and targets are scaled to.
	// It travels with saved models.
	Range normalize.Range
}

// Network is input -> Dense(hidden, act) -> Dense(1, identity).
// Its parameters are owned by the instance and only mutated by training.
type Network struct {
	hidden *layer.Dense
	output *layer.Dense
	loss   loss.Loss
	opt    opt.Optimizer

	epochs    int
	clip      float64
	norm      normalize.Range
	state     State
	callbacks []Callback
}

// New creates a network with weights drawn from rng.
func New(cfg Config, rng *rand.Rand) *Network {
	act := cfg.Activation
	if act == nil {
		act = activations.ReLU{}
	}
	return &Network{
		hidden: layer.NewDense(cfg.InputSize, cfg.HiddenSize, act, rng),
		output: layer.NewDense(cfg.HiddenSize, 1, activations.Identity{}, rng),
		loss:   loss.MSE{},
		opt:    opt.SGD{LearningRate: cfg.LearningRate, ClipValue: cfg.ClipValue},
		epochs: cfg.Epochs,
		clip:   cfg.ClipValue,
		norm:   cfg.Range,
	}
}

// AddCallback registers training callbacks.
func (n *Network) AddCallback(cbs ...Callback) {
	n.callbacks = append(n.callbacks, cbs...)
}

// InputSize returns the window length the network expects.
func (n *Network) InputSize() int {
	return n.hidden.InSize()
}

// HiddenSize returns the number of hidden units.
func (n *Network) HiddenSize() int {
	return n.hidden.OutSize()
}

// Activation returns the hidden-layer activation.
func (n *Network) Activation() activations.Activation {
	return n.hidden.Activation()
}

// Range returns the normalization range the network is trained under.
func (n *Network) Range() normalize.Range {
	return n.norm
}

// State returns the lifecycle state.
func (n *Network) State() State {
	return n.state
}

// Forward maps a [batch, InputSize] matrix to [batch, 1] predictions.
func (n *Network) Forward(x *mat.Dense) *mat.Dense {
	return n.output.Forward(n.hidden.Forward(x))
}

// Predict returns the prediction for a single window.
func (n *Network) Predict(window []float64) float64 {
	x := mat.NewDense(1, len(window), append([]float64(nil), window...))
	return n.Forward(x).At(0, 0)
}

// backward runs forward and backward for one batch, leaving the layer
// gradient buffers filled. Returns the pre-update loss.
func (n *Network) backward(x, y *mat.Dense) float64 {
	yPred := n.Forward(x)
	l := n.loss.Forward(yPred, y)
	grad := n.loss.Backward(yPred, y)
	n.hidden.Backward(n.output.Backward(grad))
	return l
}

// Gradients computes clipped gradients for a batch without updating weights.
// The order is hidden weights, hidden biases, output weights, output biases.
func (n *Network) Gradients(x, y *mat.Dense) (float64, []*mat.Dense) {
	l := n.backward(x, y)

	var out []*mat.Dense
	for _, ly := range []*layer.Dense{n.hidden, n.output} {
		for _, g := range ly.Gradients() {
			c := mat.DenseCopyOf(g)
			opt.Clip(c, n.clip)
			out = append(out, c)
		}
	}
	return l, out
}

// TrainStep performs one full-batch gradient-descent step and returns the
// loss measured before the update.
func (n *Network) TrainStep(x, y *mat.Dense) float64 {
	l := n.backward(x, y)
	for _, ly := range []*layer.Dense{n.hidden, n.output} {
		params, grads := ly.Params(), ly.Gradients()
		for i := range params {
			n.opt.Step(params[i], grads[i])
		}
	}
	return l
}

// Train runs the configured number of full-batch epochs over w and returns
// the per-epoch loss history. An empty window set is a no-op.
func (n *Network) Train(w window.Windows) []float64 {
	if w.Len() == 0 {
		return nil
	}
	if w.Width != n.InputSize() {
		panic(fmt.Sprintf("net: window width %d, network expects %d", w.Width, n.InputSize()))
	}

	x, y := w.Matrices()

	for _, cb := range n.callbacks {
		cb.OnTrainBegin(n)
	}

	history := make([]float64, 0, n.epochs)
	for epoch := 0; epoch < n.epochs; epoch++ {
		l := n.TrainStep(x, y)
		history = append(history, l)
		for _, cb := range n.callbacks {
			cb.OnEpochEnd(epoch, l, n)
		}
	}

	n.state = Trained
	for _, cb := range n.callbacks {
		cb.OnTrainEnd(n)
	}
	return history
}

// Loss returns the mean squared error of the network on w.
func (n *Network) Loss(w window.Windows) float64 {
	if w.Len() == 0 {
		return 0
	}
	x, y := w.Matrices()
	return n.loss.Forward(n.Forward(x), y)
}

// modelFile is the gob representation of a network.
type modelFile struct {
	InputSize  int
	HiddenSize int
	Activation string
	Range      string
	Trained    bool
	Params     [][]float64
}

// Save saves the network to a file using gob encoding.
func (n *Network) Save(filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	if err := n.Encode(file); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// Encode writes the network to an io.Writer using gob encoding.
// Optimizer settings and callbacks are not saved.
func (n *Network) Encode(w io.Writer) error {
	mf := modelFile{
		InputSize:  n.InputSize(),
		HiddenSize: n.HiddenSize(),
		Activation: n.Activation().Name(),
		Range:      n.norm.String(),
		Trained:    n.state == Trained,
	}
	for _, ly := range []*layer.Dense{n.hidden, n.output} {
		for _, p := range ly.Params() {
			mf.Params = append(mf.Params, append([]float64(nil), p.RawMatrix().Data...))
		}
	}
	if err := gob.NewEncoder(w).Encode(mf); err != nil {
		return fmt.Errorf("failed to encode network: %w", err)
	}
	return nil
}

// Load loads a network from a file.
func Load(filename string) (*Network, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	return Decode(file)
}

// Decode reads a network written by Encode. The result has no learning rate
// or epoch budget and is meant for inference.
func Decode(r io.Reader) (*Network, error) {
	var mf modelFile
	if err := gob.NewDecoder(r).Decode(&mf); err != nil {
		return nil, fmt.Errorf("failed to decode network: %w", err)
	}
	if mf.InputSize <= 0 || mf.HiddenSize <= 0 {
		return nil, fmt.Errorf("invalid network shape %dx%d", mf.InputSize, mf.HiddenSize)
	}
	act, err := activations.Parse(mf.Activation)
	if err != nil {
		return nil, err
	}
	if mf.Range == "" {
		return nil, fmt.Errorf("model has no normalization range")
	}
	norm, err := normalize.ParseRange(mf.Range)
	if err != nil {
		return nil, err
	}

	shapes := [][2]int{
		{mf.InputSize, mf.HiddenSize}, {1, mf.HiddenSize},
		{mf.HiddenSize, 1}, {1, 1},
	}
	if len(mf.Params) != len(shapes) {
		return nil, fmt.Errorf("expected %d parameter blocks, got %d", len(shapes), len(mf.Params))
	}
	mats := make([]*mat.Dense, len(shapes))
	for i, s := range shapes {
		if len(mf.Params[i]) != s[0]*s[1] {
			return nil, fmt.Errorf("parameter block %d has %d values, want %d", i, len(mf.Params[i]), s[0]*s[1])
		}
		mats[i] = mat.NewDense(s[0], s[1], mf.Params[i])
	}

	n := New(Config{
		InputSize:  mf.InputSize,
		HiddenSize: mf.HiddenSize,
		Activation: act,
		Range:      norm,
	}, rand.New(rand.NewSource(0)))
	n.hidden.SetParams(mats[0], mats[1])
	n.output.SetParams(mats[2], mats[3])
	if mf.Trained {
		n.state = Trained
	}
	return n, nil
}
