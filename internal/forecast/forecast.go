// Package forecast turns a price history into a multi-step trajectory using
// a trained feed-forward network, optionally blended with trend, momentum,
// mean-reversion and volatility terms.
package forecast

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/rs/zerolog"

	"github.com/FlavioCFOliveira/pricecast/internal/activations"
	"github.com/FlavioCFOliveira/pricecast/internal/net"
	"github.com/FlavioCFOliveira/pricecast/internal/normalize"
	"github.com/FlavioCFOliveira/pricecast/internal/series"
	"github.com/FlavioCFOliveira/pricecast/internal/window"
)

// Method names how a trajectory was produced.
type Method string

const (
	MethodNetwork  Method = "network"
	MethodBlended  Method = "blended"
	MethodFallback Method = "fallback"
)

// Result is one forecast run.
type Result struct {
	Values       []float64
	Method       Method
	Stats        Stats
	Params       normalize.Params
	TrainingLoss []float64
	// Window is the input width used, 0 for fallback runs.
	Window int
	// Network is the model that drove the run, nil for fallback runs.
	Network *net.Network
}

// Forecaster runs one profile. It is not safe for concurrent use since it
// owns the random source.
type Forecaster struct {
	profile    Profile
	rng        *rand.Rand
	log        zerolog.Logger
	pretrained *net.Network
	callbacks  []net.Callback
}

// New validates profile and returns a forecaster drawing from rng.
func New(profile Profile, rng *rand.Rand, log zerolog.Logger) (*Forecaster, error) {
	if err := profile.Validate(); err != nil {
		return nil, err
	}
	if rng == nil {
		return nil, fmt.Errorf("forecast: nil random source")
	}
	return &Forecaster{profile: profile, rng: rng, log: log}, nil
}

// Profile returns the options in use.
func (f *Forecaster) Profile() Profile {
	return f.profile
}

// UsePretrained skips training when the model is trained and matches the
// run's input width, normalization range and activation.
func (f *Forecaster) UsePretrained(n *net.Network) {
	f.pretrained = n
}

// AddCallback registers training callbacks for networks built by Run.
func (f *Forecaster) AddCallback(cbs ...net.Callback) {
	f.callbacks = append(f.callbacks, cbs...)
}

// Run produces Horizon forecast values. An empty series returns
// series.ErrInsufficientData; a short one takes the fallback path.
func (f *Forecaster) Run(s series.Series) (Result, error) {
	p := f.profile
	if s.Len() == 0 {
		return Result{}, series.ErrInsufficientData
	}
	prices := s.Values()
	last := prices[len(prices)-1]

	if len(prices) < p.MinPoints {
		return f.fallback(last, len(prices)), nil
	}

	width := window.Width(p.WindowSize, len(prices))
	norm, params := normalize.Normalize(prices, p.Range)
	windows := window.Make(norm, width)
	if windows.Len() == 0 {
		return f.fallback(last, len(prices)), nil
	}

	network, history, err := f.train(windows)
	if err != nil {
		return Result{}, err
	}

	stats := ComputeStats(prices, norm, p.Lookback, p.TrendLookback)
	seed := window.Last(norm, width)
	res := Result{
		Stats:        stats,
		Params:       params,
		TrainingLoss: history,
		Window:       width,
		Network:      network,
	}

	switch p.Blend {
	case Blended:
		dir := Direction(network, seed, norm[len(norm)-1], stats.Trend)
		res.Values = RolloutBlended(last, stats, dir, p, f.rng)
		res.Method = MethodBlended
		f.log.Debug().Float64("direction", dir).Msg("network bias")
	default:
		floor := math.Max(params.Min*0.1, p.MinPrice)
		res.Values = RolloutNetwork(network, seed, params, p.Horizon, p.NoiseFactor*stats.NormVolatility, floor, f.rng)
		res.Method = MethodNetwork
	}

	f.log.Info().
		Str("profile", p.Name).
		Str("method", string(res.Method)).
		Int("points", len(prices)).
		Int("window", width).
		Float64("volatility", stats.Volatility).
		Float64("trend", stats.Trend).
		Msg("forecast complete")
	return res, nil
}

func (f *Forecaster) train(windows window.Windows) (*net.Network, []float64, error) {
	p := f.profile
	act, err := activations.Parse(p.Activation)
	if err != nil {
		return nil, nil, fmt.Errorf("build network: %w", err)
	}

	if n := f.pretrained; n != nil {
		reason := mismatch(n, windows.Width, p.Range, act)
		if reason == "" {
			f.log.Info().Int("window", windows.Width).Msg("using pretrained model")
			return n, nil, nil
		}
		f.log.Warn().
			Str("reason", reason).
			Int("model_input", n.InputSize()).
			Str("model_range", n.Range().String()).
			Str("model_activation", n.Activation().Name()).
			Msg("pretrained model does not fit this run, training a new one")
	}

	network := net.New(net.Config{
		InputSize:    windows.Width,
		HiddenSize:   p.HiddenSize,
		Activation:   act,
		LearningRate: p.LearningRate,
		Epochs:       p.Epochs,
		ClipValue:    p.ClipValue,
		Range:        p.Range,
	}, f.rng)
	network.AddCallback(f.callbacks...)
	history := network.Train(windows)
	return network, history, nil
}

// mismatch names the first property that stops n from serving a run, or
// returns "" when it can be reused as is.
func mismatch(n *net.Network, width int, r normalize.Range, act activations.Activation) string {
	switch {
	case n.State() != net.Trained:
		return "model is not trained"
	case n.InputSize() != width:
		return "input width differs"
	case n.Range() != r:
		return "normalization range differs"
	case n.Activation().Name() != act.Name():
		return "activation differs"
	}
	return ""
}

func (f *Forecaster) fallback(last float64, n int) Result {
	p := f.profile
	f.log.Warn().
		Int("points", n).
		Int("min_points", p.MinPoints).
		Msg("not enough data for a model, using fallback")
	return Result{
		Values: Fallback(last, p.Horizon, p.FallbackJitter, p.MinPrice, f.rng),
		Method: MethodFallback,
	}
}
