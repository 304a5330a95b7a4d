package forecast

import (
	"math"
	"math/rand"

	"github.com/FlavioCFOliveira/pricecast/internal/normalize"
)

// Predictor maps one input window to the next normalized value.
type Predictor interface {
	Predict(window []float64) float64
}

// RolloutNetwork feeds each prediction back into the window. Every step adds
// N(0, noiseStd) in normalized space and clamps to [lo, hi+0.5*(hi-lo)] of
// the normalization range. Results are denormalized and floored at floor.
func RolloutNetwork(p Predictor, seed []float64, params normalize.Params, steps int, noiseStd, floor float64, rng *rand.Rand) []float64 {
	lo, hi := params.Range.Bounds()
	upper := hi + 0.5*(hi-lo)

	window := append([]float64(nil), seed...)
	out := make([]float64, steps)
	for i := range out {
		next := p.Predict(window) + rng.NormFloat64()*noiseStd
		if math.IsNaN(next) {
			next = lo
		}
		next = math.Max(lo, math.Min(upper, next))
		out[i] = next

		copy(window, window[1:])
		window[len(window)-1] = next
	}

	prices := params.Denormalize(out)
	for i, v := range prices {
		prices[i] = math.Max(v, floor)
	}
	return prices
}

// RolloutBlended walks in price space. Each step adds, in proportion to the
// current price, a decaying trend, a random walk with the measured
// volatility, a pull toward the recent mean and the network's decaying
// directional bias. The step is then clamped to MaxMove and floored.
func RolloutBlended(last float64, st Stats, direction float64, p Profile, rng *rand.Rand) []float64 {
	current := math.Max(last, p.MinPrice)
	out := make([]float64, p.Horizon)
	for t := range out {
		d := p.decay(t)
		change := st.Trend*d +
			rng.NormFloat64()*st.Volatility +
			direction*st.Volatility*p.NetworkWeight*d
		next := current + current*change + (st.MeanPrice-current)*p.Reversion

		next = clampStep(current, next, p)
		out[t] = next
		current = next
	}
	return out
}

// clampStep bounds next to current*(1±MaxMove) and the floor. current must
// be at least MinPrice, which keeps the floor inside the band.
func clampStep(current, next float64, p Profile) float64 {
	if math.IsNaN(next) || math.IsInf(next, 0) {
		next = current
	}
	lo := current * (1 - p.MaxMove)
	hi := current * (1 + p.MaxMove)
	next = math.Max(lo, math.Min(hi, next))

	floor := p.MinPrice
	if p.FloorFraction > 0 {
		floor = math.Max(floor, current*p.FloorFraction)
	}
	return math.Max(next, floor)
}

// Direction is the sign of the network's next-step prediction relative to
// the last normalized value, or the sign of trend without a network.
func Direction(p Predictor, window []float64, lastNorm, trend float64) float64 {
	if p == nil {
		return sign(trend)
	}
	return sign(p.Predict(window) - lastNorm)
}

// Fallback perturbs the last price by independent U(-jitter, jitter) draws.
func Fallback(last float64, steps int, jitter, floor float64, rng *rand.Rand) []float64 {
	base := last
	if base <= 0 {
		base = floor
	}
	out := make([]float64, steps)
	for i := range out {
		out[i] = base * (1 + (2*rng.Float64()-1)*jitter)
	}
	return out
}

func sign(x float64) float64 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	}
	return 0
}
