package forecast

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Stats summarizes the recent behaviour of a series.
type Stats struct {
	// Volatility is the standard deviation of period returns over the lookback.
	Volatility float64
	// Trend is the mean period return over the trend lookback.
	Trend float64
	// MeanPrice is the mean price over the lookback.
	MeanPrice float64
	// NormVolatility is the standard deviation of the last lookback normalized values.
	NormVolatility float64
}

// ComputeStats derives run statistics from raw prices and their normalized form.
// Returns are only taken between positive prices.
func ComputeStats(prices, normalized []float64, lookback, trendLookback int) Stats {
	var s Stats
	recent := tail(prices, lookback)
	if len(recent) > 0 {
		s.MeanPrice = stat.Mean(recent, nil)
	}

	rets := returns(tail(prices, lookback+1))
	s.Volatility = popStdDev(rets)
	if r := tail(rets, trendLookback); len(r) > 0 {
		s.Trend = stat.Mean(r, nil)
	}
	s.NormVolatility = popStdDev(tail(normalized, lookback))
	return s
}

func returns(prices []float64) []float64 {
	out := make([]float64, 0, len(prices))
	for i := 1; i < len(prices); i++ {
		prev := prices[i-1]
		if prev <= 0 {
			continue
		}
		r := (prices[i] - prev) / prev
		if !math.IsNaN(r) && !math.IsInf(r, 0) {
			out = append(out, r)
		}
	}
	return out
}

// popStdDev is the population standard deviation, 0 below two samples.
func popStdDev(x []float64) float64 {
	if len(x) < 2 {
		return 0
	}
	return math.Sqrt(stat.Moment(2, x, nil))
}

func tail(x []float64, n int) []float64 {
	if n <= 0 {
		return nil
	}
	if len(x) <= n {
		return x
	}
	return x[len(x)-n:]
}
