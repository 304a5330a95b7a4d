package forecast

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/FlavioCFOliveira/pricecast/internal/activations"
	"github.com/FlavioCFOliveira/pricecast/internal/normalize"
	"github.com/FlavioCFOliveira/pricecast/internal/series"
)

// Granularity is the spacing of the forecast horizon.
type Granularity int

const (
	Daily Granularity = iota
	Hourly
)

func (g Granularity) String() string {
	if g == Hourly {
		return "hourly"
	}
	return "daily"
}

// ParseGranularity accepts "daily" or "hourly".
func ParseGranularity(s string) (Granularity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "daily", "day", "1d":
		return Daily, nil
	case "hourly", "hour", "1h":
		return Hourly, nil
	}
	return Daily, fmt.Errorf("unknown granularity %q", s)
}

// Blend selects how the trajectory is produced.
type Blend int

const (
	// NetworkOnly feeds network predictions back into the window.
	NetworkOnly Blend = iota
	// Blended walks in price space mixing trend, noise, reversion and the
	// network's direction.
	Blended
)

func (b Blend) String() string {
	if b == Blended {
		return "blended"
	}
	return "network"
}

// ParseBlend accepts "network" (or "network_only") and "blended".
func ParseBlend(s string) (Blend, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "network", "network_only", "network-only", "simple":
		return NetworkOnly, nil
	case "blended", "blend", "network+trend+reversion+momentum":
		return Blended, nil
	}
	return NetworkOnly, fmt.Errorf("unknown blend mode %q", s)
}

// Profile bundles every forecasting option. One profile fully determines a
// run apart from the random source.
type Profile struct {
	Name        string
	Activation  string
	Range       normalize.Range
	Granularity Granularity
	Blend       Blend

	Horizon   int
	MinPoints int

	WindowSize   int
	HiddenSize   int
	LearningRate float64
	Epochs       int
	ClipValue    float64

	// NoiseFactor scales the normalized volatility in network-only rollouts.
	NoiseFactor float64
	// TrendDecay is applied as TrendDecay^step to the daily trend and network terms.
	TrendDecay float64
	// MomentumDecay multiplies the hourly momentum state every step.
	MomentumDecay float64
	Reversion     float64
	NetworkWeight float64

	// MaxMove bounds |next-current| as a fraction of current.
	MaxMove float64
	// FloorFraction additionally floors each step at current*FloorFraction.
	FloorFraction float64
	MinPrice      float64

	Lookback       int
	TrendLookback  int
	FallbackJitter float64

	// StepInterval is the fixed output spacing. Zero infers it from the series.
	StepInterval time.Duration
}

// DailyProfile returns the 14-day blended forecaster.
func DailyProfile() Profile {
	return Profile{
		Name:           "daily",
		Activation:     "relu",
		Range:          normalize.UnitRange,
		Granularity:    Daily,
		Blend:          Blended,
		Horizon:        14,
		MinPoints:      15,
		WindowSize:     14,
		HiddenSize:     8,
		LearningRate:   0.05,
		Epochs:         200,
		ClipValue:      1,
		NoiseFactor:    0.3,
		TrendDecay:     0.85,
		MomentumDecay:  0.85,
		Reversion:      0.02,
		NetworkWeight:  0.5,
		MaxMove:        0.30,
		MinPrice:       1e-8,
		Lookback:       30,
		TrendLookback:  7,
		FallbackJitter: 0.02,
		StepInterval:   24 * time.Hour,
	}
}

// SimpleProfile is the daily profile driven by the network alone.
func SimpleProfile() Profile {
	p := DailyProfile()
	p.Name = "simple"
	p.Blend = NetworkOnly
	return p
}

// HourlyProfile returns the two-week hourly forecaster.
func HourlyProfile() Profile {
	return Profile{
		Name:           "hourly",
		Activation:     "tanh",
		Range:          normalize.SymmetricRange,
		Granularity:    Hourly,
		Blend:          Blended,
		Horizon:        336,
		MinPoints:      20,
		WindowSize:     24,
		HiddenSize:     16,
		LearningRate:   0.05,
		Epochs:         300,
		ClipValue:      1,
		NoiseFactor:    0.3,
		TrendDecay:     0.998,
		MomentumDecay:  0.998,
		Reversion:      0.001,
		NetworkWeight:  0.3,
		MaxMove:        0.02,
		FloorFraction:  0.5,
		MinPrice:       1e-8,
		Lookback:       168,
		TrendLookback:  24,
		FallbackJitter: 0.02,
	}
}

// ProfileByName returns a built-in profile.
func ProfileByName(name string) (Profile, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "daily":
		return DailyProfile(), nil
	case "simple":
		return SimpleProfile(), nil
	case "hourly":
		return HourlyProfile(), nil
	}
	return Profile{}, fmt.Errorf("unknown profile %q", name)
}

var errProfile = errors.New("invalid profile")

// Validate reports the first option that cannot drive a forecast.
func (p Profile) Validate() error {
	if _, err := activations.Parse(p.Activation); err != nil {
		return fmt.Errorf("%w: %v", errProfile, err)
	}
	switch {
	case p.Horizon < 1:
		return fmt.Errorf("%w: horizon must be positive, got %d", errProfile, p.Horizon)
	case p.MinPoints < 2:
		return fmt.Errorf("%w: min points must be at least 2, got %d", errProfile, p.MinPoints)
	case p.WindowSize < 1 || p.HiddenSize < 1:
		return fmt.Errorf("%w: window and hidden sizes must be positive", errProfile)
	case p.LearningRate <= 0 || p.Epochs < 0 || p.ClipValue < 0:
		return fmt.Errorf("%w: bad training parameters", errProfile)
	case p.MaxMove <= 0 || p.MaxMove >= 1:
		return fmt.Errorf("%w: max move must be in (0,1), got %g", errProfile, p.MaxMove)
	case p.MinPrice <= 0:
		return fmt.Errorf("%w: min price must be positive", errProfile)
	case p.FloorFraction < 0 || p.FloorFraction >= 1:
		return fmt.Errorf("%w: floor fraction out of range", errProfile)
	case p.FallbackJitter < 0 || p.FallbackJitter >= 1:
		return fmt.Errorf("%w: fallback jitter must be in [0,1)", errProfile)
	case p.Lookback < 2 || p.TrendLookback < 1:
		return fmt.Errorf("%w: lookbacks too short", errProfile)
	case p.StepInterval < 0:
		return fmt.Errorf("%w: negative step interval", errProfile)
	}
	return nil
}

// Fingerprint identifies every option of p. Two profiles that can produce
// different trajectories have different fingerprints.
func (p Profile) Fingerprint() string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%#v", p)))
	return hex.EncodeToString(sum[:8])
}

// decay is the weight of the trend and network terms at step t.
func (p Profile) decay(t int) float64 {
	if p.Granularity == Hourly {
		return math.Pow(p.MomentumDecay, float64(t))
	}
	return math.Pow(p.TrendDecay, float64(t))
}

// Step returns the output spacing for s.
func (p Profile) Step(s series.Series) time.Duration {
	if p.StepInterval > 0 {
		return p.StepInterval
	}
	def := 24 * time.Hour
	if p.Granularity == Hourly {
		def = time.Hour
	}
	return s.StepInterval(def)
}
