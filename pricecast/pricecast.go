// Package pricecast is the public entry point to the forecaster.
package pricecast

import (
	"io"
	"math/rand"

	"github.com/rs/zerolog"

	"github.com/FlavioCFOliveira/pricecast/internal/forecast"
	"github.com/FlavioCFOliveira/pricecast/internal/net"
	"github.com/FlavioCFOliveira/pricecast/internal/output"
	"github.com/FlavioCFOliveira/pricecast/internal/series"
)

// Re-export common types for easier access
type (
	Profile    = forecast.Profile
	Result     = forecast.Result
	Series     = series.Series
	Point      = series.Point
	Record     = output.Record
	Trajectory = output.Trajectory
	Network    = net.Network
)

// Errors
var ErrInsufficientData = series.ErrInsufficientData

// Profiles
var (
	DailyProfile  = forecast.DailyProfile
	HourlyProfile = forecast.HourlyProfile
	SimpleProfile = forecast.SimpleProfile
)

// ProfileByName returns a built-in profile: daily, simple or hourly.
func ProfileByName(name string) (Profile, error) {
	return forecast.ProfileByName(name)
}

// ReadSeries parses a "ds,y" CSV history. Unparsable rows are skipped.
func ReadSeries(r io.Reader) (Series, error) {
	s, _, err := series.ReadCSV(r)
	return s, err
}

// Forecast runs profile over s with a generator seeded by seed and returns
// the timestamped trajectory.
func Forecast(s Series, profile Profile, seed int64) (Trajectory, error) {
	f, err := forecast.New(profile, rand.New(rand.NewSource(seed)), zerolog.Nop())
	if err != nil {
		return nil, err
	}
	res, err := f.Run(s)
	if err != nil {
		return nil, err
	}
	return output.Assemble(s.Last().Time, profile.Step(s), res.Values), nil
}

// ForecastCSV reads a history from r and writes the "i,ds,y" forecast to w.
func ForecastCSV(r io.Reader, w io.Writer, profile Profile, seed int64) error {
	s, err := ReadSeries(r)
	if err != nil {
		return err
	}
	t, err := Forecast(s, profile, seed)
	if err != nil {
		return err
	}
	return t.WriteCSV(w)
}
