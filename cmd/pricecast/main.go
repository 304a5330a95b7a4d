// Command pricecast forecasts the next prices of a CSV price history.
//
// Usage:
//
//	pricecast [flags] <input.csv>
//
// The forecast is written as "i,ds,y" CSV to stdout and to
// <cache-dir>/<input base name>.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/FlavioCFOliveira/pricecast/internal/config"
	"github.com/FlavioCFOliveira/pricecast/internal/logger"
	"github.com/FlavioCFOliveira/pricecast/internal/net"
	"github.com/FlavioCFOliveira/pricecast/internal/pipeline"
	"github.com/FlavioCFOliveira/pricecast/internal/series"
	"github.com/FlavioCFOliveira/pricecast/internal/storage"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := pflag.NewFlagSet("pricecast", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	config.RegisterFlags(fs)
	fs.Usage = func() {
		fmt.Fprintln(stderr, "Usage: pricecast [flags] <input.csv>")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}
	if fs.NArg() < 1 {
		fs.Usage()
		return exitUsage
	}
	input := fs.Arg(0)

	cfgPath, _ := fs.GetString("config")
	cfg, err := config.Load(cfgPath, fs)
	if err != nil {
		fmt.Fprintf(stderr, "pricecast: %v\n", err)
		return exitError
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "pricecast: %v\n", err)
		return exitError
	}
	log := logger.New(stderr, "pricecast", cfg.Logging.Level, cfg.Logging.Format)

	if err := forecastFile(input, cfg, stdout, log); err != nil {
		if errors.Is(err, series.ErrInsufficientData) {
			fmt.Fprintf(stderr, "pricecast: %s has no usable rows, nothing to forecast\n", input)
			return exitError
		}
		log.Error().Err(err).Str("input", input).Msg("forecast failed")
		return exitError
	}
	return exitOK
}

func forecastFile(input string, cfg *config.Config, stdout io.Writer, log zerolog.Logger) error {
	profile, err := cfg.Profile()
	if err != nil {
		return err
	}
	seed := cfg.RandSeed()
	log.Debug().Int64("seed", seed).Str("profile", profile.Name).Msg("starting")

	opts := pipeline.Options{
		Input:     input,
		CacheDir:  cfg.Output.CacheDir,
		Profile:   profile,
		Rand:      rand.New(rand.NewSource(seed)),
		Callbacks: []net.Callback{&net.LogCallback{Log: log, Interval: cfg.Training.LogInterval}},
	}
	if cfg.Training.LossLog != "" {
		opts.Callbacks = append(opts.Callbacks, net.NewCSVLogger(cfg.Training.LossLog, false, log))
	}
	if path := cfg.Training.Model; path != "" {
		model, err := net.Load(path)
		if err != nil {
			return fmt.Errorf("load model: %w", err)
		}
		opts.Model = model
	}
	if cfg.Storage.Driver != "" {
		archive, err := storage.Open(cfg.Storage.Driver, cfg.Storage.DSN)
		if err != nil {
			return fmt.Errorf("open archive: %w", err)
		}
		defer archive.Close()
		opts.Archive = archive
	}

	out, err := pipeline.Run(context.Background(), opts, log)
	if err != nil {
		return err
	}
	if err := out.Trajectory.WriteCSV(stdout); err != nil {
		return fmt.Errorf("write forecast: %w", err)
	}

	if path := cfg.Training.SaveModel; path != "" && out.Result.Network != nil {
		if err := out.Result.Network.Save(path); err != nil {
			return fmt.Errorf("save model: %w", err)
		}
		log.Info().Str("path", path).Msg("model saved")
	}

	ev := log.Info().
		Str("method", string(out.Result.Method)).
		Int("points", len(out.Trajectory)).
		Str("cache", out.CachePath)
	if out.Report.Skipped > 0 {
		ev = ev.Int("skipped_rows", out.Report.Skipped)
	}
	ev.Msg("forecast written")
	return nil
}
