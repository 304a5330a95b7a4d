// Package pipeline runs one forecast end to end: load the history, forecast,
// stamp the trajectory, write the cache and archive the run.
package pipeline

import (
	"context"
	"fmt"
	"math/rand"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/FlavioCFOliveira/pricecast/internal/forecast"
	"github.com/FlavioCFOliveira/pricecast/internal/net"
	"github.com/FlavioCFOliveira/pricecast/internal/output"
	"github.com/FlavioCFOliveira/pricecast/internal/series"
	"github.com/FlavioCFOliveira/pricecast/internal/storage"
)

// Archive stores completed runs.
type Archive interface {
	SaveRun(ctx context.Context, run *storage.Run) error
}

// Options configures one run.
type Options struct {
	Input    string
	CacheDir string
	Profile  forecast.Profile
	Rand     *rand.Rand

	// Model is an optional pretrained network.
	Model     *net.Network
	Callbacks []net.Callback
	// Archive is optional.
	Archive Archive
	// Source names the run in the archive, defaulting to the input's base name.
	Source string
}

// Outcome is everything a run produced.
type Outcome struct {
	Series     series.Series
	Report     series.LoadReport
	Result     forecast.Result
	Trajectory output.Trajectory
	CachePath  string
	RunID      uuid.UUID
}

// Run executes the pipeline. The cache file is only written once the whole
// trajectory exists, followed by its metadata. Archive failures are logged,
// not returned.
func Run(ctx context.Context, opts Options, log zerolog.Logger) (*Outcome, error) {
	s, report, err := series.LoadCSV(opts.Input)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", opts.Input, err)
	}
	for _, pe := range report.Errors {
		log.Debug().Err(pe).Msg("skipped row")
	}
	if report.Skipped > 0 {
		log.Warn().Int("rows", report.Rows).Int("skipped", report.Skipped).Msg("skipped unparsable rows")
	}

	f, err := forecast.New(opts.Profile, opts.Rand, log)
	if err != nil {
		return nil, err
	}
	if opts.Model != nil {
		f.UsePretrained(opts.Model)
	}
	f.AddCallback(opts.Callbacks...)

	res, err := f.Run(s)
	if err != nil {
		return nil, fmt.Errorf("forecast %s: %w", opts.Input, err)
	}

	last := s.Last()
	traj := output.Assemble(last.Time, opts.Profile.Step(s), res.Values)
	out := &Outcome{
		Series:     s,
		Report:     report,
		Result:     res,
		Trajectory: traj,
		CachePath:  output.CachePath(opts.CacheDir, opts.Input),
	}
	if err := output.WriteCache(out.CachePath, traj); err != nil {
		return nil, err
	}
	meta := output.Meta{Profile: opts.Profile.Fingerprint(), Method: string(res.Method)}
	if err := output.WriteMeta(out.CachePath, meta); err != nil {
		return nil, err
	}

	if opts.Archive != nil {
		run := &storage.Run{
			Source:       opts.source(),
			Profile:      opts.Profile.Name,
			Method:       string(res.Method),
			LastObserved: last.Time,
			Points:       traj,
		}
		if err := opts.Archive.SaveRun(ctx, run); err != nil {
			log.Warn().Err(err).Msg("failed to archive run")
		} else {
			out.RunID = run.ID
		}
	}
	return out, nil
}

func (o Options) source() string {
	if o.Source != "" {
		return o.Source
	}
	base := filepath.Base(o.Input)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
