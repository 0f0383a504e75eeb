package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"codeberg.org/mutker/torquectl/internal/acquisition"
	"codeberg.org/mutker/torquectl/internal/config"
	"codeberg.org/mutker/torquectl/internal/errors"
	"codeberg.org/mutker/torquectl/internal/logger"
	"codeberg.org/mutker/torquectl/internal/pid"
	"codeberg.org/mutker/torquectl/internal/profile"
	"codeberg.org/mutker/torquectl/internal/serial"
	"codeberg.org/mutker/torquectl/internal/session"
	"codeberg.org/mutker/torquectl/internal/store"
	"codeberg.org/mutker/torquectl/internal/units"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const resultBuffer = 64

type runOptions struct {
	profileID     int64
	matchValue    float64
	matchUnit     string
	input         string
	untilComplete bool
}

func NewRunCommand(a *app) *cobra.Command {
	opts := runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Acquire readings against a calibration profile",
		Long: `Acquire readings against a calibration profile.

Readings are read line by line from the serial port (or from --input), each
classified against the profile's three bands and kept, up to five per band.
The session summary is printed and stored when the run ends, on Ctrl-C, at
the end of --input, or once every band is full with --until-complete.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd, opts, cmd.Flags().Changed("match-value"))
		},
	}

	f := cmd.Flags()
	f.String("port", "", "serial device path")
	f.Int("baud", config.DefaultBaudRate, "serial baud rate")
	f.Duration("read-timeout", config.DefaultReadTimeout, "serial read timeout")
	f.Int64Var(&opts.profileID, "profile-id", 0, "profile to calibrate against")
	f.Float64Var(&opts.matchValue, "match-value", 0, "select the first profile whose max torque is near this value")
	f.StringVar(&opts.matchUnit, "match-unit", "Nm", "unit of --match-value")
	f.StringVar(&opts.input, "input", "", "replay readings from a file instead of the serial port (- for stdin)")
	f.BoolVar(&opts.untilComplete, "until-complete", false, "stop once every band holds five readings")

	cmd.MarkFlagsMutuallyExclusive("profile-id", "match-value")

	return cmd
}

func (a *app) run(cmd *cobra.Command, opts runOptions, match bool) error {
	errFactory := errors.New()

	if err := pid.Write(); err != nil {
		return err
	}
	defer func() {
		if err := pid.Remove(); err != nil {
			logger.Warn().Err(err).Msg("Failed to remove PID file")
		}
	}()

	sigCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, err := openStore(sigCtx, a.cfg)
	if err != nil {
		return err
	}
	defer closeStore(repo)

	p, err := a.selectProfile(sigCtx, repo, opts, match)
	if err != nil {
		return err
	}

	open, err := a.opener(cmd, opts)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	agg := session.NewAggregator(p, repo)
	results := make(chan acquisition.Result, resultBuffer)

	loopCtx, cancelLoop := context.WithCancel(sigCtx)
	defer cancelLoop()

	loop, err := acquisition.Start(loopCtx, acquisition.Config{
		Open:       open,
		Aggregator: agg,
		OnResult:   func(r acquisition.Result) { results <- r },
		Logger:     logger.Default(),
	})
	if err != nil {
		return err
	}

	logger.Info().
		Str("session", agg.SessionID()).
		Int64("profile", p.ID).
		Msg("Acquisition running")

	g, gctx := errgroup.WithContext(sigCtx)
	watchCtx, cancelWatch := context.WithCancel(gctx)
	defer cancelWatch()

	g.Go(func() error {
		for {
			select {
			case r := <-results:
				a.report(out, agg, r, opts, cancelLoop)
			case <-loop.Done():
				for {
					select {
					case r := <-results:
						a.report(out, agg, r, opts, cancelLoop)
					default:
						return nil
					}
				}
			}
		}
	})

	g.Go(func() error {
		if err, ok := <-loop.Errors(); ok {
			return err
		}
		return nil
	})

	g.Go(func() error {
		select {
		case <-gctx.Done():
		case <-loop.Done():
		}
		cancelLoop()
		loop.Stop()
		cancelWatch()
		return nil
	})

	if file := a.cfg.File(); file != "" {
		g.Go(func() error {
			err := config.Watch(watchCtx, file, func(c *config.Config) {
				logger.SetLogLevel(logger.ParseLevel(c.LogLevel))
			}, config.WithFlags(cmd.Flags()))
			if err != nil {
				logger.Warn().Err(err).Msg("Config watching disabled")
			}
			return nil
		})
	}

	runErr := g.Wait()

	rows := agg.Summary()
	printSummary(out, agg.SessionID(), p, rows)

	if err := repo.RecordSummary(context.Background(), agg.SessionID(), p.ID, rows); err != nil {
		logger.Error().Err(err).Msg("Failed to store session summary")
	}

	if runErr != nil {
		return errFactory.Wrap(errors.ErrRunFailed, runErr)
	}

	return nil
}

func (a *app) report(w io.Writer, agg *session.Aggregator, r acquisition.Result, opts runOptions, stop func()) {
	if len(r.Fits) == 0 {
		fmt.Fprintf(w, "%s\tno band\n", formatTorque(r.Value))
		return
	}

	for i, fit := range r.Fits {
		status := "full"
		if r.Accepted[i] {
			status = fmt.Sprintf("%d/%d", len(agg.Samples(fit.Range())), session.MaxSamplesPerBand)
		}
		fmt.Fprintf(w, "%s\tband %d (%s)\t%s\n", formatTorque(r.Value), fit.BandIndex, fit.Range(), status)
	}

	if opts.untilComplete && agg.Complete() {
		logger.Info().Msg("All bands complete")
		stop()
	}
}

func (a *app) selectProfile(
	ctx context.Context, ps store.ProfileStore, opts runOptions, match bool,
) (profile.Profile, error) {
	if opts.profileID > 0 {
		return ps.GetProfile(ctx, opts.profileID)
	}
	if !match {
		return profile.Profile{}, errors.New().New(errors.ErrNoProfile)
	}

	return matchProfile(ctx, ps, a.cfg.Units, opts.matchValue, opts.matchUnit)
}

func matchProfile(
	ctx context.Context, ps store.ProfileStore, syn units.Synonyms, value float64, unit string,
) (profile.Profile, error) {
	profiles, err := ps.ListProfiles(ctx)
	if err != nil {
		return profile.Profile{}, err
	}

	idx, ok := profile.NewMatcher(units.NewConverter(syn)).FindProfile(value, unit, profiles)
	if !ok {
		return profile.Profile{}, errors.New().WithData(errors.ErrNoMatch, struct {
			Value float64
			Unit  string
		}{
			Value: value,
			Unit:  unit,
		})
	}

	return profiles[idx], nil
}

func (a *app) opener(cmd *cobra.Command, opts runOptions) (acquisition.OpenFunc, error) {
	switch opts.input {
	case "":
	case "-":
		in := cmd.InOrStdin()
		return func() (acquisition.LineSource, error) {
			return acquisition.NewReaderSource(io.NopCloser(in)), nil
		}, nil
	default:
		path := opts.input
		return func() (acquisition.LineSource, error) {
			f, err := os.Open(path)
			if err != nil {
				return nil, err
			}
			return acquisition.NewReaderSource(f), nil
		}, nil
	}

	if a.cfg.GetPort() == "" {
		return nil, errors.New().New(errors.ErrMissingInput)
	}

	return serial.Opener(serial.Config{
		Port:        a.cfg.GetPort(),
		BaudRate:    a.cfg.GetBaudRate(),
		ReadTimeout: a.cfg.GetReadTimeout(),
	}), nil
}
