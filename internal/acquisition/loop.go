// Package acquisition drives the read, parse, classify, aggregate and publish
// cycle for one active acquisition session.
package acquisition

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"codeberg.org/mutker/torquectl/internal/errors"
	"codeberg.org/mutker/torquectl/internal/logger"
	"codeberg.org/mutker/torquectl/internal/session"
	"codeberg.org/mutker/torquectl/internal/tolerance"
)

// Result is published once per parsed reading.
type Result struct {
	Value float64
	Fits  []tolerance.Fit
	// Accepted holds, per fit, whether the aggregator took the reading.
	Accepted []bool
	At       time.Time
}

// ResultFunc consumes results. It runs on the loop goroutine, should hand
// work off quickly and must not call Stop.
type ResultFunc func(Result)

// Config wires a loop to its collaborators.
type Config struct {
	Open       OpenFunc
	Aggregator *session.Aggregator
	OnResult   ResultFunc
	Logger     logger.Logger
}

// Loop is a running acquisition session. At most one should run at a time.
type Loop struct {
	ctx      context.Context
	src      LineSource
	agg      *session.Aggregator
	onResult ResultFunc
	log      logger.Logger

	stopping atomic.Bool
	stopOnce sync.Once
	errCh    chan error
	done     chan struct{}
}

// Start opens the source and begins reading on a new goroutine against the
// aggregator's active profile. An open failure is returned before any result
// is published. Cancelling ctx has the same effect as Stop.
func Start(ctx context.Context, cfg Config) (*Loop, error) {
	errFactory := errors.New()

	if cfg.Open == nil || cfg.Aggregator == nil {
		return nil, errFactory.New(ErrInvalidSetup)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if cfg.OnResult == nil {
		cfg.OnResult = func(Result) {}
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}

	src, err := cfg.Open()
	if err != nil {
		return nil, errFactory.Wrap(ErrSourceOpen, err)
	}

	l := &Loop{
		ctx:      ctx,
		src:      src,
		agg:      cfg.Aggregator,
		onResult: cfg.OnResult,
		log:      cfg.Logger,
		errCh:    make(chan error, 1),
		done:     make(chan struct{}),
	}

	l.log.Debug().
		Str("session", l.agg.SessionID()).
		Str("profile", l.agg.Profile().String()).
		Msg("Acquisition started")

	go l.run()

	return l, nil
}

// Stop requests cancellation and waits for the loop to exit and release its
// source. The wait is bounded by the source's read timeout. No result is
// published after Stop returns.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() {
		l.stopping.Store(true)
	})
	<-l.done
}

// Done is closed once the loop has exited and the source is closed.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Errors delivers at most one read failure and is closed when the loop exits.
func (l *Loop) Errors() <-chan error {
	return l.errCh
}

func (l *Loop) cancelled() bool {
	return l.stopping.Load() || l.ctx.Err() != nil
}

func (l *Loop) run() {
	defer close(l.done)
	defer close(l.errCh)
	defer func() {
		if err := l.src.Close(); err != nil {
			l.log.Warn().Err(err).Msg("Failed to close line source")
		}
		l.log.Debug().Msg("Line source closed")
	}()

	for !l.cancelled() {
		line, ok, err := l.src.ReadLine()
		if err != nil {
			if errors.Is(err, io.EOF) {
				l.log.Debug().Msg("Line source exhausted")
				return
			}
			if l.cancelled() {
				return
			}
			l.errCh <- errors.New().Wrap(ErrSourceRead, err)
			return
		}
		if !ok || line == "" {
			continue
		}

		value, ok := ParseValue(line)
		if !ok {
			l.log.Debug().Str("line", line).Msg("Discarded line without a reading")
			continue
		}

		if l.cancelled() {
			l.log.Debug().Float64("value", value).Msg("Reading abandoned on stop")
			return
		}

		l.onResult(l.process(value))
	}
}

func (l *Loop) process(value float64) Result {
	fits := tolerance.Classify(value, l.agg.Profile().Bands)
	accepted := make([]bool, len(fits))
	for i, f := range fits {
		accepted[i] = l.agg.Accept(f, value)
	}

	if len(fits) == 0 {
		l.log.Debug().Float64("value", value).Msg("Reading fits no band")
	} else {
		l.log.Debug().
			Float64("value", value).
			Int("band", fits[0].BandIndex).
			Float64("distance", fits[0].Distance).
			Int("fits", len(fits)).
			Msg("Reading classified")
	}

	return Result{
		Value:    value,
		Fits:     fits,
		Accepted: accepted,
		At:       time.Now(),
	}
}
