package acquisition_test

import (
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"codeberg.org/mutker/torquectl/internal/acquisition"
	"codeberg.org/mutker/torquectl/internal/errors"
	"codeberg.org/mutker/torquectl/internal/profile"
	"codeberg.org/mutker/torquectl/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type step struct {
	line string
	err  error
}

// scriptedSource replays steps, then behaves like an idle device that times
// out every readTimeout.
type scriptedSource struct {
	mu          sync.Mutex
	steps       []step
	readTimeout time.Duration
	closed      bool
}

func (s *scriptedSource) ReadLine() (string, bool, error) {
	s.mu.Lock()
	if len(s.steps) > 0 {
		st := s.steps[0]
		s.steps = s.steps[1:]
		s.mu.Unlock()
		if st.err != nil {
			return "", false, st.err
		}
		return st.line, true, nil
	}
	s.mu.Unlock()

	time.Sleep(s.readTimeout)
	return "", false, nil
}

func (s *scriptedSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *scriptedSource) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type collector struct {
	mu      sync.Mutex
	results []acquisition.Result
}

func (c *collector) add(r acquisition.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results = append(c.results, r)
}

func (c *collector) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.results)
}

func (c *collector) snapshot() []acquisition.Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]acquisition.Result, len(c.results))
	copy(out, c.results)
	return out
}

func newAggregator() *session.Aggregator {
	p := profile.Generate(100, "Nm", "Wrench")
	p.ID = 1
	return session.NewAggregator(p, nil)
}

func TestLoopPublishesEveryParsedReading(t *testing.T) {
	src := &scriptedSource{
		readTimeout: 10 * time.Millisecond,
		steps: []step{
			{line: "ST,GS"},
			{line: "91.0 Nm"},
			{line: ""},
			{line: "999"},
			{line: "60.5"},
		},
	}
	agg := newAggregator()
	c := &collector{}

	loop, err := acquisition.Start(context.Background(), acquisition.Config{
		Open:       func() (acquisition.LineSource, error) { return src, nil },
		Aggregator: agg,
		OnResult:   c.add,
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return c.len() == 3 }, time.Second, 5*time.Millisecond)
	loop.Stop()

	results := c.snapshot()
	assert.Equal(t, 91.0, results[0].Value)
	require.Len(t, results[0].Fits, 1)
	assert.Equal(t, []bool{true}, results[0].Accepted)

	assert.Equal(t, 999.0, results[1].Value)
	assert.Empty(t, results[1].Fits, "no-fit readings are still published")

	assert.Equal(t, 60.5, results[2].Value)
	assert.Equal(t, 2, results[2].Fits[0].BandIndex)

	assert.Equal(t, []float64{91}, agg.Samples("86.4 - 93.6"))
	assert.Equal(t, []float64{60.5}, agg.Samples("57.6 - 62.4"))
	assert.True(t, src.isClosed())
}

func TestLoopOpenFailure(t *testing.T) {
	called := false
	_, err := acquisition.Start(context.Background(), acquisition.Config{
		Open: func() (acquisition.LineSource, error) {
			return nil, io.ErrClosedPipe
		},
		Aggregator: newAggregator(),
		OnResult:   func(acquisition.Result) { called = true },
	})

	require.Error(t, err)
	assert.True(t, errors.HasCode(err, acquisition.ErrSourceOpen))
	assert.ErrorIs(t, err, io.ErrClosedPipe)
	assert.False(t, called)
}

func TestLoopNilContextRunsUntilStop(t *testing.T) {
	src := &scriptedSource{readTimeout: 10 * time.Millisecond, steps: []step{{line: "90"}}}
	c := &collector{}

	var ctx context.Context
	loop, err := acquisition.Start(ctx, acquisition.Config{
		Open:       func() (acquisition.LineSource, error) { return src, nil },
		Aggregator: newAggregator(),
		OnResult:   c.add,
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return c.len() == 1 }, time.Second, 5*time.Millisecond)
	loop.Stop()
	assert.True(t, src.isClosed())
}

func TestLoopInvalidSetup(t *testing.T) {
	_, err := acquisition.Start(context.Background(), acquisition.Config{})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, acquisition.ErrInvalidSetup))
}

func TestLoopReadFailureReportedOnce(t *testing.T) {
	src := &scriptedSource{
		readTimeout: 10 * time.Millisecond,
		steps: []step{
			{line: "30"},
			{err: io.ErrUnexpectedEOF},
			{line: "31"},
		},
	}
	c := &collector{}

	loop, err := acquisition.Start(context.Background(), acquisition.Config{
		Open:       func() (acquisition.LineSource, error) { return src, nil },
		Aggregator: newAggregator(),
		OnResult:   c.add,
	})
	require.NoError(t, err)

	select {
	case <-loop.Done():
	case <-time.After(time.Second):
		t.Fatal("loop did not terminate after read failure")
	}

	var errs []error
	for e := range loop.Errors() {
		errs = append(errs, e)
	}
	require.Len(t, errs, 1)
	assert.True(t, errors.HasCode(errs[0], acquisition.ErrSourceRead))
	assert.ErrorIs(t, errs[0], io.ErrUnexpectedEOF)

	assert.Equal(t, 1, c.len(), "read errors never reach the result callback")
	assert.True(t, src.isClosed())
}

func TestLoopStopsPromptlyWhileIdle(t *testing.T) {
	const readTimeout = 100 * time.Millisecond
	src := &scriptedSource{readTimeout: readTimeout, steps: []step{{line: "90"}}}
	c := &collector{}

	loop, err := acquisition.Start(context.Background(), acquisition.Config{
		Open:       func() (acquisition.LineSource, error) { return src, nil },
		Aggregator: newAggregator(),
		OnResult:   c.add,
	})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return c.len() == 1 }, time.Second, 5*time.Millisecond)

	started := time.Now()
	loop.Stop()
	assert.Less(t, time.Since(started), 3*readTimeout)
	assert.True(t, src.isClosed())

	// no callbacks after stop
	src.mu.Lock()
	src.steps = append(src.steps, step{line: "91"})
	src.mu.Unlock()
	time.Sleep(2 * readTimeout)
	assert.Equal(t, 1, c.len())

	_, open := <-loop.Errors()
	assert.False(t, open, "stop is not an error")

	// Stop is idempotent
	loop.Stop()
}

func TestLoopStopsOnContextCancel(t *testing.T) {
	src := &scriptedSource{readTimeout: 20 * time.Millisecond}
	ctx, cancel := context.WithCancel(context.Background())

	loop, err := acquisition.Start(ctx, acquisition.Config{
		Open:       func() (acquisition.LineSource, error) { return src, nil },
		Aggregator: newAggregator(),
	})
	require.NoError(t, err)

	cancel()
	select {
	case <-loop.Done():
	case <-time.After(time.Second):
		t.Fatal("loop ignored context cancellation")
	}
	assert.True(t, src.isClosed())
}

func TestLoopReaderSourceEndsAtEOF(t *testing.T) {
	input := strings.NewReader("GS\n91\n90.5 Nm\n93\n92\n91\n89\nEND\n")
	agg := newAggregator()
	c := &collector{}

	loop, err := acquisition.Start(context.Background(), acquisition.Config{
		Open:       func() (acquisition.LineSource, error) { return acquisition.NewReaderSource(input), nil },
		Aggregator: agg,
		OnResult:   c.add,
	})
	require.NoError(t, err)

	select {
	case <-loop.Done():
	case <-time.After(time.Second):
		t.Fatal("loop did not finish at end of input")
	}

	_, open := <-loop.Errors()
	assert.False(t, open, "end of input is not an error")

	results := c.snapshot()
	require.Len(t, results, 6)
	assert.Equal(t, []bool{false}, results[5].Accepted, "sixth reading in a band is dropped")
	assert.Equal(t, []float64{91, 90.5, 93, 92, 91}, agg.Samples("86.4 - 93.6"))
}
