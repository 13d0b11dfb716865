package harvest

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type scriptedSource struct {
	// failures maps a target to how many attempts fail before success.
	failures map[string]int
	// terminal marks targets whose failures are not retryable.
	terminal map[string]bool
	attempts map[string]int
	// cancel, when set, is called on the first fetch of the named target.
	cancelOn string
	cancel   context.CancelFunc
}

func (s *scriptedSource) FetchProfile(_ context.Context, rawURL string) (Profile, error) {
	if s.attempts == nil {
		s.attempts = make(map[string]int)
	}
	s.attempts[rawURL]++
	if rawURL == s.cancelOn && s.cancel != nil {
		s.cancel()
		s.cancel = nil
		return Profile{}, context.Canceled
	}
	if s.attempts[rawURL] <= s.failures[rawURL] {
		if s.terminal[rawURL] {
			return Profile{}, errors.New("page structure changed")
		}
		return Profile{}, Recoverable(errors.New("render timed out"))
	}
	return Profile{URL: rawURL, Name: "Profile " + rawURL}, nil
}

type memKnown struct {
	mu      sync.Mutex
	entries map[string]Profile
}

func newMemKnown(ids ...string) *memKnown {
	m := &memKnown{entries: make(map[string]Profile)}
	for _, id := range ids {
		m.entries[id] = Profile{}
	}
	return m
}

func (m *memKnown) IsKnown(raw string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.entries[raw]
	return ok
}

func (m *memKnown) Record(id string, p Profile, _ time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[id] = p
}

func (m *memKnown) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

type countingSink struct {
	flushes []int
	err     error
}

func (c *countingSink) Flush(_ context.Context, records []Record) error {
	c.flushes = append(c.flushes, len(records))
	return c.err
}

type countingSleeper struct {
	sleeps []time.Duration
}

func (c *countingSleeper) Sleep(_ context.Context, d time.Duration) error {
	c.sleeps = append(c.sleeps, d)
	return nil
}

func quickPolicy(maxAttempts int) *BackoffPolicy {
	return NewBackoffPolicy(maxAttempts, time.Millisecond, 2*time.Millisecond, time.Millisecond, 2*time.Millisecond)
}

func testConfig() Config {
	return Config{CheckpointEvery: 100, ShuffleSeed: 1}
}

func TestRun_RetriesThenSucceeds(t *testing.T) {
	t.Parallel()
	source := &scriptedSource{failures: map[string]int{"https://site/in/x": 2}}
	known := newMemKnown()
	sleeper := &countingSleeper{}
	orch := New(source, known, nil, quickPolicy(3), nil, sleeper, nil, testConfig(), nil)

	sum := orch.Run(context.Background(), []string{"https://site/in/x"})

	require.Equal(t, 1, sum.Succeeded)
	require.Equal(t, 0, sum.HardFailed)
	require.Equal(t, 2, sum.SoftFailures)
	require.Equal(t, 3, source.attempts["https://site/in/x"])
	require.True(t, known.IsKnown("https://site/in/x"))
	// Three pacing sleeps plus two backoff sleeps.
	require.Len(t, sleeper.sleeps, 5)
}

func TestRun_ExhaustedAttemptsNeverRecorded(t *testing.T) {
	t.Parallel()
	source := &scriptedSource{failures: map[string]int{"https://site/in/x": 3}}
	known := newMemKnown()
	orch := New(source, known, nil, quickPolicy(3), nil, &countingSleeper{}, nil, testConfig(), nil)

	sum := orch.Run(context.Background(), []string{"https://site/in/x"})

	require.Equal(t, 1, sum.HardFailed)
	require.Equal(t, 0, sum.Succeeded)
	require.Equal(t, 3, source.attempts["https://site/in/x"])
	require.False(t, known.IsKnown("https://site/in/x"))
	require.Empty(t, orch.Records())
}

func TestRun_TerminalFailureDoesNotRetry(t *testing.T) {
	t.Parallel()
	source := &scriptedSource{
		failures: map[string]int{"https://site/in/x": 1},
		terminal: map[string]bool{"https://site/in/x": true},
	}
	known := newMemKnown()
	orch := New(source, known, nil, quickPolicy(3), nil, &countingSleeper{}, nil, testConfig(), nil)

	sum := orch.Run(context.Background(), []string{"https://site/in/x"})

	require.Equal(t, 1, sum.HardFailed)
	require.Equal(t, 1, source.attempts["https://site/in/x"])
	require.False(t, known.IsKnown("https://site/in/x"))
}

func TestRun_SkipsKnownTargets(t *testing.T) {
	t.Parallel()
	source := &scriptedSource{}
	known := newMemKnown("https://site/in/a")
	orch := New(source, known, nil, quickPolicy(3), nil, &countingSleeper{}, nil, testConfig(), nil)

	sum := orch.Run(context.Background(), []string{"https://site/in/a", "https://site/in/b"})

	require.Equal(t, 1, sum.Skipped)
	require.Equal(t, 1, sum.Succeeded)
	require.Equal(t, 0, source.attempts["https://site/in/a"])
	require.Equal(t, 1, source.attempts["https://site/in/b"])
}

func TestRun_MaxTargetsBudget(t *testing.T) {
	t.Parallel()
	source := &scriptedSource{}
	known := newMemKnown()
	cfg := testConfig()
	cfg.MaxTargets = 2
	orch := New(source, known, nil, quickPolicy(3), nil, &countingSleeper{}, nil, cfg, nil)

	sum := orch.Run(context.Background(), []string{
		"https://site/in/a", "https://site/in/b", "https://site/in/c",
	})

	require.Equal(t, 2, sum.Processed)
	require.Equal(t, 2, sum.Succeeded)
	require.Equal(t, 2, known.Count())
}

func TestRun_CheckpointsEveryKSuccesses(t *testing.T) {
	t.Parallel()
	source := &scriptedSource{}
	sink := &countingSink{}
	cfg := testConfig()
	cfg.CheckpointEvery = 2
	orch := New(source, newMemKnown(), sink, quickPolicy(3), nil, &countingSleeper{}, nil, cfg, nil)

	sum := orch.Run(context.Background(), []string{
		"https://site/in/a", "https://site/in/b", "https://site/in/c",
	})

	require.Equal(t, 3, sum.Succeeded)
	// One interval flush after the second success, then the final flush.
	require.Equal(t, []int{2, 3}, sink.flushes)
}

func TestRun_FinalCheckpointAlwaysRuns(t *testing.T) {
	t.Parallel()
	source := &scriptedSource{}
	sink := &countingSink{}
	orch := New(source, newMemKnown(), sink, quickPolicy(3), nil, &countingSleeper{}, nil, testConfig(), nil)

	orch.Run(context.Background(), []string{"https://site/in/a"})

	require.Equal(t, []int{1}, sink.flushes)
}

func TestRun_CheckpointFailureIsNonFatal(t *testing.T) {
	t.Parallel()
	source := &scriptedSource{}
	sink := &countingSink{err: errors.New("disk full")}
	cfg := testConfig()
	cfg.CheckpointEvery = 1
	orch := New(source, newMemKnown(), sink, quickPolicy(3), nil, &countingSleeper{}, nil, cfg, nil)

	sum := orch.Run(context.Background(), []string{"https://site/in/a", "https://site/in/b"})

	require.Equal(t, 2, sum.Succeeded)
	// Two interval flushes plus the final one, all attempted despite errors.
	require.Equal(t, []int{1, 2, 2}, sink.flushes)
	require.Len(t, orch.Records(), 2)
}

func TestRun_CanceledBeforeStart(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	source := &scriptedSource{}
	sink := &countingSink{}
	orch := New(source, newMemKnown(), sink, quickPolicy(3), nil, &countingSleeper{}, nil, testConfig(), nil)

	sum := orch.Run(ctx, []string{"https://site/in/a"})

	require.True(t, sum.Canceled)
	require.Equal(t, 0, sum.Processed)
	// The final flush still fires on the detached context.
	require.Equal(t, []int{0}, sink.flushes)
}

func TestRun_CancelMidTargetAbandonsInFlightState(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	source := &scriptedSource{cancelOn: "https://site/in/b", cancel: cancel}
	known := newMemKnown()
	cfg := testConfig()
	cfg.ShuffleSeed = 7
	orch := New(source, known, nil, quickPolicy(3), nil, &countingSleeper{}, nil, cfg, nil)

	sum := orch.Run(ctx, []string{"https://site/in/b"})

	require.True(t, sum.Canceled)
	require.Equal(t, 0, sum.HardFailed)
	require.Equal(t, 0, sum.Processed)
	require.False(t, known.IsKnown("https://site/in/b"))
}

func TestRun_ShuffleIsSeedStable(t *testing.T) {
	t.Parallel()
	frontier := []string{
		"https://site/in/a", "https://site/in/b",
		"https://site/in/c", "https://site/in/d",
	}
	order := func() []string {
		source := &scriptedSource{}
		cfg := testConfig()
		cfg.ShuffleSeed = 42
		orch := New(source, newMemKnown(), nil, quickPolicy(3), nil, &countingSleeper{}, nil, cfg, nil)
		orch.Run(context.Background(), frontier)
		got := make([]string, 0, len(orch.Records()))
		for _, rec := range orch.Records() {
			got = append(got, rec.ID)
		}
		return got
	}

	first := order()
	second := order()
	require.Equal(t, first, second)

	sorted := append([]string(nil), first...)
	sort.Strings(sorted)
	require.Equal(t, frontier, sorted)
}

func TestRun_DoesNotMutateFrontier(t *testing.T) {
	t.Parallel()
	frontier := []string{"https://site/in/a", "https://site/in/b", "https://site/in/c"}
	snapshot := append([]string(nil), frontier...)
	source := &scriptedSource{}
	orch := New(source, newMemKnown(), nil, quickPolicy(3), nil, &countingSleeper{}, nil, testConfig(), nil)

	orch.Run(context.Background(), frontier)

	require.Equal(t, snapshot, frontier)
}

func TestRun_EmptyProfileIsRetryable(t *testing.T) {
	t.Parallel()
	source := &emptyThenNamedSource{}
	known := newMemKnown()
	orch := New(source, known, nil, quickPolicy(3), nil, &countingSleeper{}, nil, testConfig(), nil)

	sum := orch.Run(context.Background(), []string{"https://site/in/x"})

	require.Equal(t, 1, sum.Succeeded)
	require.Equal(t, 1, sum.SoftFailures)
	require.Equal(t, 2, source.calls)
}

type emptyThenNamedSource struct {
	calls int
}

func (s *emptyThenNamedSource) FetchProfile(_ context.Context, rawURL string) (Profile, error) {
	s.calls++
	if s.calls == 1 {
		return Profile{URL: rawURL}, nil
	}
	return Profile{URL: rawURL, Name: "Finally Loaded"}, nil
}
