package harvest

import (
	"context"
	"time"
)

// ProfileSource retrieves one profile per call. Implementations own exactly
// one authenticated browsing session, so callers must issue fetches strictly
// sequentially.
type ProfileSource interface {
	FetchProfile(ctx context.Context, rawURL string) (Profile, error)
}

// LinkSource discovers candidate profile references from pages reachable
// through the same session.
type LinkSource interface {
	// NeighborLinks harvests outbound profile links from one profile page.
	NeighborLinks(ctx context.Context, profileURL string, max int) ([]string, error)
	// MemberLinks harvests profile links from an organization's people page.
	MemberLinks(ctx context.Context, groupURL string, max int) ([]string, error)
	// SearchLinks harvests profile links from a people-search result page.
	SearchLinks(ctx context.Context, term string, max int) ([]string, error)
}

// KnownSet is the authoritative record of already-processed identifiers. It
// must be consulted before any fetch attempt and updated together with the
// in-memory result set after a success.
type KnownSet interface {
	IsKnown(raw string) bool
	Record(id string, p Profile, capturedAt time.Time)
	Count() int
}

// Checkpointer flushes accumulated records and identity state to durable
// storage. Flush failures are non-fatal; the orchestrator retries at the
// next checkpoint.
type Checkpointer interface {
	Flush(ctx context.Context, records []Record) error
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// Sleeper suspends the run between attempts. Tests substitute a counting
// no-op implementation.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

type ctxSleeper struct{}

func (ctxSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
