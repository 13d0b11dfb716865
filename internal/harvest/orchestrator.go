package harvest

import (
	"context"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"linkharvest/internal/progress"
)

// Config controls Orchestrator behavior.
type Config struct {
	// MaxTargets caps how many frontier entries one run will process.
	MaxTargets int
	// CheckpointEvery flushes after this many successes (default 5).
	CheckpointEvery int
	// ShuffleSeed fixes the consumption order for tests; zero seeds from
	// the clock.
	ShuffleSeed int64
}

// Orchestrator consumes a frontier in randomized order, drives fetch
// attempts with retry and pacing against a single-session collaborator, and
// checkpoints accumulated results. It is strictly sequential: the profile
// source owns one authenticated browsing session.
type Orchestrator struct {
	source  ProfileSource
	known   KnownSet
	sink    Checkpointer
	policy  *BackoffPolicy
	clock   Clock
	sleeper Sleeper
	emitter progress.Emitter
	logger  *zap.Logger
	cfg     Config
	runID   uuid.UUID

	records         []Record
	sinceCheckpoint int
}

// New constructs an Orchestrator. The clock and sleeper fall back to system
// implementations when nil.
func New(
	source ProfileSource,
	known KnownSet,
	sink Checkpointer,
	policy *BackoffPolicy,
	clock Clock,
	sleeper Sleeper,
	emitter progress.Emitter,
	cfg Config,
	logger *zap.Logger,
) *Orchestrator {
	if policy == nil {
		policy = NewBackoffPolicy(0, 0, 0, 0, 0)
	}
	if clock == nil {
		clock = systemClock{}
	}
	if sleeper == nil {
		sleeper = ctxSleeper{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.CheckpointEvery <= 0 {
		cfg.CheckpointEvery = 5
	}
	return &Orchestrator{
		source:  source,
		known:   known,
		sink:    sink,
		policy:  policy,
		clock:   clock,
		sleeper: sleeper,
		emitter: emitter,
		logger:  logger,
		cfg:     cfg,
		runID:   uuid.New(),
	}
}

// RunID identifies this run on progress events and export artifacts.
func (o *Orchestrator) RunID() uuid.UUID { return o.runID }

// Records returns the accumulated result set.
func (o *Orchestrator) Records() []Record {
	return append([]Record(nil), o.records...)
}

// Run processes the frontier until it is exhausted, the target budget is
// spent, or ctx is canceled between targets. A final checkpoint always runs,
// even after cancellation; in-flight target state is abandoned.
func (o *Orchestrator) Run(ctx context.Context, frontier []string) Summary {
	targets := append([]string(nil), frontier...)
	o.shuffle(targets)

	var sum Summary
	for _, id := range targets {
		if ctx.Err() != nil {
			sum.Canceled = true
			break
		}
		if o.cfg.MaxTargets > 0 && sum.Processed >= o.cfg.MaxTargets {
			break
		}
		if o.known.IsKnown(id) {
			sum.Skipped++
			o.emitTarget(id, OutcomeSkipped, 0, 0, "")
			continue
		}

		outcome, _, softFails := o.processTarget(ctx, id)
		if ctx.Err() != nil && outcome == OutcomeHardFailed {
			// Canceled mid-target: the in-flight state is abandoned, not
			// counted as a terminal failure.
			sum.Canceled = true
			break
		}
		sum.Processed++
		sum.SoftFailures += softFails
		switch outcome {
		case OutcomeSucceeded:
			sum.Succeeded++
			o.sinceCheckpoint++
			if o.sinceCheckpoint >= o.cfg.CheckpointEvery {
				o.checkpoint(ctx)
				o.sinceCheckpoint = 0
			}
		case OutcomeHardFailed:
			sum.HardFailed++
		}
	}

	if ctx.Err() != nil {
		sum.Canceled = true
	}
	// Final flush runs even when ctx is canceled; completed targets are
	// treated as durable.
	o.checkpoint(context.WithoutCancel(ctx))
	return sum
}

// processTarget walks one target through Pending -> Attempting until a
// terminal outcome. Every attempt is preceded by a resampled pacing delay;
// soft failures add a widening backoff delay.
func (o *Orchestrator) processTarget(ctx context.Context, id string) (Outcome, int, int) {
	softFails := 0
	for attempt := 0; ; attempt++ {
		if err := o.sleeper.Sleep(ctx, o.policy.Pacing()); err != nil {
			return OutcomeHardFailed, attempt, softFails
		}

		start := o.clock.Now()
		profile, err := o.source.FetchProfile(ctx, id)
		if err == nil && profile.Name == "" {
			err = Recoverable(ErrEmptyProfile)
		}
		if err == nil {
			rec := Record{ID: id, CapturedAt: o.clock.Now().UTC(), Profile: profile}
			o.records = append(o.records, rec)
			o.known.Record(id, profile, rec.CapturedAt)
			o.logger.Info("profile captured",
				zap.String("target", id),
				zap.String("name", profile.Name),
				zap.Int("attempt", attempt+1),
				zap.Duration("dur", o.clock.Now().Sub(start)),
			)
			o.emitTarget(id, OutcomeSucceeded, attempt+1, o.clock.Now().Sub(start), "")
			return OutcomeSucceeded, attempt + 1, softFails
		}

		if !o.policy.ShouldRetry(err, attempt+1) {
			o.logger.Warn("target abandoned",
				zap.String("target", id),
				zap.Int("attempts", attempt+1),
				zap.Error(err),
			)
			o.emitTarget(id, OutcomeHardFailed, attempt+1, 0, err.Error())
			return OutcomeHardFailed, attempt + 1, softFails
		}

		softFails++
		backoff := o.policy.Backoff(attempt)
		o.logger.Debug("attempt failed, backing off",
			zap.String("target", id),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)
		if serr := o.sleeper.Sleep(ctx, backoff); serr != nil {
			return OutcomeHardFailed, attempt + 1, softFails
		}
	}
}

func (o *Orchestrator) checkpoint(ctx context.Context) {
	if o.sink == nil {
		return
	}
	note := ""
	if err := o.sink.Flush(ctx, o.Records()); err != nil {
		// Non-fatal: memory is intact and the next checkpoint retries.
		o.logger.Warn("checkpoint flush failed", zap.Error(err))
		note = err.Error()
	}
	o.emit(progress.Event{Stage: progress.StageCheckpoint, Note: note})
}

func (o *Orchestrator) shuffle(targets []string) {
	seed := o.cfg.ShuffleSeed
	if seed == 0 {
		seed = o.clock.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(targets), func(i, j int) {
		targets[i], targets[j] = targets[j], targets[i]
	})
}

func (o *Orchestrator) emitTarget(id string, outcome Outcome, attempts int, dur time.Duration, note string) {
	o.emit(progress.Event{
		Stage:    progress.StageTargetDone,
		Target:   id,
		Outcome:  string(outcome),
		Attempts: attempts,
		Dur:      dur,
		Note:     note,
	})
}

func (o *Orchestrator) emit(evt progress.Event) {
	if o.emitter == nil {
		return
	}
	evt.RunID = o.runID
	evt.TS = o.clock.Now().UTC()
	o.emitter.Emit(evt)
}
