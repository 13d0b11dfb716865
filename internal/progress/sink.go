package progress

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Sink consumes progress events. Implementations must be safe for repeated
// calls and honor ctx deadlines.
type Sink interface {
	Consume(ctx context.Context, evt Event) error
	Close(ctx context.Context) error
}

// Emitter publishes individual events; Hub satisfies this interface so the
// orchestrator stays agnostic about how events are buffered or exported.
type Emitter interface {
	Emit(evt Event)
}

// Tagged wraps an Emitter so every event carries the run identity and a
// fresh timestamp; emitters upstream stay free of that bookkeeping.
func Tagged(e Emitter, runID uuid.UUID, now func() time.Time) Emitter {
	if now == nil {
		now = time.Now
	}
	return &taggedEmitter{inner: e, runID: runID, now: now}
}

type taggedEmitter struct {
	inner Emitter
	runID uuid.UUID
	now   func() time.Time
}

func (t *taggedEmitter) Emit(evt Event) {
	if t.inner == nil {
		return
	}
	evt.RunID = t.runID
	evt.TS = t.now().UTC()
	t.inner.Emit(evt)
}
