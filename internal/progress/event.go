// Package progress defines the event stream emitted during a harvest run.
package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage denotes the milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageRunStart   Stage = "RUN_START"
	StageRunDone    Stage = "RUN_DONE"
	StageRunError   Stage = "RUN_ERROR"
	StageDiscovery  Stage = "DISCOVERY_DONE"
	StageTargetDone Stage = "TARGET_DONE"
	StageCheckpoint Stage = "CHECKPOINT"
)

// Event captures a single milestone of harvest progress.
type Event struct {
	// RunID identifies the harvest run the event belongs to.
	RunID uuid.UUID
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Stage denotes which milestone occurred.
	Stage Stage
	// Target is the normalized identifier for target-scoped events.
	Target string
	// Strategy names the discovery strategy for DISCOVERY_DONE events.
	Strategy string
	// Outcome is the terminal target state for TARGET_DONE events.
	Outcome string
	// Attempts counts fetch attempts consumed by the target.
	Attempts int
	// Yield is the number of identifiers a discovery pass produced.
	Yield int
	// Dur captures execution latency where it applies.
	Dur time.Duration
	// Note lets emitters attach low-volume debug context (e.g. error text).
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RunID == uuid.Nil {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageRunStart, StageRunDone, StageRunError, StageCheckpoint:
	case StageDiscovery:
		if e.Strategy == "" {
			return errors.New("discovery event requires strategy")
		}
	case StageTargetDone:
		if e.Target == "" {
			return errors.New("target event requires target")
		}
		if e.Outcome == "" {
			return errors.New("target event requires outcome")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}
