package sinks

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"linkharvest/internal/progress"
)

// PrometheusSink exports harvest progress metrics. It owns all collectors
// for run lifecycle, target outcomes, and discovery yields.
type PrometheusSink struct {
	runsStarted   prometheus.Counter
	runsCompleted *prometheus.CounterVec
	runDuration   *prometheus.HistogramVec
	targets       *prometheus.CounterVec
	attempts      prometheus.Counter
	discovered    *prometheus.CounterVec
	checkpoints   *prometheus.CounterVec
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		runsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "harvest_runs_started_total",
			Help: "Total harvest runs started.",
		}),
		runsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "harvest_runs_completed_total",
			Help: "Total harvest runs completed partitioned by result.",
		}, []string{"result"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "harvest_run_duration_seconds",
			Help:    "Wall time per completed run.",
			Buckets: []float64{30, 60, 300, 600, 1800, 3600, 7200},
		}, []string{"result"}),
		targets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "harvest_targets_total",
			Help: "Terminal target outcomes partitioned by result.",
		}, []string{"outcome"}),
		attempts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "harvest_fetch_attempts_total",
			Help: "Total fetch attempts, including retries.",
		}),
		discovered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "harvest_discovered_total",
			Help: "Candidate identifiers yielded per discovery strategy.",
		}, []string{"strategy"}),
		checkpoints: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "harvest_checkpoints_total",
			Help: "Checkpoint flushes partitioned by result.",
		}, []string{"result"}),
	}
	for _, collector := range []prometheus.Collector{
		s.runsStarted,
		s.runsCompleted,
		s.runDuration,
		s.targets,
		s.attempts,
		s.discovered,
		s.checkpoints,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the collectors from one event.
func (s *PrometheusSink) Consume(_ context.Context, evt progress.Event) error {
	switch evt.Stage {
	case progress.StageRunStart:
		s.runsStarted.Inc()
	case progress.StageRunDone:
		s.runsCompleted.WithLabelValues("success").Inc()
		s.observeRuntime(evt, "success")
	case progress.StageRunError:
		s.runsCompleted.WithLabelValues("error").Inc()
		s.observeRuntime(evt, "error")
	case progress.StageTargetDone:
		s.targets.WithLabelValues(evt.Outcome).Inc()
		if evt.Attempts > 0 {
			s.attempts.Add(float64(evt.Attempts))
		}
	case progress.StageDiscovery:
		s.discovered.WithLabelValues(evt.Strategy).Add(float64(evt.Yield))
	case progress.StageCheckpoint:
		result := "success"
		if evt.Note != "" {
			result = "error"
		}
		s.checkpoints.WithLabelValues(result).Inc()
	}
	return nil
}

func (s *PrometheusSink) observeRuntime(evt progress.Event, label string) {
	if evt.Dur > 0 {
		s.runDuration.WithLabelValues(label).Observe(evt.Dur.Seconds())
	}
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}
