package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"linkharvest/internal/api"
	"linkharvest/internal/archive"
	"linkharvest/internal/checkpoint"
	"linkharvest/internal/export"
	"linkharvest/internal/frontier"
	"linkharvest/internal/harvest"
	"linkharvest/internal/identity"
	"linkharvest/internal/progress"
	"linkharvest/internal/progress/sinks"
	"linkharvest/internal/session"
)

func newHarvestCmd() *cobra.Command {
	var (
		visible    bool
		maxTargets int
	)
	cmd := &cobra.Command{
		Use:   "harvest",
		Short: "Runs one discovery-and-fetch pass",
		Long: `Builds the frontier from the configured seeds, groups, and keywords,
then fetches each new target through the authenticated browser session.
Interrupting the run (Ctrl-C) stops between targets and still flushes a
final checkpoint.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHarvest(cmd, visible, maxTargets)
		},
	}
	cmd.Flags().BoolVar(&visible, "visible", false, "run the browser with a visible window")
	cmd.Flags().IntVar(&maxTargets, "max-targets", 0, "override discovery.max_targets")
	return cmd
}

func runHarvest(cmd *cobra.Command, visible bool, maxTargets int) error {
	cfg, logger, err := loadApp()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if visible {
		cfg.Session.Headless = false
	}
	if maxTargets > 0 {
		cfg.Discovery.MaxTargets = maxTargets
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// A corrupt store is fatal: proceeding empty would re-process completed
	// targets and silently diverge the on-disk data.
	store, err := identity.Load(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("load identity store: %w", err)
	}
	logger.Info("identity store loaded",
		zap.String("path", cfg.Store.Path), zap.Int("known", store.Count()))

	sess, err := session.New(session.Config{
		Headless:   cfg.Session.Headless,
		UserAgent:  cfg.Session.UserAgent,
		NavTimeout: cfg.NavTimeout(),
		LoginURL:   cfg.Session.LoginURL,
		SearchURL:  cfg.Session.SearchURL,
		HostQPS:    cfg.Session.HostQPS,
	}, logger.Named("session"))
	if err != nil {
		return fmt.Errorf("start browser session: %w", err)
	}
	defer func() { _ = sess.Close() }()

	if err := sess.Login(ctx, cfg.Session.Email, cfg.Session.Password); err != nil {
		return fmt.Errorf("authenticate session: %w", err)
	}

	promSink, err := sinks.NewPrometheusSink(prometheus.DefaultRegisterer)
	if err != nil {
		return fmt.Errorf("init metrics sink: %w", err)
	}
	hub := progress.NewHub(
		progress.Config{Logger: logger.Named("progress")},
		sinks.NewLogSink(logger.Named("progress")),
		promSink,
	)
	defer func() { _ = hub.Close(context.Background()) }()

	exporter, err := export.NewExporter(cfg.Export.Dir, logger.Named("export"))
	if err != nil {
		return fmt.Errorf("init exporter: %w", err)
	}

	var archiver checkpoint.Archiver
	if cfg.Archive.Enabled {
		arch, aerr := archive.Open(cfg.Archive.Path)
		if aerr != nil {
			return fmt.Errorf("open archive: %w", aerr)
		}
		defer func() { _ = arch.Close() }()
		archiver = arch
	}

	sink := checkpoint.NewSink(store, exporter, archiver, logger.Named("checkpoint"))

	delayMin, delayMax := cfg.DelayRange()
	backoffBase, backoffMax := cfg.BackoffRange()
	policy := harvest.NewBackoffPolicy(cfg.Harvest.MaxAttempts, backoffBase, backoffMax, delayMin, delayMax)

	orch := harvest.New(sess, store, sink, policy, nil, nil, hub, harvest.Config{
		MaxTargets:      cfg.Discovery.MaxTargets,
		CheckpointEvery: cfg.Harvest.CheckpointEvery,
	}, logger.Named("harvest"))

	emitter := progress.Tagged(hub, orch.RunID(), nil)

	if cfg.Metrics.Listen != "" {
		srv := api.NewServer(cfg.Metrics.Listen, func() any {
			return map[string]any{
				"run_id": orch.RunID().String(),
				"known":  store.Count(),
			}
		}, logger.Named("api"))
		srv.Start()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	builder := frontier.NewBuilder(sess, store, emitter, logger.Named("frontier"))
	candidates := builder.Build(ctx, frontier.Config{
		Seeds:      cfg.Discovery.Seeds,
		Groups:     cfg.Discovery.Groups,
		Keywords:   cfg.Discovery.Keywords,
		MaxYield:   cfg.Discovery.MaxTargets,
		PerSeedCap: cfg.Discovery.PerSeedCap,
		PerTermCap: cfg.Discovery.PerTermCap,
	})
	logger.Info("frontier built", zap.Int("candidates", len(candidates)))

	start := time.Now()
	emitter.Emit(progress.Event{Stage: progress.StageRunStart})
	sum := orch.Run(ctx, candidates)
	emitter.Emit(progress.Event{Stage: progress.StageRunDone, Dur: time.Since(start)})

	logger.Info("harvest finished",
		zap.Int("processed", sum.Processed),
		zap.Int("succeeded", sum.Succeeded),
		zap.Int("hard_failed", sum.HardFailed),
		zap.Int("skipped", sum.Skipped),
		zap.Int("soft_failures", sum.SoftFailures),
		zap.Bool("canceled", sum.Canceled),
		zap.Int("known_total", store.Count()),
	)
	return nil
}
