package cmd

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"linkharvest/internal/archive"
	"linkharvest/internal/identity"
)

func newStatsCmd() *cobra.Command {
	var recent int
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Shows identity store and archive statistics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStats(cmd, recent)
		},
	}
	cmd.Flags().IntVar(&recent, "recent", 10, "number of recently captured profiles to list")
	return cmd
}

func runStats(cmd *cobra.Command, recent int) error {
	cfg, logger, err := loadApp()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	store, err := identity.Load(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("load identity store: %w", err)
	}

	summary := table.NewWriter()
	summary.SetStyle(table.StyleRounded)
	summary.AppendHeader(table.Row{"Store", "Path", "Profiles"})
	summary.SetColumnConfigs([]table.ColumnConfig{{Number: 3, Align: text.AlignRight}})
	summary.AppendRow(table.Row{"Identity store", cfg.Store.Path, store.Count()})

	var profiles []archive.Summary
	if cfg.Archive.Enabled {
		arch, aerr := archive.Open(cfg.Archive.Path)
		if aerr != nil {
			return fmt.Errorf("open archive: %w", aerr)
		}
		defer func() { _ = arch.Close() }()

		count, cerr := arch.Count(cmd.Context())
		if cerr != nil {
			return fmt.Errorf("count archive: %w", cerr)
		}
		summary.AppendRow(table.Row{"Archive", cfg.Archive.Path, count})

		profiles, err = arch.Recent(cmd.Context(), recent)
		if err != nil {
			return fmt.Errorf("list recent profiles: %w", err)
		}
	}

	fmt.Println(summary.Render())

	if len(profiles) > 0 {
		recentTable := table.NewWriter()
		recentTable.SetStyle(table.StyleRounded)
		recentTable.AppendHeader(table.Row{"Name", "Company", "Title", "Captured At"})
		for _, p := range profiles {
			recentTable.AppendRow(table.Row{
				p.Name, p.Company, p.JobTitle, p.CapturedAt.Format(time.RFC3339),
			})
		}
		fmt.Println(recentTable.Render())
	}
	return nil
}
