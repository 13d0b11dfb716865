package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"linkharvest/internal/export"
	"linkharvest/internal/harvest"
	"linkharvest/internal/identity"
)

func newExportCmd() *cobra.Command {
	var (
		csvFile string
		withRaw bool
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Exports the identity store to CSV (and optionally raw JSON)",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runExport(csvFile, withRaw)
		},
	}
	cmd.Flags().StringVar(&csvFile, "csv-file", "", "CSV filename (defaults to a timestamped name)")
	cmd.Flags().BoolVar(&withRaw, "raw", false, "also write the full-fidelity raw JSON export")
	return cmd
}

func runExport(csvFile string, withRaw bool) error {
	cfg, logger, err := loadApp()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	store, err := identity.Load(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("load identity store: %w", err)
	}

	records := storeRecords(store)
	exporter, err := export.NewExporter(cfg.Export.Dir, logger.Named("export"))
	if err != nil {
		return fmt.Errorf("init exporter: %w", err)
	}

	path, err := exporter.WriteCSV(records, csvFile)
	if err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	fmt.Printf("Exported %d profiles to %s\n", len(records), path)

	if withRaw {
		rawPath, err := exporter.WriteRaw(records, "")
		if err != nil {
			return fmt.Errorf("write raw: %w", err)
		}
		fmt.Printf("Raw export written to %s\n", rawPath)
	}
	return nil
}

// storeRecords rebuilds the record list from the store in a deterministic
// order (oldest capture first, identifier as tiebreak).
func storeRecords(store *identity.Store) []harvest.Record {
	entries := store.Entries()
	records := make([]harvest.Record, 0, len(entries))
	for id, entry := range entries {
		records = append(records, harvest.Record{
			ID:         id,
			CapturedAt: entry.CapturedAt,
			Profile:    entry.Profile,
		})
	}
	sort.Slice(records, func(i, j int) bool {
		if !records[i].CapturedAt.Equal(records[j].CapturedAt) {
			return records[i].CapturedAt.Before(records[j].CapturedAt)
		}
		return records[i].ID < records[j].ID
	})
	return records
}
