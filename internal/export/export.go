// Package export writes checkpoint artifacts: a flattened CSV of profile
// records and a full-fidelity raw JSON dump for lossless reload.
package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"go.uber.org/zap"

	"linkharvest/internal/harvest"
)

// Flattening caps for the tabular export.
const (
	maxExperienceCols = 3
	maxEducationCols  = 2
)

// Exporter writes artifacts under one output directory.
type Exporter struct {
	dir    string
	logger *zap.Logger
}

// NewExporter creates the output directory if needed.
func NewExporter(dir string, logger *zap.Logger) (*Exporter, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create export dir %s: %w", dir, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exporter{dir: dir, logger: logger}, nil
}

// WriteCSV renders one row per record with the first experiences and
// educations flattened into fixed columns. An empty filename gets a capture
// timestamp.
func (e *Exporter) WriteCSV(records []harvest.Record, filename string) (string, error) {
	if filename == "" {
		filename = fmt.Sprintf("profiles_%s.csv", time.Now().UTC().Format("20060102_150405"))
	}
	tw := table.NewWriter()
	tw.AppendHeader(toRow(csvHeaders()))
	for _, rec := range records {
		tw.AppendRow(toRow(flattenRecord(rec)))
	}
	target := filepath.Join(e.dir, filename)
	if err := os.WriteFile(target, []byte(tw.RenderCSV()+"\n"), 0o600); err != nil {
		return "", fmt.Errorf("write csv export %s: %w", target, err)
	}
	e.logger.Info("csv export written",
		zap.String("path", target), zap.Int("rows", len(records)))
	return target, nil
}

// WriteRaw serializes the full record array to one JSON file per call.
func (e *Exporter) WriteRaw(records []harvest.Record, filename string) (string, error) {
	if filename == "" {
		filename = fmt.Sprintf("profiles_raw_%s.json", time.Now().UTC().Format("20060102_150405"))
	}
	payload, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode raw export: %w", err)
	}
	target := filepath.Join(e.dir, filename)
	if err := os.WriteFile(target, payload, 0o600); err != nil {
		return "", fmt.Errorf("write raw export %s: %w", target, err)
	}
	return target, nil
}

func csvHeaders() []string {
	headers := []string{
		"URL", "Name", "Company", "Job Title", "About", "Captured At",
		"Total Experiences", "Total Educations", "Interests",
	}
	for i := 1; i <= maxExperienceCols; i++ {
		prefix := fmt.Sprintf("Experience %d ", i)
		headers = append(headers,
			prefix+"Position", prefix+"Company", prefix+"Duration")
	}
	for i := 1; i <= maxEducationCols; i++ {
		prefix := fmt.Sprintf("Education %d ", i)
		headers = append(headers, prefix+"Institution", prefix+"Degree")
	}
	return headers
}

func flattenRecord(rec harvest.Record) []string {
	p := rec.Profile
	row := []string{
		p.URL,
		p.Name,
		p.Company,
		p.JobTitle,
		p.About,
		rec.CapturedAt.Format(time.RFC3339),
		fmt.Sprintf("%d", len(p.Experiences)),
		fmt.Sprintf("%d", len(p.Educations)),
		strings.Join(p.Interests, ", "),
	}
	for i := 0; i < maxExperienceCols; i++ {
		if i < len(p.Experiences) {
			exp := p.Experiences[i]
			row = append(row, exp.Position, exp.Institution, exp.Duration)
		} else {
			row = append(row, "", "", "")
		}
	}
	for i := 0; i < maxEducationCols; i++ {
		if i < len(p.Educations) {
			edu := p.Educations[i]
			row = append(row, edu.Institution, edu.Degree)
		} else {
			row = append(row, "", "")
		}
	}
	return row
}

func toRow(cols []string) table.Row {
	row := make(table.Row, len(cols))
	for i, c := range cols {
		row[i] = c
	}
	return row
}
