// Package archive keeps every captured profile in an embedded SQLite
// database so results stay queryable across runs, independent of the
// per-run export artifacts.
package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"linkharvest/internal/harvest"
)

const schema = `
CREATE TABLE IF NOT EXISTS profiles (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	company     TEXT,
	job_title   TEXT,
	captured_at TEXT NOT NULL,
	payload     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_profiles_captured_at ON profiles (captured_at);
`

// DB wraps the archive database handle.
type DB struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the archive at path.
func Open(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create archive dir %s: %w", dir, err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open archive db %s: %w", path, err)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init archive schema: %w", err)
	}
	return &DB{db: db, path: path}, nil
}

// Close releases the database handle.
func (d *DB) Close() error {
	if d == nil || d.db == nil {
		return nil
	}
	return d.db.Close()
}

// UpsertAll writes the records in one transaction. Re-upserting the same
// identifier only refreshes its row.
func (d *DB) UpsertAll(ctx context.Context, records []harvest.Record) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin archive tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO profiles (id, name, company, job_title, captured_at, payload)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			company = excluded.company,
			job_title = excluded.job_title,
			captured_at = excluded.captured_at,
			payload = excluded.payload`)
	if err != nil {
		return fmt.Errorf("prepare archive upsert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, rec := range records {
		payload, err := json.Marshal(rec.Profile)
		if err != nil {
			return fmt.Errorf("encode profile %s: %w", rec.ID, err)
		}
		if _, err := stmt.ExecContext(ctx,
			rec.ID,
			rec.Profile.Name,
			rec.Profile.Company,
			rec.Profile.JobTitle,
			rec.CapturedAt.UTC().Format(time.RFC3339),
			string(payload),
		); err != nil {
			return fmt.Errorf("upsert profile %s: %w", rec.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit archive tx: %w", err)
	}
	return nil
}

// Count returns the number of archived profiles.
func (d *DB) Count(ctx context.Context) (int, error) {
	var n int
	if err := d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM profiles`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count archive profiles: %w", err)
	}
	return n, nil
}

// Summary is one archived profile's headline row.
type Summary struct {
	ID         string
	Name       string
	Company    string
	JobTitle   string
	CapturedAt time.Time
}

// Recent returns the most recently captured profiles, newest first.
func (d *DB) Recent(ctx context.Context, limit int) ([]Summary, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, name, COALESCE(company, ''), COALESCE(job_title, ''), captured_at
		FROM profiles ORDER BY captured_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent profiles: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Summary
	for rows.Next() {
		var s Summary
		var captured string
		if err := rows.Scan(&s.ID, &s.Name, &s.Company, &s.JobTitle, &captured); err != nil {
			return nil, fmt.Errorf("scan profile row: %w", err)
		}
		if ts, perr := time.Parse(time.RFC3339, captured); perr == nil {
			s.CapturedAt = ts
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate profile rows: %w", err)
	}
	return out, nil
}
