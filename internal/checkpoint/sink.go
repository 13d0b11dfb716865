// Package checkpoint flushes the accumulated result set and identity state
// to durable storage at a configured cadence and at shutdown.
package checkpoint

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"linkharvest/internal/harvest"
)

// Persister rewrites the identity store snapshot.
type Persister interface {
	Persist() error
}

// Exporter writes the tabular and raw record artifacts.
type Exporter interface {
	WriteCSV(records []harvest.Record, filename string) (string, error)
	WriteRaw(records []harvest.Record, filename string) (string, error)
}

// Archiver upserts records into the embedded archive database.
type Archiver interface {
	UpsertAll(ctx context.Context, records []harvest.Record) error
}

// Sink performs the independent flush operations. A failure in one never
// prevents the others from running; all failures are joined into the return
// value for the caller to log, and the same flush is attempted again at the
// next interval.
type Sink struct {
	store    Persister
	exporter Exporter
	archive  Archiver
	logger   *zap.Logger
}

// NewSink wires the flush targets; archive may be nil.
func NewSink(store Persister, exporter Exporter, archive Archiver, logger *zap.Logger) *Sink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sink{store: store, exporter: exporter, archive: archive, logger: logger}
}

// Flush writes every configured artifact.
func (s *Sink) Flush(ctx context.Context, records []harvest.Record) error {
	var errs []error

	if s.exporter != nil && len(records) > 0 {
		if _, err := s.exporter.WriteCSV(records, ""); err != nil {
			s.logger.Warn("csv export failed", zap.Error(err))
			errs = append(errs, err)
		}
		if _, err := s.exporter.WriteRaw(records, ""); err != nil {
			s.logger.Warn("raw export failed", zap.Error(err))
			errs = append(errs, err)
		}
	}

	if s.store != nil {
		if err := s.store.Persist(); err != nil {
			s.logger.Warn("identity store persist failed", zap.Error(err))
			errs = append(errs, err)
		}
	}

	if s.archive != nil && len(records) > 0 {
		if err := s.archive.UpsertAll(ctx, records); err != nil {
			s.logger.Warn("archive upsert failed", zap.Error(err))
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
