package checkpoint

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"linkharvest/internal/harvest"
)

type fakePersister struct {
	calls int
	err   error
}

func (f *fakePersister) Persist() error {
	f.calls++
	return f.err
}

type fakeExporter struct {
	csvCalls int
	rawCalls int
	csvErr   error
	rawErr   error
}

func (f *fakeExporter) WriteCSV(_ []harvest.Record, _ string) (string, error) {
	f.csvCalls++
	return "profiles.csv", f.csvErr
}

func (f *fakeExporter) WriteRaw(_ []harvest.Record, _ string) (string, error) {
	f.rawCalls++
	return "profiles_raw.json", f.rawErr
}

type fakeArchiver struct {
	calls int
	err   error
}

func (f *fakeArchiver) UpsertAll(_ context.Context, _ []harvest.Record) error {
	f.calls++
	return f.err
}

func sampleRecords() []harvest.Record {
	return []harvest.Record{{
		ID:         "https://site/in/a",
		CapturedAt: time.Now().UTC(),
		Profile:    harvest.Profile{Name: "A"},
	}}
}

func TestFlush_WritesAllArtifacts(t *testing.T) {
	t.Parallel()
	store := &fakePersister{}
	exp := &fakeExporter{}
	arch := &fakeArchiver{}
	sink := NewSink(store, exp, arch, nil)

	require.NoError(t, sink.Flush(context.Background(), sampleRecords()))
	require.Equal(t, 1, store.calls)
	require.Equal(t, 1, exp.csvCalls)
	require.Equal(t, 1, exp.rawCalls)
	require.Equal(t, 1, arch.calls)
}

func TestFlush_OneFailureDoesNotBlockOthers(t *testing.T) {
	t.Parallel()
	csvErr := errors.New("disk full")
	store := &fakePersister{}
	exp := &fakeExporter{csvErr: csvErr}
	arch := &fakeArchiver{}
	sink := NewSink(store, exp, arch, nil)

	err := sink.Flush(context.Background(), sampleRecords())
	require.ErrorIs(t, err, csvErr)
	require.Equal(t, 1, exp.rawCalls)
	require.Equal(t, 1, store.calls)
	require.Equal(t, 1, arch.calls)
}

func TestFlush_JoinsAllFailures(t *testing.T) {
	t.Parallel()
	csvErr := errors.New("csv failed")
	persistErr := errors.New("persist failed")
	archErr := errors.New("archive failed")
	sink := NewSink(
		&fakePersister{err: persistErr},
		&fakeExporter{csvErr: csvErr},
		&fakeArchiver{err: archErr},
		nil,
	)

	err := sink.Flush(context.Background(), sampleRecords())
	require.ErrorIs(t, err, csvErr)
	require.ErrorIs(t, err, persistErr)
	require.ErrorIs(t, err, archErr)
}

func TestFlush_EmptyRecordsStillPersistsStore(t *testing.T) {
	t.Parallel()
	store := &fakePersister{}
	exp := &fakeExporter{}
	arch := &fakeArchiver{}
	sink := NewSink(store, exp, arch, nil)

	require.NoError(t, sink.Flush(context.Background(), nil))
	require.Equal(t, 1, store.calls)
	require.Equal(t, 0, exp.csvCalls)
	require.Equal(t, 0, arch.calls)
}

func TestFlush_NilArchiveIsOptional(t *testing.T) {
	t.Parallel()
	sink := NewSink(&fakePersister{}, &fakeExporter{}, nil, nil)
	require.NoError(t, sink.Flush(context.Background(), sampleRecords()))
}
