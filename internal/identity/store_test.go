package identity

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"linkharvest/internal/harvest"
)

func TestNormalize(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"plain", "https://site/in/a", "https://site/in/a"},
		{"trailing slash", "https://site/in/a/", "https://site/in/a"},
		{"query stripped", "https://site/in/a?x=1", "https://site/in/a"},
		{"slash and query", "https://site/in/a/?x=1&y=2", "https://site/in/a"},
		{"fragmentless host root", "https://site/", "https://site"},
		{"empty", "", ""},
		{"no scheme", "site/in/a", ""},
		{"no host", "https://", ""},
		{"garbage", "://///", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, Normalize(tt.raw))
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	t.Parallel()
	inputs := []string{
		"https://site/in/a/",
		"https://site/in/a?x=1",
		"https://site/in/a",
		"not a url",
		"",
	}
	for _, raw := range inputs {
		once := Normalize(raw)
		require.Equal(t, once, Normalize(once), "input %q", raw)
	}
}

func TestNormalize_EquivalentReferences(t *testing.T) {
	t.Parallel()
	require.Equal(t, Normalize("https://site/in/a/"), Normalize("https://site/in/a?x=1"))
}

func TestStore_CountDistinct(t *testing.T) {
	t.Parallel()
	s, err := Load(filepath.Join(t.TempDir(), "store.json"))
	require.NoError(t, err)

	at := time.Now()
	s.Record("https://site/in/a", harvest.Profile{Name: "A"}, at)
	s.Record("https://site/in/b", harvest.Profile{Name: "B"}, at)
	s.Record("https://site/in/a", harvest.Profile{Name: "A again"}, at.Add(time.Hour))
	s.Record("", harvest.Profile{Name: "dropped"}, at)

	require.Equal(t, 2, s.Count())
}

func TestStore_IsKnown(t *testing.T) {
	t.Parallel()
	s, err := Load(filepath.Join(t.TempDir(), "store.json"))
	require.NoError(t, err)

	s.Record("https://site/in/a", harvest.Profile{Name: "A"}, time.Now())

	require.True(t, s.IsKnown("https://site/in/a"))
	require.True(t, s.IsKnown("https://site/in/a/"))
	require.True(t, s.IsKnown("https://site/in/a?utm=x"))
	require.False(t, s.IsKnown("https://site/in/b"))
	// Malformed raw input normalizes to the empty identifier, which is
	// always known so callers skip it.
	require.True(t, s.IsKnown("not a url"))
	require.True(t, s.IsKnown(""))
}

func TestStore_PersistAndReload(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "store.json")
	s, err := Load(path)
	require.NoError(t, err)

	at := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	s.Record("https://site/in/a", harvest.Profile{Name: "Ada", Company: "Engine Co"}, at)
	require.NoError(t, s.Persist())

	reloaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 1, reloaded.Count())
	require.True(t, reloaded.IsKnown("https://site/in/a"))

	entry := reloaded.Entries()["https://site/in/a"]
	require.Equal(t, "Ada", entry.Profile.Name)
	require.True(t, at.Equal(entry.CapturedAt))
}

func TestStore_LoadMissingFileIsEmpty(t *testing.T) {
	t.Parallel()
	s, err := Load(filepath.Join(t.TempDir(), "does-not-exist.json"))
	require.NoError(t, err)
	require.Equal(t, 0, s.Count())
}

func TestStore_LoadCorruptFileFails(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "store.json")
	require.NoError(t, os.WriteFile(path, []byte("{truncated"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
}

func TestStore_PersistOverwritesSnapshot(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "store.json")
	s, err := Load(path)
	require.NoError(t, err)

	s.Record("https://site/in/a", harvest.Profile{Name: "A"}, time.Now())
	require.NoError(t, s.Persist())
	s.Record("https://site/in/b", harvest.Profile{Name: "B"}, time.Now())
	require.NoError(t, s.Persist())

	reloaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 2, reloaded.Count())
}
