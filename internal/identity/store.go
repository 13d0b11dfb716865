// Package identity tracks the set of already-processed profile identifiers
// and persists it as a single JSON document.
package identity

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"linkharvest/internal/harvest"
)

// Normalize derives the canonical identifier for a raw profile reference:
// scheme://host/path with the query discarded and one trailing slash
// stripped. Unparsable or hostless input normalizes to the empty identifier.
// The output format interoperates with existing store files and must not
// change.
func Normalize(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	path := strings.TrimSuffix(u.Path, "/")
	return fmt.Sprintf("%s://%s%s", u.Scheme, u.Host, path)
}

// Entry is the stored metadata for one processed identifier.
type Entry struct {
	CapturedAt time.Time       `json:"captured_at"`
	Profile    harvest.Profile `json:"profile"`
}

// Store is the durable record of processed identifiers. All mutation flows
// through a single harvest loop; the mutex only guards the debug HTTP
// surface reading counts concurrently.
type Store struct {
	mu      sync.RWMutex
	path    string
	entries map[string]Entry
}

// Load reads the store document at path. A missing file yields an empty
// store; an unreadable or corrupt file is an error, and callers must not
// proceed as if the store were empty.
func Load(path string) (*Store, error) {
	s := &Store{path: path, entries: make(map[string]Entry)}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read identity store %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &s.entries); err != nil {
		return nil, fmt.Errorf("decode identity store %s: %w", path, err)
	}
	return s, nil
}

// IsKnown reports whether raw's identifier has been processed. The empty
// identifier is always known, so malformed references fall out as no-op
// skips.
func (s *Store) IsKnown(raw string) bool {
	id := Normalize(raw)
	if id == "" {
		return true
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entries[id]
	return ok
}

// Record inserts or overwrites the entry for id. Recording the same
// identifier twice only refreshes the payload and timestamp.
func (s *Store) Record(id string, p harvest.Profile, capturedAt time.Time) {
	if id == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[id] = Entry{CapturedAt: capturedAt, Profile: p}
}

// Count returns the number of distinct identifiers tracked.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Entries returns a copy of the stored mapping.
func (s *Store) Entries() map[string]Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]Entry, len(s.entries))
	for k, v := range s.entries {
		out[k] = v
	}
	return out
}

// Persist rewrites the full document. The write goes through a temp file
// and rename so a crash cannot leave a truncated store behind. On failure
// the in-memory state is unaffected and the next checkpoint retries.
func (s *Store) Persist() error {
	s.mu.RLock()
	payload, err := json.MarshalIndent(s.entries, "", "  ")
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("encode identity store: %w", err)
	}
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create store dir %s: %w", dir, err)
		}
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o600); err != nil {
		return fmt.Errorf("write identity store %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace identity store %s: %w", s.path, err)
	}
	return nil
}
