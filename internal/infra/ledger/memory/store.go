// Package memory keeps run records in process memory.
package memory

import (
	"context"
	"sort"
	"sync"

	"isatab/internal/ledger/core"
)

// Store implements core.Store. Records are stored encoded so callers never
// share slices with the store.
type Store struct {
	mu   sync.RWMutex
	runs map[string][]byte
}

// New returns an empty store.
func New() *Store { return &Store{runs: make(map[string][]byte)} }

// Driver implements core.Store.
func (s *Store) Driver() core.Driver { return core.DriverMemory }

// Save implements core.Store.
func (s *Store) Save(_ context.Context, rec core.RunRecord) error {
	if rec.ID == "" {
		return core.ErrMissingID
	}
	b, err := core.Encode(rec)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.runs[rec.ID] = b
	s.mu.Unlock()
	return nil
}

// Get implements core.Store.
func (s *Store) Get(_ context.Context, id string) (core.RunRecord, bool, error) {
	s.mu.RLock()
	b, ok := s.runs[id]
	s.mu.RUnlock()
	if !ok {
		return core.RunRecord{}, false, nil
	}
	rec, err := core.Decode(b)
	return rec, err == nil, err
}

// List returns records for investigation (all when empty), newest first.
func (s *Store) List(_ context.Context, investigation string) ([]core.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.RunRecord
	for _, b := range s.runs {
		rec, err := core.Decode(b)
		if err != nil {
			return nil, err
		}
		if investigation == "" || rec.Investigation == investigation {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out, nil
}

// Close implements core.Store.
func (s *Store) Close() error { return nil }
