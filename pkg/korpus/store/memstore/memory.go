package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/cognicore/korpus/pkg/korpus/codec"
	"github.com/cognicore/korpus/pkg/korpus/internalerr"
	"github.com/cognicore/korpus/pkg/korpus/store"
)

// Store is an in-memory implementation of store.Store. Like the SQLite
// store it refuses dictionaries and splits of unknown runs.
type Store struct {
	mu     sync.RWMutex
	runs   map[string]store.Run
	dicts  map[string][]string
	splits map[string]map[string]store.SplitStats
}

// New creates an empty store.
func New() *Store {
	return &Store{
		runs:   make(map[string]store.Run),
		dicts:  make(map[string][]string),
		splits: make(map[string]map[string]store.SplitStats),
	}
}

// Close implements store.Store.
func (s *Store) Close() error { return nil }

func (s *Store) UpsertRun(ctx context.Context, r store.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[r.ID] = r
	return nil
}

func (s *Store) GetRun(ctx context.Context, id string) (store.Run, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.runs[id]
	return r, ok, nil
}

// RunsByTopic returns runs oldest first.
func (s *Store) RunsByTopic(ctx context.Context, topic string) ([]store.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []store.Run
	for _, r := range s.runs {
		if r.Topic == topic {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.Before(out[j].StartedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) ReplaceDictionary(ctx context.Context, runID string, d *codec.Dictionary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[runID]; !ok {
		return unknownRun(runID)
	}
	s.dicts[runID] = d.Tokens()
	return nil
}

func (s *Store) GetDictionary(ctx context.Context, runID string) (*codec.Dictionary, error) {
	s.mu.RLock()
	tokens, ok := s.dicts[runID]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("dictionary of run %s: %w", runID, internalerr.ErrNotFound)
	}
	return codec.FromTokens(tokens)
}

func (s *Store) UpsertSplit(ctx context.Context, runID string, st store.SplitStats) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[runID]; !ok {
		return unknownRun(runID)
	}
	if s.splits[runID] == nil {
		s.splits[runID] = make(map[string]store.SplitStats)
	}
	s.splits[runID][st.Name] = st
	return nil
}

// GetSplits returns the splits of a run ordered by name.
func (s *Store) GetSplits(ctx context.Context, runID string) ([]store.SplitStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]store.SplitStats, 0, len(s.splits[runID]))
	for _, st := range s.splits[runID] {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func unknownRun(id string) error {
	return fmt.Errorf("run %s: %w", id, internalerr.ErrNotFound)
}
