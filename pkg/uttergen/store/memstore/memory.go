package memstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/cognicore/uttergen/pkg/uttergen/internalerr"
	"github.com/cognicore/uttergen/pkg/uttergen/store"
	"github.com/cognicore/uttergen/pkg/uttergen/utterance"
)

// Store is an in-memory implementation of store.Store. It keeps every
// utterance of the process lifetime, so it doubles as the accumulator for
// callers that want the combined result of several use cases.
type Store struct {
	mu      sync.RWMutex
	runs    map[string]store.Run
	order   []string
	records []store.Record
	nextSeq map[string]int
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		runs:    make(map[string]store.Run),
		nextSeq: make(map[string]int),
	}
}

var _ store.Store = (*Store)(nil)

// Close implements store.Store.
func (s *Store) Close() error { return nil }

// BeginRun registers a run. Registering the same ID twice is an error.
func (s *Store) BeginRun(ctx context.Context, r store.Run) error {
	if r.ID == "" {
		return fmt.Errorf("%w: run id is required", internalerr.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.runs[r.ID]; ok {
		return fmt.Errorf("%w: run %s", internalerr.ErrDuplicate, r.ID)
	}
	s.runs[r.ID] = r
	s.order = append(s.order, r.ID)
	return nil
}

// GetRun implements store.Store.
func (s *Store) GetRun(ctx context.Context, id string) (store.Run, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.runs[id]
	return r, ok, nil
}

// Runs returns all registered runs in registration order.
func (s *Store) Runs() []store.Run {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]store.Run, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.runs[id])
	}
	return out
}

// AppendUtterances implements store.Store.
func (s *Store) AppendUtterances(ctx context.Context, runID string, us []utterance.Utterance) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, ok := s.runs[runID]
	if !ok {
		return fmt.Errorf("%w: run %s", internalerr.ErrNotFound, runID)
	}

	seq := s.nextSeq[runID]
	for _, u := range us {
		u.AMR = append([]string(nil), u.AMR...)
		s.records = append(s.records, store.Record{
			RunID:     runID,
			UseCase:   run.UseCase,
			Seq:       seq,
			Utterance: u,
		})
		seq++
	}
	s.nextSeq[runID] = seq
	return nil
}

// ListUtterances implements store.Store.
func (s *Store) ListUtterances(ctx context.Context, q store.Query) ([]store.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []store.Record
	for _, rec := range s.records {
		if !q.Matches(rec) {
			continue
		}
		rec.AMR = append([]string(nil), rec.AMR...)
		out = append(out, rec)
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
	}
	return out, nil
}
