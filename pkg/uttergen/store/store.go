package store

import (
	"context"
	"time"

	"github.com/cognicore/uttergen/pkg/uttergen/utterance"
)

// Store persists generation runs and the utterances they produced
type Store interface {
	Close() error

	// Runs
	BeginRun(ctx context.Context, r Run) error
	GetRun(ctx context.Context, id string) (Run, bool, error)

	// Utterances
	AppendUtterances(ctx context.Context, runID string, us []utterance.Utterance) error
	ListUtterances(ctx context.Context, q Query) ([]Record, error)
}

// Run is one generation pass over a use case folder
type Run struct {
	ID        string
	UseCase   string
	Folder    string
	StartedAt time.Time
}

// Record is a stored utterance. Seq numbers the utterances of a run from 0
// in the order they were appended.
type Record struct {
	RunID   string
	UseCase string
	Seq     int
	utterance.Utterance
}

// Query filters ListUtterances. Empty fields match everything; Limit <= 0
// returns all matches.
type Query struct {
	RunID         string
	UseCase       string
	CombinationID string
	Limit         int
}

// Matches reports whether rec satisfies the query filters (Limit aside).
func (q Query) Matches(rec Record) bool {
	if q.RunID != "" && rec.RunID != q.RunID {
		return false
	}
	if q.UseCase != "" && rec.UseCase != q.UseCase {
		return false
	}
	if q.CombinationID != "" && rec.CombinationID != q.CombinationID {
		return false
	}
	return true
}
