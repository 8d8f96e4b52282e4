package store

import (
	"context"
	"time"

	"github.com/cognicore/korpus/pkg/korpus/codec"
)

// Store persists pipeline run summaries: one row per run, the run's
// dictionary, and per-split counts.
type Store interface {
	Close() error

	// Runs
	UpsertRun(ctx context.Context, r Run) error
	GetRun(ctx context.Context, id string) (Run, bool, error)
	RunsByTopic(ctx context.Context, topic string) ([]Run, error)

	// Dictionaries
	ReplaceDictionary(ctx context.Context, runID string, d *codec.Dictionary) error
	GetDictionary(ctx context.Context, runID string) (*codec.Dictionary, error)

	// Splits
	UpsertSplit(ctx context.Context, runID string, s SplitStats) error
	GetSplits(ctx context.Context, runID string) ([]SplitStats, error)
}

// Run identifies one pipeline execution.
type Run struct {
	ID        string // ULID
	Topic     string
	StartedAt time.Time
}

// SplitStats summarises one split of a run.
type SplitStats struct {
	Name     string
	Articles int
	Tokens   int
	Unknown  int // <<unk>> occurrences after filtering
}
