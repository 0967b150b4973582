package storage

import (
	"context"

	"github.com/scrumdeal/scrumdeal/internal/model"
)

// TableStore holds the current state of each table, keyed by name.
// No transactional guarantee beyond last-writer-wins; callers serialize
// their own read-modify-write cycles.
type TableStore interface {
	GetTable(ctx context.Context, name string) (*model.Table, error)
	PutTable(ctx context.Context, table *model.Table) error
}

// DirectoryStore holds the secondary index of tables with connected players.
// The whole mapping is read and written as a unit.
type DirectoryStore interface {
	ListDirectory(ctx context.Context) (map[string]model.DirectoryEntry, error)
	PutDirectory(ctx context.Context, entries map[string]model.DirectoryEntry) error
}

// HistoryStore is the append-only sink for completed voting rounds.
// NextRoundNumber is strictly increasing per table, starting at 1, gap-free
// under the single-writer assumption.
type HistoryStore interface {
	NextRoundNumber(ctx context.Context, tableName string) (int, error)
	AppendRound(ctx context.Context, round *model.VotingRound) error
	ListRounds(ctx context.Context, tableName string) ([]model.VotingRound, error)
}

// Storage combines all persistence capabilities
type Storage interface {
	TableStore
	DirectoryStore
	HistoryStore
}
