package directory

import (
	"context"
	"log/slog"
	"time"

	"github.com/scrumdeal/scrumdeal/internal/dependencies/clock"
	"github.com/scrumdeal/scrumdeal/internal/protocol"
	"github.com/scrumdeal/scrumdeal/internal/storage"
)

// DefaultStalenessThreshold is how old a directory entry may be before it is
// excluded from listings. Evaluated lazily at read time; there is no sweep.
const DefaultStalenessThreshold = 5 * time.Minute

// Service computes the active-table listing served to landing-page viewers
type Service struct {
	store     storage.DirectoryStore
	clock     clock.Clock
	staleness time.Duration
	logger    *slog.Logger
}

// New creates a new directory service. A zero staleness falls back to the
// default threshold.
func New(store storage.DirectoryStore, clk clock.Clock, staleness time.Duration, logger *slog.Logger) *Service {
	if staleness <= 0 {
		staleness = DefaultStalenessThreshold
	}
	return &Service{
		store:     store,
		clock:     clk,
		staleness: staleness,
		logger:    logger.With(slog.String("component", "directory")),
	}
}

// ActiveTables returns the current listing: every directory entry younger
// than the staleness threshold with at least one participant. Stale entries
// are skipped, not deleted; a later join or removal overwrites them.
func (s *Service) ActiveTables(ctx context.Context) ([]protocol.ActiveTable, error) {
	entries, err := s.store.ListDirectory(ctx)
	if err != nil {
		return nil, err
	}

	cutoff := s.clock.Now().Add(-s.staleness)

	tables := make([]protocol.ActiveTable, 0, len(entries))
	for name, entry := range entries {
		if entry.LastUpdated.Before(cutoff) {
			continue
		}
		participants := entry.ParticipantCount()
		if participants == 0 {
			continue
		}
		tables = append(tables, protocol.ActiveTable{
			Name:              name,
			ParticipantsCount: participants,
			ObserversCount:    entry.ObserverCount(),
		})
	}
	return tables, nil
}

// HasTable reports whether the directory currently has an entry with players
// for the named table, regardless of staleness.
func (s *Service) HasTable(ctx context.Context, name string) (bool, error) {
	entries, err := s.store.ListDirectory(ctx)
	if err != nil {
		return false, err
	}
	entry, ok := entries[name]
	return ok && len(entry.Players) > 0, nil
}
