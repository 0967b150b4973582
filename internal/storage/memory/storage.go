package memory

import (
	"context"
	"sync"

	"github.com/scrumdeal/scrumdeal/internal/model"
	"github.com/scrumdeal/scrumdeal/internal/storage"
)

// Storage is an in-memory implementation of the storage interface
type Storage struct {
	mu sync.RWMutex

	tables       map[string]*model.Table
	directory    map[string]model.DirectoryEntry
	rounds       map[string][]model.VotingRound
	roundCounter map[string]int
}

// New creates a new in-memory storage instance
func New() *Storage {
	return &Storage{
		tables:       make(map[string]*model.Table),
		directory:    make(map[string]model.DirectoryEntry),
		rounds:       make(map[string][]model.VotingRound),
		roundCounter: make(map[string]int),
	}
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// Table operations

func (s *Storage) GetTable(ctx context.Context, name string) (*model.Table, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	table, ok := s.tables[name]
	if !ok {
		return nil, model.ErrTableNotFound
	}
	cp := *table
	cp.Players = append([]model.Player(nil), table.Players...)
	return &cp, nil
}

func (s *Storage) PutTable(ctx context.Context, table *model.Table) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *table
	cp.Players = append([]model.Player(nil), table.Players...)
	s.tables[table.Name] = &cp
	return nil
}

// Directory operations

func (s *Storage) ListDirectory(ctx context.Context) (map[string]model.DirectoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]model.DirectoryEntry, len(s.directory))
	for name, entry := range s.directory {
		entry.Players = append([]model.Player(nil), entry.Players...)
		out[name] = entry
	}
	return out, nil
}

func (s *Storage) PutDirectory(ctx context.Context, entries map[string]model.DirectoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.directory = make(map[string]model.DirectoryEntry, len(entries))
	for name, entry := range entries {
		entry.Players = append([]model.Player(nil), entry.Players...)
		s.directory[name] = entry
	}
	return nil
}

// History operations

func (s *Storage) NextRoundNumber(ctx context.Context, tableName string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roundCounter[tableName]++
	return s.roundCounter[tableName], nil
}

func (s *Storage) AppendRound(ctx context.Context, round *model.VotingRound) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rounds[round.TableName] = append(s.rounds[round.TableName], *round)
	return nil
}

func (s *Storage) ListRounds(ctx context.Context, tableName string) ([]model.VotingRound, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.VotingRound(nil), s.rounds[tableName]...), nil
}
