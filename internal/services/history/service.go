package history

import (
	"context"
	"log/slog"

	"github.com/scrumdeal/scrumdeal/internal/dependencies/clock"
	"github.com/scrumdeal/scrumdeal/internal/model"
	"github.com/scrumdeal/scrumdeal/internal/storage"
)

// Service records completed voting rounds and serves them back for the
// voting-history view. Rounds with zero voters are never recorded.
type Service struct {
	store  storage.HistoryStore
	clock  clock.Clock
	logger *slog.Logger
}

// New creates a new history service
func New(store storage.HistoryStore, clk clock.Clock, logger *slog.Logger) *Service {
	return &Service{
		store:  store,
		clock:  clk,
		logger: logger.With(slog.String("component", "history")),
	}
}

// RecordRound appends a round with the given votes, allocating the next
// round number for the table. Callers only pass players who had actually
// voted; an empty vote set is a no-op.
func (s *Service) RecordRound(ctx context.Context, tableName string, votes []model.PlayerVote) error {
	if len(votes) == 0 {
		return nil
	}

	number, err := s.store.NextRoundNumber(ctx, tableName)
	if err != nil {
		return err
	}

	round := &model.VotingRound{
		TableName:   tableName,
		RoundNumber: number,
		CreatedAt:   s.clock.Now(),
		Votes:       votes,
	}

	if err := s.store.AppendRound(ctx, round); err != nil {
		return err
	}

	s.logger.Info("voting round recorded",
		slog.String("table", tableName),
		slog.Int("round", number),
		slog.Int("votes", len(votes)))
	return nil
}

// Rounds returns all recorded rounds for a table in recording order
func (s *Service) Rounds(ctx context.Context, tableName string) ([]model.VotingRound, error) {
	return s.store.ListRounds(ctx, tableName)
}
