package factory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/scrumdeal/scrumdeal/internal/model"
	"github.com/scrumdeal/scrumdeal/internal/services/table"
)

type IntegrationSuite struct {
	suite.Suite
	app *TestApp
	ctx context.Context
}

func TestIntegrationSuite(t *testing.T) {
	suite.Run(t, new(IntegrationSuite))
}

func (s *IntegrationSuite) SetupTest() {
	s.app = NewTestApp()
	s.ctx = context.Background()
}

func (s *IntegrationSuite) join(tableName, nickname string, role model.Role, croupier bool) {
	_, err := s.app.TableService.Join(s.ctx, tableName, table.JoinRequest{
		Nickname: nickname,
		Role:     role,
		Croupier: croupier,
	})
	s.Require().NoError(err)
}

func (s *IntegrationSuite) vote(tableName, nickname string, value int) {
	_, err := s.app.TableService.Vote(s.ctx, tableName, nickname, &value)
	s.Require().NoError(err)
}

// Test: a full estimation session from first join to voting history
func (s *IntegrationSuite) TestCompleteEstimationFlow() {
	// Step 1: the croupier opens the table, the team follows
	s.join("sprint-42", "alice", model.RoleParticipant, true)
	s.join("sprint-42", "bob", model.RoleParticipant, false)
	s.join("sprint-42", "olga", model.RoleObserver, false)

	// Step 2: the table shows up in the directory
	tables, err := s.app.DirectoryService.ActiveTables(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(tables, 1)
	s.Equal(2, tables[0].ParticipantsCount)
	s.Equal(1, tables[0].ObserversCount)

	// Step 3: first round of votes
	s.vote("sprint-42", "alice", 5)
	res, err := s.app.TableService.Vote(s.ctx, "sprint-42", "bob", intPtr(8))
	s.Require().NoError(err)
	s.True(res.Event.AllVoted)
	s.True(res.Event.VotingCompleted)

	// Step 4: the croupier resets for the next story
	resetRes, err := s.app.TableService.Reset(s.ctx, "sprint-42", "alice")
	s.Require().NoError(err)
	s.False(resetRes.Event.VotingCompleted)

	// Step 5: second round, converging this time
	s.vote("sprint-42", "alice", 8)
	s.vote("sprint-42", "bob", 8)
	_, err = s.app.TableService.Reset(s.ctx, "sprint-42", "alice")
	s.Require().NoError(err)

	// Step 6: both rounds are on record
	rounds, err := s.app.HistoryService.Rounds(s.ctx, "sprint-42")
	s.Require().NoError(err)
	s.Require().Len(rounds, 2)
	s.Equal(1, rounds[0].RoundNumber)
	s.Equal(2, rounds[1].RoundNumber)
	s.Len(rounds[0].Votes, 2)
}

// Test: croupier drop-out hands the seat to a survivor and the table
// eventually empties out of the directory
func (s *IntegrationSuite) TestCroupierDisconnectAndTableTeardown() {
	s.join("sprint-42", "alice", model.RoleParticipant, true)
	s.join("sprint-42", "bob", model.RoleParticipant, false)
	s.join("sprint-42", "carol", model.RoleParticipant, false)

	s.app.MockRandom.QueueIntn(1)
	_, err := s.app.TableService.Leave(s.ctx, "sprint-42", "alice")
	s.Require().NoError(err)

	tbl, err := s.app.Storage.GetTable(s.ctx, "sprint-42")
	s.Require().NoError(err)
	s.Require().NotNil(tbl.Croupier())
	s.Equal("carol", tbl.Croupier().Nickname)

	_, err = s.app.TableService.Leave(s.ctx, "sprint-42", "bob")
	s.Require().NoError(err)
	_, err = s.app.TableService.Leave(s.ctx, "sprint-42", "carol")
	s.Require().NoError(err)

	entries, err := s.app.Storage.ListDirectory(s.ctx)
	s.Require().NoError(err)
	s.NotContains(entries, "sprint-42")
}

// Test: a table with only stale activity drops off the listing but can be
// revived by a ping
func (s *IntegrationSuite) TestStaleTableRevivedByPing() {
	s.join("sprint-42", "alice", model.RoleParticipant, false)

	s.app.MockClock.Advance(6 * time.Minute)

	tables, err := s.app.DirectoryService.ActiveTables(s.ctx)
	s.Require().NoError(err)
	s.Empty(tables)

	_, err = s.app.TableService.PingActivity(s.ctx, "sprint-42", "alice")
	s.Require().NoError(err)

	tables, err = s.app.DirectoryService.ActiveTables(s.ctx)
	s.Require().NoError(err)
	s.Len(tables, 1)
}

func intPtr(v int) *int { return &v }
