package table

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"

	"github.com/scrumdeal/scrumdeal/internal/dependencies/mocks"
	"github.com/scrumdeal/scrumdeal/internal/model"
	"github.com/scrumdeal/scrumdeal/internal/protocol"
	"github.com/scrumdeal/scrumdeal/internal/services/history"
	"github.com/scrumdeal/scrumdeal/internal/storage/memory"
	"github.com/scrumdeal/scrumdeal/internal/testutil"
)

type ServiceSuite struct {
	suite.Suite
	storage *memory.Storage
	clock   *mocks.MockClock
	random  *mocks.MockRandom
	history *history.Service
	service *Service
	ctx     context.Context
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.storage = memory.New()
	logger := testutil.NopLogger()
	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s.random = mocks.NewMockRandom()
	s.history = history.New(s.storage, s.clock, logger)
	s.service = NewService(s.storage, s.storage, s.history, s.clock, s.random, logger)
	s.ctx = context.Background()
}

func (s *ServiceSuite) join(table, nickname string, role model.Role, croupier bool) *Result {
	res, err := s.service.Join(s.ctx, table, JoinRequest{
		Nickname: nickname,
		Role:     role,
		Croupier: croupier,
	})
	s.Require().NoError(err)
	s.Require().NotNil(res)
	return res
}

func (s *ServiceSuite) vote(table, nickname string, value int) *Result {
	res, err := s.service.Vote(s.ctx, table, nickname, &value)
	s.Require().NoError(err)
	return res
}

func intPtr(v int) *int { return &v }

// Join tests

func (s *ServiceSuite) TestJoinCreatesTable() {
	res := s.join("planning", "alice", model.RoleParticipant, true)

	s.Equal(protocol.EventPlayerJoined, res.Event.Type)
	s.True(res.DirectoryChanged)
	s.Len(res.Event.Players, 1)
	s.Equal("alice", res.Event.Players[0].Nickname)
	s.True(res.Event.Players[0].IsCroupier)

	tbl, err := s.storage.GetTable(s.ctx, "planning")
	s.Require().NoError(err)
	s.Len(tbl.Players, 1)
}

func (s *ServiceSuite) TestJoinPreservesOrder() {
	s.join("planning", "alice", model.RoleParticipant, false)
	s.join("planning", "bob", model.RoleParticipant, false)
	res := s.join("planning", "carol", model.RoleObserver, false)

	s.Require().Len(res.Event.Players, 3)
	s.Equal("alice", res.Event.Players[0].Nickname)
	s.Equal("bob", res.Event.Players[1].Nickname)
	s.Equal("carol", res.Event.Players[2].Nickname)
}

func (s *ServiceSuite) TestJoinEmptyNicknameIsNoop() {
	res, err := s.service.Join(s.ctx, "planning", JoinRequest{Nickname: ""})
	s.Require().NoError(err)
	s.Nil(res)

	_, err = s.storage.GetTable(s.ctx, "planning")
	s.ErrorIs(err, model.ErrTableNotFound)
}

func (s *ServiceSuite) TestJoinInvalidRoleDefaultsToParticipant() {
	res := s.join("planning", "alice", model.Role("referee"), false)
	s.Equal(model.RoleParticipant, res.Event.Players[0].Role)
}

func (s *ServiceSuite) TestJoinNicknameTaken() {
	s.join("planning", "alice", model.RoleParticipant, false)

	_, err := s.service.Join(s.ctx, "planning", JoinRequest{Nickname: "alice"})
	s.ErrorIs(err, model.ErrNicknameTaken)

	// The conflicting join must not have touched the table.
	tbl, err := s.storage.GetTable(s.ctx, "planning")
	s.Require().NoError(err)
	s.Len(tbl.Players, 1)
}

func (s *ServiceSuite) TestJoinSecondCroupierRejected() {
	s.join("planning", "alice", model.RoleParticipant, true)

	_, err := s.service.Join(s.ctx, "planning", JoinRequest{Nickname: "bob", Croupier: true})
	s.ErrorIs(err, model.ErrCroupierExists)
}

func (s *ServiceSuite) TestJoinAsCroupierAfterSeatFreed() {
	s.join("planning", "alice", model.RoleParticipant, true)
	_, err := s.service.Leave(s.ctx, "planning", "alice")
	s.Require().NoError(err)

	res := s.join("planning", "bob", model.RoleParticipant, true)
	s.True(res.Event.Players[0].IsCroupier)
}

func (s *ServiceSuite) TestJoinPasswordSetOnlyOnFirstJoin() {
	_, err := s.service.Join(s.ctx, "planning", JoinRequest{Nickname: "alice", Password: "secret"})
	s.Require().NoError(err)

	// A later password is ignored: the table keeps its original hash.
	_, err = s.service.Join(s.ctx, "planning", JoinRequest{Nickname: "bob", Password: "other"})
	s.Require().NoError(err)

	tbl, err := s.storage.GetTable(s.ctx, "planning")
	s.Require().NoError(err)
	s.NoError(bcrypt.CompareHashAndPassword([]byte(tbl.PasswordHash), []byte("secret")))
}

// CheckPassword tests

func (s *ServiceSuite) TestCheckPasswordUnknownTable() {
	s.NoError(s.service.CheckPassword(s.ctx, "nowhere", ""))
	s.NoError(s.service.CheckPassword(s.ctx, "nowhere", "anything"))
}

func (s *ServiceSuite) TestCheckPasswordEmptyTableNeverRequiresOne() {
	_, err := s.service.Join(s.ctx, "planning", JoinRequest{Nickname: "alice", Password: "secret"})
	s.Require().NoError(err)
	_, err = s.service.Leave(s.ctx, "planning", "alice")
	s.Require().NoError(err)

	s.NoError(s.service.CheckPassword(s.ctx, "planning", "wrong"))
}

func (s *ServiceSuite) TestCheckPasswordWrong() {
	_, err := s.service.Join(s.ctx, "planning", JoinRequest{Nickname: "alice", Password: "secret"})
	s.Require().NoError(err)

	s.ErrorIs(s.service.CheckPassword(s.ctx, "planning", "wrong"), model.ErrWrongPassword)
	s.NoError(s.service.CheckPassword(s.ctx, "planning", "secret"))
}

// Vote tests

func (s *ServiceSuite) TestVoteRecordsValue() {
	s.join("planning", "alice", model.RoleParticipant, false)
	s.join("planning", "bob", model.RoleParticipant, false)

	res := s.vote("planning", "alice", 5)
	s.Require().NotNil(res)
	s.Equal(protocol.EventVoteCast, res.Event.Type)
	s.False(res.DirectoryChanged)
	s.False(res.Event.AllVoted)

	alice := res.Event.Players[0]
	s.True(alice.HasVoted)
	s.Equal(5, *alice.Vote)
}

func (s *ServiceSuite) TestVoteRevoteOverwrites() {
	s.join("planning", "alice", model.RoleParticipant, false)
	s.join("planning", "bob", model.RoleParticipant, false)

	s.vote("planning", "alice", 5)
	res := s.vote("planning", "alice", 13)
	s.Equal(13, *res.Event.Players[0].Vote)
}

func (s *ServiceSuite) TestVoteAllVotedWhenEveryParticipantVoted() {
	s.join("planning", "alice", model.RoleParticipant, false)
	s.join("planning", "bob", model.RoleParticipant, false)
	s.join("planning", "olga", model.RoleObserver, false)

	s.vote("planning", "alice", 5)
	res := s.vote("planning", "bob", 8)

	// The observer's missing vote must not hold up the reveal.
	s.True(res.Event.AllVoted)
	s.True(res.Event.VotingCompleted)
}

func (s *ServiceSuite) TestVotingCompletedSticksUntilReset() {
	s.join("planning", "alice", model.RoleParticipant, true)
	s.vote("planning", "alice", 5)

	// A new participant arrives after the reveal; all_voted drops but the
	// completed flag keeps this round's votes visible.
	res := s.join("planning", "bob", model.RoleParticipant, false)
	s.False(res.Event.AllVoted)
	s.True(res.Event.VotingCompleted)

	reset, err := s.service.Reset(s.ctx, "planning", "alice")
	s.Require().NoError(err)
	s.False(reset.Event.VotingCompleted)
}

func (s *ServiceSuite) TestVoteByObserverIgnored() {
	s.join("planning", "alice", model.RoleParticipant, false)
	s.join("planning", "olga", model.RoleObserver, false)

	res := s.vote("planning", "olga", 5)
	s.Nil(res)
}

func (s *ServiceSuite) TestVoteInvalidDeckValueIgnored() {
	s.join("planning", "alice", model.RoleParticipant, false)

	res := s.vote("planning", "alice", 7)
	s.Nil(res)

	tbl, _ := s.storage.GetTable(s.ctx, "planning")
	s.False(tbl.Players[0].HasVoted)
}

func (s *ServiceSuite) TestVoteByUnknownPlayerIgnored() {
	s.join("planning", "alice", model.RoleParticipant, false)

	res := s.vote("planning", "ghost", 5)
	s.Nil(res)
}

func (s *ServiceSuite) TestVoteOnUnknownTableIgnored() {
	res, err := s.service.Vote(s.ctx, "nowhere", "alice", intPtr(5))
	s.Require().NoError(err)
	s.Nil(res)
}

// Reset tests

func (s *ServiceSuite) TestResetClearsVotesAndRecordsHistory() {
	s.join("planning", "alice", model.RoleParticipant, true)
	s.join("planning", "bob", model.RoleParticipant, false)
	s.vote("planning", "alice", 5)
	s.vote("planning", "bob", 8)

	res, err := s.service.Reset(s.ctx, "planning", "alice")
	s.Require().NoError(err)

	s.Equal(protocol.EventTableReset, res.Event.Type)
	s.False(res.Event.AllVoted)
	s.False(res.Event.VotingCompleted)
	for _, p := range res.Event.Players {
		s.False(p.HasVoted)
		s.Nil(p.Vote)
	}

	rounds, err := s.history.Rounds(s.ctx, "planning")
	s.Require().NoError(err)
	s.Require().Len(rounds, 1)
	s.Equal(1, rounds[0].RoundNumber)
	s.Len(rounds[0].Votes, 2)
}

func (s *ServiceSuite) TestResetWithoutVotesRecordsNothing() {
	s.join("planning", "alice", model.RoleParticipant, true)

	_, err := s.service.Reset(s.ctx, "planning", "alice")
	s.Require().NoError(err)

	rounds, err := s.history.Rounds(s.ctx, "planning")
	s.Require().NoError(err)
	s.Empty(rounds)
}

func (s *ServiceSuite) TestResetByNonCroupierRejected() {
	s.join("planning", "alice", model.RoleParticipant, true)
	s.join("planning", "bob", model.RoleParticipant, false)
	s.vote("planning", "bob", 8)

	_, err := s.service.Reset(s.ctx, "planning", "bob")
	s.ErrorIs(err, model.ErrNotCroupier)

	// The rejected reset must not have cleared anything.
	tbl, _ := s.storage.GetTable(s.ctx, "planning")
	s.True(tbl.GetPlayer("bob").HasVoted)
}

func (s *ServiceSuite) TestResetByUnknownRequesterRejected() {
	s.join("planning", "alice", model.RoleParticipant, true)

	_, err := s.service.Reset(s.ctx, "planning", "ghost")
	s.ErrorIs(err, model.ErrNotCroupier)
}

// RemovePlayer tests

func (s *ServiceSuite) TestRemovePlayer() {
	s.join("planning", "alice", model.RoleParticipant, true)
	s.join("planning", "bob", model.RoleParticipant, false)

	res, err := s.service.RemovePlayer(s.ctx, "planning", "bob")
	s.Require().NoError(err)

	s.Equal(protocol.EventPlayerRemoved, res.Event.Type)
	s.Equal("bob", res.Event.RemovedNickname)
	s.True(res.DirectoryChanged)
	s.Len(res.Event.Players, 1)
}

func (s *ServiceSuite) TestRemoveUnknownPlayerStillBroadcasts() {
	s.join("planning", "alice", model.RoleParticipant, false)

	res, err := s.service.RemovePlayer(s.ctx, "planning", "ghost")
	s.Require().NoError(err)
	s.Equal("ghost", res.Event.RemovedNickname)
	s.Len(res.Event.Players, 1)
}

// AssignCroupier tests

func (s *ServiceSuite) TestAssignCroupierTransfersExclusively() {
	s.join("planning", "alice", model.RoleParticipant, true)
	s.join("planning", "bob", model.RoleParticipant, false)

	res, err := s.service.AssignCroupier(s.ctx, "planning", "alice", "bob")
	s.Require().NoError(err)
	s.Equal(protocol.EventPlayerJoined, res.Event.Type)

	tbl, _ := s.storage.GetTable(s.ctx, "planning")
	s.False(tbl.GetPlayer("alice").IsCroupier)
	s.True(tbl.GetPlayer("bob").IsCroupier)
}

func (s *ServiceSuite) TestAssignCroupierByNonCroupierRejected() {
	s.join("planning", "alice", model.RoleParticipant, true)
	s.join("planning", "bob", model.RoleParticipant, false)

	_, err := s.service.AssignCroupier(s.ctx, "planning", "bob", "bob")
	s.ErrorIs(err, model.ErrNotCroupier)
}

func (s *ServiceSuite) TestAssignCroupierToUnknownTargetRejected() {
	s.join("planning", "alice", model.RoleParticipant, true)

	_, err := s.service.AssignCroupier(s.ctx, "planning", "alice", "ghost")
	s.ErrorIs(err, model.ErrPlayerNotFound)
}

// BecomeCroupier tests

func (s *ServiceSuite) TestBecomeCroupierClaimsVacantSeat() {
	s.join("planning", "alice", model.RoleParticipant, false)

	res, err := s.service.BecomeCroupier(s.ctx, "planning", "alice")
	s.Require().NoError(err)
	s.True(res.Event.Players[0].IsCroupier)
}

func (s *ServiceSuite) TestBecomeCroupierRejectedWhenSeatHeld() {
	s.join("planning", "alice", model.RoleParticipant, true)
	s.join("planning", "bob", model.RoleParticipant, false)

	_, err := s.service.BecomeCroupier(s.ctx, "planning", "bob")
	s.ErrorIs(err, model.ErrCroupierExists)
}

func (s *ServiceSuite) TestBecomeCroupierUnknownPlayerRejected() {
	s.join("planning", "alice", model.RoleParticipant, false)

	_, err := s.service.BecomeCroupier(s.ctx, "planning", "ghost")
	s.ErrorIs(err, model.ErrPlayerNotFound)
}

// SwitchRole tests

func (s *ServiceSuite) TestSwitchRoleForfeitsVoteAndCroupier() {
	s.join("planning", "alice", model.RoleParticipant, true)
	s.join("planning", "bob", model.RoleParticipant, false)
	s.vote("planning", "alice", 5)

	res, err := s.service.SwitchRole(s.ctx, "planning", "alice")
	s.Require().NoError(err)
	s.True(res.DirectoryChanged)

	tbl, _ := s.storage.GetTable(s.ctx, "planning")
	alice := tbl.GetPlayer("alice")
	s.Equal(model.RoleObserver, alice.Role)
	s.False(alice.HasVoted)
	s.Nil(alice.Vote)
	s.False(alice.IsCroupier)
}

func (s *ServiceSuite) TestSwitchRoleBackToParticipant() {
	s.join("planning", "olga", model.RoleObserver, false)

	res, err := s.service.SwitchRole(s.ctx, "planning", "olga")
	s.Require().NoError(err)
	s.Equal(model.RoleParticipant, res.Event.Players[0].Role)
}

func (s *ServiceSuite) TestSwitchRoleCanCompleteVoting() {
	s.join("planning", "alice", model.RoleParticipant, false)
	s.join("planning", "bob", model.RoleParticipant, false)
	s.vote("planning", "alice", 5)

	// Bob abstains by becoming an observer; alice is now the only
	// participant and she has voted.
	res, err := s.service.SwitchRole(s.ctx, "planning", "bob")
	s.Require().NoError(err)
	s.True(res.Event.AllVoted)
}

// PingActivity tests

func (s *ServiceSuite) TestPingActivityRefreshesDirectory() {
	s.join("planning", "alice", model.RoleParticipant, false)

	s.clock.Advance(10 * time.Minute)
	_, err := s.service.PingActivity(s.ctx, "planning", "alice")
	s.Require().NoError(err)

	entries, err := s.storage.ListDirectory(s.ctx)
	s.Require().NoError(err)
	s.Equal(s.clock.Now(), entries["planning"].LastUpdated)
}

func (s *ServiceSuite) TestPingActivityUnknownTableIgnored() {
	res, err := s.service.PingActivity(s.ctx, "nowhere", "alice")
	s.Require().NoError(err)
	s.Nil(res)
}

// Leave tests

func (s *ServiceSuite) TestLeaveBroadcastsRemoval() {
	s.join("planning", "alice", model.RoleParticipant, false)
	s.join("planning", "bob", model.RoleParticipant, false)

	res, err := s.service.Leave(s.ctx, "planning", "bob")
	s.Require().NoError(err)
	s.Equal(protocol.EventPlayerRemoved, res.Event.Type)
	s.Equal("bob", res.Event.RemovedNickname)
	s.True(res.DirectoryChanged)
}

func (s *ServiceSuite) TestLeaveTransfersCroupierToRandomPlayer() {
	s.join("planning", "alice", model.RoleParticipant, true)
	s.join("planning", "bob", model.RoleParticipant, false)
	s.join("planning", "carol", model.RoleParticipant, false)

	// Remaining players after alice leaves are [bob, carol]; pick index 1.
	s.random.QueueIntn(1)

	res, err := s.service.Leave(s.ctx, "planning", "alice")
	s.Require().NoError(err)

	tbl, _ := s.storage.GetTable(s.ctx, "planning")
	s.False(tbl.GetPlayer("bob").IsCroupier)
	s.True(tbl.GetPlayer("carol").IsCroupier)

	for _, p := range res.Event.Players {
		if p.Nickname == "carol" {
			s.True(p.IsCroupier)
		}
	}
}

func (s *ServiceSuite) TestLeaveNonCroupierKeepsCroupier() {
	s.join("planning", "alice", model.RoleParticipant, true)
	s.join("planning", "bob", model.RoleParticipant, false)

	_, err := s.service.Leave(s.ctx, "planning", "bob")
	s.Require().NoError(err)

	tbl, _ := s.storage.GetTable(s.ctx, "planning")
	s.True(tbl.GetPlayer("alice").IsCroupier)
}

func (s *ServiceSuite) TestLastLeaveDropsDirectoryEntry() {
	s.join("planning", "alice", model.RoleParticipant, true)

	_, err := s.service.Leave(s.ctx, "planning", "alice")
	s.Require().NoError(err)

	entries, err := s.storage.ListDirectory(s.ctx)
	s.Require().NoError(err)
	s.NotContains(entries, "planning")
}

// HasCroupier tests

func (s *ServiceSuite) TestHasCroupier() {
	has, err := s.service.HasCroupier(s.ctx, "planning")
	s.Require().NoError(err)
	s.False(has)

	s.join("planning", "alice", model.RoleParticipant, true)

	has, err = s.service.HasCroupier(s.ctx, "planning")
	s.Require().NoError(err)
	s.True(has)
}
