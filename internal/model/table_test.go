package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func intPtr(v int) *int { return &v }

func TestValidVote(t *testing.T) {
	for _, v := range Deck {
		assert.True(t, ValidVote(v), "deck value %d", v)
	}
	for _, v := range []int{-1, 4, 7, 21, 99, 101} {
		assert.False(t, ValidVote(v), "non-deck value %d", v)
	}
}

func TestRoleValid(t *testing.T) {
	assert.True(t, RoleParticipant.Valid())
	assert.True(t, RoleObserver.Valid())
	assert.False(t, Role("").Valid())
	assert.False(t, Role("referee").Valid())
}

func TestTableGetPlayer(t *testing.T) {
	tbl := &Table{Players: []Player{{Nickname: "alice"}, {Nickname: "bob"}}}

	assert.Nil(t, tbl.GetPlayer("ghost"))

	// The returned pointer aliases table state, so callers can mutate in place.
	p := tbl.GetPlayer("bob")
	p.HasVoted = true
	assert.True(t, tbl.Players[1].HasVoted)
}

func TestTableRemovePlayerPreservesOrder(t *testing.T) {
	tbl := &Table{Players: []Player{
		{Nickname: "alice"}, {Nickname: "bob"}, {Nickname: "carol"},
	}}

	assert.True(t, tbl.RemovePlayer("bob"))
	assert.False(t, tbl.RemovePlayer("bob"))
	assert.Equal(t, "alice", tbl.Players[0].Nickname)
	assert.Equal(t, "carol", tbl.Players[1].Nickname)
}

func TestAllParticipantsVoted(t *testing.T) {
	tbl := &Table{Players: []Player{
		{Nickname: "alice", Role: RoleParticipant, HasVoted: true},
		{Nickname: "olga", Role: RoleObserver},
	}}
	assert.True(t, tbl.AllParticipantsVoted(), "observers never block the reveal")

	tbl.Players = append(tbl.Players, Player{Nickname: "bob", Role: RoleParticipant})
	assert.False(t, tbl.AllParticipantsVoted())
}

func TestAllParticipantsVotedVacuouslyTrue(t *testing.T) {
	assert.True(t, (&Table{}).AllParticipantsVoted())
}

func TestClearVotes(t *testing.T) {
	tbl := &Table{
		Players: []Player{
			{Nickname: "alice", HasVoted: true, Vote: intPtr(5)},
			{Nickname: "bob", HasVoted: true, Vote: intPtr(8)},
		},
		VotingCompleted: true,
	}

	tbl.ClearVotes()

	assert.False(t, tbl.VotingCompleted)
	for _, p := range tbl.Players {
		assert.False(t, p.HasVoted)
		assert.Nil(t, p.Vote)
	}
}

func TestDirectoryEntryCounts(t *testing.T) {
	entry := DirectoryEntry{Players: []Player{
		{Nickname: "alice", Role: RoleParticipant},
		{Nickname: "bob", Role: RoleParticipant},
		{Nickname: "olga", Role: RoleObserver},
	}}

	assert.Equal(t, 2, entry.ParticipantCount())
	assert.Equal(t, 1, entry.ObserverCount())
}
