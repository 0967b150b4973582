package session

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/scrumdeal/scrumdeal/internal/model"
	"github.com/scrumdeal/scrumdeal/internal/protocol"
)

func voteEvent(allVoted, completed bool) *protocol.Event {
	five, eight := 5, 8
	return &protocol.Event{
		Type: protocol.EventVoteCast,
		Players: []protocol.Player{
			{Nickname: "alice", HasVoted: true, Vote: &five, Role: model.RoleParticipant},
			{Nickname: "bob", HasVoted: true, Vote: &eight, Role: model.RoleParticipant},
			{Nickname: "carol", Role: model.RoleParticipant},
		},
		AllVoted:        allVoted,
		VotingCompleted: completed,
	}
}

func TestFilterVotesHidesValuesFromParticipants(t *testing.T) {
	out := FilterVotes(voteEvent(false, false), model.RoleParticipant)

	for _, p := range out.Players {
		assert.Nil(t, p.Vote, "vote of %s should be hidden", p.Nickname)
	}
	// The voted flags stay visible so the UI can show raised hands.
	assert.True(t, out.Players[0].HasVoted)
	assert.False(t, out.Players[2].HasVoted)
}

func TestFilterVotesPassesThroughForObservers(t *testing.T) {
	ev := voteEvent(false, false)
	out := FilterVotes(ev, model.RoleObserver)

	assert.Same(t, ev, out)
	assert.Equal(t, 5, *out.Players[0].Vote)
}

func TestFilterVotesRevealsWhenAllVoted(t *testing.T) {
	out := FilterVotes(voteEvent(true, true), model.RoleParticipant)
	assert.Equal(t, 5, *out.Players[0].Vote)
	assert.Equal(t, 8, *out.Players[1].Vote)
}

func TestFilterVotesRevealsWhenRoundCompleted(t *testing.T) {
	// A sticky completed flag keeps votes visible even after a new player
	// drops all_voted back to false.
	out := FilterVotes(voteEvent(false, true), model.RoleParticipant)
	assert.Equal(t, 5, *out.Players[0].Vote)
}

func TestFilterVotesDoesNotMutateInput(t *testing.T) {
	ev := voteEvent(false, false)
	_ = FilterVotes(ev, model.RoleParticipant)

	// The same event instance is filtered once per recipient, so the
	// original must keep its votes for observer recipients.
	assert.NotNil(t, ev.Players[0].Vote)
	assert.Equal(t, 5, *ev.Players[0].Vote)
}
