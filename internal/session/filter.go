package session

import (
	"github.com/scrumdeal/scrumdeal/internal/model"
	"github.com/scrumdeal/scrumdeal/internal/protocol"
)

// FilterVotes applies the recipient's vote visibility rule to an event.
// Observers see every vote as cast. Participants see only null votes until
// every participant has voted or the round is already completed; until then
// a participant cannot see their own vote either. The input event is never
// mutated, so one broadcast payload can be filtered per recipient.
func FilterVotes(ev *protocol.Event, role model.Role) *protocol.Event {
	if role == model.RoleObserver {
		return ev
	}
	if ev.AllVoted || ev.VotingCompleted {
		return ev
	}

	out := *ev
	out.Players = make([]protocol.Player, len(ev.Players))
	for i, p := range ev.Players {
		p.Vote = nil
		out.Players[i] = p
	}
	return &out
}
