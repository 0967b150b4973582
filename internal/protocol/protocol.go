// Package protocol defines the JSON messages exchanged with clients and
// fanned out over the broadcast transport. All field names are snake_case.
package protocol

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/scrumdeal/scrumdeal/internal/model"
)

// Action identifies an inbound client message
type Action string

const (
	ActionJoin             Action = "join"
	ActionVote             Action = "vote"
	ActionReset            Action = "reset"
	ActionRemovePlayer     Action = "remove_player"
	ActionAssignCroupier   Action = "assign_croupier"
	ActionBecomeCroupier   Action = "become_croupier"
	ActionSwitchRole       Action = "switch_role"
	ActionPingActivity     Action = "ping_activity"
	ActionGetVotingHistory Action = "get_voting_history"
	ActionGetActiveTables  Action = "get_active_tables"
)

// FlexBool is a bool that also accepts the string forms "1" and "true",
// which some clients send for the croupier flag.
type FlexBool bool

func (b *FlexBool) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.ToLower(s)
		*b = FlexBool(s == "1" || s == "true")
		return nil
	}
	var v bool
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*b = FlexBool(v)
	return nil
}

// ClientMessage is the inbound envelope; fields beyond Action are
// action-specific and optional.
type ClientMessage struct {
	Action           Action     `json:"action"`
	Nickname         string     `json:"nickname,omitempty"`
	Role             model.Role `json:"role,omitempty"`
	IsCroupier       FlexBool   `json:"is_croupier,omitempty"`
	Password         string     `json:"password,omitempty"`
	Vote             *int       `json:"vote,omitempty"`
	NicknameToRemove string     `json:"nickname_to_remove,omitempty"`
	TargetNickname   string     `json:"target_nickname,omitempty"`
}

// EventType identifies an outbound event
type EventType string

const (
	EventPlayerJoined       EventType = "player_joined"
	EventVoteCast           EventType = "vote_cast"
	EventTableReset         EventType = "table_reset"
	EventPlayerRemoved      EventType = "player_removed"
	EventError              EventType = "error"
	EventNicknameTaken      EventType = "nickname_taken"
	EventCroupierExists     EventType = "croupier_exists"
	EventVotingHistory      EventType = "voting_history"
	EventActiveTablesUpdate EventType = "active_tables_update"

	// EventDirectoryChanged is internal to the transport: it is published on
	// the home channel to tell directory sessions to recompute their snapshot
	// and is never forwarded to clients.
	EventDirectoryChanged EventType = "directory_changed"
)

// Player is the wire form of a table member
type Player struct {
	Nickname   string     `json:"nickname"`
	HasVoted   bool       `json:"has_voted"`
	Vote       *int       `json:"vote"`
	Role       model.Role `json:"role"`
	IsCroupier bool       `json:"is_croupier"`
}

// ActiveTable is one entry in an active-tables snapshot
type ActiveTable struct {
	Name              string `json:"name"`
	ParticipantsCount int    `json:"participants_count"`
	ObserversCount    int    `json:"observers_count"`
}

// Event is the outbound envelope, shared by the broadcast transport and the
// client connection. Table events carry Players plus the reveal flags; the
// remaining fields are event-specific.
type Event struct {
	Type            EventType           `json:"type"`
	Players         []Player            `json:"players,omitempty"`
	AllVoted        bool                `json:"all_voted"`
	VotingCompleted bool                `json:"voting_completed"`
	RemovedNickname string              `json:"removed_nickname,omitempty"`
	Message         string              `json:"message,omitempty"`
	Rounds          []model.VotingRound `json:"rounds,omitempty"`
	ActiveTables    []ActiveTable       `json:"active_tables,omitempty"`
}

// PlayersFromModel converts stored players to their wire form
func PlayersFromModel(players []model.Player) []Player {
	out := make([]Player, len(players))
	for i, p := range players {
		out[i] = Player{
			Nickname:   p.Nickname,
			HasVoted:   p.HasVoted,
			Vote:       p.Vote,
			Role:       p.Role,
			IsCroupier: p.IsCroupier,
		}
	}
	return out
}

// ErrorEvent builds a generic error event with the given message
func ErrorEvent(message string) *Event {
	return &Event{Type: EventError, Message: message}
}
