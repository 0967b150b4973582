package model

import "time"

// Role distinguishes voting participants from observers
type Role string

const (
	RoleParticipant Role = "participant"
	RoleObserver    Role = "observer"
)

// Valid reports whether the role is one of the known roles
func (r Role) Valid() bool {
	return r == RoleParticipant || r == RoleObserver
}

// Deck is the fixed set of permitted vote values
var Deck = []int{0, 1, 2, 3, 5, 8, 13, 20, 40, 100}

// ValidVote reports whether v is a permitted card value
func ValidVote(v int) bool {
	for _, card := range Deck {
		if card == v {
			return true
		}
	}
	return false
}

// Player is a member of a table, keyed by nickname within the table
type Player struct {
	Nickname       string    `json:"nickname"`
	Role           Role      `json:"role"`
	IsCroupier     bool      `json:"is_croupier"`
	HasVoted       bool      `json:"has_voted"`
	Vote           *int      `json:"vote"`
	LastActivityAt time.Time `json:"last_activity_at"`
}

// Table is a named voting room with an ordered player list
type Table struct {
	Name            string   `json:"name"`
	Players         []Player `json:"players"`
	PasswordHash    string   `json:"password_hash,omitempty"`
	VotingCompleted bool     `json:"voting_completed"`
}

// GetPlayer returns the player with the given nickname, or nil if not found
func (t *Table) GetPlayer(nickname string) *Player {
	for i := range t.Players {
		if t.Players[i].Nickname == nickname {
			return &t.Players[i]
		}
	}
	return nil
}

// Croupier returns the player currently holding the croupier role, or nil
func (t *Table) Croupier() *Player {
	for i := range t.Players {
		if t.Players[i].IsCroupier {
			return &t.Players[i]
		}
	}
	return nil
}

// RemovePlayer removes the named player, preserving join order.
// It reports whether a player was removed.
func (t *Table) RemovePlayer(nickname string) bool {
	for i := range t.Players {
		if t.Players[i].Nickname == nickname {
			t.Players = append(t.Players[:i], t.Players[i+1:]...)
			return true
		}
	}
	return false
}

// AllParticipantsVoted reports whether every participant has voted.
// Vacuously true when the table has no participants.
func (t *Table) AllParticipantsVoted() bool {
	for _, p := range t.Players {
		if p.Role == RoleParticipant && !p.HasVoted {
			return false
		}
	}
	return true
}

// ClearVotes resets every player's vote state
func (t *Table) ClearVotes() {
	for i := range t.Players {
		t.Players[i].HasVoted = false
		t.Players[i].Vote = nil
	}
	t.VotingCompleted = false
}

// DirectoryEntry is the per-table projection kept in the room directory
type DirectoryEntry struct {
	Players      []Player  `json:"players"`
	LastUpdated  time.Time `json:"last_updated"`
	PasswordHash string    `json:"password_hash,omitempty"`
}

// ParticipantCount returns the number of participant-role players
func (e DirectoryEntry) ParticipantCount() int {
	n := 0
	for _, p := range e.Players {
		if p.Role == RoleParticipant {
			n++
		}
	}
	return n
}

// ObserverCount returns the number of observer-role players
func (e DirectoryEntry) ObserverCount() int {
	n := 0
	for _, p := range e.Players {
		if p.Role == RoleObserver {
			n++
		}
	}
	return n
}

// PlayerVote records one player's vote within a completed round
type PlayerVote struct {
	Nickname string `json:"nickname"`
	Vote     int    `json:"vote"`
}

// VotingRound is an append-only record of a completed voting round
type VotingRound struct {
	TableName   string       `json:"table_name"`
	RoundNumber int          `json:"round_number"`
	CreatedAt   time.Time    `json:"created_at"`
	Votes       []PlayerVote `json:"votes"`
}
