package table

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"github.com/scrumdeal/scrumdeal/internal/dependencies/clock"
	"github.com/scrumdeal/scrumdeal/internal/dependencies/random"
	"github.com/scrumdeal/scrumdeal/internal/model"
	"github.com/scrumdeal/scrumdeal/internal/protocol"
	"github.com/scrumdeal/scrumdeal/internal/services/history"
	"github.com/scrumdeal/scrumdeal/internal/storage"
)

// Service owns every table mutation. All operations are read-modify-write
// cycles against the table store, serialized per table name so two
// connections acting on the same table cannot clobber each other's writes.
// Cross-process coordination still relies on last-writer-wins in the store.
type Service struct {
	tables    storage.TableStore
	directory storage.DirectoryStore
	history   *history.Service
	clock     clock.Clock
	random    random.Random
	logger    *slog.Logger

	lockMu sync.Mutex
	locks  map[string]*sync.Mutex
}

// NewService creates a new table service
func NewService(
	tables storage.TableStore,
	directory storage.DirectoryStore,
	historyService *history.Service,
	clk clock.Clock,
	rnd random.Random,
	logger *slog.Logger,
) *Service {
	return &Service{
		tables:    tables,
		directory: directory,
		history:   historyService,
		clock:     clk,
		random:    rnd,
		logger:    logger.With(slog.String("component", "table")),
		locks:     make(map[string]*sync.Mutex),
	}
}

// Result carries the outcome of a table mutation: the event to publish on
// the table's channel (nil when there is nothing to broadcast) and whether
// the active-table directory listing changed.
type Result struct {
	Event            *protocol.Event
	DirectoryChanged bool
}

// JoinRequest holds the parameters of a join action
type JoinRequest struct {
	Nickname string
	Role     model.Role
	Croupier bool
	Password string
}

// lockTable serializes mutations per table name within this process
func (s *Service) lockTable(name string) func() {
	s.lockMu.Lock()
	mu, ok := s.locks[name]
	if !ok {
		mu = &sync.Mutex{}
		s.locks[name] = mu
	}
	s.lockMu.Unlock()

	mu.Lock()
	return mu.Unlock
}

// load returns the current table state, or nil when the table is unknown
func (s *Service) load(ctx context.Context, name string) (*model.Table, error) {
	tbl, err := s.tables.GetTable(ctx, name)
	if err != nil {
		if errors.Is(err, model.ErrTableNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return tbl, nil
}

// save persists the table and refreshes its directory projection. Tables
// with no remaining players are dropped from the directory entirely.
func (s *Service) save(ctx context.Context, tbl *model.Table) error {
	if err := s.tables.PutTable(ctx, tbl); err != nil {
		return err
	}

	entries, err := s.directory.ListDirectory(ctx)
	if err != nil {
		return err
	}

	if len(tbl.Players) == 0 {
		delete(entries, tbl.Name)
	} else {
		entries[tbl.Name] = model.DirectoryEntry{
			Players:      append([]model.Player(nil), tbl.Players...),
			LastUpdated:  s.clock.Now(),
			PasswordHash: tbl.PasswordHash,
		}
	}

	return s.directory.PutDirectory(ctx, entries)
}

// snapshotEvent builds a full-state event of the given type
func snapshotEvent(typ protocol.EventType, tbl *model.Table) *protocol.Event {
	return &protocol.Event{
		Type:            typ,
		Players:         protocol.PlayersFromModel(tbl.Players),
		AllVoted:        tbl.AllParticipantsVoted(),
		VotingCompleted: tbl.VotingCompleted,
	}
}

// CheckPassword verifies a join attempt's password before the connection is
// accepted. Unknown or empty tables never require a password; neither do
// tables that were created without one.
func (s *Service) CheckPassword(ctx context.Context, tableName, password string) error {
	tbl, err := s.load(ctx, tableName)
	if err != nil {
		return err
	}
	if tbl == nil || len(tbl.Players) == 0 || tbl.PasswordHash == "" {
		return nil
	}
	if bcrypt.CompareHashAndPassword([]byte(tbl.PasswordHash), []byte(password)) != nil {
		return model.ErrWrongPassword
	}
	return nil
}

// HasCroupier reports whether the table currently has a croupier
func (s *Service) HasCroupier(ctx context.Context, tableName string) (bool, error) {
	tbl, err := s.load(ctx, tableName)
	if err != nil {
		return false, err
	}
	return tbl != nil && tbl.Croupier() != nil, nil
}

// Join adds a player to the table, creating the table on first join to a
// previously-unknown name. Returns ErrCroupierExists when the croupier seat
// is contested and ErrNicknameTaken when the nickname is already present in
// either the table record or its directory projection.
func (s *Service) Join(ctx context.Context, tableName string, req JoinRequest) (*Result, error) {
	if req.Nickname == "" {
		return nil, nil
	}
	role := req.Role
	if !role.Valid() {
		role = model.RoleParticipant
	}

	unlock := s.lockTable(tableName)
	defer unlock()

	tbl, err := s.load(ctx, tableName)
	if err != nil {
		return nil, err
	}

	entries, err := s.directory.ListDirectory(ctx)
	if err != nil {
		return nil, err
	}
	dirEntry, inDirectory := entries[tableName]

	isNew := tbl == nil && !inDirectory
	if tbl == nil {
		tbl = &model.Table{Name: tableName}
	}

	if req.Croupier && tbl.Croupier() != nil {
		return nil, model.ErrCroupierExists
	}

	// The two stores can diverge; the nickname must be free in both.
	if tbl.GetPlayer(req.Nickname) != nil {
		return nil, model.ErrNicknameTaken
	}
	for _, p := range dirEntry.Players {
		if p.Nickname == req.Nickname {
			return nil, model.ErrNicknameTaken
		}
	}

	if isNew && req.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		tbl.PasswordHash = string(hash)
	}

	tbl.Players = append(tbl.Players, model.Player{
		Nickname:       req.Nickname,
		Role:           role,
		IsCroupier:     req.Croupier,
		LastActivityAt: s.clock.Now(),
	})

	if err := s.save(ctx, tbl); err != nil {
		return nil, err
	}

	s.logger.Info("player joined",
		slog.String("table", tableName),
		slog.String("nickname", req.Nickname),
		slog.String("role", string(role)),
		slog.Bool("croupier", req.Croupier))

	return &Result{
		Event:            snapshotEvent(protocol.EventPlayerJoined, tbl),
		DirectoryChanged: true,
	}, nil
}

// Vote records a participant's vote. Observers and unknown players are
// silently ignored, as are values outside the permitted deck. Once every
// participant has voted the table's voting-completed flag sticks until the
// next reset.
func (s *Service) Vote(ctx context.Context, tableName, nickname string, vote *int) (*Result, error) {
	if nickname == "" || vote == nil {
		return nil, nil
	}
	if !model.ValidVote(*vote) {
		return nil, nil
	}

	unlock := s.lockTable(tableName)
	defer unlock()

	tbl, err := s.load(ctx, tableName)
	if err != nil || tbl == nil {
		return nil, err
	}

	p := tbl.GetPlayer(nickname)
	if p == nil || p.Role == model.RoleObserver {
		return nil, nil
	}

	v := *vote
	p.HasVoted = true
	p.Vote = &v
	p.LastActivityAt = s.clock.Now()

	if tbl.AllParticipantsVoted() {
		tbl.VotingCompleted = true
	}

	if err := s.save(ctx, tbl); err != nil {
		return nil, err
	}

	s.logger.Info("vote cast",
		slog.String("table", tableName),
		slog.String("nickname", nickname),
		slog.Int("vote", v))

	return &Result{Event: snapshotEvent(protocol.EventVoteCast, tbl)}, nil
}

// Reset clears all votes for a new round. Only the table's current croupier
// may invoke it. Votes already on the table are recorded to history first.
func (s *Service) Reset(ctx context.Context, tableName, requester string) (*Result, error) {
	unlock := s.lockTable(tableName)
	defer unlock()

	tbl, err := s.load(ctx, tableName)
	if err != nil {
		return nil, err
	}
	if tbl == nil {
		return nil, nil
	}

	p := tbl.GetPlayer(requester)
	if p == nil || !p.IsCroupier {
		return nil, model.ErrNotCroupier
	}

	var votes []model.PlayerVote
	for _, pl := range tbl.Players {
		if pl.Vote != nil {
			votes = append(votes, model.PlayerVote{Nickname: pl.Nickname, Vote: *pl.Vote})
		}
	}
	if err := s.history.RecordRound(ctx, tableName, votes); err != nil {
		return nil, err
	}

	tbl.ClearVotes()

	if err := s.save(ctx, tbl); err != nil {
		return nil, err
	}

	s.logger.Info("table reset", slog.String("table", tableName))

	// Votes are already cleared, so the snapshot carries nothing to hide.
	ev := snapshotEvent(protocol.EventTableReset, tbl)
	ev.AllVoted = false
	return &Result{Event: ev}, nil
}

// RemovePlayer removes the named player from the table. There is no caller
// authorization check; any connection at the table may remove any player.
func (s *Service) RemovePlayer(ctx context.Context, tableName, target string) (*Result, error) {
	if target == "" {
		return nil, nil
	}

	unlock := s.lockTable(tableName)
	defer unlock()

	tbl, err := s.load(ctx, tableName)
	if err != nil || tbl == nil {
		return nil, err
	}

	tbl.RemovePlayer(target)

	if err := s.save(ctx, tbl); err != nil {
		return nil, err
	}

	s.logger.Info("player removed",
		slog.String("table", tableName),
		slog.String("nickname", target))

	ev := snapshotEvent(protocol.EventPlayerRemoved, tbl)
	ev.RemovedNickname = target
	return &Result{Event: ev, DirectoryChanged: true}, nil
}

// AssignCroupier transfers the croupier role to the named player. Only the
// current croupier may invoke it; the transfer is exclusive.
func (s *Service) AssignCroupier(ctx context.Context, tableName, requester, target string) (*Result, error) {
	if target == "" {
		return nil, nil
	}

	unlock := s.lockTable(tableName)
	defer unlock()

	tbl, err := s.load(ctx, tableName)
	if err != nil || tbl == nil {
		return nil, err
	}

	req := tbl.GetPlayer(requester)
	if req == nil || !req.IsCroupier {
		return nil, model.ErrNotCroupier
	}
	if tbl.GetPlayer(target) == nil {
		return nil, model.ErrPlayerNotFound
	}

	for i := range tbl.Players {
		tbl.Players[i].IsCroupier = tbl.Players[i].Nickname == target
	}

	if err := s.save(ctx, tbl); err != nil {
		return nil, err
	}

	s.logger.Info("croupier assigned",
		slog.String("table", tableName),
		slog.String("from", requester),
		slog.String("to", target))

	// Reuses the player_joined event shape to push a fresh full snapshot.
	return &Result{Event: snapshotEvent(protocol.EventPlayerJoined, tbl)}, nil
}

// BecomeCroupier lets a player claim the croupier role when the seat is
// vacant. Rejected when a croupier already exists or the caller cannot be
// located among current players.
func (s *Service) BecomeCroupier(ctx context.Context, tableName, requester string) (*Result, error) {
	unlock := s.lockTable(tableName)
	defer unlock()

	tbl, err := s.load(ctx, tableName)
	if err != nil {
		return nil, err
	}
	if tbl == nil {
		return nil, model.ErrPlayerNotFound
	}

	if tbl.Croupier() != nil {
		return nil, model.ErrCroupierExists
	}

	p := tbl.GetPlayer(requester)
	if p == nil {
		return nil, model.ErrPlayerNotFound
	}
	p.IsCroupier = true

	if err := s.save(ctx, tbl); err != nil {
		return nil, err
	}

	s.logger.Info("croupier claimed",
		slog.String("table", tableName),
		slog.String("nickname", requester))

	return &Result{Event: snapshotEvent(protocol.EventPlayerJoined, tbl)}, nil
}

// SwitchRole toggles the caller between participant and observer. The switch
// forfeits any in-flight vote, and an implicit departure from the croupier
// seat clears that flag too.
func (s *Service) SwitchRole(ctx context.Context, tableName, requester string) (*Result, error) {
	if requester == "" {
		return nil, nil
	}

	unlock := s.lockTable(tableName)
	defer unlock()

	tbl, err := s.load(ctx, tableName)
	if err != nil || tbl == nil {
		return nil, err
	}

	p := tbl.GetPlayer(requester)
	if p == nil {
		return nil, nil
	}

	if p.Role == model.RoleObserver {
		p.Role = model.RoleParticipant
	} else {
		p.Role = model.RoleObserver
	}
	p.HasVoted = false
	p.Vote = nil
	p.IsCroupier = false

	if err := s.save(ctx, tbl); err != nil {
		return nil, err
	}

	s.logger.Info("role switched",
		slog.String("table", tableName),
		slog.String("nickname", requester),
		slog.String("role", string(p.Role)))

	return &Result{
		Event:            snapshotEvent(protocol.EventPlayerJoined, tbl),
		DirectoryChanged: true,
	}, nil
}

// PingActivity refreshes the player's liveness timestamp and the table's
// directory entry. No broadcast.
func (s *Service) PingActivity(ctx context.Context, tableName, nickname string) (*Result, error) {
	if nickname == "" {
		return nil, nil
	}

	unlock := s.lockTable(tableName)
	defer unlock()

	tbl, err := s.load(ctx, tableName)
	if err != nil || tbl == nil {
		return nil, err
	}

	if p := tbl.GetPlayer(nickname); p != nil {
		p.LastActivityAt = s.clock.Now()
	}

	if err := s.save(ctx, tbl); err != nil {
		return nil, err
	}

	return &Result{}, nil
}

// Leave removes a disconnecting player. If the departing player held the
// croupier role and others remain, a uniformly-chosen remaining player
// inherits it.
func (s *Service) Leave(ctx context.Context, tableName, nickname string) (*Result, error) {
	if nickname == "" {
		return nil, nil
	}

	unlock := s.lockTable(tableName)
	defer unlock()

	tbl, err := s.load(ctx, tableName)
	if err != nil || tbl == nil {
		return nil, err
	}

	p := tbl.GetPlayer(nickname)
	wasCroupier := p != nil && p.IsCroupier

	tbl.RemovePlayer(nickname)

	if wasCroupier && len(tbl.Players) > 0 {
		idx := s.random.Intn(len(tbl.Players))
		tbl.Players[idx].IsCroupier = true
		s.logger.Info("croupier transferred on disconnect",
			slog.String("table", tableName),
			slog.String("from", nickname),
			slog.String("to", tbl.Players[idx].Nickname))
	}

	if err := s.save(ctx, tbl); err != nil {
		return nil, err
	}

	s.logger.Info("player left",
		slog.String("table", tableName),
		slog.String("nickname", nickname))

	ev := snapshotEvent(protocol.EventPlayerRemoved, tbl)
	ev.RemovedNickname = nickname
	return &Result{Event: ev, DirectoryChanged: true}, nil
}
