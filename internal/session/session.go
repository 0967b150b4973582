// Package session implements the per-connection state machines: a
// TableSession for each client at a table and a DirectorySession for each
// landing-page viewer. Sessions interpret inbound actions, drive the table
// service, and fan results out over the broadcast transport; each session
// applies its own role-based vote filtering before forwarding an event to
// its client.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/scrumdeal/scrumdeal/internal/broadcast"
	"github.com/scrumdeal/scrumdeal/internal/model"
	"github.com/scrumdeal/scrumdeal/internal/protocol"
	"github.com/scrumdeal/scrumdeal/internal/services/history"
	"github.com/scrumdeal/scrumdeal/internal/services/table"
)

// HomeChannel is the process-wide channel carrying directory notifications
const HomeChannel = "scrumdeal:channel:home"

// TableChannel returns the broadcast channel name for a table
func TableChannel(tableName string) string {
	return "scrumdeal:channel:table:" + tableName
}

// Sink delivers events to one connected client. Close severs the client's
// connection once buffered events have been flushed.
type Sink interface {
	Send(ev *protocol.Event) error
	Close()
}

// TableSession is the per-connection state machine for one client at one
// table. The nickname, role, and croupier flag it holds are cached
// projections of authoritative table state, refreshed from each incoming
// event's player list; authorization decisions always go back to the store.
type TableSession struct {
	tableName string
	tables    *table.Service
	history   *history.Service
	transport broadcast.Transport
	sink      Sink
	logger    *slog.Logger

	mu         sync.Mutex
	nickname   string
	role       model.Role
	isCroupier bool

	tableSub broadcast.Subscription
	homeSub  broadcast.Subscription
}

// NewTableSession creates a session for one connection to the named table
func NewTableSession(
	tableName string,
	tables *table.Service,
	historyService *history.Service,
	transport broadcast.Transport,
	sink Sink,
	logger *slog.Logger,
) *TableSession {
	return &TableSession{
		tableName: tableName,
		tables:    tables,
		history:   historyService,
		transport: transport,
		sink:      sink,
		logger: logger.With(
			slog.String("component", "session"),
			slog.String("table", tableName)),
	}
}

// Connect subscribes the session to its table's channel and the global
// directory channel, then starts forwarding broadcast events to the client.
// No state mutation happens until the client joins.
func (s *TableSession) Connect(ctx context.Context) error {
	tableSub, err := s.transport.Subscribe(ctx, TableChannel(s.tableName))
	if err != nil {
		return err
	}
	homeSub, err := s.transport.Subscribe(ctx, HomeChannel)
	if err != nil {
		_ = tableSub.Close()
		return err
	}
	s.tableSub = tableSub
	s.homeSub = homeSub

	go s.forward()

	s.logger.Info("session connected")
	return nil
}

// forward pumps broadcast events to the client until the subscriptions close
func (s *TableSession) forward() {
	// Directory notifications are for landing-page sessions; drain them so
	// the subscription does not back up.
	go func() {
		for range s.homeSub.Events() {
		}
	}()

	for payload := range s.tableSub.Events() {
		var ev protocol.Event
		if err := json.Unmarshal(payload, &ev); err != nil {
			s.logger.Warn("dropping malformed broadcast event",
				slog.String("error", err.Error()))
			continue
		}
		s.handleEvent(&ev)
	}
}

// handleEvent applies per-recipient processing to one broadcast event
func (s *TableSession) handleEvent(ev *protocol.Event) {
	switch ev.Type {
	case protocol.EventPlayerJoined, protocol.EventVoteCast, protocol.EventTableReset:
		s.refreshIdentity(ev.Players)
		_ = s.sink.Send(FilterVotes(ev, s.currentRole()))
	case protocol.EventPlayerRemoved:
		_ = s.sink.Send(ev)
	default:
		// Internal notifications are not forwarded to table clients.
	}
}

// refreshIdentity updates the cached role and croupier flag from an event's
// player list. This is how a session learns about croupier transfers
// performed by another connection.
func (s *TableSession) refreshIdentity(players []protocol.Player) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.nickname == "" {
		return
	}
	for _, p := range players {
		if p.Nickname == s.nickname {
			s.role = p.Role
			s.isCroupier = p.IsCroupier
			return
		}
	}
}

func (s *TableSession) currentRole() model.Role {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.role
}

func (s *TableSession) currentNickname() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nickname
}

// Nickname returns the joined nickname, empty before a successful join
func (s *TableSession) Nickname() string {
	return s.currentNickname()
}

// HandleMessage processes one inbound client message. Failures never kill
// the connection: they are serialized into an error event and the session
// keeps reading, except for the croupier conflict on join which severs it.
func (s *TableSession) HandleMessage(ctx context.Context, raw []byte) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic while processing message", slog.Any("panic", r))
			_ = s.sink.Send(protocol.ErrorEvent(fmt.Sprint(r)))
		}
	}()

	var msg protocol.ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		_ = s.sink.Send(protocol.ErrorEvent(err.Error()))
		return
	}

	s.logger.Info("action received", slog.String("action", string(msg.Action)))

	if err := s.dispatch(ctx, msg); err != nil {
		_ = s.sink.Send(protocol.ErrorEvent(err.Error()))
	}
}

// dispatch routes one message to its handler. Unknown actions are ignored.
func (s *TableSession) dispatch(ctx context.Context, msg protocol.ClientMessage) error {
	switch msg.Action {
	case protocol.ActionJoin:
		return s.handleJoin(ctx, msg)
	case protocol.ActionVote:
		res, err := s.tables.Vote(ctx, s.tableName, msg.Nickname, msg.Vote)
		if err != nil {
			return err
		}
		return s.publish(ctx, res)
	case protocol.ActionReset:
		res, err := s.tables.Reset(ctx, s.tableName, s.currentNickname())
		if err != nil {
			return err
		}
		return s.publish(ctx, res)
	case protocol.ActionRemovePlayer:
		res, err := s.tables.RemovePlayer(ctx, s.tableName, msg.NicknameToRemove)
		if err != nil {
			return err
		}
		return s.publish(ctx, res)
	case protocol.ActionAssignCroupier:
		res, err := s.tables.AssignCroupier(ctx, s.tableName, s.currentNickname(), msg.TargetNickname)
		if err != nil {
			return err
		}
		return s.publish(ctx, res)
	case protocol.ActionBecomeCroupier:
		res, err := s.tables.BecomeCroupier(ctx, s.tableName, s.currentNickname())
		if err != nil {
			return err
		}
		return s.publish(ctx, res)
	case protocol.ActionSwitchRole:
		res, err := s.tables.SwitchRole(ctx, s.tableName, s.currentNickname())
		if err != nil {
			return err
		}
		return s.publish(ctx, res)
	case protocol.ActionPingActivity:
		_, err := s.tables.PingActivity(ctx, s.tableName, msg.Nickname)
		return err
	case protocol.ActionGetVotingHistory:
		rounds, err := s.history.Rounds(ctx, s.tableName)
		if err != nil {
			return err
		}
		return s.sink.Send(&protocol.Event{
			Type:   protocol.EventVotingHistory,
			Rounds: rounds,
		})
	default:
		return nil
	}
}

// handleJoin runs the join flow, including the conflict replies that go to
// the caller only: nickname_taken keeps the connection open for a retry,
// croupier_exists severs it.
func (s *TableSession) handleJoin(ctx context.Context, msg protocol.ClientMessage) error {
	res, err := s.tables.Join(ctx, s.tableName, table.JoinRequest{
		Nickname: msg.Nickname,
		Role:     msg.Role,
		Croupier: bool(msg.IsCroupier),
		Password: msg.Password,
	})
	switch {
	case err == nil:
	case errors.Is(err, model.ErrCroupierExists):
		_ = s.sink.Send(&protocol.Event{
			Type:    protocol.EventCroupierExists,
			Message: "this table already has a croupier",
		})
		s.sink.Close()
		return nil
	case errors.Is(err, model.ErrNicknameTaken):
		_ = s.sink.Send(&protocol.Event{
			Type:    protocol.EventNicknameTaken,
			Message: fmt.Sprintf("nickname %q is already taken at this table, pick another", msg.Nickname),
		})
		return nil
	default:
		return err
	}

	if res == nil {
		return nil
	}

	role := msg.Role
	if !role.Valid() {
		role = model.RoleParticipant
	}
	s.mu.Lock()
	s.nickname = msg.Nickname
	s.role = role
	s.isCroupier = bool(msg.IsCroupier)
	s.mu.Unlock()

	return s.publish(ctx, res)
}

// publish pushes a mutation result onto the broadcast channels
func (s *TableSession) publish(ctx context.Context, res *table.Result) error {
	if res == nil {
		return nil
	}
	if res.Event != nil {
		payload, err := json.Marshal(res.Event)
		if err != nil {
			return err
		}
		if err := s.transport.Publish(ctx, TableChannel(s.tableName), payload); err != nil {
			return err
		}
	}
	if res.DirectoryChanged {
		payload, err := json.Marshal(&protocol.Event{Type: protocol.EventDirectoryChanged})
		if err != nil {
			return err
		}
		return s.transport.Publish(ctx, HomeChannel, payload)
	}
	return nil
}

// Disconnect unsubscribes from the broadcast channels and, if the session
// had joined, removes the player from the table. A departing croupier's
// role passes to a random remaining player inside the Leave operation.
func (s *TableSession) Disconnect(ctx context.Context) {
	if s.tableSub != nil {
		_ = s.tableSub.Close()
	}
	if s.homeSub != nil {
		_ = s.homeSub.Close()
	}

	nickname := s.currentNickname()
	if nickname == "" {
		s.logger.Info("session disconnected")
		return
	}

	res, err := s.tables.Leave(ctx, s.tableName, nickname)
	if err != nil {
		s.logger.Error("failed to remove player on disconnect",
			slog.String("nickname", nickname),
			slog.String("error", err.Error()))
		return
	}
	if err := s.publish(ctx, res); err != nil {
		s.logger.Error("failed to broadcast disconnect",
			slog.String("nickname", nickname),
			slog.String("error", err.Error()))
	}

	s.logger.Info("session disconnected", slog.String("nickname", nickname))
}
