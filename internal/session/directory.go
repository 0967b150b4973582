package session

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/scrumdeal/scrumdeal/internal/broadcast"
	"github.com/scrumdeal/scrumdeal/internal/protocol"
	"github.com/scrumdeal/scrumdeal/internal/services/directory"
)

// DirectorySession is the state machine for one landing-page connection. It
// answers active-table queries and pushes a fresh snapshot whenever any
// table session signals that the directory changed.
type DirectorySession struct {
	directory *directory.Service
	transport broadcast.Transport
	sink      Sink
	logger    *slog.Logger

	sub broadcast.Subscription
}

// NewDirectorySession creates a session for one landing-page connection
func NewDirectorySession(
	directoryService *directory.Service,
	transport broadcast.Transport,
	sink Sink,
	logger *slog.Logger,
) *DirectorySession {
	return &DirectorySession{
		directory: directoryService,
		transport: transport,
		sink:      sink,
		logger:    logger.With(slog.String("component", "directory-session")),
	}
}

// Connect subscribes to directory notifications and starts forwarding
// snapshots to the client
func (s *DirectorySession) Connect(ctx context.Context) error {
	sub, err := s.transport.Subscribe(ctx, HomeChannel)
	if err != nil {
		return err
	}
	s.sub = sub

	go s.forward(ctx)

	s.logger.Info("directory session connected")
	return nil
}

func (s *DirectorySession) forward(ctx context.Context) {
	for payload := range s.sub.Events() {
		var ev protocol.Event
		if err := json.Unmarshal(payload, &ev); err != nil {
			s.logger.Warn("dropping malformed broadcast event",
				slog.String("error", err.Error()))
			continue
		}
		if ev.Type == protocol.EventDirectoryChanged {
			s.sendSnapshot(ctx)
		}
	}
}

// HandleMessage processes one inbound client message. The only action a
// landing-page client may issue is the active-tables query; anything else
// is ignored.
func (s *DirectorySession) HandleMessage(ctx context.Context, raw []byte) {
	var msg protocol.ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		_ = s.sink.Send(protocol.ErrorEvent(err.Error()))
		return
	}
	if msg.Action == protocol.ActionGetActiveTables {
		s.sendSnapshot(ctx)
	}
}

func (s *DirectorySession) sendSnapshot(ctx context.Context) {
	tables, err := s.directory.ActiveTables(ctx)
	if err != nil {
		s.logger.Error("failed to list active tables", slog.String("error", err.Error()))
		_ = s.sink.Send(protocol.ErrorEvent(err.Error()))
		return
	}
	_ = s.sink.Send(&protocol.Event{
		Type:         protocol.EventActiveTablesUpdate,
		ActiveTables: tables,
	})
}

// Disconnect unsubscribes from directory notifications
func (s *DirectorySession) Disconnect() {
	if s.sub != nil {
		_ = s.sub.Close()
	}
	s.logger.Info("directory session disconnected")
}
