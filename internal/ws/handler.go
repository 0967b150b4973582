// Package ws exposes the table and landing-page websocket endpoints and
// the per-connection read/write pumps behind them.
package ws

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/scrumdeal/scrumdeal/internal/broadcast"
	"github.com/scrumdeal/scrumdeal/internal/model"
	"github.com/scrumdeal/scrumdeal/internal/services/directory"
	"github.com/scrumdeal/scrumdeal/internal/services/history"
	"github.com/scrumdeal/scrumdeal/internal/services/table"
	"github.com/scrumdeal/scrumdeal/internal/session"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Browser clients connect from arbitrary deployments of the UI
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler serves the websocket endpoints
type Handler struct {
	tables    *table.Service
	history   *history.Service
	directory *directory.Service
	transport broadcast.Transport
	logger    *slog.Logger
}

// NewHandler creates the websocket handler
func NewHandler(
	tables *table.Service,
	historyService *history.Service,
	directoryService *directory.Service,
	transport broadcast.Transport,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		tables:    tables,
		history:   historyService,
		directory: directoryService,
		transport: transport,
		logger:    logger.With(slog.String("component", "ws")),
	}
}

// ServeTable upgrades a connection to the named table. The table password
// is checked from the query string before the upgrade, so a client with a
// wrong password is rejected with a plain 403 and never opens a socket.
func (h *Handler) ServeTable(w http.ResponseWriter, r *http.Request) {
	tableName := mux.Vars(r)["table"]
	if tableName == "" {
		http.Error(w, "table name is required", http.StatusBadRequest)
		return
	}

	if err := h.tables.CheckPassword(r.Context(), tableName, r.URL.Query().Get("password")); err != nil {
		if errors.Is(err, model.ErrWrongPassword) {
			http.Error(w, "wrong table password", http.StatusForbidden)
			return
		}
		h.logger.Error("password check failed",
			slog.String("table", tableName),
			slog.String("error", err.Error()))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	client := newClient(conn, h.logger)
	sess := session.NewTableSession(tableName, h.tables, h.history, h.transport, client, h.logger)
	if err := sess.Connect(r.Context()); err != nil {
		h.logger.Error("session connect failed",
			slog.String("table", tableName),
			slog.String("error", err.Error()))
		conn.Close()
		return
	}
	go client.writePump()

	h.readLoop(conn, sess.HandleMessage)

	// The request context dies with the hijacked connection, so cleanup
	// mutations run on a fresh one.
	sess.Disconnect(context.Background())
	client.Close()
}

// ServeHome upgrades a landing-page connection that watches the directory
func (h *Handler) ServeHome(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	client := newClient(conn, h.logger)
	sess := session.NewDirectorySession(h.directory, h.transport, client, h.logger)
	if err := sess.Connect(r.Context()); err != nil {
		h.logger.Error("directory session connect failed", slog.String("error", err.Error()))
		conn.Close()
		return
	}
	go client.writePump()

	h.readLoop(conn, sess.HandleMessage)

	sess.Disconnect()
	client.Close()
}

// readLoop feeds inbound frames to the session until the peer goes away
func (h *Handler) readLoop(conn *websocket.Conn, handle func(context.Context, []byte)) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Warn("websocket read error", slog.String("error", err.Error()))
			}
			return
		}
		handle(context.Background(), data)
	}
}
