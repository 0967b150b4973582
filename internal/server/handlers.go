package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/scrumdeal/scrumdeal/internal/protocol"
	"github.com/scrumdeal/scrumdeal/internal/services/directory"
	"github.com/scrumdeal/scrumdeal/internal/services/table"
)

// apiHandler serves the snapshot HTTP endpoints alongside the websockets
type apiHandler struct {
	tables    *table.Service
	directory *directory.Service
	logger    *slog.Logger
}

func newAPIHandler(tables *table.Service, directoryService *directory.Service, logger *slog.Logger) *apiHandler {
	return &apiHandler{
		tables:    tables,
		directory: directoryService,
		logger:    logger.With(slog.String("component", "api")),
	}
}

type listTablesResponse struct {
	Tables []protocol.ActiveTable `json:"tables"`
}

// ListTables returns the current active-table snapshot
func (h *apiHandler) ListTables(w http.ResponseWriter, r *http.Request) {
	tables, err := h.directory.ActiveTables(r.Context())
	if err != nil {
		h.logger.Error("failed to list active tables", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list tables")
		return
	}
	writeJSON(w, http.StatusOK, listTablesResponse{Tables: tables})
}

type pingRequest struct {
	Nickname string `json:"nickname"`
}

// PingActivity refreshes a player's activity timestamp so their table stays
// out of the stale sweep. Unknown tables and players are fine: the ping is
// best effort and always answers 204.
func (h *apiHandler) PingActivity(w http.ResponseWriter, r *http.Request) {
	tableName := mux.Vars(r)["table"]

	var req pingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if _, err := h.tables.PingActivity(r.Context(), tableName, req.Nickname); err != nil {
		h.logger.Error("failed to ping activity",
			slog.String("table", tableName),
			slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to record activity")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type croupierStatusResponse struct {
	HasCroupier bool `json:"has_croupier"`
}

// CroupierStatus reports whether the named table already has a croupier,
// letting the UI grey out the croupier checkbox before joining
func (h *apiHandler) CroupierStatus(w http.ResponseWriter, r *http.Request) {
	tableName := mux.Vars(r)["table"]

	has, err := h.tables.HasCroupier(r.Context(), tableName)
	if err != nil {
		h.logger.Error("failed to check croupier",
			slog.String("table", tableName),
			slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to check croupier")
		return
	}
	writeJSON(w, http.StatusOK, croupierStatusResponse{HasCroupier: has})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
