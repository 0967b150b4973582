package server

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/scrumdeal/scrumdeal/internal/broadcast"
	"github.com/scrumdeal/scrumdeal/internal/middleware"
	"github.com/scrumdeal/scrumdeal/internal/services/directory"
	"github.com/scrumdeal/scrumdeal/internal/services/history"
	"github.com/scrumdeal/scrumdeal/internal/services/table"
	"github.com/scrumdeal/scrumdeal/internal/ws"
)

// RouterConfig holds the dependencies the router hands to its handlers
type RouterConfig struct {
	Logger           *slog.Logger
	TableService     *table.Service
	DirectoryService *directory.Service
	HistoryService   *history.Service
	Transport        broadcast.Transport
}

// NewRouter creates the router with all routes configured
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()

	wsHandler := ws.NewHandler(
		cfg.TableService, cfg.HistoryService, cfg.DirectoryService,
		cfg.Transport, cfg.Logger)
	apiHandler := newAPIHandler(cfg.TableService, cfg.DirectoryService, cfg.Logger)

	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.Logging(cfg.Logger))

	// Websocket endpoints
	r.HandleFunc("/ws/poker/{table}", wsHandler.ServeTable).Methods(http.MethodGet)
	r.HandleFunc("/ws/home", wsHandler.ServeHome).Methods(http.MethodGet)

	// Plain HTTP surface for clients that only need a snapshot
	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/tables", apiHandler.ListTables).Methods(http.MethodGet)
	api.HandleFunc("/tables/{table}/ping", apiHandler.PingActivity).Methods(http.MethodPost)
	api.HandleFunc("/tables/{table}/croupier", apiHandler.CroupierStatus).Methods(http.MethodGet)

	r.HandleFunc("/healthz", healthHandler).Methods(http.MethodGet)

	return r
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
