// Package factory wires storage, broadcast transport, and services into an
// application. Everything runs in-process with the memory backends, or
// against Redis so multiple server processes share tables and broadcasts.
package factory

import (
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/scrumdeal/scrumdeal/internal/broadcast"
	broadcastmemory "github.com/scrumdeal/scrumdeal/internal/broadcast/memory"
	broadcastredis "github.com/scrumdeal/scrumdeal/internal/broadcast/redis"
	"github.com/scrumdeal/scrumdeal/internal/dependencies/clock"
	"github.com/scrumdeal/scrumdeal/internal/dependencies/random"
	"github.com/scrumdeal/scrumdeal/internal/services/directory"
	"github.com/scrumdeal/scrumdeal/internal/services/history"
	"github.com/scrumdeal/scrumdeal/internal/services/table"
	"github.com/scrumdeal/scrumdeal/internal/storage"
	"github.com/scrumdeal/scrumdeal/internal/storage/memory"
	redisstorage "github.com/scrumdeal/scrumdeal/internal/storage/redis"
)

// Storage type constants
const (
	StorageTypeMemory = "memory"
	StorageTypeRedis  = "redis"
)

// App contains all wired application components
type App struct {
	Storage   storage.Storage
	Transport broadcast.Transport

	Clock  clock.Clock
	Random random.Random

	TableService     *table.Service
	DirectoryService *directory.Service
	HistoryService   *history.Service

	closer func() error
}

// Config holds configuration for the application factory
type Config struct {
	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger
	// StorageType selects the backend: "memory" or "redis"
	// If empty, defaults to "memory"
	StorageType string
	// RedisConfig holds Redis connection settings (required if StorageType is "redis")
	RedisConfig *redisstorage.Config
	// StalenessThreshold overrides how long a quiet table stays in the
	// directory listing (optional)
	StalenessThreshold time.Duration
}

// New creates a new application with all dependencies wired. With the redis
// backend the pub/sub transport reuses the storage connection, so table
// state and broadcasts land on the same Redis.
func New(cfg Config) (*App, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	storageType := cfg.StorageType
	if storageType == "" {
		storageType = StorageTypeMemory
	}

	var (
		store     storage.Storage
		transport broadcast.Transport
		closer    func() error
	)
	switch storageType {
	case StorageTypeMemory:
		store = memory.New()
		transport = broadcastmemory.New(logger)
	case StorageTypeRedis:
		if cfg.RedisConfig == nil {
			return nil, errors.New("RedisConfig required when StorageType is redis")
		}
		redisStore, err := redisstorage.New(*cfg.RedisConfig)
		if err != nil {
			return nil, err
		}
		store = redisStore
		transport = broadcastredis.New(redisStore.Client(), logger)
		closer = redisStore.Close
	default:
		return nil, errors.New("invalid StorageType: must be 'memory' or 'redis'")
	}

	app := newWithDependencies(store, transport, clock.New(), random.New(), cfg.StalenessThreshold, logger)
	app.closer = closer
	return app, nil
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(
	store storage.Storage,
	transport broadcast.Transport,
	clk clock.Clock,
	rnd random.Random,
	staleness time.Duration,
	logger *slog.Logger,
) *App {
	if staleness == 0 {
		staleness = directory.DefaultStalenessThreshold
	}

	historyService := history.New(store, clk, logger)
	directoryService := directory.New(store, clk, staleness, logger)
	tableService := table.NewService(store, store, historyService, clk, rnd, logger)

	return &App{
		Storage:          store,
		Transport:        transport,
		Clock:            clk,
		Random:           rnd,
		TableService:     tableService,
		DirectoryService: directoryService,
		HistoryService:   historyService,
	}
}

// Close releases storage connections held by the app
func (a *App) Close() error {
	if a.closer != nil {
		return a.closer()
	}
	return nil
}
