package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/scrumdeal/scrumdeal/internal/model"
	"github.com/scrumdeal/scrumdeal/internal/storage"
)

// Storage is a Redis-backed implementation of the storage interface
type Storage struct {
	client *redis.Client
	cfg    Config
}

// New creates a new Redis storage instance
func New(cfg Config) (*Storage, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &Storage{
		client: client,
		cfg:    cfg,
	}, nil
}

// NewWithClient creates a Redis storage with an existing client (for testing)
func NewWithClient(client *redis.Client, cfg Config) *Storage {
	return &Storage{
		client: client,
		cfg:    cfg,
	}
}

// Close closes the Redis connection
func (s *Storage) Close() error {
	return s.client.Close()
}

// Client exposes the underlying connection so other components (the pub/sub
// transport) can share it.
func (s *Storage) Client() *redis.Client {
	return s.client
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// Table operations

func (s *Storage) GetTable(ctx context.Context, name string) (*model.Table, error) {
	data, err := s.client.Get(ctx, tableKey(name)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrTableNotFound
		}
		return nil, err
	}

	var table model.Table
	if err := json.Unmarshal(data, &table); err != nil {
		return nil, err
	}
	return &table, nil
}

func (s *Storage) PutTable(ctx context.Context, table *model.Table) error {
	data, err := json.Marshal(table)
	if err != nil {
		return err
	}

	return s.client.Set(ctx, tableKey(table.Name), data, s.cfg.TableTTL).Err()
}

// Directory operations

func (s *Storage) ListDirectory(ctx context.Context) (map[string]model.DirectoryEntry, error) {
	raw, err := s.client.HGetAll(ctx, directoryKey()).Result()
	if err != nil {
		return nil, err
	}

	entries := make(map[string]model.DirectoryEntry, len(raw))
	for name, data := range raw {
		var entry model.DirectoryEntry
		if err := json.Unmarshal([]byte(data), &entry); err != nil {
			continue // Skip invalid data
		}
		entries[name] = entry
	}
	return entries, nil
}

func (s *Storage) PutDirectory(ctx context.Context, entries map[string]model.DirectoryEntry) error {
	key := directoryKey()

	// Replace the whole hash in one pipeline so concurrent readers never
	// observe a half-written directory.
	pipe := s.client.Pipeline()
	pipe.Del(ctx, key)

	if len(entries) > 0 {
		fields := make(map[string]interface{}, len(entries))
		for name, entry := range entries {
			data, err := json.Marshal(entry)
			if err != nil {
				return err
			}
			fields[name] = data
		}
		pipe.HSet(ctx, key, fields)
	}

	_, err := pipe.Exec(ctx)
	return err
}

// History operations

func (s *Storage) NextRoundNumber(ctx context.Context, tableName string) (int, error) {
	n, err := s.client.Incr(ctx, roundSeqKey(tableName)).Result()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (s *Storage) AppendRound(ctx context.Context, round *model.VotingRound) error {
	data, err := json.Marshal(round)
	if err != nil {
		return err
	}

	return s.client.RPush(ctx, roundsKey(round.TableName), data).Err()
}

func (s *Storage) ListRounds(ctx context.Context, tableName string) ([]model.VotingRound, error) {
	raw, err := s.client.LRange(ctx, roundsKey(tableName), 0, -1).Result()
	if err != nil {
		return nil, err
	}

	rounds := make([]model.VotingRound, 0, len(raw))
	for _, data := range raw {
		var round model.VotingRound
		if err := json.Unmarshal([]byte(data), &round); err != nil {
			continue // Skip invalid data
		}
		rounds = append(rounds, round)
	}
	return rounds, nil
}
