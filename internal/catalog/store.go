package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/galaxychat-backend/internal/platform/logger"
)

// Snapshot is a fetched catalog document and when it was fetched.
type Snapshot struct {
	Raw       json.RawMessage `json:"raw"`
	FetchedAt time.Time       `json:"fetchedAt"`
}

// Store shares the last snapshot between replicas. Get returns (nil, nil) when empty.
type Store interface {
	Get(ctx context.Context) (*Snapshot, error)
	Put(ctx context.Context, s Snapshot) error
}

type MemoryStore struct {
	mu   sync.RWMutex
	snap *Snapshot
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (m *MemoryStore) Get(context.Context) (*Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.snap == nil {
		return nil, nil
	}
	cp := *m.snap
	return &cp, nil
}

func (m *MemoryStore) Put(_ context.Context, s Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap = &s
	return nil
}

const defaultRedisKey = "galaxychat:model-catalog"

type RedisStore struct {
	log *logger.Logger
	rdb *goredis.Client
	key string

	// keep is the redis expiry; it outlives the freshness ttl so stale reads work.
	keep time.Duration
}

// NewRedisStore connects to addr and verifies the connection.
func NewRedisStore(log *logger.Logger, addr string, keep time.Duration) (*RedisStore, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return NewRedisStoreWithClient(log, rdb, keep), nil
}

func NewRedisStoreWithClient(log *logger.Logger, rdb *goredis.Client, keep time.Duration) *RedisStore {
	return &RedisStore{
		log:  log.With("service", "RedisCatalogStore"),
		rdb:  rdb,
		key:  defaultRedisKey,
		keep: keep,
	}
}

func (r *RedisStore) Get(ctx context.Context) (*Snapshot, error) {
	raw, err := r.rdb.Get(ctx, r.key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var s Snapshot
	if err := json.Unmarshal(raw, &s); err != nil {
		r.log.Warn("Discarding undecodable catalog snapshot", "error", err)
		return nil, nil
	}
	return &s, nil
}

func (r *RedisStore) Put(ctx context.Context, s Snapshot) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return r.rdb.Set(ctx, r.key, raw, r.keep).Err()
}

func (r *RedisStore) Close() error {
	if r == nil || r.rdb == nil {
		return nil
	}
	return r.rdb.Close()
}
