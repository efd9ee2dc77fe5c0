package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aquamarinepk/cruddemo/internal/platform"
	"github.com/redis/go-redis/v9"
)

// ErrMiss is returned by Get when the key is absent or expired.
var ErrMiss = errors.New("cache miss")

// Store is a byte-oriented cache shared by decorators.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	DeletePrefix(ctx context.Context, prefix string) error
}

// Options selects and configures a Store.
type Options struct {
	Driver   string        `koanf:"driver"`
	TTL      time.Duration `koanf:"ttl"`
	Addr     string        `koanf:"addr"`
	Password string        `koanf:"password"`
	DB       int           `koanf:"db"`
}

// New returns nil for the none driver so callers can skip decoration.
func New(opts Options) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Driver)) {
	case "", "none":
		return nil, nil
	case "memory":
		return NewMemoryStore(opts.TTL), nil
	case "redis":
		if opts.Addr == "" {
			return nil, errors.New("redis addr required")
		}
		client := redis.NewClient(&redis.Options{
			Addr:     opts.Addr,
			Password: opts.Password,
			DB:       opts.DB,
		})
		return NewRedisStore(client), nil
	default:
		return nil, fmt.Errorf("unknown cache driver %q", opts.Driver)
	}
}

// MemoryStore keeps entries in process.
type MemoryStore struct {
	items *ttlMap
	stop  context.CancelFunc
	done  chan struct{}
}

func NewMemoryStore(defaultTTL time.Duration) *MemoryStore {
	if defaultTTL <= 0 {
		defaultTTL = time.Minute
	}
	return &MemoryStore{items: newTTLMap(defaultTTL)}
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := m.items.lookup(key)
	if !ok {
		return nil, ErrMiss
	}
	return append([]byte(nil), v...), nil
}

// Set stores a copy of value. A non-positive ttl uses the default.
func (m *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.items.put(key, append([]byte(nil), value...), ttl)
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, keys ...string) error {
	m.items.remove(keys...)
	return nil
}

func (m *MemoryStore) DeletePrefix(_ context.Context, prefix string) error {
	m.items.removePrefix(prefix)
	return nil
}

// Start sweeps expired entries every minute until Stop.
func (m *MemoryStore) Start(ctx context.Context) error {
	sweepCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	m.stop = cancel
	m.done = make(chan struct{})
	go func() {
		defer close(m.done)
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-sweepCtx.Done():
				return
			case <-ticker.C:
				m.items.sweep()
			}
		}
	}()
	return nil
}

func (m *MemoryStore) Stop(context.Context) error {
	if m.stop == nil {
		return nil
	}
	m.stop()
	<-m.done
	return nil
}

// RedisStore keeps entries in Redis.
type RedisStore struct {
	client redis.UniversalClient
}

func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

func (r *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return v, nil
}

func (r *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// DeletePrefix walks the keyspace with SCAN so large databases are not
// blocked the way KEYS would block them.
func (r *RedisStore) DeletePrefix(ctx context.Context, prefix string) error {
	var cursor uint64
	for {
		keys, next, err := r.client.Scan(ctx, cursor, prefix+"*", 200).Result()
		if err != nil {
			return fmt.Errorf("redis scan %s*: %w", prefix, err)
		}
		if err := r.Delete(ctx, keys...); err != nil {
			return err
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

// HealthChecks pings Redis for readiness.
func (r *RedisStore) HealthChecks() platform.HealthChecks {
	return platform.HealthChecks{
		Readiness: map[string]platform.HealthCheck{
			"redis": func(ctx context.Context) error {
				return r.client.Ping(ctx).Err()
			},
		},
	}
}

func (r *RedisStore) Stop(context.Context) error {
	return r.client.Close()
}
