package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/conduit-lang/catalog/runtime/metadata"
	"github.com/redis/go-redis/v9"
)

const (
	redisPrefix = "catalog:store:"

	// DefaultRedisChangeCapacity bounds the change list kept in Redis.
	DefaultRedisChangeCapacity = 10000
)

// RedisStore keeps one JSON document per record plus a set of known paths
// and a capped list of change records.
type RedisStore struct {
	client   *redis.Client
	capacity int64
}

// OpenRedis connects to the server at a redis:// URL.
func OpenRedis(ctx context.Context, url string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return NewRedisStoreWithClient(client), nil
}

// NewRedisStoreWithClient creates a store on an existing client
func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, capacity: DefaultRedisChangeCapacity}
}

func componentKey(path string) string { return redisPrefix + "component:" + path }

const (
	pathsKey   = redisPrefix + "components"
	changesKey = redisPrefix + "changes"
)

func (s *RedisStore) Get(ctx context.Context, path string) (*metadata.ComponentMetadata, error) {
	data, err := s.client.Get(ctx, componentKey(path)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return decode(data)
}

func (s *RedisStore) Upsert(ctx context.Context, m *metadata.ComponentMetadata) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", m.Path, err)
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, componentKey(m.Path), data, 0)
		pipe.SAdd(ctx, pathsKey, m.Path)
		return nil
	})
	return err
}

func (s *RedisStore) Delete(ctx context.Context, path string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, componentKey(path))
		pipe.SRem(ctx, pathsKey, path)
		return nil
	})
	return err
}

func (s *RedisStore) Query(ctx context.Context, q metadata.StoreQuery) ([]*metadata.ComponentMetadata, error) {
	paths, err := s.client.SMembers(ctx, pathsKey).Result()
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, nil
	}

	keys := make([]string, len(paths))
	for i, p := range paths {
		keys[i] = componentKey(p)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	records := make([]*metadata.ComponentMetadata, 0, len(values))
	for _, v := range values {
		data, ok := v.(string)
		if !ok {
			continue // removed between SMEMBERS and MGET
		}
		m, err := decode(data)
		if err != nil {
			return nil, err
		}
		records = append(records, m)
	}
	return filter(records, q), nil
}

func (s *RedisStore) AppendChange(ctx context.Context, rec metadata.ChangeRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, changesKey, data)
		pipe.LTrim(ctx, changesKey, -s.capacity, -1)
		return nil
	})
	return err
}

func (s *RedisStore) ListChanges(ctx context.Context, path string, limit int) ([]metadata.ChangeRecord, error) {
	values, err := s.client.LRange(ctx, changesKey, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	log := make([]metadata.ChangeRecord, 0, len(values))
	for _, v := range values {
		var rec metadata.ChangeRecord
		if err := json.Unmarshal([]byte(v), &rec); err != nil {
			return nil, fmt.Errorf("failed to decode change: %w", err)
		}
		log = append(log, rec)
	}
	return newestFirst(log, path, limit), nil
}

// Close closes the client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
