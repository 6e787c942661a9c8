package registry

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/semsearch/gateway/src/types"
)

// Redis is a Registry backed by redis, one key per connection. Records
// survive gateway restarts and are visible to every instance.
type Redis struct {
	client *redis.Client
	prefix string
	logger zerolog.Logger
}

// NewRedis creates a redis-backed registry. Call Ping before use to verify
// the store is reachable.
func NewRedis(cfg *RedisConfig, logger zerolog.Logger) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &Redis{
		client: client,
		prefix: cfg.Prefix,
		logger: logger.With().Str("component", "redis-registry").Logger(),
	}
}

// Ping verifies the redis connection.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close releases the redis connection.
func (r *Redis) Close() error {
	return r.client.Close()
}

func (r *Redis) key(connectionID string) string {
	return r.prefix + connectionID
}

// Put creates or overwrites the record for its connection id.
func (r *Redis) Put(ctx context.Context, rec types.ConnectionRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode connection record: %w", err)
	}
	if err := r.client.Set(ctx, r.key(rec.ConnectionID), data, 0).Err(); err != nil {
		return fmt.Errorf("store connection record: %w", err)
	}
	return nil
}

// Get returns the record for an id, or ErrNotFound.
func (r *Redis) Get(ctx context.Context, connectionID string) (types.ConnectionRecord, error) {
	data, err := r.client.Get(ctx, r.key(connectionID)).Bytes()
	if err == redis.Nil {
		return types.ConnectionRecord{}, ErrNotFound
	}
	if err != nil {
		return types.ConnectionRecord{}, fmt.Errorf("load connection record: %w", err)
	}
	var rec types.ConnectionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return types.ConnectionRecord{}, fmt.Errorf("decode connection record: %w", err)
	}
	return rec, nil
}

// Delete removes the record if present. A missing key is success.
func (r *Redis) Delete(ctx context.Context, connectionID string) error {
	if err := r.client.Del(ctx, r.key(connectionID)).Err(); err != nil {
		return fmt.Errorf("delete connection record: %w", err)
	}
	return nil
}

// Scan walks all registry keys. Administrative use only.
func (r *Redis) Scan(ctx context.Context) ([]types.ConnectionRecord, error) {
	var out []types.ConnectionRecord
	iter := r.client.Scan(ctx, 0, r.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		data, err := r.client.Get(ctx, iter.Val()).Bytes()
		if err == redis.Nil {
			continue // deleted between scan and get
		}
		if err != nil {
			return nil, fmt.Errorf("load connection record: %w", err)
		}
		var rec types.ConnectionRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			r.logger.Warn().Str("key", iter.Val()).Err(err).Msg("skipping undecodable record")
			continue
		}
		out = append(out, rec)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan connection records: %w", err)
	}
	return out, nil
}
