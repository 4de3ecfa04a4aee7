// Package cache remembers extracted invoice records so re-uploading the same
// PDF does not pay for a second extraction call.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/dharsanguruparan/upnqr/internal/upn"
)

const keyPrefix = "upnqr:record:"

// RecordCache stores records by document key.
type RecordCache interface {
	Get(ctx context.Context, key string) (*upn.Record, bool, error)
	Set(ctx context.Context, key string, rec *upn.Record) error
}

// Key derives the cache key of a PDF from its SHA-256 digest.
func Key(document []byte) string {
	sum := sha256.Sum256(document)
	return keyPrefix + hex.EncodeToString(sum[:])
}

// Connect connects to the redis db and returns the client.
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return rdb, nil
}

// Redis keeps records as JSON strings with a fixed TTL.
type Redis struct {
	client redis.Cmdable
	ttl    time.Duration
	logger *zap.Logger
}

func NewRedis(client redis.Cmdable, ttl time.Duration, logger *zap.Logger) *Redis {
	return &Redis{client: client, ttl: ttl, logger: logger}
}

func (r *Redis) Get(ctx context.Context, key string) (*upn.Record, bool, error) {
	raw, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %s: %w", key, err)
	}
	var rec upn.Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		// A corrupt entry is treated as a miss and overwritten on the next Set.
		r.logger.Warn("dropping unreadable cache entry", zap.String("key", key), zap.Error(err))
		return nil, false, nil
	}
	return &rec, true, nil
}

func (r *Redis) Set(ctx context.Context, key string, rec *upn.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	if err := r.client.Set(ctx, key, string(data), r.ttl).Err(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Nop never stores anything.
type Nop struct{}

func (Nop) Get(context.Context, string) (*upn.Record, bool, error) { return nil, false, nil }

func (Nop) Set(context.Context, string, *upn.Record) error { return nil }
