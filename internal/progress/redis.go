// Package progress publishes import run progress to external systems.
// Each sink implements core.ProgressSink and is enabled by configuration.
package progress

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/JonMunkholm/rosterload/internal/core"
)

// DefaultKeyPrefix namespaces run hashes in Redis.
const DefaultKeyPrefix = "rosterload:import:"

// RedisSink mirrors each run into a Redis hash at <prefix><import id>.
// Hashes expire ttl after the last update.
type RedisSink struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

// NewRedisSink creates a sink on client. An empty prefix selects
// DefaultKeyPrefix and a zero ttl keeps hashes forever.
func NewRedisSink(client redis.Cmdable, prefix string, ttl time.Duration) *RedisSink {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &RedisSink{client: client, prefix: prefix, ttl: ttl}
}

// OpenRedis parses url and returns a client that answered a ping.
func OpenRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func (s *RedisSink) Name() string { return "redis" }

// Key returns the hash key of a run.
func (s *RedisSink) Key(importID string) string {
	return s.prefix + importID
}

func (s *RedisSink) Report(ctx context.Context, u core.ProgressUpdate) error {
	fields, err := hashFields(u)
	if err != nil {
		return err
	}

	key := s.Key(u.ImportID)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, fields)
		if s.ttl > 0 {
			pipe.Expire(ctx, key, s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis progress %s: %w", key, err)
	}
	return nil
}

func hashFields(u core.ProgressUpdate) (map[string]any, error) {
	fields := map[string]any{
		"import_id":  u.ImportID,
		"source":     u.Source,
		"status":     string(u.Status),
		"state":      string(u.State),
		"progress":   strconv.Itoa(u.Progress),
		"message":    u.Message,
		"dry_run":    strconv.FormatBool(u.DryRun),
		"started_at": u.StartedAt.Format(time.RFC3339Nano),
	}
	if u.FinishedAt != nil {
		fields["finished_at"] = u.FinishedAt.Format(time.RFC3339Nano)
	}
	if u.Metadata != nil {
		b, err := json.Marshal(u.Metadata)
		if err != nil {
			return nil, fmt.Errorf("encode run metadata: %w", err)
		}
		fields["metadata"] = string(b)
	}
	return fields, nil
}
