// DoseHub - Real-Time Radiation Dose Monitoring Hub
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dosehub

package events

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/tomtom215/dosehub/internal/config"
	"github.com/tomtom215/dosehub/internal/logging"
	"github.com/tomtom215/dosehub/internal/metrics"
)

// redisDataField is the stream entry field holding the JSON change notification.
const redisDataField = "data"

// RedisSource feeds change notifications from a Redis stream into a Source
// through a consumer group. Entries are acknowledged once they are queued,
// or once they are found undecodable.
type RedisSource struct {
	cfg    config.RedisConfig
	client *redis.Client
	source *Source
	now    func() time.Time
}

// NewRedisSource creates a source reading cfg.Stream as cfg.Consumer in
// cfg.Group. The connection is established lazily by the first command.
func NewRedisSource(cfg config.RedisConfig, source *Source) *RedisSource {
	return &RedisSource{
		cfg: cfg,
		client: redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
		source: source,
		now:    time.Now,
	}
}

// Serve creates the consumer group if needed, redelivers entries this
// consumer read but never acknowledged, then reads new entries until ctx is
// canceled. Redis errors are returned so the supervisor can restart it.
func (r *RedisSource) Serve(ctx context.Context) error {
	if err := r.ensureGroup(ctx); err != nil {
		return err
	}
	logging.Info().
		Str("stream", r.cfg.Stream).
		Str("group", r.cfg.Group).
		Str("consumer", r.cfg.Consumer).
		Msg("Redis source subscribed")

	if err := r.drainPending(ctx); err != nil {
		return err
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		streams, err := r.read(ctx, ">", r.cfg.Block)
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read stream %s: %w", r.cfg.Stream, err)
		}
		r.handleStreams(ctx, streams)
	}
}

func (r *RedisSource) ensureGroup(ctx context.Context) error {
	err := r.client.XGroupCreateMkStream(ctx, r.cfg.Stream, r.cfg.Group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create consumer group %s: %w", r.cfg.Group, err)
	}
	return nil
}

// drainPending replays the consumer's pending entries list. An entry left
// unacknowledged because the queue was full is picked up here after a restart.
func (r *RedisSource) drainPending(ctx context.Context) error {
	for {
		streams, err := r.read(ctx, "0", -1)
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read pending entries of %s: %w", r.cfg.Stream, err)
		}
		if countMessages(streams) == 0 {
			return nil
		}
		before := r.pendingCount(ctx)
		r.handleStreams(ctx, streams)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if r.pendingCount(ctx) >= before {
			// nothing was acknowledged; avoid spinning on the same entries
			return nil
		}
	}
}

func (r *RedisSource) pendingCount(ctx context.Context) int64 {
	p, err := r.client.XPending(ctx, r.cfg.Stream, r.cfg.Group).Result()
	if err != nil {
		return 0
	}
	return p.Count
}

// read issues XREADGROUP from id. A negative block returns immediately.
func (r *RedisSource) read(ctx context.Context, id string, block time.Duration) ([]redis.XStream, error) {
	count := r.cfg.BatchSize
	if count <= 0 {
		count = 10
	}
	return r.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    r.cfg.Group,
		Consumer: r.cfg.Consumer,
		Streams:  []string{r.cfg.Stream, id},
		Count:    count,
		Block:    block,
	}).Result()
}

func (r *RedisSource) handleStreams(ctx context.Context, streams []redis.XStream) {
	for _, stream := range streams {
		for _, msg := range stream.Messages {
			if !r.handle(ctx, msg) {
				return
			}
		}
	}
}

// handle queues one entry. It reports false when the entry could not be
// queued, leaving it pending for redelivery.
func (r *RedisSource) handle(ctx context.Context, msg redis.XMessage) bool {
	ev, err := r.decode(msg)
	if err != nil {
		metrics.EventsDropped.WithLabelValues("decode").Inc()
		logging.Warn().Err(err).Str("entry_id", msg.ID).Msg("Dropping undecodable change notification")
		r.ack(ctx, msg.ID)
		return true
	}
	if err := r.source.Publish(ctx, ev); err != nil {
		return false
	}
	r.ack(ctx, msg.ID)
	return true
}

func (r *RedisSource) decode(msg redis.XMessage) (Event, error) {
	raw, ok := msg.Values[redisDataField]
	if !ok {
		return nil, fmt.Errorf("entry has no %q field", redisDataField)
	}
	data, ok := raw.(string)
	if !ok {
		return nil, fmt.Errorf("entry field %q is %T, want string", redisDataField, raw)
	}
	return ParseChange([]byte(data), r.now())
}

func (r *RedisSource) ack(ctx context.Context, id string) {
	if err := r.client.XAck(ctx, r.cfg.Stream, r.cfg.Group, id).Err(); err != nil {
		logging.Warn().Err(err).Str("entry_id", id).Msg("Failed to acknowledge stream entry")
	}
}

func countMessages(streams []redis.XStream) int {
	n := 0
	for _, s := range streams {
		n += len(s.Messages)
	}
	return n
}

// String implements fmt.Stringer for supervisor logging.
func (r *RedisSource) String() string {
	return "redis-source"
}

// Close closes the Redis client.
func (r *RedisSource) Close() error {
	return r.client.Close()
}
