package events

import (
	"context"
	"encoding/json"

	rdb "github.com/redis/go-redis/v9"

	"github.com/dropDatabas3/socialink/internal/observability/logger"
)

// RedisReporter publishes events as JSON on a Redis pub/sub channel, for
// external consumers (audit log, cache invalidation). Publish failures are
// logged and dropped.
type RedisReporter struct {
	c       *rdb.Client
	channel string
}

// NewRedisReporter connects to addr/db and publishes on channel.
func NewRedisReporter(addr string, db int, channel string) *RedisReporter {
	if channel == "" {
		channel = "socialink.events"
	}
	return &RedisReporter{
		c:       rdb.NewClient(&rdb.Options{Addr: addr, DB: db}),
		channel: channel,
	}
}

// Close releases the underlying client.
func (r *RedisReporter) Close() error { return r.c.Close() }

type wireEvent struct {
	Kind     string         `json:"kind"` // "linked" | "unlinked"
	Linked   *LinkedEvent   `json:"linked,omitempty"`
	Unlinked *UnlinkedEvent `json:"unlinked,omitempty"`
}

func (r *RedisReporter) Linked(ctx context.Context, ev LinkedEvent) {
	r.publish(ctx, wireEvent{Kind: "linked", Linked: &ev})
}

func (r *RedisReporter) Unlinked(ctx context.Context, ev UnlinkedEvent) {
	r.publish(ctx, wireEvent{Kind: "unlinked", Unlinked: &ev})
}

func (r *RedisReporter) publish(ctx context.Context, ev wireEvent) {
	b, err := json.Marshal(ev)
	if err != nil {
		logger.From(ctx).Warn("event marshal failed", logger.Err(err))
		return
	}
	if err := r.c.Publish(ctx, r.channel, b).Err(); err != nil {
		logger.From(ctx).Warn("event publish failed",
			logger.String("channel", r.channel),
			logger.Err(err),
		)
	}
}
