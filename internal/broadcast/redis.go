package broadcast

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/deckbinder/deckbinder/internal/config"
)

// RedisBroadcaster implements Broadcaster over Redis Pub/Sub.
type RedisBroadcaster struct {
	rdb *redis.Client
}

func NewRedis(ctx context.Context, cfg config.RedisConfig) (*RedisBroadcaster, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	return &RedisBroadcaster{rdb: rdb}, nil
}

func (b *RedisBroadcaster) Publish(ctx context.Context, topic string, payload []byte) error {
	if err := b.rdb.Publish(ctx, topic, payload).Err(); err != nil {
		return fmt.Errorf("redis: publish %s: %w", topic, err)
	}
	return nil
}

func (b *RedisBroadcaster) Close() error {
	return b.rdb.Close()
}

var _ Broadcaster = (*RedisBroadcaster)(nil)
