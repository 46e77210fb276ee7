package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Freeeeeet/plc_booking/internal/model"
	"github.com/go-redis/redis/v8"
)

// redisPublisher часть *redis.Client, нужная ретранслятору
type redisPublisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisRelay публикует события в канал Redis pub/sub для внешних фронтендов
type RedisRelay struct {
	client  redisPublisher
	channel string
}

func NewRedisRelay(client redisPublisher, channel string) *RedisRelay {
	return &RedisRelay{client: client, channel: channel}
}

func (r *RedisRelay) Handle(ctx context.Context, event model.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish event to %s: %w", r.channel, err)
	}
	return nil
}
