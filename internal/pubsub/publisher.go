package pubsub

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// Publisher hands a payload to the messaging channel and returns the
// channel-assigned message id. Callers treat delivery as best-effort.
type Publisher interface {
	Publish(ctx context.Context, topic string, data []byte) (string, error)
}

// RedisPublisher publishes to a Redis stream named after the topic. XADD
// returns the stream entry id, which serves as the message id.
type RedisPublisher struct {
	client *redis.Client
}

func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client}
}

func (p *RedisPublisher) Publish(ctx context.Context, topic string, data []byte) (string, error) {
	return p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: topic,
		Values: map[string]interface{}{"payload": data},
	}).Result()
}
