package redis

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// Publisher pushes encoded event envelopes onto the pub/sub channels the
// websocket bridge subscribes to, so broadcasts reach every API instance.
type Publisher struct {
	client *redis.Client
}

func NewPublisher(client *redis.Client) *Publisher {
	return &Publisher{client: client}
}

// Publish sends payload, an encoded envelope, to channel. Delivery is
// fire-and-forget; instances that are down simply miss the broadcast.
func (p *Publisher) Publish(ctx context.Context, channel string, payload []byte) error {
	return p.client.Publish(ctx, channel, payload).Err()
}
