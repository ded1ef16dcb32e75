package websocket

import (
	"context"

	"classline/internal/events"
)

// RedisBridge relays Redis pub/sub traffic into the local hub so every
// API instance fans events out to its own socket clients.
type RedisBridge struct {
	subscriber events.Subscriber
	hub        *Hub
}

func NewRedisBridge(subscriber events.Subscriber, hub *Hub) *RedisBridge {
	return &RedisBridge{subscriber: subscriber, hub: hub}
}

func (b *RedisBridge) Run(ctx context.Context) error {
	return b.subscriber.Subscribe(ctx, []string{events.ChannelPatternAll}, func(channel string, payload []byte) {
		b.hub.Broadcast(channel, payload)
	})
}
