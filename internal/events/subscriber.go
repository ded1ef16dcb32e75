package events

import "context"

// Subscriber delivers raw envelopes published on a set of channels.
type Subscriber interface {
	Subscribe(ctx context.Context, patterns []string, handler func(channel string, payload []byte)) error
}

// Publisher fans an envelope out to a channel.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}
