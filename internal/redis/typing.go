package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// TypingStore tracks who is typing in a conversation. Entries carry a TTL so
// a lost typing_end can never pin an indicator forever.
type TypingStore struct {
	client *goredis.Client
	ttl    time.Duration
}

func NewTypingStore(client *goredis.Client, ttl time.Duration) *TypingStore {
	if ttl == 0 {
		ttl = 10 * time.Second
	}
	return &TypingStore{client: client, ttl: ttl}
}

func typingKey(conversationID string) string {
	return fmt.Sprintf("typing:%s", conversationID)
}

// SetTyping adds or refreshes a typing entry for a user.
func (t *TypingStore) SetTyping(ctx context.Context, conversationID, userID string) error {
	key := typingKey(conversationID)
	pipe := t.client.Pipeline()
	pipe.SAdd(ctx, key, userID)
	pipe.Expire(ctx, key, t.ttl)
	_, err := pipe.Exec(ctx)
	return err
}

// ClearTyping removes a user's typing entry.
func (t *TypingStore) ClearTyping(ctx context.Context, conversationID, userID string) error {
	return t.client.SRem(ctx, typingKey(conversationID), userID).Err()
}

// TypingUsers returns users currently typing in a conversation.
func (t *TypingStore) TypingUsers(ctx context.Context, conversationID string) ([]string, error) {
	return t.client.SMembers(ctx, typingKey(conversationID)).Result()
}
