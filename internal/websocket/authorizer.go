package websocket

import (
	"context"
	"strconv"
	"strings"

	"classline/internal/events"
	"classline/internal/repository"
)

// ChannelAuthorizer decides whether a user may subscribe to a fan-out channel.
type ChannelAuthorizer struct {
	conversationRepo repository.ConversationRepository
}

func NewChannelAuthorizer(conversationRepo repository.ConversationRepository) *ChannelAuthorizer {
	return &ChannelAuthorizer{conversationRepo: conversationRepo}
}

// CanSubscribe allows a user's own channel unconditionally and conversation
// channels only for participants. Everything else is denied.
func (a *ChannelAuthorizer) CanSubscribe(ctx context.Context, userID int64, channel string) (bool, error) {
	if channel == events.ChannelPrefixUser+strconv.FormatInt(userID, 10) {
		return true, nil
	}

	if strings.HasPrefix(channel, events.ChannelPrefixConversation) {
		raw := strings.TrimPrefix(channel, events.ChannelPrefixConversation)
		conversationID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return false, nil
		}
		return a.conversationRepo.IsParticipant(ctx, conversationID, userID)
	}

	return false, nil
}
