package events

// Socket events the server pushes to clients.
const (
	EventNewMessage             = "new_message"
	EventTypingIndicator        = "typing_indicator"
	EventMessageReaction        = "message_reaction"
	EventMessageReactionRemoved = "message_reaction_removed"
	EventMessageDeleted         = "message_deleted"
	EventMessagesRead           = "messages_read"
	EventMessageDelivered       = "message_delivered"
	EventError                  = "error"
	EventAck                    = "ack"
)

// Socket events clients emit.
const (
	EventJoin               = "join"
	EventSendPrivateMessage = "send_private_message"
	EventTypingStart        = "typing_start"
	EventTypingEnd          = "typing_end"
	EventAddReaction        = "add_reaction"
	EventRemoveReaction     = "remove_reaction"
	EventDeleteMessage      = "delete_message"
	EventMarkAsRead         = "mark_as_read"
)

// Redis channel prefixes
const (
	ChannelPrefixConversation = "channel:conversation:"
	ChannelPrefixUser         = "channel:user:"
	ChannelPatternAll         = "channel:*"
)
