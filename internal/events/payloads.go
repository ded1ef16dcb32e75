package events

// Wire payloads shared by the hub, the Redis bridge and the client SDK.
// Identifiers are numeric server-side but travel as strings.

type MessagePayload struct {
	MessageID      string             `json:"message_id"`
	ConversationID string             `json:"conversation_id"`
	SenderID       string             `json:"sender_id"`
	SenderName     string             `json:"sender_name"`
	Content        string             `json:"content"`
	Attachment     *AttachmentPayload `json:"attachment,omitempty"`
	SentAt         string             `json:"sent_at"`
	IsDeleted      bool               `json:"is_deleted,omitempty"`
}

type AttachmentPayload struct {
	FileName string `json:"file_name"`
	FileSize int64  `json:"file_size"`
	MimeType string `json:"mime_type"`
	IsImage  bool   `json:"is_image"`
	FileURL  string `json:"file_url"`
}

type ReactionPayload struct {
	MessageID      string `json:"message_id"`
	ConversationID string `json:"conversation_id"`
	Reaction       string `json:"reaction"`
	UserID         string `json:"user_id"`
	UserName       string `json:"user_name"`
}

type TypingPayload struct {
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`
	UserName       string `json:"user_name"`
	IsTyping       bool   `json:"is_typing"`
}

type MessageDeletedPayload struct {
	ConversationID string `json:"conversation_id"`
	MessageID      string `json:"message_id"`
}

type MessagesReadPayload struct {
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`
	ReadAt         string `json:"read_at"`
}

type MessageDeliveredPayload struct {
	ConversationID string `json:"conversation_id"`
	MessageID      string `json:"message_id"`
	UserID         string `json:"user_id"`
}

type ErrorPayload struct {
	Error string `json:"error"`
}

// Payloads clients emit over the socket.

type JoinPayload struct {
	ConversationID string `json:"conversation_id"`
}

type SendMessagePayload struct {
	ConversationID  string `json:"conversation_id"`
	Content         string `json:"content"`
	ClientMessageID string `json:"client_message_id,omitempty"`
	UploadID        string `json:"upload_id,omitempty"`
}

type ReactionEmitPayload struct {
	MessageID string `json:"message_id"`
	Reaction  string `json:"reaction"`
}

type DeleteMessagePayload struct {
	MessageID string `json:"message_id"`
}

type TypingEmitPayload struct {
	ConversationID string `json:"conversation_id"`
}

type MarkAsReadPayload struct {
	ConversationID string `json:"conversation_id"`
}

type DeliveredEmitPayload struct {
	MessageID string `json:"message_id"`
}

// AckPayload answers an emit that carried an ack_id.
type AckPayload struct {
	Success bool            `json:"success"`
	Message *MessagePayload `json:"message,omitempty"`
	Error   string          `json:"error,omitempty"`
}
