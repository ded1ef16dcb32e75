package httpdto

type CreateConversationRequest struct {
	// The other party of a 1:1 conversation.
	UserID string `json:"user_id" binding:"required"`
}

type PatchConversationRequest struct {
	Subject string `json:"subject" binding:"required"`
}
