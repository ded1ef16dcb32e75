package httpdto

type SendMessageRequest struct {
	Content         string `json:"content"`
	ClientMessageID string `json:"client_message_id"`
	UploadID        string `json:"upload_id"`
}
