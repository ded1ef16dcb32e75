package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	classline_errors "classline/pkg/errors"
)

const (
	restTimeout = 10 * time.Second
	apiPrefix   = "/v1"
)

// RESTClient is the request/response fallback and bulk-fetch half of the
// SDK. Every request carries the bearer token.
type RESTClient struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewRESTClient(baseURL, token string) *RESTClient {
	return &RESTClient{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: restTimeout},
	}
}

// apiEnvelope mirrors the server's uniform response wrapper.
type apiEnvelope[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
}

// ConversationSummary is one row of the conversation list endpoint.
type ConversationSummary struct {
	ConversationID string        `json:"conversation_id"`
	Type           string        `json:"conversation_type"`
	CourseID       string        `json:"course_id,omitempty"`
	CourseStatus   string        `json:"course_status,omitempty"`
	Subject        string        `json:"subject,omitempty"`
	Participants   []Participant `json:"participants"`
	LastMessage    string        `json:"last_message,omitempty"`
	UpdatedAt      string        `json:"updated_at"`
}

// UploadResult describes a stored file ready to attach to a send.
type UploadResult struct {
	UploadID string `json:"upload_id"`
	FileName string `json:"file_name"`
	FileSize int64  `json:"file_size"`
	MimeType string `json:"mime_type"`
	IsImage  bool   `json:"is_image"`
	FileURL  string `json:"file_url"`
}

func (r *RESTClient) ListConversations(ctx context.Context) ([]ConversationSummary, error) {
	return doJSON[[]ConversationSummary](r, ctx, http.MethodGet, "/conversations", nil)
}

func (r *RESTClient) CreateConversation(ctx context.Context, userID string) (ConversationSummary, error) {
	body := map[string]string{"user_id": userID}
	return doJSON[ConversationSummary](r, ctx, http.MethodPost, "/conversations", body)
}

func (r *RESTClient) PatchConversation(ctx context.Context, conversationID, subject string) (ConversationSummary, error) {
	body := map[string]string{"subject": subject}
	return doJSON[ConversationSummary](r, ctx, http.MethodPatch, "/conversations/"+conversationID, body)
}

func (r *RESTClient) FetchMessages(ctx context.Context, conversationID string) ([]Message, error) {
	return doJSON[[]Message](r, ctx, http.MethodGet, "/conversations/"+conversationID+"/messages", nil)
}

// SendMessage is the fallback send path used when the socket is down.
func (r *RESTClient) SendMessage(ctx context.Context, conversationID, content, clientMessageID, uploadID string) (Message, error) {
	body := map[string]string{
		"content":           content,
		"client_message_id": clientMessageID,
	}
	if uploadID != "" {
		body["upload_id"] = uploadID
	}
	return doJSON[Message](r, ctx, http.MethodPost, "/conversations/"+conversationID+"/messages", body)
}

func (r *RESTClient) MarkRead(ctx context.Context, conversationID string) error {
	_, err := doJSON[map[string]bool](r, ctx, http.MethodPut, "/conversations/"+conversationID+"/read", nil)
	return err
}

func (r *RESTClient) FetchReactions(ctx context.Context, conversationID string) (map[string]map[string][]Reactor, error) {
	flat, err := doJSON[map[string][]reactionRow](r, ctx, http.MethodGet, "/conversations/"+conversationID+"/reactions", nil)
	if err != nil {
		return nil, err
	}
	out := make(map[string]map[string][]Reactor, len(flat))
	for messageID, rows := range flat {
		emojis := make(map[string][]Reactor)
		for _, row := range rows {
			emojis[row.Reaction] = append(emojis[row.Reaction], Reactor{UserID: row.UserID, UserName: row.UserName})
		}
		out[messageID] = emojis
	}
	return out, nil
}

type reactionRow struct {
	MessageID string `json:"message_id"`
	Reaction  string `json:"reaction"`
	UserID    string `json:"user_id"`
	UserName  string `json:"user_name"`
}

// UploadMessageFile streams a file as multipart form data and returns the
// upload session to reference from the send.
func (r *RESTClient) UploadMessageFile(ctx context.Context, fileName string, body io.Reader) (UploadResult, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", fileName)
	if err != nil {
		return UploadResult{}, err
	}
	if _, err := io.Copy(part, body); err != nil {
		return UploadResult{}, err
	}
	if err := writer.Close(); err != nil {
		return UploadResult{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+apiPrefix+"/uploads/message", &buf)
	if err != nil {
		return UploadResult{}, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+r.token)

	resp, err := r.http.Do(req)
	if err != nil {
		return UploadResult{}, err
	}
	defer resp.Body.Close()
	return decodeEnvelope[UploadResult](resp)
}

func doJSON[T any](r *RESTClient, ctx context.Context, method, path string, body interface{}) (T, error) {
	var zero T

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return zero, err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+apiPrefix+path, reader)
	if err != nil {
		return zero, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+r.token)

	resp, err := r.http.Do(req)
	if err != nil {
		return zero, err
	}
	defer resp.Body.Close()
	return decodeEnvelope[T](resp)
}

func decodeEnvelope[T any](resp *http.Response) (T, error) {
	var envelope apiEnvelope[T]
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		var zero T
		return zero, fmt.Errorf("decoding response: %w", err)
	}
	if !envelope.Success {
		var zero T
		return zero, apiError(resp.StatusCode, envelope.Error)
	}
	return envelope.Data, nil
}

// apiError maps the server's status codes back onto the shared sentinels so
// callers can branch without string matching.
func apiError(status int, message string) error {
	switch status {
	case http.StatusUnauthorized:
		return classline_errors.ErrUnauthorized
	case http.StatusForbidden:
		return classline_errors.ErrForbidden
	case http.StatusNotFound:
		return classline_errors.ErrNotFound
	case http.StatusConflict:
		return classline_errors.ErrConflict
	case http.StatusRequestEntityTooLarge:
		return classline_errors.ErrTooLarge
	case http.StatusTooManyRequests:
		return classline_errors.ErrRateLimited
	default:
		if message == "" {
			return classline_errors.ErrServiceUnavailable
		}
		return fmt.Errorf("%s", message)
	}
}
