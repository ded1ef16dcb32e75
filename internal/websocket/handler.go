package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"classline/internal/events"
	"classline/internal/services"
	"classline/internal/transport/httpdto"
	"classline/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const readWait = 60 * time.Second

// Handler upgrades authenticated HTTP requests to socket connections and
// dispatches the envelopes clients emit.
type Handler struct {
	auth       *services.AuthService
	messages   *services.MessageService
	typing     *services.TypingService
	hub        *Hub
	authorizer *ChannelAuthorizer
}

func NewHandler(
	auth *services.AuthService,
	messages *services.MessageService,
	typing *services.TypingService,
	hub *Hub,
	authorizer *ChannelAuthorizer,
) *Handler {
	return &Handler{
		auth:       auth,
		messages:   messages,
		typing:     typing,
		hub:        hub,
		authorizer: authorizer,
	}
}

func (h *Handler) Connect(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	userID, err := h.auth.UserIDFromToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}
	u, err := h.auth.GetUser(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	client := NewClient(conn, userID, u.DisplayName)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h.hub.Register(client)
	h.hub.Subscribe(client, events.ChannelPrefixUser+strconv.FormatInt(userID, 10))
	go client.WriteLoop(ctx)

	_ = conn.SetReadDeadline(time.Now().Add(readWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		_ = conn.SetReadDeadline(time.Now().Add(readWait))

		var env events.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			h.sendError(client, "", "malformed envelope")
			continue
		}
		h.dispatch(ctx, client, env)
	}

	h.hub.Unregister(client)
}

func (h *Handler) dispatch(ctx context.Context, client *Client, env events.Envelope) {
	log := logger.GetGlobalLogger()
	ctx = services.WithUserContext(ctx, client.UserID)

	switch env.Event {
	case events.EventJoin:
		h.handleJoin(ctx, client, env)
	case events.EventSendPrivateMessage:
		h.handleSend(ctx, client, env)
	case events.EventTypingStart:
		h.handleTyping(ctx, client, env, true)
	case events.EventTypingEnd:
		h.handleTyping(ctx, client, env, false)
	case events.EventAddReaction:
		h.handleAddReaction(ctx, client, env)
	case events.EventRemoveReaction:
		h.handleRemoveReaction(ctx, client, env)
	case events.EventDeleteMessage:
		h.handleDelete(ctx, client, env)
	case events.EventMarkAsRead:
		h.handleMarkAsRead(ctx, client, env)
	case events.EventMessageDelivered:
		h.handleDelivered(ctx, client, env)
	default:
		log.Warnf("unknown socket event %q from user %d", env.Event, client.UserID)
		h.sendError(client, env.AckID, "unknown event")
	}
}

func (h *Handler) handleJoin(ctx context.Context, client *Client, env events.Envelope) {
	var p events.JoinPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		h.sendError(client, env.AckID, "malformed payload")
		return
	}

	channel := events.ChannelPrefixConversation + p.ConversationID
	allowed, err := h.authorizer.CanSubscribe(ctx, client.UserID, channel)
	if err != nil || !allowed {
		h.ack(client, env.AckID, events.AckPayload{Success: false, Error: "not a participant"})
		return
	}
	h.hub.Subscribe(client, channel)
	h.ack(client, env.AckID, events.AckPayload{Success: true})
}

func (h *Handler) handleSend(ctx context.Context, client *Client, env events.Envelope) {
	var p events.SendMessagePayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		h.sendError(client, env.AckID, "malformed payload")
		return
	}
	conversationID, err := strconv.ParseInt(p.ConversationID, 10, 64)
	if err != nil {
		h.ack(client, env.AckID, events.AckPayload{Success: false, Error: "invalid conversation_id"})
		return
	}

	msg, err := h.messages.Send(ctx, services.SendMessageInput{
		ConversationID:  conversationID,
		SenderID:        client.UserID,
		Content:         p.Content,
		ClientMessageID: p.ClientMessageID,
		UploadID:        p.UploadID,
	})
	if err != nil {
		h.ack(client, env.AckID, events.AckPayload{Success: false, Error: err.Error()})
		return
	}
	h.ack(client, env.AckID, events.AckPayload{Success: true, Message: &msg})
}

func (h *Handler) handleTyping(ctx context.Context, client *Client, env events.Envelope, isTyping bool) {
	var p events.TypingEmitPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		return
	}
	conversationID, err := strconv.ParseInt(p.ConversationID, 10, 64)
	if err != nil {
		return
	}
	if err := h.typing.SetTyping(ctx, conversationID, client.UserID, client.DisplayName, isTyping); err != nil {
		logger.GetGlobalLogger().Warnf("typing update failed for user %d: %v", client.UserID, err)
	}
}

func (h *Handler) handleAddReaction(ctx context.Context, client *Client, env events.Envelope) {
	var p events.ReactionEmitPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		h.sendError(client, env.AckID, "malformed payload")
		return
	}
	messageID, err := strconv.ParseInt(p.MessageID, 10, 64)
	if err != nil {
		h.ack(client, env.AckID, events.AckPayload{Success: false, Error: "invalid message_id"})
		return
	}
	if err := h.messages.SetReaction(ctx, messageID, client.UserID, client.DisplayName, p.Reaction); err != nil {
		h.ack(client, env.AckID, events.AckPayload{Success: false, Error: err.Error()})
		return
	}
	h.ack(client, env.AckID, events.AckPayload{Success: true})
}

func (h *Handler) handleRemoveReaction(ctx context.Context, client *Client, env events.Envelope) {
	var p events.ReactionEmitPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		h.sendError(client, env.AckID, "malformed payload")
		return
	}
	messageID, err := strconv.ParseInt(p.MessageID, 10, 64)
	if err != nil {
		h.ack(client, env.AckID, events.AckPayload{Success: false, Error: "invalid message_id"})
		return
	}
	if err := h.messages.RemoveReaction(ctx, messageID, client.UserID, client.DisplayName, p.Reaction); err != nil {
		h.ack(client, env.AckID, events.AckPayload{Success: false, Error: err.Error()})
		return
	}
	h.ack(client, env.AckID, events.AckPayload{Success: true})
}

func (h *Handler) handleDelete(ctx context.Context, client *Client, env events.Envelope) {
	var p events.DeleteMessagePayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		h.sendError(client, env.AckID, "malformed payload")
		return
	}
	messageID, err := strconv.ParseInt(p.MessageID, 10, 64)
	if err != nil {
		h.ack(client, env.AckID, events.AckPayload{Success: false, Error: "invalid message_id"})
		return
	}
	if err := h.messages.Delete(ctx, messageID, client.UserID); err != nil {
		h.ack(client, env.AckID, events.AckPayload{Success: false, Error: err.Error()})
		return
	}
	h.ack(client, env.AckID, events.AckPayload{Success: true})
}

func (h *Handler) handleMarkAsRead(ctx context.Context, client *Client, env events.Envelope) {
	var p events.MarkAsReadPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		return
	}
	conversationID, err := strconv.ParseInt(p.ConversationID, 10, 64)
	if err != nil {
		return
	}
	if err := h.messages.MarkRead(ctx, conversationID, client.UserID); err != nil {
		logger.GetGlobalLogger().Warnf("mark read failed for user %d: %v", client.UserID, err)
	}
}

func (h *Handler) handleDelivered(ctx context.Context, client *Client, env events.Envelope) {
	var p events.DeliveredEmitPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		return
	}
	messageID, err := strconv.ParseInt(p.MessageID, 10, 64)
	if err != nil {
		return
	}
	if err := h.messages.MarkDelivered(ctx, messageID, client.UserID); err != nil {
		logger.GetGlobalLogger().Warnf("delivery receipt failed for user %d: %v", client.UserID, err)
	}
}

// ack replies to an emit. With no ack_id the reply is dropped unless it
// carries an error worth surfacing.
func (h *Handler) ack(client *Client, ackID string, payload events.AckPayload) {
	if ackID == "" {
		if payload.Error != "" {
			h.sendError(client, "", payload.Error)
		}
		return
	}
	env, err := events.NewEnvelope(events.EventAck, payload)
	if err != nil {
		return
	}
	env.AckID = ackID
	data, err := env.Marshal()
	if err != nil {
		return
	}
	client.SendMessage(data)
}

func (h *Handler) sendError(client *Client, ackID string, message string) {
	if ackID != "" {
		h.ack(client, ackID, events.AckPayload{Success: false, Error: message})
		return
	}
	env, err := events.NewEnvelope(events.EventError, events.ErrorPayload{Error: message})
	if err != nil {
		return
	}
	data, err := env.Marshal()
	if err != nil {
		return
	}
	client.SendMessage(data)
}
