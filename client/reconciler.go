package client

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"classline/internal/events"
	classline_errors "classline/pkg/errors"
)

const (
	// ackTimeout bounds how long a send may sit awaiting its ack before the
	// optimistic message is marked failed.
	ackTimeout = 15 * time.Second

	// loadingCeiling forces the history loading flag off even when the
	// fetch itself has not come back yet.
	loadingCeiling = 8 * time.Second
)

// Identity is the acting user on whose behalf the reconciler emits.
type Identity struct {
	UserID      string
	DisplayName string
}

// Reconciler merges the two confirmation channels for every outgoing
// operation, the direct acknowledgement and the server broadcast, into one
// idempotent state transition on the store. Either may arrive first; the
// second is a no-op.
type Reconciler struct {
	store     *Store
	reactions *ReactionIndex
	typing    *TypingTracker
	transport Transport
	rest      *RESTClient
	identity  Identity

	// Notify receives events the reconciler does not fold into store state,
	// such as messages_read and message_delivered. Optional.
	Notify func(event string, payload json.RawMessage)
}

func NewReconciler(store *Store, reactions *ReactionIndex, typing *TypingTracker, transport Transport, rest *RESTClient, identity Identity) *Reconciler {
	return &Reconciler{
		store:     store,
		reactions: reactions,
		typing:    typing,
		transport: transport,
		rest:      rest,
		identity:  identity,
	}
}

// Bind registers the inbound event handlers on the transport. Call once
// after dialing.
func (r *Reconciler) Bind() {
	r.transport.On(events.EventNewMessage, func(payload json.RawMessage) {
		var m Message
		if err := json.Unmarshal(payload, &m); err != nil {
			return
		}
		r.store.ApplyBroadcast(m)
	})
	r.transport.On(events.EventMessageDeleted, func(payload json.RawMessage) {
		var p events.MessageDeletedPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return
		}
		r.store.MarkDeleted(p.ConversationID, p.MessageID)
	})
	r.transport.On(events.EventMessageReaction, func(payload json.RawMessage) {
		var p events.ReactionPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return
		}
		r.reactions.Apply(p.MessageID, p.Reaction, Reactor{UserID: p.UserID, UserName: p.UserName})
	})
	r.transport.On(events.EventMessageReactionRemoved, func(payload json.RawMessage) {
		var p events.ReactionPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return
		}
		r.reactions.Remove(p.MessageID, p.Reaction, p.UserID)
	})
	r.transport.On(events.EventTypingIndicator, func(payload json.RawMessage) {
		var p events.TypingPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return
		}
		if p.UserID == r.identity.UserID {
			return
		}
		r.typing.HandleIndicator(p.ConversationID, p.UserID, p.UserName, p.IsTyping)
	})
	for _, event := range []string{events.EventMessagesRead, events.EventMessageDelivered, events.EventError} {
		ev := event
		r.transport.On(ev, func(payload json.RawMessage) {
			if r.Notify != nil {
				r.Notify(ev, payload)
			}
		})
	}
}

// SendMessage appends the draft optimistically, then confirms it over the
// socket, falling back to REST when disconnected. The temp id doubles as
// the idempotency key, so a retried send cannot duplicate server-side.
func (r *Reconciler) SendMessage(ctx context.Context, conversationID string, draft Draft) (Message, error) {
	draft.SenderID = r.identity.UserID
	draft.SenderName = r.identity.DisplayName

	temp, err := r.store.AppendOptimistic(conversationID, draft)
	if err != nil {
		return Message{}, err
	}
	r.typing.StopLocal(conversationID)

	if r.transport.Connected() {
		return r.sendOverSocket(ctx, conversationID, temp, draft.Content, draft.UploadID)
	}
	return r.sendOverREST(ctx, conversationID, temp, draft.Content, draft.UploadID)
}

func (r *Reconciler) sendOverSocket(ctx context.Context, conversationID string, temp Message, content, uploadID string) (Message, error) {
	ackCtx, cancel := context.WithTimeout(ctx, ackTimeout)
	defer cancel()

	ack, err := r.transport.EmitWithAck(ackCtx, events.EventSendPrivateMessage, events.SendMessagePayload{
		ConversationID:  conversationID,
		Content:         content,
		ClientMessageID: temp.MessageID,
		UploadID:        uploadID,
	})
	if err != nil {
		r.store.ReconcileFailure(conversationID, temp.MessageID)
		return Message{}, err
	}
	if !ack.Success || ack.Message == nil {
		r.store.ReconcileFailure(conversationID, temp.MessageID)
		if ack.Error != "" {
			return Message{}, errors.New(ack.Error)
		}
		return Message{}, classline_errors.ErrServiceUnavailable
	}

	confirmed := fromWire(*ack.Message)
	r.store.ReconcileSuccess(conversationID, temp.MessageID, confirmed)
	return confirmed, nil
}

func (r *Reconciler) sendOverREST(ctx context.Context, conversationID string, temp Message, content, uploadID string) (Message, error) {
	confirmed, err := r.rest.SendMessage(ctx, conversationID, content, temp.MessageID, uploadID)
	if err != nil {
		r.store.ReconcileFailure(conversationID, temp.MessageID)
		return Message{}, err
	}
	r.store.ReconcileSuccess(conversationID, temp.MessageID, confirmed)
	return confirmed, nil
}

// AddReaction applies the single-reaction-per-user rule locally first, then
// emits the matching transport events. Reacting with the emoji already held
// toggles it off.
func (r *Reconciler) AddReaction(messageID, emoji string) error {
	msg, ok := r.store.FindMessage(messageID)
	if !ok {
		return classline_errors.ErrNotFound
	}
	if msg.IsDeleted {
		return classline_errors.ErrMessageDeleted
	}
	if c, ok := r.store.Get(msg.ConversationID); ok && c.Archived() {
		return classline_errors.ErrCourseArchived
	}

	replaced, toggledOff := r.reactions.Add(messageID, emoji, Reactor{
		UserID:   r.identity.UserID,
		UserName: r.identity.DisplayName,
	})
	if toggledOff {
		return r.transport.Emit(events.EventRemoveReaction, events.ReactionEmitPayload{MessageID: messageID, Reaction: emoji})
	}
	if replaced != "" {
		if err := r.transport.Emit(events.EventRemoveReaction, events.ReactionEmitPayload{MessageID: messageID, Reaction: replaced}); err != nil {
			return err
		}
	}
	return r.transport.Emit(events.EventAddReaction, events.ReactionEmitPayload{MessageID: messageID, Reaction: emoji})
}

// RemoveReaction prunes the acting user's entry locally and emits the removal.
func (r *Reconciler) RemoveReaction(messageID, emoji string) error {
	r.reactions.Remove(messageID, emoji, r.identity.UserID)
	return r.transport.Emit(events.EventRemoveReaction, events.ReactionEmitPayload{MessageID: messageID, Reaction: emoji})
}

// DeleteMessage asks the server to delete and marks the local entry once
// acknowledged. The broadcast that follows is absorbed idempotently.
func (r *Reconciler) DeleteMessage(ctx context.Context, messageID string) error {
	msg, ok := r.store.FindMessage(messageID)
	if !ok {
		return classline_errors.ErrNotFound
	}

	ackCtx, cancel := context.WithTimeout(ctx, ackTimeout)
	defer cancel()
	ack, err := r.transport.EmitWithAck(ackCtx, events.EventDeleteMessage, events.DeleteMessagePayload{MessageID: messageID})
	if err != nil {
		return err
	}
	if !ack.Success {
		if ack.Error != "" {
			return errors.New(ack.Error)
		}
		return classline_errors.ErrServiceUnavailable
	}
	r.store.MarkDeleted(msg.ConversationID, messageID)
	return nil
}

// MarkRead reports the user's read position, preferring the socket.
func (r *Reconciler) MarkRead(ctx context.Context, conversationID string) error {
	if r.transport.Connected() {
		return r.transport.Emit(events.EventMarkAsRead, events.MarkAsReadPayload{ConversationID: conversationID})
	}
	return r.rest.MarkRead(ctx, conversationID)
}

// JoinConversation subscribes this connection to the conversation's
// broadcast channel.
func (r *Reconciler) JoinConversation(ctx context.Context, conversationID string) error {
	ackCtx, cancel := context.WithTimeout(ctx, ackTimeout)
	defer cancel()
	ack, err := r.transport.EmitWithAck(ackCtx, events.EventJoin, events.JoinPayload{ConversationID: conversationID})
	if err != nil {
		return err
	}
	if !ack.Success {
		return classline_errors.ErrNotParticipant
	}
	return nil
}

// LoadHistory fetches the conversation's full message list and merges it,
// keeping any local in-flight sends. The loading flag is forced off after a
// fixed ceiling no matter how the fetch ends.
func (r *Reconciler) LoadHistory(ctx context.Context, conversationID string) error {
	r.store.SetLoading(conversationID, true)
	ceiling := time.AfterFunc(loadingCeiling, func() {
		r.store.SetLoading(conversationID, false)
	})
	defer func() {
		ceiling.Stop()
		r.store.SetLoading(conversationID, false)
	}()

	fetchCtx, cancel := context.WithTimeout(ctx, restTimeout)
	defer cancel()

	messages, err := r.rest.FetchMessages(fetchCtx, conversationID)
	if err != nil {
		return err
	}
	r.store.ReplaceAll(conversationID, messages)
	return nil
}

// LoadReactions refreshes the reaction index for every message in a
// conversation from the REST endpoint.
func (r *Reconciler) LoadReactions(ctx context.Context, conversationID string) error {
	byMessage, err := r.rest.FetchReactions(ctx, conversationID)
	if err != nil {
		return err
	}
	for messageID, emojis := range byMessage {
		r.reactions.ReplaceAll(messageID, emojis)
	}
	return nil
}

// RefreshConversations reloads the conversation list into the store.
func (r *Reconciler) RefreshConversations(ctx context.Context) error {
	summaries, err := r.rest.ListConversations(ctx)
	if err != nil {
		return err
	}
	for _, s := range summaries {
		updatedAt, _ := time.Parse(time.RFC3339, s.UpdatedAt)
		r.store.UpsertConversation(Conversation{
			ConversationID: s.ConversationID,
			Type:           s.Type,
			CourseID:       s.CourseID,
			CourseStatus:   s.CourseStatus,
			Subject:        s.Subject,
			Participants:   s.Participants,
			LastMessage:    s.LastMessage,
			UpdatedAt:      updatedAt,
		})
	}
	return nil
}

// fromWire normalizes a server message payload into a settled store entry.
func fromWire(p events.MessagePayload) Message {
	m := Message{
		MessageID:      p.MessageID,
		ConversationID: p.ConversationID,
		SenderID:       p.SenderID,
		SenderName:     p.SenderName,
		Content:        p.Content,
		SentAt:         p.SentAt,
		IsDeleted:      p.IsDeleted,
	}
	if p.Attachment != nil {
		m.Attachment = &Attachment{
			FileName: p.Attachment.FileName,
			FileSize: p.Attachment.FileSize,
			MimeType: p.Attachment.MimeType,
			IsImage:  p.Attachment.IsImage,
			FileURL:  p.Attachment.FileURL,
		}
	}
	return m
}
