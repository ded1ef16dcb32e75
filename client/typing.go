package client

import (
	"sync"
	"time"

	"classline/internal/events"
)

const (
	typingDebounce = 2 * time.Second
	typingExpiry   = 10 * time.Second
)

// typingEntry is one remote user currently typing.
type typingEntry struct {
	userName string
	expires  time.Time
}

// TypingTracker debounces outgoing typing notifications and keeps the
// per-conversation map of who is typing. Inbound entries expire after a
// fixed window so a lost stop event cannot pin the indicator forever.
type TypingTracker struct {
	mu      sync.Mutex
	store   *Store
	emit    func(event, conversationID string)
	inbound map[string]map[string]typingEntry
	bursts  map[string]*time.Timer

	debounce time.Duration
	expiry   time.Duration
	now      func() time.Time
}

// NewTypingTracker wires the tracker to the store for archival checks and
// to an emit function for typing_start and typing_end events.
func NewTypingTracker(store *Store, emit func(event, conversationID string)) *TypingTracker {
	return &TypingTracker{
		store:    store,
		emit:     emit,
		inbound:  make(map[string]map[string]typingEntry),
		bursts:   make(map[string]*time.Timer),
		debounce: typingDebounce,
		expiry:   typingExpiry,
		now:      time.Now,
	}
}

// OnLocalInput notes a keystroke. The first keystroke of a burst emits
// typing_start; each further keystroke pushes the stop timer out; the timer
// elapsing emits typing_end. Archived conversations and conversations that
// only exist locally are skipped entirely.
func (t *TypingTracker) OnLocalInput(conversationID string) {
	c, ok := t.store.Get(conversationID)
	if !ok || c.Archived() || !c.ServerPersisted() {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if timer, active := t.bursts[conversationID]; active {
		timer.Reset(t.debounce)
		return
	}
	t.emit(events.EventTypingStart, conversationID)
	t.bursts[conversationID] = time.AfterFunc(t.debounce, func() {
		t.endBurst(conversationID)
	})
}

// StopLocal force-ends a burst, emitting typing_end if one was active.
// Used when the user sends the message or leaves the conversation.
func (t *TypingTracker) StopLocal(conversationID string) {
	t.mu.Lock()
	timer, active := t.bursts[conversationID]
	t.mu.Unlock()
	if active {
		timer.Stop()
		t.endBurst(conversationID)
	}
}

func (t *TypingTracker) endBurst(conversationID string) {
	t.mu.Lock()
	_, active := t.bursts[conversationID]
	delete(t.bursts, conversationID)
	t.mu.Unlock()
	if active {
		t.emit(events.EventTypingEnd, conversationID)
	}
}

// HandleIndicator applies an inbound typing_indicator event. Start upserts
// the user's entry; stop removes the key entirely. A stop with no matching
// start is a no-op.
func (t *TypingTracker) HandleIndicator(conversationID, userID, userName string, isTyping bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	users, ok := t.inbound[conversationID]
	if !isTyping {
		if !ok {
			return
		}
		delete(users, userID)
		if len(users) == 0 {
			delete(t.inbound, conversationID)
		}
		return
	}
	if !ok {
		users = make(map[string]typingEntry)
		t.inbound[conversationID] = users
	}
	users[userID] = typingEntry{userName: userName, expires: t.now().Add(t.expiry)}
}

// TypingUsers returns user id to display name for everyone currently typing
// in the conversation, dropping entries whose window has lapsed.
func (t *TypingTracker) TypingUsers(conversationID string) map[string]string {
	t.mu.Lock()
	defer t.mu.Unlock()

	users, ok := t.inbound[conversationID]
	if !ok {
		return nil
	}
	now := t.now()
	out := make(map[string]string, len(users))
	for id, entry := range users {
		if entry.expires.Before(now) {
			delete(users, id)
			continue
		}
		out[id] = entry.userName
	}
	if len(users) == 0 {
		delete(t.inbound, conversationID)
		return nil
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
