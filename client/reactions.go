package client

import "sync"

// Reactor identifies a user who reacted to a message.
type Reactor struct {
	UserID   string `json:"user_id"`
	UserName string `json:"user_name"`
}

// ReactionIndex maps message id to emoji to the set of reactors, deduplicated
// by user id. A user holds at most one emoji per message; recording a new one
// drops the prior. Empty reactor sets are removed rather than kept around.
type ReactionIndex struct {
	mu        sync.Mutex
	byMessage map[string]map[string][]Reactor
}

func NewReactionIndex() *ReactionIndex {
	return &ReactionIndex{byMessage: make(map[string]map[string][]Reactor)}
}

// Add records a reaction, returning the emoji it displaced for the same
// user, if any. Adding the emoji the user already holds toggles it off
// instead; toggledOff reports that case.
func (r *ReactionIndex) Add(messageID, emoji string, reactor Reactor) (replaced string, toggledOff bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prior, hadPrior := r.findLocked(messageID, reactor.UserID)
	if hadPrior && prior == emoji {
		r.removeLocked(messageID, emoji, reactor.UserID)
		return "", true
	}
	if hadPrior {
		r.removeLocked(messageID, prior, reactor.UserID)
		replaced = prior
	}

	emojis, ok := r.byMessage[messageID]
	if !ok {
		emojis = make(map[string][]Reactor)
		r.byMessage[messageID] = emojis
	}
	emojis[emoji] = append(emojis[emoji], reactor)
	return replaced, false
}

// Remove deletes the user's entry from the emoji's reactor set. Unknown
// message, emoji or user is a no-op.
func (r *ReactionIndex) Remove(messageID, emoji, userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(messageID, emoji, userID)
}

// Reactions returns a copy of the emoji map for a message.
func (r *ReactionIndex) Reactions(messageID string) map[string][]Reactor {
	r.mu.Lock()
	defer r.mu.Unlock()

	emojis, ok := r.byMessage[messageID]
	if !ok {
		return nil
	}
	out := make(map[string][]Reactor, len(emojis))
	for emoji, reactors := range emojis {
		cp := make([]Reactor, len(reactors))
		copy(cp, reactors)
		out[emoji] = cp
	}
	return out
}

// Count returns the displayed tally for one emoji on one message.
func (r *ReactionIndex) Count(messageID, emoji string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byMessage[messageID][emoji])
}

// ReplaceAll resets the index for a message from a server fetch.
func (r *ReactionIndex) ReplaceAll(messageID string, reactions map[string][]Reactor) {
	r.mu.Lock()
	defer r.mu.Unlock()

	emojis := make(map[string][]Reactor)
	for emoji, reactors := range reactions {
		seen := make(map[string]struct{}, len(reactors))
		var deduped []Reactor
		for _, reactor := range reactors {
			if _, dup := seen[reactor.UserID]; dup {
				continue
			}
			seen[reactor.UserID] = struct{}{}
			deduped = append(deduped, reactor)
		}
		if len(deduped) > 0 {
			emojis[emoji] = deduped
		}
	}
	if len(emojis) == 0 {
		delete(r.byMessage, messageID)
		return
	}
	r.byMessage[messageID] = emojis
}

func (r *ReactionIndex) findLocked(messageID, userID string) (emoji string, ok bool) {
	for e, reactors := range r.byMessage[messageID] {
		for _, reactor := range reactors {
			if reactor.UserID == userID {
				return e, true
			}
		}
	}
	return "", false
}

func (r *ReactionIndex) removeLocked(messageID, emoji, userID string) {
	emojis, ok := r.byMessage[messageID]
	if !ok {
		return
	}
	reactors, ok := emojis[emoji]
	if !ok {
		return
	}
	kept := reactors[:0]
	for _, reactor := range reactors {
		if reactor.UserID != userID {
			kept = append(kept, reactor)
		}
	}
	if len(kept) == 0 {
		delete(emojis, emoji)
	} else {
		emojis[emoji] = kept
	}
	if len(emojis) == 0 {
		delete(r.byMessage, messageID)
	}
}

// Apply upserts an inbound broadcast reaction. Unlike Add it never toggles;
// a duplicate broadcast of the same reaction is absorbed silently.
func (r *ReactionIndex) Apply(messageID, emoji string, reactor Reactor) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prior, hadPrior := r.findLocked(messageID, reactor.UserID)
	if hadPrior && prior == emoji {
		return
	}
	if hadPrior {
		r.removeLocked(messageID, prior, reactor.UserID)
	}

	emojis, ok := r.byMessage[messageID]
	if !ok {
		emojis = make(map[string][]Reactor)
		r.byMessage[messageID] = emojis
	}
	emojis[emoji] = append(emojis[emoji], reactor)
}
