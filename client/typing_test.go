package client

import (
	"sync"
	"testing"
	"time"
)

type emitRecorder struct {
	mu     sync.Mutex
	events []string
}

func (e *emitRecorder) emit(event, conversationID string) {
	e.mu.Lock()
	e.events = append(e.events, event+":"+conversationID)
	e.mu.Unlock()
}

func (e *emitRecorder) snapshot() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.events))
	copy(out, e.events)
	return out
}

func newTestTracker(t *testing.T) (*TypingTracker, *emitRecorder) {
	t.Helper()
	store := NewStore()
	store.UpsertConversation(Conversation{ConversationID: "42", Type: "private"})
	store.UpsertConversation(Conversation{ConversationID: "9", Type: "group", CourseID: "3", CourseStatus: "archived"})
	store.UpsertConversation(Conversation{ConversationID: "private_7_1700000000", Type: "private"})

	rec := &emitRecorder{}
	tracker := NewTypingTracker(store, rec.emit)
	tracker.debounce = 20 * time.Millisecond
	return tracker, rec
}

func TestTypingBurstEmitsStartOnce(t *testing.T) {
	tracker, rec := newTestTracker(t)

	tracker.OnLocalInput("42")
	tracker.OnLocalInput("42")
	tracker.OnLocalInput("42")

	if got := rec.snapshot(); len(got) != 1 || got[0] != "typing_start:42" {
		t.Fatalf("expected single typing_start, got %v", got)
	}
}

func TestTypingDebounceEmitsEnd(t *testing.T) {
	tracker, rec := newTestTracker(t)

	tracker.OnLocalInput("42")
	time.Sleep(60 * time.Millisecond)

	got := rec.snapshot()
	if len(got) != 2 || got[1] != "typing_end:42" {
		t.Fatalf("expected typing_end after debounce, got %v", got)
	}

	// A new keystroke after the burst ended starts a fresh burst.
	tracker.OnLocalInput("42")
	if got := rec.snapshot(); len(got) != 3 || got[2] != "typing_start:42" {
		t.Fatalf("expected new burst to emit typing_start, got %v", got)
	}
}

func TestTypingSuppressedWhenArchivedOrLocal(t *testing.T) {
	tracker, rec := newTestTracker(t)

	tracker.OnLocalInput("9")
	tracker.OnLocalInput("private_7_1700000000")
	tracker.OnLocalInput("unknown")

	if got := rec.snapshot(); len(got) != 0 {
		t.Fatalf("expected no emits, got %v", got)
	}
}

func TestTypingStopLocalEndsBurst(t *testing.T) {
	tracker, rec := newTestTracker(t)

	tracker.OnLocalInput("42")
	tracker.StopLocal("42")

	got := rec.snapshot()
	if len(got) != 2 || got[1] != "typing_end:42" {
		t.Fatalf("expected immediate typing_end, got %v", got)
	}

	// No burst active, nothing to end.
	tracker.StopLocal("42")
	if got := rec.snapshot(); len(got) != 2 {
		t.Fatalf("second StopLocal emitted: %v", got)
	}
}

func TestTypingIndicatorUpsertAndRemove(t *testing.T) {
	tracker, _ := newTestTracker(t)

	tracker.HandleIndicator("42", "8", "Bob", true)
	if got := tracker.TypingUsers("42"); got["8"] != "Bob" {
		t.Fatalf("expected Bob typing, got %v", got)
	}

	tracker.HandleIndicator("42", "8", "Bob", false)
	if got := tracker.TypingUsers("42"); got != nil {
		t.Fatalf("expected key removed entirely, got %v", got)
	}

	// Stop with no matching start is a no-op.
	tracker.HandleIndicator("42", "8", "Bob", false)
	if got := tracker.TypingUsers("42"); got != nil {
		t.Fatalf("orphan stop created state: %v", got)
	}
}

func TestTypingEntriesExpire(t *testing.T) {
	tracker, _ := newTestTracker(t)
	tracker.expiry = 10 * time.Millisecond

	tracker.HandleIndicator("42", "8", "Bob", true)
	time.Sleep(30 * time.Millisecond)

	if got := tracker.TypingUsers("42"); got != nil {
		t.Fatalf("expected lost-stop entry to lapse, got %v", got)
	}
}
