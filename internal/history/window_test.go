package history

import (
	"fmt"
	"testing"
	"time"

	"github.com/indiwide/gembot/internal/consts"
)

func staticPrompt(text string) SystemPromptFunc {
	return func(int64) string { return text }
}

func TestAppendInjectsSystemEntry(t *testing.T) {
	store := New(7, staticPrompt("be helpful"))

	store.Append(1, Entry{Role: consts.RoleUser, Content: "hello"})

	entries := store.Context(1)
	if len(entries) != 2 {
		t.Fatalf("Context() length = %d, want 2", len(entries))
	}
	if entries[0].Role != consts.RoleSystem || entries[0].Content != "be helpful" {
		t.Errorf("first entry = %+v, want pinned system entry", entries[0])
	}
	if entries[1].Content != "hello" {
		t.Errorf("second entry content = %q, want %q", entries[1].Content, "hello")
	}
}

func TestWindowEviction(t *testing.T) {
	store := New(7, staticPrompt("sys"))

	// 5 full exchanges = 10 turns, far past the cap
	for i := 0; i < 5; i++ {
		store.Append(1, Entry{Role: consts.RoleUser, Content: fmt.Sprintf("q%d", i)})
		store.Append(1, Entry{Role: consts.RoleAssistant, Content: fmt.Sprintf("a%d", i)})
	}

	entries := store.Context(1)
	if len(entries) != 7 {
		t.Fatalf("Context() length = %d, want 7", len(entries))
	}
	if entries[0].Role != consts.RoleSystem {
		t.Errorf("system entry was evicted, first role = %q", entries[0].Role)
	}
	// 10 turns were appended; the oldest 4 are gone
	if entries[1].Content != "q2" {
		t.Errorf("oldest surviving turn = %q, want %q", entries[1].Content, "q2")
	}
	if entries[6].Content != "a4" {
		t.Errorf("newest turn = %q, want %q", entries[6].Content, "a4")
	}
}

func TestResetReinjectsSystemPrompt(t *testing.T) {
	prompt := "first persona"
	store := New(7, func(int64) string { return prompt })

	store.Append(1, Entry{Role: consts.RoleUser, Content: "hello"})
	store.Reset(1)

	if store.Len(1) != 0 {
		t.Fatalf("Len() after reset = %d, want 0", store.Len(1))
	}

	// The prompt source changed between reset and the next message
	prompt = "second persona"
	store.Append(1, Entry{Role: consts.RoleUser, Content: "again"})

	entries := store.Context(1)
	if len(entries) != 2 {
		t.Fatalf("Context() length = %d, want 2", len(entries))
	}
	if entries[0].Content != "second persona" {
		t.Errorf("system entry = %q, want refreshed prompt", entries[0].Content)
	}
}

func TestUsersHaveSeparateWindows(t *testing.T) {
	store := New(7, staticPrompt("sys"))

	store.Append(1, Entry{Role: consts.RoleUser, Content: "from one"})
	store.Append(2, Entry{Role: consts.RoleUser, Content: "from two"})

	if got := store.Context(1)[1].Content; got != "from one" {
		t.Errorf("user 1 window content = %q, want %q", got, "from one")
	}
	if got := store.Context(2)[1].Content; got != "from two" {
		t.Errorf("user 2 window content = %q, want %q", got, "from two")
	}

	store.Reset(1)
	if store.Len(2) != 2 {
		t.Errorf("resetting user 1 touched user 2, Len = %d, want 2", store.Len(2))
	}
}

func TestContextReturnsCopy(t *testing.T) {
	store := New(7, staticPrompt("sys"))
	store.Append(1, Entry{Role: consts.RoleUser, Content: "original"})

	entries := store.Context(1)
	entries[1].Content = "mutated"

	if got := store.Context(1)[1].Content; got != "original" {
		t.Errorf("Context() copy leaked, content = %q", got)
	}
}

func TestContextUnknownUser(t *testing.T) {
	store := New(7, staticPrompt("sys"))

	if entries := store.Context(99); len(entries) != 0 {
		t.Errorf("Context() for unknown user length = %d, want 0", len(entries))
	}
}

func TestSlowPromptDoesNotBlockOtherUsers(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	store := New(7, func(userID int64) string {
		if userID == 1 {
			close(entered)
			<-release
		}
		return "sys"
	})

	firstDone := make(chan struct{})
	go func() {
		store.Append(1, Entry{Role: consts.RoleUser, Content: "slow"})
		close(firstDone)
	}()
	<-entered

	// While user 1's prompt resolution is stuck, other users must still get
	// through the store
	otherDone := make(chan struct{})
	go func() {
		store.Append(2, Entry{Role: consts.RoleUser, Content: "fast"})
		store.Context(2)
		close(otherDone)
	}()

	select {
	case <-otherDone:
	case <-time.After(2 * time.Second):
		t.Fatalf("user 2 blocked behind user 1's prompt resolution")
	}

	close(release)
	<-firstDone

	if got := store.Context(1)[1].Content; got != "slow" {
		t.Errorf("user 1 entry = %q, want %q", got, "slow")
	}
	if got := store.Context(2)[1].Content; got != "fast" {
		t.Errorf("user 2 entry = %q, want %q", got, "fast")
	}
}

func TestImageURLPreserved(t *testing.T) {
	store := New(7, staticPrompt("sys"))
	store.Append(1, Entry{Role: consts.RoleUser, Content: "look", ImageURL: "tg://photo/abc"})

	entries := store.Context(1)
	if entries[1].ImageURL != "tg://photo/abc" {
		t.Errorf("ImageURL = %q, want %q", entries[1].ImageURL, "tg://photo/abc")
	}
}
