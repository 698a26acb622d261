package history

import (
	"sync"

	"github.com/indiwide/gembot/internal/consts"
)

// Entry is a single conversation message. ImageURL is set when a user
// message carried a photo alongside its text.
type Entry struct {
	Role     string
	Content  string
	ImageURL string
}

// SystemPromptFunc resolves the system entry text for a user at the moment
// it is injected. Injecting lazily means a persona change picked up after a
// Reset takes effect on the next message.
type SystemPromptFunc func(userID int64) string

// Store keeps a bounded rolling conversation window per user. The system
// entry is pinned at index 0; older exchange turns are evicted first.
// Process-local and non-durable, like the admission state.
type Store struct {
	mu            sync.RWMutex
	window        int
	systemPrompt  SystemPromptFunc
	conversations map[int64][]Entry
}

// New creates a store capped at window entries per user (system entry
// included)
func New(window int, systemPrompt SystemPromptFunc) *Store {
	return &Store{
		window:        window,
		systemPrompt:  systemPrompt,
		conversations: make(map[int64][]Entry),
	}
}

// Append adds an entry to a user's window, injecting the system entry on the
// first append and evicting the oldest exchange turns beyond the cap.
// The prompt callback may hit the database, so it runs outside the lock; one
// user's slow persona lookup must not stall every other user's window.
func (s *Store) Append(userID int64, entry Entry) {
	var prompt string
	resolved := false

	for {
		s.mu.Lock()
		entries := s.conversations[userID]
		if len(entries) > 0 {
			s.appendLocked(userID, entries, entry)
			s.mu.Unlock()
			return
		}
		if resolved {
			entries = []Entry{{Role: consts.RoleSystem, Content: prompt}}
			s.appendLocked(userID, entries, entry)
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		prompt = s.systemPrompt(userID)
		resolved = true
	}
}

func (s *Store) appendLocked(userID int64, entries []Entry, entry Entry) {
	entries = append(entries, entry)

	// Evict from index 1 so the system entry stays pinned
	for len(entries) > s.window {
		entries = append(entries[:1], entries[2:]...)
	}

	s.conversations[userID] = entries
}

// Context returns a copy of the user's current window in order
func (s *Store) Context(userID int64) []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.conversations[userID]
	out := make([]Entry, len(entries))
	copy(out, entries)
	return out
}

// Reset drops the user's entire window. The next Append re-injects the
// system entry, which may have changed in the meantime.
func (s *Store) Reset(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.conversations, userID)
}

// Len returns the current window length for a user
func (s *Store) Len(userID int64) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.conversations[userID])
}
