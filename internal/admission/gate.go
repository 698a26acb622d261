package admission

import (
	"sync"
	"time"

	"github.com/indiwide/gembot/internal/logger"
)

// Status is the outcome of an admission attempt
type Status int

const (
	StatusAdmitted Status = iota
	StatusBusy
	StatusCooldown
)

// Decision is the result of TryAdmit. RemainingSeconds is only meaningful
// for StatusCooldown.
type Decision struct {
	Status           Status
	RemainingSeconds int64
}

// Admitted reports whether the request may proceed
func (d Decision) Admitted() bool {
	return d.Status == StatusAdmitted
}

// record holds per-user admission state. Process-local and non-durable: a
// restart clears all cooldowns, which is acceptable for a soft rate limit.
type record struct {
	cooldownUntil time.Time
	pending       bool
}

// Gate serializes a user against their own in-flight requests and enforces a
// minimum interval between consecutive accepted requests. Different users
// never block each other.
type Gate struct {
	mu       sync.Mutex
	cooldown time.Duration
	records  map[int64]*record

	stopCleanup chan struct{}
	stopOnce    sync.Once
}

// NewGate creates a gate with the given cooldown between accepted requests
func NewGate(cooldown time.Duration) *Gate {
	g := &Gate{
		cooldown:    cooldown,
		records:     make(map[int64]*record),
		stopCleanup: make(chan struct{}),
	}

	go g.cleanupWorker()

	return g
}

// TryAdmit decides whether a user's message is accepted. The check and the
// state update happen inside a single mutex region so two concurrent
// messages from the same user can never both be admitted.
func (g *Gate) TryAdmit(userID int64, now time.Time) Decision {
	g.mu.Lock()
	defer g.mu.Unlock()

	rec, exists := g.records[userID]
	if !exists {
		rec = &record{}
		g.records[userID] = rec
	}

	if rec.pending {
		return Decision{Status: StatusBusy}
	}

	if now.Before(rec.cooldownUntil) {
		remaining := rec.cooldownUntil.Sub(now)
		// Round up so the user is never told 0 seconds while still blocked
		seconds := int64((remaining + time.Second - 1) / time.Second)
		return Decision{Status: StatusCooldown, RemainingSeconds: seconds}
	}

	rec.pending = true
	// Cooldown counts from admission, not from completion
	rec.cooldownUntil = now.Add(g.cooldown)

	return Decision{Status: StatusAdmitted}
}

// Release clears the pending flag after a request concludes, on success or
// failure alike. The cooldown timer set at admission keeps running.
func (g *Gate) Release(userID int64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if rec, exists := g.records[userID]; exists {
		rec.pending = false
	}
}

// Pending reports whether the user currently has an in-flight request
func (g *Gate) Pending(userID int64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	rec, exists := g.records[userID]
	return exists && rec.pending
}

// Close stops the background cleanup goroutine
func (g *Gate) Close() {
	g.stopOnce.Do(func() {
		close(g.stopCleanup)
	})
}

// cleanupWorker drops idle records so the map does not grow with every user
// ever seen
func (g *Gate) cleanupWorker() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			g.cleanupIdle(time.Now())
		case <-g.stopCleanup:
			return
		}
	}
}

func (g *Gate) cleanupIdle(now time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()

	removed := 0
	for userID, rec := range g.records {
		if !rec.pending && now.After(rec.cooldownUntil) {
			delete(g.records, userID)
			removed++
		}
	}

	if removed > 0 {
		logger.Debug("Cleaned up idle admission records", map[string]interface{}{
			"removed":   removed,
			"remaining": len(g.records),
		})
	}
}
