package database

import (
	"strings"
	"time"
)

// User represents a Telegram user together with their generation-credit
// balance and persona settings
type User struct {
	ID           int       `db:"id" json:"id"`
	TelegramID   int64     `db:"telegram_id" json:"telegram_id"`
	Username     string    `db:"username" json:"username"`
	FirstName    string    `db:"first_name" json:"first_name"`
	LastName     string    `db:"last_name" json:"last_name"`
	Credits      int64     `db:"credits" json:"credits"`
	PersonaRole  string    `db:"persona_role" json:"persona_role"`
	PersonaStyle string    `db:"persona_style" json:"persona_style"`
	PersonaMood  string    `db:"persona_mood" json:"persona_mood"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// DisplayName returns the best available human-readable name for the user
func (u *User) DisplayName() string {
	if u.Username != "" {
		return u.Username
	}
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name != "" {
		return name
	}
	return "unknown"
}

// AnalyticsEvent is an append-only analytics row
type AnalyticsEvent struct {
	ID        int       `db:"id" json:"id"`
	EventType string    `db:"event_type" json:"event_type"`
	UID       int64     `db:"uid" json:"uid"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// SignupStats aggregates signup events over fixed windows
type SignupStats struct {
	Total  int64 `json:"total"`
	Daily  int64 `json:"daily"`
	Weekly int64 `json:"weekly"`
}
