package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/indiwide/gembot/internal/consts"
	"github.com/indiwide/gembot/internal/logger"
	_ "github.com/lib/pq"
)

type DB struct {
	conn           *sql.DB
	initialCredits int64
}

// NewDB creates a new database connection
func NewDB(dsn string, initialCredits int64) (*DB, error) {
	if dsn == "" {
		return nil, nil // No database configured
	}

	conn, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	// Test the connection
	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := &DB{
		conn:           conn,
		initialCredits: initialCredits,
	}

	// Initialize tables if they don't exist
	if err := db.initTables(); err != nil {
		return nil, fmt.Errorf("failed to initialize tables: %w", err)
	}

	logger.InfoMsg("Database connection established successfully")
	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

// initTables creates the users and analytics tables if they don't exist
func (db *DB) initTables() error {
	query := `
	CREATE TABLE IF NOT EXISTS users (
		id SERIAL PRIMARY KEY,
		telegram_id BIGINT UNIQUE NOT NULL,
		username VARCHAR(255) NOT NULL DEFAULT '',
		first_name VARCHAR(255) NOT NULL DEFAULT '',
		last_name VARCHAR(255) NOT NULL DEFAULT '',
		credits BIGINT NOT NULL DEFAULT 5,
		persona_role VARCHAR(50) NOT NULL DEFAULT '',
		persona_style VARCHAR(50) NOT NULL DEFAULT '',
		persona_mood VARCHAR(50) NOT NULL DEFAULT '',
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_users_telegram_id ON users(telegram_id);

	CREATE TABLE IF NOT EXISTS analytics (
		id SERIAL PRIMARY KEY,
		event_type VARCHAR(50) NOT NULL,
		uid BIGINT NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_analytics_event_type ON analytics(event_type);
	CREATE INDEX IF NOT EXISTS idx_analytics_created_at ON analytics(created_at);
	`

	if _, err := db.conn.Exec(query); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}

	return nil
}

// GetUserByTelegramID retrieves a user by their Telegram user ID
func (db *DB) GetUserByTelegramID(telegramID int64) (*User, error) {
	if db == nil {
		return nil, fmt.Errorf("database not configured")
	}

	query := `
	SELECT id, telegram_id, username, first_name, last_name, credits, persona_role, persona_style, persona_mood, created_at, updated_at
	FROM users
	WHERE telegram_id = $1
	`

	user := &User{}
	err := db.conn.QueryRow(query, telegramID).Scan(
		&user.ID, &user.TelegramID, &user.Username, &user.FirstName, &user.LastName,
		&user.Credits, &user.PersonaRole, &user.PersonaStyle, &user.PersonaMood,
		&user.CreatedAt, &user.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil // User not found
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return user, nil
}

// CreateUser creates a new user seeded with the initial credit balance and
// records a signup analytics event
func (db *DB) CreateUser(telegramID int64, username, firstName, lastName string) (*User, error) {
	if db == nil {
		return nil, fmt.Errorf("database not configured")
	}

	now := time.Now()
	query := `
	INSERT INTO users (telegram_id, username, first_name, last_name, credits, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $6)
	ON CONFLICT (telegram_id) DO NOTHING
	RETURNING id, telegram_id, username, first_name, last_name, credits, persona_role, persona_style, persona_mood, created_at, updated_at
	`

	user := &User{}
	err := db.conn.QueryRow(query, telegramID, username, firstName, lastName, db.initialCredits, now).Scan(
		&user.ID, &user.TelegramID, &user.Username, &user.FirstName, &user.LastName,
		&user.Credits, &user.PersonaRole, &user.PersonaStyle, &user.PersonaMood,
		&user.CreatedAt, &user.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		// Lost the insert race with a concurrent first message; the row
		// exists now and its signup event was recorded by the winner
		return db.GetUserByTelegramID(telegramID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	if err := db.RecordEvent(consts.EventSignup, telegramID); err != nil {
		logger.Warn("Failed to record signup event", map[string]interface{}{
			"telegram_id": telegramID,
			"error":       err.Error(),
		})
	}

	logger.Info("Created new user", map[string]interface{}{
		"telegram_id": telegramID,
		"username":    username,
		"credits":     user.Credits,
	})
	return user, nil
}

// GetOrCreateUser gets an existing user (refreshing their profile fields) or
// creates a new one
func (db *DB) GetOrCreateUser(telegramID int64, username, firstName, lastName string) (*User, error) {
	if db == nil {
		return nil, fmt.Errorf("database not configured")
	}

	user, err := db.GetUserByTelegramID(telegramID)
	if err != nil {
		return nil, err
	}

	if user != nil {
		// Profile fields are mutable on the Telegram side, refresh on every sight
		if user.Username != username || user.FirstName != firstName || user.LastName != lastName {
			if err := db.updateUserProfile(telegramID, username, firstName, lastName); err != nil {
				logger.Warn("Failed to refresh user profile", map[string]interface{}{
					"telegram_id": telegramID,
					"error":       err.Error(),
				})
			} else {
				user.Username = username
				user.FirstName = firstName
				user.LastName = lastName
			}
		}
		return user, nil
	}

	return db.CreateUser(telegramID, username, firstName, lastName)
}

func (db *DB) updateUserProfile(telegramID int64, username, firstName, lastName string) error {
	query := `
	UPDATE users
	SET username = $2, first_name = $3, last_name = $4, updated_at = $5
	WHERE telegram_id = $1
	`

	_, err := db.conn.Exec(query, telegramID, username, firstName, lastName, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update user profile: %w", err)
	}
	return nil
}

// GetCredits returns the current credit balance for a user, 0 if unknown
func (db *DB) GetCredits(telegramID int64) (int64, error) {
	if db == nil {
		return 0, fmt.Errorf("database not configured")
	}

	var credits int64
	err := db.conn.QueryRow(`SELECT credits FROM users WHERE telegram_id = $1`, telegramID).Scan(&credits)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get credits: %w", err)
	}

	return credits, nil
}

// DebitCredits decrements a user's balance unconditionally. Callers are
// expected to check the balance first; the ledger itself does not enforce
// non-negativity.
func (db *DB) DebitCredits(telegramID int64, amount int64) error {
	if db == nil {
		return fmt.Errorf("database not configured")
	}

	query := `
	UPDATE users
	SET credits = credits - $2, updated_at = $3
	WHERE telegram_id = $1
	`

	result, err := db.conn.Exec(query, telegramID, amount, time.Now())
	if err != nil {
		return fmt.Errorf("failed to debit credits: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("user not found")
	}

	return nil
}

// AddCredits increments a user's balance. Returns false without error when
// the user is unknown.
func (db *DB) AddCredits(telegramID int64, amount int64) (bool, error) {
	if db == nil {
		return false, fmt.Errorf("database not configured")
	}

	query := `
	UPDATE users
	SET credits = credits + $2, updated_at = $3
	WHERE telegram_id = $1
	`

	result, err := db.conn.Exec(query, telegramID, amount, time.Now())
	if err != nil {
		return false, fmt.Errorf("failed to add credits: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return false, nil
	}

	logger.Info("Credited user", map[string]interface{}{
		"telegram_id": telegramID,
		"amount":      amount,
	})
	return true, nil
}

// UpdateUserPersona stores the persona axis labels and bumps updated_at
func (db *DB) UpdateUserPersona(telegramID int64, role, style, mood string) error {
	if db == nil {
		return fmt.Errorf("database not configured")
	}

	query := `
	UPDATE users
	SET persona_role = $2, persona_style = $3, persona_mood = $4, updated_at = $5
	WHERE telegram_id = $1
	`

	result, err := db.conn.Exec(query, telegramID, role, style, mood, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update persona: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("user not found")
	}

	return nil
}

// RecordEvent appends an analytics event row
func (db *DB) RecordEvent(eventType string, telegramID int64) error {
	if db == nil {
		return fmt.Errorf("database not configured")
	}

	query := `INSERT INTO analytics (event_type, uid, created_at) VALUES ($1, $2, $3)`

	if _, err := db.conn.Exec(query, eventType, telegramID, time.Now()); err != nil {
		return fmt.Errorf("failed to record event: %w", err)
	}

	return nil
}

// GetSignupStats returns total, daily and weekly signup counts
func (db *DB) GetSignupStats() (*SignupStats, error) {
	if db == nil {
		return nil, fmt.Errorf("database not configured")
	}

	query := `
	SELECT
		COUNT(*) FILTER (WHERE TRUE) AS total,
		COUNT(*) FILTER (WHERE created_at >= NOW() - INTERVAL '1 day') AS daily,
		COUNT(*) FILTER (WHERE created_at >= NOW() - INTERVAL '7 days') AS weekly
	FROM analytics
	WHERE event_type = $1
	`

	stats := &SignupStats{}
	err := db.conn.QueryRow(query, consts.EventSignup).Scan(&stats.Total, &stats.Daily, &stats.Weekly)
	if err != nil {
		return nil, fmt.Errorf("failed to get signup stats: %w", err)
	}

	return stats, nil
}
