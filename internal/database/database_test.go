package database

import (
	"database/sql"
	"database/sql/driver"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"
)

// Minimal driver stub so the insert-race handling can be exercised without a
// live postgres.
type stubDriver struct{}

func (stubDriver) Open(string) (driver.Conn, error) { return stub, nil }

type stubConn struct {
	// When set, INSERT INTO users returns no rows, as ON CONFLICT DO
	// NOTHING does when the row already exists
	insertConflict bool
	userRow        []driver.Value
	events         []string
}

func (c *stubConn) reset() {
	c.insertConflict = false
	c.userRow = nil
	c.events = nil
}

func (c *stubConn) Prepare(query string) (driver.Stmt, error) {
	return &stubStmt{conn: c, query: query}, nil
}

func (c *stubConn) Close() error              { return nil }
func (c *stubConn) Begin() (driver.Tx, error) { return nil, fmt.Errorf("not supported") }

type stubStmt struct {
	conn  *stubConn
	query string
}

func (s *stubStmt) Close() error  { return nil }
func (s *stubStmt) NumInput() int { return -1 }

func (s *stubStmt) Exec(args []driver.Value) (driver.Result, error) {
	if strings.Contains(s.query, "INSERT INTO analytics") {
		s.conn.events = append(s.conn.events, args[0].(string))
	}
	return driver.RowsAffected(1), nil
}

func (s *stubStmt) Query(args []driver.Value) (driver.Rows, error) {
	switch {
	case strings.Contains(s.query, "INSERT INTO users"):
		if s.conn.insertConflict {
			return &stubRows{cols: userColumns}, nil
		}
		return &stubRows{cols: userColumns, rows: [][]driver.Value{s.conn.userRow}}, nil
	case strings.Contains(s.query, "FROM users"):
		if s.conn.userRow == nil {
			return &stubRows{cols: userColumns}, nil
		}
		return &stubRows{cols: userColumns, rows: [][]driver.Value{s.conn.userRow}}, nil
	}
	return &stubRows{}, nil
}

var userColumns = []string{
	"id", "telegram_id", "username", "first_name", "last_name", "credits",
	"persona_role", "persona_style", "persona_mood", "created_at", "updated_at",
}

type stubRows struct {
	cols []string
	rows [][]driver.Value
	next int
}

func (r *stubRows) Columns() []string { return r.cols }
func (r *stubRows) Close() error      { return nil }

func (r *stubRows) Next(dest []driver.Value) error {
	if r.next >= len(r.rows) {
		return io.EOF
	}
	copy(dest, r.rows[r.next])
	r.next++
	return nil
}

var stub = &stubConn{}

func init() {
	sql.Register("userstub", stubDriver{})
}

func stubUserRow(telegramID int64, username string, credits int64) []driver.Value {
	now := time.Now()
	return []driver.Value{
		int64(1), telegramID, username, "", "", credits, "", "", "", now, now,
	}
}

func newStubDB(t *testing.T) *DB {
	t.Helper()
	conn, err := sql.Open("userstub", "")
	if err != nil {
		t.Fatalf("failed to open stub connection: %v", err)
	}
	return &DB{conn: conn, initialCredits: 5}
}

func TestCreateUser(t *testing.T) {
	stub.reset()
	stub.userRow = stubUserRow(42, "ivan42", 5)
	db := newStubDB(t)

	user, err := db.CreateUser(42, "ivan42", "Ivan", "Petrov")
	if err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	if user.TelegramID != 42 || user.Credits != 5 {
		t.Errorf("CreateUser() = %+v, want id 42 with 5 credits", user)
	}
	if len(stub.events) != 1 || stub.events[0] != "signup" {
		t.Errorf("events = %v, want one signup", stub.events)
	}
}

func TestCreateUserInsertRace(t *testing.T) {
	stub.reset()
	stub.insertConflict = true
	stub.userRow = stubUserRow(42, "ivan42", 5)
	db := newStubDB(t)

	// A concurrent first message already inserted the row; the losing insert
	// must fall through to a re-select instead of failing
	user, err := db.CreateUser(42, "ivan42", "Ivan", "Petrov")
	if err != nil {
		t.Fatalf("CreateUser() after lost race error = %v", err)
	}
	if user == nil || user.TelegramID != 42 {
		t.Fatalf("CreateUser() after lost race = %+v, want existing user", user)
	}
	// The winner recorded the signup; the loser must not double-count
	if len(stub.events) != 0 {
		t.Errorf("events = %v, want none from the losing insert", stub.events)
	}
}

func TestGetOrCreateUserExisting(t *testing.T) {
	stub.reset()
	stub.userRow = stubUserRow(42, "ivan42", 3)
	db := newStubDB(t)

	user, err := db.GetOrCreateUser(42, "ivan42", "", "")
	if err != nil {
		t.Fatalf("GetOrCreateUser() error = %v", err)
	}
	if user.Credits != 3 {
		t.Errorf("credits = %d, want 3", user.Credits)
	}
	if len(stub.events) != 0 {
		t.Errorf("events = %v, want none for an existing user", stub.events)
	}
}
