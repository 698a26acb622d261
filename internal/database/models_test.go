package database

import "testing"

func TestDisplayName(t *testing.T) {
	tests := []struct {
		name     string
		user     *User
		expected string
	}{
		{
			name:     "username preferred",
			user:     &User{Username: "ivan42", FirstName: "Ivan", LastName: "Petrov"},
			expected: "ivan42",
		},
		{
			name:     "full name fallback",
			user:     &User{FirstName: "Ivan", LastName: "Petrov"},
			expected: "Ivan Petrov",
		},
		{
			name:     "first name only",
			user:     &User{FirstName: "Ivan"},
			expected: "Ivan",
		},
		{
			name:     "nothing set",
			user:     &User{},
			expected: "unknown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.user.DisplayName(); got != tt.expected {
				t.Errorf("DisplayName() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestNewDBWithoutDSN(t *testing.T) {
	db, err := NewDB("", 5)
	if err != nil {
		t.Errorf("NewDB(\"\") error = %v, want nil", err)
	}
	if db != nil {
		t.Errorf("NewDB(\"\") = %v, want nil", db)
	}
}
