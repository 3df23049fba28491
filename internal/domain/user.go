package domain

import "time"

// User represents a registered account. Name is an optional display
// name. PasswordHash stores the bcrypt hash; the plaintext password is
// never persisted, logged, or returned.
type User struct {
	ID           int64
	Username     string
	Name         string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
