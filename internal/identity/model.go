package identity

import "time"

// User represents a registered account holder.
type User struct {
	ID           string
	Email        string
	PasswordHash []byte
	TokenVersion int
	CreatedAt    time.Time
	LastLogin    time.Time
}

// Credentials request structure.
type Credentials struct {
	Email    string
	Password string
}
