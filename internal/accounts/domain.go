package accounts

import "time"

// Status enumerates account states.
type Status string

const (
	// StatusActive marks an account that may authenticate.
	StatusActive Status = "active"
	// StatusBlocked marks an account denied all gated access.
	StatusBlocked Status = "blocked"
)

// Principal is an account entity capable of being authenticated. The
// password hash never serializes outward.
type Principal struct {
	ID           int64      `json:"id"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	Status       Status     `json:"status"`
	LastLoginAt  *time.Time `json:"last_login"`
	CreatedAt    time.Time  `json:"registration_time"`
}
