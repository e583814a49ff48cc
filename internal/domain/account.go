package domain

import (
	"strings"
	"time"
)

// Account is a registered party identified by email. The balance only moves
// through completed transfers and the verified flag only flips forward.
type Account struct {
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Verified  bool      `json:"verified"`
	Balance   Amount    `json:"balance"`
	CreatedAt time.Time `json:"created_at"`
}

// NormalizeEmail canonicalizes an email for use as a store key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// DisplayNameForEmail synthesizes a display name from the local part of an
// email, used when a transfer recipient has no account of their own.
func DisplayNameForEmail(email string) string {
	email = NormalizeEmail(email)
	if idx := strings.IndexByte(email, '@'); idx > 0 {
		return email[:idx]
	}
	return email
}
