package domain

import "time"

// VerificationRecord is the single live one-time code for an account. A new
// issuance replaces the record in place, discarding any attempt history.
type VerificationRecord struct {
	Email     string    `json:"email"`
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expires_at"`
	Attempts  int       `json:"attempts"`
}
