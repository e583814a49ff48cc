/**
 * @description
 * Domain models for the outbound notification pipeline: the mail message
 * handed to the transport, the per-delivery attempt log, the parked entry for
 * permanently failed deliveries, and the aggregate stats view consumed by the
 * admin surface.
 */

package domain

import "time"

// Notification types carried through the delivery pipeline.
const (
	NotificationVerification    = "verification"
	NotificationWelcome         = "welcome"
	NotificationReceiptSent     = "receipt_sent"
	NotificationReceiptReceived = "receipt_received"
	NotificationMoneyRequest    = "money_request"
)

// Delivery outcomes recorded on terminal logs.
const (
	DeliverySuccess = "success"
	DeliveryFailed  = "failed"
)

// Message is the payload handed to the mail transport. Transports must be
// safe to call repeatedly with the same message on retry.
type Message struct {
	To       string `json:"to"`
	Subject  string `json:"subject"`
	HTMLBody string `json:"html_body"`
	TextBody string `json:"text_body"`
	FromName string `json:"from_name,omitempty"`
	FromAddr string `json:"from_addr,omitempty"`
}

// AttemptError describes one failed send attempt inside a delivery cycle.
type AttemptError struct {
	Attempt int       `json:"attempt"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// DeliveryLog is the attempt history for one delivery cycle. It is appended
// to only while its own retry loop is in flight and becomes immutable once
// Outcome is set.
type DeliveryLog struct {
	ID          string         `json:"id"`
	Destination string         `json:"destination"`
	Type        string         `json:"type"`
	CreatedAt   time.Time      `json:"created_at"`
	Attempts    int            `json:"attempts"`
	Errors      []AttemptError `json:"errors,omitempty"`
	Outcome     string         `json:"outcome"`
	CompletedAt time.Time      `json:"completed_at"`
}

// PendingRetry parks a permanently failed payload for operator replay. It
// shares its ID with the terminal log of the failed cycle.
type PendingRetry struct {
	ID      string      `json:"id"`
	Message Message     `json:"message"`
	Type    string      `json:"type"`
	Log     DeliveryLog `json:"log"`
}

// DeliveryTypeStats aggregates terminal outcomes for one notification type.
type DeliveryTypeStats struct {
	Success int `json:"success"`
	Failed  int `json:"failed"`
}

// DeliveryStats summarizes recent terminal logs plus the current pending
// retry backlog.
type DeliveryStats struct {
	ByType       map[string]DeliveryTypeStats `json:"by_type"`
	TotalSuccess int                          `json:"total_success"`
	TotalFailed  int                          `json:"total_failed"`
	PendingRetry int                          `json:"pending_retry"`
	SampleSize   int                          `json:"sample_size"`
}
