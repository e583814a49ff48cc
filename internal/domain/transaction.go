/**
 * @description
 * This file defines the ledger's transaction records and the per-account
 * projection returned by the history endpoints. A Transaction is immutable
 * once created; each party sees it through a TransactionView computed from
 * their own perspective rather than a stored copy.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// Transaction statuses. Sends are completed at creation; money requests stay
// pending (there is no accept/decline flow).
const (
	TransactionCompleted = "completed"
	TransactionPending   = "pending"
)

// Directions used in TransactionView.
const (
	DirectionSent     = "sent"
	DirectionReceived = "received"
)

// Transaction is the immutable ledger record for one transfer or money
// request. Display names are snapshotted at creation time; the recipient name
// is synthesized from the email's local part when no account exists.
type Transaction struct {
	ID             uuid.UUID `json:"id"`
	SenderEmail    string    `json:"sender_email"`
	SenderName     string    `json:"sender_name"`
	RecipientEmail string    `json:"recipient_email"`
	RecipientName  string    `json:"recipient_name"`
	Amount         Amount    `json:"amount"`
	Note           string    `json:"note,omitempty"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
}

// TransactionView is one party's projection of a transaction.
type TransactionView struct {
	ID               uuid.UUID `json:"id"`
	Direction        string    `json:"type"`
	Counterparty     string    `json:"counterparty"`
	CounterpartyName string    `json:"counterparty_name"`
	Amount           Amount    `json:"amount"`
	Note             string    `json:"note,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
	Status           string    `json:"status"`
}

// ViewFor projects the transaction from the given account's perspective.
func (t Transaction) ViewFor(email string) TransactionView {
	view := TransactionView{
		ID:        t.ID,
		Amount:    t.Amount,
		Note:      t.Note,
		Timestamp: t.CreatedAt,
		Status:    t.Status,
	}
	if NormalizeEmail(email) == NormalizeEmail(t.SenderEmail) {
		view.Direction = DirectionSent
		view.Counterparty = t.RecipientEmail
		view.CounterpartyName = t.RecipientName
	} else {
		view.Direction = DirectionReceived
		view.Counterparty = t.SenderEmail
		view.CounterpartyName = t.SenderName
	}
	return view
}
