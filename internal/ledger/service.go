/**
 * @description
 * The ledger service is the transfer core. Send moves funds between
 * accounts, Request records a pending money request, and History/Get expose
 * the transaction record from each participant's point of view.
 *
 * Key features:
 * - Per-sender locking so the funds check and the debit are one step.
 * - Fixed validation order: amount, sender existence, sender verification,
 *   sufficient funds.
 * - Receipts go out asynchronously after commit; a receipt failure never
 *   rolls a transfer back.
 *
 * @dependencies
 * - github.com/google/uuid: Transaction ids.
 * - internal/store: Account and transaction persistence.
 * - internal/delivery (via Notifier): Post-commit receipt dispatch.
 * - pkg/rabbitmq: Transfer events for downstream consumers.
 */

package ledger

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/john67k/zelle-style/internal/domain"
	"github.com/john67k/zelle-style/internal/store"
	"github.com/john67k/zelle-style/pkg/rabbitmq"
)

var (
	// ErrInvalidAmount means the amount is zero, negative, or malformed.
	ErrInvalidAmount = errors.New("amount must be a positive value")
	// ErrEmailNotVerified means the sender has not proven their address.
	ErrEmailNotVerified = errors.New("email address is not verified")
	// ErrAccessDenied means the caller is not a participant of the transaction.
	ErrAccessDenied = errors.New("access to this transaction is denied")
)

// Notifier dispatches a notification without blocking the caller.
type Notifier interface {
	Dispatch(msg domain.Message, notifType string)
}

// Service implements the transfer operations over a repository.
type Service struct {
	store    store.Repository
	notifier Notifier
	events   rabbitmq.Publisher
	eventsEx string
	locks    *accountLocks
	newID    func() uuid.UUID
}

// Option configures a Service.
type Option func(*Service)

// WithEvents wires an event publisher for transfer events.
func WithEvents(pub rabbitmq.Publisher, exchange string) Option {
	return func(s *Service) {
		s.events = pub
		s.eventsEx = exchange
	}
}

// WithIDSource overrides transaction id generation; tests use fixed ids.
func WithIDSource(f func() uuid.UUID) Option { return func(s *Service) { s.newID = f } }

// NewService creates a ledger service.
func NewService(repo store.Repository, notifier Notifier, opts ...Option) *Service {
	s := &Service{
		store:    repo,
		notifier: notifier,
		locks:    newAccountLocks(),
		newID:    uuid.New,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Send transfers amount from sender to recipient and returns the committed
// transaction together with the sender's post-transfer balance. Validation
// runs in a fixed order: positive amount, sender exists, sender verified,
// sufficient funds. The debit and the funds check happen atomically per
// sender. Receipts are dispatched after the transaction is committed and
// cannot undo it.
func (s *Service) Send(ctx context.Context, senderEmail, recipientEmail string, amount domain.Amount, note string) (*domain.Transaction, domain.Amount, error) {
	if amount <= 0 {
		return nil, 0, ErrInvalidAmount
	}
	senderEmail = domain.NormalizeEmail(senderEmail)
	recipientEmail = domain.NormalizeEmail(recipientEmail)

	unlock := s.locks.lock(senderEmail)
	defer unlock()

	sender, err := s.store.FindAccountByEmail(ctx, senderEmail)
	if err != nil {
		return nil, 0, err
	}
	if !sender.Verified {
		return nil, 0, ErrEmailNotVerified
	}

	remaining, err := s.store.DebitBalance(ctx, senderEmail, amount)
	if err != nil {
		return nil, 0, err
	}

	recipientName := domain.DisplayNameForEmail(recipientEmail)
	recipient, err := s.store.FindAccountByEmail(ctx, recipientEmail)
	switch {
	case err == nil:
		recipientName = recipient.Name
		if err := s.store.CreditBalance(ctx, recipientEmail, amount); err != nil {
			log.Printf("level=error component=ledger msg=\"recipient credit failed\" recipient=%s err=%v", recipientEmail, err)
		}
	case errors.Is(err, store.ErrAccountNotFound):
		recipient = nil
	default:
		log.Printf("level=error component=ledger msg=\"recipient lookup failed\" recipient=%s err=%v", recipientEmail, err)
		recipient = nil
	}

	tx := domain.Transaction{
		ID:             s.newID(),
		SenderEmail:    senderEmail,
		SenderName:     sender.Name,
		RecipientEmail: recipientEmail,
		RecipientName:  recipientName,
		Amount:         amount,
		Note:           note,
		Status:         domain.TransactionCompleted,
		CreatedAt:      nowUTC(),
	}
	if err := s.store.CreateTransaction(ctx, &tx); err != nil {
		return nil, 0, fmt.Errorf("recording transaction: %w", err)
	}

	s.publishEvent(ctx, "transfer.completed", &tx)

	s.notifier.Dispatch(sentReceipt(&tx, remaining), domain.NotificationReceiptSent)
	if recipient != nil {
		s.notifier.Dispatch(receivedReceipt(&tx), domain.NotificationReceiptReceived)
	}

	log.Printf("level=info component=ledger msg=\"transfer completed\" tx_id=%s sender=%s recipient=%s amount=%s",
		tx.ID, senderEmail, recipientEmail, amount)
	return &tx, remaining, nil
}

// Request records a pending money request from requester to requestee and
// notifies the requestee. The record stores the requestee as the eventual
// payer; no balance moves and the request never transitions further.
func (s *Service) Request(ctx context.Context, requesterEmail, requesteeEmail string, amount domain.Amount, note string) (*domain.Transaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	requesterEmail = domain.NormalizeEmail(requesterEmail)
	requesteeEmail = domain.NormalizeEmail(requesteeEmail)

	requester, err := s.store.FindAccountByEmail(ctx, requesterEmail)
	if err != nil {
		return nil, err
	}
	if !requester.Verified {
		return nil, ErrEmailNotVerified
	}

	requesteeName := domain.DisplayNameForEmail(requesteeEmail)
	if requestee, err := s.store.FindAccountByEmail(ctx, requesteeEmail); err == nil {
		requesteeName = requestee.Name
	}

	tx := domain.Transaction{
		ID:             s.newID(),
		SenderEmail:    requesteeEmail,
		SenderName:     requesteeName,
		RecipientEmail: requesterEmail,
		RecipientName:  requester.Name,
		Amount:         amount,
		Note:           note,
		Status:         domain.TransactionPending,
		CreatedAt:      nowUTC(),
	}
	if err := s.store.CreateTransaction(ctx, &tx); err != nil {
		return nil, fmt.Errorf("recording request: %w", err)
	}

	s.publishEvent(ctx, "transfer.requested", &tx)
	s.notifier.Dispatch(requestNotice(&tx), domain.NotificationMoneyRequest)

	log.Printf("level=info component=ledger msg=\"money requested\" tx_id=%s requester=%s requestee=%s amount=%s",
		tx.ID, requesterEmail, requesteeEmail, amount)
	return &tx, nil
}

// History lists the caller's transactions newest first, each projected from
// the caller's point of view.
func (s *Service) History(ctx context.Context, email string) ([]domain.TransactionView, error) {
	email = domain.NormalizeEmail(email)
	txs, err := s.store.ListTransactionsByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	views := make([]domain.TransactionView, 0, len(txs))
	for _, tx := range txs {
		views = append(views, tx.ViewFor(email))
	}
	return views, nil
}

// Get returns a single transaction projected for the caller. Callers who are
// not a participant get ErrAccessDenied.
func (s *Service) Get(ctx context.Context, email string, id uuid.UUID) (*domain.TransactionView, error) {
	email = domain.NormalizeEmail(email)
	tx, err := s.store.FindTransactionByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if tx.SenderEmail != email && tx.RecipientEmail != email {
		return nil, ErrAccessDenied
	}
	view := tx.ViewFor(email)
	return &view, nil
}

func (s *Service) publishEvent(ctx context.Context, routingKey string, tx *domain.Transaction) {
	if s.events == nil {
		return
	}
	payload := map[string]interface{}{
		"transaction_id": tx.ID,
		"sender":         tx.SenderEmail,
		"recipient":      tx.RecipientEmail,
		"amount":         tx.Amount,
		"status":         tx.Status,
		"created_at":     tx.CreatedAt,
	}
	if err := s.events.Publish(ctx, s.eventsEx, routingKey, payload); err != nil {
		log.Printf("level=warn component=ledger msg=\"event publish failed\" routing_key=%s tx_id=%s err=%v", routingKey, tx.ID, err)
	}
}
