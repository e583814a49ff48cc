/**
 * @description
 * This file defines the repository interfaces that specify the contract for
 * all data access required by the ledger, the verification manager, and the
 * delivery pipeline. Business logic depends on these interfaces only, so the
 * in-memory implementation used by default and in tests can be swapped for
 * the PostgreSQL implementation without touching any caller.
 *
 * @dependencies
 * - context, errors: Standard Go libraries.
 * - internal/domain: The domain models persisted here.
 */

package store

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/john67k/zelle-style/internal/domain"
)

var (
	ErrAccountNotFound      = errors.New("account not found")
	ErrAccountExists        = errors.New("account already exists")
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrVerificationNotFound = errors.New("verification record not found")
	ErrTransactionNotFound  = errors.New("transaction not found")
	ErrPendingRetryNotFound = errors.New("pending retry not found")
)

// AccountRepository provides access to registered accounts keyed by email.
type AccountRepository interface {
	CreateAccount(ctx context.Context, account *domain.Account) error
	FindAccountByEmail(ctx context.Context, email string) (*domain.Account, error)
	MarkAccountVerified(ctx context.Context, email string) error
	// DebitBalance atomically checks and debits; it fails with
	// ErrInsufficientFunds without mutating when the balance is short.
	DebitBalance(ctx context.Context, email string, amount domain.Amount) (domain.Amount, error)
	CreditBalance(ctx context.Context, email string, amount domain.Amount) error
}

// VerificationRepository holds at most one live code record per email.
type VerificationRepository interface {
	// SaveVerification replaces any existing record for the same email.
	SaveVerification(ctx context.Context, record *domain.VerificationRecord) error
	FindVerification(ctx context.Context, email string) (*domain.VerificationRecord, error)
	DeleteVerification(ctx context.Context, email string) error
}

// TransactionRepository owns the immutable transfer records.
type TransactionRepository interface {
	CreateTransaction(ctx context.Context, tx *domain.Transaction) error
	FindTransactionByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
	// ListTransactionsByEmail returns every transaction in which the account
	// is sender or recipient, newest first.
	ListTransactionsByEmail(ctx context.Context, email string) ([]domain.Transaction, error)
}

// DeliveryRepository owns the append-only terminal log store and the
// pending-retry parking lot.
type DeliveryRepository interface {
	AppendDeliveryLog(ctx context.Context, log *domain.DeliveryLog) error
	// ListDeliveryLogs returns the most recent terminal logs, newest first.
	ListDeliveryLogs(ctx context.Context, limit int) ([]domain.DeliveryLog, error)
	SavePendingRetry(ctx context.Context, entry *domain.PendingRetry) error
	FindPendingRetry(ctx context.Context, id string) (*domain.PendingRetry, error)
	DeletePendingRetry(ctx context.Context, id string) error
	ListPendingRetries(ctx context.Context) ([]domain.PendingRetry, error)
	CountPendingRetries(ctx context.Context) (int, error)
}

// Repository is the full persistence contract implemented by both the
// in-memory store and the PostgreSQL store.
type Repository interface {
	AccountRepository
	VerificationRepository
	TransactionRepository
	DeliveryRepository
}
