/**
 * @description
 * In-memory implementation of the Repository interface. This is the default
 * store for development and the fixture store for tests; a real deployment
 * swaps in the PostgreSQL implementation via the same interface.
 *
 * All methods take a coarse lock, which also closes the read-check-then-write
 * races the interface contract cares about (DebitBalance in particular).
 */

package store

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/john67k/zelle-style/internal/domain"
)

// MemoryRepository keeps all state in process memory.
type MemoryRepository struct {
	mu            sync.Mutex
	accounts      map[string]*domain.Account
	verifications map[string]*domain.VerificationRecord
	transactions  []domain.Transaction
	txByID        map[uuid.UUID]int
	logs          []domain.DeliveryLog
	pending       map[string]*domain.PendingRetry
}

// NewMemoryRepository creates an empty in-memory store.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		accounts:      make(map[string]*domain.Account),
		verifications: make(map[string]*domain.VerificationRecord),
		txByID:        make(map[uuid.UUID]int),
		pending:       make(map[string]*domain.PendingRetry),
	}
}

func (m *MemoryRepository) CreateAccount(ctx context.Context, account *domain.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := domain.NormalizeEmail(account.Email)
	if _, ok := m.accounts[key]; ok {
		return ErrAccountExists
	}
	copied := *account
	copied.Email = key
	m.accounts[key] = &copied
	return nil
}

func (m *MemoryRepository) FindAccountByEmail(ctx context.Context, email string) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	account, ok := m.accounts[domain.NormalizeEmail(email)]
	if !ok {
		return nil, ErrAccountNotFound
	}
	copied := *account
	return &copied, nil
}

func (m *MemoryRepository) MarkAccountVerified(ctx context.Context, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	account, ok := m.accounts[domain.NormalizeEmail(email)]
	if !ok {
		return ErrAccountNotFound
	}
	account.Verified = true
	return nil
}

func (m *MemoryRepository) DebitBalance(ctx context.Context, email string, amount domain.Amount) (domain.Amount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	account, ok := m.accounts[domain.NormalizeEmail(email)]
	if !ok {
		return 0, ErrAccountNotFound
	}
	if account.Balance < amount {
		return 0, ErrInsufficientFunds
	}
	account.Balance -= amount
	return account.Balance, nil
}

func (m *MemoryRepository) CreditBalance(ctx context.Context, email string, amount domain.Amount) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	account, ok := m.accounts[domain.NormalizeEmail(email)]
	if !ok {
		return ErrAccountNotFound
	}
	account.Balance += amount
	return nil
}

func (m *MemoryRepository) SaveVerification(ctx context.Context, record *domain.VerificationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := *record
	copied.Email = domain.NormalizeEmail(record.Email)
	m.verifications[copied.Email] = &copied
	return nil
}

func (m *MemoryRepository) FindVerification(ctx context.Context, email string) (*domain.VerificationRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	record, ok := m.verifications[domain.NormalizeEmail(email)]
	if !ok {
		return nil, ErrVerificationNotFound
	}
	copied := *record
	return &copied, nil
}

func (m *MemoryRepository) DeleteVerification(ctx context.Context, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.verifications, domain.NormalizeEmail(email))
	return nil
}

func (m *MemoryRepository) CreateTransaction(ctx context.Context, tx *domain.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.transactions = append(m.transactions, *tx)
	m.txByID[tx.ID] = len(m.transactions) - 1
	return nil
}

func (m *MemoryRepository) FindTransactionByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx, ok := m.txByID[id]
	if !ok {
		return nil, ErrTransactionNotFound
	}
	copied := m.transactions[idx]
	return &copied, nil
}

func (m *MemoryRepository) ListTransactionsByEmail(ctx context.Context, email string) ([]domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := domain.NormalizeEmail(email)
	matched := make([]domain.Transaction, 0)
	for _, tx := range m.transactions {
		if domain.NormalizeEmail(tx.SenderEmail) == key || domain.NormalizeEmail(tx.RecipientEmail) == key {
			matched = append(matched, tx)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	return matched, nil
}

func (m *MemoryRepository) AppendDeliveryLog(ctx context.Context, log *domain.DeliveryLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := *log
	copied.Errors = append([]domain.AttemptError(nil), log.Errors...)
	m.logs = append(m.logs, copied)
	return nil
}

func (m *MemoryRepository) ListDeliveryLogs(ctx context.Context, limit int) ([]domain.DeliveryLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if limit <= 0 || limit > len(m.logs) {
		limit = len(m.logs)
	}
	out := make([]domain.DeliveryLog, 0, limit)
	for i := len(m.logs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.logs[i])
	}
	return out, nil
}

func (m *MemoryRepository) SavePendingRetry(ctx context.Context, entry *domain.PendingRetry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := *entry
	m.pending[entry.ID] = &copied
	return nil
}

func (m *MemoryRepository) FindPendingRetry(ctx context.Context, id string) (*domain.PendingRetry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.pending[id]
	if !ok {
		return nil, ErrPendingRetryNotFound
	}
	copied := *entry
	return &copied, nil
}

func (m *MemoryRepository) DeletePendingRetry(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.pending, id)
	return nil
}

func (m *MemoryRepository) ListPendingRetries(ctx context.Context) ([]domain.PendingRetry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]domain.PendingRetry, 0, len(m.pending))
	for _, entry := range m.pending {
		out = append(out, *entry)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Log.CreatedAt.Before(out[j].Log.CreatedAt)
	})
	return out, nil
}

func (m *MemoryRepository) CountPendingRetries(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.pending), nil
}
