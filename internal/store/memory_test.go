package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/john67k/zelle-style/internal/domain"
)

func TestDebitBalance(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	err := repo.CreateAccount(ctx, &domain.Account{
		Email:   "alice@example.com",
		Name:    "Alice",
		Balance: 1000,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	remaining, err := repo.DebitBalance(ctx, "alice@example.com", 300)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if remaining != 700 {
		t.Fatalf("expected remaining 700, got %d", remaining)
	}

	if _, err := repo.DebitBalance(ctx, "alice@example.com", 701); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if _, err := repo.DebitBalance(ctx, "ghost@example.com", 1); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}

	// A rejected debit leaves the balance untouched.
	account, err := repo.FindAccountByEmail(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if account.Balance != 700 {
		t.Fatalf("expected balance 700, got %d", account.Balance)
	}
}

func TestCreateAccountDuplicate(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	if err := repo.CreateAccount(ctx, &domain.Account{Email: "a@example.com"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := repo.CreateAccount(ctx, &domain.Account{Email: "a@example.com"}); !errors.Is(err, ErrAccountExists) {
		t.Fatalf("expected ErrAccountExists, got %v", err)
	}
}

func TestListDeliveryLogsNewestFirstWithLimit(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	base := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		err := repo.AppendDeliveryLog(ctx, &domain.DeliveryLog{
			ID:        fmt.Sprintf("dl-%d", i),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
			Outcome:   domain.DeliverySuccess,
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	logs, err := repo.ListDeliveryLogs(ctx, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(logs) != 3 {
		t.Fatalf("expected 3 logs, got %d", len(logs))
	}
	for i, wantID := range []string{"dl-4", "dl-3", "dl-2"} {
		if logs[i].ID != wantID {
			t.Fatalf("position %d: expected %s, got %s", i, wantID, logs[i].ID)
		}
	}
}

func TestPendingRetryLifecycle(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	entry := domain.PendingRetry{
		ID:      "dl-1",
		Message: domain.Message{To: "bob@example.com", Subject: "hi"},
		Type:    domain.NotificationWelcome,
	}
	if err := repo.SavePendingRetry(ctx, &entry); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	found, err := repo.FindPendingRetry(ctx, "dl-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found.Message.To != "bob@example.com" {
		t.Fatalf("payload lost: %+v", found)
	}

	count, err := repo.CountPendingRetries(ctx)
	if err != nil || count != 1 {
		t.Fatalf("expected count 1, got %d (%v)", count, err)
	}

	if err := repo.DeletePendingRetry(ctx, "dl-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := repo.FindPendingRetry(ctx, "dl-1"); !errors.Is(err, ErrPendingRetryNotFound) {
		t.Fatalf("expected ErrPendingRetryNotFound, got %v", err)
	}
	// Deleting an absent entry is not an error; the success path removes
	// speculatively.
	if err := repo.DeletePendingRetry(ctx, "dl-1"); err != nil {
		t.Fatalf("expected idempotent delete, got %v", err)
	}
}

func TestTransactionRoundTrip(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	id := uuid.New()
	tx := domain.Transaction{
		ID:             id,
		SenderEmail:    "alice@example.com",
		RecipientEmail: "bob@example.com",
		Amount:         500,
		Status:         domain.TransactionCompleted,
		CreatedAt:      time.Now().UTC(),
	}
	if err := repo.CreateTransaction(ctx, &tx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	found, err := repo.FindTransactionByID(ctx, id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found.Amount != 500 {
		t.Fatalf("expected amount 500, got %d", found.Amount)
	}

	if _, err := repo.FindTransactionByID(ctx, uuid.New()); !errors.Is(err, ErrTransactionNotFound) {
		t.Fatalf("expected ErrTransactionNotFound, got %v", err)
	}
}
