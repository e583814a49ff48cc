package verification

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/john67k/zelle-style/internal/domain"
	"github.com/john67k/zelle-style/internal/ratelimit"
	"github.com/john67k/zelle-style/internal/store"
)

type recordingNotifier struct {
	mu       sync.Mutex
	messages []domain.Message
	types    []string
}

func (n *recordingNotifier) Dispatch(msg domain.Message, notifType string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, msg)
	n.types = append(n.types, notifType)
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.messages)
}

type managerFixture struct {
	repo     *store.MemoryRepository
	notifier *recordingNotifier
	manager  *Manager
	now      time.Time
}

func newManagerFixture(t *testing.T) *managerFixture {
	t.Helper()
	f := &managerFixture{
		repo:     store.NewMemoryRepository(),
		notifier: &recordingNotifier{},
		now:      time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC),
	}
	limiter := ratelimit.NewMemoryLimiter(func() time.Time { return f.now })
	f.manager = NewManager(f.repo, f.repo, limiter, f.notifier,
		WithNow(func() time.Time { return f.now }),
		WithCodeSource(func() (string, error) { return "123456", nil }),
	)
	return f
}

func (f *managerFixture) createAccount(t *testing.T, email string) {
	t.Helper()
	err := f.repo.CreateAccount(context.Background(), &domain.Account{
		Email:     email,
		Name:      "Alice",
		CreatedAt: f.now,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestIssueAndCheck(t *testing.T) {
	f := newManagerFixture(t)
	f.createAccount(t, "alice@example.com")

	expiresAt, err := f.manager.Issue(context.Background(), "alice@example.com", "verification")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := f.now.Add(10 * time.Minute); !expiresAt.Equal(want) {
		t.Fatalf("expected expiry %v, got %v", want, expiresAt)
	}
	if f.notifier.count() != 1 || f.notifier.types[0] != domain.NotificationVerification {
		t.Fatalf("expected one verification dispatch, got %v", f.notifier.types)
	}

	if err := f.manager.Check(context.Background(), "alice@example.com", "123456"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	account, err := f.repo.FindAccountByEmail(context.Background(), "alice@example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !account.Verified {
		t.Fatal("expected account to be verified")
	}
	if f.notifier.count() != 2 || f.notifier.types[1] != domain.NotificationWelcome {
		t.Fatalf("expected a welcome dispatch after verification, got %v", f.notifier.types)
	}

	// The code is consumed; a second check finds nothing.
	if err := f.manager.Check(context.Background(), "alice@example.com", "123456"); !errors.Is(err, ErrCodeNotFound) {
		t.Fatalf("expected ErrCodeNotFound, got %v", err)
	}
}

func TestCheckExpiredCode(t *testing.T) {
	f := newManagerFixture(t)
	f.createAccount(t, "alice@example.com")

	if _, err := f.manager.Issue(context.Background(), "alice@example.com", "verification"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	f.now = f.now.Add(10*time.Minute + time.Second)
	if err := f.manager.Check(context.Background(), "alice@example.com", "123456"); !errors.Is(err, ErrCodeExpired) {
		t.Fatalf("expected ErrCodeExpired, got %v", err)
	}

	// An expired code is destroyed, not retried.
	if err := f.manager.Check(context.Background(), "alice@example.com", "123456"); !errors.Is(err, ErrCodeNotFound) {
		t.Fatalf("expected ErrCodeNotFound, got %v", err)
	}
}

func TestCheckAttemptsExhaustion(t *testing.T) {
	f := newManagerFixture(t)
	f.createAccount(t, "alice@example.com")

	if _, err := f.manager.Issue(context.Background(), "alice@example.com", "verification"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := f.manager.Check(context.Background(), "alice@example.com", "000000"); !errors.Is(err, ErrInvalidCode) {
			t.Fatalf("wrong attempt %d: expected ErrInvalidCode, got %v", i+1, err)
		}
	}

	// The third wrong submission destroyed the code; even the right one is
	// useless now.
	if err := f.manager.Check(context.Background(), "alice@example.com", "123456"); !errors.Is(err, ErrCodeNotFound) {
		t.Fatalf("expected ErrCodeNotFound after exhaustion, got %v", err)
	}

	account, _ := f.repo.FindAccountByEmail(context.Background(), "alice@example.com")
	if account.Verified {
		t.Fatal("account must not be verified after exhaustion")
	}
}

func TestReissueReplacesCode(t *testing.T) {
	f := newManagerFixture(t)
	f.createAccount(t, "alice@example.com")

	codes := []string{"111111", "222222"}
	idx := 0
	limiter := ratelimit.NewMemoryLimiter(func() time.Time { return f.now })
	f.manager = NewManager(f.repo, f.repo, limiter, f.notifier,
		WithNow(func() time.Time { return f.now }),
		WithCodeSource(func() (string, error) {
			code := codes[idx]
			idx++
			return code, nil
		}),
	)

	for range codes {
		if _, err := f.manager.Issue(context.Background(), "alice@example.com", "verification"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if err := f.manager.Check(context.Background(), "alice@example.com", "111111"); !errors.Is(err, ErrInvalidCode) {
		t.Fatalf("expected the first code to be dead, got %v", err)
	}
	if err := f.manager.Check(context.Background(), "alice@example.com", "222222"); err != nil {
		t.Fatalf("expected the latest code to verify, got %v", err)
	}
}

func TestIssueThrottled(t *testing.T) {
	f := newManagerFixture(t)
	f.createAccount(t, "alice@example.com")

	for i := 0; i < 3; i++ {
		if _, err := f.manager.Issue(context.Background(), "alice@example.com", "verification"); err != nil {
			t.Fatalf("issue %d: unexpected error: %v", i+1, err)
		}
	}

	_, err := f.manager.Issue(context.Background(), "alice@example.com", "verification")
	if !errors.Is(err, ratelimit.ErrRateLimitExceeded) {
		t.Fatalf("expected ErrRateLimitExceeded, got %v", err)
	}
	if f.notifier.count() != 3 {
		t.Fatalf("throttled issuance must not dispatch, got %d dispatches", f.notifier.count())
	}

	// A different address is unaffected.
	f.createAccount(t, "bob@example.com")
	if _, err := f.manager.Issue(context.Background(), "bob@example.com", "verification"); err != nil {
		t.Fatalf("unexpected error for unrelated address: %v", err)
	}

	// An hour later the original address can request codes again.
	f.now = f.now.Add(time.Hour + time.Second)
	if _, err := f.manager.Issue(context.Background(), "alice@example.com", "verification"); err != nil {
		t.Fatalf("unexpected error after window elapsed: %v", err)
	}
}
