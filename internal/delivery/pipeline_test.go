package delivery

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/john67k/zelle-style/internal/domain"
	"github.com/john67k/zelle-style/internal/store"
)

// fakeClock advances on Sleep and records every requested pause.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
}

// scriptedMailer fails the first failures sends and succeeds afterwards.
type scriptedMailer struct {
	mu       sync.Mutex
	failures int
	calls    int
}

func (m *scriptedMailer) Send(ctx context.Context, msg domain.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.calls <= m.failures {
		return fmt.Errorf("smtp unavailable (call %d)", m.calls)
	}
	return nil
}

func sequentialIDs() func() string {
	var n int
	return func() string {
		n++
		return fmt.Sprintf("dl-%d", n)
	}
}

func testMessage() domain.Message {
	return domain.Message{To: "bob@example.com", Subject: "hello", TextBody: "hi"}
}

func newTestPipeline(mailer Mailer, clock Clock) (*Pipeline, *store.MemoryRepository) {
	repo := store.NewMemoryRepository()
	p := NewPipeline(repo, mailer,
		WithClock(clock),
		WithIDSource(sequentialIDs()),
	)
	return p, repo
}

func TestDeliverSucceedsFirstAttempt(t *testing.T) {
	clock := newFakeClock()
	p, repo := newTestPipeline(&scriptedMailer{}, clock)

	receipt, err := p.Deliver(context.Background(), testMessage(), domain.NotificationWelcome)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if receipt.Attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", receipt.Attempts)
	}
	if len(clock.sleeps) != 0 {
		t.Fatalf("expected no backoff before the first attempt, got %v", clock.sleeps)
	}

	logs, err := repo.ListDeliveryLogs(context.Background(), 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(logs))
	}
	if logs[0].Outcome != domain.DeliverySuccess {
		t.Fatalf("expected success outcome, got %q", logs[0].Outcome)
	}
	if len(logs[0].Errors) != 0 {
		t.Fatalf("expected no attempt errors, got %d", len(logs[0].Errors))
	}
}

func TestDeliverRetriesThenSucceeds(t *testing.T) {
	clock := newFakeClock()
	p, repo := newTestPipeline(&scriptedMailer{failures: 2}, clock)

	receipt, err := p.Deliver(context.Background(), testMessage(), domain.NotificationReceiptSent)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if receipt.Attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", receipt.Attempts)
	}

	wantSleeps := []time.Duration{2 * time.Second, 8 * time.Second}
	if len(clock.sleeps) != len(wantSleeps) {
		t.Fatalf("expected sleeps %v, got %v", wantSleeps, clock.sleeps)
	}
	for i, want := range wantSleeps {
		if clock.sleeps[i] != want {
			t.Fatalf("sleep %d: expected %v, got %v", i, want, clock.sleeps[i])
		}
	}

	logs, _ := repo.ListDeliveryLogs(context.Background(), 10)
	if len(logs) != 1 {
		t.Fatalf("expected one terminal log, got %d", len(logs))
	}
	if logs[0].Outcome != domain.DeliverySuccess {
		t.Fatalf("expected success outcome, got %q", logs[0].Outcome)
	}
	if len(logs[0].Errors) != 2 {
		t.Fatalf("expected 2 recorded attempt errors, got %d", len(logs[0].Errors))
	}

	pending, _ := repo.ListPendingRetries(context.Background())
	if len(pending) != 0 {
		t.Fatalf("expected no pending entries after success, got %d", len(pending))
	}
}

func TestDeliverParksAfterExhaustion(t *testing.T) {
	clock := newFakeClock()
	p, repo := newTestPipeline(&scriptedMailer{failures: 10}, clock)

	_, err := p.Deliver(context.Background(), testMessage(), domain.NotificationVerification)
	var deliveryErr *Error
	if !errors.As(err, &deliveryErr) {
		t.Fatalf("expected *Error, got %v", err)
	}

	logs, _ := repo.ListDeliveryLogs(context.Background(), 10)
	if len(logs) != 1 {
		t.Fatalf("expected one terminal log, got %d", len(logs))
	}
	if logs[0].Outcome != domain.DeliveryFailed {
		t.Fatalf("expected failed outcome, got %q", logs[0].Outcome)
	}
	if logs[0].Attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", logs[0].Attempts)
	}
	if len(logs[0].Errors) != 3 {
		t.Fatalf("expected 3 attempt errors, got %d", len(logs[0].Errors))
	}

	pending, _ := repo.ListPendingRetries(context.Background())
	if len(pending) != 1 {
		t.Fatalf("expected one pending entry, got %d", len(pending))
	}
	if pending[0].ID != deliveryErr.DeliveryID {
		t.Fatalf("pending id %q does not match error id %q", pending[0].ID, deliveryErr.DeliveryID)
	}
	if pending[0].Message.To != "bob@example.com" {
		t.Fatalf("pending entry lost the payload: %+v", pending[0].Message)
	}
}

func TestRetryReplaysUnderNewID(t *testing.T) {
	clock := newFakeClock()
	mailer := &scriptedMailer{failures: 3}
	p, repo := newTestPipeline(mailer, clock)

	_, err := p.Deliver(context.Background(), testMessage(), domain.NotificationReceiptSent)
	var deliveryErr *Error
	if !errors.As(err, &deliveryErr) {
		t.Fatalf("expected *Error, got %v", err)
	}

	// The mailer recovers; the replay should succeed on its first attempt
	// and remove the parked entry.
	receipt, err := p.Retry(context.Background(), deliveryErr.DeliveryID)
	if err != nil {
		t.Fatalf("unexpected retry error: %v", err)
	}
	if receipt.DeliveryID == deliveryErr.DeliveryID {
		t.Fatalf("expected a fresh id for the replay, got the original %q", receipt.DeliveryID)
	}
	if receipt.Attempts != 1 {
		t.Fatalf("expected replay to succeed on attempt 1, got %d", receipt.Attempts)
	}

	pending, _ := repo.ListPendingRetries(context.Background())
	if len(pending) != 0 {
		t.Fatalf("expected no pending entries after successful replay, got %d", len(pending))
	}

	logs, _ := repo.ListDeliveryLogs(context.Background(), 10)
	if len(logs) != 2 {
		t.Fatalf("expected two terminal logs (failure then replay success), got %d", len(logs))
	}
}

func TestRetryFailureSupersedesOldEntry(t *testing.T) {
	clock := newFakeClock()
	p, repo := newTestPipeline(&scriptedMailer{failures: 100}, clock)

	_, err := p.Deliver(context.Background(), testMessage(), domain.NotificationReceiptSent)
	var first *Error
	if !errors.As(err, &first) {
		t.Fatalf("expected *Error, got %v", err)
	}

	_, err = p.Retry(context.Background(), first.DeliveryID)
	var second *Error
	if !errors.As(err, &second) {
		t.Fatalf("expected *Error from failed replay, got %v", err)
	}
	if second.DeliveryID == first.DeliveryID {
		t.Fatalf("replay reused the original id %q", first.DeliveryID)
	}

	pending, _ := repo.ListPendingRetries(context.Background())
	if len(pending) != 1 {
		t.Fatalf("expected exactly one pending entry after supersede, got %d", len(pending))
	}
	if pending[0].ID != second.DeliveryID {
		t.Fatalf("expected the replay's entry %q to remain, found %q", second.DeliveryID, pending[0].ID)
	}
}

func TestRetryUnknownID(t *testing.T) {
	clock := newFakeClock()
	p, _ := newTestPipeline(&scriptedMailer{}, clock)

	_, err := p.Retry(context.Background(), "missing")
	if !errors.Is(err, store.ErrPendingRetryNotFound) {
		t.Fatalf("expected ErrPendingRetryNotFound, got %v", err)
	}
}

func TestStatsAggregatesByType(t *testing.T) {
	clock := newFakeClock()
	mailer := &scriptedMailer{}
	p, _ := newTestPipeline(mailer, clock)

	for i := 0; i < 3; i++ {
		if _, err := p.Deliver(context.Background(), testMessage(), domain.NotificationWelcome); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	// Exhaust one verification delivery.
	mailer.mu.Lock()
	mailer.failures = mailer.calls + 100
	mailer.mu.Unlock()
	if _, err := p.Deliver(context.Background(), testMessage(), domain.NotificationVerification); err == nil {
		t.Fatal("expected delivery to fail")
	}

	stats, err := p.Stats(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.TotalSuccess != 3 || stats.TotalFailed != 1 {
		t.Fatalf("expected 3 successes and 1 failure, got %d/%d", stats.TotalSuccess, stats.TotalFailed)
	}
	if stats.PendingRetry != 1 {
		t.Fatalf("expected pending backlog of 1, got %d", stats.PendingRetry)
	}
	if stats.SampleSize != 4 {
		t.Fatalf("expected sample size 4, got %d", stats.SampleSize)
	}
	if got := stats.ByType[domain.NotificationWelcome]; got.Success != 3 || got.Failed != 0 {
		t.Fatalf("unexpected welcome stats: %+v", got)
	}
	if got := stats.ByType[domain.NotificationVerification]; got.Success != 0 || got.Failed != 1 {
		t.Fatalf("unexpected verification stats: %+v", got)
	}
}

func TestDispatchRunsToTerminalOutcome(t *testing.T) {
	clock := newFakeClock()
	p, repo := newTestPipeline(&scriptedMailer{}, clock)

	p.Dispatch(testMessage(), domain.NotificationReceiptReceived)
	p.Drain()

	logs, err := repo.ListDeliveryLogs(context.Background(), 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(logs) != 1 || logs[0].Outcome != domain.DeliverySuccess {
		t.Fatalf("expected one successful log after drain, got %+v", logs)
	}
}
