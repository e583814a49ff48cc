/**
 * @description
 * The delivery pipeline pushes notification payloads through the external
 * mail transport with bounded retries. Every cycle produces a terminal
 * attempt log; cycles that exhaust their attempts park the payload as a
 * pending-retry entry for operator replay. Failures downstream of a
 * committed transfer are recorded here, never surfaced to the end user.
 *
 * Key features:
 * - Deterministic exponential backoff via an injected Schedule.
 * - Per-send timeout so a hung transport call cannot stall a cycle forever.
 * - Supervised async dispatch for post-commit receipts (Dispatch/Drain).
 * - Read surface for the admin API: logs, pending entries, aggregate stats.
 *
 * @dependencies
 * - github.com/google/uuid: Delivery cycle ids.
 * - internal/domain, internal/store: Models and persistence contracts.
 * - pkg/rabbitmq: Operator alert events on permanent failure.
 */

package delivery

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/john67k/zelle-style/internal/domain"
	"github.com/john67k/zelle-style/internal/store"
	"github.com/john67k/zelle-style/pkg/rabbitmq"
)

const (
	// DefaultMaxAttempts bounds one delivery cycle.
	DefaultMaxAttempts = 3
	// DefaultSendTimeout caps a single transport call.
	DefaultSendTimeout = 10 * time.Second
	// statsSampleSize is the number of recent terminal logs Stats inspects.
	statsSampleSize = 1000
)

// Mailer is the external mail transport capability.
type Mailer interface {
	Send(ctx context.Context, msg domain.Message) error
}

// Error is the terminal failure of a delivery cycle. It carries the id of
// the pending-retry entry parked for the cycle.
type Error struct {
	DeliveryID string
	LastErr    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("delivery %s failed permanently: %v", e.DeliveryID, e.LastErr)
}

func (e *Error) Unwrap() error { return e.LastErr }

// Receipt reports a successful delivery cycle.
type Receipt struct {
	DeliveryID string `json:"delivery_id"`
	Attempts   int    `json:"attempts"`
}

// Pipeline drives delivery cycles against the transport and owns the log and
// pending-retry stores.
type Pipeline struct {
	store       store.DeliveryRepository
	mailer      Mailer
	clock       Clock
	schedule    Schedule
	maxAttempts int
	sendTimeout time.Duration
	events      rabbitmq.Publisher
	eventsEx    string
	newID       func() string
	inflight    sync.WaitGroup
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithClock injects a clock; tests use a fake.
func WithClock(c Clock) Option { return func(p *Pipeline) { p.clock = c } }

// WithSchedule overrides the backoff schedule.
func WithSchedule(s Schedule) Option { return func(p *Pipeline) { p.schedule = s } }

// WithMaxAttempts overrides the attempt bound for a cycle.
func WithMaxAttempts(n int) Option { return func(p *Pipeline) { p.maxAttempts = n } }

// WithSendTimeout overrides the per-send transport timeout.
func WithSendTimeout(d time.Duration) Option { return func(p *Pipeline) { p.sendTimeout = d } }

// WithEvents wires an event publisher for operator alerts.
func WithEvents(pub rabbitmq.Publisher, exchange string) Option {
	return func(p *Pipeline) {
		p.events = pub
		p.eventsEx = exchange
	}
}

// WithIDSource overrides delivery id generation; tests use a counter.
func WithIDSource(f func() string) Option { return func(p *Pipeline) { p.newID = f } }

// NewPipeline creates a pipeline over the given store and transport.
func NewPipeline(repo store.DeliveryRepository, mailer Mailer, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:       repo,
		mailer:      mailer,
		clock:       SystemClock(),
		schedule:    DefaultSchedule,
		maxAttempts: DefaultMaxAttempts,
		sendTimeout: DefaultSendTimeout,
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Deliver runs one delivery cycle to its terminal outcome. On success it
// returns the cycle's id and attempt count; after the last failed attempt it
// appends a terminal-failure log, parks a pending-retry entry, and returns a
// *Error carrying the cycle id.
func (p *Pipeline) Deliver(ctx context.Context, msg domain.Message, notifType string) (*Receipt, error) {
	id := p.newID()
	attemptLog := domain.DeliveryLog{
		ID:          id,
		Destination: msg.To,
		Type:        notifType,
		CreatedAt:   p.clock.Now(),
	}

	var lastErr error
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		if attempt > 1 {
			p.clock.Sleep(p.schedule(attempt))
		}
		attemptLog.Attempts = attempt

		if err := p.send(ctx, msg); err != nil {
			lastErr = err
			attemptLog.Errors = append(attemptLog.Errors, domain.AttemptError{
				Attempt: attempt,
				Message: err.Error(),
				At:      p.clock.Now(),
			})
			log.Printf("level=warn component=delivery msg=\"send attempt failed\" delivery_id=%s type=%s attempt=%d err=%v",
				id, notifType, attempt, err)
			continue
		}

		attemptLog.Outcome = domain.DeliverySuccess
		attemptLog.CompletedAt = p.clock.Now()
		if err := p.store.AppendDeliveryLog(ctx, &attemptLog); err != nil {
			log.Printf("level=error component=delivery msg=\"log append failed\" delivery_id=%s err=%v", id, err)
		}
		if err := p.store.DeletePendingRetry(ctx, id); err != nil {
			log.Printf("level=error component=delivery msg=\"pending cleanup failed\" delivery_id=%s err=%v", id, err)
		}
		return &Receipt{DeliveryID: id, Attempts: attempt}, nil
	}

	attemptLog.Outcome = domain.DeliveryFailed
	attemptLog.CompletedAt = p.clock.Now()
	if err := p.store.AppendDeliveryLog(ctx, &attemptLog); err != nil {
		log.Printf("level=error component=delivery msg=\"log append failed\" delivery_id=%s err=%v", id, err)
	}
	entry := domain.PendingRetry{ID: id, Message: msg, Type: notifType, Log: attemptLog}
	if err := p.store.SavePendingRetry(ctx, &entry); err != nil {
		log.Printf("level=error component=delivery msg=\"pending park failed\" delivery_id=%s err=%v", id, err)
	}
	p.publishFailureAlert(ctx, &attemptLog)

	log.Printf("level=error component=delivery msg=\"delivery failed permanently\" delivery_id=%s type=%s destination=%s attempts=%d",
		id, notifType, msg.To, p.maxAttempts)
	return nil, &Error{DeliveryID: id, LastErr: lastErr}
}

func (p *Pipeline) send(ctx context.Context, msg domain.Message) error {
	sendCtx := ctx
	if p.sendTimeout > 0 {
		var cancel context.CancelFunc
		sendCtx, cancel = context.WithTimeout(ctx, p.sendTimeout)
		defer cancel()
	}
	return p.mailer.Send(sendCtx, msg)
}

// Retry replays a parked payload as a fresh delivery cycle under a new id.
// The old entry is removed once the fresh cycle reaches a terminal outcome:
// on failure the new cycle's own pending entry supersedes it.
func (p *Pipeline) Retry(ctx context.Context, id string) (*Receipt, error) {
	entry, err := p.store.FindPendingRetry(ctx, id)
	if err != nil {
		return nil, err
	}

	receipt, deliverErr := p.Deliver(ctx, entry.Message, entry.Type)
	if removeErr := p.store.DeletePendingRetry(ctx, id); removeErr != nil {
		log.Printf("level=error component=delivery msg=\"pending cleanup failed\" delivery_id=%s err=%v", id, removeErr)
	}
	return receipt, deliverErr
}

// Dispatch runs a delivery cycle on its own goroutine. Callers use it for
// notifications that must not fail the committed operation that triggered
// them; the terminal outcome lands in the log store either way.
func (p *Pipeline) Dispatch(msg domain.Message, notifType string) {
	p.inflight.Add(1)
	go func() {
		defer p.inflight.Done()
		defer func() {
			if r := recover(); r != nil {
				log.Printf("level=error component=delivery msg=\"dispatch panic recovered\" type=%s panic=%v", notifType, r)
			}
		}()
		if _, err := p.Deliver(context.Background(), msg, notifType); err != nil {
			// Already recorded and parked; nothing to propagate.
			log.Printf("level=warn component=delivery msg=\"async delivery parked for replay\" type=%s err=%v", notifType, err)
		}
	}()
}

// Logs returns the most recent terminal logs, newest first.
func (p *Pipeline) Logs(ctx context.Context, limit int) ([]domain.DeliveryLog, error) {
	return p.store.ListDeliveryLogs(ctx, limit)
}

// Pending returns every currently parked payload.
func (p *Pipeline) Pending(ctx context.Context) ([]domain.PendingRetry, error) {
	return p.store.ListPendingRetries(ctx)
}

// Stats aggregates outcomes by notification type over at most the most
// recent 1000 terminal logs, plus the current pending backlog.
func (p *Pipeline) Stats(ctx context.Context) (*domain.DeliveryStats, error) {
	logs, err := p.store.ListDeliveryLogs(ctx, statsSampleSize)
	if err != nil {
		return nil, err
	}
	pending, err := p.store.CountPendingRetries(ctx)
	if err != nil {
		return nil, err
	}

	stats := &domain.DeliveryStats{
		ByType:       make(map[string]domain.DeliveryTypeStats),
		PendingRetry: pending,
		SampleSize:   len(logs),
	}
	for _, entry := range logs {
		byType := stats.ByType[entry.Type]
		if entry.Outcome == domain.DeliverySuccess {
			byType.Success++
			stats.TotalSuccess++
		} else {
			byType.Failed++
			stats.TotalFailed++
		}
		stats.ByType[entry.Type] = byType
	}
	return stats, nil
}

// Drain blocks until every async dispatch started so far has reached its
// terminal outcome. Called during graceful shutdown.
func (p *Pipeline) Drain() {
	p.inflight.Wait()
}

func (p *Pipeline) publishFailureAlert(ctx context.Context, attemptLog *domain.DeliveryLog) {
	if p.events == nil {
		return
	}
	alert := map[string]interface{}{
		"delivery_id": attemptLog.ID,
		"type":        attemptLog.Type,
		"destination": attemptLog.Destination,
		"attempts":    attemptLog.Attempts,
		"failed_at":   attemptLog.CompletedAt,
	}
	if err := p.events.Publish(ctx, p.eventsEx, "delivery.failed", alert); err != nil {
		log.Printf("level=warn component=delivery msg=\"failure alert publish failed\" delivery_id=%s err=%v", attemptLog.ID, err)
	}
}
