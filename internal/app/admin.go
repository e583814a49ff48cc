/**
 * @description
 * Admin query surface over the delivery pipeline. Every operation checks the
 * caller against an injected admin policy before touching pipeline state.
 *
 * @dependencies
 * - internal/delivery: Logs, pending entries, stats, and manual replay.
 */

package app

import (
	"context"
	"errors"

	"github.com/john67k/zelle-style/internal/delivery"
	"github.com/john67k/zelle-style/internal/domain"
)

// ErrNotAuthorized means the caller is not an operator.
var ErrNotAuthorized = errors.New("operator access required")

// Policy decides which callers hold operator access.
type Policy interface {
	IsAdmin(email string) bool
}

// StaticPolicy grants operator access to a fixed set of addresses.
type StaticPolicy map[string]struct{}

// NewStaticPolicy builds a policy from an address allow list.
func NewStaticPolicy(emails []string) StaticPolicy {
	p := make(StaticPolicy, len(emails))
	for _, e := range emails {
		p[domain.NormalizeEmail(e)] = struct{}{}
	}
	return p
}

func (p StaticPolicy) IsAdmin(email string) bool {
	_, ok := p[domain.NormalizeEmail(email)]
	return ok
}

// Admin exposes delivery pipeline internals to operators.
type Admin struct {
	pipeline *delivery.Pipeline
	policy   Policy
}

// NewAdmin creates the admin surface.
func NewAdmin(pipeline *delivery.Pipeline, policy Policy) *Admin {
	return &Admin{pipeline: pipeline, policy: policy}
}

// Logs returns recent terminal delivery logs, newest first.
func (a *Admin) Logs(ctx context.Context, caller string, limit int) ([]domain.DeliveryLog, error) {
	if !a.policy.IsAdmin(caller) {
		return nil, ErrNotAuthorized
	}
	return a.pipeline.Logs(ctx, limit)
}

// Pending returns every parked payload awaiting replay.
func (a *Admin) Pending(ctx context.Context, caller string) ([]domain.PendingRetry, error) {
	if !a.policy.IsAdmin(caller) {
		return nil, ErrNotAuthorized
	}
	return a.pipeline.Pending(ctx)
}

// Stats returns aggregate delivery outcomes and the pending backlog.
func (a *Admin) Stats(ctx context.Context, caller string) (*domain.DeliveryStats, error) {
	if !a.policy.IsAdmin(caller) {
		return nil, ErrNotAuthorized
	}
	return a.pipeline.Stats(ctx)
}

// Retry replays a parked payload as a fresh delivery cycle.
func (a *Admin) Retry(ctx context.Context, caller, deliveryID string) (*delivery.Receipt, error) {
	if !a.policy.IsAdmin(caller) {
		return nil, ErrNotAuthorized
	}
	return a.pipeline.Retry(ctx, deliveryID)
}
