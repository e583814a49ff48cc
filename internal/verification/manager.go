/**
 * @description
 * The verification manager owns email ownership proof. It issues short-lived
 * six digit codes, throttles issuance per address, and checks submitted codes
 * against a bounded attempt budget. A successful check flips the account's
 * verified flag and triggers a welcome notice.
 *
 * Key features:
 * - Codes expire ten minutes after issuance; reissue replaces the old code.
 * - Three wrong submissions burn the code; the caller must request a new one.
 * - Issuance is capped at three codes per address per hour.
 *
 * @dependencies
 * - internal/ratelimit: Sliding-window issuance throttle.
 * - internal/delivery: Async dispatch of code and welcome emails.
 * - internal/store: Verification record and account persistence.
 */

package verification

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log"
	"math/big"
	"time"

	"github.com/john67k/zelle-style/internal/domain"
	"github.com/john67k/zelle-style/internal/ratelimit"
	"github.com/john67k/zelle-style/internal/store"
)

const (
	codeTTL          = 10 * time.Minute
	maxCheckAttempts = 3
	issueWindow      = time.Hour
	issueCeiling     = 3
)

var (
	// ErrCodeNotFound means no active code exists for the address.
	ErrCodeNotFound = errors.New("no active verification code for this address")
	// ErrCodeExpired means the code's ten minute lifetime has elapsed.
	ErrCodeExpired = errors.New("verification code has expired")
	// ErrTooManyAttempts means the attempt budget for this code is spent.
	ErrTooManyAttempts = errors.New("too many failed attempts, request a new code")
	// ErrInvalidCode means the submitted code does not match.
	ErrInvalidCode = errors.New("invalid verification code")
)

// Notifier dispatches a notification without blocking the caller.
type Notifier interface {
	Dispatch(msg domain.Message, notifType string)
}

// Manager issues and checks verification codes for account addresses.
type Manager struct {
	store    store.VerificationRepository
	accounts store.AccountRepository
	limiter  ratelimit.Limiter
	notifier Notifier
	now      func() time.Time
	generate func() (string, error)
}

// Option configures a Manager.
type Option func(*Manager)

// WithNow injects the time source; tests use a fixed clock.
func WithNow(now func() time.Time) Option { return func(m *Manager) { m.now = now } }

// WithCodeSource injects the code generator; tests use a fixed code.
func WithCodeSource(gen func() (string, error)) Option {
	return func(m *Manager) { m.generate = gen }
}

// NewManager creates a verification manager.
func NewManager(repo store.VerificationRepository, accounts store.AccountRepository, limiter ratelimit.Limiter, notifier Notifier, opts ...Option) *Manager {
	m := &Manager{
		store:    repo,
		accounts: accounts,
		limiter:  limiter,
		notifier: notifier,
		now:      func() time.Time { return time.Now().UTC() },
		generate: randomCode,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Issue generates a fresh code for the address, replacing any active one,
// and dispatches it by email. It returns the code's expiry. Issuance is
// throttled to three codes per address per hour; a throttled call returns
// ratelimit.ErrRateLimitExceeded without touching any stored code.
func (m *Manager) Issue(ctx context.Context, email, purpose string) (time.Time, error) {
	email = domain.NormalizeEmail(email)
	if purpose == "" {
		purpose = "verification"
	}

	key := fmt.Sprintf("%s:%s", email, purpose)
	if err := m.limiter.Check(ctx, key, issueWindow, issueCeiling); err != nil {
		return time.Time{}, err
	}

	code, err := m.generate()
	if err != nil {
		return time.Time{}, fmt.Errorf("generating verification code: %w", err)
	}

	expiresAt := m.now().Add(codeTTL)
	record := domain.VerificationRecord{
		Email:     email,
		Code:      code,
		ExpiresAt: expiresAt,
	}
	if err := m.store.SaveVerification(ctx, &record); err != nil {
		return time.Time{}, fmt.Errorf("saving verification code: %w", err)
	}

	m.notifier.Dispatch(codeMessage(email, code, expiresAt), domain.NotificationVerification)
	log.Printf("level=info component=verification msg=\"code issued\" email=%s purpose=%s expires_at=%s",
		email, purpose, expiresAt.Format(time.RFC3339))
	return expiresAt, nil
}

// Check validates a submitted code. On a match it consumes the code, marks
// the account verified, and dispatches a welcome notice. A wrong submission
// burns one of three attempts; the third wrong submission destroys the code.
func (m *Manager) Check(ctx context.Context, email, code string) error {
	email = domain.NormalizeEmail(email)

	record, err := m.store.FindVerification(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrVerificationNotFound) {
			return ErrCodeNotFound
		}
		return fmt.Errorf("loading verification code: %w", err)
	}

	if m.now().After(record.ExpiresAt) {
		m.discard(ctx, email)
		return ErrCodeExpired
	}
	if record.Attempts >= maxCheckAttempts {
		m.discard(ctx, email)
		return ErrTooManyAttempts
	}

	if record.Code != code {
		record.Attempts++
		if record.Attempts >= maxCheckAttempts {
			m.discard(ctx, email)
		} else if err := m.store.SaveVerification(ctx, record); err != nil {
			return fmt.Errorf("recording failed attempt: %w", err)
		}
		return ErrInvalidCode
	}

	m.discard(ctx, email)
	if err := m.accounts.MarkAccountVerified(ctx, email); err != nil {
		return fmt.Errorf("marking account verified: %w", err)
	}

	m.notifier.Dispatch(welcomeMessage(email), domain.NotificationWelcome)
	log.Printf("level=info component=verification msg=\"account verified\" email=%s", email)
	return nil
}

func (m *Manager) discard(ctx context.Context, email string) {
	if err := m.store.DeleteVerification(ctx, email); err != nil && !errors.Is(err, store.ErrVerificationNotFound) {
		log.Printf("level=error component=verification msg=\"code discard failed\" email=%s err=%v", email, err)
	}
}

// randomCode draws a uniform six digit code from crypto/rand.
func randomCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
