/**
 * @description
 * Account onboarding. Registration creates an unverified account with a
 * zero balance and kicks off email verification. The account cannot send
 * money until the verification code check succeeds.
 *
 * @dependencies
 * - internal/store: Account persistence.
 * - internal/verification: Code issuance on signup.
 */

package app

import (
	"context"
	"errors"
	"log"
	"net/mail"
	"strings"
	"time"

	"github.com/john67k/zelle-style/internal/domain"
	"github.com/john67k/zelle-style/internal/store"
)

// ErrInvalidEmail means the submitted address is not a usable email.
var ErrInvalidEmail = errors.New("invalid email address")

// CodeIssuer starts a verification cycle for an address.
type CodeIssuer interface {
	Issue(ctx context.Context, email, purpose string) (time.Time, error)
}

// Accounts handles onboarding.
type Accounts struct {
	store    store.AccountRepository
	verifier CodeIssuer
}

// NewAccounts creates the onboarding service.
func NewAccounts(repo store.AccountRepository, verifier CodeIssuer) *Accounts {
	return &Accounts{store: repo, verifier: verifier}
}

// Register creates an unverified account and issues the first verification
// code. Issuance failure does not fail registration; the user can request a
// new code.
func (a *Accounts) Register(ctx context.Context, email, name string) (*domain.Account, error) {
	email = domain.NormalizeEmail(email)
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, ErrInvalidEmail
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = domain.DisplayNameForEmail(email)
	}

	account := domain.Account{
		Email:     email,
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	if err := a.store.CreateAccount(ctx, &account); err != nil {
		return nil, err
	}

	if _, err := a.verifier.Issue(ctx, email, "signup"); err != nil {
		log.Printf("level=warn component=accounts msg=\"signup code issuance failed\" email=%s err=%v", email, err)
	}

	log.Printf("level=info component=accounts msg=\"account registered\" email=%s", email)
	return &account, nil
}

// Lookup returns the account for an address.
func (a *Accounts) Lookup(ctx context.Context, email string) (*domain.Account, error) {
	return a.store.FindAccountByEmail(ctx, domain.NormalizeEmail(email))
}
