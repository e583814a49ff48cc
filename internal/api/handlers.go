/**
 * @description
 * This file contains the HTTP handlers for the public API endpoints.
 * Handlers parse incoming requests, call the appropriate service methods,
 * and map service errors to HTTP status codes. They act as the bridge
 * between the web layer and the business logic layer.
 *
 * @dependencies
 * - encoding/json, log, net/http: Standard Go libraries.
 * - internal/app, internal/domain, internal/ledger, internal/store,
 *   internal/verification, internal/ratelimit: Service logic, models, and
 *   custom errors.
 */

package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/john67k/zelle-style/internal/app"
	"github.com/john67k/zelle-style/internal/domain"
	"github.com/john67k/zelle-style/internal/ledger"
	"github.com/john67k/zelle-style/internal/ratelimit"
	"github.com/john67k/zelle-style/internal/store"
	"github.com/john67k/zelle-style/internal/verification"
)

// Handlers holds the application services that handlers will use.
type Handlers struct {
	accounts *app.Accounts
	verifier *verification.Manager
	ledger   *ledger.Service
	admin    *app.Admin
}

// NewHandlers creates a new instance of Handlers.
func NewHandlers(accounts *app.Accounts, verifier *verification.Manager, ledgerSvc *ledger.Service, admin *app.Admin) *Handlers {
	return &Handlers{accounts: accounts, verifier: verifier, ledger: ledgerSvc, admin: admin}
}

type registerRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

type accountResponse struct {
	Email    string        `json:"email"`
	Name     string        `json:"name"`
	Verified bool          `json:"verified"`
	Balance  domain.Amount `json:"balance"`
}

// RegisterHandler creates a new unverified account.
func (h *Handlers) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	account, err := h.accounts.Register(r.Context(), req.Email, req.Name)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidEmail):
			h.writeError(w, http.StatusBadRequest, "Invalid email address")
		case errors.Is(err, store.ErrAccountExists):
			h.writeError(w, http.StatusConflict, "An account with this email already exists")
		default:
			log.Printf("level=error component=api endpoint=register err=%v", err)
			h.writeError(w, http.StatusInternalServerError, "Could not create account")
		}
		return
	}

	h.writeJSON(w, http.StatusCreated, accountResponse{
		Email:    account.Email,
		Name:     account.Name,
		Verified: account.Verified,
		Balance:  account.Balance,
	})
}

type issueCodeRequest struct {
	Email string `json:"email"`
}

// IssueCodeHandler sends a fresh verification code to an address.
func (h *Handlers) IssueCodeHandler(w http.ResponseWriter, r *http.Request) {
	var req issueCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	expiresAt, err := h.verifier.Issue(r.Context(), req.Email, "verification")
	if err != nil {
		if errors.Is(err, ratelimit.ErrRateLimitExceeded) {
			h.writeError(w, http.StatusTooManyRequests, "Too many codes requested. Please wait before trying again.")
			return
		}
		log.Printf("level=error component=api endpoint=issue_code err=%v", err)
		h.writeError(w, http.StatusInternalServerError, "Could not issue verification code")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{
		"message":    "Verification code sent",
		"expires_at": expiresAt.Format(time.RFC3339),
	})
}

type checkCodeRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

// CheckCodeHandler validates a submitted verification code.
func (h *Handlers) CheckCodeHandler(w http.ResponseWriter, r *http.Request) {
	var req checkCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.verifier.Check(r.Context(), req.Email, req.Code); err != nil {
		switch {
		case errors.Is(err, verification.ErrCodeNotFound):
			h.writeError(w, http.StatusNotFound, "No active verification code. Request a new one.")
		case errors.Is(err, verification.ErrCodeExpired):
			h.writeError(w, http.StatusGone, "Verification code has expired. Request a new one.")
		case errors.Is(err, verification.ErrTooManyAttempts):
			h.writeError(w, http.StatusTooManyRequests, "Too many failed attempts. Request a new code.")
		case errors.Is(err, verification.ErrInvalidCode):
			h.writeError(w, http.StatusUnauthorized, "Invalid verification code")
		default:
			log.Printf("level=error component=api endpoint=check_code err=%v", err)
			h.writeError(w, http.StatusInternalServerError, "Could not verify code")
		}
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"message": "Email verified"})
}

type transferRequest struct {
	Recipient string `json:"recipient"`
	Amount    string `json:"amount"`
	Note      string `json:"note"`
}

type transferResponse struct {
	TransactionID string         `json:"transaction_id"`
	Status        string         `json:"status"`
	Amount        domain.Amount  `json:"amount"`
	Balance       *domain.Amount `json:"balance,omitempty"`
	Message       string         `json:"message"`
}

// SendHandler moves funds from the authenticated caller to a recipient.
func (h *Handlers) SendHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := GetUserEmail(r.Context())
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "Could not get user from context")
		return
	}

	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	amount, err := domain.ParseAmount(req.Amount)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid amount")
		return
	}

	tx, balance, err := h.ledger.Send(r.Context(), caller, req.Recipient, amount, req.Note)
	if err != nil {
		h.writeLedgerError(w, "send", err)
		return
	}

	h.writeJSON(w, http.StatusCreated, transferResponse{
		TransactionID: tx.ID.String(),
		Status:        tx.Status,
		Amount:        tx.Amount,
		Balance:       &balance,
		Message:       "Transfer completed",
	})
}

// RequestHandler records a pending money request from the caller.
func (h *Handlers) RequestHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := GetUserEmail(r.Context())
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "Could not get user from context")
		return
	}

	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	amount, err := domain.ParseAmount(req.Amount)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid amount")
		return
	}

	tx, err := h.ledger.Request(r.Context(), caller, req.Recipient, amount, req.Note)
	if err != nil {
		h.writeLedgerError(w, "request", err)
		return
	}

	h.writeJSON(w, http.StatusCreated, transferResponse{
		TransactionID: tx.ID.String(),
		Status:        tx.Status,
		Amount:        tx.Amount,
		Message:       "Money request recorded",
	})
}

// HistoryHandler lists the caller's transactions, newest first.
func (h *Handlers) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := GetUserEmail(r.Context())
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "Could not get user from context")
		return
	}

	views, err := h.ledger.History(r.Context(), caller)
	if err != nil {
		log.Printf("level=error component=api endpoint=history caller=%s err=%v", caller, err)
		h.writeError(w, http.StatusInternalServerError, "Could not load history")
		return
	}

	h.writeJSON(w, http.StatusOK, views)
}

// GetTransactionHandler returns one transaction from the caller's point of view.
func (h *Handlers) GetTransactionHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := GetUserEmail(r.Context())
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "Could not get user from context")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid transaction id")
		return
	}

	view, err := h.ledger.Get(r.Context(), caller, id)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrTransactionNotFound):
			h.writeError(w, http.StatusNotFound, "Transaction not found")
		case errors.Is(err, ledger.ErrAccessDenied):
			h.writeError(w, http.StatusForbidden, "You are not a participant of this transaction")
		default:
			log.Printf("level=error component=api endpoint=get_transaction caller=%s err=%v", caller, err)
			h.writeError(w, http.StatusInternalServerError, "Could not load transaction")
		}
		return
	}

	h.writeJSON(w, http.StatusOK, view)
}

// MeHandler returns the caller's own account.
func (h *Handlers) MeHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := GetUserEmail(r.Context())
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "Could not get user from context")
		return
	}

	account, err := h.accounts.Lookup(r.Context(), caller)
	if err != nil {
		if errors.Is(err, store.ErrAccountNotFound) {
			h.writeError(w, http.StatusNotFound, "Account not found")
			return
		}
		log.Printf("level=error component=api endpoint=me caller=%s err=%v", caller, err)
		h.writeError(w, http.StatusInternalServerError, "Could not load account")
		return
	}

	h.writeJSON(w, http.StatusOK, accountResponse{
		Email:    account.Email,
		Name:     account.Name,
		Verified: account.Verified,
		Balance:  account.Balance,
	})
}

func (h *Handlers) writeLedgerError(w http.ResponseWriter, endpoint string, err error) {
	switch {
	case errors.Is(err, ledger.ErrInvalidAmount):
		h.writeError(w, http.StatusBadRequest, "Amount must be positive")
	case errors.Is(err, store.ErrAccountNotFound):
		h.writeError(w, http.StatusNotFound, "Account not found")
	case errors.Is(err, ledger.ErrEmailNotVerified):
		h.writeError(w, http.StatusForbidden, "Verify your email before sending or requesting money")
	case errors.Is(err, store.ErrInsufficientFunds):
		h.writeError(w, http.StatusUnprocessableEntity, "Insufficient funds")
	default:
		log.Printf("level=error component=api endpoint=%s err=%v", endpoint, err)
		h.writeError(w, http.StatusInternalServerError, "Transfer failed")
	}
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("level=error component=api msg=\"response encode failed\" err=%v", err)
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
