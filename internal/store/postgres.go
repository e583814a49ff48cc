/**
 * @description
 * PostgreSQL implementation of the Repository interface using pgx. The SQL
 * keeps the same contracts as the in-memory store: DebitBalance is a single
 * conditional UPDATE so the funds check and the debit cannot be split by a
 * concurrent writer, and delivery log attempt errors are stored as JSONB.
 *
 * @dependencies
 * - github.com/jackc/pgx/v5: The PostgreSQL driver and connection pool.
 * - internal/domain: Domain models mapped to rows.
 */

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/john67k/zelle-style/internal/domain"
)

// PostgresRepository is the database-backed Repository.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a repository over an existing pool.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// EnsureSchema creates the tables if they do not exist yet. Deployments with
// managed migrations can skip this; it keeps single-binary setups working.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS accounts (
			email       TEXT PRIMARY KEY,
			name        TEXT NOT NULL,
			verified    BOOLEAN NOT NULL DEFAULT FALSE,
			balance     BIGINT NOT NULL DEFAULT 0,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS verification_codes (
			email       TEXT PRIMARY KEY,
			code        TEXT NOT NULL,
			expires_at  TIMESTAMPTZ NOT NULL,
			attempts    INT NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS transactions (
			id              UUID PRIMARY KEY,
			sender_email    TEXT NOT NULL,
			sender_name     TEXT NOT NULL,
			recipient_email TEXT NOT NULL,
			recipient_name  TEXT NOT NULL,
			amount          BIGINT NOT NULL,
			note            TEXT NOT NULL DEFAULT '',
			status          TEXT NOT NULL,
			created_at      TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_sender ON transactions (sender_email, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_recipient ON transactions (recipient_email, created_at DESC)`,
		`CREATE TABLE IF NOT EXISTS delivery_logs (
			id           TEXT PRIMARY KEY,
			destination  TEXT NOT NULL,
			type         TEXT NOT NULL,
			created_at   TIMESTAMPTZ NOT NULL,
			attempts     INT NOT NULL,
			errors       JSONB NOT NULL DEFAULT '[]',
			outcome      TEXT NOT NULL,
			completed_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_delivery_logs_completed ON delivery_logs (completed_at DESC)`,
		`CREATE TABLE IF NOT EXISTS pending_retries (
			id       TEXT PRIMARY KEY,
			message  JSONB NOT NULL,
			type     TEXT NOT NULL,
			log      JSONB NOT NULL,
			parked_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	}
	for _, stmt := range statements {
		if _, err := r.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("schema bootstrap failed: %w", err)
		}
	}
	return nil
}

func (r *PostgresRepository) CreateAccount(ctx context.Context, account *domain.Account) error {
	query := `INSERT INTO accounts (email, name, verified, balance, created_at) VALUES ($1, $2, $3, $4, $5)`
	_, err := r.db.Exec(ctx, query,
		domain.NormalizeEmail(account.Email), account.Name, account.Verified, int64(account.Balance), account.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrAccountExists
		}
		return err
	}
	return nil
}

func (r *PostgresRepository) FindAccountByEmail(ctx context.Context, email string) (*domain.Account, error) {
	var account domain.Account
	var balance int64
	query := `SELECT email, name, verified, balance, created_at FROM accounts WHERE email = $1`
	err := r.db.QueryRow(ctx, query, domain.NormalizeEmail(email)).Scan(
		&account.Email, &account.Name, &account.Verified, &balance, &account.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	account.Balance = domain.Amount(balance)
	return &account, nil
}

func (r *PostgresRepository) MarkAccountVerified(ctx context.Context, email string) error {
	tag, err := r.db.Exec(ctx, `UPDATE accounts SET verified = TRUE WHERE email = $1`, domain.NormalizeEmail(email))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (r *PostgresRepository) DebitBalance(ctx context.Context, email string, amount domain.Amount) (domain.Amount, error) {
	var balance int64
	query := `UPDATE accounts SET balance = balance - $2 WHERE email = $1 AND balance >= $2 RETURNING balance`
	err := r.db.QueryRow(ctx, query, domain.NormalizeEmail(email), int64(amount)).Scan(&balance)
	if err == nil {
		return domain.Amount(balance), nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, err
	}
	// Distinguish a short balance from a missing account.
	if _, findErr := r.FindAccountByEmail(ctx, email); findErr != nil {
		return 0, findErr
	}
	return 0, ErrInsufficientFunds
}

func (r *PostgresRepository) CreditBalance(ctx context.Context, email string, amount domain.Amount) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE accounts SET balance = balance + $2 WHERE email = $1`,
		domain.NormalizeEmail(email), int64(amount))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (r *PostgresRepository) SaveVerification(ctx context.Context, record *domain.VerificationRecord) error {
	query := `
		INSERT INTO verification_codes (email, code, expires_at, attempts)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (email) DO UPDATE SET code = $2, expires_at = $3, attempts = $4`
	_, err := r.db.Exec(ctx, query,
		domain.NormalizeEmail(record.Email), record.Code, record.ExpiresAt, record.Attempts)
	return err
}

func (r *PostgresRepository) FindVerification(ctx context.Context, email string) (*domain.VerificationRecord, error) {
	var record domain.VerificationRecord
	query := `SELECT email, code, expires_at, attempts FROM verification_codes WHERE email = $1`
	err := r.db.QueryRow(ctx, query, domain.NormalizeEmail(email)).Scan(
		&record.Email, &record.Code, &record.ExpiresAt, &record.Attempts)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrVerificationNotFound
		}
		return nil, err
	}
	return &record, nil
}

func (r *PostgresRepository) DeleteVerification(ctx context.Context, email string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM verification_codes WHERE email = $1`, domain.NormalizeEmail(email))
	return err
}

func (r *PostgresRepository) CreateTransaction(ctx context.Context, tx *domain.Transaction) error {
	query := `
		INSERT INTO transactions (id, sender_email, sender_name, recipient_email, recipient_name, amount, note, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.db.Exec(ctx, query,
		tx.ID, domain.NormalizeEmail(tx.SenderEmail), tx.SenderName,
		domain.NormalizeEmail(tx.RecipientEmail), tx.RecipientName,
		int64(tx.Amount), tx.Note, tx.Status, tx.CreatedAt)
	return err
}

func (r *PostgresRepository) FindTransactionByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	var tx domain.Transaction
	var amount int64
	query := `
		SELECT id, sender_email, sender_name, recipient_email, recipient_name, amount, note, status, created_at
		FROM transactions WHERE id = $1`
	err := r.db.QueryRow(ctx, query, id).Scan(
		&tx.ID, &tx.SenderEmail, &tx.SenderName, &tx.RecipientEmail, &tx.RecipientName,
		&amount, &tx.Note, &tx.Status, &tx.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	tx.Amount = domain.Amount(amount)
	return &tx, nil
}

func (r *PostgresRepository) ListTransactionsByEmail(ctx context.Context, email string) ([]domain.Transaction, error) {
	query := `
		SELECT id, sender_email, sender_name, recipient_email, recipient_name, amount, note, status, created_at
		FROM transactions
		WHERE sender_email = $1 OR recipient_email = $1
		ORDER BY created_at DESC`
	rows, err := r.db.Query(ctx, query, domain.NormalizeEmail(email))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Transaction
	for rows.Next() {
		var tx domain.Transaction
		var amount int64
		if err := rows.Scan(&tx.ID, &tx.SenderEmail, &tx.SenderName, &tx.RecipientEmail, &tx.RecipientName,
			&amount, &tx.Note, &tx.Status, &tx.CreatedAt); err != nil {
			return nil, err
		}
		tx.Amount = domain.Amount(amount)
		out = append(out, tx)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) AppendDeliveryLog(ctx context.Context, log *domain.DeliveryLog) error {
	errorsJSON, err := json.Marshal(log.Errors)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO delivery_logs (id, destination, type, created_at, attempts, errors, outcome, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err = r.db.Exec(ctx, query,
		log.ID, log.Destination, log.Type, log.CreatedAt, log.Attempts, errorsJSON, log.Outcome, log.CompletedAt)
	return err
}

func (r *PostgresRepository) ListDeliveryLogs(ctx context.Context, limit int) ([]domain.DeliveryLog, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT id, destination, type, created_at, attempts, errors, outcome, completed_at
		FROM delivery_logs ORDER BY completed_at DESC LIMIT $1`
	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.DeliveryLog
	for rows.Next() {
		var entry domain.DeliveryLog
		var errorsJSON []byte
		if err := rows.Scan(&entry.ID, &entry.Destination, &entry.Type, &entry.CreatedAt,
			&entry.Attempts, &errorsJSON, &entry.Outcome, &entry.CompletedAt); err != nil {
			return nil, err
		}
		if len(errorsJSON) > 0 {
			if err := json.Unmarshal(errorsJSON, &entry.Errors); err != nil {
				return nil, err
			}
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) SavePendingRetry(ctx context.Context, entry *domain.PendingRetry) error {
	messageJSON, err := json.Marshal(entry.Message)
	if err != nil {
		return err
	}
	logJSON, err := json.Marshal(entry.Log)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO pending_retries (id, message, type, log)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET message = $2, type = $3, log = $4`
	_, err = r.db.Exec(ctx, query, entry.ID, messageJSON, entry.Type, logJSON)
	return err
}

func (r *PostgresRepository) FindPendingRetry(ctx context.Context, id string) (*domain.PendingRetry, error) {
	var entry domain.PendingRetry
	var messageJSON, logJSON []byte
	query := `SELECT id, message, type, log FROM pending_retries WHERE id = $1`
	err := r.db.QueryRow(ctx, query, id).Scan(&entry.ID, &messageJSON, &entry.Type, &logJSON)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPendingRetryNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(messageJSON, &entry.Message); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(logJSON, &entry.Log); err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *PostgresRepository) DeletePendingRetry(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM pending_retries WHERE id = $1`, id)
	return err
}

func (r *PostgresRepository) ListPendingRetries(ctx context.Context) ([]domain.PendingRetry, error) {
	query := `SELECT id, message, type, log FROM pending_retries ORDER BY parked_at ASC`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.PendingRetry
	for rows.Next() {
		var entry domain.PendingRetry
		var messageJSON, logJSON []byte
		if err := rows.Scan(&entry.ID, &messageJSON, &entry.Type, &logJSON); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(messageJSON, &entry.Message); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(logJSON, &entry.Log); err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) CountPendingRetries(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT count(*) FROM pending_retries`).Scan(&count)
	return count, err
}
