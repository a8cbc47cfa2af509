package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/lib/pq"

	"ecocash/internal/domain"
	"ecocash/internal/repository"
)

const uniqueViolation = "23505"

// PaymentAttemptRepository is a PostgreSQL implementation of repository.PaymentAttemptRepository.
type PaymentAttemptRepository struct {
	q Querier
}

// NewPaymentAttemptRepository creates a new PostgreSQL payment attempt repository.
func NewPaymentAttemptRepository(db *sql.DB) *PaymentAttemptRepository {
	return &PaymentAttemptRepository{q: db}
}

// NewPaymentAttemptRepositoryWithTx creates a payment attempt repository using a transaction.
func NewPaymentAttemptRepositoryWithTx(tx *sql.Tx) *PaymentAttemptRepository {
	return &PaymentAttemptRepository{q: tx}
}

const attemptColumns = `reference, order_id, msisdn, amount, currency, reason, status, confirmed_via, provider_response, created_at, updated_at`

// Create persists a new payment attempt.
func (r *PaymentAttemptRepository) Create(ctx context.Context, a *domain.PaymentAttempt) error {
	query := `
		INSERT INTO payment_attempts (reference, order_id, msisdn, amount, currency, reason, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
	`

	_, err := r.q.ExecContext(ctx, query,
		a.Reference,
		a.OrderID,
		a.MSISDN,
		a.Amount,
		a.Currency,
		a.Reason,
		a.Status,
		a.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return repository.ErrDuplicateReference
		}
		return err
	}

	return nil
}

// GetByReference retrieves an attempt by its correlation reference.
func (r *PaymentAttemptRepository) GetByReference(ctx context.Context, reference string) (*domain.PaymentAttempt, error) {
	query := `SELECT ` + attemptColumns + ` FROM payment_attempts WHERE reference = $1`
	return r.scanOne(r.q.QueryRowContext(ctx, query, reference))
}

// GetLatestByOrderID retrieves the most recent attempt for an order.
func (r *PaymentAttemptRepository) GetLatestByOrderID(ctx context.Context, orderID string) (*domain.PaymentAttempt, error) {
	query := `
		SELECT ` + attemptColumns + `
		FROM payment_attempts
		WHERE order_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`
	return r.scanOne(r.q.QueryRowContext(ctx, query, orderID))
}

// TransitionStatus moves an attempt from one status to another.
func (r *PaymentAttemptRepository) TransitionStatus(ctx context.Context, reference string, from, to domain.AttemptStatus, channel domain.Channel) (bool, error) {
	query := `
		UPDATE payment_attempts
		SET status = $1, confirmed_via = NULLIF($2, ''), updated_at = NOW()
		WHERE reference = $3 AND status = $4
	`

	result, err := r.q.ExecContext(ctx, query, to, string(channel), reference, from)
	if err != nil {
		return false, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return rowsAffected == 1, nil
}

// SaveProviderResponse stores the raw provider response for audit.
func (r *PaymentAttemptRepository) SaveProviderResponse(ctx context.Context, reference string, response json.RawMessage) error {
	var body sql.NullString
	if len(response) > 0 && json.Valid(response) {
		body = sql.NullString{String: string(response), Valid: true}
	}

	query := `UPDATE payment_attempts SET provider_response = $1::jsonb, updated_at = NOW() WHERE reference = $2`

	result, err := r.q.ExecContext(ctx, query, body, reference)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return repository.ErrNotFound
	}

	return nil
}

func (r *PaymentAttemptRepository) scanOne(row *sql.Row) (*domain.PaymentAttempt, error) {
	var a domain.PaymentAttempt
	var confirmedVia sql.NullString
	var providerResponse []byte

	err := row.Scan(
		&a.Reference,
		&a.OrderID,
		&a.MSISDN,
		&a.Amount,
		&a.Currency,
		&a.Reason,
		&a.Status,
		&confirmedVia,
		&providerResponse,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	a.ConfirmedVia = domain.Channel(confirmedVia.String)
	a.ProviderResponse = providerResponse

	return &a, nil
}

// Ensure PaymentAttemptRepository implements repository.PaymentAttemptRepository.
var _ repository.PaymentAttemptRepository = (*PaymentAttemptRepository)(nil)
