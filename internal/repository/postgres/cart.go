package postgres

import (
	"context"
	"database/sql"

	"ecocash/internal/repository"
)

// CartRepository is a PostgreSQL implementation of repository.CartRepository.
type CartRepository struct {
	q Querier
}

// NewCartRepository creates a new PostgreSQL cart repository.
func NewCartRepository(db *sql.DB) *CartRepository {
	return &CartRepository{q: db}
}

// NewCartRepositoryWithTx creates a cart repository using a transaction.
func NewCartRepositoryWithTx(tx *sql.Tx) *CartRepository {
	return &CartRepository{q: tx}
}

// Clear empties the cart for a session.
func (r *CartRepository) Clear(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}

	_, err := r.q.ExecContext(ctx, `DELETE FROM cart_items WHERE session_id = $1`, sessionID)
	return err
}

// Ensure CartRepository implements repository.CartRepository.
var _ repository.CartRepository = (*CartRepository)(nil)
