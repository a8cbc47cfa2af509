package postgres

import (
	"context"
	"database/sql"

	"ecocash/internal/repository"
)

// InventoryRepository is a PostgreSQL implementation of repository.InventoryRepository.
type InventoryRepository struct {
	q Querier
}

// NewInventoryRepository creates a new PostgreSQL inventory repository.
func NewInventoryRepository(db *sql.DB) *InventoryRepository {
	return &InventoryRepository{q: db}
}

// NewInventoryRepositoryWithTx creates an inventory repository using a transaction.
func NewInventoryRepositoryWithTx(tx *sql.Tx) *InventoryRepository {
	return &InventoryRepository{q: tx}
}

// DecrementForOrder reduces stock by the quantities on the order's line items.
// Products that do not track stock (NULL stock) are left alone.
func (r *InventoryRepository) DecrementForOrder(ctx context.Context, orderID string) error {
	query := `
		UPDATE products p
		SET stock = p.stock - oi.quantity
		FROM order_items oi
		WHERE oi.order_id = $1 AND oi.product_id = p.id AND p.stock IS NOT NULL
	`

	_, err := r.q.ExecContext(ctx, query, orderID)
	return err
}

// Ensure InventoryRepository implements repository.InventoryRepository.
var _ repository.InventoryRepository = (*InventoryRepository)(nil)
