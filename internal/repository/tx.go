package repository

import "context"

// Tx exposes repositories bound to a single database transaction.
type Tx interface {
	Orders() OrderRepository
	Attempts() PaymentAttemptRepository
	Inventory() InventoryRepository
	Carts() CartRepository
}

// Transactor runs fn inside a transaction.
// The transaction commits if fn returns nil and rolls back otherwise.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
