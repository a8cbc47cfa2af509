package postgres

import (
	"context"
	"database/sql"

	"ecocash/internal/repository"
)

// Transactor runs work inside a PostgreSQL transaction.
type Transactor struct {
	db *sql.DB
}

// NewTransactor creates a new Transactor.
func NewTransactor(db *sql.DB) *Transactor {
	return &Transactor{db: db}
}

// WithinTx begins a transaction, hands transaction-scoped repositories to fn,
// and commits when fn succeeds.
func (t *Transactor) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) (err error) {
	sqlTx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			_ = sqlTx.Rollback()
		}
	}()

	if err = fn(ctx, &txRepositories{tx: sqlTx}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

type txRepositories struct {
	tx *sql.Tx
}

func (r *txRepositories) Orders() repository.OrderRepository {
	return NewOrderRepositoryWithTx(r.tx)
}

func (r *txRepositories) Attempts() repository.PaymentAttemptRepository {
	return NewPaymentAttemptRepositoryWithTx(r.tx)
}

func (r *txRepositories) Inventory() repository.InventoryRepository {
	return NewInventoryRepositoryWithTx(r.tx)
}

func (r *txRepositories) Carts() repository.CartRepository {
	return NewCartRepositoryWithTx(r.tx)
}

// Ensure Transactor implements repository.Transactor.
var _ repository.Transactor = (*Transactor)(nil)
