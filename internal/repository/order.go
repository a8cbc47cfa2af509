package repository

import (
	"context"

	"ecocash/internal/domain"
)

// OrderRepository is the narrow view of the storefront order subsystem.
type OrderRepository interface {
	// GetByID retrieves an order with its line items.
	GetByID(ctx context.Context, id string) (*domain.Order, error)

	// TransitionStatus sets the order status to `to` only if it is currently `from`,
	// and appends note to the audit trail when it does.
	// Returns false if the order was not in the expected status.
	TransitionStatus(ctx context.Context, id string, from, to domain.OrderStatus, note string) (bool, error)

	// AddNote appends an entry to the order's audit trail.
	AddNote(ctx context.Context, id string, note string) error

	// GetMeta returns a metadata value, or "" if unset.
	GetMeta(ctx context.Context, id, key string) (string, error)

	// SetMeta writes a metadata value, replacing any previous one.
	SetMeta(ctx context.Context, id, key, value string) error
}

// InventoryRepository adjusts stock levels.
type InventoryRepository interface {
	// DecrementForOrder reduces stock by the quantities on the order's line items.
	DecrementForOrder(ctx context.Context, orderID string) error
}

// CartRepository manages shopping cart sessions.
type CartRepository interface {
	// Clear empties the cart for a session. Clearing an unknown session is not an error.
	Clear(ctx context.Context, sessionID string) error
}
