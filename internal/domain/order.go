package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus represents the storefront status of an order.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusFailed     OrderStatus = "failed"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// IsPaid reports whether the order has been paid for.
func (s OrderStatus) IsPaid() bool {
	return s == OrderStatusProcessing || s == OrderStatusCompleted
}

// Order metadata keys written by the gateway.
const (
	MetaSourceReference = "_ecocash_source_reference"
	MetaMSISDN          = "_ecocash_msisdn"
	MetaCartSession     = "_ecocash_cart_session"
)

// LineItem is a product line on an order.
type LineItem struct {
	ProductID string
	Quantity  int
}

// Order is the storefront order a payment attempt belongs to.
type Order struct {
	ID        string
	Status    OrderStatus
	Total     decimal.Decimal
	Currency  string
	Items     []LineItem
	CreatedAt time.Time
	UpdatedAt time.Time
}

// OrderNote is an audit trail entry attached to an order.
type OrderNote struct {
	OrderID   string
	Note      string
	CreatedAt time.Time
}
