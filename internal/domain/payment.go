package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// AttemptStatus represents the lifecycle of a payment attempt.
type AttemptStatus string

const (
	AttemptStatusInitiated AttemptStatus = "INITIATED"
	AttemptStatusPending   AttemptStatus = "PENDING"
	AttemptStatusConfirmed AttemptStatus = "CONFIRMED"
	AttemptStatusFailed    AttemptStatus = "FAILED"
)

// PaymentAttempt is one EcoCash C2B payment request for an order.
// Reference is the sole join key between the order and the provider transaction.
type PaymentAttempt struct {
	Reference        string
	OrderID          string
	MSISDN           string
	Amount           decimal.Decimal
	Currency         string
	Reason           string
	Status           AttemptStatus
	ConfirmedVia     Channel
	ProviderResponse json.RawMessage
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
