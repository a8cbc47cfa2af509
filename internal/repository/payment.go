package repository

import (
	"context"
	"encoding/json"

	"ecocash/internal/domain"
)

// PaymentAttemptRepository defines the persistence operations for payment attempts.
type PaymentAttemptRepository interface {
	// Create persists a new payment attempt.
	// Returns ErrDuplicateReference if the reference already exists.
	Create(ctx context.Context, attempt *domain.PaymentAttempt) error

	// GetByReference retrieves an attempt by its correlation reference.
	GetByReference(ctx context.Context, reference string) (*domain.PaymentAttempt, error)

	// GetLatestByOrderID retrieves the most recent attempt for an order.
	GetLatestByOrderID(ctx context.Context, orderID string) (*domain.PaymentAttempt, error)

	// TransitionStatus moves an attempt from one status to another.
	// Returns false if the attempt was not in the expected status.
	TransitionStatus(ctx context.Context, reference string, from, to domain.AttemptStatus, channel domain.Channel) (bool, error)

	// SaveProviderResponse stores the raw provider response for audit.
	SaveProviderResponse(ctx context.Context, reference string, response json.RawMessage) error
}
