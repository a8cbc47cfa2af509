package service

import "errors"

var (
	// ErrInvalidPhoneNumber is returned when an MSISDN cannot be normalized to the canonical form.
	ErrInvalidPhoneNumber = errors.New("invalid phone number")

	// ErrEntropySourceUnavailable is returned when the secure random source cannot be read.
	ErrEntropySourceUnavailable = errors.New("entropy source unavailable")

	// ErrGatewayDisabled is returned when the EcoCash gateway is switched off.
	ErrGatewayDisabled = errors.New("ecocash gateway disabled")

	// ErrInvalidOrderID is returned when order ID is empty.
	ErrInvalidOrderID = errors.New("invalid order id")

	// ErrOrderAlreadyPaid is returned when initiating payment for an order that is already paid.
	ErrOrderAlreadyPaid = errors.New("order already paid")

	// ErrOrderNotPayable is returned when the order is in a state that cannot accept payment.
	ErrOrderNotPayable = errors.New("order cannot be paid in current state")

	// ErrInvalidReference is returned when a callback carries no source reference.
	ErrInvalidReference = errors.New("invalid source reference")
)
