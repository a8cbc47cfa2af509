package validation

// InitiatePaymentRequest is the payload for POST /v1/payments/ecocash.
type InitiatePaymentRequest struct {
	OrderID       string `json:"order_id" validate:"required"`
	MSISDN        string `json:"msisdn" validate:"required,msisdn"`
	CartSessionID string `json:"cart_session_id,omitempty"`
}
