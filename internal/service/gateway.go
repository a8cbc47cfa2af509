package service

import (
	"context"
	"net/url"
	"time"

	"ecocash/internal/ecocash"
)

// GatewayID identifies the EcoCash gateway to storefront clients.
const GatewayID = "ecocash"

// Provider is the subset of the EcoCash API the services depend on.
type Provider interface {
	InitiatePayment(ctx context.Context, req ecocash.PaymentRequest) (*ecocash.Response, error)
	LookupTransaction(ctx context.Context, req ecocash.LookupRequest) (*ecocash.LookupResult, error)
}

// PollSettings tells clients how to poll for confirmation.
type PollSettings struct {
	InitialDelay time.Duration
	Interval     time.Duration
	MaxDuration  time.Duration
}

// GatewayConfig holds the gateway settings shared by the payment services.
type GatewayConfig struct {
	Enabled          bool
	Title            string
	Sandbox          bool
	Currency         string
	VerifyCallbacks  bool
	WaitingURL       string
	OrderReceivedURL string
	OrderHistoryURL  string
	Poll             PollSettings
}

// WaitingRedirect builds the waiting view URL for an order.
func (c GatewayConfig) WaitingRedirect(orderID, reference string) string {
	return withQuery(c.WaitingURL, url.Values{
		"order_id":        {orderID},
		"sourceReference": {reference},
	})
}

// OrderReceivedRedirect builds the confirmation view URL for a paid order.
func (c GatewayConfig) OrderReceivedRedirect(orderID string) string {
	return withQuery(c.OrderReceivedURL, url.Values{"order_id": {orderID}})
}

// RecoveryRedirect is where buyers are sent after a failed or timed out payment.
func (c GatewayConfig) RecoveryRedirect() string {
	return c.OrderHistoryURL
}

func withQuery(base string, values url.Values) string {
	u, err := url.Parse(base)
	if err != nil {
		return base + "?" + values.Encode()
	}

	q := u.Query()
	for k, v := range values {
		q[k] = v
	}
	u.RawQuery = q.Encode()

	return u.String()
}
