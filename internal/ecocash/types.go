package ecocash

import (
	"encoding/json"

	"ecocash/internal/domain"
)

// PaymentRequest is the C2B instant payment body.
type PaymentRequest struct {
	CustomerMSISDN  string      `json:"customerMsisdn"`
	Amount          json.Number `json:"amount"`
	Reason          string      `json:"reason"`
	Currency        string      `json:"currency"`
	SourceReference string      `json:"sourceReference"`
}

// LookupRequest is the C2B transaction status body.
type LookupRequest struct {
	SourceMobileNumber string `json:"sourceMobileNumber"`
	SourceReference    string `json:"sourceReference"`
}

// Response is a raw provider response kept for audit.
type Response struct {
	StatusCode int
	Body       json.RawMessage
}

// LookupResult is the normalized outcome of a transaction status call.
type LookupResult struct {
	Status         domain.ConfirmationStatus
	ProviderStatus string
	Response       Response
}

// Callback is the body EcoCash posts to the notification URL.
// Only SourceReference is guaranteed; the status fields vary between API versions.
type Callback struct {
	SourceReference       string `json:"sourceReference"`
	TransactionStatus     string `json:"transactionStatus,omitempty"`
	Status                string `json:"status,omitempty"`
	EcocashReference      string `json:"ecocashReference,omitempty"`
	TransactionOperatorID string `json:"transactionOperatorId,omitempty"`
}

// ProviderStatus returns whichever status field the callback carried.
func (c Callback) ProviderStatus() string {
	if c.TransactionStatus != "" {
		return c.TransactionStatus
	}
	return c.Status
}

type lookupBody struct {
	Status            string `json:"status"`
	TransactionStatus string `json:"transactionStatus"`
}
