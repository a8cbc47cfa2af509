package ecocash

import "errors"

var (
	// ErrProviderUnreachable is returned when the EcoCash API cannot be reached.
	ErrProviderUnreachable = errors.New("ecocash provider unreachable")

	// ErrProviderTimeout is returned when the EcoCash API does not answer in time.
	ErrProviderTimeout = errors.New("ecocash provider timeout")

	// ErrUnexpectedStatus is returned for non-2xx responses.
	ErrUnexpectedStatus = errors.New("ecocash provider returned unexpected status")

	// ErrMalformedResponse is returned when a response body cannot be parsed.
	ErrMalformedResponse = errors.New("ecocash provider returned malformed response")

	// ErrTransactionNotFound is returned when the provider has no transaction for the reference.
	ErrTransactionNotFound = errors.New("ecocash transaction not found")
)
