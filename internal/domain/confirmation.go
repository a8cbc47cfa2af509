package domain

// ConfirmationStatus is the provider outcome as seen by the reconciler.
// Both the lookup API and the callback are normalized into it.
type ConfirmationStatus string

const (
	ConfirmationPending  ConfirmationStatus = "PENDING"
	ConfirmationSuccess  ConfirmationStatus = "SUCCESS"
	ConfirmationFailed   ConfirmationStatus = "FAILED"
	ConfirmationNotFound ConfirmationStatus = "NOTFOUND"
)

// IsFinal reports whether polling can stop on this status.
func (s ConfirmationStatus) IsFinal() bool {
	return s == ConfirmationSuccess || s == ConfirmationFailed
}

// Channel identifies how a confirmation reached the reconciler.
type Channel string

const (
	ChannelLookup  Channel = "lookup"
	ChannelWebhook Channel = "webhook"
)
