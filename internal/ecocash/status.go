package ecocash

import (
	"strings"

	"ecocash/internal/domain"
)

// NormalizeStatus maps the provider's status vocabulary onto the unified
// confirmation status. Unknown values are treated as still pending.
func NormalizeStatus(raw string) domain.ConfirmationStatus {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "SUCCESS", "SUCCESSFUL", "COMPLETED":
		return domain.ConfirmationSuccess
	case "FAILED", "FAILURE", "CANCELLED", "CANCELED", "DECLINED", "EXPIRED":
		return domain.ConfirmationFailed
	case "NOTFOUND", "NOT_FOUND", "404":
		return domain.ConfirmationNotFound
	default:
		return domain.ConfirmationPending
	}
}
