package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"ecocash/internal/repository"
	"ecocash/internal/service"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// respondError sends an error response with the appropriate HTTP status code.
func respondError(c *gin.Context, err error) {
	code := mapErrorToHTTPStatus(err)
	c.JSON(code, ErrorResponse{Error: publicMessage(code, err)})
}

// respondJSON sends a JSON response with the given status code.
func respondJSON(c *gin.Context, code int, data any) {
	c.JSON(code, data)
}

// mapErrorToHTTPStatus maps service/repository errors to HTTP status codes.
func mapErrorToHTTPStatus(err error) int {
	switch {
	// Not found errors
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound

	// Validation errors - Bad Request
	case errors.Is(err, service.ErrInvalidPhoneNumber),
		errors.Is(err, service.ErrInvalidOrderID),
		errors.Is(err, service.ErrInvalidReference):
		return http.StatusBadRequest

	// Conflict errors
	case errors.Is(err, service.ErrOrderAlreadyPaid),
		errors.Is(err, service.ErrOrderNotPayable),
		errors.Is(err, repository.ErrDuplicateReference):
		return http.StatusConflict

	// Service unavailable
	case errors.Is(err, service.ErrGatewayDisabled):
		return http.StatusServiceUnavailable

	// Default to internal server error
	default:
		return http.StatusInternalServerError
	}
}

// publicMessage hides internal error detail from clients.
func publicMessage(code int, err error) string {
	if code == http.StatusInternalServerError {
		return "internal error"
	}
	return err.Error()
}
