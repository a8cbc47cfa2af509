package handler

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"

	"ecocash/internal/ecocash"
	"ecocash/internal/service"
	"ecocash/internal/validation"
)

// PaymentHandler handles HTTP requests for EcoCash payments.
type PaymentHandler struct {
	cfg        service.GatewayConfig
	initiator  *service.InitiatorService
	reconciler *service.ReconcilerService
	validate   *validatorv10.Validate
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(cfg service.GatewayConfig, initiator *service.InitiatorService, reconciler *service.ReconcilerService) *PaymentHandler {
	return &PaymentHandler{
		cfg:        cfg,
		initiator:  initiator,
		reconciler: reconciler,
		validate:   validation.New(),
	}
}

// GatewayResponse describes the gateway to checkout clients.
type GatewayResponse struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Enabled bool   `json:"enabled"`
	Sandbox bool   `json:"sandbox"`
}

// PollResponse tells the waiting view how to poll.
type PollResponse struct {
	InitialDelayMS int64 `json:"initial_delay_ms"`
	IntervalMS     int64 `json:"interval_ms"`
	MaxDurationMS  int64 `json:"max_duration_ms"`
}

// InitiatePaymentResponse is the HTTP response for initiating a payment.
type InitiatePaymentResponse struct {
	Result          string       `json:"result"`
	OrderID         string       `json:"order_id"`
	SourceReference string       `json:"source_reference"`
	Redirect        string       `json:"redirect"`
	Poll            PollResponse `json:"poll"`
}

// StatusResponse is the HTTP response for status checks.
type StatusResponse struct {
	OrderID         string `json:"order_id"`
	Status          string `json:"status"`
	SourceReference string `json:"source_reference,omitempty"`
	ConfirmedVia    string `json:"confirmed_via,omitempty"`
	Redirect        string `json:"redirect,omitempty"`
}

// CallbackResponse is returned to EcoCash.
type CallbackResponse struct {
	Success bool `json:"success"`
}

// Gateway handles GET /v1/payments/ecocash
func (h *PaymentHandler) Gateway(c *gin.Context) {
	respondJSON(c, http.StatusOK, GatewayResponse{
		ID:      service.GatewayID,
		Title:   h.cfg.Title,
		Enabled: h.cfg.Enabled,
		Sandbox: h.cfg.Sandbox,
	})
}

// Initiate handles POST /v1/payments/ecocash
func (h *PaymentHandler) Initiate(c *gin.Context) {
	var req validation.InitiatePaymentRequest
	if err := validation.BindAndValidate(c, &req, h.validate); err != nil {
		return
	}

	result, err := h.initiator.Initiate(c.Request.Context(), service.InitiateRequest{
		OrderID:       req.OrderID,
		MSISDN:        req.MSISDN,
		CartSessionID: req.CartSessionID,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, InitiatePaymentResponse{
		Result:          "success",
		OrderID:         result.OrderID,
		SourceReference: result.Reference,
		Redirect:        result.RedirectURL,
		Poll: PollResponse{
			InitialDelayMS: result.Poll.InitialDelay.Milliseconds(),
			IntervalMS:     result.Poll.Interval.Milliseconds(),
			MaxDurationMS:  result.Poll.MaxDuration.Milliseconds(),
		},
	})
}

// OrderStatus handles GET /v1/payments/ecocash/orders/:order_id
func (h *PaymentHandler) OrderStatus(c *gin.Context) {
	outcome, err := h.reconciler.OrderStatus(c.Request.Context(), c.Param("order_id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toStatusResponse(outcome))
}

// Lookup handles GET /v1/payments/ecocash/orders/:order_id/lookup
func (h *PaymentHandler) Lookup(c *gin.Context) {
	outcome, err := h.reconciler.Lookup(c.Request.Context(), c.Param("order_id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toStatusResponse(outcome))
}

// Callback handles POST <callback path> from EcoCash.
func (h *PaymentHandler) Callback(c *gin.Context) {
	var cb ecocash.Callback
	if err := c.ShouldBindJSON(&cb); err != nil || cb.SourceReference == "" {
		c.JSON(http.StatusBadRequest, CallbackResponse{Success: false})
		return
	}

	outcome, err := h.reconciler.HandleWebhook(c.Request.Context(), cb)
	if err != nil {
		log.Printf("[payment][webhook] reference=%s err=%v", cb.SourceReference, err)
		c.JSON(mapErrorToHTTPStatus(err), CallbackResponse{Success: false})
		return
	}

	respondJSON(c, http.StatusOK, CallbackResponse{
		Success: outcome.Status.IsFinal(),
	})
}

func toStatusResponse(outcome *service.Outcome) StatusResponse {
	return StatusResponse{
		OrderID:         outcome.OrderID,
		Status:          string(outcome.Status),
		SourceReference: outcome.Reference,
		ConfirmedVia:    string(outcome.Channel),
		Redirect:        outcome.RedirectURL,
	}
}
