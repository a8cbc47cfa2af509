package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"ecocash/internal/domain"
	"ecocash/internal/ecocash"
	"ecocash/internal/repository"
)

const awaitingConfirmationNote = "Awaiting EcoCash confirmation"

// InitiatorService submits EcoCash payment requests for orders.
type InitiatorService struct {
	cfg        GatewayConfig
	orderRepo  repository.OrderRepository
	transactor repository.Transactor
	provider   Provider
	references *ReferenceGenerator
	now        func() time.Time
}

// NewInitiatorService creates a new InitiatorService.
func NewInitiatorService(
	cfg GatewayConfig,
	orderRepo repository.OrderRepository,
	transactor repository.Transactor,
	provider Provider,
	references *ReferenceGenerator,
) *InitiatorService {
	if references == nil {
		references = NewReferenceGenerator()
	}

	return &InitiatorService{
		cfg:        cfg,
		orderRepo:  orderRepo,
		transactor: transactor,
		provider:   provider,
		references: references,
		now:        time.Now,
	}
}

// InitiateRequest contains the parameters for initiating a payment.
type InitiateRequest struct {
	OrderID       string
	MSISDN        string
	CartSessionID string
}

// InitiateResult is handed back to the checkout.
type InitiateResult struct {
	OrderID     string
	Reference   string
	MSISDN      string
	RedirectURL string
	Poll        PollSettings

	// ProviderAccepted is false when the provider call failed. The flow still
	// waits for confirmation because the true outcome is only known later.
	ProviderAccepted bool
}

// Initiate persists a payment attempt, submits it to EcoCash and leaves the
// order waiting for confirmation.
func (s *InitiatorService) Initiate(ctx context.Context, req InitiateRequest) (*InitiateResult, error) {
	if !s.cfg.Enabled {
		return nil, ErrGatewayDisabled
	}

	if req.OrderID == "" {
		return nil, ErrInvalidOrderID
	}

	msisdn, err := NormalizeMSISDN(req.MSISDN)
	if err != nil {
		return nil, err
	}

	order, err := s.orderRepo.GetByID(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}

	if order.Status.IsPaid() {
		return nil, ErrOrderAlreadyPaid
	}
	if order.Status != domain.OrderStatusPending {
		return nil, ErrOrderNotPayable
	}

	reference, err := s.references.New()
	if err != nil {
		return nil, err
	}

	currency := order.Currency
	if currency == "" {
		currency = s.cfg.Currency
	}

	now := s.now()
	attempt := &domain.PaymentAttempt{
		Reference: reference,
		OrderID:   order.ID,
		MSISDN:    msisdn,
		Amount:    order.Total,
		Currency:  currency,
		Reason:    fmt.Sprintf("Order #%s", order.ID),
		Status:    domain.AttemptStatusInitiated,
		CreatedAt: now,
		UpdatedAt: now,
	}

	// The attempt must be durable before the provider hears about it.
	err = s.transactor.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		if err := tx.Attempts().Create(ctx, attempt); err != nil {
			return err
		}
		if err := tx.Orders().SetMeta(ctx, order.ID, domain.MetaSourceReference, reference); err != nil {
			return err
		}
		if err := tx.Orders().SetMeta(ctx, order.ID, domain.MetaMSISDN, msisdn); err != nil {
			return err
		}
		if req.CartSessionID != "" {
			return tx.Orders().SetMeta(ctx, order.ID, domain.MetaCartSession, req.CartSessionID)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to persist payment attempt: %w", err)
	}

	resp, providerErr := s.provider.InitiatePayment(ctx, ecocash.PaymentRequest{
		CustomerMSISDN:  msisdn,
		Amount:          json.Number(order.Total.StringFixed(2)),
		Reason:          attempt.Reason,
		Currency:        currency,
		SourceReference: reference,
	})
	if providerErr != nil {
		log.Printf("[payment][initiator] provider call failed order_id=%s reference=%s err=%v",
			order.ID, reference, providerErr)
	}

	// Bookkeeping after the network call must survive a cancelled request.
	bookkeepingCtx := context.WithoutCancel(ctx)
	err = s.transactor.WithinTx(bookkeepingCtx, func(ctx context.Context, tx repository.Tx) error {
		if resp != nil && len(resp.Body) > 0 {
			if err := tx.Attempts().SaveProviderResponse(ctx, reference, resp.Body); err != nil {
				return err
			}
		}

		// Skipped when the reconciler already moved the attempt on.
		if _, err := tx.Attempts().TransitionStatus(ctx, reference,
			domain.AttemptStatusInitiated, domain.AttemptStatusPending, ""); err != nil {
			return err
		}

		// A pending to pending transition only records the note, and never touches a paid order.
		_, err := tx.Orders().TransitionStatus(ctx, order.ID,
			domain.OrderStatusPending, domain.OrderStatusPending, awaitingConfirmationNote)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to mark payment pending: %w", err)
	}

	log.Printf("[payment][initiator] initiated order_id=%s reference=%s amount=%s currency=%s accepted=%t",
		order.ID, reference, order.Total.StringFixed(2), currency, providerErr == nil)

	return &InitiateResult{
		OrderID:          order.ID,
		Reference:        reference,
		MSISDN:           msisdn,
		RedirectURL:      s.cfg.WaitingRedirect(order.ID, reference),
		Poll:             s.cfg.Poll,
		ProviderAccepted: providerErr == nil,
	}, nil
}
