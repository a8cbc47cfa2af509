package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"ecocash/internal/domain"
	"ecocash/internal/ecocash"
	"ecocash/internal/redis"
	"ecocash/internal/repository"
)

// lookupLockTTL outlives the provider lookup timeout so one poll at a time reaches EcoCash.
const lookupLockTTL = 25 * time.Second

// ReconcilerService confirms payments from lookups and webhooks and moves
// orders to their paid or failed state exactly once.
type ReconcilerService struct {
	cfg           GatewayConfig
	orderRepo     repository.OrderRepository
	attemptRepo   repository.PaymentAttemptRepository
	transactor    repository.Transactor
	provider      Provider
	lockStore     redis.LockStoreInterface
	cacheStore    redis.CacheStoreInterface
	notifications *NotificationService
}

// NewReconcilerService creates a new ReconcilerService.
// lockStore and cacheStore are optional.
func NewReconcilerService(
	cfg GatewayConfig,
	orderRepo repository.OrderRepository,
	attemptRepo repository.PaymentAttemptRepository,
	transactor repository.Transactor,
	provider Provider,
	lockStore redis.LockStoreInterface,
	cacheStore redis.CacheStoreInterface,
	notifications *NotificationService,
) *ReconcilerService {
	if notifications == nil {
		notifications = NewNotificationService(nil)
	}

	return &ReconcilerService{
		cfg:           cfg,
		orderRepo:     orderRepo,
		attemptRepo:   attemptRepo,
		transactor:    transactor,
		provider:      provider,
		lockStore:     lockStore,
		cacheStore:    cacheStore,
		notifications: notifications,
	}
}

// Outcome is the result of a reconciliation.
type Outcome struct {
	OrderID   string
	Reference string
	Status    domain.ConfirmationStatus
	Channel   domain.Channel

	// Transitioned is true only for the call that changed the order.
	Transitioned bool

	// RedirectURL is set for final statuses.
	RedirectURL string
}

// OrderStatus reports the locally known status without calling the provider.
func (s *ReconcilerService) OrderStatus(ctx context.Context, orderID string) (*Outcome, error) {
	if orderID == "" {
		return nil, ErrInvalidOrderID
	}

	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return &Outcome{OrderID: orderID, Status: domain.ConfirmationNotFound}, nil
		}
		return nil, err
	}

	outcome := s.outcomeFor(order, "")
	if attempt, err := s.attemptRepo.GetLatestByOrderID(ctx, orderID); err == nil {
		outcome.Reference = attempt.Reference
		outcome.Channel = attempt.ConfirmedVia
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	return outcome, nil
}

// Lookup asks EcoCash for the status of the order's latest payment attempt
// and applies the result.
func (s *ReconcilerService) Lookup(ctx context.Context, orderID string) (*Outcome, error) {
	if orderID == "" {
		return nil, ErrInvalidOrderID
	}

	if cached := s.cachedOutcome(ctx, orderID); cached != nil {
		return cached, nil
	}

	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return &Outcome{OrderID: orderID, Status: domain.ConfirmationNotFound}, nil
		}
		return nil, err
	}

	if order.Status != domain.OrderStatusPending {
		outcome := s.outcomeFor(order, "")
		s.cacheOutcome(ctx, outcome)
		return outcome, nil
	}

	attempt, err := s.attemptRepo.GetLatestByOrderID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return &Outcome{OrderID: orderID, Status: domain.ConfirmationNotFound}, nil
		}
		return nil, err
	}

	if s.lockStore != nil {
		acquired, err := s.lockStore.AcquireLookupLock(ctx, orderID, lookupLockTTL)
		if err != nil {
			log.Printf("[payment][reconciler] lookup lock unavailable order_id=%s err=%v", orderID, err)
		} else if !acquired {
			return &Outcome{OrderID: orderID, Reference: attempt.Reference, Status: domain.ConfirmationPending}, nil
		} else {
			defer s.lockStore.ReleaseLookupLock(context.WithoutCancel(ctx), orderID)
		}
	}

	status := s.lookupStatus(ctx, attempt)

	log.Printf("[payment][reconciler] lookup order_id=%s reference=%s status=%s", orderID, attempt.Reference, status)

	return s.apply(ctx, attempt, status, domain.ChannelLookup)
}

// HandleWebhook applies an EcoCash callback. Unknown references are reported
// as NOTFOUND and leave all state untouched.
func (s *ReconcilerService) HandleWebhook(ctx context.Context, cb ecocash.Callback) (*Outcome, error) {
	if cb.SourceReference == "" {
		return nil, ErrInvalidReference
	}

	attempt, err := s.attemptRepo.GetByReference(ctx, cb.SourceReference)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			log.Printf("[payment][webhook] unknown reference=%s", cb.SourceReference)
			return &Outcome{Reference: cb.SourceReference, Status: domain.ConfirmationNotFound}, nil
		}
		return nil, err
	}

	raw := cb.ProviderStatus()
	status := ecocash.NormalizeStatus(raw)

	// Callbacks without a status are always checked against the lookup API.
	if raw == "" || s.cfg.VerifyCallbacks {
		verified := s.lookupStatus(ctx, attempt)
		log.Printf("[payment][webhook] verified reference=%s claimed=%q verified=%s", attempt.Reference, raw, verified)
		status = verified
	}

	log.Printf("[payment][webhook] order_id=%s reference=%s status=%s", attempt.OrderID, attempt.Reference, status)

	return s.apply(ctx, attempt, status, domain.ChannelWebhook)
}

func (s *ReconcilerService) lookupStatus(ctx context.Context, attempt *domain.PaymentAttempt) domain.ConfirmationStatus {
	result, err := s.provider.LookupTransaction(ctx, ecocash.LookupRequest{
		SourceMobileNumber: attempt.MSISDN,
		SourceReference:    attempt.Reference,
	})
	if err != nil {
		if errors.Is(err, ecocash.ErrTransactionNotFound) {
			return domain.ConfirmationNotFound
		}
		log.Printf("[payment][reconciler] lookup failed reference=%s err=%v", attempt.Reference, err)
		return domain.ConfirmationPending
	}

	return result.Status
}

func (s *ReconcilerService) apply(ctx context.Context, attempt *domain.PaymentAttempt, status domain.ConfirmationStatus, channel domain.Channel) (*Outcome, error) {
	switch status {
	case domain.ConfirmationSuccess:
		return s.confirm(ctx, attempt, channel)
	case domain.ConfirmationFailed:
		return s.fail(ctx, attempt, channel)
	default:
		return &Outcome{OrderID: attempt.OrderID, Reference: attempt.Reference, Status: status, Channel: channel}, nil
	}
}

// confirm moves the order from pending to processing. The conditional update
// is the only guard: stock, cart and attempt changes happen in the same
// transaction and only for the caller that won it. A payment that lands after
// the order left pending still settles its attempt and leaves a note.
func (s *ReconcilerService) confirm(ctx context.Context, attempt *domain.PaymentAttempt, channel domain.Channel) (*Outcome, error) {
	var transitioned, late bool
	note := fmt.Sprintf("EcoCash payment confirmed via %s", channel)

	err := s.transactor.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		ok, err := tx.Orders().TransitionStatus(ctx, attempt.OrderID,
			domain.OrderStatusPending, domain.OrderStatusProcessing, note)
		if err != nil {
			return err
		}
		if !ok {
			late, err = settleAttempt(ctx, tx, attempt.Reference, domain.AttemptStatusConfirmed, channel)
			if err != nil || !late {
				return err
			}
			return addLatePaymentNote(ctx, tx, attempt, channel)
		}
		transitioned = true

		if err := tx.Inventory().DecrementForOrder(ctx, attempt.OrderID); err != nil {
			return fmt.Errorf("failed to decrement stock: %w", err)
		}

		sessionID, err := tx.Orders().GetMeta(ctx, attempt.OrderID, domain.MetaCartSession)
		if err != nil {
			return err
		}
		if err := tx.Carts().Clear(ctx, sessionID); err != nil {
			return fmt.Errorf("failed to clear cart: %w", err)
		}

		_, err = settleAttempt(ctx, tx, attempt.Reference, domain.AttemptStatusConfirmed, channel)
		return err
	})
	if err != nil {
		return nil, err
	}

	if late {
		log.Printf("[payment][reconciler] payment received for settled order order_id=%s reference=%s via=%s",
			attempt.OrderID, attempt.Reference, channel)
	}

	if !transitioned {
		return s.currentOutcome(ctx, attempt, channel)
	}

	log.Printf("[payment][reconciler] order paid order_id=%s reference=%s via=%s", attempt.OrderID, attempt.Reference, channel)

	if err := s.notifications.NotifyOrderPaid(ctx, attempt, channel); err != nil {
		log.Printf("[payment][reconciler] failed to publish order.paid order_id=%s err=%v", attempt.OrderID, err)
	}

	outcome := &Outcome{
		OrderID:      attempt.OrderID,
		Reference:    attempt.Reference,
		Status:       domain.ConfirmationSuccess,
		Channel:      channel,
		Transitioned: true,
		RedirectURL:  s.cfg.OrderReceivedRedirect(attempt.OrderID),
	}
	s.cacheOutcome(ctx, outcome)

	return outcome, nil
}

// fail moves the order from pending to failed. Only the order's current
// attempt can fail it; a superseded attempt is settled on its own.
// A paid order is never downgraded.
func (s *ReconcilerService) fail(ctx context.Context, attempt *domain.PaymentAttempt, channel domain.Channel) (*Outcome, error) {
	var transitioned, superseded bool
	note := fmt.Sprintf("EcoCash payment failed (reported via %s)", channel)

	err := s.transactor.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		current, err := tx.Orders().GetMeta(ctx, attempt.OrderID, domain.MetaSourceReference)
		if err != nil {
			return err
		}

		if current != "" && current != attempt.Reference {
			superseded = true
		} else {
			transitioned, err = tx.Orders().TransitionStatus(ctx, attempt.OrderID,
				domain.OrderStatusPending, domain.OrderStatusFailed, note)
			if err != nil {
				return err
			}
		}

		_, err = settleAttempt(ctx, tx, attempt.Reference, domain.AttemptStatusFailed, channel)
		return err
	})
	if err != nil {
		return nil, err
	}

	if superseded {
		log.Printf("[payment][reconciler] superseded attempt failed order_id=%s reference=%s via=%s",
			attempt.OrderID, attempt.Reference, channel)
		return &Outcome{
			OrderID:   attempt.OrderID,
			Reference: attempt.Reference,
			Status:    domain.ConfirmationFailed,
			Channel:   channel,
		}, nil
	}

	if !transitioned {
		return s.currentOutcome(ctx, attempt, channel)
	}

	log.Printf("[payment][reconciler] payment failed order_id=%s reference=%s via=%s", attempt.OrderID, attempt.Reference, channel)

	if err := s.notifications.NotifyPaymentFailed(ctx, attempt, channel); err != nil {
		log.Printf("[payment][reconciler] failed to publish order.payment_failed order_id=%s err=%v", attempt.OrderID, err)
	}

	outcome := &Outcome{
		OrderID:      attempt.OrderID,
		Reference:    attempt.Reference,
		Status:       domain.ConfirmationFailed,
		Channel:      channel,
		Transitioned: true,
		RedirectURL:  s.cfg.RecoveryRedirect(),
	}
	s.cacheOutcome(ctx, outcome)

	return outcome, nil
}

// addLatePaymentNote records a confirmed payment on an order that is no longer
// pending so it can be reconciled or refunded.
func addLatePaymentNote(ctx context.Context, tx repository.Tx, attempt *domain.PaymentAttempt, channel domain.Channel) error {
	order, err := tx.Orders().GetByID(ctx, attempt.OrderID)
	if err != nil {
		return err
	}

	note := fmt.Sprintf("EcoCash payment received after failure (reference %s, via %s)", attempt.Reference, channel)
	if order.Status.IsPaid() {
		note = fmt.Sprintf("Duplicate EcoCash payment received (reference %s, via %s)", attempt.Reference, channel)
	}

	return tx.Orders().AddNote(ctx, attempt.OrderID, note)
}

// currentOutcome reports the order's state after losing the conditional update.
func (s *ReconcilerService) currentOutcome(ctx context.Context, attempt *domain.PaymentAttempt, channel domain.Channel) (*Outcome, error) {
	order, err := s.orderRepo.GetByID(ctx, attempt.OrderID)
	if err != nil {
		return nil, err
	}

	outcome := s.outcomeFor(order, attempt.Reference)
	outcome.Channel = channel

	if outcome.Status.IsFinal() {
		s.cacheOutcome(ctx, outcome)
	}

	return outcome, nil
}

func (s *ReconcilerService) outcomeFor(order *domain.Order, reference string) *Outcome {
	outcome := &Outcome{OrderID: order.ID, Reference: reference, Status: domain.ConfirmationPending}

	switch {
	case order.Status.IsPaid():
		outcome.Status = domain.ConfirmationSuccess
		outcome.RedirectURL = s.cfg.OrderReceivedRedirect(order.ID)
	case order.Status == domain.OrderStatusFailed, order.Status == domain.OrderStatusCancelled:
		outcome.Status = domain.ConfirmationFailed
		outcome.RedirectURL = s.cfg.RecoveryRedirect()
	}

	return outcome
}

// settleAttempt moves the attempt to its final status from either
// PENDING or, when the confirmation beat the initiator's bookkeeping, INITIATED.
// Returns false if the attempt was already settled.
func settleAttempt(ctx context.Context, tx repository.Tx, reference string, to domain.AttemptStatus, channel domain.Channel) (bool, error) {
	ok, err := tx.Attempts().TransitionStatus(ctx, reference, domain.AttemptStatusPending, to, channel)
	if err != nil || ok {
		return ok, err
	}

	return tx.Attempts().TransitionStatus(ctx, reference, domain.AttemptStatusInitiated, to, channel)
}

func (s *ReconcilerService) cachedOutcome(ctx context.Context, orderID string) *Outcome {
	if s.cacheStore == nil {
		return nil
	}

	cached, err := s.cacheStore.GetStatus(ctx, orderID)
	if err != nil || cached == nil {
		return nil
	}

	outcome := &Outcome{
		OrderID:   cached.OrderID,
		Reference: cached.Reference,
		Status:    domain.ConfirmationStatus(cached.Status),
		Channel:   domain.Channel(cached.Channel),
	}
	switch outcome.Status {
	case domain.ConfirmationSuccess:
		outcome.RedirectURL = s.cfg.OrderReceivedRedirect(orderID)
	case domain.ConfirmationFailed:
		outcome.RedirectURL = s.cfg.RecoveryRedirect()
	default:
		return nil
	}

	return outcome
}

func (s *ReconcilerService) cacheOutcome(ctx context.Context, outcome *Outcome) {
	if s.cacheStore == nil || !outcome.Status.IsFinal() {
		return
	}

	err := s.cacheStore.SetStatus(ctx, &redis.CachedStatus{
		OrderID:   outcome.OrderID,
		Reference: outcome.Reference,
		Status:    string(outcome.Status),
		Channel:   string(outcome.Channel),
	})
	if err != nil {
		log.Printf("[payment][reconciler] failed to cache status order_id=%s err=%v", outcome.OrderID, err)
	}
}
