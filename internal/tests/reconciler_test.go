package tests

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"ecocash/internal/domain"
	"ecocash/internal/ecocash"
	"ecocash/internal/service"
)

func setupPendingPayment(h *harness, orderID, reference string) {
	order := NewPendingOrder(orderID, "10.00", "prod-1", 2)
	h.store.AddOrder(order)
	h.store.SetStock("prod-1", 10)
	h.store.AddToCart("sess-"+orderID, "prod-1", 2)
	h.store.AddAttempt(NewPendingAttempt(orderID, reference))
	_ = h.store.OrderRepo().SetMeta(context.Background(), orderID, domain.MetaCartSession, "sess-"+orderID)
}

func TestLookup_PendingThreeTimesThenSuccess(t *testing.T) {
	h := newHarness()
	setupPendingPayment(h, "500", "ref-500")
	h.provider.SetLookupStatuses(
		domain.ConfirmationPending,
		domain.ConfirmationPending,
		domain.ConfirmationPending,
		domain.ConfirmationSuccess,
	)

	ctx := context.Background()
	for i := 1; i <= 3; i++ {
		outcome, err := h.reconciler.Lookup(ctx, "500")
		if err != nil {
			t.Fatalf("poll %d: unexpected error: %v", i, err)
		}
		if outcome.Status != domain.ConfirmationPending {
			t.Errorf("poll %d: expected PENDING, got %s", i, outcome.Status)
		}
		if status := h.store.OrderStatusOf("500"); status != domain.OrderStatusPending {
			t.Fatalf("poll %d: order must stay pending, got %s", i, status)
		}
		if h.store.DecrementCallCount != 0 {
			t.Fatalf("poll %d: stock must not be touched", i)
		}
	}

	outcome, err := h.reconciler.Lookup(ctx, "500")
	if err != nil {
		t.Fatalf("poll 4: unexpected error: %v", err)
	}
	if outcome.Status != domain.ConfirmationSuccess || !outcome.Transitioned {
		t.Errorf("poll 4: expected transition to SUCCESS, got %+v", outcome)
	}
	if outcome.RedirectURL == "" {
		t.Error("expected order received redirect")
	}

	if status := h.store.OrderStatusOf("500"); status != domain.OrderStatusProcessing {
		t.Errorf("expected order processing, got %s", status)
	}
	if h.store.DecrementCallCount != 1 {
		t.Errorf("expected 1 stock decrement, got %d", h.store.DecrementCallCount)
	}
	if h.store.Stock("prod-1") != 8 {
		t.Errorf("expected stock 8, got %d", h.store.Stock("prod-1"))
	}
	if h.store.CartSize("sess-500") != 0 {
		t.Error("expected cart to be cleared")
	}

	attempt := h.store.Attempt("ref-500")
	if attempt.Status != domain.AttemptStatusConfirmed || attempt.ConfirmedVia != domain.ChannelLookup {
		t.Errorf("expected attempt CONFIRMED via lookup, got %s via %s", attempt.Status, attempt.ConfirmedVia)
	}

	notes := h.store.Notes("500")
	if len(notes) != 1 || notes[0] != "EcoCash payment confirmed via lookup" {
		t.Errorf("unexpected notes %v", notes)
	}

	if h.publisher.CountByType(string(service.NotificationOrderPaid)) != 1 {
		t.Error("expected one order.paid notification")
	}

	// Fifth poll after success is a no-op.
	outcome, err = h.reconciler.Lookup(ctx, "500")
	if err != nil || outcome.Status != domain.ConfirmationSuccess || outcome.Transitioned {
		t.Errorf("expected idempotent SUCCESS, got %+v %v", outcome, err)
	}
	if h.provider.LookupCallCount != 4 {
		t.Errorf("paid order must not reach the provider, got %d lookups", h.provider.LookupCallCount)
	}
}

func TestReconcile_ConcurrentConfirmations(t *testing.T) {
	h := newHarness()
	setupPendingPayment(h, "600", "ref-600")
	h.provider.SetLookupStatuses(domain.ConfirmationSuccess)

	const goroutines = 20
	var wg sync.WaitGroup
	var transitions int32
	var successes int32

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			var outcome *service.Outcome
			var err error
			if i%2 == 0 {
				outcome, err = h.reconciler.Lookup(context.Background(), "600")
			} else {
				outcome, err = h.reconciler.HandleWebhook(context.Background(), ecocash.Callback{
					SourceReference:   "ref-600",
					TransactionStatus: "SUCCESS",
				})
			}
			if err != nil {
				t.Errorf("goroutine %d: %v", i, err)
				return
			}
			if outcome.Status == domain.ConfirmationSuccess {
				atomic.AddInt32(&successes, 1)
			}
			if outcome.Transitioned {
				atomic.AddInt32(&transitions, 1)
			}
		}(i)
	}

	wg.Wait()

	if transitions != 1 {
		t.Errorf("expected exactly 1 transition, got %d", transitions)
	}
	if successes != goroutines {
		t.Errorf("expected every caller to see SUCCESS, got %d", successes)
	}
	if h.store.DecrementCallCount != 1 {
		t.Errorf("expected exactly 1 stock decrement, got %d", h.store.DecrementCallCount)
	}
	if h.store.Stock("prod-1") != 8 {
		t.Errorf("expected stock 8, got %d", h.store.Stock("prod-1"))
	}
	if len(h.store.Notes("600")) != 1 {
		t.Errorf("expected one audit note, got %v", h.store.Notes("600"))
	}
	if h.publisher.CountByType(string(service.NotificationOrderPaid)) != 1 {
		t.Error("expected one order.paid notification")
	}
}

func TestWebhook_LateArrivalOnCompletedOrder(t *testing.T) {
	h := newHarness()
	setupPendingPayment(h, "700", "ref-700")

	order := NewPendingOrder("700", "10.00", "prod-1", 2)
	order.Status = domain.OrderStatusCompleted
	h.store.AddOrder(order)
	attempt := NewPendingAttempt("700", "ref-700")
	attempt.Status = domain.AttemptStatusConfirmed
	attempt.ConfirmedVia = domain.ChannelLookup
	h.store.AddAttempt(attempt)

	outcome, err := h.reconciler.HandleWebhook(context.Background(), ecocash.Callback{
		SourceReference: "ref-700",
		Status:          "SUCCESS",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if outcome.Status != domain.ConfirmationSuccess {
		t.Errorf("expected SUCCESS, got %s", outcome.Status)
	}
	if outcome.Transitioned {
		t.Error("late webhook must not transition")
	}
	if h.store.DecrementCallCount != 0 {
		t.Error("late webhook must not touch stock")
	}
	if status := h.store.OrderStatusOf("700"); status != domain.OrderStatusCompleted {
		t.Errorf("expected order to stay completed, got %s", status)
	}
	if len(h.store.Notes("700")) != 0 {
		t.Errorf("expected no notes, got %v", h.store.Notes("700"))
	}
}

func TestWebhook_UnknownReference(t *testing.T) {
	t.Parallel()

	h := newHarness()

	outcome, err := h.reconciler.HandleWebhook(context.Background(), ecocash.Callback{
		SourceReference: "no-such-ref",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Status != domain.ConfirmationNotFound {
		t.Errorf("expected NOTFOUND, got %s", outcome.Status)
	}
	if h.store.TxCount != 0 {
		t.Error("unknown reference must not open a transaction")
	}
}

func TestWebhook_MissingStatusVerifiedByLookup(t *testing.T) {
	t.Parallel()

	h := newHarness()
	setupPendingPayment(h, "701", "ref-701")

	// The reference is visible to the buyer in the waiting view URL, so a bare
	// callback must not pay the order while EcoCash still reports PENDING.
	outcome, err := h.reconciler.HandleWebhook(context.Background(), ecocash.Callback{
		SourceReference: "ref-701",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Status != domain.ConfirmationPending || outcome.Transitioned {
		t.Errorf("expected PENDING without transition, got %+v", outcome)
	}
	if status := h.store.OrderStatusOf("701"); status != domain.OrderStatusPending {
		t.Errorf("expected order pending, got %s", status)
	}
	if h.store.DecrementCallCount != 0 {
		t.Error("unverified callback must not touch stock")
	}
	if h.provider.LookupCallCount != 1 {
		t.Errorf("expected 1 verification lookup, got %d", h.provider.LookupCallCount)
	}

	h.provider.SetLookupStatuses(domain.ConfirmationSuccess)

	outcome, err = h.reconciler.HandleWebhook(context.Background(), ecocash.Callback{
		SourceReference: "ref-701",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Status != domain.ConfirmationSuccess || !outcome.Transitioned {
		t.Errorf("expected transition once EcoCash confirms, got %+v", outcome)
	}

	notes := h.store.Notes("701")
	if len(notes) != 1 || notes[0] != "EcoCash payment confirmed via webhook" {
		t.Errorf("unexpected notes %v", notes)
	}
	if a := h.store.Attempt("ref-701"); a.ConfirmedVia != domain.ChannelWebhook {
		t.Errorf("expected confirmed via webhook, got %s", a.ConfirmedVia)
	}
}

func TestWebhook_SupersededAttemptFailureKeepsOrderPending(t *testing.T) {
	h := newHarness()
	h.store.AddOrder(NewPendingOrder("610", "10.00", "prod-1", 1))
	h.store.SetStock("prod-1", 5)

	ctx := context.Background()
	first, err := h.initiator.Initiate(ctx, service.InitiateRequest{OrderID: "610", MSISDN: "0771234567"})
	if err != nil {
		t.Fatalf("first initiation: %v", err)
	}
	second, err := h.initiator.Initiate(ctx, service.InitiateRequest{OrderID: "610", MSISDN: "0771234567"})
	if err != nil {
		t.Fatalf("second initiation: %v", err)
	}

	outcome, err := h.reconciler.HandleWebhook(ctx, ecocash.Callback{
		SourceReference: first.Reference,
		Status:          "FAILED",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Transitioned {
		t.Error("failure of a superseded attempt must not transition the order")
	}
	if status := h.store.OrderStatusOf("610"); status != domain.OrderStatusPending {
		t.Fatalf("expected order pending, got %s", status)
	}
	if a := h.store.Attempt(first.Reference); a.Status != domain.AttemptStatusFailed {
		t.Errorf("expected first attempt FAILED, got %s", a.Status)
	}
	if h.publisher.CountByType(string(service.NotificationOrderPaymentFailed)) != 0 {
		t.Error("expected no order.payment_failed notification")
	}

	outcome, err = h.reconciler.HandleWebhook(ctx, ecocash.Callback{
		SourceReference:   second.Reference,
		TransactionStatus: "SUCCESS",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Status != domain.ConfirmationSuccess || !outcome.Transitioned {
		t.Errorf("expected current attempt to pay the order, got %+v", outcome)
	}
	if status := h.store.OrderStatusOf("610"); status != domain.OrderStatusProcessing {
		t.Errorf("expected order processing, got %s", status)
	}
	if a := h.store.Attempt(second.Reference); a.Status != domain.AttemptStatusConfirmed {
		t.Errorf("expected second attempt CONFIRMED, got %s", a.Status)
	}
	if h.store.Stock("prod-1") != 4 {
		t.Errorf("expected stock 4, got %d", h.store.Stock("prod-1"))
	}
}

func TestWebhook_PaymentAfterFailureIsRecorded(t *testing.T) {
	h := newHarness()
	setupPendingPayment(h, "611", "ref-611")

	order := NewPendingOrder("611", "10.00", "prod-1", 2)
	order.Status = domain.OrderStatusFailed
	h.store.AddOrder(order)

	outcome, err := h.reconciler.HandleWebhook(context.Background(), ecocash.Callback{
		SourceReference:   "ref-611",
		TransactionStatus: "SUCCESS",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if outcome.Status != domain.ConfirmationFailed || outcome.Transitioned {
		t.Errorf("expected order to stay failed, got %+v", outcome)
	}
	if a := h.store.Attempt("ref-611"); a.Status != domain.AttemptStatusConfirmed || a.ConfirmedVia != domain.ChannelWebhook {
		t.Errorf("expected attempt CONFIRMED via webhook, got %s via %s", a.Status, a.ConfirmedVia)
	}
	if h.store.DecrementCallCount != 0 {
		t.Error("failed order must not touch stock")
	}

	notes := h.store.Notes("611")
	if len(notes) != 1 || !strings.Contains(notes[0], "received after failure") || !strings.Contains(notes[0], "ref-611") {
		t.Errorf("expected a late payment note, got %v", notes)
	}

	// Redelivery adds nothing.
	if _, err := h.reconciler.HandleWebhook(context.Background(), ecocash.Callback{
		SourceReference:   "ref-611",
		TransactionStatus: "SUCCESS",
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(h.store.Notes("611")) != 1 {
		t.Errorf("expected a single note after redelivery, got %v", h.store.Notes("611"))
	}
}

func TestWebhook_DuplicatePaymentOnPaidOrderIsRecorded(t *testing.T) {
	h := newHarness()
	setupPendingPayment(h, "612", "ref-612a")
	h.store.AddAttempt(NewPendingAttempt("612", "ref-612b"))

	ctx := context.Background()
	if _, err := h.reconciler.HandleWebhook(ctx, ecocash.Callback{SourceReference: "ref-612a", Status: "SUCCESS"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	outcome, err := h.reconciler.HandleWebhook(ctx, ecocash.Callback{SourceReference: "ref-612b", Status: "SUCCESS"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Status != domain.ConfirmationSuccess || outcome.Transitioned {
		t.Errorf("expected absorbed SUCCESS, got %+v", outcome)
	}
	if a := h.store.Attempt("ref-612b"); a.Status != domain.AttemptStatusConfirmed {
		t.Errorf("expected second attempt CONFIRMED, got %s", a.Status)
	}
	if h.store.DecrementCallCount != 1 {
		t.Errorf("expected 1 stock decrement, got %d", h.store.DecrementCallCount)
	}

	notes := h.store.Notes("612")
	if len(notes) != 2 || !strings.Contains(notes[1], "Duplicate EcoCash payment") {
		t.Errorf("expected a duplicate payment note, got %v", notes)
	}
}

func TestWebhook_VerifyCallbacksUsesLookup(t *testing.T) {
	h := newHarness(withVerifyCallbacks())
	setupPendingPayment(h, "702", "ref-702")
	h.provider.SetLookupStatuses(domain.ConfirmationPending)

	outcome, err := h.reconciler.HandleWebhook(context.Background(), ecocash.Callback{
		SourceReference:   "ref-702",
		TransactionStatus: "SUCCESS",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if outcome.Status != domain.ConfirmationPending {
		t.Errorf("expected unverified callback to stay PENDING, got %s", outcome.Status)
	}
	if h.provider.LookupCallCount != 1 {
		t.Errorf("expected 1 verification lookup, got %d", h.provider.LookupCallCount)
	}
	if status := h.store.OrderStatusOf("702"); status != domain.OrderStatusPending {
		t.Errorf("expected order pending, got %s", status)
	}
}

func TestReconcile_ProviderReportsFailure(t *testing.T) {
	h := newHarness()
	setupPendingPayment(h, "800", "ref-800")
	h.provider.SetLookupStatuses(domain.ConfirmationFailed)

	outcome, err := h.reconciler.Lookup(context.Background(), "800")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if outcome.Status != domain.ConfirmationFailed || !outcome.Transitioned {
		t.Errorf("expected transition to FAILED, got %+v", outcome)
	}
	if outcome.RedirectURL != h.cfg.OrderHistoryURL {
		t.Errorf("expected recovery redirect, got %s", outcome.RedirectURL)
	}
	if status := h.store.OrderStatusOf("800"); status != domain.OrderStatusFailed {
		t.Errorf("expected order failed, got %s", status)
	}
	if a := h.store.Attempt("ref-800"); a.Status != domain.AttemptStatusFailed {
		t.Errorf("expected attempt FAILED, got %s", a.Status)
	}
	if h.store.DecrementCallCount != 0 {
		t.Error("failed payment must not touch stock")
	}
	if h.publisher.CountByType(string(service.NotificationOrderPaymentFailed)) != 1 {
		t.Error("expected one order.payment_failed notification")
	}
}

func TestWebhook_FailureNeverDowngradesPaidOrder(t *testing.T) {
	h := newHarness()
	setupPendingPayment(h, "801", "ref-801")

	if _, err := h.reconciler.HandleWebhook(context.Background(), ecocash.Callback{SourceReference: "ref-801", Status: "SUCCESS"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	outcome, err := h.reconciler.HandleWebhook(context.Background(), ecocash.Callback{
		SourceReference: "ref-801",
		Status:          "FAILED",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if outcome.Status != domain.ConfirmationSuccess {
		t.Errorf("expected SUCCESS for paid order, got %s", outcome.Status)
	}
	if status := h.store.OrderStatusOf("801"); status != domain.OrderStatusProcessing {
		t.Errorf("expected order processing, got %s", status)
	}
}

func TestLookup_ProviderErrors(t *testing.T) {
	testCases := []struct {
		name     string
		err      error
		expected domain.ConfirmationStatus
	}{
		{"timeout", fmt.Errorf("%w: %v", ecocash.ErrProviderTimeout, ErrMockTimeout), domain.ConfirmationPending},
		{"unreachable", ecocash.ErrProviderUnreachable, domain.ConfirmationPending},
		{"malformed", fmt.Errorf("%w: unexpected end of JSON input", ecocash.ErrMalformedResponse), domain.ConfirmationPending},
		{"not found", ecocash.ErrTransactionNotFound, domain.ConfirmationNotFound},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			h := newHarness()
			setupPendingPayment(h, "900", "ref-900")
			h.provider.LookupError = tc.err

			outcome, err := h.reconciler.Lookup(context.Background(), "900")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if outcome.Status != tc.expected {
				t.Errorf("expected %s, got %s", tc.expected, outcome.Status)
			}
			if status := h.store.OrderStatusOf("900"); status != domain.OrderStatusPending {
				t.Errorf("order must stay pending, got %s", status)
			}
		})
	}
}

func TestLookup_NotFoundCases(t *testing.T) {
	t.Parallel()

	h := newHarness()
	h.store.AddOrder(NewPendingOrder("901", "10.00", "prod-1", 1))

	outcome, err := h.reconciler.Lookup(context.Background(), "no-such-order")
	if err != nil || outcome.Status != domain.ConfirmationNotFound {
		t.Errorf("expected NOTFOUND for missing order, got %+v %v", outcome, err)
	}

	outcome, err = h.reconciler.Lookup(context.Background(), "901")
	if err != nil || outcome.Status != domain.ConfirmationNotFound {
		t.Errorf("expected NOTFOUND for order without attempt, got %+v %v", outcome, err)
	}

	if h.provider.LookupCallCount != 0 {
		t.Error("provider must not be called")
	}
}

func TestLookup_ThrottledByLock(t *testing.T) {
	h := newHarness(withLocks())
	setupPendingPayment(h, "902", "ref-902")
	h.provider.SetLookupStatuses(domain.ConfirmationSuccess)
	h.locks.ForceAcquireFailure = true

	outcome, err := h.reconciler.Lookup(context.Background(), "902")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Status != domain.ConfirmationPending {
		t.Errorf("expected PENDING while another poll holds the lock, got %s", outcome.Status)
	}
	if h.provider.LookupCallCount != 0 {
		t.Error("provider must not be called while throttled")
	}

	h.locks.ForceAcquireFailure = false
	outcome, err = h.reconciler.Lookup(context.Background(), "902")
	if err != nil || outcome.Status != domain.ConfirmationSuccess {
		t.Errorf("expected SUCCESS once the lock is free, got %+v %v", outcome, err)
	}
	if h.locks.ReleaseCallCount != 1 {
		t.Errorf("expected lock release, got %d", h.locks.ReleaseCallCount)
	}
}

func TestLookup_TerminalStatusServedFromCache(t *testing.T) {
	h := newHarness(withCache())
	setupPendingPayment(h, "903", "ref-903")
	h.provider.SetLookupStatuses(domain.ConfirmationSuccess)

	if _, err := h.reconciler.Lookup(context.Background(), "903"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.cache.SetCallCount != 1 {
		t.Fatalf("expected outcome to be cached, got %d sets", h.cache.SetCallCount)
	}

	outcome, err := h.reconciler.Lookup(context.Background(), "903")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Status != domain.ConfirmationSuccess || outcome.Reference != "ref-903" {
		t.Errorf("unexpected cached outcome %+v", outcome)
	}
	if h.provider.LookupCallCount != 1 {
		t.Errorf("expected cached answer without provider call, got %d lookups", h.provider.LookupCallCount)
	}
}

func TestReconcile_RollbackOnStockFailure(t *testing.T) {
	h := newHarness()
	setupPendingPayment(h, "904", "ref-904")
	h.store.DecrementError = ErrMockTimeout

	_, err := h.reconciler.HandleWebhook(context.Background(), ecocash.Callback{SourceReference: "ref-904", Status: "SUCCESS"})
	if err == nil {
		t.Fatal("expected error from failed stock decrement")
	}

	if status := h.store.OrderStatusOf("904"); status != domain.OrderStatusPending {
		t.Errorf("expected rollback to pending, got %s", status)
	}
	if len(h.store.Notes("904")) != 0 {
		t.Error("expected note to be rolled back")
	}

	// A retry succeeds once the store recovers.
	h.store.DecrementError = nil
	outcome, err := h.reconciler.HandleWebhook(context.Background(), ecocash.Callback{SourceReference: "ref-904", Status: "SUCCESS"})
	if err != nil || !outcome.Transitioned {
		t.Errorf("expected transition on retry, got %+v %v", outcome, err)
	}
}

func TestOrderStatus_LocalCheck(t *testing.T) {
	t.Parallel()

	h := newHarness()
	setupPendingPayment(h, "905", "ref-905")

	outcome, err := h.reconciler.OrderStatus(context.Background(), "905")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Status != domain.ConfirmationPending || outcome.Reference != "ref-905" {
		t.Errorf("unexpected outcome %+v", outcome)
	}
	if h.provider.LookupCallCount != 0 {
		t.Error("local check must not call the provider")
	}

	outcome, err = h.reconciler.OrderStatus(context.Background(), "missing")
	if err != nil || outcome.Status != domain.ConfirmationNotFound {
		t.Errorf("expected NOTFOUND, got %+v %v", outcome, err)
	}
}
