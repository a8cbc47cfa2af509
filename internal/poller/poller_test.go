package poller

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"ecocash/internal/domain"
)

func scriptedChecker(calls *int32, statuses ...domain.ConfirmationStatus) Checker {
	return CheckerFunc(func(ctx context.Context, orderID string) (*CheckResult, error) {
		n := int(atomic.AddInt32(calls, 1))
		if n > len(statuses) {
			n = len(statuses)
		}
		return &CheckResult{Status: statuses[n-1]}, nil
	})
}

func fastPoller(checker Checker) *Poller {
	return &Poller{
		Checker:          checker,
		InitialDelay:     5 * time.Millisecond,
		Interval:         5 * time.Millisecond,
		MaxDuration:      2 * time.Second,
		OrderReceivedURL: "https://shop.example/checkout/order-received",
		RecoveryURL:      "https://shop.example/my-account/orders",
	}
}

func TestPoller_ConfirmedAfterPending(t *testing.T) {
	var calls int32
	p := fastPoller(scriptedChecker(&calls,
		domain.ConfirmationPending,
		domain.ConfirmationPending,
		domain.ConfirmationPending,
		domain.ConfirmationSuccess,
	))

	var observed []int
	p.OnStatus = func(attempt int, result *CheckResult, err error) {
		observed = append(observed, attempt)
	}

	result, err := p.Wait(context.Background(), "500")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Outcome != OutcomeConfirmed {
		t.Errorf("expected confirmed, got %s", result.Outcome)
	}
	if result.Attempts != 4 || len(observed) != 4 {
		t.Errorf("expected 4 checks, got %d (observed %v)", result.Attempts, observed)
	}
	if result.RedirectURL != p.OrderReceivedURL {
		t.Errorf("expected fallback redirect, got %s", result.RedirectURL)
	}
}

func TestPoller_Failed(t *testing.T) {
	var calls int32
	p := fastPoller(CheckerFunc(func(ctx context.Context, orderID string) (*CheckResult, error) {
		atomic.AddInt32(&calls, 1)
		return &CheckResult{Status: domain.ConfirmationFailed, RedirectURL: "https://shop.example/retry"}, nil
	}))

	result, err := p.Wait(context.Background(), "500")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outcome != OutcomeFailed || result.RedirectURL != "https://shop.example/retry" {
		t.Errorf("unexpected result %+v", result)
	}
}

func TestPoller_ErrorsAndNotFoundKeepPolling(t *testing.T) {
	var calls int32
	p := fastPoller(CheckerFunc(func(ctx context.Context, orderID string) (*CheckResult, error) {
		switch atomic.AddInt32(&calls, 1) {
		case 1:
			return nil, errors.New("connection reset")
		case 2:
			return &CheckResult{Status: domain.ConfirmationNotFound}, nil
		default:
			return &CheckResult{Status: domain.ConfirmationSuccess}, nil
		}
	}))

	result, err := p.Wait(context.Background(), "500")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outcome != OutcomeConfirmed || result.Attempts != 3 {
		t.Errorf("expected confirmation on third check, got %+v", result)
	}
}

func TestPoller_TimesOut(t *testing.T) {
	var calls int32
	p := fastPoller(scriptedChecker(&calls, domain.ConfirmationPending))
	p.MaxDuration = 60 * time.Millisecond

	result, err := p.Wait(context.Background(), "500")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Outcome != OutcomeTimedOut {
		t.Errorf("expected timed out, got %s", result.Outcome)
	}
	if result.RedirectURL != p.RecoveryURL {
		t.Errorf("expected recovery redirect, got %s", result.RedirectURL)
	}
	if result.Attempts == 0 || int32(result.Attempts) != atomic.LoadInt32(&calls) {
		t.Errorf("unexpected attempt count %d (calls %d)", result.Attempts, calls)
	}
	if result.Elapsed > time.Second {
		t.Errorf("wait overran its bound: %s", result.Elapsed)
	}
}

func TestPoller_ContextCancelled(t *testing.T) {
	var calls int32
	p := fastPoller(scriptedChecker(&calls, domain.ConfirmationPending))
	p.InitialDelay = time.Second

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := p.Wait(ctx, "500")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 0 {
		t.Error("expected no checks before cancellation")
	}
}

func TestHTTPChecker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/payments/ecocash/orders/500/lookup" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"order_id":"500","status":"success","redirect":"https://shop.example/done"}`))
	}))
	defer srv.Close()

	checker := NewHTTPChecker(srv.URL+"/", nil)

	result, err := checker.Check(context.Background(), "500")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != domain.ConfirmationSuccess || result.RedirectURL != "https://shop.example/done" {
		t.Errorf("unexpected result %+v", result)
	}

	if _, err := checker.Check(context.Background(), "404"); err == nil {
		t.Error("expected error for non-200 response")
	}
}
