// Package poller waits for an EcoCash payment to be confirmed by repeatedly
// asking the lookup endpoint, bounded by a maximum duration.
package poller

import (
	"context"
	"time"

	"ecocash/internal/domain"
)

// Defaults match the checkout waiting view.
const (
	DefaultInitialDelay = 2 * time.Second
	DefaultInterval     = 3 * time.Second
	DefaultMaxDuration  = 3 * time.Minute
)

// Outcome is how a wait ended.
type Outcome string

const (
	OutcomeConfirmed Outcome = "confirmed"
	OutcomeFailed    Outcome = "failed"
	OutcomeTimedOut  Outcome = "timed_out"
)

// CheckResult is one answer from the lookup endpoint.
type CheckResult struct {
	Status      domain.ConfirmationStatus
	RedirectURL string
}

// Checker asks for the current confirmation status of an order.
type Checker interface {
	Check(ctx context.Context, orderID string) (*CheckResult, error)
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc func(ctx context.Context, orderID string) (*CheckResult, error)

// Check calls f.
func (f CheckerFunc) Check(ctx context.Context, orderID string) (*CheckResult, error) {
	return f(ctx, orderID)
}

// Result is the final state of a wait.
type Result struct {
	Outcome     Outcome
	Status      domain.ConfirmationStatus
	RedirectURL string
	Attempts    int
	Elapsed     time.Duration
}

// Poller polls a Checker until the payment is final or MaxDuration elapses.
// Zero durations fall back to the defaults.
type Poller struct {
	Checker      Checker
	InitialDelay time.Duration
	Interval     time.Duration
	MaxDuration  time.Duration

	// OrderReceivedURL and RecoveryURL are used when the checker supplies no redirect.
	OrderReceivedURL string
	RecoveryURL      string

	// OnStatus, if set, is called after every check.
	OnStatus func(attempt int, result *CheckResult, err error)
}

// Wait blocks until the order is confirmed, failed or the wait times out.
// It returns ctx.Err() if ctx is cancelled first.
func (p *Poller) Wait(ctx context.Context, orderID string) (*Result, error) {
	initialDelay := orDefault(p.InitialDelay, DefaultInitialDelay)
	interval := orDefault(p.Interval, DefaultInterval)
	maxDuration := orDefault(p.MaxDuration, DefaultMaxDuration)

	start := time.Now()
	deadline := start.Add(maxDuration)
	delay := initialDelay
	attempts := 0

	for {
		if err := sleep(ctx, minDuration(delay, time.Until(deadline))); err != nil {
			return nil, err
		}

		if !time.Now().Before(deadline) {
			return &Result{
				Outcome:     OutcomeTimedOut,
				Status:      domain.ConfirmationPending,
				RedirectURL: p.RecoveryURL,
				Attempts:    attempts,
				Elapsed:     time.Since(start),
			}, nil
		}

		attempts++
		result, err := p.Checker.Check(ctx, orderID)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		if p.OnStatus != nil {
			p.OnStatus(attempts, result, err)
		}

		if err == nil && result != nil {
			switch result.Status {
			case domain.ConfirmationSuccess:
				return p.finish(OutcomeConfirmed, result, p.OrderReceivedURL, attempts, start), nil
			case domain.ConfirmationFailed:
				return p.finish(OutcomeFailed, result, p.RecoveryURL, attempts, start), nil
			}
		}

		delay = interval
	}
}

func (p *Poller) finish(outcome Outcome, result *CheckResult, fallbackURL string, attempts int, start time.Time) *Result {
	redirect := result.RedirectURL
	if redirect == "" {
		redirect = fallbackURL
	}

	return &Result{
		Outcome:     outcome,
		Status:      result.Status,
		RedirectURL: redirect,
		Attempts:    attempts,
		Elapsed:     time.Since(start),
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}
