package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"ecocash/internal/poller"
)

func payCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pay [order-id] [msisdn]",
		Short: "Initiate an EcoCash payment for an order",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			server, _ := cmd.Flags().GetString("server")
			session, _ := cmd.Flags().GetString("cart-session")
			key, _ := cmd.Flags().GetString("idempotency-key")
			wait, _ := cmd.Flags().GetBool("wait")

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			client := newGatewayClient(server)
			resp, err := client.initiate(ctx, initiateRequest{
				OrderID:       args[0],
				MSISDN:        args[1],
				CartSessionID: session,
			}, key)
			if err != nil {
				return err
			}

			fmt.Printf("Payment initiated for order %s\n", resp.OrderID)
			fmt.Printf("  Reference: %s\n", resp.SourceReference)
			fmt.Printf("  Redirect:  %s\n", resp.Redirect)

			if !wait {
				return nil
			}

			fmt.Println("Approve the payment on your phone. Waiting for confirmation...")

			p := &poller.Poller{
				Checker:      poller.NewHTTPChecker(server, nil),
				InitialDelay: time.Duration(resp.Poll.InitialDelayMS) * time.Millisecond,
				Interval:     time.Duration(resp.Poll.IntervalMS) * time.Millisecond,
				MaxDuration:  time.Duration(resp.Poll.MaxDurationMS) * time.Millisecond,
				OnStatus:     printStatus,
			}
			return runWait(ctx, p, resp.OrderID)
		},
	}

	cmd.Flags().String("cart-session", "", "Cart session to clear once paid")
	cmd.Flags().String("idempotency-key", "", "Idempotency-Key header for safe retries")
	cmd.Flags().BoolP("wait", "w", true, "Wait for confirmation after initiating")

	return cmd
}

func waitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wait [order-id]",
		Short: "Poll the gateway until the order's payment is confirmed, failed or timed out",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			server, _ := cmd.Flags().GetString("server")
			interval, _ := cmd.Flags().GetDuration("interval")
			maxDuration, _ := cmd.Flags().GetDuration("max-duration")

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			p := &poller.Poller{
				Checker:      poller.NewHTTPChecker(server, nil),
				InitialDelay: time.Millisecond,
				Interval:     interval,
				MaxDuration:  maxDuration,
				OnStatus:     printStatus,
			}
			return runWait(ctx, p, args[0])
		},
	}

	cmd.Flags().Duration("interval", poller.DefaultInterval, "Polling interval")
	cmd.Flags().Duration("max-duration", poller.DefaultMaxDuration, "Give up after this long")

	return cmd
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status [order-id]",
		Short: "Show the locally recorded payment status of an order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			server, _ := cmd.Flags().GetString("server")

			resp, err := newGatewayClient(server).status(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			fmt.Printf("Order:     %s\n", resp.OrderID)
			fmt.Printf("Status:    %s\n", resp.Status)
			if resp.SourceReference != "" {
				fmt.Printf("Reference: %s\n", resp.SourceReference)
			}
			if resp.ConfirmedVia != "" {
				fmt.Printf("Via:       %s\n", resp.ConfirmedVia)
			}
			return nil
		},
	}
}

func runWait(ctx context.Context, p *poller.Poller, orderID string) error {
	result, err := p.Wait(ctx, orderID)
	if err != nil {
		return fmt.Errorf("stopped waiting: %w", err)
	}

	switch result.Outcome {
	case poller.OutcomeConfirmed:
		fmt.Printf("Payment confirmed after %d checks.\n", result.Attempts)
	case poller.OutcomeFailed:
		fmt.Println("Payment failed.")
	case poller.OutcomeTimedOut:
		fmt.Printf("No confirmation after %s.\n", result.Elapsed.Round(time.Second))
	}

	if result.RedirectURL != "" {
		fmt.Printf("Continue at: %s\n", result.RedirectURL)
	}

	if result.Outcome != poller.OutcomeConfirmed {
		return fmt.Errorf("payment %s", result.Outcome)
	}
	return nil
}

func printStatus(attempt int, result *poller.CheckResult, err error) {
	if err != nil {
		fmt.Printf("  check %d: error: %v\n", attempt, err)
		return
	}
	fmt.Printf("  check %d: %s\n", attempt, result.Status)
}
