package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"ecocash/internal/domain"
)

// NotificationType represents the type of notification.
type NotificationType string

const (
	NotificationOrderPaid          NotificationType = "order.paid"
	NotificationOrderPaymentFailed NotificationType = "order.payment_failed"
)

// Notification represents a payment event to be delivered downstream.
type Notification struct {
	Type      NotificationType `json:"type"`
	OrderID   string           `json:"order_id"`
	Reference string           `json:"source_reference"`
	MSISDN    string           `json:"msisdn"`
	Amount    string           `json:"amount"`
	Currency  string           `json:"currency"`
	Channel   domain.Channel   `json:"channel"`
	Message   string           `json:"message"`
	CreatedAt time.Time        `json:"created_at"`
}

// MessagePublisher sends a message body with string attributes to a queue.
type MessagePublisher interface {
	SendMessage(ctx context.Context, body string, attributes map[string]string) error
}

// NotificationService handles notification delivery.
// Without a publisher, notifications are only logged.
type NotificationService struct {
	publisher MessagePublisher
	now       func() time.Time
}

// NewNotificationService creates a new NotificationService.
func NewNotificationService(publisher MessagePublisher) *NotificationService {
	return &NotificationService{
		publisher: publisher,
		now:       time.Now,
	}
}

// NotifyOrderPaid announces that an order was paid.
func (s *NotificationService) NotifyOrderPaid(ctx context.Context, attempt *domain.PaymentAttempt, channel domain.Channel) error {
	return s.send(ctx, Notification{
		Type:      NotificationOrderPaid,
		OrderID:   attempt.OrderID,
		Reference: attempt.Reference,
		MSISDN:    attempt.MSISDN,
		Amount:    attempt.Amount.StringFixed(2),
		Currency:  attempt.Currency,
		Channel:   channel,
		Message:   fmt.Sprintf("EcoCash payment of %s %s received", attempt.Amount.StringFixed(2), attempt.Currency),
		CreatedAt: s.now(),
	})
}

// NotifyPaymentFailed announces that the provider reported the payment as failed.
func (s *NotificationService) NotifyPaymentFailed(ctx context.Context, attempt *domain.PaymentAttempt, channel domain.Channel) error {
	return s.send(ctx, Notification{
		Type:      NotificationOrderPaymentFailed,
		OrderID:   attempt.OrderID,
		Reference: attempt.Reference,
		MSISDN:    attempt.MSISDN,
		Amount:    attempt.Amount.StringFixed(2),
		Currency:  attempt.Currency,
		Channel:   channel,
		Message:   "EcoCash payment failed. Please try again.",
		CreatedAt: s.now(),
	})
}

func (s *NotificationService) send(ctx context.Context, notification Notification) error {
	log.Printf("[NOTIFICATION] Type=%s, Order=%s, Reference=%s, Message=%s",
		notification.Type, notification.OrderID, notification.Reference, notification.Message)

	if s.publisher == nil {
		return nil
	}

	body, err := json.Marshal(notification)
	if err != nil {
		return err
	}

	return s.publisher.SendMessage(ctx, string(body), map[string]string{
		"event_type": string(notification.Type),
		"order_id":   notification.OrderID,
	})
}
