package app

import (
	"context"

	"ecocash/internal/config"
	"ecocash/internal/queue"
	"ecocash/internal/service"
)

// NewEventPublisher returns the SQS publisher for payment events, or nil when
// no queue is configured.
func NewEventPublisher(ctx context.Context, cfg config.AWSConfig) (service.MessagePublisher, error) {
	if cfg.QueueURL == "" {
		return nil, nil
	}

	awsCfg, err := queue.LoadAWSConfig(ctx, cfg.Region)
	if err != nil {
		return nil, err
	}

	return queue.NewPublisher(queue.NewSQSClient(awsCfg, cfg.SQSEndpoint), cfg.QueueURL), nil
}
