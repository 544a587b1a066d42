package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"
)

// PubSubHandler triggers refresh runs from Pub/Sub messages, letting a
// scheduler own the refresh cadence.
type PubSubHandler struct {
	client           *pubsub.Client
	subscriber       *pubsub.Subscriber
	subscriptionName string
	refreshJob       *RefreshJob
	logger           zerolog.Logger
}

// PubSubConfig holds configuration for the Pub/Sub handler.
type PubSubConfig struct {
	ProjectID        string
	SubscriptionName string
	RefreshJob       *RefreshJob
	Logger           zerolog.Logger
}

// TriggerMessage is a refresh trigger published by the scheduler.
type TriggerMessage struct {
	JobType string `json:"job_type"`
}

// Job types accepted on the trigger subscription.
const (
	JobRefresh = "refresh"
)

// NewPubSubHandler creates a Pub/Sub handler.
func NewPubSubHandler(ctx context.Context, cfg PubSubConfig) (*PubSubHandler, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	subscriber := client.Subscriber(cfg.SubscriptionName)
	subscriber.ReceiveSettings.MaxOutstandingMessages = 1
	subscriber.ReceiveSettings.MaxExtension = 10 * time.Minute

	return &PubSubHandler{
		client:           client,
		subscriber:       subscriber,
		subscriptionName: cfg.SubscriptionName,
		refreshJob:       cfg.RefreshJob,
		logger:           cfg.Logger,
	}, nil
}

// Start begins processing trigger messages until ctx is cancelled.
func (h *PubSubHandler) Start(ctx context.Context) error {
	h.logger.Info().
		Str("subscription", h.subscriptionName).
		Msg("starting pubsub handler")

	return h.subscriber.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		h.handleMessage(ctx, msg)
	})
}

// Close closes the Pub/Sub client.
func (h *PubSubHandler) Close() error {
	return h.client.Close()
}

func (h *PubSubHandler) handleMessage(ctx context.Context, msg *pubsub.Message) {
	logger := h.logger.With().
		Str("message_id", msg.ID).
		Str("publish_time", msg.PublishTime.Format(time.RFC3339)).
		Logger()

	var trigger TriggerMessage
	if err := json.Unmarshal(msg.Data, &trigger); err != nil {
		logger.Error().Err(err).Msg("failed to parse trigger message")
		msg.Nack()
		return
	}

	if trigger.JobType != JobRefresh {
		logger.Warn().Str("job_type", trigger.JobType).Msg("unknown job type")
		msg.Ack() // ack to prevent redelivery
		return
	}

	result := h.refreshJob.Run(ctx)

	// A run counts as failed when nothing refreshed at all.
	if result.Successful == 0 && result.Failed > 0 {
		logger.Error().
			Int("failed", result.Failed).
			Msg("refresh produced no readings")
		msg.Nack()
		return
	}

	logger.Info().
		Dur("duration", result.Duration).
		Int("successful", result.Successful).
		Int("failed", result.Failed).
		Msg("refresh trigger handled")
	msg.Ack()
}
