package app

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/rankedceo/crm-email/internal/campaign/domain"
	"github.com/rankedceo/crm-email/internal/platform/messagebroker"
)

const dispatchTimeout = 10 * time.Minute

// DispatchJobEvent is the payload the API edge publishes to request a
// campaign dispatch.
type DispatchJobEvent struct {
	CampaignID uuid.UUID `json:"campaign_id"`
}

// Consumer subscribes to dispatch job events and runs them through the
// dispatcher.
type Consumer struct {
	natsClient messagebroker.NATSClient
	dispatcher *Dispatcher
	logger     *slog.Logger
}

func NewConsumer(natsClient messagebroker.NATSClient, dispatcher *Dispatcher, logger *slog.Logger) *Consumer {
	return &Consumer{natsClient: natsClient, dispatcher: dispatcher, logger: logger}
}

// Start subscribes with a queue group so one instance handles each job.
func (c *Consumer) Start(ctx context.Context) (messagebroker.Subscription, error) {
	handler := func(msg messagebroker.Message) {
		var event DispatchJobEvent
		if err := json.Unmarshal(msg.Data(), &event); err != nil {
			c.logger.ErrorContext(ctx, "Failed to deserialize dispatch job event",
				"error", err, "subject", msg.Subject())
			campaignDispatchJobsCounter.WithLabelValues("error_parsing").Inc()
			return
		}
		if event.CampaignID == uuid.Nil {
			c.logger.ErrorContext(ctx, "Dispatch job event has no campaign ID", "subject", msg.Subject())
			campaignDispatchJobsCounter.WithLabelValues("error_parsing").Inc()
			return
		}

		jobCtx, cancel := context.WithTimeout(ctx, dispatchTimeout)
		defer cancel()

		start := time.Now()
		result, err := c.dispatcher.Dispatch(jobCtx, event.CampaignID)
		campaignDispatchDurationHist.Observe(time.Since(start).Seconds())
		if err != nil {
			// A status conflict means another worker already claimed the
			// campaign or the edge raced a double submit; not a failure.
			var statusErr *domain.InvalidStatusError
			if errors.As(err, &statusErr) {
				c.logger.WarnContext(jobCtx, "Skipping dispatch job for campaign in wrong status",
					"campaign_id", event.CampaignID, "status", statusErr.Status)
				return
			}
			c.logger.ErrorContext(jobCtx, "Campaign dispatch failed",
				"error", err, "campaign_id", event.CampaignID)
			campaignDispatchJobsCounter.WithLabelValues("error_dispatch").Inc()
			return
		}

		campaignDispatchJobsCounter.WithLabelValues("success").Inc()
		c.logger.InfoContext(jobCtx, "Dispatch job completed",
			"campaign_id", result.CampaignID, "total", result.Total,
			"sent", result.Sent, "failed", result.Failed)
	}

	return c.natsClient.SubscribeToSubjectWithQueue(ctx,
		messagebroker.SubjectCampaignDispatchJob,
		messagebroker.QueueGroupCampaign,
		handler,
	)
}
