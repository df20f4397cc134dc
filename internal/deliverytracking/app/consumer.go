package app

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/rankedceo/crm-email/internal/deliverytracking/domain"
	"github.com/rankedceo/crm-email/internal/platform/messagebroker"
)

const eventTimeout = 15 * time.Second

// Consumer subscribes to raw delivery events published by the webhook edge
// and feeds them through the tracker.
type Consumer struct {
	natsClient messagebroker.NATSClient
	tracker    *Tracker
	logger     *slog.Logger
}

func NewConsumer(natsClient messagebroker.NATSClient, tracker *Tracker, logger *slog.Logger) *Consumer {
	return &Consumer{natsClient: natsClient, tracker: tracker, logger: logger}
}

// Start subscribes with a queue group so instances share the event stream.
func (c *Consumer) Start(ctx context.Context) (messagebroker.Subscription, error) {
	handler := func(msg messagebroker.Message) {
		var event domain.DeliveryEvent
		if err := json.Unmarshal(msg.Data(), &event); err != nil {
			c.logger.ErrorContext(ctx, "Failed to deserialize delivery event",
				"error", err, "subject", msg.Subject(), "data_len", len(msg.Data()))
			deliveryEventsCounter.WithLabelValues("unknown", "error").Inc()
			return
		}

		jobCtx, cancel := context.WithTimeout(ctx, eventTimeout)
		defer cancel()

		// HandleEvent logs its own failures; consuming continues regardless.
		_ = c.tracker.HandleEvent(jobCtx, event)
	}

	return c.natsClient.SubscribeToSubjectWithQueue(ctx,
		messagebroker.SubjectDeliveryEventsRaw,
		messagebroker.QueueGroupDeliveryTracking,
		handler,
	)
}
