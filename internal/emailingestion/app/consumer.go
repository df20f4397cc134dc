package app

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/rankedceo/crm-email/internal/emailingestion/domain"
	"github.com/rankedceo/crm-email/internal/emailingestion/parse"
	"github.com/rankedceo/crm-email/internal/platform/messagebroker"
)

const ingestTimeout = 30 * time.Second

// InboundEmailEvent is the payload the API edge publishes for each inbound
// email. Exactly one of Fields or RawMime is populated.
type InboundEmailEvent struct {
	AccountID   uuid.UUID           `json:"account_id"`
	Fields      map[string]string   `json:"fields,omitempty"`
	Headers     map[string]string   `json:"headers,omitempty"`
	Attachments []domain.Attachment `json:"attachments,omitempty"`
	RawMime     []byte              `json:"raw_mime,omitempty"`
	ReceivedAt  time.Time           `json:"received_at"`
}

// Consumer subscribes to raw inbound email events and feeds them through the
// ingestion pipeline.
type Consumer struct {
	natsClient messagebroker.NATSClient
	pipeline   *Pipeline
	logger     *slog.Logger
}

func NewConsumer(natsClient messagebroker.NATSClient, pipeline *Pipeline, logger *slog.Logger) *Consumer {
	return &Consumer{natsClient: natsClient, pipeline: pipeline, logger: logger}
}

// Start subscribes with a queue group so instances share the inbound load.
// The returned subscription stays active until drained by the caller.
func (c *Consumer) Start(ctx context.Context) (messagebroker.Subscription, error) {
	handler := func(msg messagebroker.Message) {
		natsInboundEmailReceivedCounter.WithLabelValues(msg.Subject()).Inc()

		var event InboundEmailEvent
		if err := json.Unmarshal(msg.Data(), &event); err != nil {
			c.logger.ErrorContext(ctx, "Failed to deserialize inbound email event",
				"error", err, "subject", msg.Subject(), "data_len", len(msg.Data()))
			inboundEmailProcessedCounter.WithLabelValues("error_parsing").Inc()
			return
		}
		if event.AccountID == uuid.Nil {
			c.logger.ErrorContext(ctx, "Inbound email event has no account ID", "subject", msg.Subject())
			inboundEmailProcessedCounter.WithLabelValues("error_validation").Inc()
			return
		}

		jobCtx, cancel := context.WithTimeout(ctx, ingestTimeout)
		defer cancel()

		if _, err := c.pipeline.Ingest(jobCtx, event.AccountID, event.payload(), event.ReceivedAt); err != nil {
			c.logger.ErrorContext(jobCtx, "Inbound email ingestion failed",
				"error", err, "account_id", event.AccountID)
		}
	}

	return c.natsClient.SubscribeToSubjectWithQueue(ctx,
		messagebroker.SubjectInboundEmailRaw,
		messagebroker.QueueGroupIngestion,
		handler,
	)
}

func (e InboundEmailEvent) payload() parse.InboundPayload {
	if len(e.RawMime) > 0 {
		return parse.RawMime{Data: e.RawMime}
	}
	return parse.WebhookForm{
		Fields:      e.Fields,
		Headers:     e.Headers,
		Attachments: e.Attachments,
	}
}
