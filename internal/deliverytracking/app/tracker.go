package app

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	campaign "github.com/rankedceo/crm-email/internal/campaign/domain"
	"github.com/rankedceo/crm-email/internal/deliverytracking/domain"
	"github.com/rankedceo/crm-email/internal/platform/messagebroker"
)

// Tracker applies provider delivery events to campaign email rows and
// announces the resulting status changes.
type Tracker struct {
	repo   domain.TrackingRepository
	nats   messagebroker.NATSClient
	logger *slog.Logger
	now    func() time.Time
}

func NewTracker(repo domain.TrackingRepository, nats messagebroker.NATSClient, logger *slog.Logger) *Tracker {
	return &Tracker{repo: repo, nats: nats, logger: logger, now: time.Now}
}

// HandleEvent processes one normalized delivery event. Unmatched events are
// logged and dropped without error so a single stray callback never poisons
// the batch it arrived in. Duplicates are acknowledged silently.
func (t *Tracker) HandleEvent(ctx context.Context, event domain.DeliveryEvent) error {
	start := t.now()
	defer func() {
		deliveryEventProcessingDurationHist.Observe(t.now().Sub(start).Seconds())
	}()

	if _, known := domain.KnownEventTypes[event.Event]; !known {
		deliveryEventsCounter.WithLabelValues(string(event.Event), "unmatched").Inc()
		t.logger.WarnContext(ctx, "Ignoring unknown delivery event type",
			"event_type", event.Event, "provider_message_id", event.ProviderMessageID)
		return nil
	}

	result, err := t.repo.ApplyEvent(ctx, event)
	if err != nil {
		if errors.Is(err, domain.ErrUnmatchedEvent) {
			deliveryEventsCounter.WithLabelValues(string(event.Event), "unmatched").Inc()
			t.logger.WarnContext(ctx, "Delivery event matched no campaign email",
				"event_type", event.Event,
				"provider_message_id", event.ProviderMessageID,
				"email", event.Email)
			return nil
		}
		deliveryEventsCounter.WithLabelValues(string(event.Event), "error").Inc()
		t.logger.ErrorContext(ctx, "Failed to apply delivery event",
			"error", err, "event_type", event.Event, "provider_message_id", event.ProviderMessageID)
		return err
	}

	if !result.Applied {
		deliveryEventsCounter.WithLabelValues(string(event.Event), "duplicate").Inc()
		t.logger.DebugContext(ctx, "Skipping duplicate delivery event",
			"event_type", event.Event, "provider_event_id", event.ProviderEventID)
		return nil
	}

	deliveryEventsCounter.WithLabelValues(string(event.Event), "applied").Inc()
	t.publishUpdated(ctx, event, result)
	return nil
}

// DeliveryUpdatedEvent is published after an event changes a campaign email
// row, for downstream consumers (dashboards, contact timelines).
type DeliveryUpdatedEvent struct {
	CampaignEmailID uuid.UUID                    `json:"campaign_email_id"`
	CampaignID      uuid.UUID                    `json:"campaign_id"`
	AccountID       uuid.UUID                    `json:"account_id"`
	Status          campaign.CampaignEmailStatus `json:"status"`
	EventType       domain.EventType             `json:"event_type"`
	OccurredAt      time.Time                    `json:"occurred_at"`
}

func (t *Tracker) publishUpdated(ctx context.Context, event domain.DeliveryEvent, result *domain.ApplyResult) {
	updated := DeliveryUpdatedEvent{
		CampaignEmailID: result.CampaignEmailID,
		CampaignID:      result.CampaignID,
		AccountID:       result.AccountID,
		Status:          result.Status,
		EventType:       event.Event,
		OccurredAt:      event.Timestamp,
	}
	data, err := json.Marshal(updated)
	if err != nil {
		t.logger.ErrorContext(ctx, "Failed to marshal delivery updated event",
			"error", err, "campaign_email_id", result.CampaignEmailID)
		return
	}
	if err := t.nats.Publish(ctx, messagebroker.SubjectDeliveryUpdated, data); err != nil {
		t.logger.ErrorContext(ctx, "Failed to publish delivery updated event",
			"error", err, "subject", messagebroker.SubjectDeliveryUpdated,
			"campaign_email_id", result.CampaignEmailID)
	}
}
