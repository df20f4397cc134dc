package http

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	chi_middleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/rankedceo/crm-email/internal/deliverytracking/domain"
	"github.com/rankedceo/crm-email/internal/platform/messagebroker"
)

// EventWebhookHandler accepts delivery event batches from the email provider
// and queues each event for the tracking workers.
type EventWebhookHandler struct {
	natsClient messagebroker.NATSClient
	logger     *slog.Logger
	validate   *validator.Validate
	signingKey string
}

func NewEventWebhookHandler(nc messagebroker.NATSClient, logger *slog.Logger, validate *validator.Validate, signingKey string) *EventWebhookHandler {
	return &EventWebhookHandler{
		natsClient: nc,
		logger:     logger.With("handler", "event_webhook"),
		validate:   validate,
		signingKey: signingKey,
	}
}

// HandleEventBatch verifies the webhook signature over the whole payload,
// then publishes events individually. Entries that fail validation are
// skipped so one malformed event never blocks the rest of the batch.
func (h *EventWebhookHandler) HandleEventBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logger.With("request_id", chi_middleware.GetReqID(ctx))

	body, err := io.ReadAll(r.Body)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to read event webhook body", "error", err)
		http.Error(w, "Failed to read request body", http.StatusInternalServerError)
		return
	}
	defer r.Body.Close()

	if h.signingKey != "" {
		signature := r.Header.Get(headerWebhookSignature)
		timestamp := r.Header.Get(headerWebhookTimestamp)
		if !verifySignature(h.signingKey, timestamp, body, signature) {
			logger.WarnContext(ctx, "Rejecting event webhook with invalid signature",
				"has_signature", signature != "", "has_timestamp", timestamp != "")
			http.Error(w, "Invalid signature", http.StatusUnauthorized)
			return
		}
	}

	var batch []DeliveryEventDTO
	if err := json.Unmarshal(body, &batch); err != nil {
		logger.ErrorContext(ctx, "Failed to decode event webhook JSON", "error", err)
		http.Error(w, "Invalid JSON format", http.StatusBadRequest)
		return
	}

	queued, skipped := 0, 0
	for _, dto := range batch {
		if err := h.validate.StructCtx(ctx, dto); err != nil {
			logger.WarnContext(ctx, "Skipping invalid delivery event",
				"error", err, "event", dto.Event, "sg_event_id", dto.SGEventID)
			skipped++
			continue
		}
		event := domain.DeliveryEvent{
			Email:             dto.Email,
			Event:             domain.EventType(dto.Event),
			ProviderMessageID: dto.ProviderMessageID(),
			ProviderEventID:   dto.SGEventID,
			Timestamp:         time.Unix(dto.Timestamp, 0).UTC(),
			URL:               dto.URL,
			Reason:            dto.Reason,
		}
		data, err := json.Marshal(event)
		if err != nil {
			logger.ErrorContext(ctx, "Failed to marshal delivery event", "error", err, "sg_event_id", dto.SGEventID)
			skipped++
			continue
		}
		if err := h.natsClient.Publish(ctx, messagebroker.SubjectDeliveryEventsRaw, data); err != nil {
			logger.ErrorContext(ctx, "Failed to publish delivery event",
				"error", err, "subject", messagebroker.SubjectDeliveryEventsRaw)
			http.Error(w, "Failed to queue events for processing", http.StatusInternalServerError)
			return
		}
		queued++
	}

	logger.InfoContext(ctx, "Event webhook batch queued", "queued", queued, "skipped", skipped)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]int{"queued": queued, "skipped": skipped})
}
