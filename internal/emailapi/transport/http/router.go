package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// RouterDeps bundles the handlers the API router mounts.
type RouterDeps struct {
	Inbound  *InboundEmailHandler
	Events   *EventWebhookHandler
	Campaign *CampaignHandler
	Mailbox  *MailboxHandler
}

// NewRouter assembles the email API routes with the shared middleware stack.
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(PrometheusMetricsMiddleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api/v1", func(r chi.Router) {
		// Provider callbacks.
		r.Post("/webhooks/inbound/{account_id}", deps.Inbound.HandleInboundPost)
		r.Post("/webhooks/events", deps.Events.HandleEventBatch)

		// Campaign operations.
		r.Post("/campaigns/{campaign_id}/send", deps.Campaign.HandleSendCampaign)
		r.Get("/campaigns/{campaign_id}/stats", deps.Campaign.HandleCampaignStats)

		// Mailbox operations.
		r.Post("/messages/{message_id}/open", deps.Mailbox.HandleMarkMessageOpened)
		r.Post("/threads/{thread_id}/open", deps.Mailbox.HandleMarkThreadOpened)
		r.Get("/accounts/{account_id}/mailbox/stats", deps.Mailbox.HandleMailboxStats)
	})

	return r
}
