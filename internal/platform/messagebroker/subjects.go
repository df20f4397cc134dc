package messagebroker

// NATS subjects shared between the API edge and the worker services.
const (
	// SubjectInboundEmailRaw carries raw inbound-parse webhook payloads
	// from the API service to the ingestion workers.
	SubjectInboundEmailRaw = "email.inbound.raw"

	// SubjectInboundEmailReceived carries persisted inbound messages for
	// downstream consumers (CRM activity feed).
	SubjectInboundEmailReceived = "email.inbound.received"

	// SubjectCampaignDispatchJob carries campaign dispatch jobs.
	SubjectCampaignDispatchJob = "campaign.dispatch.job"

	// SubjectDeliveryEventsRaw carries individual, signature-verified
	// provider delivery events.
	SubjectDeliveryEventsRaw = "email.events.raw"

	// SubjectDeliveryUpdated carries applied delivery-state updates.
	SubjectDeliveryUpdated = "email.delivery.updated"
)

// Queue groups for the worker services.
const (
	QueueGroupIngestion        = "ingestion_workers"
	QueueGroupCampaign         = "campaign_workers"
	QueueGroupDeliveryTracking = "delivery_tracking_workers"
)
