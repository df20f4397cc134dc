package http

// DeliveryEventDTO is one entry of the provider's event webhook batch.
// Fields mirror the provider payload; message_id falls back to
// sg_message_id when the primary key is absent.
type DeliveryEventDTO struct {
	Email       string `json:"email" validate:"required,email"`
	Event       string `json:"event" validate:"required"`
	MessageID   string `json:"message_id"`
	SGMessageID string `json:"sg_message_id"`
	SGEventID   string `json:"sg_event_id" validate:"required"`
	Timestamp   int64  `json:"timestamp" validate:"required"`
	URL         string `json:"url"`
	Reason      string `json:"reason"`
}

// ProviderMessageID returns the usable message correlation key. Provider
// event payloads sometimes suffix sg_message_id with routing metadata after
// a dot; only the leading segment matches the ID returned at send time.
func (d DeliveryEventDTO) ProviderMessageID() string {
	id := d.MessageID
	if id == "" {
		id = d.SGMessageID
	}
	for i := 0; i < len(id); i++ {
		if id[i] == '.' {
			return id[:i]
		}
	}
	return id
}

// SendCampaignResponse acknowledges an accepted dispatch request.
type SendCampaignResponse struct {
	Status     string `json:"status"`
	CampaignID string `json:"campaign_id"`
}
