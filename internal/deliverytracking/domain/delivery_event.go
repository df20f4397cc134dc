package domain

import (
	"time"
)

// EventType is a provider delivery event kind.
type EventType string

const (
	EventDelivered   EventType = "delivered"
	EventOpen        EventType = "open"
	EventClick       EventType = "click"
	EventBounce      EventType = "bounce"
	EventUnsubscribe EventType = "unsubscribe"
	EventSpamReport  EventType = "spamreport"
)

// KnownEventTypes lists the event kinds the tracker acts on. Anything else
// is counted and dropped.
var KnownEventTypes = map[EventType]struct{}{
	EventDelivered:   {},
	EventOpen:        {},
	EventClick:       {},
	EventBounce:      {},
	EventUnsubscribe: {},
	EventSpamReport:  {},
}

// DeliveryEvent is one normalized provider webhook event.
type DeliveryEvent struct {
	Email             string    `json:"email"`
	Event             EventType `json:"event"`
	ProviderMessageID string    `json:"message_id"`
	ProviderEventID   string    `json:"provider_event_id"`
	Timestamp         time.Time `json:"timestamp"`
	URL               string    `json:"url,omitempty"`
	Reason            string    `json:"reason,omitempty"`
}
