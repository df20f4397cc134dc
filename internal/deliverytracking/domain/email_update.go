package domain

import (
	"time"

	campaign "github.com/rankedceo/crm-email/internal/campaign/domain"
)

// statusRank orders the delivery lifecycle. Status only ever moves to a
// higher rank; terminal states share the top rank so none can displace
// another.
var statusRank = map[campaign.CampaignEmailStatus]int{
	campaign.EmailStatusPending:      0,
	campaign.EmailStatusSent:         1,
	campaign.EmailStatusDelivered:    2,
	campaign.EmailStatusOpened:       3,
	campaign.EmailStatusClicked:      4,
	campaign.EmailStatusBounced:      5,
	campaign.EmailStatusUnsubscribed: 5,
	campaign.EmailStatusSpamReported: 5,
	campaign.EmailStatusFailed:       5,
}

// eventStatus maps each event kind to the status it argues for.
var eventStatus = map[EventType]campaign.CampaignEmailStatus{
	EventDelivered:   campaign.EmailStatusDelivered,
	EventOpen:        campaign.EmailStatusOpened,
	EventClick:       campaign.EmailStatusClicked,
	EventBounce:      campaign.EmailStatusBounced,
	EventUnsubscribe: campaign.EmailStatusUnsubscribed,
	EventSpamReport:  campaign.EmailStatusSpamReported,
}

// EmailUpdate is the computed effect of one delivery event on a campaign
// email row. Zero-value fields mean "leave unchanged".
type EmailUpdate struct {
	// Status is the new status, or "" when the current status outranks the
	// event and must stay.
	Status campaign.CampaignEmailStatus

	// Set-if-null timestamps. Each field records the first time its event
	// kind was seen, independent of whether the status moved.
	DeliveredAt    *time.Time
	OpenedAt       *time.Time
	ClickedAt      *time.Time
	BouncedAt      *time.Time
	UnsubscribedAt *time.Time
	SpamReportedAt *time.Time

	BouncedReason string

	// Counters increment on every non-duplicate event of their kind, even
	// when the status is already past that stage.
	IncrementOpen  bool
	IncrementClick bool
}

// IsZero reports whether the update would change nothing.
func (u EmailUpdate) IsZero() bool {
	return u.Status == "" &&
		u.DeliveredAt == nil && u.OpenedAt == nil && u.ClickedAt == nil && u.BouncedAt == nil &&
		u.UnsubscribedAt == nil && u.SpamReportedAt == nil &&
		u.BouncedReason == "" && !u.IncrementOpen && !u.IncrementClick
}

// BuildUpdate computes the effect of one event against the row's current
// state. Status moves forward only; terminal states are sticky. Timestamps
// and counters apply regardless of the status outcome, so late or
// out-of-order events still leave their trace.
func BuildUpdate(current *campaign.CampaignEmail, event DeliveryEvent) EmailUpdate {
	var update EmailUpdate

	if target, ok := eventStatus[event.Event]; ok {
		if statusRank[target] > statusRank[current.Status] {
			update.Status = target
		}
	}

	ts := event.Timestamp
	switch event.Event {
	case EventDelivered:
		if !current.DeliveredAt.Valid {
			update.DeliveredAt = &ts
		}
	case EventOpen:
		if !current.OpenedAt.Valid {
			update.OpenedAt = &ts
		}
		update.IncrementOpen = true
	case EventClick:
		if !current.ClickedAt.Valid {
			update.ClickedAt = &ts
		}
		update.IncrementClick = true
	case EventBounce:
		if !current.BouncedAt.Valid {
			update.BouncedAt = &ts
		}
		if !current.BouncedReason.Valid && event.Reason != "" {
			update.BouncedReason = event.Reason
		}
	case EventUnsubscribe:
		if !current.UnsubscribedAt.Valid {
			update.UnsubscribedAt = &ts
		}
	case EventSpamReport:
		if !current.SpamReportedAt.Valid {
			update.SpamReportedAt = &ts
		}
	}

	return update
}
