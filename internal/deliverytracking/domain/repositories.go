package domain

import (
	"context"
	"errors"

	"github.com/google/uuid"
	campaign "github.com/rankedceo/crm-email/internal/campaign/domain"
)

// ErrUnmatchedEvent indicates no campaign email row matched the event's
// provider message ID.
var ErrUnmatchedEvent = errors.New("delivery event matched no campaign email")

// ApplyResult reports what one event application did.
type ApplyResult struct {
	// Applied is false when the event was a duplicate (its provider event ID
	// was already processed) and the row was left untouched.
	Applied bool

	CampaignEmailID uuid.UUID
	CampaignID      uuid.UUID
	AccountID       uuid.UUID
	Status          campaign.CampaignEmailStatus
}

// TrackingRepository applies delivery events to campaign email rows. The
// implementation must perform lookup, duplicate detection and update in one
// transaction so an event is never half-applied.
type TrackingRepository interface {
	// ApplyEvent locates the row by provider message ID, records the
	// provider event ID for dedup, computes the update against the row's
	// current state and writes it. Returns ErrUnmatchedEvent when no row
	// matches; duplicates return Applied=false and no error.
	ApplyEvent(ctx context.Context, event DeliveryEvent) (*ApplyResult, error)
}
