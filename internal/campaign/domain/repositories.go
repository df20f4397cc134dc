package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// CampaignRepository loads campaigns and applies lifecycle transitions.
type CampaignRepository interface {
	// GetByID returns the campaign or ErrCampaignNotFound.
	GetByID(ctx context.Context, id uuid.UUID) (*Campaign, error)

	// MarkActive transitions draft|scheduled -> active and stamps sent_at.
	// Returns InvalidStatusError when the campaign is in any other state, so
	// concurrent dispatches of the same campaign collapse to one.
	MarkActive(ctx context.Context, id uuid.UUID, sentAt time.Time) error
}

// CampaignEmailRepository persists per-recipient rows of a dispatch.
type CampaignEmailRepository interface {
	// CreatePending inserts the recipient rows in status pending before any
	// send attempt is made.
	CreatePending(ctx context.Context, emails []*CampaignEmail) error

	// MarkSent records a successful provider handoff.
	MarkSent(ctx context.Context, id uuid.UUID, providerMessageID string, sentAt time.Time) error

	// MarkFailed records a failed send attempt with the provider's reason.
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error

	// CountByStatus aggregates recipient rows per status for one campaign.
	CountByStatus(ctx context.Context, campaignID uuid.UUID) (*CampaignStats, error)
}

// Directory reads the CRM records a campaign audience references.
type Directory interface {
	ContactsByIDs(ctx context.Context, accountID uuid.UUID, ids []uuid.UUID) ([]Contact, error)
	ContactsByCompanyIDs(ctx context.Context, accountID uuid.UUID, companyIDs []uuid.UUID) ([]Contact, error)
	DealsByIDs(ctx context.Context, accountID uuid.UUID, ids []uuid.UUID) ([]Deal, error)
}
