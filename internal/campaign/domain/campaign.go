package domain

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// CampaignStatus is the lifecycle state of a campaign.
type CampaignStatus string

const (
	CampaignStatusDraft     CampaignStatus = "draft"
	CampaignStatusScheduled CampaignStatus = "scheduled"
	CampaignStatusActive    CampaignStatus = "active"
	CampaignStatusCompleted CampaignStatus = "completed"
	CampaignStatusPaused    CampaignStatus = "paused"
	CampaignStatusCancelled CampaignStatus = "cancelled"
)

// Variant is one subject/body pair of a campaign. Campaigns with a single
// variant have exactly one entry.
type Variant struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Campaign is an outbound email campaign with its audience selection and
// content variants.
type Campaign struct {
	ID        uuid.UUID      `json:"id"`
	AccountID uuid.UUID      `json:"account_id"`
	Name      string         `json:"name"`
	Status    CampaignStatus `json:"status"`

	FromEmail sql.NullString `json:"from_email,omitempty"`
	FromName  sql.NullString `json:"from_name,omitempty"`

	Variants    []Variant `json:"variants"`
	PreviewText string    `json:"preview_text,omitempty"`

	ContactIDs []uuid.UUID `json:"contact_ids,omitempty"`
	CompanyIDs []uuid.UUID `json:"company_ids,omitempty"`
	DealIDs    []uuid.UUID `json:"deal_ids,omitempty"`

	SentAt    sql.NullTime `json:"sent_at,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// CampaignEmailStatus tracks one recipient's delivery lifecycle. Statuses
// only move forward; see StatusRank.
type CampaignEmailStatus string

const (
	EmailStatusPending      CampaignEmailStatus = "pending"
	EmailStatusSent         CampaignEmailStatus = "sent"
	EmailStatusDelivered    CampaignEmailStatus = "delivered"
	EmailStatusOpened       CampaignEmailStatus = "opened"
	EmailStatusClicked      CampaignEmailStatus = "clicked"
	EmailStatusBounced      CampaignEmailStatus = "bounced"
	EmailStatusUnsubscribed CampaignEmailStatus = "unsubscribed"
	EmailStatusSpamReported CampaignEmailStatus = "spam_reported"
	EmailStatusFailed       CampaignEmailStatus = "failed"
)

// CampaignEmail is one recipient row of a dispatched campaign. The row is
// created as pending before any send attempt so provider callbacks always
// have something to attach to.
type CampaignEmail struct {
	ID         uuid.UUID `json:"id"`
	CampaignID uuid.UUID `json:"campaign_id"`
	AccountID  uuid.UUID `json:"account_id"`

	ContactID uuid.NullUUID `json:"contact_id,omitempty"`
	Email     string        `json:"email"`
	Name      string        `json:"name,omitempty"`

	VariantIndex int    `json:"variant_index"`
	Subject      string `json:"subject"`
	Body         string `json:"body"`

	Status            CampaignEmailStatus `json:"status"`
	ProviderMessageID sql.NullString      `json:"provider_message_id,omitempty"`
	ErrorMessage      sql.NullString      `json:"error_message,omitempty"`

	SentAt         sql.NullTime   `json:"sent_at,omitempty"`
	DeliveredAt    sql.NullTime   `json:"delivered_at,omitempty"`
	OpenedAt       sql.NullTime   `json:"opened_at,omitempty"`
	ClickedAt      sql.NullTime   `json:"clicked_at,omitempty"`
	BouncedAt      sql.NullTime   `json:"bounced_at,omitempty"`
	UnsubscribedAt sql.NullTime   `json:"unsubscribed_at,omitempty"`
	SpamReportedAt sql.NullTime   `json:"spam_reported_at,omitempty"`
	BouncedReason  sql.NullString `json:"bounced_reason,omitempty"`

	OpenCount  int `json:"open_count"`
	ClickCount int `json:"click_count"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RecipientRecord is one resolved campaign recipient with the substitution
// values available for template rendering.
type RecipientRecord struct {
	ContactID uuid.NullUUID
	Email     string
	Name      string
	Variables map[string]string
}

// Contact is the slice of the CRM contact the campaign audience needs.
type Contact struct {
	ID        uuid.UUID
	AccountID uuid.UUID
	Email     string
	FirstName string
	LastName  string
	Company   string
}

// Deal is the slice of a CRM deal needed to expand its associated contacts.
type Deal struct {
	ID         uuid.UUID
	AccountID  uuid.UUID
	Name       string
	ContactIDs []uuid.UUID
}

// FullName joins the contact's name parts, skipping empties.
func (c Contact) FullName() string {
	switch {
	case c.FirstName != "" && c.LastName != "":
		return c.FirstName + " " + c.LastName
	case c.FirstName != "":
		return c.FirstName
	default:
		return c.LastName
	}
}

// CampaignStats aggregates per-status counts for one campaign.
type CampaignStats struct {
	CampaignID uuid.UUID                   `json:"campaign_id"`
	Total      int                         `json:"total"`
	ByStatus   map[CampaignEmailStatus]int `json:"by_status"`
}
