package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rankedceo/crm-email/internal/campaign/domain"
)

type PgCampaignRepository struct {
	db     *pgxpool.Pool
	logger *slog.Logger
}

// NewPgCampaignRepository creates the PostgreSQL implementation of
// domain.CampaignRepository.
func NewPgCampaignRepository(dbPool *pgxpool.Pool, logger *slog.Logger) *PgCampaignRepository {
	return &PgCampaignRepository{
		db:     dbPool,
		logger: logger,
	}
}

func (r *PgCampaignRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Campaign, error) {
	query := `
		SELECT id, account_id, name, status, from_email, from_name,
		       variants, preview_text, contact_ids, company_ids, deal_ids,
		       sent_at, created_at, updated_at
		FROM email_campaigns
		WHERE id = $1
	`
	var (
		c           domain.Campaign
		variantsRaw []byte
	)
	err := r.db.QueryRow(ctx, query, id).Scan(
		&c.ID, &c.AccountID, &c.Name, &c.Status, &c.FromEmail, &c.FromName,
		&variantsRaw, &c.PreviewText, &c.ContactIDs, &c.CompanyIDs, &c.DealIDs,
		&c.SentAt, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrCampaignNotFound
		}
		r.logger.ErrorContext(ctx, "Error loading campaign", "error", err, "campaign_id", id)
		return nil, fmt.Errorf("failed to load campaign: %w", err)
	}
	if len(variantsRaw) > 0 {
		if err := json.Unmarshal(variantsRaw, &c.Variants); err != nil {
			return nil, fmt.Errorf("failed to unmarshal campaign variants: %w", err)
		}
	}
	return &c, nil
}

// MarkActive performs the one allowed send transition. The conditional WHERE
// makes the claim atomic: concurrent dispatchers racing the same campaign
// see exactly one success.
func (r *PgCampaignRepository) MarkActive(ctx context.Context, id uuid.UUID, sentAt time.Time) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE email_campaigns
		SET status = 'active',
		    sent_at = $2,
		    updated_at = NOW()
		WHERE id = $1 AND status IN ('draft', 'scheduled')
	`, id, sentAt)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error activating campaign", "error", err, "campaign_id", id)
		return fmt.Errorf("failed to activate campaign: %w", err)
	}
	if tag.RowsAffected() == 0 {
		current, err := r.GetByID(ctx, id)
		if err != nil {
			return err
		}
		return &domain.InvalidStatusError{Status: current.Status}
	}
	return nil
}
