package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rankedceo/crm-email/internal/campaign/domain"
)

type PgCampaignEmailRepository struct {
	db     *pgxpool.Pool
	logger *slog.Logger
}

// NewPgCampaignEmailRepository creates the PostgreSQL implementation of
// domain.CampaignEmailRepository.
func NewPgCampaignEmailRepository(dbPool *pgxpool.Pool, logger *slog.Logger) *PgCampaignEmailRepository {
	return &PgCampaignEmailRepository{
		db:     dbPool,
		logger: logger,
	}
}

// CreatePending batch-inserts the recipient rows in one transaction so a
// dispatch either has its full pending set or none of it.
func (r *PgCampaignEmailRepository) CreatePending(ctx context.Context, emails []*domain.CampaignEmail) error {
	if len(emails) == 0 {
		return nil
	}
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, e := range emails {
			batch.Queue(`
				INSERT INTO campaign_emails (
					id, campaign_id, account_id, contact_id, email, name,
					variant_index, subject, body, status, created_at, updated_at
				) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
			`, e.ID, e.CampaignID, e.AccountID, e.ContactID, e.Email, e.Name,
				e.VariantIndex, e.Subject, e.Body, e.Status)
		}
		results := tx.SendBatch(ctx, batch)
		defer results.Close()
		for range emails {
			if _, err := results.Exec(); err != nil {
				return fmt.Errorf("failed to insert campaign email row: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		r.logger.ErrorContext(ctx, "Error creating pending campaign emails",
			"error", err, "campaign_id", emails[0].CampaignID, "count", len(emails))
		return err
	}
	return nil
}

func (r *PgCampaignEmailRepository) MarkSent(ctx context.Context, id uuid.UUID, providerMessageID string, sentAt time.Time) error {
	_, err := r.db.Exec(ctx, `
		UPDATE campaign_emails
		SET status = 'sent',
		    provider_message_id = NULLIF($2, ''),
		    sent_at = $3,
		    updated_at = NOW()
		WHERE id = $1
	`, id, providerMessageID, sentAt)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error marking campaign email sent", "error", err, "campaign_email_id", id)
		return fmt.Errorf("failed to mark campaign email sent: %w", err)
	}
	return nil
}

func (r *PgCampaignEmailRepository) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE campaign_emails
		SET status = 'failed',
		    error_message = NULLIF($2, ''),
		    updated_at = NOW()
		WHERE id = $1
	`, id, reason)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error marking campaign email failed", "error", err, "campaign_email_id", id)
		return fmt.Errorf("failed to mark campaign email failed: %w", err)
	}
	return nil
}

func (r *PgCampaignEmailRepository) CountByStatus(ctx context.Context, campaignID uuid.UUID) (*domain.CampaignStats, error) {
	rows, err := r.db.Query(ctx, `
		SELECT status, COUNT(*)
		FROM campaign_emails
		WHERE campaign_id = $1
		GROUP BY status
	`, campaignID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error counting campaign emails by status", "error", err, "campaign_id", campaignID)
		return nil, fmt.Errorf("failed to count campaign emails: %w", err)
	}
	defer rows.Close()

	stats := &domain.CampaignStats{
		CampaignID: campaignID,
		ByStatus:   make(map[domain.CampaignEmailStatus]int),
	}
	for rows.Next() {
		var (
			status domain.CampaignEmailStatus
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan campaign email count: %w", err)
		}
		stats.ByStatus[status] = count
		stats.Total += count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate campaign email counts: %w", err)
	}
	return stats, nil
}
