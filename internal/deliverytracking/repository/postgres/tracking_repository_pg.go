package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	campaign "github.com/rankedceo/crm-email/internal/campaign/domain"
	"github.com/rankedceo/crm-email/internal/deliverytracking/domain"
)

type PgTrackingRepository struct {
	db     *pgxpool.Pool
	logger *slog.Logger
}

// NewPgTrackingRepository creates the PostgreSQL implementation of
// domain.TrackingRepository.
func NewPgTrackingRepository(dbPool *pgxpool.Pool, logger *slog.Logger) *PgTrackingRepository {
	return &PgTrackingRepository{
		db:     dbPool,
		logger: logger,
	}
}

// ApplyEvent runs lookup, dedup and update in one transaction. The row is
// locked FOR UPDATE so concurrent events against the same email serialize,
// and the processed-event insert doubles as the duplicate check: a conflict
// on provider_event_id means this event was already applied.
func (r *PgTrackingRepository) ApplyEvent(ctx context.Context, event domain.DeliveryEvent) (*domain.ApplyResult, error) {
	var result domain.ApplyResult

	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		var row campaign.CampaignEmail
		err := tx.QueryRow(ctx, `
			SELECT id, campaign_id, account_id, status,
			       delivered_at, opened_at, clicked_at, bounced_at,
			       unsubscribed_at, spam_reported_at, bounced_reason,
			       open_count, click_count
			FROM campaign_emails
			WHERE provider_message_id = $1
			FOR UPDATE
		`, event.ProviderMessageID).Scan(
			&row.ID, &row.CampaignID, &row.AccountID, &row.Status,
			&row.DeliveredAt, &row.OpenedAt, &row.ClickedAt, &row.BouncedAt,
			&row.UnsubscribedAt, &row.SpamReportedAt, &row.BouncedReason,
			&row.OpenCount, &row.ClickCount,
		)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return domain.ErrUnmatchedEvent
			}
			return fmt.Errorf("failed to load campaign email for event: %w", err)
		}

		tag, err := tx.Exec(ctx, `
			INSERT INTO processed_delivery_events (provider_event_id, campaign_email_id, event_type, processed_at)
			VALUES ($1, $2, $3, NOW())
			ON CONFLICT (provider_event_id) DO NOTHING
		`, event.ProviderEventID, row.ID, event.Event)
		if err != nil {
			return fmt.Errorf("failed to record processed event: %w", err)
		}
		if tag.RowsAffected() == 0 {
			result = domain.ApplyResult{Applied: false}
			return nil
		}

		update := domain.BuildUpdate(&row, event)
		status := row.Status
		if update.Status != "" {
			status = update.Status
		}
		result = domain.ApplyResult{
			Applied:         true,
			CampaignEmailID: row.ID,
			CampaignID:      row.CampaignID,
			AccountID:       row.AccountID,
			Status:          status,
		}
		if update.IsZero() {
			return nil
		}
		return applyUpdate(ctx, tx, row.ID, update)
	})
	if err != nil {
		if errors.Is(err, domain.ErrUnmatchedEvent) {
			return nil, err
		}
		r.logger.ErrorContext(ctx, "Error applying delivery event",
			"error", err, "provider_message_id", event.ProviderMessageID, "event_type", event.Event)
		return nil, err
	}
	return &result, nil
}

func applyUpdate(ctx context.Context, tx pgx.Tx, id interface{}, update domain.EmailUpdate) error {
	set := []string{"updated_at = NOW()"}
	args := []interface{}{id}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if update.Status != "" {
		set = append(set, "status = "+arg(update.Status))
	}
	if update.DeliveredAt != nil {
		set = append(set, "delivered_at = COALESCE(delivered_at, "+arg(*update.DeliveredAt)+")")
	}
	if update.OpenedAt != nil {
		set = append(set, "opened_at = COALESCE(opened_at, "+arg(*update.OpenedAt)+")")
	}
	if update.ClickedAt != nil {
		set = append(set, "clicked_at = COALESCE(clicked_at, "+arg(*update.ClickedAt)+")")
	}
	if update.BouncedAt != nil {
		set = append(set, "bounced_at = COALESCE(bounced_at, "+arg(*update.BouncedAt)+")")
	}
	if update.UnsubscribedAt != nil {
		set = append(set, "unsubscribed_at = COALESCE(unsubscribed_at, "+arg(*update.UnsubscribedAt)+")")
	}
	if update.SpamReportedAt != nil {
		set = append(set, "spam_reported_at = COALESCE(spam_reported_at, "+arg(*update.SpamReportedAt)+")")
	}
	if update.BouncedReason != "" {
		set = append(set, "bounced_reason = COALESCE(bounced_reason, "+arg(update.BouncedReason)+")")
	}
	if update.IncrementOpen {
		set = append(set, "open_count = open_count + 1")
	}
	if update.IncrementClick {
		set = append(set, "click_count = click_count + 1")
	}

	query := "UPDATE campaign_emails SET " + strings.Join(set, ", ") + " WHERE id = $1"
	if _, err := tx.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update campaign email from event: %w", err)
	}
	return nil
}
