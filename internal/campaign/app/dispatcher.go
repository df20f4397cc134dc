package app

import (
	"context"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rankedceo/crm-email/internal/campaign/adapters/emailprovider"
	"github.com/rankedceo/crm-email/internal/campaign/domain"
	"golang.org/x/sync/errgroup"
)

const defaultSendConcurrency = 10

// DispatchResult summarizes one campaign dispatch run.
type DispatchResult struct {
	CampaignID uuid.UUID `json:"campaign_id"`
	Total      int       `json:"total"`
	Sent       int       `json:"sent"`
	Failed     int       `json:"failed"`
}

// Dispatcher runs the outbound campaign flow: resolve the audience, persist
// pending recipient rows, send in batches, then activate the campaign.
type Dispatcher struct {
	campaigns domain.CampaignRepository
	emails    domain.CampaignEmailRepository
	resolver  *RecipientResolver
	assigner  *VariantAssigner
	sender    emailprovider.EmailSender

	defaultFromEmail string
	defaultFromName  string
	batchSize        int
	sendConcurrency  int

	logger *slog.Logger
	now    func() time.Time
}

func NewDispatcher(
	campaigns domain.CampaignRepository,
	emails domain.CampaignEmailRepository,
	resolver *RecipientResolver,
	assigner *VariantAssigner,
	sender emailprovider.EmailSender,
	defaultFromEmail, defaultFromName string,
	batchSize, sendConcurrency int,
	logger *slog.Logger,
) *Dispatcher {
	if batchSize <= 0 {
		batchSize = 100
	}
	if sendConcurrency <= 0 {
		sendConcurrency = defaultSendConcurrency
	}
	// In-flight sends are bounded by the batch: a small batch never runs
	// more goroutines than it has recipients.
	if sendConcurrency > batchSize {
		sendConcurrency = batchSize
	}
	return &Dispatcher{
		campaigns:        campaigns,
		emails:           emails,
		resolver:         resolver,
		assigner:         assigner,
		sender:           sender,
		defaultFromEmail: defaultFromEmail,
		defaultFromName:  defaultFromName,
		batchSize:        batchSize,
		sendConcurrency:  sendConcurrency,
		logger:           logger,
		now:              time.Now,
	}
}

// Dispatch sends one campaign. All recipient rows are persisted as pending
// before the first send so provider callbacks always find their row. Batches
// run sequentially with bounded concurrency inside each batch; individual
// send failures are recorded on their rows and never abort the run. The
// campaign transitions to active exactly once, after the final batch.
func (d *Dispatcher) Dispatch(ctx context.Context, campaignID uuid.UUID) (*DispatchResult, error) {
	c, err := d.campaigns.GetByID(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if c.Status != domain.CampaignStatusDraft && c.Status != domain.CampaignStatusScheduled {
		return nil, &domain.InvalidStatusError{Status: c.Status}
	}
	if len(c.Variants) == 0 {
		c.Variants = []domain.Variant{{}}
	}

	recipients, err := d.resolver.Resolve(ctx, c)
	if err != nil {
		return nil, err
	}

	rows := d.buildPendingRows(c, recipients)
	if err := d.emails.CreatePending(ctx, rows); err != nil {
		d.logger.ErrorContext(ctx, "Failed to persist pending campaign emails",
			"error", err, "campaign_id", c.ID, "recipients", len(rows))
		return nil, err
	}

	fromEmail := c.FromEmail.String
	if fromEmail == "" {
		fromEmail = d.defaultFromEmail
	}
	fromName := c.FromName.String
	if fromName == "" {
		fromName = d.defaultFromName
	}

	var sent, failed atomic.Int64
	for start := 0; start < len(rows); start += d.batchSize {
		end := start + d.batchSize
		if end > len(rows) {
			end = len(rows)
		}
		batch := rows[start:end]

		g, batchCtx := errgroup.WithContext(ctx)
		g.SetLimit(d.sendConcurrency)
		for i := range batch {
			row := batch[i]
			g.Go(func() error {
				if d.sendOne(batchCtx, row, fromEmail, fromName) {
					sent.Add(1)
					campaignEmailsSentCounter.WithLabelValues("sent").Inc()
				} else {
					failed.Add(1)
					campaignEmailsSentCounter.WithLabelValues("failed").Inc()
				}
				return nil
			})
		}
		// Send errors are absorbed per row; Wait only orders the batches.
		_ = g.Wait()

		d.logger.InfoContext(ctx, "Campaign batch completed",
			"campaign_id", c.ID, "batch_start", start, "batch_size", len(batch))
	}

	if err := d.campaigns.MarkActive(ctx, c.ID, d.now()); err != nil {
		d.logger.ErrorContext(ctx, "Failed to activate campaign after dispatch",
			"error", err, "campaign_id", c.ID)
		return nil, err
	}

	result := &DispatchResult{
		CampaignID: c.ID,
		Total:      len(rows),
		Sent:       int(sent.Load()),
		Failed:     int(failed.Load()),
	}
	d.logger.InfoContext(ctx, "Campaign dispatch finished",
		"campaign_id", c.ID, "total", result.Total, "sent", result.Sent, "failed", result.Failed)
	return result, nil
}

// buildPendingRows renders each recipient's subject and body up front so the
// persisted row carries exactly what will be sent.
func (d *Dispatcher) buildPendingRows(c *domain.Campaign, recipients []domain.RecipientRecord) []*domain.CampaignEmail {
	rows := make([]*domain.CampaignEmail, 0, len(recipients))
	for _, r := range recipients {
		variantIdx := d.assigner.Assign(c.Variants)
		rows = append(rows, &domain.CampaignEmail{
			ID:           uuid.New(),
			CampaignID:   c.ID,
			AccountID:    c.AccountID,
			ContactID:    r.ContactID,
			Email:        r.Email,
			Name:         r.Name,
			VariantIndex: variantIdx,
			Subject:      RenderTemplate(c.Variants[variantIdx].Subject, r.Variables),
			Body:         RenderTemplate(c.Variants[variantIdx].Body, r.Variables),
			Status:       domain.EmailStatusPending,
		})
	}
	return rows
}

// sendOne attempts one recipient and records the outcome on its row. Returns
// true when the provider accepted the message.
func (d *Dispatcher) sendOne(ctx context.Context, row *domain.CampaignEmail, fromEmail, fromName string) bool {
	resp, err := d.sender.Send(ctx, emailprovider.SendRequest{
		To:       row.Email,
		ToName:   row.Name,
		From:     fromEmail,
		FromName: fromName,
		Subject:  row.Subject,
		HTML:     row.Body,
		CustomArgs: map[string]string{
			"campaign_id":       row.CampaignID.String(),
			"campaign_email_id": row.ID.String(),
		},
	})
	if err != nil {
		d.recordFailure(ctx, row, err.Error())
		return false
	}
	if !resp.Success {
		d.recordFailure(ctx, row, strings.Join(resp.Errors, "; "))
		return false
	}

	if err := d.emails.MarkSent(ctx, row.ID, resp.ProviderMessageID, d.now()); err != nil {
		d.logger.ErrorContext(ctx, "Failed to mark campaign email sent",
			"error", err, "campaign_email_id", row.ID)
	}
	return true
}

func (d *Dispatcher) recordFailure(ctx context.Context, row *domain.CampaignEmail, reason string) {
	d.logger.WarnContext(ctx, "Campaign email send failed",
		"campaign_email_id", row.ID, "to", row.Email, "reason", reason)
	if err := d.emails.MarkFailed(ctx, row.ID, reason); err != nil {
		d.logger.ErrorContext(ctx, "Failed to mark campaign email failed",
			"error", err, "campaign_email_id", row.ID)
	}
}
