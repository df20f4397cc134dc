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
	"github.com/rankedceo/crm-email/internal/emailingestion/domain"
)

type PgIngestionRepository struct {
	db     *pgxpool.Pool
	logger *slog.Logger
}

// NewPgIngestionRepository creates the PostgreSQL implementation of
// domain.IngestionRepository.
func NewPgIngestionRepository(dbPool *pgxpool.Pool, logger *slog.Logger) *PgIngestionRepository {
	return &PgIngestionRepository{
		db:     dbPool,
		logger: logger,
	}
}

// Subjects may contain % or _, so the lookup compares lowered values instead
// of using a pattern match.
const findThreadBySubjectQuery = `
	SELECT id, account_id, subject, participants, message_count, last_message_at, created_at, updated_at
	FROM email_threads
	WHERE account_id = $1 AND LOWER(subject) = LOWER($2)
	ORDER BY last_message_at DESC
	LIMIT 1
`

// FindThreadBySubject resolves a thread by case-insensitive subject equality
// within the account. The newest thread wins when subjects collide.
func (r *PgIngestionRepository) FindThreadBySubject(ctx context.Context, accountID uuid.UUID, subject string) (*domain.EmailThread, error) {
	var t domain.EmailThread
	err := r.db.QueryRow(ctx, findThreadBySubjectQuery, accountID, subject).Scan(
		&t.ID, &t.AccountID, &t.Subject, &t.Participants,
		&t.MessageCount, &t.LastMessageAt, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrThreadNotFound
		}
		r.logger.ErrorContext(ctx, "Error finding thread by subject", "error", err, "account_id", accountID)
		return nil, fmt.Errorf("failed to find thread by subject: %w", err)
	}
	return &t, nil
}

// CreateMessageInThread inserts the message and bumps the thread counters in
// one transaction, keeping message_count consistent with the message rows.
func (r *PgIngestionRepository) CreateMessageInThread(ctx context.Context, msg *domain.EmailMessage, threadID uuid.UUID) error {
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		if err := insertMessage(ctx, tx, msg); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `
			UPDATE email_threads
			SET message_count = message_count + 1,
			    last_message_at = $2,
			    updated_at = NOW()
			WHERE id = $1
		`, threadID, msg.ReceivedAt)
		if err != nil {
			return fmt.Errorf("failed to update thread counters: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrThreadNotFound
		}
		return nil
	})
	if err != nil {
		r.logger.ErrorContext(ctx, "Error creating message in thread",
			"error", err, "thread_id", threadID, "message_id", msg.MessageID)
		return err
	}
	return nil
}

// CreateMessageWithNewThread inserts the thread and its first message in one
// transaction.
func (r *PgIngestionRepository) CreateMessageWithNewThread(ctx context.Context, msg *domain.EmailMessage, thread *domain.EmailThread) error {
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO email_threads (id, account_id, subject, participants, message_count, last_message_at, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		`, thread.ID, thread.AccountID, thread.Subject, thread.Participants, thread.MessageCount, thread.LastMessageAt)
		if err != nil {
			return fmt.Errorf("failed to insert thread: %w", err)
		}
		return insertMessage(ctx, tx, msg)
	})
	if err != nil {
		r.logger.ErrorContext(ctx, "Error creating message with new thread",
			"error", err, "message_id", msg.MessageID)
		return err
	}
	return nil
}

func insertMessage(ctx context.Context, tx pgx.Tx, msg *domain.EmailMessage) error {
	headers, err := json.Marshal(msg.Headers)
	if err != nil {
		return fmt.Errorf("failed to marshal message headers: %w", err)
	}
	attachments, err := json.Marshal(msg.Attachments)
	if err != nil {
		return fmt.Errorf("failed to marshal message attachments: %w", err)
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO email_messages (
			id, account_id, thread_id, message_id, in_reply_to, "references",
			from_address, from_name, to_addresses, cc_addresses, bcc_addresses,
			subject, body_plain, body_html, preview, direction,
			opened, opened_at, headers, attachments, received_at, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11,
			$12, $13, $14, $15, $16,
			$17, $18, $19, $20, $21, NOW()
		)
	`,
		msg.ID, msg.AccountID, msg.ThreadID, msg.MessageID, msg.InReplyTo, msg.References,
		msg.FromAddress, msg.FromName, msg.ToAddresses, msg.CcAddresses, msg.BccAddresses,
		msg.Subject, msg.BodyPlain, msg.BodyHTML, msg.Preview, msg.Direction,
		msg.Opened, msg.OpenedAt, headers, attachments, msg.ReceivedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert email message: %w", err)
	}
	return nil
}

// MarkMessageOpened sets the opened flag once; repeated calls keep the first
// opened_at.
func (r *PgIngestionRepository) MarkMessageOpened(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE email_messages
		SET opened = TRUE,
		    opened_at = COALESCE(opened_at, $2)
		WHERE id = $1
	`, id, at)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error marking message opened", "error", err, "email_message_id", id)
		return fmt.Errorf("failed to mark message opened: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrMessageNotFound
	}
	return nil
}

// MarkThreadOpened marks every message of the thread opened.
func (r *PgIngestionRepository) MarkThreadOpened(ctx context.Context, threadID uuid.UUID, at time.Time) error {
	_, err := r.db.Exec(ctx, `
		UPDATE email_messages
		SET opened = TRUE,
		    opened_at = COALESCE(opened_at, $2)
		WHERE thread_id = $1 AND opened = FALSE
	`, threadID, at)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error marking thread opened", "error", err, "thread_id", threadID)
		return fmt.Errorf("failed to mark thread opened: %w", err)
	}
	return nil
}

// MailboxStats aggregates counts for the account dashboard in one query.
func (r *PgIngestionRepository) MailboxStats(ctx context.Context, accountID uuid.UUID, now time.Time) (*domain.MailboxStats, error) {
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	weekStart := now.AddDate(0, 0, -7)
	monthStart := now.AddDate(0, -1, 0)

	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE direction = 'inbound'),
			COUNT(*) FILTER (WHERE direction = 'outbound'),
			COUNT(*) FILTER (WHERE direction = 'inbound' AND opened = FALSE),
			COUNT(*) FILTER (WHERE received_at >= $2),
			COUNT(*) FILTER (WHERE received_at >= $3),
			COUNT(*) FILTER (WHERE received_at >= $4),
			(SELECT COUNT(*) FROM email_threads WHERE account_id = $1)
		FROM email_messages
		WHERE account_id = $1
	`
	var stats domain.MailboxStats
	err := r.db.QueryRow(ctx, query, accountID, dayStart, weekStart, monthStart).Scan(
		&stats.TotalMessages,
		&stats.InboundCount,
		&stats.OutboundCount,
		&stats.UnreadCount,
		&stats.TodayCount,
		&stats.WeekCount,
		&stats.MonthCount,
		&stats.TotalThreads,
	)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error aggregating mailbox stats", "error", err, "account_id", accountID)
		return nil, fmt.Errorf("failed to aggregate mailbox stats: %w", err)
	}
	return &stats, nil
}
