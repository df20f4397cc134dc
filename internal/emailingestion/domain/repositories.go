package domain

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrThreadNotFound indicates no thread matched the lookup.
	ErrThreadNotFound = errors.New("email thread not found")
	// ErrMessageNotFound indicates no message matched the lookup.
	ErrMessageNotFound = errors.New("email message not found")
)

// IngestionRepository persists messages and threads. The multi-row operations
// are transactional: a message insert and its thread counter update must
// never be observable separately, or the message_count invariant breaks.
type IngestionRepository interface {
	// FindThreadBySubject resolves a thread by case-insensitive subject
	// match within the account. Returns ErrThreadNotFound when absent.
	FindThreadBySubject(ctx context.Context, accountID uuid.UUID, subject string) (*EmailThread, error)

	// CreateMessageInThread inserts msg attached to an existing thread and
	// bumps the thread's message_count and last_message_at in one
	// transaction.
	CreateMessageInThread(ctx context.Context, msg *EmailMessage, threadID uuid.UUID) error

	// CreateMessageWithNewThread inserts a new thread (message_count 1)
	// and msg attached to it in one transaction.
	CreateMessageWithNewThread(ctx context.Context, msg *EmailMessage, thread *EmailThread) error

	// MarkMessageOpened sets the opened flag and opened_at once.
	MarkMessageOpened(ctx context.Context, id uuid.UUID, at time.Time) error

	// MarkThreadOpened marks every message in the thread opened.
	MarkThreadOpened(ctx context.Context, threadID uuid.UUID, at time.Time) error

	// MailboxStats aggregates counts for the account.
	MailboxStats(ctx context.Context, accountID uuid.UUID, now time.Time) (*MailboxStats, error)
}
