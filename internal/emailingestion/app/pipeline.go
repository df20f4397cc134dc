package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rankedceo/crm-email/internal/emailingestion/domain"
	"github.com/rankedceo/crm-email/internal/emailingestion/parse"
	"github.com/rankedceo/crm-email/internal/platform/messagebroker"
)

const previewMaxLength = 150

// ErrMissingAddresses is returned when a payload has no usable sender or no
// recipients after parsing.
var ErrMissingAddresses = errors.New("inbound email is missing sender or recipient addresses")

// Pipeline runs the full inbound ingestion flow: parse, clean, resolve the
// thread, persist, then announce the stored message on the broker.
type Pipeline struct {
	parser    *parse.Parser
	sanitizer parse.Sanitizer
	resolver  *ThreadResolver
	repo      domain.IngestionRepository
	nats      messagebroker.NATSClient
	logger    *slog.Logger
	now       func() time.Time
}

func NewPipeline(
	parser *parse.Parser,
	sanitizer parse.Sanitizer,
	resolver *ThreadResolver,
	repo domain.IngestionRepository,
	nats messagebroker.NATSClient,
	logger *slog.Logger,
) *Pipeline {
	return &Pipeline{
		parser:    parser,
		sanitizer: sanitizer,
		resolver:  resolver,
		repo:      repo,
		nats:      nats,
		logger:    logger,
		now:       time.Now,
	}
}

// Ingest processes one inbound payload for an account and returns the stored
// message. Persistence failures are returned; the post-store broker publish is
// best effort and never fails the ingestion.
func (p *Pipeline) Ingest(ctx context.Context, accountID uuid.UUID, payload parse.InboundPayload, receivedAt time.Time) (*domain.EmailMessage, error) {
	start := p.now()

	parsed, err := p.parser.Parse(payload)
	if err != nil {
		inboundEmailProcessedCounter.WithLabelValues("error_parsing").Inc()
		return nil, err
	}

	if parsed.FromAddress == "" || len(parsed.ToAddresses) == 0 {
		inboundEmailProcessedCounter.WithLabelValues("error_validation").Inc()
		p.logger.WarnContext(ctx, "Rejecting inbound email without addresses",
			"account_id", accountID, "from", parsed.FromAddress, "to_count", len(parsed.ToAddresses))
		return nil, ErrMissingAddresses
	}

	cleanedPlain := parse.CleanPlainBody(parsed.BodyPlain)
	sanitizedHTML := p.sanitizer.SanitizeHTML(parsed.BodyHTML)

	previewSource := cleanedPlain
	if previewSource == "" {
		previewSource = sanitizedHTML
	}

	if receivedAt.IsZero() {
		receivedAt = p.now()
	}

	msg := &domain.EmailMessage{
		ID:           uuid.New(),
		AccountID:    accountID,
		MessageID:    parsed.MessageID,
		InReplyTo:    nullString(parse.StripAngleBrackets(parsed.InReplyTo)),
		References:   parsed.References,
		FromAddress:  parsed.FromAddress,
		FromName:     nullString(parsed.FromName),
		ToAddresses:  parsed.ToAddresses,
		CcAddresses:  parsed.CcAddresses,
		BccAddresses: parsed.BccAddresses,
		Subject:      parsed.Subject,
		BodyPlain:    nullString(cleanedPlain),
		BodyHTML:     nullString(sanitizedHTML),
		Preview:      parse.PreviewText(previewSource, previewMaxLength),
		Direction:    domain.DirectionInbound,
		Headers:      parsed.Headers,
		Attachments:  parsed.Attachments,
		ReceivedAt:   receivedAt,
	}

	thread, err := p.resolver.Resolve(ctx, accountID, parsed)
	if err != nil {
		p.logger.ErrorContext(ctx, "Thread resolution failed", "error", err, "account_id", accountID)
		return nil, err
	}

	if thread != nil {
		msg.ThreadID = uuid.NullUUID{UUID: thread.ID, Valid: true}
		if err := p.repo.CreateMessageInThread(ctx, msg, thread.ID); err != nil {
			inboundEmailProcessedCounter.WithLabelValues("error_db_save").Inc()
			p.logger.ErrorContext(ctx, "Failed to store message in existing thread",
				"error", err, "thread_id", thread.ID, "message_id", msg.MessageID)
			return nil, err
		}
		inboundEmailThreadCounter.WithLabelValues("matched_existing").Inc()
	} else {
		newThread := &domain.EmailThread{
			ID:            uuid.New(),
			AccountID:     accountID,
			Subject:       parsed.Subject,
			Participants:  participants(parsed),
			MessageCount:  1,
			LastMessageAt: receivedAt,
		}
		msg.ThreadID = uuid.NullUUID{UUID: newThread.ID, Valid: true}
		if err := p.repo.CreateMessageWithNewThread(ctx, msg, newThread); err != nil {
			inboundEmailProcessedCounter.WithLabelValues("error_db_save").Inc()
			p.logger.ErrorContext(ctx, "Failed to store message with new thread",
				"error", err, "message_id", msg.MessageID)
			return nil, err
		}
		inboundEmailThreadCounter.WithLabelValues("created_new").Inc()
	}

	p.publishReceived(ctx, msg)

	inboundEmailProcessedCounter.WithLabelValues("success").Inc()
	inboundEmailProcessingDurationHist.Observe(p.now().Sub(start).Seconds())
	p.logger.InfoContext(ctx, "Ingested inbound email",
		"account_id", accountID,
		"email_message_id", msg.ID,
		"thread_id", msg.ThreadID.UUID,
		"message_id", msg.MessageID,
		"from", msg.FromAddress,
	)
	return msg, nil
}

// MessageReceivedEvent is published after an inbound message is stored, for
// downstream consumers (notifications, activity feeds).
type MessageReceivedEvent struct {
	EmailMessageID uuid.UUID `json:"email_message_id"`
	AccountID      uuid.UUID `json:"account_id"`
	ThreadID       uuid.UUID `json:"thread_id"`
	FromAddress    string    `json:"from_address"`
	Subject        string    `json:"subject"`
	ReceivedAt     time.Time `json:"received_at"`
}

func (p *Pipeline) publishReceived(ctx context.Context, msg *domain.EmailMessage) {
	event := MessageReceivedEvent{
		EmailMessageID: msg.ID,
		AccountID:      msg.AccountID,
		ThreadID:       msg.ThreadID.UUID,
		FromAddress:    msg.FromAddress,
		Subject:        msg.Subject,
		ReceivedAt:     msg.ReceivedAt,
	}
	data, err := json.Marshal(event)
	if err != nil {
		p.logger.ErrorContext(ctx, "Failed to marshal message received event", "error", err, "email_message_id", msg.ID)
		return
	}
	if err := p.nats.Publish(ctx, messagebroker.SubjectInboundEmailReceived, data); err != nil {
		p.logger.ErrorContext(ctx, "Failed to publish message received event",
			"error", err, "subject", messagebroker.SubjectInboundEmailReceived, "email_message_id", msg.ID)
	}
}

// participants collects the distinct addresses on a message, sender first,
// deduplicated case-insensitively with first-seen casing kept.
func participants(parsed *domain.ParsedEmail) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(addr string) {
		key := strings.ToLower(addr)
		if _, ok := seen[key]; ok || addr == "" {
			return
		}
		seen[key] = struct{}{}
		out = append(out, addr)
	}
	add(parsed.FromAddress)
	for _, addr := range parsed.ToAddresses {
		add(addr)
	}
	for _, addr := range parsed.CcAddresses {
		add(addr)
	}
	return out
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
