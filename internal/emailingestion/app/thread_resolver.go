package app

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/rankedceo/crm-email/internal/emailingestion/domain"
	"github.com/rankedceo/crm-email/internal/emailingestion/parse"
)

// ThreadResolver decides which conversation an inbound message belongs to.
//
// A header candidate comes from In-Reply-To, falling back to the first
// References entry (the thread root). Once a candidate exists, the
// authoritative join key is a case-insensitive subject match within the
// account; header-chain IDs are not separately indexed. Reply prefixes
// ("Re:", "Fwd:") are treated as distinct subjects.
type ThreadResolver struct {
	repo   domain.IngestionRepository
	logger *slog.Logger
}

func NewThreadResolver(repo domain.IngestionRepository, logger *slog.Logger) *ThreadResolver {
	return &ThreadResolver{repo: repo, logger: logger}
}

// Resolve returns the existing thread the message attaches to, or nil when a
// new thread should be created.
func (r *ThreadResolver) Resolve(ctx context.Context, accountID uuid.UUID, parsed *domain.ParsedEmail) (*domain.EmailThread, error) {
	key := threadCandidateKey(parsed.InReplyTo, parsed.References)
	if key == "" {
		return nil, nil
	}

	thread, err := r.repo.FindThreadBySubject(ctx, accountID, parsed.Subject)
	if errors.Is(err, domain.ErrThreadNotFound) {
		r.logger.DebugContext(ctx, "No thread matched candidate",
			"candidate_key", key, "subject", parsed.Subject)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return thread, nil
}

// threadCandidateKey picks the header-chain candidate: In-Reply-To first,
// then the oldest References entry.
func threadCandidateKey(inReplyTo string, references []string) string {
	if key := parse.StripAngleBrackets(inReplyTo); key != "" {
		return key
	}
	if len(references) > 0 {
		return references[0]
	}
	return ""
}
