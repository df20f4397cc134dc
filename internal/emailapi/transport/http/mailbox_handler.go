package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chi_middleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rankedceo/crm-email/internal/emailingestion/domain"
)

// MailboxHandler exposes mailbox read-state and stats endpoints.
type MailboxHandler struct {
	repo   domain.IngestionRepository
	logger *slog.Logger
}

func NewMailboxHandler(repo domain.IngestionRepository, logger *slog.Logger) *MailboxHandler {
	return &MailboxHandler{
		repo:   repo,
		logger: logger.With("handler", "mailbox"),
	}
}

// HandleMarkMessageOpened marks one message read. Idempotent; the first
// opened_at is kept.
func (h *MailboxHandler) HandleMarkMessageOpened(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logger.With("request_id", chi_middleware.GetReqID(ctx))

	messageID, err := uuid.Parse(chi.URLParam(r, "message_id"))
	if err != nil {
		http.Error(w, "Invalid message ID", http.StatusBadRequest)
		return
	}

	if err := h.repo.MarkMessageOpened(ctx, messageID, time.Now().UTC()); err != nil {
		if errors.Is(err, domain.ErrMessageNotFound) {
			http.Error(w, "Message not found", http.StatusNotFound)
			return
		}
		logger.ErrorContext(ctx, "Failed to mark message opened", "error", err, "email_message_id", messageID)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleMarkThreadOpened marks every message of a thread read.
func (h *MailboxHandler) HandleMarkThreadOpened(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logger.With("request_id", chi_middleware.GetReqID(ctx))

	threadID, err := uuid.Parse(chi.URLParam(r, "thread_id"))
	if err != nil {
		http.Error(w, "Invalid thread ID", http.StatusBadRequest)
		return
	}

	if err := h.repo.MarkThreadOpened(ctx, threadID, time.Now().UTC()); err != nil {
		logger.ErrorContext(ctx, "Failed to mark thread opened", "error", err, "thread_id", threadID)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleMailboxStats returns aggregate message counts for an account.
func (h *MailboxHandler) HandleMailboxStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logger.With("request_id", chi_middleware.GetReqID(ctx))

	accountID, err := uuid.Parse(chi.URLParam(r, "account_id"))
	if err != nil {
		http.Error(w, "Invalid account ID", http.StatusBadRequest)
		return
	}

	stats, err := h.repo.MailboxStats(ctx, accountID, time.Now().UTC())
	if err != nil {
		logger.ErrorContext(ctx, "Failed to aggregate mailbox stats", "error", err, "account_id", accountID)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(stats)
}
