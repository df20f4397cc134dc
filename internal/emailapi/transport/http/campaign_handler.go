package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chi_middleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	campaignapp "github.com/rankedceo/crm-email/internal/campaign/app"
	"github.com/rankedceo/crm-email/internal/campaign/domain"
	"github.com/rankedceo/crm-email/internal/platform/messagebroker"
)

// CampaignHandler exposes campaign dispatch and stats endpoints. Sending is
// asynchronous: the handler gates on campaign status, queues a job, and the
// campaign workers do the actual dispatch.
type CampaignHandler struct {
	campaigns  domain.CampaignRepository
	emails     domain.CampaignEmailRepository
	natsClient messagebroker.NATSClient
	logger     *slog.Logger
}

func NewCampaignHandler(campaigns domain.CampaignRepository, emails domain.CampaignEmailRepository, nc messagebroker.NATSClient, logger *slog.Logger) *CampaignHandler {
	return &CampaignHandler{
		campaigns:  campaigns,
		emails:     emails,
		natsClient: nc,
		logger:     logger.With("handler", "campaign"),
	}
}

// HandleSendCampaign queues a dispatch job for a draft or scheduled campaign.
func (h *CampaignHandler) HandleSendCampaign(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logger.With("request_id", chi_middleware.GetReqID(ctx))

	campaignID, err := uuid.Parse(chi.URLParam(r, "campaign_id"))
	if err != nil {
		logger.WarnContext(ctx, "Invalid campaign ID in send URL", "error", err)
		http.Error(w, "Invalid campaign ID", http.StatusBadRequest)
		return
	}

	c, err := h.campaigns.GetByID(ctx, campaignID)
	if err != nil {
		if errors.Is(err, domain.ErrCampaignNotFound) {
			http.Error(w, "Campaign not found", http.StatusNotFound)
			return
		}
		logger.ErrorContext(ctx, "Failed to load campaign", "error", err, "campaign_id", campaignID)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if c.Status != domain.CampaignStatusDraft && c.Status != domain.CampaignStatusScheduled {
		logger.WarnContext(ctx, "Rejecting send for campaign in wrong status",
			"campaign_id", campaignID, "status", c.Status)
		http.Error(w, (&domain.InvalidStatusError{Status: c.Status}).Error(), http.StatusConflict)
		return
	}

	data, err := json.Marshal(campaignapp.DispatchJobEvent{CampaignID: campaignID})
	if err != nil {
		logger.ErrorContext(ctx, "Failed to marshal dispatch job", "error", err, "campaign_id", campaignID)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if err := h.natsClient.Publish(ctx, messagebroker.SubjectCampaignDispatchJob, data); err != nil {
		logger.ErrorContext(ctx, "Failed to publish dispatch job",
			"error", err, "subject", messagebroker.SubjectCampaignDispatchJob, "campaign_id", campaignID)
		http.Error(w, "Failed to queue campaign for sending", http.StatusInternalServerError)
		return
	}

	logger.InfoContext(ctx, "Campaign dispatch job queued", "campaign_id", campaignID)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(SendCampaignResponse{Status: "queued", CampaignID: campaignID.String()})
}

// HandleCampaignStats returns per-status recipient counts for one campaign.
func (h *CampaignHandler) HandleCampaignStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logger.With("request_id", chi_middleware.GetReqID(ctx))

	campaignID, err := uuid.Parse(chi.URLParam(r, "campaign_id"))
	if err != nil {
		http.Error(w, "Invalid campaign ID", http.StatusBadRequest)
		return
	}

	if _, err := h.campaigns.GetByID(ctx, campaignID); err != nil {
		if errors.Is(err, domain.ErrCampaignNotFound) {
			http.Error(w, "Campaign not found", http.StatusNotFound)
			return
		}
		logger.ErrorContext(ctx, "Failed to load campaign for stats", "error", err, "campaign_id", campaignID)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	stats, err := h.emails.CountByStatus(ctx, campaignID)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to aggregate campaign stats", "error", err, "campaign_id", campaignID)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(stats)
}
