package http

import (
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chi_middleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rankedceo/crm-email/internal/emailingestion/app"
	ingestiondomain "github.com/rankedceo/crm-email/internal/emailingestion/domain"
	"github.com/rankedceo/crm-email/internal/platform/messagebroker"
)

const maxInboundBodyBytes = 32 << 20 // provider caps inbound posts at 30MB

// InboundEmailHandler accepts inbound-parse posts from the email provider
// and queues them for the ingestion workers.
type InboundEmailHandler struct {
	natsClient messagebroker.NATSClient
	logger     *slog.Logger
}

func NewInboundEmailHandler(nc messagebroker.NATSClient, logger *slog.Logger) *InboundEmailHandler {
	return &InboundEmailHandler{
		natsClient: nc,
		logger:     logger.With("handler", "inbound_email"),
	}
}

// HandleInboundPost accepts multipart form, urlencoded form, JSON, or raw
// MIME posts. The response is always a generic 202 acknowledgement; the
// provider only needs to know the payload was queued, and retries on 5xx.
func (h *InboundEmailHandler) HandleInboundPost(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logger.With("request_id", chi_middleware.GetReqID(ctx))

	accountID, err := uuid.Parse(chi.URLParam(r, "account_id"))
	if err != nil {
		logger.WarnContext(ctx, "Invalid account ID in inbound email URL", "error", err)
		http.Error(w, "Invalid account ID", http.StatusBadRequest)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxInboundBodyBytes)

	event, err := h.buildEvent(r, accountID)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to read inbound email payload", "error", err)
		http.Error(w, "Failed to read payload", http.StatusBadRequest)
		return
	}

	data, err := json.Marshal(event)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to marshal inbound email event", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if err := h.natsClient.Publish(ctx, messagebroker.SubjectInboundEmailRaw, data); err != nil {
		logger.ErrorContext(ctx, "Failed to publish inbound email event",
			"error", err, "subject", messagebroker.SubjectInboundEmailRaw)
		http.Error(w, "Failed to queue email for processing", http.StatusInternalServerError)
		return
	}

	logger.InfoContext(ctx, "Inbound email queued", "account_id", accountID, "size", len(data))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "queued"})
}

func (h *InboundEmailHandler) buildEvent(r *http.Request, accountID uuid.UUID) (*app.InboundEmailEvent, error) {
	event := &app.InboundEmailEvent{
		AccountID:  accountID,
		ReceivedAt: time.Now().UTC(),
	}

	contentType := r.Header.Get("Content-Type")
	switch {
	case strings.HasPrefix(contentType, "multipart/form-data"):
		if err := r.ParseMultipartForm(maxInboundBodyBytes); err != nil {
			return nil, err
		}
		event.Fields = flattenForm(r.MultipartForm.Value)
		atts, err := readAttachments(r.MultipartForm)
		if err != nil {
			return nil, err
		}
		event.Attachments = atts

	case strings.HasPrefix(contentType, "application/x-www-form-urlencoded"):
		if err := r.ParseForm(); err != nil {
			return nil, err
		}
		event.Fields = flattenForm(r.PostForm)

	case strings.HasPrefix(contentType, "application/json"):
		body, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, err
		}
		var fields map[string]string
		if err := json.Unmarshal(body, &fields); err != nil {
			return nil, err
		}
		// The "email" field carries the full raw MIME when present.
		if raw, ok := fields["email"]; ok && raw != "" {
			event.RawMime = []byte(raw)
		} else {
			event.Fields = fields
		}

	default:
		body, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, err
		}
		event.RawMime = body
	}
	return event, nil
}

func flattenForm(values map[string][]string) map[string]string {
	fields := make(map[string]string, len(values))
	for k, v := range values {
		if len(v) > 0 {
			fields[k] = v[0]
		}
	}
	return fields
}

func readAttachments(form *multipart.Form) ([]ingestiondomain.Attachment, error) {
	var atts []ingestiondomain.Attachment
	for _, headers := range form.File {
		for _, fh := range headers {
			f, err := fh.Open()
			if err != nil {
				return nil, err
			}
			content, err := io.ReadAll(f)
			f.Close()
			if err != nil {
				return nil, err
			}
			atts = append(atts, ingestiondomain.Attachment{
				Filename:    fh.Filename,
				ContentType: fh.Header.Get("Content-Type"),
				Content:     base64.StdEncoding.EncodeToString(content),
				Size:        len(content),
			})
		}
	}
	return atts, nil
}
