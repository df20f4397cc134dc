package emailprovider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"
)

const defaultSendGridBaseURL = "https://api.sendgrid.com"

// SendGridProvider sends mail through the SendGrid v3 REST API.
type SendGridProvider struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewSendGridProvider creates a SendGrid adapter. baseURL is overridable for
// tests; pass "" for the production endpoint.
func NewSendGridProvider(apiKey, baseURL string, logger *slog.Logger) *SendGridProvider {
	if baseURL == "" {
		baseURL = defaultSendGridBaseURL
	}
	return &SendGridProvider{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		logger: logger.With("provider", "sendgrid"),
	}
}

func (p *SendGridProvider) Name() string {
	return "sendgrid"
}

type sgAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type sgPersonalization struct {
	To         []sgAddress       `json:"to"`
	CustomArgs map[string]string `json:"custom_args,omitempty"`
}

type sgContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type sgMailSendRequest struct {
	Personalizations []sgPersonalization `json:"personalizations"`
	From             sgAddress           `json:"from"`
	Subject          string              `json:"subject"`
	Content          []sgContent         `json:"content"`
	TrackingSettings *sgTrackingSettings `json:"tracking_settings,omitempty"`
}

type sgTrackingSettings struct {
	ClickTracking sgTrackingToggle `json:"click_tracking"`
	OpenTracking  sgTrackingToggle `json:"open_tracking"`
}

type sgTrackingToggle struct {
	Enable bool `json:"enable"`
}

type sgErrorResponse struct {
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// Send submits one message via POST /v3/mail/send. SendGrid acknowledges with
// 202 and returns the assigned message ID in the X-Message-Id header.
func (p *SendGridProvider) Send(ctx context.Context, request SendRequest) (*SendResponse, error) {
	text := request.Text
	if text == "" {
		text = stripHTML(request.HTML)
	}

	// SendGrid requires content ordered text/plain before text/html.
	content := []sgContent{{Type: "text/plain", Value: text}}
	if request.HTML != "" {
		content = append(content, sgContent{Type: "text/html", Value: request.HTML})
	}

	payload := sgMailSendRequest{
		Personalizations: []sgPersonalization{{
			To:         []sgAddress{{Email: request.To, Name: request.ToName}},
			CustomArgs: request.CustomArgs,
		}},
		From:    sgAddress{Email: request.From, Name: request.FromName},
		Subject: request.Subject,
		Content: content,
		TrackingSettings: &sgTrackingSettings{
			ClickTracking: sgTrackingToggle{Enable: true},
			OpenTracking:  sgTrackingToggle{Enable: true},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal mail send request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v3/mail/send", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build mail send request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("mail send request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusAccepted {
		messageID := resp.Header.Get("X-Message-Id")
		p.logger.DebugContext(ctx, "SendGrid accepted message",
			"to", request.To, "provider_message_id", messageID)
		return &SendResponse{
			Success:           true,
			StatusCode:        resp.StatusCode,
			ProviderMessageID: messageID,
		}, nil
	}

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	errs := parseSendGridErrors(respBody)
	p.logger.WarnContext(ctx, "SendGrid rejected message",
		"to", request.To, "status_code", resp.StatusCode, "errors", errs)
	return &SendResponse{
		Success:    false,
		StatusCode: resp.StatusCode,
		Errors:     errs,
	}, nil
}

func parseSendGridErrors(body []byte) []string {
	var parsed sgErrorResponse
	if err := json.Unmarshal(body, &parsed); err != nil || len(parsed.Errors) == 0 {
		if len(body) == 0 {
			return []string{"unknown provider error"}
		}
		return []string{string(body)}
	}
	out := make([]string, 0, len(parsed.Errors))
	for _, e := range parsed.Errors {
		out = append(out, e.Message)
	}
	return out
}

var (
	htmlBlockRe = regexp.MustCompile(`(?is)<(?:style|script)\b[^>]*>.*?</(?:style|script)>`)
	htmlTagRe   = regexp.MustCompile(`<[^>]+>`)
	spaceRunRe  = regexp.MustCompile(`[ \t]+`)
)

// stripHTML derives a rough plain-text alternative from an HTML body for
// recipients whose clients prefer text/plain.
func stripHTML(html string) string {
	if html == "" {
		return ""
	}
	text := htmlBlockRe.ReplaceAllString(html, "")
	text = strings.NewReplacer("<br>", "\n", "<br/>", "\n", "<br />", "\n", "</p>", "\n\n").Replace(text)
	text = htmlTagRe.ReplaceAllString(text, "")
	text = strings.NewReplacer("&nbsp;", " ", "&amp;", "&", "&lt;", "<", "&gt;", ">", "&quot;", `"`, "&#39;", "'").Replace(text)
	text = spaceRunRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}
