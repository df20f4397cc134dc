package parse

import (
	"bytes"
	"fmt"
	"io"
	"net/mail"
	"strings"
	"time"

	"github.com/rankedceo/crm-email/internal/emailingestion/domain"
)

// InboundPayload is the tagged union of inbound payload shapes resolved at
// the ingestion boundary: an inbound-parse webhook form or a raw MIME blob.
type InboundPayload interface {
	inboundPayload()
}

// WebhookForm carries the fields of an inbound-parse webhook. Headers holds
// already-flattened header values; the "headers" form field, when present,
// carries a raw RFC-5322 header block and is merged in during parsing.
type WebhookForm struct {
	Fields      map[string]string
	Headers     map[string]string
	Attachments []domain.Attachment
}

func (WebhookForm) inboundPayload() {}

// RawMime carries a full raw MIME message.
type RawMime struct {
	Data []byte
}

func (RawMime) inboundPayload() {}

// Parser turns inbound payloads into ParsedEmail values.
type Parser struct {
	inboundDomain string
	now           func() time.Time
}

func NewParser(inboundDomain string) *Parser {
	return &Parser{inboundDomain: inboundDomain, now: time.Now}
}

// Parse resolves either payload shape into a ParsedEmail. Malformed
// addresses and missing headers degrade to best-effort defaults; only an
// unreadable raw MIME blob is an error.
func (p *Parser) Parse(payload InboundPayload) (*domain.ParsedEmail, error) {
	switch v := payload.(type) {
	case WebhookForm:
		return p.parseWebhookForm(v), nil
	case RawMime:
		return p.parseRawMIME(v.Data)
	default:
		return nil, fmt.Errorf("unsupported inbound payload type %T", payload)
	}
}

func (p *Parser) parseWebhookForm(form WebhookForm) *domain.ParsedEmail {
	headers := make(map[string]string, len(form.Headers))
	for k, v := range form.Headers {
		headers[k] = v
	}
	if block, ok := form.Fields["headers"]; ok {
		for k, v := range ParseHeaderBlock(block) {
			if _, exists := headers[k]; !exists {
				headers[k] = v
			}
		}
	}
	// Some sources put threading headers at the top level of the form.
	for _, key := range []string{"Message-ID", "In-Reply-To", "References", "Date"} {
		if v, ok := form.Fields[key]; ok && v != "" {
			headers[key] = v
		}
	}

	parsed := &domain.ParsedEmail{
		FromAddress:  extractEmail(form.Fields["from"]),
		FromName:     extractName(form.Fields["from"]),
		ToAddresses:  Addresses(form.Fields["to"]),
		CcAddresses:  Addresses(form.Fields["cc"]),
		BccAddresses: Addresses(form.Fields["bcc"]),
		Subject:      subjectOrDefault(form.Fields["subject"]),
		BodyPlain:    form.Fields["text"],
		BodyHTML:     form.Fields["html"],
		MessageID:    p.messageID(headers),
		InReplyTo:    headerLookup(headers, "In-Reply-To"),
		References:   parseReferences(headerLookup(headers, "References")),
		Headers:      headers,
		Attachments:  normalizeAttachments(form.Attachments),
	}
	return parsed
}

func (p *Parser) parseRawMIME(data []byte) (*domain.ParsedEmail, error) {
	msg, err := mail.ReadMessage(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to read raw MIME message: %w", err)
	}

	headers := make(map[string]string, len(msg.Header))
	for key, values := range msg.Header {
		if len(values) > 0 {
			headers[key] = values[0]
		}
	}

	body, err := io.ReadAll(msg.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read raw MIME body: %w", err)
	}

	// Separating an HTML alternative would need a full multipart walk; the
	// body is kept as plain text, matching webhook-form behavior for
	// text-only senders.
	parsed := &domain.ParsedEmail{
		FromAddress: extractEmail(headerLookup(headers, "From")),
		FromName:    extractName(headerLookup(headers, "From")),
		ToAddresses: Addresses(headerLookup(headers, "To")),
		CcAddresses: Addresses(headerLookup(headers, "Cc")),
		Subject:     subjectOrDefault(headerLookup(headers, "Subject")),
		BodyPlain:   string(body),
		MessageID:   p.messageID(headers),
		InReplyTo:   headerLookup(headers, "In-Reply-To"),
		References:  parseReferences(headerLookup(headers, "References")),
		Headers:     headers,
	}
	return parsed, nil
}

// messageID returns the stripped Message-ID header, synthesizing
// "{timestamp}@{domain}" when the sender omitted one.
func (p *Parser) messageID(headers map[string]string) string {
	if id := StripAngleBrackets(headerLookup(headers, "Message-ID")); id != "" {
		return id
	}
	return fmt.Sprintf("%d@%s", p.now().UnixNano(), p.inboundDomain)
}

// ParseHeaderBlock parses a raw RFC-5322 header block into a flat map.
// Continuation lines are folded into the previous header value.
func ParseHeaderBlock(block string) map[string]string {
	headers := make(map[string]string)
	var lastKey string
	for _, line := range strings.Split(block, "\n") {
		if line == "" {
			continue
		}
		if (strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t")) && lastKey != "" {
			headers[lastKey] += " " + strings.TrimSpace(line)
			continue
		}
		colon := strings.Index(line, ":")
		if colon <= 0 {
			continue
		}
		key := strings.TrimSpace(line[:colon])
		headers[key] = strings.TrimSpace(line[colon+1:])
		lastKey = key
	}
	return headers
}

// StripAngleBrackets removes surrounding <> from a header-chain identifier.
func StripAngleBrackets(id string) string {
	return strings.TrimSpace(strings.NewReplacer("<", "", ">", "").Replace(id))
}

func headerLookup(headers map[string]string, name string) string {
	if v, ok := headers[name]; ok {
		return v
	}
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

func parseReferences(raw string) []string {
	if raw == "" {
		return nil
	}
	var refs []string
	for _, ref := range strings.Fields(raw) {
		if stripped := StripAngleBrackets(ref); stripped != "" {
			refs = append(refs, stripped)
		}
	}
	return refs
}

// extractEmail falls back to the raw trimmed string when no email token is
// parsable, so a malformed From header degrades instead of failing ingestion.
func extractEmail(raw string) string {
	if mb, ok := ParseAddress(raw); ok {
		return mb.Address
	}
	return strings.TrimSpace(raw)
}

func extractName(raw string) string {
	if mb, ok := ParseAddress(raw); ok {
		return mb.Name
	}
	return ""
}

func subjectOrDefault(subject string) string {
	if strings.TrimSpace(subject) == "" {
		return "No Subject"
	}
	return subject
}

func normalizeAttachments(atts []domain.Attachment) []domain.Attachment {
	if len(atts) == 0 {
		return nil
	}
	out := make([]domain.Attachment, 0, len(atts))
	for _, att := range atts {
		if att.Filename == "" {
			att.Filename = "unknown"
		}
		if att.ContentType == "" {
			att.ContentType = "application/octet-stream"
		}
		if att.Size == 0 {
			att.Size = len(att.Content)
		}
		out = append(out, att)
	}
	return out
}
