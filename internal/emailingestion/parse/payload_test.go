package parse

import (
	"fmt"
	"testing"
	"time"

	"github.com/rankedceo/crm-email/internal/emailingestion/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestParser() *Parser {
	p := NewParser("crm.example.com")
	p.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return p
}

func TestParser_WebhookForm(t *testing.T) {
	p := newTestParser()

	parsed, err := p.Parse(WebhookForm{
		Fields: map[string]string{
			"from":    "John Smith <john@sender.com>",
			"to":      "support@crm.example.com, Sales <sales@crm.example.com>",
			"cc":      "watcher@other.com",
			"subject": "Pricing question",
			"text":    "What does the pro plan cost?",
			"html":    "<p>What does the pro plan cost?</p>",
			"headers": "Message-ID: <abc123@sender.com>\nIn-Reply-To: <root@crm.example.com>\nReferences: <root@crm.example.com> <mid@crm.example.com>",
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "john@sender.com", parsed.FromAddress)
	assert.Equal(t, "John Smith", parsed.FromName)
	assert.Equal(t, []string{"support@crm.example.com", "sales@crm.example.com"}, parsed.ToAddresses)
	assert.Equal(t, []string{"watcher@other.com"}, parsed.CcAddresses)
	assert.Equal(t, "Pricing question", parsed.Subject)
	assert.Equal(t, "What does the pro plan cost?", parsed.BodyPlain)
	assert.Equal(t, "abc123@sender.com", parsed.MessageID)
	assert.Equal(t, "<root@crm.example.com>", parsed.InReplyTo)
	assert.Equal(t, []string{"root@crm.example.com", "mid@crm.example.com"}, parsed.References)
}

func TestParser_WebhookForm_Defaults(t *testing.T) {
	p := newTestParser()

	parsed, err := p.Parse(WebhookForm{
		Fields: map[string]string{
			"from": "totally malformed",
			"to":   "someone@x.com",
		},
	})
	require.NoError(t, err)

	// Malformed sender degrades to the raw string instead of failing.
	assert.Equal(t, "totally malformed", parsed.FromAddress)
	assert.Equal(t, "", parsed.FromName)
	assert.Equal(t, "No Subject", parsed.Subject)

	// Missing Message-ID is synthesized from the clock and inbound domain.
	wantID := fmt.Sprintf("%d@crm.example.com", time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC).UnixNano())
	assert.Equal(t, wantID, parsed.MessageID)
}

func TestParser_WebhookForm_TopLevelHeaderPromotion(t *testing.T) {
	p := newTestParser()

	parsed, err := p.Parse(WebhookForm{
		Fields: map[string]string{
			"from":        "a@x.com",
			"to":          "b@y.com",
			"In-Reply-To": "<parent@y.com>",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "<parent@y.com>", parsed.InReplyTo)
}

func TestParser_WebhookForm_AttachmentNormalization(t *testing.T) {
	p := newTestParser()

	parsed, err := p.Parse(WebhookForm{
		Fields: map[string]string{"from": "a@x.com", "to": "b@y.com"},
		Attachments: []domain.Attachment{
			{Content: "YWJj"},
			{Filename: "report.pdf", ContentType: "application/pdf", Content: "JVBERg==", Size: 42},
		},
	})
	require.NoError(t, err)
	require.Len(t, parsed.Attachments, 2)

	assert.Equal(t, "unknown", parsed.Attachments[0].Filename)
	assert.Equal(t, "application/octet-stream", parsed.Attachments[0].ContentType)
	assert.Equal(t, len("YWJj"), parsed.Attachments[0].Size)

	assert.Equal(t, "report.pdf", parsed.Attachments[1].Filename)
	assert.Equal(t, 42, parsed.Attachments[1].Size)
}

func TestParser_RawMIME(t *testing.T) {
	p := newTestParser()

	raw := "From: Jane <jane@sender.com>\r\n" +
		"To: support@crm.example.com\r\n" +
		"Subject: Renewal\r\n" +
		"Message-ID: <mime-1@sender.com>\r\n" +
		"References: <r1@x.com> <r2@x.com>\r\n" +
		"\r\n" +
		"Please renew our contract.\r\n"

	parsed, err := p.Parse(RawMime{Data: []byte(raw)})
	require.NoError(t, err)

	assert.Equal(t, "jane@sender.com", parsed.FromAddress)
	assert.Equal(t, "Jane", parsed.FromName)
	assert.Equal(t, []string{"support@crm.example.com"}, parsed.ToAddresses)
	assert.Equal(t, "Renewal", parsed.Subject)
	assert.Equal(t, "mime-1@sender.com", parsed.MessageID)
	assert.Equal(t, []string{"r1@x.com", "r2@x.com"}, parsed.References)
	assert.Contains(t, parsed.BodyPlain, "Please renew our contract.")
}

func TestParser_RawMIME_Unreadable(t *testing.T) {
	p := newTestParser()

	_, err := p.Parse(RawMime{Data: []byte("not a mime message at all")})
	require.Error(t, err)
}

func TestParseHeaderBlock_ContinuationFolding(t *testing.T) {
	headers := ParseHeaderBlock("Subject: a very\n long subject\nX-Custom: v")

	assert.Equal(t, "a very long subject", headers["Subject"])
	assert.Equal(t, "v", headers["X-Custom"])
}

func TestStripAngleBrackets(t *testing.T) {
	assert.Equal(t, "id@x.com", StripAngleBrackets("<id@x.com>"))
	assert.Equal(t, "id@x.com", StripAngleBrackets("id@x.com"))
	assert.Equal(t, "", StripAngleBrackets(""))
}
