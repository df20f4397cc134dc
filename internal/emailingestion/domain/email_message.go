package domain

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Direction indicates whether a message entered or left the account's mailbox.
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// EmailMessage is one persisted email. Rows are immutable once written except
// for the opened/tracking fields.
type EmailMessage struct {
	ID        uuid.UUID     `json:"id"`
	AccountID uuid.UUID     `json:"account_id"`
	ThreadID  uuid.NullUUID `json:"thread_id,omitempty"`

	// MessageID is the RFC-822 Message-ID, angle brackets stripped.
	MessageID  string         `json:"message_id"`
	InReplyTo  sql.NullString `json:"in_reply_to,omitempty"`
	References []string       `json:"references,omitempty"`

	FromAddress  string         `json:"from_address"`
	FromName     sql.NullString `json:"from_name,omitempty"`
	ToAddresses  []string       `json:"to_addresses"`
	CcAddresses  []string       `json:"cc_addresses,omitempty"`
	BccAddresses []string       `json:"bcc_addresses,omitempty"`

	Subject   string         `json:"subject"`
	BodyPlain sql.NullString `json:"body_plain,omitempty"`
	BodyHTML  sql.NullString `json:"body_html,omitempty"`
	Preview   string         `json:"preview"`

	Direction Direction `json:"direction"`

	Opened   bool         `json:"opened"`
	OpenedAt sql.NullTime `json:"opened_at,omitempty"`

	Headers     map[string]string `json:"headers,omitempty"`
	Attachments []Attachment      `json:"attachments,omitempty"`

	ReceivedAt time.Time `json:"received_at"`
	CreatedAt  time.Time `json:"created_at"`
}

// EmailThread groups related messages of one conversation. message_count must
// always equal the number of EmailMessage rows referencing the thread.
type EmailThread struct {
	ID            uuid.UUID `json:"id"`
	AccountID     uuid.UUID `json:"account_id"`
	Subject       string    `json:"subject"`
	Participants  []string  `json:"participants"`
	MessageCount  int       `json:"message_count"`
	LastMessageAt time.Time `json:"last_message_at"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Attachment is a decoded inbound attachment.
type Attachment struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Content     string `json:"content"`
	Size        int    `json:"size"`
}

// ParsedEmail is the structured result of parsing one inbound payload.
// String fields are empty (not null) when absent; persistence maps empties
// to NULL columns.
type ParsedEmail struct {
	FromAddress  string
	FromName     string
	ToAddresses  []string
	CcAddresses  []string
	BccAddresses []string

	Subject   string
	BodyPlain string
	BodyHTML  string

	MessageID  string
	InReplyTo  string
	References []string

	Headers     map[string]string
	Attachments []Attachment
}

// MailboxStats aggregates message counts for the CRM email dashboard.
type MailboxStats struct {
	TotalMessages int `json:"total_messages"`
	TotalThreads  int `json:"total_threads"`
	InboundCount  int `json:"inbound_count"`
	OutboundCount int `json:"outbound_count"`
	UnreadCount   int `json:"unread_count"`
	TodayCount    int `json:"today_count"`
	WeekCount     int `json:"week_count"`
	MonthCount    int `json:"month_count"`
}
