package domain

import (
	"database/sql"
	"testing"
	"time"

	campaign "github.com/rankedceo/crm-email/internal/campaign/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rowWithStatus(status campaign.CampaignEmailStatus) *campaign.CampaignEmail {
	return &campaign.CampaignEmail{Status: status}
}

func eventAt(kind EventType, ts time.Time) DeliveryEvent {
	return DeliveryEvent{Event: kind, Timestamp: ts}
}

func TestBuildUpdate_StatusMovesForward(t *testing.T) {
	ts := time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		current campaign.CampaignEmailStatus
		event   EventType
		want    campaign.CampaignEmailStatus
	}{
		{"sent to delivered", campaign.EmailStatusSent, EventDelivered, campaign.EmailStatusDelivered},
		{"delivered to opened", campaign.EmailStatusDelivered, EventOpen, campaign.EmailStatusOpened},
		{"opened to clicked", campaign.EmailStatusOpened, EventClick, campaign.EmailStatusClicked},
		{"sent jumps straight to clicked", campaign.EmailStatusSent, EventClick, campaign.EmailStatusClicked},
		{"pending to bounced", campaign.EmailStatusPending, EventBounce, campaign.EmailStatusBounced},
		{"opened to unsubscribed", campaign.EmailStatusOpened, EventUnsubscribe, campaign.EmailStatusUnsubscribed},
		{"clicked to spam reported", campaign.EmailStatusClicked, EventSpamReport, campaign.EmailStatusSpamReported},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			update := BuildUpdate(rowWithStatus(tt.current), eventAt(tt.event, ts))
			assert.Equal(t, tt.want, update.Status)
		})
	}
}

func TestBuildUpdate_StatusNeverMovesBackward(t *testing.T) {
	ts := time.Now()

	tests := []struct {
		name    string
		current campaign.CampaignEmailStatus
		event   EventType
	}{
		{"delivered after opened", campaign.EmailStatusOpened, EventDelivered},
		{"open after clicked", campaign.EmailStatusClicked, EventOpen},
		{"delivered after clicked", campaign.EmailStatusClicked, EventDelivered},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			update := BuildUpdate(rowWithStatus(tt.current), eventAt(tt.event, ts))
			assert.Empty(t, update.Status)
		})
	}
}

func TestBuildUpdate_TerminalStatesAreSticky(t *testing.T) {
	ts := time.Now()
	terminals := []campaign.CampaignEmailStatus{
		campaign.EmailStatusBounced,
		campaign.EmailStatusUnsubscribed,
		campaign.EmailStatusSpamReported,
		campaign.EmailStatusFailed,
	}
	events := []EventType{EventDelivered, EventOpen, EventClick, EventBounce, EventUnsubscribe, EventSpamReport}

	for _, terminal := range terminals {
		for _, ev := range events {
			update := BuildUpdate(rowWithStatus(terminal), eventAt(ev, ts))
			assert.Empty(t, update.Status,
				"terminal status %s must not be displaced by %s", terminal, ev)
		}
	}
}

func TestBuildUpdate_TimestampsSetOnce(t *testing.T) {
	first := time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC)

	t.Run("open timestamp set when null", func(t *testing.T) {
		update := BuildUpdate(rowWithStatus(campaign.EmailStatusDelivered), eventAt(EventOpen, first))
		require.NotNil(t, update.OpenedAt)
		assert.Equal(t, first, *update.OpenedAt)
		assert.True(t, update.IncrementOpen)
	})

	t.Run("open timestamp kept once set, counter still increments", func(t *testing.T) {
		row := rowWithStatus(campaign.EmailStatusOpened)
		row.OpenedAt = sql.NullTime{Time: first, Valid: true}

		update := BuildUpdate(row, eventAt(EventOpen, first.Add(time.Hour)))
		assert.Nil(t, update.OpenedAt)
		assert.True(t, update.IncrementOpen)
	})

	t.Run("late delivered event still records timestamp", func(t *testing.T) {
		// Out-of-order: open arrived before delivered. Status stays opened
		// but delivered_at is captured.
		row := rowWithStatus(campaign.EmailStatusOpened)
		update := BuildUpdate(row, eventAt(EventDelivered, first))
		assert.Empty(t, update.Status)
		require.NotNil(t, update.DeliveredAt)
		assert.Equal(t, first, *update.DeliveredAt)
	})

	t.Run("unsubscribe records timestamp once", func(t *testing.T) {
		update := BuildUpdate(rowWithStatus(campaign.EmailStatusOpened), eventAt(EventUnsubscribe, first))
		assert.Equal(t, campaign.EmailStatusUnsubscribed, update.Status)
		require.NotNil(t, update.UnsubscribedAt)
		assert.Equal(t, first, *update.UnsubscribedAt)

		row := rowWithStatus(campaign.EmailStatusUnsubscribed)
		row.UnsubscribedAt = sql.NullTime{Time: first, Valid: true}
		update = BuildUpdate(row, eventAt(EventUnsubscribe, first.Add(time.Hour)))
		assert.Nil(t, update.UnsubscribedAt)
	})

	t.Run("spam report records timestamp once", func(t *testing.T) {
		update := BuildUpdate(rowWithStatus(campaign.EmailStatusDelivered), eventAt(EventSpamReport, first))
		assert.Equal(t, campaign.EmailStatusSpamReported, update.Status)
		require.NotNil(t, update.SpamReportedAt)
		assert.Equal(t, first, *update.SpamReportedAt)

		row := rowWithStatus(campaign.EmailStatusSpamReported)
		row.SpamReportedAt = sql.NullTime{Time: first, Valid: true}
		update = BuildUpdate(row, eventAt(EventSpamReport, first.Add(time.Hour)))
		assert.Nil(t, update.SpamReportedAt)
	})
}

func TestBuildUpdate_BounceReason(t *testing.T) {
	ts := time.Now()

	update := BuildUpdate(rowWithStatus(campaign.EmailStatusSent), DeliveryEvent{
		Event: EventBounce, Timestamp: ts, Reason: "550 mailbox unavailable",
	})
	assert.Equal(t, campaign.EmailStatusBounced, update.Status)
	assert.Equal(t, "550 mailbox unavailable", update.BouncedReason)
	require.NotNil(t, update.BouncedAt)

	t.Run("existing reason kept", func(t *testing.T) {
		row := rowWithStatus(campaign.EmailStatusBounced)
		row.BouncedReason = sql.NullString{String: "first reason", Valid: true}
		update := BuildUpdate(row, DeliveryEvent{Event: EventBounce, Timestamp: ts, Reason: "second reason"})
		assert.Empty(t, update.BouncedReason)
	})
}

func TestEmailUpdate_IsZero(t *testing.T) {
	ts := time.Now()
	assert.True(t, EmailUpdate{}.IsZero())
	assert.False(t, EmailUpdate{IncrementOpen: true}.IsZero())
	assert.False(t, EmailUpdate{Status: campaign.EmailStatusOpened}.IsZero())
	assert.False(t, EmailUpdate{UnsubscribedAt: &ts}.IsZero())
	assert.False(t, EmailUpdate{SpamReportedAt: &ts}.IsZero())
}
