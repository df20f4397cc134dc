package emailprovider

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sendgridTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSendGridProvider_SendAccepted(t *testing.T) {
	var captured sgMailSendRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v3/mail/send", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Header().Set("X-Message-Id", "sg-msg-123")
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	p := NewSendGridProvider("test-key", server.URL, sendgridTestLogger())
	resp, err := p.Send(context.Background(), SendRequest{
		To:       "alice@x.com",
		ToName:   "Alice",
		From:     "no-reply@crm.example.com",
		FromName: "CRM",
		Subject:  "Hello",
		HTML:     "<p>Hi Alice</p>",
		CustomArgs: map[string]string{
			"campaign_id": "c1",
		},
	})
	require.NoError(t, err)

	assert.True(t, resp.Success)
	assert.Equal(t, "sg-msg-123", resp.ProviderMessageID)

	require.Len(t, captured.Personalizations, 1)
	assert.Equal(t, "alice@x.com", captured.Personalizations[0].To[0].Email)
	assert.Equal(t, "c1", captured.Personalizations[0].CustomArgs["campaign_id"])
	// Plain text alternative derived from the HTML, ordered first.
	require.Len(t, captured.Content, 2)
	assert.Equal(t, "text/plain", captured.Content[0].Type)
	assert.Equal(t, "Hi Alice", captured.Content[0].Value)
	assert.Equal(t, "text/html", captured.Content[1].Type)
	require.NotNil(t, captured.TrackingSettings)
	assert.True(t, captured.TrackingSettings.OpenTracking.Enable)
}

func TestSendGridProvider_SendRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"errors":[{"message":"does not contain a valid address"}]}`))
	}))
	defer server.Close()

	p := NewSendGridProvider("test-key", server.URL, sendgridTestLogger())
	resp, err := p.Send(context.Background(), SendRequest{To: "bad", From: "a@x.com", Subject: "s", HTML: "<p>x</p>"})
	require.NoError(t, err)

	assert.False(t, resp.Success)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Len(t, resp.Errors, 1)
	assert.Contains(t, resp.Errors[0], "valid address")
}

func TestStripHTML(t *testing.T) {
	tests := []struct {
		name string
		html string
		want string
	}{
		{
			name: "tags removed entities decoded",
			html: "<p>Tom &amp; Jerry</p>",
			want: "Tom & Jerry",
		},
		{
			name: "style block dropped entirely",
			html: "<style>p{color:red}</style><p>visible</p>",
			want: "visible",
		},
		{
			name: "breaks become newlines",
			html: "line one<br>line two",
			want: "line one\nline two",
		},
		{
			name: "empty",
			html: "",
			want: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, stripHTML(tt.html))
		})
	}
}
