package http

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rankedceo/crm-email/internal/emailingestion/app"
	"github.com/rankedceo/crm-email/internal/platform/messagebroker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func inboundTestRouter(nats *MockNatsClient) http.Handler {
	handler := NewInboundEmailHandler(nats, testLogger())
	r := chi.NewRouter()
	r.Post("/webhooks/inbound/{account_id}", handler.HandleInboundPost)
	return r
}

func TestInboundEmailHandler_MultipartForm(t *testing.T) {
	nats := new(MockNatsClient)
	router := inboundTestRouter(nats)
	accountID := uuid.New()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("from", "John <john@sender.com>"))
	require.NoError(t, mw.WriteField("to", "support@crm.example.com"))
	require.NoError(t, mw.WriteField("subject", "Hello"))
	require.NoError(t, mw.WriteField("text", "body text"))
	fw, err := mw.CreateFormFile("attachment1", "notes.txt")
	require.NoError(t, err)
	_, err = fw.Write([]byte("attachment body"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	var published []byte
	nats.On("Publish", mock.Anything, messagebroker.SubjectInboundEmailRaw, mock.Anything).
		Run(func(args mock.Arguments) {
			published = args.Get(2).([]byte)
		}).Return(nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/webhooks/inbound/"+accountID.String(), &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusAccepted, rr.Code)
	nats.AssertExpectations(t)

	var event app.InboundEmailEvent
	require.NoError(t, json.Unmarshal(published, &event))
	assert.Equal(t, accountID, event.AccountID)
	assert.Equal(t, "John <john@sender.com>", event.Fields["from"])
	assert.Equal(t, "Hello", event.Fields["subject"])
	require.Len(t, event.Attachments, 1)
	assert.Equal(t, "notes.txt", event.Attachments[0].Filename)
	assert.Equal(t, len("attachment body"), event.Attachments[0].Size)
}

func TestInboundEmailHandler_URLEncodedForm(t *testing.T) {
	nats := new(MockNatsClient)
	router := inboundTestRouter(nats)
	accountID := uuid.New()

	form := url.Values{}
	form.Set("from", "a@x.com")
	form.Set("to", "b@y.com")
	form.Set("subject", "Urlencoded")

	nats.On("Publish", mock.Anything, messagebroker.SubjectInboundEmailRaw, mock.Anything).Return(nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/webhooks/inbound/"+accountID.String(), strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusAccepted, rr.Code)
	nats.AssertExpectations(t)
}

func TestInboundEmailHandler_RawMime(t *testing.T) {
	nats := new(MockNatsClient)
	router := inboundTestRouter(nats)
	accountID := uuid.New()

	raw := "From: a@x.com\r\nTo: b@y.com\r\nSubject: Raw\r\n\r\nbody\r\n"

	var published []byte
	nats.On("Publish", mock.Anything, messagebroker.SubjectInboundEmailRaw, mock.Anything).
		Run(func(args mock.Arguments) {
			published = args.Get(2).([]byte)
		}).Return(nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/webhooks/inbound/"+accountID.String(), strings.NewReader(raw))
	req.Header.Set("Content-Type", "message/rfc822")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusAccepted, rr.Code)

	var event app.InboundEmailEvent
	require.NoError(t, json.Unmarshal(published, &event))
	assert.Equal(t, raw, string(event.RawMime))
}

func TestInboundEmailHandler_InvalidAccountID(t *testing.T) {
	router := inboundTestRouter(new(MockNatsClient))

	req := httptest.NewRequest(http.MethodPost, "/webhooks/inbound/not-a-uuid", strings.NewReader("x"))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestInboundEmailHandler_PublishFailure(t *testing.T) {
	nats := new(MockNatsClient)
	router := inboundTestRouter(nats)
	accountID := uuid.New()

	nats.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(assert.AnError).Once()

	req := httptest.NewRequest(http.MethodPost, "/webhooks/inbound/"+accountID.String(), strings.NewReader("raw"))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	// 5xx tells the provider to retry later.
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}
