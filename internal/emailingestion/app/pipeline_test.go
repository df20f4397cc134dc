package app

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rankedceo/crm-email/internal/emailingestion/domain"
	"github.com/rankedceo/crm-email/internal/emailingestion/parse"
	"github.com/rankedceo/crm-email/internal/platform/messagebroker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- Mocks ---

type MockIngestionRepository struct {
	mock.Mock
}

func (m *MockIngestionRepository) FindThreadBySubject(ctx context.Context, accountID uuid.UUID, subject string) (*domain.EmailThread, error) {
	args := m.Called(ctx, accountID, subject)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.EmailThread), args.Error(1)
}

func (m *MockIngestionRepository) CreateMessageInThread(ctx context.Context, msg *domain.EmailMessage, threadID uuid.UUID) error {
	args := m.Called(ctx, msg, threadID)
	return args.Error(0)
}

func (m *MockIngestionRepository) CreateMessageWithNewThread(ctx context.Context, msg *domain.EmailMessage, thread *domain.EmailThread) error {
	args := m.Called(ctx, msg, thread)
	return args.Error(0)
}

func (m *MockIngestionRepository) MarkMessageOpened(ctx context.Context, id uuid.UUID, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

func (m *MockIngestionRepository) MarkThreadOpened(ctx context.Context, threadID uuid.UUID, at time.Time) error {
	args := m.Called(ctx, threadID, at)
	return args.Error(0)
}

func (m *MockIngestionRepository) MailboxStats(ctx context.Context, accountID uuid.UUID, now time.Time) (*domain.MailboxStats, error) {
	args := m.Called(ctx, accountID, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.MailboxStats), args.Error(1)
}

type MockNatsClient struct {
	mock.Mock
}

func (m *MockNatsClient) Publish(ctx context.Context, subject string, data []byte) error {
	args := m.Called(ctx, subject, data)
	return args.Error(0)
}

func (m *MockNatsClient) SubscribeToSubjectWithQueue(ctx context.Context, subject, queueGroup string, handler func(msg messagebroker.Message)) (messagebroker.Subscription, error) {
	args := m.Called(ctx, subject, queueGroup, handler)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(messagebroker.Subscription), args.Error(1)
}

func (m *MockNatsClient) Close() {
	m.Called()
}

// --- Test setup ---

type pipelineTestComponents struct {
	pipeline *Pipeline
	repo     *MockIngestionRepository
	nats     *MockNatsClient
}

func setupPipelineTest(t *testing.T) pipelineTestComponents {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := new(MockIngestionRepository)
	nats := new(MockNatsClient)

	pipeline := NewPipeline(
		parse.NewParser("crm.example.com"),
		parse.DenylistSanitizer{},
		NewThreadResolver(repo, logger),
		repo,
		nats,
		logger,
	)
	return pipelineTestComponents{pipeline: pipeline, repo: repo, nats: nats}
}

func inboundForm(fields map[string]string) parse.WebhookForm {
	return parse.WebhookForm{Fields: fields}
}

// --- Tests ---

func TestPipeline_Ingest_NewThread(t *testing.T) {
	comps := setupPipelineTest(t)
	ctx := context.Background()
	accountID := uuid.New()
	receivedAt := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	var storedThread *domain.EmailThread
	comps.repo.On("CreateMessageWithNewThread", ctx, mock.AnythingOfType("*domain.EmailMessage"), mock.AnythingOfType("*domain.EmailThread")).
		Run(func(args mock.Arguments) {
			storedThread = args.Get(2).(*domain.EmailThread)
		}).Return(nil).Once()
	comps.nats.On("Publish", ctx, messagebroker.SubjectInboundEmailReceived, mock.Anything).Return(nil).Once()

	msg, err := comps.pipeline.Ingest(ctx, accountID, inboundForm(map[string]string{
		"from":    "John <john@sender.com>",
		"to":      "support@crm.example.com",
		"cc":      "watcher@other.com",
		"subject": "New business",
		"text":    "Interested in your product.\n\nBest regards,\nJohn",
		"html":    `<p>Interested</p><script>alert(1)</script>`,
	}), receivedAt)

	require.NoError(t, err)
	comps.repo.AssertExpectations(t)
	comps.nats.AssertExpectations(t)

	assert.Equal(t, accountID, msg.AccountID)
	assert.Equal(t, domain.DirectionInbound, msg.Direction)
	assert.Equal(t, "Interested in your product.", msg.BodyPlain.String)
	assert.NotContains(t, msg.BodyHTML.String, "script")
	assert.Equal(t, "Interested in your product.", msg.Preview)
	assert.Equal(t, receivedAt, msg.ReceivedAt)

	require.NotNil(t, storedThread)
	assert.Equal(t, "New business", storedThread.Subject)
	assert.Equal(t, 1, storedThread.MessageCount)
	assert.Equal(t, []string{"john@sender.com", "support@crm.example.com", "watcher@other.com"}, storedThread.Participants)
	assert.Equal(t, storedThread.ID, msg.ThreadID.UUID)
}

func TestPipeline_Ingest_ReplyJoinsExistingThread(t *testing.T) {
	comps := setupPipelineTest(t)
	ctx := context.Background()
	accountID := uuid.New()
	existing := &domain.EmailThread{ID: uuid.New(), AccountID: accountID, Subject: "Re: New business"}

	comps.repo.On("FindThreadBySubject", ctx, accountID, "Re: New business").Return(existing, nil).Once()
	comps.repo.On("CreateMessageInThread", ctx, mock.AnythingOfType("*domain.EmailMessage"), existing.ID).Return(nil).Once()
	comps.nats.On("Publish", ctx, messagebroker.SubjectInboundEmailReceived, mock.Anything).Return(nil).Once()

	msg, err := comps.pipeline.Ingest(ctx, accountID, inboundForm(map[string]string{
		"from":        "john@sender.com",
		"to":          "support@crm.example.com",
		"subject":     "Re: New business",
		"text":        "Following up.",
		"In-Reply-To": "<root@crm.example.com>",
	}), time.Now())

	require.NoError(t, err)
	comps.repo.AssertExpectations(t)
	assert.Equal(t, existing.ID, msg.ThreadID.UUID)
	assert.Equal(t, "root@crm.example.com", msg.InReplyTo.String)
}

func TestPipeline_Ingest_ReplyCandidateWithoutMatchCreatesThread(t *testing.T) {
	comps := setupPipelineTest(t)
	ctx := context.Background()
	accountID := uuid.New()

	comps.repo.On("FindThreadBySubject", ctx, accountID, "Re: Unknown").
		Return(nil, domain.ErrThreadNotFound).Once()
	comps.repo.On("CreateMessageWithNewThread", ctx, mock.Anything, mock.Anything).Return(nil).Once()
	comps.nats.On("Publish", ctx, mock.Anything, mock.Anything).Return(nil).Once()

	_, err := comps.pipeline.Ingest(ctx, accountID, inboundForm(map[string]string{
		"from":        "a@x.com",
		"to":          "b@y.com",
		"subject":     "Re: Unknown",
		"In-Reply-To": "<gone@y.com>",
	}), time.Now())

	require.NoError(t, err)
	comps.repo.AssertExpectations(t)
}

func TestPipeline_Ingest_NoHeaderCandidateSkipsLookup(t *testing.T) {
	comps := setupPipelineTest(t)
	ctx := context.Background()

	// No In-Reply-To or References: a fresh thread is created even when a
	// same-subject thread might exist, and no lookup is made.
	comps.repo.On("CreateMessageWithNewThread", ctx, mock.Anything, mock.Anything).Return(nil).Once()
	comps.nats.On("Publish", ctx, mock.Anything, mock.Anything).Return(nil).Once()

	_, err := comps.pipeline.Ingest(ctx, uuid.New(), inboundForm(map[string]string{
		"from":    "a@x.com",
		"to":      "b@y.com",
		"subject": "Duplicate subject",
	}), time.Now())

	require.NoError(t, err)
	comps.repo.AssertNotCalled(t, "FindThreadBySubject", mock.Anything, mock.Anything, mock.Anything)
}

func TestPipeline_Ingest_MissingAddressesRejected(t *testing.T) {
	comps := setupPipelineTest(t)
	ctx := context.Background()

	_, err := comps.pipeline.Ingest(ctx, uuid.New(), inboundForm(map[string]string{
		"subject": "no sender",
		"to":      "b@y.com",
	}), time.Now())
	require.ErrorIs(t, err, ErrMissingAddresses)

	_, err = comps.pipeline.Ingest(ctx, uuid.New(), inboundForm(map[string]string{
		"from":    "a@x.com",
		"subject": "no recipients",
	}), time.Now())
	require.ErrorIs(t, err, ErrMissingAddresses)

	comps.repo.AssertNotCalled(t, "CreateMessageWithNewThread", mock.Anything, mock.Anything, mock.Anything)
}

func TestPipeline_Ingest_AttachmentsReachStoredMessage(t *testing.T) {
	comps := setupPipelineTest(t)
	ctx := context.Background()
	accountID := uuid.New()

	var stored *domain.EmailMessage
	comps.repo.On("CreateMessageWithNewThread", ctx, mock.AnythingOfType("*domain.EmailMessage"), mock.Anything).
		Run(func(args mock.Arguments) {
			stored = args.Get(1).(*domain.EmailMessage)
		}).Return(nil).Once()
	comps.nats.On("Publish", ctx, mock.Anything, mock.Anything).Return(nil).Once()

	_, err := comps.pipeline.Ingest(ctx, accountID, parse.WebhookForm{
		Fields: map[string]string{
			"from":    "a@x.com",
			"to":      "b@y.com",
			"subject": "With attachment",
		},
		Attachments: []domain.Attachment{
			{Filename: "quote.pdf", ContentType: "application/pdf", Content: "JVBERi0=", Size: 6},
			{Content: "Zm9v"}, // no filename or type, normalized defaults
		},
	}, time.Now())

	require.NoError(t, err)
	require.NotNil(t, stored)
	require.Len(t, stored.Attachments, 2)
	assert.Equal(t, "quote.pdf", stored.Attachments[0].Filename)
	assert.Equal(t, "application/pdf", stored.Attachments[0].ContentType)
	assert.Equal(t, "unknown", stored.Attachments[1].Filename)
	assert.Equal(t, "application/octet-stream", stored.Attachments[1].ContentType)
	assert.Equal(t, len("Zm9v"), stored.Attachments[1].Size)
}

func TestPipeline_Ingest_PublishFailureDoesNotFailIngestion(t *testing.T) {
	comps := setupPipelineTest(t)
	ctx := context.Background()

	comps.repo.On("CreateMessageWithNewThread", ctx, mock.Anything, mock.Anything).Return(nil).Once()
	comps.nats.On("Publish", ctx, mock.Anything, mock.Anything).Return(assert.AnError).Once()

	_, err := comps.pipeline.Ingest(ctx, uuid.New(), inboundForm(map[string]string{
		"from": "a@x.com",
		"to":   "b@y.com",
	}), time.Now())

	require.NoError(t, err)
}

func TestThreadCandidateKey(t *testing.T) {
	assert.Equal(t, "parent@x.com", threadCandidateKey("<parent@x.com>", []string{"root@x.com"}))
	assert.Equal(t, "root@x.com", threadCandidateKey("", []string{"root@x.com", "mid@x.com"}))
	assert.Equal(t, "", threadCandidateKey("", nil))
}
