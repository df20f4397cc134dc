package emailprovider

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"

	"github.com/google/uuid"
)

// MockProvider is a simulated email provider for development and tests.
type MockProvider struct {
	logger   *slog.Logger
	name     string
	failRate float64 // chance to simulate a rejected send (0.0 to 1.0)
}

func NewMockProvider(logger *slog.Logger, name string, failRate float64) EmailSender {
	if name == "" {
		name = "mock-provider"
	}
	return &MockProvider{
		logger:   logger.With("provider", name),
		name:     name,
		failRate: failRate,
	}
}

func (p *MockProvider) Name() string {
	return p.name
}

func (p *MockProvider) Send(ctx context.Context, request SendRequest) (*SendResponse, error) {
	if rand.Float64() < p.failRate {
		errMsg := fmt.Sprintf("simulated failure for recipient %s", request.To)
		p.logger.WarnContext(ctx, "MockProvider rejecting send", "to", request.To)
		return &SendResponse{
			Success:    false,
			StatusCode: 500,
			Errors:     []string{errMsg},
		}, nil
	}

	providerMsgID := uuid.NewString()
	p.logger.InfoContext(ctx, "MockProvider send accepted (simulated)",
		"to", request.To, "subject", request.Subject, "provider_message_id", providerMsgID)
	return &SendResponse{
		Success:           true,
		StatusCode:        202,
		ProviderMessageID: providerMsgID,
	}, nil
}
