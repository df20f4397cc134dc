package emailprovider

import (
	"context"
)

// SendRequest holds the data for sending one email through a provider.
type SendRequest struct {
	To       string
	ToName   string
	From     string
	FromName string

	Subject string
	HTML    string
	Text    string

	// CustomArgs are provider passthrough values echoed back on delivery
	// events, used to correlate webhook callbacks with campaign rows.
	CustomArgs map[string]string
}

// SendResponse holds the outcome of a send attempt.
type SendResponse struct {
	Success           bool
	StatusCode        int
	ProviderMessageID string
	Errors            []string
}

// EmailSender is the interface every outbound email provider adapter
// implements.
type EmailSender interface {
	Send(ctx context.Context, request SendRequest) (*SendResponse, error)
	Name() string
}
