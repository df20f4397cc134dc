package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrCampaignNotFound indicates no campaign matched the lookup.
	ErrCampaignNotFound = errors.New("campaign not found")
	// ErrNoRecipients indicates audience resolution produced an empty set.
	ErrNoRecipients = errors.New("no recipients found")
)

// InvalidStatusError is returned when a dispatch is requested for a campaign
// outside the draft or scheduled states.
type InvalidStatusError struct {
	Status CampaignStatus
}

func (e *InvalidStatusError) Error() string {
	return fmt.Sprintf("campaign must be in draft or scheduled status to send, got %q", e.Status)
}
