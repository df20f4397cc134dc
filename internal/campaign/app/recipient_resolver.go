package app

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/rankedceo/crm-email/internal/campaign/domain"
)

// RecipientResolver expands a campaign's audience selection (direct contacts,
// company rosters, deal associations) into a deduplicated recipient list.
type RecipientResolver struct {
	directory domain.Directory
	logger    *slog.Logger
}

func NewRecipientResolver(directory domain.Directory, logger *slog.Logger) *RecipientResolver {
	return &RecipientResolver{directory: directory, logger: logger}
}

// Resolve returns the union of the three audience sources, deduplicated by
// lowercased email with the first-seen record kept. Contacts without an email
// are skipped. Returns ErrNoRecipients when the final set is empty.
func (r *RecipientResolver) Resolve(ctx context.Context, c *domain.Campaign) ([]domain.RecipientRecord, error) {
	var contacts []domain.Contact

	if len(c.ContactIDs) > 0 {
		direct, err := r.directory.ContactsByIDs(ctx, c.AccountID, c.ContactIDs)
		if err != nil {
			return nil, err
		}
		contacts = append(contacts, direct...)
	}

	if len(c.CompanyIDs) > 0 {
		byCompany, err := r.directory.ContactsByCompanyIDs(ctx, c.AccountID, c.CompanyIDs)
		if err != nil {
			return nil, err
		}
		contacts = append(contacts, byCompany...)
	}

	// First-seen deal name per contact, attached as the deal_name variable.
	dealNames := make(map[uuid.UUID]string)
	if len(c.DealIDs) > 0 {
		deals, err := r.directory.DealsByIDs(ctx, c.AccountID, c.DealIDs)
		if err != nil {
			return nil, err
		}
		var dealContactIDs []uuid.UUID
		for _, d := range deals {
			for _, contactID := range d.ContactIDs {
				if _, ok := dealNames[contactID]; !ok {
					dealNames[contactID] = d.Name
				}
			}
			dealContactIDs = append(dealContactIDs, d.ContactIDs...)
		}
		if len(dealContactIDs) > 0 {
			byDeal, err := r.directory.ContactsByIDs(ctx, c.AccountID, dealContactIDs)
			if err != nil {
				return nil, err
			}
			contacts = append(contacts, byDeal...)
		}
	}

	seen := make(map[string]struct{}, len(contacts))
	var recipients []domain.RecipientRecord
	skipped := 0
	for _, contact := range contacts {
		email := strings.TrimSpace(contact.Email)
		if email == "" {
			skipped++
			continue
		}
		key := strings.ToLower(email)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		variables := map[string]string{
			"first_name": contact.FirstName,
			"last_name":  contact.LastName,
			"name":       contact.FullName(),
			"email":      email,
			"company":    contact.Company,
		}
		if dealName, ok := dealNames[contact.ID]; ok {
			variables["deal_name"] = dealName
		}
		recipients = append(recipients, domain.RecipientRecord{
			ContactID: uuid.NullUUID{UUID: contact.ID, Valid: true},
			Email:     email,
			Name:      contact.FullName(),
			Variables: variables,
		})
	}

	if skipped > 0 {
		r.logger.WarnContext(ctx, "Skipped contacts without email address",
			"campaign_id", c.ID, "skipped", skipped)
	}
	if len(recipients) == 0 {
		return nil, domain.ErrNoRecipients
	}
	return recipients, nil
}
