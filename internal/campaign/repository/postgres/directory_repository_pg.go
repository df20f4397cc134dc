package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rankedceo/crm-email/internal/campaign/domain"
)

type PgDirectoryRepository struct {
	db     *pgxpool.Pool
	logger *slog.Logger
}

// NewPgDirectoryRepository creates the read-only PostgreSQL view over the CRM
// contact, company and deal tables that audience resolution needs.
func NewPgDirectoryRepository(dbPool *pgxpool.Pool, logger *slog.Logger) *PgDirectoryRepository {
	return &PgDirectoryRepository{
		db:     dbPool,
		logger: logger,
	}
}

const contactColumns = `c.id, c.account_id, c.email, c.first_name, c.last_name, COALESCE(co.name, '')`

func (r *PgDirectoryRepository) ContactsByIDs(ctx context.Context, accountID uuid.UUID, ids []uuid.UUID) ([]domain.Contact, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.db.Query(ctx, `
		SELECT `+contactColumns+`
		FROM contacts c
		LEFT JOIN companies co ON co.id = c.company_id
		WHERE c.account_id = $1 AND c.id = ANY($2)
	`, accountID, ids)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error loading contacts by ids", "error", err, "account_id", accountID)
		return nil, fmt.Errorf("failed to load contacts: %w", err)
	}
	return scanContacts(rows)
}

func (r *PgDirectoryRepository) ContactsByCompanyIDs(ctx context.Context, accountID uuid.UUID, companyIDs []uuid.UUID) ([]domain.Contact, error) {
	if len(companyIDs) == 0 {
		return nil, nil
	}
	rows, err := r.db.Query(ctx, `
		SELECT `+contactColumns+`
		FROM contacts c
		LEFT JOIN companies co ON co.id = c.company_id
		WHERE c.account_id = $1 AND c.company_id = ANY($2)
	`, accountID, companyIDs)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error loading contacts by company ids", "error", err, "account_id", accountID)
		return nil, fmt.Errorf("failed to load company contacts: %w", err)
	}
	return scanContacts(rows)
}

func (r *PgDirectoryRepository) DealsByIDs(ctx context.Context, accountID uuid.UUID, ids []uuid.UUID) ([]domain.Deal, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.db.Query(ctx, `
		SELECT d.id, d.account_id, d.name, COALESCE(array_agg(dc.contact_id) FILTER (WHERE dc.contact_id IS NOT NULL), '{}')
		FROM deals d
		LEFT JOIN deal_contacts dc ON dc.deal_id = d.id
		WHERE d.account_id = $1 AND d.id = ANY($2)
		GROUP BY d.id, d.account_id, d.name
	`, accountID, ids)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error loading deals by ids", "error", err, "account_id", accountID)
		return nil, fmt.Errorf("failed to load deals: %w", err)
	}
	defer rows.Close()

	var deals []domain.Deal
	for rows.Next() {
		var d domain.Deal
		if err := rows.Scan(&d.ID, &d.AccountID, &d.Name, &d.ContactIDs); err != nil {
			return nil, fmt.Errorf("failed to scan deal: %w", err)
		}
		deals = append(deals, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate deals: %w", err)
	}
	return deals, nil
}

func scanContacts(rows pgx.Rows) ([]domain.Contact, error) {
	defer rows.Close()
	var contacts []domain.Contact
	for rows.Next() {
		var c domain.Contact
		if err := rows.Scan(&c.ID, &c.AccountID, &c.Email, &c.FirstName, &c.LastName, &c.Company); err != nil {
			return nil, fmt.Errorf("failed to scan contact: %w", err)
		}
		contacts = append(contacts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate contacts: %w", err)
	}
	return contacts, nil
}
