package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tomaskovarik271/pipecrm/pkg/models"
)

const leadColumns = `id, name, contact_name, contact_email, contact_phone, company_name,
	estimated_value, currency, estimated_close_date, lead_score, lead_score_factors,
	source, description, created_by_user_id, assigned_to_user_id, wfm_project_id,
	converted_at, converted_to_deal_id, converted_to_person_id,
	converted_to_organization_id, converted_by_user_id, original_deal_id,
	created_at, updated_at`

func scanLead(row interface{ Scan(...any) error }) (*models.Lead, error) {
	var l models.Lead
	err := row.Scan(
		&l.ID, &l.Name, &l.ContactName, &l.ContactEmail, &l.ContactPhone, &l.CompanyName,
		&l.EstimatedValue, &l.Currency, &l.EstimatedCloseDate, &l.LeadScore, &l.LeadScoreFactors,
		&l.Source, &l.Description, &l.CreatedByUserID, &l.AssignedToUserID, &l.WFMProjectID,
		&l.ConvertedAt, &l.ConvertedToDealID, &l.ConvertedToPersonID,
		&l.ConvertedToOrganizationID, &l.ConvertedByUserID, &l.OriginalDealID,
		&l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, wrapNotFound(err)
	}
	return &l, nil
}

// CreateLead inserts a new lead, assigning an id and timestamps when unset.
func (r *PostgresRepository) CreateLead(ctx context.Context, lead *models.Lead) error {
	if lead.ID == "" {
		lead.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	lead.CreatedAt = now
	lead.UpdatedAt = now
	if lead.Currency == "" {
		lead.Currency = "USD"
	}

	_, err := r.db.Exec(ctx, `INSERT INTO leads (`+leadColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24)`,
		lead.ID, lead.Name, lead.ContactName, lead.ContactEmail, lead.ContactPhone, lead.CompanyName,
		lead.EstimatedValue, lead.Currency, lead.EstimatedCloseDate, lead.LeadScore, lead.LeadScoreFactors,
		lead.Source, lead.Description, lead.CreatedByUserID, lead.AssignedToUserID, lead.WFMProjectID,
		lead.ConvertedAt, lead.ConvertedToDealID, lead.ConvertedToPersonID,
		lead.ConvertedToOrganizationID, lead.ConvertedByUserID, lead.OriginalDealID,
		lead.CreatedAt, lead.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert lead: %w", err)
	}
	return nil
}

// GetLead retrieves a lead by id.
func (r *PostgresRepository) GetLead(ctx context.Context, id string) (*models.Lead, error) {
	return scanLead(r.db.QueryRow(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = $1`, id))
}

// GetLeadByConvertedDealID finds the lead whose forward conversion produced
// the given deal.
func (r *PostgresRepository) GetLeadByConvertedDealID(ctx context.Context, dealID string) (*models.Lead, error) {
	return scanLead(r.db.QueryRow(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE converted_to_deal_id = $1`, dealID))
}

// MarkLeadConverted claims the lead with a compare-and-swap on converted_at.
// The WHERE converted_at IS NULL guard closes the check-then-set race: the
// second of two concurrent conversions affects zero rows and fails here,
// rolling its transaction (and its freshly created deal) back.
func (r *PostgresRepository) MarkLeadConverted(ctx context.Context, id string, m models.ConversionMarkers) error {
	tag, err := r.db.Exec(ctx, `UPDATE leads SET
			converted_at = $2,
			converted_to_deal_id = $3,
			converted_to_person_id = $4,
			converted_to_organization_id = $5,
			converted_by_user_id = $6,
			updated_at = $2
		WHERE id = $1 AND converted_at IS NULL`,
		id, m.ConvertedAt, m.ConvertedToDealID, m.ConvertedToPersonID,
		m.ConvertedToOrganizationID, m.ConvertedByUserID,
	)
	if err != nil {
		return fmt.Errorf("mark lead converted: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyConverted
	}
	return nil
}

// UpdateLeadWFMProject points the lead at its workflow project.
func (r *PostgresRepository) UpdateLeadWFMProject(ctx context.Context, id, wfmProjectID string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE leads SET wfm_project_id = $2, updated_at = now() WHERE id = $1`,
		id, wfmProjectID)
	if err != nil {
		return fmt.Errorf("update lead wfm project: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
