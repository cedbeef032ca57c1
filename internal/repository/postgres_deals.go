package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tomaskovarik271/pipecrm/pkg/models"
)

const dealColumns = `id, name, amount, currency, expected_close_date, person_id,
	organization_id, created_by_user_id, assigned_to_user_id, probability,
	wfm_project_id, converted_to_lead_id, conversion_reason, created_at, updated_at`

func scanDeal(row interface{ Scan(...any) error }) (*models.Deal, error) {
	var d models.Deal
	err := row.Scan(
		&d.ID, &d.Name, &d.Amount, &d.Currency, &d.ExpectedCloseDate, &d.PersonID,
		&d.OrganizationID, &d.CreatedByUserID, &d.AssignedToUserID, &d.Probability,
		&d.WFMProjectID, &d.ConvertedToLeadID, &d.ConversionReason, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, wrapNotFound(err)
	}
	return &d, nil
}

// CreateDeal inserts a new deal, assigning an id and timestamps when unset.
func (r *PostgresRepository) CreateDeal(ctx context.Context, deal *models.Deal) error {
	if deal.ID == "" {
		deal.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	deal.CreatedAt = now
	deal.UpdatedAt = now
	if deal.Currency == "" {
		deal.Currency = "USD"
	}

	_, err := r.db.Exec(ctx, `INSERT INTO deals (`+dealColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		deal.ID, deal.Name, deal.Amount, deal.Currency, deal.ExpectedCloseDate, deal.PersonID,
		deal.OrganizationID, deal.CreatedByUserID, deal.AssignedToUserID, deal.Probability,
		deal.WFMProjectID, deal.ConvertedToLeadID, deal.ConversionReason, deal.CreatedAt, deal.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert deal: %w", err)
	}
	return nil
}

// GetDeal retrieves a deal by id.
func (r *PostgresRepository) GetDeal(ctx context.Context, id string) (*models.Deal, error) {
	return scanDeal(r.db.QueryRow(ctx, `SELECT `+dealColumns+` FROM deals WHERE id = $1`, id))
}

// UpdateDealWFMProject points the deal at its workflow project.
func (r *PostgresRepository) UpdateDealWFMProject(ctx context.Context, id, wfmProjectID string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE deals SET wfm_project_id = $2, updated_at = now() WHERE id = $1`,
		id, wfmProjectID)
	if err != nil {
		return fmt.Errorf("update deal wfm project: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkDealConverted records the backward-conversion marker on the deal.
func (r *PostgresRepository) MarkDealConverted(ctx context.Context, id, leadID string, reason *string) error {
	tag, err := r.db.Exec(ctx, `UPDATE deals SET
			converted_to_lead_id = $2, conversion_reason = $3, updated_at = now()
		WHERE id = $1`,
		id, leadID, reason)
	if err != nil {
		return fmt.Errorf("mark deal converted: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
