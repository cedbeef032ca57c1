package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tomaskovarik271/pipecrm/pkg/models"
)

// CreateActivity inserts a new activity.
func (r *PostgresRepository) CreateActivity(ctx context.Context, activity *models.Activity) error {
	if activity.ID == "" {
		activity.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	activity.CreatedAt = now
	activity.UpdatedAt = now

	_, err := r.db.Exec(ctx, `INSERT INTO activities
		(id, subject, type, is_done, due_date, lead_id, deal_id, person_id, notes,
		 created_by_user_id, assigned_to_user_id, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		activity.ID, activity.Subject, activity.Type, activity.IsDone, activity.DueDate,
		activity.LeadID, activity.DealID, activity.PersonID, activity.Notes,
		activity.CreatedByUserID, activity.AssignedToUserID, activity.CreatedAt, activity.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	return nil
}

// ReassignLeadActivities re-points every activity on the lead to the deal,
// appending a provenance note so the migration is visible on each record.
func (r *PostgresRepository) ReassignLeadActivities(ctx context.Context, leadID, dealID, note string) (int, error) {
	tag, err := r.db.Exec(ctx, `UPDATE activities SET
			deal_id = $2,
			lead_id = NULL,
			notes = concat_ws(E'\n', notes, $3::text),
			updated_at = now()
		WHERE lead_id = $1`,
		leadID, dealID, note)
	if err != nil {
		return 0, fmt.Errorf("reassign lead activities: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// CountRecentDealActivities counts activities on the deal created at or
// after the given instant. Feeds the planner's recency heuristic.
func (r *PostgresRepository) CountRecentDealActivities(ctx context.Context, dealID string, since time.Time) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT count(*) FROM activities WHERE deal_id = $1 AND created_at >= $2`,
		dealID, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count recent deal activities: %w", err)
	}
	return count, nil
}
