package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tomaskovarik271/pipecrm/pkg/models"
)

// CreateConversionHistory appends an immutable audit entry. Entries are
// never updated or deleted by the core.
func (r *PostgresRepository) CreateConversionHistory(ctx context.Context, entry *models.ConversionHistoryEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	entry.CreatedAt = time.Now().UTC()

	data, err := json.Marshal(entry.ConversionData)
	if err != nil {
		return fmt.Errorf("marshal conversion data: %w", err)
	}
	var plan []byte
	if entry.TransitionPlan != nil {
		plan, err = json.Marshal(entry.TransitionPlan)
		if err != nil {
			return fmt.Errorf("marshal transition plan: %w", err)
		}
	}

	_, err = r.db.Exec(ctx, `INSERT INTO conversion_history
		(id, conversion_type, source_entity_type, source_entity_id,
		 target_entity_type, target_entity_id, conversion_reason,
		 conversion_data, wfm_transition_plan, converted_by_user_id, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		entry.ID, entry.ConversionType, entry.SourceEntityType, entry.SourceEntityID,
		entry.TargetEntityType, entry.TargetEntityID, entry.Reason,
		data, plan, entry.ConvertedByUserID, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert conversion history: %w", err)
	}
	return nil
}

// ListConversionHistory returns entries where the entity appears as source
// or target, newest first.
func (r *PostgresRepository) ListConversionHistory(ctx context.Context, entityType models.EntityType, entityID string) ([]*models.ConversionHistoryEntry, error) {
	rows, err := r.db.Query(ctx, `SELECT id, conversion_type, source_entity_type, source_entity_id,
			target_entity_type, target_entity_id, conversion_reason,
			conversion_data, wfm_transition_plan, converted_by_user_id, created_at
		FROM conversion_history
		WHERE (source_entity_type = $1 AND source_entity_id = $2)
		   OR (target_entity_type = $1 AND target_entity_id = $2)
		ORDER BY created_at DESC`,
		entityType, entityID)
	if err != nil {
		return nil, fmt.Errorf("list conversion history: %w", err)
	}
	defer rows.Close()

	var entries []*models.ConversionHistoryEntry
	for rows.Next() {
		var e models.ConversionHistoryEntry
		var data, plan []byte
		if err := rows.Scan(&e.ID, &e.ConversionType, &e.SourceEntityType, &e.SourceEntityID,
			&e.TargetEntityType, &e.TargetEntityID, &e.Reason,
			&data, &plan, &e.ConvertedByUserID, &e.CreatedAt); err != nil {
			return nil, err
		}
		if len(data) > 0 {
			_ = json.Unmarshal(data, &e.ConversionData)
		}
		if len(plan) > 0 {
			var p models.TransitionPlan
			if err := json.Unmarshal(plan, &p); err == nil {
				e.TransitionPlan = &p
			}
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}
