package services

import (
	"context"

	"github.com/tomaskovarik271/pipecrm/internal/logging"
	"github.com/tomaskovarik271/pipecrm/internal/repository"
	"github.com/tomaskovarik271/pipecrm/pkg/models"
)

// HistoryRecorder appends immutable conversion audit entries and serves the
// read side for audit display.
type HistoryRecorder struct {
	repo   repository.Repository
	logger *logging.Logger
}

// NewHistoryRecorder creates a HistoryRecorder.
func NewHistoryRecorder(repo repository.Repository, logger *logging.Logger) *HistoryRecorder {
	return &HistoryRecorder{repo: repo, logger: logger}
}

// Record writes the entry through the given repository (transaction-bound
// during a conversion) and returns the new entry id. Failures surface to the
// caller; inside a conversion they abort the transaction so the audit trail
// can never silently miss a completed conversion.
func (h *HistoryRecorder) Record(ctx context.Context, repo repository.Repository, entry *models.ConversionHistoryEntry) (string, error) {
	if err := repo.CreateConversionHistory(ctx, entry); err != nil {
		return "", err
	}
	return entry.ID, nil
}

// Query returns the entity's conversion history, newest first, matching
// entries where it is either source or target. The read path degrades to an
// empty slice on error; audit display must never take the UI down.
func (h *HistoryRecorder) Query(ctx context.Context, entityType models.EntityType, entityID string) []*models.ConversionHistoryEntry {
	entries, err := h.repo.ListConversionHistory(ctx, entityType, entityID)
	if err != nil {
		h.logger.Error("conversion history query failed",
			"entity_type", entityType, "entity_id", entityID, "error", err)
		return []*models.ConversionHistoryEntry{}
	}
	if entries == nil {
		entries = []*models.ConversionHistoryEntry{}
	}
	return entries
}
