// Package services contains the conversion core: validator, planner,
// executor, orchestrator and history recorder.
package services

import (
	"context"

	"github.com/tomaskovarik271/pipecrm/pkg/models"
)

// Converter is the surface the API and MCP layers consume.
type Converter interface {
	// ConvertLeadToDeal migrates a lead forward into a deal.
	ConvertLeadToDeal(ctx context.Context, leadID string, opts models.LeadConversionOptions, user models.User) *models.ConversionResult
	// ConvertDealToLead migrates a deal back into a lead.
	ConvertDealToLead(ctx context.Context, dealID string, opts models.DealToLeadOptions, user models.User) *models.ConversionResult
	// BulkConvertLeads sequences independent single conversions with no
	// batch atomicity.
	BulkConvertLeads(ctx context.Context, leadIDs []string, defaults models.LeadConversionOptions, overrides map[string]models.LeadConversionOptions, user models.User) *models.BulkConversionResult
	// ValidateConversion runs the pre-check without mutating anything.
	ValidateConversion(ctx context.Context, sourceType models.EntityType, sourceID string, targetType models.EntityType, user models.User) (*models.ValidationResult, error)
	// ConversionHistory returns audit entries for an entity, newest first.
	ConversionHistory(ctx context.Context, entityType models.EntityType, entityID string) []*models.ConversionHistoryEntry
}

var _ Converter = (*ConversionService)(nil)
