package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tomaskovarik271/pipecrm/internal/auth"
	"github.com/tomaskovarik271/pipecrm/internal/logging"
	"github.com/tomaskovarik271/pipecrm/internal/repository"
	"github.com/tomaskovarik271/pipecrm/pkg/models"
)

const (
	lowScoreThreshold        = 50
	highProbabilityThreshold = 0.9
	prematureConversionAge   = 7 * 24 * time.Hour
)

// Validator checks whether a source entity may legally convert to a target
// type. It is strictly read-only: blocking errors and non-blocking warnings
// are accumulated on the result, never acted on here.
type Validator struct {
	repo   repository.Repository
	logger *logging.Logger
}

// NewValidator creates a Validator.
func NewValidator(repo repository.Repository, logger *logging.Logger) *Validator {
	return &Validator{repo: repo, logger: logger}
}

// Validate runs every rule for the requested direction. CanProceed is true
// iff no blocking error was recorded; warnings never block.
func (v *Validator) Validate(ctx context.Context, sourceType models.EntityType, sourceID string, targetType models.EntityType, user models.User) (*models.ValidationResult, error) {
	result := &models.ValidationResult{IsValid: true, CanProceed: true}

	if sourceType == targetType {
		result.AddError(models.IssueIdentityConflict,
			fmt.Sprintf("cannot convert a %s into a %s", sourceType, targetType))
		return result, nil
	}

	switch sourceType {
	case models.EntityTypeLead:
		return v.validateLeadToDeal(ctx, sourceID, user, result)
	case models.EntityTypeDeal:
		return v.validateDealToLead(ctx, sourceID, user, result)
	default:
		return nil, fmt.Errorf("unsupported source entity type %q", sourceType)
	}
}

func (v *Validator) validateLeadToDeal(ctx context.Context, leadID string, user models.User, result *models.ValidationResult) (*models.ValidationResult, error) {
	lead, err := v.repo.GetLead(ctx, leadID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			result.AddError(models.IssueNotFound,
				fmt.Sprintf("lead %s not found or not accessible", leadID))
			return result, nil
		}
		return nil, fmt.Errorf("load lead %s: %w", leadID, err)
	}
	result.SourceLead = lead

	if lead.IsConverted() {
		result.AddError(models.IssueAlreadyConverted,
			fmt.Sprintf("lead %q was already converted to deal %s", lead.Name, *lead.ConvertedToDealID))
	}

	if !canModify(user, lead.CreatedByUserID, lead.AssignedToUserID, auth.PermLeadUpdateAny, auth.PermLeadUpdateOwn) {
		result.AddError(models.IssueInsufficientPermission,
			fmt.Sprintf("user %s may not convert lead %q", user.ID, lead.Name))
	}

	if lead.LeadScore < lowScoreThreshold {
		result.AddWarning(models.IssueLowScore,
			fmt.Sprintf("lead score %d is below %d; the deal may not be qualified", lead.LeadScore, lowScoreThreshold))
	}
	if !lead.HasContact() {
		result.AddWarning(models.IssueMissingContact,
			"lead has no contact name or email; no person will be linked to the deal")
	}
	if !lead.HasValue() {
		result.AddWarning(models.IssueMissingValue,
			"lead has no positive estimated value; the deal will be created without an amount")
	}

	if lead.OriginalDealID != nil {
		result.AddWarning(models.IssueCircularConversion,
			fmt.Sprintf("lead %q was itself created from deal %s; converting it forward continues a conversion chain", lead.Name, *lead.OriginalDealID))
	}

	return result, nil
}

func (v *Validator) validateDealToLead(ctx context.Context, dealID string, user models.User, result *models.ValidationResult) (*models.ValidationResult, error) {
	deal, err := v.repo.GetDeal(ctx, dealID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			result.AddError(models.IssueNotFound,
				fmt.Sprintf("deal %s not found or not accessible", dealID))
			return result, nil
		}
		return nil, fmt.Errorf("load deal %s: %w", dealID, err)
	}
	result.SourceDeal = deal

	if step := v.currentStep(ctx, deal); step != nil && step.IsWonOutcome() {
		result.AddError(models.IssueTerminalState,
			fmt.Sprintf("deal %q is at terminal step %q and cannot be converted back to a lead", deal.Name, step.StatusName))
	}

	if !canModify(user, deal.CreatedByUserID, deal.AssignedToUserID, auth.PermDealUpdateAny, auth.PermDealUpdateOwn) {
		result.AddError(models.IssueInsufficientPermission,
			fmt.Sprintf("user %s may not convert deal %q", user.ID, deal.Name))
	}

	if deal.Probability != nil && *deal.Probability >= highProbabilityThreshold {
		result.AddWarning(models.IssueHighProbability,
			fmt.Sprintf("deal probability %.0f%% suggests it is close to winning", *deal.Probability*100))
	}
	if deal.Age(time.Now()) < prematureConversionAge {
		result.AddWarning(models.IssuePrematureConversion,
			fmt.Sprintf("deal %q is younger than 7 days; converting back this early is unusual", deal.Name))
	}

	if originLead, err := v.repo.GetLeadByConvertedDealID(ctx, deal.ID); err == nil {
		result.AddWarning(models.IssueCircularConversion,
			fmt.Sprintf("deal %q was created by converting lead %q; converting it back creates a lead->deal->lead cycle", deal.Name, originLead.Name))
	} else if !errors.Is(err, repository.ErrNotFound) {
		v.logger.Warn("circular-conversion lookup failed", "deal_id", deal.ID, "error", err)
	}

	return result, nil
}

// currentStep resolves the deal's current workflow step. Lookup failures are
// logged and treated as "no step": a broken workflow reference must not make
// the terminal-state guard fire.
func (v *Validator) currentStep(ctx context.Context, deal *models.Deal) *models.WorkflowStep {
	if deal.WFMProjectID == nil {
		return nil
	}
	project, err := v.repo.GetWFMProject(ctx, *deal.WFMProjectID)
	if err != nil {
		v.logger.Warn("wfm project lookup failed during validation", "deal_id", deal.ID, "error", err)
		return nil
	}
	if project.CurrentStepID == nil {
		return nil
	}
	step, err := v.repo.GetWorkflowStep(ctx, *project.CurrentStepID)
	if err != nil {
		v.logger.Warn("workflow step lookup failed during validation", "deal_id", deal.ID, "error", err)
		return nil
	}
	return step
}

// canModify implements the owner-or-assignee rule with an "any" capability
// override.
func canModify(user models.User, createdBy string, assignedTo *string, anyPerm, ownPerm string) bool {
	if user.Can(anyPerm) {
		return true
	}
	if !user.Can(ownPerm) {
		return false
	}
	if user.ID == createdBy {
		return true
	}
	return assignedTo != nil && *assignedTo == user.ID
}
