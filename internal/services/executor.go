package services

import (
	"context"
	"fmt"

	"github.com/tomaskovarik271/pipecrm/internal/logging"
	"github.com/tomaskovarik271/pipecrm/internal/repository"
	"github.com/tomaskovarik271/pipecrm/pkg/models"
)

// ExecutionResult reports the materialization of a transition plan. A failed
// execution is never fatal to the surrounding conversion: by the time the
// executor runs, the target entity already exists.
type ExecutionResult struct {
	Success       bool     `json:"success"`
	WFMProjectID  *string  `json:"wfm_project_id,omitempty"`
	CurrentStepID *string  `json:"current_step_id,omitempty"`
	Errors        []string `json:"errors,omitempty"`
}

// Executor materializes a transition plan: it creates the workflow project
// at the planned step and binds the target entity to it.
type Executor struct {
	logger *logging.Logger
}

// NewExecutor creates an Executor.
func NewExecutor(logger *logging.Logger) *Executor {
	return &Executor{logger: logger}
}

// Execute creates the WFM project for the target entity and points the
// entity's wfm_project_id at it. Errors are collected, not raised.
func (e *Executor) Execute(ctx context.Context, repo repository.Repository, plan *models.TransitionPlan, targetType models.EntityType, targetEntityID, targetName, actingUserID string) *ExecutionResult {
	result := &ExecutionResult{}

	stepID := plan.EffectiveTargetStepID()
	if plan.TargetProjectTypeID == "" || plan.TargetWorkflowID == "" || stepID == nil {
		result.Errors = append(result.Errors,
			"transition plan is incomplete; no workflow project created")
		return result
	}

	project := &models.WFMProject{
		Name:            fmt.Sprintf("%s: %s", targetType, targetName),
		ProjectTypeID:   plan.TargetProjectTypeID,
		WorkflowID:      plan.TargetWorkflowID,
		CurrentStepID:   stepID,
		CreatedByUserID: actingUserID,
	}
	if err := repo.CreateWFMProject(ctx, project); err != nil {
		e.logger.Error("wfm project creation failed",
			"target_type", targetType, "target_id", targetEntityID, "error", err)
		result.Errors = append(result.Errors,
			fmt.Sprintf("wfm project creation failed: %v", err))
		return result
	}
	result.WFMProjectID = &project.ID
	result.CurrentStepID = stepID

	var err error
	switch targetType {
	case models.EntityTypeLead:
		err = repo.UpdateLeadWFMProject(ctx, targetEntityID, project.ID)
	case models.EntityTypeDeal:
		err = repo.UpdateDealWFMProject(ctx, targetEntityID, project.ID)
	default:
		err = fmt.Errorf("unsupported target type %q", targetType)
	}
	if err != nil {
		e.logger.Error("binding entity to wfm project failed",
			"target_type", targetType, "target_id", targetEntityID, "error", err)
		result.Errors = append(result.Errors,
			fmt.Sprintf("binding entity to wfm project failed: %v", err))
		return result
	}

	result.Success = true
	return result
}
