package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tomaskovarik271/pipecrm/internal/config"
	"github.com/tomaskovarik271/pipecrm/internal/logging"
	"github.com/tomaskovarik271/pipecrm/internal/repository"
	"github.com/tomaskovarik271/pipecrm/pkg/models"
)

// ErrConfiguration marks a transition that cannot be planned because the
// target project type or its workflow is missing. Step-level lookups never
// produce it; those degrade to the initial-step fallback instead.
var ErrConfiguration = errors.New("workflow configuration error")

const recentActivityWindow = 30 * 24 * time.Hour

// PlanRequest describes the transition to plan. Exactly one of Lead/Deal is
// set, matching SourceType.
type PlanRequest struct {
	SourceType models.EntityType
	Lead       *models.Lead
	Deal       *models.Deal
	TargetType models.EntityType

	OverrideProjectTypeID *string
	OverrideStepID        *string
}

func (r PlanRequest) sourceWFMProjectID() *string {
	switch r.SourceType {
	case models.EntityTypeLead:
		if r.Lead != nil {
			return r.Lead.WFMProjectID
		}
	case models.EntityTypeDeal:
		if r.Deal != nil {
			return r.Deal.WFMProjectID
		}
	}
	return nil
}

// Planner computes the target workflow, project type and step for a
// conversion. It never fails on missing step data: the worst case is a
// degraded plan with the DEFAULT strategy, which the orchestrator may still
// decide to abort on.
type Planner struct {
	cfg    config.ConversionConfig
	logger *logging.Logger
}

// NewPlanner creates a Planner.
func NewPlanner(cfg config.ConversionConfig, logger *logging.Logger) *Planner {
	return &Planner{cfg: cfg, logger: logger}
}

// Plan resolves the transition plan against the given repository (which may
// be transaction-bound). The returned plan is non-nil even when err is a
// ErrConfiguration.
func (p *Planner) Plan(ctx context.Context, repo repository.Repository, req PlanRequest) (*models.TransitionPlan, error) {
	plan := &models.TransitionPlan{
		MappingStrategy:  models.MappingDefault,
		TransitionReason: directionReason(req.SourceType, req.TargetType),
	}

	p.resolveSourceContext(ctx, repo, req, plan)

	pt, err := p.resolveProjectType(ctx, repo, req)
	if err != nil {
		return plan, err
	}
	plan.TargetProjectTypeID = pt.ID

	if pt.DefaultWorkflowID == nil {
		return plan, fmt.Errorf("%w: project type %q has no workflow", ErrConfiguration, pt.Name)
	}
	plan.TargetWorkflowID = *pt.DefaultWorkflowID

	steps, err := repo.ListWorkflowSteps(ctx, plan.TargetWorkflowID)
	if err != nil || len(steps) == 0 {
		// Degraded plan: the orchestrator decides whether an entity with no
		// step binding is acceptable.
		p.logger.Warn("target workflow has no resolvable steps",
			"workflow_id", plan.TargetWorkflowID, "error", err)
		return plan, nil
	}
	plan.TargetInitialStepID = initialStepID(steps)

	if req.OverrideStepID != nil {
		plan.TargetStepID = req.OverrideStepID
		plan.MappingStrategy = models.MappingManual
		plan.TransitionReason = plan.TransitionReason + "; target step supplied by caller"
		return plan, nil
	}

	if step, reason := p.mapStep(ctx, repo, req, steps); step != nil {
		plan.TargetStepID = &step.ID
		plan.MappingStrategy = models.MappingAuto
		plan.TransitionReason = reason
		return plan, nil
	}

	plan.TransitionReason = plan.TransitionReason + "; starting at initial step"
	return plan, nil
}

func (p *Planner) resolveProjectType(ctx context.Context, repo repository.Repository, req PlanRequest) (*models.ProjectType, error) {
	if req.OverrideProjectTypeID != nil {
		pt, err := repo.GetProjectType(ctx, *req.OverrideProjectTypeID)
		if err != nil {
			return nil, fmt.Errorf("%w: project type %s not found", ErrConfiguration, *req.OverrideProjectTypeID)
		}
		return pt, nil
	}

	name := p.cfg.DealProjectTypeName
	if req.TargetType == models.EntityTypeLead {
		name = p.cfg.LeadProjectTypeName
	}
	pt, err := repo.GetProjectTypeByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("%w: no project type named %q for target %s", ErrConfiguration, name, req.TargetType)
	}
	return pt, nil
}

// resolveSourceContext records where the entity currently sits, and whether
// its own workflow has a converted-marker step the orchestrator can park it
// on. Every lookup here is best-effort.
func (p *Planner) resolveSourceContext(ctx context.Context, repo repository.Repository, req PlanRequest, plan *models.TransitionPlan) {
	projectID := req.sourceWFMProjectID()
	if projectID == nil {
		return
	}
	project, err := repo.GetWFMProject(ctx, *projectID)
	if err != nil {
		p.logger.Debug("source wfm project lookup failed", "project_id", *projectID, "error", err)
		return
	}
	plan.SourceWorkflowID = project.WorkflowID
	if project.CurrentStepID != nil {
		plan.SourceStepID = *project.CurrentStepID
	}

	steps, err := repo.ListWorkflowSteps(ctx, project.WorkflowID)
	if err != nil {
		return
	}
	if converted := findStep(steps, []models.StepRole{models.StepRoleConvertedMarker}, []string{"converted"}); converted != nil {
		plan.SourceConvertedStepID = &converted.ID
	}
}

// mapStep is the intelligent step-mapping heuristic. It returns nil when no
// rule matched, which sends the plan down the initial-step fallback.
func (p *Planner) mapStep(ctx context.Context, repo repository.Repository, req PlanRequest, steps []*models.WorkflowStep) (*models.WorkflowStep, string) {
	switch {
	case req.SourceType == models.EntityTypeLead && req.TargetType == models.EntityTypeDeal:
		return p.mapLeadStep(req.Lead, steps)
	case req.SourceType == models.EntityTypeDeal && req.TargetType == models.EntityTypeLead:
		return p.mapDealStep(ctx, repo, req.Deal, steps)
	}
	return nil, ""
}

func (p *Planner) mapLeadStep(lead *models.Lead, steps []*models.WorkflowStep) (*models.WorkflowStep, string) {
	if lead == nil {
		return nil, ""
	}

	if lead.LeadScore >= p.cfg.HighScoreThreshold || nameSuggestsDemo(lead.Name) {
		if step := findStep(steps,
			[]models.StepRole{models.StepRoleScoping, models.StepRoleProposal},
			[]string{"scoping", "proposal"}); step != nil {
			return step, fmt.Sprintf("lead score %d qualifies for %q", lead.LeadScore, step.StatusName)
		}
	}

	if lead.LeadScore >= p.cfg.QualifiedScoreThreshold && lead.HasValue() {
		if step := findStep(steps,
			[]models.StepRole{models.StepRoleQualified},
			[]string{"qualified"}); step != nil {
			return step, fmt.Sprintf("lead score %d with estimated value maps to %q", lead.LeadScore, step.StatusName)
		}
	}

	return nil, ""
}

func (p *Planner) mapDealStep(ctx context.Context, repo repository.Repository, deal *models.Deal, steps []*models.WorkflowStep) (*models.WorkflowStep, string) {
	if deal == nil {
		return nil, ""
	}
	amount := deal.AmountValue()

	if amount > p.cfg.HotDealAmount && p.hasRecentActivity(ctx, repo, deal.ID) {
		if step := findStep(steps,
			[]models.StepRole{models.StepRoleHot, models.StepRoleQualified},
			[]string{"hot", "qualified"}); step != nil {
			return step, fmt.Sprintf("active deal worth %.0f maps to %q", amount, step.StatusName)
		}
	}

	if amount > p.cfg.QualifiedDealAmount {
		if step := findStep(steps,
			[]models.StepRole{models.StepRoleQualified},
			[]string{"qualified"}); step != nil {
			return step, fmt.Sprintf("deal worth %.0f maps to %q", amount, step.StatusName)
		}
	}

	return nil, ""
}

func (p *Planner) hasRecentActivity(ctx context.Context, repo repository.Repository, dealID string) bool {
	count, err := repo.CountRecentDealActivities(ctx, dealID, time.Now().Add(-recentActivityWindow))
	if err != nil {
		p.logger.Debug("recent activity lookup failed", "deal_id", dealID, "error", err)
		return false
	}
	return count > 0
}

// findStep prefers steps tagged with one of the given roles, in order, then
// falls back to case-insensitive name fragments for untagged workflows.
func findStep(steps []*models.WorkflowStep, roles []models.StepRole, fragments []string) *models.WorkflowStep {
	for _, role := range roles {
		for _, step := range steps {
			if step.HasRole(role) {
				return step
			}
		}
	}
	for _, fragment := range fragments {
		for _, step := range steps {
			if step.NameContains(fragment) {
				return step
			}
		}
	}
	return nil
}

// initialStepID selects the step flagged initial, or the first by order.
func initialStepID(steps []*models.WorkflowStep) *string {
	for _, step := range steps {
		if step.IsInitialStep {
			return &step.ID
		}
	}
	if len(steps) > 0 {
		return &steps[0].ID
	}
	return nil
}

func nameSuggestsDemo(name string) bool {
	return strings.Contains(strings.ToLower(name), "demo")
}

func directionReason(source, target models.EntityType) string {
	if source == models.EntityTypeLead && target == models.EntityTypeDeal {
		return "lead converted to deal"
	}
	return "deal converted back to lead"
}
