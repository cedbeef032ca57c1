package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/tomaskovarik271/pipecrm/internal/config"
	"github.com/tomaskovarik271/pipecrm/internal/logging"
	"github.com/tomaskovarik271/pipecrm/internal/repository"
	"github.com/tomaskovarik271/pipecrm/pkg/models"
)

const convertedToLeadStatusName = "Converted to Lead"

// ConversionService orchestrates lead<->deal conversions. Each conversion
// runs inside a single database transaction so readers never observe a
// half-converted entity; best-effort side effects degrade into the result's
// SideEffectFailures list instead of rolling the transaction back.
type ConversionService struct {
	repo      repository.Repository
	logger    *logging.Logger
	validator *Validator
	planner   *Planner
	executor  *Executor
	history   *HistoryRecorder

	conversions metric.Int64Counter
}

// NewConversionService wires the validator, planner, executor and history
// recorder around a repository.
func NewConversionService(repo repository.Repository, cfg config.ConversionConfig, logger *logging.Logger) *ConversionService {
	meter := otel.Meter("github.com/tomaskovarik271/pipecrm/internal/services")
	conversions, err := meter.Int64Counter("crm.conversions",
		metric.WithDescription("Completed conversion attempts by direction and outcome"))
	if err != nil {
		logger.Warn("conversion counter unavailable", "error", err)
	}

	return &ConversionService{
		repo:        repo,
		logger:      logger,
		validator:   NewValidator(repo, logger),
		planner:     NewPlanner(cfg, logger),
		executor:    NewExecutor(logger),
		history:     NewHistoryRecorder(repo, logger),
		conversions: conversions,
	}
}

// ValidateConversion runs the pre-check without mutating anything.
func (s *ConversionService) ValidateConversion(ctx context.Context, sourceType models.EntityType, sourceID string, targetType models.EntityType, user models.User) (*models.ValidationResult, error) {
	return s.validator.Validate(ctx, sourceType, sourceID, targetType, user)
}

// ConversionHistory returns the audit entries for an entity, newest first.
func (s *ConversionService) ConversionHistory(ctx context.Context, entityType models.EntityType, entityID string) []*models.ConversionHistoryEntry {
	return s.history.Query(ctx, entityType, entityID)
}

// ConvertLeadToDeal migrates a lead forward into a deal: resolves or creates
// the person and organization, plans and executes the workflow transition,
// migrates activities, claims the lead and records history.
func (s *ConversionService) ConvertLeadToDeal(ctx context.Context, leadID string, opts models.LeadConversionOptions, user models.User) *models.ConversionResult {
	validation, err := s.validator.Validate(ctx, models.EntityTypeLead, leadID, models.EntityTypeDeal, user)
	if err != nil {
		return failedResult(err)
	}
	if !validation.CanProceed {
		return &models.ConversionResult{Success: false, Errors: issueMessages(validation.Errors)}
	}
	lead := validation.SourceLead

	result := &models.ConversionResult{}
	err = s.repo.WithTx(ctx, func(tx repository.Repository) error {
		personID, personCreated := s.resolvePerson(ctx, tx, lead, result)
		orgID, orgCreated := s.resolveOrganization(ctx, tx, lead, result)
		if personID != nil && orgID != nil {
			if err := tx.LinkPersonToOrganization(ctx, *personID, *orgID); err != nil {
				s.noteSideEffectFailure(result, "linking person to organization failed", err)
			}
		}
		result.PersonID = personID
		result.OrganizationID = orgID

		plan, err := s.planner.Plan(ctx, tx, PlanRequest{
			SourceType:            models.EntityTypeLead,
			Lead:                  lead,
			TargetType:            models.EntityTypeDeal,
			OverrideProjectTypeID: opts.TargetProjectTypeID,
			OverrideStepID:        opts.TargetStepID,
		})
		result.TransitionPlan = plan
		if err != nil {
			// A deal with no workflow home is worse than a clean failure;
			// abort before anything user-visible exists.
			return fmt.Errorf("transition planning failed: %w", err)
		}

		deal := buildDealFromLead(lead, opts, personID, orgID, user)
		if err := tx.CreateDeal(ctx, deal); err != nil {
			return fmt.Errorf("deal creation failed: %w", err)
		}
		result.DealID = &deal.ID

		exec := s.executor.Execute(ctx, tx, plan, models.EntityTypeDeal, deal.ID, deal.Name, user.ID)
		if exec.Success {
			result.WFMProjectID = exec.WFMProjectID
		} else {
			result.SideEffectFailures = append(result.SideEffectFailures, exec.Errors...)
		}

		activitiesMigrated := 0
		if opts.ShouldPreserveActivities() {
			note := fmt.Sprintf("Migrated from lead %q during conversion", lead.Name)
			moved, err := tx.ReassignLeadActivities(ctx, lead.ID, deal.ID, note)
			if err != nil {
				s.noteSideEffectFailure(result, "activity migration failed", err)
			} else {
				activitiesMigrated = moved
			}
		}

		if err := tx.MarkLeadConverted(ctx, lead.ID, models.ConversionMarkers{
			ConvertedAt:               time.Now().UTC(),
			ConvertedToDealID:         deal.ID,
			ConvertedToPersonID:       personID,
			ConvertedToOrganizationID: orgID,
			ConvertedByUserID:         user.ID,
		}); err != nil {
			if errors.Is(err, repository.ErrAlreadyConverted) {
				return fmt.Errorf("lead %q was converted concurrently: %w", lead.Name, err)
			}
			return fmt.Errorf("marking lead converted failed: %w", err)
		}

		if plan.SourceConvertedStepID != nil && lead.WFMProjectID != nil {
			if err := tx.UpdateWFMProjectStep(ctx, *lead.WFMProjectID, *plan.SourceConvertedStepID); err != nil {
				s.noteSideEffectFailure(result, "moving lead to converted step failed", err)
			}
		}

		entry := &models.ConversionHistoryEntry{
			ConversionType:   models.ConversionLeadToDeal,
			SourceEntityType: models.EntityTypeLead,
			SourceEntityID:   lead.ID,
			TargetEntityType: models.EntityTypeDeal,
			TargetEntityID:   deal.ID,
			Reason:           opts.Reason,
			ConversionData: map[string]any{
				"person_created":           personCreated,
				"organization_created":     orgCreated,
				"wfm_transition_succeeded": exec.Success,
				"activities_migrated":      activitiesMigrated,
			},
			TransitionPlan:    plan,
			ConvertedByUserID: user.ID,
		}
		conversionID, err := s.history.Record(ctx, tx, entry)
		if err != nil {
			return fmt.Errorf("recording conversion history failed: %w", err)
		}
		result.ConversionID = conversionID

		if opts.ShouldCreateConversionActivity() {
			activity := &models.Activity{
				Subject:         fmt.Sprintf("Converted from lead %q", lead.Name),
				Type:            models.ActivityTypeSystem,
				IsDone:          true,
				DealID:          &deal.ID,
				PersonID:        personID,
				CreatedByUserID: user.ID,
			}
			if err := tx.CreateActivity(ctx, activity); err != nil {
				s.noteSideEffectFailure(result, "conversion audit activity failed", err)
			}
		}

		return nil
	})
	if err != nil {
		s.logger.Error("lead conversion failed", "lead_id", leadID, "error", err)
		s.count(ctx, models.ConversionLeadToDeal, false)
		return failedResult(err)
	}

	result.Success = true
	s.count(ctx, models.ConversionLeadToDeal, true)
	s.logger.Info("lead converted to deal",
		"lead_id", leadID, "deal_id", deref(result.DealID),
		"side_effect_failures", len(result.SideEffectFailures))
	return result
}

// ConvertDealToLead migrates a deal back into a lead, refreshing contact
// detail from the linked person/organization and parking the deal on its
// "Converted to Lead" status when the workflow has one.
func (s *ConversionService) ConvertDealToLead(ctx context.Context, dealID string, opts models.DealToLeadOptions, user models.User) *models.ConversionResult {
	validation, err := s.validator.Validate(ctx, models.EntityTypeDeal, dealID, models.EntityTypeLead, user)
	if err != nil {
		return failedResult(err)
	}
	if !validation.CanProceed {
		return &models.ConversionResult{Success: false, Errors: issueMessages(validation.Errors)}
	}
	deal := validation.SourceDeal

	result := &models.ConversionResult{}
	err = s.repo.WithTx(ctx, func(tx repository.Repository) error {
		plan, err := s.planner.Plan(ctx, tx, PlanRequest{
			SourceType:            models.EntityTypeDeal,
			Deal:                  deal,
			TargetType:            models.EntityTypeLead,
			OverrideProjectTypeID: opts.TargetProjectTypeID,
			OverrideStepID:        opts.TargetStepID,
		})
		if err != nil {
			// No lead-specific project type configured: degrade to any
			// available project type rather than refuse the conversion.
			plan, err = s.replanWithFallbackProjectType(ctx, tx, deal, opts, result, err)
			if err != nil {
				return err
			}
		}
		result.TransitionPlan = plan

		lead := s.buildLeadFromDeal(ctx, tx, deal, opts, user, result)
		if err := tx.CreateLead(ctx, lead); err != nil {
			return fmt.Errorf("lead creation failed: %w", err)
		}
		result.LeadID = &lead.ID

		exec := s.executor.Execute(ctx, tx, plan, models.EntityTypeLead, lead.ID, lead.Name, user.ID)
		if exec.Success {
			result.WFMProjectID = exec.WFMProjectID
		} else {
			result.SideEffectFailures = append(result.SideEffectFailures, exec.Errors...)
		}

		result.DealStatusUpdated = s.parkDealOnConvertedStatus(ctx, tx, deal, result)

		if err := tx.MarkDealConverted(ctx, deal.ID, lead.ID, opts.Reason); err != nil {
			return fmt.Errorf("marking deal converted failed: %w", err)
		}

		entry := &models.ConversionHistoryEntry{
			ConversionType:   models.ConversionDealToLead,
			SourceEntityType: models.EntityTypeDeal,
			SourceEntityID:   deal.ID,
			TargetEntityType: models.EntityTypeLead,
			TargetEntityID:   lead.ID,
			Reason:           opts.Reason,
			ConversionData: map[string]any{
				"deal_status_updated":      result.DealStatusUpdated,
				"wfm_transition_succeeded": exec.Success,
			},
			TransitionPlan:    plan,
			ConvertedByUserID: user.ID,
		}
		conversionID, err := s.history.Record(ctx, tx, entry)
		if err != nil {
			return fmt.Errorf("recording conversion history failed: %w", err)
		}
		result.ConversionID = conversionID

		return nil
	})
	if err != nil {
		s.logger.Error("deal conversion failed", "deal_id", dealID, "error", err)
		s.count(ctx, models.ConversionDealToLead, false)
		return failedResult(err)
	}

	result.Success = true
	s.count(ctx, models.ConversionDealToLead, true)
	s.logger.Info("deal converted to lead",
		"deal_id", dealID, "lead_id", deref(result.LeadID),
		"deal_status_updated", result.DealStatusUpdated)
	return result
}

// BulkConvertLeads sequences independent single conversions. Items are
// processed at-least-once each with no batch atomicity; one lead's failure
// never halts its siblings.
func (s *ConversionService) BulkConvertLeads(ctx context.Context, leadIDs []string, defaults models.LeadConversionOptions, overrides map[string]models.LeadConversionOptions, user models.User) *models.BulkConversionResult {
	out := &models.BulkConversionResult{
		Results: make([]models.BulkConversionItem, 0, len(leadIDs)),
	}

	for _, leadID := range leadIDs {
		opts := defaults
		if o, ok := overrides[leadID]; ok {
			opts = o
		}

		item := models.BulkConversionItem{LeadID: leadID}
		if lead, err := s.repo.GetLead(ctx, leadID); err == nil {
			item.LeadName = lead.Name
		}

		res := s.ConvertLeadToDeal(ctx, leadID, opts, user)
		if res.Success {
			item.Success = true
			item.DealID = res.DealID
			out.Summary.SuccessCount++
		} else {
			msg := strings.Join(res.Errors, "; ")
			item.Error = &msg
			out.Summary.ErrorCount++
		}
		out.Summary.TotalProcessed++
		out.Results = append(out.Results, item)
	}

	return out
}

// resolvePerson finds the person by contact email or creates one from the
// lead's contact fields. Returns (nil, false) when the lead has no contact
// or when resolution degrades.
func (s *ConversionService) resolvePerson(ctx context.Context, tx repository.Repository, lead *models.Lead, result *models.ConversionResult) (*string, bool) {
	if !lead.HasContact() {
		return nil, false
	}

	if lead.ContactEmail != nil && *lead.ContactEmail != "" {
		person, err := tx.FindPersonByEmail(ctx, *lead.ContactEmail)
		switch {
		case err == nil:
			return &person.ID, false
		case !errors.Is(err, repository.ErrNotFound):
			s.noteSideEffectFailure(result, "person lookup failed", err)
			return nil, false
		}
	}

	first, last := splitContactName(lead)
	note := fmt.Sprintf("Created during conversion of lead %q", lead.Name)
	person := &models.Person{
		FirstName: first,
		LastName:  last,
		Email:     lead.ContactEmail,
		Phone:     lead.ContactPhone,
		Notes:     &note,
	}
	if err := tx.CreatePerson(ctx, person); err != nil {
		s.noteSideEffectFailure(result, "person creation failed", err)
		return nil, false
	}
	return &person.ID, true
}

// resolveOrganization finds the organization by company name or creates one.
func (s *ConversionService) resolveOrganization(ctx context.Context, tx repository.Repository, lead *models.Lead, result *models.ConversionResult) (*string, bool) {
	if lead.CompanyName == nil || *lead.CompanyName == "" {
		return nil, false
	}

	org, err := tx.FindOrganizationByName(ctx, *lead.CompanyName)
	switch {
	case err == nil:
		return &org.ID, false
	case !errors.Is(err, repository.ErrNotFound):
		s.noteSideEffectFailure(result, "organization lookup failed", err)
		return nil, false
	}

	note := fmt.Sprintf("Created during conversion of lead %q", lead.Name)
	created := &models.Organization{Name: *lead.CompanyName, Notes: &note}
	if err := tx.CreateOrganization(ctx, created); err != nil {
		s.noteSideEffectFailure(result, "organization creation failed", err)
		return nil, false
	}
	return &created.ID, true
}

// replanWithFallbackProjectType retries planning against the first project
// type that carries a workflow. Only the backward direction degrades this
// way; a deployment without any project type at all still aborts.
func (s *ConversionService) replanWithFallbackProjectType(ctx context.Context, tx repository.Repository, deal *models.Deal, opts models.DealToLeadOptions, result *models.ConversionResult, planErr error) (*models.TransitionPlan, error) {
	types, err := tx.ListProjectTypes(ctx)
	if err != nil || len(types) == 0 {
		return nil, fmt.Errorf("no project type available for leads: %w", planErr)
	}

	for _, pt := range types {
		if pt.DefaultWorkflowID == nil {
			continue
		}
		s.logger.Warn("lead project type not configured; falling back",
			"fallback_project_type", pt.Name)
		s.noteSideEffectFailure(result,
			fmt.Sprintf("lead project type not configured; using %q", pt.Name), nil)
		return s.planner.Plan(ctx, tx, PlanRequest{
			SourceType:            models.EntityTypeDeal,
			Deal:                  deal,
			TargetType:            models.EntityTypeLead,
			OverrideProjectTypeID: &pt.ID,
			OverrideStepID:        opts.TargetStepID,
		})
	}

	return nil, fmt.Errorf("no project type with a workflow available for leads: %w", planErr)
}

// parkDealOnConvertedStatus moves the source deal to its workflow's
// "Converted to Lead" status when that status exists; otherwise the deal's
// step is left unchanged and the omission is recorded.
func (s *ConversionService) parkDealOnConvertedStatus(ctx context.Context, tx repository.Repository, deal *models.Deal, result *models.ConversionResult) bool {
	if deal.WFMProjectID == nil {
		return false
	}
	project, err := tx.GetWFMProject(ctx, *deal.WFMProjectID)
	if err != nil {
		s.noteSideEffectFailure(result, "deal workflow lookup failed", err)
		return false
	}
	step, err := tx.FindStepByStatusName(ctx, project.WorkflowID, convertedToLeadStatusName)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.noteSideEffectFailure(result,
				fmt.Sprintf("deal workflow has no %q status; step left unchanged", convertedToLeadStatusName), nil)
		} else {
			s.noteSideEffectFailure(result, "deal status lookup failed", err)
		}
		return false
	}
	if err := tx.UpdateWFMProjectStep(ctx, project.ID, step.ID); err != nil {
		s.noteSideEffectFailure(result, "moving deal to converted status failed", err)
		return false
	}
	return true
}

// buildLeadFromDeal derives the new lead's fields from the deal, preferring
// current person/organization detail over the deal's stale snapshot.
func (s *ConversionService) buildLeadFromDeal(ctx context.Context, tx repository.Repository, deal *models.Deal, opts models.DealToLeadOptions, user models.User, result *models.ConversionResult) *models.Lead {
	lead := &models.Lead{
		Name:               deal.Name,
		EstimatedValue:     deal.Amount,
		Currency:           deal.Currency,
		EstimatedCloseDate: deal.ExpectedCloseDate,
		CreatedByUserID:    user.ID,
		AssignedToUserID:   deal.AssignedToUserID,
		OriginalDealID:     &deal.ID,
	}
	if opts.LeadName != nil {
		lead.Name = *opts.LeadName
	}
	if opts.EstimatedValue != nil {
		lead.EstimatedValue = opts.EstimatedValue
	}

	if deal.PersonID != nil {
		if person, err := tx.GetPerson(ctx, *deal.PersonID); err == nil {
			name := person.FullName()
			lead.ContactName = &name
			lead.ContactEmail = person.Email
			lead.ContactPhone = person.Phone
		} else {
			s.noteSideEffectFailure(result, "person detail lookup failed", err)
		}
	}
	if deal.OrganizationID != nil {
		if org, err := tx.GetOrganization(ctx, *deal.OrganizationID); err == nil {
			lead.CompanyName = &org.Name
		} else {
			s.noteSideEffectFailure(result, "organization detail lookup failed", err)
		}
	}

	return lead
}

func (s *ConversionService) noteSideEffectFailure(result *models.ConversionResult, msg string, err error) {
	if err != nil {
		msg = fmt.Sprintf("%s: %v", msg, err)
		s.logger.Warn("conversion side effect degraded", "detail", msg)
	} else {
		s.logger.Warn("conversion side effect degraded", "detail", msg)
	}
	result.SideEffectFailures = append(result.SideEffectFailures, msg)
}

func (s *ConversionService) count(ctx context.Context, direction models.ConversionType, success bool) {
	if s.conversions == nil {
		return
	}
	s.conversions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("direction", string(direction)),
		attribute.Bool("success", success),
	))
}

// buildDealFromLead merges caller overrides over lead-derived defaults.
func buildDealFromLead(lead *models.Lead, opts models.LeadConversionOptions, personID, orgID *string, user models.User) *models.Deal {
	deal := &models.Deal{
		Name:              lead.Name,
		Amount:            lead.EstimatedValue,
		Currency:          lead.Currency,
		ExpectedCloseDate: lead.EstimatedCloseDate,
		PersonID:          personID,
		OrganizationID:    orgID,
		CreatedByUserID:   user.ID,
		AssignedToUserID:  lead.AssignedToUserID,
	}
	if opts.DealName != nil {
		deal.Name = *opts.DealName
	}
	if opts.Amount != nil {
		deal.Amount = opts.Amount
	}
	if opts.Currency != nil {
		deal.Currency = *opts.Currency
	}
	if opts.ExpectedCloseDate != nil {
		deal.ExpectedCloseDate = opts.ExpectedCloseDate
	}
	if opts.AssignedToUserID != nil {
		deal.AssignedToUserID = opts.AssignedToUserID
	}
	if deal.AssignedToUserID == nil {
		deal.AssignedToUserID = &user.ID
	}
	return deal
}

// splitContactName derives first/last name, falling back to the email local
// part when the lead only has an email.
func splitContactName(lead *models.Lead) (string, string) {
	if lead.ContactName != nil && strings.TrimSpace(*lead.ContactName) != "" {
		parts := strings.Fields(*lead.ContactName)
		if len(parts) == 1 {
			return parts[0], ""
		}
		return parts[0], strings.Join(parts[1:], " ")
	}
	if lead.ContactEmail != nil {
		local, _, _ := strings.Cut(*lead.ContactEmail, "@")
		return local, ""
	}
	return "Unknown", ""
}

func issueMessages(issues []models.ValidationIssue) []string {
	msgs := make([]string, 0, len(issues))
	for _, issue := range issues {
		msgs = append(msgs, issue.Message)
	}
	return msgs
}

func failedResult(err error) *models.ConversionResult {
	return &models.ConversionResult{Success: false, Errors: []string{err.Error()}}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
