package models

import (
	"time"
)

// ConversionType represents the direction of a conversion
type ConversionType string

const (
	ConversionLeadToDeal ConversionType = "LEAD_TO_DEAL"
	ConversionDealToLead ConversionType = "DEAL_TO_LEAD"
)

// MappingStrategy records how the target step of a transition was derived
type MappingStrategy string

const (
	// MappingManual means the caller supplied an explicit target step
	MappingManual MappingStrategy = "MANUAL"
	// MappingAuto means the step heuristic matched on source attributes
	MappingAuto MappingStrategy = "AUTO"
	// MappingDefault means the planner fell back to the initial step
	MappingDefault MappingStrategy = "DEFAULT"
)

// IssueCode identifies a validation error or warning
type IssueCode string

const (
	// Blocking errors
	IssueNotFound               IssueCode = "NOT_FOUND"
	IssueAlreadyConverted       IssueCode = "ALREADY_CONVERTED"
	IssueInsufficientPermission IssueCode = "INSUFFICIENT_PERMISSION"
	IssueTerminalState          IssueCode = "TERMINAL_STATE"
	IssueIdentityConflict       IssueCode = "IDENTITY_CONFLICT"

	// Non-blocking warnings
	IssueLowScore             IssueCode = "LOW_SCORE"
	IssueMissingContact       IssueCode = "MISSING_CONTACT"
	IssueMissingValue         IssueCode = "MISSING_VALUE"
	IssueHighProbability      IssueCode = "HIGH_PROBABILITY"
	IssuePrematureConversion  IssueCode = "PREMATURE_CONVERSION"
	IssueCircularConversion   IssueCode = "CIRCULAR_CONVERSION"
)

// ValidationIssue is a single error or warning produced by the validator
type ValidationIssue struct {
	Code    IssueCode `json:"code"`
	Message string    `json:"message"`
}

// ValidationResult is the outcome of a conversion pre-check. Warnings never
// block; CanProceed is true iff Errors is empty.
type ValidationResult struct {
	IsValid    bool              `json:"is_valid"`
	CanProceed bool              `json:"can_proceed"`
	Errors     []ValidationIssue `json:"errors"`
	Warnings   []ValidationIssue `json:"warnings"`

	SourceLead *Lead `json:"source_lead,omitempty"`
	SourceDeal *Deal `json:"source_deal,omitempty"`
}

// AddError appends a blocking error and recomputes the verdict fields.
func (r *ValidationResult) AddError(code IssueCode, message string) {
	r.Errors = append(r.Errors, ValidationIssue{Code: code, Message: message})
	r.IsValid = false
	r.CanProceed = false
}

// AddWarning appends a non-blocking warning.
func (r *ValidationResult) AddWarning(code IssueCode, message string) {
	r.Warnings = append(r.Warnings, ValidationIssue{Code: code, Message: message})
}

// TransitionPlan is the computed workflow target for a conversion, plus how
// it was derived. A degraded plan (empty target ids) is still a valid value;
// the orchestrator decides whether to act on it.
type TransitionPlan struct {
	SourceWorkflowID      string  `json:"source_workflow_id,omitempty"`
	SourceStepID          string  `json:"source_step_id,omitempty"`
	SourceConvertedStepID *string `json:"source_converted_step_id,omitempty"`

	TargetProjectTypeID string  `json:"target_project_type_id,omitempty"`
	TargetWorkflowID    string  `json:"target_workflow_id,omitempty"`
	TargetStepID        *string `json:"target_step_id,omitempty"`
	TargetInitialStepID *string `json:"target_initial_step_id,omitempty"`

	MappingStrategy  MappingStrategy `json:"mapping_strategy"`
	TransitionReason string          `json:"transition_reason"`
}

// EffectiveTargetStepID returns the step the executor should bind the new
// project to: the mapped step when one was resolved, otherwise the initial
// step fallback.
func (p *TransitionPlan) EffectiveTargetStepID() *string {
	if p.TargetStepID != nil {
		return p.TargetStepID
	}
	return p.TargetInitialStepID
}

// ConversionHistoryEntry is the immutable audit record of one conversion
// event. Rows are created once and never updated or deleted by the core.
type ConversionHistoryEntry struct {
	ID               string          `json:"id" db:"id"`
	ConversionType   ConversionType  `json:"conversion_type" db:"conversion_type"`
	SourceEntityType EntityType      `json:"source_entity_type" db:"source_entity_type"`
	SourceEntityID   string          `json:"source_entity_id" db:"source_entity_id"`
	TargetEntityType EntityType      `json:"target_entity_type" db:"target_entity_type"`
	TargetEntityID   string          `json:"target_entity_id" db:"target_entity_id"`
	Reason           *string         `json:"reason,omitempty" db:"conversion_reason"`
	ConversionData   map[string]any  `json:"conversion_data,omitempty" db:"conversion_data"` // JSONB
	TransitionPlan   *TransitionPlan `json:"wfm_transition_plan,omitempty" db:"wfm_transition_plan"` // JSONB
	ConvertedByUserID string         `json:"converted_by_user_id" db:"converted_by_user_id"`
	CreatedAt        time.Time       `json:"created_at" db:"created_at"`
}

// LeadConversionOptions are caller overrides for a forward (lead->deal)
// conversion. Nil pointers mean "derive from the lead".
type LeadConversionOptions struct {
	TargetProjectTypeID *string    `json:"target_project_type_id,omitempty"`
	TargetStepID        *string    `json:"target_step_id,omitempty"`
	DealName            *string    `json:"deal_name,omitempty"`
	Amount              *float64   `json:"amount,omitempty"`
	Currency            *string    `json:"currency,omitempty"`
	ExpectedCloseDate   *time.Time `json:"expected_close_date,omitempty"`
	AssignedToUserID    *string    `json:"assigned_to_user_id,omitempty"`
	Reason              *string    `json:"reason,omitempty"`

	// Both default to true when nil
	PreserveActivities       *bool `json:"preserve_activities,omitempty"`
	CreateConversionActivity *bool `json:"create_conversion_activity,omitempty"`
}

// ShouldPreserveActivities applies the default-true semantics.
func (o *LeadConversionOptions) ShouldPreserveActivities() bool {
	return o.PreserveActivities == nil || *o.PreserveActivities
}

// ShouldCreateConversionActivity applies the default-true semantics.
func (o *LeadConversionOptions) ShouldCreateConversionActivity() bool {
	return o.CreateConversionActivity == nil || *o.CreateConversionActivity
}

// DealToLeadOptions are caller overrides for a backward (deal->lead)
// conversion.
type DealToLeadOptions struct {
	TargetProjectTypeID *string  `json:"target_project_type_id,omitempty"`
	TargetStepID        *string  `json:"target_step_id,omitempty"`
	LeadName            *string  `json:"lead_name,omitempty"`
	EstimatedValue      *float64 `json:"estimated_value,omitempty"`
	Reason              *string  `json:"reason,omitempty"`
}

// ConversionResult is the structured outcome of a single conversion.
// SideEffectFailures lists best-effort steps that degraded without aborting
// the conversion, so callers and tests can assert on partial outcomes.
type ConversionResult struct {
	Success      bool   `json:"success"`
	ConversionID string `json:"conversion_id,omitempty"` // history entry id

	DealID         *string `json:"deal_id,omitempty"`
	LeadID         *string `json:"lead_id,omitempty"`
	PersonID       *string `json:"person_id,omitempty"`
	OrganizationID *string `json:"organization_id,omitempty"`
	WFMProjectID   *string `json:"wfm_project_id,omitempty"`

	TransitionPlan    *TransitionPlan `json:"wfm_transition_plan,omitempty"`
	DealStatusUpdated bool            `json:"deal_status_updated,omitempty"`

	SideEffectFailures []string `json:"side_effect_failures,omitempty"`
	Errors             []string `json:"errors,omitempty"`
}

// BulkConversionSummary aggregates per-item outcomes of a batch run
type BulkConversionSummary struct {
	TotalProcessed int `json:"total_processed"`
	SuccessCount   int `json:"success_count"`
	ErrorCount     int `json:"error_count"`
}

// BulkConversionItem is one lead's outcome within a batch
type BulkConversionItem struct {
	LeadID   string  `json:"lead_id"`
	LeadName string  `json:"lead_name,omitempty"`
	DealID   *string `json:"deal_id,omitempty"`
	Success  bool    `json:"success"`
	Error    *string `json:"error,omitempty"`
}

// BulkConversionResult reports a batch of independent single conversions.
// Items are processed at-least-once each with no batch atomicity: a failed
// item never rolls back or halts its siblings, and the batch itself carries
// no single pass/fail verdict beyond the counts.
type BulkConversionResult struct {
	Summary BulkConversionSummary `json:"summary"`
	Results []BulkConversionItem  `json:"results"`
}
