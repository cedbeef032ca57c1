package models

import (
	"encoding/json"
	"strings"
	"time"
)

// StepRole is the administrator-assigned semantic role of a workflow step.
// Planner and validator lookups go through roles first so that renaming a
// step in the UI cannot silently break transition mapping; free-text name
// matching survives only as a fallback for untagged workflows.
type StepRole string

const (
	StepRoleQualified       StepRole = "QUALIFIED"
	StepRoleScoping         StepRole = "SCOPING"
	StepRoleProposal        StepRole = "PROPOSAL"
	StepRoleHot             StepRole = "HOT"
	StepRoleConvertedMarker StepRole = "CONVERTED_MARKER"
	StepRoleWon             StepRole = "WON"
	StepRoleLost            StepRole = "LOST"
)

// OutcomeType marks a terminal step's business outcome
type OutcomeType string

const (
	OutcomeWon       OutcomeType = "WON"
	OutcomeLost      OutcomeType = "LOST"
	OutcomeConverted OutcomeType = "CONVERTED"
)

// StepMetadata is the free-form metadata blob carried by a workflow step.
type StepMetadata struct {
	Role        *StepRole    `json:"role,omitempty"`
	OutcomeType *OutcomeType `json:"outcome_type,omitempty"`
}

// ParseStepMetadata decodes the raw JSONB metadata column. A null or empty
// column yields empty metadata, never an error.
func ParseStepMetadata(raw []byte) StepMetadata {
	var md StepMetadata
	if len(raw) == 0 {
		return md
	}
	_ = json.Unmarshal(raw, &md)
	return md
}

// WFMStatus represents a reusable status label referenced by workflow steps
type WFMStatus struct {
	ID    string `json:"id" db:"id"`
	Name  string `json:"name" db:"name"`
	Color *string `json:"color,omitempty" db:"color"`
}

// Workflow represents an ordered set of steps an entity moves through
type Workflow struct {
	ID          string    `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description *string   `json:"description,omitempty" db:"description"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// WorkflowStep is one node in a workflow. StatusName is denormalized from the
// statuses table on read.
type WorkflowStep struct {
	ID            string       `json:"id" db:"id"`
	WorkflowID    string       `json:"workflow_id" db:"workflow_id"`
	StatusID      string       `json:"status_id" db:"status_id"`
	StatusName    string       `json:"status_name" db:"status_name"`
	StepOrder     int          `json:"step_order" db:"step_order"`
	IsInitialStep bool         `json:"is_initial_step" db:"is_initial_step"`
	IsFinalStep   bool         `json:"is_final_step" db:"is_final_step"`
	Metadata      StepMetadata `json:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// HasRole reports whether the step is tagged with the given semantic role.
func (s *WorkflowStep) HasRole(role StepRole) bool {
	return s.Metadata.Role != nil && *s.Metadata.Role == role
}

// NameContains does a case-insensitive substring match on the status name.
func (s *WorkflowStep) NameContains(fragment string) bool {
	return strings.Contains(strings.ToLower(s.StatusName), strings.ToLower(fragment))
}

// IsWonOutcome reports whether the step represents a won terminal outcome.
func (s *WorkflowStep) IsWonOutcome() bool {
	if s.HasRole(StepRoleWon) {
		return true
	}
	return s.Metadata.OutcomeType != nil && *s.Metadata.OutcomeType == OutcomeWon
}

// ProjectType classifies WFM projects and carries the default workflow used
// when instantiating one
type ProjectType struct {
	ID                string    `json:"id" db:"id"`
	Name              string    `json:"name" db:"name"`
	Description       *string   `json:"description,omitempty" db:"description"`
	DefaultWorkflowID *string   `json:"default_workflow_id,omitempty" db:"default_workflow_id"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time `json:"updated_at" db:"updated_at"`
}

// WFMProject is the live workflow instance bound to exactly one lead or deal.
// CurrentStepID must always reference a step belonging to WorkflowID.
type WFMProject struct {
	ID              string    `json:"id" db:"id"`
	Name            string    `json:"name" db:"name"`
	ProjectTypeID   string    `json:"project_type_id" db:"project_type_id"`
	WorkflowID      string    `json:"workflow_id" db:"workflow_id"`
	CurrentStepID   *string   `json:"current_step_id,omitempty" db:"current_step_id"`
	CreatedByUserID string    `json:"created_by_user_id" db:"created_by_user_id"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}
