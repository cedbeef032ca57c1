// Package repository provides Postgres-backed persistence for the conversion core.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/tomaskovarik271/pipecrm/pkg/models"
)

var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyConverted is returned by MarkLeadConverted when the
	// compare-and-swap claim finds the lead already converted.
	ErrAlreadyConverted = errors.New("lead already converted")
)

// LeadStore persists leads.
type LeadStore interface {
	CreateLead(ctx context.Context, lead *models.Lead) error
	GetLead(ctx context.Context, id string) (*models.Lead, error)
	// GetLeadByConvertedDealID finds the lead that was converted into the
	// given deal, if any. Used for circular-conversion detection.
	GetLeadByConvertedDealID(ctx context.Context, dealID string) (*models.Lead, error)
	// MarkLeadConverted claims the lead for a forward conversion with a
	// compare-and-swap update guarded by converted_at IS NULL. Returns
	// ErrAlreadyConverted when another conversion won the race.
	MarkLeadConverted(ctx context.Context, id string, markers models.ConversionMarkers) error
	UpdateLeadWFMProject(ctx context.Context, id, wfmProjectID string) error
}

// DealStore persists deals.
type DealStore interface {
	CreateDeal(ctx context.Context, deal *models.Deal) error
	GetDeal(ctx context.Context, id string) (*models.Deal, error)
	UpdateDealWFMProject(ctx context.Context, id, wfmProjectID string) error
	// MarkDealConverted records the backward-conversion marker on the deal.
	MarkDealConverted(ctx context.Context, id, leadID string, reason *string) error
}

// PersonStore persists people.
type PersonStore interface {
	CreatePerson(ctx context.Context, person *models.Person) error
	GetPerson(ctx context.Context, id string) (*models.Person, error)
	FindPersonByEmail(ctx context.Context, email string) (*models.Person, error)
	LinkPersonToOrganization(ctx context.Context, personID, organizationID string) error
}

// OrganizationStore persists organizations.
type OrganizationStore interface {
	CreateOrganization(ctx context.Context, org *models.Organization) error
	GetOrganization(ctx context.Context, id string) (*models.Organization, error)
	FindOrganizationByName(ctx context.Context, name string) (*models.Organization, error)
}

// ActivityStore persists activities.
type ActivityStore interface {
	CreateActivity(ctx context.Context, activity *models.Activity) error
	// ReassignLeadActivities re-points every activity referencing the lead
	// to the deal instead, appending a provenance note. Returns the number
	// of activities moved.
	ReassignLeadActivities(ctx context.Context, leadID, dealID, note string) (int, error)
	CountRecentDealActivities(ctx context.Context, dealID string, since time.Time) (int, error)
}

// WFMStore persists workflow definitions, project types and live projects.
type WFMStore interface {
	CreateStatus(ctx context.Context, status *models.WFMStatus) error
	CreateWorkflow(ctx context.Context, workflow *models.Workflow) error
	CreateWorkflowStep(ctx context.Context, step *models.WorkflowStep) error
	CreateProjectType(ctx context.Context, pt *models.ProjectType) error

	GetWorkflow(ctx context.Context, id string) (*models.Workflow, error)
	ListWorkflows(ctx context.Context) ([]*models.Workflow, error)
	// ListWorkflowSteps returns the workflow's steps ordered by step_order,
	// with status names denormalized.
	ListWorkflowSteps(ctx context.Context, workflowID string) ([]*models.WorkflowStep, error)
	GetWorkflowStep(ctx context.Context, id string) (*models.WorkflowStep, error)
	// FindStepByStatusName finds the step of a workflow whose status carries
	// the given display name (case-insensitive exact match).
	FindStepByStatusName(ctx context.Context, workflowID, statusName string) (*models.WorkflowStep, error)

	GetProjectType(ctx context.Context, id string) (*models.ProjectType, error)
	GetProjectTypeByName(ctx context.Context, name string) (*models.ProjectType, error)
	ListProjectTypes(ctx context.Context) ([]*models.ProjectType, error)

	CreateWFMProject(ctx context.Context, project *models.WFMProject) error
	GetWFMProject(ctx context.Context, id string) (*models.WFMProject, error)
	UpdateWFMProjectStep(ctx context.Context, projectID, stepID string) error
}

// HistoryStore persists the immutable conversion audit log.
type HistoryStore interface {
	CreateConversionHistory(ctx context.Context, entry *models.ConversionHistoryEntry) error
	// ListConversionHistory returns entries where the entity appears as
	// either source or target, newest first.
	ListConversionHistory(ctx context.Context, entityType models.EntityType, entityID string) ([]*models.ConversionHistoryEntry, error)
}

// Repository aggregates every store plus transaction support.
type Repository interface {
	LeadStore
	DealStore
	PersonStore
	OrganizationStore
	ActivityStore
	WFMStore
	HistoryStore

	// WithTx runs fn against a repository bound to a single database
	// transaction. fn returning an error rolls the transaction back.
	WithTx(ctx context.Context, fn func(Repository) error) error
	Ping(ctx context.Context) error
}
