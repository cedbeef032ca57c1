package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/tomaskovarik271/pipecrm/internal/repository"
	"github.com/tomaskovarik271/pipecrm/pkg/models"
)

// MockRepository satisfies repository.Repository. Create methods assign ids
// like the real store so orchestrator code can read them back.
type MockRepository struct {
	mock.Mock
}

// WithTx runs fn against the same mock; transactional boundaries are not
// exercised here.
func (m *MockRepository) WithTx(ctx context.Context, fn func(repository.Repository) error) error {
	return fn(m)
}

func (m *MockRepository) Ping(ctx context.Context) error { return nil }

// Leads

func (m *MockRepository) CreateLead(ctx context.Context, lead *models.Lead) error {
	args := m.Called(ctx, lead)
	if lead.ID == "" {
		lead.ID = uuid.New().String()
	}
	return args.Error(0)
}

func (m *MockRepository) GetLead(ctx context.Context, id string) (*models.Lead, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Lead), args.Error(1)
}

func (m *MockRepository) GetLeadByConvertedDealID(ctx context.Context, dealID string) (*models.Lead, error) {
	args := m.Called(ctx, dealID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Lead), args.Error(1)
}

func (m *MockRepository) MarkLeadConverted(ctx context.Context, id string, markers models.ConversionMarkers) error {
	args := m.Called(ctx, id, markers)
	return args.Error(0)
}

func (m *MockRepository) UpdateLeadWFMProject(ctx context.Context, id, wfmProjectID string) error {
	args := m.Called(ctx, id, wfmProjectID)
	return args.Error(0)
}

// Deals

func (m *MockRepository) CreateDeal(ctx context.Context, deal *models.Deal) error {
	args := m.Called(ctx, deal)
	if deal.ID == "" {
		deal.ID = uuid.New().String()
	}
	return args.Error(0)
}

func (m *MockRepository) GetDeal(ctx context.Context, id string) (*models.Deal, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Deal), args.Error(1)
}

func (m *MockRepository) UpdateDealWFMProject(ctx context.Context, id, wfmProjectID string) error {
	args := m.Called(ctx, id, wfmProjectID)
	return args.Error(0)
}

func (m *MockRepository) MarkDealConverted(ctx context.Context, id, leadID string, reason *string) error {
	args := m.Called(ctx, id, leadID, reason)
	return args.Error(0)
}

// People and organizations

func (m *MockRepository) CreatePerson(ctx context.Context, person *models.Person) error {
	args := m.Called(ctx, person)
	if person.ID == "" {
		person.ID = uuid.New().String()
	}
	return args.Error(0)
}

func (m *MockRepository) GetPerson(ctx context.Context, id string) (*models.Person, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Person), args.Error(1)
}

func (m *MockRepository) FindPersonByEmail(ctx context.Context, email string) (*models.Person, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Person), args.Error(1)
}

func (m *MockRepository) LinkPersonToOrganization(ctx context.Context, personID, organizationID string) error {
	args := m.Called(ctx, personID, organizationID)
	return args.Error(0)
}

func (m *MockRepository) CreateOrganization(ctx context.Context, org *models.Organization) error {
	args := m.Called(ctx, org)
	if org.ID == "" {
		org.ID = uuid.New().String()
	}
	return args.Error(0)
}

func (m *MockRepository) GetOrganization(ctx context.Context, id string) (*models.Organization, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Organization), args.Error(1)
}

func (m *MockRepository) FindOrganizationByName(ctx context.Context, name string) (*models.Organization, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Organization), args.Error(1)
}

// Activities

func (m *MockRepository) CreateActivity(ctx context.Context, activity *models.Activity) error {
	args := m.Called(ctx, activity)
	if activity.ID == "" {
		activity.ID = uuid.New().String()
	}
	return args.Error(0)
}

func (m *MockRepository) ReassignLeadActivities(ctx context.Context, leadID, dealID, note string) (int, error) {
	args := m.Called(ctx, leadID, dealID, note)
	return args.Int(0), args.Error(1)
}

func (m *MockRepository) CountRecentDealActivities(ctx context.Context, dealID string, since time.Time) (int, error) {
	args := m.Called(ctx, dealID, since)
	return args.Int(0), args.Error(1)
}

// WFM

func (m *MockRepository) CreateStatus(ctx context.Context, status *models.WFMStatus) error {
	return nil
}

func (m *MockRepository) CreateWorkflow(ctx context.Context, workflow *models.Workflow) error {
	return nil
}

func (m *MockRepository) CreateWorkflowStep(ctx context.Context, step *models.WorkflowStep) error {
	return nil
}

func (m *MockRepository) CreateProjectType(ctx context.Context, pt *models.ProjectType) error {
	return nil
}

func (m *MockRepository) GetWorkflow(ctx context.Context, id string) (*models.Workflow, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Workflow), args.Error(1)
}

func (m *MockRepository) ListWorkflows(ctx context.Context) ([]*models.Workflow, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Workflow), args.Error(1)
}

func (m *MockRepository) ListWorkflowSteps(ctx context.Context, workflowID string) ([]*models.WorkflowStep, error) {
	args := m.Called(ctx, workflowID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.WorkflowStep), args.Error(1)
}

func (m *MockRepository) GetWorkflowStep(ctx context.Context, id string) (*models.WorkflowStep, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.WorkflowStep), args.Error(1)
}

func (m *MockRepository) FindStepByStatusName(ctx context.Context, workflowID, statusName string) (*models.WorkflowStep, error) {
	args := m.Called(ctx, workflowID, statusName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.WorkflowStep), args.Error(1)
}

func (m *MockRepository) GetProjectType(ctx context.Context, id string) (*models.ProjectType, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ProjectType), args.Error(1)
}

func (m *MockRepository) GetProjectTypeByName(ctx context.Context, name string) (*models.ProjectType, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ProjectType), args.Error(1)
}

func (m *MockRepository) ListProjectTypes(ctx context.Context) ([]*models.ProjectType, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.ProjectType), args.Error(1)
}

func (m *MockRepository) CreateWFMProject(ctx context.Context, project *models.WFMProject) error {
	args := m.Called(ctx, project)
	if project.ID == "" {
		project.ID = uuid.New().String()
	}
	return args.Error(0)
}

func (m *MockRepository) GetWFMProject(ctx context.Context, id string) (*models.WFMProject, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.WFMProject), args.Error(1)
}

func (m *MockRepository) UpdateWFMProjectStep(ctx context.Context, projectID, stepID string) error {
	args := m.Called(ctx, projectID, stepID)
	return args.Error(0)
}

// History

func (m *MockRepository) CreateConversionHistory(ctx context.Context, entry *models.ConversionHistoryEntry) error {
	args := m.Called(ctx, entry)
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	return args.Error(0)
}

func (m *MockRepository) ListConversionHistory(ctx context.Context, entityType models.EntityType, entityID string) ([]*models.ConversionHistoryEntry, error) {
	args := m.Called(ctx, entityType, entityID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.ConversionHistoryEntry), args.Error(1)
}

var _ repository.Repository = (*MockRepository)(nil)
