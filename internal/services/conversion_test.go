package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/tomaskovarik271/pipecrm/internal/auth"
	"github.com/tomaskovarik271/pipecrm/internal/logging"
	"github.com/tomaskovarik271/pipecrm/internal/repository"
	"github.com/tomaskovarik271/pipecrm/pkg/models"
)

func newService(repo repository.Repository) *ConversionService {
	return NewConversionService(repo, testConversionConfig(), logging.NewLogger())
}

// expectForwardHappyPath wires every mock the standard lead->deal conversion
// touches. Individual tests override single expectations on top.
func expectForwardHappyPath(mockRepo *MockRepository, lead *models.Lead) {
	mockRepo.On("GetLead", mock.Anything, lead.ID).Return(lead, nil)
	mockRepo.On("FindPersonByEmail", mock.Anything, *lead.ContactEmail).Return(nil, repository.ErrNotFound)
	mockRepo.On("CreatePerson", mock.Anything, mock.Anything).Return(nil)
	mockRepo.On("FindOrganizationByName", mock.Anything, *lead.CompanyName).Return(nil, repository.ErrNotFound)
	mockRepo.On("CreateOrganization", mock.Anything, mock.Anything).Return(nil)
	mockRepo.On("LinkPersonToOrganization", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	mockRepo.On("GetProjectTypeByName", mock.Anything, "Sales Deal").Return(dealProjectType(), nil)
	mockRepo.On("ListWorkflowSteps", mock.Anything, "wf-deal").Return(dealWorkflowSteps(), nil)
	mockRepo.On("CreateDeal", mock.Anything, mock.Anything).Return(nil)
	mockRepo.On("CreateWFMProject", mock.Anything, mock.Anything).Return(nil)
	mockRepo.On("UpdateDealWFMProject", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	mockRepo.On("ReassignLeadActivities", mock.Anything, lead.ID, mock.Anything, mock.Anything).Return(2, nil)
	mockRepo.On("MarkLeadConverted", mock.Anything, lead.ID, mock.Anything).Return(nil)
	mockRepo.On("CreateConversionHistory", mock.Anything, mock.Anything).Return(nil)
	mockRepo.On("CreateActivity", mock.Anything, mock.Anything).Return(nil)
}

func TestConvertLeadToDeal_HappyPath(t *testing.T) {
	lead := qualifiedLead()
	mockRepo := new(MockRepository)
	expectForwardHappyPath(mockRepo, lead)

	result := newService(mockRepo).ConvertLeadToDeal(context.Background(),
		lead.ID, models.LeadConversionOptions{}, testUser(auth.DefaultPermissions))

	assert.True(t, result.Success)
	assert.NotNil(t, result.DealID)
	assert.NotNil(t, result.PersonID)
	assert.NotNil(t, result.OrganizationID)
	assert.NotNil(t, result.WFMProjectID)
	assert.NotEmpty(t, result.ConversionID)
	assert.Empty(t, result.SideEffectFailures)
	assert.NotNil(t, result.TransitionPlan)
	assert.Equal(t, models.MappingAuto, result.TransitionPlan.MappingStrategy)
	mockRepo.AssertExpectations(t)
}

func TestConvertLeadToDeal_ReusesExistingPerson(t *testing.T) {
	lead := qualifiedLead()
	existing := &models.Person{ID: "person-existing", FirstName: "Jane", LastName: "Smith"}
	mockRepo := new(MockRepository)
	expectForwardHappyPathWithPerson(mockRepo, lead, existing)

	result := newService(mockRepo).ConvertLeadToDeal(context.Background(),
		lead.ID, models.LeadConversionOptions{}, testUser(auth.DefaultPermissions))

	assert.True(t, result.Success)
	assert.Equal(t, "person-existing", *result.PersonID)
	mockRepo.AssertNotCalled(t, "CreatePerson", mock.Anything, mock.Anything)
}

func expectForwardHappyPathWithPerson(mockRepo *MockRepository, lead *models.Lead, person *models.Person) {
	mockRepo.On("GetLead", mock.Anything, lead.ID).Return(lead, nil)
	mockRepo.On("FindPersonByEmail", mock.Anything, *lead.ContactEmail).Return(person, nil)
	mockRepo.On("FindOrganizationByName", mock.Anything, *lead.CompanyName).Return(nil, repository.ErrNotFound)
	mockRepo.On("CreateOrganization", mock.Anything, mock.Anything).Return(nil)
	mockRepo.On("LinkPersonToOrganization", mock.Anything, person.ID, mock.Anything).Return(nil)
	mockRepo.On("GetProjectTypeByName", mock.Anything, "Sales Deal").Return(dealProjectType(), nil)
	mockRepo.On("ListWorkflowSteps", mock.Anything, "wf-deal").Return(dealWorkflowSteps(), nil)
	mockRepo.On("CreateDeal", mock.Anything, mock.Anything).Return(nil)
	mockRepo.On("CreateWFMProject", mock.Anything, mock.Anything).Return(nil)
	mockRepo.On("UpdateDealWFMProject", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	mockRepo.On("ReassignLeadActivities", mock.Anything, lead.ID, mock.Anything, mock.Anything).Return(0, nil)
	mockRepo.On("MarkLeadConverted", mock.Anything, lead.ID, mock.Anything).Return(nil)
	mockRepo.On("CreateConversionHistory", mock.Anything, mock.Anything).Return(nil)
	mockRepo.On("CreateActivity", mock.Anything, mock.Anything).Return(nil)
}

func TestConvertLeadToDeal_AlreadyConvertedIsBlocked(t *testing.T) {
	lead := qualifiedLead()
	lead.ConvertedAt = timePtr(lead.CreatedAt)
	lead.ConvertedToDealID = strPtr("deal-existing")

	mockRepo := new(MockRepository)
	mockRepo.On("GetLead", mock.Anything, lead.ID).Return(lead, nil)

	result := newService(mockRepo).ConvertLeadToDeal(context.Background(),
		lead.ID, models.LeadConversionOptions{}, testUser(auth.DefaultPermissions))

	assert.False(t, result.Success)
	assert.NotEmpty(t, result.Errors)
	mockRepo.AssertNotCalled(t, "CreateDeal", mock.Anything, mock.Anything)
}

func TestConvertLeadToDeal_ConcurrentClaimRollsBack(t *testing.T) {
	lead := qualifiedLead()
	mockRepo := new(MockRepository)
	mockRepo.On("GetLead", mock.Anything, lead.ID).Return(lead, nil)
	mockRepo.On("FindPersonByEmail", mock.Anything, *lead.ContactEmail).Return(nil, repository.ErrNotFound)
	mockRepo.On("CreatePerson", mock.Anything, mock.Anything).Return(nil)
	mockRepo.On("FindOrganizationByName", mock.Anything, *lead.CompanyName).Return(nil, repository.ErrNotFound)
	mockRepo.On("CreateOrganization", mock.Anything, mock.Anything).Return(nil)
	mockRepo.On("LinkPersonToOrganization", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	mockRepo.On("GetProjectTypeByName", mock.Anything, "Sales Deal").Return(dealProjectType(), nil)
	mockRepo.On("ListWorkflowSteps", mock.Anything, "wf-deal").Return(dealWorkflowSteps(), nil)
	mockRepo.On("CreateDeal", mock.Anything, mock.Anything).Return(nil)
	mockRepo.On("CreateWFMProject", mock.Anything, mock.Anything).Return(nil)
	mockRepo.On("UpdateDealWFMProject", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	mockRepo.On("ReassignLeadActivities", mock.Anything, lead.ID, mock.Anything, mock.Anything).Return(0, nil)
	mockRepo.On("MarkLeadConverted", mock.Anything, lead.ID, mock.Anything).Return(repository.ErrAlreadyConverted)

	result := newService(mockRepo).ConvertLeadToDeal(context.Background(),
		lead.ID, models.LeadConversionOptions{}, testUser(auth.DefaultPermissions))

	assert.False(t, result.Success)
	assert.Contains(t, result.Errors[0], "converted concurrently")
	mockRepo.AssertNotCalled(t, "CreateConversionHistory", mock.Anything, mock.Anything)
}

func TestConvertLeadToDeal_ConfigurationErrorAbortsBeforeDealCreation(t *testing.T) {
	lead := qualifiedLead()

	mockRepo := new(MockRepository)
	mockRepo.On("GetLead", mock.Anything, lead.ID).Return(lead, nil)
	mockRepo.On("FindPersonByEmail", mock.Anything, *lead.ContactEmail).Return(nil, repository.ErrNotFound)
	mockRepo.On("CreatePerson", mock.Anything, mock.Anything).Return(nil)
	mockRepo.On("FindOrganizationByName", mock.Anything, *lead.CompanyName).Return(nil, repository.ErrNotFound)
	mockRepo.On("CreateOrganization", mock.Anything, mock.Anything).Return(nil)
	mockRepo.On("LinkPersonToOrganization", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	mockRepo.On("GetProjectTypeByName", mock.Anything, "Sales Deal").Return(nil, repository.ErrNotFound)

	result := newService(mockRepo).ConvertLeadToDeal(context.Background(),
		lead.ID, models.LeadConversionOptions{}, testUser(auth.DefaultPermissions))

	assert.False(t, result.Success)
	mockRepo.AssertNotCalled(t, "CreateDeal", mock.Anything, mock.Anything)
	mockRepo.AssertNotCalled(t, "MarkLeadConverted", mock.Anything, mock.Anything, mock.Anything)
}

func TestConvertLeadToDeal_WarningsDoNotBlockConversion(t *testing.T) {
	lead := qualifiedLead()
	lead.LeadScore = 10 // low-score warning

	mockRepo := new(MockRepository)
	expectForwardHappyPath(mockRepo, lead)

	result := newService(mockRepo).ConvertLeadToDeal(context.Background(),
		lead.ID, models.LeadConversionOptions{}, testUser(auth.DefaultPermissions))

	assert.True(t, result.Success)
	// Low score means no heuristic match; plan falls back to initial step.
	assert.Equal(t, models.MappingDefault, result.TransitionPlan.MappingStrategy)
}

func TestConvertLeadToDeal_ActivityMigrationFailureDegrades(t *testing.T) {
	lead := qualifiedLead()

	mockRepo := new(MockRepository)
	mockRepo.On("GetLead", mock.Anything, lead.ID).Return(lead, nil)
	mockRepo.On("FindPersonByEmail", mock.Anything, *lead.ContactEmail).Return(nil, repository.ErrNotFound)
	mockRepo.On("CreatePerson", mock.Anything, mock.Anything).Return(nil)
	mockRepo.On("FindOrganizationByName", mock.Anything, *lead.CompanyName).Return(nil, repository.ErrNotFound)
	mockRepo.On("CreateOrganization", mock.Anything, mock.Anything).Return(nil)
	mockRepo.On("LinkPersonToOrganization", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	mockRepo.On("GetProjectTypeByName", mock.Anything, "Sales Deal").Return(dealProjectType(), nil)
	mockRepo.On("ListWorkflowSteps", mock.Anything, "wf-deal").Return(dealWorkflowSteps(), nil)
	mockRepo.On("CreateDeal", mock.Anything, mock.Anything).Return(nil)
	mockRepo.On("CreateWFMProject", mock.Anything, mock.Anything).Return(nil)
	mockRepo.On("UpdateDealWFMProject", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	mockRepo.On("ReassignLeadActivities", mock.Anything, lead.ID, mock.Anything, mock.Anything).
		Return(0, errors.New("activities table locked"))
	mockRepo.On("MarkLeadConverted", mock.Anything, lead.ID, mock.Anything).Return(nil)
	mockRepo.On("CreateConversionHistory", mock.Anything, mock.Anything).Return(nil)
	mockRepo.On("CreateActivity", mock.Anything, mock.Anything).Return(nil)

	result := newService(mockRepo).ConvertLeadToDeal(context.Background(),
		lead.ID, models.LeadConversionOptions{}, testUser(auth.DefaultPermissions))

	assert.True(t, result.Success)
	assert.NotEmpty(t, result.SideEffectFailures)
	assert.Contains(t, result.SideEffectFailures[0], "activity migration failed")
}

func TestConvertLeadToDeal_HistoryFailureIsFatal(t *testing.T) {
	lead := qualifiedLead()

	mockRepo := new(MockRepository)
	mockRepo.On("GetLead", mock.Anything, lead.ID).Return(lead, nil)
	mockRepo.On("FindPersonByEmail", mock.Anything, *lead.ContactEmail).Return(nil, repository.ErrNotFound)
	mockRepo.On("CreatePerson", mock.Anything, mock.Anything).Return(nil)
	mockRepo.On("FindOrganizationByName", mock.Anything, *lead.CompanyName).Return(nil, repository.ErrNotFound)
	mockRepo.On("CreateOrganization", mock.Anything, mock.Anything).Return(nil)
	mockRepo.On("LinkPersonToOrganization", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	mockRepo.On("GetProjectTypeByName", mock.Anything, "Sales Deal").Return(dealProjectType(), nil)
	mockRepo.On("ListWorkflowSteps", mock.Anything, "wf-deal").Return(dealWorkflowSteps(), nil)
	mockRepo.On("CreateDeal", mock.Anything, mock.Anything).Return(nil)
	mockRepo.On("CreateWFMProject", mock.Anything, mock.Anything).Return(nil)
	mockRepo.On("UpdateDealWFMProject", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	mockRepo.On("ReassignLeadActivities", mock.Anything, lead.ID, mock.Anything, mock.Anything).Return(0, nil)
	mockRepo.On("MarkLeadConverted", mock.Anything, lead.ID, mock.Anything).Return(nil)
	mockRepo.On("CreateConversionHistory", mock.Anything, mock.Anything).Return(errors.New("history insert failed"))

	result := newService(mockRepo).ConvertLeadToDeal(context.Background(),
		lead.ID, models.LeadConversionOptions{}, testUser(auth.DefaultPermissions))

	assert.False(t, result.Success)
	assert.Contains(t, result.Errors[0], "recording conversion history failed")
}

func TestConvertLeadToDeal_OptionsOverrideDealFields(t *testing.T) {
	lead := qualifiedLead()

	var created *models.Deal
	mockRepo := new(MockRepository)
	mockRepo.On("GetLead", mock.Anything, lead.ID).Return(lead, nil)
	mockRepo.On("FindPersonByEmail", mock.Anything, *lead.ContactEmail).Return(nil, repository.ErrNotFound)
	mockRepo.On("CreatePerson", mock.Anything, mock.Anything).Return(nil)
	mockRepo.On("FindOrganizationByName", mock.Anything, *lead.CompanyName).Return(nil, repository.ErrNotFound)
	mockRepo.On("CreateOrganization", mock.Anything, mock.Anything).Return(nil)
	mockRepo.On("LinkPersonToOrganization", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	mockRepo.On("GetProjectTypeByName", mock.Anything, "Sales Deal").Return(dealProjectType(), nil)
	mockRepo.On("ListWorkflowSteps", mock.Anything, "wf-deal").Return(dealWorkflowSteps(), nil)
	mockRepo.On("CreateDeal", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		created = args.Get(1).(*models.Deal)
	}).Return(nil)
	mockRepo.On("CreateWFMProject", mock.Anything, mock.Anything).Return(nil)
	mockRepo.On("UpdateDealWFMProject", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	mockRepo.On("MarkLeadConverted", mock.Anything, lead.ID, mock.Anything).Return(nil)
	mockRepo.On("CreateConversionHistory", mock.Anything, mock.Anything).Return(nil)

	preserve := false
	createActivity := false
	opts := models.LeadConversionOptions{
		DealName:                 strPtr("Renamed Deal"),
		Amount:                   f64Ptr(99000),
		PreserveActivities:       &preserve,
		CreateConversionActivity: &createActivity,
	}

	result := newService(mockRepo).ConvertLeadToDeal(context.Background(),
		lead.ID, opts, testUser(auth.DefaultPermissions))

	assert.True(t, result.Success)
	assert.Equal(t, "Renamed Deal", created.Name)
	assert.Equal(t, 99000.0, *created.Amount)
	mockRepo.AssertNotCalled(t, "ReassignLeadActivities", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	mockRepo.AssertNotCalled(t, "CreateActivity", mock.Anything, mock.Anything)
}

func leadWorkflowStepsForBackward() []*models.WorkflowStep {
	qualified := models.StepRoleQualified
	return []*models.WorkflowStep{
		{ID: "step-new-lead", WorkflowID: "wf-lead", StatusName: "New Lead", StepOrder: 1, IsInitialStep: true},
		{ID: "step-lead-qualified", WorkflowID: "wf-lead", StatusName: "Qualified Lead", StepOrder: 2,
			Metadata: models.StepMetadata{Role: &qualified}},
	}
}

func expectBackwardHappyPath(mockRepo *MockRepository, deal *models.Deal) {
	wfLead := "wf-lead"

	// validation
	mockRepo.On("GetDeal", mock.Anything, deal.ID).Return(deal, nil)
	mockRepo.On("GetWFMProject", mock.Anything, "proj-deal").Return(&models.WFMProject{
		ID: "proj-deal", WorkflowID: "wf-deal", CurrentStepID: strPtr("step-negotiation"),
	}, nil)
	mockRepo.On("GetWorkflowStep", mock.Anything, "step-negotiation").Return(
		makeStep("step-negotiation", "Negotiation", 4, nil, false), nil)
	mockRepo.On("GetLeadByConvertedDealID", mock.Anything, deal.ID).Return(nil, repository.ErrNotFound)

	// planning
	mockRepo.On("ListWorkflowSteps", mock.Anything, "wf-deal").Return(dealWorkflowSteps(), nil)
	mockRepo.On("GetProjectTypeByName", mock.Anything, "Lead Qualification").Return(&models.ProjectType{
		ID: "pt-lead", Name: "Lead Qualification", DefaultWorkflowID: &wfLead,
	}, nil)
	mockRepo.On("ListWorkflowSteps", mock.Anything, "wf-lead").Return(leadWorkflowStepsForBackward(), nil)
	mockRepo.On("CountRecentDealActivities", mock.Anything, deal.ID, mock.Anything).Return(0, nil)

	// contact refresh
	mockRepo.On("GetPerson", mock.Anything, "person-1").Return(&models.Person{
		ID: "person-1", FirstName: "Jane", LastName: "Smith", Email: strPtr("jane@acme.test"),
	}, nil)
	mockRepo.On("GetOrganization", mock.Anything, "org-1").Return(&models.Organization{
		ID: "org-1", Name: "Acme Corp",
	}, nil)

	// execution
	mockRepo.On("CreateLead", mock.Anything, mock.Anything).Return(nil)
	mockRepo.On("CreateWFMProject", mock.Anything, mock.Anything).Return(nil)
	mockRepo.On("UpdateLeadWFMProject", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	// parking the deal
	mockRepo.On("FindStepByStatusName", mock.Anything, "wf-deal", "Converted to Lead").Return(
		&models.WorkflowStep{ID: "step-converted-to-lead", WorkflowID: "wf-deal", StatusName: "Converted to Lead"}, nil)
	mockRepo.On("UpdateWFMProjectStep", mock.Anything, "proj-deal", "step-converted-to-lead").Return(nil)

	mockRepo.On("MarkDealConverted", mock.Anything, deal.ID, mock.Anything, mock.Anything).Return(nil)
	mockRepo.On("CreateConversionHistory", mock.Anything, mock.Anything).Return(nil)
}

func TestConvertDealToLead_HappyPath(t *testing.T) {
	deal := agedDeal()
	deal.WFMProjectID = strPtr("proj-deal")
	deal.PersonID = strPtr("person-1")
	deal.OrganizationID = strPtr("org-1")

	var created *models.Lead
	mockRepo := new(MockRepository)
	expectBackwardHappyPath(mockRepo, deal)
	for _, call := range mockRepo.ExpectedCalls {
		if call.Method == "CreateLead" {
			call.Run(func(args mock.Arguments) {
				created = args.Get(1).(*models.Lead)
			})
		}
	}

	result := newService(mockRepo).ConvertDealToLead(context.Background(),
		deal.ID, models.DealToLeadOptions{Reason: strPtr("lost budget")}, testUser(auth.DefaultPermissions))

	assert.True(t, result.Success)
	assert.NotNil(t, result.LeadID)
	assert.True(t, result.DealStatusUpdated)
	assert.NotEmpty(t, result.ConversionID)

	// The new lead points back at its origin deal and carries refreshed
	// contact detail.
	assert.Equal(t, deal.ID, *created.OriginalDealID)
	assert.Equal(t, "Jane Smith", *created.ContactName)
	assert.Equal(t, "jane@acme.test", *created.ContactEmail)
	assert.Equal(t, "Acme Corp", *created.CompanyName)
	assert.Equal(t, 0, created.LeadScore)
}

func TestConvertDealToLead_TerminalDealIsBlocked(t *testing.T) {
	deal := agedDeal()
	deal.WFMProjectID = strPtr("proj-deal")

	won := models.StepRoleWon
	mockRepo := new(MockRepository)
	mockRepo.On("GetDeal", mock.Anything, deal.ID).Return(deal, nil)
	mockRepo.On("GetWFMProject", mock.Anything, "proj-deal").Return(&models.WFMProject{
		ID: "proj-deal", WorkflowID: "wf-deal", CurrentStepID: strPtr("step-won"),
	}, nil)
	mockRepo.On("GetWorkflowStep", mock.Anything, "step-won").Return(&models.WorkflowStep{
		ID: "step-won", StatusName: "Closed Won", Metadata: models.StepMetadata{Role: &won},
	}, nil)
	mockRepo.On("GetLeadByConvertedDealID", mock.Anything, deal.ID).Return(nil, repository.ErrNotFound)

	result := newService(mockRepo).ConvertDealToLead(context.Background(),
		deal.ID, models.DealToLeadOptions{}, testUser(auth.DefaultPermissions))

	assert.False(t, result.Success)
	mockRepo.AssertNotCalled(t, "CreateLead", mock.Anything, mock.Anything)
}

func TestConvertDealToLead_FallsBackToAvailableProjectType(t *testing.T) {
	deal := agedDeal()

	wfLead := "wf-lead"
	fallback := &models.ProjectType{ID: "pt-other", Name: "Generic Pipeline", DefaultWorkflowID: &wfLead}

	mockRepo := new(MockRepository)
	mockRepo.On("GetDeal", mock.Anything, deal.ID).Return(deal, nil)
	mockRepo.On("GetLeadByConvertedDealID", mock.Anything, deal.ID).Return(nil, repository.ErrNotFound)
	mockRepo.On("GetProjectTypeByName", mock.Anything, "Lead Qualification").Return(nil, repository.ErrNotFound)
	mockRepo.On("ListProjectTypes", mock.Anything).Return([]*models.ProjectType{fallback}, nil)
	mockRepo.On("GetProjectType", mock.Anything, "pt-other").Return(fallback, nil)
	mockRepo.On("ListWorkflowSteps", mock.Anything, "wf-lead").Return(leadWorkflowStepsForBackward(), nil)
	mockRepo.On("CountRecentDealActivities", mock.Anything, deal.ID, mock.Anything).Return(0, nil)
	mockRepo.On("CreateLead", mock.Anything, mock.Anything).Return(nil)
	mockRepo.On("CreateWFMProject", mock.Anything, mock.Anything).Return(nil)
	mockRepo.On("UpdateLeadWFMProject", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	mockRepo.On("MarkDealConverted", mock.Anything, deal.ID, mock.Anything, mock.Anything).Return(nil)
	mockRepo.On("CreateConversionHistory", mock.Anything, mock.Anything).Return(nil)

	result := newService(mockRepo).ConvertDealToLead(context.Background(),
		deal.ID, models.DealToLeadOptions{}, testUser(auth.DefaultPermissions))

	assert.True(t, result.Success)
	assert.NotEmpty(t, result.SideEffectFailures)
	assert.Contains(t, result.SideEffectFailures[0], "Generic Pipeline")
	assert.Equal(t, "pt-other", result.TransitionPlan.TargetProjectTypeID)
}

func TestConvertDealToLead_MissingConvertedStatusDegrades(t *testing.T) {
	deal := agedDeal()
	deal.WFMProjectID = strPtr("proj-deal")

	wfLead := "wf-lead"
	mockRepo := new(MockRepository)
	mockRepo.On("GetDeal", mock.Anything, deal.ID).Return(deal, nil)
	mockRepo.On("GetWFMProject", mock.Anything, "proj-deal").Return(&models.WFMProject{
		ID: "proj-deal", WorkflowID: "wf-deal", CurrentStepID: strPtr("step-negotiation"),
	}, nil)
	mockRepo.On("GetWorkflowStep", mock.Anything, "step-negotiation").Return(
		makeStep("step-negotiation", "Negotiation", 4, nil, false), nil)
	mockRepo.On("GetLeadByConvertedDealID", mock.Anything, deal.ID).Return(nil, repository.ErrNotFound)
	mockRepo.On("ListWorkflowSteps", mock.Anything, "wf-deal").Return(dealWorkflowSteps(), nil)
	mockRepo.On("GetProjectTypeByName", mock.Anything, "Lead Qualification").Return(&models.ProjectType{
		ID: "pt-lead", Name: "Lead Qualification", DefaultWorkflowID: &wfLead,
	}, nil)
	mockRepo.On("ListWorkflowSteps", mock.Anything, "wf-lead").Return(leadWorkflowStepsForBackward(), nil)
	mockRepo.On("CountRecentDealActivities", mock.Anything, deal.ID, mock.Anything).Return(0, nil)
	mockRepo.On("CreateLead", mock.Anything, mock.Anything).Return(nil)
	mockRepo.On("CreateWFMProject", mock.Anything, mock.Anything).Return(nil)
	mockRepo.On("UpdateLeadWFMProject", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	mockRepo.On("FindStepByStatusName", mock.Anything, "wf-deal", "Converted to Lead").
		Return(nil, repository.ErrNotFound)
	mockRepo.On("MarkDealConverted", mock.Anything, deal.ID, mock.Anything, mock.Anything).Return(nil)
	mockRepo.On("CreateConversionHistory", mock.Anything, mock.Anything).Return(nil)

	result := newService(mockRepo).ConvertDealToLead(context.Background(),
		deal.ID, models.DealToLeadOptions{}, testUser(auth.DefaultPermissions))

	assert.True(t, result.Success)
	assert.False(t, result.DealStatusUpdated)
	assert.NotEmpty(t, result.SideEffectFailures)
}

func TestBulkConvertLeads_FailuresAreIsolated(t *testing.T) {
	good1 := qualifiedLead()
	good1.ID = "lead-a"
	good2 := qualifiedLead()
	good2.ID = "lead-b"

	mockRepo := new(MockRepository)
	expectForwardHappyPath(mockRepo, good1)
	expectForwardHappyPath(mockRepo, good2)
	mockRepo.On("GetLead", mock.Anything, "lead-missing").Return(nil, repository.ErrNotFound)

	result := newService(mockRepo).BulkConvertLeads(context.Background(),
		[]string{"lead-a", "lead-missing", "lead-b"},
		models.LeadConversionOptions{}, nil, testUser(auth.DefaultPermissions))

	assert.Equal(t, 3, result.Summary.TotalProcessed)
	assert.Equal(t, 2, result.Summary.SuccessCount)
	assert.Equal(t, 1, result.Summary.ErrorCount)
	assert.Len(t, result.Results, 3)

	assert.True(t, result.Results[0].Success)
	assert.False(t, result.Results[1].Success)
	assert.NotNil(t, result.Results[1].Error)
	assert.True(t, result.Results[2].Success)
}

func TestConversionHistory_DegradesToEmptySlice(t *testing.T) {
	mockRepo := new(MockRepository)
	mockRepo.On("ListConversionHistory", mock.Anything, models.EntityTypeLead, "lead-1").
		Return(nil, errors.New("query failed"))

	entries := newService(mockRepo).ConversionHistory(context.Background(), models.EntityTypeLead, "lead-1")

	assert.NotNil(t, entries)
	assert.Empty(t, entries)
}
