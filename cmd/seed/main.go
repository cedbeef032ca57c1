package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/tomaskovarik271/pipecrm/internal/config"
	"github.com/tomaskovarik271/pipecrm/internal/logging"
	"github.com/tomaskovarik271/pipecrm/internal/repository"
	"github.com/tomaskovarik271/pipecrm/pkg/models"
)

// stepSpec describes one seeded workflow step.
type stepSpec struct {
	Status  string
	Role    *models.StepRole
	Outcome *models.OutcomeType
	Initial bool
	Final   bool
}

func role(r models.StepRole) *models.StepRole { return &r }

func outcome(o models.OutcomeType) *models.OutcomeType { return &o }

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "pipecrm-seed",
		Short: "Apply the schema and seed the default workflows and project types",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), configPath)
		},
	}
	rootCmd.Flags().StringVar(&configPath, "config", "", "Path to config file")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	logger := logging.NewLogger()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.DB.Host, cfg.DB.Port, cfg.DB.User, cfg.DB.Password, cfg.DB.Name, cfg.DB.SSLMode,
	)
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()

	repo := repository.NewPostgresRepository(pool, logger)

	if err := repo.Migrate(ctx); err != nil {
		return err
	}
	logger.Info("Schema applied")

	// Skip seeding when workflows already exist; running twice should be
	// harmless.
	existing, err := repo.ListWorkflows(ctx)
	if err != nil {
		return fmt.Errorf("list existing workflows: %w", err)
	}
	existingNames := make(map[string]bool)
	for _, w := range existing {
		existingNames[w.Name] = true
	}

	return repo.WithTx(ctx, func(tx repository.Repository) error {
		leadWorkflowID, err := seedWorkflow(ctx, tx, logger, existingNames,
			"Lead Qualification Process",
			"Qualification pipeline for inbound leads",
			[]stepSpec{
				{Status: "New Lead", Initial: true},
				{Status: "Initial Contact"},
				{Status: "Qualified Lead", Role: role(models.StepRoleQualified)},
				{Status: "Demo Scheduled", Role: role(models.StepRoleScoping)},
				{Status: "Hot Lead", Role: role(models.StepRoleHot)},
				{Status: "Converted", Role: role(models.StepRoleConvertedMarker), Outcome: outcome(models.OutcomeConverted), Final: true},
				{Status: "Disqualified", Role: role(models.StepRoleLost), Outcome: outcome(models.OutcomeLost), Final: true},
			})
		if err != nil {
			return err
		}

		dealWorkflowID, err := seedWorkflow(ctx, tx, logger, existingNames,
			"Standard Sales Process",
			"Default pipeline for sales deals",
			[]stepSpec{
				{Status: "Qualified", Role: role(models.StepRoleQualified), Initial: true},
				{Status: "Opportunity Scoping", Role: role(models.StepRoleScoping)},
				{Status: "Proposal Development", Role: role(models.StepRoleProposal)},
				{Status: "Negotiation"},
				{Status: "Closed Won", Role: role(models.StepRoleWon), Outcome: outcome(models.OutcomeWon), Final: true},
				{Status: "Closed Lost", Role: role(models.StepRoleLost), Outcome: outcome(models.OutcomeLost), Final: true},
				{Status: "Converted to Lead", Outcome: outcome(models.OutcomeConverted), Final: true},
			})
		if err != nil {
			return err
		}

		if err := seedProjectType(ctx, tx, logger, cfg.Conversion.LeadProjectTypeName,
			"Workflow container for lead qualification", leadWorkflowID); err != nil {
			return err
		}
		if err := seedProjectType(ctx, tx, logger, cfg.Conversion.DealProjectTypeName,
			"Workflow container for sales deals", dealWorkflowID); err != nil {
			return err
		}

		logger.Info("Seeding complete")
		return nil
	})
}

// seedWorkflow creates the workflow, its statuses and its steps. Returns the
// workflow id, or empty when the workflow already existed.
func seedWorkflow(ctx context.Context, tx repository.Repository, logger *logging.Logger, existingNames map[string]bool, name, description string, steps []stepSpec) (string, error) {
	if existingNames[name] {
		logger.Info("Skipping existing workflow", "name", name)
		return "", nil
	}

	wf := &models.Workflow{Name: name, Description: &description}
	if err := tx.CreateWorkflow(ctx, wf); err != nil {
		return "", fmt.Errorf("create workflow %q: %w", name, err)
	}

	for i, spec := range steps {
		status := &models.WFMStatus{Name: spec.Status}
		if err := tx.CreateStatus(ctx, status); err != nil {
			return "", fmt.Errorf("create status %q: %w", spec.Status, err)
		}

		step := &models.WorkflowStep{
			WorkflowID:    wf.ID,
			StatusID:      status.ID,
			StepOrder:     i + 1,
			IsInitialStep: spec.Initial,
			IsFinalStep:   spec.Final,
			Metadata: models.StepMetadata{
				Role:        spec.Role,
				OutcomeType: spec.Outcome,
			},
		}
		if err := tx.CreateWorkflowStep(ctx, step); err != nil {
			return "", fmt.Errorf("create step %q: %w", spec.Status, err)
		}
	}

	logger.Info("Seeded workflow", "name", name, "id", wf.ID, "steps", len(steps))
	return wf.ID, nil
}

func seedProjectType(ctx context.Context, tx repository.Repository, logger *logging.Logger, name, description, workflowID string) error {
	if _, err := tx.GetProjectTypeByName(ctx, name); err == nil {
		logger.Info("Skipping existing project type", "name", name)
		return nil
	}

	pt := &models.ProjectType{Name: name, Description: &description}
	if workflowID != "" {
		pt.DefaultWorkflowID = &workflowID
	}
	if err := tx.CreateProjectType(ctx, pt); err != nil {
		return fmt.Errorf("create project type %q: %w", name, err)
	}

	logger.Info("Seeded project type", "name", name, "id", pt.ID)
	return nil
}
