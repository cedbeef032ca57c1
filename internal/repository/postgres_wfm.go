package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/tomaskovarik271/pipecrm/pkg/models"
)

// CreateStatus inserts a reusable workflow status label.
func (r *PostgresRepository) CreateStatus(ctx context.Context, status *models.WFMStatus) error {
	if status.ID == "" {
		status.ID = uuid.New().String()
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO wfm_statuses (id, name, color) VALUES ($1,$2,$3)`,
		status.ID, status.Name, status.Color)
	if err != nil {
		return fmt.Errorf("insert status: %w", err)
	}
	return nil
}

// CreateWorkflow inserts a workflow definition.
func (r *PostgresRepository) CreateWorkflow(ctx context.Context, workflow *models.Workflow) error {
	if workflow.ID == "" {
		workflow.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	workflow.CreatedAt = now
	workflow.UpdatedAt = now

	_, err := r.db.Exec(ctx,
		`INSERT INTO workflows (id, name, description, created_at, updated_at) VALUES ($1,$2,$3,$4,$5)`,
		workflow.ID, workflow.Name, workflow.Description, workflow.CreatedAt, workflow.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert workflow: %w", err)
	}
	return nil
}

// CreateWorkflowStep inserts a step, serializing its metadata to JSONB.
func (r *PostgresRepository) CreateWorkflowStep(ctx context.Context, step *models.WorkflowStep) error {
	if step.ID == "" {
		step.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	step.CreatedAt = now
	step.UpdatedAt = now

	md, err := json.Marshal(step.Metadata)
	if err != nil {
		return fmt.Errorf("marshal step metadata: %w", err)
	}

	_, err = r.db.Exec(ctx, `INSERT INTO workflow_steps
		(id, workflow_id, status_id, step_order, is_initial_step, is_final_step, metadata, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		step.ID, step.WorkflowID, step.StatusID, step.StepOrder,
		step.IsInitialStep, step.IsFinalStep, md, step.CreatedAt, step.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert workflow step: %w", err)
	}
	return nil
}

// CreateProjectType inserts a project type.
func (r *PostgresRepository) CreateProjectType(ctx context.Context, pt *models.ProjectType) error {
	if pt.ID == "" {
		pt.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	pt.CreatedAt = now
	pt.UpdatedAt = now

	_, err := r.db.Exec(ctx, `INSERT INTO project_types
		(id, name, description, default_workflow_id, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		pt.ID, pt.Name, pt.Description, pt.DefaultWorkflowID, pt.CreatedAt, pt.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert project type: %w", err)
	}
	return nil
}

// GetWorkflow retrieves a workflow by id.
func (r *PostgresRepository) GetWorkflow(ctx context.Context, id string) (*models.Workflow, error) {
	var w models.Workflow
	err := r.db.QueryRow(ctx,
		`SELECT id, name, description, created_at, updated_at FROM workflows WHERE id = $1`, id).
		Scan(&w.ID, &w.Name, &w.Description, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return nil, wrapNotFound(err)
	}
	return &w, nil
}

// ListWorkflows returns all workflow definitions.
func (r *PostgresRepository) ListWorkflows(ctx context.Context) ([]*models.Workflow, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, name, description, created_at, updated_at FROM workflows ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list workflows: %w", err)
	}
	defer rows.Close()

	var workflows []*models.Workflow
	for rows.Next() {
		var w models.Workflow
		if err := rows.Scan(&w.ID, &w.Name, &w.Description, &w.CreatedAt, &w.UpdatedAt); err != nil {
			return nil, err
		}
		workflows = append(workflows, &w)
	}
	return workflows, rows.Err()
}

const stepSelect = `SELECT s.id, s.workflow_id, s.status_id, st.name, s.step_order,
		s.is_initial_step, s.is_final_step, s.metadata, s.created_at, s.updated_at
	FROM workflow_steps s JOIN wfm_statuses st ON st.id = s.status_id`

func scanStep(row pgx.Row) (*models.WorkflowStep, error) {
	var s models.WorkflowStep
	var md []byte
	err := row.Scan(&s.ID, &s.WorkflowID, &s.StatusID, &s.StatusName, &s.StepOrder,
		&s.IsInitialStep, &s.IsFinalStep, &md, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, wrapNotFound(err)
	}
	s.Metadata = models.ParseStepMetadata(md)
	return &s, nil
}

// ListWorkflowSteps returns the workflow's steps ordered by step_order.
func (r *PostgresRepository) ListWorkflowSteps(ctx context.Context, workflowID string) ([]*models.WorkflowStep, error) {
	rows, err := r.db.Query(ctx, stepSelect+` WHERE s.workflow_id = $1 ORDER BY s.step_order`, workflowID)
	if err != nil {
		return nil, fmt.Errorf("list workflow steps: %w", err)
	}
	defer rows.Close()

	var steps []*models.WorkflowStep
	for rows.Next() {
		var s models.WorkflowStep
		var md []byte
		if err := rows.Scan(&s.ID, &s.WorkflowID, &s.StatusID, &s.StatusName, &s.StepOrder,
			&s.IsInitialStep, &s.IsFinalStep, &md, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		s.Metadata = models.ParseStepMetadata(md)
		steps = append(steps, &s)
	}
	return steps, rows.Err()
}

// GetWorkflowStep retrieves a single step with its status name.
func (r *PostgresRepository) GetWorkflowStep(ctx context.Context, id string) (*models.WorkflowStep, error) {
	return scanStep(r.db.QueryRow(ctx, stepSelect+` WHERE s.id = $1`, id))
}

// FindStepByStatusName finds the workflow's step carrying the given status
// display name.
func (r *PostgresRepository) FindStepByStatusName(ctx context.Context, workflowID, statusName string) (*models.WorkflowStep, error) {
	return scanStep(r.db.QueryRow(ctx,
		stepSelect+` WHERE s.workflow_id = $1 AND lower(st.name) = lower($2) LIMIT 1`,
		workflowID, statusName))
}

// GetProjectType retrieves a project type by id.
func (r *PostgresRepository) GetProjectType(ctx context.Context, id string) (*models.ProjectType, error) {
	var pt models.ProjectType
	err := r.db.QueryRow(ctx, `SELECT id, name, description, default_workflow_id, created_at, updated_at
		FROM project_types WHERE id = $1`, id).
		Scan(&pt.ID, &pt.Name, &pt.Description, &pt.DefaultWorkflowID, &pt.CreatedAt, &pt.UpdatedAt)
	if err != nil {
		return nil, wrapNotFound(err)
	}
	return &pt, nil
}

// GetProjectTypeByName retrieves a project type by its configured name.
func (r *PostgresRepository) GetProjectTypeByName(ctx context.Context, name string) (*models.ProjectType, error) {
	var pt models.ProjectType
	err := r.db.QueryRow(ctx, `SELECT id, name, description, default_workflow_id, created_at, updated_at
		FROM project_types WHERE lower(name) = lower($1)`, name).
		Scan(&pt.ID, &pt.Name, &pt.Description, &pt.DefaultWorkflowID, &pt.CreatedAt, &pt.UpdatedAt)
	if err != nil {
		return nil, wrapNotFound(err)
	}
	return &pt, nil
}

// ListProjectTypes returns all project types.
func (r *PostgresRepository) ListProjectTypes(ctx context.Context) ([]*models.ProjectType, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name, description, default_workflow_id, created_at, updated_at
		FROM project_types ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list project types: %w", err)
	}
	defer rows.Close()

	var types []*models.ProjectType
	for rows.Next() {
		var pt models.ProjectType
		if err := rows.Scan(&pt.ID, &pt.Name, &pt.Description, &pt.DefaultWorkflowID,
			&pt.CreatedAt, &pt.UpdatedAt); err != nil {
			return nil, err
		}
		types = append(types, &pt)
	}
	return types, rows.Err()
}

// CreateWFMProject inserts a live workflow project.
func (r *PostgresRepository) CreateWFMProject(ctx context.Context, project *models.WFMProject) error {
	if project.ID == "" {
		project.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	project.CreatedAt = now
	project.UpdatedAt = now

	_, err := r.db.Exec(ctx, `INSERT INTO wfm_projects
		(id, name, project_type_id, workflow_id, current_step_id, created_by_user_id, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		project.ID, project.Name, project.ProjectTypeID, project.WorkflowID,
		project.CurrentStepID, project.CreatedByUserID, project.CreatedAt, project.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert wfm project: %w", err)
	}
	return nil
}

// GetWFMProject retrieves a project by id.
func (r *PostgresRepository) GetWFMProject(ctx context.Context, id string) (*models.WFMProject, error) {
	var p models.WFMProject
	err := r.db.QueryRow(ctx, `SELECT id, name, project_type_id, workflow_id, current_step_id,
		created_by_user_id, created_at, updated_at FROM wfm_projects WHERE id = $1`, id).
		Scan(&p.ID, &p.Name, &p.ProjectTypeID, &p.WorkflowID, &p.CurrentStepID,
			&p.CreatedByUserID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, wrapNotFound(err)
	}
	return &p, nil
}

// UpdateWFMProjectStep moves the project to a new step. The step must belong
// to the project's workflow; the guard keeps current_step_id consistent.
func (r *PostgresRepository) UpdateWFMProjectStep(ctx context.Context, projectID, stepID string) error {
	tag, err := r.db.Exec(ctx, `UPDATE wfm_projects p SET current_step_id = $2, updated_at = now()
		WHERE p.id = $1
		  AND EXISTS (SELECT 1 FROM workflow_steps s WHERE s.id = $2 AND s.workflow_id = p.workflow_id)`,
		projectID, stepID)
	if err != nil {
		return fmt.Errorf("update wfm project step: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
