package repository

import (
	"context"
	"fmt"
)

// schemaDDL creates every table the conversion core touches. The partial
// unique index on converted_to_deal_id enforces at most one deal per lead at
// the data layer, backing up the compare-and-swap claim in MarkLeadConverted.
const schemaDDL = `
CREATE TABLE IF NOT EXISTS wfm_statuses (
	id UUID PRIMARY KEY,
	name TEXT NOT NULL UNIQUE,
	color TEXT
);

CREATE TABLE IF NOT EXISTS workflows (
	id UUID PRIMARY KEY,
	name TEXT NOT NULL,
	description TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS workflow_steps (
	id UUID PRIMARY KEY,
	workflow_id UUID NOT NULL REFERENCES workflows(id),
	status_id UUID NOT NULL REFERENCES wfm_statuses(id),
	step_order INT NOT NULL,
	is_initial_step BOOLEAN NOT NULL DEFAULT false,
	is_final_step BOOLEAN NOT NULL DEFAULT false,
	metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (workflow_id, step_order)
);

CREATE TABLE IF NOT EXISTS project_types (
	id UUID PRIMARY KEY,
	name TEXT NOT NULL UNIQUE,
	description TEXT,
	default_workflow_id UUID REFERENCES workflows(id),
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS wfm_projects (
	id UUID PRIMARY KEY,
	name TEXT NOT NULL,
	project_type_id UUID NOT NULL REFERENCES project_types(id),
	workflow_id UUID NOT NULL REFERENCES workflows(id),
	current_step_id UUID REFERENCES workflow_steps(id),
	created_by_user_id TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS organizations (
	id UUID PRIMARY KEY,
	name TEXT NOT NULL,
	address TEXT,
	notes TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS people (
	id UUID PRIMARY KEY,
	first_name TEXT NOT NULL,
	last_name TEXT NOT NULL DEFAULT '',
	email TEXT,
	phone TEXT,
	organization_id UUID REFERENCES organizations(id),
	notes TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS deals (
	id UUID PRIMARY KEY,
	name TEXT NOT NULL,
	amount NUMERIC,
	currency TEXT NOT NULL DEFAULT 'USD',
	expected_close_date TIMESTAMPTZ,
	person_id UUID REFERENCES people(id),
	organization_id UUID REFERENCES organizations(id),
	created_by_user_id TEXT NOT NULL,
	assigned_to_user_id TEXT,
	probability DOUBLE PRECISION,
	wfm_project_id UUID REFERENCES wfm_projects(id),
	converted_to_lead_id UUID,
	conversion_reason TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS leads (
	id UUID PRIMARY KEY,
	name TEXT NOT NULL,
	contact_name TEXT,
	contact_email TEXT,
	contact_phone TEXT,
	company_name TEXT,
	estimated_value NUMERIC,
	currency TEXT NOT NULL DEFAULT 'USD',
	estimated_close_date TIMESTAMPTZ,
	lead_score INT NOT NULL DEFAULT 0,
	lead_score_factors JSONB,
	source TEXT,
	description TEXT,
	created_by_user_id TEXT NOT NULL,
	assigned_to_user_id TEXT,
	wfm_project_id UUID REFERENCES wfm_projects(id),
	converted_at TIMESTAMPTZ,
	converted_to_deal_id UUID REFERENCES deals(id),
	converted_to_person_id UUID REFERENCES people(id),
	converted_to_organization_id UUID REFERENCES organizations(id),
	converted_by_user_id TEXT,
	original_deal_id UUID REFERENCES deals(id),
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS leads_converted_to_deal_id_key
	ON leads (converted_to_deal_id) WHERE converted_to_deal_id IS NOT NULL;

CREATE TABLE IF NOT EXISTS activities (
	id UUID PRIMARY KEY,
	subject TEXT NOT NULL,
	type TEXT NOT NULL,
	is_done BOOLEAN NOT NULL DEFAULT false,
	due_date TIMESTAMPTZ,
	lead_id UUID REFERENCES leads(id),
	deal_id UUID REFERENCES deals(id),
	person_id UUID REFERENCES people(id),
	notes TEXT,
	created_by_user_id TEXT NOT NULL,
	assigned_to_user_id TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS conversion_history (
	id UUID PRIMARY KEY,
	conversion_type TEXT NOT NULL,
	source_entity_type TEXT NOT NULL,
	source_entity_id UUID NOT NULL,
	target_entity_type TEXT NOT NULL,
	target_entity_id UUID NOT NULL,
	conversion_reason TEXT,
	conversion_data JSONB,
	wfm_transition_plan JSONB,
	converted_by_user_id TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS conversion_history_source_idx
	ON conversion_history (source_entity_type, source_entity_id);
CREATE INDEX IF NOT EXISTS conversion_history_target_idx
	ON conversion_history (target_entity_type, target_entity_id);
`

// Migrate applies the schema. Idempotent; safe to run at startup or from the
// seed command.
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, schemaDDL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
