package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tomaskovarik271/pipecrm/pkg/models"
)

const personColumns = `id, first_name, last_name, email, phone, organization_id, notes, created_at, updated_at`

func scanPerson(row interface{ Scan(...any) error }) (*models.Person, error) {
	var p models.Person
	err := row.Scan(&p.ID, &p.FirstName, &p.LastName, &p.Email, &p.Phone,
		&p.OrganizationID, &p.Notes, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, wrapNotFound(err)
	}
	return &p, nil
}

// CreatePerson inserts a new person.
func (r *PostgresRepository) CreatePerson(ctx context.Context, person *models.Person) error {
	if person.ID == "" {
		person.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	person.CreatedAt = now
	person.UpdatedAt = now

	_, err := r.db.Exec(ctx, `INSERT INTO people (`+personColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		person.ID, person.FirstName, person.LastName, person.Email, person.Phone,
		person.OrganizationID, person.Notes, person.CreatedAt, person.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert person: %w", err)
	}
	return nil
}

// GetPerson retrieves a person by id.
func (r *PostgresRepository) GetPerson(ctx context.Context, id string) (*models.Person, error) {
	return scanPerson(r.db.QueryRow(ctx, `SELECT `+personColumns+` FROM people WHERE id = $1`, id))
}

// FindPersonByEmail finds a person by exact email match (case-insensitive).
func (r *PostgresRepository) FindPersonByEmail(ctx context.Context, email string) (*models.Person, error) {
	return scanPerson(r.db.QueryRow(ctx,
		`SELECT `+personColumns+` FROM people WHERE lower(email) = lower($1) LIMIT 1`, email))
}

// LinkPersonToOrganization sets the person's organization reference.
func (r *PostgresRepository) LinkPersonToOrganization(ctx context.Context, personID, organizationID string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE people SET organization_id = $2, updated_at = now() WHERE id = $1`,
		personID, organizationID)
	if err != nil {
		return fmt.Errorf("link person to organization: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const orgColumns = `id, name, address, notes, created_at, updated_at`

func scanOrganization(row interface{ Scan(...any) error }) (*models.Organization, error) {
	var o models.Organization
	err := row.Scan(&o.ID, &o.Name, &o.Address, &o.Notes, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, wrapNotFound(err)
	}
	return &o, nil
}

// CreateOrganization inserts a new organization.
func (r *PostgresRepository) CreateOrganization(ctx context.Context, org *models.Organization) error {
	if org.ID == "" {
		org.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	org.CreatedAt = now
	org.UpdatedAt = now

	_, err := r.db.Exec(ctx, `INSERT INTO organizations (`+orgColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		org.ID, org.Name, org.Address, org.Notes, org.CreatedAt, org.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert organization: %w", err)
	}
	return nil
}

// GetOrganization retrieves an organization by id.
func (r *PostgresRepository) GetOrganization(ctx context.Context, id string) (*models.Organization, error) {
	return scanOrganization(r.db.QueryRow(ctx,
		`SELECT `+orgColumns+` FROM organizations WHERE id = $1`, id))
}

// FindOrganizationByName finds an organization by exact name match
// (case-insensitive).
func (r *PostgresRepository) FindOrganizationByName(ctx context.Context, name string) (*models.Organization, error) {
	return scanOrganization(r.db.QueryRow(ctx,
		`SELECT `+orgColumns+` FROM organizations WHERE lower(name) = lower($1) LIMIT 1`, name))
}
