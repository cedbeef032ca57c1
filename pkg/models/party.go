package models

import (
	"time"
)

// Person represents a contact that may be linked to deals and organizations
type Person struct {
	ID             string  `json:"id" db:"id"`
	FirstName      string  `json:"first_name" db:"first_name"`
	LastName       string  `json:"last_name" db:"last_name"`
	Email          *string `json:"email,omitempty" db:"email"`
	Phone          *string `json:"phone,omitempty" db:"phone"`
	OrganizationID *string `json:"organization_id,omitempty" db:"organization_id"`
	Notes          *string `json:"notes,omitempty" db:"notes"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// FullName returns the display name for the person.
func (p *Person) FullName() string {
	if p.LastName == "" {
		return p.FirstName
	}
	return p.FirstName + " " + p.LastName
}

// Organization represents a company record
type Organization struct {
	ID      string  `json:"id" db:"id"`
	Name    string  `json:"name" db:"name"`
	Address *string `json:"address,omitempty" db:"address"`
	Notes   *string `json:"notes,omitempty" db:"notes"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// ActivityType represents the kind of activity
type ActivityType string

const (
	ActivityTypeTask    ActivityType = "task"
	ActivityTypeCall    ActivityType = "call"
	ActivityTypeMeeting ActivityType = "meeting"
	ActivityTypeEmail   ActivityType = "email"
	ActivityTypeSystem  ActivityType = "system"
)

// Activity represents a task or interaction attached to a lead or deal
type Activity struct {
	ID      string       `json:"id" db:"id"`
	Subject string       `json:"subject" db:"subject"`
	Type    ActivityType `json:"type" db:"type"`
	IsDone  bool         `json:"is_done" db:"is_done"`
	DueDate *time.Time   `json:"due_date,omitempty" db:"due_date"`

	LeadID   *string `json:"lead_id,omitempty" db:"lead_id"`
	DealID   *string `json:"deal_id,omitempty" db:"deal_id"`
	PersonID *string `json:"person_id,omitempty" db:"person_id"`

	Notes *string `json:"notes,omitempty" db:"notes"`

	CreatedByUserID  string  `json:"created_by_user_id" db:"created_by_user_id"`
	AssignedToUserID *string `json:"assigned_to_user_id,omitempty" db:"assigned_to_user_id"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
