package models

import (
	"time"
)

// Deal represents an in-pipeline sales opportunity
type Deal struct {
	ID                string     `json:"id" db:"id"`
	Name              string     `json:"name" db:"name"`
	Amount            *float64   `json:"amount,omitempty" db:"amount"`
	Currency          string     `json:"currency" db:"currency"`
	ExpectedCloseDate *time.Time `json:"expected_close_date,omitempty" db:"expected_close_date"`

	PersonID       *string `json:"person_id,omitempty" db:"person_id"`
	OrganizationID *string `json:"organization_id,omitempty" db:"organization_id"`

	CreatedByUserID  string   `json:"created_by_user_id" db:"created_by_user_id"`
	AssignedToUserID *string  `json:"assigned_to_user_id,omitempty" db:"assigned_to_user_id"`
	Probability      *float64 `json:"probability,omitempty" db:"probability"` // 0.0-1.0

	WFMProjectID *string `json:"wfm_project_id,omitempty" db:"wfm_project_id"`

	// Backward-conversion markers
	ConvertedToLeadID *string `json:"converted_to_lead_id,omitempty" db:"converted_to_lead_id"`
	ConversionReason  *string `json:"conversion_reason,omitempty" db:"conversion_reason"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// AmountValue returns the deal amount or zero when unset.
func (d *Deal) AmountValue() float64 {
	if d.Amount == nil {
		return 0
	}
	return *d.Amount
}

// Age returns how long ago the deal was created.
func (d *Deal) Age(now time.Time) time.Duration {
	return now.Sub(d.CreatedAt)
}
