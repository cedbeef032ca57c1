// Package models defines the domain models for the PipeCRM conversion service
package models

import (
	"time"
)

// EntityType identifies which business object a conversion touches
type EntityType string

const (
	EntityTypeLead EntityType = "LEAD"
	EntityTypeDeal EntityType = "DEAL"
)

// LeadSource represents where a lead originated
type LeadSource string

const (
	LeadSourceWebsite  LeadSource = "website"
	LeadSourceReferral LeadSource = "referral"
	LeadSourceOutbound LeadSource = "outbound"
	LeadSourceEvent    LeadSource = "event"
	LeadSourceOther    LeadSource = "other"
)

// Lead represents a pre-sales prospect
type Lead struct {
	ID                 string     `json:"id" db:"id"`
	Name               string     `json:"name" db:"name"`
	ContactName        *string    `json:"contact_name,omitempty" db:"contact_name"`
	ContactEmail       *string    `json:"contact_email,omitempty" db:"contact_email"`
	ContactPhone       *string    `json:"contact_phone,omitempty" db:"contact_phone"`
	CompanyName        *string    `json:"company_name,omitempty" db:"company_name"`
	EstimatedValue     *float64   `json:"estimated_value,omitempty" db:"estimated_value"`
	Currency           string     `json:"currency" db:"currency"`
	EstimatedCloseDate *time.Time `json:"estimated_close_date,omitempty" db:"estimated_close_date"`

	// Scoring
	LeadScore        int    `json:"lead_score" db:"lead_score"` // 0-100
	LeadScoreFactors []byte `json:"lead_score_factors,omitempty" db:"lead_score_factors"` // JSONB

	Source      *LeadSource `json:"source,omitempty" db:"source"`
	Description *string     `json:"description,omitempty" db:"description"`

	// Assignment
	CreatedByUserID  string  `json:"created_by_user_id" db:"created_by_user_id"`
	AssignedToUserID *string `json:"assigned_to_user_id,omitempty" db:"assigned_to_user_id"`

	// Workflow position
	WFMProjectID *string `json:"wfm_project_id,omitempty" db:"wfm_project_id"`

	// Forward-conversion markers
	ConvertedAt                *time.Time `json:"converted_at,omitempty" db:"converted_at"`
	ConvertedToDealID          *string    `json:"converted_to_deal_id,omitempty" db:"converted_to_deal_id"`
	ConvertedToPersonID        *string    `json:"converted_to_person_id,omitempty" db:"converted_to_person_id"`
	ConvertedToOrganizationID  *string    `json:"converted_to_organization_id,omitempty" db:"converted_to_organization_id"`
	ConvertedByUserID          *string    `json:"converted_by_user_id,omitempty" db:"converted_by_user_id"`

	// Set when this lead was itself produced by a backward (deal->lead) conversion
	OriginalDealID *string `json:"original_deal_id,omitempty" db:"original_deal_id"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// IsConverted reports whether the lead has already been converted to a deal.
// Both markers must be set; a half-written marker does not count.
func (l *Lead) IsConverted() bool {
	return l.ConvertedAt != nil && l.ConvertedToDealID != nil
}

// HasContact reports whether the lead carries any usable contact detail.
func (l *Lead) HasContact() bool {
	return (l.ContactName != nil && *l.ContactName != "") ||
		(l.ContactEmail != nil && *l.ContactEmail != "")
}

// HasValue reports whether the lead carries a positive estimated value.
func (l *Lead) HasValue() bool {
	return l.EstimatedValue != nil && *l.EstimatedValue > 0
}

// ConversionMarkers bundles the fields written when a lead is claimed by a
// forward conversion.
type ConversionMarkers struct {
	ConvertedAt               time.Time
	ConvertedToDealID         string
	ConvertedToPersonID       *string
	ConvertedToOrganizationID *string
	ConvertedByUserID         string
}
