package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tomaskovarik271/pipecrm/pkg/models"
)

// ConvertLead converts a lead into a deal
// (POST /api/v1/leads/:id/convert)
func (s *Server) ConvertLead(c echo.Context) error {
	ctx := c.Request().Context()

	user, err := actingUser(c)
	if err != nil {
		return err
	}

	var opts models.LeadConversionOptions
	if err := c.Bind(&opts); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body: "+err.Error())
	}

	result := s.Converter.ConvertLeadToDeal(ctx, c.Param("id"), opts, user)
	if !result.Success {
		return c.JSON(http.StatusUnprocessableEntity, result)
	}
	return c.JSON(http.StatusOK, result)
}

// ConvertDealToLead converts a deal back into a lead
// (POST /api/v1/deals/:id/convert-to-lead)
func (s *Server) ConvertDealToLead(c echo.Context) error {
	ctx := c.Request().Context()

	user, err := actingUser(c)
	if err != nil {
		return err
	}

	var opts models.DealToLeadOptions
	if err := c.Bind(&opts); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body: "+err.Error())
	}

	result := s.Converter.ConvertDealToLead(ctx, c.Param("id"), opts, user)
	if !result.Success {
		return c.JSON(http.StatusUnprocessableEntity, result)
	}
	return c.JSON(http.StatusOK, result)
}

// BulkConvertRequest is the payload for the bulk endpoint.
type BulkConvertRequest struct {
	LeadIDs          []string                                `json:"lead_ids"`
	Defaults         models.LeadConversionOptions            `json:"defaults"`
	PerLeadOverrides map[string]models.LeadConversionOptions `json:"per_lead_overrides,omitempty"`
}

// BulkConvertLeads converts a batch of leads independently
// (POST /api/v1/leads/bulk-convert)
func (s *Server) BulkConvertLeads(c echo.Context) error {
	ctx := c.Request().Context()

	user, err := actingUser(c)
	if err != nil {
		return err
	}

	var req BulkConvertRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body: "+err.Error())
	}
	if len(req.LeadIDs) == 0 {
		return problem(c, http.StatusBadRequest, "Bad Request", "lead_ids must not be empty")
	}

	// The batch always returns 200: partial failure is per-item detail,
	// not a batch verdict.
	result := s.Converter.BulkConvertLeads(ctx, req.LeadIDs, req.Defaults, req.PerLeadOverrides, user)
	return c.JSON(http.StatusOK, result)
}

// ValidateConversionRequest is the payload for the validation endpoint.
type ValidateConversionRequest struct {
	SourceType string `json:"source_type"`
	SourceID   string `json:"source_id"`
	TargetType string `json:"target_type"`
}

// ValidateConversion runs the conversion pre-check
// (POST /api/v1/conversions/validate)
func (s *Server) ValidateConversion(c echo.Context) error {
	ctx := c.Request().Context()

	user, err := actingUser(c)
	if err != nil {
		return err
	}

	var req ValidateConversionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body: "+err.Error())
	}

	sourceType, ok := parseEntityType(req.SourceType)
	if !ok {
		return problem(c, http.StatusBadRequest, "Bad Request", "source_type must be LEAD or DEAL")
	}
	targetType, ok := parseEntityType(req.TargetType)
	if !ok {
		return problem(c, http.StatusBadRequest, "Bad Request", "target_type must be LEAD or DEAL")
	}

	result, err := s.Converter.ValidateConversion(ctx, sourceType, req.SourceID, targetType, user)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, result)
}

// ConversionHistory returns the audit trail for an entity
// (GET /api/v1/conversions/:entityType/:entityId/history)
func (s *Server) ConversionHistory(c echo.Context) error {
	ctx := c.Request().Context()

	entityType, ok := parseEntityType(c.Param("entityType"))
	if !ok {
		return problem(c, http.StatusBadRequest, "Bad Request", "entityType must be LEAD or DEAL")
	}

	entries := s.Converter.ConversionHistory(ctx, entityType, c.Param("entityId"))
	return c.JSON(http.StatusOK, entries)
}
