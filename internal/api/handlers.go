// Package api contains the HTTP handlers for the conversion service
package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/tomaskovarik271/pipecrm/internal/auth"
	"github.com/tomaskovarik271/pipecrm/internal/logging"
	"github.com/tomaskovarik271/pipecrm/internal/repository"
	"github.com/tomaskovarik271/pipecrm/internal/services"
	"github.com/tomaskovarik271/pipecrm/pkg/models"
)

// Server holds the dependencies for the API server.
type Server struct {
	Converter services.Converter
	Repo      repository.Repository
	Logger    *logging.Logger
}

// NewServer creates a new Server.
func NewServer(converter services.Converter, repo repository.Repository, logger *logging.Logger) *Server {
	return &Server{Converter: converter, Repo: repo, Logger: logger}
}

// RegisterRoutes mounts every API route on the given group.
func (s *Server) RegisterRoutes(g *echo.Group) {
	g.POST("/leads/:id/convert", s.ConvertLead)
	g.POST("/leads/bulk-convert", s.BulkConvertLeads)
	g.POST("/deals/:id/convert-to-lead", s.ConvertDealToLead)
	g.POST("/conversions/validate", s.ValidateConversion)
	g.GET("/conversions/:entityType/:entityId/history", s.ConversionHistory)
	g.GET("/workflows", s.ListWorkflows)
	g.GET("/workflows/:id/steps", s.ListWorkflowSteps)
	g.GET("/project-types", s.ListProjectTypes)
}

// HealthStatus represents the health check response
type HealthStatus struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Service   string    `json:"service"`
	Version   string    `json:"version"`
}

// HandleHealth returns basic health status, degrading to 503 when the
// database is unreachable.
func (s *Server) HandleHealth(c echo.Context) error {
	status := HealthStatus{
		Status:    "ok",
		Timestamp: time.Now(),
		Service:   "pipecrm-conversion",
		Version:   "1.0.0",
	}
	if err := s.Repo.Ping(c.Request().Context()); err != nil {
		status.Status = "degraded"
		return c.JSON(http.StatusServiceUnavailable, status)
	}
	return c.JSON(http.StatusOK, status)
}

// ProblemDetails represents an RFC 7807 Problem Details response
type ProblemDetails struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail"`
	Instance string `json:"instance,omitempty"`
}

func problem(c echo.Context, status int, title, detail string) error {
	c.Response().Header().Set(echo.HeaderContentType, "application/problem+json")
	return c.JSON(status, ProblemDetails{
		Type:   "about:blank",
		Title:  title,
		Status: status,
		Detail: detail,
	})
}

// actingUser pulls the authenticated user out of the request context.
func actingUser(c echo.Context) (models.User, error) {
	user, ok := auth.UserFromContext(c.Request().Context())
	if !ok {
		return models.User{}, echo.NewHTTPError(http.StatusUnauthorized, "no acting user in context")
	}
	return user, nil
}

// parseEntityType validates the entityType path/body parameter.
func parseEntityType(raw string) (models.EntityType, bool) {
	switch models.EntityType(raw) {
	case models.EntityTypeLead, models.EntityTypeDeal:
		return models.EntityType(raw), true
	}
	return "", false
}
