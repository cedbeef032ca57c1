package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// ListWorkflows returns all workflow definitions
// (GET /api/v1/workflows)
func (s *Server) ListWorkflows(c echo.Context) error {
	ctx := c.Request().Context()

	workflows, err := s.Repo.ListWorkflows(ctx)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, workflows)
}

// ListWorkflowSteps returns a workflow's steps in order
// (GET /api/v1/workflows/:id/steps)
func (s *Server) ListWorkflowSteps(c echo.Context) error {
	ctx := c.Request().Context()

	steps, err := s.Repo.ListWorkflowSteps(ctx, c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, steps)
}

// ListProjectTypes returns the configured project types
// (GET /api/v1/project-types)
func (s *Server) ListProjectTypes(c echo.Context) error {
	ctx := c.Request().Context()

	types, err := s.Repo.ListProjectTypes(ctx)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, types)
}
