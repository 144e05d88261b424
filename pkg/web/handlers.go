// Package web provides HTTP handlers and REST API endpoints for running canvases.
package web

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/dukex/canvasblocks/pkg/models"
	"github.com/dukex/canvasblocks/pkg/persistence"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// RunService executes and inspects canvas runs.
type RunService interface {
	Execute(ctx context.Context, request models.RunRequest) (*models.Execution, error)
	Locate(ctx context.Context, canvasPath, nodeID string) (*models.WorkflowNodes, error)
	Scripts(ctx context.Context) ([]string, error)
	Execution(ctx context.Context, id string) (*models.Execution, error)
	Executions(ctx context.Context, filter persistence.ExecutionFilter) ([]*models.Execution, error)
}

// HealthChecker reports whether a dependency is usable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

type APIHandlers struct {
	service   RunService
	health    HealthChecker
	validator *validator.Validate
}

func NewAPIHandlers(service RunService, health HealthChecker, validator *validator.Validate) *APIHandlers {
	return &APIHandlers{
		service:   service,
		health:    health,
		validator: validator,
	}
}

// CreateRun executes a run synchronously. A run that started answers 201 with its record,
// whether its scripts succeeded or not.
func (h *APIHandlers) CreateRun(c fiber.Ctx) error {
	var req CreateRunRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	execution, err := h.service.Execute(c.Context(), req.RunRequest())
	if execution == nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(execution)
}

func (h *APIHandlers) GetRuns(c fiber.Ctx) error {
	filter, err := parseExecutionFilter(c)
	if err != nil {
		return badRequest(c, "Invalid query parameters: "+err.Error())
	}

	runs, err := h.service.Executions(c.Context(), filter)
	if err != nil {
		return handleServiceError(c, err)
	}

	if runs == nil {
		runs = []*models.Execution{}
	}

	return c.JSON(ListRunsResponse{Runs: runs, Count: len(runs)})
}

func parseExecutionFilter(c fiber.Ctx) (persistence.ExecutionFilter, error) {
	filter := persistence.ExecutionFilter{
		CanvasPath: c.Query("canvas"),
		Status:     models.ExecutionStatus(c.Query("status")),
	}

	if limitStr := c.Query("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			return filter, err
		}

		filter.Limit = limit
	}

	return filter, nil
}

func (h *APIHandlers) GetRun(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Run ID is required")
	}

	execution, err := h.service.Execution(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(execution)
}

// GetWorkflow resolves the workflow a node belongs to.
func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	canvasPath := c.Query("canvas")
	nodeID := c.Query("node_id")

	if canvasPath == "" || nodeID == "" {
		return badRequest(c, "canvas and node_id are required")
	}

	nodes, err := h.service.Locate(c.Context(), canvasPath, nodeID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(TransformWorkflowResponse(nodes))
}

func (h *APIHandlers) GetScripts(c fiber.Ctx) error {
	scripts, err := h.service.Scripts(c.Context())
	if err != nil {
		return handleServiceError(c, err)
	}

	if scripts == nil {
		scripts = []string{}
	}

	return c.JSON(fiber.Map{"scripts": scripts})
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	status := "healthy"
	message := "canvasblocks API is healthy"
	httpStatus := http.StatusOK
	repositoryCheck := "ok"

	if err := h.health.HealthCheck(c.Context()); err != nil {
		status = "unhealthy"
		message = "canvasblocks API is unhealthy"
		httpStatus = http.StatusInternalServerError
		repositoryCheck = err.Error()
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}
