package web

import (
	"errors"
	"io/fs"

	"github.com/dukex/canvasblocks/pkg/canvas"
	"github.com/dukex/canvasblocks/pkg/locator"
	"github.com/dukex/canvasblocks/pkg/persistence"
	"github.com/dukex/canvasblocks/pkg/vault"
	"github.com/dukex/canvasblocks/pkg/workflow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"
)

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func notFound(c fiber.Ctx, problemType, detail string) error {
	problem := problems.NewStatusProblem(404).
		WithInstance(c.Path()).
		WithType(problemType).
		WithDetail(detail)

	return c.Status(fiber.StatusNotFound).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(500).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// handleServiceError maps errors that kept a request from being served to problems.
func handleServiceError(c fiber.Ctx, err error) error {
	var validationErrors validator.ValidationErrors

	switch {
	case errors.As(err, &validationErrors),
		errors.Is(err, vault.ErrOutsideVault),
		errors.Is(err, persistence.ErrInvalidExecutionID):
		return badRequest(c, err.Error())

	case errors.Is(err, fs.ErrNotExist), errors.Is(err, vault.ErrFileNotFound):
		return notFound(c, "canvas_not_found", "canvas not found")

	case errors.Is(err, locator.ErrWorkflowNotFound):
		return notFound(c, "workflow_not_found", "workflow not found")

	case errors.Is(err, workflow.ErrNoScript):
		return notFound(c, "script_not_found", err.Error())

	case persistence.IsExecutionNotFound(err):
		return notFound(c, "execution_not_found", "execution not found")

	case errors.Is(err, canvas.ErrLocked):
		problem := problems.NewStatusProblem(409).
			WithInstance(c.Path()).
			WithType("canvas_locked").
			WithDetail(err.Error())

		return c.Status(fiber.StatusConflict).JSON(problem)

	case errors.Is(err, canvas.ErrInvalidCanvas):
		problem := problems.NewStatusProblem(422).
			WithInstance(c.Path()).
			WithType("invalid_canvas").
			WithDetail(err.Error())

		return c.Status(fiber.StatusUnprocessableEntity).JSON(problem)

	default:
		return internalError(c, err)
	}
}
