package web

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"

	"github.com/nova-hud/nova/pkg/models"
	"github.com/nova-hud/nova/pkg/persistence"
	"github.com/nova-hud/nova/pkg/workflow"
)

func problem(c fiber.Ctx, status int, kind, detail string) error {
	p := problems.NewStatusProblem(status).
		WithInstance(c.Path()).
		WithType(kind).
		WithDetail(detail)

	return c.Status(status).JSON(p)
}

func badRequest(c fiber.Ctx, detail string) error {
	return problem(c, fiber.StatusBadRequest, "validation_error", detail)
}

func notFound(c fiber.Ctx, detail string) error {
	return problem(c, fiber.StatusNotFound, "not_found", detail)
}

func internalError(c fiber.Ctx, err error) error {
	p := problems.NewStatusProblem(fiber.StatusInternalServerError).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(p)
}

// handleRunError maps runner and persistence errors to problems.
func handleRunError(c fiber.Ctx, err error) error {
	switch {
	case persistence.IsMissionNotFound(err):
		return problem(c, fiber.StatusNotFound, "mission_not_found", "mission not found")
	case errors.Is(err, workflow.ErrDuplicateRun):
		return problem(c, fiber.StatusConflict, "duplicate_run", err.Error())
	case errors.Is(err, workflow.ErrMissionDisabled):
		return problem(c, fiber.StatusConflict, "mission_disabled", err.Error())
	case errors.Is(err, models.ErrInvalidMission), errors.Is(err, models.ErrCyclicGraph):
		return problem(c, fiber.StatusUnprocessableEntity, "invalid_mission", err.Error())
	default:
		return internalError(c, err)
	}
}
