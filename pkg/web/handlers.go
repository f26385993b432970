package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/nova-hud/nova/pkg/eventbus"
	"github.com/nova-hud/nova/pkg/guardrail"
	"github.com/nova-hud/nova/pkg/models"
	"github.com/nova-hud/nova/pkg/persistence"
	"github.com/nova-hud/nova/pkg/providers/dispatch"
	"github.com/nova-hud/nova/pkg/registry"
	"github.com/nova-hud/nova/pkg/workflow"
)

// Runner executes a mission synchronously.
type Runner interface {
	Execute(ctx context.Context, trigger workflow.Trigger) (*workflow.Result, error)
}

type APIHandlers struct {
	repository *workflow.Repository
	runner     Runner
	publisher  eventbus.EventPublisher
	registry   *registry.Registry
	quality    *guardrail.Guardrail
	inbox      *dispatch.Inbox
	validator  *validator.Validate
}

// NewAPIHandlers wires the handlers. A nil publisher makes every run
// synchronous; a nil inbox disables the inbox endpoint.
func NewAPIHandlers(
	repository *workflow.Repository,
	runner Runner,
	publisher eventbus.EventPublisher,
	registry *registry.Registry,
	quality *guardrail.Guardrail,
	inbox *dispatch.Inbox,
	validator *validator.Validate,
) *APIHandlers {
	if quality == nil {
		quality = guardrail.New(guardrail.DefaultThreshold, nil)
	}

	return &APIHandlers{
		repository: repository,
		runner:     runner,
		publisher:  publisher,
		registry:   registry,
		quality:    quality,
		inbox:      inbox,
		validator:  validator,
	}
}

func (h *APIHandlers) GetMissions(c fiber.Ctx) error {
	missions, err := h.repository.FetchAll(c.Context())
	if err != nil {
		return internalError(c, err)
	}

	summaries := make([]MissionSummary, 0, len(missions))
	for _, mission := range missions {
		summaries = append(summaries, TransformMissionSummary(mission))
	}

	return c.JSON(fiber.Map{
		"missions":    summaries,
		"total_count": len(summaries),
	})
}

func (h *APIHandlers) GetMission(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Mission ID is required")
	}

	mission, err := h.repository.FetchByID(c.Context(), id)
	if err != nil {
		if persistence.IsMissionNotFound(err) {
			return notFound(c, "Mission not found")
		}

		return internalError(c, err)
	}

	return c.JSON(mission)
}

func (h *APIHandlers) GetMissionRuns(c fiber.Ctx) error {
	id := c.Params("id")

	limit := persistence.DefaultRunsLimit

	if limitStr := c.Query("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed <= 0 {
			return badRequest(c, "Invalid query parameters: limit must be a positive integer")
		}

		limit = parsed
	}

	if _, err := h.repository.FetchByID(c.Context(), id); err != nil {
		return handleRunError(c, err)
	}

	runs, err := h.repository.Runs(c.Context(), id, limit)
	if err != nil {
		return internalError(c, err)
	}

	if runs == nil {
		runs = []*models.RunRecord{}
	}

	return c.JSON(fiber.Map{"runs": runs, "total_count": len(runs)})
}

// RunMission starts a manual run. Async runs are handed to the event bus and
// answered with 202.
func (h *APIHandlers) RunMission(c fiber.Ctx) error {
	id := c.Params("id")

	var req RunMissionRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "Invalid JSON format")
		}
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	trigger := workflow.Trigger{
		MissionID: id,
		Source:    models.RunSourceManual,
		RunID:     uuid.NewString(),
		RunKey:    req.RunKey,
		Scope:     models.Scope{UserID: req.UserID, WorkspaceID: req.WorkspaceID},
		Payload:   req.Payload,
		Variables: req.Variables,
	}

	if req.Async || c.Query("async") == "true" {
		return h.enqueue(c, trigger)
	}

	return h.execute(c, trigger)
}

// ReceiveWebhook runs a mission with the request as its webhook payload.
func (h *APIHandlers) ReceiveWebhook(c fiber.Ctx) error {
	missionID := c.Params("missionId")

	headers := make(map[string]any)
	for name, values := range c.GetReqHeaders() {
		if len(values) > 0 {
			headers[name] = values[0]
		}
	}

	var body any

	if raw := c.Body(); len(raw) > 0 {
		if err := json.Unmarshal(raw, &body); err != nil {
			body = string(raw)
		}
	}

	trigger := workflow.Trigger{
		MissionID: missionID,
		Source:    models.RunSourceWebhook,
		RunID:     uuid.NewString(),
		Payload: map[string]any{
			"path":    c.Params("*"),
			"headers": headers,
			"body":    body,
			"query":   c.Queries(),
		},
	}

	if h.publisher != nil {
		return h.enqueue(c, trigger)
	}

	return h.execute(c, trigger)
}

// EmitEvent requests an event run of every enabled mission listening for the
// named event.
func (h *APIHandlers) EmitEvent(c fiber.Ctx) error {
	name := c.Params("name")

	var body any
	if raw := c.Body(); len(raw) > 0 {
		if err := json.Unmarshal(raw, &body); err != nil {
			return badRequest(c, "Invalid JSON format")
		}
	}

	missions, err := h.repository.FetchEnabled(c.Context())
	if err != nil {
		return internalError(c, err)
	}

	matched := []string{}

	for _, mission := range missions {
		if !listensFor(mission, name) {
			continue
		}

		trigger := workflow.Trigger{
			MissionID: mission.ID,
			Source:    models.RunSourceEvent,
			RunID:     uuid.NewString(),
			Payload:   map[string]any{"event": name, "body": body},
		}

		if err := h.dispatchRun(c.Context(), trigger); err != nil {
			return handleRunError(c, err)
		}

		matched = append(matched, mission.ID)
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"event": name, "missions": matched})
}

func listensFor(mission *models.Mission, event string) bool {
	for _, node := range mission.Nodes {
		if n, ok := node.(*models.EventTriggerNode); ok && strings.EqualFold(n.EventName, event) {
			return true
		}
	}

	return false
}

// ScoreQuality reports the guardrail score of a text, and the decision the
// output nodes would take when evidence is supplied.
func (h *APIHandlers) ScoreQuality(c fiber.Ctx) error {
	var req QualityRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	report := h.quality.Evaluate(req.Text, req.Evidence)

	response := fiber.Map{
		"report":    report,
		"threshold": h.quality.Threshold(),
		"passes":    report.Score >= h.quality.Threshold(),
	}

	if len(req.Evidence) > 0 {
		detail := req.DetailLevel
		if detail == "" {
			detail = "standard"
		}

		response["decision"] = h.quality.Apply(req.Text, req.Evidence, detail)
	}

	return c.JSON(response)
}

func (h *APIHandlers) GetNodeTypes(c fiber.Ctx) error {
	return c.JSON(h.registry.Describe())
}

func (h *APIHandlers) GetInbox(c fiber.Ctx) error {
	if h.inbox == nil {
		return notFound(c, "Inbox is not enabled")
	}

	messages := h.inbox.Messages(c.Params("recipient"))
	if messages == nil {
		messages = []dispatch.InboxMessage{}
	}

	return c.JSON(fiber.Map{"messages": messages})
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	registryCheck, regOk := h.registry.HealthCheck()
	repositoryCheck, repOk := h.repository.HealthCheck(c.Context())

	status := "unhealthy"
	message := "Nova API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if regOk && repOk {
		status = "healthy"
		message = "Nova API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"registry":   registryCheck,
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}

func (h *APIHandlers) execute(c fiber.Ctx, trigger workflow.Trigger) error {
	result, err := h.runner.Execute(c.Context(), trigger)
	if result == nil {
		if err != nil {
			return handleRunError(c, err)
		}

		return accepted(c, trigger)
	}

	if err != nil && (errors.Is(err, models.ErrInvalidMission) || errors.Is(err, models.ErrCyclicGraph)) {
		return handleRunError(c, err)
	}

	return c.JSON(runResponse(result.Record))
}

func (h *APIHandlers) enqueue(c fiber.Ctx, trigger workflow.Trigger) error {
	if _, err := h.repository.FetchByID(c.Context(), trigger.MissionID); err != nil {
		return handleRunError(c, err)
	}

	if err := h.dispatchRun(c.Context(), trigger); err != nil {
		return internalError(c, err)
	}

	return accepted(c, trigger)
}

func accepted(c fiber.Ctx, trigger workflow.Trigger) error {
	return c.Status(fiber.StatusAccepted).JSON(RunResponse{
		RunID:   trigger.RunID,
		Queued:  true,
		Message: "run requested",
	})
}

// dispatchRun publishes a run request, or runs it in the background when no
// bus is configured.
func (h *APIHandlers) dispatchRun(ctx context.Context, trigger workflow.Trigger) error {
	if h.publisher == nil {
		go func() {
			_, _ = h.runner.Execute(context.WithoutCancel(ctx), trigger)
		}()

		return nil
	}

	return workflow.RequestRun(ctx, h.publisher, trigger)
}
