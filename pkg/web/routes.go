package web

import "github.com/gofiber/fiber/v3"

// Register mounts the mission API on router.
func (h *APIHandlers) Register(router fiber.Router) {
	m := router.Group("/missions")
	m.Get("/", h.GetMissions)
	m.Get("/:id", h.GetMission)
	m.Get("/:id/runs", h.GetMissionRuns)
	m.Post("/:id/run", h.RunMission)

	router.Post("/webhooks/:missionId", h.ReceiveWebhook)
	router.Post("/webhooks/:missionId/*", h.ReceiveWebhook)
	router.Post("/events/:name", h.EmitEvent)

	router.Post("/quality", h.ScoreQuality)
	router.Get("/node-types", h.GetNodeTypes)
	router.Get("/inbox/:recipient", h.GetInbox)
	router.Get("/health", h.HealthCheck)
}
