// Package web provides the HTTP request and response types of the mission API.
package web

import (
	"time"

	"github.com/nova-hud/nova/pkg/models"
)

// RunMissionRequest is the optional body of a manual run.
type RunMissionRequest struct {
	Async       bool              `json:"async"`
	RunKey      string            `json:"runKey,omitempty"      validate:"omitempty,max=200"`
	UserID      string            `json:"userId,omitempty"`
	WorkspaceID string            `json:"workspaceId,omitempty"`
	Variables   map[string]string `json:"variables,omitempty"`
	Payload     map[string]any    `json:"payload,omitempty"`
}

// QualityRequest asks for the guardrail report of a text.
type QualityRequest struct {
	Text        string `json:"text"                  validate:"required"`
	Evidence    []any  `json:"evidence,omitempty"`
	DetailLevel string `json:"detailLevel,omitempty" validate:"omitempty,oneof=concise standard detailed"`
}

// MissionSummary is the list view of a mission.
type MissionSummary struct {
	ID        string    `json:"id"`
	Label     string    `json:"label"`
	Enabled   bool      `json:"enabled"`
	NodeCount int       `json:"nodeCount"`
	Triggers  []string  `json:"triggers"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

// RunResponse reports a finished run, or an accepted one when RunID alone is set.
type RunResponse struct {
	RunID   string            `json:"runId"`
	Status  models.RunStatus  `json:"status,omitempty"`
	Output  string            `json:"output,omitempty"`
	Error   string            `json:"error,omitempty"`
	Record  *models.RunRecord `json:"record,omitempty"`
	Queued  bool              `json:"queued,omitempty"`
	Message string            `json:"message,omitempty"`
}

// TransformMissionSummary builds the list view of a mission.
func TransformMissionSummary(mission *models.Mission) MissionSummary {
	summary := MissionSummary{
		ID:        mission.ID,
		Label:     mission.Label,
		Enabled:   mission.Enabled,
		NodeCount: len(mission.Nodes),
		Triggers:  []string{},
		UpdatedAt: mission.UpdatedAt,
	}

	for _, node := range mission.Nodes {
		if base := node.Base(); base.Type.Kind() == models.KindTrigger {
			summary.Triggers = append(summary.Triggers, string(base.Type))
		}
	}

	return summary
}

func runResponse(record *models.RunRecord) RunResponse {
	return RunResponse{
		RunID:  record.ID,
		Status: record.Status,
		Output: record.Output,
		Error:  record.Error,
		Record: record,
	}
}
