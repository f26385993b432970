package models

import "time"

// RunSource names what started a run.
type RunSource string

const (
	RunSourceSchedule RunSource = "schedule"
	RunSourceManual   RunSource = "manual"
	RunSourceTrigger  RunSource = "trigger"
	RunSourceWebhook  RunSource = "webhook"
	RunSourceEvent    RunSource = "event"
)

// RunStatus is the terminal state of a run.
type RunStatus string

const (
	RunStatusRunning             RunStatus = "running"
	RunStatusCompleted           RunStatus = "completed"
	RunStatusCompletedWithErrors RunStatus = "completed_with_errors"
	RunStatusSkipped             RunStatus = "skipped"
	RunStatusFailed              RunStatus = "failed"
)

// Scope identifies the owner a run acts on behalf of. Collaborators use it
// to pick credentials.
type Scope struct {
	UserID      string `json:"userId,omitempty"`
	WorkspaceID string `json:"workspaceId,omitempty"`
}

// NodeRun is the persisted outcome of one node within a run.
type NodeRun struct {
	NodeID     string   `json:"nodeId"`
	NodeType   NodeType `json:"nodeType"`
	OK         bool     `json:"ok"`
	Skipped    bool     `json:"skipped,omitempty"`
	Port       string   `json:"port,omitempty"`
	Error      string   `json:"error,omitempty"`
	ErrorCode  string   `json:"errorCode,omitempty"`
	DurationMs int64    `json:"durationMs"`
}

// RunRecord is the persisted summary of one mission run.
type RunRecord struct {
	ID         string     `json:"id"`
	MissionID  string     `json:"missionId"`
	RunKey     string     `json:"runKey"`
	Source     RunSource  `json:"source"`
	Status     RunStatus  `json:"status"`
	Attempt    int        `json:"attempt"`
	StartedAt  time.Time  `json:"startedAt"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
	Output     string     `json:"output,omitempty"`
	NodeRuns   []NodeRun  `json:"nodeRuns,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// Triggered reports whether the run got past its trigger gate.
func (r *RunRecord) Triggered() bool {
	return r.Status != RunStatusSkipped && r.Status != RunStatusFailed
}
