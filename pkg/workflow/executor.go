// Package workflow runs mission graphs: it orders nodes, prunes branches that
// were not taken and records the outcome of every node.
package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/nova-hud/nova/pkg/eventbus"
	"github.com/nova-hud/nova/pkg/events"
	"github.com/nova-hud/nova/pkg/execution"
	"github.com/nova-hud/nova/pkg/metrics"
	"github.com/nova-hud/nova/pkg/models"
	"github.com/nova-hud/nova/pkg/otelhelper"
	"github.com/nova-hud/nova/pkg/registry"
)

// Request describes one run of a mission.
type Request struct {
	Mission        *models.Mission
	Source         models.RunSource
	RunID          string
	RunKey         string
	Attempt        int
	LastRunAt      *time.Time
	Now            time.Time
	Scope          models.Scope
	TriggerPayload map[string]any
	Variables      map[string]string
}

// Result is a finished run: its persisted record and the context it ran in.
type Result struct {
	Record  *models.RunRecord
	Context *execution.Context
}

type Executor struct {
	registry  *registry.Registry
	publisher eventbus.EventPublisher
	tracer    trace.Tracer
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

type Option func(*Executor)

func WithPublisher(publisher eventbus.EventPublisher) Option {
	return func(e *Executor) { e.publisher = publisher }
}

func WithTracer(tracer trace.Tracer) Option {
	return func(e *Executor) { e.tracer = tracer }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Executor) { e.metrics = m }
}

func NewExecutor(reg *registry.Registry, logger *slog.Logger, opts ...Option) *Executor {
	e := &Executor{
		registry:  reg,
		publisher: eventbus.Nop{},
		tracer:    otelhelper.NoopTracer(),
		logger:    logger.With("module", "workflow_executor"),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// RunKey returns the key identifying a run. Scheduled runs share one key per
// mission and minute so duplicate ticks can be dropped.
func RunKey(missionID string, source models.RunSource, runID string, at time.Time) string {
	if source == models.RunSourceSchedule {
		return missionID + ":" + at.UTC().Format("200601021504")
	}

	return fmt.Sprintf("%s:%s:%s", missionID, source, runID)
}

// Run executes the mission once. Node failures never abort the run; the
// returned error is reserved for an invalid graph or a cancelled context, in
// which case the record is still returned with status failed.
func (e *Executor) Run(ctx context.Context, req Request) (*Result, error) {
	if req.Mission == nil {
		return nil, fmt.Errorf("%w: no mission to run", models.ErrInvalidMission)
	}

	req = withDefaults(req)
	mission := req.Mission
	started := time.Now()

	logger := e.logger.With(
		"mission_id", mission.ID,
		"run_id", req.RunID,
		"run_source", req.Source,
	)

	ec := execution.New(mission,
		execution.WithRun(req.RunID, req.RunKey, req.Attempt),
		execution.WithRunSource(req.Source),
		execution.WithLastRunAt(req.LastRunAt),
		execution.WithNow(req.Now),
		execution.WithScope(req.Scope),
		execution.WithTriggerPayload(req.TriggerPayload),
		execution.WithVariables(req.Variables),
		execution.WithLogger(logger),
	)

	record := &models.RunRecord{
		ID:        req.RunID,
		MissionID: mission.ID,
		RunKey:    req.RunKey,
		Source:    req.Source,
		Status:    models.RunStatusRunning,
		Attempt:   req.Attempt,
		StartedAt: started.UTC(),
	}

	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "mission.run",
		attribute.String(otelhelper.MissionIDKey, mission.ID),
		attribute.String(otelhelper.MissionLabelKey, mission.Label),
		attribute.String(otelhelper.RunIDKey, req.RunID),
		attribute.String(otelhelper.RunKeyKey, req.RunKey),
		attribute.String(otelhelper.RunSourceKey, string(req.Source)),
	)
	defer span.End()

	logger.InfoContext(ctx, "Starting mission run")

	e.publish(ctx, mission.ID, events.RunStarted{
		BaseEvent: e.baseEvent(events.RunStartedEvent, mission.ID, req.RunID),
		RunKey:    req.RunKey,
		Source:    req.Source,
		Attempt:   req.Attempt,
	})

	err := e.walk(ctx, ec, record)
	if err != nil {
		record.Status = models.RunStatusFailed
		record.Error = err.Error()
		otelhelper.SetError(span, err)
	}

	finished := time.Now()
	record.FinishedAt = &finished

	span.SetAttributes(attribute.String(otelhelper.RunStatusKey, string(record.Status)))
	e.metrics.ObserveRun(string(req.Source), string(record.Status), finished.Sub(started))

	// A run that hit its deadline still reports how it ended.
	e.publish(context.WithoutCancel(ctx), mission.ID, events.RunFinished{
		BaseEvent:     e.baseEvent(events.RunFinishedEvent, mission.ID, req.RunID),
		RunKey:        req.RunKey,
		Status:        record.Status,
		DurationMs:    finished.Sub(started).Milliseconds(),
		NodesExecuted: len(ec.Outputs()),
		Output:        record.Output,
		Error:         record.Error,
	})

	logger.InfoContext(ctx, "Mission run finished",
		"status", record.Status,
		"nodes_executed", len(ec.Outputs()),
		"duration_ms", finished.Sub(started).Milliseconds(),
	)

	return &Result{Record: record, Context: ec}, err
}

func (e *Executor) walk(ctx context.Context, ec *execution.Context, record *models.RunRecord) error {
	if err := ec.Mission.Validate(); err != nil {
		return err
	}

	plan, err := NewPlan(ec.Mission)
	if err != nil {
		return err
	}

	gateChecked := false
	failed := false

	for _, node := range plan.Order() {
		base := node.Base()

		if err := ctx.Err(); err != nil {
			return fmt.Errorf("run cancelled before node %s: %w", base.ID, err)
		}

		if !gateChecked && base.Type.Kind() != models.KindTrigger {
			gateChecked = true

			if status, stop := gate(plan, ec); stop {
				record.Status = status
				record.NodeRuns = append(record.NodeRuns, skippedAfter(plan, ec)...)

				return nil
			}
		}

		if !plan.Reachable(node, ec) {
			record.NodeRuns = append(record.NodeRuns, models.NodeRun{NodeID: base.ID, NodeType: base.Type, Skipped: true})
			ec.Logger.DebugContext(ctx, "Node skipped", "node_id", base.ID, "node_type", base.Type)

			continue
		}

		out, elapsed := e.executeNode(ctx, node, ec)

		if err := ec.SetNodeOutput(base.ID, out); err != nil {
			return err
		}

		record.NodeRuns = append(record.NodeRuns, models.NodeRun{
			NodeID:     base.ID,
			NodeType:   base.Type,
			OK:         out.OK,
			Port:       out.Port,
			Error:      out.Error,
			ErrorCode:  out.ErrorCode,
			DurationMs: elapsed.Milliseconds(),
		})

		if !out.OK {
			failed = true
		}

		if base.Type.Kind() == models.KindOutput && out.OK {
			record.Output = out.Text
		}
	}

	if status, stop := gate(plan, ec); !gateChecked && stop {
		record.Status = status

		return nil
	}

	if failed {
		record.Status = models.RunStatusCompletedWithErrors
	} else {
		record.Status = models.RunStatusCompleted
	}

	return nil
}

func (e *Executor) executeNode(ctx context.Context, node models.Node, ec *execution.Context) (models.NodeOutput, time.Duration) {
	base := node.Base()

	nodeCtx, span := otelhelper.StartSpan(ctx, e.tracer, "node."+string(base.Type),
		attribute.String(otelhelper.NodeIDKey, base.ID),
		attribute.String(otelhelper.NodeTypeKey, string(base.Type)),
	)
	defer span.End()

	started := time.Now()
	out := e.registry.Execute(nodeCtx, node, ec)
	elapsed := time.Since(started)

	span.SetAttributes(attribute.String(otelhelper.NodePortKey, out.Port))

	logger := ec.Logger.With("node_id", base.ID, "node_type", base.Type, "duration_ms", elapsed.Milliseconds())

	if out.OK {
		logger.DebugContext(ctx, "Node completed", "port", out.Port)
	} else {
		otelhelper.SetNodeFailure(span, out.Error, out.ErrorCode)
		logger.WarnContext(ctx, "Node failed", "error", out.Error, "error_code", out.ErrorCode)
	}

	e.publish(ctx, ec.MissionID(), events.NodeCompleted{
		BaseEvent:  e.baseEvent(events.NodeCompletedEvent, ec.MissionID(), ec.RunID),
		NodeID:     base.ID,
		NodeType:   base.Type,
		OK:         out.OK,
		Port:       out.Port,
		Error:      out.Error,
		ErrorCode:  out.ErrorCode,
		DurationMs: elapsed.Milliseconds(),
	})

	return out, elapsed
}

// gate stops the run when the mission has root triggers and none of them
// fired. The run is skipped when they all declined, and completed with
// errors when one of them failed.
func gate(plan *Plan, ec *execution.Context) (models.RunStatus, bool) {
	triggers := plan.RootTriggers()
	if len(triggers) == 0 {
		return "", false
	}

	status := models.RunStatusSkipped

	for _, id := range triggers {
		out, ok := ec.NodeOutput(id)
		if !ok {
			continue
		}

		if !out.OK {
			status = models.RunStatusCompletedWithErrors

			continue
		}

		if out.Triggered() {
			return "", false
		}
	}

	return status, true
}

func skippedAfter(plan *Plan, ec *execution.Context) []models.NodeRun {
	var runs []models.NodeRun

	for _, node := range plan.Order() {
		base := node.Base()
		if _, executed := ec.NodeOutput(base.ID); executed {
			continue
		}

		runs = append(runs, models.NodeRun{NodeID: base.ID, NodeType: base.Type, Skipped: true})
	}

	return runs
}

func (e *Executor) baseEvent(eventType events.EventType, missionID, runID string) events.BaseEvent {
	base := events.NewBaseEvent(eventType, missionID)
	base.RunID = runID

	return base
}

func (e *Executor) publish(ctx context.Context, key string, event eventbus.Event) {
	if err := e.publisher.Publish(ctx, key, event); err != nil {
		e.logger.WarnContext(ctx, "Failed to publish event", "event_type", event.GetType(), "error", err)
	}
}

func withDefaults(req Request) Request {
	if req.Source == "" {
		req.Source = models.RunSourceManual
	}

	if req.Attempt <= 0 {
		req.Attempt = 1
	}

	if req.Now.IsZero() {
		req.Now = time.Now()
	}

	if req.RunID == "" {
		req.RunID = uuid.New().String()
	}

	if req.RunKey == "" {
		req.RunKey = RunKey(req.Mission.ID, req.Source, req.RunID, req.Now)
	}

	return req
}
