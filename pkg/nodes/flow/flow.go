// Package flow holds the structural nodes: loop, split, wait and sticky notes.
package flow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nova-hud/nova/pkg/execution"
	"github.com/nova-hud/nova/pkg/metrics"
	"github.com/nova-hud/nova/pkg/models"
	"github.com/nova-hud/nova/pkg/nodes"
	"github.com/nova-hud/nova/pkg/sandbox"
)

const (
	// MaxWait caps the duration of a wait node.
	MaxWait = 5 * time.Minute

	DefaultMaxIterations = 100
	MaxIterations        = 1000
)

// SplitExecutor passes the most recent upstream output through unchanged.
// Its unlabeled outgoing edges are all live.
type SplitExecutor struct{}

func NewSplitExecutor() *SplitExecutor {
	return &SplitExecutor{}
}

func (e *SplitExecutor) Type() models.NodeType { return models.NodeTypeSplit }

func (e *SplitExecutor) Execute(_ context.Context, node models.Node, ec *execution.Context) models.NodeOutput {
	n, ok := node.(*models.SplitNode)
	if !ok {
		return nodes.WrongType(node, e.Type())
	}

	out := models.NodeOutput{OK: true}

	for _, conn := range ec.Mission.Incoming(n.ID) {
		upstream, executed := ec.NodeOutput(conn.Source)
		if !executed || !upstream.OK {
			continue
		}

		out.Text = upstream.Text
		out.Items = upstream.Items
		out.Data = upstream.Data
	}

	return out
}

// WaitExecutor sleeps for the configured duration, capped at MaxWait.
type WaitExecutor struct{}

func NewWaitExecutor() *WaitExecutor {
	return &WaitExecutor{}
}

func (e *WaitExecutor) Type() models.NodeType { return models.NodeTypeWait }

func (e *WaitExecutor) Execute(ctx context.Context, node models.Node, ec *execution.Context) models.NodeOutput {
	n, ok := node.(*models.WaitNode)
	if !ok {
		return nodes.WrongType(node, e.Type())
	}

	duration := min(time.Duration(max(n.DurationMs, 0))*time.Millisecond, MaxWait)

	timer := time.NewTimer(duration)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		out := models.Failed("wait cancelled: "+context.Cause(ctx).Error(), nodes.CodeTimeout)
		out.Data = map[string]any{"waitedMs": duration.Milliseconds(), "completed": false}

		return out
	case <-timer.C:
	}

	return models.NodeOutput{
		OK:   true,
		Text: ec.LastUpstreamText(n.ID),
		Data: map[string]any{"waitedMs": duration.Milliseconds(), "completed": true},
	}
}

// LoopExecutor maps upstream items through an optional per-item expression.
// Items whose expression fails are dropped and counted. The output carries
// the loop port when items remain and the done port otherwise.
type LoopExecutor struct {
	sandbox *sandbox.Sandbox
	metrics *metrics.Metrics
}

func NewLoopExecutor(sb *sandbox.Sandbox, m *metrics.Metrics) *LoopExecutor {
	if sb == nil {
		sb = sandbox.New()
	}

	return &LoopExecutor{sandbox: sb, metrics: m}
}

func (e *LoopExecutor) Type() models.NodeType { return models.NodeTypeLoop }

func (e *LoopExecutor) Execute(ctx context.Context, node models.Node, ec *execution.Context) models.NodeOutput {
	n, ok := node.(*models.LoopNode)
	if !ok {
		return nodes.WrongType(node, e.Type())
	}

	items := loopItems(n, ec)

	limit := n.MaxIterations
	if limit <= 0 {
		limit = DefaultMaxIterations
	}

	limit = min(limit, MaxIterations)
	truncated := len(items) > limit

	if truncated {
		items = items[:limit]
	}

	if err := ctx.Err(); err != nil {
		return models.Failed("loop cancelled: "+err.Error(), nodes.CodeTimeout)
	}

	var failures []any

	results := append(make([]any, 0, len(items)), items...)
	if strings.TrimSpace(n.Expression) != "" {
		results, failures = e.mapItems(ctx, n, ec, items)

		if err := ctx.Err(); err != nil {
			return models.Failed("loop cancelled: "+err.Error(), nodes.CodeTimeout)
		}
	}

	port := models.PortDone
	if len(results) > 0 {
		port = models.PortLoop
	}

	data := map[string]any{
		"count":      len(results),
		"iterations": len(items),
		"truncated":  truncated,
	}
	if len(failures) > 0 {
		data["errors"] = failures
	}

	return models.NodeOutput{
		OK:    true,
		Text:  execution.DescribeItems(results),
		Items: results,
		Port:  port,
		Data:  data,
	}
}

// mapItems evaluates the loop expression once per item in a single batch.
func (e *LoopExecutor) mapItems(ctx context.Context, n *models.LoopNode, ec *execution.Context, items []any) ([]any, []any) {
	scope := sandbox.Scope{Vars: ec.Variables(), Nodes: ec.NodesSnapshot()}

	requests := make([]sandbox.Request, len(items))
	for index, item := range items {
		requests[index] = sandbox.Request{
			Body:    sandbox.Expression(n.Expression),
			Scope:   scope,
			Globals: map[string]any{"item": item, "index": index},
			Timeout: sandbox.ItemTimeout,
		}
	}

	results := make([]any, 0, len(items))

	var failures []any

	for index, outcome := range e.sandbox.RunBatch(ctx, requests) {
		if outcome.Err != nil {
			if errors.Is(outcome.Err, sandbox.ErrTimeout) {
				e.metrics.SandboxTimeout(string(e.Type()))
			}

			failures = append(failures, fmt.Sprintf("item %d: %v", index, outcome.Err))

			continue
		}

		results = append(results, outcome.Result.Value)
	}

	return results, failures
}

// loopItems reads the iteration source: a resolved inputExpression holding a
// JSON array or lines of text, else the upstream items.
func loopItems(n *models.LoopNode, ec *execution.Context) []any {
	if strings.TrimSpace(n.InputExpression) == "" {
		return ec.UpstreamItems(n.ID)
	}

	resolved := strings.TrimSpace(ec.ResolveExpr(n.InputExpression))

	var items []any
	if err := json.Unmarshal([]byte(resolved), &items); err == nil {
		return items
	}

	for _, line := range strings.Split(resolved, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			items = append(items, line)
		}
	}

	return items
}

// StickyNoteExecutor does nothing. The runner never schedules sticky notes;
// it exists so every node type has an executor.
type StickyNoteExecutor struct{}

func NewStickyNoteExecutor() *StickyNoteExecutor {
	return &StickyNoteExecutor{}
}

func (e *StickyNoteExecutor) Type() models.NodeType { return models.NodeTypeStickyNote }

func (e *StickyNoteExecutor) Execute(context.Context, models.Node, *execution.Context) models.NodeOutput {
	return models.NodeOutput{OK: true}
}
