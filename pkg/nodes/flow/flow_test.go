package flow

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nova-hud/nova/pkg/execution"
	"github.com/nova-hud/nova/pkg/models"
)

func base(id string, t models.NodeType) models.NodeBase {
	return models.NodeBase{ID: id, Type: t}
}

func itemsContext(t *testing.T, items ...any) *execution.Context {
	t.Helper()

	ec := execution.New(&models.Mission{ID: "m"})
	require.NoError(t, ec.SetNodeOutput("src", models.NodeOutput{OK: true, Items: items}))

	return ec
}

func TestLoop_MapsItems(t *testing.T) {
	ec := itemsContext(t, map[string]any{"title": "a"}, map[string]any{"title": "b"})
	node := &models.LoopNode{NodeBase: base("loop", models.NodeTypeLoop), Expression: "item.title.toUpperCase() + index"}

	out := NewLoopExecutor(nil, nil).Execute(context.Background(), node, ec)

	require.True(t, out.OK)
	assert.Equal(t, models.PortLoop, out.Port)
	assert.Equal(t, []any{"A0", "B1"}, out.Items)
	assert.Equal(t, "- A0\n- B1", out.Text)
}

func TestLoop_EmptyIsDone(t *testing.T) {
	ec := execution.New(&models.Mission{ID: "m"})

	out := NewLoopExecutor(nil, nil).Execute(context.Background(), &models.LoopNode{NodeBase: base("loop", models.NodeTypeLoop)}, ec)

	require.True(t, out.OK)
	assert.Equal(t, models.PortDone, out.Port)
	assert.Empty(t, out.Items)
}

func TestLoop_CapsIterations(t *testing.T) {
	ec := itemsContext(t, 1.0, 2.0, 3.0, 4.0)
	node := &models.LoopNode{NodeBase: base("loop", models.NodeTypeLoop), MaxIterations: 2}

	out := NewLoopExecutor(nil, nil).Execute(context.Background(), node, ec)

	assert.Equal(t, []any{1.0, 2.0}, out.Items)
	assert.Equal(t, true, out.Data["truncated"])
}

func TestLoop_DropsFailingItems(t *testing.T) {
	ec := itemsContext(t, map[string]any{"n": 1}, "plain")
	node := &models.LoopNode{NodeBase: base("loop", models.NodeTypeLoop), Expression: "item.n.toFixed(1)"}

	out := NewLoopExecutor(nil, nil).Execute(context.Background(), node, ec)

	require.True(t, out.OK)
	assert.Equal(t, []any{"1.0"}, out.Items)
	assert.Len(t, out.Data["errors"], 1)
}

func TestLoop_InputExpressionLines(t *testing.T) {
	ec := execution.New(&models.Mission{ID: "m"}, execution.WithVariables(map[string]string{"list": "eth\n\nsui"}))
	node := &models.LoopNode{NodeBase: base("loop", models.NodeTypeLoop), InputExpression: "{{vars.list}}"}

	out := NewLoopExecutor(nil, nil).Execute(context.Background(), node, ec)
	assert.Equal(t, []any{"eth", "sui"}, out.Items)
}

func TestWait_SleepsAndPassesText(t *testing.T) {
	ec := execution.New(&models.Mission{ID: "m"})
	require.NoError(t, ec.SetNodeOutput("src", models.NodeOutput{OK: true, Text: "hello"}))

	started := time.Now()
	out := NewWaitExecutor().Execute(context.Background(), &models.WaitNode{NodeBase: base("w", models.NodeTypeWait), DurationMs: 20}, ec)

	require.True(t, out.OK)
	assert.Equal(t, "hello", out.Text)
	assert.GreaterOrEqual(t, time.Since(started), 20*time.Millisecond)
}

func TestWait_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := NewWaitExecutor().Execute(ctx, &models.WaitNode{NodeBase: base("w", models.NodeTypeWait), DurationMs: 60_000}, execution.New(&models.Mission{ID: "m"}))

	assert.False(t, out.OK)
	assert.Contains(t, out.Error, "wait cancelled")
}

func TestSplit_PassesThrough(t *testing.T) {
	mission := &models.Mission{
		ID: "m",
		Nodes: []models.Node{
			&models.ManualTriggerNode{NodeBase: base("src", models.NodeTypeManualTrigger)},
			&models.SplitNode{NodeBase: base("split", models.NodeTypeSplit)},
		},
		Connections: []*models.Connection{{ID: "c", Source: "src", Target: "split"}},
	}
	ec := execution.New(mission)
	require.NoError(t, ec.SetNodeOutput("src", models.NodeOutput{OK: true, Text: "payload", Items: []any{"x"}}))

	out := NewSplitExecutor().Execute(context.Background(), mission.Nodes[1], ec)

	require.True(t, out.OK)
	assert.Equal(t, "payload", out.Text)
	assert.Equal(t, []any{"x"}, out.Items)
	assert.Empty(t, out.Port)
}
