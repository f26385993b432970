package switchnode

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nova-hud/nova/pkg/execution"
	"github.com/nova-hud/nova/pkg/models"
)

func TestSwitch_Routes(t *testing.T) {
	ec := execution.New(&models.Mission{ID: "m"})
	require.NoError(t, ec.SetNodeOutput("classify", models.NodeOutput{
		OK:   true,
		Data: map[string]any{"category": "Sports"},
	}))

	cases := []models.SwitchCase{
		{Value: "markets", Port: "money"},
		{Value: "sports", Port: "games"},
	}

	testCases := []struct {
		name       string
		expression string
		defaultTo  string
		port       string
		matched    bool
	}{
		{"bare path", "nodes.classify.data.category", "", "games", true},
		{"token", "{{nodes.classify.data.category}}", "", "games", true},
		{"no match", "weather", "", models.PortDefault, false},
		{"custom default", "weather", "other", "other", false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			node := &models.SwitchNode{
				NodeBase:    models.NodeBase{ID: "sw", Type: models.NodeTypeSwitch},
				Expression:  tc.expression,
				Cases:       cases,
				DefaultPort: tc.defaultTo,
			}

			out := NewExecutor().Execute(context.Background(), node, ec)

			require.True(t, out.OK)
			assert.Equal(t, tc.port, out.Port)
			assert.Equal(t, tc.matched, out.Data["matched"])
		})
	}
}

func TestSwitch_CaseWithoutPortUsesValue(t *testing.T) {
	ec := execution.New(&models.Mission{ID: "m"}, execution.WithVariables(map[string]string{"mode": "brief"}))
	node := &models.SwitchNode{
		NodeBase:   models.NodeBase{ID: "sw", Type: models.NodeTypeSwitch},
		Expression: "vars.mode",
		Cases:      []models.SwitchCase{{Value: "brief"}},
	}

	out := NewExecutor().Execute(context.Background(), node, ec)
	assert.Equal(t, "brief", out.Port)
}

func TestSwitch_EmptyExpression(t *testing.T) {
	node := &models.SwitchNode{NodeBase: models.NodeBase{ID: "sw", Type: models.NodeTypeSwitch}}

	out := NewExecutor().Execute(context.Background(), node, execution.New(&models.Mission{ID: "m"}))
	assert.False(t, out.OK)
	assert.Equal(t, models.PortError, out.Port)
}

func TestSwitch_LiteralExpression(t *testing.T) {
	node := &models.SwitchNode{
		NodeBase:   models.NodeBase{ID: "sw", Type: models.NodeTypeSwitch},
		Expression: "Weather",
		Cases:      []models.SwitchCase{{Value: "weather", Port: "sky"}},
	}

	out := NewExecutor().Execute(context.Background(), node, execution.New(&models.Mission{ID: "m"}))
	assert.Equal(t, "sky", out.Port)
}
