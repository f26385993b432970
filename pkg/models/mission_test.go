package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const morningMission = `{
	"id": "m-1",
	"label": "Morning briefing",
	"chatIds": ["42"],
	"settings": {"timezone": "America/New_York"},
	"nodes": [
		{"id": "t", "type": "schedule-trigger", "triggerMode": "daily", "triggerTime": "09:00"},
		{"id": "c", "type": "coinbase", "label": "Crypto", "assets": ["ETH", "SUI"]},
		{"id": "s", "type": "ai-summarize", "prompt": "Summarize", "detailLevel": "standard"},
		{"id": "o", "type": "telegram-output", "chatIds": ["42"], "messageTemplate": "{{nodes.s.text}}"},
		{"id": "n", "type": "sticky-note", "content": "remember"}
	],
	"connections": [
		{"id": "c1", "source": "t", "target": "c"},
		{"id": "c2", "source": "c:default", "target": "s"},
		{"id": "c3", "source": "s", "target": "o"}
	]
}`

func TestMission_UnmarshalJSON_DecodesVariants(t *testing.T) {
	var mission Mission
	require.NoError(t, json.Unmarshal([]byte(morningMission), &mission))

	assert.Equal(t, "m-1", mission.ID)
	assert.True(t, mission.Enabled)
	require.Len(t, mission.Nodes, 5)

	trigger, ok := mission.Nodes[0].(*ScheduleTriggerNode)
	require.True(t, ok)
	assert.Equal(t, "daily", trigger.TriggerMode)
	assert.Equal(t, NodeTypeScheduleTrigger, trigger.Base().Type)

	coinbase, ok := mission.Nodes[1].(*CoinbaseNode)
	require.True(t, ok)
	assert.Equal(t, []string{"ETH", "SUI"}, coinbase.Assets)

	summarize, ok := mission.Nodes[2].(*AISummarizeNode)
	require.True(t, ok)
	assert.Equal(t, "standard", summarize.DetailLevel)

	output, ok := mission.Nodes[3].(OutputNode)
	require.True(t, ok)
	assert.Equal(t, "{{nodes.s.text}}", output.Output().MessageTemplate)

	assert.Equal(t, "c", mission.Connections[1].Source)
	assert.Equal(t, "default", mission.Connections[1].SourcePort)
	assert.NoError(t, mission.Validate())
}

func TestMission_UnmarshalJSON_UnknownType(t *testing.T) {
	var mission Mission
	err := json.Unmarshal([]byte(`{"id":"m","nodes":[{"id":"x","type":"teleport"}]}`), &mission)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownNodeType)
}

func TestMission_RoundTripKeepsTypeTag(t *testing.T) {
	var mission Mission
	require.NoError(t, json.Unmarshal([]byte(morningMission), &mission))

	raw, err := json.Marshal(&mission)
	require.NoError(t, err)

	var again Mission
	require.NoError(t, json.Unmarshal(raw, &again))
	assert.Equal(t, mission.Nodes, again.Nodes)
}

func TestMission_Validate(t *testing.T) {
	testCases := []struct {
		name    string
		mission Mission
	}{
		{
			name:    "missing id",
			mission: Mission{Nodes: []Node{&ManualTriggerNode{NodeBase{ID: "a", Type: NodeTypeManualTrigger}}}},
		},
		{
			name: "duplicate node id",
			mission: Mission{ID: "m", Nodes: []Node{
				&ManualTriggerNode{NodeBase{ID: "a", Type: NodeTypeManualTrigger}},
				&SplitNode{NodeBase{ID: "a", Type: NodeTypeSplit}},
			}},
		},
		{
			name: "dangling connection",
			mission: Mission{
				ID:          "m",
				Nodes:       []Node{&SplitNode{NodeBase{ID: "a", Type: NodeTypeSplit}}},
				Connections: []*Connection{{ID: "c", Source: "a", Target: "ghost"}},
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.mission.Validate()
			assert.ErrorIs(t, err, ErrInvalidMission)
		})
	}
}

func TestConnection_Validation_MissingFields(t *testing.T) {
	validate := validator.New(validator.WithRequiredStructEnabled())

	assert.NoError(t, validate.Struct(&Connection{ID: "c", Source: "a", Target: "b"}))
	assert.Error(t, validate.Struct(&Connection{ID: "c", Source: "a"}))
	assert.Error(t, validate.Struct(&Connection{ID: "c", Target: "b"}))
}

func TestNodeType_EveryTypeDecodes(t *testing.T) {
	for _, nodeType := range AllNodeTypes() {
		t.Run(string(nodeType), func(t *testing.T) {
			node, err := NewNode(nodeType)
			require.NoError(t, err)
			assert.Equal(t, nodeType, node.Base().Type)
			assert.NotEmpty(t, nodeType.Kind())
		})
	}
}

func TestParsePortID(t *testing.T) {
	nodeID, port, ok := ParsePortID("cond-1:true")
	assert.True(t, ok)
	assert.Equal(t, "cond-1", nodeID)
	assert.Equal(t, "true", port)

	_, _, ok = ParsePortID("cond-1")
	assert.False(t, ok)
	assert.Equal(t, "a:b", MakePortID("a", "b"))
}

func TestNodeOutput_Triggered(t *testing.T) {
	assert.True(t, NodeOutput{OK: true}.Triggered())
	assert.False(t, NodeOutput{OK: true, Data: map[string]any{"triggered": false}}.Triggered())
	assert.True(t, NodeOutput{OK: true, Data: map[string]any{"triggered": true}}.Triggered())
}

func TestScheduleTrigger_NextRunAt(t *testing.T) {
	node := &ScheduleTriggerNode{TriggerMode: "daily", TriggerTime: "09:00"}

	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	from := time.Date(2026, 3, 10, 8, 0, 0, 0, ny)
	next, err := node.NextRunAt("America/New_York", from)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 10, 9, 0, 0, 0, ny).Unix(), next.Unix())

	weekly := &ScheduleTriggerNode{TriggerMode: "weekly", TriggerTime: "07:30", TriggerDays: []string{"Monday", "fri"}}
	expr, err := weekly.CronExpression("")
	require.NoError(t, err)
	assert.Equal(t, "CRON_TZ=UTC 30 7 * * 1,5", expr)

	_, err = (&ScheduleTriggerNode{TriggerMode: "daily", TriggerTime: "25:00"}).CronExpression("")
	assert.ErrorIs(t, err, ErrInvalidSchedule)
}

func TestAllNodeTypes_CatalogueIsComplete(t *testing.T) {
	types := AllNodeTypes()

	assert.Len(t, types, len(nodeKinds))
	assert.Equal(t, NodeTypeScheduleTrigger, types[0])
	assert.Equal(t, NodeTypeStickyNote, types[len(types)-1])

	types[0] = "mutated"
	assert.Equal(t, NodeTypeScheduleTrigger, AllNodeTypes()[0])
}
