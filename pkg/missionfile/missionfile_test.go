package missionfile

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/nova-hud/nova/pkg/models"
)

const yamlMission = `
id: m-yaml
label: Crypto at nine
chatIds: ["42"]
settings:
  timezone: America/New_York
nodes:
  - id: t
    type: schedule-trigger
    triggerMode: daily
    triggerTime: "09:00"
  - id: prices
    type: coinbase
    assets: [BTC, ETH]
  - id: out
    type: telegram-output
connections:
  - id: c1
    source: t
    target: prices
  - id: c2
    source: prices:default
    target: out
`

const jsonMission = `{
	"id": "m-json",
	"label": "Manual",
	"enabled": false,
	"nodes": [{"id": "t", "type": "manual-trigger"}]
}`

func writeFile(t *testing.T, path, content string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestDecode_YAML(t *testing.T) {
	mission, err := Decode("crypto.yaml", []byte(yamlMission))
	require.NoError(t, err)

	assert.Equal(t, "m-yaml", mission.ID)
	assert.True(t, mission.Enabled)
	assert.Equal(t, "America/New_York", mission.Settings.Timezone)
	require.Len(t, mission.Nodes, 3)

	trigger, ok := mission.Nodes[0].(*models.ScheduleTriggerNode)
	require.True(t, ok)
	assert.Equal(t, "09:00", trigger.TriggerTime)

	coinbase, ok := mission.Nodes[1].(*models.CoinbaseNode)
	require.True(t, ok)
	assert.Equal(t, []string{"BTC", "ETH"}, coinbase.Assets)

	assert.Equal(t, "prices", mission.Connections[1].Source)
	assert.Equal(t, models.PortDefault, mission.Connections[1].SourcePort)
}

func TestDecode_Errors(t *testing.T) {
	_, err := Decode("mission.toml", []byte(`id = "x"`))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = Decode("bad.yaml", []byte("id: [unclosed"))
	assert.Error(t, err)

	_, err = Decode("bad.json", []byte(`{"id":"m","nodes":[{"id":"x","type":"teleport"}]}`))
	assert.ErrorIs(t, err, models.ErrUnknownNodeType)
}

func TestEncode_YAMLRoundTrip(t *testing.T) {
	mission, err := Decode("crypto.yaml", []byte(yamlMission))
	require.NoError(t, err)

	data, err := Encode(mission, ".yml")
	require.NoError(t, err)

	again, err := Decode("again.yml", data)
	require.NoError(t, err)

	if diff := cmp.Diff(mission, again); diff != "" {
		t.Errorf("mission changed after YAML round trip (-want +got):\n%s", diff)
	}

	_, err = Encode(mission, ".xml")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestLoadDir(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "b", "crypto.yaml"), yamlMission)
	writeFile(t, filepath.Join(root, "a.json"), jsonMission)
	writeFile(t, filepath.Join(root, "notes.md"), "# not a mission")

	missions, err := LoadDir(root)
	require.NoError(t, err)
	require.Len(t, missions, 2)

	assert.Equal(t, "m-json", missions[0].ID)
	assert.False(t, missions[0].Enabled)
	assert.Equal(t, "m-yaml", missions[1].ID)

	writeFile(t, filepath.Join(root, "c.yml"), "id: [")

	_, err = LoadDir(root)
	assert.Error(t, err)
}

func TestMatches(t *testing.T) {
	assert.True(t, Matches("daily.yaml"))
	assert.True(t, Matches("team/crypto/daily.yml"))
	assert.True(t, Matches("m.json"))
	assert.False(t, Matches("README.md"))
}

type applied struct {
	mu    sync.Mutex
	calls [][]string
}

func (a *applied) apply(_ context.Context, missions []*models.Mission) error {
	ids := make([]string, 0, len(missions))
	for _, mission := range missions {
		ids = append(ids, mission.ID)
	}

	a.mu.Lock()
	a.calls = append(a.calls, ids)
	a.mu.Unlock()

	return nil
}

func (a *applied) last() []string {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.calls) == 0 {
		return nil
	}

	return a.calls[len(a.calls)-1]
}

func TestWatch_ReloadsOnChange(t *testing.T) {
	defer goleak.VerifyNone(t)

	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.json"), jsonMission)

	ctx, cancel := context.WithCancel(context.Background())
	recorder := &applied{}
	done := make(chan error, 1)

	go func() {
		done <- WatchWithDebounce(ctx, root, 20*time.Millisecond, slog.Default(), recorder.apply)
	}()

	require.Eventually(t, func() bool {
		return cmp.Equal(recorder.last(), []string{"m-json"})
	}, 2*time.Second, 10*time.Millisecond)

	writeFile(t, filepath.Join(root, "crypto.yaml"), yamlMission)

	require.Eventually(t, func() bool {
		return cmp.Equal(recorder.last(), []string{"m-yaml", "m-json"}) ||
			cmp.Equal(recorder.last(), []string{"m-json", "m-yaml"})
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestWatch_MissingRoot(t *testing.T) {
	err := Watch(context.Background(), filepath.Join(t.TempDir(), "missing"), slog.Default(), (&applied{}).apply)

	assert.Error(t, err)
}
