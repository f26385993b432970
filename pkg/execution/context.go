// Package execution holds the per-run state every node executor reads from
// and writes to.
package execution

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/nova-hud/nova/pkg/models"
	"github.com/nova-hud/nova/pkg/template"
	"github.com/nova-hud/nova/pkg/textutil"
)

// ErrOutputExists is returned when a node output is written twice in one run.
var ErrOutputExists = errors.New("node output already recorded")

// Aggregation limits for upstream text.
const (
	MaxInputChars        = 12000
	OutputAggregateChars = 2200
	OutputPerNodeChars   = 360
)

var (
	identifierPattern = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)
	reservedNames     = map[string]struct{}{
		"__proto__":   {},
		"prototype":   {},
		"constructor": {},
	}
)

// Context is the state of one mission run. It must never be shared between runs.
type Context struct {
	Mission        *models.Mission
	RunID          string
	RunKey         string
	Attempt        int
	RunSource      models.RunSource
	LastRunAt      *time.Time
	Now            time.Time
	Scope          models.Scope
	TriggerPayload map[string]any
	Logger         *slog.Logger

	outputs   map[string]models.NodeOutput
	order     []string
	variables map[string]string
}

// Option configures a Context.
type Option func(*Context)

func WithRun(runID, runKey string, attempt int) Option {
	return func(c *Context) {
		c.RunID = runID
		c.RunKey = runKey
		c.Attempt = attempt
	}
}

func WithRunSource(source models.RunSource) Option {
	return func(c *Context) { c.RunSource = source }
}

func WithLastRunAt(lastRunAt *time.Time) Option {
	return func(c *Context) { c.LastRunAt = lastRunAt }
}

func WithNow(now time.Time) Option {
	return func(c *Context) { c.Now = now }
}

func WithScope(scope models.Scope) Option {
	return func(c *Context) { c.Scope = scope }
}

func WithTriggerPayload(payload map[string]any) Option {
	return func(c *Context) { c.TriggerPayload = payload }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Context) { c.Logger = logger }
}

// WithVariables seeds run variables. Names that fail SetVariable are dropped.
func WithVariables(vars map[string]string) Option {
	return func(c *Context) {
		for name, value := range vars {
			c.SetVariable(name, value)
		}
	}
}

// New creates a fresh run context for mission.
func New(mission *models.Mission, opts ...Option) *Context {
	c := &Context{
		Mission:   mission,
		RunSource: models.RunSourceManual,
		Attempt:   1,
		Now:       time.Now(),
		Logger:    slog.Default(),
		outputs:   make(map[string]models.NodeOutput),
		variables: make(map[string]string),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

func (c *Context) MissionID() string {
	if c.Mission == nil {
		return ""
	}

	return c.Mission.ID
}

func (c *Context) MissionLabel() string {
	if c.Mission == nil {
		return ""
	}

	if c.Mission.Label != "" {
		return c.Mission.Label
	}

	return c.Mission.ID
}

// Timezone returns the mission's IANA timezone, or "" when unset.
func (c *Context) Timezone() string {
	if c.Mission == nil {
		return ""
	}

	return c.Mission.Settings.Timezone
}

// NodeOutput returns the recorded output of a node.
func (c *Context) NodeOutput(nodeID string) (models.NodeOutput, bool) {
	out, ok := c.outputs[nodeID]

	return out, ok
}

// SetNodeOutput records the output of a node. Each node may be written once.
func (c *Context) SetNodeOutput(nodeID string, out models.NodeOutput) error {
	if _, exists := c.outputs[nodeID]; exists {
		return fmt.Errorf("%w: %s", ErrOutputExists, nodeID)
	}

	c.outputs[nodeID] = out
	c.order = append(c.order, nodeID)

	return nil
}

// Entry pairs a node id with its output.
type Entry struct {
	NodeID string
	Output models.NodeOutput
}

// Outputs returns every recorded output in execution order.
func (c *Context) Outputs() []Entry {
	entries := make([]Entry, 0, len(c.order))
	for _, id := range c.order {
		entries = append(entries, Entry{NodeID: id, Output: c.outputs[id]})
	}

	return entries
}

// Variables returns a copy of the run variables.
func (c *Context) Variables() map[string]string {
	return maps.Clone(c.variables)
}

// SetVariable assigns a run variable. Reserved and non-identifier names are
// refused and reported as false.
func (c *Context) SetVariable(name, value string) bool {
	if !ValidVariableName(name) {
		return false
	}

	c.variables[name] = value

	return true
}

// ValidVariableName reports whether name may be used as a run variable.
func ValidVariableName(name string) bool {
	if _, reserved := reservedNames[name]; reserved {
		return false
	}

	return identifierPattern.MatchString(name)
}

// ResolveExpr resolves "{{path}}" tokens against the run data.
func (c *Context) ResolveExpr(expr string) string {
	return template.Resolve(expr, c.Data())
}

// Data exposes run state to expressions and templates.
func (c *Context) Data() map[string]any {
	vars := make(map[string]any, len(c.variables))
	for k, v := range c.variables {
		vars[k] = v
	}

	now := c.Now
	if loc := c.location(); loc != nil {
		now = now.In(loc)
	}

	return map[string]any{
		"nodes":     c.NodesSnapshot(),
		"vars":      vars,
		"variables": vars,
		"trigger":   c.TriggerPayload,
		"mission": map[string]any{
			"id":    c.MissionID(),
			"label": c.MissionLabel(),
		},
		"run": map[string]any{
			"id":      c.RunID,
			"key":     c.RunKey,
			"attempt": c.Attempt,
			"source":  string(c.RunSource),
		},
		"now":  now.Format(time.RFC3339),
		"date": now.Format("2006-01-02"),
		"time": now.Format("15:04"),
	}
}

// NodesSnapshot returns every output keyed by node id. Each entry exposes the
// output fields both directly and under "output".
func (c *Context) NodesSnapshot() map[string]any {
	nodes := make(map[string]any, len(c.outputs))

	for id, out := range c.outputs {
		entry := map[string]any{
			"ok":    out.OK,
			"text":  out.Text,
			"data":  out.Data,
			"items": out.Items,
			"error": out.Error,
			"port":  out.Port,
		}
		entry["output"] = maps.Clone(entry)
		nodes[id] = entry
	}

	return nodes
}

func (c *Context) location() *time.Location {
	tz := c.Timezone()
	if tz == "" {
		return nil
	}

	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil
	}

	return loc
}

// Upstream returns the ids of executed ancestors of nodeID in execution
// order. Missions without connections treat every earlier output as upstream.
func (c *Context) Upstream(nodeID string) []string {
	if c.Mission == nil || len(c.Mission.Connections) == 0 {
		ids := make([]string, 0, len(c.order))
		for _, id := range c.order {
			if id != nodeID {
				ids = append(ids, id)
			}
		}

		return ids
	}

	ancestors := map[string]struct{}{}
	queue := []string{nodeID}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, conn := range c.Mission.Incoming(current) {
			if _, seen := ancestors[conn.Source]; seen {
				continue
			}

			ancestors[conn.Source] = struct{}{}
			queue = append(queue, conn.Source)
		}
	}

	ids := make([]string, 0, len(ancestors))
	for _, id := range c.order {
		if _, ok := ancestors[id]; ok && id != nodeID {
			ids = append(ids, id)
		}
	}

	return ids
}

// OutputText is the text a node output contributes downstream.
func OutputText(out models.NodeOutput) string {
	if text := strings.TrimSpace(out.Text); text != "" {
		return text
	}

	if len(out.Items) > 0 {
		return template.Stringify(out.Items)
	}

	return ""
}

// AggregateUpstream joins the text of successful upstream outputs, each under
// a label header when there is more than one, capping each node at perNode runes (0 means no cap) and the
// whole at total runes.
func (c *Context) AggregateUpstream(nodeID string, total, perNode int) string {
	type part struct{ id, text string }

	var parts []part

	for _, id := range c.Upstream(nodeID) {
		out := c.outputs[id]
		if !out.OK || !out.Triggered() {
			continue
		}

		text := OutputText(out)
		if text == "" {
			continue
		}

		if perNode > 0 {
			text = textutil.TruncateWords(text, perNode)
		}

		parts = append(parts, part{id: id, text: text})
	}

	if len(parts) == 1 {
		return textutil.Truncate(parts[0].text, total)
	}

	sections := make([]string, 0, len(parts))
	for _, p := range parts {
		sections = append(sections, fmt.Sprintf("[%s]\n%s", c.nodeLabel(p.id), p.text))
	}

	return textutil.Truncate(strings.Join(sections, "\n\n"), total)
}

// LastUpstreamText returns the text of the most recent non-empty upstream output.
func (c *Context) LastUpstreamText(nodeID string) string {
	upstream := c.Upstream(nodeID)

	for _, id := range slices.Backward(upstream) {
		if text := OutputText(c.outputs[id]); text != "" {
			return text
		}
	}

	return ""
}

// InputText resolves the input string of a data, AI or transform node:
// the explicit expression first, then the upstream aggregate, then the last
// non-empty upstream text.
func (c *Context) InputText(nodeID, inputExpression string) string {
	if strings.TrimSpace(inputExpression) != "" {
		if resolved := strings.TrimSpace(c.ResolveExpr(inputExpression)); resolved != "" {
			return textutil.Truncate(resolved, MaxInputChars)
		}
	}

	if aggregated := c.AggregateUpstream(nodeID, MaxInputChars, 0); aggregated != "" {
		return aggregated
	}

	return textutil.Truncate(c.LastUpstreamText(nodeID), MaxInputChars)
}

// UpstreamItems collects the items arrays of upstream outputs, and the
// data.results arrays of those without items.
func (c *Context) UpstreamItems(nodeID string) []any {
	var items []any

	for _, id := range c.Upstream(nodeID) {
		out := c.outputs[id]
		if !out.OK {
			continue
		}

		if len(out.Items) > 0 {
			items = append(items, out.Items...)

			continue
		}

		if results, ok := out.Data["results"].([]any); ok {
			items = append(items, results...)
		}
	}

	return items
}

func (c *Context) nodeLabel(nodeID string) string {
	if c.Mission != nil {
		if node, ok := c.Mission.NodeByID(nodeID); ok && node.Base().Label != "" {
			return node.Base().Label
		}
	}

	return nodeID
}
