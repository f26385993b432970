package transform

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"strconv"
	"strings"

	"github.com/nova-hud/nova/pkg/execution"
	"github.com/nova-hud/nova/pkg/metrics"
	"github.com/nova-hud/nova/pkg/models"
	"github.com/nova-hud/nova/pkg/nodes"
	"github.com/nova-hud/nova/pkg/sandbox"
	"github.com/nova-hud/nova/pkg/template"
)

// FilterExecutor keeps or excludes upstream items by a per-item expression.
// An item whose expression fails is excluded in keep mode and kept in
// exclude mode.
type FilterExecutor struct {
	sandbox *sandbox.Sandbox
	metrics *metrics.Metrics
}

func NewFilterExecutor(sb *sandbox.Sandbox, m *metrics.Metrics) *FilterExecutor {
	if sb == nil {
		sb = sandbox.New()
	}

	return &FilterExecutor{sandbox: sb, metrics: m}
}

func (e *FilterExecutor) Type() models.NodeType { return models.NodeTypeFilter }

func (e *FilterExecutor) Execute(ctx context.Context, node models.Node, ec *execution.Context) models.NodeOutput {
	n, ok := node.(*models.FilterNode)
	if !ok {
		return nodes.WrongType(node, e.Type())
	}

	exclude := n.Mode == "exclude"
	items := ec.UpstreamItems(n.ID)
	scope := scopeFor(n.ID, ec)
	kept := make([]any, 0, len(items))
	failures := 0

	requests := make([]sandbox.Request, len(items))
	for index, item := range items {
		requests[index] = sandbox.Request{
			Body:    sandbox.Expression(n.Expression),
			Scope:   scope,
			Globals: map[string]any{"item": item, "index": index},
			Timeout: sandbox.ItemTimeout,
		}
	}

	for index, outcome := range e.sandbox.RunBatch(ctx, requests) {
		item := items[index]

		if outcome.Err != nil {
			failures++

			if errors.Is(outcome.Err, sandbox.ErrTimeout) {
				e.metrics.SandboxTimeout(string(e.Type()))
			}

			if exclude {
				kept = append(kept, item)
			}

			continue
		}

		if outcome.Result.Truthy != exclude {
			kept = append(kept, item)
		}
	}

	return itemsOutput(kept, map[string]any{
		"total":    len(items),
		"count":    len(kept),
		"failures": failures,
	})
}

// SortExecutor orders upstream items by a field, stable for equal keys.
type SortExecutor struct{}

func NewSortExecutor() *SortExecutor { return &SortExecutor{} }

func (e *SortExecutor) Type() models.NodeType { return models.NodeTypeSort }

func (e *SortExecutor) Execute(_ context.Context, node models.Node, ec *execution.Context) models.NodeOutput {
	n, ok := node.(*models.SortNode)
	if !ok {
		return nodes.WrongType(node, e.Type())
	}

	items := slices.Clone(ec.UpstreamItems(n.ID))
	desc := n.Direction == "desc"

	slices.SortStableFunc(items, func(a, b any) int {
		ka, okA := sortKey(a, n.Field)
		kb, okB := sortKey(b, n.Field)

		// Items without the field sort last in both directions.
		switch {
		case !okA && !okB:
			return 0
		case !okA:
			return 1
		case !okB:
			return -1
		}

		c := compareKeys(ka, kb)
		if desc {
			return -c
		}

		return c
	})

	return itemsOutput(items, map[string]any{"count": len(items), "field": n.Field, "direction": n.Direction})
}

// DedupeExecutor drops items whose key was already seen, keeping the first.
type DedupeExecutor struct{}

func NewDedupeExecutor() *DedupeExecutor { return &DedupeExecutor{} }

func (e *DedupeExecutor) Type() models.NodeType { return models.NodeTypeDedupe }

func (e *DedupeExecutor) Execute(_ context.Context, node models.Node, ec *execution.Context) models.NodeOutput {
	n, ok := node.(*models.DedupeNode)
	if !ok {
		return nodes.WrongType(node, e.Type())
	}

	items := ec.UpstreamItems(n.ID)
	seen := make(map[string]struct{}, len(items))
	unique := make([]any, 0, len(items))

	for _, item := range items {
		key, ok := sortKey(item, n.Field)
		if !ok {
			unique = append(unique, item)

			continue
		}

		normalized := strings.ToLower(strings.TrimSpace(template.Stringify(key)))
		if _, dup := seen[normalized]; dup {
			continue
		}

		seen[normalized] = struct{}{}
		unique = append(unique, item)
	}

	return itemsOutput(unique, map[string]any{
		"count":   len(unique),
		"removed": len(items) - len(unique),
	})
}

func sortKey(item any, field string) (any, bool) {
	if field == "" {
		return item, item != nil
	}

	object, ok := item.(map[string]any)
	if !ok {
		return nil, false
	}

	value, ok := template.Lookup(object, field)
	if !ok || value == nil {
		return nil, false
	}

	return value, true
}

func compareKeys(a, b any) int {
	fa, okA := number(a)
	fb, okB := number(b)

	if okA && okB {
		return cmp.Compare(fa, fb)
	}

	return strings.Compare(strings.ToLower(template.Stringify(a)), strings.ToLower(template.Stringify(b)))
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)

		return f, err == nil
	}

	return 0, false
}

func itemsOutput(items []any, data map[string]any) models.NodeOutput {
	return models.NodeOutput{OK: true, Items: items, Data: data, Text: execution.DescribeItems(items)}
}
