// Package conditional routes a run to the true or false port of a condition node.
package conditional

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/nova-hud/nova/pkg/execution"
	"github.com/nova-hud/nova/pkg/metrics"
	"github.com/nova-hud/nova/pkg/models"
	"github.com/nova-hud/nova/pkg/nodes"
	"github.com/nova-hud/nova/pkg/sandbox"
	"github.com/nova-hud/nova/pkg/template"
)

const (
	LogicAll = "all"
	LogicAny = "any"
)

// Rule operators.
const (
	OpEquals      = "equals"
	OpNotEquals   = "not_equals"
	OpContains    = "contains"
	OpNotContains = "not_contains"
	OpStartsWith  = "starts_with"
	OpEndsWith    = "ends_with"
	OpGreater     = "gt"
	OpGreaterEq   = "gte"
	OpLess        = "lt"
	OpLessEq      = "lte"
	OpEmpty       = "is_empty"
	OpNotEmpty    = "is_not_empty"
	OpMatches     = "matches"
)

var errUnknownOperator = errors.New("unknown operator")

// Executor evaluates a sandboxed expression, or the declarative rules when no
// expression is set.
type Executor struct {
	sandbox *sandbox.Sandbox
	metrics *metrics.Metrics
}

func NewExecutor(sb *sandbox.Sandbox, m *metrics.Metrics) *Executor {
	if sb == nil {
		sb = sandbox.New()
	}

	return &Executor{sandbox: sb, metrics: m}
}

func (e *Executor) Type() models.NodeType { return models.NodeTypeCondition }

func (e *Executor) Execute(ctx context.Context, node models.Node, ec *execution.Context) models.NodeOutput {
	n, ok := node.(*models.ConditionNode)
	if !ok {
		return nodes.WrongType(node, e.Type())
	}

	var (
		result bool
		err    error
	)

	switch {
	case strings.TrimSpace(n.Expression) != "":
		result, err = e.evaluateExpression(ctx, n, ec)
	case len(n.Rules) > 0:
		result, err = evaluateRules(n, ec)
	default:
		err = errors.New("condition has neither an expression nor rules")
	}

	if err != nil {
		out := models.Failed("condition evaluation failed: "+err.Error(), nodes.CodeExecution)
		if errors.Is(err, sandbox.ErrTimeout) {
			out.ErrorCode = nodes.CodeTimeout
		}

		out.Port = models.PortError

		return out
	}

	port := models.PortFalse
	if result {
		port = models.PortTrue
	}

	return models.NodeOutput{
		OK:   true,
		Text: port,
		Port: port,
		Data: map[string]any{"result": result},
	}
}

func (e *Executor) evaluateExpression(ctx context.Context, n *models.ConditionNode, ec *execution.Context) (bool, error) {
	result, err := e.sandbox.Run(ctx, sandbox.Request{
		Body: sandbox.Expression(n.Expression),
		Scope: sandbox.Scope{
			Input: ec.InputText(n.ID, ""),
			Vars:  ec.Variables(),
			Nodes: ec.NodesSnapshot(),
		},
		Timeout: sandbox.ItemTimeout,
	})
	if err != nil {
		if errors.Is(err, sandbox.ErrTimeout) {
			e.metrics.SandboxTimeout(string(e.Type()))
		}

		return false, err
	}

	return result.Truthy, nil
}

func evaluateRules(n *models.ConditionNode, ec *execution.Context) (bool, error) {
	data := ec.Data()
	anyMode := n.Logic == LogicAny

	for i, rule := range n.Rules {
		matched, err := evaluateRule(rule, data)
		if err != nil {
			return false, fmt.Errorf("rule %d: %w", i, err)
		}

		if anyMode && matched {
			return true, nil
		}

		if !anyMode && !matched {
			return false, nil
		}
	}

	return !anyMode, nil
}

// FieldValue resolves a rule field: "{{...}}" tokens are resolved, a path
// under a known root resolves to its value or "", and anything else is taken
// literally.
func FieldValue(field string, data map[string]any) string {
	if strings.Contains(field, "{{") {
		return template.Resolve(field, data)
	}

	path := strings.TrimSpace(field)
	if value, ok := template.Lookup(data, path); ok {
		return template.Stringify(value)
	}

	root, _, _ := strings.Cut(strings.TrimPrefix(path, "$"), ".")
	if _, known := data[root]; known {
		return ""
	}

	return path
}

func evaluateRule(rule models.ConditionRule, data map[string]any) (bool, error) {
	left := strings.TrimSpace(FieldValue(rule.Field, data))
	right := strings.TrimSpace(template.Resolve(rule.Value, data))

	switch strings.ToLower(rule.Operator) {
	case OpEquals, "eq", "==":
		return strings.EqualFold(left, right), nil
	case OpNotEquals, "neq", "!=":
		return !strings.EqualFold(left, right), nil
	case OpContains:
		return strings.Contains(strings.ToLower(left), strings.ToLower(right)), nil
	case OpNotContains:
		return !strings.Contains(strings.ToLower(left), strings.ToLower(right)), nil
	case OpStartsWith:
		return strings.HasPrefix(strings.ToLower(left), strings.ToLower(right)), nil
	case OpEndsWith:
		return strings.HasSuffix(strings.ToLower(left), strings.ToLower(right)), nil
	case OpGreater, ">":
		return compare(left, right, func(c int) bool { return c > 0 }), nil
	case OpGreaterEq, ">=":
		return compare(left, right, func(c int) bool { return c >= 0 }), nil
	case OpLess, "<":
		return compare(left, right, func(c int) bool { return c < 0 }), nil
	case OpLessEq, "<=":
		return compare(left, right, func(c int) bool { return c <= 0 }), nil
	case OpEmpty:
		return left == "", nil
	case OpNotEmpty:
		return left != "", nil
	case OpMatches:
		re, err := regexp.Compile(right)
		if err != nil {
			return false, fmt.Errorf("invalid pattern %q: %w", right, err)
		}

		return re.MatchString(left), nil
	default:
		return false, fmt.Errorf("%w %q", errUnknownOperator, rule.Operator)
	}
}

// compare orders both sides numerically. Non-numeric operands never match.
func compare(left, right string, accept func(int) bool) bool {
	l, errL := strconv.ParseFloat(left, 64)
	r, errR := strconv.ParseFloat(right, 64)

	if errL != nil || errR != nil {
		return false
	}

	switch {
	case l < r:
		return accept(-1)
	case l > r:
		return accept(1)
	default:
		return accept(0)
	}
}
