// Package registry maps node types to their executors and validates node
// configuration against each executor's schema.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/xeipuuv/gojsonschema"

	"github.com/nova-hud/nova/pkg/execution"
	"github.com/nova-hud/nova/pkg/metrics"
	"github.com/nova-hud/nova/pkg/models"
	"github.com/nova-hud/nova/pkg/nodes"
	"github.com/nova-hud/nova/pkg/protocol"
)

// ErrNoExecutor is returned for node types without a registered executor.
var ErrNoExecutor = errors.New("no executor registered")

// Description is the published metadata of one node type.
type Description struct {
	Type        models.NodeType `json:"type"`
	Kind        models.NodeKind `json:"kind"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Schema      map[string]any  `json:"schema,omitempty"`
}

type Registry struct {
	logger    *slog.Logger
	metrics   *metrics.Metrics
	validate  *validator.Validate
	executors map[models.NodeType]protocol.Executor
	schemas   map[models.NodeType]*gojsonschema.Schema
}

func NewRegistry(log *slog.Logger, m *metrics.Metrics) *Registry {
	return &Registry{
		logger:    log,
		metrics:   m,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		executors: make(map[models.NodeType]protocol.Executor),
		schemas:   make(map[models.NodeType]*gojsonschema.Schema),
	}
}

// Register adds an executor, replacing any previous one for its type. The
// schema of a Descriptor is compiled once here.
func (r *Registry) Register(executor protocol.Executor) {
	nodeType := executor.Type()
	r.executors[nodeType] = executor

	descriptor, ok := executor.(protocol.Descriptor)
	if !ok {
		return
	}

	schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(descriptor.Schema()))
	if err != nil {
		r.logger.Warn("Invalid node schema", "node_type", nodeType, "error", err)

		return
	}

	r.schemas[nodeType] = schema
}

// Executor returns the executor for a node type.
func (r *Registry) Executor(nodeType models.NodeType) (protocol.Executor, bool) {
	executor, ok := r.executors[nodeType]

	return executor, ok
}

// Types returns the registered node types in catalogue order.
func (r *Registry) Types() []models.NodeType {
	types := make([]models.NodeType, 0, len(r.executors))

	for _, t := range models.AllNodeTypes() {
		if _, ok := r.executors[t]; ok {
			types = append(types, t)
		}
	}

	return types
}

// Describe returns the metadata of every registered node type.
func (r *Registry) Describe() []Description {
	types := r.Types()
	descriptions := make([]Description, 0, len(types))

	for _, t := range types {
		d := Description{Type: t, Kind: t.Kind(), Name: string(t)}

		if descriptor, ok := r.executors[t].(protocol.Descriptor); ok {
			d.Name = descriptor.Name()
			d.Description = descriptor.Description()
			d.Schema = descriptor.Schema()
		}

		descriptions = append(descriptions, d)
	}

	return descriptions
}

// Execute runs a node through its executor. Missing executors and panics
// become ok:false outputs.
func (r *Registry) Execute(ctx context.Context, node models.Node, ec *execution.Context) (out models.NodeOutput) {
	base := node.Base()
	started := time.Now()

	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("Executor panic",
				"node_id", base.ID,
				"node_type", base.Type,
				"panic", p,
				"stack", string(debug.Stack()),
			)

			out = models.Failed(fmt.Sprintf("executor panic: %v", p), nodes.CodePanic)
		}

		r.metrics.ObserveNode(string(base.Type), out.OK, time.Since(started))
	}()

	executor, ok := r.executors[base.Type]
	if !ok {
		return models.Failed(fmt.Sprintf("%s: %s", ErrNoExecutor, base.Type), nodes.CodeInvalidNode)
	}

	return executor.Execute(ctx, node, ec)
}

// ValidateNode checks a node's struct tags and its executor schema.
func (r *Registry) ValidateNode(node models.Node) error {
	base := node.Base()

	if _, ok := r.executors[base.Type]; !ok {
		return fmt.Errorf("node %q: %w: %s", base.ID, ErrNoExecutor, base.Type)
	}

	if err := r.validate.Struct(node); err != nil {
		return fmt.Errorf("node %q: %w", base.ID, err)
	}

	schema, ok := r.schemas[base.Type]
	if !ok {
		return nil
	}

	document, err := nodeDocument(node)
	if err != nil {
		return fmt.Errorf("node %q: %w", base.ID, err)
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(document))
	if err != nil {
		return fmt.Errorf("node %q: %w", base.ID, err)
	}

	if !result.Valid() {
		messages := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			messages = append(messages, e.String())
		}

		slices.Sort(messages)

		return fmt.Errorf("node %q: schema validation failed: %s", base.ID, strings.Join(messages, "; "))
	}

	return nil
}

// ValidateMission runs the structural mission checks and validates every node.
func (r *Registry) ValidateMission(mission *models.Mission) error {
	if err := mission.Validate(); err != nil {
		return err
	}

	var errs []error

	for _, node := range mission.Nodes {
		if err := r.ValidateNode(node); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", models.ErrInvalidMission, errors.Join(errs...))
	}

	return nil
}

// nodeDocument is the JSON form of a node with null and empty-string fields
// dropped, so that unset optional fields do not fail type or pattern checks.
func nodeDocument(node models.Node) (map[string]any, error) {
	raw, err := json.Marshal(node)
	if err != nil {
		return nil, err
	}

	var document map[string]any
	if err := json.Unmarshal(raw, &document); err != nil {
		return nil, err
	}

	for key, value := range document {
		if value == nil || value == "" {
			delete(document, key)
		}
	}

	return document, nil
}

// HealthCheck reports whether any executor is registered.
func (r *Registry) HealthCheck() (string, bool) {
	if len(r.executors) == 0 {
		return "No node executors registered", false
	}

	return fmt.Sprintf("%d node executors registered", len(r.executors)), true
}
