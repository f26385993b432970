// Package protocol defines the contracts between the runner, node executors
// and the external collaborators they call.
package protocol

import (
	"context"

	"github.com/nova-hud/nova/pkg/execution"
	"github.com/nova-hud/nova/pkg/models"
)

// Executor runs one node type. Executors never panic or return Go errors;
// failures are reported as ok:false outputs.
type Executor interface {
	// Type returns the node type this executor handles
	Type() models.NodeType

	// Execute runs the node against the run context
	Execute(ctx context.Context, node models.Node, ec *execution.Context) models.NodeOutput
}

// Descriptor publishes human-facing metadata about an executor.
type Descriptor interface {
	// Name returns the human-readable name for this node type
	Name() string

	// Description returns a description of what this node does
	Description() string

	// Schema returns the JSON schema for configuring this node
	Schema() map[string]any
}
