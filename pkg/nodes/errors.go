// Package nodes holds the error codes shared by the node executor packages.
package nodes

import (
	"fmt"

	"github.com/nova-hud/nova/pkg/models"
)

// Error codes carried in NodeOutput.ErrorCode.
const (
	CodeInvalidNode      = "INVALID_NODE"
	CodeExecution        = "EXECUTION_ERROR"
	CodeTimeout          = "TIMEOUT"
	CodeCollaborator     = "COLLABORATOR_ERROR"
	CodeNoInput          = "NO_INPUT"
	CodeInvalidTimezone  = "INVALID_TIMEZONE"
	CodeInvalidTime      = "INVALID_TRIGGER_TIME"
	CodeDispatchRejected = "DISPATCH_REJECTED"
	CodePanic            = "EXECUTOR_PANIC"
)

// WrongType is the output of an executor handed a node of another type.
func WrongType(node models.Node, want models.NodeType) models.NodeOutput {
	got := "nil"
	if node != nil {
		got = string(node.Base().Type)
	}

	return models.Failed(fmt.Sprintf("executor for %s received %s node", want, got), CodeInvalidNode)
}
