package models

// NodeOutput is the result of executing one node. It is written once per node
// per run and never mutated afterwards.
type NodeOutput struct {
	OK        bool           `json:"ok"`
	Text      string         `json:"text,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	Items     []any          `json:"items,omitempty"`
	Error     string         `json:"error,omitempty"`
	ErrorCode string         `json:"errorCode,omitempty"`
	Port      string         `json:"port,omitempty"`
}

// Failed builds an ok:false output.
func Failed(message, code string) NodeOutput {
	return NodeOutput{OK: false, Error: message, ErrorCode: code}
}

// Triggered reports the gate decision of a trigger output. Outputs that carry
// no decision count as triggered.
func (o NodeOutput) Triggered() bool {
	if o.Data == nil {
		return true
	}

	triggered, ok := o.Data["triggered"].(bool)
	if !ok {
		return true
	}

	return triggered
}
