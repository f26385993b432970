package flow

func (e *SplitExecutor) Name() string { return "Split" }

func (e *SplitExecutor) Description() string {
	return "Fans the upstream output out to every outgoing connection"
}

func (e *SplitExecutor) Schema() map[string]any {
	return map[string]any{"type": "object"}
}

func (e *WaitExecutor) Name() string { return "Wait" }

func (e *WaitExecutor) Description() string {
	return "Pauses the run for a duration of at most five minutes"
}

func (e *WaitExecutor) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"durationMs": map[string]any{"type": "integer", "minimum": 0, "maximum": MaxWait.Milliseconds()},
		},
		"required": []string{"durationMs"},
	}
}

func (e *LoopExecutor) Name() string { return "Loop" }

func (e *LoopExecutor) Description() string {
	return "Maps each upstream item through an optional JavaScript expression over item and index"
}

func (e *LoopExecutor) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"inputExpression": map[string]any{"type": "string", "examples": []string{"{{nodes.search.items}}"}},
			"expression":      map[string]any{"type": "string", "examples": []string{"item.title.toUpperCase()"}},
			"maxIterations": map[string]any{
				"type":    "integer",
				"minimum": 0,
				"maximum": MaxIterations,
				"default": DefaultMaxIterations,
			},
		},
	}
}

func (e *StickyNoteExecutor) Name() string { return "Sticky Note" }

func (e *StickyNoteExecutor) Description() string { return "Canvas annotation, never executed" }

func (e *StickyNoteExecutor) Schema() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{"content": map[string]any{"type": "string"}},
	}
}
