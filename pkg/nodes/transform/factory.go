package transform

func (e *SetVariablesExecutor) Name() string { return "Set Variables" }

func (e *SetVariablesExecutor) Description() string {
	return "Assigns run variables from resolved expressions"
}

func (e *SetVariablesExecutor) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"assignments": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"name":  map[string]any{"type": "string"},
						"value": map[string]any{"type": "string"},
					},
					"required": []string{"name"},
				},
			},
		},
		"required": []string{"assignments"},
	}
}

func (e *CodeExecutor) Name() string { return "Code" }

func (e *CodeExecutor) Description() string {
	return "Runs a JavaScript function body in a sandbox with $input, $vars and $nodes in scope"
}

func (e *CodeExecutor) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"code": map[string]any{
				"type":     "string",
				"examples": []string{`return $input.split("\n").length;`},
			},
		},
		"required": []string{"code"},
	}
}

func (e *FormatExecutor) Name() string { return "Format" }

func (e *FormatExecutor) Description() string {
	return "Renders a text, markdown or JSON template over the run data"
}

func (e *FormatExecutor) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"template": map[string]any{
				"type": "string",
				"examples": []string{
					"Today in {{vars.city}}: {{nodes.weather.text}}",
					"{{ range .nodes.search.items }}- {{ .title }}\n{{ end }}",
				},
			},
			"outputFormat": map[string]any{"type": "string", "enum": []string{"text", "markdown", "json"}},
		},
		"required": []string{"template"},
	}
}

func (e *FilterExecutor) Name() string { return "Filter" }

func (e *FilterExecutor) Description() string {
	return "Keeps or excludes upstream items with a per-item JavaScript expression over item and index"
}

func (e *FilterExecutor) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"expression": map[string]any{"type": "string", "examples": []string{`item.score > 10`}},
			"mode":       map[string]any{"type": "string", "enum": []string{"keep", "exclude"}, "default": "keep"},
		},
		"required": []string{"expression"},
	}
}

func (e *SortExecutor) Name() string { return "Sort" }

func (e *SortExecutor) Description() string { return "Orders upstream items by a field" }

func (e *SortExecutor) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"field":     map[string]any{"type": "string"},
			"direction": map[string]any{"type": "string", "enum": []string{"asc", "desc"}, "default": "asc"},
		},
	}
}

func (e *DedupeExecutor) Name() string { return "Dedupe" }

func (e *DedupeExecutor) Description() string {
	return "Drops upstream items whose key was already seen"
}

func (e *DedupeExecutor) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"field": map[string]any{"type": "string"},
		},
	}
}
