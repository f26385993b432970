package switchnode

func (e *Executor) Name() string { return "Switch" }

func (e *Executor) Description() string {
	return "Routes to the port of the first case equal to the resolved value, or to the default port"
}

func (e *Executor) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"expression": map[string]any{
				"type":     "string",
				"examples": []string{"nodes.classify.data.category", "{{vars.mode}}"},
			},
			"cases": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"value": map[string]any{"type": "string"},
						"port":  map[string]any{"type": "string"},
					},
					"required": []string{"value"},
				},
			},
			"defaultPort": map[string]any{"type": "string", "default": "default"},
		},
		"required": []string{"expression"},
	}
}
