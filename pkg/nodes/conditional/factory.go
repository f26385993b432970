package conditional

func (e *Executor) Name() string { return "Condition" }

func (e *Executor) Description() string {
	return "Routes to the true or false port from a JavaScript expression or declarative rules"
}

func (e *Executor) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"expression": map[string]any{
				"type":     "string",
				"examples": []string{`$nodes.prices.data.change > 0`, `$input.includes("alert")`},
			},
			"rules": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"field": map[string]any{"type": "string"},
						"operator": map[string]any{
							"type": "string",
							"enum": []string{
								OpEquals, OpNotEquals, OpContains, OpNotContains, OpStartsWith, OpEndsWith,
								OpGreater, OpGreaterEq, OpLess, OpLessEq, OpEmpty, OpNotEmpty, OpMatches,
							},
						},
						"value": map[string]any{"type": "string"},
					},
					"required": []string{"field", "operator"},
				},
			},
			"logic": map[string]any{"type": "string", "enum": []string{LogicAll, LogicAny}, "default": LogicAll},
		},
	}
}
