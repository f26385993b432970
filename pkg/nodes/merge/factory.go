package merge

func (e *Executor) Name() string { return "Merge" }

func (e *Executor) Description() string {
	return "Waits for all (or any) incoming branches and combines their text, items and data"
}

func (e *Executor) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"mode": map[string]any{
				"type":    "string",
				"enum":    []string{MergeModeAll, MergeModeAny},
				"default": MergeModeAll,
			},
		},
	}
}
