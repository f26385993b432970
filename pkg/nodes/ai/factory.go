package ai

import "fmt"

var names = map[string]string{
	"ai-summarize": "AI Summarize",
	"ai-classify":  "AI Classify",
	"ai-extract":   "AI Extract",
	"ai-generate":  "AI Generate",
	"ai-chat":      "AI Chat",
}

func (e *Executor) Name() string { return names[string(e.nodeType)] }

func (e *Executor) Description() string {
	return fmt.Sprintf("Calls the configured LLM with up to %d output tokens", maxTokens[e.nodeType])
}

func (e *Executor) Schema() map[string]any {
	properties := map[string]any{
		"inputExpression": map[string]any{"type": "string"},
		"prompt":          map[string]any{"type": "string"},
		"systemPrompt":    map[string]any{"type": "string"},
		"integration":     map[string]any{"type": "string"},
		"model":           map[string]any{"type": "string"},
		"detailLevel":     map[string]any{"type": "string", "enum": []string{"concise", "standard", "detailed"}},
	}

	schema := map[string]any{"type": "object", "properties": properties}

	switch e.nodeType {
	case "ai-classify":
		properties["categories"] = map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "minItems": 1}
		schema["required"] = []string{"categories"}
	case "ai-extract":
		properties["fields"] = map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "minItems": 1}
		schema["required"] = []string{"fields"}
	case "ai-chat":
		properties["message"] = map[string]any{"type": "string"}
	}

	return schema
}
