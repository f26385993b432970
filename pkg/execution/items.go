package execution

import (
	"strings"

	"github.com/nova-hud/nova/pkg/template"
)

// DescribeItems renders items one per line, preferring a title or text field.
func DescribeItems(items []any) string {
	lines := make([]string, 0, len(items))

	for _, item := range items {
		line := template.Stringify(item)

		if object, ok := item.(map[string]any); ok {
			for _, key := range []string{"title", "text", "name", "snippet"} {
				if s, ok := object[key].(string); ok && s != "" {
					line = s

					break
				}
			}
		}

		lines = append(lines, "- "+line)
	}

	return strings.Join(lines, "\n")
}
