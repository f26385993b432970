// Package template resolves "{{path}}" expressions against run data and
// renders Go templates for the format node.
package template

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"text/template"
	"time"
)

var tokenPattern = regexp.MustCompile(`\{\{\s*([^{}]+?)\s*\}\}`)

// NoValue is what text/template prints for a missing or nil value.
const NoValue = "<no value>"

// ErrUnresolved is returned by Render when the template references data the
// run does not have.
var ErrUnresolved = errors.New("template has unresolved values")

// Resolve replaces every "{{path}}" token in expr with the value found at
// path in data. Tokens that do not resolve are left verbatim so that quality
// checks can detect them later.
func Resolve(expr string, data map[string]any) string {
	if !strings.Contains(expr, "{{") {
		return expr
	}

	return tokenPattern.ReplaceAllStringFunc(expr, func(token string) string {
		path := tokenPattern.FindStringSubmatch(token)[1]

		value, ok := Lookup(data, path)
		if !ok || value == nil {
			return token
		}

		return Stringify(value)
	})
}

// HasUnresolved reports whether text still contains a "{{...}}" token.
func HasUnresolved(text string) bool {
	return tokenPattern.MatchString(text)
}

// Lookup walks a dotted path through nested maps and slices.
func Lookup(data map[string]any, path string) (any, bool) {
	path = strings.TrimPrefix(strings.TrimSpace(path), "$")
	if path == "" {
		return nil, false
	}

	var current any = data

	for _, segment := range strings.Split(path, ".") {
		if segment == "" {
			return nil, false
		}

		switch node := current.(type) {
		case map[string]any:
			next, ok := node[segment]
			if !ok {
				return nil, false
			}

			current = next
		case map[string]string:
			next, ok := node[segment]
			if !ok {
				return nil, false
			}

			current = next
		case []any:
			index, err := strconv.Atoi(segment)
			if err != nil || index < 0 || index >= len(node) {
				return nil, false
			}

			current = node[index]
		default:
			return nil, false
		}
	}

	return current, true
}

// Stringify renders a resolved value as text. Composite values become JSON.
func Stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case time.Time:
		return v.Format(time.RFC3339)
	case fmt.Stringer:
		return v.String()
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Sprint(value)
	}

	return string(raw)
}

// IsGoTemplate reports whether templateStr uses Go template syntax rather than
// plain path tokens.
func IsGoTemplate(templateStr string) bool {
	return strings.Contains(templateStr, "{{ .") || strings.Contains(templateStr, "{{.") ||
		strings.Contains(templateStr, "{{range") || strings.Contains(templateStr, "{{ range") ||
		strings.Contains(templateStr, "{{if") || strings.Contains(templateStr, "{{ if")
}

// Render executes a Go template over data. A template that prints a missing
// value or fails on missing data returns ErrUnresolved.
func Render(templateStr string, data any) (string, error) {
	tmpl, err := template.
		New("format").
		Option("missingkey=zero").
		Funcs(template.FuncMap{
			"now": func() string {
				return time.Now().UTC().Format(time.RFC3339)
			},
			"upper": strings.ToUpper,
			"lower": strings.ToLower,
			"trim":  strings.TrimSpace,
			"json": func(v any) string {
				return Stringify(v)
			},
			"join": func(sep string, items []any) string {
				parts := make([]string, 0, len(items))
				for _, item := range items {
					parts = append(parts, Stringify(item))
				}

				return strings.Join(parts, sep)
			},
		}).Parse(templateStr)
	if err != nil {
		return "", fmt.Errorf("failed to parse template '%s': %w", templateStr, err)
	}

	var buf strings.Builder

	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("%w: failed to execute template '%s': %w", ErrUnresolved, templateStr, err)
	}

	// Missing keys stay falsy for {{if}}, but printing one is an error.
	if strings.Contains(buf.String(), NoValue) {
		return "", fmt.Errorf("%w: template '%s' printed %s", ErrUnresolved, templateStr, NoValue)
	}

	return buf.String(), nil
}
