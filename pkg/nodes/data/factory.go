package data

import "github.com/nova-hud/nova/pkg/models"

func (e *Executor) Name() string {
	switch e.nodeType {
	case models.NodeTypeWebSearch:
		return "Web Search"
	case models.NodeTypeHTTPRequest:
		return "HTTP Request"
	case models.NodeTypeRSSFeed:
		return "RSS Feed"
	default:
		return "Coinbase Prices"
	}
}

func (e *Executor) Description() string {
	switch e.nodeType {
	case models.NodeTypeWebSearch:
		return "Searches the web and optionally fetches the readable text of each result"
	case models.NodeTypeHTTPRequest:
		return "Performs an HTTP request and returns the response body"
	case models.NodeTypeRSSFeed:
		return "Reads the latest entries of an RSS or Atom feed"
	default:
		return "Reads spot prices for crypto assets from Coinbase"
	}
}

func (e *Executor) Schema() map[string]any {
	switch e.nodeType {
	case models.NodeTypeWebSearch:
		return map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query":        map[string]any{"type": "string", "minLength": 1},
				"maxResults":   map[string]any{"type": "integer", "minimum": 0, "maximum": 20},
				"fetchContent": map[string]any{"type": "boolean"},
			},
			"required": []string{"query"},
		}
	case models.NodeTypeHTTPRequest:
		return map[string]any{
			"type": "object",
			"properties": map[string]any{
				"url":     map[string]any{"type": "string", "minLength": 1},
				"method":  map[string]any{"type": "string", "enum": []string{"GET", "POST", "PUT", "PATCH", "DELETE", "get", "post", "put", "patch", "delete"}},
				"headers": map[string]any{"type": "object", "additionalProperties": map[string]any{"type": "string"}},
				"body":    map[string]any{"type": "string"},
			},
			"required": []string{"url"},
		}
	case models.NodeTypeRSSFeed:
		return map[string]any{
			"type": "object",
			"properties": map[string]any{
				"url":      map[string]any{"type": "string", "minLength": 1},
				"maxItems": map[string]any{"type": "integer", "minimum": 0},
			},
			"required": []string{"url"},
		}
	default:
		return map[string]any{
			"type": "object",
			"properties": map[string]any{
				"assets": map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "minItems": 1},
				"quote":  map[string]any{"type": "string"},
			},
			"required": []string{"assets"},
		}
	}
}
