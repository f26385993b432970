package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/nova-hud/nova/pkg/models"
	"github.com/nova-hud/nova/pkg/protocol"
)

// CodeHTTPStatus marks an http-request output whose response was a 4xx/5xx.
const CodeHTTPStatus = "HTTP_STATUS"

func (f *Fetcher) httpRequest(ctx context.Context, req protocol.FetchRequest) (models.NodeOutput, error) {
	method := strings.ToUpper(req.Method)
	if method == "" {
		method = http.MethodGet
	}

	resp, err := f.do(ctx, func(ctx context.Context) (*http.Request, error) {
		var body io.Reader
		if req.Body != "" {
			body = strings.NewReader(req.Body)
		}

		r, err := http.NewRequestWithContext(ctx, method, req.URL, body)
		if err != nil {
			return nil, fmt.Errorf("failed to build request: %w", err)
		}

		for k, v := range req.Headers {
			r.Header.Set(k, v)
		}

		if body != nil && r.Header.Get("Content-Type") == "" {
			r.Header.Set("Content-Type", "application/json")
		}

		return r, nil
	})
	if err != nil {
		return models.NodeOutput{}, err
	}

	raw, err := readBody(resp)
	if err != nil {
		return models.NodeOutput{}, err
	}

	contentType := resp.Header.Get("Content-Type")
	mediaType, _, _ := mime.ParseMediaType(contentType)

	data := map[string]any{
		"status":      resp.StatusCode,
		"contentType": contentType,
		"url":         req.URL,
	}

	text := string(raw)

	switch {
	case strings.HasSuffix(mediaType, "json"):
		var body any
		if err := json.Unmarshal(raw, &body); err == nil {
			data["body"] = body
		}
	case mediaType == "text/html" || mediaType == "application/xhtml+xml":
		text = f.readable(raw, req.URL)
	}

	out := models.NodeOutput{OK: true, Text: text, Data: data}

	if list, ok := data["body"].([]any); ok {
		out.Items = list
	}

	if resp.StatusCode >= http.StatusBadRequest {
		out.OK = false
		out.Error = fmt.Sprintf("%s %s returned status %d", method, req.URL, resp.StatusCode)
		out.ErrorCode = CodeHTTPStatus
	}

	return out, nil
}
