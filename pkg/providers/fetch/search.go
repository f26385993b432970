package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/nova-hud/nova/pkg/models"
	"github.com/nova-hud/nova/pkg/protocol"
)

const pageFetchConcurrency = 3

type searchResponse struct {
	Web struct {
		Results []struct {
			Title       string `json:"title"`
			URL         string `json:"url"`
			Description string `json:"description"`
			Age         string `json:"age"`
		} `json:"results"`
	} `json:"web"`
}

func (f *Fetcher) search(ctx context.Context, req protocol.FetchRequest) (models.NodeOutput, error) {
	if f.cfg.SearchAPIKey == "" {
		return models.NodeOutput{}, ErrSearchNotConfigured
	}

	count := limit(req.MaxResults, defaultResults)

	query := url.Values{}
	query.Set("q", req.Query)
	query.Set("count", strconv.Itoa(count))

	resp, err := f.get(ctx, f.cfg.SearchEndpoint+"?"+query.Encode(), map[string]string{
		"Accept":               "application/json",
		"X-Subscription-Token": f.cfg.SearchAPIKey,
	})
	if err != nil {
		return models.NodeOutput{}, err
	}

	body, err := readBody(resp)
	if err != nil {
		return models.NodeOutput{}, err
	}

	if resp.StatusCode != http.StatusOK {
		return models.NodeOutput{}, fmt.Errorf("search returned status %d", resp.StatusCode)
	}

	var decoded searchResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return models.NodeOutput{}, fmt.Errorf("failed to decode search response: %w", err)
	}

	rows := make([]map[string]any, 0, count)

	for _, r := range decoded.Web.Results {
		if len(rows) == count {
			break
		}

		row := map[string]any{
			"title":   f.humanizer.Text(r.Title),
			"url":     r.URL,
			"snippet": f.humanizer.Text(r.Description),
		}
		if r.Age != "" {
			row["age"] = r.Age
		}

		rows = append(rows, row)
	}

	if req.IncludePageText {
		f.attachPageText(ctx, rows)
	}

	items := make([]any, len(rows))
	lines := make([]string, len(rows))

	for i, row := range rows {
		items[i] = row
		lines[i] = fmt.Sprintf("%d. %s: %s (%s)", i+1, row["title"], row["snippet"], row["url"])
	}

	return models.NodeOutput{
		OK:    true,
		Text:  strings.Join(lines, "\n"),
		Data:  map[string]any{"query": req.Query, "results": items, "count": len(items)},
		Items: items,
	}, nil
}

// attachPageText adds the readable text of each result page. Pages that
// cannot be read keep their snippet only.
func (f *Fetcher) attachPageText(ctx context.Context, rows []map[string]any) {
	texts := make([]string, len(rows))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(pageFetchConcurrency)

	for i, row := range rows {
		link, _ := row["url"].(string)
		if link == "" {
			continue
		}

		g.Go(func() error {
			text, err := f.pageText(gctx, link)
			if err != nil {
				f.logger.DebugContext(gctx, "Skipping page text", "url", link, "error", err)

				return nil
			}

			texts[i] = text

			return nil
		})
	}

	_ = g.Wait()

	for i, text := range texts {
		if text != "" {
			rows[i]["pageText"] = text
		}
	}
}
