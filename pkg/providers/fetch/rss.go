package fetch

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"strings"

	"github.com/nova-hud/nova/pkg/models"
	"github.com/nova-hud/nova/pkg/protocol"
	"github.com/nova-hud/nova/pkg/textutil"
)

const maxSnippetRunes = 400

// feedDocument decodes both RSS 2.0 and Atom documents.
type feedDocument struct {
	XMLName xml.Name
	Channel struct {
		Title string    `xml:"title"`
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
	Title   string      `xml:"title"`
	Entries []atomEntry `xml:"entry"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	PubDate     string `xml:"pubDate"`
}

type atomEntry struct {
	Title   string `xml:"title"`
	Summary string `xml:"summary"`
	Content string `xml:"content"`
	Updated string `xml:"updated"`
	Links   []struct {
		Href string `xml:"href,attr"`
		Rel  string `xml:"rel,attr"`
	} `xml:"link"`
}

func (f *Fetcher) feed(ctx context.Context, req protocol.FetchRequest) (models.NodeOutput, error) {
	resp, err := f.get(ctx, req.URL, map[string]string{
		"Accept": "application/rss+xml, application/atom+xml, application/xml;q=0.9, */*;q=0.8",
	})
	if err != nil {
		return models.NodeOutput{}, err
	}

	body, err := readBody(resp)
	if err != nil {
		return models.NodeOutput{}, err
	}

	if resp.StatusCode != http.StatusOK {
		return models.NodeOutput{}, fmt.Errorf("feed returned status %d", resp.StatusCode)
	}

	var doc feedDocument
	if err := xml.Unmarshal(body, &doc); err != nil {
		return models.NodeOutput{}, fmt.Errorf("failed to parse feed: %w", err)
	}

	maxItems := limit(req.MaxResults, defaultResults)
	title, rows := f.feedRows(doc, maxItems)

	items := make([]any, len(rows))
	lines := make([]string, len(rows))

	for i, row := range rows {
		items[i] = row
		lines[i] = "- " + row["title"].(string)
	}

	return models.NodeOutput{
		OK:    true,
		Text:  strings.Join(lines, "\n"),
		Data:  map[string]any{"feed": title, "url": req.URL, "results": items, "count": len(items)},
		Items: items,
	}, nil
}

func (f *Fetcher) feedRows(doc feedDocument, maxItems int) (string, []map[string]any) {
	rows := make([]map[string]any, 0, maxItems)

	if doc.XMLName.Local == "feed" {
		for _, e := range doc.Entries {
			if len(rows) == maxItems {
				break
			}

			summary := e.Summary
			if summary == "" {
				summary = e.Content
			}

			rows = append(rows, f.feedRow(e.Title, atomLink(e), summary, e.Updated))
		}

		return strings.TrimSpace(doc.Title), rows
	}

	for _, item := range doc.Channel.Items {
		if len(rows) == maxItems {
			break
		}

		rows = append(rows, f.feedRow(item.Title, item.Link, item.Description, item.PubDate))
	}

	return strings.TrimSpace(doc.Channel.Title), rows
}

func (f *Fetcher) feedRow(title, link, description, published string) map[string]any {
	link = strings.TrimSpace(link)

	row := map[string]any{
		"title":   textutil.CollapseSpace(f.humanizer.Text(title)),
		"url":     link,
		"link":    link,
		"snippet": textutil.TruncateWords(textutil.CollapseSpace(f.humanizer.Text(description)), maxSnippetRunes),
	}

	if published = strings.TrimSpace(published); published != "" {
		row["published"] = published
	}

	return row
}

func atomLink(e atomEntry) string {
	for _, l := range e.Links {
		if l.Rel == "" || l.Rel == "alternate" {
			return l.Href
		}
	}

	if len(e.Links) > 0 {
		return e.Links[0].Href
	}

	return ""
}
