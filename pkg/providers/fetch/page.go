package fetch

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	readability "github.com/go-shiori/go-readability"

	"github.com/nova-hud/nova/pkg/textutil"
)

const maxPageTextRunes = 4000

// pageText downloads link and extracts its main article text. Documents
// readability cannot parse fall back to a markdown rendering of the page.
func (f *Fetcher) pageText(ctx context.Context, link string) (string, error) {
	resp, err := f.get(ctx, link, map[string]string{"Accept": "text/html,application/xhtml+xml"})
	if err != nil {
		return "", err
	}

	body, err := readBody(resp)
	if err != nil {
		return "", err
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("page returned status %d", resp.StatusCode)
	}

	return f.readable(body, link), nil
}

func (f *Fetcher) readable(body []byte, link string) string {
	var text string

	if pageURL, err := url.Parse(link); err == nil {
		if article, err := readability.FromReader(bytes.NewReader(body), pageURL); err == nil {
			text = article.TextContent
		}
	}

	if strings.TrimSpace(text) == "" {
		text = f.humanizer.Text(string(body))
	}

	return textutil.TruncateWords(textutil.CollapseSpace(text), maxPageTextRunes)
}
