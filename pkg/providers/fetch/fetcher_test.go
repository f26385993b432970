package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nova-hud/nova/pkg/protocol"
)

func newTestFetcher(cfg Config) *Fetcher {
	cfg.RetryDelay = time.Millisecond

	return New(cfg, slog.Default())
}

const articleHTML = `<html><head><title>Launch</title></head><body>
<nav>Home | About</nav>
<article><h1>Rocket launch</h1>
<p>The rocket lifted off at dawn and reached orbit after nine minutes of flight.
Engineers confirmed that every stage separated cleanly and the payload deployed on schedule.</p>
<p>The next launch window opens in three weeks, weather permitting.</p></article>
</body></html>`

func TestFetch_WebSearch(t *testing.T) {
	page := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(articleHTML))
	}))
	defer page.Close()

	search := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("X-Subscription-Token"))
		assert.Equal(t, "rocket launch", r.URL.Query().Get("q"))
		assert.Equal(t, "2", r.URL.Query().Get("count"))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"web":{"results":[
			{"title":"Rocket &amp; launch","url":%q,"description":"Lift off at dawn"},
			{"title":"Second","url":"http://127.0.0.1:1/unreachable","description":"Other"},
			{"title":"Third","url":"http://example.invalid","description":"Dropped"}
		]}}`, page.URL)
	}))
	defer search.Close()

	f := newTestFetcher(Config{SearchEndpoint: search.URL, SearchAPIKey: "secret"})

	out, err := f.Fetch(context.Background(), protocol.FetchRequest{
		Kind:            protocol.FetchWebSearch,
		Query:           "rocket launch",
		MaxResults:      2,
		IncludePageText: true,
	})
	require.NoError(t, err)
	require.True(t, out.OK)

	rows, ok := out.Data["results"].([]any)
	require.True(t, ok)
	require.Len(t, rows, 2)

	first := rows[0].(map[string]any)
	assert.Equal(t, "Rocket & launch", first["title"])
	assert.Equal(t, page.URL, first["url"])
	assert.Contains(t, first["pageText"], "lifted off at dawn")

	second := rows[1].(map[string]any)
	assert.NotContains(t, second, "pageText")
	assert.Contains(t, out.Text, "1. Rocket & launch: Lift off at dawn")
	assert.Len(t, out.Items, 2)
}

func TestFetch_WebSearchNotConfigured(t *testing.T) {
	_, err := newTestFetcher(Config{}).Fetch(context.Background(), protocol.FetchRequest{
		Kind:  protocol.FetchWebSearch,
		Query: "x",
	})
	assert.ErrorIs(t, err, ErrSearchNotConfigured)
}

func TestFetch_HTTPRequestJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "Bearer t", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_, _ = w.Write([]byte(`[{"id":1},{"id":2}]`))
	}))
	defer srv.Close()

	out, err := newTestFetcher(Config{}).Fetch(context.Background(), protocol.FetchRequest{
		Kind:    protocol.FetchHTTP,
		URL:     srv.URL,
		Method:  "post",
		Headers: map[string]string{"Authorization": "Bearer t"},
		Body:    `{"q":1}`,
	})
	require.NoError(t, err)
	assert.True(t, out.OK)
	assert.Equal(t, http.StatusOK, out.Data["status"])
	assert.Len(t, out.Items, 2)
}

func TestFetch_HTTPRequestRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)

			return
		}

		_, _ = w.Write([]byte("fine"))
	}))
	defer srv.Close()

	out, err := newTestFetcher(Config{}).Fetch(context.Background(), protocol.FetchRequest{Kind: protocol.FetchHTTP, URL: srv.URL})
	require.NoError(t, err)
	assert.True(t, out.OK)
	assert.Equal(t, "fine", out.Text)
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetch_HTTPRequestClientError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer srv.Close()

	out, err := newTestFetcher(Config{}).Fetch(context.Background(), protocol.FetchRequest{Kind: protocol.FetchHTTP, URL: srv.URL})
	require.NoError(t, err)
	assert.False(t, out.OK)
	assert.Equal(t, CodeHTTPStatus, out.ErrorCode)
	assert.Equal(t, http.StatusNotFound, out.Data["status"])
}

func TestFetch_RSS(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(`<?xml version="1.0"?>
<rss version="2.0"><channel><title>Tech</title>
<item><title>Chip news</title><link>https://example.com/a</link><description>&lt;p&gt;New and fast&lt;/p&gt;</description><pubDate>Tue, 10 Mar 2026 08:00:00 GMT</pubDate></item>
<item><title>Second</title><link>https://example.com/b</link></item>
<item><title>Third</title><link>https://example.com/c</link></item>
</channel></rss>`))
	}))
	defer srv.Close()

	out, err := newTestFetcher(Config{}).Fetch(context.Background(), protocol.FetchRequest{
		Kind:       protocol.FetchRSS,
		URL:        srv.URL,
		MaxResults: 2,
	})
	require.NoError(t, err)
	assert.True(t, out.OK)
	assert.Equal(t, "Tech", out.Data["feed"])

	rows := out.Data["results"].([]any)
	require.Len(t, rows, 2)

	first := rows[0].(map[string]any)
	assert.Equal(t, "Chip news", first["title"])
	assert.Equal(t, "https://example.com/a", first["url"])
	assert.Equal(t, "New and fast", first["snippet"])
	assert.Equal(t, "- Chip news\n- Second", out.Text)
}

func TestFetch_Atom(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<?xml version="1.0"?>
<feed xmlns="http://www.w3.org/2005/Atom"><title>Blog</title>
<entry><title>Post</title><link rel="alternate" href="https://blog.example/post"/><summary>Short</summary><updated>2026-03-10T08:00:00Z</updated></entry>
</feed>`))
	}))
	defer srv.Close()

	out, err := newTestFetcher(Config{}).Fetch(context.Background(), protocol.FetchRequest{Kind: protocol.FetchRSS, URL: srv.URL})
	require.NoError(t, err)

	rows := out.Data["results"].([]any)
	require.Len(t, rows, 1)
	assert.Equal(t, "https://blog.example/post", rows[0].(map[string]any)["link"])
	assert.Equal(t, "Blog", out.Data["feed"])
}

func TestFetch_Coinbase(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/BTC-USD/spot"):
			_, _ = w.Write([]byte(`{"data":{"amount":"65000.5","base":"BTC","currency":"USD"}}`))
		case strings.HasSuffix(r.URL.Path, "/ETH-USD/spot"):
			_, _ = w.Write([]byte(`{"data":{"amount":"3200.25","base":"ETH","currency":"USD"}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := newTestFetcher(Config{CoinbaseBaseURL: srv.URL})

	out, err := f.Fetch(context.Background(), protocol.FetchRequest{
		Kind:    protocol.FetchCoinbase,
		Symbols: []string{"btc", "ETH", "NOPE"},
	})
	require.NoError(t, err)
	require.True(t, out.OK)

	prices := out.Data["prices"].([]any)
	require.Len(t, prices, 2)
	assert.Equal(t, map[string]any{"symbol": "BTC", "price": 65000.5, "quote": "USD"}, prices[0])
	assert.Equal(t, "ETH", prices[1].(map[string]any)["symbol"])
	assert.Contains(t, out.Data["errors"], "NOPE")
	assert.Equal(t, "BTC: 65000.50 USD\nETH: 3200.25 USD", out.Text)

	out, err = f.Fetch(context.Background(), protocol.FetchRequest{Kind: protocol.FetchCoinbase, Symbols: []string{"NOPE"}})
	require.NoError(t, err)
	assert.False(t, out.OK)
}

func TestFetch_UnsupportedKind(t *testing.T) {
	_, err := newTestFetcher(Config{}).Fetch(context.Background(), protocol.FetchRequest{Kind: "telepathy"})
	assert.ErrorIs(t, err, ErrUnsupportedKind)
}
